package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://aclanthology.org/events/acl-2023/", "aclanthology.org"},
		{"standard https", "https://ICML.cc/static/virtual/data", "icml.cc"},
		{"no scheme", "export.arxiv.org/api/query", "export.arxiv.org"},
		{"host with port", "localhost:8080", "localhost"},
		{"ip address", "192.168.1.1", "192.168.1.1"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeSite(tc.input); got != tc.expected {
				t.Errorf("SanitizeSite(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestObserveIngestRun(t *testing.T) {
	Init()
	Init()

	ObserveIngestRun("TACL", "succeeded", 12)
	ObserveIngestRun("TACL", "failed", 0)

	if val := testutil.ToFloat64(ingestRunsTotal.WithLabelValues("TACL", "succeeded")); val != 1 {
		t.Errorf("expected one succeeded run, got %f", val)
	}
	if val := testutil.ToFloat64(papersUpsertedTotal.WithLabelValues("TACL")); val != 12 {
		t.Errorf("expected 12 upserted papers, got %f", val)
	}
}

func TestObserveFetchCountsBytes(t *testing.T) {
	ObserveFetch("https://iclr.cc/static/virtual/data/iclr-2023-orals-posters.json", "ok", 2048)

	if val := testutil.ToFloat64(fetchBytesTotal.WithLabelValues("iclr.cc")); val != 2048 {
		t.Errorf("expected 2048 bytes, got %f", val)
	}
	if val := testutil.ToFloat64(fetchTotal.WithLabelValues("iclr.cc", "ok")); val != 1 {
		t.Errorf("expected one fetch, got %f", val)
	}
}

func TestGauges(t *testing.T) {
	SetQueueDepth(7)
	if val := testutil.ToFloat64(queueDepth); val != 7 {
		t.Errorf("expected queue depth 7, got %f", val)
	}
	SetWorkerBusy(true)
	if val := testutil.ToFloat64(workerBusy); val != 1 {
		t.Errorf("expected busy worker, got %f", val)
	}
	SetWorkerBusy(false)
	if val := testutil.ToFloat64(workerBusy); val != 0 {
		t.Errorf("expected idle worker, got %f", val)
	}
}

// Fuzz test for SanitizeSite.
func FuzzSanitizeSite(f *testing.F) {
	testcases := []string{"http://aclanthology.org", "https://neurips.cc", "ftp://example.com"}
	for _, tc := range testcases {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		if SanitizeSite(orig) == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}
