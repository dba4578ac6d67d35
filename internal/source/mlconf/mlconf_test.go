package mlconf

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/cerebro/internal/paper"
)

type fakeFetcher struct {
	body []byte
	urls []string
}

func (f *fakeFetcher) Fetch(_ context.Context, req paper.FetchRequest) (paper.FetchResponse, error) {
	f.urls = append(f.urls, req.URL)
	return paper.FetchResponse{URL: req.URL, StatusCode: 200, Body: f.body}, nil
}

var bases = map[string]string{"icml": "https://icml.cc/", "neurips": "https://neurips.cc"}

func TestFetchPapersMapsEntries(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{body: []byte(`{"count": 3, "results": [
		{"id": 71234, "name": " Scaling Laws ", "abstract": "We study scaling. ",
		 "authors": [{"fullname": "Ada Lovelace"}, {"fullname": "Alan Turing"}, {"institution": "x"}]},
		{"id": 2, "name": "   "},
		{"id": "oral-3", "name": "No Authors"}
	]}`)}
	src := New(f, bases)

	papers, err := src.FetchPapers(context.Background(), "ICML", 2023)
	require.NoError(t, err)
	require.Equal(t, []string{"https://icml.cc/static/virtual/data/icml-2023-orals-posters.json"}, f.urls)
	require.Len(t, papers, 2)

	require.Equal(t, paper.Paper{
		Title:    "Scaling Laws",
		Authors:  "Ada Lovelace, Alan Turing",
		Venue:    "ICML",
		Year:     2023,
		URL:      "https://icml.cc/virtual/2023/poster/71234",
		Abstract: "We study scaling.",
	}, papers[0])
	require.Equal(t, "No Authors", papers[1].Title)
	require.Empty(t, papers[1].Authors)
	require.Equal(t, "https://icml.cc/virtual/2023/poster/oral-3", papers[1].URL)
}

func TestParseMissingResults(t *testing.T) {
	t.Parallel()

	src := New(&fakeFetcher{}, bases)
	_, err := src.Parse([]byte(`{"count": 0}`), "NEURIPS", 2021)
	require.ErrorIs(t, err, ErrNoResults)

	papers, err := src.Parse([]byte(`{"results": []}`), "NEURIPS", 2021)
	require.NoError(t, err)
	require.Empty(t, papers)
}

func TestUnknownVenueBase(t *testing.T) {
	t.Parallel()

	src := New(&fakeFetcher{}, bases)
	_, err := src.FetchPapers(context.Background(), "ICLR", 2024)
	require.ErrorContains(t, err, "no base url")
}

func TestParseRejectsMalformedJSON(t *testing.T) {
	t.Parallel()

	src := New(&fakeFetcher{}, bases)
	_, err := src.Parse([]byte(`<html>`), "ICML", 2020)
	require.ErrorContains(t, err, "decode json")
}
