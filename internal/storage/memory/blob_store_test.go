package memory

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlobStoreRoundTrip(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	payload := []byte(`{"results":[]}`)
	uri, err := store.PutObject(context.Background(), "raw/icml.cc/2024-05-01/abc", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	require.Equal(t, "memory://raw/icml.cc/2024-05-01/abc", uri)

	payload[0] = 'X'
	got, contentType, ok := store.Object("raw/icml.cc/2024-05-01/abc")
	require.True(t, ok)
	require.Equal(t, `{"results":[]}`, string(got))
	require.Equal(t, "application/json", contentType)

	got[0] = 'Y'
	again, _, _ := store.Object("raw/icml.cc/2024-05-01/abc")
	require.Equal(t, byte('{'), again[0], "callers must not mutate stored payloads")

	require.Equal(t, []string{"raw/icml.cc/2024-05-01/abc"}, store.Paths())
}

func TestBlobStoreRejectsEmptyPath(t *testing.T) {
	t.Parallel()

	_, err := NewBlobStore().PutObject(context.Background(), "", "", bytes.NewReader(nil))
	require.Error(t, err)

	_, _, ok := NewBlobStore().Object("missing")
	require.False(t, ok)
}
