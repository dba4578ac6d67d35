package gcs

import (
	"context"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func TestNewValidatesInputs(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "raw"})
	require.Error(t, err)

	client, err := storage.NewClient(context.Background(), option.WithoutAuthentication())
	require.NoError(t, err)
	defer client.Close()

	_, err = New(client, Config{})
	require.ErrorContains(t, err, "archive.gcs_bucket")

	store, err := New(client, Config{Bucket: "raw"})
	require.NoError(t, err)
	_, err = store.PutObject(context.Background(), " ", "text/html", nil)
	require.ErrorContains(t, err, "path is required")
}
