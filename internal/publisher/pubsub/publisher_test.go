package pubsub

import (
	"context"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/JakeFAU/cerebro/internal/paper"
)

func TestPublishAgainstFakeServer(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	srv := pstest.NewServer()
	defer srv.Close()

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	client, err := pubsub.NewClient(ctx, "cerebro-test", option.WithGRPCConn(conn))
	require.NoError(t, err)
	_, err = client.CreateTopic(ctx, "paper-ingest")
	require.NoError(t, err)

	pub := New(client)
	defer pub.Close()

	run := paper.Run{ID: "r1", Venue: "ICML", Year: 2024, Status: paper.RunStatusSucceeded, Papers: 9}
	id, err := pub.Publish(ctx, "paper-ingest", run)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "ICML", msgs[0].Attributes["venue"])
	require.Equal(t, "succeeded", msgs[0].Attributes["status"])
	require.Contains(t, string(msgs[0].Data), `"papers":9`)
}

func TestPublishWithoutClient(t *testing.T) {
	t.Parallel()

	_, err := (&Publisher{}).Publish(context.Background(), "t", 1)
	require.Error(t, err)
}
