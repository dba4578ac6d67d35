package paper

import (
	"context"
	"io"
	"time"
)

// Store persists papers and answers full-text queries.
type Store interface {
	UpsertPapers(ctx context.Context, papers []Paper) (int, error)
	Count(ctx context.Context, filter Filter) (int, error)
	Search(ctx context.Context, filter Filter, offset, limit int) ([]Paper, error)
	GetPaper(ctx context.Context, id int64) (Paper, error)
	Stats(ctx context.Context) (Stats, error)
	RecordRun(ctx context.Context, run Run) error
	LastRun(ctx context.Context, venue string, year int) (Run, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	Close() error
}

// Source turns a (venue, year) pair into paper records.
type Source interface {
	FetchPapers(ctx context.Context, venue string, year int) ([]Paper, error)
}

// Fetcher fetches a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// Queue provides enqueue/dequeue semantics for ingest work.
type Queue interface {
	Enqueue(ctx context.Context, item QueueItem) error
	Dequeue(ctx context.Context) (QueueItem, error)
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes ingest events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
