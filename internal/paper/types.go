package paper

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrNotFound is returned by stores when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrQueueClosed is returned by queues that no longer accept or yield work.
var ErrQueueClosed = errors.New("queue closed")

// Paper is one publication record. Title, Venue and Year form its identity.
type Paper struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Authors     string    `json:"authors"`
	Venue       string    `json:"venue"`
	Year        int       `json:"year"`
	URL         string    `json:"paper_url,omitempty"`
	Abstract    string    `json:"abstract,omitempty"`
	LastUpdated time.Time `json:"last_updated"`
}

// Event renders the display label used by the UI, e.g. "ACL-2023".
func (p Paper) Event() string {
	return fmt.Sprintf("%s-%d", p.Venue, p.Year)
}

// Filter narrows a full-text query. Zero values mean "no filter".
type Filter struct {
	Query string
	Venue string
	Year  int
}

// RunStatus is the outcome of one ingest attempt.
type RunStatus string

// Run status values persisted in the run ledger.
const (
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
	RunStatusSkipped   RunStatus = "skipped"
)

// Run records one ingest attempt for a (venue, year) pair.
type Run struct {
	ID         string    `json:"id"`
	Venue      string    `json:"venue"`
	Year       int       `json:"year"`
	Status     RunStatus `json:"status"`
	Papers     int       `json:"papers"`
	ErrorText  string    `json:"error_text,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// VenueCount is the number of stored papers for one venue.
type VenueCount struct {
	Venue string `json:"venue"`
	Count int    `json:"count"`
}

// Stats summarizes store contents.
type Stats struct {
	TotalPapers int          `json:"total_papers"`
	Venues      []VenueCount `json:"venues"`
}

// QueueItem is one unit of background work.
type QueueItem struct {
	Venue string
	Year  int
}

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	URL     string
	Headers http.Header
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// Attributes are the message attributes attached when a run is published.
func (r Run) Attributes() map[string]string {
	return map[string]string{
		"venue":  r.Venue,
		"year":   fmt.Sprint(r.Year),
		"status": string(r.Status),
	}
}
