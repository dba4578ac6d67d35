// Package arxiv queries the arXiv Atom API, both for live lookups from the
// UI and for per-year category ingestion.
package arxiv

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/JakeFAU/cerebro/internal/paper"
	"github.com/JakeFAU/cerebro/internal/venue"
)

// ErrEmptyQuery is returned when a search has neither terms nor categories.
var ErrEmptyQuery = errors.New("arxiv query needs terms or categories")

const defaultMaxResults = 10

// Query describes one Atom API search.
type Query struct {
	Terms      string
	Categories []string
	Start      int
	Max        int
}

// Entry is one search hit.
type Entry struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Authors   string    `json:"authors"`
	Abstract  string    `json:"abstract"`
	Link      string    `json:"link"`
	Published time.Time `json:"published"`
}

// Client talks to the Atom API through a paper.Fetcher.
type Client struct {
	fetcher    paper.Fetcher
	baseURL    string
	categories []string
	maxResults int
}

// New builds a client. categories scope both Search defaults and year ingestion.
func New(fetcher paper.Fetcher, baseURL string, categories []string, maxResults int) *Client {
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	return &Client{
		fetcher:    fetcher,
		baseURL:    baseURL,
		categories: categories,
		maxResults: maxResults,
	}
}

// Categories returns the configured default categories.
func (c *Client) Categories() []string {
	return append([]string(nil), c.categories...)
}

// Search runs a query sorted by submission date, newest first. Empty
// Categories fall back to the client's defaults.
func (c *Client) Search(ctx context.Context, q Query) ([]Entry, error) {
	if len(q.Categories) == 0 {
		q.Categories = c.categories
	}
	searchQuery, err := buildSearchQuery(q.Terms, q.Categories, "")
	if err != nil {
		return nil, err
	}
	return c.run(ctx, searchQuery, q.Start, q.Max)
}

// FetchPapers implements paper.Source for the arXiv pseudo-venue: every
// paper in the configured categories submitted during year.
func (c *Client) FetchPapers(ctx context.Context, _ string, year int) ([]paper.Paper, error) {
	dateRange := fmt.Sprintf("submittedDate:[%04d01010000 TO %04d12312359]", year, year)
	searchQuery, err := buildSearchQuery("", c.categories, dateRange)
	if err != nil {
		return nil, err
	}
	entries, err := c.run(ctx, searchQuery, 0, c.maxResults)
	if err != nil {
		return nil, fmt.Errorf("fetch arxiv %d: %w", year, err)
	}
	papers := make([]paper.Paper, 0, len(entries))
	for _, e := range entries {
		papers = append(papers, paper.Paper{
			Title:    e.Title,
			Authors:  e.Authors,
			Venue:    venue.ArXiv,
			Year:     year,
			URL:      e.Link,
			Abstract: e.Abstract,
		})
	}
	return papers, nil
}

func (c *Client) run(ctx context.Context, searchQuery string, start, limit int) ([]Entry, error) {
	if limit <= 0 || limit > c.maxResults {
		limit = c.maxResults
	}
	if start < 0 {
		start = 0
	}
	params := url.Values{}
	params.Set("search_query", searchQuery)
	params.Set("start", strconv.Itoa(start))
	params.Set("max_results", strconv.Itoa(limit))
	params.Set("sortBy", "submittedDate")
	params.Set("sortOrder", "descending")

	resp, err := c.fetcher.Fetch(ctx, paper.FetchRequest{URL: c.baseURL + "?" + params.Encode()})
	if err != nil {
		return nil, fmt.Errorf("arxiv request: %w", err)
	}
	return ParseFeed(resp.Body)
}

// buildSearchQuery renders "(cat:A OR cat:B) AND all:terms AND extra",
// omitting empty parts.
func buildSearchQuery(terms string, categories []string, extra string) (string, error) {
	var parts []string
	if len(categories) > 0 {
		cats := make([]string, 0, len(categories))
		for _, cat := range categories {
			cats = append(cats, "cat:"+cat)
		}
		parts = append(parts, "("+strings.Join(cats, " OR ")+")")
	}
	if t := strings.TrimSpace(terms); t != "" {
		parts = append(parts, "all:"+t)
	}
	if len(parts) == 0 {
		return "", ErrEmptyQuery
	}
	if extra != "" {
		parts = append(parts, extra)
	}
	return strings.Join(parts, " AND "), nil
}

type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID        string       `xml:"id"`
	Title     string       `xml:"title"`
	Summary   string       `xml:"summary"`
	Authors   []atomAuthor `xml:"author"`
	Published string       `xml:"published"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

// ParseFeed decodes an Atom response body.
func ParseFeed(body []byte) ([]Entry, error) {
	var feed atomFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("decode atom feed: %w", err)
	}
	entries := make([]Entry, 0, len(feed.Entries))
	for _, e := range feed.Entries {
		authors := make([]string, 0, len(e.Authors))
		for _, a := range e.Authors {
			authors = append(authors, strings.TrimSpace(a.Name))
		}
		published, _ := time.Parse(time.RFC3339, strings.TrimSpace(e.Published))
		link := strings.TrimSpace(e.ID)
		entries = append(entries, Entry{
			ID:        shortID(link),
			Title:     collapseSpace(e.Title),
			Authors:   strings.Join(authors, ", "),
			Abstract:  strings.TrimSpace(e.Summary),
			Link:      link,
			Published: published,
		})
	}
	return entries, nil
}

// shortID turns http://arxiv.org/abs/2301.00001v2 into 2301.00001.
func shortID(link string) string {
	idx := strings.LastIndex(link, "/abs/")
	if idx < 0 {
		return link
	}
	id := link[idx+len("/abs/"):]
	if v := strings.LastIndex(id, "v"); v > 0 {
		if _, err := strconv.Atoi(id[v+1:]); err == nil {
			id = id[:v]
		}
	}
	return id
}

// Titles in the feed are hard-wrapped.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
