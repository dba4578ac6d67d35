// Package search answers paginated full-text queries over the paper store.
package search

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/JakeFAU/cerebro/internal/metrics"
	"github.com/JakeFAU/cerebro/internal/paper"
)

// Searcher is the read side of paper.Store used by the service.
type Searcher interface {
	Count(ctx context.Context, filter paper.Filter) (int, error)
	Search(ctx context.Context, filter paper.Filter, offset, limit int) ([]paper.Paper, error)
}

// Request is one UI or API search.
type Request struct {
	Query string
	Venue string
	Year  int
	Page  int
}

// Result is one page of matches.
type Result struct {
	Query  string        `json:"query"`
	Venue  string        `json:"venue,omitempty"`
	Year   int           `json:"year,omitempty"`
	Page   Page          `json:"pagination"`
	Papers []paper.Paper `json:"papers"`
}

// Service combines counting, pagination and page loading.
type Service struct {
	store    Searcher
	pageSize int
}

// NewService returns a Service that serves pageSize results per page.
func NewService(store Searcher, pageSize int) *Service {
	if pageSize <= 0 {
		pageSize = 10
	}
	return &Service{store: store, pageSize: pageSize}
}

// PageSize reports the configured results per page.
func (s *Service) PageSize() int {
	return s.pageSize
}

// Search runs req. A query without any letters or digits yields an empty
// result without touching the store.
func (s *Service) Search(ctx context.Context, req Request) (Result, error) {
	query := strings.TrimSpace(req.Query)
	res := Result{Query: query, Venue: req.Venue, Year: req.Year, Papers: []paper.Paper{}}
	if !Searchable(query) {
		res.Page = Paginate(0, req.Page, s.pageSize)
		metrics.ObserveSearch("empty")
		return res, nil
	}

	filter := paper.Filter{Query: query, Venue: req.Venue, Year: req.Year}
	total, err := s.store.Count(ctx, filter)
	if err != nil {
		metrics.ObserveSearch("error")
		return res, fmt.Errorf("count matches: %w", err)
	}
	res.Page = Paginate(total, req.Page, s.pageSize)
	if total == 0 {
		metrics.ObserveSearch("empty")
		return res, nil
	}

	papers, err := s.store.Search(ctx, filter, res.Page.Start, res.Page.End-res.Page.Start)
	if err != nil {
		metrics.ObserveSearch("error")
		return res, fmt.Errorf("load page %d: %w", res.Page.Number, err)
	}
	res.Papers = papers
	metrics.ObserveSearch("hit")
	return res, nil
}

// Searchable reports whether query holds at least one indexable term.
func Searchable(query string) bool {
	return strings.IndexFunc(query, func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsDigit(r)
	}) >= 0
}
