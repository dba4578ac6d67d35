package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/JakeFAU/cerebro/internal/paper"
)

type paperKey struct {
	title string
	venue string
	year  int
}

// PaperStore is an in-memory paper.Store for development and tests. Text
// queries match when every term appears in the title, abstract or authors.
type PaperStore struct {
	mu     sync.RWMutex
	papers []paper.Paper
	byKey  map[paperKey]int
	runs   []paper.Run
	now    func() time.Time
}

// NewPaperStore creates an empty store.
func NewPaperStore() *PaperStore {
	return &PaperStore{byKey: make(map[paperKey]int), now: time.Now}
}

// UpsertPapers inserts or updates by (title, venue, year).
func (s *PaperStore) UpsertPapers(_ context.Context, papers []paper.Paper) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stamp := s.now().UTC()
	written := 0
	for _, p := range papers {
		if strings.TrimSpace(p.Title) == "" {
			continue
		}
		key := paperKey{p.Title, p.Venue, p.Year}
		p.LastUpdated = stamp
		if idx, ok := s.byKey[key]; ok {
			p.ID = s.papers[idx].ID
			s.papers[idx] = p
		} else {
			p.ID = int64(len(s.papers) + 1)
			s.byKey[key] = len(s.papers)
			s.papers = append(s.papers, p)
		}
		written++
	}
	return written, nil
}

// Count returns how many papers match filter.
func (s *PaperStore) Count(_ context.Context, filter paper.Filter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.match(filter)), nil
}

// Search returns one page of matches.
func (s *PaperStore) Search(_ context.Context, filter paper.Filter, offset, limit int) ([]paper.Paper, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	hits := s.match(filter)
	if offset >= len(hits) {
		return nil, nil
	}
	end := offset + limit
	if end > len(hits) {
		end = len(hits)
	}
	return append([]paper.Paper(nil), hits[offset:end]...), nil
}

func (s *PaperStore) match(filter paper.Filter) []paper.Paper {
	terms := strings.Fields(strings.ToLower(filter.Query))
	var out []paper.Paper
	for _, p := range s.papers {
		if filter.Venue != "" && !strings.EqualFold(p.Venue, strings.TrimSpace(filter.Venue)) {
			continue
		}
		if filter.Year > 0 && p.Year != filter.Year {
			continue
		}
		if !containsAll(strings.ToLower(p.Title+" "+p.Abstract+" "+p.Authors), terms) {
			continue
		}
		out = append(out, p)
	}
	if len(terms) == 0 {
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].Year != out[j].Year {
				return out[i].Year > out[j].Year
			}
			return out[i].Title < out[j].Title
		})
	}
	return out
}

func containsAll(text string, terms []string) bool {
	for _, t := range terms {
		if !strings.Contains(text, t) {
			return false
		}
	}
	return true
}

// GetPaper loads one paper by id.
func (s *PaperStore) GetPaper(_ context.Context, id int64) (paper.Paper, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id < 1 || int(id) > len(s.papers) {
		return paper.Paper{}, paper.ErrNotFound
	}
	return s.papers[id-1], nil
}

// Stats reports the total and per-venue paper counts.
func (s *PaperStore) Stats(context.Context) (paper.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := map[string]int{}
	for _, p := range s.papers {
		counts[p.Venue]++
	}
	stats := paper.Stats{TotalPapers: len(s.papers), Venues: make([]paper.VenueCount, 0, len(counts))}
	for v, n := range counts {
		stats.Venues = append(stats.Venues, paper.VenueCount{Venue: v, Count: n})
	}
	sort.Slice(stats.Venues, func(i, j int) bool {
		if stats.Venues[i].Count != stats.Venues[j].Count {
			return stats.Venues[i].Count > stats.Venues[j].Count
		}
		return stats.Venues[i].Venue < stats.Venues[j].Venue
	})
	return stats, nil
}

// RecordRun appends a run.
func (s *PaperStore) RecordRun(_ context.Context, run paper.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, run)
	return nil
}

// LastRun returns the newest successful run for a pair.
func (s *PaperStore) LastRun(_ context.Context, venueName string, year int) (paper.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		best  paper.Run
		found bool
	)
	for _, r := range s.runs {
		if r.Venue != venueName || r.Year != year || r.Status != paper.RunStatusSucceeded {
			continue
		}
		if !found || r.FinishedAt.After(best.FinishedAt) {
			best, found = r, true
		}
	}
	if !found {
		return paper.Run{}, paper.ErrNotFound
	}
	return best, nil
}

// ListRuns returns the newest runs first.
func (s *PaperStore) ListRuns(_ context.Context, limit int) ([]paper.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]paper.Run{}, s.runs...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].FinishedAt.After(out[j].FinishedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Close is a no-op.
func (s *PaperStore) Close() error { return nil }
