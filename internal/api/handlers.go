package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/cerebro/internal/paper"
	"github.com/JakeFAU/cerebro/internal/search"
	"github.com/JakeFAU/cerebro/internal/source/arxiv"
	"github.com/JakeFAU/cerebro/internal/venue"
)

const (
	defaultRunsLimit = 50
	maxRunsLimit     = 500
)

func (s *Server) searchPapers(w http.ResponseWriter, r *http.Request) {
	req, err := parseSearchRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.deps.Search.Search(r.Context(), req)
	if err != nil {
		s.logger.Error("search failed", zap.String("query", req.Query), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) getPaper(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid paper id")
		return
	}
	p, err := s.deps.Store.GetPaper(r.Context(), id)
	if errors.Is(err, paper.ErrNotFound) {
		writeError(w, http.StatusNotFound, "paper not found")
		return
	}
	if err != nil {
		s.logger.Error("get paper failed", zap.Int64("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load paper")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type venueView struct {
	Name  string `json:"name"`
	Group string `json:"group"`
}

func (s *Server) listVenues(w http.ResponseWriter, _ *http.Request) {
	names := venue.All()
	out := make([]venueView, 0, len(names))
	for _, name := range names {
		g, err := venue.GroupOf(name)
		if err != nil {
			continue
		}
		out = append(out, venueView{Name: name, Group: string(g)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"venues": out})
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	st, err := s.deps.Store.Stats(r.Context())
	if err != nil {
		s.logger.Error("stats failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunsLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxRunsLimit)
	}
	runs, err := s.deps.Store.ListRuns(r.Context(), limit)
	if err != nil {
		s.logger.Error("list runs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []paper.Run{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) searchArXiv(w http.ResponseWriter, r *http.Request) {
	if s.deps.ArXiv == nil {
		writeError(w, http.StatusNotImplemented, "arxiv lookups are not configured")
		return
	}
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if !search.Searchable(q) {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	start, err := nonNegativeInt(r.URL.Query().Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "start must be a non-negative integer")
		return
	}
	entries, err := s.deps.ArXiv.Search(r.Context(), arxiv.Query{
		Terms: q,
		Start: start,
		Max:   s.deps.Search.PageSize(),
	})
	if err != nil {
		s.logger.Warn("arxiv lookup failed", zap.String("query", q), zap.Error(err))
		writeError(w, http.StatusBadGateway, "arxiv lookup failed")
		return
	}
	if entries == nil {
		entries = []arxiv.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"query": q, "start": start, "entries": entries})
}

type fetchRequest struct {
	Venue string `json:"venue"`
	Year  int    `json:"year"`
}

func (s *Server) queueFetch(w http.ResponseWriter, r *http.Request) {
	var req fetchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	name, ok := venue.Canonical(strings.TrimSpace(req.Venue))
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown venue")
		return
	}
	if req.Year <= 0 {
		writeError(w, http.StatusBadRequest, "year must be > 0")
		return
	}
	queueCtx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := s.deps.Queue.Enqueue(queueCtx, paper.QueueItem{Venue: name, Year: req.Year}); err != nil {
		s.logger.Error("queue fetch failed", zap.String("venue", name), zap.Int("year", req.Year), zap.Error(err))
		status := http.StatusInternalServerError
		if errors.Is(err, paper.ErrQueueClosed) {
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, "failed to queue fetch")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"venue": name, "year": req.Year, "status": "queued"})
}

func parseSearchRequest(r *http.Request) (search.Request, error) {
	q := r.URL.Query()
	req := search.Request{
		Query: strings.TrimSpace(q.Get("q")),
		Page:  1,
	}
	if v := strings.TrimSpace(q.Get("venue")); v != "" {
		name, ok := venue.Canonical(v)
		if !ok {
			return req, errors.New("unknown venue")
		}
		req.Venue = name
	}
	if raw := q.Get("year"); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil || year <= 0 {
			return req, errors.New("year must be a positive integer")
		}
		req.Year = year
	}
	if raw := q.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil {
			return req, errors.New("page must be an integer")
		}
		req.Page = page
	}
	return req, nil
}

func nonNegativeInt(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, errors.New("negative")
	}
	return n, nil
}
