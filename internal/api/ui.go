package api

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"github.com/JakeFAU/cerebro/internal/search"
	"github.com/JakeFAU/cerebro/internal/venue"
)

//go:embed templates/index.html
var templateFS embed.FS

type pageRenderer struct {
	tmpl *template.Template
}

func newPageRenderer() *pageRenderer {
	return &pageRenderer{
		tmpl: template.Must(template.ParseFS(templateFS, "templates/index.html")),
	}
}

type indexView struct {
	Query    string
	Venue    string
	Year     int
	Venues   []string
	Years    []int
	Searched bool
	Error    string
	Result   search.Result
	From     int
	PrevURL  string
	NextURL  string
}

// pageURL builds the link for another page of the current search.
func pageURL(v indexView, page int) string {
	q := url.Values{}
	q.Set("q", v.Query)
	if v.Venue != "" {
		q.Set("venue", v.Venue)
	}
	if v.Year > 0 {
		q.Set("year", strconv.Itoa(v.Year))
	}
	q.Set("page", strconv.Itoa(page))
	return "/?" + q.Encode()
}

func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	view := indexView{
		Venues: venue.All(),
		Years:  s.yearOptions(),
	}
	req, err := parseSearchRequest(r)
	view.Query, view.Venue, view.Year = req.Query, req.Venue, req.Year
	view.Result = search.Result{Page: search.Paginate(0, 1, 1)}
	switch {
	case err != nil:
		view.Error = err.Error()
	case req.Query != "":
		view.Searched = true
		res, err := s.deps.Search.Search(r.Context(), req)
		if err != nil {
			s.logger.Error("ui search failed", zap.String("query", req.Query), zap.Error(err))
			view.Error = "Search is unavailable right now. Please try again."
			break
		}
		view.Result = res
		view.From = res.Page.Start + 1
		if res.Page.HasPrev {
			view.PrevURL = pageURL(view, res.Page.Number-1)
		}
		if res.Page.HasNext {
			view.NextURL = pageURL(view, res.Page.Number+1)
		}
	}

	var buf bytes.Buffer
	if err := s.page.tmpl.Execute(&buf, view); err != nil {
		s.logger.Error("render index failed", zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := buf.WriteTo(w); err != nil {
		s.logger.Debug("write index failed", zap.Error(err))
	}
}

func (s *Server) yearOptions() []int {
	from, to := s.cfg.Ingest.YearFrom, s.cfg.Ingest.YearTo
	if from <= 0 || to < from {
		return nil
	}
	years := make([]int, 0, to-from+1)
	for y := to; y >= from; y-- {
		years = append(years, y)
	}
	return years
}
