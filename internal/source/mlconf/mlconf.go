// Package mlconf reads the virtual-site JSON feeds published by NeurIPS,
// ICML and ICLR.
package mlconf

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/JakeFAU/cerebro/internal/paper"
)

// ErrNoResults is returned when a feed lacks the "results" array.
var ErrNoResults = errors.New("feed has no results")

// Source fetches orals-posters feeds.
type Source struct {
	fetcher paper.Fetcher
	bases   map[string]string
}

// New builds a source. baseURLs maps lowercase venue names to site roots.
func New(fetcher paper.Fetcher, baseURLs map[string]string) *Source {
	bases := make(map[string]string, len(baseURLs))
	for k, v := range baseURLs {
		bases[strings.ToLower(k)] = strings.TrimRight(v, "/")
	}
	return &Source{fetcher: fetcher, bases: bases}
}

type feed struct {
	Results *[]entry `json:"results"`
}

type entry struct {
	ID       entryID `json:"id"`
	Name     string  `json:"name"`
	Abstract string  `json:"abstract"`
	Authors  []struct {
		FullName string `json:"fullname"`
	} `json:"authors"`
}

// DataURL is the feed location for a venue and year.
func (s *Source) DataURL(name string, year int) (string, error) {
	base, err := s.base(name)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/static/virtual/data/%s-%d-orals-posters.json", base, strings.ToLower(name), year), nil
}

// FetchPapers implements paper.Source.
func (s *Source) FetchPapers(ctx context.Context, name string, year int) ([]paper.Paper, error) {
	dataURL, err := s.DataURL(name, year)
	if err != nil {
		return nil, err
	}
	resp, err := s.fetcher.Fetch(ctx, paper.FetchRequest{URL: dataURL})
	if err != nil {
		return nil, fmt.Errorf("fetch %s-%d feed: %w", name, year, err)
	}
	papers, err := s.Parse(resp.Body, name, year)
	if err != nil {
		return nil, fmt.Errorf("parse %s-%d feed: %w", name, year, err)
	}
	return papers, nil
}

// Parse decodes a feed body into papers. Entries without a title are dropped.
func (s *Source) Parse(body []byte, name string, year int) ([]paper.Paper, error) {
	base, err := s.base(name)
	if err != nil {
		return nil, err
	}
	var f feed
	if err := json.Unmarshal(body, &f); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	if f.Results == nil {
		return nil, ErrNoResults
	}

	papers := make([]paper.Paper, 0, len(*f.Results))
	for _, e := range *f.Results {
		title := strings.TrimSpace(e.Name)
		if title == "" {
			continue
		}
		authors := make([]string, 0, len(e.Authors))
		for _, a := range e.Authors {
			if a.FullName != "" {
				authors = append(authors, a.FullName)
			}
		}
		papers = append(papers, paper.Paper{
			Title:    title,
			Authors:  strings.Join(authors, ", "),
			Venue:    name,
			Year:     year,
			URL:      fmt.Sprintf("%s/virtual/%d/poster/%s", base, year, string(e.ID)),
			Abstract: strings.TrimSpace(e.Abstract),
		})
	}
	return papers, nil
}

// entryID accepts both numeric and string ids; feeds have used each.
type entryID string

func (id *entryID) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*id = entryID(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("decode id: %w", err)
	}
	*id = entryID(num.String())
	return nil
}

func (s *Source) base(name string) (string, error) {
	base, ok := s.bases[strings.ToLower(name)]
	if !ok {
		return "", fmt.Errorf("no base url configured for %q", name)
	}
	return base, nil
}
