// Package acl scrapes ACL Anthology event pages.
package acl

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/cerebro/internal/paper"
	"github.com/JakeFAU/cerebro/internal/venue"
)

// Source fetches one event listing per (venue, year).
type Source struct {
	fetcher paper.Fetcher
	base    *url.URL
}

// New builds an ACL Anthology source rooted at baseURL.
func New(fetcher paper.Fetcher, baseURL string) (*Source, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse acl base url: %w", err)
	}
	return &Source{fetcher: fetcher, base: base}, nil
}

// EventURL is the listing page for a venue's event in a given year.
func (s *Source) EventURL(name string, year int) string {
	return fmt.Sprintf("%s/events/%s-%d/", s.base.String(), venue.Slug(name), year)
}

// FetchPapers implements paper.Source.
func (s *Source) FetchPapers(ctx context.Context, name string, year int) ([]paper.Paper, error) {
	resp, err := s.fetcher.Fetch(ctx, paper.FetchRequest{URL: s.EventURL(name, year)})
	if err != nil {
		return nil, fmt.Errorf("fetch acl event %s-%d: %w", name, year, err)
	}
	papers, err := s.Parse(resp.Body, name, year)
	if err != nil {
		return nil, fmt.Errorf("parse acl event %s-%d: %w", name, year, err)
	}
	return papers, nil
}

// Parse extracts papers from an event listing page.
func (s *Source) Parse(body []byte, name string, year int) ([]paper.Paper, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("load html: %w", err)
	}

	var papers []paper.Paper
	doc.Find("p.d-sm-flex").Each(func(_ int, row *goquery.Selection) {
		title := strings.TrimSpace(row.Find("strong a.align-middle").First().Text())
		if title == "" {
			return
		}

		var authors []string
		row.Find(`a[href^="/people/"]`).Each(func(_ int, a *goquery.Selection) {
			if author := strings.TrimSpace(a.Text()); author != "" {
				authors = append(authors, author)
			}
		})

		papers = append(papers, paper.Paper{
			Title:    title,
			Authors:  strings.Join(authors, ", "),
			Venue:    name,
			Year:     year,
			URL:      s.pdfURL(row),
			Abstract: abstractFor(row),
		})
	})
	return papers, nil
}

func (s *Source) pdfURL(row *goquery.Selection) string {
	var out string
	row.Find("a.badge-primary").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if !strings.Contains(strings.ToLower(a.Text()), "pdf") {
			return true
		}
		href, ok := a.Attr("href")
		if !ok {
			return true
		}
		ref, err := url.Parse(href)
		if err != nil {
			return true
		}
		out = s.base.ResolveReference(ref).String()
		return false
	})
	return out
}

// abstractFor reads the collapsible abstract that directly follows a row.
// Rows without one must not borrow the next paper's abstract.
func abstractFor(row *goquery.Selection) string {
	next := row.Next()
	if !next.Is("div.abstract-collapse") {
		return ""
	}
	return strings.TrimSpace(next.Find(".card-body").First().Text())
}
