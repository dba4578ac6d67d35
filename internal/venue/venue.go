// Package venue holds the registry of supported venues and the source group
// each one is scraped with.
package venue

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrUnknownVenue is returned when no source group handles a venue.
var ErrUnknownVenue = errors.New("no source for venue")

// Group identifies which source adapter handles a venue.
type Group string

// Supported source groups.
const (
	GroupACL   Group = "ACL"
	GroupML    Group = "ML"
	GroupArXiv Group = "ARXIV"
)

// ACL lists the ACL Anthology event series.
var ACL = []string{
	"ACL", "AACL", "ANLP", "CL", "CoNLL", "EACL", "EMNLP", "Findings",
	"IWSLT", "NAACL", "SemEval", "(Star)*SEM", "TACL", "WMT", "WS",
}

// ML lists the machine learning conferences served by the virtual-site JSON feeds.
var ML = []string{"NEURIPS", "ICML", "ICLR"}

// ArXiv is the pseudo-venue used for arXiv category ingestion.
const ArXiv = "arXiv"

// All returns every venue in display order.
func All() []string {
	out := make([]string, 0, len(ACL)+len(ML)+1)
	out = append(out, ACL...)
	out = append(out, ML...)
	return append(out, ArXiv)
}

// GroupOf resolves the source group for venue.
func GroupOf(venue string) (Group, error) {
	for _, v := range ACL {
		if v == venue {
			return GroupACL, nil
		}
	}
	for _, v := range ML {
		if strings.EqualFold(v, venue) {
			return GroupML, nil
		}
	}
	if strings.EqualFold(venue, ArXiv) {
		return GroupArXiv, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownVenue, venue)
}

// Canonical returns the registry spelling of venue, matching case-insensitively.
func Canonical(venue string) (string, bool) {
	for _, v := range All() {
		if strings.EqualFold(v, venue) {
			return v, true
		}
	}
	return "", false
}

var nonAlnum = regexp.MustCompile(`[^a-zA-Z0-9]`)

// Slug sanitizes a venue name for ACL Anthology event URLs.
func Slug(venue string) string {
	if strings.EqualFold(venue, "*sem") {
		return "sem"
	}
	return strings.ToLower(nonAlnum.ReplaceAllString(venue, ""))
}

// Pair is one (venue, year) ingest target.
type Pair struct {
	Venue string
	Year  int
}

// Pairs expands venues across the inclusive year range, venue-major.
func Pairs(venues []string, from, to int) []Pair {
	if from > to {
		return nil
	}
	out := make([]Pair, 0, len(venues)*(to-from+1))
	for _, v := range venues {
		for y := from; y <= to; y++ {
			out = append(out, Pair{Venue: v, Year: y})
		}
	}
	return out
}
