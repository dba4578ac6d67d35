// Package archive keeps a copy of every raw source payload the fetcher
// downloads, addressed by content hash.
package archive

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/cerebro/internal/metrics"
	"github.com/JakeFAU/cerebro/internal/paper"
)

// Fetcher wraps a paper.Fetcher and archives successful responses. Archive
// failures are logged and never fail the fetch.
type Fetcher struct {
	next   paper.Fetcher
	blobs  paper.BlobStore
	clock  paper.Clock
	prefix string
	logger *zap.Logger
}

// New builds an archiving decorator around next.
func New(next paper.Fetcher, blobs paper.BlobStore, clock paper.Clock, prefix string, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		next:   next,
		blobs:  blobs,
		clock:  clock,
		prefix: strings.Trim(prefix, "/"),
		logger: logger.Named("archive"),
	}
}

// Fetch delegates to the wrapped fetcher, then stores the body.
func (f *Fetcher) Fetch(ctx context.Context, req paper.FetchRequest) (paper.FetchResponse, error) {
	resp, err := f.next.Fetch(ctx, req)
	if err != nil {
		return resp, err
	}
	objectPath := f.ObjectPath(resp.URL, resp.Body)
	uri, err := f.blobs.PutObject(ctx, objectPath, resp.Headers.Get("Content-Type"), bytes.NewReader(resp.Body))
	if err != nil {
		f.logger.Warn("archive payload failed", zap.String("url", resp.URL), zap.Error(err))
		return resp, nil
	}
	f.logger.Debug("archived payload",
		zap.String("url", resp.URL),
		zap.String("uri", uri),
		zap.Int("bytes", len(resp.Body)),
	)
	return resp, nil
}

// ObjectPath renders {prefix}/{host}/{yyyy-mm-dd}/{sha256}.
func (f *Fetcher) ObjectPath(rawURL string, body []byte) string {
	sum := sha256.Sum256(body)
	parts := []string{
		metrics.SanitizeSite(rawURL),
		f.clock.Now().UTC().Format("2006-01-02"),
		hex.EncodeToString(sum[:]),
	}
	if f.prefix != "" {
		parts = append([]string{f.prefix}, parts...)
	}
	return path.Join(parts...)
}

var _ paper.Fetcher = (*Fetcher)(nil)
