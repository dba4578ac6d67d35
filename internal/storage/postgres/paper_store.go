// Package postgres provides the Postgres-backed paper store. Full-text
// search uses a generated tsvector column with a GIN index.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/cerebro/internal/paper"
)

const schema = `
CREATE TABLE IF NOT EXISTS papers (
	id           BIGSERIAL PRIMARY KEY,
	title        TEXT        NOT NULL,
	authors      TEXT        NOT NULL DEFAULT '',
	venue        TEXT        NOT NULL,
	year         INTEGER     NOT NULL,
	paper_url    TEXT,
	abstract     TEXT        NOT NULL DEFAULT '',
	last_updated TIMESTAMPTZ NOT NULL,
	search       TSVECTOR GENERATED ALWAYS AS (
		setweight(to_tsvector('english', title), 'A') ||
		setweight(to_tsvector('english', abstract), 'B') ||
		setweight(to_tsvector('simple', authors), 'C')
	) STORED,
	UNIQUE (title, venue, year)
);
CREATE INDEX IF NOT EXISTS papers_search_idx ON papers USING GIN (search);
CREATE INDEX IF NOT EXISTS papers_venue_year_idx ON papers (lower(venue), year);

CREATE TABLE IF NOT EXISTS ingest_runs (
	id          TEXT        PRIMARY KEY,
	venue       TEXT        NOT NULL,
	year        INTEGER     NOT NULL,
	status      TEXT        NOT NULL,
	papers      INTEGER     NOT NULL DEFAULT 0,
	error_text  TEXT        NOT NULL DEFAULT '',
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS ingest_runs_pair_idx ON ingest_runs (venue, year, finished_at DESC);
`

const upsertSQL = `
INSERT INTO papers (title, authors, venue, year, paper_url, abstract, last_updated)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (title, venue, year) DO UPDATE SET
	authors      = EXCLUDED.authors,
	paper_url    = EXCLUDED.paper_url,
	abstract     = EXCLUDED.abstract,
	last_updated = EXCLUDED.last_updated`

const (
	paperColumns = "id, title, authors, venue, year, paper_url, abstract, last_updated"
	runColumns   = "id, venue, year, status, papers, error_text, started_at, finished_at"
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type dbPool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Begin(context.Context) (pgx.Tx, error)
	Ping(context.Context) error
	Close()
}

// PaperStore implements paper.Store on Postgres.
type PaperStore struct {
	pool dbPool
	now  func() time.Time
}

// NewPaperStore connects, applies the schema, and returns a ready store.
func NewPaperStore(ctx context.Context, cfg Config) (*PaperStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("store.postgres.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	s := &PaperStore{pool: pool, now: time.Now}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewPaperStoreWithPool wraps an existing pool (primarily for testing).
func NewPaperStoreWithPool(pool dbPool) (*PaperStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &PaperStore{pool: pool, now: time.Now}, nil
}

// Migrate creates tables and indexes when missing.
func (s *PaperStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// UpsertPapers writes papers in one transaction, updating rows that share
// (title, venue, year).
func (s *PaperStore) UpsertPapers(ctx context.Context, papers []paper.Paper) (int, error) {
	if len(papers) == 0 {
		return 0, nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin upsert: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	stamp := s.now().UTC()
	written := 0
	for _, p := range papers {
		if strings.TrimSpace(p.Title) == "" {
			continue
		}
		if _, err := tx.Exec(ctx, upsertSQL, p.Title, p.Authors, p.Venue, p.Year,
			nullable(p.URL), p.Abstract, stamp); err != nil {
			return 0, fmt.Errorf("upsert %q: %w", p.Title, err)
		}
		written++
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit upsert: %w", err)
	}
	return written, nil
}

// Count returns how many papers match filter.
func (s *PaperStore) Count(ctx context.Context, filter paper.Filter) (int, error) {
	where, args := filterClause(filter)
	var n int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM papers"+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count papers: %w", err)
	}
	return n, nil
}

// Search returns one page of matches ordered by ts_rank.
func (s *PaperStore) Search(ctx context.Context, filter paper.Filter, offset, limit int) ([]paper.Paper, error) {
	where, args := filterClause(filter)
	order := " ORDER BY year DESC, title"
	if strings.TrimSpace(filter.Query) != "" {
		// $1 is always the query text when present.
		order = " ORDER BY ts_rank(search, websearch_to_tsquery('english', $1)) DESC, id"
	}
	args = append(args, limit, offset)
	query := fmt.Sprintf("SELECT %s FROM papers%s%s LIMIT $%d OFFSET $%d",
		paperColumns, where, order, len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search papers: %w", err)
	}
	defer rows.Close()

	var out []paper.Paper
	for rows.Next() {
		p, err := scanPaper(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate papers: %w", err)
	}
	return out, nil
}

// GetPaper loads one paper by id.
func (s *PaperStore) GetPaper(ctx context.Context, id int64) (paper.Paper, error) {
	p, err := scanPaper(s.pool.QueryRow(ctx, "SELECT "+paperColumns+" FROM papers WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return paper.Paper{}, paper.ErrNotFound
	}
	return p, err
}

// Stats reports the total and per-venue paper counts.
func (s *PaperStore) Stats(ctx context.Context) (paper.Stats, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT venue, COUNT(*) FROM papers GROUP BY venue ORDER BY COUNT(*) DESC, venue")
	if err != nil {
		return paper.Stats{}, fmt.Errorf("venue stats: %w", err)
	}
	defer rows.Close()

	stats := paper.Stats{Venues: []paper.VenueCount{}}
	for rows.Next() {
		var (
			vc    paper.VenueCount
			count int64
		)
		if err := rows.Scan(&vc.Venue, &count); err != nil {
			return paper.Stats{}, fmt.Errorf("scan venue stats: %w", err)
		}
		vc.Count = int(count)
		stats.TotalPapers += vc.Count
		stats.Venues = append(stats.Venues, vc)
	}
	if err := rows.Err(); err != nil {
		return paper.Stats{}, fmt.Errorf("iterate venue stats: %w", err)
	}
	return stats, nil
}

// RecordRun appends an ingest run to the ledger.
func (s *PaperStore) RecordRun(ctx context.Context, run paper.Run) error {
	if run.ID == "" {
		return fmt.Errorf("run id is required")
	}
	_, err := s.pool.Exec(ctx, `
INSERT INTO ingest_runs (`+runColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		run.ID, run.Venue, run.Year, string(run.Status), run.Papers, run.ErrorText,
		run.StartedAt.UTC(), run.FinishedAt.UTC())
	if err != nil {
		return fmt.Errorf("record run %s: %w", run.ID, err)
	}
	return nil
}

// LastRun returns the newest successful run for a pair, or paper.ErrNotFound.
func (s *PaperStore) LastRun(ctx context.Context, venueName string, year int) (paper.Run, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+runColumns+` FROM ingest_runs
WHERE venue = $1 AND year = $2 AND status = $3
ORDER BY finished_at DESC LIMIT 1`, venueName, year, string(paper.RunStatusSucceeded))
	run, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return paper.Run{}, paper.ErrNotFound
	}
	return run, err
}

// ListRuns returns the newest runs first.
func (s *PaperStore) ListRuns(ctx context.Context, limit int) ([]paper.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, "SELECT "+runColumns+
		" FROM ingest_runs ORDER BY finished_at DESC, id DESC LIMIT $1", limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := []paper.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// Ping checks the pool can reach the server.
func (s *PaperStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *PaperStore) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

// filterClause renders the WHERE clause. The text query, when present, is
// always bound as $1.
func filterClause(filter paper.Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if q := strings.TrimSpace(filter.Query); q != "" {
		args = append(args, q)
		conds = append(conds, fmt.Sprintf("search @@ websearch_to_tsquery('english', $%d)", len(args)))
	}
	if v := strings.TrimSpace(filter.Venue); v != "" {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf("lower(venue) = lower($%d)", len(args)))
	}
	if filter.Year > 0 {
		args = append(args, filter.Year)
		conds = append(conds, fmt.Sprintf("year = $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanPaper(row pgx.Row) (paper.Paper, error) {
	var (
		p    paper.Paper
		link *string
	)
	if err := row.Scan(&p.ID, &p.Title, &p.Authors, &p.Venue, &p.Year, &link, &p.Abstract, &p.LastUpdated); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return paper.Paper{}, err
		}
		return paper.Paper{}, fmt.Errorf("scan paper: %w", err)
	}
	if link != nil {
		p.URL = *link
	}
	return p, nil
}

func scanRun(row pgx.Row) (paper.Run, error) {
	var (
		run    paper.Run
		status string
	)
	if err := row.Scan(&run.ID, &run.Venue, &run.Year, &status, &run.Papers, &run.ErrorText,
		&run.StartedAt, &run.FinishedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return paper.Run{}, err
		}
		return paper.Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.Status = paper.RunStatus(status)
	return run, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
