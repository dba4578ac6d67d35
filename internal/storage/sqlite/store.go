// Package sqlite is the embedded paper store: a papers table mirrored into
// an FTS5 external-content index, plus the ingest run ledger.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/JakeFAU/cerebro/internal/paper"
)

const indexInitializedKey = "search_index_initialized"

// Fixed-width UTC timestamps sort correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const schema = `
CREATE TABLE IF NOT EXISTS papers (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	title        TEXT    NOT NULL,
	authors      TEXT    NOT NULL DEFAULT '',
	venue        TEXT    NOT NULL,
	year         INTEGER NOT NULL,
	paper_url    TEXT,
	abstract     TEXT    NOT NULL DEFAULT '',
	last_updated TEXT    NOT NULL,
	UNIQUE(title, venue, year)
);

CREATE INDEX IF NOT EXISTS papers_venue_year ON papers(venue COLLATE NOCASE, year);

CREATE VIRTUAL TABLE IF NOT EXISTS papers_search USING fts5(
	title, abstract, authors,
	content='papers',
	content_rowid='id'
);

CREATE TRIGGER IF NOT EXISTS papers_ai AFTER INSERT ON papers BEGIN
	INSERT INTO papers_search(rowid, title, abstract, authors)
	VALUES (new.id, new.title, new.abstract, new.authors);
END;

CREATE TRIGGER IF NOT EXISTS papers_ad AFTER DELETE ON papers BEGIN
	INSERT INTO papers_search(papers_search, rowid, title, abstract, authors)
	VALUES ('delete', old.id, old.title, old.abstract, old.authors);
END;

CREATE TRIGGER IF NOT EXISTS papers_au AFTER UPDATE ON papers BEGIN
	INSERT INTO papers_search(papers_search, rowid, title, abstract, authors)
	VALUES ('delete', old.id, old.title, old.abstract, old.authors);
	INSERT INTO papers_search(rowid, title, abstract, authors)
	VALUES (new.id, new.title, new.abstract, new.authors);
END;

CREATE TABLE IF NOT EXISTS ingest_runs (
	id          TEXT    PRIMARY KEY,
	venue       TEXT    NOT NULL,
	year        INTEGER NOT NULL,
	status      TEXT    NOT NULL,
	papers      INTEGER NOT NULL DEFAULT 0,
	error_text  TEXT    NOT NULL DEFAULT '',
	started_at  TEXT    NOT NULL,
	finished_at TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS ingest_runs_pair ON ingest_runs(venue, year, finished_at);

CREATE TABLE IF NOT EXISTS store_meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// Config controls how the database file is opened.
type Config struct {
	Path          string
	BusyTimeoutMs int
}

// Store implements paper.Store on SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates or opens the database file, applies the schema, and rebuilds
// the search index when it has never been marked initialized.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("store.sqlite.path is required")
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dsn(cfg))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection serializes the UI and worker writers; WAL keeps
	// readers from blocking on it.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, now: time.Now}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func dsn(cfg Config) string {
	timeout := cfg.BusyTimeoutMs
	if timeout <= 0 {
		timeout = 5000
	}
	params := url.Values{}
	params.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", timeout))
	params.Add("_pragma", "journal_mode(WAL)")
	params.Add("_pragma", "foreign_keys(1)")
	return "file:" + cfg.Path + "?" + params.Encode()
}

func (s *Store) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	var flag string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM store_meta WHERE key = ?`, indexInitializedKey).Scan(&flag)
	switch {
	case err == nil:
		return nil
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("read index flag: %w", err)
	}
	return s.RebuildIndex(ctx)
}

// RebuildIndex regenerates papers_search from papers and marks it initialized.
func (s *Store) RebuildIndex(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin rebuild: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `INSERT INTO papers_search(papers_search) VALUES('rebuild')`); err != nil {
		return fmt.Errorf("rebuild search index: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO store_meta(key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		indexInitializedKey, s.now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("mark index initialized: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rebuild: %w", err)
	}
	return nil
}

// UpsertPapers inserts papers or updates the row sharing (title, venue, year).
// Row ids are stable across updates.
func (s *Store) UpsertPapers(ctx context.Context, papers []paper.Paper) (int, error) {
	if len(papers) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO papers (title, authors, venue, year, paper_url, abstract, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(title, venue, year) DO UPDATE SET
			authors      = excluded.authors,
			paper_url    = excluded.paper_url,
			abstract     = excluded.abstract,
			last_updated = excluded.last_updated`)
	if err != nil {
		return 0, fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	stamp := formatTime(s.now())
	written := 0
	for _, p := range papers {
		if strings.TrimSpace(p.Title) == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx, p.Title, p.Authors, p.Venue, p.Year,
			nullable(p.URL), p.Abstract, stamp); err != nil {
			return 0, fmt.Errorf("upsert %q: %w", p.Title, err)
		}
		written++
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit upsert: %w", err)
	}
	return written, nil
}

// Count returns how many papers match filter.
func (s *Store) Count(ctx context.Context, filter paper.Filter) (int, error) {
	from, where, args := filterClause(filter)
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) "+from+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count papers: %w", err)
	}
	return n, nil
}

// Search returns one page of matches, best rank first. Without a text
// query rows come newest year first.
func (s *Store) Search(ctx context.Context, filter paper.Filter, offset, limit int) ([]paper.Paper, error) {
	from, where, args := filterClause(filter)
	order := " ORDER BY p.year DESC, p.title"
	if matchExpr(filter.Query) != "" {
		order = " ORDER BY papers_search.rank, p.id"
	}
	query := "SELECT " + paperColumns + " " + from + where + order + " LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
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
func (s *Store) GetPaper(ctx context.Context, id int64) (paper.Paper, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+paperColumns+" FROM papers p WHERE p.id = ?", id)
	p, err := scanPaper(row)
	if errors.Is(err, sql.ErrNoRows) {
		return paper.Paper{}, paper.ErrNotFound
	}
	return p, err
}

// Stats reports the total and per-venue paper counts.
func (s *Store) Stats(ctx context.Context) (paper.Stats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT venue, COUNT(*) FROM papers GROUP BY venue ORDER BY COUNT(*) DESC, venue`)
	if err != nil {
		return paper.Stats{}, fmt.Errorf("venue stats: %w", err)
	}
	defer rows.Close()

	stats := paper.Stats{Venues: []paper.VenueCount{}}
	for rows.Next() {
		var vc paper.VenueCount
		if err := rows.Scan(&vc.Venue, &vc.Count); err != nil {
			return paper.Stats{}, fmt.Errorf("scan venue stats: %w", err)
		}
		stats.TotalPapers += vc.Count
		stats.Venues = append(stats.Venues, vc)
	}
	if err := rows.Err(); err != nil {
		return paper.Stats{}, fmt.Errorf("iterate venue stats: %w", err)
	}
	return stats, nil
}

// RecordRun appends an ingest run to the ledger.
func (s *Store) RecordRun(ctx context.Context, run paper.Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ingest_runs (id, venue, year, status, papers, error_text, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Venue, run.Year, string(run.Status), run.Papers, run.ErrorText,
		formatTime(run.StartedAt), formatTime(run.FinishedAt))
	if err != nil {
		return fmt.Errorf("record run %s: %w", run.ID, err)
	}
	return nil
}

// LastRun returns the most recent successful run for a pair, or
// paper.ErrNotFound.
func (s *Store) LastRun(ctx context.Context, venueName string, year int) (paper.Run, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+runColumns+` FROM ingest_runs
		WHERE venue = ? AND year = ? AND status = ?
		ORDER BY finished_at DESC LIMIT 1`,
		venueName, year, string(paper.RunStatusSucceeded))
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return paper.Run{}, paper.ErrNotFound
	}
	return run, err
}

// ListRuns returns the newest runs first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]paper.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, "SELECT "+runColumns+
		" FROM ingest_runs ORDER BY finished_at DESC, id DESC LIMIT ?", limit)
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

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping sqlite: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close sqlite: %w", err)
	}
	return nil
}

const (
	paperColumns = "p.id, p.title, p.authors, p.venue, p.year, p.paper_url, p.abstract, p.last_updated"
	runColumns   = "id, venue, year, status, papers, error_text, started_at, finished_at"
)

func filterClause(filter paper.Filter) (from, where string, args []any) {
	from = "FROM papers p"
	var conds []string
	if expr := matchExpr(filter.Query); expr != "" {
		from += " JOIN papers_search ON papers_search.rowid = p.id"
		conds = append(conds, "papers_search MATCH ?")
		args = append(args, expr)
	}
	if v := strings.TrimSpace(filter.Venue); v != "" {
		conds = append(conds, "p.venue = ? COLLATE NOCASE")
		args = append(args, v)
	}
	if filter.Year > 0 {
		conds = append(conds, "p.year = ?")
		args = append(args, filter.Year)
	}
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}
	return from, where, args
}

// matchExpr quotes every whitespace-separated term so FTS5 operators and
// punctuation in user input are matched literally. Terms are ANDed; terms
// with no letters or digits would tokenize to nothing and are dropped.
func matchExpr(query string) string {
	terms := strings.Fields(query)
	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		if strings.IndexFunc(t, isWordRune) < 0 {
			continue
		}
		quoted = append(quoted, `"`+strings.ReplaceAll(t, `"`, `""`)+`"`)
	}
	return strings.Join(quoted, " ")
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPaper(row scanner) (paper.Paper, error) {
	var (
		p       paper.Paper
		link    sql.NullString
		updated string
	)
	if err := row.Scan(&p.ID, &p.Title, &p.Authors, &p.Venue, &p.Year, &link, &p.Abstract, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return paper.Paper{}, err
		}
		return paper.Paper{}, fmt.Errorf("scan paper: %w", err)
	}
	p.URL = link.String
	p.LastUpdated = parseTime(updated)
	return p, nil
}

func scanRun(row scanner) (paper.Run, error) {
	var (
		run               paper.Run
		status            string
		started, finished string
	)
	if err := row.Scan(&run.ID, &run.Venue, &run.Year, &status, &run.Papers, &run.ErrorText, &started, &finished); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return paper.Run{}, err
		}
		return paper.Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.Status = paper.RunStatus(status)
	run.StartedAt = parseTime(started)
	run.FinishedAt = parseTime(finished)
	return run, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
