package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/cerebro/internal/paper"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), Config{Path: filepath.Join(t.TempDir(), "papers.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seed(t *testing.T, s *Store) {
	t.Helper()
	_, err := s.UpsertPapers(context.Background(), []paper.Paper{
		{Title: "Neural Machine Translation by Jointly Learning", Authors: "Bahdanau, Cho, Bengio", Venue: "ICLR", Year: 2015, Abstract: "attention for translation"},
		{Title: "Attention Is All You Need", Authors: "Vaswani", Venue: "NEURIPS", Year: 2017, Abstract: "transformer attention"},
		{Title: "BERT", Authors: "Devlin", Venue: "NAACL", Year: 2019, Abstract: "bidirectional transformer pretraining", URL: "https://aclanthology.org/N19-1423.pdf"},
		{Title: "Findings on Attention", Authors: "Doe", Venue: "Findings", Year: 2021, Abstract: "attention probes"},
	})
	require.NoError(t, err)
}

func TestUpsertUpdatesInsteadOfDuplicating(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()
	s.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }

	n, err := s.UpsertPapers(ctx, []paper.Paper{{Title: "RoBERTa", Venue: "ACL", Year: 2020, Abstract: "robustly optimized"}})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	first, err := s.Search(ctx, paper.Filter{Query: "robustly"}, 0, 10)
	require.NoError(t, err)
	require.Len(t, first, 1)

	s.now = func() time.Time { return time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC) }
	_, err = s.UpsertPapers(ctx, []paper.Paper{{Title: "RoBERTa", Venue: "ACL", Year: 2020, Abstract: "pretraining revisited", Authors: "Liu"}})
	require.NoError(t, err)

	total, err := s.Count(ctx, paper.Filter{})
	require.NoError(t, err)
	require.Equal(t, 1, total)

	got, err := s.GetPaper(ctx, first[0].ID)
	require.NoError(t, err)
	require.Equal(t, "pretraining revisited", got.Abstract)
	require.Equal(t, "Liu", got.Authors)
	require.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), got.LastUpdated)

	// The index follows the update.
	stale, err := s.Count(ctx, paper.Filter{Query: "robustly"})
	require.NoError(t, err)
	require.Zero(t, stale)
	fresh, err := s.Count(ctx, paper.Filter{Query: "revisited"})
	require.NoError(t, err)
	require.Equal(t, 1, fresh)
}

func TestUpsertSkipsBlankTitles(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	n, err := s.UpsertPapers(context.Background(), []paper.Paper{{Title: "  ", Venue: "ACL", Year: 2020}})
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestSearchVenueFilterOnlyReturnsThatVenue(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	seed(t, s)
	ctx := context.Background()

	got, err := s.Search(ctx, paper.Filter{Query: "attention", Venue: "neurips"}, 0, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "NEURIPS", got[0].Venue)

	// Exact venue match: "Findings" must not match ACL-family substrings.
	got, err = s.Search(ctx, paper.Filter{Query: "attention", Venue: "ACL"}, 0, 10)
	require.NoError(t, err)
	require.Empty(t, got)

	all, err := s.Search(ctx, paper.Filter{Query: "attention"}, 0, 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
}

func TestSearchYearFilterAndPaging(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	seed(t, s)
	ctx := context.Background()

	n, err := s.Count(ctx, paper.Filter{Query: "transformer", Year: 2019})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	page1, err := s.Search(ctx, paper.Filter{Query: "attention"}, 0, 2)
	require.NoError(t, err)
	require.Len(t, page1, 2)
	page2, err := s.Search(ctx, paper.Filter{Query: "attention"}, 2, 2)
	require.NoError(t, err)
	require.Len(t, page2, 1)
	require.NotEqual(t, page1[0].ID, page2[0].ID)

	browse, err := s.Search(ctx, paper.Filter{}, 0, 10)
	require.NoError(t, err)
	require.Len(t, browse, 4)
	require.Equal(t, 2021, browse[0].Year)
}

func TestSearchMatchesAuthorsAndTolerantOfSyntax(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	seed(t, s)
	ctx := context.Background()

	got, err := s.Search(ctx, paper.Filter{Query: "devlin"}, 0, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "https://aclanthology.org/N19-1423.pdf", got[0].URL)

	for _, q := range []string{`"unbalanced`, `attention AND (`, `NEAR(x y`, `title:*`} {
		_, err := s.Count(ctx, paper.Filter{Query: q})
		require.NoError(t, err, q)
	}
}

func TestGetPaperNotFound(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	_, err := s.GetPaper(context.Background(), 999)
	require.ErrorIs(t, err, paper.ErrNotFound)
}

func TestStats(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	empty, err := s.Stats(context.Background())
	require.NoError(t, err)
	require.Zero(t, empty.TotalPapers)
	require.NotNil(t, empty.Venues)

	seed(t, s)
	stats, err := s.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, 4, stats.TotalPapers)
	require.Len(t, stats.Venues, 4)
}

func TestRunLedger(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	_, err := s.LastRun(ctx, "ACL", 2023)
	require.ErrorIs(t, err, paper.ErrNotFound)

	runs := []paper.Run{
		{ID: "r1", Venue: "ACL", Year: 2023, Status: paper.RunStatusSucceeded, Papers: 10, StartedAt: base, FinishedAt: base.Add(time.Second)},
		{ID: "r2", Venue: "ACL", Year: 2023, Status: paper.RunStatusFailed, ErrorText: "boom", StartedAt: base.Add(time.Hour), FinishedAt: base.Add(time.Hour + 500*time.Millisecond)},
		{ID: "r3", Venue: "ICML", Year: 2023, Status: paper.RunStatusSucceeded, Papers: 3, StartedAt: base.Add(2 * time.Hour), FinishedAt: base.Add(2 * time.Hour)},
	}
	for _, r := range runs {
		require.NoError(t, s.RecordRun(ctx, r))
	}

	last, err := s.LastRun(ctx, "ACL", 2023)
	require.NoError(t, err)
	require.Equal(t, "r1", last.ID)
	require.Equal(t, 10, last.Papers)
	require.Equal(t, base.Add(time.Second), last.FinishedAt)

	listed, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	require.Equal(t, "r3", listed[0].ID)
	require.Equal(t, "r2", listed[1].ID)
	require.Equal(t, "boom", listed[1].ErrorText)
	require.Equal(t, paper.RunStatusFailed, listed[1].Status)
}

func TestReopenKeepsIndexAndFlag(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "papers.db")
	ctx := context.Background()

	s, err := Open(ctx, Config{Path: path, BusyTimeoutMs: 1000})
	require.NoError(t, err)
	seed(t, s)
	require.NoError(t, s.Close())

	s, err = Open(ctx, Config{Path: path})
	require.NoError(t, err)
	defer s.Close()

	var flag string
	require.NoError(t, s.db.QueryRowContext(ctx,
		`SELECT value FROM store_meta WHERE key = ?`, indexInitializedKey).Scan(&flag))
	require.NotEmpty(t, flag)

	n, err := s.Count(ctx, paper.Filter{Query: "attention"})
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.NoError(t, s.Ping(ctx))
}

func TestRebuildIndexRestoresMissingEntries(t *testing.T) {
	t.Parallel()

	s := openTestStore(t)
	seed(t, s)
	ctx := context.Background()

	_, err := s.db.ExecContext(ctx, `INSERT INTO papers_search(papers_search) VALUES('delete-all')`)
	require.NoError(t, err)
	n, err := s.Count(ctx, paper.Filter{Query: "attention"})
	require.NoError(t, err)
	require.Zero(t, n)

	require.NoError(t, s.RebuildIndex(ctx))
	n, err = s.Count(ctx, paper.Filter{Query: "attention"})
	require.NoError(t, err)
	require.Equal(t, 3, n)
}

func TestMatchExpr(t *testing.T) {
	t.Parallel()

	require.Equal(t, `"graph" "neural"`, matchExpr("  graph   neural "))
	require.Equal(t, `"say" """hi"""`, matchExpr(`say "hi"`))
	require.Equal(t, `"attention" "AND"`, matchExpr(`attention AND ( -`))
	require.Empty(t, matchExpr("   "))
}

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), Config{})
	require.Error(t, err)
}
