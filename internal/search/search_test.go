package search

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/cerebro/internal/paper"
	"github.com/JakeFAU/cerebro/internal/storage/memory"
)

func seededStore(t *testing.T, n int) *memory.PaperStore {
	t.Helper()
	store := memory.NewPaperStore()
	papers := make([]paper.Paper, 0, n)
	for i := 0; i < n; i++ {
		venueName := "ACL"
		if i%2 == 1 {
			venueName = "ICML"
		}
		papers = append(papers, paper.Paper{
			Title: fmt.Sprintf("Transformer study %02d", i),
			Venue: venueName,
			Year:  2020 + i%3,
		})
	}
	_, err := store.UpsertPapers(context.Background(), papers)
	require.NoError(t, err)
	return store
}

func TestServiceSearchPaginates(t *testing.T) {
	t.Parallel()

	svc := NewService(seededStore(t, 23), 10)
	res, err := svc.Search(context.Background(), Request{Query: "transformer", Page: 3})
	require.NoError(t, err)
	require.Equal(t, 23, res.Page.Total)
	require.Equal(t, 3, res.Page.Number)
	require.Len(t, res.Papers, 3)
}

func TestServiceSearchAppliesVenueFilter(t *testing.T) {
	t.Parallel()

	svc := NewService(seededStore(t, 10), 10)
	res, err := svc.Search(context.Background(), Request{Query: "study", Venue: "icml"})
	require.NoError(t, err)
	require.Equal(t, 5, res.Page.Total)
	for _, p := range res.Papers {
		require.Equal(t, "ICML", p.Venue)
	}
}

func TestServiceSearchBlankQueryIsEmpty(t *testing.T) {
	t.Parallel()

	store := &countingStore{}
	svc := NewService(store, 10)
	for _, q := range []string{"", "   ", "!!! --"} {
		res, err := svc.Search(context.Background(), Request{Query: q, Page: 4})
		require.NoError(t, err)
		require.Empty(t, res.Papers)
		require.NotNil(t, res.Papers)
		require.Equal(t, 1, res.Page.Number)
	}
	require.Zero(t, store.calls)
}

func TestServiceSearchWrapsStoreErrors(t *testing.T) {
	t.Parallel()

	svc := NewService(&countingStore{err: errors.New("database is locked")}, 10)
	_, err := svc.Search(context.Background(), Request{Query: "bert"})
	require.ErrorContains(t, err, "count matches: database is locked")
}

func TestServiceDefaultsPageSize(t *testing.T) {
	t.Parallel()

	require.Equal(t, 10, NewService(&countingStore{}, 0).PageSize())
}

type countingStore struct {
	calls int
	err   error
}

func (s *countingStore) Count(context.Context, paper.Filter) (int, error) {
	s.calls++
	return 0, s.err
}

func (s *countingStore) Search(context.Context, paper.Filter, int, int) ([]paper.Paper, error) {
	s.calls++
	return nil, s.err
}
