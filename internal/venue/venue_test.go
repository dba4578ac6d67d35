package venue

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGroupOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		venue string
		want  Group
	}{
		{"ACL", GroupACL},
		{"(Star)*SEM", GroupACL},
		{"NEURIPS", GroupML},
		{"icml", GroupML},
		{"arXiv", GroupArXiv},
	}
	for _, tt := range tests {
		got, err := GroupOf(tt.venue)
		require.NoError(t, err, tt.venue)
		require.Equal(t, tt.want, got, tt.venue)
	}

	_, err := GroupOf("KDD")
	require.True(t, errors.Is(err, ErrUnknownVenue))
}

func TestSlug(t *testing.T) {
	t.Parallel()

	require.Equal(t, "sem", Slug("*SEM"))
	require.Equal(t, "starsem", Slug("(Star)*SEM"))
	require.Equal(t, "conll", Slug("CoNLL"))
	require.Equal(t, "acl", Slug("ACL"))
}

func TestCanonical(t *testing.T) {
	t.Parallel()

	got, ok := Canonical("neurips")
	require.True(t, ok)
	require.Equal(t, "NEURIPS", got)

	_, ok = Canonical("nope")
	require.False(t, ok)
}

func TestPairs(t *testing.T) {
	t.Parallel()

	pairs := Pairs([]string{"ACL", "ICML"}, 2022, 2023)
	require.Equal(t, []Pair{
		{"ACL", 2022}, {"ACL", 2023}, {"ICML", 2022}, {"ICML", 2023},
	}, pairs)
	require.Nil(t, Pairs([]string{"ACL"}, 2024, 2023))
	require.Len(t, All(), len(ACL)+len(ML)+1)
}
