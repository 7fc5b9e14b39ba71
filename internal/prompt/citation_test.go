package prompt

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/bingio/internal/ai"
	"github.com/xxxsen/bingio/internal/model"
)

func TestCitations(t *testing.T) {
	require.Equal(t, []int{2, 1}, Citations("Try Up [SOURCE 2] or Coco [source 1] [SOURCE 2]."))
	require.Empty(t, Citations("I don't know."))
	require.Equal(t, []int{1, 7, 2}, Citations("Up [SOURCE 1, 7] and Coco [SOURCE 2,1]."))
}

func guarded(t *testing.T, sources int, parts ...string) string {
	t.Helper()
	entries := make([]model.CatalogEntry, 0, sources)
	for i := 0; i < sources; i++ {
		entries = append(entries, model.CatalogEntry{ID: "e"})
	}
	text, err := ai.Collect(GuardCitations(ai.NewStaticStream(parts...), groundedContext(entries...)))
	require.NoError(t, err)
	return text
}

func TestGuardKeepsInRangeCitations(t *testing.T) {
	require.Equal(t, "Watch Up [SOURCE 1] and Coco [SOURCE 2].", guarded(t, 2, "Watch Up [SOURCE 1] and Coco [SOURCE 2]."))
}

func TestGuardDropsOutOfRangeCitations(t *testing.T) {
	require.Equal(t, "Watch Up  now.", guarded(t, 1, "Watch Up [SOURCE 3] now."))
	require.Equal(t, "x  y", guarded(t, 1, "x [SOURCE 0] y"))
}

func TestGuardAcrossIncrementBoundaries(t *testing.T) {
	out := guarded(t, 1, "Up [SOU", "RCE 1] then [So", "urce 7", "] end")
	require.Equal(t, "Up [SOURCE 1] then  end", out)
	for _, n := range Citations(out) {
		require.Equal(t, 1, n)
	}
}

func TestGuardPassesOtherBrackets(t *testing.T) {
	require.Equal(t, "a [note] b [SOURCE", guarded(t, 1, "a [note] b [SOURCE"))
	require.Equal(t, "[x][SOURCE 1]", guarded(t, 1, "[", "x][SOURCE 1]"))
}

func TestGuardFiltersCitationLists(t *testing.T) {
	require.Equal(t, "Up [SOURCE 1] and Coco.", guarded(t, 2, "Up [SOURCE 1, 7] and Coco", "[SOURCE 8,9]."))
	require.Equal(t, "Both [SOURCE 1, 2].", guarded(t, 2, "Both [SOURCE 1,", " 2]."))
	require.Equal(t, "[SOURCE 1,] x", guarded(t, 2, "[SOURCE 1,] x"))
}
