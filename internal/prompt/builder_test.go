package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/bingio/internal/model"
	"github.com/xxxsen/bingio/internal/retrieval"
)

func groundedContext(entries ...model.CatalogEntry) *retrieval.GroundedContext {
	gctx := &retrieval.GroundedContext{Query: "q"}
	for i, e := range entries {
		gctx.Sources = append(gctx.Sources, retrieval.Source{Index: i + 1, Match: retrieval.Match{Entry: e, Score: 0.9}})
	}
	return gctx
}

func TestBuildEmptyContextShortCircuits(t *testing.T) {
	res := NewBuilder().Build("anything", &retrieval.GroundedContext{})
	require.True(t, res.ShortCircuit)
	require.Equal(t, "I don't know.", res.Text)

	res = NewBuilder().Build("anything", nil)
	require.True(t, res.ShortCircuit)
}

func TestBuildRendersSources(t *testing.T) {
	gctx := groundedContext(
		model.CatalogEntry{ID: "paddington", Text: "A bear\n\nin London"},
		model.CatalogEntry{Metadata: model.CatalogMetadata{Source: "films.csv", Synopsis: "Space"}},
		model.CatalogEntry{Text: "No id"},
	)
	res := NewBuilder().Build("  something cozy ", gctx)
	require.False(t, res.ShortCircuit)
	p := res.Prompt
	require.Contains(t, p.System, "ONLY the information from the provided SOURCES")
	require.Contains(t, p.System, `reply exactly: "I don't know."`)
	require.Contains(t, p.System, "SOURCE 1: [id=paddington]\nA bear in London\n")
	require.Contains(t, p.System, "\n---\nSOURCE 2: [id=films.csv]\nSpace\n")
	require.Contains(t, p.System, "SOURCE 3: [id=doc-3]\nNo id\n")
	require.NotContains(t, p.System, "SOURCE 4")
	require.True(t, strings.HasPrefix(p.User, "User question: something cozy\n\n"))
	require.Contains(t, p.User, "[SOURCE 1]")
	require.Equal(t, DefaultFollowup, p.Followup)
}

func TestBuildTruncatesSnippetByRunes(t *testing.T) {
	gctx := groundedContext(model.CatalogEntry{ID: "x", Text: strings.Repeat("é", 20)})
	res := NewBuilder(WithSnippetLength(5), WithFollowup("")).Build("q", gctx)
	require.Contains(t, res.Prompt.System, "[id=x]\nééééé\n")
	require.Empty(t, res.Prompt.Followup)
}
