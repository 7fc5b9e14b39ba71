package vectorindex

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/bingio/internal/model"
)

func entry(id string, vec ...float32) model.CatalogEntry {
	return model.CatalogEntry{ID: id, Vector: vec, Text: id + " text", Metadata: model.CatalogMetadata{Title: id}}
}

func TestMemoryQueryOrdersByScore(t *testing.T) {
	idx := NewMemory()
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, []model.CatalogEntry{
		entry("far", 0, 1),
		entry("near", 1, 0),
		entry("mid", 1, 1),
	}))
	res, err := idx.Query(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, res, 2)
	require.Equal(t, "near", res[0].Entry.ID)
	require.InDelta(t, 1.0, res[0].Score, 1e-6)
	require.Equal(t, "mid", res[1].Entry.ID)
	require.Nil(t, res[0].Entry.Vector)
	require.Equal(t, "near", res[0].Entry.Metadata.Title)
}

func TestMemoryEqualScoresKeepInsertionOrder(t *testing.T) {
	idx := NewMemory()
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, []model.CatalogEntry{
		entry("a", 1, 0),
		entry("b", 2, 0),
		entry("c", 3, 0),
	}))
	res, err := idx.Query(ctx, []float32{1, 0}, 3)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, []string{res[0].Entry.ID, res[1].Entry.ID, res[2].Entry.ID})
}

func TestMemoryUpsertReplacesAndDelete(t *testing.T) {
	idx := NewMemory()
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, []model.CatalogEntry{entry("a", 1, 0), entry("b", 0, 1)}))
	require.NoError(t, idx.Upsert(ctx, []model.CatalogEntry{entry("a", 0, 1)}))
	res, err := idx.Query(ctx, []float32{0, 1}, 5)
	require.NoError(t, err)
	require.Len(t, res, 2)
	require.Equal(t, "a", res[0].Entry.ID)

	require.NoError(t, idx.Delete(ctx, []string{"a"}))
	res, err = idx.Query(ctx, []float32{0, 1}, 5)
	require.NoError(t, err)
	require.Len(t, res, 1)
	require.Equal(t, "b", res[0].Entry.ID)
}

func TestMemoryQueryRejectsDimensionMismatch(t *testing.T) {
	idx := NewMemory()
	ctx := context.Background()
	require.NoError(t, idx.Upsert(ctx, []model.CatalogEntry{entry("matrix", 1, 0, 0)}))
	_, err := idx.Query(ctx, []float32{1, 0}, 5)
	require.ErrorContains(t, err, "dimension mismatch")
}

func TestRegistry(t *testing.T) {
	idx, err := New("Memory", nil, Deps{})
	require.NoError(t, err)
	require.Equal(t, "memory", idx.Name())
	_, err = New("pgvector", nil, Deps{})
	require.Error(t, err)
	_, err = New("unknown", nil, Deps{})
	require.Error(t, err)
}
