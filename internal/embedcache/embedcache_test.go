package embedcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/bingio/internal/ai"
	"github.com/xxxsen/bingio/internal/model"
)

type countingEmbedder struct {
	calls int
	err   error
}

func (c *countingEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return []float32{float32(len(text)), 1}, nil
}

func (c *countingEmbedder) ModelName() string { return "m" }

type memStore struct {
	items map[string][]float32
	saves int
}

func (m *memStore) Get(ctx context.Context, modelName, taskType, contentHash string) ([]float32, bool, error) {
	v, ok := m.items[modelName+taskType+contentHash]
	return v, ok, nil
}

func (m *memStore) Save(ctx context.Context, item *model.EmbeddingCache) error {
	m.saves++
	m.items[item.ModelName+item.TaskType+item.ContentHash] = item.Embedding
	return nil
}

func TestLruCacheHit(t *testing.T) {
	inner := &countingEmbedder{}
	e := WrapLruCacheToEmbedder(inner, 16, time.Minute)
	ctx := context.Background()
	v1, err := e.Embed(ctx, "cozy night", ai.TaskRetrievalQuery)
	require.NoError(t, err)
	v1[0] = 99
	v2, err := e.Embed(ctx, "cozy night", ai.TaskRetrievalQuery)
	require.NoError(t, err)
	require.Equal(t, float32(10), v2[0])
	require.Equal(t, 1, inner.calls)

	_, err = e.Embed(ctx, "cozy night", ai.TaskRetrievalDocument)
	require.NoError(t, err)
	require.Equal(t, 2, inner.calls)
	require.Equal(t, "m", e.ModelName())
}

func TestLruDisabled(t *testing.T) {
	inner := &countingEmbedder{}
	require.Equal(t, ai.IEmbedder(inner), WrapLruCacheToEmbedder(inner, 0, time.Minute))
}

func TestLruDoesNotCacheErrors(t *testing.T) {
	inner := &countingEmbedder{err: errors.New("down")}
	e := WrapLruCacheToEmbedder(inner, 16, time.Minute)
	_, err := e.Embed(context.Background(), "x", ai.TaskRetrievalQuery)
	require.Error(t, err)
	_, err = e.Embed(context.Background(), "x", ai.TaskRetrievalQuery)
	require.Error(t, err)
	require.Equal(t, 2, inner.calls)
}

func TestDBCacheHit(t *testing.T) {
	inner := &countingEmbedder{}
	store := &memStore{items: map[string][]float32{}}
	e := WrapDBCacheToEmbedder(inner, store)
	ctx := context.Background()
	_, err := e.Embed(ctx, "feel good", ai.TaskRetrievalDocument)
	require.NoError(t, err)
	v, err := e.Embed(ctx, "feel good", ai.TaskRetrievalDocument)
	require.NoError(t, err)
	require.Equal(t, []float32{9, 1}, v)
	require.Equal(t, 1, inner.calls)
	require.Equal(t, 1, store.saves)
}

func TestHitObserver(t *testing.T) {
	var hits, misses int
	obs := WithHitObserver(func(layer string, hit bool) {
		require.Equal(t, LayerLRU, layer)
		if hit {
			hits++
			return
		}
		misses++
	})
	e := WrapLruCacheToEmbedder(&countingEmbedder{}, 4, time.Minute, obs)
	for i := 0; i < 3; i++ {
		_, err := e.Embed(context.Background(), "q", ai.TaskRetrievalQuery)
		require.NoError(t, err)
	}
	require.Equal(t, 2, hits)
	require.Equal(t, 1, misses)
}
