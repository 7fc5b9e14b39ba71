package embedcache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/bingio/internal/ai"
)

const (
	LayerLRU = "lru"
	LayerDB  = "db"
)

// HitObserver is told about every cache lookup result.
type HitObserver func(layer string, hit bool)

type Option func(*options)

type options struct {
	observer HitObserver
}

func WithHitObserver(fn HitObserver) Option {
	return func(o *options) {
		o.observer = fn
	}
}

func applyOptions(opts []Option) *options {
	o := &options{observer: func(string, bool) {}}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func WrapLruCacheToEmbedder(e ai.IEmbedder, size int, ttl time.Duration, opts ...Option) ai.IEmbedder {
	if e == nil || size <= 0 || ttl <= 0 {
		return e
	}
	return &lruEmbedder{
		next:  e,
		cache: expirable.NewLRU[string, []float32](size, nil, ttl),
		opts:  applyOptions(opts),
	}
}

type lruEmbedder struct {
	next  ai.IEmbedder
	cache *expirable.LRU[string, []float32]
	opts  *options
}

func (l *lruEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	cacheKey, _, _ := buildCacheKey(l.next.ModelName(), taskType, text)
	if cached, ok := l.cache.Get(cacheKey); ok {
		l.opts.observer(LayerLRU, true)
		logutil.GetLogger(ctx).Debug("embedding cache hit (lru)", zap.String("task_type", taskType))
		return cloneEmbedding(cached), nil
	}
	l.opts.observer(LayerLRU, false)
	res, err := l.next.Embed(ctx, text, taskType)
	if err != nil {
		return nil, err
	}
	l.cache.Add(cacheKey, cloneEmbedding(res))
	return res, nil
}

func (l *lruEmbedder) ModelName() string {
	return l.next.ModelName()
}

func cloneEmbedding(values []float32) []float32 {
	if len(values) == 0 {
		return nil
	}
	clone := make([]float32, len(values))
	copy(clone, values)
	return clone
}
