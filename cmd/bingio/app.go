package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/bingio/internal/ai"
	"github.com/xxxsen/bingio/internal/catalog"
	"github.com/xxxsen/bingio/internal/config"
	"github.com/xxxsen/bingio/internal/db"
	"github.com/xxxsen/bingio/internal/embedcache"
	"github.com/xxxsen/bingio/internal/moderation"
	"github.com/xxxsen/bingio/internal/prompt"
	"github.com/xxxsen/bingio/internal/repo"
	"github.com/xxxsen/bingio/internal/retrieval"
	"github.com/xxxsen/bingio/internal/service"
	"github.com/xxxsen/bingio/internal/vectorindex"
)

type app struct {
	db       *sql.DB
	index    vectorindex.Index
	ingester *catalog.Ingester
	chat     *service.ChatService
	metrics  *service.Metrics
}

func (a *app) Close() {
	if a.db != nil {
		_ = a.db.Close()
	}
}

func buildApp(ctx context.Context, cfg *config.Config, reg prometheus.Registerer) (*app, error) {
	a := &app{metrics: service.NewMetrics(reg)}
	if cfg.Database.Enabled() {
		conn, err := db.Open(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("open db: %w", err)
		}
		if err := db.ApplyMigrations(conn); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
		a.db = conn
	}
	embedder, err := buildEmbedder(cfg, a)
	if err != nil {
		a.Close()
		return nil, err
	}
	generator, err := buildGenerator(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	index, err := vectorindex.New(cfg.VectorIndex.Type, cfg.VectorIndex.Data, vectorindex.Deps{DB: a.db})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init vector index: %w", err)
	}
	a.index = index
	classifier, err := moderation.NewClassifier(cfg.Moderation.Type, cfg.Moderation.Data)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init moderation: %w", err)
	}
	gate := moderation.NewGate(classifier, moderation.WithResponses(cfg.Moderation.Responses))
	promptOpts := []prompt.Option{prompt.WithSnippetLength(cfg.Retrieval.SnippetLength)}
	if cfg.Retrieval.Followup != "" {
		promptOpts = append(promptOpts, prompt.WithFollowup(cfg.Retrieval.Followup))
	}
	builder := prompt.NewBuilder(promptOpts...)
	a.ingester = catalog.NewIngester(embedder, index, cfg.Catalog.BatchSize)
	a.chat = service.NewChatService(gate, retrieval.New(embedder, index), builder, generator, service.ChatOptions{
		TopK:      cfg.Retrieval.TopK,
		Threshold: *cfg.Retrieval.Threshold,
		Decoding: ai.DecodingConfig{
			Temperature: *cfg.AI.Temperature,
			MaxTokens:   cfg.AI.MaxTokens,
		},
		Timeout: time.Duration(cfg.AI.TimeoutMs) * time.Millisecond,
	}, a.metrics)
	logutil.GetLogger(ctx).Info("pipeline ready",
		zap.String("embedder", embedder.ModelName()),
		zap.String("vector_index", index.Name()),
		zap.String("moderation", classifier.Name()),
		zap.Int("top_k", cfg.Retrieval.TopK),
		zap.Float64("threshold", *cfg.Retrieval.Threshold),
	)
	return a, nil
}

func buildEmbedder(cfg *config.Config, a *app) (ai.IEmbedder, error) {
	if len(cfg.AI.Embedders) == 0 {
		return nil, fmt.Errorf("ai.embedders is required")
	}
	ref := cfg.AI.Embedders[0]
	p := cfg.AI.Providers[ref.Provider]
	provider, err := ai.NewEmbedProvider(p.Type, p.Data)
	if err != nil {
		return nil, fmt.Errorf("init embed provider %s: %w", ref.Provider, err)
	}
	embedder := ai.NewEmbedder(provider, ref.Model)
	if a.db != nil && cfg.AI.EmbedCache.DB {
		embedder = embedcache.WrapDBCacheToEmbedder(embedder, repo.NewEmbeddingCacheRepo(a.db),
			embedcache.WithHitObserver(a.metrics.ObserveEmbedCache))
	}
	if cfg.AI.EmbedCache.LRUSize > 0 {
		embedder = embedcache.WrapLruCacheToEmbedder(embedder, cfg.AI.EmbedCache.LRUSize,
			time.Duration(cfg.AI.EmbedCache.LRUTTLSec)*time.Second,
			embedcache.WithHitObserver(a.metrics.ObserveEmbedCache))
	}
	return embedder, nil
}

func buildGenerator(cfg *config.Config) (ai.IGenerator, error) {
	entries := make([]ai.GeneratorEntry, 0, len(cfg.AI.Generators))
	for _, ref := range cfg.AI.Generators {
		p := cfg.AI.Providers[ref.Provider]
		provider, err := ai.NewProvider(p.Type, p.Data)
		if err != nil {
			return nil, fmt.Errorf("init ai provider %s: %w", ref.Provider, err)
		}
		entries = append(entries, ai.GeneratorEntry{Name: ref.Provider, Generator: ai.NewGenerator(provider, ref.Model)})
	}
	generator := ai.NewGroupGenerator(entries)
	if generator == nil {
		return nil, fmt.Errorf("ai.generators is required")
	}
	return generator, nil
}
