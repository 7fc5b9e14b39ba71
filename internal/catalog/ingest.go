package catalog

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/bingio/internal/ai"
	"github.com/xxxsen/bingio/internal/model"
	"github.com/xxxsen/bingio/internal/vectorindex"
)

const defaultBatchSize = 50

type Report struct {
	Total    int
	Upserted int
	Deleted  int
	Skipped  bool
}

// Ingester embeds catalog entries and writes them to the vector index. It
// remembers the last ingested content per file so unchanged files are skipped.
type Ingester struct {
	embedder  ai.IEmbedder
	index     vectorindex.Index
	batchSize int

	mu    sync.Mutex
	files map[string]fileState
}

type fileState struct {
	hash string
	ids  map[string]struct{}
}

func NewIngester(embedder ai.IEmbedder, index vectorindex.Index, batchSize int) *Ingester {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Ingester{
		embedder:  embedder,
		index:     index,
		batchSize: batchSize,
		files:     make(map[string]fileState),
	}
}

// Upsert embeds entries with the document task type and stores them in batches.
func (i *Ingester) Upsert(ctx context.Context, entries []model.CatalogEntry) (int, error) {
	done := 0
	batch := make([]model.CatalogEntry, 0, i.batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := i.index.Upsert(ctx, batch); err != nil {
			return fmt.Errorf("upsert catalog batch: %w", err)
		}
		done += len(batch)
		batch = batch[:0]
		return nil
	}
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		vec, err := i.embedder.Embed(ctx, e.Text, ai.TaskRetrievalDocument)
		if err != nil {
			return done, fmt.Errorf("embed catalog entry %s: %w", e.ID, err)
		}
		e.Vector = vec
		batch = append(batch, e)
		if len(batch) >= i.batchSize {
			if err := flush(); err != nil {
				return done, err
			}
		}
	}
	if err := flush(); err != nil {
		return done, err
	}
	return done, nil
}

// IngestFile loads a CSV catalog. When force is false a file whose content
// did not change since the last call is skipped. Entries dropped from the
// file are deleted from the index.
func (i *Ingester) IngestFile(ctx context.Context, path string, force bool) (*Report, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	sum := sha256.Sum256(raw)
	hash := hex.EncodeToString(sum[:])

	i.mu.Lock()
	prev, known := i.files[path]
	i.mu.Unlock()
	if known && !force && prev.hash == hash {
		return &Report{Skipped: true}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	entries, err := Parse(f, filepath.Base(path))
	if err != nil {
		return nil, err
	}
	upserted, err := i.Upsert(ctx, entries)
	if err != nil {
		return &Report{Total: len(entries), Upserted: upserted}, err
	}
	ids := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		ids[e.ID] = struct{}{}
	}
	stale := make([]string, 0)
	for id := range prev.ids {
		if _, ok := ids[id]; !ok {
			stale = append(stale, id)
		}
	}
	if len(stale) > 0 {
		if err := i.index.Delete(ctx, stale); err != nil {
			return nil, fmt.Errorf("delete stale catalog entries: %w", err)
		}
	}
	i.mu.Lock()
	i.files[path] = fileState{hash: hash, ids: ids}
	i.mu.Unlock()
	logutil.GetLogger(ctx).Info("catalog ingested",
		zap.String("path", path),
		zap.Int("total", len(entries)),
		zap.Int("deleted", len(stale)),
	)
	return &Report{Total: len(entries), Upserted: upserted, Deleted: len(stale)}, nil
}
