package vectorindex

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/xxxsen/bingio/internal/model"
)

type memoryIndex struct {
	mu      sync.RWMutex
	entries []model.CatalogEntry
	pos     map[string]int
}

func NewMemory() Index {
	return &memoryIndex{pos: make(map[string]int)}
}

func (m *memoryIndex) Name() string {
	return "memory"
}

func (m *memoryIndex) Query(ctx context.Context, vector []float32, topK int) ([]model.ScoredEntry, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive")
	}
	m.mu.RLock()
	scored := make([]model.ScoredEntry, 0, len(m.entries))
	for _, e := range m.entries {
		if len(e.Vector) != 0 && len(e.Vector) != len(vector) {
			m.mu.RUnlock()
			return nil, fmt.Errorf("vector dimension mismatch: query has %d, entry %s has %d", len(vector), e.ID, len(e.Vector))
		}
		scored = append(scored, model.ScoredEntry{Entry: e, Score: cosine(vector, e.Vector)})
	}
	m.mu.RUnlock()
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})
	if len(scored) > topK {
		scored = scored[:topK]
	}
	for i := range scored {
		scored[i].Entry.Vector = nil
	}
	return scored, nil
}

func (m *memoryIndex) Upsert(ctx context.Context, entries []model.CatalogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		if e.ID == "" {
			return fmt.Errorf("catalog entry id is required")
		}
		if idx, ok := m.pos[e.ID]; ok {
			m.entries[idx] = e
			continue
		}
		m.pos[e.ID] = len(m.entries)
		m.entries = append(m.entries, e)
	}
	return nil
}

func (m *memoryIndex) Delete(ctx context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	kept := m.entries[:0]
	for _, e := range m.entries {
		if _, ok := drop[e.ID]; ok {
			continue
		}
		kept = append(kept, e)
	}
	m.entries = kept
	m.pos = make(map[string]int, len(kept))
	for i, e := range kept {
		m.pos[e.ID] = i
	}
	return nil
}

func cosine(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

func init() {
	Register("memory", func(args interface{}, deps Deps) (Index, error) {
		return NewMemory(), nil
	})
}
