package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/bingio/internal/ai"
	"github.com/xxxsen/bingio/internal/model"
	appErr "github.com/xxxsen/bingio/internal/pkg/errors"
	"github.com/xxxsen/bingio/internal/vectorindex"
)

const (
	StageEmbed = "embed"
	StageIndex = "index"
)

// TransportError reports a failed call to the embedder or the vector index.
type TransportError struct {
	Stage string
	Err   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("retrieval %s failed: %v", e.Stage, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

type Match struct {
	Entry model.CatalogEntry
	Score float32
}

// Source is an admitted match numbered from 1 in context order.
type Source struct {
	Index int
	Match
}

type GroundedContext struct {
	Query   string
	Sources []Source
}

func (g *GroundedContext) Empty() bool {
	return g == nil || len(g.Sources) == 0
}

// Has reports whether n is a referenceable source number.
func (g *GroundedContext) Has(n int) bool {
	return g != nil && n >= 1 && n <= len(g.Sources)
}

type Retriever struct {
	embedder ai.IEmbedder
	index    vectorindex.Index
}

func New(embedder ai.IEmbedder, index vectorindex.Index) *Retriever {
	return &Retriever{embedder: embedder, index: index}
}

// Retrieve embeds the query once, asks the index for topK neighbours and
// admits those scoring at least threshold. An empty context is not an error.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int, threshold float64) (*GroundedContext, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", appErr.ErrInvalid)
	}
	if topK < 1 {
		return nil, fmt.Errorf("%w: topK must be at least 1", appErr.ErrInvalid)
	}
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("%w: threshold must be within [0, 1]", appErr.ErrInvalid)
	}
	vec, err := r.embedder.Embed(ctx, query, ai.TaskRetrievalQuery)
	if err != nil {
		return nil, &TransportError{Stage: StageEmbed, Err: err}
	}
	if len(vec) == 0 {
		return nil, &TransportError{Stage: StageEmbed, Err: fmt.Errorf("empty embedding")}
	}
	hits, err := r.index.Query(ctx, vec, topK)
	if err != nil {
		return nil, &TransportError{Stage: StageIndex, Err: err}
	}
	admitted := make([]Match, 0, len(hits))
	for _, h := range hits {
		if float64(h.Score) >= threshold {
			admitted = append(admitted, Match{Entry: h.Entry, Score: h.Score})
		}
	}
	sort.SliceStable(admitted, func(i, j int) bool {
		return admitted[i].Score > admitted[j].Score
	})
	if len(admitted) > topK {
		admitted = admitted[:topK]
	}
	gctx := &GroundedContext{Query: query, Sources: make([]Source, 0, len(admitted))}
	for i, m := range admitted {
		gctx.Sources = append(gctx.Sources, Source{Index: i + 1, Match: m})
	}
	logutil.GetLogger(ctx).Debug("retrieval done",
		zap.Int("candidates", len(hits)),
		zap.Int("admitted", len(gctx.Sources)),
		zap.Float64("threshold", threshold),
	)
	return gctx, nil
}
