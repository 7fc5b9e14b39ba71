package vectorindex

import (
	"context"
	"fmt"

	"github.com/xxxsen/bingio/internal/model"
	"github.com/xxxsen/bingio/internal/repo"
)

type pgvectorIndex struct {
	repo *repo.CatalogRepo
}

func NewPGVector(r *repo.CatalogRepo) Index {
	return &pgvectorIndex{repo: r}
}

func (p *pgvectorIndex) Name() string {
	return "pgvector"
}

func (p *pgvectorIndex) Query(ctx context.Context, vector []float32, topK int) ([]model.ScoredEntry, error) {
	res, err := p.repo.Nearest(ctx, vector, topK)
	if err != nil {
		return nil, fmt.Errorf("pgvector query: %w", err)
	}
	return res, nil
}

func (p *pgvectorIndex) Upsert(ctx context.Context, entries []model.CatalogEntry) error {
	return p.repo.Upsert(ctx, entries)
}

func (p *pgvectorIndex) Delete(ctx context.Context, ids []string) error {
	_, err := p.repo.DeleteByIDs(ctx, ids)
	return err
}

func init() {
	Register("pgvector", func(args interface{}, deps Deps) (Index, error) {
		if deps.DB == nil {
			return nil, fmt.Errorf("pgvector index requires a database")
		}
		return NewPGVector(repo.NewCatalogRepo(deps.DB)), nil
	})
}
