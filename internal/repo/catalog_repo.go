package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/didi/gendry/builder"
	"github.com/pgvector/pgvector-go"

	"github.com/xxxsen/bingio/internal/model"
	"github.com/xxxsen/bingio/internal/pkg/dbutil"
)

type CatalogRepo struct {
	db *sql.DB
}

func NewCatalogRepo(db *sql.DB) *CatalogRepo {
	return &CatalogRepo{db: db}
}

const upsertCatalogEntry = `
	INSERT INTO catalog_entries (id, title, kind, genre, year, synopsis, source, content, embedding, mtime)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (id) DO UPDATE SET
		title = EXCLUDED.title,
		kind = EXCLUDED.kind,
		genre = EXCLUDED.genre,
		year = EXCLUDED.year,
		synopsis = EXCLUDED.synopsis,
		source = EXCLUDED.source,
		content = EXCLUDED.content,
		embedding = EXCLUDED.embedding,
		mtime = EXCLUDED.mtime
`

func (r *CatalogRepo) Upsert(ctx context.Context, entries []model.CatalogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()
	stmt, err := tx.PrepareContext(ctx, upsertCatalogEntry)
	if err != nil {
		return err
	}
	defer stmt.Close()
	now := time.Now().Unix()
	for _, e := range entries {
		if len(e.Vector) == 0 {
			return fmt.Errorf("catalog entry %s has no vector", e.ID)
		}
		md := e.Metadata
		if _, err := stmt.ExecContext(ctx, e.ID, md.Title, md.Type, md.Genre, md.Year, md.Synopsis, md.Source,
			e.Text, pgvector.NewVector(e.Vector), now); err != nil {
			return fmt.Errorf("upsert catalog entry %s: %w", e.ID, err)
		}
	}
	return tx.Commit()
}

// Nearest returns the topK entries closest to vec by cosine distance.
// Ties keep insertion order.
func (r *CatalogRepo) Nearest(ctx context.Context, vec []float32, topK int) ([]model.ScoredEntry, error) {
	const query = `
		SELECT id, title, kind, genre, year, synopsis, source, content, 1 - (embedding <=> $1) AS score
		FROM catalog_entries
		ORDER BY embedding <=> $1 ASC, seq ASC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, pgvector.NewVector(vec), topK)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := make([]model.ScoredEntry, 0, topK)
	for rows.Next() {
		var item model.ScoredEntry
		md := &item.Entry.Metadata
		var score float64
		if err := rows.Scan(&item.Entry.ID, &md.Title, &md.Type, &md.Genre, &md.Year, &md.Synopsis, &md.Source,
			&item.Entry.Text, &score); err != nil {
			return nil, err
		}
		item.Score = float32(score)
		res = append(res, item)
	}
	return res, rows.Err()
}

func (r *CatalogRepo) Count(ctx context.Context) (int64, error) {
	sqlStr, args, err := builder.BuildSelect("catalog_entries", nil, []string{"count(*)"})
	if err != nil {
		return 0, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	var total int64
	if err := r.db.QueryRowContext(ctx, sqlStr, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (r *CatalogRepo) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	in := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			in = append(in, id)
		}
	}
	where := map[string]interface{}{"id in": in}
	sqlStr, args, err := builder.BuildDelete("catalog_entries", where)
	if err != nil {
		return 0, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	res, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
