package repo

import (
	"context"
	"database/sql"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/bingio/internal/config"
	"github.com/xxxsen/bingio/internal/db"
	"github.com/xxxsen/bingio/internal/model"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	host := os.Getenv("TEST_DB_HOST")
	if host == "" {
		t.Skip("TEST_DB_HOST not set, skipping postgres test")
	}
	conn, err := db.Open(config.DatabaseConfig{
		Host:     host,
		Port:     5432,
		User:     "bingio",
		Password: "bingio_pass",
		DBName:   "bingio_test",
		SSLMode:  "disable",
	})
	require.NoError(t, err)
	require.NoError(t, db.ApplyMigrations(conn))
	_, err = conn.Exec("TRUNCATE catalog_entries, embedding_cache")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}

func TestCatalogRepoNearest(t *testing.T) {
	conn := openTestDB(t)
	r := NewCatalogRepo(conn)
	ctx := context.Background()
	require.NoError(t, r.Upsert(ctx, []model.CatalogEntry{
		{ID: "paddington-2014", Vector: []float32{1, 0}, Text: "A bear in London", Metadata: model.CatalogMetadata{Title: "Paddington", Year: "2014"}},
		{ID: "dark-2017", Vector: []float32{0, 1}, Text: "Time travel", Metadata: model.CatalogMetadata{Title: "Dark", Type: "Series"}},
	}))
	total, err := r.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), total)

	res, err := r.Nearest(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	require.Equal(t, "paddington-2014", res[0].Entry.ID)
	require.Equal(t, "Paddington", res[0].Entry.Metadata.Title)
	require.InDelta(t, 1.0, res[0].Score, 1e-5)

	n, err := r.DeleteByIDs(ctx, []string{"dark-2017"})
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}

func TestEmbeddingCacheRepo(t *testing.T) {
	conn := openTestDB(t)
	r := NewEmbeddingCacheRepo(conn)
	ctx := context.Background()
	_, ok, err := r.Get(ctx, "m", "RETRIEVAL_QUERY", "h")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, r.Save(ctx, &model.EmbeddingCache{ModelName: "m", TaskType: "RETRIEVAL_QUERY", ContentHash: "h", Embedding: []float32{0.5, 0.25}, Ctime: 100}))
	v, ok, err := r.Get(ctx, "m", "RETRIEVAL_QUERY", "h")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []float32{0.5, 0.25}, v)

	n, err := r.DeleteBefore(ctx, 200)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)
}
