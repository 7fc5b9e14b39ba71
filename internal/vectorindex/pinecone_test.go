package vectorindex

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/bingio/internal/model"
)

func TestPineconeQuery(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/query", r.URL.Path)
		require.Equal(t, "pk", r.Header.Get("Api-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"matches":[
			{"id":"v1","score":0.91,"metadata":{"id":"paddington","text":"A bear in London","title":"Paddington"}},
			{"id":"v2","score":0.80,"metadata":{"content":"Space drama","source":"interstellar.csv"}}
		]}`))
	}))
	defer srv.Close()

	idx, err := NewPinecone(map[string]interface{}{"api_key": "pk", "host": srv.URL, "namespace": "films"})
	require.NoError(t, err)
	res, err := idx.Query(context.Background(), []float32{0.1, 0.2}, 5)
	require.NoError(t, err)
	require.Len(t, res, 2)
	require.Equal(t, "paddington", res[0].Entry.ID)
	require.Equal(t, "A bear in London", res[0].Entry.Text)
	require.Equal(t, "v2", res[1].Entry.ID)
	require.Equal(t, "Space drama", res[1].Entry.Text)
	require.Equal(t, "interstellar.csv", res[1].Entry.Metadata.Source)

	require.Equal(t, true, got["includeMetadata"])
	require.Equal(t, false, got["includeValues"])
	require.Equal(t, float64(5), got["topK"])
	require.Equal(t, "films", got["namespace"])
}

func TestPineconeResolvesHostByName(t *testing.T) {
	var upserts int
	data := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/vectors/upsert", r.URL.Path)
		var body struct {
			Vectors []map[string]interface{} `json:"vectors"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.LessOrEqual(t, len(body.Vectors), pineconeUpsertBatch)
		upserts++
		_, _ = w.Write([]byte(`{"upsertedCount":1}`))
	}))
	defer data.Close()
	controller := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/indexes/bingio", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]string{"host": data.URL})
	}))
	defer controller.Close()

	idx, err := NewPinecone(map[string]interface{}{"api_key": "pk", "index_name": "bingio", "controller_url": controller.URL})
	require.NoError(t, err)
	entries := make([]model.CatalogEntry, 0, 150)
	for i := 0; i < 150; i++ {
		entries = append(entries, model.CatalogEntry{ID: string(rune('a' + i%26)), Vector: []float32{1}})
	}
	require.NoError(t, idx.Upsert(context.Background(), entries))
	require.Equal(t, 2, upserts)
}

func TestPineconeErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("bad key"))
	}))
	defer srv.Close()
	idx, err := NewPinecone(map[string]interface{}{"api_key": "pk", "host": srv.URL})
	require.NoError(t, err)
	_, err = idx.Query(context.Background(), []float32{1}, 1)
	require.Error(t, err)
	require.Contains(t, err.Error(), "bad key")
}

func TestPineconeConfigRequired(t *testing.T) {
	_, err := NewPinecone(map[string]interface{}{"host": "x"})
	require.Error(t, err)
	_, err = NewPinecone(map[string]interface{}{"api_key": "k"})
	require.Error(t, err)
}
