package vectorindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/xxxsen/bingio/internal/model"
)

const (
	defaultPineconeControllerURL = "https://api.pinecone.io"
	pineconeAPIVersion           = "2024-07"
	pineconeUpsertBatch          = 100
)

type pineconeConfig struct {
	APIKey        string `json:"api_key"`
	Host          string `json:"host"`
	IndexName     string `json:"index_name"`
	Namespace     string `json:"namespace"`
	ControllerURL string `json:"controller_url"`
	TimeoutMs     int64  `json:"timeout_ms"`
}

type pineconeIndex struct {
	cfg    pineconeConfig
	client *http.Client

	mu   sync.Mutex
	host string
}

func NewPinecone(args interface{}) (Index, error) {
	cfg := pineconeConfig{}
	if err := decodeConfig(args, &cfg); err != nil {
		return nil, err
	}
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("pinecone api_key is required")
	}
	if strings.TrimSpace(cfg.Host) == "" && strings.TrimSpace(cfg.IndexName) == "" {
		return nil, fmt.Errorf("pinecone host or index_name is required")
	}
	if cfg.ControllerURL == "" {
		cfg.ControllerURL = defaultPineconeControllerURL
	}
	timeout := 15 * time.Second
	if cfg.TimeoutMs > 0 {
		timeout = time.Duration(cfg.TimeoutMs) * time.Millisecond
	}
	p := &pineconeIndex{cfg: cfg, client: &http.Client{Timeout: timeout}}
	if cfg.Host != "" {
		p.host = normalizeHost(cfg.Host)
	}
	return p, nil
}

func normalizeHost(host string) string {
	host = strings.TrimRight(strings.TrimSpace(host), "/")
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "https://" + host
	}
	return host
}

func (p *pineconeIndex) Name() string {
	return "pinecone"
}

// resolveHost looks up the data plane host of a named index once.
func (p *pineconeIndex) resolveHost(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.host != "" {
		return p.host, nil
	}
	var out struct {
		Host string `json:"host"`
	}
	url := strings.TrimRight(p.cfg.ControllerURL, "/") + "/indexes/" + p.cfg.IndexName
	if err := p.do(ctx, http.MethodGet, url, nil, &out); err != nil {
		return "", fmt.Errorf("describe pinecone index %s: %w", p.cfg.IndexName, err)
	}
	if out.Host == "" {
		return "", fmt.Errorf("pinecone index %s has no host", p.cfg.IndexName)
	}
	p.host = normalizeHost(out.Host)
	return p.host, nil
}

type pineconeMatch struct {
	ID       string                 `json:"id"`
	Score    float32                `json:"score"`
	Metadata map[string]interface{} `json:"metadata"`
}

func (p *pineconeIndex) Query(ctx context.Context, vector []float32, topK int) ([]model.ScoredEntry, error) {
	host, err := p.resolveHost(ctx)
	if err != nil {
		return nil, err
	}
	body := map[string]interface{}{
		"vector":          vector,
		"topK":            topK,
		"includeMetadata": true,
		"includeValues":   false,
	}
	if p.cfg.Namespace != "" {
		body["namespace"] = p.cfg.Namespace
	}
	var out struct {
		Matches []pineconeMatch `json:"matches"`
	}
	if err := p.do(ctx, http.MethodPost, host+"/query", body, &out); err != nil {
		return nil, fmt.Errorf("pinecone query: %w", err)
	}
	res := make([]model.ScoredEntry, 0, len(out.Matches))
	for _, m := range out.Matches {
		res = append(res, model.ScoredEntry{Entry: entryFromMetadata(m.ID, m.Metadata), Score: m.Score})
	}
	sort.SliceStable(res, func(i, j int) bool {
		return res[i].Score > res[j].Score
	})
	return res, nil
}

func metaString(meta map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		switch v := meta[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return fmt.Sprintf("%g", v)
		}
	}
	return ""
}

func entryFromMetadata(id string, meta map[string]interface{}) model.CatalogEntry {
	entry := model.CatalogEntry{
		ID:   metaString(meta, "id"),
		Text: metaString(meta, "text", "content"),
		Metadata: model.CatalogMetadata{
			Title:    metaString(meta, "title"),
			Type:     metaString(meta, "type"),
			Genre:    metaString(meta, "genre"),
			Year:     metaString(meta, "year"),
			Synopsis: metaString(meta, "synopsis"),
			Source:   metaString(meta, "source"),
		},
	}
	if entry.ID == "" {
		entry.ID = id
	}
	return entry
}

func metadataFromEntry(e model.CatalogEntry) map[string]interface{} {
	meta := map[string]interface{}{"id": e.ID}
	add := func(k, v string) {
		if v != "" {
			meta[k] = v
		}
	}
	add("text", e.Text)
	add("title", e.Metadata.Title)
	add("type", e.Metadata.Type)
	add("genre", e.Metadata.Genre)
	add("year", e.Metadata.Year)
	add("synopsis", e.Metadata.Synopsis)
	add("source", e.Metadata.Source)
	return meta
}

func (p *pineconeIndex) Upsert(ctx context.Context, entries []model.CatalogEntry) error {
	host, err := p.resolveHost(ctx)
	if err != nil {
		return err
	}
	for start := 0; start < len(entries); start += pineconeUpsertBatch {
		end := start + pineconeUpsertBatch
		if end > len(entries) {
			end = len(entries)
		}
		vectors := make([]map[string]interface{}, 0, end-start)
		for _, e := range entries[start:end] {
			vectors = append(vectors, map[string]interface{}{
				"id":       e.ID,
				"values":   e.Vector,
				"metadata": metadataFromEntry(e),
			})
		}
		body := map[string]interface{}{"vectors": vectors}
		if p.cfg.Namespace != "" {
			body["namespace"] = p.cfg.Namespace
		}
		if err := p.do(ctx, http.MethodPost, host+"/vectors/upsert", body, nil); err != nil {
			return fmt.Errorf("pinecone upsert: %w", err)
		}
	}
	return nil
}

func (p *pineconeIndex) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	host, err := p.resolveHost(ctx)
	if err != nil {
		return err
	}
	body := map[string]interface{}{"ids": ids}
	if p.cfg.Namespace != "" {
		body["namespace"] = p.cfg.Namespace
	}
	if err := p.do(ctx, http.MethodPost, host+"/vectors/delete", body, nil); err != nil {
		return fmt.Errorf("pinecone delete: %w", err)
	}
	return nil
}

func (p *pineconeIndex) do(ctx context.Context, method, url string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Api-Key", p.cfg.APIKey)
	req.Header.Set("X-Pinecone-API-Version", pineconeAPIVersion)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("status %s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func init() {
	Register("pinecone", func(args interface{}, deps Deps) (Index, error) {
		return NewPinecone(args)
	})
}
