package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/xxxsen/common/logger"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port          int                 `json:"port"`
	LogConfig     logger.LogConfig    `json:"log_config"`
	Database      DatabaseConfig      `json:"database"`
	AI            AIConfig            `json:"ai"`
	VectorIndex   VectorIndexConfig   `json:"vector_index"`
	Retrieval     RetrievalConfig     `json:"retrieval"`
	Moderation    ModerationConfig    `json:"moderation"`
	SnapshotStore SnapshotStoreConfig `json:"snapshot_store"`
	Catalog       CatalogConfig       `json:"catalog"`
	Server        ServerConfig        `json:"server"`
	Client        ClientConfig        `json:"client"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

func (c DatabaseConfig) Enabled() bool {
	return c.DSN != "" || c.Host != ""
}

// ProviderConfig names a registered provider type and its free-form settings.
type ProviderConfig struct {
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data"`
}

type ModelRef struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

type AIConfig struct {
	Providers   map[string]ProviderConfig `json:"providers"`
	Generators  []ModelRef                `json:"generators"`
	Embedders   []ModelRef                `json:"embedders"`
	Temperature *float64                  `json:"temperature"`
	MaxTokens   int                       `json:"max_tokens"`
	TimeoutMs   int64                     `json:"timeout_ms"`
	EmbedCache  EmbedCacheConfig          `json:"embed_cache"`
}

type EmbedCacheConfig struct {
	LRUSize       int    `json:"lru_size"`
	LRUTTLSec     int64  `json:"lru_ttl_sec"`
	DB            bool   `json:"db"`
	RetentionDays int    `json:"retention_days"`
	CleanupCron   string `json:"cleanup_cron"`
}

type VectorIndexConfig struct {
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data"`
}

type RetrievalConfig struct {
	TopK          int      `json:"top_k"`
	Threshold     *float64 `json:"threshold"`
	SnippetLength int      `json:"snippet_length"`
	Followup      string   `json:"followup"`
}

type ModerationConfig struct {
	Type      string                 `json:"type"`
	Data      map[string]interface{} `json:"data"`
	Responses map[string]string      `json:"responses"`
}

type SnapshotStoreConfig struct {
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data"`
}

type CatalogConfig struct {
	Path        string `json:"path"`
	Watch       bool   `json:"watch"`
	SyncCron    string `json:"sync_cron"`
	BatchSize   int    `json:"batch_size"`
	DebounceMs  int64  `json:"debounce_ms"`
	SyncOnStart bool   `json:"sync_on_start"`
}

type ServerConfig struct {
	CORSAllowlist []string `json:"cors_allowlist"`
	RateLimitMs   int64    `json:"rate_limit_ms"`
}

type ClientConfig struct {
	BaseURL   string `json:"base_url"`
	Stream    *bool  `json:"stream"`
	Welcome   string `json:"welcome"`
	TimeoutMs int64  `json:"timeout_ms"`
}

const DefaultWelcome = "Hello! I'm Bingio. Tell me how you feel and who you're watching with, and I'll recommend a film or series for your vibe."

// Load reads a JSON or YAML config file. A .env file next to the config, or in
// the working directory, is loaded first so environment overrides can come from it.
func Load(path string) (*Config, error) {
	loadDotEnv(path)
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	cfg, err := Parse(raw, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := normalize(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes raw config bytes. YAML is converted to JSON first so both
// formats share the json tags.
func Parse(raw []byte, ext string) (*Config, error) {
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		var tree interface{}
		if err := yaml.Unmarshal(raw, &tree); err != nil {
			return nil, fmt.Errorf("decode yaml config: %w", err)
		}
		data, err := json.Marshal(tree)
		if err != nil {
			return nil, fmt.Errorf("convert yaml config: %w", err)
		}
		raw = data
	}
	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

func loadDotEnv(path string) {
	candidates := []string{filepath.Join(filepath.Dir(path), ".env"), ".env"}
	for _, file := range candidates {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		_ = godotenv.Load(file)
	}
}

func applyEnv(cfg *Config) error {
	if v := strings.TrimSpace(os.Getenv("EMBEDDING_MODEL")); v != "" {
		if len(cfg.AI.Embedders) == 0 {
			return fmt.Errorf("EMBEDDING_MODEL set but ai.embedders is empty")
		}
		cfg.AI.Embedders[0].Model = v
	}
	if v := strings.TrimSpace(os.Getenv("GENERATION_MODEL")); v != "" {
		if len(cfg.AI.Generators) == 0 {
			return fmt.Errorf("GENERATION_MODEL set but ai.generators is empty")
		}
		cfg.AI.Generators[0].Model = v
	}
	if v := strings.TrimSpace(os.Getenv("VECTOR_INDEX_NAME")); v != "" {
		cfg.VectorIndex.Data = setData(cfg.VectorIndex.Data, "index_name", v, true)
	}
	if v := strings.TrimSpace(os.Getenv("RETRIEVAL_TOP_K")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse RETRIEVAL_TOP_K: %w", err)
		}
		cfg.Retrieval.TopK = n
	}
	if v := strings.TrimSpace(os.Getenv("RETRIEVAL_THRESHOLD")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("parse RETRIEVAL_THRESHOLD: %w", err)
		}
		cfg.Retrieval.Threshold = &f
	}
	if v := strings.TrimSpace(os.Getenv("GENERATION_TEMPERATURE")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("parse GENERATION_TEMPERATURE: %w", err)
		}
		cfg.AI.Temperature = &f
	}
	for name, p := range cfg.AI.Providers {
		if key := apiKeyEnv(p.Type); key != "" {
			p.Data = setData(p.Data, "api_key", os.Getenv(key), false)
			cfg.AI.Providers[name] = p
		}
	}
	if strings.EqualFold(cfg.VectorIndex.Type, "pinecone") {
		cfg.VectorIndex.Data = setData(cfg.VectorIndex.Data, "api_key", os.Getenv("PINECONE_API_KEY"), false)
	}
	if strings.EqualFold(cfg.Moderation.Type, "openai") {
		cfg.Moderation.Data = setData(cfg.Moderation.Data, "api_key", os.Getenv("OPENAI_API_KEY"), false)
	}
	return nil
}

func apiKeyEnv(providerType string) string {
	switch strings.ToLower(strings.TrimSpace(providerType)) {
	case "openai":
		return "OPENAI_API_KEY"
	case "gemini":
		return "GEMINI_API_KEY"
	case "openrouter":
		return "OPENROUTER_API_KEY"
	}
	return ""
}

// setData writes value into data[key]. Without overwrite an existing non-empty value wins.
func setData(data map[string]interface{}, key, value string, overwrite bool) map[string]interface{} {
	if value == "" {
		return data
	}
	if data == nil {
		data = map[string]interface{}{}
	}
	if !overwrite {
		if existing, ok := data[key].(string); ok && existing != "" {
			return data
		}
	}
	data[key] = value
	return data
}

func normalize(cfg *Config) error {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.Retrieval.Threshold == nil {
		return fmt.Errorf("retrieval.threshold is required")
	}
	if t := *cfg.Retrieval.Threshold; t < 0 || t > 1 {
		return fmt.Errorf("retrieval.threshold must be within [0, 1]")
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 5
	}
	if cfg.Retrieval.TopK < 1 {
		return fmt.Errorf("retrieval.top_k must be >= 1")
	}
	if cfg.AI.Temperature == nil {
		zero := 0.0
		cfg.AI.Temperature = &zero
	}
	if cfg.AI.MaxTokens == 0 {
		cfg.AI.MaxTokens = 400
	}
	if cfg.AI.TimeoutMs == 0 {
		cfg.AI.TimeoutMs = 60000
	}
	if cfg.AI.EmbedCache.LRUSize == 0 {
		cfg.AI.EmbedCache.LRUSize = 1024
	}
	if cfg.AI.EmbedCache.LRUTTLSec == 0 {
		cfg.AI.EmbedCache.LRUTTLSec = 3600
	}
	if cfg.AI.EmbedCache.RetentionDays == 0 {
		cfg.AI.EmbedCache.RetentionDays = 30
	}
	if cfg.AI.EmbedCache.CleanupCron == "" {
		cfg.AI.EmbedCache.CleanupCron = "0 4 * * *"
	}
	// catalog vectors come from one model, so queries must use that model too
	if len(cfg.AI.Embedders) > 1 {
		return fmt.Errorf("ai.embedders accepts a single entry, got %d", len(cfg.AI.Embedders))
	}
	for _, ref := range append(append([]ModelRef{}, cfg.AI.Generators...), cfg.AI.Embedders...) {
		if _, ok := cfg.AI.Providers[ref.Provider]; !ok {
			return fmt.Errorf("ai provider %q is not configured", ref.Provider)
		}
		if ref.Model == "" {
			return fmt.Errorf("ai model is required for provider %q", ref.Provider)
		}
	}
	if cfg.VectorIndex.Type == "" {
		cfg.VectorIndex.Type = "memory"
	}
	if cfg.Moderation.Type == "" {
		cfg.Moderation.Type = "keyword"
	}
	if cfg.SnapshotStore.Type == "" {
		cfg.SnapshotStore.Type = "file"
	}
	if strings.EqualFold(cfg.SnapshotStore.Type, "file") {
		cfg.SnapshotStore.Data = setData(cfg.SnapshotStore.Data, "path", defaultSnapshotPath(), false)
	}
	if cfg.Catalog.BatchSize == 0 {
		cfg.Catalog.BatchSize = 50
	}
	if cfg.Catalog.DebounceMs == 0 {
		cfg.Catalog.DebounceMs = 500
	}
	if cfg.Client.BaseURL == "" {
		cfg.Client.BaseURL = fmt.Sprintf("http://127.0.0.1:%d", cfg.Port)
	}
	if cfg.Client.Stream == nil {
		stream := true
		cfg.Client.Stream = &stream
	}
	if cfg.Client.Welcome == "" {
		cfg.Client.Welcome = DefaultWelcome
	}
	if cfg.Client.TimeoutMs == 0 {
		cfg.Client.TimeoutMs = 120000
	}
	return nil
}

func defaultSnapshotPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "bingio-conversation.json"
	}
	return filepath.Join(dir, "bingio", "conversation.json")
}
