package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const jsonConfig = `{
  "port": 9000,
  "ai": {
    "providers": {"oa": {"type": "openai", "data": {}}},
    "generators": [{"provider": "oa", "model": "gpt-4o-mini"}],
    "embedders": [{"provider": "oa", "model": "text-embedding-3-small"}]
  },
  "vector_index": {"type": "pinecone", "data": {"index_name": "titles"}},
  "retrieval": {"threshold": 0.75}
}`

const yamlConfig = `
port: 9001
ai:
  providers:
    gm:
      type: gemini
      data:
        api_key: from-file
  generators:
    - provider: gm
      model: gemini-2.0-flash
  embedders:
    - provider: gm
      model: text-embedding-004
retrieval:
  threshold: 0.5
  top_k: 3
snapshot_store:
  type: redis
  data:
    url: redis://localhost:6379/0
`

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadJSONDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "config.json", jsonConfig))
	require.NoError(t, err)
	require.Equal(t, 9000, cfg.Port)
	require.Equal(t, 5, cfg.Retrieval.TopK)
	require.InDelta(t, 0.75, *cfg.Retrieval.Threshold, 1e-9)
	require.InDelta(t, 0.0, *cfg.AI.Temperature, 1e-9)
	require.Equal(t, 400, cfg.AI.MaxTokens)
	require.Equal(t, "pinecone", cfg.VectorIndex.Type)
	require.Equal(t, "keyword", cfg.Moderation.Type)
	require.Equal(t, "file", cfg.SnapshotStore.Type)
	require.NotEmpty(t, cfg.SnapshotStore.Data["path"])
	require.True(t, *cfg.Client.Stream)
	require.Equal(t, "http://127.0.0.1:9000", cfg.Client.BaseURL)
	require.Equal(t, DefaultWelcome, cfg.Client.Welcome)
}

func TestLoadYAML(t *testing.T) {
	cfg, err := Load(writeConfig(t, "config.yaml", yamlConfig))
	require.NoError(t, err)
	require.Equal(t, 9001, cfg.Port)
	require.Equal(t, 3, cfg.Retrieval.TopK)
	require.Equal(t, "gemini", cfg.AI.Providers["gm"].Type)
	require.Equal(t, "from-file", cfg.AI.Providers["gm"].Data["api_key"])
	require.Equal(t, "redis", cfg.SnapshotStore.Type)
	require.Equal(t, "redis://localhost:6379/0", cfg.SnapshotStore.Data["url"])
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("EMBEDDING_MODEL", "embed-x")
	t.Setenv("GENERATION_MODEL", "gen-y")
	t.Setenv("VECTOR_INDEX_NAME", "other-index")
	t.Setenv("RETRIEVAL_TOP_K", "7")
	t.Setenv("RETRIEVAL_THRESHOLD", "0.6")
	t.Setenv("GENERATION_TEMPERATURE", "0.3")
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("PINECONE_API_KEY", "pc-env")

	cfg, err := Load(writeConfig(t, "config.json", jsonConfig))
	require.NoError(t, err)
	require.Equal(t, "embed-x", cfg.AI.Embedders[0].Model)
	require.Equal(t, "gen-y", cfg.AI.Generators[0].Model)
	require.Equal(t, "other-index", cfg.VectorIndex.Data["index_name"])
	require.Equal(t, "pc-env", cfg.VectorIndex.Data["api_key"])
	require.Equal(t, "sk-env", cfg.AI.Providers["oa"].Data["api_key"])
	require.Equal(t, 7, cfg.Retrieval.TopK)
	require.InDelta(t, 0.6, *cfg.Retrieval.Threshold, 1e-9)
	require.InDelta(t, 0.3, *cfg.AI.Temperature, 1e-9)
}

func TestLoadFileKeyWinsOverEnv(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "env-key")
	cfg, err := Load(writeConfig(t, "config.yaml", yamlConfig))
	require.NoError(t, err)
	require.Equal(t, "from-file", cfg.AI.Providers["gm"].Data["api_key"])
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(jsonConfig), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("RETRIEVAL_TOP_K=9\n"), 0o644))
	t.Setenv("RETRIEVAL_TOP_K", "")
	require.NoError(t, os.Unsetenv("RETRIEVAL_TOP_K"))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9, cfg.Retrieval.TopK)
}

func TestLoadValidation(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)

	_, err = Load(writeConfig(t, "config.json", `{"port": 1}`))
	require.ErrorContains(t, err, "retrieval.threshold is required")

	_, err = Load(writeConfig(t, "config.json", `{"retrieval": {"threshold": 1.5}}`))
	require.ErrorContains(t, err, "within [0, 1]")

	_, err = Load(writeConfig(t, "config.json", `{"retrieval": {"threshold": 0.5, "top_k": -1}}`))
	require.ErrorContains(t, err, "top_k")

	_, err = Load(writeConfig(t, "config.json", `{"retrieval": {"threshold": 0.5}, "ai": {"generators": [{"provider": "nope", "model": "m"}]}}`))
	require.ErrorContains(t, err, "not configured")

	_, err = Load(writeConfig(t, "config.json", `{"retrieval": {"threshold": 0.5}, "ai": {
		"providers": {"a": {"type": "openai"}, "b": {"type": "gemini"}},
		"embedders": [{"provider": "a", "model": "m1"}, {"provider": "b", "model": "m2"}]}}`))
	require.ErrorContains(t, err, "single entry")

	t.Setenv("RETRIEVAL_THRESHOLD", "abc")
	_, err = Load(writeConfig(t, "config.json", `{"retrieval": {"threshold": 0.5}}`))
	require.ErrorContains(t, err, "RETRIEVAL_THRESHOLD")
}
