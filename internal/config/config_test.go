package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join("tmp", "vector_store"), cfg.Workspace.Root)
	assert.Equal(t, "hashing", cfg.Embedder.Type)
	require.NotNil(t, cfg.Embedder.Hashing)
	assert.Equal(t, 512, cfg.Embedder.Hashing.Dimension)
	assert.Equal(t, "sqlite", cfg.VectorStore.Type)
	assert.Equal(t, "openai", cfg.Generator.Type)
	assert.Equal(t, "https://openrouter.ai/api/v1", cfg.Generator.BaseURL)
	assert.Equal(t, "mistralai/mistral-7b-instruct", cfg.Generator.DefaultModel())
	assert.Equal(t, SummarizerConfig{Type: "frequency", MaxInputChars: 1024, MinLength: 40, MaxLength: 150}, cfg.Summarizer)
	assert.Equal(t, RetrievalConfig{SearchType: "mmr", K: 3, FetchK: 20, Lambda: 0.5}, cfg.Retrieval)
	assert.Equal(t, LogConfig{Level: "info", Format: "text"}, cfg.Log)
}

func TestLoad_AppliesDefaultsToPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docqa.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
workspace:
  root: /data/docs
embedder:
  type: openai
  openai:
    model: nomic-embed-text
vector_store:
  type: qdrant
generator:
  type: gemini
retrieval:
  k: 5
log:
  level: debug
  format: json
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/data/docs", cfg.Workspace.Root)
	require.NotNil(t, cfg.Embedder.OpenAI)
	assert.Equal(t, "nomic-embed-text", cfg.Embedder.OpenAI.Model)
	assert.Equal(t, "OPENAI_API_KEY", cfg.Embedder.OpenAI.APIKeyEnv)
	assert.Nil(t, cfg.Embedder.Hashing)
	require.NotNil(t, cfg.VectorStore.Qdrant)
	assert.Equal(t, "http://localhost:6333", cfg.VectorStore.Qdrant.URL)
	assert.Equal(t, "docqa_", cfg.VectorStore.Qdrant.CollectionPrefix)
	assert.Equal(t, "GEMINI_API_KEY", cfg.Generator.APIKeyEnv)
	assert.Equal(t, []string{"gemini-2.0-flash"}, cfg.Generator.Models)
	assert.Equal(t, 5, cfg.Retrieval.K)
	assert.Equal(t, 20, cfg.Retrieval.FetchK)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("retrieval: [unclosed"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := defaultConfig()
	cfg.Generator.Models = []string{"a/b", "c/d"}
	require.NoError(t, Save(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestLoadDefault_WritesUserConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(t.TempDir())

	cfg, path, err := LoadDefault()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", "docqa", "config.yaml"), path)
	assert.FileExists(t, path)
	assert.Equal(t, defaultConfig(), cfg)

	require.NoError(t, os.WriteFile("docqa.yaml", []byte("log:\n  level: warn\n"), 0o644))
	cfg, path, err = LoadDefault()
	require.NoError(t, err)
	assert.Equal(t, "docqa.yaml", path)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("DOCQA_TEST_KEY=from-file\nDOCQA_TEST_SET=from-file\n"), 0o644))
	t.Setenv("DOCQA_TEST_SET", "from-env")
	t.Setenv("DOCQA_TEST_KEY", "")
	os.Unsetenv("DOCQA_TEST_KEY")

	require.NoError(t, LoadEnv(envFile, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "from-file", os.Getenv("DOCQA_TEST_KEY"))
	assert.Equal(t, "from-env", os.Getenv("DOCQA_TEST_SET"))

	require.NoError(t, LoadEnv(filepath.Join(dir, "none.env")))
}
