package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// WorkspaceConfig locates per-document artifacts.
type WorkspaceConfig struct {
	Root string `yaml:"root"`
	// Inbox is the directory the watch command ingests from.
	Inbox string `yaml:"inbox"`
}

// HashingEmbedderConfig configures the local feature-hashing embedder.
type HashingEmbedderConfig struct {
	Dimension int `yaml:"dimension"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL           string `yaml:"base_url"`
	APIKeyEnv         string `yaml:"api_key_env"`
	Model             string `yaml:"model"`
	TimeoutSecs       int    `yaml:"timeout_secs"`
	RequestsPerMinute int    `yaml:"requests_per_minute"`
	Dimension         int    `yaml:"dimension"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type    string                 `yaml:"type"`
	Workers int                    `yaml:"workers"`
	Hashing *HashingEmbedderConfig `yaml:"hashing,omitempty"`
	OpenAI  *OpenAIEmbedderConfig  `yaml:"openai,omitempty"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type   string        `yaml:"type"`
	Qdrant *QdrantConfig `yaml:"qdrant,omitempty"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL              string `yaml:"url"`
	APIKeyEnv        string `yaml:"api_key_env"`
	CollectionPrefix string `yaml:"collection_prefix"`
	TimeoutSecs      int    `yaml:"timeout_secs"`
}

// GeneratorConfig selects the answer generation backend.
type GeneratorConfig struct {
	Type      string `yaml:"type"`
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
	// Models lists the selectable models; the first is the default.
	Models            []string `yaml:"models"`
	Assistant         string   `yaml:"assistant"`
	IdleTimeoutSecs   int      `yaml:"idle_timeout_secs"`
	RequestsPerMinute int      `yaml:"requests_per_minute"`
}

// DefaultModel returns the first configured model.
func (g GeneratorConfig) DefaultModel() string {
	if len(g.Models) == 0 {
		return ""
	}
	return g.Models[0]
}

// SummarizerConfig selects and bounds the summarizer.
type SummarizerConfig struct {
	Type          string `yaml:"type"`
	MaxInputChars int    `yaml:"max_input_chars"`
	MinLength     int    `yaml:"min_length"`
	MaxLength     int    `yaml:"max_length"`
}

// RetrievalConfig tunes the retriever. Zero values fall back to the
// fixed pipeline settings: MMR, k=3, fetch_k=20, lambda=0.5.
type RetrievalConfig struct {
	SearchType string  `yaml:"search_type"`
	K          int     `yaml:"k"`
	FetchK     int     `yaml:"fetch_k"`
	Lambda     float64 `yaml:"lambda"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Workspace   WorkspaceConfig   `yaml:"workspace"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Generator   GeneratorConfig   `yaml:"generator"`
	Summarizer  SummarizerConfig  `yaml:"summarizer"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Log         LogConfig         `yaml:"log"`
}

// LoadEnv loads variables from .env files that exist. Variables already
// set in the environment win.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultConfig(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault tries ./docqa.yaml first, then ~/.config/docqa/config.yaml.
// If neither exists, it writes defaults to ~/.config/docqa/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "docqa.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "docqa", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Embedder:    EmbedderConfig{Type: "hashing"},
		VectorStore: VectorStoreConfig{Type: "sqlite"},
		Generator:   GeneratorConfig{Type: "openai"},
		Summarizer:  SummarizerConfig{Type: "frequency"},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Workspace.Root == "" {
		cfg.Workspace.Root = filepath.Join("tmp", "vector_store")
	}
	if cfg.Workspace.Inbox == "" {
		cfg.Workspace.Inbox = "inbox"
	}

	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "hashing"
	}
	if cfg.Embedder.Type == "hashing" {
		if cfg.Embedder.Hashing == nil {
			cfg.Embedder.Hashing = &HashingEmbedderConfig{}
		}
		if cfg.Embedder.Hashing.Dimension == 0 {
			cfg.Embedder.Hashing.Dimension = 512
		}
	}
	if cfg.Embedder.Type == "openai" {
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		if cfg.Embedder.OpenAI.BaseURL == "" {
			cfg.Embedder.OpenAI.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Embedder.OpenAI.APIKeyEnv == "" {
			cfg.Embedder.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Embedder.OpenAI.Model == "" {
			cfg.Embedder.OpenAI.Model = "text-embedding-3-small"
		}
		if cfg.Embedder.OpenAI.TimeoutSecs == 0 {
			cfg.Embedder.OpenAI.TimeoutSecs = 30
		}
	}

	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "sqlite"
	}
	if cfg.VectorStore.Type == "qdrant" {
		if cfg.VectorStore.Qdrant == nil {
			cfg.VectorStore.Qdrant = &QdrantConfig{}
		}
		if cfg.VectorStore.Qdrant.URL == "" {
			cfg.VectorStore.Qdrant.URL = "http://localhost:6333"
		}
		if cfg.VectorStore.Qdrant.CollectionPrefix == "" {
			cfg.VectorStore.Qdrant.CollectionPrefix = "docqa_"
		}
		if cfg.VectorStore.Qdrant.TimeoutSecs == 0 {
			cfg.VectorStore.Qdrant.TimeoutSecs = 30
		}
	}

	g := &cfg.Generator
	if g.Type == "" {
		g.Type = "openai"
	}
	switch g.Type {
	case "openai":
		if g.BaseURL == "" {
			g.BaseURL = "https://openrouter.ai/api/v1"
		}
		if g.APIKeyEnv == "" {
			g.APIKeyEnv = "OPENROUTER_API_KEY"
		}
		if len(g.Models) == 0 {
			g.Models = []string{
				"mistralai/mistral-7b-instruct",
				"meta-llama/llama-3.1-8b-instruct",
				"google/gemma-2-9b-it",
			}
		}
	case "gemini":
		if g.APIKeyEnv == "" {
			g.APIKeyEnv = "GEMINI_API_KEY"
		}
		if len(g.Models) == 0 {
			g.Models = []string{"gemini-2.0-flash"}
		}
	}
	if g.Assistant == "" {
		g.Assistant = "question answering over the uploaded document"
	}
	if g.IdleTimeoutSecs == 0 {
		g.IdleTimeoutSecs = 90
	}

	if cfg.Summarizer.Type == "" {
		cfg.Summarizer.Type = "frequency"
	}
	if cfg.Summarizer.MaxInputChars == 0 {
		cfg.Summarizer.MaxInputChars = 1024
	}
	if cfg.Summarizer.MinLength == 0 {
		cfg.Summarizer.MinLength = 40
	}
	if cfg.Summarizer.MaxLength == 0 {
		cfg.Summarizer.MaxLength = 150
	}

	if cfg.Retrieval.SearchType == "" {
		cfg.Retrieval.SearchType = "mmr"
	}
	if cfg.Retrieval.K == 0 {
		cfg.Retrieval.K = 3
	}
	if cfg.Retrieval.FetchK == 0 {
		cfg.Retrieval.FetchK = 20
	}
	if cfg.Retrieval.Lambda == 0 {
		cfg.Retrieval.Lambda = 0.5
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
