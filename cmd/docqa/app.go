package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"docqa/internal/chain"
	"docqa/internal/config"
	"docqa/internal/domain"
	"docqa/internal/embedding/hashing"
	embopenai "docqa/internal/embedding/openai"
	"docqa/internal/generation"
	"docqa/internal/generation/gemini"
	genopenai "docqa/internal/generation/openai"
	"docqa/internal/highlight"
	"docqa/internal/index"
	"docqa/internal/loader"
	"docqa/internal/logger"
	"docqa/internal/pipeline"
	"docqa/internal/summarizer"
	"docqa/internal/vectorstore"
	"docqa/internal/vectorstore/qdrant"
	"docqa/internal/vectorstore/sqlite"
	"docqa/internal/workspace"
)

// app holds the components assembled from config for one command run.
type app struct {
	cfg  *config.AppConfig
	ws   *workspace.Workspace
	deps pipeline.Deps

	mu      sync.Mutex
	guards  map[guardKey]*generation.Guard
	closers []io.Closer
}

func newApp(ctx context.Context, cfg *config.AppConfig) (*app, error) {
	a := &app{
		cfg:    cfg,
		ws:     workspace.New(cfg.Workspace.Root),
		guards: map[guardKey]*generation.Guard{},
	}

	emb, err := buildEmbedder(cfg.Embedder)
	if err != nil {
		return nil, err
	}
	backend, err := buildBackend(cfg.VectorStore)
	if err != nil {
		return nil, err
	}
	factory, err := a.generatorFactory(ctx)
	if err != nil {
		return nil, err
	}
	sum, err := a.buildSummarizer(factory)
	if err != nil {
		return nil, err
	}

	a.deps = pipeline.Deps{
		Loader:      loader.New(),
		Indexes:     index.NewManager(backend, index.WithWorkers(cfg.Embedder.Workers)),
		Embedder:    emb,
		Summarizer:  sum,
		Chains:      chain.NewBuilder(factory),
		Highlighter: highlight.New(),
		Retrieval: vectorstore.RetrieverOptions{
			SearchType: vectorstore.SearchType(cfg.Retrieval.SearchType),
			K:          cfg.Retrieval.K,
			FetchK:     cfg.Retrieval.FetchK,
			Lambda:     cfg.Retrieval.Lambda,
		},
	}
	return a, nil
}

func buildEmbedder(cfg config.EmbedderConfig) (domain.Embedder, error) {
	switch cfg.Type {
	case "hashing", "":
		dim := 0
		if cfg.Hashing != nil {
			dim = cfg.Hashing.Dimension
		}
		return hashing.NewEmbedder(dim), nil
	case "openai":
		if cfg.OpenAI == nil {
			return nil, errors.New("openai embedder config missing")
		}
		client, err := embopenai.NewClient(embopenai.Config{
			BaseURL:           cfg.OpenAI.BaseURL,
			APIKeyEnv:         cfg.OpenAI.APIKeyEnv,
			Model:             cfg.OpenAI.Model,
			Timeout:           time.Duration(cfg.OpenAI.TimeoutSecs) * time.Second,
			RequestsPerMinute: cfg.OpenAI.RequestsPerMinute,
			Dimension:         cfg.OpenAI.Dimension,
		})
		if err != nil {
			return nil, fmt.Errorf("openai embedder init failed: %w", err)
		}
		return client, nil
	}
	return nil, fmt.Errorf("unknown embedder: %s", cfg.Type)
}

func buildBackend(cfg config.VectorStoreConfig) (vectorstore.Backend, error) {
	switch cfg.Type {
	case "sqlite", "":
		return sqlite.Backend{}, nil
	case "qdrant":
		if cfg.Qdrant == nil {
			return nil, errors.New("qdrant config missing")
		}
		key := ""
		if cfg.Qdrant.APIKeyEnv != "" {
			key = os.Getenv(cfg.Qdrant.APIKeyEnv)
		}
		return qdrant.NewBackend(qdrant.Config{
			URL:              cfg.Qdrant.URL,
			APIKey:           key,
			CollectionPrefix: cfg.Qdrant.CollectionPrefix,
			Timeout:          time.Duration(cfg.Qdrant.TimeoutSecs) * time.Second,
		}), nil
	}
	return nil, fmt.Errorf("unknown vector store: %s", cfg.Type)
}

type guardKey struct {
	apiKey string
	model  string
}

// generatorFactory returns a factory handing out one guarded generator per
// API key and model, so breaker state survives across questions.
func (a *app) generatorFactory(ctx context.Context) (generation.Factory, error) {
	g := a.cfg.Generator
	idle := time.Duration(g.IdleTimeoutSecs) * time.Second
	var open func(apiKey, model string) (generation.Generator, error)
	switch g.Type {
	case "openai", "":
		open = func(apiKey, model string) (generation.Generator, error) {
			return genopenai.New(genopenai.Config{BaseURL: g.BaseURL, APIKey: apiKey, Model: model, IdleTimeout: idle}), nil
		}
	case "gemini":
		open = func(apiKey, model string) (generation.Generator, error) {
			c, err := gemini.New(ctx, apiKey, model, idle)
			if err != nil {
				return nil, err
			}
			a.closers = append(a.closers, c)
			return c, nil
		}
	default:
		return nil, fmt.Errorf("unknown generator: %s", g.Type)
	}
	guardCfg := generation.GuardConfig{RequestsPerMinute: g.RequestsPerMinute}
	return func(apiKey, model string) (generation.Generator, error) {
		a.mu.Lock()
		defer a.mu.Unlock()
		key := guardKey{apiKey: apiKey, model: model}
		if gd, ok := a.guards[key]; ok {
			return gd, nil
		}
		gen, err := open(apiKey, model)
		if err != nil {
			return nil, err
		}
		gd := generation.NewGuard(gen, guardCfg)
		a.guards[key] = gd
		return gd, nil
	}, nil
}

func (a *app) buildSummarizer(factory generation.Factory) (*summarizer.Summarizer, error) {
	s := a.cfg.Summarizer
	var model domain.SummaryModel
	switch s.Type {
	case "frequency", "":
		model = summarizer.NewFrequencyModel()
	case "generative":
		gen, err := factory(a.apiKey(), a.cfg.Generator.DefaultModel())
		if err != nil {
			return nil, fmt.Errorf("generative summarizer init failed: %w", err)
		}
		model = summarizer.NewGenerativeModel(gen)
	default:
		return nil, fmt.Errorf("unknown summarizer: %s", s.Type)
	}
	return summarizer.New(model, summarizer.Config{
		MaxInputChars: s.MaxInputChars,
		MinLength:     s.MinLength,
		MaxLength:     s.MaxLength,
	}), nil
}

func (a *app) apiKey() string {
	if a.cfg.Generator.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(a.cfg.Generator.APIKeyEnv)
}

// answerOptions resolves the model from --model or the configured default.
func (a *app) answerOptions(model string) pipeline.AnswerOptions {
	if model == "" {
		model = a.cfg.Generator.DefaultModel()
	}
	return pipeline.AnswerOptions{
		Assistant: a.cfg.Generator.Assistant,
		Model:     model,
		APIKey:    a.apiKey(),
	}
}

// open returns a pipeline for ref, either a path to a source file, which
// is imported first, or the identifier of a stored document.
func (a *app) open(ref string) (*pipeline.Pipeline, error) {
	if fi, err := os.Stat(ref); err == nil && fi.Mode().IsRegular() {
		imp, err := a.ws.Import(ref)
		if err != nil {
			return nil, err
		}
		return pipeline.New(imp.Handle, a.deps), nil
	}
	h, err := a.ws.Lookup(ref)
	if err != nil {
		return nil, err
	}
	return pipeline.New(h, a.deps), nil
}

// ready returns an indexed pipeline for ref, reusing an existing index and
// ingesting only when none exists yet.
func (a *app) ready(ctx context.Context, ref string) (*pipeline.Pipeline, error) {
	p, err := a.open(ref)
	if err != nil {
		return nil, err
	}
	err = p.Resume(ctx)
	if errors.Is(err, domain.ErrNotIngested) {
		_, err = p.Ingest(ctx)
	}
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	return p, nil
}

func (a *app) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			logger.Warn("Could not close generator", "error", err)
		}
	}
	a.closers = nil
}
