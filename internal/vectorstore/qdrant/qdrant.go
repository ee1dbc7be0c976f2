// Package qdrant keeps vectors in a remote Qdrant collection. The index
// directory holds only a manifest naming the collection.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"docqa/internal/domain"
	"docqa/internal/vectorstore"
)

// ManifestName is the manifest file inside the index directory.
const ManifestName = "qdrant.yaml"

var (
	_ vectorstore.Backend = (*Backend)(nil)
	_ vectorstore.Store   = (*Storage)(nil)
	_ vectorstore.Dropper = (*Storage)(nil)
)

// Config contains connection details for a Qdrant server.
type Config struct {
	URL string
	// APIKey is sent as the api-key header when set.
	APIKey string
	// CollectionPrefix is prepended to the document identifier.
	CollectionPrefix string
	Timeout          time.Duration
}

type manifest struct {
	vectorstore.Meta `yaml:",inline"`
	URL              string `yaml:"url"`
	Collection       string `yaml:"collection"`
}

// Backend creates one collection per document.
type Backend struct {
	cfg    Config
	client *http.Client
}

// NewBackend returns a Qdrant backend. The URL must be set.
func NewBackend(cfg Config) *Backend {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	if cfg.CollectionPrefix == "" {
		cfg.CollectionPrefix = "docqa_"
	}
	return &Backend{cfg: cfg, client: &http.Client{Timeout: timeout}}
}

func (b *Backend) Name() string { return "qdrant" }

var unsafeCollection = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// Create makes the collection (cosine distance) and writes the manifest.
func (b *Backend) Create(ctx context.Context, dir string, meta vectorstore.Meta) (vectorstore.Store, error) {
	if meta.Dimension <= 0 {
		return nil, errors.New("invalid dimension")
	}
	s := &Storage{
		url:        b.cfg.URL,
		apiKey:     b.cfg.APIKey,
		collection: b.cfg.CollectionPrefix + unsafeCollection.ReplaceAllString(meta.Identifier, "_"),
		meta:       meta,
		client:     b.client,
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     meta.Dimension,
			"distance": "Cosine",
		},
	}
	if err := s.do(ctx, http.MethodPut, s.collectionURL(""), body, nil); err != nil {
		return nil, err
	}
	m := manifest{Meta: meta, URL: s.url, Collection: s.collection}
	data, err := yaml.Marshal(m)
	if err == nil {
		err = os.WriteFile(filepath.Join(dir, ManifestName), data, 0o644)
	}
	if err != nil {
		if derr := s.Drop(ctx); derr != nil {
			return nil, errors.Join(err, fmt.Errorf("dropping collection: %w", derr))
		}
		return nil, err
	}
	return s, nil
}

// Open reads the manifest; the collection itself is not touched.
func (b *Backend) Open(_ context.Context, dir string) (vectorstore.Store, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestName))
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	url := m.URL
	if b.cfg.URL != "" {
		url = b.cfg.URL
	}
	return &Storage{
		url:        url,
		apiKey:     b.cfg.APIKey,
		collection: m.Collection,
		meta:       m.Meta,
		client:     b.client,
	}, nil
}

// Storage is a minimal REST client to one Qdrant collection.
type Storage struct {
	url        string
	apiKey     string
	collection string
	meta       vectorstore.Meta
	client     *http.Client
	next       int
}

func (s *Storage) Meta() vectorstore.Meta { return s.meta }

// Add upserts points with ids derived from the collection and insertion order.
func (s *Storage) Add(ctx context.Context, units []domain.TextUnit, vectors [][]float64) error {
	if len(units) != len(vectors) {
		return errors.New("units and vectors length mismatch")
	}
	points := make([]map[string]any, len(units))
	for i := range units {
		id := uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s/%d", s.collection, s.next+i)))
		points[i] = map[string]any{
			"id":     id.String(),
			"vector": vectors[i],
			"payload": map[string]any{
				"seq":           s.next + i,
				"content":       units[i].Content,
				"position_kind": units[i].Position.Kind().String(),
				"position":      units[i].Position.Index(),
			},
		}
	}
	if err := s.do(ctx, http.MethodPut, s.collectionURL("/points?wait=true"), map[string]any{"points": points}, nil); err != nil {
		return err
	}
	s.next += len(units)
	return nil
}

func (s *Storage) Search(ctx context.Context, vector []float64, topK int) ([]vectorstore.Hit, error) {
	if topK <= 0 {
		topK = 5
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
		"with_vector":  true,
	}
	var resp struct {
		Result []struct {
			Score   float64   `json:"score"`
			Vector  []float64 `json:"vector"`
			Payload struct {
				Content      string `json:"content"`
				PositionKind string `json:"position_kind"`
				Position     int    `json:"position"`
			} `json:"payload"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodPost, s.collectionURL("/points/search"), req, &resp); err != nil {
		return nil, err
	}
	results := make([]vectorstore.Hit, 0, len(resp.Result))
	for _, r := range resp.Result {
		kind, err := domain.ParsePositionKind(r.Payload.PositionKind)
		if err != nil {
			return nil, err
		}
		unit := domain.TextUnit{Content: r.Payload.Content, Position: domain.NewPosition(kind, r.Payload.Position)}
		results = append(results, vectorstore.Hit{
			Record: vectorstore.Record{Unit: unit, Vector: r.Vector},
			Score:  r.Score,
		})
	}
	return results, nil
}

func (s *Storage) Count(ctx context.Context) (int, error) {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodPost, s.collectionURL("/points/count"), map[string]any{"exact": true}, &resp); err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

func (s *Storage) Close() error { return nil }

// Drop deletes the collection.
func (s *Storage) Drop(ctx context.Context) error {
	return s.do(ctx, http.MethodDelete, s.collectionURL(""), nil, nil)
}

func (s *Storage) collectionURL(suffix string) string {
	return fmt.Sprintf("%s/collections/%s%s", s.url, s.collection, suffix)
}

func (s *Storage) do(ctx context.Context, method, url string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant %s %s failed: %s", method, url, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
