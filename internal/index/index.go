// Package index builds or reopens the persisted vector index of a document.
//
// An index directory either does not exist or holds a complete, flushed
// store. Builds happen in a staging directory next to the final path and
// are renamed into place only after every unit has been embedded and
// written.
package index

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"docqa/internal/domain"
	"docqa/internal/logger"
	"docqa/internal/vectorstore"
)

// Index is an opened vector index owned by one document.
type Index struct {
	handle   domain.DocumentHandle
	store    vectorstore.Store
	embedder domain.Embedder
	built    bool
}

// Store returns the underlying similarity store.
func (ix *Index) Store() vectorstore.Store { return ix.store }

// Built reports whether this call created the index rather than reopening it.
func (ix *Index) Built() bool { return ix.built }

// Handle returns the document the index belongs to.
func (ix *Index) Handle() domain.DocumentHandle { return ix.handle }

// Retriever returns a retriever over the index using the index's embedder.
func (ix *Index) Retriever(opts vectorstore.RetrieverOptions) *vectorstore.Retriever {
	return vectorstore.NewRetriever(ix.store, ix.embedder, opts)
}

// Close releases the store.
func (ix *Index) Close() error { return ix.store.Close() }

// Manager creates and reopens indexes through a Backend.
type Manager struct {
	backend vectorstore.Backend
	workers int
	locks   keyedMutex
}

// Option configures a Manager.
type Option func(*Manager)

// WithWorkers bounds the number of concurrent embedding calls in a build.
func WithWorkers(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.workers = n
		}
	}
}

// NewManager returns a Manager persisting through backend.
func NewManager(backend vectorstore.Backend, opts ...Option) *Manager {
	m := &Manager{backend: backend, workers: runtime.GOMAXPROCS(0)}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Exists reports whether an index directory is present at path.
func Exists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}

// GetOrBuild reopens the index at handle.IndexPath when it exists, ignoring
// units, or embeds units and persists a new index there. Calls for the same
// identifier are serialized.
func (m *Manager) GetOrBuild(ctx context.Context, units []domain.TextUnit, handle domain.DocumentHandle, embedder domain.Embedder) (*Index, error) {
	unlock := m.locks.lock(handle.Identifier)
	defer unlock()

	if Exists(handle.IndexPath) {
		logger.Info("Reopening vector index", "document", handle.Identifier, "path", handle.IndexPath, "backend", m.backend.Name())
		store, err := m.backend.Open(ctx, handle.IndexPath)
		if err != nil {
			logger.Error("Error while reopening vector index", "document", handle.Identifier, "error", err)
			return nil, domain.E(domain.KindIndexBuildFailure, "reopen index "+handle.Identifier, err)
		}
		if meta := store.Meta(); meta.Embedder != "" && meta.Embedder != embedder.Name() {
			logger.Warn("Index was built with a different embedder", "document", handle.Identifier,
				"built_with", meta.Embedder, "current", embedder.Name())
		}
		return &Index{handle: handle, store: store, embedder: embedder}, nil
	}

	logger.Info("Building vector index", "document", handle.Identifier, "units", len(units), "backend", m.backend.Name())
	if err := m.build(ctx, units, handle, embedder); err != nil {
		logger.Error("Error while building vector index", "document", handle.Identifier, "error", err)
		return nil, domain.E(domain.KindIndexBuildFailure, "build index "+handle.Identifier, err)
	}
	store, err := m.backend.Open(ctx, handle.IndexPath)
	if err != nil {
		return nil, domain.E(domain.KindIndexBuildFailure, "open built index "+handle.Identifier, err)
	}
	logger.Info("Vector index built", "document", handle.Identifier, "path", handle.IndexPath)
	return &Index{handle: handle, store: store, embedder: embedder, built: true}, nil
}

// Remove deletes the index of handle, including remote state, so the next
// GetOrBuild rebuilds it.
func (m *Manager) Remove(ctx context.Context, handle domain.DocumentHandle) error {
	unlock := m.locks.lock(handle.Identifier)
	defer unlock()

	if !Exists(handle.IndexPath) {
		return nil
	}
	if store, err := m.backend.Open(ctx, handle.IndexPath); err == nil {
		if d, ok := store.(vectorstore.Dropper); ok {
			if err := d.Drop(ctx); err != nil {
				logger.Warn("Could not drop remote index state", "document", handle.Identifier, "error", err)
			}
		}
		_ = store.Close()
	}
	return os.RemoveAll(handle.IndexPath)
}

func (m *Manager) build(ctx context.Context, units []domain.TextUnit, handle domain.DocumentHandle, embedder domain.Embedder) (err error) {
	if len(units) == 0 {
		return errors.New("no text units to index")
	}
	vectors, err := m.embedAll(ctx, units, embedder)
	if err != nil {
		return err
	}
	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) != dim || dim == 0 {
			return fmt.Errorf("embedding %d has dimension %d, want %d", i, len(v), dim)
		}
	}

	parent := filepath.Dir(handle.IndexPath)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return err
	}
	staging := filepath.Join(parent, ".staging-"+filepath.Base(handle.IndexPath)+"-"+uuid.NewString())
	if err := os.Mkdir(staging, 0o755); err != nil {
		return err
	}
	var store vectorstore.Store
	defer func() {
		if err == nil {
			return
		}
		if store != nil {
			if d, ok := store.(vectorstore.Dropper); ok {
				_ = d.Drop(context.WithoutCancel(ctx))
			}
			_ = store.Close()
		}
		_ = os.RemoveAll(staging)
	}()

	meta := vectorstore.Meta{Identifier: handle.Identifier, Embedder: embedder.Name(), Dimension: dim}
	if store, err = m.backend.Create(ctx, staging, meta); err != nil {
		return err
	}
	if err = store.Add(ctx, units, vectors); err != nil {
		return err
	}
	if err = store.Close(); err != nil {
		return err
	}
	return os.Rename(staging, handle.IndexPath)
}

func (m *Manager) embedAll(ctx context.Context, units []domain.TextUnit, embedder domain.Embedder) ([][]float64, error) {
	vectors := make([][]float64, len(units))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)
	for i := range units {
		g.Go(func() error {
			v, err := embedder.Embed(gctx, units[i].Content)
			if err != nil {
				return fmt.Errorf("embed %s: %w", units[i].Position, err)
			}
			vectors[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// keyedMutex serializes work per key.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refMutex)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &refMutex{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
