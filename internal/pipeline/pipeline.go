// Package pipeline orchestrates loading, indexing, summarization, answering
// and highlighting for one document.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"docqa/internal/chain"
	"docqa/internal/domain"
	"docqa/internal/highlight"
	"docqa/internal/index"
	"docqa/internal/loader"
	"docqa/internal/logger"
	"docqa/internal/vectorstore"
)

// State is the per-document lifecycle stage.
type State int

const (
	StateUnprocessed State = iota
	StateIndexed
	StateAnsweringReady
)

func (s State) String() string {
	switch s {
	case StateUnprocessed:
		return "unprocessed"
	case StateIndexed:
		return "indexed"
	case StateAnsweringReady:
		return "answering-ready"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Loader extracts text units from a source file.
type Loader interface {
	Load(ctx context.Context, path string) ([]domain.TextUnit, error)
}

// Summarizer summarizes a document's full text.
type Summarizer interface {
	Summarize(ctx context.Context, fullText string) (domain.Summary, error)
}

// Deps are the collaborators of a Pipeline.
type Deps struct {
	Loader      Loader
	Indexes     *index.Manager
	Embedder    domain.Embedder
	Summarizer  Summarizer
	Chains      *chain.Builder
	Highlighter *highlight.Highlighter
	Retrieval   vectorstore.RetrieverOptions
}

// AnswerOptions selects the generation setup for one question.
type AnswerOptions struct {
	Assistant string
	Model     string
	APIKey    string
}

// Pipeline is the workflow of one document. Its methods are safe for
// concurrent use.
type Pipeline struct {
	handle domain.DocumentHandle
	deps   Deps
	tracer trace.Tracer

	mu      sync.Mutex
	state   State
	index   *index.Index
	summary *domain.Summary
}

// New returns an unprocessed pipeline for handle.
func New(handle domain.DocumentHandle, deps Deps) *Pipeline {
	return &Pipeline{
		handle: handle,
		deps:   deps,
		tracer: otel.Tracer("docqa/pipeline"),
	}
}

func (p *Pipeline) Handle() domain.DocumentHandle { return p.handle }

// State returns the current lifecycle stage.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Summary returns the summary of the last successful Ingest.
func (p *Pipeline) Summary() (domain.Summary, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.summary == nil {
		return domain.Summary{}, false
	}
	return *p.summary, true
}

// Ingest loads the source, gets or builds its index and summarizes it.
// Index and summary are committed together: on failure the pipeline keeps
// its previous state and an index built by this call is removed.
func (p *Pipeline) Ingest(ctx context.Context) (domain.Summary, error) {
	ctx, span := p.start(ctx, "pipeline.ingest")
	defer span.End()

	p.mu.Lock()
	defer p.mu.Unlock()

	logger.Info("Ingesting document", "document", p.handle.Identifier, "path", p.handle.SourcePath)
	units, err := p.deps.Loader.Load(ctx, p.handle.SourcePath)
	if err != nil {
		return domain.Summary{}, fail(span, err)
	}
	span.SetAttributes(attribute.Int("units", len(units)))

	var (
		idx     *index.Index
		summary domain.Summary
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		idx, err = p.deps.Indexes.GetOrBuild(gctx, units, p.handle, p.deps.Embedder)
		return err
	})
	g.Go(func() error {
		var err error
		summary, err = p.deps.Summarizer.Summarize(gctx, domain.JoinContent(units))
		return err
	})
	if err := g.Wait(); err != nil {
		if idx != nil {
			p.rollback(idx)
		}
		logger.Error("Error in ingest pipeline", "document", p.handle.Identifier, "error", err)
		return domain.Summary{}, fail(span, err)
	}

	span.SetAttributes(attribute.Bool("index.built", idx.Built()))
	if p.index != nil {
		_ = p.index.Close()
	}
	p.index = idx
	p.summary = &summary
	p.state = StateIndexed
	logger.Info("Document ingested", "document", p.handle.Identifier, "index_built", idx.Built())
	return summary, nil
}

func (p *Pipeline) rollback(idx *index.Index) {
	built := idx.Built()
	if err := idx.Close(); err != nil {
		logger.Warn("Could not close index during rollback", "document", p.handle.Identifier, "error", err)
	}
	if !built {
		return
	}
	if err := p.deps.Indexes.Remove(context.Background(), p.handle); err != nil {
		logger.Warn("Could not remove index during rollback", "document", p.handle.Identifier, "error", err)
	}
}

// Resume reopens an existing index without loading or summarizing the
// source. The pipeline becomes Indexed with no summary.
func (p *Pipeline) Resume(ctx context.Context) error {
	ctx, span := p.start(ctx, "pipeline.resume")
	defer span.End()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateUnprocessed {
		return nil
	}
	if !index.Exists(p.handle.IndexPath) {
		return fail(span, domain.E(domain.KindNotIngested, "resume "+p.handle.Identifier, errors.New("no index on disk")))
	}
	idx, err := p.deps.Indexes.GetOrBuild(ctx, nil, p.handle, p.deps.Embedder)
	if err != nil {
		return fail(span, err)
	}
	p.index = idx
	p.state = StateIndexed
	logger.Info("Resumed document from existing index", "document", p.handle.Identifier)
	return nil
}

// Answer builds a chain over the current index for opts and runs it. Each
// call builds a fresh chain; answers are never cached.
func (p *Pipeline) Answer(ctx context.Context, question string, opts AnswerOptions) (*chain.Answer, error) {
	ctx, span := p.start(ctx, "pipeline.answer", attribute.String("model", opts.Model))
	defer span.End()

	p.mu.Lock()
	if p.state == StateUnprocessed {
		p.mu.Unlock()
		return nil, fail(span, domain.E(domain.KindNotIngested, "answer "+p.handle.Identifier, errors.New("document has not been ingested")))
	}
	retriever := p.index.Retriever(p.deps.Retrieval)
	p.mu.Unlock()

	c, err := p.deps.Chains.Build(retriever, opts.Assistant, opts.Model, opts.APIKey)
	if err != nil {
		return nil, fail(span, err)
	}
	p.mu.Lock()
	if p.state == StateIndexed {
		p.state = StateAnsweringReady
	}
	p.mu.Unlock()

	ans, err := c.Run(ctx, question)
	if err != nil {
		logger.Error("Error answering question", "document", p.handle.Identifier, "error", err)
		return nil, fail(span, err)
	}
	span.SetAttributes(attribute.Int("sources", len(ans.Sources)))
	return ans, nil
}

// Highlight marks units in the source PDF and writes outputPath.
func (p *Pipeline) Highlight(ctx context.Context, units []domain.TextUnit, outputPath string) (highlight.Result, error) {
	ctx, span := p.start(ctx, "pipeline.highlight")
	defer span.End()

	if f, err := loader.DetectFormat(p.handle.SourcePath); err != nil || f != loader.FormatPDF {
		return highlight.Result{}, fail(span, domain.E(domain.KindHighlightFailure, "highlight "+p.handle.Identifier,
			errors.New("highlighting needs a PDF source")))
	}
	res, err := p.deps.Highlighter.Highlight(ctx, p.handle.SourcePath, units, outputPath)
	if err != nil {
		return res, fail(span, err)
	}
	span.SetAttributes(attribute.Int("annotations", res.Annotations))
	return res, nil
}

// Close releases the index. The pipeline returns to Unprocessed.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var err error
	if p.index != nil {
		err = p.index.Close()
		p.index = nil
	}
	p.summary = nil
	p.state = StateUnprocessed
	return err
}

func (p *Pipeline) start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("document", p.handle.Identifier))
	return p.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
