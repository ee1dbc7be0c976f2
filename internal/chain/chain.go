// Package chain composes retrieval, a fixed prompt and a generator into a
// single question-to-streamed-answer operation.
package chain

import (
	"context"
	"errors"
	"strings"
	"text/template"

	"docqa/internal/domain"
	"docqa/internal/generation"
	"docqa/internal/logger"
)

const promptText = `You are an assistant for {{.Assistant}}. Use the retrieved context to answer questions.
If you don't know the answer, say so.
Always answer in a professional tone.
Question: {{.Question}}
Context: {{.Context}}
Answer:`

var promptTemplate = template.Must(template.New("answer").Parse(promptText))

type promptData struct {
	Assistant string
	Question  string
	Context   string
}

// RenderPrompt binds the template fields.
func RenderPrompt(assistant, question, context string) (string, error) {
	var b strings.Builder
	if err := promptTemplate.Execute(&b, promptData{Assistant: assistant, Question: question, Context: context}); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Builder produces chains for a generator backend.
type Builder struct {
	factory generation.Factory
}

// NewBuilder returns a Builder creating generators with factory.
func NewBuilder(factory generation.Factory) *Builder {
	return &Builder{factory: factory}
}

// Build binds retriever, assistant role and model. The generator is created
// here so a bad key or model fails before any question is asked.
func (b *Builder) Build(retriever domain.Retriever, assistant, model, apiKey string) (*Chain, error) {
	gen, err := b.factory(apiKey, model)
	if err != nil {
		logger.Error("Error using RAG chain", "model", model, "error", err)
		return nil, domain.E(domain.KindGenerationFailure, "build chain", err)
	}
	logger.Info("RAG chain created", "model", model, "generator", gen.Name())
	return &Chain{retriever: retriever, generator: gen, assistant: assistant}, nil
}

// Chain answers questions. It holds no state between runs.
type Chain struct {
	retriever domain.Retriever
	generator generation.Generator
	assistant string
}

// Answer is the result of one Run: the retrieved passages and the answer
// text as it is generated.
type Answer struct {
	Sources []domain.TextUnit
	Stream  *generation.Stream
}

// Run retrieves passages for question verbatim, renders the prompt and
// opens the generation stream. An empty retrieval fails with
// ErrEmptyIndex rather than asking the model without context.
func (c *Chain) Run(ctx context.Context, question string) (*Answer, error) {
	units, err := c.retriever.Retrieve(ctx, question)
	if err != nil {
		return nil, domain.E(domain.KindGenerationFailure, "retrieve", err)
	}
	if len(units) == 0 {
		return nil, domain.E(domain.KindEmptyIndex, "retrieve", errors.New("no passages retrieved"))
	}
	prompt, err := RenderPrompt(c.assistant, question, domain.JoinContent(units))
	if err != nil {
		return nil, domain.E(domain.KindGenerationFailure, "render prompt", err)
	}
	logger.Debug("Running RAG chain", "sources", len(units), "prompt_chars", len(prompt))
	stream, err := c.generator.Complete(ctx, prompt, generation.Options{})
	if err != nil {
		var de *domain.Error
		if errors.As(err, &de) {
			return nil, err
		}
		return nil, domain.E(domain.KindGenerationFailure, "complete", err)
	}
	return &Answer{Sources: units, Stream: stream}, nil
}
