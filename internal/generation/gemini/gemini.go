// Package gemini streams completions from Google's Gemini models.
package gemini

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"docqa/internal/domain"
	"docqa/internal/generation"
	"docqa/internal/logger"
)

const DefaultModel = "gemini-2.0-flash"

// Client is a generation.Generator backed by the Gemini API.
type Client struct {
	client *genai.Client
	model  string
	idle   time.Duration
}

// New connects with apiKey. An empty model selects DefaultModel.
func New(ctx context.Context, apiKey, model string, idle time.Duration) (*Client, error) {
	if apiKey == "" {
		return nil, domain.E(domain.KindGenerationFailure, "gemini client", errors.New("missing API key"))
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, domain.E(domain.KindGenerationFailure, "gemini client", err)
	}
	if model == "" {
		model = DefaultModel
	}
	return &Client{client: client, model: model, idle: idle}, nil
}

func (c *Client) Name() string { return "gemini:" + c.model }

// Complete starts a streaming generation. Errors from the first response
// surface through the stream.
func (c *Client) Complete(ctx context.Context, prompt string, opts generation.Options) (*generation.Stream, error) {
	m := c.client.GenerativeModel(c.model)
	if opts.Deterministic {
		m.SetTemperature(0)
		m.SetTopK(1)
	}
	if opts.MaxTokens > 0 {
		m.SetMaxOutputTokens(int32(opts.MaxTokens))
	}
	logger.Debug("Opening completion stream", "model", c.model, "prompt_chars", len(prompt))
	return generation.NewStream(ctx, c.idle, func(ctx context.Context, emit generation.Emit) error {
		it := m.GenerateContentStream(ctx, genai.Text(prompt))
		for {
			resp, err := it.Next()
			if errors.Is(err, iterator.Done) {
				return nil
			}
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return domain.E(domain.KindGenerationFailure, "gemini stream", err)
			}
			if text := responseText(resp); text != "" {
				if err := emit(text); err != nil {
					return err
				}
			}
		}
	}), nil
}

// Close releases the underlying client.
func (c *Client) Close() error { return c.client.Close() }

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String()
}
