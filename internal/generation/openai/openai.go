// Package openai streams chat completions from an OpenAI-compatible
// endpoint (OpenRouter by default) over server-sent events.
package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"docqa/internal/domain"
	"docqa/internal/generation"
	"docqa/internal/logger"
)

const DefaultBaseURL = "https://openrouter.ai/api/v1"

// Config configures a Client.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	// HeaderTimeout bounds the wait for response headers.
	HeaderTimeout time.Duration
	// IdleTimeout bounds the wait between streamed fragments.
	IdleTimeout time.Duration
}

// Client is a generation.Generator over /chat/completions with stream=true.
type Client struct {
	cfg  Config
	http *http.Client
}

// New returns a client. Missing fields take defaults.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.HeaderTimeout <= 0 {
		cfg.HeaderTimeout = 60 * time.Second
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 90 * time.Second
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = cfg.HeaderTimeout
	return &Client{cfg: cfg, http: &http.Client{Transport: transport}}
}

func (c *Client) Name() string { return "openai:" + c.cfg.Model }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Stream      bool          `json:"stream"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends prompt as a single user message. The returned stream owns
// the response body.
func (c *Client) Complete(ctx context.Context, prompt string, opts generation.Options) (*generation.Stream, error) {
	if c.cfg.Model == "" {
		return nil, domain.E(domain.KindGenerationFailure, "openai complete", fmt.Errorf("no model configured"))
	}
	body := chatRequest{
		Model:     c.cfg.Model,
		Messages:  []chatMessage{{Role: "user", Content: prompt}},
		Stream:    true,
		MaxTokens: opts.MaxTokens,
	}
	if opts.Deterministic {
		zero := 0.0
		body.Temperature = &zero
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, domain.E(domain.KindGenerationFailure, "openai complete", err)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(streamCtx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		cancel()
		return nil, domain.E(domain.KindGenerationFailure, "openai complete", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	logger.Debug("Opening completion stream", "model", c.cfg.Model, "url", c.cfg.BaseURL, "prompt_chars", len(prompt))
	resp, err := c.http.Do(req)
	if err != nil {
		cancel()
		return nil, domain.E(domain.KindGenerationFailure, "openai complete", err)
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		cancel()
		return nil, domain.E(domain.KindGenerationFailure, "openai complete",
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(b))))
	}

	stream := generation.NewStream(streamCtx, c.cfg.IdleTimeout, func(ctx context.Context, emit generation.Emit) error {
		defer cancel()
		defer resp.Body.Close()
		stop := context.AfterFunc(ctx, func() { resp.Body.Close() })
		defer stop()
		if err := parseSSE(resp.Body, emit); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		return nil
	})
	return stream, nil
}

// parseSSE reads "data: " lines until [DONE] or end of body and emits
// non-empty content deltas.
func parseSSE(body io.Reader, emit generation.Emit) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			return nil
		}
		var chunk chatChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			logger.Debug("Skipping malformed stream chunk", "error", err)
			continue
		}
		if chunk.Error != nil {
			return domain.E(domain.KindGenerationFailure, "openai stream", fmt.Errorf("%s", chunk.Error.Message))
		}
		for _, ch := range chunk.Choices {
			if ch.Delta.Content == "" {
				continue
			}
			if err := emit(ch.Delta.Content); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return domain.E(domain.KindGenerationFailure, "openai stream", err)
	}
	return nil
}
