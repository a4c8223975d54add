// Package anthropic provides a streaming chat provider using the Anthropic Messages API.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/dossier/internal/adapters/driven/llm"
	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/ports/driven"
)

// Ensure Provider implements the interface.
var _ driven.ChatProvider = (*Provider)(nil)

// Default configuration values.
const (
	DefaultBaseURL   = "https://api.anthropic.com"
	DefaultModel     = "claude-sonnet-4-5-20250929"
	DefaultTimeout   = 5 * time.Minute
	DefaultMaxTokens = 2048

	anthropicVersion = "2023-06-01"
)

// Config holds configuration for the Anthropic provider.
type Config struct {
	// APIKey is the Anthropic API key (required).
	APIKey string

	BaseURL string
	Model   string

	// Timeout bounds a whole streamed response.
	Timeout time.Duration
}

// Provider streams completions from the Messages API.
type Provider struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

type messagesRequest struct {
	Model       string            `json:"model"`
	Messages    []messagesMessage `json:"messages"`
	MaxTokens   int               `json:"max_tokens"`
	System      string            `json:"system,omitempty"`
	Temperature float64           `json:"temperature,omitempty"`
	Stream      bool              `json:"stream"`
}

type messagesMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// streamEvent covers the event payloads the stream reader acts on.
type streamEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// errStreamDone stops the event reader at message_stop.
var errStreamDone = errors.New("stream done")

// New creates an Anthropic provider.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: anthropic API key is required", domain.ErrProviderUnavailable)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Provider{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
	}, nil
}

// Name returns "anthropic".
func (p *Provider) Name() string {
	return domain.ProviderAnthropic
}

// Stream posts a streaming Messages request and forwards text deltas to fn.
func (p *Provider) Stream(ctx context.Context, req driven.ChatCompletion, fn func(delta string) error) error {
	body := messagesRequest{
		Model:       p.model,
		MaxTokens:   req.MaxTokens,
		System:      req.System,
		Temperature: req.Temperature,
		Stream:      true,
	}
	if body.MaxTokens <= 0 {
		body.MaxTokens = DefaultMaxTokens
	}
	for _, m := range req.Messages {
		if m.Role == domain.RoleSystem {
			continue
		}
		body.Messages = append(body.Messages, messagesMessage{Role: m.Role, Content: m.Content})
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/messages", bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	p.authorize(httpReq)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return &domain.ProviderError{Provider: p.Name(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return llm.ResponseError(p.Name(), resp)
	}

	err = llm.ReadEvents(resp.Body, func(_, data string) error {
		var ev streamEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			return fmt.Errorf("decode stream event: %w", err)
		}
		switch ev.Type {
		case "content_block_delta":
			if ev.Delta.Type == "text_delta" && ev.Delta.Text != "" {
				return fn(ev.Delta.Text)
			}
		case "error":
			msg := "stream error"
			if ev.Error != nil {
				msg = ev.Error.Message
			}
			return &domain.ProviderError{Provider: p.Name(), Err: errors.New(msg)}
		case "message_stop":
			return errStreamDone
		}
		return nil
	})
	if errors.Is(err, errStreamDone) {
		return nil
	}
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// ModelName returns the name of the model being used.
func (p *Provider) ModelName() string {
	return p.model
}

// Ping validates the API key against /v1/models without running inference.
func (p *Provider) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/v1/models", http.NoBody)
	if err != nil {
		return fmt.Errorf("create ping request: %w", err)
	}
	p.authorize(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return &domain.ProviderError{Provider: p.Name(), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return llm.ResponseError(p.Name(), resp)
	}
	return nil
}

// Close releases resources.
func (p *Provider) Close() error {
	return nil
}

func (p *Provider) authorize(req *http.Request) {
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
}
