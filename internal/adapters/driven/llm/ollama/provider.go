// Package ollama provides a streaming chat provider backed by a local Ollama server.
package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/ports/driven"
)

// Ensure Provider implements the interface.
var _ driven.ChatProvider = (*Provider)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "llama3.2"
	DefaultTimeout = 5 * time.Minute
)

// Config holds configuration for the Ollama provider.
type Config struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Provider streams chat responses through the Ollama API client.
type Provider struct {
	client *api.Client
	model  string
}

// New creates an Ollama provider. No request is made until the first call.
func New(cfg Config) (*Provider, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("ollama: invalid base URL %q: %w", cfg.BaseURL, err)
	}
	return &Provider{
		client: api.NewClient(base, &http.Client{Timeout: cfg.Timeout}),
		model:  cfg.Model,
	}, nil
}

// Name returns "ollama".
func (p *Provider) Name() string {
	return domain.ProviderOllama
}

// Stream runs a streaming chat and forwards each message delta to fn.
func (p *Provider) Stream(ctx context.Context, req driven.ChatCompletion, fn func(delta string) error) error {
	messages := make([]api.Message, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, api.Message{Role: domain.RoleSystem, Content: req.System})
	}
	for _, m := range req.Messages {
		messages = append(messages, api.Message{Role: m.Role, Content: m.Content})
	}

	options := map[string]any{"temperature": req.Temperature}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}

	stream := true
	var fnErr error
	err := p.client.Chat(ctx, &api.ChatRequest{
		Model:    p.model,
		Messages: messages,
		Stream:   &stream,
		Options:  options,
	}, func(resp api.ChatResponse) error {
		if resp.Message.Content == "" {
			return nil
		}
		fnErr = fn(resp.Message.Content)
		return fnErr
	})
	if err == nil {
		return nil
	}
	if fnErr != nil {
		return fnErr
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var status api.StatusError
	if errors.As(err, &status) {
		return &domain.ProviderError{Provider: p.Name(), StatusCode: status.StatusCode, Err: errors.New(status.ErrorMessage)}
	}
	return &domain.ProviderError{Provider: p.Name(), Err: err}
}

// ModelName returns the name of the model being used.
func (p *Provider) ModelName() string {
	return p.model
}

// Ping checks that the server is up and the model is pulled.
func (p *Provider) Ping(ctx context.Context) error {
	if _, err := p.client.Show(ctx, &api.ShowRequest{Model: p.model}); err != nil {
		return &domain.ProviderError{Provider: p.Name(), Err: fmt.Errorf("model %s unavailable: %w", p.model, err)}
	}
	return nil
}

// Close releases resources.
func (p *Provider) Close() error {
	return nil
}
