package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/ports/driven"
	"github.com/custodia-labs/dossier/internal/core/ports/driving"
	"github.com/custodia-labs/dossier/internal/logger"
)

// Ensure ChatService implements the interface.
var _ driving.ChatService = (*ChatService)(nil)

// Chat defaults.
const (
	DefaultTopK         = 8
	DefaultHistoryTurns = 10
	DefaultMaxTokens    = 2048
	chatTemperature     = 0.2
	excerptSeparator    = "\n\n---\n\n"
)

// errConsumerGone stops the provider stream once the client has left.
var errConsumerGone = errors.New("chat consumer gone")

// ChatService answers questions from retrieved document excerpts and
// streams the answer as events.
type ChatService struct {
	cfg       domain.ChatConfig
	embedder  driven.EmbeddingService
	index     driven.VectorIndex
	providers map[string]driven.ChatProvider
	prompts   driven.PromptStore
	limiter   driven.CallerLimiter
	metrics   driven.Metrics
}

// NewChatService creates the chat service. embedder and index may be nil,
// in which case every stream ends in an error event. limiter and metrics
// may be nil.
func NewChatService(
	cfg domain.ChatConfig,
	embedder driven.EmbeddingService,
	index driven.VectorIndex,
	providers []driven.ChatProvider,
	prompts driven.PromptStore,
	limiter driven.CallerLimiter,
	metrics driven.Metrics,
) *ChatService {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.HistoryTurns < 0 {
		cfg.HistoryTurns = DefaultHistoryTurns
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}

	byName := make(map[string]driven.ChatProvider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	return &ChatService{
		cfg:       cfg,
		embedder:  embedder,
		index:     index,
		providers: byName,
		prompts:   prompts,
		limiter:   limiter,
		metrics:   metricsOrNop(metrics),
	}
}

// Providers lists the configured provider names.
func (s *ChatService) Providers() []string {
	names := make([]string, 0, len(s.providers))
	for name := range s.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Stream validates the request, charges the caller and starts answering.
func (s *ChatService) Stream(ctx context.Context, caller string, req domain.ChatRequest) (<-chan domain.ChatEvent, error) {
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		return nil, fmt.Errorf("%w: message is required", domain.ErrInvalidInput)
	}

	name := req.Provider
	if name == "" {
		name = s.cfg.DefaultProvider
	}
	provider, ok := s.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrProviderUnavailable, name)
	}

	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, caller)
		if err != nil {
			logger.Warn("Chat limiter unavailable, allowing %s: %v", caller, err)
		} else if !allowed {
			return nil, domain.ErrRateLimited
		}
	}

	out := make(chan domain.ChatEvent)
	r := &chatRun{svc: s, provider: provider, out: out}
	r.transition(domain.ChatReceived)
	go r.run(ctx, req)
	return out, nil
}

// chatRun is the state of one streamed answer.
type chatRun struct {
	svc      *ChatService
	provider driven.ChatProvider
	out      chan<- domain.ChatEvent
}

func (r *chatRun) transition(state domain.ChatState) {
	logger.Debug("chat[%s]: %s", r.provider.Name(), state)
	r.svc.metrics.ChatTransition(r.provider.Name(), state)
}

// emit delivers ev unless ctx is done.
func (r *chatRun) emit(ctx context.Context, ev domain.ChatEvent) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case r.out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// fail ends the stream with an error event.
func (r *chatRun) fail(ctx context.Context, err error) {
	if ctx.Err() != nil {
		r.transition(domain.ChatCancelled)
		return
	}
	logger.Warn("Chat failed: %v", err)
	if r.emit(ctx, domain.ChatEvent{Type: domain.EventError, Error: err.Error()}) {
		r.transition(domain.ChatErrored)
	} else {
		r.transition(domain.ChatCancelled)
	}
}

func (r *chatRun) run(ctx context.Context, req domain.ChatRequest) {
	defer close(r.out)
	s := r.svc

	hits, err := r.retrieve(ctx, req.Message)
	if err != nil {
		if ctx.Err() != nil {
			r.transition(domain.ChatCancelled)
			return
		}
		if !r.emit(ctx, domain.ChatEvent{Type: domain.EventSources, Sources: []domain.Citation{}}) {
			r.transition(domain.ChatCancelled)
			return
		}
		r.fail(ctx, err)
		return
	}

	if !r.emit(ctx, domain.ChatEvent{Type: domain.EventSources, Sources: citations(hits)}) {
		r.transition(domain.ChatCancelled)
		return
	}

	completion, err := s.completion(req, hits)
	if err != nil {
		r.fail(ctx, err)
		return
	}

	r.transition(domain.ChatGenerating)
	err = r.provider.Stream(ctx, completion, func(delta string) error {
		if !r.emit(ctx, domain.ChatEvent{Type: domain.EventText, Text: delta}) {
			return errConsumerGone
		}
		return nil
	})
	if ctx.Err() != nil || errors.Is(err, errConsumerGone) {
		r.transition(domain.ChatCancelled)
		return
	}
	if err != nil {
		r.fail(ctx, err)
		return
	}

	if r.emit(ctx, domain.ChatEvent{Type: domain.EventDone}) {
		r.transition(domain.ChatCompleted)
	} else {
		r.transition(domain.ChatCancelled)
	}
}

// retrieve embeds the question and returns the nearest chunk of each of
// the top_k closest documents.
func (r *chatRun) retrieve(ctx context.Context, question string) ([]domain.VectorHit, error) {
	s := r.svc
	if s.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}
	if s.index == nil {
		return nil, domain.ErrVectorIndexUnavailable
	}

	r.transition(domain.ChatEmbeddingQuery)
	vec, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embedding question: %w", err)
	}

	r.transition(domain.ChatRetrieving)
	hits, err := s.index.Search(ctx, vec, 2*s.cfg.TopK)
	if err != nil {
		return nil, fmt.Errorf("searching vector index: %w", err)
	}
	return nearestPerDocument(hits, s.cfg.TopK), nil
}

// nearestPerDocument keeps the first (nearest) hit of each document, up to k.
func nearestPerDocument(hits []domain.VectorHit, k int) []domain.VectorHit {
	seen := make(map[int64]bool, len(hits))
	out := make([]domain.VectorHit, 0, min(k, len(hits)))
	for _, h := range hits {
		if seen[h.Chunk.DocumentID] {
			continue
		}
		seen[h.Chunk.DocumentID] = true
		out = append(out, h)
		if len(out) == k {
			break
		}
	}
	return out
}

func citations(hits []domain.VectorHit) []domain.Citation {
	out := make([]domain.Citation, len(hits))
	for i, h := range hits {
		out[i] = domain.Citation{
			Title:    h.Chunk.Title,
			Filename: h.Chunk.Filename,
			PageNum:  h.Chunk.PageNum,
			Source:   h.Chunk.Source,
			URL:      h.Chunk.URL,
			Distance: h.Distance,
		}
	}
	return out
}

// completion assembles the system prompt, the trimmed history and the
// question with its excerpts.
func (s *ChatService) completion(req domain.ChatRequest, hits []domain.VectorHit) (driven.ChatCompletion, error) {
	system, err := s.prompts.Load(driven.PromptChatSystem)
	if err != nil {
		return driven.ChatCompletion{}, fmt.Errorf("loading system prompt: %w", err)
	}

	excerpts := formatExcerpts(hits)
	if excerpts == "" {
		if excerpts, err = s.prompts.Load(driven.PromptNoContext); err != nil {
			return driven.ChatCompletion{}, fmt.Errorf("loading prompt: %w", err)
		}
	}
	wrapper, err := s.prompts.Load(driven.PromptChatContext)
	if err != nil {
		return driven.ChatCompletion{}, fmt.Errorf("loading context prompt: %w", err)
	}

	messages := trimHistory(req.History, s.cfg.HistoryTurns)
	messages = append(messages, driven.ChatMessage{
		Role:    domain.RoleUser,
		Content: strings.NewReplacer(
			driven.PlaceholderExcerpts, excerpts,
			driven.PlaceholderQuestion, req.Message,
		).Replace(wrapper),
	})

	return driven.ChatCompletion{
		System:      system,
		Messages:    messages,
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: chatTemperature,
	}, nil
}

func formatExcerpts(hits []domain.VectorHit) string {
	parts := make([]string, 0, len(hits))
	for i, h := range hits {
		title := h.Chunk.Title
		if title == "" {
			title = h.Chunk.Filename
		}
		parts = append(parts, fmt.Sprintf("[Source %d: %s, Page %d]\n%s", i+1, title, h.Chunk.PageNum, h.Chunk.Text))
	}
	return strings.Join(parts, excerptSeparator)
}

// trimHistory keeps the last n user/assistant turns.
func trimHistory(history []domain.ChatTurn, n int) []driven.ChatMessage {
	var kept []driven.ChatMessage
	for _, t := range history {
		if t.Role != domain.RoleUser && t.Role != domain.RoleAssistant {
			continue
		}
		if strings.TrimSpace(t.Content) == "" {
			continue
		}
		kept = append(kept, driven.ChatMessage{Role: t.Role, Content: t.Content})
	}
	if len(kept) > n {
		kept = kept[len(kept)-n:]
	}
	return kept
}
