// Package app builds every collaborator once from configuration and
// releases them together.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/custodia-labs/dossier/internal/adapters/driven/command"
	"github.com/custodia-labs/dossier/internal/adapters/driven/config/file"
	ollamaembed "github.com/custodia-labs/dossier/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/dossier/internal/adapters/driven/embedding/openai"
	"github.com/custodia-labs/dossier/internal/adapters/driven/fetch"
	"github.com/custodia-labs/dossier/internal/adapters/driven/llm/anthropic"
	ollamachat "github.com/custodia-labs/dossier/internal/adapters/driven/llm/ollama"
	openaichat "github.com/custodia-labs/dossier/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/dossier/internal/adapters/driven/metrics"
	"github.com/custodia-labs/dossier/internal/adapters/driven/ratelimit"
	"github.com/custodia-labs/dossier/internal/adapters/driven/schedule"
	"github.com/custodia-labs/dossier/internal/adapters/driven/storage/sqlite"
	vectormemory "github.com/custodia-labs/dossier/internal/adapters/driven/vector/memory"
	"github.com/custodia-labs/dossier/internal/adapters/driven/vector/qdrant"
	"github.com/custodia-labs/dossier/internal/adapters/driven/watch"
	"github.com/custodia-labs/dossier/internal/connectors"
	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/ports/driven"
	"github.com/custodia-labs/dossier/internal/core/ports/driving"
	"github.com/custodia-labs/dossier/internal/core/services"
	"github.com/custodia-labs/dossier/internal/logger"
	"github.com/custodia-labs/dossier/internal/normalisers"
	"github.com/custodia-labs/dossier/internal/normalisers/pdf"
	"github.com/custodia-labs/dossier/internal/postprocessors"
)

// PromptDir is the prompt template directory under the config directory.
const PromptDir = "prompts"

// App is the wired application.
type App struct {
	Config    domain.AppConfig
	ConfigDir string

	Store    *sqlite.Store
	Metrics  *metrics.Prometheus
	Registry *connectors.Registry

	Acquisition *services.Acquisition
	Extraction  *services.Extraction
	Index       *services.IndexService
	Ingestion   *services.IngestionService
	Search      *services.SearchService
	Documents   *services.DocumentService
	Chat        *services.ChatService
	Scheduler   *services.Scheduler

	closers []func() error
}

// Open loads <configDir>/config.toml and builds the application.
// An empty configDir means ~/.dossier.
func Open(ctx context.Context, configDir string) (*App, error) {
	store, err := file.NewConfigStore(configDir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg := file.LoadAppConfig(store)
	return New(ctx, cfg, filepath.Dir(store.Path()))
}

// New builds the application from cfg. Optional collaborators that cannot be
// built (an embedding provider without a key, an unreachable Redis) are
// logged and left out; the operations depending on them report unavailable.
func New(ctx context.Context, cfg domain.AppConfig, configDir string) (*App, error) {
	dataDir, err := filepath.Abs(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("resolve data dir: %w", err)
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	cfg.DataDir = dataDir

	a := &App{Config: cfg, ConfigDir: configDir}

	store, err := sqlite.NewStore(dataDir)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.Store = store
	a.closers = append(a.closers, store.Close)

	a.Metrics = metrics.New()
	runner := command.NewRunner()
	a.Registry = connectors.Defaults(&cfg, runner)

	httpFetcher := fetch.NewHTTPFetcher(fetch.Options{
		UserAgent:     cfg.Download.UserAgent,
		RespectRobots: cfg.Download.RespectRobots,
		Client:        &http.Client{},
	})
	fetcher := fetch.NewRouter(httpFetcher, fetch.NewAria2Fetcher(runner))

	a.Acquisition = services.NewAcquisition(
		cfg,
		a.Registry,
		store.DocumentStore(),
		store.SourceStateStore(),
		fetcher,
		httpFetcher,
		func(interval time.Duration) driven.Throttle { return ratelimit.NewThrottle(interval) },
		a.Metrics,
	)

	extractors := normalisers.Defaults(runner, pdf.Config{
		MinCharsPerPage: cfg.Extraction.MinCharsPerPage,
		OCRDPI:          cfg.Extraction.OCRDPI,
		Language:        cfg.Extraction.TesseractLang,
		MaxOCRPages:     cfg.Extraction.MaxOCRPages,
		PageTimeout:     cfg.Extraction.PageTimeout,
	})
	watcher := watch.New(watch.Config{SkipDirs: []string{services.ExtractedTextDir}})
	a.Extraction = services.NewExtraction(cfg, store.ExtractionStore(), extractors, watcher, a.Metrics)

	lexical := store.LexicalIndex(cfg.Lexical)
	a.Index = services.NewIndexService(lexical)
	a.Search = services.NewSearchService(lexical)
	a.Documents = services.NewDocumentService(dataDir, store.DocumentStore(), store.ExtractionStore(), store.StatsStore())

	chunker, err := buildChunker(cfg.Vector)
	if err != nil {
		a.Close()
		return nil, err
	}
	embedder := a.embedder(cfg.Embedding)
	index := a.vectorIndex(ctx, cfg.Vector, store.ChunkStore())
	a.Ingestion = services.NewIngestionService(store.VectorRecordStore(), chunker, embedder, index, cfg.Vector.BatchSize, a.Metrics)

	prompts, err := file.NewPromptStore(filepath.Join(configDir, PromptDir))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open prompts: %w", err)
	}
	a.Chat = services.NewChatService(cfg.Chat, embedder, index, a.providers(cfg), prompts, a.limiter(ctx, cfg.Chat), a.Metrics)

	var extraction driving.ExtractionService
	if cfg.Extraction.Enabled {
		extraction = a.Extraction
	}
	a.Scheduler = services.NewScheduler(
		cfg.Scheduler,
		store.SchedulerStore(),
		schedule.NewCron(),
		services.PipelineTasks(a.Acquisition, extraction, a.Index, a.Ingestion),
	)

	logger.Debug("App ready: data dir %s, %d source(s), vector backend %s", dataDir, len(a.Registry.List()), cfg.Vector.Backend)
	return a, nil
}

// Close releases every collaborator in reverse construction order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func buildChunker(cfg domain.VectorConfig) (driven.Chunker, error) {
	reg := postprocessors.NewRegistry()
	postprocessors.RegisterDefaults(reg)
	chunker, err := reg.Build("chunker", map[string]any{
		"chunk_size": cfg.ChunkSize,
		"overlap":    cfg.ChunkOverlap,
	})
	if err != nil {
		return nil, fmt.Errorf("build chunker: %w", err)
	}
	return chunker, nil
}

// embedder returns nil when the configured provider cannot be built.
func (a *App) embedder(cfg domain.EmbeddingConfig) driven.EmbeddingService {
	switch cfg.Provider {
	case domain.ProviderOllama:
		svc, err := ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		})
		if err != nil {
			logger.Warn("Embedding provider ollama unavailable: %v", err)
			return nil
		}
		a.closers = append(a.closers, svc.Close)
		return svc
	case domain.ProviderOpenAI:
		svc, err := openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		})
		if err != nil {
			logger.Warn("Embedding provider openai unavailable: %v", err)
			return nil
		}
		a.closers = append(a.closers, svc.Close)
		return svc
	default:
		logger.Warn("Unknown embedding provider %q", cfg.Provider)
		return nil
	}
}

// vectorIndex returns nil when the configured backend cannot be built.
// The memory backend keeps its chunks in the store so that they survive
// restarts along with the vector_documents rows.
func (a *App) vectorIndex(ctx context.Context, cfg domain.VectorConfig, chunks driven.ChunkStore) driven.VectorIndex {
	switch cfg.Backend {
	case domain.VectorBackendMemory:
		idx, err := vectormemory.Open(ctx, chunks)
		if err != nil {
			logger.Warn("Vector index unavailable: %v", err)
			return nil
		}
		a.closers = append(a.closers, idx.Close)
		return idx
	case domain.VectorBackendQdrant:
		idx, err := qdrant.New(qdrant.Config{Addr: cfg.QdrantAddr, Collection: cfg.Collection})
		if err != nil {
			logger.Warn("Vector index unavailable: %v", err)
			return nil
		}
		a.closers = append(a.closers, idx.Close)
		return idx
	default:
		logger.Warn("Unknown vector backend %q", cfg.Backend)
		return nil
	}
}

// providers builds every chat provider that has the credentials it needs.
// Ollama needs none.
func (a *App) providers(cfg domain.AppConfig) []driven.ChatProvider {
	var out []driven.ChatProvider

	if pc := cfg.Providers[domain.ProviderAnthropic]; pc.APIKey != "" {
		p, err := anthropic.New(anthropic.Config{APIKey: pc.APIKey, BaseURL: pc.BaseURL, Model: pc.Model})
		if err != nil {
			logger.Warn("Chat provider anthropic unavailable: %v", err)
		} else {
			a.closers = append(a.closers, p.Close)
			out = append(out, p)
		}
	}
	if pc := cfg.Providers[domain.ProviderOpenAI]; pc.APIKey != "" {
		p, err := openaichat.New(openaichat.Config{APIKey: pc.APIKey, BaseURL: pc.BaseURL, Model: pc.Model})
		if err != nil {
			logger.Warn("Chat provider openai unavailable: %v", err)
		} else {
			a.closers = append(a.closers, p.Close)
			out = append(out, p)
		}
	}
	pc := cfg.Providers[domain.ProviderOllama]
	p, err := ollamachat.New(ollamachat.Config{BaseURL: pc.BaseURL, Model: pc.Model})
	if err != nil {
		logger.Warn("Chat provider ollama unavailable: %v", err)
	} else {
		a.closers = append(a.closers, p.Close)
		out = append(out, p)
	}
	return out
}

// limiter falls back to the in-process limiter when Redis is unreachable.
func (a *App) limiter(ctx context.Context, cfg domain.ChatConfig) driven.CallerLimiter {
	if cfg.Limiter == domain.LimiterRedis {
		l, err := ratelimit.NewRedisLimiter(ctx, ratelimit.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   "dossier:chat",
			Limit:    cfg.RateLimit,
			Window:   cfg.RateWindow,
		})
		if err == nil {
			a.closers = append(a.closers, l.Close)
			return l
		}
		logger.Warn("Redis limiter unavailable, using in-process limiter: %v", err)
	}
	return ratelimit.NewMemoryLimiter(cfg.RateLimit, cfg.RateWindow)
}
