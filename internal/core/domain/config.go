package domain

import "time"

// AppConfig is the typed application configuration.
type AppConfig struct {
	DataDir    string
	Download   DownloadConfig
	Sources    map[string]SourceConfig
	Extraction ExtractionConfig
	Lexical    LexicalConfig
	Vector     VectorConfig
	Embedding  EmbeddingConfig
	Chat       ChatConfig
	Providers  map[string]ProviderConfig
	Server     ServerConfig
	Scheduler  SchedulerConfig
}

// DownloadConfig configures the download engine.
type DownloadConfig struct {
	Timeout          time.Duration
	MaxRetries       int
	BackoffBase      time.Duration
	BackoffFactor    float64
	DefaultRateLimit time.Duration
	UserAgent        string
	MaxFileSize      int64
	Workers          int
	RespectRobots    bool
}

// SourceConfig holds per-source settings.
type SourceConfig struct {
	Enabled   bool
	RateLimit time.Duration
	APIToken  string
}

// ExtractionConfig configures the extraction engine.
type ExtractionConfig struct {
	Enabled         bool
	MinCharsPerPage int
	OCRDPI          int
	TesseractLang   string
	MaxOCRPages     int
	PageTimeout     time.Duration
	Workers         int
}

// LexicalConfig holds BM25 column weights and snippet size.
type LexicalConfig struct {
	TitleWeight   float64
	BodyWeight    float64
	SnippetTokens int
}

// VectorConfig selects and configures the vector index backend.
type VectorConfig struct {
	Backend      string
	QdrantAddr   string
	Collection   string
	ChunkSize    int
	ChunkOverlap int
	BatchSize    int
}

// EmbeddingConfig selects the embedding provider.
type EmbeddingConfig struct {
	Provider   string
	Model      string
	Dimensions int
	BaseURL    string
	APIKey     string
}

// ChatConfig configures the RAG orchestrator.
type ChatConfig struct {
	DefaultProvider string
	TopK            int
	HistoryTurns    int
	MaxTokens       int
	RateLimit       int
	RateWindow      time.Duration
	Limiter         string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
}

// ProviderConfig configures one chat provider.
type ProviderConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// ServerConfig configures the HTTP boundary.
type ServerConfig struct {
	Addr               string
	SearchRateLimit    int
	DocumentsRateLimit int
}

// Vector backends.
const (
	VectorBackendMemory = "memory"
	VectorBackendQdrant = "qdrant"
)

// Chat limiter backends.
const (
	LimiterMemory = "memory"
	LimiterRedis  = "redis"
)

// Provider names.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderOllama    = "ollama"
)

// DefaultAppConfig returns the documented defaults.
func DefaultAppConfig() AppConfig {
	return AppConfig{
		DataDir: "data",
		Download: DownloadConfig{
			Timeout:          120 * time.Second,
			MaxRetries:       3,
			BackoffBase:      time.Second,
			BackoffFactor:    2,
			DefaultRateLimit: 2 * time.Second,
			UserAgent:        "dossier/1.0 (public records research)",
			MaxFileSize:      500 << 20,
			Workers:          4,
			RespectRobots:    true,
		},
		Sources: map[string]SourceConfig{
			// The vault rejects automated clients.
			"fbi_vault": {Enabled: false},
		},
		Extraction: ExtractionConfig{
			Enabled:         true,
			MinCharsPerPage: 50,
			OCRDPI:          300,
			TesseractLang:   "eng",
			MaxOCRPages:     50,
			PageTimeout:     60 * time.Second,
			Workers:         2,
		},
		Lexical: LexicalConfig{
			TitleWeight:   1.0,
			BodyWeight:    1.0,
			SnippetTokens: 48,
		},
		Vector: VectorConfig{
			Backend:      VectorBackendMemory,
			QdrantAddr:   "localhost:6334",
			Collection:   "dossier_chunks",
			ChunkSize:    1000,
			ChunkOverlap: 200,
			BatchSize:    100,
		},
		Embedding: EmbeddingConfig{
			Provider:   ProviderOllama,
			Model:      "nomic-embed-text",
			Dimensions: 768,
		},
		Chat: ChatConfig{
			DefaultProvider: ProviderAnthropic,
			TopK:            8,
			HistoryTurns:    10,
			MaxTokens:       2048,
			RateLimit:       10,
			RateWindow:      time.Minute,
			Limiter:         LimiterMemory,
			RedisAddr:       "localhost:6379",
		},
		Providers: map[string]ProviderConfig{},
		Server: ServerConfig{
			Addr:               ":8000",
			SearchRateLimit:    30,
			DocumentsRateLimit: 60,
		},
		Scheduler: DefaultSchedulerConfig(),
	}
}

// SourceConfigFor returns the settings for a source, falling back to
// enabled with the default rate limit.
func (c *AppConfig) SourceConfigFor(name string) SourceConfig {
	sc, ok := c.Sources[name]
	if !ok {
		return SourceConfig{Enabled: true, RateLimit: c.Download.DefaultRateLimit}
	}
	if sc.RateLimit <= 0 {
		sc.RateLimit = c.Download.DefaultRateLimit
	}
	return sc
}
