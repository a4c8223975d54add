package file

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/custodia-labs/dossier/internal/core/domain"
	"github.com/custodia-labs/dossier/internal/core/ports/driven"
)

// Environment variables that override secrets and endpoints.
const (
	EnvAnthropicKey       = "ANTHROPIC_API_KEY"
	EnvOpenAIKey          = "OPENAI_API_KEY"
	EnvCourtListenerToken = "COURTLISTENER_TOKEN"
	EnvOllamaHost         = "OLLAMA_HOST"
	EnvDataDir            = "DOSSIER_DATA_DIR"
)

// LoadAppConfig maps the flattened keys of cfg onto domain.AppConfig,
// starting from domain.DefaultAppConfig. Unset keys keep their defaults.
// When data_dir is unset the data directory sits next to the config file.
func LoadAppConfig(cfg driven.ConfigStore) domain.AppConfig {
	c := domain.DefaultAppConfig()
	c.DataDir = filepath.Join(filepath.Dir(cfg.Path()), "data")
	setString(cfg, "data_dir", &c.DataDir)
	c.DataDir = expandHome(c.DataDir)

	d := &c.Download
	setDuration(cfg, "download.timeout", &d.Timeout)
	setInt(cfg, "download.max_retries", &d.MaxRetries)
	setDuration(cfg, "download.backoff_base", &d.BackoffBase)
	setFloat(cfg, "download.backoff_factor", &d.BackoffFactor)
	setDuration(cfg, "download.default_rate_limit", &d.DefaultRateLimit)
	setString(cfg, "download.user_agent", &d.UserAgent)
	if _, ok := cfg.Get("download.max_file_size"); ok {
		d.MaxFileSize = int64(cfg.GetInt("download.max_file_size"))
	}
	setInt(cfg, "download.workers", &d.Workers)
	setBool(cfg, "download.respect_robots", &d.RespectRobots)

	for _, name := range subtables(cfg, "sources.") {
		prefix := "sources." + name + "."
		sc, ok := c.Sources[name]
		if !ok {
			sc = domain.SourceConfig{Enabled: true}
		}
		setBool(cfg, prefix+"enabled", &sc.Enabled)
		setDuration(cfg, prefix+"rate_limit", &sc.RateLimit)
		setString(cfg, prefix+"api_token", &sc.APIToken)
		c.Sources[name] = sc
	}

	e := &c.Extraction
	setBool(cfg, "extraction.enabled", &e.Enabled)
	setInt(cfg, "extraction.min_chars_per_page", &e.MinCharsPerPage)
	setInt(cfg, "extraction.ocr_dpi", &e.OCRDPI)
	setString(cfg, "extraction.tesseract_lang", &e.TesseractLang)
	setInt(cfg, "extraction.max_ocr_pages", &e.MaxOCRPages)
	setDuration(cfg, "extraction.page_timeout", &e.PageTimeout)
	setInt(cfg, "extraction.workers", &e.Workers)

	setFloat(cfg, "lexical.title_weight", &c.Lexical.TitleWeight)
	setFloat(cfg, "lexical.body_weight", &c.Lexical.BodyWeight)
	setInt(cfg, "lexical.snippet_tokens", &c.Lexical.SnippetTokens)

	v := &c.Vector
	setString(cfg, "vector.backend", &v.Backend)
	setString(cfg, "vector.qdrant_addr", &v.QdrantAddr)
	setString(cfg, "vector.collection", &v.Collection)
	setInt(cfg, "vector.chunk_size", &v.ChunkSize)
	setInt(cfg, "vector.chunk_overlap", &v.ChunkOverlap)
	setInt(cfg, "vector.batch_size", &v.BatchSize)

	em := &c.Embedding
	setString(cfg, "embedding.provider", &em.Provider)
	setString(cfg, "embedding.model", &em.Model)
	setInt(cfg, "embedding.dimensions", &em.Dimensions)
	setString(cfg, "embedding.base_url", &em.BaseURL)
	setString(cfg, "embedding.api_key", &em.APIKey)

	ch := &c.Chat
	setString(cfg, "chat.default_provider", &ch.DefaultProvider)
	setInt(cfg, "chat.top_k", &ch.TopK)
	setInt(cfg, "chat.history_turns", &ch.HistoryTurns)
	setInt(cfg, "chat.max_tokens", &ch.MaxTokens)
	setInt(cfg, "chat.rate_limit", &ch.RateLimit)
	setDuration(cfg, "chat.rate_window", &ch.RateWindow)
	setString(cfg, "chat.limiter", &ch.Limiter)
	setString(cfg, "chat.redis_addr", &ch.RedisAddr)
	setString(cfg, "chat.redis_password", &ch.RedisPassword)
	setInt(cfg, "chat.redis_db", &ch.RedisDB)

	for _, name := range subtables(cfg, "providers.") {
		prefix := "providers." + name + "."
		pc := c.Providers[name]
		setString(cfg, prefix+"api_key", &pc.APIKey)
		setString(cfg, prefix+"model", &pc.Model)
		setString(cfg, prefix+"base_url", &pc.BaseURL)
		c.Providers[name] = pc
	}

	setString(cfg, "server.addr", &c.Server.Addr)
	setInt(cfg, "server.search_rate_limit", &c.Server.SearchRateLimit)
	setInt(cfg, "server.documents_rate_limit", &c.Server.DocumentsRateLimit)

	setBool(cfg, "scheduler.enabled", &c.Scheduler.Enabled)
	for _, id := range domain.TaskIDs {
		tc := c.Scheduler.GetTaskConfig(id)
		setBool(cfg, "scheduler."+id+".enabled", &tc.Enabled)
		setString(cfg, "scheduler."+id+".schedule", &tc.Schedule)
		c.Scheduler.TaskConfigs[id] = tc
	}

	applyEnv(&c)
	return c
}

func applyEnv(c *domain.AppConfig) {
	if dir := os.Getenv(EnvDataDir); dir != "" {
		c.DataDir = expandHome(dir)
	}
	envProvider(c, domain.ProviderAnthropic, EnvAnthropicKey, "")
	envProvider(c, domain.ProviderOpenAI, EnvOpenAIKey, "")
	envProvider(c, domain.ProviderOllama, "", EnvOllamaHost)

	if c.Embedding.APIKey == "" && c.Embedding.Provider == domain.ProviderOpenAI {
		c.Embedding.APIKey = c.Providers[domain.ProviderOpenAI].APIKey
	}
	if c.Embedding.BaseURL == "" && c.Embedding.Provider == domain.ProviderOllama {
		c.Embedding.BaseURL = c.Providers[domain.ProviderOllama].BaseURL
	}

	if token := os.Getenv(EnvCourtListenerToken); token != "" {
		sc := c.SourceConfigFor("courtlistener")
		sc.APIToken = token
		c.Sources["courtlistener"] = sc
	}
}

// envProvider fills a provider's key or base URL from the environment when
// the config file leaves it empty.
func envProvider(c *domain.AppConfig, name, keyEnv, urlEnv string) {
	pc := c.Providers[name]
	if keyEnv != "" && pc.APIKey == "" {
		pc.APIKey = os.Getenv(keyEnv)
	}
	if urlEnv != "" && pc.BaseURL == "" {
		pc.BaseURL = os.Getenv(urlEnv)
	}
	if pc != (domain.ProviderConfig{}) {
		c.Providers[name] = pc
	}
}

// subtables returns the distinct table names directly under prefix.
func subtables(cfg driven.ConfigStore, prefix string) []string {
	seen := map[string]bool{}
	var names []string
	for _, key := range cfg.Keys(prefix) {
		rest := strings.TrimPrefix(key, prefix)
		name, _, ok := strings.Cut(rest, ".")
		if !ok || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

func setString(cfg driven.ConfigStore, key string, dst *string) {
	if v, ok := cfg.Get(key); ok {
		if s, ok := v.(string); ok {
			*dst = s
		}
	}
}

func setInt(cfg driven.ConfigStore, key string, dst *int) {
	if _, ok := cfg.Get(key); ok {
		*dst = cfg.GetInt(key)
	}
}

func setFloat(cfg driven.ConfigStore, key string, dst *float64) {
	if _, ok := cfg.Get(key); ok {
		*dst = cfg.GetFloat(key)
	}
}

func setBool(cfg driven.ConfigStore, key string, dst *bool) {
	if v, ok := cfg.Get(key); ok {
		if b, ok := v.(bool); ok {
			*dst = b
		}
	}
}

func setDuration(cfg driven.ConfigStore, key string, dst *time.Duration) {
	if d, ok := cfg.GetDuration(key); ok {
		*dst = d
	}
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
