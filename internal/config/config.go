package config

import (
	"fmt"
	"log"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone   = "UTC"
	configPathEnv     = "WEEKLY_INTEL_CONFIG"
	databaseDSNEnv    = "DATABASE_DSN"
	databaseDriverEnv = "DATABASE_DRIVER"
	openAIAPIKeyEnv   = "OPENAI_API_KEY"
	openAIModelEnv    = "OPENAI_MODEL"
	redisAddrEnv      = "REDIS_ADDR"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
	logLevelEnv       = "LOG_LEVEL"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Database      DatabaseConfig     `yaml:"database"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Run           RunConfig          `yaml:"run"`
	Sources       []SourceConfig     `yaml:"sources"`
	Embedding     EmbeddingConfig    `yaml:"embedding"`
	ML            MLConfig           `yaml:"ml"`
	Generation    GenerationConfig   `yaml:"generation"`
	Cache         CacheConfig        `yaml:"cache"`
	HTTP          HTTPConfig         `yaml:"http"`
	Notifications NotificationConfig `yaml:"notifications"`
}

// LoggingConfig selects slog level and handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// DatabaseConfig describes the SQL store.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // postgres or sqlite
	DSN    string `yaml:"dsn"`
}

// SchedulerConfig defines how often a run is triggered.
type SchedulerConfig struct {
	Interval   time.Duration  `yaml:"interval"`
	RunOnStart bool           `yaml:"runOnStart"`
	Timezone   string         `yaml:"timezone"`
	location   *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// RunConfig tunes a single workflow run.
type RunConfig struct {
	Topics           []TopicConfig `yaml:"topics"`
	WindowDays       int           `yaml:"windowDays"`
	TopN             int           `yaml:"topN"`
	SourceTimeout    time.Duration `yaml:"sourceTimeout"`
	RunTimeout       time.Duration `yaml:"runTimeout"`
	EnrichmentPolicy string        `yaml:"enrichmentPolicy"` // degrade or drop
	MinContentLength int           `yaml:"minContentLength"`
	TrustedSources   []string      `yaml:"trustedSources"`
}

// TopicConfig names one topic with optional keyword hints.
type TopicConfig struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// SourceConfig describes a single provider and the connector kind that reads it.
type SourceConfig struct {
	Name       string            `yaml:"name"`
	Kind       string            `yaml:"kind"` // arxiv, hackernews, rss
	URL        string            `yaml:"url"`
	Categories []CategoryConfig  `yaml:"categories"`
	Options    map[string]string `yaml:"options"`
	Enabled    *bool             `yaml:"enabled"`
}

// IsEnabled treats a missing flag as enabled.
func (s SourceConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// CategoryConfig holds the concrete endpoints to crawl (e.g., Arxiv category URLs).
type CategoryConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// EmbeddingConfig selects the embedding backend.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"` // openai, ml or none
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	APIKey     string `yaml:"apiKey"`
	BaseURL    string `yaml:"baseUrl"`
}

// MLConfig describes the HTTP inference service used for embeddings.
type MLConfig struct {
	InferenceURL string `yaml:"inferenceUrl"`
	APIKey       string `yaml:"apiKey"`
}

// GenerationConfig defines how to contact the chat completion API.
type GenerationConfig struct {
	Model        string  `yaml:"model"`
	APIKey       string  `yaml:"apiKey"`
	BaseURL      string  `yaml:"baseUrl"`
	SystemPrompt string  `yaml:"systemPrompt"`
	Temperature  float32 `yaml:"temperature"`
}

// CacheConfig points the embedding cache at Redis; an empty address disables it.
type CacheConfig struct {
	RedisAddr string        `yaml:"redisAddr"`
	Prefix    string        `yaml:"prefix"`
	TTL       time.Duration `yaml:"ttl"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		fileCfg, err := LoadFile(path)
		if err != nil {
			log.Printf("config: %v (falling back to defaults)", err)
		} else {
			cfg = mergeConfig(cfg, fileCfg)
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	if len(cfg.Sources) == 0 {
		cfg.Sources = defaultConfig().Sources
	}

	return cfg
}

// LoadFile parses one YAML file after ${VAR} expansion, without defaults.
func LoadFile(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(expandEnvVars(raw), &cfg); err != nil {
		return Config{}, fmt.Errorf("cannot parse %s: %w", path, err)
	}
	return cfg, nil
}

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment values.
func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		name, fallback, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(name)
		if val == "" && hasDefault {
			val = fallback
		}
		return []byte(val)
	})
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(databaseDriverEnv); v != "" {
		c.Database.Driver = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}

	if v := os.Getenv(openAIAPIKeyEnv); v != "" {
		c.Generation.APIKey = v
		if c.Embedding.APIKey == "" {
			c.Embedding.APIKey = v
		}
	}

	if v := os.Getenv(openAIModelEnv); v != "" {
		c.Generation.Model = v
	}

	if v := os.Getenv(redisAddrEnv); v != "" {
		c.Cache.RedisAddr = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	if override.Database.DSN != "" {
		base.Database.DSN = override.Database.DSN
	}
	if override.Database.Driver != "" {
		base.Database.Driver = override.Database.Driver
	}

	if override.Scheduler.Interval > 0 {
		base.Scheduler.Interval = override.Scheduler.Interval
	}
	if override.Scheduler.RunOnStart {
		base.Scheduler.RunOnStart = true
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}

	if len(override.Run.Topics) > 0 {
		base.Run.Topics = override.Run.Topics
	}
	if override.Run.WindowDays > 0 {
		base.Run.WindowDays = override.Run.WindowDays
	}
	if override.Run.TopN > 0 {
		base.Run.TopN = override.Run.TopN
	}
	if override.Run.SourceTimeout > 0 {
		base.Run.SourceTimeout = override.Run.SourceTimeout
	}
	if override.Run.RunTimeout > 0 {
		base.Run.RunTimeout = override.Run.RunTimeout
	}
	if override.Run.EnrichmentPolicy != "" {
		base.Run.EnrichmentPolicy = override.Run.EnrichmentPolicy
	}
	if override.Run.MinContentLength > 0 {
		base.Run.MinContentLength = override.Run.MinContentLength
	}
	if len(override.Run.TrustedSources) > 0 {
		base.Run.TrustedSources = override.Run.TrustedSources
	}

	if len(override.Sources) > 0 {
		base.Sources = override.Sources
	}

	if override.Embedding.Provider != "" {
		base.Embedding.Provider = override.Embedding.Provider
	}
	if override.Embedding.Model != "" {
		base.Embedding.Model = override.Embedding.Model
	}
	if override.Embedding.Dimensions > 0 {
		base.Embedding.Dimensions = override.Embedding.Dimensions
	}
	if override.Embedding.APIKey != "" {
		base.Embedding.APIKey = override.Embedding.APIKey
	}
	if override.Embedding.BaseURL != "" {
		base.Embedding.BaseURL = override.Embedding.BaseURL
	}

	if override.ML.InferenceURL != "" {
		base.ML.InferenceURL = override.ML.InferenceURL
	}
	if override.ML.APIKey != "" {
		base.ML.APIKey = override.ML.APIKey
	}

	if override.Generation.Model != "" {
		base.Generation.Model = override.Generation.Model
	}
	if override.Generation.APIKey != "" {
		base.Generation.APIKey = override.Generation.APIKey
	}
	if override.Generation.BaseURL != "" {
		base.Generation.BaseURL = override.Generation.BaseURL
	}
	if override.Generation.SystemPrompt != "" {
		base.Generation.SystemPrompt = override.Generation.SystemPrompt
	}
	if override.Generation.Temperature > 0 {
		base.Generation.Temperature = override.Generation.Temperature
	}

	if override.Cache.RedisAddr != "" {
		base.Cache.RedisAddr = override.Cache.RedisAddr
	}
	if override.Cache.Prefix != "" {
		base.Cache.Prefix = override.Cache.Prefix
	}
	if override.Cache.TTL > 0 {
		base.Cache.TTL = override.Cache.TTL
	}

	if override.HTTP.Addr != "" {
		base.HTTP.Addr = override.HTTP.Addr
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}

	return base
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging:   LoggingConfig{Level: "info", Format: "text"},
		Database:  DatabaseConfig{Driver: "sqlite", DSN: "file:weeklyintel.db?_pragma=busy_timeout(5000)"},
		Scheduler: SchedulerConfig{Interval: 7 * 24 * time.Hour, Timezone: defaultTimezone, location: tz},
		Run: RunConfig{
			Topics: []TopicConfig{
				{Name: "AI", Keywords: []string{"machine learning", "llm", "model"}},
				{Name: "startups", Keywords: []string{"funding", "founder"}},
			},
			WindowDays:       7,
			TopN:             10,
			SourceTimeout:    30 * time.Second,
			RunTimeout:       15 * time.Minute,
			EnrichmentPolicy: "degrade",
			MinContentLength: 50,
		},
		Embedding: EmbeddingConfig{
			Provider:   "openai",
			Model:      "text-embedding-3-small",
			Dimensions: 384,
		},
		ML: MLConfig{InferenceURL: "", APIKey: ""},
		Generation: GenerationConfig{
			Model:        "gpt-4o-mini",
			SystemPrompt: "You are a technology analyst writing concise weekly intelligence briefings.",
			Temperature:  0.3,
		},
		Cache: CacheConfig{Prefix: "weeklyintel:emb:", TTL: 30 * 24 * time.Hour},
		HTTP:  HTTPConfig{Addr: ":8080"},
		Notifications: NotificationConfig{
			Telegram: TelegramConfig{BotToken: "", ChatID: ""},
		},
		Sources: []SourceConfig{
			{Name: "hackernews", Kind: "hackernews", URL: "https://hn.algolia.com/api/v1/search_by_date"},
			{
				Name: "arxiv",
				Kind: "arxiv",
				Categories: []CategoryConfig{
					{Name: "cs.AI", URL: "https://export.arxiv.org/list/cs.AI/pastweek"},
					{Name: "cs.LG", URL: "https://export.arxiv.org/list/cs.LG/pastweek"},
				},
			},
			{Name: "techcrunch", Kind: "rss", URL: "https://techcrunch.com/feed/"},
		},
	}
}
