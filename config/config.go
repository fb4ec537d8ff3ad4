package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the SourceFinder service
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Sources   SourcesConfig   `mapstructure:"sources"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Sessions  SessionsConfig  `mapstructure:"sessions"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// LLMConfig contains the text-completion provider settings
type LLMConfig struct {
	Provider        string        `mapstructure:"provider"` // openai
	APIKey          string        `mapstructure:"api_key"`
	BaseURL         string        `mapstructure:"base_url"`
	CompletionModel string        `mapstructure:"completion_model"`
	Temperature     float64       `mapstructure:"temperature"`
	MaxTokens       int           `mapstructure:"max_tokens"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// SourcesConfig contains per-source credentials and limits. A source whose
// credential is empty is disabled at wiring time; the other sources are
// unaffected.
type SourcesConfig struct {
	Reddit   RedditConfig   `mapstructure:"reddit"`
	Twitter  TwitterConfig  `mapstructure:"twitter"`
	Web      WebConfig      `mapstructure:"web"`
	News     NewsConfig     `mapstructure:"news"`
	Academic AcademicConfig `mapstructure:"academic"`
}

// RedditConfig contains Reddit search settings
type RedditConfig struct {
	UserAgent  string `mapstructure:"user_agent"`
	MaxResults int    `mapstructure:"max_results"`
}

// TwitterConfig contains Twitter API v2 settings
type TwitterConfig struct {
	BearerToken string `mapstructure:"bearer_token"`
	MaxResults  int    `mapstructure:"max_results"`
}

// WebConfig contains web search and page-render settings
type WebConfig struct {
	SerperAPIKey  string        `mapstructure:"serper_api_key"`
	MaxResults    int           `mapstructure:"max_results"`
	RenderTopHits int           `mapstructure:"render_top_hits"`
	RenderTimeout time.Duration `mapstructure:"render_timeout"`
	RenderEnabled bool          `mapstructure:"render_enabled"`
}

// NewsConfig contains NewsAPI settings
type NewsConfig struct {
	APIKey     string `mapstructure:"api_key"`
	Endpoint   string `mapstructure:"endpoint"`
	MaxResults int    `mapstructure:"max_results"`
	DaysBack   int    `mapstructure:"days_back"`
}

// AcademicConfig contains arXiv search settings
type AcademicConfig struct {
	Endpoint   string `mapstructure:"endpoint"`
	MaxResults int    `mapstructure:"max_results"`
}

// RetrievalConfig controls the fan-out stage and the evidence budget
type RetrievalConfig struct {
	AdapterTimeout time.Duration `mapstructure:"adapter_timeout"`
	GlobalTimeout  time.Duration `mapstructure:"global_timeout"`
	PerKindLimit   int           `mapstructure:"per_kind_limit"`
	EvidenceBudget int           `mapstructure:"evidence_budget"` // characters
}

// SessionsConfig controls registry retention
type SessionsConfig struct {
	MaxSessions int           `mapstructure:"max_sessions"`
	Retention   time.Duration `mapstructure:"retention"`
	SweepCron   string        `mapstructure:"sweep_cron"`
	Store       string        `mapstructure:"store"` // inmemory or redis
}

// StorageConfig contains storage settings
type StorageConfig struct {
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig contains Redis connection settings
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// TelemetryConfig contains metrics settings
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("SOURCEFINDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Config file is optional - defaults plus env vars are a valid setup
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	overrideFromEnv(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("general.debug", false)
	v.SetDefault("general.log_level", "info")

	v.SetDefault("server.address", ":8000")

	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.completion_model", "gpt-4o-mini")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.max_tokens", 4096)
	v.SetDefault("llm.timeout", "60s")

	v.SetDefault("sources.reddit.user_agent", "SourceFinder/1.0")
	v.SetDefault("sources.reddit.max_results", 10)
	v.SetDefault("sources.twitter.max_results", 15)
	v.SetDefault("sources.web.max_results", 12)
	v.SetDefault("sources.web.render_top_hits", 2)
	v.SetDefault("sources.web.render_timeout", "15s")
	v.SetDefault("sources.web.render_enabled", false)
	v.SetDefault("sources.news.endpoint", "https://newsapi.org/v2")
	v.SetDefault("sources.news.max_results", 10)
	v.SetDefault("sources.news.days_back", 30)
	v.SetDefault("sources.academic.endpoint", "http://export.arxiv.org/api/query")
	v.SetDefault("sources.academic.max_results", 10)

	v.SetDefault("retrieval.adapter_timeout", "25s")
	v.SetDefault("retrieval.global_timeout", "45s")
	v.SetDefault("retrieval.per_kind_limit", 10)
	v.SetDefault("retrieval.evidence_budget", 12000)

	v.SetDefault("sessions.max_sessions", 256)
	v.SetDefault("sessions.retention", "24h")
	v.SetDefault("sessions.sweep_cron", "*/10 * * * *")
	v.SetDefault("sessions.store", "inmemory")

	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", 6379)
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.timeout", "5s")

	v.SetDefault("telemetry.enabled", true)
}

// overrideFromEnv overrides configuration with well-known environment
// variables for sensitive data
func overrideFromEnv(v *viper.Viper) {
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		v.Set("llm.api_key", apiKey)
	}
	if token := os.Getenv("TWITTER_BEARER_TOKEN"); token != "" {
		v.Set("sources.twitter.bearer_token", token)
	}
	if apiKey := os.Getenv("SERPER_API_KEY"); apiKey != "" {
		v.Set("sources.web.serper_api_key", apiKey)
	}
	if apiKey := os.Getenv("NEWS_API_KEY"); apiKey != "" {
		v.Set("sources.news.api_key", apiKey)
	}
	if ua := os.Getenv("REDDIT_USER_AGENT"); ua != "" {
		v.Set("sources.reddit.user_agent", ua)
	}

	if host := os.Getenv("REDIS_HOST"); host != "" {
		v.Set("storage.redis.host", host)
	}
	if port := os.Getenv("REDIS_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			v.Set("storage.redis.port", p)
		}
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		v.Set("storage.redis.password", password)
	}
}

// validateConfig validates the configuration
func validateConfig(config *Config) error {
	if config.Retrieval.PerKindLimit <= 0 {
		return fmt.Errorf("retrieval.per_kind_limit must be > 0")
	}
	if config.Retrieval.EvidenceBudget <= 0 {
		return fmt.Errorf("retrieval.evidence_budget must be > 0")
	}
	if config.Retrieval.AdapterTimeout > config.Retrieval.GlobalTimeout {
		config.Retrieval.AdapterTimeout = config.Retrieval.GlobalTimeout
	}
	switch config.Sessions.Store {
	case "inmemory", "redis":
	default:
		return fmt.Errorf("sessions.store must be inmemory or redis, got %q", config.Sessions.Store)
	}
	if config.Sessions.MaxSessions <= 0 {
		return fmt.Errorf("sessions.max_sessions must be > 0")
	}
	return nil
}
