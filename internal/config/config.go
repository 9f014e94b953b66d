package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Provider selects the LLM binding.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

type Config struct {
	Port string

	// Service auth
	APIKey string

	// LLM
	Provider     string
	OpenAIAPIKey string
	OpenAIModel  string
	GeminiAPIKey string
	GeminiModel  string

	// Market data
	EODHDAPIKey string

	// Upload limits
	MaxUploadBytes int64

	// Document context limits
	MaxImages       int
	MaxContextChars int
	AttachImages    int

	// Timeouts
	LLMTimeout     time.Duration
	ExtractTimeout time.Duration
	MarketTimeout  time.Duration

	// Session registry
	SessionTTL  time.Duration
	MaxSessions int
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8091"),

		APIKey: os.Getenv("FINLENS_API_KEY"),

		Provider:     envOr("LLM_PROVIDER", ProviderOpenAI),
		OpenAIAPIKey: os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:  envOr("OPENAI_MODEL", "gpt-4o"),
		GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		GeminiModel:  envOr("GEMINI_MODEL", "gemini-2.0-flash"),

		EODHDAPIKey: os.Getenv("EODHD_API_KEY"),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		MaxImages:       envInt("MAX_IMAGES", 5),
		MaxContextChars: envInt("MAX_CONTEXT_CHARS", 200000),
		AttachImages:    envInt("ATTACH_IMAGES", 5),

		LLMTimeout:     envDuration("LLM_TIMEOUT", 120*time.Second),
		ExtractTimeout: envDuration("EXTRACT_TIMEOUT", 60*time.Second),
		MarketTimeout:  envDuration("MARKET_TIMEOUT", 15*time.Second),

		SessionTTL:  envDuration("SESSION_TTL", 1*time.Hour),
		MaxSessions: envInt("MAX_SESSIONS", 100),
	}

	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.MaxImages < 0 {
		cfg.MaxImages = 5
	}
	if cfg.MaxContextChars <= 0 {
		cfg.MaxContextChars = 200000
	}
	if cfg.AttachImages < 0 {
		cfg.AttachImages = 5
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 1 * time.Hour
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = 100
	}

	return cfg
}

func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("FINLENS_API_KEY is required")
	}
	switch c.Provider {
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required with LLM_PROVIDER=openai")
		}
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required with LLM_PROVIDER=gemini")
		}
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q", c.Provider)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
