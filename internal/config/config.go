package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config contains all runtime settings for the support chat service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	AllowAnyOrigin bool

	MaxMessageLength   int
	HistoryLimit       int
	RetrievalTopK      int
	EmbeddingDim       int
	KnowledgeSeedFile  string
	StaticInstructions string

	LLMProvider        string
	LLMHTTPURL         string
	GoogleAPIKey       string
	GoogleModel        string
	GoogleEmbedModel   string
	LLMMaxTokens       int
	LLMTemperature     float64
	GenerationTimeout  time.Duration
	GenerationAttempts int
	GenerationBackoff  time.Duration

	EmbeddingProvider string

	RedisURL      string
	CacheDisabled bool
	CacheTTL      time.Duration

	DatabaseURL string
}

// Load reads environment variables and applies safe defaults.
// A .env file in the working directory is loaded first when present;
// variables already set in the environment win.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		BindAddr:           envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:   envOrDefault("APP_METRICS_NAMESPACE", "concierge"),
		AllowAnyOrigin:     false,
		MaxMessageLength:   2000,
		HistoryLimit:       10,
		RetrievalTopK:      3,
		EmbeddingDim:       768,
		KnowledgeSeedFile:  stringsTrimSpace("KNOWLEDGE_SEED_FILE"),
		StaticInstructions: stringsTrimSpace("STATIC_INSTRUCTIONS"),
		LLMProvider:        envOrDefault("LLM_PROVIDER", "auto"),
		LLMHTTPURL:         stringsTrimSpace("LLM_HTTP_URL"),
		GoogleAPIKey:       stringsTrimSpace("GOOGLE_API_KEY"),
		GoogleModel:        envOrDefault("GOOGLE_MODEL", "gemini-2.5-flash"),
		GoogleEmbedModel:   envOrDefault("GOOGLE_EMBED_MODEL", "text-embedding-004"),
		LLMMaxTokens:       500,
		LLMTemperature:     0.7,
		GenerationTimeout:  30 * time.Second,
		GenerationAttempts: 3,
		GenerationBackoff:  time.Second,
		EmbeddingProvider:  envOrDefault("EMBEDDING_PROVIDER", "auto"),
		RedisURL:           stringsTrimSpace("REDIS_URL"),
		CacheDisabled:      false,
		CacheTTL:           time.Hour,
		DatabaseURL:        stringsTrimSpace("DATABASE_URL"),
		ShutdownTimeout:    15 * time.Second,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxMessageLength, err = intFromEnv("MAX_MESSAGE_LENGTH", cfg.MaxMessageLength)
	if err != nil {
		return Config{}, err
	}
	cfg.HistoryLimit, err = intFromEnv("MESSAGE_HISTORY_LIMIT", cfg.HistoryLimit)
	if err != nil {
		return Config{}, err
	}
	cfg.RetrievalTopK, err = intFromEnv("RETRIEVAL_TOP_K", cfg.RetrievalTopK)
	if err != nil {
		return Config{}, err
	}
	cfg.EmbeddingDim, err = intFromEnv("EMBEDDING_DIM", cfg.EmbeddingDim)
	if err != nil {
		return Config{}, err
	}
	cfg.LLMMaxTokens, err = intFromEnv("LLM_MAX_TOKENS", cfg.LLMMaxTokens)
	if err != nil {
		return Config{}, err
	}
	cfg.LLMTemperature, err = floatFromEnv("LLM_TEMPERATURE", cfg.LLMTemperature)
	if err != nil {
		return Config{}, err
	}
	cfg.GenerationTimeout, err = durationFromEnv("GENERATION_TIMEOUT", cfg.GenerationTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.GenerationAttempts, err = intFromEnv("GENERATION_ATTEMPTS", cfg.GenerationAttempts)
	if err != nil {
		return Config{}, err
	}
	cfg.GenerationBackoff, err = durationFromEnv("GENERATION_BACKOFF", cfg.GenerationBackoff)
	if err != nil {
		return Config{}, err
	}
	cfg.CacheTTL, err = durationFromEnv("CACHE_TTL", cfg.CacheTTL)
	if err != nil {
		return Config{}, err
	}
	cfg.CacheDisabled, err = boolFromEnv("CACHE_DISABLED", cfg.CacheDisabled)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	if cfg.MaxMessageLength <= 0 {
		return Config{}, fmt.Errorf("MAX_MESSAGE_LENGTH must be positive")
	}
	if cfg.HistoryLimit <= 0 {
		return Config{}, fmt.Errorf("MESSAGE_HISTORY_LIMIT must be positive")
	}
	if cfg.RetrievalTopK <= 0 {
		return Config{}, fmt.Errorf("RETRIEVAL_TOP_K must be positive")
	}
	if cfg.EmbeddingDim <= 0 {
		return Config{}, fmt.Errorf("EMBEDDING_DIM must be positive")
	}
	if cfg.GenerationAttempts <= 0 {
		return Config{}, fmt.Errorf("GENERATION_ATTEMPTS must be positive")
	}
	if cfg.GenerationTimeout < time.Second {
		return Config{}, fmt.Errorf("GENERATION_TIMEOUT must be at least 1s")
	}
	if cfg.CacheTTL <= 0 {
		return Config{}, fmt.Errorf("CACHE_TTL must be positive")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return f, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
