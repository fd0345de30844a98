package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server   ServerConfig
	OpenAI   ProviderConfig
	Gemini   ProviderConfig
	Pipeline PipelineConfig
	Storage  StorageConfig
	Redis    RedisConfig
	Telegram TelegramConfig
	Slack    SlackConfig
	ErrorLog ErrorLogConfig
	Session  SessionConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CORSOrigins  []string
}

// ProviderConfig holds credentials and endpoint settings for one AI provider.
// An empty APIKey marks the provider as unavailable; the pipeline substitutes
// labeled fallbacks instead of calling it.
type ProviderConfig struct {
	APIKey  string //nolint:gosec // G117: provider credential config
	Model   string
	BaseURL string
}

// PipelineConfig bounds the orchestration pipeline.
type PipelineConfig struct {
	MaxRetries        int
	RetryBackoff      time.Duration
	CallTimeout       time.Duration
	MaxFeedbackCycles int

	// Reserved tuning knobs: loaded and validated but not read by any
	// control-flow decision yet.
	MinImprovementThreshold float64
	MinQualityThreshold     float64
	GoodQualityThreshold    float64
}

// StorageConfig holds conversation-record storage settings.
// BaseURL may use any afs scheme (s3://, gs://, file://); when empty only
// the local fallback directory is used.
type StorageConfig struct {
	BaseURL  string
	LocalDir string
}

// RedisConfig holds optional pub/sub settings. Empty Addr disables events.
type RedisConfig struct {
	Addr     string
	Password string //nolint:gosec // G117: Redis connection config
	DB       int
}

// TelegramConfig holds the optional Telegram bot settings.
type TelegramConfig struct {
	BotToken string
}

// SlackConfig holds the optional Slack integration settings.
type SlackConfig struct {
	BotToken      string
	SigningSecret string
}

// ErrorLogConfig holds error-record sink settings. An empty Path disables
// the durable sqlite log; the in-memory ring is always kept.
type ErrorLogConfig struct {
	Path        string
	HistorySize int
}

// SessionConfig holds in-memory session store settings.
type SessionConfig struct {
	TTL             time.Duration
	CleanupInterval time.Duration
}

// Load reads configuration from environment variables.
// Defaults are safe for local development; provider API keys must be set for
// real generation (without them the pipeline degrades to labeled fallbacks).
func Load() (*Config, error) {
	readTimeout, err := getEnvDuration("DUET_SERVER_READ_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	writeTimeout, err := getEnvDuration("DUET_SERVER_WRITE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	maxRetries, err := getEnvInt("DUET_MAX_API_RETRIES", 3)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	retryBackoff, err := getEnvDuration("DUET_RETRY_BACKOFF", time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	callTimeout, err := getEnvDuration("DUET_CALL_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	maxCycles, err := getEnvInt("DUET_MAX_FEEDBACK_CYCLES", 2)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	minImprovement, err := getEnvFloat("DUET_MIN_IMPROVEMENT_THRESHOLD", 10.0)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	minQuality, err := getEnvFloat("DUET_MIN_QUALITY_THRESHOLD", 70.0)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	goodQuality, err := getEnvFloat("DUET_GOOD_QUALITY_THRESHOLD", 85.0)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	redisDB, err := getEnvInt("DUET_REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	historySize, err := getEnvInt("DUET_ERROR_HISTORY_SIZE", 100)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	sessionTTL, err := getEnvDuration("DUET_SESSION_TTL", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	cleanupInterval, err := getEnvDuration("DUET_SESSION_CLEANUP_INTERVAL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	corsOrigins := getEnvList("DUET_CORS_ORIGINS", []string{"http://localhost:5173"})

	cfg := &Config{
		Server: ServerConfig{
			Addr:         getEnv("DUET_SERVER_ADDR", ":8080"),
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
			CORSOrigins:  corsOrigins,
		},
		OpenAI: ProviderConfig{
			APIKey:  getEnv("OPENAI_API_KEY", ""),
			Model:   getEnv("DUET_OPENAI_MODEL", "gpt-4-turbo"),
			BaseURL: getEnv("DUET_OPENAI_BASE_URL", "https://api.openai.com/v1"),
		},
		Gemini: ProviderConfig{
			APIKey:  getEnv("GEMINI_API_KEY", ""),
			Model:   getEnv("DUET_GEMINI_MODEL", "gemini-1.5-pro"),
			BaseURL: getEnv("DUET_GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		},
		Pipeline: PipelineConfig{
			MaxRetries:              maxRetries,
			RetryBackoff:            retryBackoff,
			CallTimeout:             callTimeout,
			MaxFeedbackCycles:       maxCycles,
			MinImprovementThreshold: minImprovement,
			MinQualityThreshold:     minQuality,
			GoodQualityThreshold:    goodQuality,
		},
		Storage: StorageConfig{
			BaseURL:  getEnv("DUET_STORAGE_BASE_URL", ""),
			LocalDir: getEnv("DUET_STORAGE_LOCAL_DIR", "logs/outputs"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("DUET_REDIS_ADDR", ""),
			Password: getEnv("DUET_REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Telegram: TelegramConfig{
			BotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		},
		Slack: SlackConfig{
			BotToken:      getEnv("DUET_SLACK_BOT_TOKEN", ""),
			SigningSecret: getEnv("DUET_SLACK_SIGNING_SECRET", ""),
		},
		ErrorLog: ErrorLogConfig{
			Path:        getEnv("DUET_ERROR_LOG_PATH", ""),
			HistorySize: historySize,
		},
		Session: SessionConfig{
			TTL:             sessionTTL,
			CleanupInterval: cleanupInterval,
		},
	}

	err = cfg.validate()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	return cfg, nil
}

// validate checks required fields and value bounds.
func (c *Config) validate() error {
	if c.Pipeline.MaxRetries < 1 {
		return fmt.Errorf("DUET_MAX_API_RETRIES must be >= 1, got %d", c.Pipeline.MaxRetries)
	}
	if c.Pipeline.MaxFeedbackCycles < 0 {
		return fmt.Errorf("DUET_MAX_FEEDBACK_CYCLES must be >= 0, got %d", c.Pipeline.MaxFeedbackCycles)
	}
	if c.Pipeline.RetryBackoff < 0 {
		return fmt.Errorf("DUET_RETRY_BACKOFF must be >= 0, got %s", c.Pipeline.RetryBackoff)
	}
	if c.Pipeline.CallTimeout <= 0 {
		return fmt.Errorf("DUET_CALL_TIMEOUT must be positive, got %s", c.Pipeline.CallTimeout)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("DUET_SERVER_READ_TIMEOUT must be positive, got %s", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("DUET_SERVER_WRITE_TIMEOUT must be positive, got %s", c.Server.WriteTimeout)
	}
	if c.ErrorLog.HistorySize < 1 {
		return fmt.Errorf("DUET_ERROR_HISTORY_SIZE must be >= 1, got %d", c.ErrorLog.HistorySize)
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("DUET_SESSION_TTL must be positive, got %s", c.Session.TTL)
	}
	if c.Session.CleanupInterval <= 0 {
		return fmt.Errorf("DUET_SESSION_CLEANUP_INTERVAL must be positive, got %s", c.Session.CleanupInterval)
	}
	if c.Storage.LocalDir == "" {
		return errors.New("DUET_STORAGE_LOCAL_DIR must not be empty")
	}

	if c.OpenAI.APIKey == "" {
		log.Warn().Msg("OPENAI_API_KEY is not set; planner calls will degrade to labeled fallbacks")
	}
	if c.Gemini.APIKey == "" {
		log.Warn().Msg("GEMINI_API_KEY is not set; executor/reviewer calls will degrade to labeled fallbacks")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as int: %w", key, v, err)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as float: %w", key, v, err)
	}
	return f, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as duration: %w", key, v, err)
	}
	return d, nil
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
