package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port string

	// Auth
	APIKey string

	// AI rule derivation (OpenAI-compatible chat completions)
	AIEndpoint string
	AIAPIKey   string
	AIModel    string

	// Storage
	TemplatesDir  string
	OutputDir     string
	HistoryDBPath string

	// Worker pool
	WorkerCount  int
	MaxQueueSize int

	// Formatting
	BatchSize int

	// Upload limits
	MaxUploadBytes int64

	// Job state
	JobTTL time.Duration

	// PDF
	PDFFallbackPdftotext bool
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8070"),

		APIKey: os.Getenv("FORMULAAI_API_KEY"),

		AIEndpoint: envOr("AI_ENDPOINT", "https://api.deepseek.com/v1/chat/completions"),
		AIAPIKey:   os.Getenv("AI_API_KEY"),
		AIModel:    envOr("AI_MODEL", "deepseek-chat"),

		TemplatesDir:  envOr("TEMPLATES_DIR", "config/templates"),
		OutputDir:     envOr("OUTPUT_DIR", "output"),
		HistoryDBPath: envOr("HISTORY_DB", "data/history.db"),

		WorkerCount:  envInt("WORKER_COUNT", 4),
		MaxQueueSize: envInt("MAX_QUEUE_SIZE", 100),

		BatchSize: envInt("FORMAT_BATCH_SIZE", 50),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),

		PDFFallbackPdftotext: envBool("PDF_FALLBACK_PDFTOTEXT", true),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}

	return cfg
}

func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("FORMULAAI_API_KEY is required")
	}
	// AI_API_KEY is optional: without it, intent text is rejected but
	// template and override formatting still work.
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

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
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
