package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dgallion1/mietdoc/internal/resolve"
)

type Config struct {
	Port string

	// Template store connection. Stored template routes are disabled when
	// StoreURL is empty.
	StoreURL    string
	StoreAPIKey string

	// Auth
	MietdocAPIKey string

	// Formatting
	Locale         string
	CurrencySymbol string

	// Bulk generation
	BulkConcurrency int
	MaxEntities     int

	// Worker pool
	WorkerCount  int
	MaxQueueSize int

	// Upload limits
	MaxUploadBytes int64

	// Job state
	JobTTL time.Duration

	// Inject today's date as the datum context when a request has none.
	InjectToday bool

	// PDF
	PDFFallbackPdftotext bool
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8090"),

		StoreURL:    os.Getenv("STORE_URL"),
		StoreAPIKey: os.Getenv("STORE_API_KEY"),

		MietdocAPIKey: os.Getenv("MIETDOC_API_KEY"),

		Locale:         envOr("LOCALE", "de-DE"),
		CurrencySymbol: envOr("CURRENCY_SYMBOL", "€"),

		BulkConcurrency: envInt("BULK_CONCURRENCY", 4),
		MaxEntities:     envInt("MAX_ENTITIES", 1000),

		WorkerCount:  envInt("WORKER_COUNT", 2),
		MaxQueueSize: envInt("MAX_QUEUE_SIZE", 50),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 10485760), // 10MB

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),

		InjectToday: envBool("INJECT_TODAY", true),

		PDFFallbackPdftotext: envBool("PDF_FALLBACK_PDFTOTEXT", true),
	}

	if cfg.BulkConcurrency <= 0 {
		cfg.BulkConcurrency = 4
	}
	if cfg.MaxEntities <= 0 {
		cfg.MaxEntities = 1000
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 2
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 50
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10485760
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}

	return cfg
}

func (c Config) Validate() error {
	if c.MietdocAPIKey == "" {
		return fmt.Errorf("MIETDOC_API_KEY is required")
	}
	if !resolve.SupportedLocale(c.Locale) {
		return fmt.Errorf("LOCALE %q is not supported", c.Locale)
	}
	if c.StoreURL == "" && c.StoreAPIKey != "" {
		return fmt.Errorf("STORE_API_KEY is set but STORE_URL is empty")
	}
	return nil
}

// ResolveOptions returns the formatting options for the resolver.
func (c Config) ResolveOptions() resolve.Options {
	return resolve.Options{Locale: c.Locale, CurrencySymbol: c.CurrencySymbol}
}

// StoreEnabled reports whether a template store is configured.
func (c Config) StoreEnabled() bool {
	return c.StoreURL != ""
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
