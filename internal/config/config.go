// Package config handles application configuration from environment variables
// and the searches file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"kpwatch/internal/dedup"
)

// Supported state backends.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// Config holds the application configuration.
type Config struct {
	TelegramBotToken string `validate:"required_if=DryRun false"`
	TelegramChatID   int64  `validate:"required_if=DryRun false"`
	DryRun           bool

	SearchesFile string `validate:"required"`
	StateBackend string `validate:"oneof=sqlite postgres"`
	DatabasePath string `validate:"required_if=StateBackend sqlite"`
	DatabaseURL  string `validate:"required_if=StateBackend postgres"`
	DataDir      string `validate:"required"`

	LogLevel string `validate:"oneof=debug info warn error"`
	LogFile  string

	Schedule string

	TrimThreshold int `validate:"gt=1"`
	TrimKeep      int `validate:"gt=0,ltfield=TrimThreshold"`

	PublishAttempts int           `validate:"min=1,max=10"`
	PublishBackoff  time.Duration `validate:"min=0"`

	SendInterval  time.Duration `validate:"min=0"`
	MessageLimit  int           `validate:"min=200,max=4096"`
	SeparatorText string        `validate:"required"`

	FetchTimeout time.Duration `validate:"gt=0"`
	UserAgent    string        `validate:"required"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var errs []error
	getInt := func(key string, def int) int {
		n, err := envInt(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return n
	}
	getDuration := func(key string, def time.Duration) time.Duration {
		d, err := envDuration(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return d
	}

	dryRun, err := envBool("DRY_RUN", false)
	if err != nil {
		errs = append(errs, err)
	}

	var chatID int64
	if raw := strings.TrimSpace(os.Getenv("TELEGRAM_CHAT_ID")); raw != "" {
		chatID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid TELEGRAM_CHAT_ID %q: %w", raw, err))
		}
	}

	cfg := &Config{
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:   chatID,
		DryRun:           dryRun,
		SearchesFile:     envOrDefault("SEARCHES_FILE", "./searches.yaml"),
		StateBackend:     strings.ToLower(envOrDefault("STATE_BACKEND", BackendSQLite)),
		DatabasePath:     envOrDefault("DATABASE_PATH", "./data/kpwatch.db"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		DataDir:          envOrDefault("DATA_DIR", "./.kp_data"),
		LogLevel:         strings.ToLower(envOrDefault("LOG_LEVEL", "info")),
		LogFile:          os.Getenv("LOG_FILE"),
		Schedule:         strings.TrimSpace(os.Getenv("SCHEDULE")),
		TrimThreshold:    getInt("REGISTRY_TRIM_THRESHOLD", 1000),
		TrimKeep:         getInt("REGISTRY_TRIM_KEEP", 800),
		PublishAttempts:  getInt("PUBLISH_ATTEMPTS", 3),
		PublishBackoff:   getDuration("PUBLISH_BACKOFF", 2*time.Second),
		SendInterval:     getDuration("SEND_INTERVAL", 200*time.Millisecond),
		MessageLimit:     getInt("MESSAGE_LIMIT", 4096),
		SeparatorText:    envOrDefault("SEPARATOR_TEXT", "SLEDECA PORUKA"),
		FetchTimeout:     getDuration("FETCH_TIMEOUT", 30*time.Second),
		UserAgent:        envOrDefault("USER_AGENT", "Mozilla/5.0"),
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Eviction returns the registry bounding policy.
func (c *Config) Eviction() dedup.Eviction {
	return dedup.Eviction{Threshold: c.TrimThreshold, Keep: c.TrimKeep}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return n, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return d, nil
}

func envBool(key string, def bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return b, nil
}
