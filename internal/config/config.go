package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Port string `toml:"port"`

	// Analysis service
	AnalyzerURL      string        `toml:"analyzer_url"`
	AnalyzeTimeout   time.Duration `toml:"analyze_timeout"`
	HealthTimeout    time.Duration `toml:"health_timeout"`
	MaxResponseBytes int64         `toml:"max_response_bytes"`
	FieldNaming      string        `toml:"field_naming"`

	// Upload policy
	AcceptedMediaType string `toml:"accepted_media_type"`
	MaxUploadBytes    int64  `toml:"max_upload_bytes"`

	// Progress display
	ProgressStepDelay time.Duration `toml:"progress_step_delay"`

	// Session state
	SessionTTL  time.Duration `toml:"session_ttl"`
	MaxSessions int           `toml:"max_sessions"`

	LogLevel string `toml:"log_level"`
}

// Defaults returns the configuration used when neither a file nor the
// environment overrides a value.
func Defaults() Config {
	return Config{
		Port: "8090",

		AnalyzerURL:      "http://localhost:5000",
		AnalyzeTimeout:   2 * time.Minute,
		HealthTimeout:    5 * time.Second,
		MaxResponseBytes: 8 << 20,
		FieldNaming:      "auto",

		AcceptedMediaType: "application/pdf",
		MaxUploadBytes:    10 << 20, // 10MB

		ProgressStepDelay: 800 * time.Millisecond,

		SessionTTL:  1 * time.Hour,
		MaxSessions: 1000,

		LogLevel: "info",
	}
}

// Load builds the configuration from defaults, then the optional TOML file
// named by CONFIG_FILE (default docscope.toml), then environment variables.
func Load() (Config, error) {
	cfg := Defaults()

	path := envOr("CONFIG_FILE", "docscope.toml")
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("decode config file %s: %w", path, err)
		}
	} else if os.Getenv("CONFIG_FILE") != "" {
		return cfg, fmt.Errorf("config file %s: %w", path, err)
	}

	cfg.Port = envOr("PORT", cfg.Port)

	cfg.AnalyzerURL = envOr("ANALYZER_URL", cfg.AnalyzerURL)
	cfg.AnalyzeTimeout = envDuration("ANALYZE_TIMEOUT", cfg.AnalyzeTimeout)
	cfg.HealthTimeout = envDuration("HEALTH_TIMEOUT", cfg.HealthTimeout)
	cfg.MaxResponseBytes = envInt64("MAX_RESPONSE_BYTES", cfg.MaxResponseBytes)
	cfg.FieldNaming = envOr("FIELD_NAMING", cfg.FieldNaming)

	cfg.AcceptedMediaType = envOr("ACCEPTED_MEDIA_TYPE", cfg.AcceptedMediaType)
	cfg.MaxUploadBytes = envInt64("MAX_UPLOAD_BYTES", cfg.MaxUploadBytes)

	cfg.ProgressStepDelay = envDuration("PROGRESS_STEP_DELAY", cfg.ProgressStepDelay)
	cfg.SessionTTL = envDuration("SESSION_TTL", cfg.SessionTTL)
	cfg.MaxSessions = int(envInt64("MAX_SESSIONS", int64(cfg.MaxSessions)))

	cfg.LogLevel = envOr("LOG_LEVEL", cfg.LogLevel)

	def := Defaults()
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = def.MaxUploadBytes
	}
	if cfg.MaxResponseBytes <= 0 {
		cfg.MaxResponseBytes = def.MaxResponseBytes
	}
	if cfg.AnalyzeTimeout < 0 {
		cfg.AnalyzeTimeout = 0
	}
	if cfg.HealthTimeout <= 0 {
		cfg.HealthTimeout = def.HealthTimeout
	}
	if cfg.ProgressStepDelay < 0 {
		cfg.ProgressStepDelay = 0
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = def.SessionTTL
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = def.MaxSessions
	}

	return cfg, nil
}

func (c Config) Validate() error {
	u, err := url.Parse(c.AnalyzerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("ANALYZER_URL must be an absolute http(s) URL, got %q", c.AnalyzerURL)
	}
	if strings.TrimSpace(c.AcceptedMediaType) == "" {
		return errors.New("ACCEPTED_MEDIA_TYPE is required")
	}
	switch strings.ToLower(c.FieldNaming) {
	case "", "auto", "camel", "snake":
	default:
		return fmt.Errorf("FIELD_NAMING must be auto, camel or snake, got %q", c.FieldNaming)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel parses LogLevel.
func (c Config) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return lvl, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
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
