package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// isolate clears CONFIG_FILE and moves to an empty directory so a stray
// docscope.toml cannot leak into the test.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("CONFIG_FILE", "")
	t.Chdir(t.TempDir())
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MaxUploadBytes != 10<<20 {
		t.Errorf("expected 10MB upload limit, got %d", cfg.MaxUploadBytes)
	}
	if cfg.AcceptedMediaType != "application/pdf" {
		t.Errorf("expected application/pdf, got %q", cfg.AcceptedMediaType)
	}
	if cfg.ProgressStepDelay != 800*time.Millisecond {
		t.Errorf("expected 800ms step delay, got %v", cfg.ProgressStepDelay)
	}
	if cfg.AnalyzeTimeout != 2*time.Minute {
		t.Errorf("expected 2m analyze timeout, got %v", cfg.AnalyzeTimeout)
	}
	if cfg.MaxSessions != 1000 {
		t.Errorf("expected 1000 max sessions, got %d", cfg.MaxSessions)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected defaults to validate, got %v", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("MAX_UPLOAD_BYTES", "16777216")
	t.Setenv("ANALYZER_URL", "http://analyzer:5000")
	t.Setenv("FIELD_NAMING", "snake")
	t.Setenv("MAX_SESSIONS", "50")
	t.Setenv("PROGRESS_STEP_DELAY", "10ms")
	t.Setenv("ANALYZE_TIMEOUT", "not-a-duration")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MaxUploadBytes != 16<<20 {
		t.Errorf("expected 16MB, got %d", cfg.MaxUploadBytes)
	}
	if cfg.AnalyzerURL != "http://analyzer:5000" {
		t.Errorf("expected analyzer url override, got %q", cfg.AnalyzerURL)
	}
	if cfg.FieldNaming != "snake" {
		t.Errorf("expected snake, got %q", cfg.FieldNaming)
	}
	if cfg.MaxSessions != 50 {
		t.Errorf("expected 50 max sessions, got %d", cfg.MaxSessions)
	}
	if cfg.ProgressStepDelay != 10*time.Millisecond {
		t.Errorf("expected 10ms, got %v", cfg.ProgressStepDelay)
	}
	if cfg.AnalyzeTimeout != 2*time.Minute {
		t.Errorf("expected invalid duration to fall back to 2m, got %v", cfg.AnalyzeTimeout)
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "docscope.toml")
	content := `
analyzer_url = "http://from-file:5000"
max_upload_bytes = 1048576
session_ttl = "30m"
field_naming = "camel"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("FIELD_NAMING", "auto")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.AnalyzerURL != "http://from-file:5000" {
		t.Errorf("expected file value, got %q", cfg.AnalyzerURL)
	}
	if cfg.MaxUploadBytes != 1<<20 {
		t.Errorf("expected 1MB from file, got %d", cfg.MaxUploadBytes)
	}
	if cfg.SessionTTL != 30*time.Minute {
		t.Errorf("expected 30m from file, got %v", cfg.SessionTTL)
	}
	if cfg.FieldNaming != "auto" {
		t.Errorf("expected env to win over file, got %q", cfg.FieldNaming)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	isolate(t)
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "nope.toml"))
	if _, err := Load(); err == nil {
		t.Error("expected error for missing explicit config file")
	}
}

func TestLoad_BadFile(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("analyzer_url = ["), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)
	if _, err := Load(); err == nil {
		t.Error("expected decode error")
	}
}

func TestLoad_NonPositiveLimitsFallBack(t *testing.T) {
	isolate(t)
	t.Setenv("MAX_UPLOAD_BYTES", "0")
	t.Setenv("SESSION_TTL", "-1s")
	t.Setenv("MAX_SESSIONS", "-3")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.MaxUploadBytes != 10<<20 {
		t.Errorf("expected default upload limit, got %d", cfg.MaxUploadBytes)
	}
	if cfg.SessionTTL != time.Hour {
		t.Errorf("expected default session ttl, got %v", cfg.SessionTTL)
	}
	if cfg.MaxSessions != 1000 {
		t.Errorf("expected default session limit, got %d", cfg.MaxSessions)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"relative url", func(c *Config) { c.AnalyzerURL = "/analyze" }, true},
		{"ftp url", func(c *Config) { c.AnalyzerURL = "ftp://host" }, true},
		{"empty media type", func(c *Config) { c.AcceptedMediaType = " " }, true},
		{"bad naming", func(c *Config) { c.FieldNaming = "kebab" }, true},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, true},
		{"debug level", func(c *Config) { c.LogLevel = "debug" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("expected error=%v, got %v", tt.wantErr, err)
			}
		})
	}
}
