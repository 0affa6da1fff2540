package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var envKeys = []string{
	"DATACHAT_API_BASE", "DATACHAT_TIMEOUT", "DATACHAT_UPLOAD_TIMEOUT",
	"DATACHAT_LOG_LEVEL", "DATACHAT_LOG_FILE", "DATACHAT_CHART_DIR",
	"DATACHAT_OPEN_CHARTS", "DATACHAT_TRANSCRIPT", "DATACHAT_MARKDOWN",
	"DATACHAT_DEV_ADDR", "DATACHAT_DEV_DB",
}

// isolate points HOME and the working directory at fresh temp dirs and
// clears every DATACHAT_ variable
func isolate(t *testing.T) (home, work string) {
	t.Helper()
	home, work = t.TempDir(), t.TempDir()
	t.Setenv("HOME", home)
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
	t.Chdir(work)
	return home, work
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadDefaults(t *testing.T) {
	home, _ := isolate(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.APIBase != "http://localhost:8000" {
		t.Errorf("APIBase = %q", cfg.APIBase)
	}
	if cfg.Timeout != 60*time.Second || cfg.UploadTimeout != 120*time.Second {
		t.Errorf("timeouts = %s/%s", cfg.Timeout, cfg.UploadTimeout)
	}
	if want := filepath.Join(home, ".datachat", "charts"); cfg.ChartDir != want {
		t.Errorf("ChartDir = %q, want %q", cfg.ChartDir, want)
	}
	if !cfg.Markdown || cfg.Transcript || cfg.OpenCharts {
		t.Errorf("unexpected toggles: markdown=%v transcript=%v open=%v", cfg.Markdown, cfg.Transcript, cfg.OpenCharts)
	}
	if cfg.Source != "" {
		t.Errorf("Source = %q, want empty", cfg.Source)
	}
}

func TestLoadPrefersProjectConfig(t *testing.T) {
	home, work := isolate(t)
	writeFile(t, filepath.Join(home, ".datachat", "config.yaml"), "api_base: http://global:9000\n")
	writeFile(t, filepath.Join(work, ".datachat", "config.yaml"), "api_base: http://project:9000\ntimeout: 5s\n")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.APIBase != "http://project:9000" {
		t.Errorf("APIBase = %q, want project value", cfg.APIBase)
	}
	if cfg.Timeout != 5*time.Second {
		t.Errorf("Timeout = %s, want 5s", cfg.Timeout)
	}
	if cfg.UploadTimeout != 120*time.Second {
		t.Errorf("UploadTimeout = %s, want default kept", cfg.UploadTimeout)
	}
}

func TestLoadFallsBackToGlobalConfig(t *testing.T) {
	home, _ := isolate(t)
	writeFile(t, filepath.Join(home, ".datachat", "config.yaml"), "api_base: http://global:9000\nchart_dir: ~/plots\n")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.APIBase != "http://global:9000" {
		t.Errorf("APIBase = %q, want global value", cfg.APIBase)
	}
	if want := filepath.Join(home, "plots"); cfg.ChartDir != want {
		t.Errorf("ChartDir = %q, want %q", cfg.ChartDir, want)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	_, work := isolate(t)
	writeFile(t, filepath.Join(work, ".datachat", "config.yaml"), "api_base: http://file:1\nmarkdown: true\n")
	t.Setenv("DATACHAT_API_BASE", "https://env.example.com")
	t.Setenv("DATACHAT_TIMEOUT", "15")
	t.Setenv("DATACHAT_MARKDOWN", "false")
	t.Setenv("DATACHAT_TRANSCRIPT", "true")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.APIBase != "https://env.example.com" {
		t.Errorf("APIBase = %q", cfg.APIBase)
	}
	if cfg.Timeout != 15*time.Second {
		t.Errorf("Timeout = %s, want 15s", cfg.Timeout)
	}
	if cfg.Markdown || !cfg.Transcript {
		t.Errorf("markdown=%v transcript=%v", cfg.Markdown, cfg.Transcript)
	}
}

func TestLoadExplicitPath(t *testing.T) {
	_, work := isolate(t)

	if _, err := Load(filepath.Join(work, "missing.yaml")); err == nil {
		t.Error("Expected error for missing explicit config file")
	}

	path := filepath.Join(work, "custom.yaml")
	writeFile(t, path, "log_level: debug\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}
	if cfg.LogLevel != "debug" || cfg.Source != path {
		t.Errorf("LogLevel = %q, Source = %q", cfg.LogLevel, cfg.Source)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"relative url", func(c *Config) { c.APIBase = "localhost:8000" }, "api_base"},
		{"ftp url", func(c *Config) { c.APIBase = "ftp://host" }, "api_base"},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, "timeout"},
		{"negative upload timeout", func(c *Config) { c.UploadTimeout = -time.Second }, "upload_timeout"},
		{"unknown log level", func(c *Config) { c.LogLevel = "verbose" }, "log_level"},
		{"upper case log level", func(c *Config) { c.LogLevel = "DEBUG" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error mentioning %q", err, tt.wantErr)
			}
		})
	}
}

func TestMalformedYAML(t *testing.T) {
	_, work := isolate(t)
	writeFile(t, filepath.Join(work, ".datachat", "config.yaml"), "api_base: [unterminated\n")

	if _, err := Load(""); err == nil {
		t.Error("Expected parse error for malformed YAML")
	}
}
