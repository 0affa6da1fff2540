package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the client and dev server settings
type Config struct {
	APIBase       string        `yaml:"api_base"`
	Timeout       time.Duration `yaml:"timeout"`
	UploadTimeout time.Duration `yaml:"upload_timeout"`

	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`

	ChartDir   string `yaml:"chart_dir"`
	OpenCharts bool   `yaml:"open_charts"`

	Transcript    bool   `yaml:"transcript"`
	TranscriptDir string `yaml:"transcript_dir"`

	Markdown bool `yaml:"markdown"`

	Dev DevConfig `yaml:"devserver"`

	// Source is the config file that was loaded, empty when none was found
	Source string `yaml:"-"`
}

// DevConfig configures the development stub service
type DevConfig struct {
	Addr   string `yaml:"addr"`
	DBPath string `yaml:"db_path"`
}

// Default returns the built-in configuration
func Default() *Config {
	dir := baseDir()
	return &Config{
		APIBase:       "http://localhost:8000",
		Timeout:       60 * time.Second,
		UploadTimeout: 120 * time.Second,
		LogLevel:      "info",
		LogFile:       filepath.Join(dir, "logs", "datachat.log"),
		ChartDir:      filepath.Join(dir, "charts"),
		TranscriptDir: filepath.Join(dir, "logs", "transcripts"),
		Markdown:      true,
		Dev: DevConfig{
			Addr:   ":8000",
			DBPath: ":memory:",
		},
	}
}

// baseDir returns ~/.datachat, or .datachat when the home directory is unknown
func baseDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".datachat"
	}
	return filepath.Join(home, ".datachat")
}

// projectConfigPath returns the project-level config path (.datachat/config.yaml in cwd)
func projectConfigPath() string {
	return filepath.Join(".datachat", "config.yaml")
}

func globalConfigPath() string {
	return filepath.Join(baseDir(), "config.yaml")
}

// Load builds the configuration from defaults, a YAML file and the
// environment. An explicit path must exist; otherwise the project config is
// tried first, then the global one.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	} else {
		for _, p := range []string{projectConfigPath(), globalConfigPath()} {
			err := cfg.readFile(p)
			if err == nil {
				break
			}
			if !errors.Is(err, os.ErrNotExist) {
				return nil, err
			}
		}
	}

	cfg.applyEnv()
	cfg.expandPaths()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	c.Source = path
	return nil
}

func (c *Config) applyEnv() {
	c.APIBase = envStr("DATACHAT_API_BASE", c.APIBase)
	c.Timeout = envDuration("DATACHAT_TIMEOUT", c.Timeout)
	c.UploadTimeout = envDuration("DATACHAT_UPLOAD_TIMEOUT", c.UploadTimeout)
	c.LogLevel = envStr("DATACHAT_LOG_LEVEL", c.LogLevel)
	c.LogFile = envStr("DATACHAT_LOG_FILE", c.LogFile)
	c.ChartDir = envStr("DATACHAT_CHART_DIR", c.ChartDir)
	c.OpenCharts = envBool("DATACHAT_OPEN_CHARTS", c.OpenCharts)
	c.Transcript = envBool("DATACHAT_TRANSCRIPT", c.Transcript)
	c.Markdown = envBool("DATACHAT_MARKDOWN", c.Markdown)
	c.Dev.Addr = envStr("DATACHAT_DEV_ADDR", c.Dev.Addr)
	c.Dev.DBPath = envStr("DATACHAT_DEV_DB", c.Dev.DBPath)
}

func (c *Config) expandPaths() {
	c.LogFile = expandHome(c.LogFile)
	c.ChartDir = expandHome(c.ChartDir)
	c.TranscriptDir = expandHome(c.TranscriptDir)
	if c.Dev.DBPath != ":memory:" {
		c.Dev.DBPath = expandHome(c.Dev.DBPath)
	}
}

// Validate checks the settings that cannot be defaulted
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIBase)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api_base must be an absolute http(s) URL, got %q", c.APIBase)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.UploadTimeout <= 0 {
		return fmt.Errorf("upload_timeout must be positive, got %s", c.UploadTimeout)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be one of debug, info, warn, error, got %q", c.LogLevel)
	}
	if c.ChartDir == "" {
		return fmt.Errorf("chart_dir must not be empty")
	}
	return nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

// envDuration accepts Go durations ("90s") or a bare number of seconds
func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
