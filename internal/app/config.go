package app

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/raysh454/stockscan/internal/notify"
	"github.com/raysh454/stockscan/internal/webclient"
)

// Config is the runtime configuration of the scanner front-end. It is read
// from YAML; fields missing from the file keep their defaults.
type Config struct {
	API     APIConfig     `yaml:"api"`
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Log     LogConfig     `yaml:"log"`
	Notify  NotifyConfig  `yaml:"notify"`
}

type APIConfig struct {
	// BaseURL is the backend API root every scan call is relative to.
	BaseURL string            `yaml:"base_url"`
	Timeout time.Duration     `yaml:"timeout"`
	Headers map[string]string `yaml:"headers"`
}

type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`

	// BackendURL is the origin /api/* is proxied to. Empty disables the proxy.
	BackendURL string `yaml:"backend_url"`
}

type StorageConfig struct {
	// DownloadDir receives CSV exports made from the CLI.
	DownloadDir string `yaml:"download_dir"`

	// HistoryDB is the SQLite scan history. Empty disables history.
	HistoryDB string `yaml:"history_db"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type NotifyConfig struct {
	WarningDuration time.Duration `yaml:"warning_duration"`
	ErrorDuration   time.Duration `yaml:"error_duration"`
}

// DefaultConfig returns a Config populated with development defaults.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: webclient.DefaultBaseURL,
			Timeout: webclient.DefaultTimeout,
			Headers: map[string]string{"Content-Type": "application/json"},
		},
		Server: ServerConfig{
			ListenAddr: ":8080",
			BackendURL: "http://localhost:8000",
		},
		Storage: StorageConfig{
			DownloadDir: ".",
			HistoryDB:   "~/.config/stockscan/history.db",
		},
		Log: LogConfig{
			Level: "info",
		},
		Notify: NotifyConfig{
			WarningDuration: notify.WarningDuration,
			ErrorDuration:   notify.ErrorDuration,
		},
	}
}

// LoadConfig reads a YAML config file over the defaults. An empty path
// returns the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(file, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills zero values with their defaults.
func (c *Config) ApplyDefaults() {
	def := DefaultConfig()
	if c.API.BaseURL == "" {
		c.API.BaseURL = def.API.BaseURL
	}
	if c.API.Timeout <= 0 {
		c.API.Timeout = def.API.Timeout
	}
	if c.API.Headers == nil {
		c.API.Headers = make(map[string]string, len(def.API.Headers))
	}
	for k, v := range def.API.Headers {
		if !hasHeader(c.API.Headers, k) {
			c.API.Headers[k] = v
		}
	}
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = def.Server.ListenAddr
	}
	if c.Storage.DownloadDir == "" {
		c.Storage.DownloadDir = def.Storage.DownloadDir
	}
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Notify.WarningDuration <= 0 {
		c.Notify.WarningDuration = def.Notify.WarningDuration
	}
	if c.Notify.ErrorDuration <= 0 {
		c.Notify.ErrorDuration = def.Notify.ErrorDuration
	}
}

func hasHeader(headers map[string]string, name string) bool {
	name = http.CanonicalHeaderKey(name)
	for k := range headers {
		if http.CanonicalHeaderKey(k) == name {
			return true
		}
	}
	return false
}

func (c *Config) Validate() error {
	if !strings.HasPrefix(c.API.BaseURL, "http://") && !strings.HasPrefix(c.API.BaseURL, "https://") && !strings.HasPrefix(c.API.BaseURL, "/") {
		return fmt.Errorf("config: api.base_url %q must be an http(s) URL or an absolute path", c.API.BaseURL)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("config: unknown log.level %q", c.Log.Level)
	}
	return nil
}

// WebClientConfig converts the api section for webclient.NewNetHTTPClient.
func (c *Config) WebClientConfig() webclient.Config {
	h := http.Header{}
	for k, v := range c.API.Headers {
		h.Set(k, v)
	}
	return webclient.Config{
		BaseURL: c.API.BaseURL,
		Timeout: c.API.Timeout,
		Headers: h,
	}
}

// NotifyDurations converts the notify section for notify.WithDurations.
func (c *Config) NotifyDurations() notify.Durations {
	return notify.Durations{
		Warning: c.Notify.WarningDuration,
		Error:   c.Notify.ErrorDuration,
	}
}

func expandPath(p string) (string, error) {
	if len(p) > 0 && p[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, p[1:]), nil
	}
	return p, nil
}
