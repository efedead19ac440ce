package config

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration
type Config struct {
	HTTP    HTTPConfig    `yaml:"http"`
	Storage StorageConfig `yaml:"storage"`
	Offline OfflineConfig `yaml:"offline"`
	Live    LiveConfig    `yaml:"live"`
	Feed    FeedConfig    `yaml:"feed"`
	Logging LoggingConfig `yaml:"logging"`
}

// HTTPConfig contains HTTP API server configuration
type HTTPConfig struct {
	Port    int    `yaml:"port"`
	Address string `yaml:"address"`
}

// StorageConfig contains persistent store configuration
type StorageConfig struct {
	Path string `yaml:"path"`
}

// OfflineConfig contains offline cache parameters
type OfflineConfig struct {
	DownloadLimit int    `yaml:"download_limit"`
	FetchTimeout  int    `yaml:"fetch_timeout"` // seconds
	LocalDir      string `yaml:"local_dir"`
}

// LiveConfig contains live session configuration
type LiveConfig struct {
	Endpoint          string `yaml:"endpoint"`
	Model             string `yaml:"model"`
	Voice             string `yaml:"voice"`
	SystemInstruction string `yaml:"system_instruction"`
	ConnectTimeout    int    `yaml:"connect_timeout"` // seconds
	CaptureDevice     string `yaml:"capture_device"`  // path to a PCM capture device or pipe
	PlaybackDevice    string `yaml:"playback_device"` // path to a PCM playback device or pipe
}

// FeedConfig contains content API client configuration
type FeedConfig struct {
	Endpoint      string `yaml:"endpoint"`
	Timeout       int    `yaml:"timeout"` // seconds
	MaxRetries    int    `yaml:"max_retries"`
	MaxConcurrent int    `yaml:"max_concurrent"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Secrets carries credentials that never live in the YAML file; they
// come from the environment (a .env file in development).
type Secrets struct {
	LiveAPIKey string `envconfig:"LIVE_API_KEY"`
	FeedAPIKey string `envconfig:"FEED_API_KEY"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// LoadSecrets reads credentials from the process environment
func LoadSecrets() (*Secrets, error) {
	var s Secrets
	if err := envconfig.Process("teachtap", &s); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	return &s, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http config: %w", err)
	}

	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage config: %w", err)
	}

	if err := c.Offline.Validate(); err != nil {
		return fmt.Errorf("offline config: %w", err)
	}

	if err := c.Live.Validate(); err != nil {
		return fmt.Errorf("live config: %w", err)
	}

	if err := c.Feed.Validate(); err != nil {
		return fmt.Errorf("feed config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates HTTP configuration
func (h *HTTPConfig) Validate() error {
	if h.Port < 1 || h.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", h.Port)
	}

	if h.Address == "" {
		return fmt.Errorf("address cannot be empty")
	}

	return nil
}

// Validate validates storage configuration
func (s *StorageConfig) Validate() error {
	if s.Path == "" {
		return fmt.Errorf("path cannot be empty")
	}

	return nil
}

// Validate validates offline cache configuration
func (o *OfflineConfig) Validate() error {
	if o.DownloadLimit < 1 {
		return fmt.Errorf("download_limit must be at least 1, got %d", o.DownloadLimit)
	}

	if o.FetchTimeout < 1 {
		return fmt.Errorf("fetch_timeout must be at least 1 second, got %d", o.FetchTimeout)
	}

	return nil
}

// Validate validates live session configuration
func (l *LiveConfig) Validate() error {
	if l.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}

	if l.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}

	if l.Voice == "" {
		return fmt.Errorf("voice cannot be empty")
	}

	if l.ConnectTimeout < 1 {
		return fmt.Errorf("connect_timeout must be at least 1 second, got %d", l.ConnectTimeout)
	}

	return nil
}

// Validate validates feed client configuration
func (f *FeedConfig) Validate() error {
	if f.Endpoint == "" {
		return fmt.Errorf("endpoint cannot be empty")
	}

	if f.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", f.Timeout)
	}

	if f.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", f.MaxRetries)
	}

	if f.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", f.MaxConcurrent)
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of debug, info, warn, error, got %q", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be json or text, got %q", l.Format)
	}

	return nil
}
