// Package config provides configuration for helia.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath names the environment variable holding an optional YAML file.
const EnvConfigPath = "HELIA_CONFIG"

// Config holds the helia configuration.
type Config struct {
	// Backend settings
	OllamaHost string `yaml:"ollama_host"`
	OllamaPort int    `yaml:"ollama_port"`
	Model      string `yaml:"model"`
	Mode       string `yaml:"mode"`

	// Server settings
	HTTPPort int `yaml:"http_port"`

	// Database
	DatabaseURL string `yaml:"database_url"`

	// Timeouts, in milliseconds. A zero request timeout leaves streams unbounded.
	RequestTimeoutMs int `yaml:"request_timeout_ms"`
	ModelsTimeoutMs  int `yaml:"models_timeout_ms"`

	// WebSocket settings
	WSPingIntervalMs int   `yaml:"ws_ping_interval_ms"`
	WSReadTimeoutMs  int   `yaml:"ws_read_timeout_ms"`
	WSWriteTimeoutMs int   `yaml:"ws_write_timeout_ms"`
	WSMaxMessageSize int64 `yaml:"ws_max_message_size"`

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		OllamaHost:       "localhost",
		OllamaPort:       11434,
		Model:            "codellama:7b",
		HTTPPort:         8090,
		DatabaseURL:      "file:helia.db?cache=shared&mode=rwc",
		RequestTimeoutMs: 0,
		ModelsTimeoutMs:  5000,
		WSPingIntervalMs: 30000,
		WSReadTimeoutMs:  60000,
		WSWriteTimeoutMs: 10000,
		WSMaxMessageSize: 65536,
		LogLevel:         "info",
		LogFormat:        "json",
	}
}

// Load builds the configuration from defaults, then the YAML file at path
// (if non-empty), then environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	c.OllamaHost = getEnv("OLLAMA_HOST", c.OllamaHost)
	c.OllamaPort = getEnvInt("OLLAMA_PORT", c.OllamaPort)
	c.Model = getEnv("HELIA_MODEL", c.Model)
	c.Mode = getEnv("HELIA_MODE", c.Mode)
	c.HTTPPort = getEnvInt("HTTP_PORT", c.HTTPPort)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.RequestTimeoutMs = getEnvInt("REQUEST_TIMEOUT_MS", c.RequestTimeoutMs)
	c.ModelsTimeoutMs = getEnvInt("MODELS_TIMEOUT_MS", c.ModelsTimeoutMs)
	c.WSPingIntervalMs = getEnvInt("WS_PING_INTERVAL_MS", c.WSPingIntervalMs)
	c.WSReadTimeoutMs = getEnvInt("WS_READ_TIMEOUT_MS", c.WSReadTimeoutMs)
	c.WSWriteTimeoutMs = getEnvInt("WS_WRITE_TIMEOUT_MS", c.WSWriteTimeoutMs)
	c.WSMaxMessageSize = int64(getEnvInt("WS_MAX_MESSAGE_SIZE", int(c.WSMaxMessageSize)))
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if c.OllamaHost == "" {
		return errors.New("ollama_host is required")
	}
	if c.OllamaPort <= 0 || c.OllamaPort > 65535 {
		return fmt.Errorf("invalid ollama_port: %d", c.OllamaPort)
	}
	if c.Model == "" {
		return errors.New("model is required")
	}
	if c.RequestTimeoutMs < 0 || c.ModelsTimeoutMs < 0 {
		return errors.New("timeouts must not be negative")
	}
	if c.WSPingIntervalMs <= 0 || c.WSReadTimeoutMs <= 0 || c.WSWriteTimeoutMs <= 0 {
		return errors.New("websocket intervals must be positive")
	}
	if c.WSMaxMessageSize <= 0 {
		return fmt.Errorf("invalid ws_max_message_size: %d", c.WSMaxMessageSize)
	}
	return nil
}

// BaseURL returns the backend root, e.g. http://localhost:11434.
func (c *Config) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", c.OllamaHost, c.OllamaPort)
}

// RequestTimeout returns the generation request timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMs) * time.Millisecond
}

// ModelsTimeout returns the model listing timeout.
func (c *Config) ModelsTimeout() time.Duration {
	return time.Duration(c.ModelsTimeoutMs) * time.Millisecond
}

// PingInterval returns the websocket ping interval.
func (c *Config) PingInterval() time.Duration {
	return time.Duration(c.WSPingIntervalMs) * time.Millisecond
}

// ReadTimeout returns the websocket read deadline.
func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.WSReadTimeoutMs) * time.Millisecond
}

// WriteTimeout returns the websocket write deadline.
func (c *Config) WriteTimeout() time.Duration {
	return time.Duration(c.WSWriteTimeoutMs) * time.Millisecond
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}
