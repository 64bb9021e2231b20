// Package config loads tinyagent settings from defaults, an optional YAML
// file and the environment, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/martinemde/tinyagent/agentloop"
	"github.com/martinemde/tinyagent/unifiedllm"
)

// ConfigPathEnv names an explicit config file.
const ConfigPathEnv = "TINYAGENT_CONFIG"

// Config holds all tinyagent settings.
type Config struct {
	Provider string `yaml:"provider" env:"TINYAGENT_PROVIDER"`
	APIKey   string `yaml:"api_key,omitempty" env:"OPENROUTER_API_KEY"`
	BaseURL  string `yaml:"base_url,omitempty" env:"OPENROUTER_BASE_URL"` // empty uses the provider default
	Model    string `yaml:"model" env:"TINYAGENT_MODEL"`
	// GollmAPIKey is passed to gollm backends. When empty, gollm reads the
	// backend's own variable, such as ANTHROPIC_API_KEY.
	GollmAPIKey string `yaml:"gollm_api_key,omitempty" env:"TINYAGENT_GOLLM_API_KEY"`
	MaxTokens   int    `yaml:"max_tokens,omitempty" env:"TINYAGENT_MAX_TOKENS"` // 0 leaves the provider default

	MaxRounds           int           `yaml:"max_rounds" env:"TINYAGENT_MAX_ROUNDS"`
	MaxRetries          int           `yaml:"max_retries" env:"TINYAGENT_MAX_RETRIES"`
	RequestTimeout      time.Duration `yaml:"request_timeout" env:"TINYAGENT_REQUEST_TIMEOUT"`
	CommandTimeout      time.Duration `yaml:"command_timeout" env:"TINYAGENT_COMMAND_TIMEOUT"`
	LoopDetectionWindow int           `yaml:"loop_detection_window" env:"TINYAGENT_LOOP_DETECTION_WINDOW"`
	MaxOutputBytes      int           `yaml:"max_output_bytes" env:"TINYAGENT_MAX_OUTPUT_BYTES"`

	Shell   string `yaml:"shell" env:"TINYAGENT_SHELL"`
	WorkDir string `yaml:"workdir,omitempty" env:"TINYAGENT_WORKDIR"`

	LogLevel string `yaml:"log_level" env:"TINYAGENT_LOG_LEVEL"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Provider:            "openrouter",
		Model:               unifiedllm.DefaultModel,
		MaxRounds:           50,
		MaxRetries:          2,
		RequestTimeout:      5 * time.Minute,
		CommandTimeout:      2 * time.Minute,
		LoopDetectionWindow: 10,
		MaxOutputBytes:      agentloop.DefaultMaxCaptureBytes,
		Shell:               "/bin/sh",
		LogLevel:            "warn",
	}
}

// DefaultPath returns the user-level config file location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "tinyagent", "config.yaml")
}

// Load builds a Config from defaults, the YAML file at path and the
// environment. An empty path falls back to $TINYAGENT_CONFIG and then to
// DefaultPath. Only the default file may be missing.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	explicit := true
	if path == "" {
		path = os.Getenv(ConfigPathEnv)
	}
	if path == "" {
		path = DefaultPath()
		explicit = false
	}

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			if explicit || !errors.Is(err, os.ErrNotExist) {
				return nil, err
			}
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

// Save writes the configuration as YAML, leaving out the API keys.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	out := *c
	out.APIKey = ""
	out.GollmAPIKey = ""
	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// ValidProviders lists the providers served by the OpenAI-compatible
// adapter. Any "gollm-<backend>" provider is also accepted.
var ValidProviders = []string{"openrouter", "openai"}

// GollmBackend returns the backend of a "gollm-<backend>" provider.
func (c *Config) GollmBackend() (string, bool) {
	backend, ok := strings.CutPrefix(c.Provider, "gollm-")
	return backend, ok && backend != ""
}

// Validate reports the first problem that would stop a run before it
// reaches the model.
func (c *Config) Validate() error {
	_, isGollm := c.GollmBackend()

	validProvider := isGollm
	for _, p := range ValidProviders {
		if c.Provider == p {
			validProvider = true
			break
		}
	}
	if !validProvider {
		return unifiedllm.NewConfigurationError("invalid provider: %q (valid: %v or gollm-<backend>)", c.Provider, ValidProviders)
	}

	if c.APIKey == "" && !isGollm {
		return unifiedllm.NewConfigurationError("OPENROUTER_API_KEY is not set")
	}
	if c.Model == "" {
		return unifiedllm.NewConfigurationError("no model configured")
	}

	switch {
	case c.MaxRounds < 0:
		return unifiedllm.NewConfigurationError("max_rounds must not be negative, got %d", c.MaxRounds)
	case c.MaxRetries < 0:
		return unifiedllm.NewConfigurationError("max_retries must not be negative, got %d", c.MaxRetries)
	case c.RequestTimeout < 0:
		return unifiedllm.NewConfigurationError("request_timeout must not be negative, got %s", c.RequestTimeout)
	case c.CommandTimeout < 0:
		return unifiedllm.NewConfigurationError("command_timeout must not be negative, got %s", c.CommandTimeout)
	case c.MaxTokens < 0:
		return unifiedllm.NewConfigurationError("max_tokens must not be negative, got %d", c.MaxTokens)
	case c.MaxOutputBytes < 0:
		return unifiedllm.NewConfigurationError("max_output_bytes must not be negative, got %d", c.MaxOutputBytes)
	case c.LoopDetectionWindow < 0:
		return unifiedllm.NewConfigurationError("loop_detection_window must not be negative, got %d", c.LoopDetectionWindow)
	}

	if _, err := c.Level(); err != nil {
		return unifiedllm.NewConfigurationError("invalid log_level %q", c.LogLevel)
	}
	return nil
}

// Level parses LogLevel.
func (c *Config) Level() (zapcore.Level, error) {
	return zapcore.ParseLevel(c.LogLevel)
}

// RetryPolicy returns the retry policy for model requests.
func (c *Config) RetryPolicy() unifiedllm.RetryPolicy {
	policy := unifiedllm.DefaultRetryPolicy()
	policy.MaxRetries = c.MaxRetries
	return policy
}

// SessionConfig returns the agent loop settings.
func (c *Config) SessionConfig() agentloop.SessionConfig {
	sc := agentloop.DefaultSessionConfig()
	sc.Model = unifiedllm.ResolveModelID(c.Model)
	sc.Provider = c.Provider
	sc.MaxRounds = c.MaxRounds
	sc.RequestTimeout = c.RequestTimeout
	sc.MaxTokens = c.MaxTokens
	sc.EnableLoopDetection = c.LoopDetectionWindow > 0
	sc.LoopDetectionWindow = c.LoopDetectionWindow
	sc.Tools.CommandTimeout = c.CommandTimeout
	return sc
}
