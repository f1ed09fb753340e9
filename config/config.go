// Package config loads threadgraph settings from a YAML file with
// THREADGRAPH_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/smallnest/threadgraph/log"
)

// Providers and store backends understood by the CLI wiring.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderLangchain = "langchain"

	BackendMemory   = "memory"
	BackendFile     = "file"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	LogLevel     string       `yaml:"log_level"`
	SystemPrompt string       `yaml:"system_prompt"`
	Engine       EngineConfig `yaml:"engine"`
	Model        ModelConfig  `yaml:"model"`
	Store        StoreConfig  `yaml:"store"`
	Server       ServerConfig `yaml:"server"`
}

type EngineConfig struct {
	MaxSteps    int           `yaml:"max_steps"`
	RunTimeout  time.Duration `yaml:"run_timeout"`
	ToolTimeout time.Duration `yaml:"tool_timeout"`
}

type ModelConfig struct {
	Provider    string  `yaml:"provider"`
	Name        string  `yaml:"name"`
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"api_key"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// StoreConfig selects the checkpoint backend. Only the fields of the chosen
// backend are read.
type StoreConfig struct {
	Backend  string        `yaml:"backend"`
	Path     string        `yaml:"path"`     // file, sqlite
	Addr     string        `yaml:"addr"`     // redis
	Password string        `yaml:"password"` // redis
	DB       int           `yaml:"db"`       // redis
	Prefix   string        `yaml:"prefix"`   // redis
	TTL      time.Duration `yaml:"ttl"`      // redis
	DSN      string        `yaml:"dsn"`      // postgres
	Table    string        `yaml:"table"`    // postgres, sqlite
}

type ServerConfig struct {
	Addr    string `yaml:"addr"`
	Metrics bool   `yaml:"metrics"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		LogLevel: "info",
		Engine: EngineConfig{
			MaxSteps:    25,
			RunTimeout:  2 * time.Minute,
			ToolTimeout: 30 * time.Second,
		},
		Model: ModelConfig{
			Provider: ProviderOpenAI,
		},
		Store: StoreConfig{
			Backend: BackendMemory,
		},
		Server: ServerConfig{
			Addr:    ":8080",
			Metrics: true,
		},
	}
}

// Load reads path over the defaults and applies environment overrides. An
// empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.Getenv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	str("THREADGRAPH_LOG_LEVEL", &c.LogLevel)
	str("THREADGRAPH_SYSTEM_PROMPT", &c.SystemPrompt)
	str("THREADGRAPH_MODEL_PROVIDER", &c.Model.Provider)
	str("THREADGRAPH_MODEL_NAME", &c.Model.Name)
	str("THREADGRAPH_MODEL_BASE_URL", &c.Model.BaseURL)
	str("THREADGRAPH_API_KEY", &c.Model.APIKey)
	str("THREADGRAPH_STORE_BACKEND", &c.Store.Backend)
	str("THREADGRAPH_STORE_PATH", &c.Store.Path)
	str("THREADGRAPH_STORE_ADDR", &c.Store.Addr)
	str("THREADGRAPH_STORE_PASSWORD", &c.Store.Password)
	str("THREADGRAPH_STORE_DSN", &c.Store.DSN)
	str("THREADGRAPH_SERVER_ADDR", &c.Server.Addr)

	if v := strings.TrimSpace(getenv("THREADGRAPH_MAX_STEPS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse THREADGRAPH_MAX_STEPS: %w", err)
		}
		c.Engine.MaxSteps = n
	}
	for key, dst := range map[string]*time.Duration{
		"THREADGRAPH_RUN_TIMEOUT":  &c.Engine.RunTimeout,
		"THREADGRAPH_TOOL_TIMEOUT": &c.Engine.ToolTimeout,
	} {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("parse %s: %w", key, err)
			}
			*dst = d
		}
	}
	return nil
}

// Validate rejects settings the wiring cannot honour.
func (c Config) Validate() error {
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.Engine.MaxSteps <= 0 {
		return fmt.Errorf("%w: engine.max_steps must be > 0", ErrInvalidConfig)
	}
	if c.Engine.RunTimeout <= 0 || c.Engine.ToolTimeout <= 0 {
		return fmt.Errorf("%w: engine timeouts must be > 0", ErrInvalidConfig)
	}

	switch c.Model.Provider {
	case ProviderOpenAI, ProviderAnthropic, ProviderLangchain:
	default:
		return fmt.Errorf("%w: unknown model provider %q", ErrInvalidConfig, c.Model.Provider)
	}

	switch c.Store.Backend {
	case BackendMemory:
	case BackendFile, BackendSQLite:
		if c.Store.Path == "" {
			return fmt.Errorf("%w: store.path is required for the %s backend", ErrInvalidConfig, c.Store.Backend)
		}
	case BackendRedis:
		if c.Store.Addr == "" {
			return fmt.Errorf("%w: store.addr is required for the redis backend", ErrInvalidConfig)
		}
	case BackendPostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("%w: store.dsn is required for the postgres backend", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown store backend %q", ErrInvalidConfig, c.Store.Backend)
	}
	return nil
}
