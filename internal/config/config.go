// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the a2a-server configuration from YAML or TOML files
// and A2A_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config represents the complete a2a-server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	REST      ProtocolConfig  `yaml:"rest" toml:"rest"`
	GRPC      ProtocolConfig  `yaml:"grpc" toml:"grpc"`
	JSONRPC   ProtocolConfig  `yaml:"jsonrpc" toml:"jsonrpc"`
	Agent     AgentConfig     `yaml:"agent" toml:"agent"`
	Execution ExecutionConfig `yaml:"execution" toml:"execution"`
	Store     StoreConfig     `yaml:"store" toml:"store"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics" toml:"metrics"`
	Custom    map[string]any  `yaml:"custom" toml:"custom"`
}

// ServerConfig holds the address shared by every protocol server.
type ServerConfig struct {
	Host string `yaml:"host" toml:"host"`
}

// ProtocolConfig enables one protocol server.
type ProtocolConfig struct {
	Enabled bool `yaml:"enabled" toml:"enabled"`
	Port    int  `yaml:"port" toml:"port"`
}

// AgentConfig describes the served agent.
type AgentConfig struct {
	Name        string `yaml:"name" toml:"name"`
	Description string `yaml:"description" toml:"description"`
	Version     string `yaml:"version" toml:"version"`
}

// ExecutionConfig bounds task execution waits.
type ExecutionConfig struct {
	SyncTimeout time.Duration `yaml:"-" toml:"-"`
	PollTimeout time.Duration `yaml:"-" toml:"-"`

	// Raw string values for unmarshaling
	SyncTimeoutRaw string `yaml:"sync_timeout" toml:"sync_timeout"`
	PollTimeoutRaw string `yaml:"poll_timeout" toml:"poll_timeout"`
}

// Store drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// StoreConfig selects the task store.
type StoreConfig struct {
	Driver string `yaml:"driver" toml:"driver"`
	DSN    string `yaml:"dsn" toml:"dsn"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// MetricsConfig holds metrics endpoint configuration.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" toml:"enabled"`
	Path    string `yaml:"path" toml:"path"`
}

// Default returns the configuration used when no file is given: only the
// JSON-RPC server is enabled.
func Default() *Config {
	return &Config{
		Server:  ServerConfig{Host: "localhost"},
		REST:    ProtocolConfig{Port: 8080},
		GRPC:    ProtocolConfig{Port: 9092},
		JSONRPC: ProtocolConfig{Enabled: true, Port: 7003},
		Agent: AgentConfig{
			Name:        "A2A Agent",
			Description: "An A2A protocol agent",
			Version:     "1.0.0",
		},
		Execution: ExecutionConfig{
			SyncTimeoutRaw: "30s",
			PollTimeoutRaw: "500ms",
		},
		Store: StoreConfig{
			Driver: DriverMemory,
			DSN:    "file::memory:?cache=shared",
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Metrics: MetricsConfig{Path: "/metrics"},
	}
}

// Load reads the configuration file at path over [Default]. The format is
// chosen by extension: .yaml/.yml or .toml. An empty path loads the defaults.
// Environment variables in the format ${VAR_NAME} are expanded, then A2A_*
// overrides are applied and duration strings are parsed.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := decode(path, expandEnvVars(string(data)), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, fmt.Errorf("applying environment: %w", err)
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func decode(path, data string, cfg *Config) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return yaml.Unmarshal([]byte(data), cfg)
	case ".toml":
		_, err := toml.Decode(data, cfg)
		return err
	default:
		return fmt.Errorf("unsupported config format %q", ext)
	}
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

// applyEnv applies the A2A_* overrides found by lookup.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) error {
		v, ok := lookup(key)
		if !ok {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = b
		return nil
	}
	integer := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
		return nil
	}

	str("A2A_HOST", &cfg.Server.Host)
	str("A2A_AGENT_NAME", &cfg.Agent.Name)
	str("A2A_LOG_LEVEL", &cfg.Logging.Level)

	return errors.Join(
		boolean("A2A_REST_ENABLED", &cfg.REST.Enabled),
		integer("A2A_REST_PORT", &cfg.REST.Port),
		boolean("A2A_GRPC_ENABLED", &cfg.GRPC.Enabled),
		integer("A2A_GRPC_PORT", &cfg.GRPC.Port),
		boolean("A2A_JSONRPC_ENABLED", &cfg.JSONRPC.Enabled),
		integer("A2A_JSONRPC_PORT", &cfg.JSONRPC.Port),
	)
}

// parseDurations converts the raw duration strings into time.Duration values.
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Execution.SyncTimeoutRaw != "" {
		cfg.Execution.SyncTimeout, err = time.ParseDuration(cfg.Execution.SyncTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing sync_timeout %q: %w", cfg.Execution.SyncTimeoutRaw, err)
		}
	}

	if cfg.Execution.PollTimeoutRaw != "" {
		cfg.Execution.PollTimeout, err = time.ParseDuration(cfg.Execution.PollTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing poll_timeout %q: %w", cfg.Execution.PollTimeoutRaw, err)
		}
	}

	return nil
}

// Validate checks that all configuration fields are valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	protocols := []struct {
		name string
		cfg  ProtocolConfig
	}{
		{"rest", c.REST},
		{"grpc", c.GRPC},
		{"jsonrpc", c.JSONRPC},
	}
	for _, p := range protocols {
		if p.cfg.Port < 0 || p.cfg.Port > 65535 {
			return fmt.Errorf("%s.port %d is out of range", p.name, p.cfg.Port)
		}
	}
	if c.Agent.Name == "" {
		return errors.New("agent.name is required")
	}
	switch c.Store.Driver {
	case DriverMemory:
	case DriverSQLite:
		if c.Store.DSN == "" {
			return errors.New("store.dsn is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("store.driver %q is not supported", c.Store.Driver)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not supported", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format %q is not supported", c.Logging.Format)
	}
	if c.Execution.SyncTimeout < 0 || c.Execution.PollTimeout < 0 {
		return errors.New("execution timeouts must not be negative")
	}
	return nil
}
