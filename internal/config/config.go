// Package config loads catgraph settings from a TOML file, a .env file and
// the environment, and opens the stores they describe.
//
// Example catgraph.toml:
//
//	[log]
//	level = "debug"
//
//	[engine]
//	delete_policy = "retract"
//	default_store = "local"
//
//	[server]
//	addr = ":8080"
//
//	[metrics]
//	enabled = true
//
//	[[stores]]
//	id = "local"
//	driver = "sqlite"
//	path = "catgraph.db"
//
//	[[stores]]
//	id = "archive"
//	driver = "s3"
//	bucket = "catgraph"
//	region = "eu-west-1"
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/roach88/catgraph/internal/engine"
)

// Environment variables read by Resolve.
const (
	EnvConfig      = "CATGRAPH_CONFIG"
	EnvLogLevel    = "CATGRAPH_LOG_LEVEL"
	EnvServerAddr  = "CATGRAPH_SERVER_ADDR"
	EnvPostgresDSN = "CATGRAPH_POSTGRES_DSN"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverS3       = "s3"
)

// DefaultStoreID names the store used when the config lists none.
const DefaultStoreID = "default"

// DefaultServerAddr is the listen address of catgraph serve.
const DefaultServerAddr = ":8080"

type LogConfig struct {
	Level string `toml:"level"`
}

type EngineConfig struct {
	DeletePolicy      string `toml:"delete_policy"`
	MaxAppendAttempts int    `toml:"max_append_attempts"`
	// DefaultStore receives writes that name no store. Defaults to the
	// first store.
	DefaultStore string `toml:"default_store"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type MetricsConfig struct {
	Enabled bool `toml:"enabled"`
}

// StoreConfig describes one backend. Which fields apply depends on Driver.
type StoreConfig struct {
	ID     string `toml:"id"`
	Driver string `toml:"driver"`

	// sqlite
	Path string `toml:"path"`

	// postgres
	DSN string `toml:"dsn"`

	// s3
	Bucket          string `toml:"bucket"`
	Prefix          string `toml:"prefix"`
	Region          string `toml:"region"`
	Endpoint        string `toml:"endpoint"`
	AccessKeyID     string `toml:"access_key_id"`
	SecretAccessKey string `toml:"secret_access_key"`
	PathStyle       bool   `toml:"path_style"`
}

type Config struct {
	Log     LogConfig     `toml:"log"`
	Engine  EngineConfig  `toml:"engine"`
	Server  ServerConfig  `toml:"server"`
	Metrics MetricsConfig `toml:"metrics"`
	Stores  []StoreConfig `toml:"stores"`
}

// Default returns the configuration used when no file is given: one memory
// store, info logging, retracting deletes.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads and validates a TOML config file. Unknown keys are rejected.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates TOML config data.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, fmt.Errorf("failed to parse TOML: %s", strict.String())
		}
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Resolve builds the effective configuration. It loads .env from the
// working directory when present, then reads path, or $CATGRAPH_CONFIG when
// path is empty, or falls back to Default. Environment overrides are applied
// last.
func Resolve(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = Load(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Engine.DeletePolicy == "" {
		c.Engine.DeletePolicy = engine.RetractBackReferences.String()
	}
	if c.Engine.MaxAppendAttempts == 0 {
		c.Engine.MaxAppendAttempts = engine.DefaultMaxAppendAttempts
	}
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultServerAddr
	}
	if len(c.Stores) == 0 {
		c.Stores = []StoreConfig{{ID: DefaultStoreID, Driver: DriverMemory}}
	}
	if c.Engine.DefaultStore == "" {
		c.Engine.DefaultStore = c.Stores[0].ID
	}
}

// applyEnv overrides file settings from the environment. The postgres DSN
// fills every postgres store that has none.
func (c *Config) applyEnv() {
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv(EnvServerAddr); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv(EnvPostgresDSN); v != "" {
		for i := range c.Stores {
			if c.Stores[i].Driver == DriverPostgres && c.Stores[i].DSN == "" {
				c.Stores[i].DSN = v
			}
		}
	}
}

// Validate reports the first problem found in the configuration.
func (c *Config) Validate() error {
	if _, err := parseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if _, err := engine.ParseDeletePolicy(c.Engine.DeletePolicy); err != nil {
		return fmt.Errorf("engine.delete_policy: %w", err)
	}
	if c.Engine.MaxAppendAttempts < 1 {
		return fmt.Errorf("engine.max_append_attempts must be at least 1")
	}

	seen := make(map[string]bool, len(c.Stores))
	for i, s := range c.Stores {
		if s.ID == "" {
			return fmt.Errorf("stores[%d]: id is required", i)
		}
		if seen[s.ID] {
			return fmt.Errorf("stores[%d]: duplicate store id %q", i, s.ID)
		}
		seen[s.ID] = true

		switch s.Driver {
		case DriverMemory:
		case DriverSQLite:
			if s.Path == "" {
				return fmt.Errorf("stores[%d] (%s): path is required for sqlite", i, s.ID)
			}
		case DriverPostgres:
			// the DSN may still arrive from the environment
		case DriverS3:
			if s.Bucket == "" {
				return fmt.Errorf("stores[%d] (%s): bucket is required for s3", i, s.ID)
			}
		default:
			return fmt.Errorf("stores[%d] (%s): unknown driver %q", i, s.ID, s.Driver)
		}
	}
	if !seen[c.Engine.DefaultStore] {
		return fmt.Errorf("engine.default_store %q is not a configured store", c.Engine.DefaultStore)
	}
	return nil
}

// LogLevel returns the configured slog level.
func (c *Config) LogLevel() slog.Level {
	level, _ := parseLevel(c.Log.Level)
	return level
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(s))); err != nil {
		return 0, fmt.Errorf("unknown level %q", s)
	}
	return level, nil
}

// EngineOptions returns the engine.Client options the config selects.
func (c *Config) EngineOptions(logger *slog.Logger) []engine.Option {
	policy, _ := engine.ParseDeletePolicy(c.Engine.DeletePolicy)
	return []engine.Option{
		engine.WithLogger(logger),
		engine.WithDeletePolicy(policy),
		engine.WithMaxAppendAttempts(c.Engine.MaxAppendAttempts),
	}
}
