// Package config loads the process configuration for the bounties binary.
//
// Load reads a YAML file, checks it against the embedded CUE schema,
// applies BOUNTIES_* environment overrides, fills defaults and validates
// the result.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSource string

// Config holds all configuration for the bounties binary.
type Config struct {
	Store     StoreConfig     `yaml:"store"`
	Log       LogConfig       `yaml:"log"`
	Keeper    KeeperConfig    `yaml:"keeper"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	Venue     VenueConfig     `yaml:"venue"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type KeeperConfig struct {
	TickInterval    time.Duration `yaml:"-"`
	TickIntervalStr string        `yaml:"tick_interval"`
	BatchSize       uint32        `yaml:"batch_size"`
	Executor        string        `yaml:"executor"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// AnalyticsConfig enables Redis event counters when RedisAddr is set.
type AnalyticsConfig struct {
	RedisAddr    string        `yaml:"redis_addr"`
	Window       time.Duration `yaml:"-"`
	WindowStr    string        `yaml:"window"`
	Retention    time.Duration `yaml:"-"`
	RetentionStr string        `yaml:"retention"`
}

// VenueConfig seeds the paper venue. Prices are keyed "base/quote".
type VenueConfig struct {
	Prices map[string]string `yaml:"prices"`
	Spread string            `yaml:"spread"`
}

// Defaults
const (
	DefaultStorePath    = "bounties.db"
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "text"
	DefaultTickInterval = 10 * time.Second
	DefaultBatchSize    = 100
	DefaultMetricsAddr  = ":9090"
	DefaultWindow       = time.Hour
	DefaultRetention    = 7 * 24 * time.Hour
)

// Load reads configuration from path. An empty path loads defaults and
// environment overrides only.
func Load(path string) (*Config, error) {
	var data []byte
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return Parse(data)
}

// Parse loads configuration from YAML bytes.
func Parse(data []byte) (*Config, error) {
	if err := checkSchema(data); err != nil {
		return nil, err
	}

	cfg := &Config{}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// checkSchema validates the raw document against #Config.
func checkSchema(data []byte) error {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	if doc == nil {
		doc = map[string]any{}
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	value := schema.LookupPath(cue.ParsePath("#Config")).Unify(ctx.Encode(doc))
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("config schema: %w", err)
	}
	return nil
}

// applyEnv overrides file values with BOUNTIES_* environment variables.
func (c *Config) applyEnv() {
	if v := os.Getenv("BOUNTIES_DB_PATH"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("BOUNTIES_LOG_LEVEL"); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	if v := os.Getenv("BOUNTIES_METRICS_ADDR"); v != "" {
		c.Metrics.Addr = v
		c.Metrics.Enabled = true
	}
	if v := os.Getenv("BOUNTIES_REDIS_ADDR"); v != "" {
		c.Analytics.RedisAddr = v
	}
	if v := os.Getenv("BOUNTIES_TICK_INTERVAL"); v != "" {
		c.Keeper.TickIntervalStr = v
	}
}

func (c *Config) applyDefaults() {
	if c.Store.Path == "" {
		c.Store.Path = DefaultStorePath
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
	if c.Keeper.BatchSize == 0 {
		c.Keeper.BatchSize = DefaultBatchSize
	}
	if c.Keeper.Executor == "" {
		c.Keeper.Executor = c.Ledger.Admin
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = DefaultMetricsAddr
	}
}
