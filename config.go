package abac

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config drives an analysis run: which strategy, which domain vocabulary,
// where the policy text lives, and the enumeration and cache knobs.
type Config struct {
	Strategy string       `json:"strategy" yaml:"strategy"`
	Domain   string       `json:"domain" yaml:"domain"`
	Policy   string       `json:"policy" yaml:"policy"`
	MaxUsers int          `json:"max_users" yaml:"max_users"`
	Workers  int          `json:"workers" yaml:"workers"`
	Engine   EngineConfig `json:"engine" yaml:"engine"`
	Store    StoreConfig  `json:"store" yaml:"store"`
	Logging  LogConfig    `json:"logging" yaml:"logging"`
}

type EngineConfig struct {
	RistrettoNumCounter int64 `json:"ristretto_num_counter" yaml:"ristretto_num_counter"`
	RistrettoMaxCost    int64 `json:"ristretto_max_cost" yaml:"ristretto_max_cost"`
	RistrettoBuffer     int64 `json:"ristretto_buffer" yaml:"ristretto_buffer"`
}

// StoreConfig selects where parsed policy documents are persisted.
// Driver is one of "memory", "sqlite", "redis".
type StoreConfig struct {
	Driver string `json:"driver" yaml:"driver"`
	DSN    string `json:"dsn" yaml:"dsn"`
}

type LogConfig struct {
	// Backend is one of "phuslu", "slog", "null"
	Backend string `json:"backend" yaml:"backend"`
	Level   string `json:"level" yaml:"level"`
}

// DefaultConfig returns the baseline configuration
func DefaultConfig() *Config {
	return &Config{
		Strategy: StrategyOrdered,
		Domain:   "university",
		Store:    StoreConfig{Driver: "memory"},
		Logging:  LogConfig{Backend: "phuslu", Level: "info"},
	}
}

// ConfigLoader loads configuration from YAML or JSON
type ConfigLoader struct{}

func NewConfigLoader() *ConfigLoader {
	return &ConfigLoader{}
}

func (l *ConfigLoader) LoadYAML(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func (l *ConfigLoader) LoadJSON(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// LoadFile loads a config file, picking the format from the extension
func (l *ConfigLoader) LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return l.LoadYAML(data)
	case ".json":
		return l.LoadJSON(data)
	}
	return nil, fmt.Errorf("unsupported config format: %s", path)
}

// ToYAML exports config to YAML
func (c *Config) ToYAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// ToJSON exports config to JSON
func (c *Config) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// Validate rejects values no component could act on
func (c *Config) Validate() error {
	switch c.Strategy {
	case StrategyNaive, StrategyOrdered, StrategyIndexed, StrategyBitmask, StrategyCached, StrategyParallel:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStrategy, c.Strategy)
	}
	switch c.Store.Driver {
	case "", "memory", "sqlite", "redis":
	default:
		return fmt.Errorf("unknown store driver: %q", c.Store.Driver)
	}
	switch c.Logging.Backend {
	case "", "phuslu", "slog", "null":
	default:
		return fmt.Errorf("unknown log backend: %q", c.Logging.Backend)
	}
	if c.MaxUsers < 0 {
		return fmt.Errorf("max_users must not be negative: %d", c.MaxUsers)
	}
	return nil
}
