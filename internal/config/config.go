package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/rackstat/rackstat/internal/logger"
	"github.com/rackstat/rackstat/internal/registry"
)

// Config is the top-level TOML structure.
//
//	listen = ":8080"
//	base_path = "/api"
//	[store]
//	type = "sqlite"           # sqlite | postgres | file
//	path = "computers.db"     # sqlite/file backends
//	dsn  = ""                 # full DSN, overrides type/path when set
//	[registry]
//	file = "inventory.txt"    # optional newline-delimited inventory
//	ids  = ["A1", "B2"]       # explicit override, wins over file
//	[log]
//	dir = ""                  # empty: stderr
//	level = "info"
//	[metrics]
//	enabled = true
type Config struct {
	Listen   string         `toml:"listen" mapstructure:"listen"`
	BasePath string         `toml:"base_path" mapstructure:"base_path"`
	Store    StoreConfig    `toml:"store" mapstructure:"store"`
	Registry RegistryConfig `toml:"registry" mapstructure:"registry"`
	Log      logger.Config  `toml:"log" mapstructure:"log"`
	Metrics  MetricsConfig  `toml:"metrics" mapstructure:"metrics"`
}

type StoreConfig struct {
	Type string `toml:"type" mapstructure:"type"`
	Path string `toml:"path" mapstructure:"path"`
	DSN  string `toml:"dsn" mapstructure:"dsn"`
}

type RegistryConfig struct {
	File string   `toml:"file" mapstructure:"file"`
	IDs  []string `toml:"ids" mapstructure:"ids"`
}

type MetricsConfig struct {
	Enabled bool `toml:"enabled" mapstructure:"enabled"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Listen:   ":8080",
		BasePath: "/api",
		Store:    StoreConfig{Type: "sqlite", Path: "computers.db"},
		Log:      logger.Config{Level: "info"},
		Metrics:  MetricsConfig{Enabled: true},
	}
}

// Load reads a TOML config file. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	c := Default()
	if strings.TrimSpace(path) == "" {
		return c, nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	if err := v.Unmarshal(c); err != nil {
		return nil, err
	}
	if _, err := c.StoreDSN(); err != nil {
		return nil, err
	}
	return c, nil
}

// StoreDSN resolves the [store] section into a factory DSN.
func (c *Config) StoreDSN() (string, error) {
	if dsn := strings.TrimSpace(c.Store.DSN); dsn != "" {
		return dsn, nil
	}
	path := strings.TrimSpace(c.Store.Path)
	switch strings.ToLower(strings.TrimSpace(c.Store.Type)) {
	case "", "sqlite":
		if path == "" {
			path = "computers.db"
		}
		return "sqlite://" + path, nil
	case "file":
		if path == "" {
			path = "computers.json"
		}
		return "file://" + path, nil
	case "postgres", "postgresql":
		return "", fmt.Errorf("store type %q requires store.dsn", c.Store.Type)
	default:
		return "", fmt.Errorf("unknown store type %q", c.Store.Type)
	}
}

// BuildRegistry resolves the [registry] section: explicit IDs win over an
// inventory file, which wins over the compiled-in default.
func (c *Config) BuildRegistry() (*registry.Registry, error) {
	if len(c.Registry.IDs) > 0 {
		return registry.New(c.Registry.IDs)
	}
	if f := strings.TrimSpace(c.Registry.File); f != "" {
		return registry.Load(f)
	}
	return registry.Default(), nil
}
