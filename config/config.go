// Package config loads the server configuration from a TOML file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	Server ServerConfig `toml:"server"`
	DB     DBConfig     `toml:"db"`
	Log    LogConfig    `toml:"log"`
	Seed   SeedConfig   `toml:"seed"`
	Cache  CacheConfig  `toml:"cache"`
}

type ServerConfig struct {
	Port           string   `toml:"port"`
	ReadTimeout    Duration `toml:"read_timeout"`
	WriteTimeout   Duration `toml:"write_timeout"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

type DBConfig struct {
	// Path is a file path or ":memory:".
	Path string `toml:"path"`
}

type LogConfig struct {
	Level     slog.Level `toml:"level"`
	Format    string     `toml:"format"` // "text" or "json"
	AddSource bool       `toml:"add_source"`

	// File enables rotation through lumberjack; empty logs to stdout.
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

type SeedConfig struct {
	// Demo loads the demo stations, clients and catalog on an empty database.
	Demo bool `toml:"demo"`
}

type CacheConfig struct {
	IdentitySize int `toml:"identity_size"`
}

// Duration decodes TOML strings like "15s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns a configuration that runs out of the box.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:           "8080",
			ReadTimeout:    Duration{15 * time.Second},
			WriteTimeout:   Duration{15 * time.Second},
			AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
		},
		DB: DBConfig{Path: "./data/loyalty.db"},
		Log: LogConfig{
			Level:      slog.LevelInfo,
			Format:     "text",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 28,
		},
		Seed:  SeedConfig{Demo: true},
		Cache: CacheConfig{IdentitySize: 1024},
	}
}

// Load reads path over the defaults. Keys missing from the file keep their
// default value.
func Load(path string) (Config, error) {
	cfg := Default()

	file, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	if err := toml.NewDecoder(file).DisallowUnknownFields().Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port is required"))
	}
	if c.DB.Path == "" {
		errs = append(errs, errors.New("db.path is required"))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	if c.Cache.IdentitySize < 1 {
		errs = append(errs, errors.New("cache.identity_size must be at least 1"))
	}
	return errors.Join(errs...)
}
