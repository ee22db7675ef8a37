// Package config loads formflowd configuration from a YAML file, an
// optional .env file and FORMFLOW_* environment variables, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the daemon configuration.
type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	Database    DatabaseConfig    `yaml:"database"`
	State       StateConfig       `yaml:"state"`
	Definitions DefinitionsConfig `yaml:"definitions"`
	Log         LogConfig         `yaml:"log"`
}

type HTTPConfig struct {
	Addr         string `yaml:"addr"`
	CookieName   string `yaml:"cookie_name"`
	CookieSecure bool   `yaml:"cookie_secure"`
}

// DatabaseConfig selects the relational backend holding form rows, users
// and, depending on the other sections, definitions and flow state.
type DatabaseConfig struct {
	// Driver is one of sqlite, mysql, postgres (lib/pq) or pgx.
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type StateConfig struct {
	// Backend is one of memory, sql, redis or mongo.
	Backend string `yaml:"backend"`

	RedisAddr   string        `yaml:"redis_addr"`
	RedisPrefix string        `yaml:"redis_prefix"`
	TTL         time.Duration `yaml:"ttl"`

	MongoURI        string `yaml:"mongo_uri"`
	MongoDatabase   string `yaml:"mongo_database"`
	MongoCollection string `yaml:"mongo_collection"`
}

type DefinitionsConfig struct {
	// Backend is one of sql, file or memory.
	Backend string `yaml:"backend"`
	Dir     string `yaml:"dir"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when nothing is set: a local
// SQLite file for everything, served on :8080.
func Default() Config {
	return Config{
		HTTP:        HTTPConfig{Addr: ":8080", CookieName: "formflow_session"},
		Database:    DatabaseConfig{Driver: "sqlite", DSN: "formflow.db"},
		State:       StateConfig{Backend: "sql", TTL: 24 * time.Hour},
		Definitions: DefinitionsConfig{Backend: "sql"},
		Log:         LogConfig{Level: "info", Format: "text"},
	}
}

// Load applies path (skipped when empty), then .env in the working
// directory, then the environment, on top of Default.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"FORMFLOW_HTTP_ADDR":              &c.HTTP.Addr,
		"FORMFLOW_HTTP_COOKIE_NAME":       &c.HTTP.CookieName,
		"FORMFLOW_DATABASE_DRIVER":        &c.Database.Driver,
		"FORMFLOW_DATABASE_DSN":           &c.Database.DSN,
		"FORMFLOW_STATE_BACKEND":          &c.State.Backend,
		"FORMFLOW_STATE_REDIS_ADDR":       &c.State.RedisAddr,
		"FORMFLOW_STATE_REDIS_PREFIX":     &c.State.RedisPrefix,
		"FORMFLOW_STATE_MONGO_URI":        &c.State.MongoURI,
		"FORMFLOW_STATE_MONGO_DATABASE":   &c.State.MongoDatabase,
		"FORMFLOW_STATE_MONGO_COLLECTION": &c.State.MongoCollection,
		"FORMFLOW_DEFINITIONS_BACKEND":    &c.Definitions.Backend,
		"FORMFLOW_DEFINITIONS_DIR":        &c.Definitions.Dir,
		"FORMFLOW_LOG_LEVEL":              &c.Log.Level,
		"FORMFLOW_LOG_FORMAT":             &c.Log.Format,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}

	if v, ok := lookup("FORMFLOW_HTTP_COOKIE_SECURE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("FORMFLOW_HTTP_COOKIE_SECURE: %w", err)
		}
		c.HTTP.CookieSecure = b
	}
	if v, ok := lookup("FORMFLOW_STATE_TTL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("FORMFLOW_STATE_TTL: %w", err)
		}
		c.State.TTL = d
	}
	return nil
}

// Validate rejects unknown backends and missing required settings.
func (c Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "mysql", "postgres", "pgx":
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("database dsn is required")
	}

	switch c.State.Backend {
	case "memory", "sql":
	case "redis":
		if c.State.RedisAddr == "" {
			return errors.New("state backend redis needs redis_addr")
		}
	case "mongo":
		if c.State.MongoURI == "" {
			return errors.New("state backend mongo needs mongo_uri")
		}
	default:
		return fmt.Errorf("unknown state backend %q", c.State.Backend)
	}

	switch c.Definitions.Backend {
	case "sql", "memory":
	case "file":
		if c.Definitions.Dir == "" {
			return errors.New("definitions backend file needs dir")
		}
	default:
		return fmt.Errorf("unknown definitions backend %q", c.Definitions.Backend)
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}

// SlogLevel parses Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(l.Level))); err != nil {
		return 0, fmt.Errorf("log level: %w", err)
	}
	return lvl, nil
}

// NewLogger builds the process logger.
func (l LogConfig) NewLogger() *slog.Logger {
	lvl, err := l.SlogLevel()
	if err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
