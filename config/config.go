/*
config.go - Server configuration

PURPOSE:
  Collects everything cmd/server needs to start: listen port, database
  path, logging, CORS origins and the engine's release policy.

LOAD ORDER (later wins):
  1. Default()
  2. .env in the working directory, if present (only sets variables that
     are not already in the environment)
  3. YAML file passed to Load, if it exists
  4. FRONTDESK_* environment variables
  5. command-line flags (applied by cmd/server)

EXAMPLE FILE:
  server:
    port: 8080
    cors_origins: ["http://localhost:5173"]
  database:
    path: frontdesk.db
    busy_timeout: 5s
  log:
    level: info
    format: text
  engine:
    release_completed_stays: true

SEE ALSO:
  - cmd/server/main.go: flags and startup
  - engine/engine.go: the options built by EngineOptions
*/
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/warp/frontdesk-engine/engine"
	"gopkg.in/yaml.v3"
)

const envPrefix = "FRONTDESK_"

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Engine   EngineConfig   `yaml:"engine"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	// Path is a file path or ":memory:".
	Path        string        `yaml:"path"`
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

type EngineConfig struct {
	// ReleaseCompletedStays lets a finished stay stop blocking its room.
	// When false only canceled bookings release their dates.
	ReleaseCompletedStays bool `yaml:"release_completed_stays"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			CORSOrigins:     []string{"http://localhost:5173", "http://localhost:8080"},
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Path:        "frontdesk.db",
			BusyTimeout: 5 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Engine: EngineConfig{
			ReleaseCompletedStays: true,
		},
	}
}

// Load builds a Config. A missing file at path is not an error; an empty
// path skips the file entirely.
func Load(path string) (Config, error) {
	cfg := Default()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	if v, ok := lookup("PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sPORT: %w", envPrefix, err)
		}
		c.Server.Port = port
	}
	if v, ok := lookup("DB_PATH"); ok {
		c.Database.Path = v
	}
	if v, ok := lookup("BUSY_TIMEOUT_MS"); ok {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sBUSY_TIMEOUT_MS: %w", envPrefix, err)
		}
		c.Database.BusyTimeout = time.Duration(ms) * time.Millisecond
	}
	if v, ok := lookup("LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	if v, ok := lookup("LOG_FORMAT"); ok {
		c.Log.Format = v
	}
	if v, ok := lookup("RELEASE_COMPLETED"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sRELEASE_COMPLETED: %w", envPrefix, err)
		}
		c.Engine.ReleaseCompletedStays = b
	}
	if v, ok := lookup("CORS_ORIGINS"); ok {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		c.Server.CORSOrigins = origins
	}
	return nil
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(envPrefix + key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Database.Path == "" {
		return errors.New("database.path is required")
	}
	if c.Database.BusyTimeout < 0 {
		return errors.New("database.busy_timeout must not be negative")
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format %q: want text or json", c.Log.Format)
	}
	return nil
}

// =============================================================================
// DERIVED VALUES
// =============================================================================

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log.level %q: %w", s, err)
	}
	return level, nil
}

// NewLogger builds the process logger writing to w.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func (c Config) ReleasePolicy() engine.ReleasePolicy {
	if c.Engine.ReleaseCompletedStays {
		return engine.ReleaseCanceledAndCompleted
	}
	return engine.ReleaseCanceled
}

// EngineOptions returns the engine options this configuration implies.
func (c Config) EngineOptions(log *slog.Logger) []engine.Option {
	return []engine.Option{
		engine.WithLogger(log),
		engine.WithReleasePolicy(c.ReleasePolicy()),
	}
}

func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}
