package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the storefront server settings.
type Config struct {
	Env      string         `yaml:"env"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Session  SessionConfig  `yaml:"session"`
	Uploads  UploadsConfig  `yaml:"uploads"`
	CORS     CORSConfig     `yaml:"cors"`
	// StaticDir holds the built single-page client served in production.
	StaticDir string `yaml:"static_dir"`
}

type ServerConfig struct {
	Port            int    `yaml:"port"`
	ReadTimeout     string `yaml:"read_timeout"`
	WriteTimeout    string `yaml:"write_timeout"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

// DatabaseConfig configures Postgres. An empty DSN runs the server on the
// in-memory store.
type DatabaseConfig struct {
	DSN             string `yaml:"dsn"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime string `yaml:"conn_max_lifetime"`
}

type SessionConfig struct {
	CookieName      string `yaml:"cookie_name"`
	TTL             string `yaml:"ttl"`
	CleanupInterval string `yaml:"cleanup_interval"`
}

type UploadsConfig struct {
	Dir         string `yaml:"dir"`
	MaxFileSize int64  `yaml:"max_file_size"`
	MaxFiles    int    `yaml:"max_files"`
}

type CORSConfig struct {
	AllowedOrigin string `yaml:"allowed_origin"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Env: "development",
		Server: ServerConfig{
			Port:            5000,
			ReadTimeout:     "15s",
			WriteTimeout:    "30s",
			ShutdownTimeout: "10s",
		},
		Database: DatabaseConfig{
			MaxOpenConns:    20,
			MaxIdleConns:    5,
			ConnMaxLifetime: "30m",
		},
		Session: SessionConfig{
			CookieName:      "sessionId",
			TTL:             "24h",
			CleanupInterval: "15m",
		},
		Uploads: UploadsConfig{
			Dir:         "uploads",
			MaxFileSize: 5 << 20,
			MaxFiles:    10,
		},
		CORS: CORSConfig{
			AllowedOrigin: "http://localhost:3000",
		},
		StaticDir: "client/build",
	}
}

// Load reads a YAML config file over the defaults. A missing file is not an
// error. Environment variables win over both.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv("UPLOADS_DIR"); v != "" {
		c.Uploads.Dir = v
	}
	if v := os.Getenv("STATIC_DIR"); v != "" {
		c.StaticDir = v
	}
	if v := os.Getenv("CORS_ORIGIN"); v != "" {
		c.CORS.AllowedOrigin = v
	}
	if v := os.Getenv("APP_ENV"); v != "" {
		c.Env = v
	}
	if v := os.Getenv("SESSION_TTL"); v != "" {
		c.Session.TTL = v
	}
	return nil
}

// Validate checks values that would otherwise fail late at runtime.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	for name, v := range map[string]string{
		"server.read_timeout":        c.Server.ReadTimeout,
		"server.write_timeout":       c.Server.WriteTimeout,
		"server.shutdown_timeout":    c.Server.ShutdownTimeout,
		"session.ttl":                c.Session.TTL,
		"session.cleanup_interval":   c.Session.CleanupInterval,
		"database.conn_max_lifetime": c.Database.ConnMaxLifetime,
	} {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, v, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if c.Session.CookieName == "" {
		return fmt.Errorf("session.cookie_name is required")
	}
	if c.Uploads.Dir == "" {
		return fmt.Errorf("uploads.dir is required")
	}
	if c.Uploads.MaxFileSize <= 0 || c.Uploads.MaxFiles <= 0 {
		return fmt.Errorf("uploads limits must be positive")
	}
	return nil
}

// IsProduction reports whether the server runs with production settings:
// secure cookies and the bundled client.
func (c *Config) IsProduction() bool { return c.Env == "production" }

func duration(v string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func (c *Config) ReadTimeout() time.Duration     { return duration(c.Server.ReadTimeout, 15*time.Second) }
func (c *Config) WriteTimeout() time.Duration    { return duration(c.Server.WriteTimeout, 30*time.Second) }
func (c *Config) ShutdownTimeout() time.Duration { return duration(c.Server.ShutdownTimeout, 10*time.Second) }
func (c *Config) SessionTTL() time.Duration      { return duration(c.Session.TTL, 24*time.Hour) }
func (c *Config) CleanupInterval() time.Duration { return duration(c.Session.CleanupInterval, 15*time.Minute) }
func (c *Config) ConnMaxLifetime() time.Duration { return duration(c.Database.ConnMaxLifetime, 30*time.Minute) }

// Addr is the listen address of the HTTP server.
func (c *Config) Addr() string { return fmt.Sprintf(":%d", c.Server.Port) }
