// Package config loads service settings from the environment, reading a
// .env file first when one is present.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Archive backends for finished games.
const (
	ArchiveNone     = "none"
	ArchivePostgres = "postgres"
	ArchiveBadger   = "badger"
)

// Config holds the service settings.
type Config struct {
	Addr        string        // RIFTS_ADDR
	JWTSecret   string        // RIFTS_JWT_SECRET
	RedisURL    string        // RIFTS_REDIS_URL; empty disables the cache
	DatabaseURL string        // RIFTS_DATABASE_URL
	Archive     string        // RIFTS_ARCHIVE: postgres, badger or none
	BadgerDir   string        // RIFTS_BADGER_DIR
	LogLevel    string        // LOG_LEVEL
	LogFormat   string        // LOG_FORMAT: text or json
	RoomTTL     time.Duration // RIFTS_ROOM_TTL; lifetime of cached room snapshots
}

// Load reads the configuration. Missing .env files are not an error; any
// other .env problem is.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	cfg := &Config{
		Addr:        getenv("RIFTS_ADDR", ":8080"),
		JWTSecret:   os.Getenv("RIFTS_JWT_SECRET"),
		RedisURL:    os.Getenv("RIFTS_REDIS_URL"),
		DatabaseURL: os.Getenv("RIFTS_DATABASE_URL"),
		Archive:     strings.ToLower(getenv("RIFTS_ARCHIVE", ArchiveNone)),
		BadgerDir:   getenv("RIFTS_BADGER_DIR", "data/archive"),
		LogLevel:    getenv("LOG_LEVEL", "info"),
		LogFormat:   strings.ToLower(getenv("LOG_FORMAT", "text")),
	}

	ttl, err := time.ParseDuration(getenv("RIFTS_ROOM_TTL", "24h"))
	if err != nil {
		return nil, fmt.Errorf("RIFTS_ROOM_TTL: %w", err)
	}
	cfg.RoomTTL = ttl

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the settings are consistent.
func (c *Config) Validate() error {
	switch c.Archive {
	case ArchiveNone, ArchiveBadger:
	case ArchivePostgres:
		if c.DatabaseURL == "" {
			return errors.New("RIFTS_ARCHIVE=postgres requires RIFTS_DATABASE_URL")
		}
	default:
		return fmt.Errorf("RIFTS_ARCHIVE: unknown backend %q", c.Archive)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("LOG_FORMAT: unknown format %q", c.LogFormat)
	}
	if c.RoomTTL <= 0 {
		return errors.New("RIFTS_ROOM_TTL must be positive")
	}
	return nil
}

// ConfigureLogger applies the level and format settings to l.
func (c *Config) ConfigureLogger(l *logrus.Logger) error {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	l.SetLevel(lvl)
	if c.LogFormat == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return nil
}

func getenv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}
