// Package config loads medibox settings from the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environment variables read by Load.
const (
	EnvDB             = "MEDIBOX_DB"
	EnvHTTPAddr       = "MEDIBOX_HTTP_ADDR"
	EnvCredentials    = "GOOGLE_APPLICATION_CREDENTIALS"
	EnvOrderTopic     = "MEDIBOX_ORDER_TOPIC"
	EnvHandlerTimeout = "MEDIBOX_HANDLER_TIMEOUT"
	EnvLogLevel       = "MEDIBOX_LOG_LEVEL"
)

// Config holds application configuration values.
type Config struct {
	DBPath          string
	HTTPAddr        string
	CredentialsFile string
	OrderTopic      string
	HandlerTimeout  time.Duration
	LogLevel        slog.Level
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		DBPath:         "medibox.db",
		HTTPAddr:       ":8080",
		OrderTopic:     "medicineOrder",
		HandlerTimeout: 60 * time.Second,
		LogLevel:       slog.LevelInfo,
	}
}

// Load reads envFiles (missing files are ignored) and then the environment.
// Variables already set in the environment win over file values.
func Load(envFiles ...string) (Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from lookup, falling back to Default for unset
// variables.
func FromEnv(lookup func(string) string) (Config, error) {
	cfg := Default()

	if v := lookup(EnvDB); v != "" {
		cfg.DBPath = v
	}
	if v := lookup(EnvHTTPAddr); v != "" {
		cfg.HTTPAddr = v
	}
	cfg.CredentialsFile = lookup(EnvCredentials)
	if v := lookup(EnvOrderTopic); v != "" {
		cfg.OrderTopic = v
	}
	if v := lookup(EnvHandlerTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return Config{}, fmt.Errorf("%s: invalid duration %q", EnvHandlerTimeout, v)
		}
		cfg.HandlerTimeout = d
	}
	if v := lookup(EnvLogLevel); v != "" {
		level, err := ParseLevel(v)
		if err != nil {
			return Config{}, err
		}
		cfg.LogLevel = level
	}
	return cfg, nil
}

// ParseLevel accepts debug, info, warn or error in any case.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("%s: invalid level %q", EnvLogLevel, s)
	}
	return level, nil
}
