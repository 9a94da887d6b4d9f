// Package config loads the service configuration from an optional YAML file
// with environment overrides.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"linedash-backend/internal/accounts"
	"linedash-backend/internal/settings"
)

type Config struct {
	Port                   string `yaml:"port"`
	LogLevel               string `yaml:"log_level"`
	SettingsPath           string `yaml:"settings_path"`
	UsersDB                string `yaml:"users_db"`
	EncryptionKey          string `yaml:"encryption_key"`
	NatsURL                string `yaml:"nats_url"`
	LoginAttemptsPerMinute int    `yaml:"login_attempts_per_minute"`
	Timezone               string `yaml:"timezone"`
}

func Defaults() Config {
	return Config{
		Port:                   "8080",
		LogLevel:               "info",
		LoginAttemptsPerMinute: 10,
		Timezone:               "Local",
	}
}

// Load reads path (skipped when empty), applies environment overrides and
// fills the per-installation default paths.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if cfg.SettingsPath == "" {
		p, err := settings.DefaultPath()
		if err != nil {
			return Config{}, err
		}
		cfg.SettingsPath = p
	}
	if cfg.UsersDB == "" {
		p, err := accounts.DefaultPath()
		if err != nil {
			return Config{}, err
		}
		cfg.UsersDB = p
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFromEnv loads the file named by LINEDASH_CONFIG, if any.
func LoadFromEnv() (Config, error) {
	return Load(os.Getenv("LINEDASH_CONFIG"))
}

func (c *Config) applyEnv() {
	setString(&c.Port, "PORT")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.SettingsPath, "LINEDASH_SETTINGS_PATH")
	setString(&c.UsersDB, "LINEDASH_USERS_DB")
	setString(&c.EncryptionKey, "ENCRYPTION_KEY")
	setString(&c.NatsURL, "NATS_URL")
	setString(&c.Timezone, "DASH_TIMEZONE")
	if val := os.Getenv("LOGIN_ATTEMPTS_PER_MINUTE"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			c.LoginAttemptsPerMinute = parsed
		}
	}
}

func setString(dst *string, key string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

func (c Config) Validate() error {
	if c.EncryptionKey != "" && len(c.EncryptionKey) != 32 {
		return fmt.Errorf("encryption key must be 32 bytes")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.LoginAttemptsPerMinute < 0 {
		return fmt.Errorf("login attempts per minute must not be negative")
	}
	return nil
}

// Location is the zone naive timestamps of the external table are read in.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

func parseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}

// NewLogger returns the JSON logger every component shares.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	level, _ := parseLevel(c.LogLevel)
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}
