package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Addr   string `env:"ARENA_ADDR" envDefault:":8080"`
	DBPath string `env:"ARENA_DB_PATH" envDefault:"arena.db"`

	// Empty RedisAddr falls back to logging notifications only
	RedisAddr          string `env:"ARENA_REDIS_ADDR"`
	RedisPassword      string `env:"ARENA_REDIS_PASSWORD"`
	RedisDB            int    `env:"ARENA_REDIS_DB" envDefault:"0"`
	RedisChannelPrefix string `env:"ARENA_REDIS_CHANNEL_PREFIX" envDefault:"arena:player:"`

	NotifyQueueSize int           `env:"ARENA_NOTIFY_QUEUE_SIZE" envDefault:"256"`
	NotifyWorkers   int           `env:"ARENA_NOTIFY_WORKERS" envDefault:"2"`
	NotifyTimeout   time.Duration `env:"ARENA_NOTIFY_TIMEOUT" envDefault:"2s"`

	SessionLifetime time.Duration `env:"ARENA_SESSION_LIFETIME" envDefault:"24h"`

	Log LogConfig `envPrefix:"ARENA_LOG_"`
}

type LogConfig struct {
	Level string `env:"LEVEL" envDefault:"info"`
	// File enables a rotated JSON log file next to stdout
	File       string `env:"FILE"`
	MaxSizeMB  int    `env:"MAX_SIZE_MB" envDefault:"100"`
	MaxBackups int    `env:"MAX_BACKUPS" envDefault:"5"`
	MaxAgeDays int    `env:"MAX_AGE_DAYS" envDefault:"14"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load reads an optional .env file and parses the environment into a Config.
func Load() (Config, bool, error) {
	dotenvLoaded := godotenv.Load() == nil

	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, dotenvLoaded, err
	}
	if cfg.NotifyWorkers < 1 {
		return Config{}, dotenvLoaded, fmt.Errorf("ARENA_NOTIFY_WORKERS must be at least 1, got %d", cfg.NotifyWorkers)
	}
	if cfg.NotifyQueueSize < 1 {
		return Config{}, dotenvLoaded, fmt.Errorf("ARENA_NOTIFY_QUEUE_SIZE must be at least 1, got %d", cfg.NotifyQueueSize)
	}
	return cfg, dotenvLoaded, nil
}
