package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DatabasePostgres = "postgres"
	DatabaseSQLite   = "sqlite"
)

type Config struct {
	Port         string
	DatabaseType string
	DatabaseURL  string
	// RedisURL empty means votes only travel inside this process.
	RedisURL string

	HostTokenSecret []byte
	HostTokenTTL    time.Duration

	AllowedOrigins []string
	LogLevel       slog.Level
	SendTimeout    time.Duration
	ShutdownGrace  time.Duration
}

// Load reads the environment, after a best effort load of a .env file.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

func FromEnv() (Config, error) {
	cfg := Config{
		Port:            getenv("PORT", "3003"),
		DatabaseType:    strings.ToLower(getenv("DATABASE_TYPE", DatabasePostgres)),
		DatabaseURL:     getenv("DATABASE_URL", ""),
		RedisURL:        getenv("REDIS_URL", ""),
		HostTokenSecret: []byte(getenv("HOST_TOKEN_SECRET", "")),
		HostTokenTTL:    getenvDuration("HOST_TOKEN_TTL", 12*time.Hour),
		AllowedOrigins:  splitList(getenv("ALLOWED_ORIGINS", "")),
		SendTimeout:     getenvDuration("SEND_TIMEOUT", 5*time.Second),
		ShutdownGrace:   time.Duration(getenvInt("SHUTDOWN_GRACE_SECONDS", 10)) * time.Second,
	}

	if len(cfg.HostTokenSecret) == 0 {
		return Config{}, errors.New("config: HOST_TOKEN_SECRET is empty, cannot sign host tokens")
	}

	switch cfg.DatabaseType {
	case DatabasePostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, errors.New("config: DATABASE_URL is required for postgres")
		}
	case DatabaseSQLite:
		if cfg.DatabaseURL == "" {
			cfg.DatabaseURL = "file:votes.db?_pragma=busy_timeout(5000)"
		}
	default:
		return Config{}, fmt.Errorf("config: unsupported DATABASE_TYPE %q", cfg.DatabaseType)
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(getenv("LOG_LEVEL", "info"))); err != nil {
		return Config{}, fmt.Errorf("config: LOG_LEVEL: %w", err)
	}

	return cfg, nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getenvDuration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
