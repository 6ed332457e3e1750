// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

// Config holds every setting the server reads from the environment.
type Config struct {
	Port string
	// AllowedOrigins lists CORS origins. Defaults to any http(s) origin.
	AllowedOrigins []string

	// DatabaseURL selects the Postgres store. Empty means the in-memory store.
	DatabaseURL string

	// RedisAddr enables cross-instance event relay. Empty disables it.
	RedisAddr    string
	RedisDB      int
	EventChannel string

	Countdown    time.Duration
	StoreRetries int

	AuthPrivateKeyPath string
	AuthPublicKeyPath  string
	// TokenExpiry of zero means tokens never expire.
	TokenExpiry time.Duration

	LogLevel  logrus.Level
	LogFormat string
}

// Load reads the configuration from the environment (and a .env file, if present).
func Load() (*Config, error) {
	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		AllowedOrigins:     splitList(getEnv("ALLOWED_ORIGINS", "https://*,http://*")),
		DatabaseURL:        databaseURL(),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		EventChannel:       getEnv("LOBBY_EVENTS_CHANNEL", "courtside:lobby_events"),
		AuthPrivateKeyPath: os.Getenv("AUTH_PRIVATE_KEY_PATH"),
		AuthPublicKeyPath:  os.Getenv("AUTH_PUBLIC_KEY_PATH"),
		LogFormat:          getEnv("LOG_FORMAT", "text"),
	}

	var err error
	if cfg.RedisDB, err = getEnvInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.StoreRetries, err = getEnvInt("STORE_RETRIES", 5); err != nil {
		return nil, err
	}
	if cfg.Countdown, err = getEnvDuration("COUNTDOWN", 3*time.Second); err != nil {
		return nil, err
	}
	if cfg.TokenExpiry, err = tokenExpiry(); err != nil {
		return nil, err
	}
	if cfg.LogLevel, err = logrus.ParseLevel(getEnv("LOG_LEVEL", "info")); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	if n, err := strconv.Atoi(cfg.Port); err != nil || n <= 0 || n > 65535 {
		return nil, fmt.Errorf("PORT must be between 1 and 65535, got %q", cfg.Port)
	}
	if cfg.StoreRetries <= 0 {
		return nil, fmt.Errorf("STORE_RETRIES must be positive, got %d", cfg.StoreRetries)
	}
	if cfg.Countdown <= 0 {
		return nil, fmt.Errorf("COUNTDOWN must be positive, got %s", cfg.Countdown)
	}
	if (cfg.AuthPrivateKeyPath == "") != (cfg.AuthPublicKeyPath == "") {
		return nil, fmt.Errorf("AUTH_PRIVATE_KEY_PATH and AUTH_PUBLIC_KEY_PATH must be set together")
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, fmt.Errorf("LOG_FORMAT must be text or json, got %q", cfg.LogFormat)
	}
	return cfg, nil
}

// NewLogger builds the process logger from the log settings.
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(c.LogLevel)
	if c.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}

// databaseURL prefers DATABASE_URL and otherwise assembles one from the POSTGRES_* / PG_* parts.
func databaseURL() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}
	host := os.Getenv("PG_HOST")
	if host == "" {
		return ""
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		os.Getenv("POSTGRES_USER"),
		os.Getenv("POSTGRES_PASSWORD"),
		host,
		getEnv("PG_PORT", "5432"),
		getEnv("PG_DATABASE", "postgres"),
	)
}

// tokenExpiry parses TOKEN_EXPIRE_TIME; "never", "0" or unset disable expiry.
func tokenExpiry() (time.Duration, error) {
	v := os.Getenv("TOKEN_EXPIRE_TIME")
	if v == "" || v == "never" || v == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("failed to parse token expire time: %w", err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getEnvDuration(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
