package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Environment string

	// Hosted backend
	DatabaseURL string
	AuthURL     string
	AuthAnonKey string

	// Local state
	DataDir  string
	VaultKey string // optional per-install override of the fixed vault key

	// Optional server-side cache
	RedisURL string

	// Remote call bounds
	RemoteTimeout   time.Duration
	DetachedTimeout time.Duration

	// Logging
	LogLevel string
}

func Load() (*Config, error) {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	return &Config{
		Environment: getEnv("ENV", "development"),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		AuthURL:     getEnv("AUTH_URL", ""),
		AuthAnonKey: getEnv("AUTH_ANON_KEY", ""),

		DataDir:  getEnv("DATA_DIR", defaultDataDir()),
		VaultKey: getEnv("VAULT_KEY", ""),

		RedisURL: getEnv("REDIS_URL", ""),

		RemoteTimeout:   time.Duration(getEnvInt("REMOTE_TIMEOUT_SEC", 15)) * time.Second,
		DetachedTimeout: time.Duration(getEnvInt("DETACHED_TIMEOUT_SEC", 30)) * time.Second,

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}, nil
}

func defaultDataDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return dir + "/rashadai"
	}
	return ".rashadai"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
