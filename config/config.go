package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort string

	DBDriver   string // "postgres" or "sqlite"
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	SQLitePath string

	RabbitURL string
	RedisURL  string

	// Per-transaction bounds. Postgres only; SQLite relies on its busy timeout.
	LockTimeout      time.Duration
	StatementTimeout time.Duration
	TxMaxRetries     int
	TxRetryBackoff   time.Duration

	BalanceCacheTTL time.Duration
}

// Load reads .env (if present) and the process environment.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ServerPort: getEnv("SERVER_PORT", "8083"),

		DBDriver:   getEnv("DB_DRIVER", "postgres"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "bidding_db"),
		SQLitePath: getEnv("SQLITE_PATH", "bidding.db"),

		RabbitURL: getEnv("RABBITMQ_URL", ""),
		RedisURL:  getEnv("REDIS_URL", ""),

		LockTimeout:      getDuration("LOCK_TIMEOUT", 5*time.Second),
		StatementTimeout: getDuration("STATEMENT_TIMEOUT", 15*time.Second),
		TxMaxRetries:     getInt("TX_MAX_RETRIES", 3),
		TxRetryBackoff:   getDuration("TX_RETRY_BACKOFF", 50*time.Millisecond),

		BalanceCacheTTL: getDuration("BALANCE_CACHE_TTL", 30*time.Second),
	}
}

// DSN returns the connection string for the configured driver.
func (c *Config) DSN() string {
	if c.DBDriver == "sqlite" {
		return fmt.Sprintf("file:%s?_foreign_keys=1&_busy_timeout=%d&_txlock=immediate",
			c.SQLitePath, c.LockTimeout.Milliseconds())
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName,
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}
