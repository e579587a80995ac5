package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                 string
	DatabaseURL          string
	PITSecret            string
	PITTTL               time.Duration
	RateLimitPerMinute   int
	RateLimitBurst       int
	RealtimePollInterval time.Duration
	NotifyInterval       time.Duration
	NotifyBatchSize      int
}

func Load() Config {
	// Missing .env is fine; real deployments inject the environment.
	_ = godotenv.Load()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	return Config{
		Port:                 port,
		DatabaseURL:          os.Getenv("DB_DSN"),
		PITSecret:            os.Getenv("PIT_SECRET"),
		PITTTL:               readDurationSeconds("PIT_TTL_SECONDS", 7200),
		RateLimitPerMinute:   readInt("RATE_LIMIT_PER_MIN", 120),
		RateLimitBurst:       readInt("RATE_LIMIT_BURST", 30),
		RealtimePollInterval: readDurationSeconds("REALTIME_POLL_INTERVAL_SECONDS", 2),
		NotifyInterval:       readDurationSeconds("NOTIFY_SCAN_INTERVAL_SECONDS", 5),
		NotifyBatchSize:      readInt("NOTIFY_BATCH_SIZE", 100),
	}
}

func readDurationSeconds(key string, fallback int) time.Duration {
	value := readInt(key, fallback)
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Second
}

func readInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
