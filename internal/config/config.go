package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the process-wide settings, all overridable via environment
// variables. Values are read once at startup.
type Config struct {
	Port string

	// Cache settings
	CacheDefaultTTL   time.Duration // fallback TTL when a Set passes ttl <= 0
	CacheSweepEvery   time.Duration // background sweep interval for expired entries
	CacheCloneOnRead  bool          // must stay true; exposed for benchmarking only

	// Notification dispatch settings
	NotifyBatchSize int
	NotifyBatchWait time.Duration
}

// Load reads configuration from the environment with sensible defaults.
func Load() Config {
	return Config{
		Port:             getEnv("PORT", ":8008"),
		CacheDefaultTTL:  getDuration("CACHE_DEFAULT_TTL_SECONDS", 3600),
		CacheSweepEvery:  getDuration("CACHE_SWEEP_SECONDS", 600),
		CacheCloneOnRead: getBool("CACHE_CLONE_ON_READ", true),
		NotifyBatchSize:  getInt("NOTIFY_BATCH_SIZE", 10),
		NotifyBatchWait:  getDurationMillis("NOTIFY_BATCH_WAIT_MS", 100),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getDuration(key string, fallbackSeconds int) time.Duration {
	return time.Duration(getInt(key, fallbackSeconds)) * time.Second
}

func getDurationMillis(key string, fallbackMillis int) time.Duration {
	return time.Duration(getInt(key, fallbackMillis)) * time.Millisecond
}
