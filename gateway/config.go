package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is read once at startup from the environment.
type Config struct {
	Port         string
	UpstreamURL  *url.URL
	AllowOrigins []string

	BusyMinVisible time.Duration
	BusyWatchdog   time.Duration

	CacheEnabled  bool
	CacheTTL      time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	ShutdownTimeout time.Duration
}

func loadConfig() (Config, error) {
	upstream, err := url.Parse(getEnv("UPSTREAM_URL", "http://127.0.0.1:8000"))
	if err != nil {
		return Config{}, fmt.Errorf("parse UPSTREAM_URL: %w", err)
	}
	if upstream.Scheme != "http" && upstream.Scheme != "https" {
		return Config{}, fmt.Errorf("UPSTREAM_URL must be http or https, got %q", upstream.String())
	}
	if upstream.Host == "" {
		return Config{}, fmt.Errorf("UPSTREAM_URL has no host: %q", upstream.String())
	}

	origins := splitList(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:3001"))
	if len(origins) == 0 {
		return Config{}, errors.New("CORS_ALLOW_ORIGINS is empty")
	}

	return Config{
		Port:         getEnv("PORT", "3000"),
		UpstreamURL:  upstream,
		AllowOrigins: origins,

		BusyMinVisible: getEnvAsDuration("BUSY_MIN_VISIBLE_MS", 1000, time.Millisecond),
		BusyWatchdog:   getEnvAsDuration("BUSY_WATCHDOG_MS", 15000, time.Millisecond),

		CacheEnabled:  getCacheEnabled(),
		CacheTTL:      getEnvAsDuration("CACHE_TTL_SECONDS", 60, time.Second),
		RedisAddr:     getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT_SECONDS", 10, time.Second),
	}, nil
}

func getCacheEnabled() bool {
	return os.Getenv("CACHE_ENABLED") == "true"
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// getEnvAsDuration reads a positive integer count of unit.
func getEnvAsDuration(key string, fallback int, unit time.Duration) time.Duration {
	n := getEnvAsInt(key, fallback)
	if n <= 0 {
		n = fallback
	}
	return time.Duration(n) * unit
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
