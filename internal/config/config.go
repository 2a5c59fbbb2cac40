// Package config provides centralized configuration loaded from environment
// variables. Shared by all regpulse subcommands.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Config struct — populated from environment variables
// --------------------------------------------------------------------------

type Config struct {
	// Database
	DatabaseURL    string
	DBPoolMinConns int
	DBPoolMaxConns int
	DBPoolMaxLife  time.Duration

	// Polling
	PollInterval time.Duration

	// Leaderboard posts, wall-clock times of day ("HH:MM").
	LeaderboardTimes []string
	LeaderboardSize  int

	// CutoffDate suppresses all scheduled activity from this instant on.
	// Zero means no cutoff.
	CutoffDate time.Time

	// Delivery
	SlackWebhookURL string

	// API server
	APIHost     string
	APIPort     int
	Environment string // development, staging, production
	Debug       bool

	// CORS
	CORSAllowOrigins []string

	// Rate limiting
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Cache
	CacheEnabled bool

	// Maintenance
	RetentionDays   int
	CleanupInterval time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	dbURL := envOr("DATABASE_URL", envOr("REGPULSE_DATABASE_URL", ""))
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL or REGPULSE_DATABASE_URL must be set")
	}

	cutoff, err := parseCutoff(os.Getenv("CUTOFF_DATE"))
	if err != nil {
		return nil, err
	}

	times, err := parseTimes(envOr("LEADERBOARD_TIMES", "09:00,17:00"))
	if err != nil {
		return nil, err
	}

	return &Config{
		DatabaseURL:    dbURL,
		DBPoolMinConns: envInt("DB_POOL_MIN_CONNS", 2),
		DBPoolMaxConns: envInt("DB_POOL_MAX_CONNS", 10),
		DBPoolMaxLife:  time.Duration(envInt("DB_POOL_MAX_LIFE_MINUTES", 30)) * time.Minute,

		PollInterval: time.Duration(envInt("POLL_INTERVAL_MINUTES", 15)) * time.Minute,

		LeaderboardTimes: times,
		LeaderboardSize:  envInt("LEADERBOARD_SIZE", 10),
		CutoffDate:       cutoff,

		SlackWebhookURL: envOr("SLACK_WEBHOOK_URL", ""),

		APIHost:     envOr("API_HOST", "0.0.0.0"),
		APIPort:     envInt("API_PORT", envInt("PORT", 8000)),
		Environment: envOr("ENVIRONMENT", "development"),
		Debug:       envBool("DEBUG", false),

		CORSAllowOrigins: envList("CORS_ALLOW_ORIGINS", []string{
			"http://localhost:3000",
			"http://localhost:5173",
		}),

		RateLimitEnabled:  envBool("RATE_LIMIT_ENABLED", true),
		RateLimitRequests: envInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   time.Duration(envInt("RATE_LIMIT_WINDOW", 60)) * time.Second,

		CacheEnabled: envBool("CACHE_ENABLED", true),

		RetentionDays:   envInt("NOTIFICATION_RETENTION_DAYS", 90),
		CleanupInterval: time.Duration(envInt("CLEANUP_INTERVAL_MINUTES", 60)) * time.Minute,
	}, nil
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// parseCutoff accepts an RFC 3339 timestamp or a bare date.
func parseCutoff(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, fmt.Errorf("CUTOFF_DATE %q: want RFC 3339 or YYYY-MM-DD", v)
	}
	return t, nil
}

// parseTimes validates a comma-separated list of HH:MM times of day.
func parseTimes(v string) ([]string, error) {
	var times []string
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if _, err := time.Parse("15:04", part); err != nil {
			return nil, fmt.Errorf("LEADERBOARD_TIMES entry %q: want HH:MM", part)
		}
		times = append(times, part)
	}
	return times, nil
}

// --------------------------------------------------------------------------
// Env helpers
// --------------------------------------------------------------------------

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
