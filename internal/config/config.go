// Package config provides centralized configuration loaded from environment
// variables. Shared by cmd/vakitd and cmd/vakit.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Default backend endpoints. Overridable for staging and tests.
const (
	DefaultTakvimBaseURL = "https://api.takvim.example.com"
	DefaultLegacyBaseURL = "http://legacy.takvim.example.com"
)

// Config is populated from environment variables.
type Config struct {
	// API server
	APIHost          string
	APIPort          int
	CORSAllowOrigins []string
	Debug            bool

	// Backends
	TakvimBaseURL string
	LegacyBaseURL string
	HTTPTimeout   time.Duration
	RemoteRPM     int

	// Storage
	CacheDir string
	StateDB  string

	// Location defaults (used when no location collaborator is attached)
	Latitude      float64
	Longitude     float64
	Altitude      float64
	TZOffsetHours float64

	// Alarm pass
	RescheduleCron  string
	AlarmWindowDays int
}

// Load reads configuration from environment variables with sensible
// defaults. The fetch timeout is clamped to the 10–30s bound every remote
// call must carry.
func Load() (*Config, error) {
	dataDir := envOr("VAKIT_DATA_DIR", defaultDataDir())

	timeout := time.Duration(envInt("HTTP_TIMEOUT_SECONDS", 15)) * time.Second
	if timeout < 10*time.Second {
		timeout = 10 * time.Second
	}
	if timeout > 30*time.Second {
		timeout = 30 * time.Second
	}

	cfg := &Config{
		APIHost:          envOr("VAKIT_API_HOST", "0.0.0.0"),
		APIPort:          envInt("VAKIT_API_PORT", envInt("PORT", 8090)),
		CORSAllowOrigins: envList("VAKIT_CORS_ORIGINS", []string{"http://localhost:3000"}),
		Debug:            envBool("DEBUG", false),

		TakvimBaseURL: envOr("TAKVIM_BASE_URL", DefaultTakvimBaseURL),
		LegacyBaseURL: envOr("LEGACY_BASE_URL", DefaultLegacyBaseURL),
		HTTPTimeout:   timeout,
		RemoteRPM:     envInt("REMOTE_RPM", 30),

		CacheDir: envOr("CACHE_DIR", filepath.Join(dataDir, "cache")),
		StateDB:  envOr("STATE_DB", filepath.Join(dataDir, "state.db")),

		Latitude:      envFloat("LATITUDE", 41.0082),
		Longitude:     envFloat("LONGITUDE", 28.9784),
		Altitude:      envFloat("ALTITUDE", 0),
		TZOffsetHours: envFloat("TZ_OFFSET_HOURS", 3),

		RescheduleCron:  envOr("RESCHEDULE_CRON", "@hourly"),
		AlarmWindowDays: envInt("ALARM_WINDOW_DAYS", 30),
	}

	if cfg.Latitude < -90 || cfg.Latitude > 90 {
		return nil, fmt.Errorf("LATITUDE %v out of range", cfg.Latitude)
	}
	if cfg.Longitude < -180 || cfg.Longitude > 180 {
		return nil, fmt.Errorf("LONGITUDE %v out of range", cfg.Longitude)
	}
	return cfg, nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".vakit"
	}
	return filepath.Join(home, ".vakit")
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

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
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
