package config

import (
	_ "embed"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	HTTP      HTTPConfig
	Database  DatabaseConfig
	Search    SearchConfig
	Analytics AnalyticsConfig
	Events    EventsConfig
	Auth      AuthConfig
}

type HTTPConfig struct {
	Host string // defaults to all interfaces
	Port int    // defaults to 8080
}

// Addr returns the host:port listen address.
func (c *HTTPConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL; empty runs the in-memory store
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type SearchConfig struct {
	Threshold  float64 // default similarity threshold when the request does not set one
	Limit      int     // maximum matches per search
	MinVectors int     // embedding count below which events are scanned exactly
}

type AnalyticsConfig struct {
	RefreshInterval time.Duration // period between snapshot rebuilds
}

type EventsConfig struct {
	ExpiryDays      int           // default event lifetime for new events
	CleanupInterval time.Duration // period between expired-event sweeps
}

type AuthConfig struct {
	ServiceKey string // shared secret for the ingestion pipeline; empty disables service access
}

// defaults is the shape of the embedded defaults.yaml. Durations are
// strings so the file can say "5m" instead of nanosecond counts.
type defaults struct {
	Search struct {
		Threshold  float64 `yaml:"threshold"`
		Limit      int     `yaml:"limit"`
		MinVectors int     `yaml:"min_index_vectors"`
	} `yaml:"search"`
	Intervals struct {
		AnalyticsRefresh string `yaml:"analytics_refresh"`
		Cleanup          string `yaml:"cleanup"`
	} `yaml:"intervals"`
	Events struct {
		ExpiryDays int `yaml:"expiry_days"`
	} `yaml:"events"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable as a float in [0, 1].
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 0 && f <= 1 {
		return f
	}
	return defaultVal
}

// envDuration reads an environment variable as a time.Duration string.
func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return defaultVal
}

func mustDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("invalid duration in embedded defaults.yaml: " + s)
	}
	return d
}

func Load() *Config {
	var def defaults
	if err := yaml.Unmarshal(defaultsYAML, &def); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	return &Config{
		HTTP: HTTPConfig{
			Host: os.Getenv("HTTP_HOST"),
			Port: envInt("HTTP_PORT", 8080),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Search: SearchConfig{
			Threshold:  envFloat("SIMILARITY_THRESHOLD", def.Search.Threshold),
			Limit:      envInt("SEARCH_LIMIT", def.Search.Limit),
			MinVectors: envInt("INDEX_MIN_VECTORS", def.Search.MinVectors),
		},
		Analytics: AnalyticsConfig{
			RefreshInterval: envDuration("ANALYTICS_REFRESH_INTERVAL", mustDuration(def.Intervals.AnalyticsRefresh)),
		},
		Events: EventsConfig{
			ExpiryDays:      envInt("EVENT_EXPIRY_DAYS", def.Events.ExpiryDays),
			CleanupInterval: envDuration("CLEANUP_INTERVAL", mustDuration(def.Intervals.Cleanup)),
		},
		Auth: AuthConfig{
			ServiceKey: os.Getenv("SERVICE_KEY"),
		},
	}
}
