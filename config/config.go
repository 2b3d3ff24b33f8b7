package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultUpstream is the public analysis endpoint. The single slash after
// "https:" is part of the upstream's path format.
const DefaultUpstream = "https://web2-server.vercel.app/https:/{domain}"

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Upstream  UpstreamConfig
	Analyzer  AnalyzerConfig
	Fetcher   FetcherConfig
	Archive   ArchiveConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// UpstreamConfig controls the remote analysis API.
type UpstreamConfig struct {
	// Templates are upstream URL templates containing "{domain}".
	Templates []string // default: [DefaultUpstream]

	// EscalationDelays is the staged start delay for each upstream.
	EscalationDelays []time.Duration // default: [0s, 2s, 5s]

	// MemoryTTL is how long a domain remembers its winning upstream.
	MemoryTTL time.Duration // default: 24h
}

// AnalyzerConfig controls the analyze pipeline.
type AnalyzerConfig struct {
	// DefaultTimeout is the per-request upstream deadline.
	DefaultTimeout time.Duration // default: 30s

	// MaxTimeout caps client supplied timeouts.
	MaxTimeout time.Duration // default: 120s
}

// FetcherConfig controls image downloads.
type FetcherConfig struct {
	// Timeout is the per-image deadline.
	Timeout time.Duration // default: 20s

	// MaxImageBytes caps a single image body.
	MaxImageBytes int64 // default: 10 MiB

	// AllowPrivate permits dialing loopback and private networks.
	AllowPrivate bool // default: false

	// UserAgent is sent with every image request.
	UserAgent string
}

// ArchiveConfig controls bulk image archives.
type ArchiveConfig struct {
	// MaxImages is the maximum number of images fetched per archive.
	MaxImages int // default: 200

	// Concurrency is the number of parallel image downloads.
	Concurrency int // default: 6

	// MaxTotalBytes is the total image budget per archive.
	MaxTotalBytes int64 // default: 200 MiB

	// JobTTL is how long finished async archives are kept in memory.
	JobTTL time.Duration // default: 1h
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys. Empty means open access.
	APIKeys []string
}

// RateLimitConfig controls per-identity rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per identity.
	RequestsPerSecond float64 // default: 5

	// Burst is the maximum burst size per identity.
	Burst int // default: 10
}

// CacheConfig controls the report cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached reports.
	MaxEntries int // default: 1000

	// DefaultMaxAge is used by the page routes, which carry no max_age.
	DefaultMaxAge time.Duration // default: 5m
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("SITELENS_HOST", "0.0.0.0"),
			Port: envIntOr("SITELENS_PORT", 8080),
			Mode: envOr("SITELENS_MODE", "release"),
		},
		Upstream: UpstreamConfig{
			Templates:        envSliceOr("SITELENS_UPSTREAMS", []string{DefaultUpstream}),
			EscalationDelays: envDurationSliceOr("SITELENS_ESCALATION_DELAYS", []time.Duration{0, 2 * time.Second, 5 * time.Second}),
			MemoryTTL:        envDurationOr("SITELENS_UPSTREAM_MEMORY_TTL", 24*time.Hour),
		},
		Analyzer: AnalyzerConfig{
			DefaultTimeout: envDurationOr("SITELENS_DEFAULT_TIMEOUT", 30*time.Second),
			MaxTimeout:     envDurationOr("SITELENS_MAX_TIMEOUT", 120*time.Second),
		},
		Fetcher: FetcherConfig{
			Timeout:       envDurationOr("SITELENS_IMAGE_TIMEOUT", 20*time.Second),
			MaxImageBytes: int64(envIntOr("SITELENS_MAX_IMAGE_BYTES", 10<<20)),
			AllowPrivate:  envBoolOr("SITELENS_ALLOW_PRIVATE", false),
			UserAgent:     os.Getenv("SITELENS_USER_AGENT"),
		},
		Archive: ArchiveConfig{
			MaxImages:     envIntOr("SITELENS_ARCHIVE_MAX_IMAGES", 200),
			Concurrency:   envIntOr("SITELENS_ARCHIVE_CONCURRENCY", 6),
			MaxTotalBytes: int64(envIntOr("SITELENS_ARCHIVE_MAX_BYTES", 200<<20)),
			JobTTL:        envDurationOr("SITELENS_ARCHIVE_JOB_TTL", time.Hour),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("SITELENS_AUTH_ENABLED", true),
			APIKeys: envSliceOr("SITELENS_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("SITELENS_RATE_RPS", 5.0),
			Burst:             envIntOr("SITELENS_RATE_BURST", 10),
		},
		Cache: CacheConfig{
			MaxEntries:    envIntOr("SITELENS_CACHE_MAX_ENTRIES", 1000),
			DefaultMaxAge: envDurationOr("SITELENS_CACHE_MAX_AGE", 5*time.Minute),
		},
		Log: LogConfig{
			Level:  envOr("SITELENS_LOG_LEVEL", "info"),
			Format: envOr("SITELENS_LOG_FORMAT", "json"),
		},
	}
}

func envDurationSliceOr(key string, fallback []time.Duration) []time.Duration {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]time.Duration, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				if d, err := time.ParseDuration(trimmed); err == nil {
					result = append(result, d)
				}
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
