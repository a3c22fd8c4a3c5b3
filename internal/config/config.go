// Package config loads process-wide pipeline configuration from
// environment variables, per SPEC_FULL.md §6. Validation failures here are
// always fatal at startup, the same posture the teacher's egress and role
// config loaders take.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aleutian-labs/toolscout/internal/providers"
)

// Config is the process-wide, immutable pipeline configuration.
type Config struct {
	AllowedOrigins []string
	CORSOrigins    []string
	DeadlineMs     int
	ScoreThreshold float64
	EnableCache    bool
	CacheTTL       time.Duration

	EnableInflux bool
	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string

	Roles *providers.RoleConfig

	HTTPAddr    string
	MetricsAddr string
	SchemaPath  string // optional override; empty means use the embedded default
}

// Load reads and validates every env var SPEC_FULL.md §6 names. An invalid
// origin URL, malformed numeric value, or invalid provider selection fails
// the load — the caller is expected to treat a non-nil error as fatal.
func Load() (*Config, error) {
	origins, err := parseOriginList("ALLOWED_ORIGINS")
	if err != nil {
		return nil, err
	}
	corsOrigins, err := parseOriginList("CORS_ORIGINS")
	if err != nil {
		return nil, err
	}

	roles, err := providers.LoadRoleConfig(envOr("TOOLSCOUT_EXTRACTOR_MODEL_FALLBACK", ""), envOr("TOOLSCOUT_PLANNER_MODEL_FALLBACK", ""))
	if err != nil {
		return nil, fmt.Errorf("loading role config: %w", err)
	}

	cfg := &Config{
		AllowedOrigins: origins,
		CORSOrigins:    corsOrigins,
		DeadlineMs:     envInt("DEADLINE_MS", 15000),
		ScoreThreshold: envFloat("SCORE_THRESHOLD", 0.5),
		EnableCache:    envBool("ENABLE_CACHE", false),
		CacheTTL:       time.Duration(envInt("CACHE_TTL_SECONDS", 3600)) * time.Second,
		EnableInflux:   envBool("ENABLE_INFLUX", false),
		InfluxURL:      envOr("INFLUX_URL", "http://localhost:8086"),
		InfluxToken:    os.Getenv("INFLUX_TOKEN"),
		InfluxOrg:      os.Getenv("INFLUX_ORG"),
		InfluxBucket:   envOr("INFLUX_BUCKET", "toolscout"),
		Roles:          roles,
		HTTPAddr:       envOr("TOOLSCOUT_HTTP_ADDR", ":8080"),
		MetricsAddr:    envOr("TOOLSCOUT_METRICS_ADDR", ":9090"),
		SchemaPath:     os.Getenv("TOOLSCOUT_SCHEMA_PATH"),
	}
	return cfg, nil
}

// parseOriginList reads a comma-separated env var and validates that every
// non-empty entry parses as a URL with an explicit scheme and host. Invalid
// URLs in origin lists fail startup, per SPEC_FULL.md §6.
func parseOriginList(envKey string) ([]string, error) {
	raw := os.Getenv(envKey)
	if raw == "" {
		return nil, nil
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(item)
		if trimmed == "" {
			continue
		}
		u, err := url.Parse(trimmed)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid origin %q: %w", envKey, trimmed, err)
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("%s: origin %q must be an absolute URL with scheme and host", envKey, trimmed)
		}
		out = append(out, trimmed)
	}
	return out, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
