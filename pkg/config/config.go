package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full process configuration.
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Observability ObservabilityConfig
	Map           MapConfig
	Geocoding     GeocodingConfig
}

type ServerConfig struct {
	Port               int
	RateLimitPerSecond int
	RateLimitBurst     int
	AllowedOrigins     []string
	SessionTTL         time.Duration
	ShutdownTimeout    time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	URL      string
}

// DSN prefers DATABASE_URL and otherwise assembles a postgres URL from the parts.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s", d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode)
}

// RedisConfig is optional. An empty Addr keeps id lists in memory.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type ObservabilityConfig struct {
	MetricsEnabled bool
	LogLevel       string
	LogFormat      string
}

// MapConfig tunes the viewport subsystem.
type MapConfig struct {
	DistrictEnter float64
	DistrictExit  float64
	AreaEnter     float64
	AreaExit      float64

	RegionEpsilon      float64
	BoundsPadding      float64
	MinSpan            float64
	FirstLoadDelay     time.Duration
	LoadDelay          time.Duration
	FetchTimeout       time.Duration
	InitialLoadMaxWait time.Duration
	NavigationSettle   time.Duration
	DistanceResetKm    float64
	LoadedBoundsTTL    time.Duration
}

type GeocodingConfig struct {
	BaseURL       string
	UserAgent     string
	RatePerSecond float64
	Timeout       time.Duration
}

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	p := &parser{}
	cfg := &Config{
		Server: ServerConfig{
			Port:               p.int("SERVER_PORT", 8000),
			RateLimitPerSecond: p.int("RATE_LIMIT_PER_SECOND", 50),
			RateLimitBurst:     p.int("RATE_LIMIT_BURST", 100),
			AllowedOrigins:     p.list("ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:8081"}),
			SessionTTL:         p.duration("SESSION_TTL", 30*time.Minute),
			ShutdownTimeout:    p.duration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			Host:     p.string("DB_HOST", "localhost"),
			Port:     p.int("DB_PORT", 5432),
			User:     p.string("DB_USER", "postgres"),
			Password: p.string("DB_PASSWORD", "postgres"),
			Name:     p.string("DB_NAME", "pubmap"),
			SSLMode:  p.string("DB_SSLMODE", "disable"),
			URL:      p.string("DATABASE_URL", ""),
		},
		Redis: RedisConfig{
			Addr:     p.string("REDIS_ADDR", ""),
			Password: p.string("REDIS_PASSWORD", ""),
			DB:       p.int("REDIS_DB", 0),
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: p.bool("METRICS_ENABLED", true),
			LogLevel:       p.string("LOG_LEVEL", "info"),
			LogFormat:      p.string("LOG_FORMAT", "text"),
		},
		Map: MapConfig{
			DistrictEnter:      p.float("LOD_DISTRICT_ENTER", 0.12),
			DistrictExit:       p.float("LOD_DISTRICT_EXIT", 0.10),
			AreaEnter:          p.float("LOD_AREA_ENTER", 0.055),
			AreaExit:           p.float("LOD_AREA_EXIT", 0.035),
			RegionEpsilon:      p.float("REGION_EPSILON", 3.5e-4),
			BoundsPadding:      p.float("BOUNDS_PADDING", 0.2),
			MinSpan:            p.float("MIN_BOUNDS_SPAN", 0.0005),
			FirstLoadDelay:     p.duration("FIRST_LOAD_DELAY", 100*time.Millisecond),
			LoadDelay:          p.duration("LOAD_DELAY", 400*time.Millisecond),
			FetchTimeout:       p.duration("FETCH_TIMEOUT", 15*time.Second),
			InitialLoadMaxWait: p.duration("INITIAL_LOAD_MAX_WAIT", 2*time.Second),
			NavigationSettle:   p.duration("NAVIGATION_SETTLE", 1050*time.Millisecond),
			DistanceResetKm:    p.float("DISTANCE_RESET_KM", 0.05),
			LoadedBoundsTTL:    p.duration("LOADED_BOUNDS_TTL", 0),
		},
		Geocoding: GeocodingConfig{
			BaseURL:       p.string("GEOCODER_URL", "https://nominatim.openstreetmap.org"),
			UserAgent:     p.string("GEOCODER_USER_AGENT", "pubmap/1.0"),
			RatePerSecond: p.float("GEOCODER_RATE_PER_SECOND", 1),
			Timeout:       p.duration("GEOCODER_TIMEOUT", 5*time.Second),
		},
	}

	if err := errors.Join(p.errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parser collects every malformed variable instead of stopping at the first.
type parser struct {
	errs []error
}

func (p *parser) string(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func (p *parser) int(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid %s=%q: %w", key, v, err))
		return def
	}
	return n
}

func (p *parser) float(key string, def float64) float64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid %s=%q: %w", key, v, err))
		return def
	}
	return f
}

func (p *parser) bool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid %s=%q: %w", key, v, err))
		return def
	}
	return b
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("invalid %s=%q: %w", key, v, err))
		return def
	}
	return d
}

func (p *parser) list(key string, def []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
