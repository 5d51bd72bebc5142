package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	ListenAddr string
	LogLevel   string

	DBDSN string

	// Model backend (OpenAI-compatible chat completions).
	ModelAPIKey      string
	ModelBaseURL     string
	ModelTimeoutSecs int

	// Cost governance.
	MonthlyBudgetUSD float64 // per-user monthly spend ceiling
	RateLimitPerMin  int     // requests per minute per user

	// Admission control.
	MaxConcurrent      int // global in-flight ceiling
	RequestTimeoutSecs int

	// Response cache: "memory", "redis", or "off".
	CacheBackend    string
	CacheMaxEntries int
	RedisURL        string

	CORSOrigins []string

	HealthCheckIntervalSecs int

	// Tracing (opt-in OTLP export).
	TracingEnabled bool
	OTLPEndpoint   string

	// Temporal pipeline engine.
	TemporalEnabled   bool
	TemporalHostPort  string
	TemporalNamespace string
	TemporalTaskQueue string
}

func LoadConfig() (Config, error) {
	cfg := Config{
		ListenAddr: getEnv("STORYFORGE_LISTEN_ADDR", ":8080"),
		LogLevel:   getEnv("STORYFORGE_LOG_LEVEL", "info"),
		DBDSN:      getEnv("STORYFORGE_DB_DSN", "file:storyforge.sqlite"),

		ModelAPIKey:      getEnv("STORYFORGE_MODEL_API_KEY", ""),
		ModelBaseURL:     getEnv("STORYFORGE_MODEL_BASE_URL", "https://api.openai.com"),
		ModelTimeoutSecs: getEnvInt("STORYFORGE_MODEL_TIMEOUT_SECS", 25),

		MonthlyBudgetUSD: getEnvFloat("STORYFORGE_MONTHLY_BUDGET_USD", 20.0),
		RateLimitPerMin:  getEnvInt("STORYFORGE_RATE_LIMIT_PER_MIN", 10),

		MaxConcurrent:      getEnvInt("STORYFORGE_MAX_CONCURRENT", 10),
		RequestTimeoutSecs: getEnvInt("STORYFORGE_REQUEST_TIMEOUT_SECS", 30),

		CacheBackend:    getEnv("STORYFORGE_CACHE_BACKEND", "memory"),
		CacheMaxEntries: getEnvInt("STORYFORGE_CACHE_MAX_ENTRIES", 10000),
		RedisURL:        getEnv("STORYFORGE_REDIS_URL", "redis://localhost:6379/0"),

		CORSOrigins: getEnvStringSlice("STORYFORGE_CORS_ORIGINS", nil),

		HealthCheckIntervalSecs: getEnvInt("STORYFORGE_HEALTH_INTERVAL_SECS", 30),

		TracingEnabled: getEnvBool("STORYFORGE_OTEL_ENABLED", false),
		OTLPEndpoint:   getEnv("STORYFORGE_OTLP_ENDPOINT", "localhost:4318"),

		TemporalEnabled:   getEnvBool("STORYFORGE_TEMPORAL_ENABLED", false),
		TemporalHostPort:  getEnv("STORYFORGE_TEMPORAL_HOST", "localhost:7233"),
		TemporalNamespace: getEnv("STORYFORGE_TEMPORAL_NAMESPACE", "storyforge"),
		TemporalTaskQueue: getEnv("STORYFORGE_TEMPORAL_TASK_QUEUE", "storyforge-pipelines"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks config values for obviously invalid settings.
func (c Config) Validate() error {
	if c.MonthlyBudgetUSD < 0 {
		return fmt.Errorf("STORYFORGE_MONTHLY_BUDGET_USD must be >= 0, got %f", c.MonthlyBudgetUSD)
	}
	if c.RateLimitPerMin <= 0 {
		return fmt.Errorf("STORYFORGE_RATE_LIMIT_PER_MIN must be > 0, got %d", c.RateLimitPerMin)
	}
	if c.MaxConcurrent <= 0 {
		return fmt.Errorf("STORYFORGE_MAX_CONCURRENT must be > 0, got %d", c.MaxConcurrent)
	}
	if c.RequestTimeoutSecs <= 0 {
		return fmt.Errorf("STORYFORGE_REQUEST_TIMEOUT_SECS must be > 0, got %d", c.RequestTimeoutSecs)
	}
	if c.ModelTimeoutSecs <= 0 {
		return fmt.Errorf("STORYFORGE_MODEL_TIMEOUT_SECS must be > 0, got %d", c.ModelTimeoutSecs)
	}
	switch c.CacheBackend {
	case "memory", "redis", "off":
	default:
		return fmt.Errorf("STORYFORGE_CACHE_BACKEND must be memory, redis, or off, got %q", c.CacheBackend)
	}
	if c.HealthCheckIntervalSecs <= 0 {
		return fmt.Errorf("STORYFORGE_HEALTH_INTERVAL_SECS must be > 0, got %d", c.HealthCheckIntervalSecs)
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
	}
	return def
}

func getEnvStringSlice(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		var result []string
		for _, s := range strings.Split(v, ",") {
			s = strings.TrimSpace(s)
			if s != "" {
				result = append(result, s)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return def
}
