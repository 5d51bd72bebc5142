package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	// Unset all STORYFORGE_ env vars to ensure defaults are used.
	envVars := []string{
		"STORYFORGE_LISTEN_ADDR",
		"STORYFORGE_LOG_LEVEL",
		"STORYFORGE_DB_DSN",
		"STORYFORGE_MONTHLY_BUDGET_USD",
		"STORYFORGE_RATE_LIMIT_PER_MIN",
		"STORYFORGE_MAX_CONCURRENT",
		"STORYFORGE_REQUEST_TIMEOUT_SECS",
		"STORYFORGE_CACHE_BACKEND",
		"STORYFORGE_TEMPORAL_ENABLED",
	}
	for _, key := range envVars {
		t.Setenv(key, "")
		_ = os.Unsetenv(key)
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}

	if cfg.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q, want %q", cfg.ListenAddr, ":8080")
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
	if cfg.MonthlyBudgetUSD != 20.0 {
		t.Errorf("MonthlyBudgetUSD = %f, want 20.0", cfg.MonthlyBudgetUSD)
	}
	if cfg.RateLimitPerMin != 10 {
		t.Errorf("RateLimitPerMin = %d, want 10", cfg.RateLimitPerMin)
	}
	if cfg.MaxConcurrent != 10 {
		t.Errorf("MaxConcurrent = %d, want 10", cfg.MaxConcurrent)
	}
	if cfg.RequestTimeoutSecs != 30 {
		t.Errorf("RequestTimeoutSecs = %d, want 30", cfg.RequestTimeoutSecs)
	}
	if cfg.CacheBackend != "memory" {
		t.Errorf("CacheBackend = %q, want %q", cfg.CacheBackend, "memory")
	}
	if cfg.TemporalEnabled {
		t.Error("TemporalEnabled = true, want false")
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("STORYFORGE_LISTEN_ADDR", ":9090")
	t.Setenv("STORYFORGE_LOG_LEVEL", "debug")
	t.Setenv("STORYFORGE_DB_DSN", "file::memory:")
	t.Setenv("STORYFORGE_MONTHLY_BUDGET_USD", "50")
	t.Setenv("STORYFORGE_RATE_LIMIT_PER_MIN", "25")
	t.Setenv("STORYFORGE_CACHE_BACKEND", "off")
	t.Setenv("STORYFORGE_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}

	if cfg.ListenAddr != ":9090" {
		t.Errorf("ListenAddr = %q, want %q", cfg.ListenAddr, ":9090")
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
	if cfg.DBDSN != "file::memory:" {
		t.Errorf("DBDSN = %q, want %q", cfg.DBDSN, "file::memory:")
	}
	if cfg.MonthlyBudgetUSD != 50 {
		t.Errorf("MonthlyBudgetUSD = %f, want 50", cfg.MonthlyBudgetUSD)
	}
	if cfg.RateLimitPerMin != 25 {
		t.Errorf("RateLimitPerMin = %d, want 25", cfg.RateLimitPerMin)
	}
	if cfg.CacheBackend != "off" {
		t.Errorf("CacheBackend = %q, want %q", cfg.CacheBackend, "off")
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[0] != "https://a.example" {
		t.Errorf("CORSOrigins = %v, want two trimmed origins", cfg.CORSOrigins)
	}
}

func TestLoadConfigInvalidEnvFallsBackToDefaults(t *testing.T) {
	t.Setenv("STORYFORGE_MONTHLY_BUDGET_USD", "notafloat")
	t.Setenv("STORYFORGE_RATE_LIMIT_PER_MIN", "notanint")
	t.Setenv("STORYFORGE_TEMPORAL_ENABLED", "notabool")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}

	if cfg.MonthlyBudgetUSD != 20.0 {
		t.Errorf("MonthlyBudgetUSD = %f, want 20.0 (default on invalid input)", cfg.MonthlyBudgetUSD)
	}
	if cfg.RateLimitPerMin != 10 {
		t.Errorf("RateLimitPerMin = %d, want 10 (default on invalid input)", cfg.RateLimitPerMin)
	}
	if cfg.TemporalEnabled {
		t.Error("TemporalEnabled = true, want false (default on invalid input)")
	}
}

func TestLoadConfigRejectsBadCacheBackend(t *testing.T) {
	t.Setenv("STORYFORGE_CACHE_BACKEND", "memcached")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for unknown cache backend")
	}
}

func newTestConfig() Config {
	return Config{
		ListenAddr:              ":0",
		LogLevel:                "error",
		DBDSN:                   ":memory:",
		ModelBaseURL:            "http://127.0.0.1:0",
		ModelTimeoutSecs:        5,
		MonthlyBudgetUSD:        20,
		RateLimitPerMin:         10,
		MaxConcurrent:           10,
		RequestTimeoutSecs:      30,
		CacheBackend:            "memory",
		CacheMaxEntries:         100,
		HealthCheckIntervalSecs: 30,
	}
}

func TestNewServer(t *testing.T) {
	srv, err := NewServer(newTestConfig())
	if err != nil {
		t.Fatalf("NewServer() error: %v", err)
	}
	defer func() { _ = srv.Close() }()

	if srv.Router() == nil {
		t.Fatal("expected non-nil Router()")
	}
}

func TestServerClose(t *testing.T) {
	srv, err := NewServer(newTestConfig())
	if err != nil {
		t.Fatalf("NewServer() error: %v", err)
	}

	if err := srv.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
}

func TestServerHealthz(t *testing.T) {
	srv, err := NewServer(newTestConfig())
	if err != nil {
		t.Fatalf("NewServer() error: %v", err)
	}
	defer func() { _ = srv.Close() }()

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestServerServesBudget(t *testing.T) {
	srv, err := NewServer(newTestConfig())
	if err != nil {
		t.Fatalf("NewServer() error: %v", err)
	}
	defer func() { _ = srv.Close() }()

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/users/u1/budget")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var out struct {
		UserID           string  `json:"user_id"`
		MonthlyBudgetUSD float64 `json:"monthly_budget_usd"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if out.UserID != "u1" || out.MonthlyBudgetUSD != 20 {
		t.Errorf("unexpected budget payload %+v", out)
	}
}

func TestServerMetricsEndpoint(t *testing.T) {
	srv, err := NewServer(newTestConfig())
	if err != nil {
		t.Fatalf("NewServer() error: %v", err)
	}
	defer func() { _ = srv.Close() }()

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}
