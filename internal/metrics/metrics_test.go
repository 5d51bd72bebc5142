package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRegistryExposesCounters(t *testing.T) {
	m := New()

	m.RequestsTotal.WithLabelValues("ideation", "gpt-4", "success").Inc()
	m.CostUSD.WithLabelValues("ideation", "gpt-4").Add(0.25)
	m.CacheHits.Inc()
	m.RateLimitRejects.Inc()
	m.InFlight.Set(3)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	for _, want := range []string{
		"storyforge_requests_total",
		"storyforge_cost_usd_total",
		"storyforge_cache_hits_total",
		"storyforge_rate_limit_rejects_total",
		"storyforge_in_flight_requests 3",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
