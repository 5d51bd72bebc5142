package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg *prometheus.Registry

	RequestsTotal  *prometheus.CounterVec
	RequestLatency *prometheus.HistogramVec
	CostUSD        *prometheus.CounterVec
	TokensTotal    *prometheus.CounterVec

	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	RateLimitRejects prometheus.Counter
	BudgetRejects    prometheus.Counter
	CapacityRejects  prometheus.Counter
	Timeouts         prometheus.Counter

	InFlight prometheus.Gauge
}

func New() *Registry {
	reg := prometheus.NewRegistry()
	m := &Registry{
		reg: reg,
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storyforge_requests_total",
			Help: "Total agent requests processed",
		}, []string{"agent_type", "model", "status"}),
		RequestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "storyforge_request_latency_ms",
			Help:    "Agent request latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 12),
		}, []string{"agent_type", "model"}),
		CostUSD: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storyforge_cost_usd_total",
			Help: "Accumulated USD cost of model calls",
		}, []string{"agent_type", "model"}),
		TokensTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storyforge_tokens_total",
			Help: "Total tokens consumed by model calls",
		}, []string{"agent_type", "model"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storyforge_cache_hits_total",
			Help: "Gateway response cache hits",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storyforge_cache_misses_total",
			Help: "Gateway response cache misses",
		}),
		RateLimitRejects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storyforge_rate_limit_rejects_total",
			Help: "Requests rejected by the per-user rate limiter",
		}),
		BudgetRejects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storyforge_budget_rejects_total",
			Help: "Requests rejected because the monthly budget was exhausted",
		}),
		CapacityRejects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storyforge_capacity_rejects_total",
			Help: "Requests rejected at the orchestrator concurrency ceiling",
		}),
		Timeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storyforge_timeouts_total",
			Help: "Requests abandoned at the orchestrator per-request timeout",
		}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "storyforge_in_flight_requests",
			Help: "Requests currently being processed by agents",
		}),
	}
	reg.MustRegister(
		m.RequestsTotal, m.RequestLatency, m.CostUSD, m.TokensTotal,
		m.CacheHits, m.CacheMisses,
		m.RateLimitRejects, m.BudgetRejects, m.CapacityRejects, m.Timeouts,
		m.InFlight,
	)
	return m
}

func (m *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
