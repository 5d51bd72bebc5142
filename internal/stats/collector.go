// Package stats maintains rolling windowed aggregates of processed agent
// requests for the admin dashboard. Prometheus keeps the long-term series;
// this collector answers "what happened in the last few minutes" queries
// without a scrape round-trip.
package stats

import (
	"sort"
	"sync"
	"time"
)

// Snapshot is a single data point recorded for a processed request.
type Snapshot struct {
	Timestamp        time.Time
	AgentType        string
	Model            string
	LatencyMs        float64
	CostUSD          float64
	Success          bool
	PromptTokens     int
	CompletionTokens int
}

// Window is a named rolling interval, e.g. {"5m", 5 * time.Minute}.
type Window struct {
	Name     string
	Duration time.Duration
}

// DefaultWindows returns the dashboard's standard rolling windows.
func DefaultWindows() []Window {
	return []Window{
		{Name: "1m", Duration: time.Minute},
		{Name: "5m", Duration: 5 * time.Minute},
		{Name: "1h", Duration: time.Hour},
		{Name: "24h", Duration: 24 * time.Hour},
	}
}

// Aggregate holds computed stats for a time window.
type Aggregate struct {
	Window           string  `json:"window"`
	AgentType        string  `json:"agent_type,omitempty"`
	Model            string  `json:"model,omitempty"`
	RequestCount     int     `json:"request_count"`
	ErrorCount       int     `json:"error_count"`
	ErrorRate        float64 `json:"error_rate"`
	AvgLatencyMs     float64 `json:"avg_latency_ms"`
	P95LatencyMs     float64 `json:"p95_latency_ms"`
	TotalCostUSD     float64 `json:"total_cost_usd"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
}

// retention keeps slightly more history than the widest window so the 24h
// aggregate never loses points mid-window.
const retention = 25 * time.Hour

// Collector accumulates snapshots and computes windowed aggregates on read.
type Collector struct {
	mu      sync.RWMutex
	points  []Snapshot
	windows []Window
}

func NewCollector() *Collector {
	return &Collector{windows: DefaultWindows()}
}

// Record adds one snapshot, stamping a missing timestamp.
func (c *Collector) Record(s Snapshot) {
	if s.Timestamp.IsZero() {
		s.Timestamp = time.Now().UTC()
	}
	c.mu.Lock()
	c.points = append(c.points, s)
	c.mu.Unlock()
}

// Seed bulk-loads historical snapshots, typically replayed from the usage
// ledger on startup so the dashboard is not blank after a restart.
func (c *Collector) Seed(snapshots []Snapshot) {
	c.mu.Lock()
	c.points = append(c.points, snapshots...)
	c.mu.Unlock()
}

// Prune discards points older than the retention horizon.
func (c *Collector) Prune() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pruneLocked(time.Now().Add(-retention))
}

// pruneLocked relies on points being appended in time order. Caller holds
// the write lock.
func (c *Collector) pruneLocked(cutoff time.Time) {
	keep := sort.Search(len(c.points), func(i int) bool {
		return !c.points[i].Timestamp.Before(cutoff)
	})
	if keep > 0 {
		c.points = c.points[keep:]
	}
}

// workingSet prunes under the write lock and returns a copy, so aggregation
// never races a concurrent Record.
func (c *Collector) workingSet() []Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pruneLocked(time.Now().Add(-retention))
	cp := make([]Snapshot, len(c.points))
	copy(cp, c.points)
	return cp
}

// SnapshotCount reports how many points are currently retained.
func (c *Collector) SnapshotCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.points)
}

// ByAgent aggregates each window grouped by agent type. Keys are window
// names.
func (c *Collector) ByAgent() map[string][]Aggregate {
	return c.grouped(func(s Snapshot) string { return s.AgentType }, func(w, key string, snaps []Snapshot) Aggregate {
		return computeAggregate(w, key, "", snaps)
	})
}

// ByModel aggregates each window grouped by model.
func (c *Collector) ByModel() map[string][]Aggregate {
	return c.grouped(func(s Snapshot) string { return s.Model }, func(w, key string, snaps []Snapshot) Aggregate {
		return computeAggregate(w, "", key, snaps)
	})
}

func (c *Collector) grouped(keyOf func(Snapshot) string, build func(window, key string, snaps []Snapshot) Aggregate) map[string][]Aggregate {
	points := c.workingSet()
	now := time.Now()
	result := make(map[string][]Aggregate)

	for _, w := range c.windows {
		cutoff := now.Add(-w.Duration)
		groups := make(map[string][]Snapshot)
		for _, s := range points {
			if s.Timestamp.After(cutoff) {
				groups[keyOf(s)] = append(groups[keyOf(s)], s)
			}
		}
		for key, snaps := range groups {
			result[w.Name] = append(result[w.Name], build(w.Name, key, snaps))
		}
	}
	return result
}

// Global aggregates each window across all agents and models, skipping
// empty windows.
func (c *Collector) Global() []Aggregate {
	points := c.workingSet()
	now := time.Now()

	var result []Aggregate
	for _, w := range c.windows {
		cutoff := now.Add(-w.Duration)
		var snaps []Snapshot
		for _, s := range points {
			if s.Timestamp.After(cutoff) {
				snaps = append(snaps, s)
			}
		}
		if len(snaps) > 0 {
			result = append(result, computeAggregate(w.Name, "", "", snaps))
		}
	}
	return result
}

func computeAggregate(window, agentType, model string, snaps []Snapshot) Aggregate {
	a := Aggregate{
		Window:       window,
		AgentType:    agentType,
		Model:        model,
		RequestCount: len(snaps),
	}

	latencies := make([]float64, 0, len(snaps))
	var latencySum float64
	for _, s := range snaps {
		latencySum += s.LatencyMs
		latencies = append(latencies, s.LatencyMs)
		a.TotalCostUSD += s.CostUSD
		a.PromptTokens += s.PromptTokens
		a.CompletionTokens += s.CompletionTokens
		if !s.Success {
			a.ErrorCount++
		}
	}
	a.TotalTokens = a.PromptTokens + a.CompletionTokens

	if a.RequestCount > 0 {
		a.AvgLatencyMs = latencySum / float64(a.RequestCount)
		a.ErrorRate = float64(a.ErrorCount) / float64(a.RequestCount)
		a.P95LatencyMs = percentile(latencies, 0.95)
	}
	return a
}

// percentile uses the nearest-rank method on a copy-free sort of vals.
func percentile(vals []float64, p float64) float64 {
	sort.Float64s(vals)
	idx := int(float64(len(vals)) * p)
	if idx >= len(vals) {
		idx = len(vals) - 1
	}
	return vals[idx]
}
