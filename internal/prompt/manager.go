// Package prompt manages versioned prompt templates per agent type, renders
// them against variable contexts, and tracks per-template cost/latency/success
// so the cheapest effective template can be recommended.
package prompt

import (
	"log/slog"
	"regexp"
	"strings"
	"sync"
)

// epsilon floors the average cost when computing efficiency so a free
// template does not divide by zero.
const epsilon = 1e-6

var placeholderRe = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// Template is a renderable prompt definition. Templates are keyed by ID and
// may be added, updated, or removed at runtime; each render is a pure
// function of the template and its variable map.
type Template struct {
	ID            string   `json:"id"`
	AgentType     string   `json:"agent_type"`
	Template      string   `json:"template"`
	Variables     []string `json:"variables"`
	SystemContext string   `json:"system_context,omitempty"`
	MaxTokens     int      `json:"max_tokens,omitempty"`
	Temperature   float64  `json:"temperature,omitempty"`
	Model         string   `json:"model,omitempty"`
	CostOptimized bool     `json:"cost_optimized"`
}

// Performance is the running-average record for one template.
type Performance struct {
	TemplateID          string  `json:"template_id"`
	AverageCost         float64 `json:"average_cost"`
	AverageTokens       float64 `json:"average_tokens"`
	SuccessRate         float64 `json:"success_rate"`
	AverageResponseTime float64 `json:"average_response_time_ms"`
	UsageCount          int64   `json:"usage_count"`
}

// CostEfficiencyScore ranks templates: success per dollar.
func (p Performance) CostEfficiencyScore() float64 {
	cost := p.AverageCost
	if cost < epsilon {
		cost = epsilon
	}
	return p.SuccessRate / cost
}

// Outcome is one completed call attributed to a template.
type Outcome struct {
	Cost           float64
	Tokens         int
	ResponseTimeMs float64
	Success        bool
}

// Manager holds templates and their performance records.
type Manager struct {
	logger *slog.Logger

	mu          sync.RWMutex
	templates   map[string]Template
	performance map[string]*Performance
}

// NewManager creates a Manager pre-loaded with the default template set.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		logger:      logger,
		templates:   make(map[string]Template),
		performance: make(map[string]*Performance),
	}
	for _, t := range defaultTemplates() {
		m.templates[t.ID] = t
	}
	return m
}

// AddTemplate registers or replaces a template.
func (m *Manager) AddTemplate(t Template) {
	m.mu.Lock()
	m.templates[t.ID] = t
	m.mu.Unlock()
}

// RemoveTemplate deletes a template and its performance record.
func (m *Manager) RemoveTemplate(id string) {
	m.mu.Lock()
	delete(m.templates, id)
	delete(m.performance, id)
	m.mu.Unlock()
}

// Template returns the template with the given ID.
func (m *Manager) Template(id string) (Template, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.templates[id]
	return t, ok
}

// TemplatesFor returns all templates registered for an agent type.
func (m *Manager) TemplatesFor(agentType string) []Template {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Template
	for _, t := range m.templates {
		if t.AgentType == agentType {
			out = append(out, t)
		}
	}
	return out
}

// Render substitutes every {{variable}} occurrence in the template with the
// matching value from vars. Missing variables are logged but never fail the
// render: the partially rendered prompt is still returned. Rendering an
// unknown template ID returns ok=false.
func (m *Manager) Render(templateID string, vars map[string]string) (string, bool) {
	t, ok := m.Template(templateID)
	if !ok {
		return "", false
	}

	rendered := placeholderRe.ReplaceAllStringFunc(t.Template, func(match string) string {
		name := placeholderRe.FindStringSubmatch(match)[1]
		if v, ok := vars[name]; ok {
			return v
		}
		return match
	})

	if leftover := placeholderRe.FindAllString(rendered, -1); len(leftover) > 0 {
		m.logger.Warn("prompt rendered with unresolved placeholders",
			slog.String("template_id", templateID),
			slog.String("placeholders", strings.Join(leftover, ",")),
		)
	}
	return rendered, true
}

// RecommendedTemplate picks the best template for an agent type. With
// performance data the highest cost-efficiency score wins (when
// prioritizeCost is false, the highest success rate wins instead). Without
// data, a cost-optimized template is preferred, then any template.
func (m *Manager) RecommendedTemplate(agentType string, prioritizeCost bool) (Template, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var best Template
	var bestScore float64
	found := false
	for id, t := range m.templates {
		if t.AgentType != agentType {
			continue
		}
		p, ok := m.performance[id]
		if !ok || p.UsageCount == 0 {
			continue
		}
		score := p.CostEfficiencyScore()
		if !prioritizeCost {
			score = p.SuccessRate
		}
		if !found || score > bestScore {
			best = t
			bestScore = score
			found = true
		}
	}
	if found {
		return best, true
	}

	// No performance data yet: fall back to a cost-optimized template.
	var first Template
	firstFound := false
	for _, t := range m.templates {
		if t.AgentType != agentType {
			continue
		}
		if t.CostOptimized {
			return t, true
		}
		if !firstFound {
			first = t
			firstFound = true
		}
	}
	return first, firstFound
}

// RecordPerformance folds one outcome into a template's running averages
// using the incremental-mean formula new = (old*n + value) / (n+1).
func (m *Manager) RecordPerformance(templateID string, o Outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.templates[templateID]; !ok {
		return
	}
	p, ok := m.performance[templateID]
	if !ok {
		p = &Performance{TemplateID: templateID}
		m.performance[templateID] = p
	}

	n := float64(p.UsageCount)
	p.AverageCost = (p.AverageCost*n + o.Cost) / (n + 1)
	p.AverageTokens = (p.AverageTokens*n + float64(o.Tokens)) / (n + 1)
	p.AverageResponseTime = (p.AverageResponseTime*n + o.ResponseTimeMs) / (n + 1)

	success := 0.0
	if o.Success {
		success = 1.0
	}
	p.SuccessRate = (p.SuccessRate*n + success) / (n + 1)
	p.UsageCount++
}

// PerformanceFor returns a copy of a template's performance record.
func (m *Manager) PerformanceFor(templateID string) (Performance, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.performance[templateID]
	if !ok {
		return Performance{}, false
	}
	return *p, true
}
