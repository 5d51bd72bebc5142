package prompt

import (
	"math"
	"strings"
	"testing"
)

func TestRender_AllVariablesSubstituted(t *testing.T) {
	m := NewManager(nil)

	rendered, ok := m.Render("ideation-brainstorm-v1", map[string]string{
		"topic":   "solar",
		"context": "",
	})
	if !ok {
		t.Fatal("expected template to exist")
	}
	if strings.Contains(rendered, "{{") {
		t.Errorf("rendered prompt still contains placeholders: %s", rendered)
	}
	if !strings.Contains(rendered, "solar") {
		t.Errorf("expected substituted value in prompt: %s", rendered)
	}
}

func TestRender_MissingVariableDoesNotFail(t *testing.T) {
	m := NewManager(nil)

	rendered, ok := m.Render("ideation-brainstorm-v1", map[string]string{"topic": "rivers"})
	if !ok {
		t.Fatal("expected template to exist")
	}
	// The unresolved placeholder stays in place; the render still succeeds.
	if !strings.Contains(rendered, "{{context}}") {
		t.Errorf("expected unresolved placeholder to remain: %s", rendered)
	}
}

func TestRender_UnknownTemplate(t *testing.T) {
	m := NewManager(nil)
	if _, ok := m.Render("nonexistent", nil); ok {
		t.Error("expected ok=false for unknown template ID")
	}
}

func TestRecommendedTemplate_FallsBackToCostOptimized(t *testing.T) {
	m := NewManager(nil)

	// No performance data yet: the cost-optimized ideation template wins.
	tpl, ok := m.RecommendedTemplate(AgentIdeation, true)
	if !ok {
		t.Fatal("expected a template")
	}
	if !tpl.CostOptimized {
		t.Errorf("expected cost-optimized fallback, got %s", tpl.ID)
	}
}

func TestRecommendedTemplate_UsesEfficiencyScore(t *testing.T) {
	m := NewManager(nil)

	// Expensive but successful.
	for i := 0; i < 5; i++ {
		m.RecordPerformance("ideation-brainstorm-v1", Outcome{Cost: 0.10, Tokens: 500, Success: true})
	}
	// Cheap and equally successful: better success-per-dollar.
	for i := 0; i < 5; i++ {
		m.RecordPerformance("ideation-quick-v1", Outcome{Cost: 0.01, Tokens: 100, Success: true})
	}

	tpl, ok := m.RecommendedTemplate(AgentIdeation, true)
	if !ok {
		t.Fatal("expected a template")
	}
	if tpl.ID != "ideation-quick-v1" {
		t.Errorf("expected the cheaper template to win, got %s", tpl.ID)
	}
}

func TestRecommendedTemplate_UnknownAgentType(t *testing.T) {
	m := NewManager(nil)
	if _, ok := m.RecommendedTemplate("translator", true); ok {
		t.Error("expected no template for unknown agent type")
	}
}

func TestRecordPerformance_IncrementalMeans(t *testing.T) {
	m := NewManager(nil)

	m.RecordPerformance("refiner-polish-v1", Outcome{Cost: 0.02, Tokens: 100, ResponseTimeMs: 200, Success: true})
	m.RecordPerformance("refiner-polish-v1", Outcome{Cost: 0.04, Tokens: 300, ResponseTimeMs: 400, Success: false})

	p, ok := m.PerformanceFor("refiner-polish-v1")
	if !ok {
		t.Fatal("expected performance record")
	}
	if p.UsageCount != 2 {
		t.Errorf("expected usage count 2, got %d", p.UsageCount)
	}
	if math.Abs(p.AverageCost-0.03) > 1e-9 {
		t.Errorf("expected average cost 0.03, got %f", p.AverageCost)
	}
	if math.Abs(p.AverageTokens-200) > 1e-9 {
		t.Errorf("expected average tokens 200, got %f", p.AverageTokens)
	}
	if math.Abs(p.AverageResponseTime-300) > 1e-9 {
		t.Errorf("expected average response time 300, got %f", p.AverageResponseTime)
	}
	if math.Abs(p.SuccessRate-0.5) > 1e-9 {
		t.Errorf("expected success rate 0.5, got %f", p.SuccessRate)
	}
}

func TestRecordPerformance_UnknownTemplateIgnored(t *testing.T) {
	m := NewManager(nil)
	m.RecordPerformance("ghost", Outcome{Cost: 1})
	if _, ok := m.PerformanceFor("ghost"); ok {
		t.Error("performance must not be recorded for unknown templates")
	}
}

func TestCostEfficiencyScore_ZeroCost(t *testing.T) {
	p := Performance{SuccessRate: 1.0, AverageCost: 0}
	if s := p.CostEfficiencyScore(); math.IsInf(s, 1) || math.IsNaN(s) {
		t.Errorf("score must be finite for zero cost, got %f", s)
	}
}

func TestAddRemoveTemplate(t *testing.T) {
	m := NewManager(nil)
	m.AddTemplate(Template{ID: "custom-1", AgentType: AgentMedia, Template: "x"})
	if _, ok := m.Template("custom-1"); !ok {
		t.Fatal("expected added template to be present")
	}
	m.RemoveTemplate("custom-1")
	if _, ok := m.Template("custom-1"); ok {
		t.Error("expected removed template to be gone")
	}
}
