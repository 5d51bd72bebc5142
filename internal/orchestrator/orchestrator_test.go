package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/storyforge-ai/storyforge/internal/agent"
	"github.com/storyforge-ai/storyforge/internal/llm"
	"github.com/storyforge-ai/storyforge/internal/stats"
	"github.com/storyforge-ai/storyforge/internal/store"
)

// stubAgent is a scriptable agent.Agent.
type stubAgent struct {
	agentType string
	delay     time.Duration
	resp      *agent.Response
	err       error
	healthErr error

	mu    sync.Mutex
	calls int
}

func (s *stubAgent) Type() string                     { return s.agentType }
func (s *stubAgent) Capabilities() agent.Capabilities { return agent.Capabilities{} }
func (s *stubAgent) Initialize() error                { return nil }
func (s *stubAgent) Cleanup() error                   { return nil }
func (s *stubAgent) ValidateRequest(agent.Request) bool {
	return true
}

func (s *stubAgent) ProcessRequest(ctx context.Context, _ agent.Request) (*agent.Response, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	if s.resp != nil {
		return s.resp, nil
	}
	return &agent.Response{Content: "done by " + s.agentType}, nil
}

func (s *stubAgent) HealthCheck(context.Context) error { return s.healthErr }

// memStore records persisted messages and serves one project.
type memStore struct {
	mu       sync.Mutex
	messages []store.Message
	project  *store.Project
}

func (m *memStore) AppendMessage(_ context.Context, msg store.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return nil
}

// GetProject mirrors the SQLite contract: a missing row is (nil, nil).
func (m *memStore) GetProject(_ context.Context, id string) (*store.Project, error) {
	if m.project == nil || m.project.ID != id {
		return nil, nil
	}
	return m.project, nil
}

func testRequest(agentType string) agent.Request {
	return agent.Request{
		UserID:         "u1",
		ProjectID:      "p1",
		ConversationID: "c1",
		AgentType:      agentType,
		Content:        "write something",
	}
}

func TestProcessRequest_RoutesAndPersists(t *testing.T) {
	st := &memStore{}
	o := New(DefaultConfig(), st, nil)
	o.RegisterAgent(&stubAgent{agentType: "ideation"})

	resp, err := o.ProcessRequest(context.Background(), testRequest("ideation"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "done by ideation" {
		t.Errorf("unexpected content %q", resp.Content)
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if len(st.messages) != 2 {
		t.Fatalf("expected 1 user + 1 agent message, got %d", len(st.messages))
	}
	if st.messages[0].Role != store.RoleUser || st.messages[1].Role != store.RoleAgent {
		t.Errorf("wrong roles: %s then %s", st.messages[0].Role, st.messages[1].Role)
	}
	if st.messages[0].Content != "write something" || st.messages[1].Content != "done by ideation" {
		t.Error("message contents do not match the exchange")
	}
}

func TestProcessRequest_InfersAgentFromProjectPhase(t *testing.T) {
	st := &memStore{project: &store.Project{ID: "p1", CurrentPhase: "refiner"}}
	o := New(DefaultConfig(), st, nil)
	refiner := &stubAgent{agentType: "refiner"}
	o.RegisterAgent(refiner)

	_, err := o.ProcessRequest(context.Background(), testRequest(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	refiner.mu.Lock()
	defer refiner.mu.Unlock()
	if refiner.calls != 1 {
		t.Errorf("inferred agent should have been called once, got %d", refiner.calls)
	}
}

func TestProcessRequest_InferenceWithMissingProject(t *testing.T) {
	o := New(DefaultConfig(), &memStore{}, nil)
	o.RegisterAgent(&stubAgent{agentType: "refiner"})

	_, err := o.ProcessRequest(context.Background(), testRequest(""))
	if !errors.Is(err, ErrProjectNotFound) {
		t.Fatalf("expected ErrProjectNotFound, got %v", err)
	}
}

func TestProcessRequest_UnknownAgent(t *testing.T) {
	o := New(DefaultConfig(), &memStore{}, nil)
	_, err := o.ProcessRequest(context.Background(), testRequest("media"))
	if !errors.Is(err, ErrUnknownAgent) {
		t.Fatalf("expected ErrUnknownAgent, got %v", err)
	}
}

func TestRegisterAgent_LatestWins(t *testing.T) {
	o := New(DefaultConfig(), nil, nil)
	first := &stubAgent{agentType: "media"}
	second := &stubAgent{agentType: "media"}
	o.RegisterAgent(first)
	o.RegisterAgent(second)

	_, err := o.ProcessRequest(context.Background(), testRequest("media"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second.mu.Lock()
	calls := second.calls
	second.mu.Unlock()
	if calls != 1 {
		t.Error("latest registration must receive the request")
	}
	first.mu.Lock()
	defer first.mu.Unlock()
	if first.calls != 0 {
		t.Error("replaced agent must not receive requests")
	}
}

func TestProcessRequest_CapacityCeiling(t *testing.T) {
	cfg := Config{MaxConcurrent: 2, RequestTimeout: 5 * time.Second}
	o := New(cfg, nil, nil)
	slow := &stubAgent{agentType: "ideation", delay: 200 * time.Millisecond}
	o.RegisterAgent(slow)

	release := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-release
			_, _ = o.ProcessRequest(context.Background(), testRequest("ideation"))
		}()
	}
	close(release)
	// Let both goroutines occupy the semaphore.
	time.Sleep(50 * time.Millisecond)

	_, err := o.ProcessRequest(context.Background(), testRequest("ideation"))
	var ce *CapacityError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *CapacityError, got %v", err)
	}
	if ce.Limit != 2 {
		t.Errorf("expected limit 2 in error, got %d", ce.Limit)
	}
	wg.Wait()

	// Capacity freed: the next request is admitted.
	if _, err := o.ProcessRequest(context.Background(), testRequest("ideation")); err != nil {
		t.Fatalf("request after capacity freed must succeed: %v", err)
	}
}

func TestProcessRequest_Timeout(t *testing.T) {
	cfg := Config{MaxConcurrent: 10, RequestTimeout: 50 * time.Millisecond}
	o := New(cfg, nil, nil)
	o.RegisterAgent(&stubAgent{agentType: "media", delay: time.Second})

	start := time.Now()
	_, err := o.ProcessRequest(context.Background(), testRequest("media"))
	var te *TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("expected *TimeoutError, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("timeout must be observed promptly, took %s", elapsed)
	}

	m := o.GetMetrics()
	if m.TimeoutRejects != 1 {
		t.Errorf("expected 1 timeout reject, got %d", m.TimeoutRejects)
	}
}

func TestHealthCheck_Aggregation(t *testing.T) {
	ctx := context.Background()

	o := New(DefaultConfig(), nil, nil)
	if got := o.HealthCheck(ctx); got != HealthUnhealthy {
		t.Errorf("no agents should be unhealthy, got %s", got)
	}

	o.RegisterAgent(&stubAgent{agentType: "ideation"})
	o.RegisterAgent(&stubAgent{agentType: "refiner"})
	if got := o.HealthCheck(ctx); got != HealthHealthy {
		t.Errorf("all passing should be healthy, got %s", got)
	}

	o.RegisterAgent(&stubAgent{agentType: "media", healthErr: errors.New("no key")})
	if got := o.HealthCheck(ctx); got != HealthDegraded {
		t.Errorf("some passing should be degraded, got %s", got)
	}

	o2 := New(DefaultConfig(), nil, nil)
	o2.RegisterAgent(&stubAgent{agentType: "media", healthErr: errors.New("no key")})
	if got := o2.HealthCheck(ctx); got != HealthUnhealthy {
		t.Errorf("none passing should be unhealthy, got %s", got)
	}
}

func TestGetMetrics(t *testing.T) {
	o := New(DefaultConfig(), nil, nil)
	o.RegisterAgent(&stubAgent{agentType: "ideation"})
	o.RegisterAgent(&stubAgent{agentType: "factcheck", err: errors.New("boom")})

	for i := 0; i < 3; i++ {
		_, _ = o.ProcessRequest(context.Background(), testRequest("ideation"))
	}
	_, _ = o.ProcessRequest(context.Background(), testRequest("factcheck"))

	m := o.GetMetrics()
	if m.RegisteredAgents != 2 {
		t.Errorf("expected 2 registered agents, got %d", m.RegisteredAgents)
	}
	byType := map[string]AgentMetrics{}
	for _, am := range m.Agents {
		byType[am.AgentType] = am
	}
	if byType["ideation"].Requests != 3 || byType["ideation"].Errors != 0 {
		t.Errorf("ideation counters wrong: %+v", byType["ideation"])
	}
	if byType["factcheck"].Requests != 1 || byType["factcheck"].Errors != 1 {
		t.Errorf("factcheck counters wrong: %+v", byType["factcheck"])
	}
	if byType["factcheck"].ErrorRate != 1.0 {
		t.Errorf("expected error rate 1.0, got %f", byType["factcheck"].ErrorRate)
	}
}

func TestProcessRequest_RecordsStats(t *testing.T) {
	c := stats.NewCollector()
	o := New(DefaultConfig(), nil, nil, WithStats(c))
	o.RegisterAgent(&stubAgent{agentType: "ideation", resp: &agent.Response{
		Content: "premises",
		Metadata: agent.Metadata{
			Model: "gpt-4o-mini",
			TokenUsage: llm.Usage{
				PromptTokens:     100,
				CompletionTokens: 50,
				TotalTokens:      150,
				CostUSD:          0.02,
			},
		},
	}})
	o.RegisterAgent(&stubAgent{agentType: "factcheck", err: errors.New("boom")})

	if _, err := o.ProcessRequest(context.Background(), testRequest("ideation")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, _ = o.ProcessRequest(context.Background(), testRequest("factcheck"))

	if c.SnapshotCount() != 2 {
		t.Fatalf("expected 2 snapshots, got %d", c.SnapshotCount())
	}
	byAgent := c.ByAgent()
	for _, a := range byAgent["1m"] {
		switch a.AgentType {
		case "ideation":
			if a.ErrorCount != 0 || a.TotalCostUSD != 0.02 || a.TotalTokens != 150 {
				t.Errorf("ideation aggregate wrong: %+v", a)
			}
		case "factcheck":
			if a.ErrorCount != 1 {
				t.Errorf("factcheck aggregate wrong: %+v", a)
			}
		}
	}
}
