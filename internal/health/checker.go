package health

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Checkable is implemented by agents that support periodic health checking.
type Checkable interface {
	Type() string
	HealthCheck(ctx context.Context) error
}

// CheckerConfig configures the periodic health checker.
type CheckerConfig struct {
	Interval     time.Duration
	CheckTimeout time.Duration
}

// DefaultCheckerConfig returns sensible defaults.
func DefaultCheckerConfig() CheckerConfig {
	return CheckerConfig{
		Interval:     30 * time.Second,
		CheckTimeout: 5 * time.Second,
	}
}

// Checker periodically runs agent health checks and feeds results into the
// health Tracker.
type Checker struct {
	cfg     CheckerConfig
	tracker *Tracker
	logger  *slog.Logger
	stop    chan struct{}
	done    chan struct{}

	mu      sync.RWMutex
	targets map[string]Checkable // keyed by agent type
}

// NewChecker creates a periodic health checker.
func NewChecker(cfg CheckerConfig, tracker *Tracker, targets []Checkable, logger *slog.Logger) *Checker {
	m := make(map[string]Checkable, len(targets))
	for _, t := range targets {
		m[t.Type()] = t
	}
	return &Checker{
		cfg:     cfg,
		tracker: tracker,
		targets: m,
		logger:  logger,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// AddTarget registers a new check target at runtime. If a target with the
// same type already exists it is replaced. Safe to call while the checker is running.
func (c *Checker) AddTarget(t Checkable) {
	c.mu.Lock()
	c.targets[t.Type()] = t
	c.mu.Unlock()
	c.logger.Info("health checker: added target", slog.String("agent", t.Type()))
}

// RemoveTarget removes a check target by agent type. Safe to call while the
// checker is running.
func (c *Checker) RemoveTarget(agentType string) {
	c.mu.Lock()
	delete(c.targets, agentType)
	c.mu.Unlock()
	c.logger.Info("health checker: removed target", slog.String("agent", agentType))
}

// Start begins the periodic check loop in a goroutine.
func (c *Checker) Start() {
	go c.run()
}

// Stop signals the checker to stop and waits for it to finish.
func (c *Checker) Stop() {
	close(c.stop)
	<-c.done
}

func (c *Checker) run() {
	defer close(c.done)

	// Check immediately on start.
	c.checkAll()

	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.checkAll()
		case <-c.stop:
			return
		}
	}
}

func (c *Checker) checkAll() {
	c.mu.RLock()
	snapshot := make([]Checkable, 0, len(c.targets))
	for _, t := range c.targets {
		snapshot = append(snapshot, t)
	}
	c.mu.RUnlock()

	var wg sync.WaitGroup
	for _, t := range snapshot {
		wg.Add(1)
		go func(target Checkable) {
			defer wg.Done()
			c.check(target)
		}(t)
	}
	wg.Wait()
}

func (c *Checker) check(target Checkable) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.CheckTimeout)
	defer cancel()

	start := time.Now()
	err := target.HealthCheck(ctx)
	latencyMs := float64(time.Since(start).Milliseconds())

	if err != nil {
		c.tracker.RecordError(target.Type(), "check: "+err.Error())
		c.logger.Warn("agent health check failed",
			slog.String("agent", target.Type()),
			slog.String("error", err.Error()),
		)
		return
	}

	c.tracker.RecordSuccess(target.Type(), latencyMs)
	c.logger.Debug("agent health check ok",
		slog.String("agent", target.Type()),
		slog.Float64("latency_ms", latencyMs),
	)
}
