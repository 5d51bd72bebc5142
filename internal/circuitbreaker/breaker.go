// Package circuitbreaker gates dispatch to the durable workflow backend.
// A run of consecutive dispatch failures opens the circuit and pipelines
// fall back to in-process execution until a probe succeeds.
package circuitbreaker

import (
	"sync"
	"time"
)

// State is the breaker's position in the closed/open/half-open cycle.
type State int

const (
	// Closed admits all dispatches.
	Closed State = iota
	// Open rejects dispatches until the cooldown elapses.
	Open
	// HalfOpen admits exactly one probe dispatch.
	HalfOpen
)

var stateNames = map[State]string{
	Closed:   "closed",
	Open:     "open",
	HalfOpen: "half-open",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

const (
	defaultThreshold = 3
	defaultCooldown  = 30 * time.Second
)

// Breaker counts consecutive dispatch failures and cycles between Closed,
// Open, and HalfOpen. All methods are safe for concurrent use.
type Breaker struct {
	mu            sync.Mutex
	state         State
	streak        int // consecutive failures while Closed
	threshold     int
	cooldown      time.Duration
	openedAt      time.Time
	onStateChange func(from, to State)

	nowFunc func() time.Time // stubbed in tests
}

// Option configures a Breaker.
type Option func(*Breaker)

// WithThreshold sets how many consecutive failures trip the breaker.
// Non-positive values keep the default of 3.
func WithThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.threshold = n
		}
	}
}

// WithCooldown sets the Open dwell time before a probe is admitted.
// Non-positive values keep the default of 30 seconds.
func WithCooldown(d time.Duration) Option {
	return func(b *Breaker) {
		if d > 0 {
			b.cooldown = d
		}
	}
}

// WithOnStateChange registers a transition callback. It runs with the
// breaker's mutex held, so it must not call back into the breaker.
func WithOnStateChange(fn func(from, to State)) Option {
	return func(b *Breaker) {
		b.onStateChange = fn
	}
}

// New returns a Closed breaker.
func New(opts ...Option) *Breaker {
	b := &Breaker{
		threshold: defaultThreshold,
		cooldown:  defaultCooldown,
		nowFunc:   time.Now,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Allow reports whether the next dispatch may go to the workflow backend.
// While Open it admits nothing until the cooldown has elapsed, at which
// point it moves to HalfOpen and admits a single probe. While HalfOpen any
// further dispatch is rejected until the probe's outcome is recorded.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == Closed {
		return true
	}
	if b.state == Open && b.nowFunc().After(b.openedAt.Add(b.cooldown)) {
		b.transition(HalfOpen)
		return true
	}
	return false
}

// RecordSuccess clears the failure streak. A successful probe closes the
// circuit.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.streak = 0
	if b.state == HalfOpen {
		b.transition(Closed)
	}
}

// RecordFailure notes a failed dispatch. Reaching the threshold while
// Closed trips the circuit; a failed probe reopens it immediately.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.streak++

	switch b.state {
	case Closed:
		if b.streak >= b.threshold {
			b.trip()
		}
	case HalfOpen:
		b.trip()
	}
}

// CurrentState returns the breaker's state without consulting the cooldown
// timer; Allow is what advances Open to HalfOpen.
func (b *Breaker) CurrentState() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// trip opens the circuit and stamps the cooldown start. Caller holds b.mu.
func (b *Breaker) trip() {
	b.transition(Open)
	b.openedAt = b.nowFunc()
}

// transition fires the callback on a real change. Caller holds b.mu.
func (b *Breaker) transition(to State) {
	from := b.state
	b.state = to
	if b.onStateChange != nil && from != to {
		b.onStateChange(from, to)
	}
}
