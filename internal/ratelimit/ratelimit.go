// Package ratelimit provides a simple in-memory sliding-window rate limiter
// keyed by user ID. The gateway consults it on every pre-flight check.
package ratelimit

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Limiter is a per-user sliding-window rate limiter.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*window
	limit   int           // max requests per window
	span    time.Duration // window duration
	maxKeys int           // max entries before evicting oldest
	stop    chan struct{}
	counter prometheus.Counter // optional: incremented on each rejection

	// nowFunc is used for testing; defaults to time.Now.
	nowFunc func() time.Time
}

type window struct {
	stamps []time.Time
}

// New creates a rate limiter allowing limit requests per span per key.
// An optional Prometheus counter is incremented on each rejected request
// (pass nil to disable).
func New(limit int, span time.Duration, opts ...Option) *Limiter {
	l := &Limiter{
		windows: make(map[string]*window),
		limit:   limit,
		span:    span,
		maxKeys: 100000, // default cap: 100k unique users
		stop:    make(chan struct{}),
		nowFunc: time.Now,
	}
	for _, o := range opts {
		o(l)
	}
	// Periodically clean up stale entries.
	go l.cleanup()
	return l
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithCounter sets a Prometheus counter that is incremented on each rejection.
func WithCounter(c prometheus.Counter) Option {
	return func(l *Limiter) {
		l.counter = c
	}
}

// WithNowFunc overrides the clock, for tests.
func WithNowFunc(fn func() time.Time) Option {
	return func(l *Limiter) {
		l.nowFunc = fn
	}
}

// Allow records a request for key and reports whether it is within the limit.
// A rejected request does not consume window capacity.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok {
		// Evict oldest entry if at capacity.
		if len(l.windows) >= l.maxKeys {
			l.evictOldest()
		}
		w = &window{}
		l.windows[key] = w
	}

	now := l.nowFunc()
	w.trim(now.Add(-l.span))

	if len(w.stamps) >= l.limit {
		if l.counter != nil {
			l.counter.Inc()
		}
		return false
	}
	w.stamps = append(w.stamps, now)
	return true
}

// Remaining returns how many requests key may still make in the current window.
func (l *Limiter) Remaining(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok {
		return l.limit
	}
	w.trim(l.nowFunc().Add(-l.span))
	remaining := l.limit - len(w.stamps)
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// Limit returns the configured per-window request limit.
func (l *Limiter) Limit() int { return l.limit }

// trim drops timestamps older than cutoff. Stamps are appended in order, so a
// single scan from the front suffices.
func (w *window) trim(cutoff time.Time) {
	i := 0
	for i < len(w.stamps) && !w.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.stamps = w.stamps[i:]
	}
}

// evictOldest removes the window with the oldest most-recent stamp.
// Must be called with l.mu held.
func (l *Limiter) evictOldest() {
	var oldestKey string
	var oldestTime time.Time
	first := true
	for k, w := range l.windows {
		var last time.Time
		if n := len(w.stamps); n > 0 {
			last = w.stamps[n-1]
		}
		if first || last.Before(oldestTime) {
			oldestKey = k
			oldestTime = last
			first = false
		}
	}
	if !first {
		delete(l.windows, oldestKey)
	}
}

// Stop terminates the background cleanup goroutine.
func (l *Limiter) Stop() {
	close(l.stop)
}

func (l *Limiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.mu.Lock()
			cutoff := l.nowFunc().Add(-l.span)
			for k, w := range l.windows {
				w.trim(cutoff)
				if len(w.stamps) == 0 {
					delete(l.windows, k)
				}
			}
			l.mu.Unlock()
		case <-l.stop:
			return
		}
	}
}
