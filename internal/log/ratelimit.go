package log

import (
	"sync"
	"sync/atomic"
	"time"
)

// Limiter caps how many messages of one kind are emitted per window. The
// packet path calls Allow for every advisory it would log; counts are
// rotated when the window expires.
type Limiter struct {
	mu          sync.Mutex
	current     map[string]*atomic.Int64
	windowStart time.Time
	windowSize  time.Duration
	burst       int64

	suppressed atomic.Int64
}

// NewLimiter returns nil when cfg.Burst <= 0; a nil Limiter allows
// everything.
func NewLimiter(cfg AdvisoryConfig) *Limiter {
	if cfg.Burst <= 0 {
		return nil
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	return &Limiter{
		current:     make(map[string]*atomic.Int64),
		windowStart: time.Now(),
		windowSize:  cfg.Interval,
		burst:       int64(cfg.Burst),
	}
}

// Allow reports whether another message of kind may be logged at now.
func (l *Limiter) Allow(kind string, now time.Time) bool {
	if l == nil {
		return true
	}

	l.mu.Lock()
	if now.Sub(l.windowStart) >= l.windowSize {
		l.current = make(map[string]*atomic.Int64)
		l.windowStart = now
	}
	counter, ok := l.current[kind]
	if !ok {
		counter = &atomic.Int64{}
		l.current[kind] = counter
	}
	l.mu.Unlock()

	if counter.Add(1) > l.burst {
		l.suppressed.Add(1)
		return false
	}
	return true
}

// Suppressed returns how many messages Allow has refused so far.
func (l *Limiter) Suppressed() int64 {
	if l == nil {
		return 0
	}
	return l.suppressed.Load()
}
