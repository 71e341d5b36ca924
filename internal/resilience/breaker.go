package resilience

import (
	"sync"
	"time"
)

const (
	DefaultThreshold = 5
	DefaultResetTime = 30 * time.Second
)

// CircuitState is a point-in-time view of one circuit.
type CircuitState struct {
	Failures    int       `json:"failures"`
	LastFailure time.Time `json:"last_failure"`
	IsOpen      bool      `json:"is_open"`
}

// BreakerOptions configures a Breaker. Zero values fall back to the defaults.
type BreakerOptions struct {
	Threshold int
	ResetTime time.Duration
	// Now is the clock used for cooldowns; tests substitute a fake one.
	Now func() time.Time
}

type circuit struct {
	failures    int
	lastFailure time.Time
	open        bool
	trial       bool
}

// Breaker keeps one circuit per key. Each dispatcher owns its own Breaker.
type Breaker struct {
	mu        sync.Mutex
	threshold int
	resetTime time.Duration
	now       func() time.Time
	circuits  map[string]*circuit
}

// NewBreaker creates a breaker with every circuit closed.
func NewBreaker(opts BreakerOptions) *Breaker {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.ResetTime <= 0 {
		opts.ResetTime = DefaultResetTime
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Breaker{
		threshold: opts.Threshold,
		resetTime: opts.ResetTime,
		now:       opts.Now,
		circuits:  make(map[string]*circuit),
	}
}

func (b *Breaker) get(key string) *circuit {
	c, ok := b.circuits[key]
	if !ok {
		c = &circuit{}
		b.circuits[key] = c
	}
	return c
}

// Allow asks permission for one call on key. An open circuit rejects with a
// CircuitOpenError until the cooldown has elapsed, then lets exactly one trial call
// through until that call reports back.
func (b *Breaker) Allow(key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	c := b.get(key)
	if !c.open {
		return nil
	}
	elapsed := b.now().Sub(c.lastFailure)
	if elapsed < b.resetTime {
		return &CircuitOpenError{Key: key, RetryAfter: b.resetTime - elapsed}
	}
	if c.trial {
		return &CircuitOpenError{Key: key}
	}
	c.trial = true
	return nil
}

// Success closes the circuit and zeroes its failures.
func (b *Breaker) Success(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c := b.get(key)
	c.failures = 0
	c.open = false
	c.trial = false
}

// Failure records a failed call. Reaching the threshold opens the circuit; a failed
// trial call reopens it and restarts the cooldown.
func (b *Breaker) Failure(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c := b.get(key)
	c.failures++
	c.lastFailure = b.now()
	if c.trial || c.failures >= b.threshold {
		c.open = true
	}
	c.trial = false
}

// Abandon gives back a trial slot when the call ended without a verdict, for
// example because the caller was cancelled.
func (b *Breaker) Abandon(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if c, ok := b.circuits[key]; ok {
		c.trial = false
	}
}

// IsOpen reports whether the circuit for key is open. It stays true through the
// cooldown and the trial call, until a trial succeeds.
func (b *Breaker) IsOpen(key string) bool {
	return b.State(key).IsOpen
}

// State returns a copy of the circuit for key.
func (b *Breaker) State(key string) CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.circuits[key]
	if !ok {
		return CircuitState{}
	}
	return CircuitState{Failures: c.failures, LastFailure: c.lastFailure, IsOpen: c.open}
}

// Snapshot returns every known circuit.
func (b *Breaker) Snapshot() map[string]CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make(map[string]CircuitState, len(b.circuits))
	for key, c := range b.circuits {
		out[key] = CircuitState{Failures: c.failures, LastFailure: c.lastFailure, IsOpen: c.open}
	}
	return out
}

// Reset forgets the circuit for key.
func (b *Breaker) Reset(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.circuits, key)
}
