// Package resilience implements the circuit breaker guarding the ingestion
// endpoint. When the endpoint fails repeatedly the breaker opens and delivery
// attempts short-circuit; the worker classifies an open circuit as transient
// and retries on a later cycle, keeping a dead endpoint from burning the
// retry budget of every batch.
package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned while the breaker refuses calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State represents the circuit breaker state.
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Settings configures the breaker behavior.
type Settings struct {
	// FailureThreshold is the consecutive failure count that opens the
	// circuit.
	FailureThreshold int
	// Cooldown is how long the circuit stays open before allowing a probe.
	Cooldown time.Duration
	// OnStateChange is called whenever the state changes.
	OnStateChange func(from, to State)
}

// Breaker tracks endpoint health across delivery attempts.
type Breaker struct {
	settings Settings

	mu            sync.Mutex
	state         State
	failures      int
	openedAt      time.Time
	probeInFlight bool
}

// New creates a breaker, filling in defaults for zero settings.
func New(settings Settings) *Breaker {
	if settings.FailureThreshold == 0 {
		settings.FailureThreshold = 5
	}
	if settings.Cooldown == 0 {
		settings.Cooldown = 30 * time.Second
	}
	return &Breaker{settings: settings}
}

// State returns the current state, accounting for cooldown expiry.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentState(time.Now())
}

// Do runs fn if the breaker accepts the call. In the half-open state only a
// single probe is admitted at a time.
func (b *Breaker) Do(fn func() error) error {
	if err := b.before(); err != nil {
		return err
	}

	err := fn()
	b.after(err == nil)
	return err
}

func (b *Breaker) before() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.currentState(time.Now()) {
	case StateOpen:
		return ErrCircuitOpen
	case StateHalfOpen:
		if b.probeInFlight {
			return ErrCircuitOpen
		}
		b.probeInFlight = true
	}
	return nil
}

func (b *Breaker) after(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.probeInFlight = false
	state := b.currentState(time.Now())

	if success {
		b.failures = 0
		b.transition(state, StateClosed)
		return
	}

	b.failures++
	if state == StateHalfOpen || b.failures >= b.settings.FailureThreshold {
		b.openedAt = time.Now()
		b.transition(state, StateOpen)
	}
}

// currentState resolves cooldown expiry. Caller holds b.mu.
func (b *Breaker) currentState(now time.Time) State {
	if b.state == StateOpen && now.Sub(b.openedAt) >= b.settings.Cooldown {
		b.transition(StateOpen, StateHalfOpen)
	}
	return b.state
}

// transition moves between states and fires the callback. Caller holds b.mu.
func (b *Breaker) transition(from, to State) {
	if from == to {
		return
	}
	b.state = to
	if b.settings.OnStateChange != nil {
		b.settings.OnStateChange(from, to)
	}
}
