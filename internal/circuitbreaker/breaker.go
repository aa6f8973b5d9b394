// Package circuitbreaker guards outbound calls to counterpart gateways.
// Each key (a peer domain) gets its own circuit: closed while the peer is
// healthy, open after repeated transport failures, half-open for a single
// probe once the cooldown elapses.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ErrOpen is returned by Do when the circuit is open and the call was not
// attempted.
var ErrOpen = errors.New("circuitbreaker: open")

// State of a single circuit.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

var stateTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "bridgegate",
	Subsystem: "circuitbreaker",
	Name:      "state_transitions_total",
	Help:      "Circuit state transitions by key, from-state, and to-state.",
}, []string{"key", "from_state", "to_state"})

func init() {
	prometheus.MustRegister(stateTransitions)
}

type circuit struct {
	state       State
	failures    int
	lastFailure time.Time
}

func (c *circuit) moveTo(key string, to State) {
	if c.state == to {
		return
	}
	stateTransitions.WithLabelValues(key, c.state.String(), to.String()).Inc()
	c.state = to
}

// Breaker tracks consecutive failures per key and trips open at threshold.
type Breaker struct {
	mu        sync.Mutex
	circuits  map[string]*circuit
	threshold int
	cooldown  time.Duration
}

// New creates a breaker that opens a circuit after threshold consecutive
// failures and allows a probe after cooldown.
func New(threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &Breaker{
		circuits:  make(map[string]*circuit),
		threshold: threshold,
		cooldown:  cooldown,
	}
}

// Do runs fn if the circuit for key permits it, recording the outcome.
// When the circuit is open, fn is not called and ErrOpen is returned.
// Errors from fn pass through unchanged.
func (b *Breaker) Do(key string, fn func() error) error {
	if !b.allow(key) {
		return ErrOpen
	}
	if err := fn(); err != nil {
		b.recordFailure(key)
		return err
	}
	b.recordSuccess(key)
	return nil
}

// State returns the current state for key. Unknown keys are closed.
func (b *Breaker) State(key string) State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if c, ok := b.circuits[key]; ok {
		return c.state
	}
	return StateClosed
}

func (b *Breaker) allow(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.circuits[key]
	if !ok {
		return true
	}

	switch c.state {
	case StateOpen:
		if time.Since(c.lastFailure) < b.cooldown {
			return false
		}
		c.moveTo(key, StateHalfOpen)
		return true
	case StateHalfOpen:
		// One probe at a time.
		return false
	default:
		return true
	}
}

func (b *Breaker) recordSuccess(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.circuits[key]
	if !ok {
		return
	}
	if c.state == StateHalfOpen {
		c.moveTo(key, StateClosed)
	}
	c.failures = 0
}

func (b *Breaker) recordFailure(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.circuits[key]
	if !ok {
		c = &circuit{}
		b.circuits[key] = c
	}

	c.failures++
	c.lastFailure = time.Now()

	switch {
	case c.state == StateHalfOpen:
		c.moveTo(key, StateOpen)
	case c.state == StateClosed && c.failures >= b.threshold:
		c.moveTo(key, StateOpen)
	}
}
