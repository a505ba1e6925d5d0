// Package resilience keeps unhealthy tenant webhook endpoints from being
// hammered with doomed deliveries.
package resilience

import (
	"errors"
	"sync"
	"time"
)

// State represents the breaker state for one endpoint.
type State int32

const (
	StateClosed   State = iota // Normal operation, tracking failures
	StateOpen                  // Failing fast, not calling the endpoint
	StateHalfOpen              // Probing whether the endpoint recovered
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrEndpointSuspended is returned when the breaker for an endpoint is open
// and the delivery is rejected without an HTTP call.
var ErrEndpointSuspended = errors.New("webhook endpoint suspended after repeated failures")

// Settings configures the breakers of a group.
type Settings struct {
	// MaxFailures is the number of consecutive failed deliveries before an
	// endpoint's breaker opens.
	MaxFailures int64

	// ResetTimeout is how long an open breaker waits before letting a probe
	// delivery through.
	ResetTimeout time.Duration

	// OnStateChange is called when an endpoint's breaker changes state.
	OnStateChange func(clientID string, from, to State)
}

// DefaultSettings returns sensible defaults for webhook endpoints.
func DefaultSettings() Settings {
	return Settings{
		MaxFailures:  10,
		ResetTimeout: time.Minute,
	}
}

// BreakerGroup holds one circuit breaker per webhook endpoint, keyed by
// client ID. Breakers are created lazily on first delivery.
type BreakerGroup struct {
	settings Settings

	mu       sync.Mutex
	breakers map[string]*endpointBreaker
}

type endpointBreaker struct {
	state         State
	failures      int64
	lastChange    time.Time
	probeInFlight bool
}

// NewBreakerGroup creates a breaker group with the given settings.
func NewBreakerGroup(settings Settings) *BreakerGroup {
	if settings.MaxFailures <= 0 {
		settings.MaxFailures = 10
	}
	if settings.ResetTimeout <= 0 {
		settings.ResetTimeout = time.Minute
	}

	return &BreakerGroup{
		settings: settings,
		breakers: make(map[string]*endpointBreaker),
	}
}

// Execute runs fn through the breaker for clientID. Returns
// ErrEndpointSuspended without calling fn when the breaker is open.
func (g *BreakerGroup) Execute(clientID string, fn func() error) error {
	if !g.allow(clientID) {
		return ErrEndpointSuspended
	}

	err := fn()
	g.record(clientID, err == nil)
	return err
}

// State returns the current breaker state for clientID.
func (g *BreakerGroup) State(clientID string) State {
	g.mu.Lock()
	defer g.mu.Unlock()

	breaker := g.breaker(clientID)
	return g.transition(clientID, breaker)
}

func (g *BreakerGroup) allow(clientID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	breaker := g.breaker(clientID)
	switch g.transition(clientID, breaker) {
	case StateClosed:
		return true
	case StateHalfOpen:
		// One probe delivery at a time while half-open.
		if breaker.probeInFlight {
			return false
		}
		breaker.probeInFlight = true
		return true
	default:
		return false
	}
}

func (g *BreakerGroup) record(clientID string, success bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	breaker := g.breaker(clientID)
	state := g.transition(clientID, breaker)
	breaker.probeInFlight = false

	if success {
		breaker.failures = 0
		if state == StateHalfOpen {
			g.setState(clientID, breaker, StateClosed)
		}
		return
	}

	switch state {
	case StateClosed:
		breaker.failures++
		if breaker.failures >= g.settings.MaxFailures {
			g.setState(clientID, breaker, StateOpen)
		}
	case StateHalfOpen:
		// A failed probe reopens the breaker.
		g.setState(clientID, breaker, StateOpen)
	}
}

// breaker returns the breaker for clientID, creating it closed.
// Must be called with g.mu held.
func (g *BreakerGroup) breaker(clientID string) *endpointBreaker {
	breaker, ok := g.breakers[clientID]
	if !ok {
		breaker = &endpointBreaker{state: StateClosed, lastChange: time.Now()}
		g.breakers[clientID] = breaker
	}
	return breaker
}

// transition applies the open -> half-open timeout edge.
// Must be called with g.mu held.
func (g *BreakerGroup) transition(clientID string, breaker *endpointBreaker) State {
	if breaker.state == StateOpen && time.Since(breaker.lastChange) >= g.settings.ResetTimeout {
		g.setState(clientID, breaker, StateHalfOpen)
	}
	return breaker.state
}

// setState moves a breaker to a new state and notifies the observer.
// Must be called with g.mu held.
func (g *BreakerGroup) setState(clientID string, breaker *endpointBreaker, newState State) {
	if breaker.state == newState {
		return
	}

	from := breaker.state
	breaker.state = newState
	breaker.lastChange = time.Now()

	if newState == StateClosed {
		breaker.failures = 0
	}

	if g.settings.OnStateChange != nil {
		g.settings.OnStateChange(clientID, from, newState)
	}
}
