package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/GriffinCanCode/UserTrace/backend/internal/infrastructure/tracing"
)

var (
	// ErrCircuitOpen rejects calls while the breaker is open
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrTooManyRequests rejects calls beyond the half-open probe budget
	ErrTooManyRequests = errors.New("too many requests")
)

// Span attributes set by Call
const (
	CircuitStateKey    = "circuit.state"
	CircuitRejectedKey = "circuit.rejected"
)

// State is the breaker position
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

var stateNames = [...]string{
	StateClosed:   "closed",
	StateHalfOpen: "half-open",
	StateOpen:     "open",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Settings configures a Breaker. Zero values get defaults in New.
type Settings struct {
	// MaxRequests is the number of probes allowed while half-open, and the
	// number of probe successes needed to close again
	MaxRequests uint32
	// Interval restarts the closed-state counts periodically; zero keeps them
	Interval time.Duration
	// Timeout is how long the breaker stays open before probing
	Timeout time.Duration
	// ReadyToTrip is asked after every closed-state failure
	ReadyToTrip func(counts Counts) bool
	// IsSuccessful classifies a call result. By default nil errors and
	// caller cancellation count as success.
	IsSuccessful func(err error) bool
	// OnStateChange observes transitions
	OnStateChange func(name string, from State, to State)
	// Clock overrides time.Now
	Clock func() time.Time
}

// Counts are the outcomes seen since the last transition or interval reset
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

func (c *Counts) success() {
	c.TotalSuccesses++
	c.ConsecutiveSuccesses++
	c.ConsecutiveFailures = 0
}

func (c *Counts) failure() {
	c.TotalFailures++
	c.ConsecutiveFailures++
	c.ConsecutiveSuccesses = 0
}

// Breaker is a three-state circuit breaker. Each transition starts a new
// epoch; results of calls admitted in an earlier epoch are ignored.
type Breaker struct {
	name string
	cfg  Settings

	mu       sync.Mutex
	state    State
	epoch    uint64
	counts   Counts
	deadline time.Time // end of the open period or of the closed interval
}

// New creates a closed breaker
func New(name string, cfg Settings) *Breaker {
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Minute
	}
	if cfg.ReadyToTrip == nil {
		cfg.ReadyToTrip = func(c Counts) bool { return c.ConsecutiveFailures > 5 }
	}
	if cfg.IsSuccessful == nil {
		cfg.IsSuccessful = func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		}
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	b := &Breaker{name: name, cfg: cfg}
	b.startEpoch(cfg.Clock())
	return b
}

// Name returns the breaker name used in errors
func (b *Breaker) Name() string { return b.name }

// State returns the current state, applying any due timeout
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refresh(b.cfg.Clock())
	return b.state
}

// Counts returns the counts of the current epoch
func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts
}

// Allow reserves a slot for one call and reports the state it was admitted
// in. The returned function must be called with the call's error; calls
// after the first are ignored.
func (b *Breaker) Allow() (done func(err error), state State, err error) {
	b.mu.Lock()
	b.refresh(b.cfg.Clock())
	state, epoch := b.state, b.epoch
	switch {
	case state == StateOpen:
		err = ErrCircuitOpen
	case state == StateHalfOpen && b.counts.Requests >= b.cfg.MaxRequests:
		err = ErrTooManyRequests
	default:
		b.counts.Requests++
	}
	b.mu.Unlock()
	if err != nil {
		return nil, state, err
	}

	var once sync.Once
	return func(callErr error) {
		once.Do(func() { b.report(epoch, b.cfg.IsSuccessful(callErr)) })
	}, state, nil
}

// Call runs fn through the breaker. The span in ctx, if any, is annotated
// with the breaker state; rejected calls never reach fn and are marked with
// CircuitRejectedKey. A panic in fn counts as a failure and is re-raised.
func Call[T any](ctx context.Context, b *Breaker, fn func(context.Context) (T, error)) (result T, err error) {
	span := tracing.SpanFromContext(ctx)

	done, state, err := b.Allow()
	span.SetAttribute(CircuitStateKey, state.String())
	if err != nil {
		span.SetAttribute(CircuitRejectedKey, true)
		return result, fmt.Errorf("%s: %w", b.name, err)
	}

	defer func() {
		if r := recover(); r != nil {
			done(fmt.Errorf("panic: %v", r))
			panic(r)
		}
	}()

	result, err = fn(ctx)
	done(err)
	return result, err
}

func (b *Breaker) report(epoch uint64, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.cfg.Clock()
	b.refresh(now)
	if epoch != b.epoch {
		return
	}

	switch b.state {
	case StateClosed:
		if ok {
			b.counts.success()
			return
		}
		b.counts.failure()
		if b.cfg.ReadyToTrip(b.counts) {
			b.transition(StateOpen, now)
		}
	case StateHalfOpen:
		if !ok {
			b.transition(StateOpen, now)
			return
		}
		b.counts.success()
		if b.counts.ConsecutiveSuccesses >= b.cfg.MaxRequests {
			b.transition(StateClosed, now)
		}
	}
}

// refresh applies deadlines: an expired open period moves to half-open and
// an expired closed interval restarts the counts.
func (b *Breaker) refresh(now time.Time) {
	if b.deadline.IsZero() || !b.deadline.Before(now) {
		return
	}
	switch b.state {
	case StateOpen:
		b.transition(StateHalfOpen, now)
	case StateClosed:
		b.startEpoch(now)
	}
}

func (b *Breaker) transition(to State, now time.Time) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	b.startEpoch(now)

	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(b.name, from, to)
	}
}

func (b *Breaker) startEpoch(now time.Time) {
	b.epoch++
	b.counts = Counts{}
	b.deadline = time.Time{}

	switch {
	case b.state == StateOpen:
		b.deadline = now.Add(b.cfg.Timeout)
	case b.state == StateClosed && b.cfg.Interval > 0:
		b.deadline = now.Add(b.cfg.Interval)
	}
}
