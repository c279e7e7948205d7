package circuitbreaker

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	ErrCircuitOpen     = errors.New("circuit breaker is open")
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

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

type Config struct {
	// MaxRequests is the number of trial calls allowed while half-open.
	MaxRequests      uint32
	Timeout          time.Duration
	FailureThreshold uint32
	SuccessThreshold uint32
	Logger           *zap.Logger
	// now is overridden in tests.
	now func() time.Time
}

// CircuitBreaker stops calling a failing dependency for Timeout after
// FailureThreshold consecutive failures, then lets MaxRequests trial calls through.
type CircuitBreaker struct {
	name string
	cfg  Config

	mu         sync.Mutex
	state      State
	openedAt   time.Time
	inFlight   uint32
	failures   uint32
	successes  uint32
	generation uint64
}

func NewCircuitBreaker(name string, cfg Config) *CircuitBreaker {
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 1
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold == 0 {
		cfg.SuccessThreshold = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.now == nil {
		cfg.now = time.Now
	}
	return &CircuitBreaker{name: name, cfg: cfg}
}

// Execute runs fn unless the circuit is open. A panic in fn counts as a failure.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	generation, err := cb.before()
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			cb.after(generation, false)
			panic(r)
		}
	}()

	err = fn()
	cb.after(generation, err == nil)
	return err
}

func (cb *CircuitBreaker) before() (uint64, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.currentState() {
	case StateOpen:
		return cb.generation, ErrCircuitOpen
	case StateHalfOpen:
		if cb.inFlight >= cb.cfg.MaxRequests {
			return cb.generation, ErrTooManyRequests
		}
		cb.inFlight++
	}
	return cb.generation, nil
}

func (cb *CircuitBreaker) after(generation uint64, success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	state := cb.currentState()
	if generation != cb.generation {
		return
	}

	if success {
		cb.failures = 0
		cb.successes++
		if state == StateHalfOpen && cb.successes >= cb.cfg.SuccessThreshold {
			cb.setState(StateClosed)
		}
		return
	}

	cb.successes = 0
	cb.failures++
	if state == StateHalfOpen || cb.failures >= cb.cfg.FailureThreshold {
		cb.setState(StateOpen)
	}
}

// currentState moves an expired open circuit to half-open. Callers hold mu.
func (cb *CircuitBreaker) currentState() State {
	if cb.state == StateOpen && cb.cfg.now().Sub(cb.openedAt) >= cb.cfg.Timeout {
		cb.setState(StateHalfOpen)
	}
	return cb.state
}

func (cb *CircuitBreaker) setState(state State) {
	if cb.state == state {
		return
	}
	prev := cb.state
	cb.state = state
	cb.generation++
	cb.inFlight = 0
	cb.failures = 0
	cb.successes = 0
	if state == StateOpen {
		cb.openedAt = cb.cfg.now()
	}

	cb.cfg.Logger.Info("Circuit breaker state changed",
		zap.String("name", cb.name),
		zap.String("from", prev.String()),
		zap.String("to", state.String()),
	)
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.currentState()
}
