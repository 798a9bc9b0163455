package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

type State int

const (
	StateClosed   State = iota // calls pass through
	StateOpen                  // calls are rejected until Timeout elapses
	StateHalfOpen              // a limited number of trial calls pass through
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

var ErrOpen = errors.New("circuit breaker is open")

type Config struct {
	// consecutive failures that open the breaker
	FailureThreshold int
	// successes in half-open that close it again
	SuccessThreshold int
	// how long the breaker stays open before trying half-open
	Timeout time.Duration
	// concurrent trial calls allowed while half-open
	HalfOpenMaxRequests int
	// OnStateChange, if set, is called with the lock released.
	OnStateChange func(from, to State)
}

func DefaultConfig() Config {
	return Config{
		FailureThreshold:    5,
		SuccessThreshold:    2,
		Timeout:             30 * time.Second,
		HalfOpenMaxRequests: 3,
	}
}

type CircuitBreaker struct {
	config Config
	now    func() time.Time

	mu           sync.Mutex
	state        State
	failures     int
	successes    int
	inFlight     int
	stateChanged time.Time
}

func New(config Config) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = DefaultConfig().FailureThreshold
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = DefaultConfig().SuccessThreshold
	}
	if config.HalfOpenMaxRequests <= 0 {
		config.HalfOpenMaxRequests = DefaultConfig().HalfOpenMaxRequests
	}
	return &CircuitBreaker{
		config:       config,
		now:          time.Now,
		state:        StateClosed,
		stateChanged: time.Now(),
	}
}

// Execute runs fn unless the breaker is open. fn's error is returned as is.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.before(); err != nil {
		return err
	}
	err := fn()
	cb.after(err)
	return err
}

func (cb *CircuitBreaker) before() error {
	cb.mu.Lock()
	from := cb.state
	if cb.state == StateOpen && cb.now().Sub(cb.stateChanged) >= cb.config.Timeout {
		cb.setState(StateHalfOpen)
	}
	to := cb.state
	var err error
	switch cb.state {
	case StateOpen:
		err = ErrOpen
	case StateHalfOpen:
		if cb.inFlight >= cb.config.HalfOpenMaxRequests {
			err = ErrOpen
		} else {
			cb.inFlight++
		}
	}
	cb.mu.Unlock()
	cb.notify(from, to)
	return err
}

func (cb *CircuitBreaker) after(err error) {
	cb.mu.Lock()
	from := cb.state
	if cb.state == StateHalfOpen && cb.inFlight > 0 {
		cb.inFlight--
	}
	if err != nil {
		cb.failures++
		cb.successes = 0
		if cb.state == StateHalfOpen || cb.failures >= cb.config.FailureThreshold {
			cb.setState(StateOpen)
		}
	} else {
		cb.failures = 0
		if cb.state == StateHalfOpen {
			cb.successes++
			if cb.successes >= cb.config.SuccessThreshold {
				cb.setState(StateClosed)
			}
		}
	}
	to := cb.state
	cb.mu.Unlock()
	cb.notify(from, to)
}

// setState is called with cb.mu held.
func (cb *CircuitBreaker) setState(s State) {
	cb.state = s
	cb.stateChanged = cb.now()
	cb.successes = 0
	cb.inFlight = 0
	if s == StateClosed {
		cb.failures = 0
	}
}

func (cb *CircuitBreaker) notify(from, to State) {
	if from != to && cb.config.OnStateChange != nil {
		cb.config.OnStateChange(from, to)
	}
}

func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.setState(StateClosed)
}
