package circuit

import (
	"sync"
	"time"

	"polyshadow/internal/logger"
)

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF-OPEN"
	default:
		return "UNKNOWN"
	}
}

var breakerLog = logger.With("circuit")

// Breaker opens after threshold consecutive failures and lets a single probe
// through once cooldown has elapsed.
type Breaker struct {
	mu          sync.Mutex
	name        string
	state       State
	failures    int
	threshold   int
	cooldown    time.Duration
	lastFailure time.Time
	probing     bool
	now         func() time.Time
}

func NewBreaker(name string, threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 1
	}
	return &Breaker{
		name:      name,
		threshold: threshold,
		cooldown:  cooldown,
		state:     StateClosed,
		now:       time.Now,
	}
}

func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Allow reports whether a call may proceed.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if b.now().Sub(b.lastFailure) < b.cooldown {
			return false
		}
		b.transition(StateHalfOpen)
		b.probing = true
		return true
	default:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	}
}

func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.probing = false
	if b.state != StateClosed {
		b.transition(StateClosed)
	}
}

func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	b.lastFailure = b.now()
	b.probing = false
	switch b.state {
	case StateClosed:
		if b.failures >= b.threshold {
			b.transition(StateOpen)
		}
	case StateHalfOpen:
		b.transition(StateOpen)
	}
}

func (b *Breaker) transition(to State) {
	from := b.state
	b.state = to
	breakerLog.Warnf("breaker %s: %s -> %s (failures=%d/%d, cooldown=%s)",
		b.name, from, to, b.failures, b.threshold, b.cooldown)
}

// Set lazily creates one breaker per name with shared settings.
type Set struct {
	mu        sync.Mutex
	breakers  map[string]*Breaker
	threshold int
	cooldown  time.Duration
	now       func() time.Time
}

func NewSet(threshold int, cooldown time.Duration) *Set {
	return &Set{
		breakers:  make(map[string]*Breaker),
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

// SetClock overrides the time source for breakers created afterwards.
func (s *Set) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Set) Get(name string) *Breaker {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.breakers[name]; ok {
		return b
	}
	b := NewBreaker(name, s.threshold, s.cooldown)
	if s.now != nil {
		b.now = s.now
	}
	s.breakers[name] = b
	return b
}
