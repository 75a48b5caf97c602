package transport

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

const (
	defaultBackoffInitialDelay = time.Second
	defaultBackoffMaxDelay     = 10 * time.Second
	defaultBackoffMultiplier   = 2.0
	defaultBackoffJitterFactor = 0.3
	defaultBackoffMaxAttempts  = 5
)

type BackoffConfig struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	JitterFactor float64
	MaxAttempts  int
}

func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		InitialDelay: defaultBackoffInitialDelay,
		MaxDelay:     defaultBackoffMaxDelay,
		Multiplier:   defaultBackoffMultiplier,
		JitterFactor: defaultBackoffJitterFactor,
		MaxAttempts:  defaultBackoffMaxAttempts,
	}
}

// Backoff computes reconnect delays that grow exponentially up to a cap,
// with symmetric jitter so many clients dropped by the same server outage do
// not reconnect in lockstep.
type Backoff struct {
	mu      sync.Mutex
	config  BackoffConfig
	attempt int
	random  func() float64
}

type BackoffOption func(*Backoff)

func WithBackoffConfig(config BackoffConfig) BackoffOption {
	return func(b *Backoff) {
		b.config = config
	}
}

// WithBackoffRandSource replaces the jitter source. Used by tests to make
// delays deterministic.
func WithBackoffRandSource(random func() float64) BackoffOption {
	return func(b *Backoff) {
		b.random = random
	}
}

func NewBackoff(opts ...BackoffOption) *Backoff {
	b := &Backoff{
		config: DefaultBackoffConfig(),
		random: rand.Float64,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// NominalDelay is the un-jittered delay for a given attempt:
// min(initial * multiplier^attempt, max).
func (b *Backoff) NominalDelay(attempt int) time.Duration {
	base := float64(b.config.InitialDelay) * math.Pow(b.config.Multiplier, float64(attempt))
	if capped := float64(b.config.MaxDelay); base > capped {
		base = capped
	}
	return time.Duration(base)
}

// NextDelay returns the delay before the next reconnect attempt and advances
// the attempt counter. The result is never negative.
func (b *Backoff) NextDelay() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	base := float64(b.NominalDelay(b.attempt))
	jitter := base * b.config.JitterFactor
	delay := time.Duration(math.Round(base + (b.random()*2-1)*jitter))
	if delay < 0 {
		delay = 0
	}

	b.attempt++
	return delay
}

func (b *Backoff) Attempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempt
}

func (b *Backoff) MaxAttemptsReached() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempt >= b.config.MaxAttempts
}

func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attempt = 0
}
