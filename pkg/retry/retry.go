// Package retry provides backoff helpers for transient kernel errors.
//
// The kernel reports conditions like EBUSY and EINTR for operations that
// usually succeed on a later attempt. Do retries such operations with
// exponential backoff while passing every other error through untouched.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/genl-protocol/genl-go/pkg/conn"
)

const (
	// InitialBackoff is the initial retry delay. Kernel transients clear
	// quickly, so this is far shorter than a network reconnect delay.
	InitialBackoff = 10 * time.Millisecond

	// MaxBackoff is the maximum retry delay.
	MaxBackoff = 1 * time.Second

	// BackoffMultiplier is the factor by which delays increase.
	BackoffMultiplier = 2.0

	// JitterFactor is the maximum jitter as a fraction of the base delay.
	JitterFactor = 0.25

	// DefaultAttempts is how often Do tries before giving up.
	DefaultAttempts = 5
)

// Backoff calculates exponential backoff delays with jitter.
type Backoff struct {
	mu sync.Mutex

	current time.Duration

	initial    time.Duration
	max        time.Duration
	multiplier float64
	jitter     float64

	attempts int

	rng *rand.Rand
}

// Config allows customizing backoff parameters. Zero fields fall back to
// the package defaults.
type Config struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	Jitter     float64
}

// NewBackoff creates a backoff calculator with default settings.
func NewBackoff() *Backoff {
	return NewBackoffWithConfig(Config{})
}

// NewBackoffWithConfig creates a backoff calculator with custom settings.
func NewBackoffWithConfig(cfg Config) *Backoff {
	if cfg.Initial <= 0 {
		cfg.Initial = InitialBackoff
	}
	if cfg.Max <= 0 {
		cfg.Max = MaxBackoff
	}
	if cfg.Multiplier <= 1 {
		cfg.Multiplier = BackoffMultiplier
	}
	if cfg.Jitter < 0 {
		cfg.Jitter = 0
	}

	return &Backoff{
		current:    cfg.Initial,
		initial:    cfg.Initial,
		max:        cfg.Max,
		multiplier: cfg.Multiplier,
		jitter:     cfg.Jitter,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Next returns the next delay (with jitter) and advances the backoff.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	delay := b.addJitter(b.current)

	b.attempts++
	next := time.Duration(float64(b.current) * b.multiplier)
	if next > b.max {
		next = b.max
	}
	b.current = next

	return delay
}

// Reset resets the backoff to initial values. Call this after a success.
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.current = b.initial
	b.attempts = 0
}

// Attempts returns the number of delays handed out since the last reset.
func (b *Backoff) Attempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts
}

func (b *Backoff) addJitter(d time.Duration) time.Duration {
	if b.jitter <= 0 {
		return d
	}
	return d + time.Duration(float64(d)*b.jitter*b.rng.Float64())
}

// Transient reports whether err is a kernel error worth retrying.
func Transient(err error) bool {
	var kerr *conn.KernelError
	if !errors.As(err, &kerr) {
		return false
	}
	switch kerr.Kind {
	case conn.KindBusy, conn.KindInterrupted:
		return true
	default:
		return false
	}
}

// Options configures Do.
type Options struct {
	// Attempts is the maximum number of tries, including the first.
	Attempts int

	// Backoff overrides the delay schedule.
	Backoff Config

	// RetryIf overrides the retry predicate. Defaults to Transient.
	RetryIf func(error) bool
}

// Do runs fn until it succeeds, fails with a non-transient error, runs
// out of attempts, or the context ends. The last error is returned.
func Do(ctx context.Context, opts Options, fn func(ctx context.Context) error) error {
	attempts := opts.Attempts
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	retryIf := opts.RetryIf
	if retryIf == nil {
		retryIf = Transient
	}

	b := NewBackoffWithConfig(opts.Backoff)

	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if !retryIf(err) {
			return err
		}
		if i == attempts-1 {
			break
		}

		timer := time.NewTimer(b.Next())
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
	return err
}
