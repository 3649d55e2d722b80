// Package retry runs a function with exponential backoff and jitter.
package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"time"
)

// Config defines retry behavior.
type Config struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	JitterFactor float64 // 0.0-1.0; 0.1 means +/-10%
	// Retryable decides whether an error is worth another attempt.
	// Nil means IsTransient.
	Retryable func(error) bool
}

// DefaultConfig suits connecting to a database at startup:
// 5 retries from 200ms, doubling, capped at 5s, 10% jitter.
func DefaultConfig() Config {
	return Config{
		MaxRetries:   5,
		InitialDelay: 200 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

func applyJitter(delay time.Duration, factor float64) time.Duration {
	if factor <= 0 {
		return delay
	}
	jitter := float64(delay) * factor * (rand.Float64()*2 - 1) //nolint:gosec // jitter needs no crypto
	return time.Duration(float64(delay) + jitter)
}

// Do executes fn until it succeeds, returns a non-retryable error, the
// retries run out, or ctx ends.
func Do[T any](ctx context.Context, cfg Config, fn func(context.Context) (T, error)) (T, error) {
	retryable := cfg.Retryable
	if retryable == nil {
		retryable = IsTransient
	}
	delay := cfg.InitialDelay

	var (
		result T
		err    error
	)
	for attempt := 0; ; attempt++ {
		result, err = fn(ctx)
		if err == nil || attempt >= cfg.MaxRetries || !retryable(err) {
			return result, err
		}

		t := time.NewTimer(applyJitter(delay, cfg.JitterFactor))
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return result, errors.Join(err, ctx.Err())
		}
		delay = time.Duration(float64(delay) * cfg.Multiplier)
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
}

var transientPatterns = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"no such host",
	"timeout",
	"timed out",
	"temporary failure",
	"too many connections",
	"the database system is starting up",
	"deadlock",
	"network is unreachable",
}

// IsTransient reports whether err looks like a passing network or
// database condition.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
