package distance

import (
	"context"
	"errors"
	"time"

	"distance-api-go/circuitbreaker"
	"distance-api-go/logcolors"

	log "github.com/sirupsen/logrus"
)

// RetryConfig governs the backoff policy around a single upstream call.
type RetryConfig struct {
	MaxRetries     int           // extra attempts after the first one
	BaseDelay      time.Duration // delay before the first retry
	MaxDelay       time.Duration // backoff cap
	AttemptTimeout time.Duration // hard deadline per attempt
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 10 * time.Second
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = 10 * time.Second
	}
	return c
}

// executeWithRetry runs fn with bounded exponential backoff: the first
// failure waits BaseDelay, each further failure doubles the wait up to
// MaxDelay, and each attempt carries its own AttemptTimeout deadline. The
// last classified error is returned once the budget is spent, so callers can
// still tell a timeout from a quota rejection.
//
// One executor instance exists per leg per resolution; nothing is shared
// between calls.
func executeWithRetry(ctx context.Context, cfg RetryConfig, name string, fn func(ctx context.Context) (int, error)) (int, error) {
	cfg = cfg.withDefaults()

	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(cfg, attempt-1)
			log.Warnf("%s %s attempt %d/%d failed, retrying in %v: %v",
				logcolors.LogRetry, name, attempt, cfg.MaxRetries+1, delay, lastErr)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return 0, classify(ctx.Err())
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, cfg.AttemptTimeout)
		value, err := fn(attemptCtx)
		cancel()
		if err == nil {
			return value, nil
		}
		// A missing API key is a deployment defect; retrying cannot fix it.
		if errors.Is(err, ErrMissingAPIKey) {
			return 0, err
		}
		// An open circuit already means the upstream is known-bad for the
		// whole cooldown; sleeping through the backoff schedule would undo
		// the fail-fast.
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
			return 0, classify(err)
		}
		lastErr = classify(err)
	}

	log.Errorf("%s %s exhausted %d attempts: %v", logcolors.LogRetry, name, cfg.MaxRetries+1, lastErr)
	return 0, lastErr
}

// backoffDelay computes min(BaseDelay * 2^attempt, MaxDelay).
func backoffDelay(cfg RetryConfig, attempt int) time.Duration {
	delay := cfg.BaseDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= cfg.MaxDelay {
			return cfg.MaxDelay
		}
	}
	if delay > cfg.MaxDelay {
		return cfg.MaxDelay
	}
	return delay
}

// classify wraps any non-upstream error into an UpstreamError so the final
// error is always typed. Context deadlines become timeout-class failures.
func classify(err error) error {
	var uerr *UpstreamError
	if errors.As(err, &uerr) {
		return err
	}
	if isTimeout(err) {
		return &UpstreamError{Kind: KindTimeout, Status: "DEADLINE_EXCEEDED", Err: err}
	}
	return &UpstreamError{Kind: KindGeneric, Status: "TRANSPORT", Err: err}
}
