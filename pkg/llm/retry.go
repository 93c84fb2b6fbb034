// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"time"
)

// StatusError is a non-200 answer from an HTTP backend.
type StatusError struct {
	Backend    string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s api returned status %d: %s", e.Backend, e.StatusCode, e.Body)
}

// Temporary reports whether the status is worth retrying.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// RetryConfig controls retries with exponential backoff.
type RetryConfig struct {
	// MaxAttempts counts the first call; values below 1 mean 1.
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// Jitter is a fraction of the delay, 0.1 means ±10%.
	Jitter float64
	// Retryable decides whether err deserves another attempt.
	Retryable func(error) bool
}

// DefaultRetryConfig returns three attempts starting at 500ms.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		Multiplier:   2.0,
		Jitter:       0.1,
		Retryable:    IsRetryable,
	}
}

// IsRetryable treats backend status errors by status code, never retries
// context errors and retries anything else, such as connection failures.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var status *StatusError
	if stderrors.As(err, &status) {
		return status.Temporary()
	}
	return true
}

// RetryProvider retries transient failures of the wrapped provider.
type RetryProvider struct {
	next   Provider
	cfg    RetryConfig
	logger *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewRetryProvider wraps next. A nil logger uses slog.Default.
func NewRetryProvider(next Provider, cfg RetryConfig, logger *slog.Logger) *RetryProvider {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 2.0
	}
	if cfg.Retryable == nil {
		cfg.Retryable = IsRetryable
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RetryProvider{next: next, cfg: cfg, logger: logger, sleep: sleepContext}
}

var _ Provider = (*RetryProvider)(nil)

// Chat implements Provider. The last error is returned once attempts run out.
func (p *RetryProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	var lastErr error
	for attempt := 0; attempt < p.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := p.backoff(attempt)
			p.logger.DebugContext(ctx, "llm.retry",
				slog.Int("attempt", attempt+1),
				slog.Duration("delay", delay),
				slog.String("error", lastErr.Error()),
			)
			if err := p.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}
		resp, err := p.next.Chat(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !p.cfg.Retryable(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

// backoff is InitialDelay * Multiplier^(attempt-1), capped and jittered.
func (p *RetryProvider) backoff(attempt int) time.Duration {
	delay := time.Duration(float64(p.cfg.InitialDelay) * math.Pow(p.cfg.Multiplier, float64(attempt-1)))
	if p.cfg.MaxDelay > 0 && delay > p.cfg.MaxDelay {
		delay = p.cfg.MaxDelay
	}
	if p.cfg.Jitter > 0 {
		spread := float64(delay) * p.cfg.Jitter
		delay += time.Duration(spread * (2*rand.Float64() - 1))
		if delay < 0 {
			delay = 0
		}
	}
	return delay
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
