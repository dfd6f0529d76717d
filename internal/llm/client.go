package llm

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/storefront-labs/concierge/internal/prompt"
	"github.com/storefront-labs/concierge/internal/reliability"
)

const backoffCap = 30 * time.Second

// GenerationError is the terminal failure after the retry budget is
// spent (or a non-transient provider error). The orchestrator maps it
// to an apology reply instead of surfacing raw provider detail.
type GenerationError struct {
	Attempts int
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Client wraps an adapter with per-attempt timeouts and exponential
// backoff. Only transient failures are retried; auth or bad-request
// errors fail on the first attempt.
type Client struct {
	adapter  Adapter
	attempts int
	backoff  time.Duration
	timeout  time.Duration

	// OnRetry, when set, observes every retried attempt.
	OnRetry func(attempt int)

	// sleep is swappable in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewClient(adapter Adapter, attempts int, backoff, timeout time.Duration) *Client {
	if attempts <= 0 {
		attempts = 1
	}
	return &Client{
		adapter:  adapter,
		attempts: attempts,
		backoff:  backoff,
		timeout:  timeout,
		sleep:    sleepContext,
	}
}

// Generate runs the adapter with the retry policy. The returned error is
// always a *GenerationError except for caller cancellation, which is
// passed through so the transport can distinguish an abandoned request
// from a provider outage.
func (c *Client) Generate(ctx context.Context, req prompt.Request) (string, error) {
	var lastErr error

	for attempt := 0; attempt < c.attempts; attempt++ {
		reply, err := c.generateOnce(ctx, req)
		if err == nil {
			return reply, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !reliability.IsTransient(err) {
			return "", &GenerationError{Attempts: attempt + 1, Err: err}
		}
		if attempt == c.attempts-1 {
			break
		}

		if c.OnRetry != nil {
			c.OnRetry(attempt + 1)
		}
		wait := reliability.ExponentialBackoff(attempt, c.backoff, backoffCap)
		log.Printf("generation attempt %d/%d failed (retrying in %s): %v", attempt+1, c.attempts, wait, err)
		if err := c.sleep(ctx, wait); err != nil {
			return "", err
		}
	}

	return "", &GenerationError{Attempts: c.attempts, Err: lastErr}
}

func (c *Client) generateOnce(ctx context.Context, req prompt.Request) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return c.adapter.Generate(ctx, req)
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

// IsGenerationFailure reports whether err is the terminal retry outcome.
func IsGenerationFailure(err error) bool {
	var ge *GenerationError
	return errors.As(err, &ge)
}
