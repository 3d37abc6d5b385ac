// Package recovery decides how long a failing loop waits before trying again.
//
// The scanner and the poller never give up on a tick: a failed tick simply
// leaves the cursor where it was. What changes with repeated failures is the
// pause before the next attempt, so a throttling node gets room to breathe.
package recovery

import (
	"sync"
	"time"
)

// FailureCategory groups errors by how they should be retried.
type FailureCategory int

const (
	// CategoryTransient covers timeouts, resets and 5xx responses.
	CategoryTransient FailureCategory = iota
	// CategoryRateLimited means the provider asked us to slow down.
	CategoryRateLimited
	// CategoryPermanent errors will not go away by retrying the same request.
	CategoryPermanent
)

func (c FailureCategory) String() string {
	switch c {
	case CategoryTransient:
		return "transient"
	case CategoryRateLimited:
		return "rate_limited"
	case CategoryPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// Classifier maps an error to a FailureCategory.
type Classifier func(err error) FailureCategory

// Tracker counts consecutive failures of one loop and turns them into a delay.
type Tracker struct {
	strategy RetryStrategy

	mu       sync.Mutex
	failures int
	lastErr  error
}

// NewTracker creates a tracker backed by strategy.
func NewTracker(strategy RetryStrategy) *Tracker {
	if strategy == nil {
		strategy = DefaultBackoff(nil)
	}
	return &Tracker{strategy: strategy}
}

// Failure records err and returns the extra pause before the next attempt.
// Zero means "wait for the regular tick".
func (t *Tracker) Failure(err error) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	attempt := t.failures
	t.failures++
	t.lastErr = err

	delay, ok := t.strategy.Backoff(err, attempt)
	if !ok {
		return 0
	}
	return delay
}

// Success resets the failure streak.
func (t *Tracker) Success() {
	t.mu.Lock()
	t.failures = 0
	t.lastErr = nil
	t.mu.Unlock()
}

// Failures returns the length of the current failure streak.
func (t *Tracker) Failures() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failures
}

// LastError returns the most recent failure, nil after a success.
func (t *Tracker) LastError() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErr
}
