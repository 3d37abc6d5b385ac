package recovery

import (
	"time"
)

// RetryStrategy decides how long a failing loop pauses.
type RetryStrategy interface {
	// Backoff returns the pause after the attempt-th consecutive failure
	// (0-indexed) and whether to pause at all.
	Backoff(err error, attempt int) (time.Duration, bool)
}

// ExponentialBackoff doubles the pause on every consecutive failure.
// Rate-limited errors never pause less than RateLimitFloor.
type ExponentialBackoff struct {
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	MaxAttempts    int
	RateLimitFloor time.Duration
	Classifier     Classifier
}

// DefaultBackoff: 2s, 4s, 8s, 16s, 32s, capped at 60s. A nil classifier
// treats every error as transient.
func DefaultBackoff(classifier Classifier) *ExponentialBackoff {
	if classifier == nil {
		classifier = func(error) FailureCategory { return CategoryTransient }
	}
	return &ExponentialBackoff{
		InitialDelay:   2 * time.Second,
		MaxDelay:       60 * time.Second,
		MaxAttempts:    5,
		RateLimitFloor: 10 * time.Second,
		Classifier:     classifier,
	}
}

// GetDelay returns InitialDelay * 2^attempt, capped at MaxDelay.
func (s *ExponentialBackoff) GetDelay(attempt int) time.Duration {
	delay := s.InitialDelay
	for range max(attempt, 0) {
		if delay >= s.MaxDelay {
			break
		}
		delay *= 2
	}
	return min(delay, s.MaxDelay)
}

// ShouldRetry reports whether err deserves a backoff pause. Rate limits
// always do, past MaxAttempts included; permanent errors never do.
func (s *ExponentialBackoff) ShouldRetry(err error, attempt int) bool {
	switch s.Classifier(err) {
	case CategoryRateLimited:
		return true
	case CategoryTransient:
		return attempt < s.MaxAttempts
	default:
		return false
	}
}

func (s *ExponentialBackoff) Backoff(err error, attempt int) (time.Duration, bool) {
	if !s.ShouldRetry(err, attempt) {
		return 0, false
	}
	delay := s.GetDelay(attempt)
	if s.Classifier(err) == CategoryRateLimited {
		delay = max(delay, s.RateLimitFloor)
	}
	return delay, true
}
