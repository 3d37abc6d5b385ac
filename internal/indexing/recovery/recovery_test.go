package recovery

import (
	"errors"
	"testing"
	"time"
)

var (
	errTransient = errors.New("connection reset")
	errLimited   = errors.New("429 too many requests")
	errFatal     = errors.New("method not found")
)

func testClassifier(err error) FailureCategory {
	switch {
	case errors.Is(err, errLimited):
		return CategoryRateLimited
	case errors.Is(err, errFatal):
		return CategoryPermanent
	default:
		return CategoryTransient
	}
}

func TestBackoff_Delay(t *testing.T) {
	strategy := DefaultBackoff(nil)
	strategy.InitialDelay = 1 * time.Second
	strategy.MaxDelay = 10 * time.Second

	// Attempt 0: 1*2^0 = 1s
	if d := strategy.GetDelay(0); d != 1*time.Second {
		t.Errorf("expected 1s, got %v", d)
	}

	// Attempt 1: 1*2^1 = 2s
	if d := strategy.GetDelay(1); d != 2*time.Second {
		t.Errorf("expected 2s, got %v", d)
	}

	// Attempt 2: 1*2^2 = 4s
	if d := strategy.GetDelay(2); d != 4*time.Second {
		t.Errorf("expected 4s, got %v", d)
	}

	// Attempt 10: Cap at MaxDelay (10s)
	if d := strategy.GetDelay(10); d != 10*time.Second {
		t.Errorf("expected 10s, got %v", d)
	}
}

func TestBackoff_ShouldRetry(t *testing.T) {
	strategy := DefaultBackoff(testClassifier)
	strategy.MaxAttempts = 3

	if !strategy.ShouldRetry(errTransient, 0) {
		t.Error("should retry attempt 0")
	}
	if !strategy.ShouldRetry(errTransient, 2) {
		t.Error("should retry attempt 2")
	}
	if strategy.ShouldRetry(errTransient, 3) {
		t.Error("should NOT retry attempt 3 (max reached)")
	}
	if !strategy.ShouldRetry(errLimited, 10) {
		t.Error("rate limits should always back off")
	}
	if strategy.ShouldRetry(errFatal, 0) {
		t.Error("permanent errors should not back off")
	}
}

func TestTracker_Streak(t *testing.T) {
	strategy := DefaultBackoff(testClassifier)
	strategy.InitialDelay = time.Second
	tracker := NewTracker(strategy)

	if d := tracker.Failure(errTransient); d != time.Second {
		t.Errorf("expected 1s, got %v", d)
	}
	if d := tracker.Failure(errTransient); d != 2*time.Second {
		t.Errorf("expected 2s, got %v", d)
	}
	if tracker.Failures() != 2 {
		t.Errorf("expected 2 failures, got %d", tracker.Failures())
	}
	if !errors.Is(tracker.LastError(), errTransient) {
		t.Errorf("unexpected last error %v", tracker.LastError())
	}

	tracker.Success()
	if tracker.Failures() != 0 || tracker.LastError() != nil {
		t.Error("expected reset streak after success")
	}
	if d := tracker.Failure(errTransient); d != time.Second {
		t.Errorf("expected streak to restart at 1s, got %v", d)
	}
}

func TestBackoff_RateLimitFloor(t *testing.T) {
	strategy := DefaultBackoff(testClassifier)
	strategy.InitialDelay = time.Second
	strategy.RateLimitFloor = 5 * time.Second

	if d, ok := strategy.Backoff(errLimited, 0); !ok || d != 5*time.Second {
		t.Errorf("expected 5s floor, got %v (%v)", d, ok)
	}
	if d, ok := strategy.Backoff(errLimited, 4); !ok || d != 16*time.Second {
		t.Errorf("expected 16s, got %v (%v)", d, ok)
	}
	if d, ok := strategy.Backoff(errTransient, 0); !ok || d != time.Second {
		t.Errorf("transient errors have no floor, got %v", d)
	}
	if _, ok := strategy.Backoff(errFatal, 0); ok {
		t.Error("permanent errors should not back off")
	}
}

func TestTracker_PermanentWaitsForTick(t *testing.T) {
	tracker := NewTracker(DefaultBackoff(testClassifier))

	if d := tracker.Failure(errFatal); d != 0 {
		t.Errorf("expected no extra pause, got %v", d)
	}
	if tracker.Failures() != 1 {
		t.Errorf("permanent failures still count, got %d", tracker.Failures())
	}
}

func TestFailureCategory_String(t *testing.T) {
	if CategoryRateLimited.String() != "rate_limited" {
		t.Errorf("unexpected %q", CategoryRateLimited.String())
	}
}
