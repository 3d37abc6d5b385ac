package worker

import (
	"context"
	"testing"
	"time"

	"github.com/vietddude/walletwatch/internal/core/domain"
	"github.com/vietddude/walletwatch/internal/core/ledger"
)

func TestInterval(t *testing.T) {
	tests := []struct {
		retention time.Duration
		expected  time.Duration
	}{
		{24 * time.Hour, time.Hour},
		{2 * time.Hour, 12 * time.Minute},
		{5 * time.Minute, time.Minute},
	}

	for _, tt := range tests {
		if got := Interval(tt.retention); got != tt.expected {
			t.Errorf("Interval(%v) = %v, want %v", tt.retention, got, tt.expected)
		}
	}
}

func TestPrunerDropsExpired(t *testing.T) {
	l := ledger.New(ledger.Config{Retention: time.Hour, HighWater: 100})
	now := time.Now()
	l.Restore([]domain.SeenEntry{
		{Key: "0xold:0xaaa", SeenAt: now.Add(-3 * time.Hour)},
		{Key: "0xolder:0xaaa", SeenAt: now.Add(-4 * time.Hour)},
		{Key: "0xfresh:0xaaa", SeenAt: now.Add(-time.Minute)},
	})

	calls := 0
	p := NewPruner(l, time.Hour, 0, func(context.Context) { calls++ })

	if removed := p.Prune(context.Background()); removed != 2 {
		t.Errorf("expected 2 removed, got %d", removed)
	}
	if l.Len() != 1 {
		t.Errorf("expected 1 remaining entry, got %d", l.Len())
	}
	if calls != 1 {
		t.Errorf("expected onPruned once, got %d", calls)
	}

	// Nothing left to drop: no callback.
	p.Prune(context.Background())
	if calls != 1 {
		t.Errorf("onPruned ran on an empty pass")
	}
}

func TestPrunerDisabled(t *testing.T) {
	l := ledger.New(ledger.Config{})
	p := NewPruner(l, 0, time.Millisecond, nil)

	done := make(chan struct{})
	go func() {
		p.Start(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start should return immediately when retention is disabled")
	}
}
