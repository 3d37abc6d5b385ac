package cursor

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestSafeHead(t *testing.T) {
	tests := []struct {
		name          string
		head          uint64
		confirmations uint64
		expected      uint64
	}{
		{"no confirmations", 101, 0, 101},
		{"normal", 1000, 15, 985},
		{"head below depth", 3, 15, 0},
		{"head equals depth", 15, 15, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SafeHead(tt.head, tt.confirmations); got != tt.expected {
				t.Errorf("SafeHead(%d, %d) = %d, want %d", tt.head, tt.confirmations, got, tt.expected)
			}
		})
	}
}

func TestManagerInitialize(t *testing.T) {
	manager := NewManager(10)

	if _, ok := manager.Get(); ok {
		t.Error("expected uninitialized cursor")
	}

	manager.Initialize(1000)

	current, ok := manager.Get()
	if !ok {
		t.Fatal("expected initialized cursor")
	}
	if current != 1000 {
		t.Errorf("expected block 1000, got %d", current)
	}
	if manager.Dirty() {
		t.Error("freshly loaded cursor should not be dirty")
	}
}

func TestManagerAdvance(t *testing.T) {
	manager := NewManager(10)
	manager.Initialize(1000)

	if err := manager.Advance(1001, 2000); err != nil {
		t.Errorf("Advance to 1001 failed: %v", err)
	}
	if manager.Current() != 1001 {
		t.Errorf("expected block 1001, got %d", manager.Current())
	}
}

func TestManagerAdvance_NotInitialized(t *testing.T) {
	manager := NewManager(10)

	err := manager.Advance(1, 10)
	if !errors.Is(err, ErrCursorNotInitialized) {
		t.Errorf("expected ErrCursorNotInitialized, got %v", err)
	}
}

func TestManagerAdvance_GapDetection(t *testing.T) {
	manager := NewManager(10)
	manager.Initialize(1000)

	err := manager.Advance(1005, 2000)
	if err == nil {
		t.Fatal("expected error for gap, got nil")
	}
	if !errors.Is(err, ErrBlockGap) {
		t.Errorf("expected ErrBlockGap, got %v", err)
	}
	if manager.Current() != 1000 {
		t.Errorf("cursor moved on gap: %d", manager.Current())
	}
}

func TestManagerAdvance_Idempotent(t *testing.T) {
	manager := NewManager(10)
	manager.Initialize(1000)
	_ = manager.Advance(1001, 2000)

	if err := manager.Advance(1001, 2000); err != nil {
		t.Errorf("re-advancing to the same block should succeed, got %v", err)
	}
	if manager.Current() != 1001 {
		t.Errorf("expected block 1001, got %d", manager.Current())
	}
}

func TestManagerAdvance_NeverRegresses(t *testing.T) {
	manager := NewManager(10)
	manager.Initialize(1000)

	err := manager.Advance(999, 2000)
	if !errors.Is(err, ErrRegress) {
		t.Errorf("expected ErrRegress, got %v", err)
	}
	if manager.Current() != 1000 {
		t.Errorf("cursor moved backwards to %d", manager.Current())
	}
}

func TestManagerAdvance_SafeHeadBound(t *testing.T) {
	manager := NewManager(10)
	manager.Initialize(100)

	err := manager.Advance(101, 100)
	if !errors.Is(err, ErrBeyondSafeHead) {
		t.Errorf("expected ErrBeyondSafeHead, got %v", err)
	}
	if manager.Current() != 100 {
		t.Errorf("cursor passed the safe head: %d", manager.Current())
	}
}

func TestManagerPersistenceThrottle(t *testing.T) {
	manager := NewManager(3)
	manager.Initialize(100)

	for block := uint64(101); block <= 102; block++ {
		if err := manager.Advance(block, 1000); err != nil {
			t.Fatalf("Advance(%d) failed: %v", block, err)
		}
		if manager.NeedsPersist() {
			t.Errorf("did not expect persist request at block %d", block)
		}
	}

	if err := manager.Advance(103, 1000); err != nil {
		t.Fatalf("Advance(103) failed: %v", err)
	}
	if !manager.NeedsPersist() {
		t.Error("expected persist request after 3 blocks")
	}

	manager.MarkPersisted(103)
	if manager.NeedsPersist() || manager.Dirty() {
		t.Error("expected clean cursor after MarkPersisted")
	}
}

func TestManagerGetLag(t *testing.T) {
	manager := NewManager(1)
	manager.Initialize(990)

	if lag := manager.GetLag(1000); lag != 10 {
		t.Errorf("expected lag 10, got %d", lag)
	}
	if lag := manager.GetLag(980); lag != -10 {
		t.Errorf("expected lag -10, got %d", lag)
	}
}

func TestManagerConcurrentReads(t *testing.T) {
	manager := NewManager(5)
	manager.Initialize(0)

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				_ = manager.Current()
				_ = manager.NeedsPersist()
			}
		}()
	}

	for block := uint64(1); block <= 100; block++ {
		if err := manager.Advance(block, 100); err != nil {
			t.Fatalf("Advance(%d) failed: %v", block, err)
		}
	}
	wg.Wait()

	if manager.Current() != 100 {
		t.Errorf("expected block 100, got %d", manager.Current())
	}
}

func TestMetricsCollector(t *testing.T) {
	mc := NewMetricsCollector(3)
	start := time.Unix(1_700_000_000, 0)

	for i := range 5 {
		mc.RecordBlock(uint64(i), start.Add(time.Duration(i)*2*time.Second))
	}

	m := mc.GetMetrics()
	if m.WindowBlocks != 3 {
		t.Errorf("expected window of 3, got %d", m.WindowBlocks)
	}
	if m.AverageBlockTime != 2*time.Second {
		t.Errorf("expected 2s average block time, got %v", m.AverageBlockTime)
	}
	if m.BlocksPerSecond != 0.5 {
		t.Errorf("expected 0.5 blocks/sec, got %v", m.BlocksPerSecond)
	}

	mc.Reset()
	if mc.GetMetrics().WindowBlocks != 0 {
		t.Error("expected empty window after reset")
	}
}
