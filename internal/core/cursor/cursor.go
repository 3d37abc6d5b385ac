// Package cursor tracks how far the scanner has safely processed the chain.
//
// # Purpose
//
// The cursor is the scanner's bookmark: the highest block height that was
// fully processed and is at least `confirmations` blocks below the chain head.
// Everything above it is picked up on the next tick.
//
// # Key Features
//
// Monotonic - Advance never moves backwards. Re-advancing to the current
// height is a no-op so a replayed block is harmless.
//
// Gap Detection - Advance(1005) while the cursor is at 1000 returns
// ErrBlockGap so blocks 1001-1004 cannot be silently skipped.
//
// Safe Head Bound - Advance refuses heights above head - confirmations.
//
// Throttled Persistence - NeedsPersist reports when enough blocks passed
// since the last checkpoint. The cursor itself never writes to storage; the
// caller saves it together with the dedup ledger.
//
// # Quick Start
//
//	manager := cursor.NewManager(20)
//	manager.Initialize(1000)
//
//	manager.Advance(1001, safeHead) // ✓ OK
//	manager.Advance(1005, safeHead) // ✗ ErrBlockGap
//
//	if manager.NeedsPersist() {
//	    save(state)
//	    manager.MarkPersisted(manager.Current())
//	}
//
// # Package Structure
//
//   - manager.go - Manager with gap detection and persistence throttle
//   - metrics.go - Throughput metrics (blocks/sec)
package cursor

import "time"

// SafeHead returns head - confirmations, floored at zero.
func SafeHead(head, confirmations uint64) uint64 {
	if head < confirmations {
		return 0
	}
	return head - confirmations
}

// NewManager creates a cursor manager that asks for a checkpoint every
// persistEvery blocks. Zero means every block.
func NewManager(persistEvery uint64) *Manager {
	if persistEvery == 0 {
		persistEvery = 1
	}
	return &Manager{
		persistEvery: persistEvery,
		collector:    NewMetricsCollector(100),
	}
}

// NewMetricsCollector creates a new metrics collector with the given window size.
func NewMetricsCollector(windowSize int) *MetricsCollector {
	if windowSize <= 0 {
		windowSize = 100
	}
	return &MetricsCollector{
		windowSize: windowSize,
		times:      make([]time.Time, 0, windowSize),
	}
}
