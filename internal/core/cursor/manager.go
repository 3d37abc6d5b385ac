package cursor

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrCursorNotInitialized is returned when advancing before Initialize.
	ErrCursorNotInitialized = errors.New("cursor not initialized")

	// ErrBlockGap is returned when a gap is detected during Advance.
	ErrBlockGap = errors.New("block gap detected")

	// ErrRegress is returned when asked to move below the current height.
	ErrRegress = errors.New("cursor cannot move backwards")

	// ErrBeyondSafeHead is returned when a block is not yet confirmed.
	ErrBeyondSafeHead = errors.New("block is above the safe head")
)

// Manager holds the in-memory cursor. It is safe for concurrent use.
type Manager struct {
	mu           sync.RWMutex
	current      uint64
	initialized  bool
	persisted    uint64
	dirty        bool
	persistEvery uint64
	updatedAt    time.Time
	collector    *MetricsCollector
}

// Initialize sets the starting height, typically loaded from storage.
// The position counts as already persisted.
func (m *Manager) Initialize(height uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = height
	m.persisted = height
	m.initialized = true
	m.dirty = false
	m.updatedAt = time.Now()
}

// Get returns the current height and whether the cursor has been initialized.
func (m *Manager) Get() (uint64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current, m.initialized
}

// Current returns the current height.
func (m *Manager) Current() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Advance moves the cursor to blockNumber after that block was fully processed.
func (m *Manager) Advance(blockNumber, safeHead uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return ErrCursorNotInitialized
	}
	if blockNumber > safeHead {
		return fmt.Errorf("%w: block %d, safe head %d", ErrBeyondSafeHead, blockNumber, safeHead)
	}

	// Re-processing the current block (duplicate delivery) is fine.
	if blockNumber == m.current {
		return nil
	}
	if blockNumber < m.current {
		return fmt.Errorf("%w: at %d, got %d", ErrRegress, m.current, blockNumber)
	}
	if expected := m.current + 1; blockNumber != expected {
		return fmt.Errorf("%w: expected block %d, got %d", ErrBlockGap, expected, blockNumber)
	}

	m.current = blockNumber
	m.dirty = true
	m.updatedAt = time.Now()
	m.collector.RecordBlock(blockNumber, m.updatedAt)
	return nil
}

// NeedsPersist reports whether persistEvery blocks passed since the last
// checkpoint.
func (m *Manager) NeedsPersist() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dirty && m.current-m.persisted >= m.persistEvery
}

// Dirty reports whether the cursor moved since the last checkpoint.
func (m *Manager) Dirty() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dirty
}

// MarkPersisted records that height reached storage.
func (m *Manager) MarkPersisted(height uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.persisted = height
	m.dirty = m.current != height
}

// GetLag returns how many blocks the cursor trails the given height.
func (m *Manager) GetLag(latestBlock uint64) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(latestBlock) - int64(m.current)
}

// UpdatedAt returns when the cursor last moved.
func (m *Manager) UpdatedAt() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.updatedAt
}

// GetMetrics returns throughput metrics.
func (m *Manager) GetMetrics() Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collector.GetMetrics()
}
