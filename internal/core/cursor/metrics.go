package cursor

import (
	"time"
)

// Metrics holds cursor throughput data.
type Metrics struct {
	BlocksPerSecond  float64       `json:"blocks_per_second"`
	AverageBlockTime time.Duration `json:"average_block_time"`
	WindowBlocks     int           `json:"window_blocks"`
}

// MetricsCollector remembers when the last windowSize blocks were advanced
// over, in a ring.
type MetricsCollector struct {
	windowSize int
	times      []time.Time
	next       int // slot for the next record once the ring is full
}

// RecordBlock notes that a block was processed at processedAt.
func (mc *MetricsCollector) RecordBlock(_ uint64, processedAt time.Time) {
	if len(mc.times) < mc.windowSize {
		mc.times = append(mc.times, processedAt)
		return
	}
	mc.times[mc.next] = processedAt
	mc.next = (mc.next + 1) % mc.windowSize
}

// GetMetrics derives throughput from the oldest and newest record.
func (mc *MetricsCollector) GetMetrics() Metrics {
	n := len(mc.times)
	m := Metrics{WindowBlocks: n}
	if n < 2 {
		return m
	}

	oldest, newest := mc.times[0], mc.times[n-1]
	if n == mc.windowSize {
		oldest = mc.times[mc.next]
		newest = mc.times[(mc.next+n-1)%n]
	}

	span := newest.Sub(oldest)
	if span <= 0 {
		return m
	}
	intervals := float64(n - 1)
	m.BlocksPerSecond = intervals / span.Seconds()
	m.AverageBlockTime = time.Duration(float64(span) / intervals)
	return m
}

// Reset clears the window.
func (mc *MetricsCollector) Reset() {
	mc.times = mc.times[:0]
	mc.next = 0
}
