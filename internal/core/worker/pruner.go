package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/vietddude/walletwatch/internal/indexing/metrics"
)

// Prunable is a store that can drop expired entries.
type Prunable interface {
	Prune() int
	Len() int
}

// Pruner drops expired dedup entries on a timer.
type Pruner struct {
	target    Prunable
	retention time.Duration
	interval  time.Duration
	onPruned  func(ctx context.Context)
}

// NewPruner creates a new Pruner worker. A zero interval is derived from the
// retention period. onPruned, if set, runs after a pass that removed entries.
func NewPruner(target Prunable, retention, interval time.Duration, onPruned func(ctx context.Context)) *Pruner {
	if interval <= 0 {
		interval = Interval(retention)
	}
	return &Pruner{
		target:    target,
		retention: retention,
		interval:  interval,
		onPruned:  onPruned,
	}
}

// Interval returns 10% of the retention period, between 1 minute and 1 hour.
func Interval(retention time.Duration) time.Duration {
	interval := min(retention/10, 1*time.Hour)
	return max(interval, 1*time.Minute)
}

// Start runs the pruner loop until ctx is done.
func (p *Pruner) Start(ctx context.Context) {
	if p.retention <= 0 {
		return // Retention disabled
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	// Initial prune
	p.Prune(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Prune(ctx)
		}
	}
}

// Prune runs a single pass and returns the number of dropped entries.
func (p *Pruner) Prune(ctx context.Context) int {
	removed := p.target.Prune()
	metrics.LedgerEntries.Set(float64(p.target.Len()))
	if removed == 0 {
		return 0
	}

	slog.Debug("[Pruner] dropped expired ledger entries", "removed", removed, "remaining", p.target.Len())
	if p.onPruned != nil {
		p.onPruned(ctx)
	}
	return removed
}
