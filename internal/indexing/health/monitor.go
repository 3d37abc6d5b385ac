package health

import (
	"context"
	"sync"
	"time"

	"github.com/vietddude/walletwatch/internal/indexing/metrics"
	"github.com/vietddude/walletwatch/internal/indexing/scanner"
	"github.com/vietddude/walletwatch/internal/indexing/throttle"
)

// StatusProvider exposes the scanner's view of the chain.
type StatusProvider interface {
	Status() scanner.Status
}

// Counter reports a size, e.g. the watch list or the ledger.
type Counter interface {
	Len() int
}

// Monitor aggregates health status from various system components.
type Monitor struct {
	scanner    StatusProvider
	head       throttle.HeadSource
	wallets    func() int
	ledger     Counter
	lastCheck  time.Time
	lastReport HealthReport
	mu         sync.Mutex
}

// NewMonitor creates a new health monitor. head may be nil, in which case the
// scanner's last observed head is used.
func NewMonitor(scanner StatusProvider, head throttle.HeadSource, wallets func() int, ledger Counter) *Monitor {
	return &Monitor{
		scanner: scanner,
		head:    head,
		wallets: wallets,
		ledger:  ledger,
	}
}

// CheckHealth builds a report, at most once every 10 seconds.
func (m *Monitor) CheckHealth(ctx context.Context) HealthReport {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Rate limit checks (e.g. max once per 10s) to avoid spamming RPC
	if time.Since(m.lastCheck) < 10*time.Second && !m.lastCheck.IsZero() {
		return m.lastReport
	}

	st := m.scanner.Status()
	health := ChainHealth{
		ChainID:             string(st.ChainID),
		Status:              StatusHealthy,
		CursorBlock:         st.CurrentBlock,
		LatestBlock:         st.LatestBlock,
		ConsecutiveFailures: st.ConsecutiveFailures,
		LastError:           st.LastError,
		BlocksPerSecond:     st.BlocksPerSecond,
	}
	if !st.LastScan.IsZero() {
		last := st.LastScan
		health.LastScan = &last
	}

	headKnown := st.LatestBlock > 0
	if m.head != nil {
		if latest, err := m.head.ChainHead(ctx); err == nil {
			health.LatestBlock = latest
			headKnown = true
		} else {
			headKnown = false
		}
	}
	if health.LatestBlock > health.CursorBlock {
		health.BlockLag = health.LatestBlock - health.CursorBlock
	}

	// Evaluate Status
	switch {
	case health.BlockLag > 100 || health.ConsecutiveFailures >= 10:
		health.Status = StatusCritical
	case !headKnown || health.BlockLag > 10 || health.ConsecutiveFailures > 0:
		health.Status = StatusDegraded
	}

	report := HealthReport{
		SystemStatus: health.Status,
		Chain:        health,
		CheckedAt:    time.Now(),
	}
	if m.wallets != nil {
		report.WatchedWallets = m.wallets()
		metrics.WatchedWallets.Set(float64(report.WatchedWallets))
	}
	if m.ledger != nil {
		report.LedgerEntries = m.ledger.Len()
		metrics.LedgerEntries.Set(float64(report.LedgerEntries))
	}

	m.lastCheck = time.Now()
	m.lastReport = report
	return report
}
