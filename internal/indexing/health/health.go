// Package health provides system health monitoring and status reporting.
package health

import "time"

// SystemStatus represents the overall health state of the system or a component.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// ChainHealth contains health metrics for the watched chain.
type ChainHealth struct {
	ChainID             string       `json:"chain_id"`
	Status              SystemStatus `json:"status"`
	CursorBlock         uint64       `json:"cursor_block"`
	LatestBlock         uint64       `json:"latest_block"`
	BlockLag            uint64       `json:"block_lag"`
	ConsecutiveFailures int          `json:"consecutive_failures"`
	LastError           string       `json:"last_error,omitempty"`
	LastScan            *time.Time   `json:"last_scan,omitempty"`
	BlocksPerSecond     float64      `json:"blocks_per_second"`
}

// HealthReport contains the full system health report.
type HealthReport struct {
	SystemStatus   SystemStatus `json:"system_status"`
	Chain          ChainHealth  `json:"chain"`
	WatchedWallets int          `json:"watched_wallets"`
	LedgerEntries  int          `json:"ledger_entries"`
	CheckedAt      time.Time    `json:"checked_at"`
}
