package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BlocksProcessed tracks total blocks scanned per chain
	BlocksProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watcher_blocks_processed_total",
			Help: "Total number of blocks processed",
		},
		[]string{"chain"},
	)

	// EventsDetected tracks transfer events that passed the dedup ledger
	EventsDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watcher_events_detected_total",
			Help: "Total number of balance change events detected",
		},
		[]string{"chain", "source", "symbol"},
	)

	// EventsDuplicate tracks events dropped because they were already seen
	EventsDuplicate = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watcher_events_duplicate_total",
			Help: "Total number of events suppressed by the dedup ledger",
		},
		[]string{"chain", "source"},
	)

	// DeliveryFailures tracks events a sink failed to deliver
	DeliveryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watcher_delivery_failures_total",
			Help: "Total number of failed event deliveries",
		},
		[]string{"sink"},
	)

	// ScanErrors tracks aborted scan batches
	ScanErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watcher_scan_errors_total",
			Help: "Total number of aborted scan batches",
		},
		[]string{"chain"},
	)

	// ReceiptsSkipped counts transactions dropped for an unusable receipt
	ReceiptsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watcher_receipts_skipped_total",
			Help: "Total number of transactions skipped because their receipt could not be decoded",
		},
		[]string{"chain"},
	)

	// PollErrors tracks failed balance reads
	PollErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watcher_poll_errors_total",
			Help: "Total number of failed balance reads",
		},
		[]string{"chain", "symbol"},
	)

	// RPCCallsTotal tracks RPC calls per chain and method
	RPCCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watcher_rpc_calls_total",
			Help: "Total number of RPC calls",
		},
		[]string{"chain", "method"},
	)

	// RPCErrorsTotal tracks RPC errors per chain and method
	RPCErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watcher_rpc_errors_total",
			Help: "Total number of RPC errors",
		},
		[]string{"chain", "method", "error_type"},
	)

	// RPCLatency tracks RPC call latency
	RPCLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "watcher_rpc_latency_seconds",
			Help:    "RPC call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"chain", "method"},
	)

	// ChainLatestBlock tracks the latest block height of the chain
	ChainLatestBlock = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "watcher_chain_latest_block",
			Help: "Latest block height of the chain",
		},
		[]string{"chain"},
	)

	// IndexerLatestBlock tracks the cursor position
	IndexerLatestBlock = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "watcher_indexer_latest_block",
			Help: "Latest block height safely processed by the watcher",
		},
		[]string{"chain"},
	)

	// LedgerEntries tracks the dedup ledger size
	LedgerEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "watcher_ledger_entries",
			Help: "Number of entries in the dedup ledger",
		},
	)

	// WatchedWallets tracks the number of watched wallets
	WatchedWallets = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "watcher_watched_wallets",
			Help: "Number of watched wallets",
		},
	)

	// PriceRefreshFailures tracks failed price feed refreshes
	PriceRefreshFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "watcher_price_refresh_failures_total",
			Help: "Total number of failed price feed refreshes",
		},
	)

	// CheckpointFailures tracks failed state saves
	CheckpointFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "watcher_checkpoint_failures_total",
			Help: "Total number of failed state saves",
		},
	)

	// DBConnectionPoolUsage tracks database pool usage in percent
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "watcher_db_connection_pool_usage",
			Help: "Database connection pool usage percentage",
		},
	)
)
