// Package scanner walks confirmed blocks and turns watched-wallet activity
// into delivered notifications.
//
// Each tick scans at most MaxBatch blocks above the cursor and never past
// head - confirmations. A block counts as processed only once its events
// went through the ledger and the emitter; only then does the cursor move.
// An RPC failure aborts the batch, leaving the cursor on the last complete
// block, so the next tick picks up exactly where this one stopped. A
// transaction whose receipt can never be decoded is skipped instead, so one
// bad receipt cannot pin the cursor.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/vietddude/walletwatch/internal/core/cursor"
	"github.com/vietddude/walletwatch/internal/core/domain"
	"github.com/vietddude/walletwatch/internal/core/ledger"
	"github.com/vietddude/walletwatch/internal/indexing/emitter"
	"github.com/vietddude/walletwatch/internal/indexing/extractor"
	"github.com/vietddude/walletwatch/internal/indexing/filter"
	"github.com/vietddude/walletwatch/internal/indexing/metrics"
	"github.com/vietddude/walletwatch/internal/indexing/price"
	"github.com/vietddude/walletwatch/internal/indexing/recovery"
	"github.com/vietddude/walletwatch/internal/indexing/throttle"
	"github.com/vietddude/walletwatch/internal/infra/chain"
)

// Checkpointer persists the cursor together with the ledger.
type Checkpointer interface {
	Checkpoint(ctx context.Context) error
}

// PriceSource returns symbol -> USD prices.
type PriceSource interface {
	Prices(ctx context.Context) map[string]float64
}

// Config holds scanner configuration
type Config struct {
	ChainID            domain.ChainID
	Client             chain.Client
	Head               throttle.HeadSource // defaults to Client
	Wallets            *filter.WatchList
	Assets             *filter.AssetSet
	Ledger             *ledger.Ledger
	Cursor             *cursor.Manager
	Prices             PriceSource // optional
	Emitter            emitter.Emitter
	Checkpointer       Checkpointer // optional
	Backoff            recovery.RetryStrategy
	Confirmations      uint64
	MaxBatch           uint64
	ScanInterval       time.Duration
	StartBlock         uint64 // 0 = start at the current safe head
	ReceiptConcurrency int
}

// Result describes one Advance call.
type Result struct {
	Head     uint64
	SafeHead uint64
	From     uint64 // first block scanned, 0 when nothing was scanned
	To       uint64 // last block fully processed
	Events   int    // events delivered
}

// Scanned reports whether any block was processed.
func (r Result) Scanned() bool { return r.From != 0 && r.To >= r.From }

// Status is a point-in-time view for the health endpoints.
type Status struct {
	ChainID             domain.ChainID
	CurrentBlock        uint64
	LatestBlock         uint64
	Lag                 int64
	Running             bool
	BlocksPerSecond     float64
	ConsecutiveFailures int
	LastError           string
	LastScan            time.Time
}

// Scanner is the block scanning loop.
type Scanner struct {
	cfg     Config
	head    throttle.HeadSource
	tracker *recovery.Tracker
	now     func() time.Time

	running  atomic.Bool
	mu       sync.Mutex // serialises Advance
	lastScan atomic.Int64
	latest   atomic.Uint64
}

// New creates a scanner.
func New(cfg Config) *Scanner {
	if cfg.MaxBatch == 0 {
		cfg.MaxBatch = 5
	}
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = 15 * time.Second
	}
	if cfg.ReceiptConcurrency <= 0 {
		cfg.ReceiptConcurrency = 4
	}
	if cfg.Backoff == nil {
		cfg.Backoff = recovery.DefaultBackoff(chain.Classify)
	}
	head := cfg.Head
	if head == nil {
		head = cfg.Client
	}
	return &Scanner{
		cfg:     cfg,
		head:    head,
		tracker: recovery.NewTracker(cfg.Backoff),
		now:     time.Now,
	}
}

// Advance runs one scan tick.
func (s *Scanner) Advance(ctx context.Context) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chainLabel := string(s.cfg.ChainID)

	head, err := s.head.ChainHead(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("get chain head: %w", err)
	}
	s.latest.Store(head)
	metrics.ChainLatestBlock.WithLabelValues(chainLabel).Set(float64(head))

	safeHead := cursor.SafeHead(head, s.cfg.Confirmations)
	res := Result{Head: head, SafeHead: safeHead}

	current, ok := s.cfg.Cursor.Get()
	if !ok {
		current = safeHead
		if s.cfg.StartBlock > 0 {
			current = s.cfg.StartBlock - 1
		}
		s.cfg.Cursor.Initialize(current)
		slog.Info("Cursor initialized", "chain", chainLabel, "block", current, "safe_head", safeHead)
		s.persist(ctx)
	}
	res.To = current

	if safeHead <= current {
		return res, nil
	}

	to := min(safeHead, current+s.cfg.MaxBatch)
	for height := current + 1; height <= to; height++ {
		delivered, recorded, err := s.processBlock(ctx, height)
		res.Events += delivered
		if err != nil {
			return res, fmt.Errorf("block %d: %w", height, err)
		}

		if err := s.cfg.Cursor.Advance(height, safeHead); err != nil {
			return res, err
		}
		if res.From == 0 {
			res.From = height
		}
		res.To = height

		metrics.BlocksProcessed.WithLabelValues(chainLabel).Inc()
		metrics.IndexerLatestBlock.WithLabelValues(chainLabel).Set(float64(height))

		if recorded > 0 || s.cfg.Cursor.NeedsPersist() {
			s.persist(ctx)
		}
	}

	s.lastScan.Store(s.now().Unix())
	return res, nil
}

// processBlock extracts and delivers the events of one block. It returns the
// number of delivered events and of new ledger entries.
func (s *Scanner) processBlock(ctx context.Context, height uint64) (int, int, error) {
	block, err := s.cfg.Client.GetBlock(ctx, height, true)
	if err != nil {
		if errors.Is(err, chain.ErrNotFound) {
			// The head we were handed is ahead of the node serving blocks.
			if inv, ok := s.head.(invalidator); ok {
				inv.Invalidate()
			}
		}
		return 0, 0, err
	}

	// Snapshot per block so wallet edits mid-batch apply from the next block.
	wallets := s.cfg.Wallets.ActiveAt(height)
	if len(wallets) == 0 {
		return 0, 0, nil
	}

	receipts, skipped, err := s.fetchReceipts(ctx, extractor.Candidates(block, wallets, s.cfg.Assets))
	if err != nil {
		return 0, 0, err
	}
	if len(skipped) > 0 {
		block = withoutTxs(block, skipped)
	}

	events := extractor.Extract(block, receipts, wallets, s.cfg.Assets)
	if len(events) == 0 {
		return 0, 0, nil
	}

	var (
		prices    map[string]float64
		delivered int
		recorded  int
	)
	chainLabel := string(s.cfg.ChainID)
	for _, event := range events {
		if s.cfg.Ledger.IsSeen(event.TxHash, event.Wallet) {
			metrics.EventsDuplicate.WithLabelValues(chainLabel, string(domain.SourceScanner)).Inc()
			slog.Debug("Skipping already notified transfer", "tx", event.TxHash, "wallet", event.Wallet)
			continue
		}

		if prices == nil && s.cfg.Prices != nil {
			prices = s.cfg.Prices.Prices(ctx)
		}
		event.ID = uuid.NewString()
		event.DetectedAt = s.now()
		event.USDValue = price.USDValue(prices, event.Symbol, event.Amount)

		metrics.EventsDetected.WithLabelValues(chainLabel, string(domain.SourceScanner), event.Symbol).Inc()
		if err := s.cfg.Emitter.Emit(ctx, event); err != nil {
			slog.Error("Failed to deliver transfer",
				"tx", event.TxHash,
				"wallet", event.Wallet,
				"symbol", event.Symbol,
				"error", err,
			)
		} else {
			delivered++
		}

		// Marked even when delivery failed.
		if s.cfg.Ledger.MarkSeen(event.TxHash, event.Wallet) {
			recorded++
		}
	}

	metrics.LedgerEntries.Set(float64(s.cfg.Ledger.Len()))
	slog.Info("Transfers detected", "block", height, "events", len(events), "delivered", delivered)
	return delivered, recorded, nil
}

// fetchReceipts fetches the receipts of the candidate transactions. A receipt
// that is missing or unreachable aborts the block. A receipt the node can
// never return in a usable form is skipped; its hash comes back in skipped.
func (s *Scanner) fetchReceipts(ctx context.Context, hashes []string) (map[string]*domain.Receipt, map[string]bool, error) {
	receipts := make(map[string]*domain.Receipt, len(hashes))
	skipped := make(map[string]bool)
	if len(hashes) == 0 {
		return receipts, skipped, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.ReceiptConcurrency)
	for _, hash := range hashes {
		g.Go(func() error {
			receipt, err := s.cfg.Client.GetTransactionReceipt(gctx, hash)
			if err != nil {
				if !skippableReceiptError(err) {
					return fmt.Errorf("receipt %s: %w", hash, err)
				}
				metrics.ReceiptsSkipped.WithLabelValues(string(s.cfg.ChainID)).Inc()
				slog.Warn("Skipping transaction with unusable receipt", "tx", hash, "error", err)
				mu.Lock()
				skipped[hash] = true
				mu.Unlock()
				return nil
			}
			mu.Lock()
			receipts[hash] = receipt
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return receipts, skipped, nil
}

// skippableReceiptError reports whether retrying the receipt can never help.
// Not-found means the node lags and is retried with the block.
func skippableReceiptError(err error) bool {
	if errors.Is(err, chain.ErrNotFound) {
		return false
	}
	return chain.ClassifyError(err) == chain.ActionFatal
}

// withoutTxs returns a copy of block without the given transactions, so a
// transaction whose outcome is unknown yields no event at all.
func withoutTxs(block *domain.Block, drop map[string]bool) *domain.Block {
	out := *block
	out.Transactions = make([]domain.Transaction, 0, len(block.Transactions))
	for _, tx := range block.Transactions {
		if !drop[tx.Hash] {
			out.Transactions = append(out.Transactions, tx)
		}
	}
	return &out
}

type invalidator interface {
	Invalidate()
}

// persist writes a checkpoint. Failures are logged; memory stays authoritative
// and the next trigger retries.
func (s *Scanner) persist(ctx context.Context) {
	if s.cfg.Checkpointer == nil {
		return
	}
	height := s.cfg.Cursor.Current()
	if err := s.cfg.Checkpointer.Checkpoint(ctx); err != nil {
		metrics.CheckpointFailures.Inc()
		slog.Warn("Checkpoint failed", "block", height, "error", err)
		return
	}
	s.cfg.Cursor.MarkPersisted(height)
}

// Run scans on every tick until ctx is cancelled. Ticks never overlap.
func (s *Scanner) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return errors.New("scanner already running")
	}
	defer s.running.Store(false)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}

		wait := s.cfg.ScanInterval
		res, err := s.Advance(ctx)
		switch {
		case err != nil && ctx.Err() != nil:
			return nil
		case err != nil:
			metrics.ScanErrors.WithLabelValues(string(s.cfg.ChainID)).Inc()
			if delay := s.tracker.Failure(err); delay > wait {
				wait = delay
			}
			slog.Warn("Scan tick failed",
				"chain", s.cfg.ChainID,
				"cursor", s.cfg.Cursor.Current(),
				"failures", s.tracker.Failures(),
				"retry_in", wait,
				"error", err,
			)
		default:
			s.tracker.Success()
			if res.Scanned() {
				slog.Debug("Scanned blocks",
					"from", res.From,
					"to", res.To,
					"safe_head", res.SafeHead,
					"events", res.Events,
				)
			}
		}

		timer.Reset(wait)
	}
}

// Status returns the scanner's current view.
func (s *Scanner) Status() Status {
	current := s.cfg.Cursor.Current()
	latest := s.latest.Load()
	st := Status{
		ChainID:             s.cfg.ChainID,
		CurrentBlock:        current,
		LatestBlock:         latest,
		Running:             s.running.Load(),
		BlocksPerSecond:     s.cfg.Cursor.GetMetrics().BlocksPerSecond,
		ConsecutiveFailures: s.tracker.Failures(),
	}
	if latest > 0 {
		st.Lag = s.cfg.Cursor.GetLag(latest)
	}
	if err := s.tracker.LastError(); err != nil {
		st.LastError = err.Error()
	}
	if ts := s.lastScan.Load(); ts > 0 {
		st.LastScan = time.Unix(ts, 0)
	}
	return st
}
