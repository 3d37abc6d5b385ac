// Package poller detects balance changes by diffing periodic balance reads.
//
// It is the safety net behind the scanner: transfers the scanner cannot see
// (internal transactions, non-candidate txs, blocks skipped while the process
// was down) still show up as a balance delta. When the explorer history has a
// matching transaction the delta is attributed to it and deduplicated through
// the shared ledger; otherwise an anonymous event is emitted.
package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/vietddude/walletwatch/internal/core/domain"
	"github.com/vietddude/walletwatch/internal/core/ledger"
	"github.com/vietddude/walletwatch/internal/indexing/emitter"
	"github.com/vietddude/walletwatch/internal/indexing/metrics"
	"github.com/vietddude/walletwatch/internal/indexing/price"
	"github.com/vietddude/walletwatch/internal/infra/chain"
)

// WalletSource lists the currently watched wallets.
type WalletSource interface {
	List() []domain.WatchedWallet
}

// History returns the most recent transfers of asset involving wallet,
// newest first.
type History interface {
	RecentTransfers(ctx context.Context, wallet string, asset domain.TrackedAsset, limit int) ([]domain.HistoryTx, error)
}

// PriceSource returns symbol -> USD prices.
type PriceSource interface {
	Prices(ctx context.Context) map[string]float64
}

// Config holds poller settings.
type Config struct {
	ChainID       domain.ChainID
	Interval      time.Duration
	HistoryWindow int
	Concurrency   int
}

// Poller diffs balances against the last observed snapshot.
type Poller struct {
	cfg     Config
	client  chain.Client
	wallets WalletSource
	assets  []domain.TrackedAsset
	history History
	ledger  *ledger.Ledger
	prices  PriceSource
	emitter emitter.Emitter
	now     func() time.Time

	// OnChange runs after a poll that changed the snapshot table or the ledger.
	OnChange func(ctx context.Context)

	mu        sync.RWMutex
	snapshots map[string]map[string]decimal.Decimal // wallet -> symbol -> amount
}

// New creates a poller. history and prices may be nil.
func New(
	cfg Config,
	client chain.Client,
	wallets WalletSource,
	assets []domain.TrackedAsset,
	history History,
	l *ledger.Ledger,
	prices PriceSource,
	em emitter.Emitter,
) *Poller {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = 20
	}
	return &Poller{
		cfg:       cfg,
		client:    client,
		wallets:   wallets,
		assets:    assets,
		history:   history,
		ledger:    l,
		prices:    prices,
		emitter:   em,
		now:       time.Now,
		snapshots: make(map[string]map[string]decimal.Decimal),
	}
}

type reading struct {
	wallet domain.WatchedWallet
	asset  domain.TrackedAsset
	amount decimal.Decimal
	ok     bool
}

// Poll reads every wallet x asset balance once and emits an event for each
// change larger than the asset's epsilon. Read failures skip that pair and
// leave its snapshot untouched.
func (p *Poller) Poll(ctx context.Context) ([]domain.TransferEvent, error) {
	wallets := p.wallets.List()
	readings := make([]reading, 0, len(wallets)*len(p.assets))
	for _, w := range wallets {
		for _, a := range p.assets {
			readings = append(readings, reading{wallet: w, asset: a})
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)
	for i := range readings {
		r := &readings[i]
		g.Go(func() error {
			raw, err := chain.AssetBalance(gctx, p.client, r.asset, r.wallet.Address)
			if err != nil {
				metrics.PollErrors.WithLabelValues(string(p.cfg.ChainID), r.asset.Symbol).Inc()
				slog.Warn("Balance read failed",
					"wallet", r.wallet.Key(),
					"symbol", r.asset.Symbol,
					"error", err,
				)
				return nil
			}
			r.amount = r.asset.Scale(raw)
			r.ok = true
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		events  []domain.TransferEvent
		changed bool
		prices  map[string]float64
	)
	for _, r := range readings {
		if !r.ok {
			continue
		}
		prev, known := p.swap(r.wallet.Key(), r.asset.Symbol, r.amount)
		if !known {
			changed = true
			continue // baseline
		}

		delta := r.amount.Sub(prev)
		if delta.Abs().LessThanOrEqual(epsilonOf(r.asset)) {
			continue
		}
		changed = true

		if prices == nil && p.prices != nil {
			prices = p.prices.Prices(ctx)
		}
		event, emit := p.buildEvent(ctx, r, delta, prices)
		if !emit {
			continue
		}
		p.deliver(ctx, event)
		events = append(events, event)
	}

	if changed && p.OnChange != nil {
		p.OnChange(ctx)
	}
	return events, nil
}

func (p *Poller) buildEvent(
	ctx context.Context,
	r reading,
	delta decimal.Decimal,
	prices map[string]float64,
) (domain.TransferEvent, bool) {
	direction := domain.DirectionIn
	if delta.IsNegative() {
		direction = domain.DirectionOut
	}
	amount := delta.Abs()

	event := domain.TransferEvent{
		ID:         uuid.NewString(),
		Symbol:     r.asset.Symbol,
		Amount:     amount,
		Direction:  direction,
		Wallet:     r.wallet.Key(),
		WalletName: r.wallet.Name,
		Balance:    decimal.NewNullDecimal(r.amount),
		USDValue:   price.USDValue(prices, r.asset.Symbol, amount),
		Source:     domain.SourcePoller,
		DetectedAt: p.now(),
	}

	tx, found := p.correlate(ctx, r, direction, amount)
	if !found {
		return event, true
	}

	if direction == domain.DirectionOut && tx.Fee.IsPositive() {
		if tx.Value.IsZero() {
			// Gas for a contract call or token send. The scanner reports the
			// transfer itself; claiming the ledger key here would hide it.
			slog.Debug("Balance change is a gas fee",
				"tx", tx.Hash,
				"wallet", event.Wallet,
				"fee", tx.Fee.String(),
			)
			return event, false
		}
		event.Amount = tx.Value
		event.USDValue = price.USDValue(prices, r.asset.Symbol, tx.Value)
	}

	event.TxHash = tx.Hash
	event.Counterparty = tx.From
	if direction == domain.DirectionOut {
		event.Counterparty = tx.To
	}

	if p.ledger != nil && p.ledger.IsSeen(event.TxHash, event.Wallet) {
		metrics.EventsDuplicate.WithLabelValues(string(p.cfg.ChainID), string(domain.SourcePoller)).Inc()
		slog.Debug("Balance change already reported",
			"tx", event.TxHash,
			"wallet", event.Wallet,
		)
		return event, false
	}
	return event, true
}

// correlate looks for a history entry with the same direction and an amount
// within epsilon of the observed delta.
func (p *Poller) correlate(
	ctx context.Context,
	r reading,
	direction domain.Direction,
	amount decimal.Decimal,
) (domain.HistoryTx, bool) {
	if p.history == nil {
		return domain.HistoryTx{}, false
	}
	txs, err := p.history.RecentTransfers(ctx, r.wallet.Address, r.asset, p.cfg.HistoryWindow)
	if err != nil {
		slog.Debug("History lookup failed", "wallet", r.wallet.Key(), "symbol", r.asset.Symbol, "error", err)
		return domain.HistoryTx{}, false
	}
	return Match(txs, r.wallet.Key(), direction, amount, epsilonOf(r.asset))
}

// Match returns the first tx that moved amount (within epsilon) in the given
// direction relative to wallet. An outgoing tx matches on its value or on
// value plus fee.
func Match(
	txs []domain.HistoryTx,
	wallet string,
	direction domain.Direction,
	amount, epsilon decimal.Decimal,
) (domain.HistoryTx, bool) {
	wallet = domain.NormalizeAddress(wallet)
	for _, tx := range txs {
		from, to := domain.NormalizeAddress(tx.From), domain.NormalizeAddress(tx.To)
		switch direction {
		case domain.DirectionIn:
			if to != wallet {
				continue
			}
		case domain.DirectionOut:
			if from != wallet {
				continue
			}
		}
		if tx.Value.Sub(amount).Abs().LessThanOrEqual(epsilon) {
			return tx, true
		}
		if direction == domain.DirectionOut && tx.Fee.IsPositive() &&
			tx.Debit().Sub(amount).Abs().LessThanOrEqual(epsilon) {
			return tx, true
		}
	}
	return domain.HistoryTx{}, false
}

func (p *Poller) deliver(ctx context.Context, event domain.TransferEvent) {
	metrics.EventsDetected.WithLabelValues(string(p.cfg.ChainID), string(domain.SourcePoller), event.Symbol).Inc()
	if p.emitter != nil {
		if err := p.emitter.Emit(ctx, event); err != nil {
			slog.Error("Failed to deliver balance change", "wallet", event.Wallet, "symbol", event.Symbol, "error", err)
		}
	}
	// Anonymous events have no key to dedup on.
	if !event.Anonymous() && p.ledger != nil {
		p.ledger.MarkSeen(event.TxHash, event.Wallet)
	}
}

// swap stores amount and returns the previous snapshot, if any.
func (p *Poller) swap(wallet, symbol string, amount decimal.Decimal) (decimal.Decimal, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	bySymbol, ok := p.snapshots[wallet]
	if !ok {
		bySymbol = make(map[string]decimal.Decimal)
		p.snapshots[wallet] = bySymbol
	}
	prev, known := bySymbol[symbol]
	bySymbol[symbol] = amount
	return prev, known
}

// Snapshots returns the last observed balances.
func (p *Poller) Snapshots() []domain.BalanceSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]domain.BalanceSnapshot, 0, len(p.snapshots)*len(p.assets))
	for wallet, bySymbol := range p.snapshots {
		for symbol, amount := range bySymbol {
			out = append(out, domain.BalanceSnapshot{Wallet: wallet, Symbol: symbol, Amount: amount})
		}
	}
	return out
}

// Restore replaces the snapshot table with persisted balances.
func (p *Poller) Restore(snapshots []domain.BalanceSnapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snapshots = make(map[string]map[string]decimal.Decimal)
	for _, s := range snapshots {
		wallet := domain.NormalizeAddress(s.Wallet)
		if p.snapshots[wallet] == nil {
			p.snapshots[wallet] = make(map[string]decimal.Decimal)
		}
		p.snapshots[wallet][s.Symbol] = s.Amount
	}
}

// Forget drops the snapshots of a wallet that is no longer watched.
func (p *Poller) Forget(wallet string) {
	p.mu.Lock()
	delete(p.snapshots, domain.NormalizeAddress(wallet))
	p.mu.Unlock()
}

// Run polls on the configured interval until ctx is cancelled. A zero
// interval disables the poller.
func (p *Poller) Run(ctx context.Context) {
	if p.cfg.Interval <= 0 {
		slog.Info("Balance poller disabled")
		return
	}

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		events, err := p.Poll(ctx)
		if err != nil && ctx.Err() == nil {
			slog.Warn("Balance poll failed", "error", err)
		} else if len(events) > 0 {
			slog.Info("Balance changes detected", "count", len(events))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func epsilonOf(a domain.TrackedAsset) decimal.Decimal {
	if a.Epsilon.IsPositive() {
		return a.Epsilon
	}
	if a.IsNative() {
		return domain.DefaultNativeEpsilon
	}
	return domain.DefaultTokenEpsilon
}
