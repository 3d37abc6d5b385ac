// Package control wires the watcher together and exposes the wallet commands
// used by the admin API and the CLI.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/vietddude/walletwatch/internal/core/cursor"
	"github.com/vietddude/walletwatch/internal/core/domain"
	"github.com/vietddude/walletwatch/internal/core/ledger"
	"github.com/vietddude/walletwatch/internal/indexing/filter"
	"github.com/vietddude/walletwatch/internal/indexing/metrics"
	"github.com/vietddude/walletwatch/internal/indexing/price"
	"github.com/vietddude/walletwatch/internal/infra/chain"
	"github.com/vietddude/walletwatch/internal/infra/storage"
)

// PriceSource returns symbol -> USD prices.
type PriceSource interface {
	Prices(ctx context.Context) map[string]float64
}

// SnapshotTable is the poller's last-known-balance table.
type SnapshotTable interface {
	Snapshots() []domain.BalanceSnapshot
	Restore(snapshots []domain.BalanceSnapshot)
	Forget(wallet string)
}

// Service owns the shared in-memory state. All methods are safe for
// concurrent use.
type Service struct {
	wallets   *filter.WatchList
	assets    []domain.TrackedAsset
	ledger    *ledger.Ledger
	cursor    *cursor.Manager
	store     storage.Store
	client    chain.Client // optional, needed for Balances
	prices    PriceSource  // optional
	snapshots SnapshotTable
	now       func() time.Time

	saveMu sync.Mutex
}

// NewService creates a service over the shared components. client, prices and
// snapshots may be nil.
func NewService(
	wallets *filter.WatchList,
	assets []domain.TrackedAsset,
	l *ledger.Ledger,
	c *cursor.Manager,
	store storage.Store,
	client chain.Client,
	prices PriceSource,
) *Service {
	return &Service{
		wallets: wallets,
		assets:  assets,
		ledger:  l,
		cursor:  c,
		store:   store,
		client:  client,
		prices:  prices,
		now:     time.Now,
	}
}

// SetSnapshots attaches the poller's snapshot table.
func (s *Service) SetSnapshots(t SnapshotTable) {
	s.snapshots = t
}

// AddWallet starts watching address. It returns false if the address is
// already watched. An empty name defaults to "Wallet N".
func (s *Service) AddWallet(ctx context.Context, address, name string) (domain.WatchedWallet, bool, error) {
	address = strings.TrimSpace(address)
	if !common.IsHexAddress(address) {
		return domain.WatchedWallet{}, false, fmt.Errorf("%w: %q", domain.ErrInvalidAddress, address)
	}

	name = strings.TrimSpace(name)
	if name == "" {
		name = domain.DefaultWalletName(s.wallets.Size() + 1)
	}
	w := domain.WatchedWallet{Address: address, Name: name}
	// Only blocks after the current cursor are reported for a new wallet.
	if current, ok := s.cursor.Get(); ok {
		w.StartBlock = current + 1
	}

	if !s.wallets.Add(w) {
		return domain.WatchedWallet{}, false, nil
	}
	metrics.WatchedWallets.Set(float64(s.wallets.Size()))
	w.Address = w.Key()

	slog.Info("Wallet added", "address", w.Address, "name", w.Name, "start_block", w.StartBlock)
	s.saveQuietly(ctx)
	return w, true, nil
}

// RemoveWallet stops watching the wallet at the 1-based index.
func (s *Service) RemoveWallet(ctx context.Context, index int) (bool, domain.WatchedWallet) {
	removed, ok := s.wallets.RemoveAt(index - 1)
	if !ok {
		return false, domain.WatchedWallet{}
	}
	metrics.WatchedWallets.Set(float64(s.wallets.Size()))
	if s.snapshots != nil {
		s.snapshots.Forget(removed.Address)
	}

	slog.Info("Wallet removed", "address", removed.Address, "name", removed.Name)
	s.saveQuietly(ctx)
	return true, removed
}

// ListWallets returns the watched wallets in insertion order.
func (s *Service) ListWallets() []domain.WatchedWallet {
	return s.wallets.List()
}

// Balances reads the current balance of every tracked asset for every
// watched wallet. A failed read is reported on its line, not as an error.
func (s *Service) Balances(ctx context.Context) ([]domain.WalletBalances, error) {
	if s.client == nil {
		return nil, errors.New("no chain client configured")
	}

	var prices map[string]float64
	if s.prices != nil {
		prices = s.prices.Prices(ctx)
	}

	wallets := s.wallets.List()
	out := make([]domain.WalletBalances, len(wallets))
	updated := domain.FormatUpdated(s.now())

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, w := range wallets {
		g.Go(func() error {
			report := domain.WalletBalances{
				Wallet:  w,
				Assets:  make([]domain.AssetBalance, 0, len(s.assets)),
				Updated: updated,
			}
			for _, asset := range s.assets {
				line := domain.AssetBalance{Symbol: asset.Symbol}
				raw, err := chain.AssetBalance(gctx, s.client, asset, w.Address)
				if err != nil {
					line.Error = err.Error()
					slog.Debug("Balance read failed", "wallet", w.Address, "symbol", asset.Symbol, "error", err)
				} else {
					line.Amount = asset.Scale(raw)
					line.USDValue = price.USDValue(prices, asset.Symbol, line.Amount)
				}
				report.Assets = append(report.Assets, line)
			}
			out[i] = report
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// State captures everything that must survive a restart.
func (s *Service) State() *domain.State {
	state := domain.NewState()
	state.Wallets = s.wallets.List()
	state.Seen = s.ledger.Entries()
	if current, ok := s.cursor.Get(); ok {
		state.Cursor = &current
	}
	if s.snapshots != nil {
		state.Balances = s.snapshots.Snapshots()
	}
	state.UpdatedAt = s.now().UTC()
	return state
}

// Checkpoint saves the state. The cursor and the ledger go out in the same write.
func (s *Service) Checkpoint(ctx context.Context) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	state := s.State()
	if err := s.store.Save(ctx, state); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	if state.Cursor != nil {
		s.cursor.MarkPersisted(*state.Cursor)
	}
	metrics.LedgerEntries.Set(float64(len(state.Seen)))
	return nil
}

// Restore loads a saved state into memory.
func (s *Service) Restore(state *domain.State) {
	s.wallets.Replace(state.Wallets)
	s.ledger.Restore(state.Seen)
	if state.Cursor != nil {
		s.cursor.Initialize(*state.Cursor)
	}
	if s.snapshots != nil {
		s.snapshots.Restore(state.Balances)
	}
	metrics.WatchedWallets.Set(float64(s.wallets.Size()))
	metrics.LedgerEntries.Set(float64(s.ledger.Len()))
}

// Persistence failures leave memory authoritative.
func (s *Service) saveQuietly(ctx context.Context) {
	if err := s.Checkpoint(ctx); err != nil {
		metrics.CheckpointFailures.Inc()
		slog.Warn("Checkpoint failed", "error", err)
	}
}
