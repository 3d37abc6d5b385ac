package control

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/vietddude/walletwatch/internal/core/config"
	"github.com/vietddude/walletwatch/internal/core/cursor"
	"github.com/vietddude/walletwatch/internal/core/domain"
	"github.com/vietddude/walletwatch/internal/core/ledger"
	"github.com/vietddude/walletwatch/internal/indexing/filter"
	"github.com/vietddude/walletwatch/internal/infra/storage"
)

// storedSnapshots carries the poller table through an offline edit.
type storedSnapshots struct {
	rows []domain.BalanceSnapshot
}

func (s *storedSnapshots) Snapshots() []domain.BalanceSnapshot { return s.rows }

func (s *storedSnapshots) Restore(rows []domain.BalanceSnapshot) { s.rows = slices.Clone(rows) }

func (s *storedSnapshots) Forget(wallet string) {
	wallet = domain.NormalizeAddress(wallet)
	s.rows = slices.DeleteFunc(s.rows, func(b domain.BalanceSnapshot) bool {
		return strings.EqualFold(b.Wallet, wallet)
	})
}

// OpenOffline loads the saved state into a Service without touching the
// node, for CLI edits while the watcher is stopped. The caller closes the
// returned store.
func OpenOffline(ctx context.Context, cfg *config.AppConfig) (*Service, storage.Store, error) {
	assets, err := cfg.TrackedAssets()
	if err != nil {
		return nil, nil, err
	}
	store, err := OpenStore(ctx, cfg, nil)
	if err != nil {
		return nil, nil, err
	}
	state, err := storage.LoadOrNew(ctx, store)
	if err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("failed to load state: %w", err)
	}

	svc := NewService(
		filter.NewWatchList(),
		assets,
		ledger.New(ledger.Config{Retention: cfg.Ledger.Retention, HighWater: cfg.Ledger.HighWater}),
		cursor.NewManager(cfg.Chain.CursorPersistEvery),
		store,
		nil,
		nil,
	)
	svc.SetSnapshots(&storedSnapshots{})
	svc.Restore(state)
	return svc, store, nil
}

// SetCursor overrides the scan position. A nil height clears it, so the next
// run starts again from the safe head.
func (s *Service) SetCursor(ctx context.Context, height *uint64) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	state := s.State()
	state.Cursor = height
	if err := s.store.Save(ctx, state); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	if height != nil {
		s.cursor.Initialize(*height)
	}
	return nil
}
