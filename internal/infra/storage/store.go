// Package storage persists the watcher state blob: wallets, dedup ledger,
// cursor and balance snapshots. Every backend writes the blob atomically so
// the cursor and the ledger can never disagree after a crash.
package storage

import (
	"context"
	"errors"

	"github.com/vietddude/walletwatch/internal/core/domain"
)

// ErrNotFound is returned by Load when nothing was saved yet.
var ErrNotFound = errors.New("state not found")

// Store loads and saves the whole state.
type Store interface {
	// Load returns the saved state or ErrNotFound.
	Load(ctx context.Context) (*domain.State, error)

	// Save replaces the saved state.
	Save(ctx context.Context, state *domain.State) error

	// Close releases the backend.
	Close() error
}

// LoadOrNew returns the saved state, or an empty one on first run.
func LoadOrNew(ctx context.Context, s Store) (*domain.State, error) {
	state, err := s.Load(ctx)
	if errors.Is(err, ErrNotFound) {
		return domain.NewState(), nil
	}
	if err != nil {
		return nil, err
	}
	if state.Wallets == nil {
		state.Wallets = []domain.WatchedWallet{}
	}
	if state.Seen == nil {
		state.Seen = []domain.SeenEntry{}
	}
	return state, nil
}
