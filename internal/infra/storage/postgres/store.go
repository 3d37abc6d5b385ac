package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vietddude/walletwatch/internal/core/domain"
	"github.com/vietddude/walletwatch/internal/infra/storage"
)

// Store implements storage.Store. Save rewrites every table inside one
// transaction, so readers never observe a cursor without its ledger.
type Store struct {
	db    *DB
	owned bool
}

var _ storage.Store = (*Store)(nil)

// NewStore wraps an open, migrated database.
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

// Open connects, migrates and returns a store that owns the connection.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	db, err := NewDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, owned: true}, nil
}

// DB returns the underlying connection.
func (s *Store) DB() *DB { return s.db }

type walletRow struct {
	Address    string `db:"address"`
	Name       string `db:"name"`
	StartBlock int64  `db:"start_block"`
}

type seenRow struct {
	Key    string    `db:"key"`
	SeenAt time.Time `db:"seen_at"`
}

type balanceRow struct {
	Wallet string          `db:"wallet"`
	Symbol string          `db:"symbol"`
	Amount decimal.Decimal `db:"amount"`
}

type stateRow struct {
	LastBlock sql.NullInt64 `db:"last_block"`
	UpdatedAt time.Time     `db:"updated_at"`
}

func (s *Store) Load(ctx context.Context) (*domain.State, error) {
	var meta stateRow
	err := s.db.GetContext(ctx, &meta, `SELECT last_block, updated_at FROM watcher_state WHERE id = 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load watcher state: %w", err)
	}

	state := domain.NewState()
	state.UpdatedAt = meta.UpdatedAt
	if meta.LastBlock.Valid {
		cursor := uint64(meta.LastBlock.Int64)
		state.Cursor = &cursor
	}

	var wallets []walletRow
	if err := s.db.SelectContext(ctx, &wallets,
		`SELECT address, name, start_block FROM watched_wallets ORDER BY position`); err != nil {
		return nil, fmt.Errorf("failed to load wallets: %w", err)
	}
	for _, w := range wallets {
		state.Wallets = append(state.Wallets, domain.WatchedWallet{
			Address:    w.Address,
			Name:       w.Name,
			StartBlock: uint64(w.StartBlock),
		})
	}

	var seen []seenRow
	if err := s.db.SelectContext(ctx, &seen,
		`SELECT key, seen_at FROM processed_txs ORDER BY position`); err != nil {
		return nil, fmt.Errorf("failed to load processed txs: %w", err)
	}
	for _, e := range seen {
		state.Seen = append(state.Seen, domain.SeenEntry{Key: e.Key, SeenAt: e.SeenAt})
	}

	var balances []balanceRow
	if err := s.db.SelectContext(ctx, &balances,
		`SELECT wallet, symbol, amount FROM balance_snapshots ORDER BY wallet, symbol`); err != nil {
		return nil, fmt.Errorf("failed to load balances: %w", err)
	}
	for _, b := range balances {
		state.Balances = append(state.Balances, domain.BalanceSnapshot(b))
	}

	return state, nil
}

func (s *Store) Save(ctx context.Context, state *domain.State) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var lastBlock sql.NullInt64
	if state.Cursor != nil {
		lastBlock = sql.NullInt64{Int64: int64(*state.Cursor), Valid: true}
	}
	if _, err = tx.ExecContext(ctx, `
		INSERT INTO watcher_state (id, last_block, updated_at) VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET last_block = EXCLUDED.last_block, updated_at = EXCLUDED.updated_at`,
		lastBlock, state.UpdatedAt.UTC()); err != nil {
		return fmt.Errorf("failed to save watcher state: %w", err)
	}

	// Wallets
	addresses := make([]string, len(state.Wallets))
	names := make([]string, len(state.Wallets))
	starts := make([]int64, len(state.Wallets))
	for i, w := range state.Wallets {
		addresses[i], names[i], starts[i] = w.Key(), w.Name, int64(w.StartBlock)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM watched_wallets`); err != nil {
		return fmt.Errorf("failed to clear wallets: %w", err)
	}
	if len(addresses) > 0 {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO watched_wallets (address, name, start_block, position)
			SELECT w.address, w.name, w.start_block, w.ord
			FROM unnest($1::text[], $2::text[], $3::bigint[]) WITH ORDINALITY AS w(address, name, start_block, ord)`,
			addresses, names, starts); err != nil {
			return fmt.Errorf("failed to save wallets: %w", err)
		}
	}

	// Ledger
	keys := make([]string, len(state.Seen))
	seenAt := make([]time.Time, len(state.Seen))
	for i, e := range state.Seen {
		keys[i], seenAt[i] = e.Key, e.SeenAt.UTC()
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM processed_txs`); err != nil {
		return fmt.Errorf("failed to clear processed txs: %w", err)
	}
	if len(keys) > 0 {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO processed_txs (key, seen_at, position)
			SELECT p.key, p.seen_at, p.ord
			FROM unnest($1::text[], $2::timestamptz[]) WITH ORDINALITY AS p(key, seen_at, ord)
			ON CONFLICT (key) DO NOTHING`,
			keys, seenAt); err != nil {
			return fmt.Errorf("failed to save processed txs: %w", err)
		}
	}

	// Balances
	wallets := make([]string, len(state.Balances))
	symbols := make([]string, len(state.Balances))
	amounts := make([]string, len(state.Balances))
	for i, b := range state.Balances {
		wallets[i], symbols[i], amounts[i] = domain.NormalizeAddress(b.Wallet), b.Symbol, b.Amount.String()
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM balance_snapshots`); err != nil {
		return fmt.Errorf("failed to clear balances: %w", err)
	}
	if len(wallets) > 0 {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO balance_snapshots (wallet, symbol, amount)
			SELECT b.wallet, b.symbol, b.amount::numeric
			FROM unnest($1::text[], $2::text[], $3::text[]) AS b(wallet, symbol, amount)
			ON CONFLICT (wallet, symbol) DO UPDATE SET amount = EXCLUDED.amount`,
			wallets, symbols, amounts); err != nil {
			return fmt.Errorf("failed to save balances: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit state: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	if s.owned {
		return s.db.Close()
	}
	return nil
}
