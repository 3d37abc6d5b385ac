package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/walletwatch/internal/core/domain"
	"github.com/vietddude/walletwatch/internal/infra/storage"
)

// StateStore keeps the state blob under one key and mirrors the wallet list
// and a few scalars into hashes for operators poking at redis-cli. All keys
// are written in one MULTI/EXEC.
type StateStore struct {
	rdb    *redis.Client
	prefix string
	owned  bool
}

var _ storage.Store = (*StateStore)(nil)

// NewStateStore creates a store on an existing client. Close leaves the
// client open.
func NewStateStore(client *Client, prefix string) *StateStore {
	if prefix == "" {
		prefix = "walletwatch"
	}
	return &StateStore{rdb: client.rdb, prefix: prefix}
}

// OpenStateStore dials Redis and returns a store that owns the connection.
func OpenStateStore(cfg Config) (*StateStore, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}
	s := NewStateStore(client, cfg.Prefix)
	s.owned = true
	return s, nil
}

// Key helpers
func (s *StateStore) stateKey() string   { return s.prefix + ":state" }
func (s *StateStore) walletsKey() string { return s.prefix + ":wallets" }
func (s *StateStore) metaKey() string    { return s.prefix + ":meta" }

func (s *StateStore) Load(ctx context.Context) (*domain.State, error) {
	data, err := s.rdb.Get(ctx, s.stateKey()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", s.stateKey(), err)
	}

	var state domain.State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.stateKey(), err)
	}
	return &state, nil
}

func (s *StateStore) Save(ctx context.Context, state *domain.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	wallets := make(map[string]any, len(state.Wallets))
	for _, w := range state.Wallets {
		wallets[w.Key()] = w.Name
	}
	meta := map[string]any{
		"updated_at": state.UpdatedAt.UTC().Format(time.RFC3339),
		"seen":       strconv.Itoa(len(state.Seen)),
	}
	if state.Cursor != nil {
		meta["last_block"] = strconv.FormatUint(*state.Cursor, 10)
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.stateKey(), data, 0)
		pipe.Del(ctx, s.walletsKey())
		if len(wallets) > 0 {
			pipe.HSet(ctx, s.walletsKey(), wallets)
		}
		pipe.HSet(ctx, s.metaKey(), meta)
		if state.Cursor == nil {
			pipe.HDel(ctx, s.metaKey(), "last_block")
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

func (s *StateStore) Close() error {
	if s.owned {
		return s.rdb.Close()
	}
	return nil
}
