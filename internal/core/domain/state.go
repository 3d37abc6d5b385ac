package domain

import "time"

// SeenEntry is one dedup ledger record.
type SeenEntry struct {
	Key    string    `json:"key"`
	SeenAt time.Time `json:"seen_at"`
}

// State is the single persisted blob. Cursor and ledger travel together so a
// crash can never separate them.
type State struct {
	Wallets   []WatchedWallet   `json:"wallets"`
	Seen      []SeenEntry       `json:"processed_txs"`
	Cursor    *uint64           `json:"last_block,omitempty"`
	Balances  []BalanceSnapshot `json:"balances,omitempty"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// NewState returns an empty state.
func NewState() *State {
	return &State{
		Wallets: []WatchedWallet{},
		Seen:    []SeenEntry{},
	}
}
