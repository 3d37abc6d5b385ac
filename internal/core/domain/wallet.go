package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidAddress is returned when a wallet address is not a 20-byte hex address.
var ErrInvalidAddress = errors.New("invalid address")

// WatchedWallet is an address the watcher reports on.
type WatchedWallet struct {
	Address    string `json:"address"`
	Name       string `json:"name"`
	StartBlock uint64 `json:"start_block"`
}

// Key returns the normalized identity of the wallet.
func (w WatchedWallet) Key() string {
	return NormalizeAddress(w.Address)
}

// NormalizeAddress lower-cases and trims an address.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// DefaultWalletName is used when a wallet is added without a name.
func DefaultWalletName(position int) string {
	return fmt.Sprintf("Wallet %d", position)
}

// AssetBalance is one line of a balance report.
type AssetBalance struct {
	Symbol   string              `json:"symbol"`
	Amount   decimal.Decimal     `json:"amount"`
	USDValue decimal.NullDecimal `json:"usd_value"`
	Error    string              `json:"error,omitempty"`
}

// WalletBalances is the balance report of one wallet.
type WalletBalances struct {
	Wallet  WatchedWallet  `json:"wallet"`
	Assets  []AssetBalance `json:"assets"`
	Updated string         `json:"updated"`
}
