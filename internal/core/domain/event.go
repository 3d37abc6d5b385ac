package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

type EventSource string

const (
	SourceScanner EventSource = "scanner"
	SourcePoller  EventSource = "poller"
)

// TransferEvent is a detected balance change of one wallet in one asset.
// TxHash and Counterparty are empty for poller events that could not be
// matched to a transaction.
type TransferEvent struct {
	ID           string              `json:"id"`
	TxHash       string              `json:"tx_hash,omitempty"`
	BlockNumber  uint64              `json:"block_number,omitempty"`
	Symbol       string              `json:"symbol"`
	Amount       decimal.Decimal     `json:"amount"`
	Direction    Direction           `json:"direction"`
	Counterparty string              `json:"counterparty,omitempty"`
	Wallet       string              `json:"wallet"`
	WalletName   string              `json:"wallet_name"`
	Balance      decimal.NullDecimal `json:"balance"`
	USDValue     decimal.NullDecimal `json:"usd_value"`
	Source       EventSource         `json:"source"`
	DetectedAt   time.Time           `json:"detected_at"`
}

// Anonymous reports whether the event carries no transaction reference.
func (e TransferEvent) Anonymous() bool {
	return e.TxHash == ""
}

// BalanceSnapshot is the last observed balance of a wallet in one asset.
type BalanceSnapshot struct {
	Wallet string          `json:"wallet"`
	Symbol string          `json:"symbol"`
	Amount decimal.Decimal `json:"amount"`
}

// HistoryTx is an entry of a wallet's recent transfer history.
type HistoryTx struct {
	Hash      string
	From      string
	To        string
	Value     decimal.Decimal
	Symbol    string
	Timestamp time.Time

	// Fee is the gas paid by From, in native units. Only set for native
	// history, where it is part of the sender's balance change.
	Fee decimal.Decimal
}

// Debit returns how much the sender's balance dropped.
func (tx HistoryTx) Debit() decimal.Decimal {
	return tx.Value.Add(tx.Fee)
}
