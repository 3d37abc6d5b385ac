package domain

import "math/big"

// Transaction is the subset of a transaction the watcher needs.
// From and To are lower-case 0x hex; To is empty for contract creation.
type Transaction struct {
	Hash  string
	From  string
	To    string
	Value *big.Int
	Index int
}

type TxStatus string

const (
	TxStatusSuccess TxStatus = "success"
	TxStatusFailed  TxStatus = "failed"
)

// HasValue reports whether the transaction moves native currency.
func (t Transaction) HasValue() bool {
	return t.Value != nil && t.Value.Sign() > 0
}
