// Package extractor turns a block and its receipts into transfer events for
// the watched wallets. Everything here is pure; fetching is the scanner's job.
package extractor

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"

	"github.com/vietddude/walletwatch/internal/core/domain"
	"github.com/vietddude/walletwatch/internal/indexing/filter"
)

// TransferTopic is keccak256("Transfer(address,address,uint256)").
var TransferTopic = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)")).Hex()

// Wallets is a per-block snapshot of watched wallets keyed by lower-case address.
type Wallets = map[string]domain.WatchedWallet

// Candidates returns the hashes of transactions whose receipt must be fetched:
// calls into a tracked token contract, and value transfers touching a wallet.
func Candidates(block *domain.Block, wallets Wallets, assets *filter.AssetSet) []string {
	if block == nil {
		return nil
	}
	var hashes []string
	for _, tx := range block.Transactions {
		if needsReceipt(tx, wallets, assets) {
			hashes = append(hashes, tx.Hash)
		}
	}
	return hashes
}

func needsReceipt(tx domain.Transaction, wallets Wallets, assets *filter.AssetSet) bool {
	if tx.To != "" && assets.Contains(tx.To) {
		return true
	}
	if !tx.HasValue() {
		return false
	}
	_, fromWatched := wallets[tx.From]
	_, toWatched := wallets[tx.To]
	return fromWatched || toWatched
}

// Extract finds native and token transfers for the watched wallets.
//
// A transaction yields at most one event per wallet. The native path runs
// first, so a transaction that both sends value and emits a tracked Transfer
// for the same wallet reports the native movement. Receipts with a failed
// status suppress the whole transaction. A missing receipt is treated as
// success for the native path and skips the token path.
func Extract(
	block *domain.Block,
	receipts map[string]*domain.Receipt,
	wallets Wallets,
	assets *filter.AssetSet,
) []domain.TransferEvent {
	if block == nil || len(wallets) == 0 {
		return nil
	}

	native, hasNative := assets.Native()
	var events []domain.TransferEvent

	for _, tx := range block.Transactions {
		receipt := receipts[tx.Hash]
		if receipt != nil && receipt.Status == domain.TxStatusFailed {
			continue
		}

		emitted := make(map[string]bool, 2)
		if hasNative && tx.HasValue() {
			amount := native.Scale(tx.Value)
			events = appendMatches(events, emitted, wallets, block.Number, tx.Hash,
				native.Symbol, amount, tx.From, tx.To)
		}

		if receipt == nil {
			continue
		}
		for _, lg := range receipt.Logs {
			// Cheap membership check before any decoding.
			asset, ok := assets.ByContract(lg.Address)
			if !ok {
				continue
			}
			from, to, value, ok := DecodeTransfer(lg)
			if !ok || value.Sign() == 0 {
				continue
			}
			events = appendMatches(events, emitted, wallets, block.Number, tx.Hash,
				asset.Symbol, asset.Scale(value), from, to)
		}
	}

	return events
}

// appendMatches emits IN for a watched recipient and OUT for a watched
// sender. A self-transfer reports IN only.
func appendMatches(
	events []domain.TransferEvent,
	emitted map[string]bool,
	wallets Wallets,
	blockNumber uint64,
	txHash, symbol string,
	amount decimal.Decimal,
	from, to string,
) []domain.TransferEvent {
	if w, ok := wallets[to]; ok && !emitted[to] {
		emitted[to] = true
		events = append(events, newEvent(w, blockNumber, txHash, symbol, amount,
			domain.DirectionIn, from))
	}
	if w, ok := wallets[from]; ok && !emitted[from] {
		emitted[from] = true
		events = append(events, newEvent(w, blockNumber, txHash, symbol, amount,
			domain.DirectionOut, to))
	}
	return events
}

func newEvent(
	w domain.WatchedWallet,
	blockNumber uint64,
	txHash, symbol string,
	amount decimal.Decimal,
	direction domain.Direction,
	counterparty string,
) domain.TransferEvent {
	return domain.TransferEvent{
		TxHash:       txHash,
		BlockNumber:  blockNumber,
		Symbol:       symbol,
		Amount:       amount,
		Direction:    direction,
		Counterparty: counterparty,
		Wallet:       w.Key(),
		WalletName:   w.Name,
		Source:       domain.SourceScanner,
	}
}

// DecodeTransfer parses a canonical ERC-20 Transfer log: three topics and a
// 32-byte value. Addresses are returned lower-case.
func DecodeTransfer(lg domain.Log) (from, to string, value *big.Int, ok bool) {
	if len(lg.Topics) != 3 || len(lg.Data) != 32 {
		return "", "", nil, false
	}
	if !strings.EqualFold(lg.Topics[0], TransferTopic) {
		return "", "", nil, false
	}
	from, ok = topicAddress(lg.Topics[1])
	if !ok {
		return "", "", nil, false
	}
	to, ok = topicAddress(lg.Topics[2])
	if !ok {
		return "", "", nil, false
	}
	return from, to, new(big.Int).SetBytes(lg.Data), true
}

// topicAddress takes the low 20 bytes of a 32-byte indexed topic.
func topicAddress(topic string) (string, bool) {
	if len(topic) != 2+2*common.HashLength || !strings.HasPrefix(topic, "0x") {
		return "", false
	}
	h := common.HexToHash(topic)
	addr := common.BytesToAddress(h.Bytes()[common.HashLength-common.AddressLength:])
	return strings.ToLower(addr.Hex()), true
}
