// Package chain defines the RPC boundary between the watcher and the node.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vietddude/walletwatch/internal/core/domain"
)

// ErrNotFound is returned when a block or receipt does not exist (yet).
var ErrNotFound = errors.New("not found")

// ErrMalformed is returned when the node answered with data that cannot be
// decoded. Asking again returns the same data.
var ErrMalformed = errors.New("malformed response")

// BalanceOfSelector is the ERC-20 balanceOf(address) selector.
var BalanceOfSelector = []byte{0x70, 0xa0, 0x82, 0x31}

// Client is everything the watcher asks of a node. Addresses and hashes are
// 0x hex strings.
type Client interface {
	// ChainHead returns the latest block number.
	ChainHead(ctx context.Context) (uint64, error)

	// GetBlock fetches a block, with full transaction bodies when withTxs is set.
	GetBlock(ctx context.Context, height uint64, withTxs bool) (*domain.Block, error)

	// GetTransactionReceipt fetches the receipt for a mined transaction.
	GetTransactionReceipt(ctx context.Context, txHash string) (*domain.Receipt, error)

	// GetBalance returns the native balance in the smallest unit.
	GetBalance(ctx context.Context, address string) (*big.Int, error)

	// CallContractView runs a read-only call of selector with 32-byte encoded args.
	CallContractView(ctx context.Context, contract string, selector []byte, args ...[]byte) ([]byte, error)
}

// AddressArg ABI-encodes an address as a 32-byte call argument.
func AddressArg(address string) []byte {
	return common.LeftPadBytes(common.HexToAddress(address).Bytes(), 32)
}

// TokenBalance reads an ERC-20 balance via balanceOf.
func TokenBalance(ctx context.Context, c Client, token, holder string) (*big.Int, error) {
	out, err := c.CallContractView(ctx, token, BalanceOfSelector, AddressArg(holder))
	if err != nil {
		return nil, err
	}
	if len(out) < 32 {
		return nil, fmt.Errorf("balanceOf %s: short result (%d bytes)", token, len(out))
	}
	return new(big.Int).SetBytes(out[:32]), nil
}

// AssetBalance reads a wallet's balance of any tracked asset, scaled.
func AssetBalance(ctx context.Context, c Client, asset domain.TrackedAsset, wallet string) (*big.Int, error) {
	if asset.IsNative() {
		return c.GetBalance(ctx, wallet)
	}
	return TokenBalance(ctx, c, asset.Contract, wallet)
}
