// Package evm implements chain.Client on top of go-ethereum's RPC client.
package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/vietddude/walletwatch/internal/core/domain"
	"github.com/vietddude/walletwatch/internal/infra/chain"
)

// Client talks to an EVM JSON-RPC endpoint.
type Client struct {
	rpc *rpc.Client
	eth *ethclient.Client
}

var _ chain.Client = (*Client)(nil)

// Dial connects to url (http, https, ws or ipc).
func Dial(ctx context.Context, url string) (*Client, error) {
	rc, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial rpc: %w", err)
	}
	return NewClient(rc), nil
}

// NewClient wraps an existing RPC client.
func NewClient(rc *rpc.Client) *Client {
	return &Client{rpc: rc, eth: ethclient.NewClient(rc)}
}

// Close closes the connection.
func (c *Client) Close() {
	c.rpc.Close()
}

func (c *Client) ChainHead(ctx context.Context) (uint64, error) {
	return c.eth.BlockNumber(ctx)
}

// rpcBlock is decoded by hand instead of through ethclient.BlockByNumber so
// that the sender comes straight from the node without signature recovery.
type rpcBlock struct {
	Number       hexutil.Uint64 `json:"number"`
	Hash         common.Hash    `json:"hash"`
	ParentHash   common.Hash    `json:"parentHash"`
	Timestamp    hexutil.Uint64 `json:"timestamp"`
	Transactions []rpcTx        `json:"transactions"`
}

type rpcTx struct {
	Hash             common.Hash     `json:"hash"`
	From             common.Address  `json:"from"`
	To               *common.Address `json:"to"`
	Value            *hexutil.Big    `json:"value"`
	TransactionIndex hexutil.Uint    `json:"transactionIndex"`
}

type rpcBlockHeader struct {
	Number     hexutil.Uint64 `json:"number"`
	Hash       common.Hash    `json:"hash"`
	ParentHash common.Hash    `json:"parentHash"`
	Timestamp  hexutil.Uint64 `json:"timestamp"`
}

func (c *Client) GetBlock(ctx context.Context, height uint64, withTxs bool) (*domain.Block, error) {
	number := hexutil.EncodeUint64(height)

	if !withTxs {
		var head *rpcBlockHeader
		if err := c.rpc.CallContext(ctx, &head, "eth_getBlockByNumber", number, false); err != nil {
			return nil, err
		}
		if head == nil {
			return nil, fmt.Errorf("block %d: %w", height, chain.ErrNotFound)
		}
		return &domain.Block{
			Number:     uint64(head.Number),
			Hash:       lower(head.Hash.Hex()),
			ParentHash: lower(head.ParentHash.Hex()),
			Timestamp:  uint64(head.Timestamp),
		}, nil
	}

	var raw *rpcBlock
	if err := c.rpc.CallContext(ctx, &raw, "eth_getBlockByNumber", number, true); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("block %d: %w", height, chain.ErrNotFound)
	}
	return convertBlock(raw), nil
}

func convertBlock(raw *rpcBlock) *domain.Block {
	block := &domain.Block{
		Number:       uint64(raw.Number),
		Hash:         lower(raw.Hash.Hex()),
		ParentHash:   lower(raw.ParentHash.Hex()),
		Timestamp:    uint64(raw.Timestamp),
		Transactions: make([]domain.Transaction, 0, len(raw.Transactions)),
	}
	for _, tx := range raw.Transactions {
		out := domain.Transaction{
			Hash:  lower(tx.Hash.Hex()),
			From:  lower(tx.From.Hex()),
			Value: new(big.Int),
			Index: int(tx.TransactionIndex),
		}
		if tx.To != nil {
			out.To = lower(tx.To.Hex())
		}
		if tx.Value != nil {
			out.Value = tx.Value.ToInt()
		}
		block.Transactions = append(block.Transactions, out)
	}
	return block
}

func (c *Client) GetTransactionReceipt(ctx context.Context, txHash string) (*domain.Receipt, error) {
	receipt, err := c.eth.TransactionReceipt(ctx, common.HexToHash(txHash))
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("receipt %s: %w", txHash, chain.ErrNotFound)
		}
		// Generated receipt decoders reject incomplete objects this way.
		if strings.Contains(err.Error(), "missing required field") {
			return nil, fmt.Errorf("receipt %s: %w: %v", txHash, chain.ErrMalformed, err)
		}
		return nil, err
	}
	return convertReceipt(txHash, receipt), nil
}

func convertReceipt(txHash string, receipt *types.Receipt) *domain.Receipt {
	out := &domain.Receipt{
		TxHash: lower(txHash),
		Status: domain.TxStatusSuccess,
		Logs:   make([]domain.Log, 0, len(receipt.Logs)),
	}
	if receipt.Status == types.ReceiptStatusFailed {
		out.Status = domain.TxStatusFailed
	}
	for _, lg := range receipt.Logs {
		topics := make([]string, len(lg.Topics))
		for i, t := range lg.Topics {
			topics[i] = lower(t.Hex())
		}
		out.Logs = append(out.Logs, domain.Log{
			Address: lower(lg.Address.Hex()),
			Topics:  topics,
			Data:    lg.Data,
			Index:   lg.Index,
		})
	}
	return out
}

func (c *Client) GetBalance(ctx context.Context, address string) (*big.Int, error) {
	return c.eth.BalanceAt(ctx, common.HexToAddress(address), nil)
}

func (c *Client) CallContractView(
	ctx context.Context,
	contract string,
	selector []byte,
	args ...[]byte,
) ([]byte, error) {
	data := make([]byte, 0, len(selector)+32*len(args))
	data = append(data, selector...)
	for _, a := range args {
		data = append(data, a...)
	}
	to := common.HexToAddress(contract)
	return c.eth.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
}

func lower(s string) string {
	return strings.ToLower(s)
}
