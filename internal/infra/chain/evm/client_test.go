package evm

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/walletwatch/internal/core/domain"
	"github.com/vietddude/walletwatch/internal/infra/chain"
)

type rpcRequest struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Params []any           `json:"params"`
}

// newNode serves canned JSON-RPC results keyed by method name.
func newNode(t *testing.T, results map[string]string) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		result, ok := results[req.Method]
		if !ok {
			result = "null"
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":` + string(req.ID) + `,"result":` + result + `}`))
	}))
	t.Cleanup(srv.Close)

	rc, err := rpc.DialContext(context.Background(), srv.URL)
	require.NoError(t, err)
	t.Cleanup(rc.Close)
	return NewClient(rc)
}

func TestClient_ChainHead(t *testing.T) {
	c := newNode(t, map[string]string{"eth_blockNumber": `"0x12d687"`})

	head, err := c.ChainHead(context.Background())

	require.NoError(t, err)
	assert.EqualValues(t, 1234567, head)
}

func TestClient_GetBlock(t *testing.T) {
	c := newNode(t, map[string]string{
		"eth_getBlockByNumber": `{
			"number": "0x65",
			"hash": "0x00000000000000000000000000000000000000000000000000000000000000aa",
			"parentHash": "0x00000000000000000000000000000000000000000000000000000000000000bb",
			"timestamp": "0x5f5e100",
			"transactions": [
				{
					"hash": "0x00000000000000000000000000000000000000000000000000000000000000c1",
					"from": "0xBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB",
					"to": "0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA",
					"value": "0x14d1120d7b160000",
					"transactionIndex": "0x0"
				},
				{
					"hash": "0x00000000000000000000000000000000000000000000000000000000000000c2",
					"from": "0xBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB",
					"to": null,
					"value": "0x0",
					"transactionIndex": "0x1"
				}
			]
		}`,
	})

	block, err := c.GetBlock(context.Background(), 101, true)

	require.NoError(t, err)
	assert.EqualValues(t, 101, block.Number)
	require.Len(t, block.Transactions, 2)

	tx := block.Transactions[0]
	assert.Equal(t, "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb", tx.From)
	assert.Equal(t, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", tx.To)
	want, _ := new(big.Int).SetString("1500000000000000000", 10)
	assert.Equal(t, 0, tx.Value.Cmp(want))

	assert.Empty(t, block.Transactions[1].To, "contract creation has no recipient")
	assert.False(t, block.Transactions[1].HasValue())
}

func TestClient_GetBlockNotFound(t *testing.T) {
	c := newNode(t, map[string]string{})

	_, err := c.GetBlock(context.Background(), 999, true)

	assert.ErrorIs(t, err, chain.ErrNotFound)
}

func TestClient_GetTransactionReceipt(t *testing.T) {
	c := newNode(t, map[string]string{
		"eth_getTransactionReceipt": `{
			"transactionHash": "0x00000000000000000000000000000000000000000000000000000000000000c1",
			"transactionIndex": "0x0",
			"blockHash": "0x00000000000000000000000000000000000000000000000000000000000000aa",
			"blockNumber": "0x65",
			"cumulativeGasUsed": "0x5208",
			"gasUsed": "0x5208",
			"effectiveGasPrice": "0x1",
			"contractAddress": null,
			"logsBloom": "0x` + zeros(512) + `",
			"type": "0x0",
			"status": "0x0",
			"logs": [{
				"address": "0x55D398326f99059fF775485246999027B3197955",
				"topics": ["0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"],
				"data": "0x01",
				"blockNumber": "0x65",
				"transactionHash": "0x00000000000000000000000000000000000000000000000000000000000000c1",
				"transactionIndex": "0x0",
				"blockHash": "0x00000000000000000000000000000000000000000000000000000000000000aa",
				"logIndex": "0x3",
				"removed": false
			}]
		}`,
	})

	receipt, err := c.GetTransactionReceipt(context.Background(),
		"0x00000000000000000000000000000000000000000000000000000000000000c1")

	require.NoError(t, err)
	assert.Equal(t, domain.TxStatusFailed, receipt.Status)
	require.Len(t, receipt.Logs, 1)
	assert.Equal(t, "0x55d398326f99059ff775485246999027b3197955", receipt.Logs[0].Address)
	assert.EqualValues(t, 3, receipt.Logs[0].Index)
	assert.Equal(t, []byte{0x01}, receipt.Logs[0].Data)
}

func TestClient_GetTransactionReceipt_Malformed(t *testing.T) {
	c := newNode(t, map[string]string{
		"eth_getTransactionReceipt": `{"status": "0x1"}`,
	})

	_, err := c.GetTransactionReceipt(context.Background(),
		"0x00000000000000000000000000000000000000000000000000000000000000c2")

	require.ErrorIs(t, err, chain.ErrMalformed)
	assert.Equal(t, chain.ActionFatal, chain.ClassifyError(err))
}

func TestClient_BalanceAndCall(t *testing.T) {
	c := newNode(t, map[string]string{
		"eth_getBalance": `"0xde0b6b3a7640000"`,
		"eth_call":       `"0x00000000000000000000000000000000000000000000000000000000000003e8"`,
	})
	ctx := context.Background()

	bal, err := c.GetBalance(ctx, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	require.NoError(t, err)
	assert.Equal(t, "1000000000000000000", bal.String())

	tokenBal, err := chain.TokenBalance(ctx, c,
		"0x55d398326f99059ff775485246999027b3197955", "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	require.NoError(t, err)
	assert.EqualValues(t, 1000, tokenBal.Int64())
}

func zeros(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = '0'
	}
	return string(b)
}
