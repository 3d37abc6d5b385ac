// Package explorer reads recent account history from an Etherscan-compatible
// API (BscScan, Etherscan v2).
package explorer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/vietddude/walletwatch/internal/core/domain"
)

// ErrAPI is returned when the explorer answers with status "0".
var ErrAPI = errors.New("explorer api error")

// Client queries txlist / tokentx.
type Client struct {
	client  *resty.Client
	apiKey  string
	chainID string
}

// New creates a client. chainID is sent as the v2 "chainid" parameter when set.
func New(baseURL, apiKey string, chainID domain.ChainID) *Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json").
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second)
	return &Client{client: client, apiKey: apiKey, chainID: string(chainID)}
}

type response struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

type txRecord struct {
	Hash      string `json:"hash"`
	From      string `json:"from"`
	To        string `json:"to"`
	Value     string `json:"value"`
	TimeStamp string `json:"timeStamp"`
	IsError   string `json:"isError"`
	GasUsed   string `json:"gasUsed"`
	GasPrice  string `json:"gasPrice"`
}

// nativeDecimals is the precision of gas fees.
const nativeDecimals = 18

// fee returns gasUsed * gasPrice in native units, zero when either is missing.
func (r txRecord) fee() decimal.Decimal {
	used, ok := new(big.Int).SetString(r.GasUsed, 10)
	if !ok {
		return decimal.Zero
	}
	price, ok := new(big.Int).SetString(r.GasPrice, 10)
	if !ok {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(new(big.Int).Mul(used, price), -nativeDecimals)
}

// RecentTransfers returns the latest limit transfers of asset touching
// wallet, newest first. Failed transactions are dropped.
func (c *Client) RecentTransfers(
	ctx context.Context,
	wallet string,
	asset domain.TrackedAsset,
	limit int,
) ([]domain.HistoryTx, error) {
	params := map[string]string{
		"module":  "account",
		"action":  "txlist",
		"address": wallet,
		"page":    "1",
		"offset":  strconv.Itoa(limit),
		"sort":    "desc",
	}
	if !asset.IsNative() {
		params["action"] = "tokentx"
		params["contractaddress"] = asset.Contract
	}
	if c.apiKey != "" {
		params["apikey"] = c.apiKey
	}
	if c.chainID != "" {
		params["chainid"] = c.chainID
	}

	var res response
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(&res).
		Get("")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", params["action"], err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%s: %s", params["action"], resp.Status())
	}

	if res.Status != "1" {
		// "No transactions found" is a normal empty answer.
		if strings.Contains(strings.ToLower(res.Message), "no transactions") {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %s: %s", ErrAPI, res.Message, strings.Trim(string(res.Result), `"`))
	}

	var records []txRecord
	if err := json.Unmarshal(res.Result, &records); err != nil {
		return nil, fmt.Errorf("decode %s result: %w", params["action"], err)
	}

	out := make([]domain.HistoryTx, 0, len(records))
	for _, r := range records {
		if r.IsError == "1" {
			continue
		}
		raw, ok := new(big.Int).SetString(r.Value, 10)
		if !ok {
			continue
		}
		tx := domain.HistoryTx{
			Hash:   strings.ToLower(r.Hash),
			From:   strings.ToLower(r.From),
			To:     strings.ToLower(r.To),
			Value:  asset.Scale(raw),
			Symbol: asset.Symbol,
		}
		if asset.IsNative() {
			tx.Fee = r.fee()
		}
		if ts, err := strconv.ParseInt(r.TimeStamp, 10, 64); err == nil {
			tx.Timestamp = time.Unix(ts, 0).UTC()
		}
		out = append(out, tx)
	}
	return out, nil
}
