// Package coingecko is a minimal client for the CoinGecko simple price API.
package coingecko

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Client fetches USD prices.
type Client struct {
	client *resty.Client
}

// New creates a client. apiKey is optional (demo keys use x-cg-demo-api-key).
func New(baseURL, apiKey string) *Client {
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Accept", "application/json").
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(2 * time.Second).
		SetRetryMaxWaitTime(10 * time.Second)
	if apiKey != "" {
		client.SetHeader("x-cg-demo-api-key", apiKey)
	}
	return &Client{client: client}
}

// GetPrices returns id -> USD price. Ids missing from the response are absent.
func (c *Client) GetPrices(ctx context.Context, ids []string) (map[string]float64, error) {
	if len(ids) == 0 {
		return map[string]float64{}, nil
	}
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)

	var res map[string]map[string]float64
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("ids", strings.Join(sorted, ",")).
		SetQueryParam("vs_currencies", "usd").
		SetResult(&res).
		Get("/simple/price")
	if err != nil {
		return nil, fmt.Errorf("simple/price: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("simple/price: %s", resp.Status())
	}

	prices := make(map[string]float64, len(res))
	for id, quote := range res {
		if usd, ok := quote["usd"]; ok {
			prices[id] = usd
		}
	}
	return prices, nil
}
