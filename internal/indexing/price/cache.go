// Package price keeps a small USD price table for the tracked assets.
package price

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vietddude/walletwatch/internal/indexing/metrics"
)

// DefaultTTL is how long a fetched price table is served before a refresh.
const DefaultTTL = 5 * time.Minute

// Feed returns USD prices keyed by feed id (e.g. "binancecoin").
type Feed interface {
	GetPrices(ctx context.Context, ids []string) (map[string]float64, error)
}

// Cache maps asset symbols to USD prices. A failed refresh keeps serving the
// previous table; an asset without a feed id is never present.
type Cache struct {
	feed  Feed
	ids   map[string]string // symbol -> feed id
	ttl   time.Duration
	now   func() time.Time
	group sync.Mutex // serialises refreshes

	mu        sync.RWMutex
	prices    map[string]float64
	fetchedAt time.Time
}

// NewCache creates a cache for the given symbol -> feed id table.
func NewCache(feed Feed, ids map[string]string, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	clean := make(map[string]string, len(ids))
	for symbol, id := range ids {
		if id != "" {
			clean[symbol] = id
		}
	}
	return &Cache{
		feed:   feed,
		ids:    clean,
		ttl:    ttl,
		now:    time.Now,
		prices: map[string]float64{},
	}
}

// Prices returns a copy of the current symbol -> USD table, refreshing it
// first when it is older than the TTL.
func (c *Cache) Prices(ctx context.Context) map[string]float64 {
	if c.stale() {
		c.refresh(ctx)
	}
	return c.snapshot()
}

// Price returns the USD price of a single symbol.
func (c *Cache) Price(ctx context.Context, symbol string) (float64, bool) {
	p, ok := c.Prices(ctx)[symbol]
	return p, ok
}

// USDValue converts amount of symbol to USD. Invalid when no price is known.
func USDValue(prices map[string]float64, symbol string, amount decimal.Decimal) decimal.NullDecimal {
	p, ok := prices[symbol]
	if !ok {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(amount.Mul(decimal.NewFromFloat(p)))
}

// FetchedAt returns when the table was last refreshed successfully.
func (c *Cache) FetchedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fetchedAt
}

func (c *Cache) stale() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fetchedAt.IsZero() || c.now().Sub(c.fetchedAt) >= c.ttl
}

func (c *Cache) refresh(ctx context.Context) {
	if len(c.ids) == 0 || c.feed == nil {
		return
	}

	c.group.Lock()
	defer c.group.Unlock()
	// Another caller may have refreshed while we waited.
	if !c.stale() {
		return
	}

	ids := make([]string, 0, len(c.ids))
	seen := make(map[string]bool, len(c.ids))
	for _, id := range c.ids {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	byID, err := c.feed.GetPrices(ctx, ids)
	if err != nil {
		metrics.PriceRefreshFailures.Inc()
		slog.Warn("Price refresh failed, serving previous prices", "error", err)
		return
	}

	prices := make(map[string]float64, len(c.ids))
	for symbol, id := range c.ids {
		if p, ok := byID[id]; ok {
			prices[symbol] = p
		}
	}

	c.mu.Lock()
	c.prices = prices
	c.fetchedAt = c.now()
	c.mu.Unlock()
}

func (c *Cache) snapshot() map[string]float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]float64, len(c.prices))
	for k, v := range c.prices {
		out[k] = v
	}
	return out
}
