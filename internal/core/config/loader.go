package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v2"

	"github.com/vietddude/walletwatch/internal/core/domain"
)

const (
	StorageFile     = "file"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *AppConfig) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}

	ch := &c.Chain
	if ch.ChainID == "" {
		ch.ChainID = domain.ChainIDBSC
	}
	if ch.RPCURL == "" {
		ch.RPCURL = "https://bsc-dataseed.binance.org/"
	}
	if ch.ScanInterval == 0 {
		ch.ScanInterval = 15 * time.Second
	}
	if ch.MaxBatch == 0 {
		ch.MaxBatch = 5
	}
	if ch.RPCTimeout == 0 {
		ch.RPCTimeout = 10 * time.Second
	}
	if ch.CursorPersistEvery == 0 {
		ch.CursorPersistEvery = 20
	}
	if ch.ReceiptConcurrency == 0 {
		ch.ReceiptConcurrency = 4
	}
	if ch.TxURLTemplate == "" {
		ch.TxURLTemplate = "https://bscscan.com/tx/%s"
	}

	if c.Ledger.Retention == 0 {
		c.Ledger.Retention = 24 * time.Hour
	}
	if c.Ledger.HighWater == 0 {
		c.Ledger.HighWater = 10_000
	}
	if c.Ledger.PruneInterval == 0 {
		c.Ledger.PruneInterval = 10 * time.Minute
	}

	if c.Poller.HistoryWindow == 0 {
		c.Poller.HistoryWindow = 20
	}
	if c.Poller.Concurrency == 0 {
		c.Poller.Concurrency = 4
	}

	if c.Price.BaseURL == "" {
		c.Price.BaseURL = "https://api.coingecko.com/api/v3"
	}
	if c.Price.TTL == 0 {
		c.Price.TTL = 5 * time.Minute
	}

	if c.Telegram.BaseURL == "" {
		c.Telegram.BaseURL = "https://api.telegram.org"
	}

	if c.Storage.Driver == "" {
		c.Storage.Driver = StorageFile
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "data.json"
	}

	if c.Sinks.RedisStream.Stream == "" {
		c.Sinks.RedisStream.Stream = "walletwatch:events"
	}
}

// Validate checks settings that have no sensible default.
func (c *AppConfig) Validate() error {
	switch c.Storage.Driver {
	case StorageFile, StorageMemory:
	case StorageRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("storage driver %q requires redis.url", c.Storage.Driver)
		}
	case StoragePostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("storage driver %q requires database.url", c.Storage.Driver)
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	if c.Sinks.RedisStream.Enabled && c.Redis.URL == "" {
		return fmt.Errorf("redis stream sink requires redis.url")
	}

	if _, err := c.TrackedAssets(); err != nil {
		return err
	}
	return nil
}

// TrackedAssets converts the asset section into domain assets. Without any
// configured assets the BSC defaults are used.
func (c *AppConfig) TrackedAssets() ([]domain.TrackedAsset, error) {
	if len(c.Assets) == 0 {
		return domain.DefaultBSCAssets(), nil
	}

	assets := make([]domain.TrackedAsset, 0, len(c.Assets))
	natives := 0
	seen := make(map[string]bool)
	for _, a := range c.Assets {
		if a.Symbol == "" {
			return nil, fmt.Errorf("asset without symbol")
		}
		if seen[a.Symbol] {
			return nil, fmt.Errorf("duplicate asset symbol %q", a.Symbol)
		}
		seen[a.Symbol] = true

		asset := domain.TrackedAsset{
			Symbol:   a.Symbol,
			Contract: domain.NormalizeAddress(a.Contract),
			Decimals: a.Decimals,
			PriceID:  strings.TrimSpace(a.PriceID),
		}
		if asset.Decimals == 0 {
			asset.Decimals = 18
		}
		if asset.IsNative() {
			natives++
			asset.Epsilon = domain.DefaultNativeEpsilon
		} else {
			asset.Epsilon = domain.DefaultTokenEpsilon
		}
		if a.Epsilon != "" {
			eps, err := decimal.NewFromString(a.Epsilon)
			if err != nil {
				return nil, fmt.Errorf("asset %s: invalid epsilon: %w", a.Symbol, err)
			}
			asset.Epsilon = eps
		}
		assets = append(assets, asset)
	}
	if natives > 1 {
		return nil, fmt.Errorf("at most one native asset may be configured, got %d", natives)
	}
	return assets, nil
}
