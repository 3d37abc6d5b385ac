package config

import (
	"time"

	"github.com/vietddude/walletwatch/internal/core/domain"
	redisclient "github.com/vietddude/walletwatch/internal/infra/redis"
	"github.com/vietddude/walletwatch/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig       `yaml:"server"`
	Logging  LoggingConfig      `yaml:"logging"`
	Chain    ChainConfig        `yaml:"chain"`
	Assets   []AssetConfig      `yaml:"assets"`
	Ledger   LedgerConfig       `yaml:"ledger"`
	Poller   PollerConfig       `yaml:"poller"`
	Price    PriceConfig        `yaml:"price"`
	Explorer ExplorerConfig     `yaml:"explorer"`
	Telegram TelegramConfig     `yaml:"telegram"`
	Storage  StorageConfig      `yaml:"storage"`
	Redis    redisclient.Config `yaml:"redis"`
	Database postgres.Config    `yaml:"database"`
	Sinks    SinksConfig        `yaml:"sinks"`
}

// ServerConfig holds admin HTTP server settings.
type ServerConfig struct {
	Port    int  `yaml:"port"`
	Enabled bool `yaml:"enabled"`

	// APIToken guards the wallet routes. Requests must send it as a
	// Bearer token; with no token set those routes reject everything.
	APIToken string `yaml:"api_token"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// ChainConfig holds settings for the scanned chain.
type ChainConfig struct {
	ChainID            domain.ChainID `yaml:"id"                   mapstructure:"id"`
	RPCURL             string         `yaml:"rpc_url"              mapstructure:"rpc_url"`
	Confirmations      uint64         `yaml:"confirmations"        mapstructure:"confirmations"`
	ScanInterval       time.Duration  `yaml:"scan_interval"        mapstructure:"scan_interval"`
	MaxBatch           uint64         `yaml:"max_batch"            mapstructure:"max_batch"`
	StartBlock         uint64         `yaml:"start_block"          mapstructure:"start_block"` // 0 = start at the safe head
	RPCTimeout         time.Duration  `yaml:"rpc_timeout"          mapstructure:"rpc_timeout"`
	CursorPersistEvery uint64         `yaml:"cursor_persist_every" mapstructure:"cursor_persist_every"`
	ReceiptConcurrency int            `yaml:"receipt_concurrency"  mapstructure:"receipt_concurrency"`
	TxURLTemplate      string         `yaml:"tx_url_template"      mapstructure:"tx_url_template"`
}

// AssetConfig describes one tracked asset. An empty contract means native.
type AssetConfig struct {
	Symbol   string `yaml:"symbol"   mapstructure:"symbol"`
	Contract string `yaml:"contract" mapstructure:"contract"`
	Decimals int32  `yaml:"decimals" mapstructure:"decimals"`
	PriceID  string `yaml:"price_id" mapstructure:"price_id"`
	Epsilon  string `yaml:"epsilon"  mapstructure:"epsilon"`
}

// LedgerConfig bounds the dedup ledger.
type LedgerConfig struct {
	Retention     time.Duration `yaml:"retention"      mapstructure:"retention"`
	HighWater     int           `yaml:"high_water"     mapstructure:"high_water"`
	PruneInterval time.Duration `yaml:"prune_interval" mapstructure:"prune_interval"`
}

// PollerConfig controls the balance poller. Interval 0 disables it.
type PollerConfig struct {
	Interval      time.Duration `yaml:"interval"       mapstructure:"interval"`
	HistoryWindow int           `yaml:"history_window" mapstructure:"history_window"`
	Concurrency   int           `yaml:"concurrency"    mapstructure:"concurrency"`
}

// PriceConfig holds the price feed settings.
type PriceConfig struct {
	BaseURL string        `yaml:"base_url" mapstructure:"base_url"`
	APIKey  string        `yaml:"api_key"  mapstructure:"api_key"`
	TTL     time.Duration `yaml:"ttl"      mapstructure:"ttl"`
}

// ExplorerConfig holds the Etherscan-compatible history API settings.
type ExplorerConfig struct {
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	APIKey  string `yaml:"api_key"  mapstructure:"api_key"`
}

// TelegramConfig holds the notification bot settings.
type TelegramConfig struct {
	Token       string `yaml:"token"        mapstructure:"token"`
	ChatID      string `yaml:"chat_id"      mapstructure:"chat_id"`
	LinkPreview bool   `yaml:"link_preview" mapstructure:"link_preview"`
	BaseURL     string `yaml:"base_url"     mapstructure:"base_url"`
}

// StorageConfig selects the state backend: file, redis, postgres or memory.
type StorageConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"`
	Path   string `yaml:"path"   mapstructure:"path"`
}

// SinksConfig enables extra event outputs besides the notifier.
type SinksConfig struct {
	RedisStream RedisStreamConfig `yaml:"redis_stream" mapstructure:"redis_stream"`
	Kafka       KafkaConfig       `yaml:"kafka"        mapstructure:"kafka"`
}

type RedisStreamConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Stream  string `yaml:"stream"  mapstructure:"stream"`
	MaxLen  int64  `yaml:"max_len" mapstructure:"max_len"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers" mapstructure:"brokers"`
	Topic   string   `yaml:"topic"   mapstructure:"topic"`
}
