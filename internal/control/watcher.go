package control

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vietddude/walletwatch/internal/api"
	"github.com/vietddude/walletwatch/internal/core/config"
	"github.com/vietddude/walletwatch/internal/core/cursor"
	"github.com/vietddude/walletwatch/internal/core/ledger"
	"github.com/vietddude/walletwatch/internal/core/worker"
	"github.com/vietddude/walletwatch/internal/indexing/emitter"
	"github.com/vietddude/walletwatch/internal/indexing/filter"
	"github.com/vietddude/walletwatch/internal/indexing/health"
	"github.com/vietddude/walletwatch/internal/indexing/poller"
	"github.com/vietddude/walletwatch/internal/indexing/price"
	"github.com/vietddude/walletwatch/internal/indexing/scanner"
	"github.com/vietddude/walletwatch/internal/indexing/throttle"
	"github.com/vietddude/walletwatch/internal/infra/chain"
	"github.com/vietddude/walletwatch/internal/infra/chain/evm"
	"github.com/vietddude/walletwatch/internal/infra/coingecko"
	"github.com/vietddude/walletwatch/internal/infra/explorer"
	redisclient "github.com/vietddude/walletwatch/internal/infra/redis"
	"github.com/vietddude/walletwatch/internal/infra/storage"
	"github.com/vietddude/walletwatch/internal/infra/storage/postgres"
	"github.com/vietddude/walletwatch/internal/infra/telegram"
)

// ShutdownTimeout bounds Stop when called from the CLI.
const ShutdownTimeout = 15 * time.Second

// Watcher is the main application struct that manages the component lifecycle.
type Watcher struct {
	cfg         *config.AppConfig
	service     *Service
	scanner     *scanner.Scanner
	poller      *poller.Poller
	pruner      *worker.Pruner
	healthMon   *health.Monitor
	server      *api.Server
	emitter     *emitter.Multi
	store       storage.Store
	redisClient *redisclient.Client
	closeClient func()
	log         *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWatcher dials the node and the configured backends.
func NewWatcher(ctx context.Context, cfg *config.AppConfig) (*Watcher, error) {
	rpcClient, err := evm.Dial(ctx, cfg.Chain.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial rpc: %w", err)
	}

	var rc *redisclient.Client
	if cfg.Redis.URL != "" && (cfg.Storage.Driver == config.StorageRedis || cfg.Sinks.RedisStream.Enabled) {
		rc, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			rpcClient.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
	}

	store, err := OpenStore(ctx, cfg, rc)
	if err != nil {
		rpcClient.Close()
		if rc != nil {
			_ = rc.Close()
		}
		return nil, err
	}

	w, err := newWatcher(cfg, rpcClient, store, rc)
	if err != nil {
		rpcClient.Close()
		_ = store.Close()
		if rc != nil {
			_ = rc.Close()
		}
		return nil, err
	}
	w.closeClient = rpcClient.Close
	return w, nil
}

// newWatcher assembles the components around an already opened node client
// and store.
func newWatcher(cfg *config.AppConfig, node chain.Client, store storage.Store, rc *redisclient.Client) (*Watcher, error) {
	assets, err := cfg.TrackedAssets()
	if err != nil {
		return nil, err
	}
	assetSet := filter.NewAssetSet(assets)

	client := chain.NewResilient(node, cfg.Chain.ChainID, cfg.Chain.RPCTimeout)
	head := throttle.NewHeadCache(client, cfg.Chain.ScanInterval/3)

	wallets := filter.NewWatchList()
	seen := ledger.New(ledger.Config{
		Retention: cfg.Ledger.Retention,
		HighWater: cfg.Ledger.HighWater,
	})
	cur := cursor.NewManager(cfg.Chain.CursorPersistEvery)

	prices := price.NewCache(
		coingecko.New(cfg.Price.BaseURL, cfg.Price.APIKey),
		assetSet.PriceIDs(),
		cfg.Price.TTL,
	)

	// Sinks
	var sinks []emitter.Emitter
	if cfg.Telegram.Token != "" && cfg.Telegram.ChatID != "" {
		bot := telegram.New(cfg.Telegram.BaseURL, cfg.Telegram.Token)
		sinks = append(sinks, emitter.NewNotifier(bot, cfg.Telegram.ChatID, cfg.Chain.TxURLTemplate, cfg.Telegram.LinkPreview))
	} else {
		slog.Warn("Telegram not configured, alerts go to the other sinks only")
	}
	if cfg.Sinks.RedisStream.Enabled && rc != nil {
		sinks = append(sinks, emitter.NewStreamSink(rc, cfg.Sinks.RedisStream.Stream, cfg.Sinks.RedisStream.MaxLen))
	}
	if len(cfg.Sinks.Kafka.Brokers) > 0 && cfg.Sinks.Kafka.Topic != "" {
		sinks = append(sinks, emitter.NewKafkaSink(cfg.Sinks.Kafka.Brokers, cfg.Sinks.Kafka.Topic))
	}
	multi := emitter.NewMulti(sinks...)

	service := NewService(wallets, assets, seen, cur, store, client, prices)

	sc := scanner.New(scanner.Config{
		ChainID:            cfg.Chain.ChainID,
		Client:             client,
		Head:               head,
		Wallets:            wallets,
		Assets:             assetSet,
		Ledger:             seen,
		Cursor:             cur,
		Prices:             prices,
		Emitter:            multi,
		Checkpointer:       service,
		Confirmations:      cfg.Chain.Confirmations,
		MaxBatch:           cfg.Chain.MaxBatch,
		ScanInterval:       cfg.Chain.ScanInterval,
		StartBlock:         cfg.Chain.StartBlock,
		ReceiptConcurrency: cfg.Chain.ReceiptConcurrency,
	})

	var history poller.History
	if cfg.Explorer.BaseURL != "" {
		history = explorer.New(cfg.Explorer.BaseURL, cfg.Explorer.APIKey, cfg.Chain.ChainID)
	}
	pl := poller.New(poller.Config{
		ChainID:       cfg.Chain.ChainID,
		Interval:      cfg.Poller.Interval,
		HistoryWindow: cfg.Poller.HistoryWindow,
		Concurrency:   cfg.Poller.Concurrency,
	}, client, wallets, assets, history, seen, prices, multi)
	pl.OnChange = service.saveQuietly
	service.SetSnapshots(pl)

	pruner := worker.NewPruner(seen, cfg.Ledger.Retention, cfg.Ledger.PruneInterval, service.saveQuietly)
	healthMon := health.NewMonitor(sc, head, wallets.Size, seen)

	var server *api.Server
	if cfg.Server.Enabled {
		server = api.NewServer(cfg.Server.Port, cfg.Server.APIToken, service, healthMon)
	}

	return &Watcher{
		cfg:         cfg,
		service:     service,
		scanner:     sc,
		poller:      pl,
		pruner:      pruner,
		healthMon:   healthMon,
		server:      server,
		emitter:     multi,
		store:       store,
		redisClient: rc,
		log:         slog.Default(),
	}, nil
}

// Service returns the wallet command service.
func (w *Watcher) Service() *Service { return w.service }

// Start restores the saved state and starts all components. It does not block.
func (w *Watcher) Start(ctx context.Context) error {
	state, err := storage.LoadOrNew(ctx, w.store)
	if err != nil {
		return fmt.Errorf("failed to load state: %w", err)
	}
	w.service.Restore(state)
	attrs := []any{"wallets", len(state.Wallets), "ledger", len(state.Seen)}
	if state.Cursor != nil {
		attrs = append(attrs, "cursor", *state.Cursor)
	}
	w.log.Info("State restored", attrs...)

	ctx, w.cancel = context.WithCancel(ctx)

	if pg, ok := w.store.(*postgres.Store); ok {
		pg.DB().StartMetricsCollector(ctx)
	}

	if w.server != nil {
		w.log.Info("Starting admin server", "port", w.cfg.Server.Port)
		w.goRun(func() {
			if err := w.server.Start(); err != nil {
				w.log.Error("Admin server failed", "error", err)
			}
		})
	}

	w.log.Info("Starting scanner", "chain", w.cfg.Chain.ChainID)
	w.goRun(func() {
		if err := w.scanner.Run(ctx); err != nil {
			w.log.Error("Scanner failed", "error", err)
		}
	})
	w.goRun(func() { w.poller.Run(ctx) })
	w.goRun(func() { w.pruner.Start(ctx) })

	return nil
}

func (w *Watcher) goRun(fn func()) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		fn()
	}()
}

// Stop cancels the components, waits for them and writes a final checkpoint.
func (w *Watcher) Stop(ctx context.Context) error {
	w.log.Info("Stopping Watcher...")

	if w.cancel != nil {
		w.cancel()
	}
	if w.server != nil {
		if err := w.server.Stop(ctx); err != nil {
			w.log.Warn("Failed to stop admin server", "error", err)
		}
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		w.log.Warn("Components did not stop in time")
	}

	checkpointErr := w.service.Checkpoint(ctx)
	if checkpointErr != nil {
		w.log.Error("Final checkpoint failed", "error", checkpointErr)
	}

	if err := w.emitter.Close(); err != nil {
		w.log.Warn("Failed to close sinks", "error", err)
	}
	if err := w.store.Close(); err != nil {
		w.log.Warn("Failed to close store", "error", err)
	}
	if w.redisClient != nil {
		if err := w.redisClient.Close(); err != nil {
			w.log.Warn("Failed to close Redis", "error", err)
		}
	}
	if w.closeClient != nil {
		w.closeClient()
	}
	return checkpointErr
}
