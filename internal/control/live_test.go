package control

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/walletwatch/internal/core/config"
)

// Binance hot wallet, busy enough to show up within a few blocks.
const binanceWallet = "0x8894e0a0c962cb723c1976a4421c95949be2d4e3"

func TestWatcher_Live(t *testing.T) {
	if os.Getenv("E2E_LIVE") == "" {
		t.Skip("Skipping live test. Set E2E_LIVE=1 to run.")
	}
	rpcURL := os.Getenv("BSC_RPC_URL")
	if rpcURL == "" {
		rpcURL = "https://bsc-dataseed.binance.org/"
	}

	cfg := testConfig()
	cfg.Chain.RPCURL = rpcURL
	cfg.Chain.ScanInterval = 3 * time.Second
	cfg.Chain.RPCTimeout = 10 * time.Second
	cfg.Price.BaseURL = "https://api.coingecko.com/api/v3"
	cfg.Storage = config.StorageConfig{Driver: config.StorageMemory}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	w, err := NewWatcher(ctx, cfg)
	require.NoError(t, err)
	require.NoError(t, w.Start(ctx))

	_, added, err := w.Service().AddWallet(ctx, binanceWallet, "Binance")
	require.NoError(t, err)
	require.True(t, added)

	start, ok := w.service.cursor.Get()
	require.Eventually(t, func() bool {
		current, ok2 := w.service.cursor.Get()
		if !ok {
			start, ok = current, ok2
			return false
		}
		return ok2 && current > start
	}, 90*time.Second, time.Second, "cursor should advance on a live chain")

	report, err := w.Service().Balances(ctx)
	require.NoError(t, err)
	require.Len(t, report, 1)
	assert.Empty(t, report[0].Assets[0].Error)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer stopCancel()
	require.NoError(t, w.Stop(stopCtx))
}
