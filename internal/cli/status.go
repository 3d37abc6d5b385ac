package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/walletwatch/internal/control"
	"github.com/vietddude/walletwatch/internal/core/cursor"
	"github.com/vietddude/walletwatch/internal/core/domain"
	"github.com/vietddude/walletwatch/internal/infra/chain/evm"
	"github.com/vietddude/walletwatch/internal/infra/storage"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the saved cursor, ledger size and lag behind the chain",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	store, err := control.OpenStore(ctx, cfg, nil)
	if err != nil {
		slog.Error("Failed to open store", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = store.Close()
	}()

	state, err := storage.LoadOrNew(ctx, store)
	if err != nil {
		slog.Error("Failed to load state", "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "CHAIN\tCURSOR\tSAFE HEAD\tLAG\tWALLETS\tLEDGER\tUPDATED")

	cursorText, safeText, lagText := "-", "-", "-"
	if state.Cursor != nil {
		cursorText = fmt.Sprint(*state.Cursor)
	}
	if client, err := evm.Dial(ctx, cfg.Chain.RPCURL); err == nil {
		if head, err := client.ChainHead(ctx); err == nil {
			safe := cursor.SafeHead(head, cfg.Chain.Confirmations)
			safeText = fmt.Sprint(safe)
			if state.Cursor != nil {
				lagText = fmt.Sprint(int64(safe) - int64(*state.Cursor))
			}
		} else {
			slog.Warn("Failed to read chain head", "error", err)
		}
		client.Close()
	}

	updated := "-"
	if !state.UpdatedAt.IsZero() {
		updated = state.UpdatedAt.UTC().Format(time.RFC3339)
	}
	_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
		cfg.Chain.ChainID.Name(), cursorText, safeText, lagText, len(state.Wallets), len(state.Seen), updated)
	_ = w.Flush()

	if len(state.Wallets) > 0 {
		fmt.Println()
		printWallets(state.Wallets)
	}
}

func printWallets(wallets []domain.WatchedWallet) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(w, "#\tNAME\tADDRESS\tFROM BLOCK")
	for i, wallet := range wallets {
		from := "-"
		if wallet.StartBlock > 0 {
			from = fmt.Sprint(wallet.StartBlock)
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", i+1, wallet.Name, wallet.Address, from)
	}
	_ = w.Flush()
}
