package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/vietddude/walletwatch/internal/control"
)

var resetCursorCmd = &cobra.Command{
	Use:   "reset-cursor [block_height]",
	Short: "Set the scan cursor to a block height, or clear it to restart at the safe head",
	Long: `Set the scan cursor to a block height. The next run resumes at block_height+1.
Without an argument the cursor is cleared and the next run starts at the current safe head.
Stop the watcher first: it overwrites the cursor on its next checkpoint.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runResetCursor,
}

func init() {
	rootCmd.AddCommand(resetCursorCmd)
}

func runResetCursor(cmd *cobra.Command, args []string) {
	var height *uint64
	if len(args) == 1 {
		h, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			fmt.Printf("Invalid block height: %v\n", err)
			os.Exit(1)
		}
		height = &h
	}

	cfg := loadConfig()
	ctx := context.Background()

	svc, store, err := control.OpenOffline(ctx, cfg)
	if err != nil {
		slog.Error("Failed to open state", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = store.Close()
	}()

	if err := svc.SetCursor(ctx, height); err != nil {
		slog.Error("Failed to reset cursor", "error", err)
		os.Exit(1)
	}

	if height == nil {
		fmt.Println("Cursor cleared; the next run starts at the safe head")
		return
	}
	fmt.Printf("Successfully reset cursor for %s to block %d\n", cfg.Chain.ChainID, *height)
}
