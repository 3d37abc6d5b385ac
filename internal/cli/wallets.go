package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vietddude/walletwatch/internal/control"
	"github.com/vietddude/walletwatch/internal/core/domain"
	"github.com/vietddude/walletwatch/internal/infra/storage"
)

var walletsCmd = &cobra.Command{
	Use:   "wallets",
	Short: "Manage watched wallets in the saved state",
	Long: `Manage watched wallets in the saved state while the watcher is stopped.
Use the admin API to change wallets of a running watcher.`,
}

var walletsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List watched wallets",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		withOffline(func(ctx context.Context, svc *control.Service, _ storage.Store) error {
			wallets := svc.ListWallets()
			if len(wallets) == 0 {
				fmt.Println("No wallets added")
				return nil
			}
			printWallets(wallets)
			return nil
		})
	},
}

var walletsAddCmd = &cobra.Command{
	Use:   "add <address> [name]",
	Short: "Start watching a wallet",
	Args:  cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		name := ""
		if len(args) > 1 {
			name = strings.Join(args[1:], " ")
		}
		withOffline(func(ctx context.Context, svc *control.Service, _ storage.Store) error {
			w, added, err := svc.AddWallet(ctx, args[0], name)
			if errors.Is(err, domain.ErrInvalidAddress) {
				return fmt.Errorf("invalid BSC address %q", args[0])
			}
			if err != nil {
				return err
			}
			if !added {
				fmt.Println("This wallet is already watched")
				return nil
			}
			if err := svc.Checkpoint(ctx); err != nil {
				return err
			}
			fmt.Printf("Wallet added: %s\n%s\n", w.Name, domain.ShortAddress(w.Address))
			return nil
		})
	},
}

var walletsRemoveCmd = &cobra.Command{
	Use:   "remove <index>",
	Short: "Stop watching the wallet at a 1-based index (see list)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		index, err := strconv.Atoi(args[0])
		if err != nil {
			fmt.Printf("Invalid index: %v\n", err)
			os.Exit(1)
		}
		withOffline(func(ctx context.Context, svc *control.Service, _ storage.Store) error {
			ok, removed := svc.RemoveWallet(ctx, index)
			if !ok {
				return fmt.Errorf("no wallet at index %d", index)
			}
			if err := svc.Checkpoint(ctx); err != nil {
				return err
			}
			fmt.Printf("Wallet removed: %s\n%s\n", removed.Name, domain.ShortAddress(removed.Address))
			return nil
		})
	},
}

func init() {
	walletsCmd.AddCommand(walletsListCmd, walletsAddCmd, walletsRemoveCmd)
	rootCmd.AddCommand(walletsCmd)
}

func withOffline(fn func(ctx context.Context, svc *control.Service, store storage.Store) error) {
	cfg := loadConfig()
	ctx := context.Background()

	svc, store, err := control.OpenOffline(ctx, cfg)
	if err != nil {
		slog.Error("Failed to open state", "error", err)
		os.Exit(1)
	}
	err = fn(ctx, svc, store)
	_ = store.Close()
	if err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}
