package cli

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/softscan/internal/core/worker"
	"github.com/vietddude/softscan/internal/infra/inventory"
)

var (
	inventoryHost  string
	pruneRetention time.Duration
	pruneWatch     bool
)

var inventoryCmd = &cobra.Command{
	Use:   "inventory",
	Short: "Manage the software inventory stored in Postgres",
}

var inventoryPushCmd = &cobra.Command{
	Use:   "push",
	Short: "Enumerate local software and store it as the inventory of --host",
	Run:   runInventoryPush,
}

var inventoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the stored inventory of --host",
	Run:   runInventoryList,
}

var inventoryPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete inventories not reported within the retention period",
	Run:   runInventoryPrune,
}

func init() {
	inventoryCmd.PersistentFlags().StringVar(&inventoryHost, "host", "", "inventory host key (default: this hostname)")
	inventoryPruneCmd.Flags().DurationVar(&pruneRetention, "retention", 0, "retention period (overrides database.retention)")
	inventoryPruneCmd.Flags().BoolVar(&pruneWatch, "watch", false, "keep pruning periodically until interrupted")
	inventoryCmd.AddCommand(inventoryPushCmd, inventoryListCmd, inventoryPruneCmd)
	rootCmd.AddCommand(inventoryCmd)
}

func openStore(cmd *cobra.Command) *inventory.Store {
	store, err := inventory.NewStore(cmd.Context(), appCfg.Database)
	if err != nil {
		fail("Failed to connect to database", err)
	}
	return store
}

func runInventoryPush(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	store := openStore(cmd)
	defer func() {
		_ = store.Close()
	}()

	items, err := inventory.NewLocalSource().Items(ctx)
	if err != nil {
		fail("Failed to list installed software", err)
	}

	host := hostOrDefault(inventoryHost)
	if err := store.Replace(ctx, host, items); err != nil {
		fail("Failed to store inventory", err)
	}
	slog.Info("Inventory stored", "host", host, "items", len(items))
}

func runInventoryList(cmd *cobra.Command, args []string) {
	store := openStore(cmd)
	defer func() {
		_ = store.Close()
	}()

	host := hostOrDefault(inventoryHost)
	items, err := store.List(cmd.Context(), host)
	if err != nil {
		fail("Failed to read inventory", err)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(w, "SOFTWARE\tVERSION")
	for _, it := range items {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", it.Name, it.InstalledVersion)
	}
	_ = w.Flush()
}

func runInventoryPrune(cmd *cobra.Command, args []string) {
	retention := appCfg.Database.Retention
	if cmd.Flags().Changed("retention") {
		retention = pruneRetention
	}
	if retention <= 0 {
		slog.Info("Retention disabled, nothing to prune")
		return
	}

	store := openStore(cmd)
	defer func() {
		_ = store.Close()
	}()
	pruner := worker.NewPruner(retention, store)

	if !pruneWatch {
		if _, err := pruner.Prune(cmd.Context()); err != nil {
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	slog.Info("Pruner started", "retention", retention)
	pruner.Start(ctx)
	slog.Info("Pruner stopped")
}
