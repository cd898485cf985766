package cli

import (
	"log/slog"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations for the inventory store",
	Run:   runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) {
	store := openStore(cmd)
	defer func() {
		_ = store.Close()
	}()

	if err := store.Migrate(cmd.Context()); err != nil {
		fail("Migration failed", err)
	}
	slog.Info("Migrations applied")
}
