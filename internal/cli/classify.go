package cli

import (
	"github.com/spf13/cobra"

	"github.com/vietddude/softscan/internal/core/domain"
)

var classifyOpts scanFlags

var classifyCmd = &cobra.Command{
	Use:   "classify NAME...",
	Short: "Classify the named packages without enumerating the host",
	Args:  cobra.MinimumNArgs(1),
	Run:   runClassify,
}

func init() {
	addScanFlags(classifyCmd, &classifyOpts)
	rootCmd.AddCommand(classifyCmd)
}

func runClassify(cmd *cobra.Command, args []string) {
	cfg := appCfg
	classifyOpts.merge(cmd, cfg)

	apiKey, err := cfg.ResolveAPIKey(classifyOpts.apiKey)
	if err != nil {
		fail("Cannot classify", err)
	}

	items := make([]domain.Item, len(args))
	for i, name := range args {
		items[i] = domain.Item{Name: name, InstalledVersion: "-"}
	}

	if err := runBatch(cmd.Context(), cfg, items, apiKey, classifyOpts, cmd.OutOrStdout()); err != nil {
		fail("Classification failed", err)
	}
}
