package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/softscan/internal/core/config"
	"github.com/vietddude/softscan/internal/core/domain"
	"github.com/vietddude/softscan/internal/infra/inventory"
	"github.com/vietddude/softscan/internal/infra/llm"
	redisclient "github.com/vietddude/softscan/internal/infra/redis"
	"github.com/vietddude/softscan/internal/report"
	"github.com/vietddude/softscan/internal/scanning/dispatch"
	"github.com/vietddude/softscan/internal/scanning/emitter"
	"github.com/vietddude/softscan/internal/scanning/health"
)

const (
	formatTable = "table"
	formatJSON  = "json"
)

// scanFlags are shared by scan and classify.
type scanFlags struct {
	concurrency int
	filter      string
	format      string
	apiKey      string
	details     bool
}

var (
	scanOpts   scanFlags
	scanSource string
	scanHost   string
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan installed software and classify every package",
	Run:   runScan,
}

func init() {
	addScanFlags(scanCmd, &scanOpts)
	scanCmd.Flags().StringVar(&scanSource, "source", "", "item source: local or postgres (overrides scan.source)")
	scanCmd.Flags().StringVar(&scanHost, "host", "", "inventory host for the postgres source (default: this hostname)")
	rootCmd.AddCommand(scanCmd)
}

func addScanFlags(cmd *cobra.Command, f *scanFlags) {
	cmd.Flags().IntVar(&f.concurrency, "concurrency", 0, "max in-flight classifications (overrides scan.concurrency)")
	cmd.Flags().StringVar(&f.filter, "filter", "", "show only software whose name contains this text")
	cmd.Flags().StringVar(&f.format, "format", formatTable, "output format: table or json")
	cmd.Flags().StringVar(&f.apiKey, "api-key", "", "service API key (overrides config and "+config.APIKeyEnv+")")
	cmd.Flags().BoolVar(&f.details, "details", false, "print the full RCA of every non-SAFE row")
}

// merge applies flags on top of the loaded configuration.
func (f scanFlags) merge(cmd *cobra.Command, cfg *config.AppConfig) {
	if cmd.Flags().Changed("concurrency") {
		cfg.Scan.Concurrency = f.concurrency
	}
	if cmd.Flags().Changed("filter") {
		cfg.Scan.Filter = f.filter
	}
}

func runScan(cmd *cobra.Command, args []string) {
	cfg := appCfg
	scanOpts.merge(cmd, cfg)
	if scanSource != "" {
		cfg.Scan.Source = scanSource
	}
	if scanHost != "" {
		cfg.Scan.Host = scanHost
	}
	if err := cfg.Validate(); err != nil {
		fail("Invalid configuration", err)
	}

	apiKey, err := cfg.ResolveAPIKey(scanOpts.apiKey)
	if err != nil {
		fail("Cannot start scan", err)
	}

	ctx := cmd.Context()
	source, closeSource, err := openSource(ctx, cfg)
	if err != nil {
		fail("Failed to open item source", err)
	}
	defer closeSource()

	items, err := source.Items(ctx)
	if err != nil {
		fail("Failed to list installed software", err)
	}
	if len(items) == 0 {
		slog.Info("No installed software found", "source", cfg.Scan.Source)
		return
	}

	if err := runBatch(ctx, cfg, items, apiKey, scanOpts, cmd.OutOrStdout()); err != nil {
		fail("Scan failed", err)
	}
}

func openSource(ctx context.Context, cfg *config.AppConfig) (inventory.Source, func(), error) {
	if cfg.Scan.Source != config.SourcePostgres {
		return inventory.NewLocalSource(), func() {}, nil
	}

	store, err := inventory.NewStore(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	closeStore := func() {
		if err := store.Close(); err != nil {
			slog.Warn("Failed to close inventory store", "error", err)
		}
	}
	return inventory.NewPostgresSource(store, hostOrDefault(cfg.Scan.Host)), closeStore, nil
}

func hostOrDefault(host string) string {
	if host != "" {
		return host
	}
	name, err := os.Hostname()
	if err != nil {
		return "localhost"
	}
	return name
}

// runBatch classifies items and renders the result table to out.
func runBatch(
	ctx context.Context,
	cfg *config.AppConfig,
	items []domain.Item,
	apiKey string,
	opts scanFlags,
	out io.Writer,
) error {
	if opts.format != formatTable && opts.format != formatJSON {
		return fmt.Errorf("unknown output format %q", opts.format)
	}

	client := llm.NewClient(cfg.Service)
	defer client.Close()

	tracker := health.NewTracker(client.Monitor)
	sinks := emitter.Multi{emitter.NewLogEmitter(10), tracker}

	if cfg.Redis.Enabled() {
		rdb, err := redisclient.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("Redis unavailable, events will not be published", "error", err)
		} else {
			sinks = append(sinks, rdb)
		}
	}
	defer func() {
		if err := sinks.Close(); err != nil {
			slog.Warn("Failed to close event sinks", "error", err)
		}
	}()

	if cfg.Server.Port > 0 {
		srv := health.NewServer(tracker, cfg.Server.Port)
		srv.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Stop(shutdownCtx); err != nil {
				slog.Warn("Error stopping health server", "error", err)
			}
		}()
	}

	table := report.NewTable(items)
	batch := dispatch.New(client, sinks).Dispatch(ctx, items, apiKey, cfg.Scan.Concurrency)

	for ev := range batch.Events() {
		if ev.Type != domain.EventTypeResultReady {
			continue
		}
		if err := table.Apply(*ev.Result); err != nil {
			slog.Error("Discarding result", "batch_id", batch.ID, "error", err)
		}
	}

	logSummary(batch.ID, table, client.Monitor.GetStats())

	if opts.format == formatJSON {
		return table.RenderJSON(out, cfg.Scan.Filter)
	}
	if err := table.Render(out, cfg.Scan.Filter); err != nil {
		return err
	}
	if opts.details {
		return writeDetails(out, table, cfg.Scan.Filter)
	}
	return nil
}

func writeDetails(out io.Writer, table *report.Table, filter string) error {
	for _, row := range table.Rows(filter) {
		if strings.EqualFold(string(row.Safety), string(domain.SafetySafe)) {
			continue
		}
		if _, err := fmt.Fprintf(out, "\n%s %s\n  %s\n", row.Name, row.Version, table.Detail(row.Index)); err != nil {
			return err
		}
	}
	return nil
}

func logSummary(batchID string, table *report.Table, stats llm.MonitorStats) {
	counts := table.Summary()
	slog.Info("Scan summary",
		"batch_id", batchID,
		"safe", counts[string(domain.SafetySafe)],
		"harmful", counts[string(domain.SafetyHarmful)],
		"unknown", counts[string(domain.SafetyUnknown)],
		"service", stats.Status.String(),
		"avg_latency", stats.AverageLatency.Round(time.Millisecond),
		"throttled_429", stats.ThrottleCount429,
		"transport_failures", stats.TransportFailures,
		"http_errors", stats.HTTPErrors,
	)
}
