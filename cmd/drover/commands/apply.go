package commands

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/droverhq/drover/pkg/inventory"
	"github.com/droverhq/drover/pkg/playbook"
	"github.com/droverhq/drover/pkg/run"
	"github.com/droverhq/drover/pkg/stores"
	"github.com/droverhq/drover/pkg/telemetry"
)

// applyFlags are shared by apply, plan and watch.
type applyFlags struct {
	inventoryPath string
	playPath      string
	forks         int
	taskTimeout   time.Duration
	historyDB     string
	metricsListen string
	traceExporter string
	traceEndpoint string
	traceInsecure bool
}

func (f *applyFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.inventoryPath, "inventory", "i", "inventory.yaml", "inventory file path")
	cmd.Flags().StringVarP(&f.playPath, "play", "p", "play.yaml", "play file path")
	cmd.Flags().IntVar(&f.forks, "forks", 5, "maximum hosts executing in parallel")
	cmd.Flags().DurationVar(&f.taskTimeout, "timeout", 5*time.Minute, "per-task timeout")
	cmd.Flags().StringVar(&f.historyDB, "history-db", "", "record the run in this SQLite history database")
	cmd.Flags().StringVar(&f.metricsListen, "metrics-listen", "", "serve Prometheus metrics on this address during the run")
	cmd.Flags().StringVar(&f.traceExporter, "trace-exporter", "", "export traces (otlp, stdout)")
	cmd.Flags().StringVar(&f.traceEndpoint, "trace-endpoint", "", "OTLP collector endpoint")
	cmd.Flags().BoolVar(&f.traceInsecure, "trace-insecure", false, "disable TLS for the OTLP exporter")
}

func newApplyCommand() *cobra.Command {
	var flags applyFlags

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply a play to the inventory",
		Long: `Load the inventory and play, connect to every host of the target group,
apply the task sequence and fire notified handlers. Exits non-zero if any
host fails to complete.`,
		Example: `  # Apply a play
  drover apply -i inventory.yaml -p webserver.yaml

  # Limit parallelism and record history
  drover apply -i inventory.yaml -p webserver.yaml --forks 2 --history-db ~/.drover/history.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeApply(cmd.Context(), flags, false)
		},
	}

	flags.register(cmd)
	return cmd
}

// loadInputs parses the inventory and play. Failures here are parse-class:
// fatal before any host runs.
func loadInputs(inventoryPath, playPath string) (*inventory.Inventory, *playbook.Play, error) {
	inv, err := inventory.Load(inventoryPath)
	if err != nil {
		return nil, nil, run.NewParseError(err)
	}
	play, err := playbook.Load(playPath)
	if err != nil {
		return nil, nil, run.NewParseError(err)
	}
	return inv, play, nil
}

func executeApply(ctx context.Context, flags applyFlags, dryRun bool) error {
	inv, play, err := loadInputs(flags.inventoryPath, flags.playPath)
	if err != nil {
		return err
	}

	shutdownTracing, err := telemetry.InitTracing(ctx, telemetry.TracingConfig{
		Enabled:  flags.traceExporter != "",
		Exporter: flags.traceExporter,
		Endpoint: flags.traceEndpoint,
		Insecure: flags.traceInsecure,
	}, "dev")
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(shutdownCtx)
	}()

	metrics := telemetry.NewMetrics(telemetry.MetricsConfig{Enabled: flags.metricsListen != ""})
	if flags.metricsListen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		server := &http.Server{Addr: flags.metricsListen, Handler: mux}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.WithError(err).Warn("metrics listener stopped")
			}
		}()
		defer server.Close()
	}

	runner, err := run.New(inv, play, run.Options{
		Forks:       flags.forks,
		TaskTimeout: flags.taskTimeout,
		DryRun:      dryRun,
		Logger:      logger,
		Metrics:     metrics,
	})
	if err != nil {
		return err
	}

	report := runner.Run(ctx)

	if flags.historyDB != "" {
		if err := saveHistory(ctx, flags.historyDB, report); err != nil {
			logger.WithError(err).Warn("failed to record run history")
		}
	}

	if err := printReport(report); err != nil {
		return err
	}

	if report.Failed() {
		return fmt.Errorf("%d of %d host(s) failed", len(report.FailedHosts()), len(report.Hosts))
	}
	return nil
}

func saveHistory(ctx context.Context, path string, report *run.Report) error {
	store, err := stores.Open(ctx, path)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.SaveReport(ctx, report)
}
