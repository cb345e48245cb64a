package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/flowstage/pkg/flowstage"
	"github.com/randalmurphal/flowstage/pkg/flowstage/config"
	"github.com/randalmurphal/flowstage/pkg/flowstage/journal"
	"github.com/randalmurphal/flowstage/pkg/flowstage/observability"
)

var (
	runConfig  string
	runJournal string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a pipeline described by a config file",
	Long: `Run builds source -> stages -> sink from a YAML or JSON config and
supervises it until every node finishes.

Stage ops: add, mul, keep_multiple, sum, window_sum, log.

Examples:
  flowstage run --config pipeline.yaml
  flowstage run --config pipeline.yaml --journal runs.db`,
	Args: cobra.NoArgs,
	RunE: runPipeline,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runConfig, "config", "", "Pipeline config file (.yaml, .yml, .json)")
	runCmd.Flags().StringVar(&runJournal, "journal", "", "SQLite journal path (overrides journal_path)")
	_ = runCmd.MarkFlagRequired("config")
}

func runPipeline(cmd *cobra.Command, _ []string) error {
	settings, err := config.LoadFile(runConfig)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if runJournal != "" {
		settings.JournalPath = runJournal
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if settings.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, settings.Timeout)
		defer cancel()
	}

	return execute(ctx, settings, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// execute builds, runs and reports one pipeline.
func execute(ctx context.Context, s config.Settings, stdout, stderr io.Writer) error {
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: s.LogLevel}))

	tel := observability.Setup(logger, s.Metrics, s.Tracing)
	defer func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			logger.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()

	metrics := tel.Metrics()

	opts := []flowstage.SupervisorOption{
		flowstage.WithRunLogger(logger),
		flowstage.WithRunMetrics(metrics),
	}
	if s.Tracing {
		opts = append(opts, flowstage.WithTracing())
	}
	if s.JournalPath != "" {
		store, err := journal.NewSQLiteStore(s.JournalPath)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer store.Close()
		opts = append(opts, flowstage.WithJournal(store))
	}

	sup := flowstage.NewSupervisor(s.Pipeline, opts...)
	out, err := buildPipeline(sup, s, logger, metrics)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	report, runErr := sup.Run(ctx)
	if report != nil {
		writeReport(stdout, report, out.values())
	}
	if s.Metrics {
		points, err := tel.Counters(context.Background())
		if err != nil {
			logger.Warn("metrics collection failed", slog.String("error", err.Error()))
		}
		writeCounters(stdout, points)
	}
	return runErr
}

func writeReport(w io.Writer, report *flowstage.Report, values []int) {
	fmt.Fprintf(w, "run %s finished in %s\n", report.RunID, report.Duration.Round(time.Microsecond))
	fmt.Fprintf(w, "output: %v\n\n", values)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NODE\tOUTCOME\tRECEIVED\tEMITTED\tFILTERED\tDROPPED")
	for _, n := range report.Nodes {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\n",
			n.Name, n.Outcome, n.Stats.Received, n.Stats.Emitted, n.Stats.Filtered, n.Stats.Dropped)
	}
	_ = tw.Flush()
}

func writeCounters(w io.Writer, points []observability.MetricPoint) {
	if len(points) == 0 {
		return
	}
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "METRIC\tNODE\tVALUE")
	for _, p := range points {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", p.Name, p.Node, p.Value)
	}
	_ = tw.Flush()
}
