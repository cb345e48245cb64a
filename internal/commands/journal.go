package commands

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/flowstage/pkg/flowstage/journal"
)

var (
	journalDB  string
	journalRun string
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Show recorded pipeline runs",
	Long: `List runs stored in a SQLite journal, or the per-node records of one run.

Examples:
  flowstage journal --db runs.db
  flowstage journal --db runs.db --run 6f1c...`,
	Args: cobra.NoArgs,
	RunE: runJournalCmd,
}

func init() {
	rootCmd.AddCommand(journalCmd)

	journalCmd.Flags().StringVar(&journalDB, "db", "", "SQLite journal path")
	journalCmd.Flags().StringVar(&journalRun, "run", "", "Run ID to show (default: list runs)")
	_ = journalCmd.MarkFlagRequired("db")
}

func runJournalCmd(cmd *cobra.Command, _ []string) error {
	store, err := journal.NewSQLiteStore(journalDB)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer store.Close()

	if journalRun == "" {
		return listRuns(cmd.OutOrStdout(), store)
	}
	return showRun(cmd.OutOrStdout(), store, journalRun)
}

func listRuns(w io.Writer, store journal.Store) error {
	runs, err := store.Runs()
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "no runs recorded")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tNODES\tFAILED")
	for _, id := range runs {
		records, err := store.List(id)
		if err != nil {
			return fmt.Errorf("list run %s: %w", id, err)
		}
		failed := 0
		for _, r := range records {
			if r.Outcome != journal.OutcomeCompleted {
				failed++
			}
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\n", id, len(records), failed)
	}
	return tw.Flush()
}

func showRun(w io.Writer, store journal.Store, runID string) error {
	records, err := store.List(runID)
	if err != nil {
		return fmt.Errorf("list run %s: %w", runID, err)
	}
	if len(records) == 0 {
		return fmt.Errorf("run %s: %w", runID, journal.ErrNotFound)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tNODE\tOUTCOME\tRECEIVED\tEMITTED\tDURATION\tERROR")
	for _, r := range records {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%s\t%s\n",
			r.Sequence, r.Node, r.Outcome, r.Received, r.Emitted,
			r.Duration().Round(time.Microsecond), r.Error)
	}
	return tw.Flush()
}
