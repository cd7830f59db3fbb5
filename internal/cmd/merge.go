package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Priivacy-ai/spec-kitty-sub010/internal/config"
	"github.com/Priivacy-ai/spec-kitty-sub010/internal/merge"
	"github.com/Priivacy-ai/spec-kitty-sub010/internal/store"
)

var mergeFlags struct {
	stream string
	out    string
	check  bool
}

var mergeCmd = &cobra.Command{
	Use:   "merge <ours> <theirs>",
	Short: "Merge two versions of an event log",
	Long: `Combine two copies of a work stream's event log into one: union the
events, drop duplicates by event id, and re-emit in the canonical order. The
result is byte-identical regardless of argument order, and reviewer rollbacks
keep precedence over concurrent forward progress when the merged log is
reduced.

Designed to run as a git merge driver for events.jsonl:

    [merge "wptrack"]
        driver = wptrack merge %A %B --out %A`,
	Args: cobra.ExactArgs(2),
	RunE: runMerge,
}

func init() {
	rootCmd.AddCommand(mergeCmd)

	mergeCmd.Flags().StringVarP(&mergeFlags.stream, "stream", "s", "", "work stream id for reporting")
	mergeCmd.Flags().StringVar(&mergeFlags.out, "out", "", "write the merged log here (default stdout)")
	mergeCmd.Flags().BoolVar(&mergeFlags.check, "check", false, "report the resolution without writing")
}

func runMerge(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	log := newLogger(cfg, "merge")
	defer log.Close()

	ours, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read %s: %w", args[0], err)
	}
	theirs, err := os.ReadFile(args[1])
	if err != nil {
		return fmt.Errorf("read %s: %w", args[1], err)
	}

	merged, report, err := merge.Resolve(mergeFlags.stream, ours, theirs)
	if err != nil {
		return err
	}

	for _, recErr := range report.CorruptLines {
		fmt.Fprintln(cmd.ErrOrStderr(), warnStyle.Render(
			fmt.Sprintf("warning: corrupt record dropped: %v", recErr)))
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s %d events (%d duplicates, %d rollback decisions)\n",
		okStyle.Render("merged"), report.Total, report.Duplicates, report.Rollbacks)
	log.Info("logs merged", "events", report.Total,
		"duplicates", report.Duplicates, "rollbacks", report.Rollbacks)

	if mergeFlags.check {
		return nil
	}
	if mergeFlags.out == "" {
		_, err := cmd.OutOrStdout().Write(merged)
		return err
	}
	return store.WriteAtomic(mergeFlags.out, merged, 0644)
}
