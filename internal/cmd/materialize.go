package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Priivacy-ai/spec-kitty-sub010/internal/config"
	"github.com/Priivacy-ai/spec-kitty-sub010/internal/store"
)

var materializeCmd = &cobra.Command{
	Use:   "materialize [stream...]",
	Short: "Rebuild snapshots from the event logs",
	Long: `Rebuild the materialized snapshot (and, in dual-write or later, the legacy
views) for the named work streams, or for all streams when none are given.
Safe to re-run at any time; snapshots are always-regenerable caches.`,
	RunE: runMaterialize,
}

func init() {
	rootCmd.AddCommand(materializeCmd)
}

func runMaterialize(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	log := newLogger(cfg, "materialize")
	defer log.Close()

	streams := args
	if len(streams) == 0 {
		var err error
		streams, err = store.ListStreams(repoRoot())
		if err != nil {
			return err
		}
	}
	if len(streams) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No work streams recorded")
		return nil
	}

	emitter := newEmitter(cfg, log)
	failed := 0
	for _, stream := range streams {
		result := emitter.Materialize(stream)
		for _, warning := range result.Warnings {
			fmt.Fprintln(cmd.ErrOrStderr(), warnStyle.Render(
				fmt.Sprintf("warning: %s: %s", stream, warning)))
		}
		if !result.OK {
			failed++
			for _, err := range result.Errs {
				fmt.Fprintln(cmd.ErrOrStderr(), errorStyle.Render(
					fmt.Sprintf("%s: %v", stream, err)))
			}
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", okStyle.Render("materialized"), stream)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d streams failed", failed, len(streams))
	}
	return nil
}
