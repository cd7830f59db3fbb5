package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Priivacy-ai/spec-kitty-sub010/internal/config"
	"github.com/Priivacy-ai/spec-kitty-sub010/internal/phase"
	"github.com/Priivacy-ai/spec-kitty-sub010/internal/reduce"
	"github.com/Priivacy-ai/spec-kitty-sub010/internal/store"
)

var statusFlags struct {
	stream  string
	jsonOut bool
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current work-package lanes",
	Long: `Display the current lane of every work package, computed by a fresh
reduction of the event logs. With --stream, only that work stream is shown.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVarP(&statusFlags.stream, "stream", "s", "", "limit output to one work stream")
	statusCmd.Flags().BoolVar(&statusFlags.jsonOut, "json", false, "emit machine-readable JSON")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	log := newLogger(cfg, "status")
	defer log.Close()
	root := repoRoot()

	streams := []string{statusFlags.stream}
	if statusFlags.stream == "" {
		var err error
		streams, err = store.ListStreams(root)
		if err != nil {
			return err
		}
	}
	if len(streams) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No work streams recorded")
		return nil
	}

	snaps := make([]*reduce.Snapshot, 0, len(streams))
	for _, stream := range streams {
		events, recErrs, err := store.New(root, stream).ReadRaw()
		if err != nil {
			return err
		}
		for _, recErr := range recErrs {
			fmt.Fprintln(cmd.ErrOrStderr(), warnStyle.Render(
				fmt.Sprintf("warning: %s: corrupt log record: %v", stream, recErr)))
		}
		snaps = append(snaps, reduce.Reduce(stream, events))
	}

	if statusFlags.jsonOut {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(snaps)
	}

	res := phase.Resolve(cfg, "")
	fmt.Fprintf(cmd.OutOrStdout(), "Phase: %s (%s)\n\n", res.Phase, res.Tier)

	for _, snap := range snaps {
		fmt.Fprintln(cmd.OutOrStdout(), headStyle.Render(snap.WorkStream))
		if len(snap.Units) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), dimStyle.Render("  (no events)"))
			continue
		}
		for _, unit := range snap.Units {
			fmt.Fprintf(cmd.OutOrStdout(), "  %-24s %s  %s %s\n",
				unit.Unit,
				laneStyle(unit.Lane).Render(fmt.Sprintf("%-11s", unit.Lane)),
				dimStyle.Render(unit.LastTransitionAt.Format("2006-01-02 15:04")),
				dimStyle.Render(unit.LastActor))
		}
		fmt.Fprintln(cmd.OutOrStdout())
	}
	return nil
}
