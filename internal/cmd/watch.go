package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Priivacy-ai/spec-kitty-sub010/internal/config"
	"github.com/Priivacy-ai/spec-kitty-sub010/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep snapshots fresh as event logs change",
	Long: `Watch every work stream's event log and rematerialize its snapshot (and
legacy views, phase permitting) whenever the log changes on disk, for
example after a git pull or an append from another worktree. Runs until
interrupted.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	log := newLogger(cfg, "watch")
	defer log.Close()

	watcher, err := watch.New(repoRoot(), newEmitter(cfg, log), log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Fprintln(cmd.OutOrStdout(), "Watching event logs (ctrl-c to stop)")
	if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
