package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Priivacy-ai/spec-kitty-sub010/internal/config"
	"github.com/Priivacy-ai/spec-kitty-sub010/internal/emit"
	"github.com/Priivacy-ai/spec-kitty-sub010/internal/event"
)

var emitFlags struct {
	stream    string
	actor     string
	agent     bool
	force     bool
	reason    string
	reviewRef string
	reviewer  string
	verdict   string
	commits   []string
}

var emitCmd = &cobra.Command{
	Use:   "emit <unit> <lane>",
	Short: "Record a lane transition for a work package",
	Long: `Record one lifecycle transition as an immutable event in the work stream's
append-only log, then rematerialize the snapshot and refresh the legacy views
(phase permitting).

Transitions outside the legal table require --force with a --reason; moving a
unit to done requires reviewer evidence (--reviewer and --verdict) unless
forced.`,
	Args: cobra.ExactArgs(2),
	RunE: runEmit,
}

func init() {
	rootCmd.AddCommand(emitCmd)

	emitCmd.Flags().StringVarP(&emitFlags.stream, "stream", "s", "", "work stream id (required)")
	emitCmd.Flags().StringVarP(&emitFlags.actor, "actor", "a", "", "who is making the transition (required)")
	emitCmd.Flags().BoolVar(&emitFlags.agent, "agent", false, "mark the transition as agent-emitted")
	emitCmd.Flags().BoolVar(&emitFlags.force, "force", false, "bypass the legal-transition table (requires --reason)")
	emitCmd.Flags().StringVar(&emitFlags.reason, "reason", "", "justification for forced or canceling transitions")
	emitCmd.Flags().StringVar(&emitFlags.reviewRef, "review-ref", "", "review reference; marks a for_review -> in_progress event as a reviewer rollback")
	emitCmd.Flags().StringVar(&emitFlags.reviewer, "reviewer", "", "reviewer granting completion evidence")
	emitCmd.Flags().StringVar(&emitFlags.verdict, "verdict", "", "reviewer verdict for completion evidence")
	emitCmd.Flags().StringSliceVar(&emitFlags.commits, "commit", nil, "commit hash to attach to completion evidence (repeatable)")
	_ = emitCmd.MarkFlagRequired("stream")
	_ = emitCmd.MarkFlagRequired("actor")
}

func runEmit(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	log := newLogger(cfg, "emit")
	defer log.Close()

	req := emit.Request{
		WorkStream: emitFlags.stream,
		Unit:       args[0],
		ToLane:     args[1],
		Actor:      emitFlags.actor,
		Force:      emitFlags.force,
		Reason:     emitFlags.reason,
		ReviewRef:  emitFlags.reviewRef,
	}
	if emitFlags.agent {
		req.Mode = event.ModeAgent
	}
	if emitFlags.reviewer != "" || emitFlags.verdict != "" {
		req.Evidence = &event.DoneEvidence{
			Approval: event.ReviewerApproval{
				Reviewer: emitFlags.reviewer,
				Verdict:  emitFlags.verdict,
			},
			Commits: emitFlags.commits,
		}
	}

	result := newEmitter(cfg, log).Emit(req)
	for _, warning := range result.Warnings {
		fmt.Fprintln(cmd.ErrOrStderr(), warnStyle.Render("warning: "+warning))
	}
	if !result.OK {
		for _, err := range result.Errs {
			fmt.Fprintln(cmd.ErrOrStderr(), errorStyle.Render(err.Error()))
		}
		return fmt.Errorf("emission rejected")
	}

	ev := result.Event
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s -> %s (%s)\n",
		okStyle.Render("recorded"), ev.Unit,
		laneStyle(ev.EffectiveFrom()).Render(ev.EffectiveFrom().String()),
		laneStyle(ev.To).Render(ev.To.String()),
		ev.EventID)
	return nil
}
