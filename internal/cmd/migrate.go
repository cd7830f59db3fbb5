package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Priivacy-ai/spec-kitty-sub010/internal/config"
	"github.com/Priivacy-ai/spec-kitty-sub010/internal/migrate"
	"github.com/Priivacy-ai/spec-kitty-sub010/internal/store"
	"github.com/Priivacy-ai/spec-kitty-sub010/internal/telemetry"
)

var migrateFlags struct {
	all    bool
	dryRun bool
}

var migrateCmd = &cobra.Command{
	Use:   "migrate [stream]",
	Short: "Import legacy lane history into the event log",
	Long: `Reconstruct event chains from the free-text lane history in the legacy
work-package documents. Each reconstructed event is forced, marked as a
migration, and carries the reason "historical migration". Units with live
events are never touched, and re-running the importer is a no-op.

The previous log content is backed up beside the log before replacement.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)

	migrateCmd.Flags().BoolVar(&migrateFlags.all, "all", false, "migrate every work stream with legacy documents")
	migrateCmd.Flags().BoolVar(&migrateFlags.dryRun, "dry-run", false, "report the would-be event chains without writing")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	log := newLogger(cfg, "migrate")
	defer log.Close()
	root := repoRoot()

	var streams []string
	switch {
	case migrateFlags.all:
		var err error
		streams, err = legacyStreams(root)
		if err != nil {
			return err
		}
	case len(args) == 1:
		streams = args
	default:
		return fmt.Errorf("name a work stream or pass --all")
	}
	if len(streams) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No legacy work streams found")
		return nil
	}

	bus := telemetry.NewBus()
	telemetry.NewCollector(&cfg.Telemetry, log).Attach(bus)
	importer := migrate.New(root, cfg, log, bus)

	for _, stream := range streams {
		report, err := importer.Run(stream, migrateFlags.dryRun)
		if err != nil {
			return fmt.Errorf("migrate %s: %w", stream, err)
		}
		printMigrationReport(cmd, report)
	}
	return nil
}

func printMigrationReport(cmd *cobra.Command, report *migrate.Report) {
	verb := "migrated"
	if report.DryRun {
		verb = "would migrate"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s %d of %d units\n",
		headStyle.Render(report.WorkStream), verb, report.Applied(), len(report.Units))

	for _, unit := range report.Units {
		switch {
		case unit.State == migrate.StateLive:
			fmt.Fprintf(cmd.OutOrStdout(), "  %-24s %s\n", unit.Unit, dimStyle.Render("skipped: has live events"))
		case !unit.Applied:
			fmt.Fprintf(cmd.OutOrStdout(), "  %-24s %s\n", unit.Unit, dimStyle.Render("up to date"))
		default:
			fmt.Fprintf(cmd.OutOrStdout(), "  %-24s %s\n", unit.Unit,
				okStyle.Render(fmt.Sprintf("%d events (%s)", len(unit.Planned), unit.State)))
		}
		for _, warning := range unit.Warnings {
			fmt.Fprintln(cmd.ErrOrStderr(), warnStyle.Render("  warning: "+warning))
		}
	}
	for _, warning := range report.Warnings {
		fmt.Fprintln(cmd.ErrOrStderr(), warnStyle.Render("warning: "+warning))
	}
}

// legacyStreams lists streams that have a legacy document tree, including
// ones with no canonical log yet.
func legacyStreams(root string) ([]string, error) {
	fromDocs, err := migrate.ListLegacyStreams(root)
	if err != nil {
		return nil, err
	}
	fromLogs, err := store.ListStreams(root)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var streams []string
	for _, s := range append(fromDocs, fromLogs...) {
		if !seen[s] {
			seen[s] = true
			streams = append(streams, s)
		}
	}
	return streams, nil
}
