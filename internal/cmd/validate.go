package cmd

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Priivacy-ai/spec-kitty-sub010/internal/config"
	"github.com/Priivacy-ai/spec-kitty-sub010/internal/validate"
)

var validateFlags struct {
	stream string
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Audit recorded status state",
	Long: `Replay the event logs against the schema and the legal-transition table and
compare the derived views (snapshots, legacy documents) against a fresh
reduction. Nothing is modified; findings are reported with rule and severity,
and drift severity depends on the active phase.`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVarP(&validateFlags.stream, "stream", "s", "", "limit validation to one work stream")
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	log := newLogger(cfg, "validate")
	defer log.Close()

	v := validate.New(repoRoot(), cfg, log)

	var (
		reports []*validate.Report
		err     error
	)
	if validateFlags.stream != "" {
		var report *validate.Report
		report, err = v.Stream(validateFlags.stream)
		if report != nil {
			reports = append(reports, report)
		}
	} else {
		reports, err = v.All()
	}
	if err != nil {
		return err
	}
	if len(reports) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No work streams recorded")
		return nil
	}

	totalErrors := 0
	for _, report := range reports {
		totalErrors += report.Errors()
		if len(report.Findings) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", okStyle.Render("ok"), report.WorkStream)
			continue
		}

		fmt.Fprintf(cmd.OutOrStdout(), "%s (phase %s, %d errors, %d warnings)\n",
			headStyle.Render(report.WorkStream), report.Phase.Phase,
			report.Errors(), report.Warnings())

		tw := table.NewWriter()
		tw.SetOutputMirror(cmd.OutOrStdout())
		tw.AppendHeader(table.Row{"Severity", "Rule", "Unit", "Event", "Message"})
		for _, f := range report.Findings {
			unit := f.Unit
			if unit == "" && f.Line > 0 {
				unit = fmt.Sprintf("line %d", f.Line)
			}
			tw.AppendRow(table.Row{f.Severity, f.Rule, unit, f.EventID, f.Message})
		}
		tw.Render()
		fmt.Fprintln(cmd.OutOrStdout())
	}

	if totalErrors > 0 {
		return fmt.Errorf("validation found %d errors", totalErrors)
	}
	return nil
}
