package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"titlevault/internal/catalog"
	"titlevault/internal/maintenance"
	"titlevault/internal/metrics"
)

func newMaintenanceCommand(ctx *commandContext) *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "maintenance",
		Short: "Run the catalog integrity passes",
		Long: "Run every integrity pass in order. Repair passes fix records in place;\n" +
			"report-only passes list dangling and add-on parent ids. A pass that\n" +
			"reports FAIL found something; ERROR means the pass could not finish.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *catalog.Store, logger *slog.Logger) error {
				runCtx := ctx.runContext(cmd)
				fmt.Fprintf(cmd.ErrOrStderr(), "Run id: %s\n", ctx.runID)
				reports, runErr := maintenance.NewEngine(store, logger).Run(runCtx)

				ctx.publishMetrics(runCtx, "maintenance", store, logger, func(r *metrics.Recorder) {
					r.ObserveMaintenance(reports)
				})

				var printErr error
				if ctx.jsonOutput() {
					printErr = writeJSON(cmd, summarizePasses(reports))
				} else {
					printPassReports(cmd, reports, verbose)
				}
				switch {
				case runErr != nil:
					return runErr
				case printErr != nil:
					return printErr
				case maintenance.Failed(reports):
					return errors.New("maintenance: one or more passes could not finish")
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "List every repair")
	return cmd
}

type passSummary struct {
	Name       string   `json:"name"`
	Status     string   `json:"status"`
	Repaired   int      `json:"repaired"`
	Repairs    []string `json:"repairs,omitempty"`
	Unresolved []string `json:"unresolved,omitempty"`
	Error      string   `json:"error,omitempty"`
}

func summarizePasses(reports []maintenance.PassReport) []passSummary {
	out := make([]passSummary, 0, len(reports))
	for _, r := range reports {
		s := passSummary{
			Name:       r.Name,
			Status:     string(r.Status),
			Repaired:   r.Repaired,
			Unresolved: r.Unresolved,
		}
		for _, rep := range r.Repairs {
			s.Repairs = append(s.Repairs, rep.String())
		}
		if r.Err != nil && !errors.Is(r.Err, context.Canceled) {
			s.Error = r.Err.Error()
		}
		out = append(out, s)
	}
	return out
}

func printPassReports(cmd *cobra.Command, reports []maintenance.PassReport, verbose bool) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	for _, line := range renderSectionHeader("Maintenance", colorize) {
		fmt.Fprintln(out, line)
	}
	for _, r := range reports {
		fmt.Fprintln(out, renderStatusLine(r.Name, passStatusKind(r.Status), passMessage(r), colorize))
		if verbose {
			for _, rep := range r.Repairs {
				fmt.Fprintf(out, "      %s\n", rep)
			}
		}
		for _, id := range r.Unresolved {
			fmt.Fprintf(out, "      %s\n", id)
		}
	}
}

func passMessage(r maintenance.PassReport) string {
	switch r.Status {
	case maintenance.StatusError:
		return fmt.Sprintf("%s: %v", r.Status, r.Err)
	case maintenance.StatusCancelled:
		return string(r.Status)
	}
	switch {
	case r.Repaired > 0:
		return fmt.Sprintf("%s: repaired %d records", r.Status, r.Repaired)
	case len(r.Unresolved) > 0:
		return fmt.Sprintf("%s: %d unresolved", r.Status, len(r.Unresolved))
	default:
		return string(r.Status)
	}
}
