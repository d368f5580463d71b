package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"titlevault/internal/catalog"
	"titlevault/internal/preflight"
)

func newHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the catalog database and runtime environment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *catalog.Store, _ *slog.Logger) error {
				runCtx := ctx.runContext(cmd)
				health, healthErr := store.CheckHealth(runCtx)
				results := preflight.RunAll(runCtx, ctx.configValue())
				results = append(databaseResults(health, healthErr), results...)

				if ctx.jsonOutput() {
					if err := writeJSON(cmd, healthSummary{Database: health, Checks: results}); err != nil {
						return err
					}
				} else {
					printHealth(cmd, results)
				}
				if !preflight.AllPassed(results) {
					return errors.New("health: one or more checks failed")
				}
				return nil
			})
		},
	}
}

type healthSummary struct {
	Database catalog.DatabaseHealth `json:"database"`
	Checks   []preflight.Result     `json:"checks"`
}

// databaseResults folds the database diagnostics into preflight results so
// both render the same way.
func databaseResults(h catalog.DatabaseHealth, err error) []preflight.Result {
	if err != nil {
		return []preflight.Result{{Name: "Catalog database", Detail: fmt.Sprintf("%s (error: %v)", h.DBPath, err)}}
	}
	results := []preflight.Result{{
		Name:   "Catalog database",
		Passed: h.DatabaseExists && h.DatabaseReadable,
		Detail: fmt.Sprintf("%s (schema v%d)", h.DBPath, h.SchemaVersion),
	}}
	schema := preflight.Result{Name: "Catalog schema", Passed: len(h.MissingColumns) == 0, Detail: "all columns present"}
	if !schema.Passed {
		schema.Detail = "missing columns: " + strings.Join(h.MissingColumns, ", ")
	}
	results = append(results, schema)
	integrity := preflight.Result{Name: "Catalog integrity", Passed: h.IntegrityCheck, Detail: "ok"}
	if !h.IntegrityCheck {
		integrity.Detail = "integrity_check failed"
	}
	results = append(results, integrity, preflight.Result{
		Name:   "Catalog contents",
		Passed: true,
		Detail: strconv.Itoa(h.TotalRecords) + " records, " + strconv.Itoa(h.TotalPackages) + " packages",
	})
	return results
}

func printHealth(cmd *cobra.Command, results []preflight.Result) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	for _, line := range renderSectionHeader("Health", colorize) {
		fmt.Fprintln(out, line)
	}
	for _, r := range results {
		fmt.Fprintln(out, renderStatusLine(r.Name, passedKind(r.Passed), r.Detail, colorize))
	}
}
