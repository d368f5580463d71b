package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"titlevault/internal/catalog"
	"titlevault/internal/importer"
	"titlevault/internal/metrics"
	"titlevault/internal/services"
)

func newImportCommand(ctx *commandContext) *cobra.Command {
	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Reconcile external sources into the catalog",
	}

	importCmd.AddCommand(newImportCSVCommand(ctx))
	importCmd.AddCommand(newImportLicensesCommand(ctx))
	importCmd.AddCommand(newImportURLsCommand(ctx))
	importCmd.AddCommand(newImportSearchCommand(ctx))
	importCmd.AddCommand(newImportNPSCommand(ctx))
	importCmd.AddCommand(newImportSweepCommand(ctx))

	return importCmd
}

// importFunc runs one import against a wired importer.
type importFunc func(context.Context, *importer.Importer) ([]importer.Result, error)

func newImportCSVCommand(ctx *commandContext) *cobra.Command {
	var batchFlag string
	cmd := &cobra.Command{
		Use:   "csv [file-or-url]",
		Short: "Import a tab or comma separated spreadsheet",
		Long: "Import a spreadsheet. Without an argument the remote spreadsheet configured\n" +
			"for --batch is downloaded. The batch type is guessed from the file name when\n" +
			"--batch is not given.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var source string
			if len(args) == 1 {
				source = args[0]
			}
			batch, err := resolveBatch(batchFlag, source)
			if err != nil {
				return err
			}
			return runImport(cmd, ctx, "csv", func(runCtx context.Context, im *importer.Importer) ([]importer.Result, error) {
				res, err := im.ImportCSV(runCtx, source, batch)
				return []importer.Result{res}, err
			})
		},
	}
	cmd.Flags().StringVarP(&batchFlag, "batch", "b", "", "Batch type: apps, dlc or psm")
	return cmd
}

func newImportLicensesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "licenses <file-or-url>",
		Short: "Import a list of license tokens, one per line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, ctx, "licenses", func(runCtx context.Context, im *importer.Importer) ([]importer.Result, error) {
				res, err := im.ImportLicenses(runCtx, args[0])
				return []importer.Result{res}, err
			})
		},
	}
}

func newImportURLsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "urls <url-or-file>",
		Short: "Import store or package URLs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, ctx, "urls", func(runCtx context.Context, im *importer.Importer) ([]importer.Result, error) {
				res, err := im.ImportURLs(runCtx, args[0])
				return []importer.Result{res}, err
			})
		},
	}
}

func newImportSearchCommand(ctx *commandContext) *cobra.Command {
	var shortID string
	var batchFlag string
	cmd := &cobra.Command{
		Use:   "search <page-file-or-url>",
		Short: "Resolve a title code from a saved store search page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(shortID) == "" {
				return services.Wrap(services.ErrValidation, "cli", "import search", "--short-id is required", nil)
			}
			batch, err := importer.ParseBatch(batchFlag)
			if err != nil {
				return services.Wrap(services.ErrValidation, "cli", "import search", "", err)
			}
			return runImport(cmd, ctx, "search", func(runCtx context.Context, im *importer.Importer) ([]importer.Result, error) {
				res, err := im.ImportSearchPage(runCtx, args[0], shortID, batch)
				return []importer.Result{res}, err
			})
		},
	}
	cmd.Flags().StringVarP(&shortID, "short-id", "s", "", "Title code to look for, e.g. PCSE00001")
	cmd.Flags().StringVarP(&batchFlag, "batch", "b", "apps", "Batch type: apps, dlc or psm")
	return cmd
}

func newImportNPSCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "nps",
		Short: "Import every configured remote spreadsheet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			var batches []importer.Batch
			for _, b := range importer.Batches {
				if cfg.SourceURL(b.String()) != "" {
					batches = append(batches, b)
				}
			}
			if len(batches) == 0 {
				return services.Wrap(services.ErrConfiguration, "cli", "import nps",
					"set import.apps_url, import.dlc_url or import.psm_url", nil)
			}
			return runImport(cmd, ctx, "nps", func(runCtx context.Context, im *importer.Importer) ([]importer.Result, error) {
				var results []importer.Result
				for _, b := range batches {
					res, err := im.ImportCSV(runCtx, "", b)
					results = append(results, res)
					if err != nil || res.Cancelled {
						return results, err
					}
				}
				return results, nil
			})
		},
	}
}

func newImportSweepCommand(ctx *commandContext) *cobra.Command {
	var (
		first, last int
		regions     []string
	)
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Look up a range of title codes through web search",
		Long: "Searches every title code from <region><first> to <region><last> through\n" +
			"sweep.search_url and imports the first store link found for each as an application.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			if cmd.Flags().Changed("first") {
				cfg.Sweep.First = first
			}
			if cmd.Flags().Changed("last") {
				cfg.Sweep.Last = last
			}
			if len(regions) > 0 {
				cfg.Sweep.Regions = nil
				for _, r := range regions {
					cfg.Sweep.Regions = append(cfg.Sweep.Regions, strings.ToUpper(strings.TrimSpace(r)))
				}
			}
			if err := cfg.Validate(); err != nil {
				return services.Wrap(services.ErrValidation, "cli", "import sweep", "invalid sweep settings", err)
			}
			return runImport(cmd, ctx, "sweep", func(runCtx context.Context, im *importer.Importer) ([]importer.Result, error) {
				res, err := im.Sweep(runCtx)
				return []importer.Result{res}, err
			})
		},
	}
	cmd.Flags().IntVar(&first, "first", 0, "First title number (overrides sweep.first)")
	cmd.Flags().IntVar(&last, "last", 0, "Last title number (overrides sweep.last)")
	cmd.Flags().StringSliceVar(&regions, "region", nil, "Title-code prefix to sweep, repeatable (overrides sweep.regions)")
	return cmd
}

func resolveBatch(flag, source string) (importer.Batch, error) {
	if strings.TrimSpace(flag) == "" {
		return importer.GuessBatch(source), nil
	}
	batch, err := importer.ParseBatch(flag)
	if err != nil {
		return batch, services.Wrap(services.ErrValidation, "cli", "parse batch", "", err)
	}
	return batch, nil
}

// runImport opens the catalog, runs fn, prints its results and publishes
// metrics. A cancelled batch still prints what was committed.
func runImport(cmd *cobra.Command, ctx *commandContext, kind string, fn importFunc) error {
	return ctx.withStore(func(store *catalog.Store, logger *slog.Logger) error {
		im, err := ctx.newImporter(store, logger)
		if err != nil {
			return err
		}
		runCtx := ctx.runContext(cmd)
		fmt.Fprintf(cmd.ErrOrStderr(), "Run id: %s\n", ctx.runID)
		results, err := fn(runCtx, im)

		ctx.publishMetrics(runCtx, "import_"+kind, store, logger, func(r *metrics.Recorder) {
			for _, res := range results {
				r.ObserveImport(kind, res)
			}
		})
		if printErr := printImportResults(cmd, ctx.jsonOutput(), results); printErr != nil && err == nil {
			err = printErr
		}
		if err != nil {
			return err
		}
		for _, res := range results {
			if res.Cancelled {
				return context.Canceled
			}
		}
		return nil
	})
}

type importSummary struct {
	Source    string         `json:"source"`
	Rows      int            `json:"rows"`
	Inserted  int            `json:"inserted"`
	Updated   int            `json:"updated"`
	Unchanged int            `json:"unchanged"`
	Rejected  int            `json:"rejected"`
	Skipped   int            `json:"skipped"`
	Warnings  int            `json:"warnings"`
	Reasons   map[string]int `json:"reasons,omitempty"`
	Cancelled bool           `json:"cancelled"`
	Seconds   float64        `json:"duration_seconds"`
}

func summarizeImport(res importer.Result) importSummary {
	return importSummary{
		Source:    res.Source,
		Rows:      res.Rows,
		Inserted:  res.Inserted,
		Updated:   res.Updated,
		Unchanged: res.Unchanged,
		Rejected:  res.Rejected,
		Skipped:   res.Skipped,
		Warnings:  res.Warnings,
		Reasons:   res.Reasons,
		Cancelled: res.Cancelled,
		Seconds:   res.Duration.Seconds(),
	}
}

func printImportResults(cmd *cobra.Command, asJSON bool, results []importer.Result) error {
	if len(results) == 0 {
		return nil
	}
	if asJSON {
		summaries := make([]importSummary, 0, len(results))
		for _, res := range results {
			summaries = append(summaries, summarizeImport(res))
		}
		return writeJSON(cmd, summaries)
	}

	out := cmd.OutOrStdout()
	headers := []string{"Source", "Rows", "Inserted", "Updated", "Unchanged", "Rejected", "Skipped", "Warnings"}
	aligns := []columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignRight}
	rows := make([][]string, 0, len(results))
	for _, res := range results {
		source := res.Source
		if res.Cancelled {
			source += " (cancelled)"
		}
		rows = append(rows, []string{
			source,
			strconv.Itoa(res.Rows),
			strconv.Itoa(res.Inserted),
			strconv.Itoa(res.Updated),
			strconv.Itoa(res.Unchanged),
			strconv.Itoa(res.Rejected),
			strconv.Itoa(res.Skipped),
			strconv.Itoa(res.Warnings),
		})
	}
	fmt.Fprintln(out, renderTable("Import", headers, rows, aligns))
	for _, res := range results {
		printRejections(out, res)
	}
	return nil
}

func printRejections(out io.Writer, res importer.Result) {
	labels := res.ReasonLabels()
	if len(labels) == 0 {
		return
	}
	fmt.Fprintf(out, "Rejected rows in %s:\n", res.Source)
	for _, label := range labels {
		fmt.Fprintf(out, "  - %s: %d\n", label, res.Reasons[label])
	}
}
