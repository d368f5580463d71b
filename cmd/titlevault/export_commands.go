package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"titlevault/internal/catalog"
	"titlevault/internal/config"
	"titlevault/internal/fileutil"
	"titlevault/internal/importer"
	"titlevault/internal/services"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Write catalog records for downstream tools",
	}

	exportCmd.AddCommand(newExportCSVCommand(ctx))
	exportCmd.AddCommand(newExportLicensesCommand(ctx))

	return exportCmd
}

func newExportCSVCommand(ctx *commandContext) *cobra.Command {
	var batchFlag string
	var output string
	cmd := &cobra.Command{
		Use:   "csv",
		Short: "Export records with a package or license as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			batch, err := importer.ParseBatch(batchFlag)
			if err != nil {
				return services.Wrap(services.ErrValidation, "cli", "export csv", "", err)
			}
			return ctx.withStore(func(store *catalog.Store, _ *slog.Logger) error {
				return writeExport(cmd, output, func(w io.Writer) (int, error) {
					return importer.ExportCSV(ctx.runContext(cmd), store, ctx.configValue(), w, batch)
				})
			})
		},
	}
	cmd.Flags().StringVarP(&batchFlag, "batch", "b", "apps", "Batch type: apps, dlc or psm")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination file (defaults to stdout)")
	return cmd
}

func newExportLicensesCommand(ctx *commandContext) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "licenses",
		Short: "Export every license token, one per line",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(store *catalog.Store, _ *slog.Logger) error {
				return writeExport(cmd, output, func(w io.Writer) (int, error) {
					return importer.ExportLicenses(ctx.runContext(cmd), store, w)
				})
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination file (defaults to stdout)")
	return cmd
}

// writeExport runs write against stdout or a file. The file is only moved
// into place once the export completed.
func writeExport(cmd *cobra.Command, output string, write func(io.Writer) (int, error)) error {
	output = strings.TrimSpace(output)
	if output == "" {
		n, err := write(cmd.OutOrStdout())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d records\n", n)
		return nil
	}

	target, err := config.ExpandPath(output)
	if err != nil {
		return fmt.Errorf("resolve output path: %w", err)
	}
	var n int
	if err := fileutil.WriteAtomic(target, 0o644, func(w io.Writer) error {
		var werr error
		n, werr = write(w)
		return werr
	}); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d records to %s\n", n, target)
	return nil
}
