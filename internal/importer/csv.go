package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"titlevault/internal/catalog"
	"titlevault/internal/config"
	"titlevault/internal/logging"
	"titlevault/internal/reconcile"
	"titlevault/internal/services"
)

// identityFields are the columns of which at least one must be present for a
// spreadsheet to be importable.
var identityFields = []string{
	config.FieldShortID,
	config.FieldCanonicalID,
	config.FieldPackageURL,
	config.FieldLicenseToken,
}

// ImportCSV imports a delimited spreadsheet. An empty source falls back to
// the remote spreadsheet configured for batch.
func (im *Importer) ImportCSV(ctx context.Context, source string, batch Batch) (Result, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		source = im.cfg.SourceURL(batch.String())
	}
	if source == "" {
		return Result{}, services.Wrap(services.ErrConfiguration, "importer", "import csv",
			fmt.Sprintf("no source given and import.%s_url is not set", batch.String()), nil)
	}

	res := newResult(source)
	start := time.Now()
	logger := logging.WithContext(ctx, im.logger)
	logger.Info("csv import started",
		logging.String("source", source),
		logging.String("batch", batch.String()))

	rc, err := im.open(ctx, source)
	if err != nil {
		return res, err
	}
	defer rc.Close()

	err = im.readCSV(ctx, logger, rc, batch, &res)
	res.Duration = time.Since(start)
	im.logFinished(logger, "csv import finished", res)
	return res, err
}

func (im *Importer) readCSV(ctx context.Context, logger *slog.Logger, r io.Reader, batch Batch, res *Result) error {
	reader := csv.NewReader(r)
	reader.Comma = im.cfg.SeparatorRune()
	reader.Comment = '#'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return services.Wrap(services.ErrValidation, "importer", "read header", res.Source, err)
	}
	columns := im.columnIndex(header)
	if !hasAnyColumn(columns, identityFields) {
		want := make([]string, 0, len(identityFields))
		for _, f := range identityFields {
			want = append(want, im.cfg.Column(f))
		}
		return services.Wrap(services.ErrValidation, "importer", "read header",
			fmt.Sprintf("none of the columns %q found in %s", want, res.Source), nil)
	}

	for {
		if stopRequested(ctx, res) {
			return nil
		}
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			var parseErr *csv.ParseError
			if !errors.As(err, &parseErr) {
				return fmt.Errorf("read %s: %w", res.Source, err)
			}
			res.Skipped++
			logging.WarnWithContext(logger, "unreadable spreadsheet line skipped", "csv_parse_error",
				logging.Int(logging.FieldRow, parseErr.Line),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check quoting and the import.separator setting"))
			continue
		}
		if blankRecord(record) {
			continue
		}
		line, _ := reader.FieldPos(0)
		row := im.buildRow(logger, columns, record, batch, line)
		if err := im.feed(ctx, line, row, res); err != nil {
			return err
		}
	}
}

// columnIndex maps row fields to header positions.
func (im *Importer) columnIndex(header []string) map[string]int {
	columns := make(map[string]int, len(config.ColumnFields))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		for _, field := range config.ColumnFields {
			if _, seen := columns[field]; seen {
				continue
			}
			if strings.EqualFold(h, im.cfg.Column(field)) {
				columns[field] = i
			}
		}
	}
	return columns
}

func hasAnyColumn(columns map[string]int, fields []string) bool {
	for _, f := range fields {
		if _, ok := columns[f]; ok {
			return true
		}
	}
	return false
}

func blankRecord(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func (im *Importer) buildRow(logger *slog.Logger, columns map[string]int, record []string, batch Batch, line int) reconcile.Row {
	get := func(field string) *string {
		idx, ok := columns[field]
		if !ok || idx >= len(record) {
			return nil
		}
		v := strings.TrimSpace(record[idx])
		if v == "" {
			return nil
		}
		return &v
	}

	row := reconcile.Row{
		ShortID:         get(config.FieldShortID),
		CanonicalID:     get(config.FieldCanonicalID),
		Name:            get(config.FieldName),
		AltName:         get(config.FieldAltName),
		PackageURL:      get(config.FieldPackageURL),
		LicenseToken:    get(config.FieldLicenseToken),
		DefaultCategory: batch.DefaultCategory(),
	}
	if raw := get(config.FieldCategory); raw != nil {
		category, err := catalog.ParseCategory(*raw)
		if err != nil {
			logging.WarnWithContext(logger, "unrecognized category ignored", "category_invalid",
				logging.Int(logging.FieldRow, line),
				logging.String("category", *raw),
				logging.String(logging.FieldImpact, "batch default category applies"))
		} else {
			row.Category = &category
		}
	}
	return row
}
