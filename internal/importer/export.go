package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"

	"titlevault/internal/catalog"
	"titlevault/internal/config"
)

// ExportStore is the catalog surface exports read from.
type ExportStore interface {
	All(ctx context.Context) iter.Seq2[*catalog.Record, error]
	GetPackage(ctx context.Context, id int64) (*catalog.Package, error)
}

var exportHeader = []string{"TITLE_ID", "REGION", "NAME", "PKG_URL", "ZRIF"}

// ExportCSV writes every record of batch's category range that carries a
// package or a license token. It returns the number of records written.
func ExportCSV(ctx context.Context, store ExportStore, cfg *config.Config, w io.Writer, batch Batch) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return 0, fmt.Errorf("write export header: %w", err)
	}

	written := 0
	for rec, err := range store.All(ctx) {
		if err != nil {
			return written, err
		}
		if err := ctx.Err(); err != nil {
			cw.Flush()
			return written, err
		}
		if !batch.Contains(rec.Category) || (rec.PackageID == 0 && rec.LicenseToken == "") {
			continue
		}
		var pkgURL string
		if rec.PackageID != 0 {
			pkg, err := store.GetPackage(ctx, rec.PackageID)
			switch {
			case err == nil:
				pkgURL = pkg.URL
			case !errors.Is(err, catalog.ErrNotFound):
				return written, err
			}
		}
		if err := cw.Write([]string{
			rec.ShortID,
			cfg.RegionName(rec.ShortID),
			rec.Name,
			pkgURL,
			rec.LicenseToken,
		}); err != nil {
			return written, fmt.Errorf("write export row: %w", err)
		}
		written++
	}
	cw.Flush()
	return written, cw.Error()
}

// ExportLicenses writes every real license token, one per line. The
// not-required sentinel is never exported.
func ExportLicenses(ctx context.Context, store ExportStore, w io.Writer) (int, error) {
	written := 0
	for rec, err := range store.All(ctx) {
		if err != nil {
			return written, err
		}
		if err := ctx.Err(); err != nil {
			return written, err
		}
		if !strings.HasPrefix(rec.LicenseToken, catalog.LicenseTokenPrefix) {
			continue
		}
		if _, err := io.WriteString(w, rec.LicenseToken+"\n"); err != nil {
			return written, fmt.Errorf("write license token: %w", err)
		}
		written++
	}
	return written, nil
}
