package importer

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"titlevault/internal/extract"
	"titlevault/internal/identity"
	"titlevault/internal/logging"
	"titlevault/internal/reconcile"
	"titlevault/internal/services"
)

const maxLineLength = 1 << 20

// ImportLicenses imports a list of license tokens, one per line. Blank lines
// and lines starting with '#' are ignored.
func (im *Importer) ImportLicenses(ctx context.Context, source string) (Result, error) {
	return im.importLines(ctx, source, "license import", "#", func(_ *slog.Logger, line string) (reconcile.Row, bool) {
		return reconcile.Row{LicenseToken: reconcile.Field(line)}, true
	})
}

// ImportURLs imports store URLs and package URLs. source is either a single
// http(s) URL or a file listing one URL per line; lines starting with '#' or
// ';' are comments.
func (im *Importer) ImportURLs(ctx context.Context, source string) (Result, error) {
	parse := func(logger *slog.Logger, line string) (reconcile.Row, bool) {
		if extract.IsStoreURL(line) {
			id, ok := extract.ContentIDFromStoreURL(line)
			if !ok {
				logging.WarnWithContext(logger, "store url without content id skipped", "store_url_invalid",
					logging.String("url", line),
					logging.String(logging.FieldErrorHint, "store URLs must contain /cid=<content id>"))
				return reconcile.Row{}, false
			}
			return reconcile.Row{CanonicalID: reconcile.Field(id)}, true
		}
		if !isHTTP(line) {
			logging.WarnWithContext(logger, "unsupported url skipped", "url_invalid",
				logging.String("url", line),
				logging.String(logging.FieldErrorHint, "only store and http(s) package URLs are accepted"))
			return reconcile.Row{}, false
		}
		return reconcile.Row{PackageURL: reconcile.Field(line)}, true
	}

	source = strings.TrimSpace(source)
	if isHTTP(source) {
		res := newResult(source)
		start := time.Now()
		logger := logging.WithContext(ctx, im.logger)
		row, ok := parse(logger, source)
		switch {
		case !ok:
			res.Skipped++
		case stopRequested(ctx, &res):
		default:
			if err := im.feed(ctx, 1, row, &res); err != nil {
				return res, err
			}
		}
		res.Duration = time.Since(start)
		im.logFinished(logger, "url import finished", res)
		return res, nil
	}
	return im.importLines(ctx, source, "url import", "#;", parse)
}

// importLines feeds one row per line of source. Blank lines and lines
// starting with any byte of comments are ignored.
func (im *Importer) importLines(ctx context.Context, source, what, comments string, parse func(*slog.Logger, string) (reconcile.Row, bool)) (Result, error) {
	source = strings.TrimSpace(source)
	res := newResult(source)
	if source == "" {
		return res, services.Wrap(services.ErrValidation, "importer", what, "an input file is required", nil)
	}
	start := time.Now()
	logger := logging.WithContext(ctx, im.logger)
	logger.Info(what+" started", logging.String("source", source))

	rc, err := im.open(ctx, source)
	if err != nil {
		return res, err
	}
	defer rc.Close()

	err = im.scanLines(ctx, logger, rc, comments, &res, parse)
	res.Duration = time.Since(start)
	im.logFinished(logger, what+" finished", res)
	return res, err
}

func (im *Importer) scanLines(ctx context.Context, logger *slog.Logger, r io.Reader, comments string, res *Result, parse func(*slog.Logger, string) (reconcile.Row, bool)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if stopRequested(ctx, res) {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.ContainsRune(comments, rune(line[0])) {
			continue
		}
		row, ok := parse(logging.WithContext(services.WithRow(ctx, lineNo), logger), line)
		if !ok {
			res.Skipped++
			continue
		}
		if err := im.feed(ctx, lineNo, row, res); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// ImportSearchPage reconciles the first store link for shortID found on a
// saved search result page.
func (im *Importer) ImportSearchPage(ctx context.Context, source, shortID string, batch Batch) (Result, error) {
	source = strings.TrimSpace(source)
	res := newResult(source)
	short, err := identity.NormalizeShortID(shortID)
	if err != nil {
		return res, services.Wrap(services.ErrValidation, "importer", "import search page", "", err)
	}
	start := time.Now()
	logger := logging.WithContext(ctx, im.logger).With(logging.String(logging.FieldShortID, short))

	rc, err := im.open(ctx, source)
	if err != nil {
		return res, err
	}
	defer rc.Close()

	id, err := extract.ScanSearchResults(rc, short)
	switch {
	case errors.Is(err, extract.ErrNoContentID):
		res.Skipped++
		logging.WarnWithContext(logger, "no store link found on search page", "search_no_match",
			logging.String("source", source),
			logging.String(logging.FieldErrorHint, "save a result page that links the title's store entry"))
	case err != nil:
		return res, services.Wrap(services.ErrValidation, "importer", "parse search page", source, err)
	case stopRequested(ctx, &res):
	default:
		row := reconcile.Row{
			ShortID:         reconcile.Field(short),
			CanonicalID:     reconcile.Field(id),
			DefaultCategory: batch.DefaultCategory(),
		}
		if err := im.feed(ctx, 1, row, &res); err != nil {
			return res, err
		}
	}
	res.Duration = time.Since(start)
	im.logFinished(logger, "search page import finished", res)
	return res, nil
}
