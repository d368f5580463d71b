package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"titlevault/internal/extract"
	"titlevault/internal/logging"
	"titlevault/internal/reconcile"
	"titlevault/internal/services"
)

// SearchClient fetches one page of web search results for a title code.
type SearchClient interface {
	Search(ctx context.Context, titleID, language string, page int) (io.ReadCloser, error)
}

// WithSearchClient overrides the client Sweep searches with.
func WithSearchClient(client SearchClient) Option {
	return func(im *Importer) {
		if client != nil {
			im.search = client
		}
	}
}

// webSearch fetches the expanded sweep.search_url template.
type webSearch struct {
	im *Importer
}

func (w webSearch) Search(ctx context.Context, titleID, language string, page int) (io.ReadCloser, error) {
	return w.im.open(ctx, w.im.cfg.SearchURL(language, titleID, page))
}

// Sweep looks up every title code of the configured range in each sweep
// region and reconciles the first store link found for it as an
// application. Codes without a match are counted as skipped. A search that
// fails outright aborts the sweep.
func (im *Importer) Sweep(ctx context.Context) (Result, error) {
	sw := im.cfg.Sweep
	regions := im.cfg.SweepRegions()
	res := newResult(fmt.Sprintf("sweep %s %05d-%05d", strings.Join(regions, ","), sw.First, sw.Last))
	if _, builtin := im.search.(webSearch); builtin && sw.SearchURL == "" {
		return res, services.Wrap(services.ErrConfiguration, "importer", "sweep", "sweep.search_url is not set", nil)
	}

	start := time.Now()
	logger := logging.WithContext(ctx, im.logger)
	logger.Info("title sweep started",
		logging.String("source", res.Source),
		logging.Int("titles", len(regions)*(sw.Last-sw.First+1)))

	err := im.sweep(ctx, logger, regions, &res)
	res.Duration = time.Since(start)
	im.logFinished(logger, "title sweep finished", res)
	return res, err
}

func (im *Importer) sweep(ctx context.Context, logger *slog.Logger, regions []string, res *Result) error {
	sw := im.cfg.Sweep
	line := 0
	for _, region := range regions {
		language := im.cfg.SearchLanguage(region)
		for n := sw.First; n <= sw.Last; n++ {
			if stopRequested(ctx, res) {
				return nil
			}
			line++
			titleID := fmt.Sprintf("%s%05d", region, n)
			id, err := im.searchTitle(ctx, logger, titleID, language)
			if err != nil {
				// Nothing was written for this title yet.
				if ctx.Err() != nil {
					res.Cancelled = true
					return nil
				}
				return fmt.Errorf("search %s: %w", titleID, err)
			}
			if id == "" {
				res.Skipped++
				continue
			}
			row := reconcile.Row{
				ShortID:         reconcile.Field(titleID),
				CanonicalID:     reconcile.Field(id),
				DefaultCategory: BatchApps.DefaultCategory(),
			}
			if err := im.feed(ctx, line, row, res); err != nil {
				return err
			}
		}
	}
	return nil
}

// searchTitle returns the first content ID linked for titleID within the
// configured number of result pages, or "" when no page mentions it.
func (im *Importer) searchTitle(ctx context.Context, logger *slog.Logger, titleID, language string) (string, error) {
	for page := 1; page <= im.cfg.Sweep.Pages; page++ {
		rc, err := im.search.Search(ctx, titleID, language, page)
		if err != nil {
			return "", err
		}
		id, err := extract.ScanSearchResults(rc, titleID)
		rc.Close()
		switch {
		case err == nil:
			return id, nil
		case errors.Is(err, extract.ErrNoContentID):
		default:
			logging.WarnWithContext(logger, "unreadable search page", "sweep_page_unreadable",
				logging.String(logging.FieldShortID, titleID),
				logging.Int("page", page),
				logging.Error(err),
				logging.String(logging.FieldImpact, "page ignored"))
		}
	}
	logger.Debug("no store link found", logging.String(logging.FieldShortID, titleID))
	return "", nil
}
