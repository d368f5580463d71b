package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"titlevault/internal/config"
	"titlevault/internal/logging"
	"titlevault/internal/reconcile"
	"titlevault/internal/services"
)

// Reconciler merges one row into the catalog.
type Reconciler interface {
	MergeAndUpsert(ctx context.Context, row reconcile.Row) (reconcile.Outcome, error)
}

// Importer feeds import sources into a Reconciler.
type Importer struct {
	cfg    *config.Config
	engine Reconciler
	http   *http.Client
	search SearchClient
	logger *slog.Logger
}

// Option customizes an Importer.
type Option func(*Importer)

// WithHTTPClient overrides the client used to download remote sources.
func WithHTTPClient(client *http.Client) Option {
	return func(im *Importer) {
		if client != nil {
			im.http = client
		}
	}
}

// New constructs an Importer.
func New(cfg *config.Config, engine Reconciler, logger *slog.Logger, opts ...Option) *Importer {
	timeout := 2 * time.Minute
	im := &Importer{
		cfg:    cfg,
		engine: engine,
		http:   &http.Client{Timeout: timeout},
		logger: logging.NewComponentLogger(logger, "importer"),
	}
	im.search = webSearch{im: im}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

// feed runs one row through the engine. The row always completes once
// started, so a cancelled ctx never leaves it half written; callers check
// cancellation before each row.
func (im *Importer) feed(ctx context.Context, line int, row reconcile.Row, res *Result) error {
	rowCtx := context.WithoutCancel(services.WithRow(ctx, line))
	outcome, err := im.engine.MergeAndUpsert(rowCtx, row)
	if err != nil {
		return fmt.Errorf("row %d: %w", line, err)
	}
	res.record(outcome)
	return nil
}

// stopRequested marks res cancelled when ctx is done.
func stopRequested(ctx context.Context, res *Result) bool {
	if ctx.Err() != nil {
		res.Cancelled = true
		return true
	}
	return false
}

func isHTTP(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// open returns a reader for a local file or an http(s) URL.
func (im *Importer) open(ctx context.Context, source string) (io.ReadCloser, error) {
	if !isHTTP(source) {
		f, err := os.Open(source)
		if errors.Is(err, os.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "importer", "open source", source, err)
		}
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "importer", "open source", source, err)
		}
		return f, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "importer", "build request", source, err)
	}
	if ua := strings.TrimSpace(im.cfg.Packages.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}
	resp, err := im.http.Do(req)
	if err != nil {
		marker := services.ErrTransient
		if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
			marker = services.ErrTimeout
		}
		return nil, services.Wrap(marker, "importer", "download source", source, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, services.Wrap(services.ErrExternalTool, "importer", "download source",
			fmt.Sprintf("%s: status %s", source, resp.Status), nil)
	}
	return resp.Body, nil
}

func (im *Importer) logFinished(logger *slog.Logger, msg string, res Result) {
	logger.Info(msg,
		logging.String("source", res.Source),
		logging.Int("rows", res.Rows),
		logging.Int("inserted", res.Inserted),
		logging.Int("updated", res.Updated),
		logging.Int("unchanged", res.Unchanged),
		logging.Int("rejected", res.Rejected),
		logging.Int("skipped", res.Skipped),
		logging.Bool("cancelled", res.Cancelled),
		logging.Duration("duration", res.Duration),
	)
}
