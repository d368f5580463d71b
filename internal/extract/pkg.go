package extract

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"titlevault/internal/identity"
	"titlevault/internal/logging"
	"titlevault/internal/pkgcache"
	"titlevault/internal/reconcile"
)

var (
	// ErrUnreachablePackage reports a package URL that could not be fetched.
	ErrUnreachablePackage = errors.New("package unreachable")
	// ErrMalformedPackage reports a response that is not a package header.
	ErrMalformedPackage = errors.New("malformed package header")
)

const (
	packageHeaderSize      = 256
	packageSizeOffset      = 0x18
	packageContentIDOffset = 0x30

	defaultUserAgent   = "titlevault/dev"
	defaultHTTPTimeout = 30 * time.Second
)

var packageMagic = []byte{0x7F, 'P', 'K', 'G'}

// PackageConfig configures a PackageResolver.
type PackageConfig struct {
	UserAgent  string
	Timeout    time.Duration
	HTTPClient *http.Client
	// Cache is optional.
	Cache  *pkgcache.Cache
	Logger *slog.Logger
}

// PackageResolver reads package headers with a ranged HTTP GET.
type PackageResolver struct {
	userAgent string
	http      *http.Client
	cache     *pkgcache.Cache
	logger    *slog.Logger
}

// NewPackageResolver builds a resolver from cfg.
func NewPackageResolver(cfg PackageConfig) *PackageResolver {
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultHTTPTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	return &PackageResolver{
		userAgent: userAgent,
		http:      client,
		cache:     cfg.Cache,
		logger:    logging.NewComponentLogger(cfg.Logger, "pkg"),
	}
}

// Resolve returns the content ID and total size recorded in the header of the
// package at url.
func (r *PackageResolver) Resolve(ctx context.Context, url string) (reconcile.PackageInfo, error) {
	url = strings.TrimSpace(url)
	if r.cache != nil {
		if entry, ok := r.cache.Lookup(url); ok {
			return reconcile.PackageInfo{ContentID: entry.ContentID, Size: entry.Size}, nil
		}
	}

	header, err := r.fetchHeader(ctx, url)
	if err != nil {
		return reconcile.PackageInfo{}, err
	}
	info, err := ParsePackageHeader(header)
	if err != nil {
		return reconcile.PackageInfo{}, fmt.Errorf("%s: %w", url, err)
	}

	if r.cache != nil {
		if err := r.cache.Store(pkgcache.Entry{URL: url, ContentID: info.ContentID, Size: info.Size}); err != nil {
			logging.WarnWithContext(logging.WithContext(ctx, r.logger), "failed to cache package header", "pkgcache_store_failed",
				logging.String("url", url),
				logging.Error(err),
				logging.String(logging.FieldImpact, "the header will be fetched again next time"))
		}
	}
	return info, nil
}

func (r *PackageResolver) fetchHeader(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreachablePackage, url, err)
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=0-%d", packageHeaderSize-1))
	req.Header.Set("User-Agent", r.userAgent)

	start := time.Now()
	resp, err := r.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreachablePackage, url, err)
	}
	defer resp.Body.Close()

	r.logger.Debug("package header request",
		logging.String("url", url),
		logging.Int("status", resp.StatusCode),
		logging.Duration("duration", time.Since(start)))

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return nil, fmt.Errorf("%w: %s: status %s", ErrUnreachablePackage, url, resp.Status)
	}

	header := make([]byte, packageHeaderSize)
	if _, err := io.ReadFull(resp.Body, header); err != nil {
		return nil, fmt.Errorf("%w: %s: short header: %v", ErrMalformedPackage, url, err)
	}
	return header, nil
}

// ParsePackageHeader decodes the content ID and size from a package header.
func ParsePackageHeader(header []byte) (reconcile.PackageInfo, error) {
	if len(header) < packageHeaderSize {
		return reconcile.PackageInfo{}, fmt.Errorf("%w: %d bytes", ErrMalformedPackage, len(header))
	}
	if !bytes.Equal(header[:len(packageMagic)], packageMagic) {
		return reconcile.PackageInfo{}, fmt.Errorf("%w: bad magic % x", ErrMalformedPackage, header[:len(packageMagic)])
	}
	contentID := trimField(header[packageContentIDOffset : packageContentIDOffset+contentIDLength])
	if !identity.ValidateCanonicalID(contentID) {
		return reconcile.PackageInfo{}, fmt.Errorf("%w: content id %q", ErrMalformedPackage, contentID)
	}
	size := binary.BigEndian.Uint64(header[packageSizeOffset:])
	return reconcile.PackageInfo{ContentID: contentID, Size: int64(size)}, nil
}
