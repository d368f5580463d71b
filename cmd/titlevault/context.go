package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"titlevault/internal/catalog"
	"titlevault/internal/config"
	"titlevault/internal/extract"
	"titlevault/internal/importer"
	"titlevault/internal/logging"
	"titlevault/internal/metrics"
	"titlevault/internal/pkgcache"
	"titlevault/internal/reconcile"
	"titlevault/internal/services"
)

type commandContext struct {
	configFlag *string
	jsonFlag   *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error

	runID string
}

func newCommandContext(configFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		jsonFlag:   jsonFlag,
		runID:      uuid.NewString(),
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = services.Wrap(services.ErrConfiguration, "cli", "load config", path, err)
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		logger, err := logging.NewFromConfig(cfg)
		if err != nil {
			c.loggerErr = fmt.Errorf("init logger: %w", err)
			return
		}
		c.logger = logger
	})
	return c.logger, c.loggerErr
}

// runContext stamps the invocation's run id onto the command context.
func (c *commandContext) runContext(cmd *cobra.Command) context.Context {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return services.WithRunID(ctx, c.runID)
}

// withStore opens the catalog for the duration of fn.
func (c *commandContext) withStore(fn func(*catalog.Store, *slog.Logger) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return err
	}
	store, err := catalog.Open(cfg)
	if err != nil {
		if errors.Is(err, catalog.ErrLocked) {
			return services.Wrap(services.ErrTransient, "cli", "open catalog", "another titlevault command is running", err)
		}
		return fmt.Errorf("open catalog: %w", err)
	}
	defer store.Close()
	return fn(store, logger)
}

func (c *commandContext) packageCache(logger *slog.Logger) *pkgcache.Cache {
	return pkgcache.NewCache(c.configValue().Packages.CachePath, logger)
}

// newImporter wires the reconcile engine with the configured evidence
// sources. License decoding is only enabled when a dictionary is configured.
func (c *commandContext) newImporter(store *catalog.Store, logger *slog.Logger) (*importer.Importer, error) {
	cfg := c.configValue()

	var license reconcile.LicenseDecoder
	if path := strings.TrimSpace(cfg.License.ZRIFDictionaryPath); path != "" {
		decoder, err := extract.LoadLicenseDecoder(path)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "cli", "load license dictionary", path, err)
		}
		license = decoder
	}

	resolver := extract.NewPackageResolver(extract.PackageConfig{
		UserAgent: cfg.Packages.UserAgent,
		Timeout:   time.Duration(cfg.Packages.TimeoutSeconds) * time.Second,
		Cache:     c.packageCache(logger),
		Logger:    logger,
	})
	engine := reconcile.NewEngine(store, license, resolver, logger)
	return importer.New(cfg, engine, logger), nil
}

// publishMetrics writes the batch metrics textfile when one is configured.
// Failures are logged and never fail the command.
func (c *commandContext) publishMetrics(ctx context.Context, command string, store *catalog.Store, logger *slog.Logger, observe func(*metrics.Recorder)) {
	path := c.configValue().Metrics.TextfilePath
	if path == "" {
		return
	}
	recorder := metrics.New()
	observe(recorder)
	if count, err := store.Count(context.WithoutCancel(ctx)); err == nil {
		recorder.SetCatalogSize(count)
	}
	recorder.MarkRun(command, time.Now())
	if err := recorder.WriteTextfile(path); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, logger), "metrics textfile not written", "metrics_write_failed",
			logging.Error(err),
			logging.String("path", path),
			logging.String(logging.FieldErrorHint, "check metrics.textfile_path permissions"),
			logging.String(logging.FieldImpact, "batch metrics are stale"),
		)
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
