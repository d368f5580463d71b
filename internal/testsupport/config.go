package testsupport

import (
	"path/filepath"
	"testing"

	"titlevault/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Packages.CachePath = filepath.Join(base, "cache", "packages.json")
	cfgVal.Packages.TimeoutSeconds = 5

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithSeparator overrides the import separator.
func WithSeparator(sep string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Import.Separator = sep
	}
}

// WithMapping overrides individual field to column mappings.
func WithMapping(mapping map[string]string) ConfigOption {
	return func(b *configBuilder) {
		for field, column := range mapping {
			b.cfg.Mapping[field] = column
		}
	}
}

// WithLicenseDictionary writes dict to a file under the base directory and
// points the license settings at it.
func WithLicenseDictionary(dict []byte) ConfigOption {
	return func(b *configBuilder) {
		path := filepath.Join(b.baseDir, "zrif.dict")
		WriteFile(b.t, path, string(dict))
		b.cfg.License.ZRIFDictionaryPath = path
	}
}

// WithMetricsTextfile enables the metrics textfile under the base directory.
func WithMetricsTextfile() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Metrics.TextfilePath = filepath.Join(b.baseDir, "metrics", "titlevault.prom")
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
