package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"titlevault/internal/fileutil"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Import contains spreadsheet import settings.
type Import struct {
	// Separator is the single-character field delimiter for CSV/TSV sources.
	Separator string `toml:"separator"`
	AppsURL   string `toml:"apps_url"`
	DLCURL    string `toml:"dlc_url"`
	PSMURL    string `toml:"psm_url"`
}

// Packages contains settings for package header lookups.
type Packages struct {
	CachePath      string `toml:"cache_path"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	UserAgent      string `toml:"user_agent"`
}

// License contains settings for license-token decoding.
type License struct {
	// ZRIFDictionaryPath points at the zlib preset dictionary used by
	// compressed license tokens. Empty disables decoding.
	ZRIFDictionaryPath string `toml:"zrif_dictionary_path"`
}

// Sweep contains settings for title-range sweeps through a web search.
type Sweep struct {
	// First and Last bound the title numbers tried per region, inclusive.
	First int `toml:"first"`
	Last  int `toml:"last"`
	// Regions limits the sweep to these title-code prefixes. Empty sweeps
	// every configured region.
	Regions []string `toml:"regions"`
	// SearchURL is a template; {language}, {title_id} and {page} are
	// substituted. Empty disables sweeps.
	SearchURL string `toml:"search_url"`
	// Pages is the number of result pages tried before giving up on a title.
	Pages int `toml:"pages"`
	// Languages maps a title-code prefix to the store language searched.
	Languages map[string]string `toml:"languages"`
}

// Metrics contains batch metrics export settings.
type Metrics struct {
	TextfilePath string `toml:"textfile_path"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for titlevault.
//
// Configuration sections by subsystem:
//   - Paths: catalog database and log directories
//   - Import: spreadsheet separator and remote spreadsheet sources
//   - Mapping: row field to spreadsheet column names
//   - Regions: title-code prefix to region label, used by exports
//   - Sweep: title-range sweep through a search engine
//   - Packages: package header fetch and cache settings
//   - License: license-token decoding
//   - Metrics: Prometheus textfile export
//   - Logging: log format and level
type Config struct {
	Paths    Paths             `toml:"paths"`
	Import   Import            `toml:"import"`
	Mapping  map[string]string `toml:"mapping"`
	Regions  map[string]string `toml:"regions"`
	Sweep    Sweep             `toml:"sweep"`
	Packages Packages          `toml:"packages"`
	License  License           `toml:"license"`
	Metrics  Metrics           `toml:"metrics"`
	Logging  Logging           `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/titlevault/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("titlevault.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the location of the catalog database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, databaseFileName)
}

// SeparatorRune returns the configured field delimiter.
func (c *Config) SeparatorRune() rune {
	for _, r := range c.Import.Separator {
		return r
	}
	return '\t'
}

// Column returns the spreadsheet column mapped to a row field.
func (c *Config) Column(field string) string {
	if column, ok := c.Mapping[field]; ok && column != "" {
		return column
	}
	return field
}

// RegionName maps a title code (or any string starting with one) to its
// region label. Unknown prefixes map to "???".
func (c *Config) RegionName(shortID string) string {
	if len(shortID) < 4 {
		return unknownRegion
	}
	if name, ok := c.Regions[shortID[:4]]; ok && name != "" {
		return name
	}
	return unknownRegion
}

// SourceURL returns the remote spreadsheet configured for an import batch
// type ("apps", "dlc" or "psm").
func (c *Config) SourceURL(batch string) string {
	switch strings.ToLower(strings.TrimSpace(batch)) {
	case "apps", "app":
		return c.Import.AppsURL
	case "dlc":
		return c.Import.DLCURL
	case "psm":
		return c.Import.PSMURL
	default:
		return ""
	}
}

// SweepRegions returns the title-code prefixes a sweep visits, sorted.
func (c *Config) SweepRegions() []string {
	if len(c.Sweep.Regions) > 0 {
		return slices.Clone(c.Sweep.Regions)
	}
	return slices.Sorted(maps.Keys(c.Regions))
}

// SearchLanguage returns the store language for a title-code prefix (or any
// string starting with one).
func (c *Config) SearchLanguage(region string) string {
	if len(region) > 4 {
		region = region[:4]
	}
	if lang, ok := c.Sweep.Languages[region]; ok && lang != "" {
		return lang
	}
	return defaultSearchLanguage
}

// SearchURL expands the sweep search template for one title and page.
func (c *Config) SearchURL(language, titleID string, page int) string {
	return strings.NewReplacer(
		"{language}", url.QueryEscape(language),
		"{title_id}", url.QueryEscape(titleID),
		"{page}", strconv.Itoa(page),
	).Replace(c.Sweep.SearchURL)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if err := fileutil.WriteFileAtomic(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
