package config

import (
	"fmt"
	"os"
	"slices"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeImport()
	c.normalizeMapping()
	c.normalizeRegions()
	c.normalizeSweep()
	if err := c.normalizePackages(); err != nil {
		return err
	}
	if err := c.normalizeLicense(); err != nil {
		return err
	}
	if err := c.normalizeMetrics(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeImport() {
	switch strings.ToLower(c.Import.Separator) {
	case "":
		c.Import.Separator = defaultSeparator
	case "tab", `\t`:
		c.Import.Separator = "\t"
	case "comma":
		c.Import.Separator = ","
	case "semicolon":
		c.Import.Separator = ";"
	}
	c.Import.AppsURL = strings.TrimSpace(c.Import.AppsURL)
	c.Import.DLCURL = strings.TrimSpace(c.Import.DLCURL)
	c.Import.PSMURL = strings.TrimSpace(c.Import.PSMURL)
}

func (c *Config) normalizeMapping() {
	normalized := make(map[string]string, len(ColumnFields))
	for _, field := range ColumnFields {
		normalized[field] = field
	}
	for key, column := range c.Mapping {
		key = strings.ToLower(strings.TrimSpace(key))
		column = strings.TrimSpace(column)
		if column == "" {
			column = key
		}
		normalized[key] = column
	}
	c.Mapping = normalized
}

func (c *Config) normalizeRegions() {
	if len(c.Regions) == 0 {
		c.Regions = defaultRegions()
		return
	}
	normalized := make(map[string]string, len(c.Regions))
	for prefix, name := range c.Regions {
		normalized[strings.ToUpper(strings.TrimSpace(prefix))] = strings.TrimSpace(name)
	}
	c.Regions = normalized
}

func (c *Config) normalizeSweep() {
	regions := make([]string, 0, len(c.Sweep.Regions))
	for _, region := range c.Sweep.Regions {
		region = strings.ToUpper(strings.TrimSpace(region))
		if region != "" && !slices.Contains(regions, region) {
			regions = append(regions, region)
		}
	}
	c.Sweep.Regions = regions
	if c.Sweep.Pages <= 0 {
		c.Sweep.Pages = defaultSweepPages
	}
	c.Sweep.SearchURL = strings.TrimSpace(c.Sweep.SearchURL)
	languages := make(map[string]string, len(c.Sweep.Languages))
	for prefix, lang := range c.Sweep.Languages {
		languages[strings.ToUpper(strings.TrimSpace(prefix))] = strings.ToLower(strings.TrimSpace(lang))
	}
	c.Sweep.Languages = languages
}

func (c *Config) normalizePackages() error {
	var err error
	if strings.TrimSpace(c.Packages.CachePath) != "" {
		if c.Packages.CachePath, err = expandPath(c.Packages.CachePath); err != nil {
			return fmt.Errorf("packages.cache_path: %w", err)
		}
	}
	if c.Packages.TimeoutSeconds <= 0 {
		c.Packages.TimeoutSeconds = defaultPackageTimeoutSeconds
	}
	c.Packages.UserAgent = strings.TrimSpace(c.Packages.UserAgent)
	if c.Packages.UserAgent == "" {
		c.Packages.UserAgent = defaultPackageUserAgent
	}
	return nil
}

func (c *Config) normalizeLicense() error {
	c.License.ZRIFDictionaryPath = strings.TrimSpace(c.License.ZRIFDictionaryPath)
	if c.License.ZRIFDictionaryPath == "" {
		if value, ok := os.LookupEnv("ZRIF_DICTIONARY"); ok {
			c.License.ZRIFDictionaryPath = strings.TrimSpace(value)
		}
	}
	if c.License.ZRIFDictionaryPath == "" {
		return nil
	}
	var err error
	if c.License.ZRIFDictionaryPath, err = expandPath(c.License.ZRIFDictionaryPath); err != nil {
		return fmt.Errorf("license.zrif_dictionary_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeMetrics() error {
	c.Metrics.TextfilePath = strings.TrimSpace(c.Metrics.TextfilePath)
	if c.Metrics.TextfilePath == "" {
		return nil
	}
	var err error
	if c.Metrics.TextfilePath, err = expandPath(c.Metrics.TextfilePath); err != nil {
		return fmt.Errorf("metrics.textfile_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
