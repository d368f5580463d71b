package config

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"unicode/utf8"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateImport(); err != nil {
		return err
	}
	if err := c.validateMapping(); err != nil {
		return err
	}
	if err := c.validateRegions(); err != nil {
		return err
	}
	if err := c.validateSweep(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	return nil
}

func (c *Config) validateImport() error {
	sep := c.Import.Separator
	if utf8.RuneCountInString(sep) != 1 {
		return fmt.Errorf("import.separator must be a single character, got %q", sep)
	}
	switch r, _ := utf8.DecodeRuneInString(sep); r {
	case '"', '\r', '\n', utf8.RuneError:
		return fmt.Errorf("import.separator %q is not allowed", sep)
	}
	for name, value := range map[string]string{
		"import.apps_url": c.Import.AppsURL,
		"import.dlc_url":  c.Import.DLCURL,
		"import.psm_url":  c.Import.PSMURL,
	} {
		if value != "" && !strings.HasPrefix(value, "http://") && !strings.HasPrefix(value, "https://") {
			return fmt.Errorf("%s must be an http(s) URL, got %q", name, value)
		}
	}
	return nil
}

func (c *Config) validateMapping() error {
	var unknown []string
	for key := range c.Mapping {
		if !slices.Contains(ColumnFields, key) {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("mapping: unknown field(s) %s (valid: %s)",
			strings.Join(unknown, ", "), strings.Join(ColumnFields, ", "))
	}

	owners := make(map[string]string, len(c.Mapping))
	for _, field := range ColumnFields {
		column := c.Column(field)
		if other, ok := owners[column]; ok {
			return fmt.Errorf("mapping: column %q is mapped to both %s and %s", column, other, field)
		}
		owners[column] = field
	}
	return nil
}

func (c *Config) validateRegions() error {
	for prefix := range c.Regions {
		if len(prefix) != 4 || strings.IndexFunc(prefix, func(r rune) bool { return r < 'A' || r > 'Z' }) >= 0 {
			return fmt.Errorf("regions: key %q must be a 4-letter title-code prefix", prefix)
		}
	}
	return nil
}

func (c *Config) validateSweep() error {
	sw := c.Sweep
	if sw.First < 1 || sw.Last < sw.First || sw.Last > maxTitleNumber {
		return fmt.Errorf("sweep: range %d..%d must satisfy 1 <= first <= last <= %d", sw.First, sw.Last, maxTitleNumber)
	}
	for _, region := range sw.Regions {
		if _, ok := c.Regions[region]; !ok {
			return fmt.Errorf("sweep.regions: %q is not a configured region", region)
		}
	}
	if sw.SearchURL != "" {
		if !strings.HasPrefix(sw.SearchURL, "http://") && !strings.HasPrefix(sw.SearchURL, "https://") {
			return fmt.Errorf("sweep.search_url must be an http(s) URL, got %q", sw.SearchURL)
		}
		if !strings.Contains(sw.SearchURL, "{title_id}") {
			return errors.New("sweep.search_url must contain the {title_id} placeholder")
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}
