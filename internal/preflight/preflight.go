package preflight

import (
	"context"

	"titlevault/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// minFreeBytes is the free space required on the data directory volume.
const minFreeBytes = 64 << 20

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckFreeSpace("Data volume", cfg.Paths.DataDir, minFreeBytes),
	}
	if cfg.Paths.LogDir != "" {
		results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	}
	if cfg.License.ZRIFDictionaryPath != "" {
		results = append(results, CheckFileReadable("License dictionary", cfg.License.ZRIFDictionaryPath))
	}
	for _, src := range []struct{ name, url string }{
		{"Apps spreadsheet", cfg.Import.AppsURL},
		{"DLC spreadsheet", cfg.Import.DLCURL},
		{"PSM spreadsheet", cfg.Import.PSMURL},
	} {
		if src.url != "" {
			results = append(results, CheckRemoteSource(ctx, src.name, src.url, cfg.Packages.UserAgent))
		}
	}
	return results
}

// AllPassed reports whether every result passed.
func AllPassed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}
