package importer

import (
	"fmt"
	"path/filepath"
	"strings"

	"titlevault/internal/catalog"
)

// Batch selects the default category of a spreadsheet import and the
// category range of an export.
type Batch int

const (
	BatchApps Batch = iota
	BatchDLC
	BatchPSM
)

// Batches lists every batch type in import order.
var Batches = []Batch{BatchApps, BatchDLC, BatchPSM}

func (b Batch) String() string {
	switch b {
	case BatchDLC:
		return "dlc"
	case BatchPSM:
		return "psm"
	default:
		return "apps"
	}
}

// DefaultCategory is the category applied to rows that carry no marker and no
// explicit category.
func (b Batch) DefaultCategory() catalog.Category {
	switch b {
	case BatchDLC:
		return catalog.CategoryDLC
	case BatchPSM:
		return catalog.CategoryPSM
	default:
		return catalog.CategoryApp
	}
}

// Contains reports whether c falls in the export range of b.
func (b Batch) Contains(c catalog.Category) bool {
	lo := b.DefaultCategory()
	return c >= lo && c < lo+99
}

// ParseBatch parses "apps", "dlc" or "psm".
func ParseBatch(raw string) (Batch, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "apps", "app", "":
		return BatchApps, nil
	case "dlc", "dlcs":
		return BatchDLC, nil
	case "psm":
		return BatchPSM, nil
	default:
		return BatchApps, fmt.Errorf("unknown batch type %q (want apps, dlc or psm)", raw)
	}
}

// GuessBatch infers the batch type from a source file name or URL.
func GuessBatch(source string) Batch {
	name := strings.ToLower(filepath.Base(source))
	switch {
	case strings.Contains(name, "dlc"):
		return BatchDLC
	case strings.Contains(name, "psm") || strings.Contains(name, "psn"):
		return BatchPSM
	default:
		return BatchApps
	}
}
