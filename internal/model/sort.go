package model

import (
	"sort"
	"strings"

	"github.com/maruel/natural"
)

// SortField defines what to sort groups by.
type SortField int

const (
	SortByWasted SortField = iota
	SortBySize
	SortByCount
	SortByPath
)

// SortOrder defines ascending or descending.
type SortOrder int

const (
	SortDesc SortOrder = iota
	SortAsc
)

// SortConfig holds sort preferences.
type SortConfig struct {
	Field SortField
	Order SortOrder
}

// DefaultSort returns the default sort config (wasted bytes descending).
func DefaultSort() SortConfig {
	return SortConfig{
		Field: SortByWasted,
		Order: SortDesc,
	}
}

// SortPaths orders the members of every group naturally, case-insensitive.
func SortPaths(groups []DuplicateGroup) {
	for i := range groups {
		paths := groups[i].Paths
		sort.SliceStable(paths, func(a, b int) bool {
			return natural.Less(strings.ToLower(paths[a]), strings.ToLower(paths[b]))
		})
	}
}

// SortGroups sorts groups in place according to config.
// Member paths are compared by their first entry, so call SortPaths first
// when sorting by path.
func SortGroups(groups []DuplicateGroup, cfg SortConfig) {
	sort.SliceStable(groups, func(i, j int) bool {
		a, b := groups[i], groups[j]

		// Swap for descending so equal items still compare false.
		if cfg.Order == SortDesc {
			a, b = b, a
		}

		switch cfg.Field {
		case SortBySize:
			return a.Size < b.Size
		case SortByCount:
			return len(a.Paths) < len(b.Paths)
		case SortByPath:
			return natural.Less(strings.ToLower(firstPath(a)), strings.ToLower(firstPath(b)))
		default:
			return a.Wasted() < b.Wasted()
		}
	})
}

func firstPath(g DuplicateGroup) string {
	if len(g.Paths) == 0 {
		return ""
	}
	return g.Paths[0]
}
