package builder

import (
	"maps"
	"slices"
)

// sortedKeys returns a deterministically ordered slice of keys from the provided map.
func sortedKeys(m map[string]any) []string {
	return slices.Sorted(maps.Keys(m))
}
