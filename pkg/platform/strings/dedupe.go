// Package strings provides string-set helpers used to canonicalize filters.
package strings

import (
	"slices"
	"strings"
)

// DedupeAndTrim removes duplicates and empty strings from a slice,
// trimming whitespace from each element. Order is preserved.
//
// Example:
//
//	DedupeAndTrim([]string{"  Finance ", "Retail", "Finance", "", "  "})
//	// Returns: []string{"Finance", "Retail"}
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))

	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; !ok {
			seen[trimmed] = struct{}{}
			result = append(result, trimmed)
		}
	}

	return result
}

// SortedSet is DedupeAndTrim followed by an ascending sort, so two inputs
// naming the same members always produce the same slice.
func SortedSet(values []string) []string {
	set := DedupeAndTrim(values)
	if len(set) == 0 {
		return nil
	}
	out := slices.Clone(set)
	slices.Sort(out)
	return out
}

// SplitList splits a comma-joined list and returns its sorted, deduplicated members.
//
// Example:
//
//	SplitList("Retail, Finance,,Retail")
//	// Returns: []string{"Finance", "Retail"}
func SplitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return SortedSet(strings.Split(raw, ","))
}
