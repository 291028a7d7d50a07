package configs

import "strings"

// hasPrefixSegment reports whether slug's vendor segment (before the first
// "/") equals prefix, or the whole slug starts with it when no slash exists.
func hasPrefixSegment(slug, prefix string) bool {
	if before, _, found := strings.Cut(slug, "/"); found {
		return before == prefix
	}
	return strings.HasPrefix(slug, prefix)
}

// containsPattern matches a family pattern against the model segment of the
// slug, case-insensitive.
func containsPattern(slug, pattern string) bool {
	return strings.Contains(strings.ToLower(slug), strings.ToLower(pattern))
}
