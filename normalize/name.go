package normalize

import (
	"regexp"
	"strings"
)

// FreeSuffix is the marker OpenRouter appends to free-tier variants.
const FreeSuffix = " (free)"

var vendorPrefixRe = regexp.MustCompile(`^[A-Za-z0-9 ._-]+:\s+`)

// specialNames is the closed table of display-name substitutions applied
// after generic cleanup.
var specialNames = map[string]string{
	"gpt-oss-120b": "OpenAI: gpt-oss-120b",
	"gpt-oss-20b":  "OpenAI: gpt-oss-20b",
}

// CleanDisplayName strips a vendor "X: " prefix and a trailing " (free)"
// marker, then applies the special-substitution table.
func CleanDisplayName(name string) string {
	name = strings.TrimSpace(name)
	name = vendorPrefixRe.ReplaceAllString(name, "")
	name = strings.TrimSuffix(name, FreeSuffix)
	name = strings.TrimSpace(name)
	if special, ok := specialNames[name]; ok {
		return special
	}
	return name
}

// gemmaUpperTokens are size/variant tokens rendered uppercase in derived
// Gemma display names.
var gemmaUpperRe = regexp.MustCompile(`^(e?\d+b|\d+n|it|qat)$`)

// GemmaDisplayName derives a display name deterministically from a Gemma
// canonical slug: the segment after the first "/" is split on "-",
// size/variant tokens are uppercased and the rest capitalized, e.g.
// "google/gemma-3n-e4b-it" -> "Gemma 3N E4B IT".
func GemmaDisplayName(canonicalSlug string) string {
	segment := ProviderSlug(canonicalSlug)
	parts := strings.Split(segment, "-")
	for i, part := range parts {
		lower := strings.ToLower(part)
		if gemmaUpperRe.MatchString(lower) {
			parts[i] = strings.ToUpper(lower)
			continue
		}
		parts[i] = capitalize(lower)
	}
	return strings.Join(parts, " ")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// ProviderSlug returns the segment after the first "/" of a canonical slug,
// or the whole slug when no slash exists.
func ProviderSlug(canonicalSlug string) string {
	if _, after, found := strings.Cut(canonicalSlug, "/"); found {
		return after
	}
	return canonicalSlug
}
