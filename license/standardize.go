package license

import (
	"strings"

	"github.com/modelatlas/pipeline/schemas"
)

// errorLikePrefixes are upstream failure strings that sometimes leak into a
// scraped license name; they all collapse to Unknown.
var errorLikePrefixes = []string{
	"http 4",
	"http 5",
	"error:",
	"parse error:",
	"not found",
	"no hf id",
}

// Standardize maps a raw license name to its standardized short name.
// Error-like strings normalize to "Unknown". The function is idempotent:
// standardized outputs pass through unchanged.
func Standardize(raw string) string {
	name := strings.TrimSpace(raw)
	if name == "" {
		return schemas.Unknown
	}
	lower := strings.ToLower(name)
	for _, prefix := range errorLikePrefixes {
		if strings.HasPrefix(lower, prefix) {
			return schemas.Unknown
		}
	}
	if lower == strings.ToLower(schemas.Unknown) {
		return schemas.Unknown
	}
	if standard, ok := standardNames[lower]; ok {
		return standard
	}
	return name
}

// IsOpenSource reports whether a standardized name is in the curated
// opensource URL table (case-insensitive), and returns its URL.
func IsOpenSource(standardized string) (string, bool) {
	if url, ok := opensourceURLs[standardized]; ok {
		return url, true
	}
	lower := strings.ToLower(standardized)
	for name, url := range opensourceURLs {
		if strings.ToLower(name) == lower {
			return url, true
		}
	}
	return "", false
}
