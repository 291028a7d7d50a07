package normalize

import (
	"regexp"
	"sort"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

var dashRunRe = regexp.MustCompile(`-{2,}`)

// variantSuffixes are stripped (at most one, longest first) from normalized
// slugs so that fine-tune variants map to the same performance-metric slug.
var variantSuffixes = []string{"-instruct", "-preview", "-turbo", "-chat", "-it", "-exp"}

func init() {
	sort.Slice(variantSuffixes, func(i, j int) bool {
		return len(variantSuffixes[i]) > len(variantSuffixes[j])
	})
}

// NormalizeSlug converts a provider slug into the mapping-normalized form:
// ".", " " and "_" become "-", dash runs collapse, leading/trailing dashes
// are trimmed, the result is lowercased, and at most one variant suffix is
// stripped (longest wins). Examples: "gpt-4.0" -> "gpt-4-0",
// "gemma-3-12b-it" -> "gemma-3-12b".
func NormalizeSlug(slug string) string {
	replacer := strings.NewReplacer(".", "-", " ", "-", "_", "-")
	normalized := replacer.Replace(slug)
	normalized = dashRunRe.ReplaceAllString(normalized, "-")
	normalized = strings.Trim(normalized, "-")
	normalized = strings.ToLower(normalized)
	for _, suffix := range variantSuffixes {
		if strings.HasSuffix(normalized, suffix) {
			return strings.TrimSuffix(normalized, suffix)
		}
	}
	return normalized
}

// MatchAASlug matches a normalized provider slug against the external
// performance-metric slugs, trying exact, then suffix (aa slug ends with the
// normalized slug), then contains. The first hit wins.
func MatchAASlug(normalized string, aaSlugs []string) (string, bool) {
	for _, aa := range aaSlugs {
		if aa == normalized {
			return aa, true
		}
	}
	for _, aa := range aaSlugs {
		if strings.HasSuffix(aa, normalized) {
			return aa, true
		}
	}
	for _, aa := range aaSlugs {
		if strings.Contains(aa, normalized) {
			return aa, true
		}
	}
	return "", false
}

// Candidate is a similarity-ranked mapping suggestion for an unmatched slug.
type Candidate struct {
	AASlug string
	Ratio  float64
}

// SimilarityRatio computes the longest-common-subsequence based ratio in
// [0,1] between two slugs, character-wise.
func SimilarityRatio(a, b string) float64 {
	return difflib.NewMatcher(explode(a), explode(b)).Ratio()
}

func explode(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

// TopCandidates ranks every aa slug by similarity to the normalized slug and
// returns the best n, ties broken alphabetically for determinism.
func TopCandidates(normalized string, aaSlugs []string, n int) []Candidate {
	candidates := make([]Candidate, 0, len(aaSlugs))
	for _, aa := range aaSlugs {
		candidates = append(candidates, Candidate{AASlug: aa, Ratio: SimilarityRatio(normalized, aa)})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Ratio != candidates[j].Ratio {
			return candidates[i].Ratio > candidates[j].Ratio
		}
		return candidates[i].AASlug < candidates[j].AASlug
	})
	if len(candidates) > n {
		candidates = candidates[:n]
	}
	return candidates
}
