// Package normalize converts heterogeneous provider metadata into the
// canonical forms stored in the working table: modality lists, display
// names, provider slugs, and mapping-normalized slugs.
package normalize

import (
	"sort"
	"strings"
)

// Canonical modality tokens. The closed output set of the modality
// normalizer.
const (
	ModalityText           = "Text"
	ModalityImage          = "Image"
	ModalityAudio          = "Audio"
	ModalityVideo          = "Video"
	ModalityPDF            = "PDF"
	ModalityTextEmbeddings = "Text Embeddings"
)

// modalityTable maps lowercased raw tokens to canonical modalities.
var modalityTable = map[string]string{
	"text":            ModalityText,
	"texts":           ModalityText,
	"image":           ModalityImage,
	"images":          ModalityImage,
	"vision":          ModalityImage,
	"audio":           ModalityAudio,
	"speech":          ModalityAudio,
	"video":           ModalityVideo,
	"videos":          ModalityVideo,
	"pdf":             ModalityPDF,
	"application/pdf": ModalityPDF,
	"file":            ModalityPDF,
	"document":        ModalityPDF,
}

// modalityPriority orders the canonical tokens in output strings.
// Text Embeddings shares Text's priority; relative order between the two is
// then first-occurrence.
var modalityPriority = map[string]int{
	ModalityText:           1,
	ModalityTextEmbeddings: 1,
	ModalityImage:          2,
	ModalityAudio:          3,
	ModalityVideo:          4,
	ModalityPDF:            5,
}

// StandardizeModality maps a raw token to its canonical modality.
// Embedding-flavored tokens standardize to "Text Embeddings".
func StandardizeModality(raw string) (string, bool) {
	token := strings.ToLower(strings.TrimSpace(raw))
	if token == "" {
		return "", false
	}
	if strings.Contains(token, "embedding") {
		return ModalityTextEmbeddings, true
	}
	if canonical, ok := modalityTable[token]; ok {
		return canonical, true
	}
	return "", false
}

// MergeModalities selects the highest-precedence non-empty candidate list
// (callers pass override config first, then scraper result, then raw API)
// and returns it standardized: unknown tokens dropped, duplicates removed
// preserving first occurrence, and the result reordered by the priority
// table.
func MergeModalities(candidates ...[]string) []string {
	for _, candidate := range candidates {
		if len(candidate) == 0 {
			continue
		}
		standardized := standardizeList(candidate)
		if len(standardized) > 0 {
			return standardized
		}
	}
	return nil
}

func standardizeList(raw []string) []string {
	seen := make(map[string]bool, len(raw))
	var tokens []string
	for _, r := range raw {
		canonical, ok := StandardizeModality(r)
		if !ok || seen[canonical] {
			continue
		}
		seen[canonical] = true
		tokens = append(tokens, canonical)
	}
	sort.SliceStable(tokens, func(i, j int) bool {
		return modalityPriority[tokens[i]] < modalityPriority[tokens[j]]
	})
	return tokens
}

// FormatModalities renders the canonical token list with the exact ", "
// separator the comparison contract observes.
func FormatModalities(tokens []string) string {
	return strings.Join(tokens, ", ")
}
