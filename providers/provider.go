// Package providers implements the per-provider catalog extractors. Each
// extractor turns one provider's REST endpoints and documentation pages into
// the shared extraction contract: raw models, per-model modality facts,
// per-model raw rate limits, and human-readable diagnostics.
package providers

import (
	"context"

	"github.com/modelatlas/pipeline/schemas"
)

// Extractor is the shared contract of the provider extractors. Extract
// returns an error only when the model list itself could not be produced;
// modality and rate-limit misses degrade to diagnostics and heuristics.
type Extractor interface {
	Provider() schemas.InferenceProvider
	Extract(ctx context.Context) (*schemas.ExtractResult, error)
}

func newExtractResult() *schemas.ExtractResult {
	return &schemas.ExtractResult{
		Modalities: make(map[string]schemas.ModalityFact),
		RateLimits: make(map[string]string),
	}
}
