package license

import (
	"context"
	"strings"

	"github.com/modelatlas/pipeline/network"
	"github.com/modelatlas/pipeline/schemas"
)

// Resolver classifies every model into proprietary, opensource, custom or
// unknown and attaches name and URL. Resolution is strictly priority
// ordered: the first matching strategy wins and the rest are skipped.
// Resolution never fails; Unknown is always a legal outcome.
type Resolver struct {
	hub    *HubClient
	logger schemas.Logger
}

// NewResolver creates a Resolver backed by the given fetcher and
// HuggingFace API key.
func NewResolver(fetcher *network.Fetcher, hfAPIKey string, logger schemas.Logger) *Resolver {
	return &Resolver{
		hub: &HubClient{
			BaseURL: DefaultHubBaseURL,
			APIKey:  hfAPIKey,
			Fetcher: fetcher,
		},
		logger: logger,
	}
}

// Hub exposes the underlying hub client, mainly so tests can point it at a
// local server.
func (r *Resolver) Hub() *HubClient {
	return r.hub
}

// Resolve runs the strategy ladder for one model.
func (r *Resolver) Resolve(ctx context.Context, canonicalSlug, hfID string) schemas.LicenseFact {
	// 1. Exact canonical-slug lookup in the proprietary mapping.
	if fact, ok := proprietaryBySlug[canonicalSlug]; ok {
		return fact
	}

	prefix, body, _ := strings.Cut(canonicalSlug, "/")
	lowerBody := strings.ToLower(body)
	if body == "" {
		lowerBody = strings.ToLower(prefix)
	}

	// 2. Google models: gemini/gemma sub-patterns map to Google terms.
	if prefix == "google" {
		for pattern, fact := range googleLicenses {
			if strings.Contains(lowerBody, pattern) {
				return fact
			}
		}
	}

	// 3. Meta models, or anything self-identifying as a llama derivative.
	if prefix == "meta-llama" || strings.Contains(strings.ToLower(canonicalSlug), "llama") {
		return metaLicense
	}

	// 4-6. HuggingFace-backed resolution.
	if hfID == "" {
		return unknownFact()
	}
	name, err := r.hub.CardLicense(ctx, hfID)
	if err != nil {
		r.logger.Debug("license lookup failed for %s: %v", hfID, err)
		return unknownFact()
	}
	if strings.EqualFold(name, "other") {
		if scraped, ok := r.hub.ScrapeLicenseName(ctx, hfID); ok {
			name = scraped
		}
	}

	standardized := Standardize(name)
	if standardized == schemas.Unknown {
		return unknownFact()
	}

	if url, ok := IsOpenSource(standardized); ok {
		infoURL, _ := r.hub.ProbeRepoURL(ctx, hfID)
		fact := schemas.LicenseFact{
			Category: schemas.LicenseOpenSource,
			Name:     standardized,
			URL:      url,
		}
		if infoURL != "" {
			fact.InfoText = "info"
			fact.InfoURL = infoURL
		}
		return fact
	}

	return r.resolveCustom(ctx, hfID, standardized)
}

// resolveCustom attaches the tiered fallback URL for a custom license.
// Custom facts never carry info fields.
func (r *Resolver) resolveCustom(ctx context.Context, hfID, standardized string) schemas.LicenseFact {
	fact := schemas.LicenseFact{
		Category: schemas.LicenseCustom,
		Name:     standardized,
	}
	if url, ok := customURLOverrides[standardized]; ok {
		fact.URL = url
		fact.URLLabel = "Curated override"
		return fact
	}
	url, label := r.hub.ProbeRepoURL(ctx, hfID)
	if url == "" {
		fact.URL = schemas.Unknown
		fact.URLLabel = label
		return fact
	}
	fact.URL = url
	fact.URLLabel = label
	return fact
}

func unknownFact() schemas.LicenseFact {
	return schemas.LicenseFact{
		Category: schemas.LicenseUnknown,
		Name:     schemas.Unknown,
		URL:      schemas.Unknown,
	}
}
