// Package catalog fuses extraction, license and modality facts into
// database-ready rows, compares them against the live working table, and
// persists per-stage artifacts and reports.
package catalog

import (
	"fmt"
	"strings"
	"time"

	"github.com/modelatlas/pipeline/configs"
	"github.com/modelatlas/pipeline/normalize"
	"github.com/modelatlas/pipeline/providers"
	"github.com/modelatlas/pipeline/schemas"
)

// Fuser joins the per-slug fact streams into DbRows. Missing vendor facts
// use the Unknown sentinel; optional license fields stay empty.
type Fuser struct {
	config *configs.PipelineConfig
	logger schemas.Logger

	// now is replaceable for deterministic timestamps in tests.
	now func() time.Time
}

// NewFuser wires a fuser for one provider config.
func NewFuser(config *configs.PipelineConfig, logger schemas.Logger) *Fuser {
	return &Fuser{config: config, logger: logger, now: time.Now}
}

// FuseOutput carries the fused rows plus the rows held back by the removal
// list, which are reported but never emitted.
type FuseOutput struct {
	Rows        []schemas.DbRow
	RateLimits  []schemas.RateLimitRow
	Removed     []string
	Diagnostics []string
}

// Fuse produces one DbRow per raw model, keyed joins by canonical slug.
func (f *Fuser) Fuse(raws []schemas.RawModel, licenses map[string]schemas.LicenseFact, modalities map[string]schemas.ModalityFact) *FuseOutput {
	output := &FuseOutput{}
	removal := make(map[string]bool, len(f.config.RemovalList))
	for _, slug := range f.config.RemovalList {
		removal[slug] = true
	}

	now := f.now().UTC().Format(time.RFC3339)
	for _, raw := range raws {
		slug := raw.CanonicalSlug
		if removal[slug] {
			output.Removed = append(output.Removed, slug)
			continue
		}

		row := schemas.DbRow{
			InferenceProvider: string(f.config.Provider),
			HumanReadableName: f.displayName(raw),
			ProviderSlug:      f.providerSlug(raw),
			UpdatedAt:         now,
			CreatedAt:         now,
		}
		if raw.CreatedAtSource != nil {
			row.CreatedAt = raw.CreatedAtSource.UTC().Format(time.RFC3339)
		}

		fact := f.config.ResolveProviderFact(slug)
		row.ModelProvider = fact.ModelProvider
		row.Country = fact.Country
		row.OfficialURL = fact.OfficialURL
		row.ProviderAPIAccess = fact.APIAccess

		license, ok := licenses[slug]
		if !ok {
			license = schemas.LicenseFact{
				Category: schemas.LicenseUnknown,
				Name:     schemas.Unknown,
				URL:      schemas.Unknown,
			}
		}
		row.LicenseName = license.Name
		row.LicenseURL = license.URL
		row.LicenseInfoText = license.InfoText
		row.LicenseInfoURL = license.InfoURL

		row.InputModalities, row.OutputModalities = f.fuseModalities(raw, modalities[slug])
		row.RateLimits = raw.RawRateLimits

		if raw.RawRateLimits != "" {
			limit := providers.ParseRateLimits(raw.RawRateLimits, f.config.Provider)
			limit.HumanReadableName = row.HumanReadableName
			output.RateLimits = append(output.RateLimits, limit)
		}

		output.Rows = append(output.Rows, row)
	}
	if len(output.Removed) > 0 {
		output.Diagnostics = append(output.Diagnostics,
			fmt.Sprintf("removal list dropped %d models: %s", len(output.Removed), strings.Join(output.Removed, ", ")))
	}
	f.logger.Info("fused %d rows for %s (%d removed by policy)", len(output.Rows), f.config.Provider, len(output.Removed))
	return output
}

// displayName cleans the provider's display name; Google Gemma names are
// derived from the slug instead because the API publishes inconsistent ones.
func (f *Fuser) displayName(raw schemas.RawModel) string {
	slug := strings.ToLower(raw.CanonicalSlug)
	if strings.HasPrefix(slug, "google/") && strings.Contains(slug, "gemma") {
		return normalize.GemmaDisplayName(raw.CanonicalSlug)
	}
	name := normalize.CleanDisplayName(raw.DisplayName)
	if name == "" {
		name = f.providerSlug(raw)
	}
	return name
}

func (f *Fuser) providerSlug(raw schemas.RawModel) string {
	if raw.ProviderSlug != "" {
		return raw.ProviderSlug
	}
	return normalize.ProviderSlug(raw.CanonicalSlug)
}

// fuseModalities applies the precedence chain: config override, then the
// scraped fact, then the raw API lists.
func (f *Fuser) fuseModalities(raw schemas.RawModel, scraped schemas.ModalityFact) (inputs, outputs string) {
	var override schemas.ModalityFact
	if o, ok := f.config.ModalityOverrides[raw.CanonicalSlug]; ok {
		override = schemas.ModalityFact{Inputs: o.Inputs, Outputs: o.Outputs}
	}
	in := normalize.MergeModalities(override.Inputs, scraped.Inputs, raw.RawModalitiesIn)
	out := normalize.MergeModalities(override.Outputs, scraped.Outputs, raw.RawModalitiesOut)
	return normalize.FormatModalities(in), normalize.FormatModalities(out)
}
