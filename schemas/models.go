package schemas

import "time"

// InferenceProvider identifies one of the supported inference providers.
type InferenceProvider string

const (
	Google     InferenceProvider = "Google"
	Groq       InferenceProvider = "Groq"
	OpenRouter InferenceProvider = "OpenRouter"
)

// SourceSection records which extraction path produced a raw model.
type SourceSection string

const (
	SourceAPI            SourceSection = "api"
	SourceHTMLTable      SourceSection = "html-table"
	SourceHTMLExpandable SourceSection = "html-expandable"
	SourceConfig         SourceSection = "config"
)

// Unknown is the sentinel used for provider facts that could not be resolved.
// It is never conflated with the empty string used for optional license fields.
const Unknown = "Unknown"

// RawModel is a provider-observed model before normalization. It lives only
// in memory within one pipeline run.
type RawModel struct {
	ProviderID          string        `json:"provider_id"`
	CanonicalSlug       string        `json:"canonical_slug"`
	ProviderSlug        string        `json:"provider_slug"`
	DisplayName         string        `json:"display_name"`
	CreatedAtSource     *time.Time    `json:"created_at_source,omitempty"`
	RawModalitiesIn     []string      `json:"raw_modalities_in,omitempty"`
	RawModalitiesOut    []string      `json:"raw_modalities_out,omitempty"`
	RawRateLimits       string        `json:"raw_rate_limits,omitempty"`
	ContextWindow       *int          `json:"context_window,omitempty"`
	MaxCompletionTokens *int          `json:"max_completion_tokens,omitempty"`
	HuggingFaceID       string        `json:"hugging_face_id,omitempty"`
	SourceSection       SourceSection `json:"source_section"`
}

// LicenseCategory classifies how a model's license identity was resolved.
type LicenseCategory string

const (
	LicenseProprietary LicenseCategory = "proprietary"
	LicenseOpenSource  LicenseCategory = "opensource"
	LicenseCustom      LicenseCategory = "custom"
	LicenseUnknown     LicenseCategory = "unknown"
)

// LicenseFact is the resolved license for a model.
//
// Invariants: category=opensource implies URL comes from the curated
// opensource URL table; category=custom implies InfoURL is empty and URL is
// the HuggingFace repo fallback. InfoText is "info" iff InfoURL is non-empty.
type LicenseFact struct {
	Category LicenseCategory `json:"category"`
	Name     string          `json:"license_name"`
	URL      string          `json:"license_url"`
	InfoText string          `json:"license_info_text"`
	InfoURL  string          `json:"license_info_url"`
	URLLabel string          `json:"license_url_label,omitempty"`
}

// ModalityFact holds a model's canonical input and output modalities.
// Tokens are deduplicated and ordered by the configured priority table.
type ModalityFact struct {
	Inputs  []string `json:"inputs"`
	Outputs []string `json:"outputs"`
}

// ProviderFact carries static upstream-vendor metadata for a model family.
type ProviderFact struct {
	InferenceProvider InferenceProvider `json:"inference_provider"`
	ModelProvider     string            `json:"model_provider"`
	Country           string            `json:"model_provider_country"`
	OfficialURL       string            `json:"official_url"`
	APIAccess         string            `json:"provider_api_access"`
}

// DbRow is the fused row written to the working table. The database assigns
// ID, so it stays empty on the way in. Natural key is
// (InferenceProvider, HumanReadableName).
type DbRow struct {
	ID                string `json:"id,omitempty"`
	InferenceProvider string `json:"inference_provider"`
	ModelProvider     string `json:"model_provider"`
	HumanReadableName string `json:"human_readable_name"`
	ProviderSlug      string `json:"provider_slug"`
	Country           string `json:"model_provider_country"`
	OfficialURL       string `json:"official_url"`
	InputModalities   string `json:"input_modalities"`
	OutputModalities  string `json:"output_modalities"`
	LicenseInfoText   string `json:"license_info_text"`
	LicenseInfoURL    string `json:"license_info_url"`
	LicenseName       string `json:"license_name"`
	LicenseURL        string `json:"license_url"`
	RateLimits        string `json:"rate_limits"`
	ProviderAPIAccess string `json:"provider_api_access"`
	CreatedAt         string `json:"created_at,omitempty"`
	UpdatedAt         string `json:"updated_at,omitempty"`
}

// RateLimitRow is the per-model rate-limit record, upserted keyed by
// HumanReadableName.
type RateLimitRow struct {
	HumanReadableName string `json:"human_readable_name"`
	InferenceProvider string `json:"inference_provider"`
	RPM               int64  `json:"rpm"`
	RPD               int64  `json:"rpd"`
	TPM               int64  `json:"tpm"`
	TPD               int64  `json:"tpd"`
	RawString         string `json:"raw_string"`
	Parseable         bool   `json:"parseable"`
}

// MappingRow links a provider slug to an external performance-metric slug.
type MappingRow struct {
	InferenceProvider string    `json:"inference_provider"`
	ProviderSlug      string    `json:"provider_slug"`
	AASlug            string    `json:"aa_slug"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// ExtractResult is the shared output contract of the provider extractors.
// Modalities and RateLimits are keyed by provider id; Diagnostics are
// human-readable error lines preserved verbatim into reports.
type ExtractResult struct {
	RawModels   []RawModel              `json:"raw_models"`
	Modalities  map[string]ModalityFact `json:"modalities"`
	RateLimits  map[string]string       `json:"rate_limits"`
	Diagnostics []string                `json:"diagnostics"`
}

// Ptr returns a pointer to the given value.
func Ptr[T any](v T) *T {
	return &v
}
