package configs

import (
	"fmt"
	"os"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"
	"github.com/modelatlas/pipeline/schemas"
)

var validate = validator.New()

// PipelineConfig is the typed per-provider configuration artifact.
type PipelineConfig struct {
	Provider  schemas.InferenceProvider `json:"provider" validate:"required,oneof=Google Groq OpenRouter"`
	OutputDir string                    `json:"output_dir"`

	// DatabaseDSN optionally overrides the PIPELINE_SUPABASE_URL credential.
	// Accepts an "env.NAME" reference so config files never carry the DSN.
	DatabaseDSN *schemas.EnvVar `json:"database_dsn,omitempty"`

	Google     *GoogleConfig     `json:"google,omitempty"`
	Groq       *GroqConfig       `json:"groq,omitempty"`
	OpenRouter *OpenRouterConfig `json:"openrouter,omitempty"`

	// ModalityOverrides maps canonical slugs to hand-maintained modality
	// lists that take precedence over both scraper and API data.
	ModalityOverrides map[string]ModalityOverride `json:"modality_overrides,omitempty"`

	// ProviderFacts resolve the upstream vendor for a canonical slug by
	// prefix, with family patterns for Google.
	ProviderFacts []ProviderFactRule `json:"provider_facts,omitempty"`

	// RemovalList is the operator policy: canonical slugs removed from the
	// final row stream (reported, not emitted).
	RemovalList []string `json:"removal_list,omitempty"`

	// StageTimeoutSeconds is the per-stage watchdog ceiling.
	StageTimeoutSeconds int `json:"stage_timeout_seconds" validate:"gte=0"`
}

// ModalityOverride is a per-model modality list from config.
type ModalityOverride struct {
	Inputs  []string `json:"inputs"`
	Outputs []string `json:"outputs"`
}

// ProviderFactRule binds a canonical-slug prefix (and optional family
// patterns matched against the slug body) to static vendor facts.
type ProviderFactRule struct {
	Prefix   string               `json:"prefix"`
	Patterns []string             `json:"patterns,omitempty"`
	Fact     schemas.ProviderFact `json:"fact"`
}

// GoogleConfig drives the Google extractor.
type GoogleConfig struct {
	ListURL string `json:"list_url" validate:"required,url"`
	// ScrapePages are the documentation pages the modality scraper visits.
	ScrapePages []ScrapePage `json:"scrape_pages"`
	// MinModalities is the quality-gate floor: fewer scraped modality
	// entries than this preserves the previous artifact.
	MinModalities int `json:"min_modalities"`
}

// ScrapePageKind selects the parsing strategy for a documentation page.
type ScrapePageKind string

const (
	// PageKindDevsite enumerates devsite-expandable/selector panels.
	PageKindDevsite ScrapePageKind = "devsite"
	// PageKindAnchored parses a heading-anchored section.
	PageKindAnchored ScrapePageKind = "anchored"
	// PageKindModelCard parses descriptive paragraphs on a model card.
	PageKindModelCard ScrapePageKind = "model-card"
)

// ScrapePage is one documentation URL with its parsing strategy.
type ScrapePage struct {
	Name string `json:"name"`
	URL  string `json:"url" validate:"required,url"`
	Kind ScrapePageKind `json:"kind" validate:"required,oneof=devsite anchored model-card"`
	// PanelPrefix filters devsite panels (e.g. "gemini").
	PanelPrefix string `json:"panel_prefix,omitempty"`
	// SectionID / Heading anchor a section for anchored pages.
	SectionID string `json:"section_id,omitempty"`
	Heading   string `json:"heading,omitempty"`
	// Slug is the canonical slug a model-card page describes.
	Slug string `json:"slug,omitempty"`
}

// GroqConfig drives the Groq extractor.
type GroqConfig struct {
	ModelsURL      string `json:"models_url" validate:"required,url"`
	RateLimitsURL  string `json:"rate_limits_url" validate:"required,url"`
	ModelDetailURL string `json:"model_detail_url" validate:"required,url"`
	// TableRetries bounds the wait for the dynamically-populated
	// rate-limits table; TableRetryDelaySeconds is the gap between polls.
	TableRetries           int `json:"table_retries"`
	TableRetryDelaySeconds int `json:"table_retry_delay_seconds"`
}

// OpenRouterConfig drives the OpenRouter extractor and its filter chain.
type OpenRouterConfig struct {
	ModelsURL string `json:"models_url" validate:"required,url"`
	// FreeMarkers are the pricing strings that identify a free model.
	FreeMarkers []string `json:"free_markers"`
	// BillingKeywords drop models whose description mentions billing terms.
	BillingKeywords []string `json:"billing_keywords"`
	// ExcludeKeywords drop models whose name matches (preview, beta, ...).
	ExcludeKeywords []string `json:"exclude_keywords"`
	// PreferFreeSuffix keeps the " (free)" variant when deduplicating.
	PreferFreeSuffix bool `json:"prefer_free_suffix"`
}

// Load reads, decodes and validates a pipeline config file. A missing file
// is fatal; optional sections absent from the file get documented defaults.
func Load(path string) (*PipelineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	var config PipelineConfig
	if err := sonic.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	config.applyDefaults()
	if err := validate.Struct(&config); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &config, nil
}

// StageTimeout returns the per-stage watchdog as a duration.
func (c *PipelineConfig) StageTimeout() time.Duration {
	if c.StageTimeoutSeconds <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(c.StageTimeoutSeconds) * time.Second
}

func (c *PipelineConfig) applyDefaults() {
	if c.OutputDir == "" {
		c.OutputDir = "outputs"
	}
	if c.Google != nil {
		if c.Google.MinModalities == 0 {
			c.Google.MinModalities = 15
		}
	}
	if c.Groq != nil {
		if c.Groq.TableRetries == 0 {
			c.Groq.TableRetries = 5
		}
		if c.Groq.TableRetryDelaySeconds == 0 {
			c.Groq.TableRetryDelaySeconds = 3
		}
	}
	if c.OpenRouter != nil {
		if len(c.OpenRouter.FreeMarkers) == 0 {
			c.OpenRouter.FreeMarkers = []string{"0", "0.0"}
		}
		if len(c.OpenRouter.ExcludeKeywords) == 0 {
			c.OpenRouter.ExcludeKeywords = []string{"preview", "experimental", "beta"}
		}
	}
	if len(c.ProviderFacts) == 0 {
		c.ProviderFacts = DefaultProviderFacts(c.Provider)
	}
}

// Default returns the reference configuration for a provider, used when no
// config file is supplied on the command line.
func Default(provider schemas.InferenceProvider) *PipelineConfig {
	config := &PipelineConfig{Provider: provider, OutputDir: "outputs"}
	switch provider {
	case schemas.Google:
		config.Google = &GoogleConfig{
			ListURL: "https://generativelanguage.googleapis.com/v1beta/models",
			ScrapePages: []ScrapePage{
				{Name: "gemini", URL: "https://ai.google.dev/gemini-api/docs/models", Kind: PageKindDevsite, PanelPrefix: "gemini"},
				{Name: "imagen", URL: "https://ai.google.dev/gemini-api/docs/imagen", Kind: PageKindAnchored, Heading: "Imagen"},
				{Name: "veo", URL: "https://ai.google.dev/gemini-api/docs/video", Kind: PageKindAnchored, Heading: "Veo"},
				{Name: "gemma-3", URL: "https://ai.google.dev/gemma/docs/core", Kind: PageKindModelCard, Slug: "google/gemma-3-27b-it"},
				{Name: "gemma-3n", URL: "https://ai.google.dev/gemma/docs/gemma-3n", Kind: PageKindModelCard, Slug: "google/gemma-3n-e4b-it"},
			},
		}
	case schemas.Groq:
		config.Groq = &GroqConfig{
			ModelsURL:      "https://console.groq.com/docs/models",
			RateLimitsURL:  "https://console.groq.com/docs/rate-limits",
			ModelDetailURL: "https://console.groq.com/docs/model",
		}
	case schemas.OpenRouter:
		config.OpenRouter = &OpenRouterConfig{
			ModelsURL:        "https://openrouter.ai/api/v1/models",
			PreferFreeSuffix: true,
		}
	}
	config.applyDefaults()
	return config
}

// DefaultProviderFacts is the reference vendor-fact table.
func DefaultProviderFacts(provider schemas.InferenceProvider) []ProviderFactRule {
	switch provider {
	case schemas.Google:
		return []ProviderFactRule{
			{Prefix: "google", Patterns: []string{"gemini", "imagen", "veo"}, Fact: schemas.ProviderFact{
				InferenceProvider: schemas.Google, ModelProvider: "Google", Country: "USA",
				OfficialURL: "https://deepmind.google/technologies/gemini/", APIAccess: "https://ai.google.dev/",
			}},
			{Prefix: "google", Patterns: []string{"gemma"}, Fact: schemas.ProviderFact{
				InferenceProvider: schemas.Google, ModelProvider: "Google", Country: "USA",
				OfficialURL: "https://ai.google.dev/gemma", APIAccess: "https://ai.google.dev/",
			}},
		}
	case schemas.Groq:
		return []ProviderFactRule{
			{Prefix: "meta-llama", Fact: schemas.ProviderFact{
				InferenceProvider: schemas.Groq, ModelProvider: "Meta", Country: "USA",
				OfficialURL: "https://www.llama.com/", APIAccess: "https://console.groq.com/",
			}},
			{Prefix: "openai", Fact: schemas.ProviderFact{
				InferenceProvider: schemas.Groq, ModelProvider: "OpenAI", Country: "USA",
				OfficialURL: "https://openai.com/", APIAccess: "https://console.groq.com/",
			}},
		}
	case schemas.OpenRouter:
		return []ProviderFactRule{
			{Prefix: "meta-llama", Fact: schemas.ProviderFact{
				InferenceProvider: schemas.OpenRouter, ModelProvider: "Meta", Country: "USA",
				OfficialURL: "https://www.llama.com/", APIAccess: "https://openrouter.ai/",
			}},
			{Prefix: "google", Fact: schemas.ProviderFact{
				InferenceProvider: schemas.OpenRouter, ModelProvider: "Google", Country: "USA",
				OfficialURL: "https://deepmind.google/", APIAccess: "https://openrouter.ai/",
			}},
			{Prefix: "mistralai", Fact: schemas.ProviderFact{
				InferenceProvider: schemas.OpenRouter, ModelProvider: "Mistral AI", Country: "France",
				OfficialURL: "https://mistral.ai/", APIAccess: "https://openrouter.ai/",
			}},
			{Prefix: "qwen", Fact: schemas.ProviderFact{
				InferenceProvider: schemas.OpenRouter, ModelProvider: "Alibaba", Country: "China",
				OfficialURL: "https://qwenlm.github.io/", APIAccess: "https://openrouter.ai/",
			}},
			{Prefix: "deepseek", Fact: schemas.ProviderFact{
				InferenceProvider: schemas.OpenRouter, ModelProvider: "DeepSeek", Country: "China",
				OfficialURL: "https://www.deepseek.com/", APIAccess: "https://openrouter.ai/",
			}},
		}
	}
	return nil
}

// ResolveProviderFact returns the vendor facts for a canonical slug, or the
// Unknown sentinels when no rule matches.
func (c *PipelineConfig) ResolveProviderFact(canonicalSlug string) schemas.ProviderFact {
	for _, rule := range c.ProviderFacts {
		if !hasPrefixSegment(canonicalSlug, rule.Prefix) {
			continue
		}
		if len(rule.Patterns) == 0 {
			return rule.Fact
		}
		for _, pattern := range rule.Patterns {
			if containsPattern(canonicalSlug, pattern) {
				return rule.Fact
			}
		}
	}
	return schemas.ProviderFact{
		InferenceProvider: c.Provider,
		ModelProvider:     schemas.Unknown,
		Country:           schemas.Unknown,
		OfficialURL:       schemas.Unknown,
	}
}
