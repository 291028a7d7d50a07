package providers

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/modelatlas/pipeline/configs"
	"github.com/modelatlas/pipeline/network"
	"github.com/modelatlas/pipeline/normalize"
	"github.com/modelatlas/pipeline/schemas"
)

// OpenRouterExtractor reads the OpenRouter models endpoint and applies the
// sequential free-model filter chain. Every filter reports how many models
// it dropped.
type OpenRouterExtractor struct {
	config  *configs.OpenRouterConfig
	apiKey  string
	fetcher *network.Fetcher
	logger  schemas.Logger
}

// NewOpenRouterExtractor wires an OpenRouter extractor from config and the
// bearer token.
func NewOpenRouterExtractor(config *configs.OpenRouterConfig, apiKey string, fetcher *network.Fetcher, logger schemas.Logger) *OpenRouterExtractor {
	return &OpenRouterExtractor{config: config, apiKey: apiKey, fetcher: fetcher, logger: logger}
}

func (e *OpenRouterExtractor) Provider() schemas.InferenceProvider {
	return schemas.OpenRouter
}

type openRouterModel struct {
	ID            string `json:"id"`
	CanonicalSlug string `json:"canonical_slug"`
	Name          string `json:"name"`
	Created       int64  `json:"created"`
	Description   string `json:"description"`
	ContextLength *int   `json:"context_length"`
	HuggingFaceID string `json:"hugging_face_id"`
	Pricing       struct {
		Prompt     string `json:"prompt"`
		Completion string `json:"completion"`
		Request    string `json:"request"`
	} `json:"pricing"`
	Architecture struct {
		InputModalities  []string `json:"input_modalities"`
		OutputModalities []string `json:"output_modalities"`
	} `json:"architecture"`
	TopProvider struct {
		MaxCompletionTokens *int `json:"max_completion_tokens"`
	} `json:"top_provider"`
}

type openRouterList struct {
	Data []openRouterModel `json:"data"`
}

// Extract lists all models, keeps the free ones, and converts survivors into
// raw models keyed by canonical slug.
func (e *OpenRouterExtractor) Extract(ctx context.Context) (*schemas.ExtractResult, error) {
	result := newExtractResult()

	fetched, err := e.fetcher.Fetch(ctx, network.FetchOptions{
		URL:     e.config.ModelsURL,
		Timeout: 30 * time.Second,
		Headers: map[string]string{"Authorization": "Bearer " + e.apiKey},
	})
	if err != nil {
		return nil, fmt.Errorf("openrouter models endpoint: %w", err)
	}
	var list openRouterList
	if err := sonic.Unmarshal(fetched.Body, &list); err != nil {
		return nil, fmt.Errorf("openrouter models response: %w", err)
	}
	e.logger.Info("openrouter: %d models listed", len(list.Data))

	survivors := e.filterFree(list.Data, result)
	survivors = e.filterBillingKeywords(survivors, result)
	survivors = e.filterExcludedNames(survivors, result)
	survivors = e.dedupeFreeSuffix(survivors, result)

	sort.Slice(survivors, func(i, j int) bool {
		return survivors[i].canonicalSlug() < survivors[j].canonicalSlug()
	})
	for _, model := range survivors {
		slug := model.canonicalSlug()
		raw := schemas.RawModel{
			ProviderID:          model.ID,
			CanonicalSlug:       slug,
			ProviderSlug:        normalize.ProviderSlug(slug),
			DisplayName:         model.Name,
			RawModalitiesIn:     model.Architecture.InputModalities,
			RawModalitiesOut:    model.Architecture.OutputModalities,
			ContextWindow:       model.ContextLength,
			MaxCompletionTokens: model.TopProvider.MaxCompletionTokens,
			HuggingFaceID:       model.HuggingFaceID,
			SourceSection:       schemas.SourceAPI,
		}
		if model.Created > 0 {
			raw.CreatedAtSource = schemas.Ptr(time.Unix(model.Created, 0).UTC())
		}
		result.RawModels = append(result.RawModels, raw)
		result.Modalities[slug] = schemas.ModalityFact{
			Inputs:  model.Architecture.InputModalities,
			Outputs: model.Architecture.OutputModalities,
		}
	}
	return result, nil
}

func (m *openRouterModel) canonicalSlug() string {
	if m.CanonicalSlug != "" {
		return m.CanonicalSlug
	}
	slug, _, _ := strings.Cut(m.ID, ":")
	return slug
}

// filterFree keeps models whose prompt, completion and request prices all
// match a configured free-marker string.
func (e *OpenRouterExtractor) filterFree(models []openRouterModel, result *schemas.ExtractResult) []openRouterModel {
	isFree := func(price string) bool {
		for _, marker := range e.config.FreeMarkers {
			if price == marker {
				return true
			}
		}
		return false
	}
	var kept []openRouterModel
	for _, model := range models {
		if isFree(model.Pricing.Prompt) && isFree(model.Pricing.Completion) && isFree(model.Pricing.Request) {
			kept = append(kept, model)
		}
	}
	result.Diagnostics = append(result.Diagnostics,
		fmt.Sprintf("free-pricing filter: %d kept, %d dropped", len(kept), len(models)-len(kept)))
	return kept
}

func (e *OpenRouterExtractor) filterBillingKeywords(models []openRouterModel, result *schemas.ExtractResult) []openRouterModel {
	if len(e.config.BillingKeywords) == 0 {
		return models
	}
	var kept []openRouterModel
	for _, model := range models {
		description := strings.ToLower(model.Description)
		dropped := false
		for _, keyword := range e.config.BillingKeywords {
			if strings.Contains(description, strings.ToLower(keyword)) {
				dropped = true
				break
			}
		}
		if !dropped {
			kept = append(kept, model)
		}
	}
	result.Diagnostics = append(result.Diagnostics,
		fmt.Sprintf("billing-keyword filter: %d kept, %d dropped", len(kept), len(models)-len(kept)))
	return kept
}

func (e *OpenRouterExtractor) filterExcludedNames(models []openRouterModel, result *schemas.ExtractResult) []openRouterModel {
	var kept []openRouterModel
	for _, model := range models {
		name := strings.ToLower(model.Name)
		dropped := false
		for _, keyword := range e.config.ExcludeKeywords {
			if strings.Contains(name, strings.ToLower(keyword)) {
				dropped = true
				break
			}
		}
		if !dropped {
			kept = append(kept, model)
		}
	}
	result.Diagnostics = append(result.Diagnostics,
		fmt.Sprintf("name-exclusion filter: %d kept, %d dropped", len(kept), len(models)-len(kept)))
	return kept
}

// dedupeFreeSuffix collapses pairs that differ only by the " (free)" suffix.
// The suffixed variant wins when PreferFreeSuffix is set, otherwise the
// first survivor wins.
func (e *OpenRouterExtractor) dedupeFreeSuffix(models []openRouterModel, result *schemas.ExtractResult) []openRouterModel {
	byName := make(map[string]int)
	var kept []openRouterModel
	for _, model := range models {
		base := strings.TrimSuffix(model.Name, normalize.FreeSuffix)
		if at, seen := byName[base]; seen {
			if e.config.PreferFreeSuffix && strings.HasSuffix(model.Name, normalize.FreeSuffix) {
				kept[at] = model
			}
			continue
		}
		byName[base] = len(kept)
		kept = append(kept, model)
	}
	result.Diagnostics = append(result.Diagnostics,
		fmt.Sprintf("free-suffix dedup: %d kept, %d dropped", len(kept), len(models)-len(kept)))
	return kept
}
