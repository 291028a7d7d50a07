package providers

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/bytedance/sonic"
	"github.com/modelatlas/pipeline/configs"
	"github.com/modelatlas/pipeline/extract"
	"github.com/modelatlas/pipeline/network"
	"github.com/modelatlas/pipeline/normalize"
	"github.com/modelatlas/pipeline/schemas"
)

// GoogleExtractor reads the generative-language REST list endpoint for the
// model inventory and drives an HTML modality scraper over the configured
// documentation pages. A quality gate guards the scraped modality set: when
// it is too small or contains a known-wrong pattern, the previous on-disk
// artifact is preserved instead.
type GoogleExtractor struct {
	config  *configs.GoogleConfig
	apiKey  string
	fetcher *network.Fetcher
	logger  schemas.Logger

	// ModalityArtifactPath is the on-disk modality artifact consulted and
	// rewritten around the quality gate. Empty disables preservation.
	ModalityArtifactPath string
}

// NewGoogleExtractor wires a Google extractor from config and the API key.
func NewGoogleExtractor(config *configs.GoogleConfig, apiKey string, fetcher *network.Fetcher, logger schemas.Logger) *GoogleExtractor {
	return &GoogleExtractor{config: config, apiKey: apiKey, fetcher: fetcher, logger: logger}
}

func (e *GoogleExtractor) Provider() schemas.InferenceProvider {
	return schemas.Google
}

// ModalityEntry is the per-model record of the scraped-modality artifact.
type ModalityEntry struct {
	Key     string   `json:"key"`
	Inputs  []string `json:"inputs"`
	Outputs []string `json:"outputs"`
}

type googleModel struct {
	Name             string `json:"name"`
	DisplayName      string `json:"displayName"`
	InputTokenLimit  *int   `json:"inputTokenLimit"`
	OutputTokenLimit *int   `json:"outputTokenLimit"`
}

type googleModelList struct {
	Models []googleModel `json:"models"`
}

// Extract lists models from the REST endpoint, scrapes modalities from the
// documentation pages concurrently, and merges both under the quality gate.
func (e *GoogleExtractor) Extract(ctx context.Context) (*schemas.ExtractResult, error) {
	result := newExtractResult()

	models, err := e.listModels(ctx)
	if err != nil {
		return nil, err
	}
	result.RawModels = models

	entries, diagnostics := e.scrapeModalities(ctx)
	result.Diagnostics = append(result.Diagnostics, diagnostics...)

	entries = e.applyQualityGate(entries, result)
	for _, entry := range entries {
		result.Modalities[entry.Key] = schemas.ModalityFact{
			Inputs:  entry.Inputs,
			Outputs: entry.Outputs,
		}
	}
	return result, nil
}

func (e *GoogleExtractor) listModels(ctx context.Context) ([]schemas.RawModel, error) {
	fetched, err := e.fetcher.Fetch(ctx, network.FetchOptions{
		URL:     e.config.ListURL + "?key=" + e.apiKey,
		Timeout: 30 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("google models endpoint: %w", err)
	}
	var list googleModelList
	if err := sonic.Unmarshal(fetched.Body, &list); err != nil {
		return nil, fmt.Errorf("google models response: %w", err)
	}
	e.logger.Info("google: %d models listed", len(list.Models))

	models := make([]schemas.RawModel, 0, len(list.Models))
	for _, model := range list.Models {
		id := strings.TrimPrefix(model.Name, "models/")
		if id == "" {
			continue
		}
		models = append(models, schemas.RawModel{
			ProviderID:          id,
			CanonicalSlug:       "google/" + id,
			ProviderSlug:        id,
			DisplayName:         model.DisplayName,
			ContextWindow:       model.InputTokenLimit,
			MaxCompletionTokens: model.OutputTokenLimit,
			SourceSection:       schemas.SourceAPI,
		})
	}
	sort.Slice(models, func(i, j int) bool {
		return models[i].CanonicalSlug < models[j].CanonicalSlug
	})
	return models, nil
}

// scrapeModalities fans the configured pages out concurrently. Results merge
// in page order with the first writer winning per key, so the fused output
// is independent of arrival order.
func (e *GoogleExtractor) scrapeModalities(ctx context.Context) ([]ModalityEntry, []string) {
	type pageResult struct {
		entries     []ModalityEntry
		diagnostics []string
	}
	results := make([]pageResult, len(e.config.ScrapePages))
	var wg sync.WaitGroup
	for i, page := range e.config.ScrapePages {
		wg.Add(1)
		go func(i int, page configs.ScrapePage) {
			defer wg.Done()
			entries, diagnostics := e.scrapePage(ctx, page)
			results[i] = pageResult{entries: entries, diagnostics: diagnostics}
		}(i, page)
	}
	wg.Wait()

	seen := make(map[string]bool)
	var merged []ModalityEntry
	var diagnostics []string
	for _, r := range results {
		for _, entry := range r.entries {
			if seen[entry.Key] {
				continue
			}
			seen[entry.Key] = true
			merged = append(merged, entry)
		}
		diagnostics = append(diagnostics, r.diagnostics...)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Key < merged[j].Key })
	return merged, diagnostics
}

func (e *GoogleExtractor) scrapePage(ctx context.Context, page configs.ScrapePage) ([]ModalityEntry, []string) {
	fetched, err := e.fetcher.Fetch(ctx, network.FetchOptions{
		URL:     page.URL,
		Timeout: 30 * time.Second,
	})
	if err != nil {
		return nil, []string{fmt.Sprintf("scrape %s: %v", page.Name, err)}
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(fetched.Body))
	if err != nil {
		return nil, []string{fmt.Sprintf("scrape %s: parse: %v", page.Name, err)}
	}

	switch page.Kind {
	case configs.PageKindDevsite:
		return e.scrapeDevsite(doc, page)
	case configs.PageKindAnchored:
		return e.scrapeAnchored(doc, page)
	case configs.PageKindModelCard:
		return e.scrapeModelCard(doc, page)
	}
	return nil, []string{fmt.Sprintf("scrape %s: unknown page kind %q", page.Name, page.Kind)}
}

func (e *GoogleExtractor) scrapeDevsite(doc *goquery.Document, page configs.ScrapePage) ([]ModalityEntry, []string) {
	var entries []ModalityEntry
	var diagnostics []string
	for _, panel := range extract.ParseDevsitePanels(doc, page.PanelPrefix) {
		inputs, outputs, ok := extract.ParseSupportedDataTypes(panel.Selection)
		if !ok {
			diagnostics = append(diagnostics,
				fmt.Sprintf("scrape %s: panel %s has no supported-data-types block", page.Name, panel.ID))
			continue
		}
		entries = append(entries, ModalityEntry{
			Key:     "google/" + panel.Key,
			Inputs:  inputs,
			Outputs: outputs,
		})
	}
	return entries, diagnostics
}

func (e *GoogleExtractor) scrapeAnchored(doc *goquery.Document, page configs.ScrapePage) ([]ModalityEntry, []string) {
	var headingPred func(string) bool
	if page.Heading != "" {
		headingPred = func(text string) bool {
			return strings.Contains(strings.ToLower(text), strings.ToLower(page.Heading))
		}
	}
	section := extract.FindSection(doc, page.SectionID, headingPred)
	if section == nil {
		return nil, []string{fmt.Sprintf("scrape %s: anchored section not found", page.Name)}
	}
	inputs, outputs, ok := extract.ParseSupportedDataTypes(section)
	if !ok {
		return nil, []string{fmt.Sprintf("scrape %s: section has no supported-data-types block", page.Name)}
	}
	return []ModalityEntry{{Key: e.pageKey(page), Inputs: inputs, Outputs: outputs}}, nil
}

// scrapeModelCard reads the descriptive paragraphs of a Gemma model card:
// fixed positions first, then a whole-page scan.
func (e *GoogleExtractor) scrapeModelCard(doc *goquery.Document, page configs.ScrapePage) ([]ModalityEntry, []string) {
	paragraphs := doc.Find("p")
	for _, position := range []int{6, 7} {
		candidate := paragraphs.Eq(position)
		if candidate.Length() == 0 {
			continue
		}
		if inputs, outputs, ok := extract.ParseSupportedDataTypes(candidate); ok {
			return []ModalityEntry{{Key: e.pageKey(page), Inputs: inputs, Outputs: outputs}}, nil
		}
	}
	if inputs, outputs, ok := extract.ParseSupportedDataTypes(doc.Selection); ok {
		return []ModalityEntry{{Key: e.pageKey(page), Inputs: inputs, Outputs: outputs}}, nil
	}
	return nil, []string{fmt.Sprintf("scrape %s: no descriptive modality paragraph found", page.Name)}
}

func (e *GoogleExtractor) pageKey(page configs.ScrapePage) string {
	if page.Slug != "" {
		return page.Slug
	}
	return "google/" + normalize.NormalizeSlug(page.Name)
}

// applyQualityGate rejects a scraped modality set that is smaller than the
// configured floor or that attributes PDF input to a Gemini 2.0 model. On
// rejection the previous artifact is reloaded and kept.
func (e *GoogleExtractor) applyQualityGate(entries []ModalityEntry, result *schemas.ExtractResult) []ModalityEntry {
	reason := e.gateFailure(entries)
	if reason == "" {
		return entries
	}
	result.Diagnostics = append(result.Diagnostics, "quality gate: "+reason+"; preserving previous artifact")
	e.logger.Warn("google modality quality gate tripped: %s", reason)

	previous, err := e.loadPreviousEntries()
	if err != nil {
		result.Diagnostics = append(result.Diagnostics,
			fmt.Sprintf("quality gate: previous artifact unavailable (%v); keeping scraped set", err))
		return entries
	}
	return previous
}

func (e *GoogleExtractor) gateFailure(entries []ModalityEntry) string {
	if len(entries) < e.config.MinModalities {
		return fmt.Sprintf("only %d modality entries, floor is %d", len(entries), e.config.MinModalities)
	}
	for _, entry := range entries {
		if !strings.Contains(entry.Key, "gemini-2.0") {
			continue
		}
		for _, token := range append(append([]string{}, entry.Inputs...), entry.Outputs...) {
			if strings.EqualFold(strings.TrimSpace(token), "pdf") {
				return fmt.Sprintf("PDF modality on %s", entry.Key)
			}
		}
	}
	return ""
}

func (e *GoogleExtractor) loadPreviousEntries() ([]ModalityEntry, error) {
	if e.ModalityArtifactPath == "" {
		return nil, fmt.Errorf("no modality artifact path configured")
	}
	data, err := os.ReadFile(e.ModalityArtifactPath)
	if err != nil {
		return nil, err
	}
	artifact, err := schemas.DecodeArtifact[ModalityEntry](data)
	if err != nil {
		return nil, err
	}
	return artifact.Models, nil
}
