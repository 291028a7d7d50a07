package providers

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/modelatlas/pipeline/configs"
	"github.com/modelatlas/pipeline/extract"
	"github.com/modelatlas/pipeline/network"
	"github.com/modelatlas/pipeline/normalize"
	"github.com/modelatlas/pipeline/schemas"
)

// GroqExtractor scrapes the Groq documentation: the production-models table,
// the dynamically populated rate-limits table, and per-model detail pages
// for INPUT/OUTPUT modality labels.
type GroqExtractor struct {
	config  *configs.GroqConfig
	fetcher *network.Fetcher
	logger  schemas.Logger
}

// NewGroqExtractor wires a Groq extractor from config.
func NewGroqExtractor(config *configs.GroqConfig, fetcher *network.Fetcher, logger schemas.Logger) *GroqExtractor {
	return &GroqExtractor{config: config, fetcher: fetcher, logger: logger}
}

func (e *GroqExtractor) Provider() schemas.InferenceProvider {
	return schemas.Groq
}

// Extract scrapes the model table, attaches rate limits and modalities, and
// returns the merged result sorted by canonical slug.
func (e *GroqExtractor) Extract(ctx context.Context) (*schemas.ExtractResult, error) {
	result := newExtractResult()

	models, err := e.scrapeModelTable(ctx)
	if err != nil {
		return nil, err
	}

	limits, diagnostics := e.scrapeRateLimits(ctx)
	result.Diagnostics = append(result.Diagnostics, diagnostics...)

	for i := range models {
		id := models[i].ProviderID
		if raw, ok := limits[id]; ok {
			models[i].RawRateLimits = raw
			result.RateLimits[models[i].CanonicalSlug] = raw
		}
		fact, diagnostic := e.modelModalities(ctx, id)
		if diagnostic != "" {
			result.Diagnostics = append(result.Diagnostics, diagnostic)
		}
		result.Modalities[models[i].CanonicalSlug] = fact
	}

	sort.Slice(models, func(i, j int) bool {
		return models[i].CanonicalSlug < models[j].CanonicalSlug
	})
	result.RawModels = models
	return result, nil
}

func (e *GroqExtractor) scrapeModelTable(ctx context.Context) ([]schemas.RawModel, error) {
	fetched, err := e.fetcher.Fetch(ctx, network.FetchOptions{
		URL:     e.config.ModelsURL,
		Timeout: 30 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("groq models page: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(fetched.Body))
	if err != nil {
		return nil, fmt.Errorf("groq models page: parse: %w", err)
	}

	root := extract.FindSection(doc, "production-models", func(text string) bool {
		return strings.Contains(strings.ToLower(text), "production models")
	})
	if root == nil {
		root = doc.Selection
	}
	tables := extract.FindTables(root, extract.HeadersContain("Model ID", "Context Window"))
	if len(tables) == 0 {
		// The section anchor may sit outside the table's subtree.
		tables = extract.FindTables(doc.Selection, extract.HeadersContain("Model ID", "Context Window"))
	}
	if len(tables) == 0 {
		return nil, fmt.Errorf("groq models page: production-models table not found")
	}

	table := tables[0]
	idCol, _ := table.ColumnIndex("Model ID")
	contextCol, hasContext := table.ColumnIndex("Context Window")
	completionCol, hasCompletion := table.ColumnIndex("Max Completion")

	var models []schemas.RawModel
	for _, row := range table.Rows() {
		if idCol >= len(row) {
			continue
		}
		id := strings.TrimSpace(row[idCol])
		if id == "" {
			continue
		}
		model := schemas.RawModel{
			ProviderID:    id,
			CanonicalSlug: id,
			ProviderSlug:  normalize.ProviderSlug(id),
			DisplayName:   id,
			SourceSection: schemas.SourceHTMLTable,
		}
		if hasContext && contextCol < len(row) {
			if n, ok := parseTokenCount(row[contextCol]); ok {
				model.ContextWindow = schemas.Ptr(n)
			}
		}
		if hasCompletion && completionCol < len(row) {
			if n, ok := parseTokenCount(row[completionCol]); ok {
				model.MaxCompletionTokens = schemas.Ptr(n)
			}
		}
		models = append(models, model)
	}
	e.logger.Info("groq: %d models in production table", len(models))
	return models, nil
}

// scrapeRateLimits polls the rate-limits page until its client-rendered
// table has a non-empty first data row, bounded by the configured retry
// budget. Returns raw per-model limit strings keyed by model id.
func (e *GroqExtractor) scrapeRateLimits(ctx context.Context) (map[string]string, []string) {
	var diagnostics []string
	for attempt := 1; attempt <= e.config.TableRetries; attempt++ {
		limits, err := e.readRateLimitTable(ctx)
		if err == nil {
			return limits, diagnostics
		}
		diagnostics = append(diagnostics,
			fmt.Sprintf("rate-limits table attempt %d/%d: %v", attempt, e.config.TableRetries, err))
		if attempt < e.config.TableRetries {
			select {
			case <-time.After(time.Duration(e.config.TableRetryDelaySeconds) * time.Second):
			case <-ctx.Done():
				diagnostics = append(diagnostics, fmt.Sprintf("rate-limits polling cancelled: %v", ctx.Err()))
				return nil, diagnostics
			}
		}
	}
	return nil, diagnostics
}

func (e *GroqExtractor) readRateLimitTable(ctx context.Context) (map[string]string, error) {
	fetched, err := e.fetcher.Fetch(ctx, network.FetchOptions{
		URL:     e.config.RateLimitsURL,
		Timeout: 30 * time.Second,
	})
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(fetched.Body))
	if err != nil {
		return nil, err
	}
	tables := extract.FindTables(doc.Selection, extract.HeadersContain("Model ID", "RPM"))
	if len(tables) == 0 {
		return nil, fmt.Errorf("rate-limits table not found")
	}
	table := tables[0]
	rows := table.Rows()
	if len(rows) == 0 || strings.TrimSpace(rows[0][0]) == "" {
		return nil, fmt.Errorf("rate-limits table not yet populated")
	}

	idCol, _ := table.ColumnIndex("Model ID")
	limits := make(map[string]string, len(rows))
	for _, row := range rows {
		if idCol >= len(row) {
			continue
		}
		id := strings.TrimSpace(row[idCol])
		if id == "" {
			continue
		}
		var parts []string
		for _, field := range []string{"RPM", "RPD", "TPM", "TPD"} {
			col, ok := table.ColumnIndex(field)
			if !ok || col >= len(row) || strings.TrimSpace(row[col]) == "" {
				continue
			}
			parts = append(parts, field+": "+strings.TrimSpace(row[col]))
		}
		if len(parts) > 0 {
			limits[id] = strings.Join(parts, ", ")
		}
	}
	return limits, nil
}

// modelModalities reads the per-model detail page for INPUT/OUTPUT labels;
// a deterministic name heuristic covers models without labels.
func (e *GroqExtractor) modelModalities(ctx context.Context, modelID string) (schemas.ModalityFact, string) {
	url := strings.TrimSuffix(e.config.ModelDetailURL, "/") + "/" + modelID
	fetched, err := e.fetcher.Fetch(ctx, network.FetchOptions{
		URL:     url,
		Timeout: 15 * time.Second,
	})
	if err != nil {
		return heuristicModalities(modelID),
			fmt.Sprintf("detail page for %s unavailable, using name heuristic: %v", modelID, err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(fetched.Body))
	if err != nil {
		return heuristicModalities(modelID),
			fmt.Sprintf("detail page for %s unparseable, using name heuristic: %v", modelID, err)
	}
	if fact, ok := labeledModalities(doc); ok {
		return fact, ""
	}
	return heuristicModalities(modelID), ""
}

// labeledModalities finds INPUT and OUTPUT label elements and reads the
// modality tokens out of each label's parent text.
func labeledModalities(doc *goquery.Document) (schemas.ModalityFact, bool) {
	collect := func(label string) []string {
		var tokens []string
		doc.Find("span, div, dt, th, p").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			if !strings.EqualFold(strings.TrimSpace(sel.Text()), label) {
				return true
			}
			parentText := strings.ToLower(sel.Parent().Text())
			for _, token := range []string{"audio", "text", "image", "video"} {
				if strings.Contains(parentText, token) {
					tokens = append(tokens, token)
				}
			}
			return false
		})
		return tokens
	}
	inputs := collect("INPUT")
	outputs := collect("OUTPUT")
	if len(inputs) == 0 && len(outputs) == 0 {
		return schemas.ModalityFact{}, false
	}
	return schemas.ModalityFact{Inputs: inputs, Outputs: outputs}, true
}

// heuristicModalities is the deterministic fallback keyed on the model name.
func heuristicModalities(modelID string) schemas.ModalityFact {
	id := strings.ToLower(modelID)
	switch {
	case strings.Contains(id, "whisper"):
		return schemas.ModalityFact{Inputs: []string{normalize.ModalityAudio}, Outputs: []string{normalize.ModalityText}}
	case strings.Contains(id, "tts"):
		return schemas.ModalityFact{Inputs: []string{normalize.ModalityText}, Outputs: []string{normalize.ModalityAudio}}
	case strings.Contains(id, "guard"):
		return schemas.ModalityFact{
			Inputs:  []string{normalize.ModalityImage, normalize.ModalityText},
			Outputs: []string{normalize.ModalityText},
		}
	default:
		return schemas.ModalityFact{Inputs: []string{normalize.ModalityText}, Outputs: []string{normalize.ModalityText}}
	}
}

// parseTokenCount reads a human token count like "131,072", "128K" or "8192".
func parseTokenCount(raw string) (int, bool) {
	s := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(raw), ",", ""))
	if s == "" || s == "-" {
		return 0, false
	}
	multiplier := 1
	switch {
	case strings.HasSuffix(s, "K"):
		multiplier = 1_000
		s = strings.TrimSuffix(s, "K")
	case strings.HasSuffix(s, "M"):
		multiplier = 1_000_000
		s = strings.TrimSuffix(s, "M")
	}
	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return int(math.Round(value * float64(multiplier))), true
}
