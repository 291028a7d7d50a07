package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/modelatlas/pipeline/catalog"
	"github.com/modelatlas/pipeline/configs"
	"github.com/modelatlas/pipeline/license"
	"github.com/modelatlas/pipeline/network"
	"github.com/modelatlas/pipeline/providers"
	"github.com/modelatlas/pipeline/schemas"
	"github.com/modelatlas/pipeline/store"
)

// Stage letters in execution order. Artifacts are prefixed with the
// lowercased letter so a later invocation can resume from disk.
const (
	StageExtract  = "A"
	StageLicenses = "B"
	StageFuse     = "C"
	StageSync     = "D"
	StageMap      = "E"
	StageCompare  = "F"
	StagePromote  = "G"
)

// StageOrder is the canonical stage sequence.
var StageOrder = []string{
	StageExtract, StageLicenses, StageFuse, StageSync, StageMap, StageCompare, StagePromote,
}

// Runner assembles the orchestrated stages for one provider run. Stages
// communicate through in-memory state when run together and through the
// on-disk artifacts when run as separate invocations.
type Runner struct {
	Config      *configs.PipelineConfig
	Credentials *configs.Credentials
	Fetcher     *network.Fetcher
	Store       *store.Store
	Logger      schemas.Logger

	state runState
}

type runState struct {
	raws       []schemas.RawModel
	modalities map[string]schemas.ModalityFact
	licenses   map[string]schemas.LicenseFact
	fused      []schemas.DbRow
	rateLimits []schemas.RateLimitRow
}

// licenseEntry is the on-disk shape of one resolved license.
type licenseEntry struct {
	Slug string `json:"slug"`
	schemas.LicenseFact
}

// OutputDir is the per-provider artifact directory.
func (r *Runner) OutputDir() string {
	return filepath.Join(r.Config.OutputDir, strings.ToLower(string(r.Config.Provider)))
}

// Stages returns the selected stages in canonical order.
func (r *Runner) Stages(selected map[string]bool) []Stage {
	all := map[string]Stage{
		StageExtract:  {Name: "A-extract", Required: true, Run: r.runExtract},
		StageLicenses: {Name: "B-licenses", Required: false, Run: r.runLicenses},
		StageFuse:     {Name: "C-fuse", Required: true, Run: r.runFuse},
		StageSync:     {Name: "D-sync", Required: true, Run: r.runSync},
		StageMap:      {Name: "E-map", Required: false, Run: r.runMappings},
		StageCompare:  {Name: "F-compare", Required: false, Run: r.runCompare},
		StagePromote:  {Name: "G-promote", Required: true, Run: r.runPromote},
	}
	var stages []Stage
	for _, letter := range StageOrder {
		if selected[letter] {
			stages = append(stages, all[letter])
		}
	}
	return stages
}

// NeedsStore reports whether any selected stage touches the database.
func NeedsStore(selected map[string]bool) bool {
	return selected[StageSync] || selected[StageMap] || selected[StageCompare] || selected[StagePromote]
}

func (r *Runner) extractor() (providers.Extractor, error) {
	switch r.Config.Provider {
	case schemas.Google:
		key, err := r.Credentials.KeyFor(schemas.Google)
		if err != nil {
			return nil, err
		}
		extractor := providers.NewGoogleExtractor(r.Config.Google, key, r.Fetcher, r.Logger)
		extractor.ModalityArtifactPath = filepath.Join(r.OutputDir(), "a-modalities.json")
		return extractor, nil
	case schemas.Groq:
		return providers.NewGroqExtractor(r.Config.Groq, r.Fetcher, r.Logger), nil
	case schemas.OpenRouter:
		key, err := r.Credentials.KeyFor(schemas.OpenRouter)
		if err != nil {
			return nil, err
		}
		return providers.NewOpenRouterExtractor(r.Config.OpenRouter, key, r.Fetcher, r.Logger), nil
	}
	return nil, fmt.Errorf("no extractor for provider %q", r.Config.Provider)
}

func (r *Runner) runExtract(ctx context.Context) ([]string, error) {
	extractor, err := r.extractor()
	if err != nil {
		return nil, err
	}
	result, err := extractor.Extract(ctx)
	report := []string{fmt.Sprintf("provider: %s", r.Config.Provider)}
	if err != nil {
		report = append(report, fmt.Sprintf("extract failed: %v", err))
		catalog.WriteReport(r.OutputDir(), "a-raw-models-report", report)
		return nil, err
	}
	r.state.raws = result.RawModels
	r.state.modalities = result.Modalities

	if _, err := catalog.WriteArtifact(r.OutputDir(), "a-raw-models", "extract", result.RawModels); err != nil {
		return result.Diagnostics, err
	}
	if _, err := catalog.WriteArtifact(r.OutputDir(), "a-modalities", "extract", modalityEntries(result.Modalities)); err != nil {
		return result.Diagnostics, err
	}
	report = append(report,
		fmt.Sprintf("models extracted: %d", len(result.RawModels)),
		fmt.Sprintf("modality entries: %d", len(result.Modalities)))
	report = append(report, result.Diagnostics...)
	catalog.WriteReport(r.OutputDir(), "a-raw-models-report", report)
	return result.Diagnostics, nil
}

func modalityEntries(modalities map[string]schemas.ModalityFact) []providers.ModalityEntry {
	entries := make([]providers.ModalityEntry, 0, len(modalities))
	for key, fact := range modalities {
		entries = append(entries, providers.ModalityEntry{Key: key, Inputs: fact.Inputs, Outputs: fact.Outputs})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries
}

func (r *Runner) loadRaws() ([]schemas.RawModel, error) {
	if r.state.raws != nil {
		return r.state.raws, nil
	}
	artifact, err := catalog.ReadArtifact[schemas.RawModel](filepath.Join(r.OutputDir(), "a-raw-models.json"))
	if err != nil {
		return nil, err
	}
	r.state.raws = artifact.Models
	return artifact.Models, nil
}

func (r *Runner) loadModalities() map[string]schemas.ModalityFact {
	if r.state.modalities != nil {
		return r.state.modalities
	}
	artifact, err := catalog.ReadArtifact[providers.ModalityEntry](filepath.Join(r.OutputDir(), "a-modalities.json"))
	if err != nil {
		r.Logger.Warn("no modality artifact, continuing with raw API modalities: %v", err)
		return nil
	}
	modalities := make(map[string]schemas.ModalityFact, len(artifact.Models))
	for _, entry := range artifact.Models {
		modalities[entry.Key] = schemas.ModalityFact{Inputs: entry.Inputs, Outputs: entry.Outputs}
	}
	r.state.modalities = modalities
	return modalities
}

func (r *Runner) runLicenses(ctx context.Context) ([]string, error) {
	raws, err := r.loadRaws()
	if err != nil {
		return nil, err
	}
	resolver := license.NewResolver(r.Fetcher, r.Credentials.HuggingFaceAPIKey, r.Logger)

	r.state.licenses = make(map[string]schemas.LicenseFact, len(raws))
	counts := map[schemas.LicenseCategory]int{}
	entries := make([]licenseEntry, 0, len(raws))
	for _, raw := range raws {
		fact := resolver.Resolve(ctx, raw.CanonicalSlug, raw.HuggingFaceID)
		r.state.licenses[raw.CanonicalSlug] = fact
		counts[fact.Category]++
		entries = append(entries, licenseEntry{Slug: raw.CanonicalSlug, LicenseFact: fact})
	}

	if _, err := catalog.WriteArtifact(r.OutputDir(), "b-licenses", "licenses", entries); err != nil {
		return nil, err
	}
	report := []string{fmt.Sprintf("models resolved: %d", len(entries))}
	for _, category := range []schemas.LicenseCategory{
		schemas.LicenseProprietary, schemas.LicenseOpenSource, schemas.LicenseCustom, schemas.LicenseUnknown,
	} {
		report = append(report, fmt.Sprintf("%s: %d", category, counts[category]))
	}
	catalog.WriteReport(r.OutputDir(), "b-licenses-report", report)
	return nil, nil
}

func (r *Runner) loadLicenses() map[string]schemas.LicenseFact {
	if r.state.licenses != nil {
		return r.state.licenses
	}
	artifact, err := catalog.ReadArtifact[licenseEntry](filepath.Join(r.OutputDir(), "b-licenses.json"))
	if err != nil {
		r.Logger.Warn("no license artifact, all models fall back to Unknown: %v", err)
		return nil
	}
	licenses := make(map[string]schemas.LicenseFact, len(artifact.Models))
	for _, entry := range artifact.Models {
		licenses[entry.Slug] = entry.LicenseFact
	}
	r.state.licenses = licenses
	return licenses
}

func (r *Runner) runFuse(ctx context.Context) ([]string, error) {
	raws, err := r.loadRaws()
	if err != nil {
		return nil, err
	}
	fuser := catalog.NewFuser(r.Config, r.Logger)
	output := fuser.Fuse(raws, r.loadLicenses(), r.loadModalities())
	r.state.fused = output.Rows
	r.state.rateLimits = output.RateLimits

	if _, err := catalog.WriteArtifact(r.OutputDir(), "c-fused-models", "fuse", output.Rows); err != nil {
		return output.Diagnostics, err
	}
	if _, err := catalog.WriteArtifact(r.OutputDir(), "c-rate-limits", "fuse", output.RateLimits); err != nil {
		return output.Diagnostics, err
	}
	report := []string{
		fmt.Sprintf("rows fused: %d", len(output.Rows)),
		fmt.Sprintf("rate-limit rows: %d", len(output.RateLimits)),
		fmt.Sprintf("removed by policy: %d", len(output.Removed)),
	}
	report = append(report, output.Diagnostics...)
	catalog.WriteReport(r.OutputDir(), "c-fused-models-report", report)
	return output.Diagnostics, nil
}

func (r *Runner) loadFused() ([]schemas.DbRow, []schemas.RateLimitRow, error) {
	if r.state.fused != nil {
		return r.state.fused, r.state.rateLimits, nil
	}
	rows, err := catalog.ReadArtifact[schemas.DbRow](filepath.Join(r.OutputDir(), "c-fused-models.json"))
	if err != nil {
		return nil, nil, err
	}
	r.state.fused = rows.Models
	limits, err := catalog.ReadArtifact[schemas.RateLimitRow](filepath.Join(r.OutputDir(), "c-rate-limits.json"))
	if err == nil {
		r.state.rateLimits = limits.Models
	}
	return r.state.fused, r.state.rateLimits, nil
}

func (r *Runner) runSync(ctx context.Context) ([]string, error) {
	rows, limits, err := r.loadFused()
	if err != nil {
		return nil, err
	}
	result, err := r.Store.ReplaceWorkingSlice(ctx, r.Config.Provider, rows)
	report := []string{
		fmt.Sprintf("table: %s", result.Table),
		fmt.Sprintf("state: %s", result.State),
		fmt.Sprintf("initial count: %d", result.InitialCount),
		fmt.Sprintf("backup rows: %d", result.BackupCount),
		fmt.Sprintf("inserted: %d", result.Inserted),
		fmt.Sprintf("final count: %d", result.FinalCount),
	}
	if err != nil {
		report = append(report, fmt.Sprintf("sync failed: %v", err))
		catalog.WriteReport(r.OutputDir(), "d-sync-report", report)
		return report, err
	}

	// Rate limits are best-effort once the main slice landed.
	if upsertErr := r.Store.UpsertRateLimits(ctx, r.Config.Provider, limits); upsertErr != nil {
		r.Logger.Warn("rate-limit upsert failed: %v", upsertErr)
		report = append(report, fmt.Sprintf("rate-limit upsert failed: %v", upsertErr))
	} else {
		report = append(report, fmt.Sprintf("rate-limit rows upserted: %d", len(limits)))
	}
	catalog.WriteReport(r.OutputDir(), "d-sync-report", report)
	return nil, nil
}

func (r *Runner) runMappings(ctx context.Context) ([]string, error) {
	report, err := r.Store.RefreshMappings(ctx, r.Config.Provider)
	if err != nil {
		catalog.WriteReport(r.OutputDir(), "slugs_comparison", []string{fmt.Sprintf("mapping refresh failed: %v", err)})
		return nil, err
	}
	catalog.WriteReport(r.OutputDir(), "slugs_comparison", report.Lines())
	return nil, nil
}

func (r *Runner) runCompare(ctx context.Context) ([]string, error) {
	rows, _, err := r.loadFused()
	if err != nil {
		return nil, err
	}
	current, err := r.Store.ReadWorkingSlice(ctx, r.Config.Provider)
	if err != nil {
		return nil, err
	}
	comparison := catalog.Compare(rows, current)
	if _, err := catalog.WriteArtifact(r.OutputDir(), "f-comparison", "compare", comparison.Rows); err != nil {
		return nil, err
	}
	catalog.WriteReport(r.OutputDir(), "f-comparison-report", strings.Split(comparison.Render(), "\n"))
	return nil, nil
}

func (r *Runner) runPromote(ctx context.Context) ([]string, error) {
	result, err := r.Store.PromoteToProduction(ctx, r.Config.Provider)
	report := []string{
		fmt.Sprintf("table: %s", result.Table),
		fmt.Sprintf("state: %s", result.State),
		fmt.Sprintf("inserted: %d", result.Inserted),
		fmt.Sprintf("final count: %d", result.FinalCount),
	}
	if err != nil {
		report = append(report, fmt.Sprintf("promotion failed: %v", err))
	}
	catalog.WriteReport(r.OutputDir(), "g-promotion-report", report)
	return report, err
}
