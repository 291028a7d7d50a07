package store

import (
	"context"
	"fmt"
	"time"

	"github.com/modelatlas/pipeline/normalize"
	"github.com/modelatlas/pipeline/schemas"
	"gorm.io/gorm/clause"
)

// topCandidateCount is how many similarity candidates are reported per
// unmatched slug.
const topCandidateCount = 5

// UnmatchedSlug is a working-table slug with no mapping, plus its closest
// performance-metric slugs by similarity ratio.
type UnmatchedSlug struct {
	ProviderSlug string
	Normalized   string
	Candidates   []normalize.Candidate
}

// MappingReport summarizes one mapping refresh; Lines renders the
// slugs_comparison report body.
type MappingReport struct {
	Provider  schemas.InferenceProvider
	Matched   int
	Unmatched []UnmatchedSlug
}

// Lines renders the report, always emitted even when everything matched.
func (r *MappingReport) Lines() []string {
	lines := []string{
		fmt.Sprintf("provider: %s", r.Provider),
		fmt.Sprintf("matched: %d", r.Matched),
		fmt.Sprintf("unmatched: %d", len(r.Unmatched)),
	}
	for _, u := range r.Unmatched {
		lines = append(lines, fmt.Sprintf("%s (normalized %s):", u.ProviderSlug, u.Normalized))
		for _, candidate := range u.Candidates {
			lines = append(lines, fmt.Sprintf("  %.3f %s", candidate.Ratio, candidate.AASlug))
		}
	}
	return lines
}

// RefreshMappings rebuilds the slug mapping for one provider: every
// working-table slug is normalized and matched against the
// performance-metrics slugs (exact, then suffix, then contains). Matches are
// upserted keyed on the normalized slug, so raw slugs that normalize to the
// same value collapse into one mapping row; misses are reported with their
// top similarity candidates. Idempotent: re-running changes only updated_at.
func (s *Store) RefreshMappings(ctx context.Context, provider schemas.InferenceProvider) (*MappingReport, error) {
	var providerSlugs []string
	if err := s.db.WithContext(ctx).
		Table(s.WorkingTable).
		Where("inference_provider = ?", string(provider)).
		Order("provider_slug").
		Pluck("provider_slug", &providerSlugs).Error; err != nil {
		return nil, fmt.Errorf("reading working slugs: %w", err)
	}

	var aaSlugs []string
	if err := s.db.WithContext(ctx).
		Table(s.MetricsTable).
		Distinct("aa_slug").
		Order("aa_slug").
		Pluck("aa_slug", &aaSlugs).Error; err != nil {
		return nil, fmt.Errorf("reading performance-metric slugs: %w", err)
	}

	report := &MappingReport{Provider: provider}
	now := time.Now().UTC()
	seen := make(map[string]bool, len(providerSlugs))
	for _, slug := range providerSlugs {
		if slug == "" {
			continue
		}
		normalized := normalize.NormalizeSlug(slug)
		if seen[normalized] {
			continue
		}
		seen[normalized] = true

		aaSlug, ok := normalize.MatchAASlug(normalized, aaSlugs)
		if !ok {
			report.Unmatched = append(report.Unmatched, UnmatchedSlug{
				ProviderSlug: slug,
				Normalized:   normalized,
				Candidates:   normalize.TopCandidates(normalized, aaSlugs, topCandidateCount),
			})
			continue
		}

		record := MappingRecord{
			InferenceProvider: string(provider),
			ProviderSlug:      normalized,
			AASlug:            aaSlug,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if err := s.db.WithContext(ctx).
			Table(s.MappingTable).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "inference_provider"}, {Name: "provider_slug"}},
				DoUpdates: clause.AssignmentColumns([]string{"aa_slug", "updated_at"}),
			}).
			Create(&record).Error; err != nil {
			return nil, fmt.Errorf("upserting mapping for %s: %w", slug, err)
		}
		report.Matched++
	}

	s.logger.Info("mapping refresh for %s: %d matched, %d unmatched", provider, report.Matched, len(report.Unmatched))
	return report, nil
}
