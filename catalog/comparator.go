package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/modelatlas/pipeline/schemas"
)

// comparedFields is the fixed column list the comparator inspects, in report
// order.
var comparedFields = []string{
	"inference_provider",
	"model_provider",
	"human_readable_name",
	"model_provider_country",
	"official_url",
	"input_modalities",
	"output_modalities",
	"license_info_text",
	"license_info_url",
	"license_name",
	"license_url",
	"rate_limits",
	"provider_api_access",
}

// FieldCounter tallies one field's comparison outcomes across all models
// present on both sides.
type FieldCounter struct {
	Exact        int
	Differs      int
	MissingLeft  int
	MissingRight int
}

// FieldDiff is one differing field on one model.
type FieldDiff struct {
	Field    string
	Pipeline string
	Supabase string
}

// RowDiff is the per-model diff for a model present on both sides.
type RowDiff struct {
	Name  string
	Diffs []FieldDiff
}

// Comparison is the informational report of pipeline output versus the live
// working-table slice. It never mutates state.
type Comparison struct {
	InBoth          int
	PipelineOnly    []string
	SupabaseOnly    []string
	WithDifferences int

	Fields map[string]*FieldCounter
	Rows   []RowDiff

	DuplicatePipelineNames []string
	DuplicateSupabaseNames []string
}

// Compare diffs the two row sets keyed by human_readable_name. Empty string
// and SQL NULL compare equal; values are trimmed first.
func Compare(pipeline, supabase []schemas.DbRow) *Comparison {
	comparison := &Comparison{Fields: make(map[string]*FieldCounter, len(comparedFields))}
	for _, field := range comparedFields {
		comparison.Fields[field] = &FieldCounter{}
	}

	pipelineByName, pipelineDups := indexByName(pipeline)
	supabaseByName, supabaseDups := indexByName(supabase)
	comparison.DuplicatePipelineNames = pipelineDups
	comparison.DuplicateSupabaseNames = supabaseDups

	names := make([]string, 0, len(pipelineByName))
	for name := range pipelineByName {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		left := pipelineByName[name]
		right, ok := supabaseByName[name]
		if !ok {
			comparison.PipelineOnly = append(comparison.PipelineOnly, name)
			continue
		}
		comparison.InBoth++

		rowDiff := RowDiff{Name: name}
		for _, field := range comparedFields {
			counter := comparison.Fields[field]
			l := strings.TrimSpace(fieldValue(left, field))
			r := strings.TrimSpace(fieldValue(right, field))
			switch {
			case l == r:
				counter.Exact++
			case l == "":
				counter.MissingLeft++
				rowDiff.Diffs = append(rowDiff.Diffs, FieldDiff{Field: field, Pipeline: l, Supabase: r})
			case r == "":
				counter.MissingRight++
				rowDiff.Diffs = append(rowDiff.Diffs, FieldDiff{Field: field, Pipeline: l, Supabase: r})
			default:
				counter.Differs++
				rowDiff.Diffs = append(rowDiff.Diffs, FieldDiff{Field: field, Pipeline: l, Supabase: r})
			}
		}
		if len(rowDiff.Diffs) > 0 {
			comparison.WithDifferences++
			comparison.Rows = append(comparison.Rows, rowDiff)
		}
	}

	supabaseNames := make([]string, 0, len(supabaseByName))
	for name := range supabaseByName {
		supabaseNames = append(supabaseNames, name)
	}
	sort.Strings(supabaseNames)
	for _, name := range supabaseNames {
		if _, ok := pipelineByName[name]; !ok {
			comparison.SupabaseOnly = append(comparison.SupabaseOnly, name)
		}
	}
	return comparison
}

func indexByName(rows []schemas.DbRow) (map[string]schemas.DbRow, []string) {
	byName := make(map[string]schemas.DbRow, len(rows))
	var duplicates []string
	for _, row := range rows {
		name := strings.TrimSpace(row.HumanReadableName)
		if _, seen := byName[name]; seen {
			duplicates = append(duplicates, name)
			continue
		}
		byName[name] = row
	}
	sort.Strings(duplicates)
	return byName, duplicates
}

func fieldValue(row schemas.DbRow, field string) string {
	switch field {
	case "inference_provider":
		return row.InferenceProvider
	case "model_provider":
		return row.ModelProvider
	case "human_readable_name":
		return row.HumanReadableName
	case "model_provider_country":
		return row.Country
	case "official_url":
		return row.OfficialURL
	case "input_modalities":
		return row.InputModalities
	case "output_modalities":
		return row.OutputModalities
	case "license_info_text":
		return row.LicenseInfoText
	case "license_info_url":
		return row.LicenseInfoURL
	case "license_name":
		return row.LicenseName
	case "license_url":
		return row.LicenseURL
	case "rate_limits":
		return row.RateLimits
	case "provider_api_access":
		return row.ProviderAPIAccess
	}
	return ""
}

// Render formats the comparison as the human-readable report body.
func (c *Comparison) Render() string {
	var b strings.Builder
	fmt.Fprintf(&b, "models in both: %d\n", c.InBoth)
	fmt.Fprintf(&b, "pipeline only: %d\n", len(c.PipelineOnly))
	fmt.Fprintf(&b, "supabase only: %d\n", len(c.SupabaseOnly))
	fmt.Fprintf(&b, "with differences: %d\n", c.WithDifferences)
	if len(c.DuplicatePipelineNames) > 0 {
		fmt.Fprintf(&b, "duplicate names in pipeline output: %s\n", strings.Join(c.DuplicatePipelineNames, ", "))
	}
	if len(c.DuplicateSupabaseNames) > 0 {
		fmt.Fprintf(&b, "duplicate names in supabase: %s\n", strings.Join(c.DuplicateSupabaseNames, ", "))
	}
	b.WriteString("\nper-field counters (exact / differs / missing-pipeline / missing-supabase):\n")
	for _, field := range comparedFields {
		counter := c.Fields[field]
		fmt.Fprintf(&b, "  %-24s %d / %d / %d / %d\n",
			field, counter.Exact, counter.Differs, counter.MissingLeft, counter.MissingRight)
	}
	if len(c.PipelineOnly) > 0 {
		fmt.Fprintf(&b, "\npipeline-only models:\n  %s\n", strings.Join(c.PipelineOnly, "\n  "))
	}
	if len(c.SupabaseOnly) > 0 {
		fmt.Fprintf(&b, "\nsupabase-only models:\n  %s\n", strings.Join(c.SupabaseOnly, "\n  "))
	}
	for _, row := range c.Rows {
		fmt.Fprintf(&b, "\n%s:\n", row.Name)
		for _, diff := range row.Diffs {
			fmt.Fprintf(&b, "  %s: pipeline=%q supabase=%q\n", diff.Field, diff.Pipeline, diff.Supabase)
		}
	}
	return b.String()
}
