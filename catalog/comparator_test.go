package catalog

import (
	"strings"
	"testing"

	"github.com/modelatlas/pipeline/schemas"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dbRow(name, licenseName string) schemas.DbRow {
	return schemas.DbRow{
		InferenceProvider: "Groq",
		ModelProvider:     "Meta",
		HumanReadableName: name,
		ProviderSlug:      strings.ToLower(name),
		Country:           "USA",
		InputModalities:   "Text",
		OutputModalities:  "Text",
		LicenseName:       licenseName,
	}
}

func TestCompare_Counts(t *testing.T) {
	pipeline := []schemas.DbRow{
		dbRow("Alpha", "MIT"),
		dbRow("Beta", "Apache 2.0"),
		dbRow("Gamma", "MIT"),
	}
	supabase := []schemas.DbRow{
		dbRow("Alpha", "MIT"),
		dbRow("Beta", "MIT"),
		dbRow("Delta", "MIT"),
	}

	comparison := Compare(pipeline, supabase)
	assert.Equal(t, 2, comparison.InBoth)
	assert.Equal(t, []string{"Gamma"}, comparison.PipelineOnly)
	assert.Equal(t, []string{"Delta"}, comparison.SupabaseOnly)
	assert.Equal(t, 1, comparison.WithDifferences)

	license := comparison.Fields["license_name"]
	assert.Equal(t, 1, license.Exact)
	assert.Equal(t, 1, license.Differs)

	require.Len(t, comparison.Rows, 1)
	assert.Equal(t, "Beta", comparison.Rows[0].Name)
	require.Len(t, comparison.Rows[0].Diffs, 1)
	assert.Equal(t, "license_name", comparison.Rows[0].Diffs[0].Field)
}

func TestCompare_EmptyEqualsNullAndTrims(t *testing.T) {
	left := dbRow("Alpha", "MIT")
	left.LicenseInfoURL = ""
	left.OfficialURL = " https://example.com "
	right := dbRow("Alpha", "MIT")
	right.LicenseInfoURL = "" // a NULL column scans as empty string
	right.OfficialURL = "https://example.com"

	comparison := Compare([]schemas.DbRow{left}, []schemas.DbRow{right})
	assert.Equal(t, 1, comparison.InBoth)
	assert.Zero(t, comparison.WithDifferences)
	assert.Equal(t, 1, comparison.Fields["license_info_url"].Exact)
	assert.Equal(t, 1, comparison.Fields["official_url"].Exact)
}

func TestCompare_MissingSidesCounted(t *testing.T) {
	left := dbRow("Alpha", "")
	right := dbRow("Alpha", "MIT")
	right.Country = ""

	comparison := Compare([]schemas.DbRow{left}, []schemas.DbRow{right})
	assert.Equal(t, 1, comparison.Fields["license_name"].MissingLeft)
	assert.Equal(t, 1, comparison.Fields["model_provider_country"].MissingRight)
}

func TestCompare_DuplicateNamesDetected(t *testing.T) {
	pipeline := []schemas.DbRow{dbRow("Alpha", "MIT"), dbRow("Alpha", "Apache 2.0")}

	comparison := Compare(pipeline, nil)
	assert.Equal(t, []string{"Alpha"}, comparison.DuplicatePipelineNames)
}

func TestComparisonRender_ContainsSections(t *testing.T) {
	comparison := Compare(
		[]schemas.DbRow{dbRow("Alpha", "MIT"), dbRow("Beta", "MIT")},
		[]schemas.DbRow{dbRow("Alpha", "Apache 2.0")},
	)
	report := comparison.Render()
	assert.Contains(t, report, "models in both: 1")
	assert.Contains(t, report, "pipeline only: 1")
	assert.Contains(t, report, "license_name")
	assert.Contains(t, report, `pipeline="MIT" supabase="Apache 2.0"`)
}
