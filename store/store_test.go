package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/modelatlas/pipeline/schemas"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// metricSlug is the minimal shape of the read-only performance-metrics
// table the tests need.
type metricSlug struct {
	AASlug string `gorm:"column:aa_slug;primaryKey"`
}

// setupTestStore creates an in-memory SQLite database with plain table
// names standing in for the schema-qualified production ones.
func setupTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "failed to create test database")

	store := NewStoreWithDB(db, nopLogger{})
	store.RateLimitsTable = "rate_limits"
	store.MappingTable = "model_aa_mapping"
	store.MetricsTable = "aa_performance_metrics"

	require.NoError(t, db.Table(store.WorkingTable).AutoMigrate(&CatalogRow{}))
	require.NoError(t, db.Table(store.ProductionTable).AutoMigrate(&CatalogRow{}))
	require.NoError(t, db.Table(store.RateLimitsTable).AutoMigrate(&RateLimitRecord{}))
	require.NoError(t, db.Table(store.MappingTable).AutoMigrate(&MappingRecord{}))
	require.NoError(t, db.Table(store.MetricsTable).AutoMigrate(&metricSlug{}))
	return store
}

func makeRows(provider string, count int) []schemas.DbRow {
	rows := make([]schemas.DbRow, count)
	for i := range rows {
		rows[i] = schemas.DbRow{
			InferenceProvider: provider,
			ModelProvider:     "Meta",
			HumanReadableName: fmt.Sprintf("Model %03d", i),
			ProviderSlug:      fmt.Sprintf("model-%03d", i),
			Country:           "USA",
			InputModalities:   "Text",
			OutputModalities:  "Text",
			LicenseName:       "MIT",
		}
	}
	return rows
}

func TestReplaceWorkingSlice_InsertAndVerify(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	result, err := store.ReplaceWorkingSlice(ctx, schemas.Groq, makeRows("Groq", 7))
	require.NoError(t, err)
	assert.Equal(t, StateDone, result.State)
	assert.Equal(t, int64(0), result.InitialCount)
	assert.Equal(t, int64(7), result.FinalCount)

	rows, err := store.ReadWorkingSlice(ctx, schemas.Groq)
	require.NoError(t, err)
	require.Len(t, rows, 7)
	assert.Equal(t, "Model 000", rows[0].HumanReadableName)
}

func TestReplaceWorkingSlice_Rerun_IsIdempotent(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	prepared := makeRows("Groq", 5)

	_, err := store.ReplaceWorkingSlice(ctx, schemas.Groq, prepared)
	require.NoError(t, err)
	first, err := store.ReadWorkingSlice(ctx, schemas.Groq)
	require.NoError(t, err)

	result, err := store.ReplaceWorkingSlice(ctx, schemas.Groq, prepared)
	require.NoError(t, err)
	assert.Equal(t, int64(5), result.InitialCount)
	second, err := store.ReadWorkingSlice(ctx, schemas.Groq)
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		// Byte-equivalent except the refresh timestamp.
		first[i].UpdatedAt = ""
		second[i].UpdatedAt = ""
		assert.Equal(t, first[i], second[i])
	}
}

func TestReplaceWorkingSlice_ZeroRowsCommits(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.ReplaceWorkingSlice(ctx, schemas.Groq, makeRows("Groq", 4))
	require.NoError(t, err)

	result, err := store.ReplaceWorkingSlice(ctx, schemas.Groq, nil)
	require.NoError(t, err)
	assert.Equal(t, StateDone, result.State)
	assert.Equal(t, int64(0), result.FinalCount)

	rows, err := store.ReadWorkingSlice(ctx, schemas.Groq)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestReplaceWorkingSlice_LeavesOtherProvidersAlone(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.ReplaceWorkingSlice(ctx, schemas.Google, makeRows("Google", 3))
	require.NoError(t, err)
	_, err = store.ReplaceWorkingSlice(ctx, schemas.Groq, makeRows("Groq", 2))
	require.NoError(t, err)

	google, err := store.ReadWorkingSlice(ctx, schemas.Google)
	require.NoError(t, err)
	assert.Len(t, google, 3)
}

func TestReplaceWorkingSlice_RestoresBackupOnInsertFailure(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.db.Exec(
		"CREATE UNIQUE INDEX idx_working_name ON working_version(inference_provider, human_readable_name)").Error)

	_, err := store.ReplaceWorkingSlice(ctx, schemas.Groq, makeRows("Groq", 10))
	require.NoError(t, err)

	// 250 rows span three batches; a duplicate name in the second batch
	// breaks the insert after the first batch committed.
	prepared := makeRows("Groq", 250)
	prepared[150].HumanReadableName = prepared[0].HumanReadableName

	result, err := store.ReplaceWorkingSlice(ctx, schemas.Groq, prepared)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRestoredFromBackup)
	assert.Equal(t, StateRestoredFromBackup, result.State)

	rows, readErr := store.ReadWorkingSlice(ctx, schemas.Groq)
	require.NoError(t, readErr)
	assert.Len(t, rows, 10)
}

func TestPromoteToProduction_CopiesWorkingSlice(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.ReplaceWorkingSlice(ctx, schemas.OpenRouter, makeRows("OpenRouter", 12))
	require.NoError(t, err)

	result, err := store.PromoteToProduction(ctx, schemas.OpenRouter)
	require.NoError(t, err)
	assert.Equal(t, StateDone, result.State)
	assert.Equal(t, store.ProductionTable, result.Table)
	assert.Equal(t, int64(12), result.FinalCount)
}

func TestPromotionTolerance(t *testing.T) {
	// Below 20 expected rows the 5% band rounds to zero, so one row of
	// drift is always allowed.
	assert.True(t, promotionTolerance(10, 10))
	assert.True(t, promotionTolerance(10, 11))
	assert.True(t, promotionTolerance(10, 9))
	assert.False(t, promotionTolerance(10, 8))
	assert.True(t, promotionTolerance(100, 105))
	assert.False(t, promotionTolerance(100, 106))
	assert.True(t, promotionTolerance(0, 1))
	assert.False(t, promotionTolerance(0, 2))
}

func TestUpsertRateLimits_InsertThenUpdate(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	rows := []schemas.RateLimitRow{{
		HumanReadableName: "Llama 3.3 70B",
		InferenceProvider: "Groq",
		RPM:               30, RPD: 14400, TPM: 6000,
		RawString: "RPM: 30, RPD: 14.4K, TPM: 6K",
		Parseable: true,
	}}
	require.NoError(t, store.UpsertRateLimits(ctx, schemas.Groq, rows))

	rows[0].RPM = 60
	require.NoError(t, store.UpsertRateLimits(ctx, schemas.Groq, rows))

	var records []RateLimitRecord
	require.NoError(t, store.db.Table(store.RateLimitsTable).Find(&records).Error)
	require.Len(t, records, 1)
	assert.Equal(t, int64(60), records[0].RPM)
}
