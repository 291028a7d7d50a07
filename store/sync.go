package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/modelatlas/pipeline/schemas"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// insertBatchSize is the row count per INSERT transaction.
const insertBatchSize = 100

// SyncState tracks the provider-refresh state machine. Every non-terminal
// state has a single success edge; any failure lands in one of the terminal
// error states.
type SyncState string

const (
	StateIdle               SyncState = "Idle"
	StateExtractingExternal SyncState = "ExtractingExternal"
	StateResolving          SyncState = "Resolving"
	StateFusing             SyncState = "Fusing"
	StateBackingUp          SyncState = "Backing-Up"
	StateDeleting           SyncState = "Deleting"
	StateInserting          SyncState = "Inserting"
	StateVerifying          SyncState = "Verifying"
	StateRateLimitsUpsert   SyncState = "RateLimitsUpsert"
	StateDone               SyncState = "Done"

	StateAbortedNoMutation          SyncState = "AbortedNoMutation"
	StateRestoredFromBackup         SyncState = "RestoredFromBackup"
	StateInconsistentRequiresManual SyncState = "InconsistentRequiresManual"
)

var (
	// ErrAbortedNoMutation means the refresh failed before any write; the
	// table is untouched.
	ErrAbortedNoMutation = errors.New("sync aborted before mutation")
	// ErrRestoredFromBackup means the refresh failed after the delete and
	// the previous slice was re-inserted successfully.
	ErrRestoredFromBackup = errors.New("sync failed, slice restored from backup")
	// ErrInconsistentRequiresManual means both the refresh and the restore
	// failed; the slice needs manual repair.
	ErrInconsistentRequiresManual = errors.New("sync and restore both failed, manual intervention required")
)

// toleranceFunc decides whether a post-insert count verifies against the
// expected count.
type toleranceFunc func(expected, actual int64) bool

func exactTolerance(expected, actual int64) bool {
	return expected == actual
}

// SyncResult reports one slice refresh.
type SyncResult struct {
	Provider     schemas.InferenceProvider
	Table        string
	InitialCount int64
	BackupCount  int
	Inserted     int
	FinalCount   int64
	State        SyncState
}

// ReplaceWorkingSlice refreshes one provider's slice of the working table
// with the prepared rows. Verification requires an exact count match.
func (s *Store) ReplaceWorkingSlice(ctx context.Context, provider schemas.InferenceProvider, rows []schemas.DbRow) (*SyncResult, error) {
	return s.replaceSlice(ctx, s.WorkingTable, provider, rows, exactTolerance)
}

// replaceSlice runs the refresh protocol: count, backup, delete, batched
// insert, verify, and on post-delete failure restore from the backup.
func (s *Store) replaceSlice(ctx context.Context, table string, provider schemas.InferenceProvider, rows []schemas.DbRow, tolerate toleranceFunc) (*SyncResult, error) {
	result := &SyncResult{Provider: provider, Table: table, State: StateBackingUp}

	slice := func(db *gorm.DB) *gorm.DB {
		return db.Table(table).Where("inference_provider = ?", string(provider))
	}

	if err := slice(s.db.WithContext(ctx)).Count(&result.InitialCount).Error; err != nil {
		result.State = StateAbortedNoMutation
		return result, fmt.Errorf("%w: counting %s slice: %v", ErrAbortedNoMutation, table, err)
	}

	var backup []CatalogRow
	if err := slice(s.db.WithContext(ctx)).Find(&backup).Error; err != nil {
		result.State = StateAbortedNoMutation
		return result, fmt.Errorf("%w: backing up %s slice: %v", ErrAbortedNoMutation, table, err)
	}
	result.BackupCount = len(backup)
	s.logger.Info("backed up %d rows from %s for %s", len(backup), table, provider)

	// The delete commits on its own. From here on, failures restore.
	result.State = StateDeleting
	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return slice(tx).Delete(&CatalogRow{}).Error
	}); err != nil {
		result.State = StateAbortedNoMutation
		return result, fmt.Errorf("%w: deleting %s slice: %v", ErrAbortedNoMutation, table, err)
	}

	result.State = StateInserting
	now := time.Now().UTC()
	records := make([]CatalogRow, len(rows))
	for i, row := range rows {
		records[i] = toCatalogRow(row, now)
	}
	if err := s.insertBatches(ctx, table, records); err != nil {
		return result, s.restoreFromBackup(ctx, table, provider, backup, result, err)
	}
	result.Inserted = len(records)

	result.State = StateVerifying
	if err := slice(s.db.WithContext(ctx)).Count(&result.FinalCount).Error; err != nil {
		return result, s.restoreFromBackup(ctx, table, provider, backup, result, err)
	}
	if !tolerate(int64(len(records)), result.FinalCount) {
		mismatch := fmt.Errorf("verify failed on %s: expected %d rows, found %d", table, len(records), result.FinalCount)
		return result, s.restoreFromBackup(ctx, table, provider, backup, result, mismatch)
	}

	result.State = StateDone
	s.logger.Info("replaced %s slice for %s: %d -> %d rows", table, provider, result.InitialCount, result.FinalCount)
	return result, nil
}

func (s *Store) insertBatches(ctx context.Context, table string, records []CatalogRow) error {
	for start := 0; start < len(records); start += insertBatchSize {
		end := min(start+insertBatchSize, len(records))
		batch := records[start:end]
		if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return tx.Table(table).Create(&batch).Error
		}); err != nil {
			return fmt.Errorf("inserting batch %d-%d into %s: %w", start, end, table, err)
		}
	}
	return nil
}

// restoreFromBackup re-inserts the backed-up slice through the same batching
// path after clearing whatever the failed insert left behind.
func (s *Store) restoreFromBackup(ctx context.Context, table string, provider schemas.InferenceProvider, backup []CatalogRow, result *SyncResult, cause error) error {
	s.logger.Error("refresh of %s failed for %s, restoring %d backup rows: %v", table, provider, len(backup), cause)

	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Table(table).Where("inference_provider = ?", string(provider)).Delete(&CatalogRow{}).Error
	}); err != nil {
		result.State = StateInconsistentRequiresManual
		return fmt.Errorf("%w: %v (restore delete failed: %v)", ErrInconsistentRequiresManual, cause, err)
	}
	if err := s.insertBatches(ctx, table, backup); err != nil {
		result.State = StateInconsistentRequiresManual
		return fmt.Errorf("%w: %v (restore insert failed: %v)", ErrInconsistentRequiresManual, cause, err)
	}

	result.State = StateRestoredFromBackup
	s.logger.Warn("restored %d rows into %s for %s", len(backup), table, provider)
	return fmt.Errorf("%w: %v", ErrRestoredFromBackup, cause)
}

// UpsertRateLimits replaces one provider's rate-limit rows. Runs after the
// main slice succeeds and is best-effort: the caller downgrades errors to
// warnings.
func (s *Store) UpsertRateLimits(ctx context.Context, provider schemas.InferenceProvider, rows []schemas.RateLimitRow) error {
	if err := s.db.WithContext(ctx).
		Table(s.RateLimitsTable).
		Where("inference_provider = ?", string(provider)).
		Delete(&RateLimitRecord{}).Error; err != nil {
		return fmt.Errorf("clearing rate limits for %s: %w", provider, err)
	}

	now := time.Now().UTC()
	for _, row := range rows {
		record := RateLimitRecord{
			HumanReadableName: row.HumanReadableName,
			InferenceProvider: row.InferenceProvider,
			RPM:               row.RPM,
			RPD:               row.RPD,
			TPM:               row.TPM,
			TPD:               row.TPD,
			RawString:         row.RawString,
			Parseable:         row.Parseable,
			UpdatedAt:         now,
		}
		if err := s.db.WithContext(ctx).
			Table(s.RateLimitsTable).
			Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "human_readable_name"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"inference_provider", "rpm", "rpd", "tpm", "tpd", "raw_string", "parseable", "updated_at",
				}),
			}).
			Create(&record).Error; err != nil {
			return fmt.Errorf("upserting rate limit for %s: %w", row.HumanReadableName, err)
		}
	}
	s.logger.Info("upserted %d rate-limit rows for %s", len(rows), provider)
	return nil
}

// ReadWorkingSlice returns one provider's current working-table rows.
func (s *Store) ReadWorkingSlice(ctx context.Context, provider schemas.InferenceProvider) ([]schemas.DbRow, error) {
	var records []CatalogRow
	if err := s.db.WithContext(ctx).
		Table(s.WorkingTable).
		Where("inference_provider = ?", string(provider)).
		Order("human_readable_name").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("reading %s slice: %w", s.WorkingTable, err)
	}
	rows := make([]schemas.DbRow, len(records))
	for i, record := range records {
		rows[i] = fromCatalogRow(record)
	}
	return rows, nil
}
