// Package store owns every database interaction of the pipeline: the
// working-table refresh protocol, production promotion, rate-limit upserts,
// and the slug mapping refresh against the performance-metrics table.
package store

import (
	"fmt"

	"github.com/modelatlas/pipeline/schemas"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Default table names. The ims tables are schema-qualified in production;
// tests substitute plain names.
const (
	DefaultWorkingTable    = "working_version"
	DefaultProductionTable = "ai_models_main"
	DefaultRateLimitsTable = "ims.30_rate_limits"
	DefaultMappingTable    = "ims.10_model_aa_mapping"
	DefaultMetricsTable    = "ims.20_aa_performance_metrics"
)

// Store wraps the pipeline's database handle. Table names are fields so the
// same code serves the working-table refresh, production promotion, and the
// in-memory test databases.
type Store struct {
	db     *gorm.DB
	logger schemas.Logger

	WorkingTable    string
	ProductionTable string
	RateLimitsTable string
	MappingTable    string
	MetricsTable    string
}

// NewStore opens a PostgreSQL connection from the pipeline-writer DSN.
func NewStore(dsn string, logger schemas.Logger) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database DSN is empty; set PIPELINE_SUPABASE_URL")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: newGormLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return NewStoreWithDB(db, logger), nil
}

// NewStoreWithDB wraps an existing handle; used by tests with in-memory
// SQLite.
func NewStoreWithDB(db *gorm.DB, logger schemas.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger,

		WorkingTable:    DefaultWorkingTable,
		ProductionTable: DefaultProductionTable,
		RateLimitsTable: DefaultRateLimitsTable,
		MappingTable:    DefaultMappingTable,
		MetricsTable:    DefaultMetricsTable,
	}
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
