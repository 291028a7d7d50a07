package store

import (
	"time"

	"github.com/modelatlas/pipeline/schemas"
)

// CatalogRow is the persisted shape shared by the working and production
// tables. Rows are always addressed through an explicit table name because
// both tables carry the same schema.
type CatalogRow struct {
	ID                uint      `gorm:"column:id;primaryKey;autoIncrement"`
	InferenceProvider string    `gorm:"column:inference_provider;index"`
	ModelProvider     string    `gorm:"column:model_provider"`
	HumanReadableName string    `gorm:"column:human_readable_name"`
	ProviderSlug      string    `gorm:"column:provider_slug"`
	Country           string    `gorm:"column:model_provider_country"`
	OfficialURL       string    `gorm:"column:official_url"`
	InputModalities   string    `gorm:"column:input_modalities"`
	OutputModalities  string    `gorm:"column:output_modalities"`
	LicenseInfoText   string    `gorm:"column:license_info_text"`
	LicenseInfoURL    string    `gorm:"column:license_info_url"`
	LicenseName       string    `gorm:"column:license_name"`
	LicenseURL        string    `gorm:"column:license_url"`
	RateLimits        string    `gorm:"column:rate_limits"`
	ProviderAPIAccess string    `gorm:"column:provider_api_access"`
	CreatedAt         time.Time `gorm:"column:created_at"`
	UpdatedAt         time.Time `gorm:"column:updated_at"`
}

// RateLimitRecord is one row of the per-model rate-limit table, keyed by
// human_readable_name.
type RateLimitRecord struct {
	HumanReadableName string    `gorm:"column:human_readable_name;primaryKey"`
	InferenceProvider string    `gorm:"column:inference_provider"`
	RPM               int64     `gorm:"column:rpm"`
	RPD               int64     `gorm:"column:rpd"`
	TPM               int64     `gorm:"column:tpm"`
	TPD               int64     `gorm:"column:tpd"`
	RawString         string    `gorm:"column:raw_string"`
	Parseable         bool      `gorm:"column:parseable"`
	UpdatedAt         time.Time `gorm:"column:updated_at"`
}

// MappingRecord links a normalized provider slug to a performance-metrics
// slug.
type MappingRecord struct {
	InferenceProvider string    `gorm:"column:inference_provider;primaryKey"`
	ProviderSlug      string    `gorm:"column:provider_slug;primaryKey"`
	AASlug            string    `gorm:"column:aa_slug"`
	CreatedAt         time.Time `gorm:"column:created_at"`
	UpdatedAt         time.Time `gorm:"column:updated_at"`
}

func toCatalogRow(row schemas.DbRow, now time.Time) CatalogRow {
	record := CatalogRow{
		InferenceProvider: row.InferenceProvider,
		ModelProvider:     row.ModelProvider,
		HumanReadableName: row.HumanReadableName,
		ProviderSlug:      row.ProviderSlug,
		Country:           row.Country,
		OfficialURL:       row.OfficialURL,
		InputModalities:   row.InputModalities,
		OutputModalities:  row.OutputModalities,
		LicenseInfoText:   row.LicenseInfoText,
		LicenseInfoURL:    row.LicenseInfoURL,
		LicenseName:       row.LicenseName,
		LicenseURL:        row.LicenseURL,
		RateLimits:        row.RateLimits,
		ProviderAPIAccess: row.ProviderAPIAccess,
		CreatedAt:         parseRowTime(row.CreatedAt, now),
		UpdatedAt:         parseRowTime(row.UpdatedAt, now),
	}
	return record
}

func fromCatalogRow(record CatalogRow) schemas.DbRow {
	return schemas.DbRow{
		InferenceProvider: record.InferenceProvider,
		ModelProvider:     record.ModelProvider,
		HumanReadableName: record.HumanReadableName,
		ProviderSlug:      record.ProviderSlug,
		Country:           record.Country,
		OfficialURL:       record.OfficialURL,
		InputModalities:   record.InputModalities,
		OutputModalities:  record.OutputModalities,
		LicenseInfoText:   record.LicenseInfoText,
		LicenseInfoURL:    record.LicenseInfoURL,
		LicenseName:       record.LicenseName,
		LicenseURL:        record.LicenseURL,
		RateLimits:        record.RateLimits,
		ProviderAPIAccess: record.ProviderAPIAccess,
		CreatedAt:         record.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:         record.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func parseRowTime(raw string, fallback time.Time) time.Time {
	if raw == "" {
		return fallback
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return fallback
	}
	return parsed
}
