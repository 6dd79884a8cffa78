package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sibec-dev/becas-api/internal/models"
)

// ConfigurationRepository handles persistence of scholarship configurations.
type ConfigurationRepository struct {
	db *sqlx.DB
}

// NewConfigurationRepository constructs the repository.
func NewConfigurationRepository(db *sqlx.DB) *ConfigurationRepository {
	return &ConfigurationRepository{db: db}
}

const configurationColumns = `id, scholarship_type, subtype, min_average, min_term, max_term, max_age,
        special_requirements, required_documents, available_slots, duration_months, required_hours,
        updated_by, updated_at`

// Find returns the configuration for a (type, subtype) key.
func (r *ConfigurationRepository) Find(ctx context.Context, scholarshipType models.ScholarshipType, subtype string) (*models.ScholarshipConfiguration, error) {
	query := fmt.Sprintf(`SELECT %s FROM scholarship_configurations WHERE scholarship_type = $1 AND subtype = $2`, configurationColumns)
	var cfg models.ScholarshipConfiguration
	if err := r.db.GetContext(ctx, &cfg, query, scholarshipType, subtype); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// List returns all configurations ordered by type and subtype.
func (r *ConfigurationRepository) List(ctx context.Context) ([]models.ScholarshipConfiguration, error) {
	query := fmt.Sprintf(`SELECT %s FROM scholarship_configurations ORDER BY scholarship_type, subtype`, configurationColumns)
	var configs []models.ScholarshipConfiguration
	if err := r.db.SelectContext(ctx, &configs, query); err != nil {
		return nil, fmt.Errorf("list configurations: %w", err)
	}
	return configs, nil
}

// Upsert overwrites the configuration stored under (type, subtype).
// Last write wins; entries are never deleted, only superseded.
func (r *ConfigurationRepository) Upsert(ctx context.Context, cfg *models.ScholarshipConfiguration) error {
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	cfg.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO scholarship_configurations
        (id, scholarship_type, subtype, min_average, min_term, max_term, max_age, special_requirements,
         required_documents, available_slots, duration_months, required_hours, updated_by, updated_at)
        VALUES (:id, :scholarship_type, :subtype, :min_average, :min_term, :max_term, :max_age, :special_requirements,
         :required_documents, :available_slots, :duration_months, :required_hours, :updated_by, :updated_at)
        ON CONFLICT (scholarship_type, subtype)
        DO UPDATE SET min_average = EXCLUDED.min_average, min_term = EXCLUDED.min_term,
         max_term = EXCLUDED.max_term, max_age = EXCLUDED.max_age,
         special_requirements = EXCLUDED.special_requirements, required_documents = EXCLUDED.required_documents,
         available_slots = EXCLUDED.available_slots, duration_months = EXCLUDED.duration_months,
         required_hours = EXCLUDED.required_hours, updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, cfg); err != nil {
		return fmt.Errorf("upsert configuration: %w", err)
	}
	return nil
}
