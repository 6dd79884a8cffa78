package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sibec-dev/becas-api/internal/models"
	appErrors "github.com/sibec-dev/becas-api/pkg/errors"
)

// ConfigurationStore is the persistence surface the catalog needs.
type ConfigurationStore interface {
	Find(ctx context.Context, scholarshipType models.ScholarshipType, subtype string) (*models.ScholarshipConfiguration, error)
	List(ctx context.Context) ([]models.ScholarshipConfiguration, error)
	Upsert(ctx context.Context, cfg *models.ScholarshipConfiguration) error
}

// ConfigurationCache is the read-through cache surface.
type ConfigurationCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// ConfigurationService serves the scholarship requirements catalog.
type ConfigurationService struct {
	repo      ConfigurationStore
	cache     ConfigurationCache
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewConfigurationService constructs the catalog service.
func NewConfigurationService(repo ConfigurationStore, cache ConfigurationCache, cacheTTL time.Duration, logger *zap.Logger) *ConfigurationService {
	return &ConfigurationService{
		repo:      repo,
		cache:     cache,
		cacheTTL:  cacheTTL,
		validator: validator.New(),
		logger:    logger,
	}
}

// UpsertConfigurationRequest is the admin payload for storing a catalog entry.
type UpsertConfigurationRequest struct {
	Type                models.ScholarshipType `json:"scholarship_type" validate:"required"`
	Subtype             string                 `json:"subtype,omitempty"`
	MinAverage          float64                `json:"min_average" validate:"gte=0,lte=100"`
	MinTerm             *int                   `json:"min_term,omitempty" validate:"omitempty,gte=1"`
	MaxTerm             *int                   `json:"max_term,omitempty" validate:"omitempty,gte=1"`
	MaxAge              *int                   `json:"max_age,omitempty" validate:"omitempty,gte=1"`
	SpecialRequirements string                 `json:"special_requirements,omitempty"`
	RequiredDocuments   []string               `json:"required_documents,omitempty"`
	AvailableSlots      *int                   `json:"available_slots,omitempty" validate:"omitempty,gte=0"`
	DurationMonths      *int                   `json:"duration_months,omitempty" validate:"omitempty,gte=1"`
	RequiredHours       *float64               `json:"required_hours,omitempty" validate:"omitempty,gte=0"`
}

// normalizeConfigurationKey canonicalises the (type, subtype) lookup key.
// Subtype only exists for EXCELLENCE; it defaults to ACADEMIC there and is
// discarded everywhere else.
func normalizeConfigurationKey(scholarshipType models.ScholarshipType, subtype string) (models.ScholarshipType, string, error) {
	if !models.ValidScholarshipType(scholarshipType) {
		return "", "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown scholarship type %q", scholarshipType))
	}
	if scholarshipType != models.ScholarshipExcellence {
		return scholarshipType, "", nil
	}
	if subtype == "" {
		return scholarshipType, string(models.SubtypeAcademic), nil
	}
	if !models.ValidExcellenceSubtype(models.ExcellenceSubtype(subtype)) {
		return "", "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown excellence subtype %q", subtype))
	}
	return scholarshipType, subtype, nil
}

func configurationCacheKey(scholarshipType models.ScholarshipType, subtype string) string {
	return fmt.Sprintf("catalog:config:%s:%s", scholarshipType, subtype)
}

// Get returns the catalog entry for a scholarship type, falling back to the
// built-in defaults when no entry has been stored yet.
func (s *ConfigurationService) Get(ctx context.Context, scholarshipType models.ScholarshipType, subtype string) (*models.ScholarshipConfiguration, error) {
	scholarshipType, subtype, err := normalizeConfigurationKey(scholarshipType, subtype)
	if err != nil {
		return nil, err
	}

	key := configurationCacheKey(scholarshipType, subtype)
	var cached models.ScholarshipConfiguration
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		return &cached, nil
	} else if !errors.Is(err, appErrors.ErrCacheMiss) {
		s.logger.Sugar().Warnw("configuration cache read failed", "key", key, "error", err)
	}

	cfg, err := s.repo.Find(ctx, scholarshipType, subtype)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			fallback := models.DefaultConfiguration(scholarshipType, subtype)
			return &fallback, nil
		}
		return nil, fmt.Errorf("find configuration %s/%s: %w", scholarshipType, subtype, err)
	}

	if err := s.cache.Set(ctx, key, cfg, s.cacheTTL); err != nil {
		s.logger.Sugar().Warnw("configuration cache write failed", "key", key, "error", err)
	}
	return cfg, nil
}

// List returns every stored catalog entry.
func (s *ConfigurationService) List(ctx context.Context) ([]models.ScholarshipConfiguration, error) {
	return s.repo.List(ctx)
}

// Upsert stores a catalog entry under its canonical key, superseding any
// previous value, and invalidates the cached copy before returning.
func (s *ConfigurationService) Upsert(ctx context.Context, req *UpsertConfigurationRequest, updatedBy string) (*models.ScholarshipConfiguration, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid configuration payload")
	}

	scholarshipType, subtype, err := normalizeConfigurationKey(req.Type, req.Subtype)
	if err != nil {
		return nil, err
	}
	if req.MinTerm != nil && req.MaxTerm != nil && *req.MaxTerm < *req.MinTerm {
		return nil, appErrors.Clone(appErrors.ErrValidation, "max_term cannot be below min_term")
	}

	cfg := &models.ScholarshipConfiguration{
		Type:                scholarshipType,
		Subtype:             subtype,
		MinAverage:          req.MinAverage,
		MinTerm:             req.MinTerm,
		MaxTerm:             req.MaxTerm,
		MaxAge:              req.MaxAge,
		SpecialRequirements: req.SpecialRequirements,
		RequiredDocuments:   req.RequiredDocuments,
		AvailableSlots:      req.AvailableSlots,
		DurationMonths:      req.DurationMonths,
		RequiredHours:       req.RequiredHours,
	}
	if updatedBy != "" {
		cfg.UpdatedBy = &updatedBy
	}

	if err := s.repo.Upsert(ctx, cfg); err != nil {
		return nil, err
	}

	key := configurationCacheKey(scholarshipType, subtype)
	if err := s.cache.Delete(ctx, key); err != nil {
		s.logger.Sugar().Warnw("configuration cache invalidation failed", "key", key, "error", err)
	}

	s.logger.Sugar().Infow("configuration upserted", "scholarship_type", scholarshipType, "subtype", subtype, "updated_by", updatedBy)
	return cfg, nil
}
