package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sibec-dev/becas-api/internal/models"
	appErrors "github.com/sibec-dev/becas-api/pkg/errors"
)

// ApplicationStore is the persistence surface for applications.
type ApplicationStore interface {
	Create(ctx context.Context, app *models.Application, documents []models.ApplicationDocument) error
	FindByID(ctx context.Context, id string) (*models.Application, error)
	Documents(ctx context.Context, applicationID string) ([]models.ApplicationDocument, error)
	List(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, int, error)
	MarkDecided(ctx context.Context, id string, state models.ApplicationState, reviewerID string, reason, notes *string, decidedAt time.Time) (bool, error)
}

// BeneficiaryCreator activates awards for approved applications.
type BeneficiaryCreator interface {
	Create(ctx context.Context, b *models.Beneficiary) error
	ExistsByApplication(ctx context.Context, applicationID string) (bool, error)
}

// ConfigurationCatalog resolves the requirements entry for a scholarship type.
type ConfigurationCatalog interface {
	Get(ctx context.Context, scholarshipType models.ScholarshipType, subtype string) (*models.ScholarshipConfiguration, error)
}

// ApplicationService implements the application intake and review workflow.
type ApplicationService struct {
	repo          ApplicationStore
	beneficiaries BeneficiaryCreator
	catalog       ConfigurationCatalog
	notifier      Notifier
	metrics       *MetricsService
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewApplicationService constructs the application service.
func NewApplicationService(repo ApplicationStore, beneficiaries BeneficiaryCreator, catalog ConfigurationCatalog, notifier Notifier, metrics *MetricsService, logger *zap.Logger) *ApplicationService {
	return &ApplicationService{
		repo:          repo,
		beneficiaries: beneficiaries,
		catalog:       catalog,
		notifier:      notifier,
		metrics:       metrics,
		validator:     validator.New(),
		logger:        logger,
	}
}

// DocumentInput references an already uploaded supporting document.
type DocumentInput struct {
	DocumentType string `json:"document_type" validate:"required"`
	StorageRef   string `json:"storage_ref" validate:"required"`
}

// SubmitApplicationRequest is the intake payload.
type SubmitApplicationRequest struct {
	FullName          string                   `json:"full_name" validate:"required"`
	NationalID        string                   `json:"national_id" validate:"required"`
	Email             string                   `json:"email" validate:"required,email"`
	Phone             string                   `json:"phone,omitempty"`
	BirthDate         time.Time                `json:"birth_date" validate:"required"`
	MaritalStatus     string                   `json:"marital_status,omitempty"`
	Category          models.ApplicantCategory `json:"category" validate:"required"`
	TargetProgram     string                   `json:"target_program" validate:"required"`
	CurrentTerm       *int                     `json:"current_term,omitempty" validate:"omitempty,gte=1"`
	CumulativeAverage *float64                 `json:"cumulative_average,omitempty" validate:"omitempty,gte=0,lte=100"`
	HighSchoolAverage *float64                 `json:"high_school_average,omitempty" validate:"omitempty,gte=0,lte=100"`
	ApprovedCourses   *int                     `json:"approved_courses,omitempty" validate:"omitempty,gte=0"`
	EnrolledCredits   *int                     `json:"enrolled_credits,omitempty" validate:"omitempty,gte=0"`
	ScholarshipType   models.ScholarshipType   `json:"scholarship_type" validate:"required"`
	Subtype           string                   `json:"subtype,omitempty"`
	Documents         []DocumentInput          `json:"documents,omitempty" validate:"dive"`
}

// ReviewRequest carries an approval or rejection decision.
type ReviewRequest struct {
	Reason string  `json:"reason,omitempty"`
	Notes  *string `json:"notes,omitempty"`
}

// Submit records a new application in PENDING state. Intake validates the
// payload shape only; requirement thresholds never gate submission, they are
// left to the human reviewer.
func (s *ApplicationService) Submit(ctx context.Context, req *SubmitApplicationRequest) (*models.ApplicationDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid application payload")
	}
	if !models.ValidApplicantCategory(req.Category) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown applicant category %q", req.Category))
	}
	scholarshipType, subtype, err := normalizeConfigurationKey(req.ScholarshipType, req.Subtype)
	if err != nil {
		return nil, err
	}
	if !req.BirthDate.Before(time.Now()) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "birth_date must be in the past")
	}

	app := &models.Application{
		FullName:          req.FullName,
		NationalID:        req.NationalID,
		Email:             req.Email,
		Phone:             req.Phone,
		BirthDate:         req.BirthDate,
		MaritalStatus:     req.MaritalStatus,
		Category:          req.Category,
		TargetProgram:     req.TargetProgram,
		CurrentTerm:       req.CurrentTerm,
		CumulativeAverage: req.CumulativeAverage,
		HighSchoolAverage: req.HighSchoolAverage,
		ApprovedCourses:   req.ApprovedCourses,
		EnrolledCredits:   req.EnrolledCredits,
		ScholarshipType:   scholarshipType,
		Subtype:           subtype,
		State:             models.ApplicationStatePending,
	}
	documents := make([]models.ApplicationDocument, 0, len(req.Documents))
	for _, d := range req.Documents {
		documents = append(documents, models.ApplicationDocument{
			DocumentType: d.DocumentType,
			StorageRef:   d.StorageRef,
		})
	}

	if err := s.repo.Create(ctx, app, documents); err != nil {
		return nil, err
	}

	s.logger.Sugar().Infow("application submitted", "application_id", app.ID, "scholarship_type", app.ScholarshipType)
	s.notifier.Dispatch("application.submitted", "application", app.ID, map[string]interface{}{
		"scholarship_type": app.ScholarshipType,
		"applicant":        app.FullName,
	})
	return &models.ApplicationDetail{Application: *app, Documents: documents}, nil
}

// Approve moves a pending application to APPROVED and activates its award.
// The transition is single-shot; a concurrent decision wins and this call
// reports a state conflict.
func (s *ApplicationService) Approve(ctx context.Context, id, reviewerID string, notes *string) (*models.Beneficiary, error) {
	app, err := s.findApplication(ctx, id)
	if err != nil {
		return nil, err
	}
	if app.State != models.ApplicationStatePending {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("application already %s", app.State))
	}

	decided, err := s.repo.MarkDecided(ctx, id, models.ApplicationStateApproved, reviewerID, nil, notes, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if !decided {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "application was decided concurrently")
	}

	beneficiary, err := s.activateAward(ctx, app)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.ApplicationDecided(string(models.ApplicationStateApproved))
	}
	s.logger.Sugar().Infow("application approved", "application_id", id, "beneficiary_id", beneficiary.ID, "reviewer_id", reviewerID)
	s.notifier.Dispatch("application.approved", "application", id, map[string]interface{}{
		"beneficiary_id": beneficiary.ID,
	})
	return beneficiary, nil
}

// Reject moves a pending application to REJECTED. A reason is mandatory.
func (s *ApplicationService) Reject(ctx context.Context, id, reviewerID string, reason string, notes *string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return appErrors.Clone(appErrors.ErrValidation, "rejection reason is required")
	}

	app, err := s.findApplication(ctx, id)
	if err != nil {
		return err
	}
	if app.State != models.ApplicationStatePending {
		return appErrors.Clone(appErrors.ErrInvalidState, fmt.Sprintf("application already %s", app.State))
	}

	decided, err := s.repo.MarkDecided(ctx, id, models.ApplicationStateRejected, reviewerID, &reason, notes, time.Now().UTC())
	if err != nil {
		return err
	}
	if !decided {
		return appErrors.Clone(appErrors.ErrInvalidState, "application was decided concurrently")
	}

	if s.metrics != nil {
		s.metrics.ApplicationDecided(string(models.ApplicationStateRejected))
	}
	s.logger.Sugar().Infow("application rejected", "application_id", id, "reviewer_id", reviewerID)
	s.notifier.Dispatch("application.rejected", "application", id, map[string]interface{}{
		"reason": reason,
	})
	return nil
}

// RegisterDirect records an application and approves it in the same call.
// Used when the scholarship office registers an award decided offline.
func (s *ApplicationService) RegisterDirect(ctx context.Context, req *SubmitApplicationRequest, reviewerID string) (*models.Beneficiary, error) {
	detail, err := s.Submit(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.Approve(ctx, detail.ID, reviewerID, nil)
}

// Get returns an application with its documents.
func (s *ApplicationService) Get(ctx context.Context, id string) (*models.ApplicationDetail, error) {
	app, err := s.findApplication(ctx, id)
	if err != nil {
		return nil, err
	}
	docs, err := s.repo.Documents(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.ApplicationDetail{Application: *app, Documents: docs}, nil
}

// List returns applications matching the filter along with the total count.
func (s *ApplicationService) List(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, int, error) {
	return s.repo.List(ctx, filter)
}

// CheckEligibility evaluates an application against its catalog entry. The
// result is advisory material for the reviewer and gates nothing.
func (s *ApplicationService) CheckEligibility(ctx context.Context, id string) (*models.EligibilityReport, error) {
	app, err := s.findApplication(ctx, id)
	if err != nil {
		return nil, err
	}
	docs, err := s.repo.Documents(ctx, id)
	if err != nil {
		return nil, err
	}
	cfg, err := s.catalog.Get(ctx, app.ScholarshipType, app.Subtype)
	if err != nil {
		return nil, err
	}

	report := &models.EligibilityReport{ApplicationID: app.ID, Eligible: true}
	add := func(requirement string, satisfied bool, detail string) {
		report.Findings = append(report.Findings, models.EligibilityFinding{
			Requirement: requirement,
			Satisfied:   satisfied,
			Detail:      detail,
		})
		if !satisfied {
			report.Eligible = false
		}
	}

	if cfg.MinAverage > 0 {
		average := app.CumulativeAverage
		if app.Category == models.CategoryFreshman {
			average = app.HighSchoolAverage
		}
		switch {
		case average == nil:
			add("min_average", false, "no academic average on record")
		case *average < cfg.MinAverage:
			add("min_average", false, fmt.Sprintf("average %.1f below required %.1f", *average, cfg.MinAverage))
		default:
			add("min_average", true, "")
		}
	}
	if cfg.MinTerm != nil {
		switch {
		case app.CurrentTerm == nil:
			add("min_term", false, "no current term on record")
		case *app.CurrentTerm < *cfg.MinTerm:
			add("min_term", false, fmt.Sprintf("term %d below required %d", *app.CurrentTerm, *cfg.MinTerm))
		default:
			add("min_term", true, "")
		}
	}
	if cfg.MaxTerm != nil && app.CurrentTerm != nil && *app.CurrentTerm > *cfg.MaxTerm {
		add("max_term", false, fmt.Sprintf("term %d above allowed %d", *app.CurrentTerm, *cfg.MaxTerm))
	}
	if cfg.MaxAge != nil {
		age := yearsSince(app.BirthDate, time.Now())
		add("max_age", age <= *cfg.MaxAge, fmt.Sprintf("applicant is %d", age))
	}
	for _, required := range cfg.RequiredDocuments {
		found := false
		for _, d := range docs {
			if strings.EqualFold(d.DocumentType, required) {
				found = true
				break
			}
		}
		detail := ""
		if !found {
			detail = "document not attached"
		}
		add("document:"+required, found, detail)
	}

	return report, nil
}

// activateAward creates the beneficiary backing an approved application.
// Required hours and award duration come from the catalog entry with
// program defaults as fallback.
func (s *ApplicationService) activateAward(ctx context.Context, app *models.Application) (*models.Beneficiary, error) {
	exists, err := s.beneficiaries.ExistsByApplication(ctx, app.ID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "award already activated for this application")
	}

	requiredHours := models.DefaultRequiredHours(app.ScholarshipType)
	durationMonths := 6
	cfg, err := s.catalog.Get(ctx, app.ScholarshipType, app.Subtype)
	if err != nil {
		s.logger.Sugar().Warnw("catalog lookup failed, using program defaults", "application_id", app.ID, "error", err)
	} else {
		if cfg.RequiredHours != nil {
			requiredHours = *cfg.RequiredHours
		}
		if cfg.DurationMonths != nil && *cfg.DurationMonths > 0 {
			durationMonths = *cfg.DurationMonths
		}
	}

	now := time.Now().UTC()
	beneficiary := &models.Beneficiary{
		ApplicationID:   app.ID,
		FullName:        app.FullName,
		NationalID:      app.NationalID,
		Email:           app.Email,
		ScholarshipType: app.ScholarshipType,
		Subtype:         app.Subtype,
		BenefitPercent:  models.DefaultBenefitPercent(app.ScholarshipType),
		Status:          models.BeneficiaryStatusActive,
		RequiredHours:   requiredHours,
		CompletedHours:  0,
		PeriodStart:     now,
		PeriodEnd:       now.AddDate(0, durationMonths, 0),
	}
	if err := s.beneficiaries.Create(ctx, beneficiary); err != nil {
		return nil, err
	}
	return beneficiary, nil
}

func (s *ApplicationService) findApplication(ctx context.Context, id string) (*models.Application, error) {
	app, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, fmt.Errorf("find application %s: %w", id, err)
	}
	return app, nil
}

func yearsSince(birth, now time.Time) int {
	years := now.Year() - birth.Year()
	if now.YearDay() < birth.YearDay() {
		years--
	}
	return years
}
