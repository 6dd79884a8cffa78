package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sibec-dev/becas-api/internal/models"
	appErrors "github.com/sibec-dev/becas-api/pkg/errors"
)

// minRejectionReasonLen is the minimum length of a report rejection reason.
// The student has to be told what to fix, so a bare "no" is not accepted.
const minRejectionReasonLen = 10

// ReportStore is the persistence surface for weekly reports.
type ReportStore interface {
	Exists(ctx context.Context, beneficiaryID, period string, week int) (bool, error)
	Create(ctx context.Context, report *models.WeeklyReport) error
	FindByID(ctx context.Context, id string) (*models.WeeklyReport, error)
	List(ctx context.Context, filter models.ReportFilter) ([]models.WeeklyReport, int, error)
	StartReview(ctx context.Context, id, reviewerID string) (bool, error)
	Approve(ctx context.Context, id, reviewerID string, remarks *string) (*models.WeeklyReport, error)
	Reject(ctx context.Context, id, reviewerID, reason string) (bool, error)
}

// ReportBeneficiaryReader resolves the beneficiary a report belongs to.
type ReportBeneficiaryReader interface {
	FindByID(ctx context.Context, id string) (*models.Beneficiary, error)
}

// ReportService implements the weekly report submission and review workflow.
type ReportService struct {
	repo          ReportStore
	beneficiaries ReportBeneficiaryReader
	notifier      Notifier
	metrics       *MetricsService
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewReportService constructs the report service.
func NewReportService(repo ReportStore, beneficiaries ReportBeneficiaryReader, notifier Notifier, metrics *MetricsService, logger *zap.Logger) *ReportService {
	return &ReportService{
		repo:          repo,
		beneficiaries: beneficiaries,
		notifier:      notifier,
		metrics:       metrics,
		validator:     validator.New(),
		logger:        logger,
	}
}

// SubmitReportRequest is the payload for a weekly activity report.
type SubmitReportRequest struct {
	BeneficiaryID       string  `json:"beneficiary_id" validate:"required"`
	AcademicPeriod      string  `json:"academic_period" validate:"required"`
	Week                int     `json:"week" validate:"required,gte=1"`
	HoursWorked         float64 `json:"hours_worked" validate:"gte=0"`
	PeriodObjectives    string  `json:"period_objectives,omitempty"`
	SpecificGoals       string  `json:"specific_goals,omitempty"`
	PlannedActivities   string  `json:"planned_activities,omitempty"`
	ActualActivities    string  `json:"actual_activities,omitempty"`
	DetailedDescription string  `json:"detailed_description,omitempty"`
	Remarks             string  `json:"remarks,omitempty"`
}

// Submit records a new weekly report in PENDING state. One report per
// (beneficiary, period, week); duplicates are refused.
func (s *ReportService) Submit(ctx context.Context, req *SubmitReportRequest) (*models.WeeklyReport, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid report payload")
	}

	beneficiary, err := s.beneficiaries.FindByID(ctx, req.BeneficiaryID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "beneficiary not found")
		}
		return nil, fmt.Errorf("find beneficiary %s: %w", req.BeneficiaryID, err)
	}
	if beneficiary.Status != models.BeneficiaryStatusActive {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "only active beneficiaries can submit reports")
	}

	exists, err := s.repo.Exists(ctx, req.BeneficiaryID, req.AcademicPeriod, req.Week)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrDuplicateKey,
			fmt.Sprintf("a report for week %d of %s already exists", req.Week, req.AcademicPeriod))
	}

	report := &models.WeeklyReport{
		BeneficiaryID:       req.BeneficiaryID,
		AcademicPeriod:      req.AcademicPeriod,
		Week:                req.Week,
		HoursWorked:         req.HoursWorked,
		PeriodObjectives:    req.PeriodObjectives,
		SpecificGoals:       req.SpecificGoals,
		PlannedActivities:   req.PlannedActivities,
		ActualActivities:    req.ActualActivities,
		DetailedDescription: req.DetailedDescription,
		Remarks:             req.Remarks,
		State:               models.ReportStatePending,
	}
	if err := s.repo.Create(ctx, report); err != nil {
		return nil, err
	}

	s.logger.Sugar().Infow("report submitted", "report_id", report.ID, "beneficiary_id", report.BeneficiaryID, "week", report.Week, "hours", report.HoursWorked)
	s.notifier.Dispatch("report.submitted", "report", report.ID, map[string]interface{}{
		"beneficiary_id": report.BeneficiaryID,
		"week":           report.Week,
	})
	return report, nil
}

// Get returns a report by ID.
func (s *ReportService) Get(ctx context.Context, id string) (*models.WeeklyReport, error) {
	return s.findReport(ctx, id)
}

// List returns reports matching the filter.
func (s *ReportService) List(ctx context.Context, filter models.ReportFilter) ([]models.WeeklyReport, int, error) {
	return s.repo.List(ctx, filter)
}

// StartReview claims a pending report for a reviewer.
func (s *ReportService) StartReview(ctx context.Context, id, reviewerID string) (*models.WeeklyReport, error) {
	if _, err := s.findReport(ctx, id); err != nil {
		return nil, err
	}
	claimed, err := s.repo.StartReview(ctx, id, reviewerID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "report is not pending")
	}
	return s.findReport(ctx, id)
}

// Approve marks the report approved and credits its hours to the
// beneficiary. Approval and accrual land together or not at all, and an
// already-approved report can never be credited twice.
func (s *ReportService) Approve(ctx context.Context, id, reviewerID string, remarks *string) (*models.WeeklyReport, error) {
	report, err := s.repo.Approve(ctx, id, reviewerID, remarks)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report not found")
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.ReportDecided(string(models.ReportStateApproved))
		s.metrics.HoursAccrued(report.HoursWorked)
	}
	s.logger.Sugar().Infow("report approved", "report_id", id, "beneficiary_id", report.BeneficiaryID, "hours", report.HoursWorked, "reviewer_id", reviewerID)
	s.notifier.Dispatch("report.approved", "report", id, map[string]interface{}{
		"beneficiary_id": report.BeneficiaryID,
		"hours":          report.HoursWorked,
	})
	return report, nil
}

// Reject marks an undecided report rejected. The reason must carry enough
// text to act on.
func (s *ReportService) Reject(ctx context.Context, id, reviewerID, reason string) error {
	reason = strings.TrimSpace(reason)
	if len(reason) < minRejectionReasonLen {
		return appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("rejection reason must be at least %d characters", minRejectionReasonLen))
	}

	if _, err := s.findReport(ctx, id); err != nil {
		return err
	}
	rejected, err := s.repo.Reject(ctx, id, reviewerID, reason)
	if err != nil {
		return err
	}
	if !rejected {
		return appErrors.Clone(appErrors.ErrInvalidState, "report already decided")
	}

	if s.metrics != nil {
		s.metrics.ReportDecided(string(models.ReportStateRejected))
	}
	s.logger.Sugar().Infow("report rejected", "report_id", id, "reviewer_id", reviewerID)
	s.notifier.Dispatch("report.rejected", "report", id, map[string]interface{}{
		"reason": reason,
	})
	return nil
}

func (s *ReportService) findReport(ctx context.Context, id string) (*models.WeeklyReport, error) {
	report, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report not found")
		}
		return nil, fmt.Errorf("find report %s: %w", id, err)
	}
	return report, nil
}
