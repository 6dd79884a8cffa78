package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sibec-dev/becas-api/internal/models"
	"github.com/sibec-dev/becas-api/internal/schedule"
	appErrors "github.com/sibec-dev/becas-api/pkg/errors"
)

// BeneficiaryStore is the persistence surface for beneficiaries.
type BeneficiaryStore interface {
	FindByID(ctx context.Context, id string) (*models.Beneficiary, error)
	List(ctx context.Context, filter models.BeneficiaryFilter) ([]models.Beneficiary, int, error)
	UpdateStatus(ctx context.Context, id string, status models.BeneficiaryStatus) (bool, error)
	ReplaceAvailability(ctx context.Context, beneficiaryID string, blocks []models.TimeBlock) error
	Availability(ctx context.Context, beneficiaryID string) ([]models.TimeBlock, error)
	HourLedger(ctx context.Context, beneficiaryID string) ([]models.HourLedgerEntry, error)
}

// BeneficiaryService manages the lifecycle of active awards.
type BeneficiaryService struct {
	repo     BeneficiaryStore
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time
}

// NewBeneficiaryService constructs the beneficiary service.
func NewBeneficiaryService(repo BeneficiaryStore, notifier Notifier, logger *zap.Logger) *BeneficiaryService {
	return &BeneficiaryService{repo: repo, notifier: notifier, logger: logger, now: time.Now}
}

// Get returns a beneficiary with its derived progress fields.
func (s *BeneficiaryService) Get(ctx context.Context, id string) (*models.BeneficiaryDetail, error) {
	b, err := s.findBeneficiary(ctx, id)
	if err != nil {
		return nil, err
	}
	detail := s.buildDetail(b)
	return &detail, nil
}

// List returns beneficiaries matching the filter with derived fields attached.
func (s *BeneficiaryService) List(ctx context.Context, filter models.BeneficiaryFilter) ([]models.BeneficiaryDetail, int, error) {
	beneficiaries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	details := make([]models.BeneficiaryDetail, 0, len(beneficiaries))
	for i := range beneficiaries {
		details = append(details, s.buildDetail(&beneficiaries[i]))
	}
	return details, total, nil
}

// UpdateStatus records an administrator-driven status transition. FINISHED is
// terminal; suspended awards may come back to ACTIVE.
func (s *BeneficiaryService) UpdateStatus(ctx context.Context, id string, status models.BeneficiaryStatus, updatedBy string) (*models.Beneficiary, error) {
	if !models.ValidBeneficiaryStatus(status) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown beneficiary status %q", status))
	}

	b, err := s.findBeneficiary(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Status == status {
		return b, nil
	}
	if b.Status == models.BeneficiaryStatusFinished {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "finished awards cannot change status")
	}

	updated, err := s.repo.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "beneficiary not found")
	}

	b.Status = status
	s.logger.Sugar().Infow("beneficiary status updated", "beneficiary_id", id, "status", status, "updated_by", updatedBy)
	s.notifier.Dispatch("beneficiary.status_changed", "beneficiary", id, map[string]interface{}{
		"status": status,
	})
	return b, nil
}

// SetAvailability replaces the beneficiary's weekly availability blocks used
// for slot compatibility scoring.
func (s *BeneficiaryService) SetAvailability(ctx context.Context, id string, blocks []models.TimeBlock) error {
	if _, err := s.findBeneficiary(ctx, id); err != nil {
		return err
	}
	if err := schedule.ValidateBlocks(blocks); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability blocks")
	}
	return s.repo.ReplaceAvailability(ctx, id, blocks)
}

// Availability returns the beneficiary's weekly availability blocks.
func (s *BeneficiaryService) Availability(ctx context.Context, id string) ([]models.TimeBlock, error) {
	if _, err := s.findBeneficiary(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.Availability(ctx, id)
}

// HourLedger returns the approved reports backing the completed hours.
func (s *BeneficiaryService) HourLedger(ctx context.Context, id string) ([]models.HourLedgerEntry, error) {
	if _, err := s.findBeneficiary(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.HourLedger(ctx, id)
}

// ComputeRiskFlag reports whether an active award is behind pace: completed
// hours proportionally lower than the elapsed fraction of the award period.
// Inactive awards and zero-hour awards are never at risk.
func ComputeRiskFlag(b *models.Beneficiary, now time.Time) bool {
	if b.Status != models.BeneficiaryStatusActive || b.RequiredHours <= 0 {
		return false
	}
	total := b.PeriodEnd.Sub(b.PeriodStart)
	if total <= 0 {
		return false
	}
	elapsed := now.Sub(b.PeriodStart).Seconds() / total.Seconds()
	if elapsed <= 0 {
		return false
	}
	if elapsed > 1 {
		elapsed = 1
	}
	return b.CompletedHours/b.RequiredHours < elapsed
}

func (s *BeneficiaryService) buildDetail(b *models.Beneficiary) models.BeneficiaryDetail {
	progress := 0.0
	if b.RequiredHours > 0 {
		progress = b.CompletedHours / b.RequiredHours * 100
	}
	return models.BeneficiaryDetail{
		Beneficiary:     *b,
		ProgressPercent: progress,
		AtRisk:          ComputeRiskFlag(b, s.now().UTC()),
	}
}

func (s *BeneficiaryService) findBeneficiary(ctx context.Context, id string) (*models.Beneficiary, error) {
	b, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "beneficiary not found")
		}
		return nil, fmt.Errorf("find beneficiary %s: %w", id, err)
	}
	return b, nil
}
