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
	"github.com/sibec-dev/becas-api/internal/schedule"
	appErrors "github.com/sibec-dev/becas-api/pkg/errors"
)

// SlotStore is the persistence surface for slots and their schedules.
type SlotStore interface {
	Create(ctx context.Context, slot *models.Slot, blocks []models.TimeBlock) error
	Update(ctx context.Context, slot *models.Slot, blocks []models.TimeBlock) error
	FindByID(ctx context.Context, id string) (*models.Slot, error)
	ScheduleBlocks(ctx context.Context, slotID string) ([]models.ScheduleBlock, error)
	AssignedCount(ctx context.Context, slotID string) (int, error)
	AssignedBeneficiaries(ctx context.Context, slotID string) ([]models.Beneficiary, error)
	List(ctx context.Context, filter models.SlotFilter) ([]models.SlotDetail, int, error)
	ReleaseAssignment(ctx context.Context, beneficiaryID string) (bool, error)
}

// SlotApplicationStore is the persistence surface for postulations.
type SlotApplicationStore interface {
	Create(ctx context.Context, sa *models.SlotApplication) error
	FindByID(ctx context.Context, id string) (*models.SlotApplication, error)
	HasPending(ctx context.Context, beneficiaryID, slotID string) (bool, error)
	List(ctx context.Context, filter models.SlotApplicationFilter) ([]models.SlotApplicationDetail, int, error)
	Approve(ctx context.Context, id, reviewerID string, notes *string) (*models.SlotApplication, error)
	Reject(ctx context.Context, id, reviewerID, reason string, notes *string) (bool, error)
}

// BeneficiaryReader is the read surface the slot workflow needs.
type BeneficiaryReader interface {
	FindByID(ctx context.Context, id string) (*models.Beneficiary, error)
	Availability(ctx context.Context, beneficiaryID string) ([]models.TimeBlock, error)
}

// SlotService implements slot management and the postulation workflow.
type SlotService struct {
	slots         SlotStore
	applications  SlotApplicationStore
	beneficiaries BeneficiaryReader
	notifier      Notifier
	metrics       *MetricsService
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewSlotService constructs the slot service.
func NewSlotService(slots SlotStore, applications SlotApplicationStore, beneficiaries BeneficiaryReader, notifier Notifier, metrics *MetricsService, logger *zap.Logger) *SlotService {
	return &SlotService{
		slots:         slots,
		applications:  applications,
		beneficiaries: beneficiaries,
		notifier:      notifier,
		metrics:       metrics,
		validator:     validator.New(),
		logger:        logger,
	}
}

// CreateSlotRequest is the payload for opening a new slot.
type CreateSlotRequest struct {
	Subject        string             `json:"subject" validate:"required"`
	Department     string             `json:"department" validate:"required"`
	Capacity       int                `json:"capacity" validate:"required,gte=1"`
	AcademicPeriod string             `json:"academic_period" validate:"required"`
	PeriodStart    time.Time          `json:"period_start" validate:"required"`
	PeriodEnd      time.Time          `json:"period_end" validate:"required"`
	SupervisorID   string             `json:"supervisor_id" validate:"required"`
	Schedule       []models.TimeBlock `json:"schedule"`
}

// UpdateSlotRequest carries partial slot updates. Nil fields keep their
// stored value; a non-nil Schedule replaces the whole weekly schedule.
type UpdateSlotRequest struct {
	Subject        *string            `json:"subject,omitempty"`
	Department     *string            `json:"department,omitempty"`
	Capacity       *int               `json:"capacity,omitempty" validate:"omitempty,gte=1"`
	AcademicPeriod *string            `json:"academic_period,omitempty"`
	PeriodStart    *time.Time         `json:"period_start,omitempty"`
	PeriodEnd      *time.Time         `json:"period_end,omitempty"`
	SupervisorID   *string            `json:"supervisor_id,omitempty"`
	Status         *models.SlotStatus `json:"status,omitempty"`
	Schedule       []models.TimeBlock `json:"schedule,omitempty"`
}

// CreateSlot opens a new slot with its weekly schedule.
func (s *SlotService) CreateSlot(ctx context.Context, req *CreateSlotRequest) (*models.SlotDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid slot payload")
	}
	if !req.PeriodEnd.After(req.PeriodStart) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "period_end must be after period_start")
	}
	if err := schedule.ValidateBlocks(req.Schedule); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule blocks")
	}

	slot := &models.Slot{
		Subject:        req.Subject,
		Department:     req.Department,
		Capacity:       req.Capacity,
		AcademicPeriod: req.AcademicPeriod,
		PeriodStart:    req.PeriodStart,
		PeriodEnd:      req.PeriodEnd,
		SupervisorID:   req.SupervisorID,
		Status:         models.SlotStatusActive,
	}
	if err := s.slots.Create(ctx, slot, req.Schedule); err != nil {
		return nil, err
	}

	s.logger.Sugar().Infow("slot created", "slot_id", slot.ID, "subject", slot.Subject, "capacity", slot.Capacity)
	return s.GetSlot(ctx, slot.ID)
}

// UpdateSlot rewrites slot fields. Capacity can never drop below the current
// occupancy; assignments are only removed through explicit release.
func (s *SlotService) UpdateSlot(ctx context.Context, id string, req *UpdateSlotRequest) (*models.SlotDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid slot payload")
	}

	slot, err := s.findSlot(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Subject != nil {
		slot.Subject = *req.Subject
	}
	if req.Department != nil {
		slot.Department = *req.Department
	}
	if req.Capacity != nil {
		assigned, err := s.slots.AssignedCount(ctx, id)
		if err != nil {
			return nil, err
		}
		if *req.Capacity < assigned {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("capacity %d below current occupancy %d", *req.Capacity, assigned))
		}
		slot.Capacity = *req.Capacity
	}
	if req.AcademicPeriod != nil {
		slot.AcademicPeriod = *req.AcademicPeriod
	}
	if req.PeriodStart != nil {
		slot.PeriodStart = *req.PeriodStart
	}
	if req.PeriodEnd != nil {
		slot.PeriodEnd = *req.PeriodEnd
	}
	if !slot.PeriodEnd.After(slot.PeriodStart) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "period_end must be after period_start")
	}
	if req.SupervisorID != nil {
		slot.SupervisorID = *req.SupervisorID
	}
	if req.Status != nil {
		if *req.Status != models.SlotStatusActive && *req.Status != models.SlotStatusInactive {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown slot status %q", *req.Status))
		}
		slot.Status = *req.Status
	}
	if req.Schedule != nil {
		if err := schedule.ValidateBlocks(req.Schedule); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule blocks")
		}
	}

	if err := s.slots.Update(ctx, slot, req.Schedule); err != nil {
		return nil, err
	}
	return s.GetSlot(ctx, id)
}

// GetSlot returns a slot with its schedule and occupancy.
func (s *SlotService) GetSlot(ctx context.Context, id string) (*models.SlotDetail, error) {
	slot, err := s.findSlot(ctx, id)
	if err != nil {
		return nil, err
	}
	blocks, err := s.slots.ScheduleBlocks(ctx, id)
	if err != nil {
		return nil, err
	}
	assigned, err := s.slots.AssignedCount(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.SlotDetail{Slot: *slot, Schedule: blocks, AssignedCount: assigned}, nil
}

// ListSlots returns slots matching the filter.
func (s *SlotService) ListSlots(ctx context.Context, filter models.SlotFilter) ([]models.SlotDetail, int, error) {
	return s.slots.List(ctx, filter)
}

// AssignedBeneficiaries returns the beneficiaries occupying a slot.
func (s *SlotService) AssignedBeneficiaries(ctx context.Context, id string) ([]models.Beneficiary, error) {
	if _, err := s.findSlot(ctx, id); err != nil {
		return nil, err
	}
	return s.slots.AssignedBeneficiaries(ctx, id)
}

// CreateSlotApplication records a beneficiary's postulation to a slot. The
// compatibility score is computed here, once, from the availability and
// schedule as they stand, and stays frozen on the record.
func (s *SlotService) CreateSlotApplication(ctx context.Context, beneficiaryID, slotID string) (*models.SlotApplication, error) {
	beneficiary, err := s.beneficiaries.FindByID(ctx, beneficiaryID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "beneficiary not found")
		}
		return nil, fmt.Errorf("find beneficiary %s: %w", beneficiaryID, err)
	}
	if beneficiary.Status != models.BeneficiaryStatusActive {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "only active beneficiaries can apply for slots")
	}
	if beneficiary.SlotID != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "beneficiary already holds a slot")
	}

	slot, err := s.findSlot(ctx, slotID)
	if err != nil {
		return nil, err
	}
	if slot.Status != models.SlotStatusActive {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "slot is not open for postulations")
	}

	pending, err := s.applications.HasPending(ctx, beneficiaryID, slotID)
	if err != nil {
		return nil, err
	}
	if pending {
		return nil, appErrors.Clone(appErrors.ErrDuplicateKey, "a pending postulation for this slot already exists")
	}

	availability, err := s.beneficiaries.Availability(ctx, beneficiaryID)
	if err != nil {
		return nil, err
	}
	scheduleBlocks, err := s.slots.ScheduleBlocks(ctx, slotID)
	if err != nil {
		return nil, err
	}
	blocks := make([]models.TimeBlock, 0, len(scheduleBlocks))
	for _, b := range scheduleBlocks {
		blocks = append(blocks, b.TimeBlock)
	}

	score, err := schedule.Score(availability, blocks)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "schedule could not be scored")
	}

	sa := &models.SlotApplication{
		BeneficiaryID:    beneficiaryID,
		SlotID:           slotID,
		State:            models.SlotApplicationPending,
		Compatibility:    score.Percentage,
		CompatibleBlocks: score.CompatibleBlocks,
	}
	if err := s.applications.Create(ctx, sa); err != nil {
		return nil, err
	}

	s.logger.Sugar().Infow("slot application created", "slot_application_id", sa.ID, "beneficiary_id", beneficiaryID, "slot_id", slotID, "compatibility", sa.Compatibility)
	s.notifier.Dispatch("slot_application.created", "slot_application", sa.ID, map[string]interface{}{
		"slot_id":       slotID,
		"compatibility": sa.Compatibility,
	})
	return sa, nil
}

// GetSlotApplication returns a postulation by ID.
func (s *SlotService) GetSlotApplication(ctx context.Context, id string) (*models.SlotApplication, error) {
	sa, err := s.applications.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "slot application not found")
		}
		return nil, fmt.Errorf("find slot application %s: %w", id, err)
	}
	return sa, nil
}

// ListSlotApplications returns postulations matching the filter.
func (s *SlotService) ListSlotApplications(ctx context.Context, filter models.SlotApplicationFilter) ([]models.SlotApplicationDetail, int, error) {
	return s.applications.List(ctx, filter)
}

// ApproveSlotApplication approves a pending postulation and seats the
// beneficiary. Capacity is re-checked inside the assignment transaction, so
// of two concurrent approvals on a one-seat slot exactly one wins.
func (s *SlotService) ApproveSlotApplication(ctx context.Context, id, reviewerID string, notes *string) (*models.SlotApplication, error) {
	sa, err := s.applications.Approve(ctx, id, reviewerID, notes)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "slot application not found")
		}
		if errors.Is(err, appErrors.ErrCapacityExceeded) && s.metrics != nil {
			s.metrics.CapacityConflict()
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.SlotAssigned()
	}
	s.logger.Sugar().Infow("slot application approved", "slot_application_id", id, "beneficiary_id", sa.BeneficiaryID, "slot_id", sa.SlotID, "reviewer_id", reviewerID)
	s.notifier.Dispatch("slot_application.approved", "slot_application", id, map[string]interface{}{
		"slot_id": sa.SlotID,
	})
	return sa, nil
}

// RejectSlotApplication rejects a pending postulation. A reason is mandatory.
func (s *SlotService) RejectSlotApplication(ctx context.Context, id, reviewerID string, reason string, notes *string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return appErrors.Clone(appErrors.ErrValidation, "rejection reason is required")
	}

	if _, err := s.GetSlotApplication(ctx, id); err != nil {
		return err
	}
	rejected, err := s.applications.Reject(ctx, id, reviewerID, reason, notes)
	if err != nil {
		return err
	}
	if !rejected {
		return appErrors.Clone(appErrors.ErrInvalidState, "slot application already decided")
	}

	s.logger.Sugar().Infow("slot application rejected", "slot_application_id", id, "reviewer_id", reviewerID)
	s.notifier.Dispatch("slot_application.rejected", "slot_application", id, map[string]interface{}{
		"reason": reason,
	})
	return nil
}

// ReleaseAssignment detaches a beneficiary from its slot, freeing the seat.
func (s *SlotService) ReleaseAssignment(ctx context.Context, beneficiaryID string) error {
	released, err := s.slots.ReleaseAssignment(ctx, beneficiaryID)
	if err != nil {
		return err
	}
	if !released {
		return appErrors.Clone(appErrors.ErrNotFound, "beneficiary holds no slot assignment")
	}

	s.logger.Sugar().Infow("slot assignment released", "beneficiary_id", beneficiaryID)
	s.notifier.Dispatch("slot_assignment.released", "beneficiary", beneficiaryID, nil)
	return nil
}

func (s *SlotService) findSlot(ctx context.Context, id string) (*models.Slot, error) {
	slot, err := s.slots.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "slot not found")
		}
		return nil, fmt.Errorf("find slot %s: %w", id, err)
	}
	return slot, nil
}
