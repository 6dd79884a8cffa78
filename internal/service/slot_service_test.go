package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sibec-dev/becas-api/internal/models"
	appErrors "github.com/sibec-dev/becas-api/pkg/errors"
)

type slotStoreMock struct {
	slots     map[string]*models.Slot
	schedules map[string][]models.ScheduleBlock
	assigned  map[string][]string // slot ID -> beneficiary IDs
}

func newSlotStoreMock() *slotStoreMock {
	return &slotStoreMock{
		slots:     make(map[string]*models.Slot),
		schedules: make(map[string][]models.ScheduleBlock),
		assigned:  make(map[string][]string),
	}
}

func (m *slotStoreMock) Create(_ context.Context, slot *models.Slot, blocks []models.TimeBlock) error {
	if slot.ID == "" {
		slot.ID = "slot-" + slot.Subject
	}
	copied := *slot
	m.slots[slot.ID] = &copied
	m.setSchedule(slot.ID, blocks)
	return nil
}

func (m *slotStoreMock) Update(_ context.Context, slot *models.Slot, blocks []models.TimeBlock) error {
	copied := *slot
	m.slots[slot.ID] = &copied
	if blocks != nil {
		m.setSchedule(slot.ID, blocks)
	}
	return nil
}

func (m *slotStoreMock) setSchedule(slotID string, blocks []models.TimeBlock) {
	schedule := make([]models.ScheduleBlock, 0, len(blocks))
	for _, b := range blocks {
		schedule = append(schedule, models.ScheduleBlock{SlotID: slotID, TimeBlock: b})
	}
	m.schedules[slotID] = schedule
}

func (m *slotStoreMock) FindByID(_ context.Context, id string) (*models.Slot, error) {
	slot, ok := m.slots[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *slot
	return &copied, nil
}

func (m *slotStoreMock) ScheduleBlocks(_ context.Context, slotID string) ([]models.ScheduleBlock, error) {
	return m.schedules[slotID], nil
}

func (m *slotStoreMock) AssignedCount(_ context.Context, slotID string) (int, error) {
	return len(m.assigned[slotID]), nil
}

func (m *slotStoreMock) AssignedBeneficiaries(_ context.Context, _ string) ([]models.Beneficiary, error) {
	return nil, nil
}

func (m *slotStoreMock) List(_ context.Context, _ models.SlotFilter) ([]models.SlotDetail, int, error) {
	return nil, 0, nil
}

func (m *slotStoreMock) ReleaseAssignment(_ context.Context, beneficiaryID string) (bool, error) {
	for slotID, ids := range m.assigned {
		for i, id := range ids {
			if id == beneficiaryID {
				m.assigned[slotID] = append(ids[:i], ids[i+1:]...)
				return true, nil
			}
		}
	}
	return false, nil
}

type slotApplicationStoreMock struct {
	applications  map[string]*models.SlotApplication
	slots         *slotStoreMock
	beneficiaries *slotBeneficiaryMock
}

func newSlotApplicationStoreMock(slots *slotStoreMock, beneficiaries *slotBeneficiaryMock) *slotApplicationStoreMock {
	return &slotApplicationStoreMock{
		applications:  make(map[string]*models.SlotApplication),
		slots:         slots,
		beneficiaries: beneficiaries,
	}
}

func (m *slotApplicationStoreMock) Create(_ context.Context, sa *models.SlotApplication) error {
	if sa.ID == "" {
		sa.ID = "postulation-" + sa.BeneficiaryID + "-" + sa.SlotID
	}
	if sa.CreatedAt.IsZero() {
		sa.CreatedAt = time.Now().UTC()
	}
	copied := *sa
	m.applications[sa.ID] = &copied
	return nil
}

func (m *slotApplicationStoreMock) FindByID(_ context.Context, id string) (*models.SlotApplication, error) {
	sa, ok := m.applications[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *sa
	return &copied, nil
}

func (m *slotApplicationStoreMock) HasPending(_ context.Context, beneficiaryID, slotID string) (bool, error) {
	for _, sa := range m.applications {
		if sa.BeneficiaryID == beneficiaryID && sa.SlotID == slotID && sa.State == models.SlotApplicationPending {
			return true, nil
		}
	}
	return false, nil
}

func (m *slotApplicationStoreMock) List(_ context.Context, _ models.SlotApplicationFilter) ([]models.SlotApplicationDetail, int, error) {
	return nil, 0, nil
}

func (m *slotApplicationStoreMock) Approve(_ context.Context, id, reviewerID string, notes *string) (*models.SlotApplication, error) {
	sa, ok := m.applications[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if sa.State != models.SlotApplicationPending {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "slot application already decided")
	}
	if b, ok := m.beneficiaries.beneficiaries[sa.BeneficiaryID]; ok && b.SlotID != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "beneficiary already holds a slot assignment")
	}
	slot := m.slots.slots[sa.SlotID]
	if len(m.slots.assigned[sa.SlotID]) >= slot.Capacity {
		return nil, appErrors.Clone(appErrors.ErrCapacityExceeded, "slot has no remaining capacity")
	}
	now := time.Now().UTC()
	sa.State = models.SlotApplicationApproved
	sa.ReviewerID = &reviewerID
	sa.ReviewerNotes = notes
	sa.DecidedAt = &now
	m.slots.assigned[sa.SlotID] = append(m.slots.assigned[sa.SlotID], sa.BeneficiaryID)
	if b, ok := m.beneficiaries.beneficiaries[sa.BeneficiaryID]; ok {
		b.SlotID = &sa.SlotID
	}
	copied := *sa
	return &copied, nil
}

func (m *slotApplicationStoreMock) Reject(_ context.Context, id, reviewerID, reason string, notes *string) (bool, error) {
	sa, ok := m.applications[id]
	if !ok || sa.State != models.SlotApplicationPending {
		return false, nil
	}
	now := time.Now().UTC()
	sa.State = models.SlotApplicationRejected
	sa.ReviewerID = &reviewerID
	sa.RejectionReason = &reason
	sa.ReviewerNotes = notes
	sa.DecidedAt = &now
	return true, nil
}

type slotBeneficiaryMock struct {
	beneficiaries map[string]*models.Beneficiary
	availability  map[string][]models.TimeBlock
}

func (m *slotBeneficiaryMock) FindByID(_ context.Context, id string) (*models.Beneficiary, error) {
	b, ok := m.beneficiaries[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *b
	return &copied, nil
}

func (m *slotBeneficiaryMock) Availability(_ context.Context, beneficiaryID string) ([]models.TimeBlock, error) {
	return m.availability[beneficiaryID], nil
}

type slotFixture struct {
	svc           *SlotService
	slots         *slotStoreMock
	applications  *slotApplicationStoreMock
	beneficiaries *slotBeneficiaryMock
	notifier      *notifierStub
}

func newSlotFixture() *slotFixture {
	slots := newSlotStoreMock()
	beneficiaries := &slotBeneficiaryMock{
		beneficiaries: make(map[string]*models.Beneficiary),
		availability:  make(map[string][]models.TimeBlock),
	}
	applications := newSlotApplicationStoreMock(slots, beneficiaries)
	notifier := &notifierStub{}
	return &slotFixture{
		svc:           NewSlotService(slots, applications, beneficiaries, notifier, nil, zap.NewNop()),
		slots:         slots,
		applications:  applications,
		beneficiaries: beneficiaries,
		notifier:      notifier,
	}
}

func validSlotRequest() *CreateSlotRequest {
	return &CreateSlotRequest{
		Subject:        "Databases",
		Department:     "Computing",
		Capacity:       2,
		AcademicPeriod: "2026-1",
		PeriodStart:    time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		PeriodEnd:      time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC),
		SupervisorID:   "sup-1",
		Schedule: []models.TimeBlock{
			{Day: models.Monday, StartTime: "08:00", EndTime: "10:00"},
			{Day: models.Wednesday, StartTime: "08:00", EndTime: "10:00"},
		},
	}
}

func (f *slotFixture) addBeneficiary(id string, availability []models.TimeBlock) {
	f.beneficiaries.beneficiaries[id] = &models.Beneficiary{
		ID:     id,
		Status: models.BeneficiaryStatusActive,
	}
	f.beneficiaries.availability[id] = availability
}

func TestSlotCreateAndGet(t *testing.T) {
	f := newSlotFixture()

	detail, err := f.svc.CreateSlot(context.Background(), validSlotRequest())
	require.NoError(t, err)

	assert.Equal(t, models.SlotStatusActive, detail.Status)
	assert.Len(t, detail.Schedule, 2)
	assert.Zero(t, detail.AssignedCount)
}

func TestSlotCreateRejectsBadSchedule(t *testing.T) {
	f := newSlotFixture()

	req := validSlotRequest()
	req.Schedule = []models.TimeBlock{{Day: models.Monday, StartTime: "10:00", EndTime: "08:00"}}

	_, err := f.svc.CreateSlot(context.Background(), req)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestSlotUpdateCapacityBelowOccupancy(t *testing.T) {
	f := newSlotFixture()
	detail, err := f.svc.CreateSlot(context.Background(), validSlotRequest())
	require.NoError(t, err)
	f.slots.assigned[detail.ID] = []string{"ben-1", "ben-2"}

	one := 1
	_, err = f.svc.UpdateSlot(context.Background(), detail.ID, &UpdateSlotRequest{Capacity: &one})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	three := 3
	updated, err := f.svc.UpdateSlot(context.Background(), detail.ID, &UpdateSlotRequest{Capacity: &three})
	require.NoError(t, err)
	assert.Equal(t, 3, updated.Capacity)
}

func TestSlotApplicationFreezesCompatibility(t *testing.T) {
	f := newSlotFixture()
	detail, err := f.svc.CreateSlot(context.Background(), validSlotRequest())
	require.NoError(t, err)

	// Available Monday mornings only: one of two blocks fits.
	f.addBeneficiary("ben-1", []models.TimeBlock{
		{Day: models.Monday, StartTime: "07:00", EndTime: "12:00"},
	})

	sa, err := f.svc.CreateSlotApplication(context.Background(), "ben-1", detail.ID)
	require.NoError(t, err)
	assert.Equal(t, 50.0, sa.Compatibility)
	assert.Equal(t, 1, sa.CompatibleBlocks)

	// Rewriting the slot schedule afterwards leaves the stored score alone.
	_, err = f.svc.UpdateSlot(context.Background(), detail.ID, &UpdateSlotRequest{
		Schedule: []models.TimeBlock{{Day: models.Friday, StartTime: "14:00", EndTime: "16:00"}},
	})
	require.NoError(t, err)

	stored, err := f.svc.GetSlotApplication(context.Background(), sa.ID)
	require.NoError(t, err)
	assert.Equal(t, 50.0, stored.Compatibility)
}

func TestSlotApplicationVacuousScheduleScoresFull(t *testing.T) {
	f := newSlotFixture()
	req := validSlotRequest()
	req.Schedule = nil
	detail, err := f.svc.CreateSlot(context.Background(), req)
	require.NoError(t, err)

	f.addBeneficiary("ben-1", nil)

	sa, err := f.svc.CreateSlotApplication(context.Background(), "ben-1", detail.ID)
	require.NoError(t, err)
	assert.Equal(t, 100.0, sa.Compatibility)
	assert.Zero(t, sa.CompatibleBlocks)
}

func TestSlotApplicationGuards(t *testing.T) {
	f := newSlotFixture()
	detail, err := f.svc.CreateSlot(context.Background(), validSlotRequest())
	require.NoError(t, err)

	_, err = f.svc.CreateSlotApplication(context.Background(), "ghost", detail.ID)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	f.addBeneficiary("ben-1", nil)
	held := "slot-other"
	f.beneficiaries.beneficiaries["ben-1"].SlotID = &held
	_, err = f.svc.CreateSlotApplication(context.Background(), "ben-1", detail.ID)
	assert.ErrorIs(t, err, appErrors.ErrInvalidState)

	f.beneficiaries.beneficiaries["ben-1"].SlotID = nil
	_, err = f.svc.CreateSlotApplication(context.Background(), "ben-1", detail.ID)
	require.NoError(t, err)

	// Second pending postulation for the same slot is refused.
	_, err = f.svc.CreateSlotApplication(context.Background(), "ben-1", detail.ID)
	assert.ErrorIs(t, err, appErrors.ErrDuplicateKey)
}

func TestSlotApplicationApproveAndCapacity(t *testing.T) {
	f := newSlotFixture()
	req := validSlotRequest()
	req.Capacity = 1
	detail, err := f.svc.CreateSlot(context.Background(), req)
	require.NoError(t, err)

	f.addBeneficiary("ben-1", nil)
	f.addBeneficiary("ben-2", nil)

	first, err := f.svc.CreateSlotApplication(context.Background(), "ben-1", detail.ID)
	require.NoError(t, err)
	second, err := f.svc.CreateSlotApplication(context.Background(), "ben-2", detail.ID)
	require.NoError(t, err)

	approved, err := f.svc.ApproveSlotApplication(context.Background(), first.ID, "admin-1", nil)
	require.NoError(t, err)
	assert.Equal(t, models.SlotApplicationApproved, approved.State)

	// The single seat is taken; the second approval must lose.
	_, err = f.svc.ApproveSlotApplication(context.Background(), second.ID, "admin-1", nil)
	assert.ErrorIs(t, err, appErrors.ErrCapacityExceeded)
}

func TestSlotApplicationApproveRefusesSeatedBeneficiary(t *testing.T) {
	f := newSlotFixture()
	first, err := f.svc.CreateSlot(context.Background(), validSlotRequest())
	require.NoError(t, err)
	reqB := validSlotRequest()
	reqB.Subject = "Networks"
	second, err := f.svc.CreateSlot(context.Background(), reqB)
	require.NoError(t, err)

	// An unassigned beneficiary may postulate to both slots.
	f.addBeneficiary("ben-1", nil)
	toFirst, err := f.svc.CreateSlotApplication(context.Background(), "ben-1", first.ID)
	require.NoError(t, err)
	toSecond, err := f.svc.CreateSlotApplication(context.Background(), "ben-1", second.ID)
	require.NoError(t, err)

	_, err = f.svc.ApproveSlotApplication(context.Background(), toFirst.ID, "admin-1", nil)
	require.NoError(t, err)

	// Once seated, the remaining postulation can no longer be approved.
	_, err = f.svc.ApproveSlotApplication(context.Background(), toSecond.ID, "admin-1", nil)
	assert.ErrorIs(t, err, appErrors.ErrInvalidState)
	assert.Empty(t, f.slots.assigned[second.ID])
}

func TestSlotApplicationRejectRequiresReason(t *testing.T) {
	f := newSlotFixture()
	detail, err := f.svc.CreateSlot(context.Background(), validSlotRequest())
	require.NoError(t, err)
	f.addBeneficiary("ben-1", nil)

	sa, err := f.svc.CreateSlotApplication(context.Background(), "ben-1", detail.ID)
	require.NoError(t, err)

	err = f.svc.RejectSlotApplication(context.Background(), sa.ID, "admin-1", "", nil)
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	err = f.svc.RejectSlotApplication(context.Background(), sa.ID, "admin-1", "schedule conflict", nil)
	require.NoError(t, err)

	err = f.svc.RejectSlotApplication(context.Background(), sa.ID, "admin-1", "schedule conflict", nil)
	assert.ErrorIs(t, err, appErrors.ErrInvalidState)
}

func TestSlotReleaseAssignment(t *testing.T) {
	f := newSlotFixture()
	detail, err := f.svc.CreateSlot(context.Background(), validSlotRequest())
	require.NoError(t, err)
	f.addBeneficiary("ben-1", nil)

	sa, err := f.svc.CreateSlotApplication(context.Background(), "ben-1", detail.ID)
	require.NoError(t, err)
	_, err = f.svc.ApproveSlotApplication(context.Background(), sa.ID, "admin-1", nil)
	require.NoError(t, err)

	err = f.svc.ReleaseAssignment(context.Background(), "ben-1")
	require.NoError(t, err)

	err = f.svc.ReleaseAssignment(context.Background(), "ben-1")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}
