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

type reportKey struct {
	beneficiaryID string
	period        string
	week          int
}

type reportStoreMock struct {
	reports       map[string]*models.WeeklyReport
	beneficiaries map[string]*models.Beneficiary
}

func newReportStoreMock(beneficiaries map[string]*models.Beneficiary) *reportStoreMock {
	return &reportStoreMock{
		reports:       make(map[string]*models.WeeklyReport),
		beneficiaries: beneficiaries,
	}
}

func (m *reportStoreMock) Exists(_ context.Context, beneficiaryID, period string, week int) (bool, error) {
	key := reportKey{beneficiaryID, period, week}
	for _, r := range m.reports {
		if (reportKey{r.BeneficiaryID, r.AcademicPeriod, r.Week}) == key {
			return true, nil
		}
	}
	return false, nil
}

func (m *reportStoreMock) Create(_ context.Context, report *models.WeeklyReport) error {
	if report.ID == "" {
		report.ID = "rep-" + report.AcademicPeriod
	}
	copied := *report
	m.reports[report.ID] = &copied
	return nil
}

func (m *reportStoreMock) FindByID(_ context.Context, id string) (*models.WeeklyReport, error) {
	r, ok := m.reports[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *r
	return &copied, nil
}

func (m *reportStoreMock) List(_ context.Context, _ models.ReportFilter) ([]models.WeeklyReport, int, error) {
	return nil, 0, nil
}

func (m *reportStoreMock) StartReview(_ context.Context, id, reviewerID string) (bool, error) {
	r, ok := m.reports[id]
	if !ok || r.State != models.ReportStatePending {
		return false, nil
	}
	r.State = models.ReportStateInReview
	r.ReviewerID = &reviewerID
	return true, nil
}

func (m *reportStoreMock) Approve(_ context.Context, id, reviewerID string, remarks *string) (*models.WeeklyReport, error) {
	r, ok := m.reports[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if !models.DecidableReportState(r.State) {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "report already decided")
	}
	b, ok := m.beneficiaries[r.BeneficiaryID]
	if !ok || b.Status != models.BeneficiaryStatusActive {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "beneficiary is not active")
	}
	now := time.Now().UTC()
	r.State = models.ReportStateApproved
	r.ReviewerID = &reviewerID
	r.SupervisorRemarks = remarks
	r.DecidedAt = &now
	b.CompletedHours += r.HoursWorked
	copied := *r
	return &copied, nil
}

func (m *reportStoreMock) Reject(_ context.Context, id, reviewerID, reason string) (bool, error) {
	r, ok := m.reports[id]
	if !ok || !models.DecidableReportState(r.State) {
		return false, nil
	}
	now := time.Now().UTC()
	r.State = models.ReportStateRejected
	r.ReviewerID = &reviewerID
	r.RejectionReason = &reason
	r.DecidedAt = &now
	return true, nil
}

type beneficiaryReaderMock struct {
	beneficiaries map[string]*models.Beneficiary
}

func (m *beneficiaryReaderMock) FindByID(_ context.Context, id string) (*models.Beneficiary, error) {
	b, ok := m.beneficiaries[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return b, nil
}

func activeBeneficiary(id string, required, completed float64) *models.Beneficiary {
	return &models.Beneficiary{
		ID:             id,
		Status:         models.BeneficiaryStatusActive,
		RequiredHours:  required,
		CompletedHours: completed,
		PeriodStart:    time.Now().AddDate(0, -3, 0),
		PeriodEnd:      time.Now().AddDate(0, 3, 0),
	}
}

func newReportFixture(beneficiaries map[string]*models.Beneficiary) (*ReportService, *reportStoreMock, *notifierStub) {
	repo := newReportStoreMock(beneficiaries)
	notifier := &notifierStub{}
	svc := NewReportService(repo, &beneficiaryReaderMock{beneficiaries: beneficiaries}, notifier, nil, zap.NewNop())
	return svc, repo, notifier
}

func validReportRequest() *SubmitReportRequest {
	return &SubmitReportRequest{
		BeneficiaryID:    "ben-1",
		AcademicPeriod:   "2026-1",
		Week:             4,
		HoursWorked:      8,
		ActualActivities: "lab assistance and grading",
	}
}

func TestReportSubmitStartsPending(t *testing.T) {
	svc, _, _ := newReportFixture(map[string]*models.Beneficiary{"ben-1": activeBeneficiary("ben-1", 120, 0)})

	report, err := svc.Submit(context.Background(), validReportRequest())
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatePending, report.State)
}

func TestReportSubmitRefusesDuplicateWeek(t *testing.T) {
	svc, _, _ := newReportFixture(map[string]*models.Beneficiary{"ben-1": activeBeneficiary("ben-1", 120, 0)})

	_, err := svc.Submit(context.Background(), validReportRequest())
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), validReportRequest())
	assert.ErrorIs(t, err, appErrors.ErrDuplicateKey)
}

func TestReportSubmitRefusesInactiveBeneficiary(t *testing.T) {
	b := activeBeneficiary("ben-1", 120, 0)
	b.Status = models.BeneficiaryStatusSuspended
	svc, _, _ := newReportFixture(map[string]*models.Beneficiary{"ben-1": b})

	_, err := svc.Submit(context.Background(), validReportRequest())
	assert.ErrorIs(t, err, appErrors.ErrInvalidState)
}

func TestReportSubmitRejectsNegativeHours(t *testing.T) {
	svc, _, _ := newReportFixture(map[string]*models.Beneficiary{"ben-1": activeBeneficiary("ben-1", 120, 0)})

	req := validReportRequest()
	req.HoursWorked = -2

	_, err := svc.Submit(context.Background(), req)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestReportApproveAccruesHoursOnce(t *testing.T) {
	beneficiaries := map[string]*models.Beneficiary{"ben-1": activeBeneficiary("ben-1", 120, 30)}
	svc, _, notifier := newReportFixture(beneficiaries)

	report, err := svc.Submit(context.Background(), validReportRequest())
	require.NoError(t, err)

	_, err = svc.Approve(context.Background(), report.ID, "sup-1", nil)
	require.NoError(t, err)
	assert.Equal(t, 38.0, beneficiaries["ben-1"].CompletedHours)
	assert.Contains(t, notifier.events, "report.approved")

	// A second approval must not credit the hours again.
	_, err = svc.Approve(context.Background(), report.ID, "sup-1", nil)
	assert.ErrorIs(t, err, appErrors.ErrInvalidState)
	assert.Equal(t, 38.0, beneficiaries["ben-1"].CompletedHours)
}

func TestReportApproveAllowsOverage(t *testing.T) {
	// 100 completed of 100 required, plus 5 more. Hours past the
	// requirement still count; nothing clamps at the target.
	beneficiaries := map[string]*models.Beneficiary{"ben-1": activeBeneficiary("ben-1", 100, 100)}
	svc, _, _ := newReportFixture(beneficiaries)

	req := validReportRequest()
	req.HoursWorked = 5
	report, err := svc.Submit(context.Background(), req)
	require.NoError(t, err)

	_, err = svc.Approve(context.Background(), report.ID, "sup-1", nil)
	require.NoError(t, err)
	assert.Equal(t, 105.0, beneficiaries["ben-1"].CompletedHours)
}

func TestReportStartReviewClaimsOnce(t *testing.T) {
	svc, _, _ := newReportFixture(map[string]*models.Beneficiary{"ben-1": activeBeneficiary("ben-1", 120, 0)})

	report, err := svc.Submit(context.Background(), validReportRequest())
	require.NoError(t, err)

	claimed, err := svc.StartReview(context.Background(), report.ID, "sup-1")
	require.NoError(t, err)
	assert.Equal(t, models.ReportStateInReview, claimed.State)

	_, err = svc.StartReview(context.Background(), report.ID, "sup-2")
	assert.ErrorIs(t, err, appErrors.ErrInvalidState)
}

func TestReportRejectReasonLength(t *testing.T) {
	beneficiaries := map[string]*models.Beneficiary{"ben-1": activeBeneficiary("ben-1", 120, 0)}
	svc, _, _ := newReportFixture(beneficiaries)

	report, err := svc.Submit(context.Background(), validReportRequest())
	require.NoError(t, err)

	// Nine characters: refused. Ten: accepted.
	err = svc.Reject(context.Background(), report.ID, "sup-1", "too short")
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	err = svc.Reject(context.Background(), report.ID, "sup-1", "ten chars!")
	require.NoError(t, err)

	got, err := svc.Get(context.Background(), report.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStateRejected, got.State)
	assert.Equal(t, 0.0, beneficiaries["ben-1"].CompletedHours)
}

func TestReportApproveNotFound(t *testing.T) {
	svc, _, _ := newReportFixture(map[string]*models.Beneficiary{})

	_, err := svc.Approve(context.Background(), "missing", "sup-1", nil)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}
