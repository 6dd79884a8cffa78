package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sibec-dev/becas-api/internal/middleware"
	"github.com/sibec-dev/becas-api/internal/models"
	"github.com/sibec-dev/becas-api/internal/service"
)

type noopNotifier struct{}

func (noopNotifier) Dispatch(event, resource, resourceID string, payload map[string]interface{}) {}

type reportStoreStub struct {
	reports map[string]*models.WeeklyReport
	exists  bool
}

func (m *reportStoreStub) Exists(ctx context.Context, beneficiaryID, period string, week int) (bool, error) {
	return m.exists, nil
}

func (m *reportStoreStub) Create(ctx context.Context, report *models.WeeklyReport) error {
	report.ID = "rep-1"
	report.CreatedAt = time.Now()
	m.reports[report.ID] = report
	return nil
}

func (m *reportStoreStub) FindByID(ctx context.Context, id string) (*models.WeeklyReport, error) {
	r, ok := m.reports[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *r
	return &clone, nil
}

func (m *reportStoreStub) List(ctx context.Context, filter models.ReportFilter) ([]models.WeeklyReport, int, error) {
	out := make([]models.WeeklyReport, 0, len(m.reports))
	for _, r := range m.reports {
		out = append(out, *r)
	}
	return out, len(out), nil
}

func (m *reportStoreStub) StartReview(ctx context.Context, id, reviewerID string) (bool, error) {
	r, ok := m.reports[id]
	if !ok || r.State != models.ReportStatePending {
		return false, nil
	}
	r.State = models.ReportStateInReview
	r.ReviewerID = &reviewerID
	return true, nil
}

func (m *reportStoreStub) Approve(ctx context.Context, id, reviewerID string, remarks *string) (*models.WeeklyReport, error) {
	r, ok := m.reports[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	r.State = models.ReportStateApproved
	r.ReviewerID = &reviewerID
	clone := *r
	return &clone, nil
}

func (m *reportStoreStub) Reject(ctx context.Context, id, reviewerID, reason string) (bool, error) {
	r, ok := m.reports[id]
	if !ok || !models.DecidableReportState(r.State) {
		return false, nil
	}
	r.State = models.ReportStateRejected
	r.RejectionReason = &reason
	return true, nil
}

type beneficiaryReaderStub struct {
	beneficiary *models.Beneficiary
}

func (m *beneficiaryReaderStub) FindByID(ctx context.Context, id string) (*models.Beneficiary, error) {
	if m.beneficiary == nil || m.beneficiary.ID != id {
		return nil, sql.ErrNoRows
	}
	return m.beneficiary, nil
}

func newReportHandler(store *reportStoreStub, reader *beneficiaryReaderStub) *ReportHandler {
	svc := service.NewReportService(store, reader, noopNotifier{}, nil, zap.NewNop())
	return NewReportHandler(svc)
}

func activeReportBeneficiary() *models.Beneficiary {
	return &models.Beneficiary{
		ID:              "ben-1",
		FullName:        "Ana Torres",
		ScholarshipType: models.ScholarshipAssistantship,
		Status:          models.BeneficiaryStatusActive,
		RequiredHours:   60,
	}
}

func TestReportHandlerSubmitInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := newReportHandler(&reportStoreStub{reports: map[string]*models.WeeklyReport{}}, &beneficiaryReaderStub{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/reports", bytes.NewReader([]byte(`invalid`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	h.Submit(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReportHandlerSubmitCreatesPending(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := &reportStoreStub{reports: map[string]*models.WeeklyReport{}}
	h := newReportHandler(store, &beneficiaryReaderStub{beneficiary: activeReportBeneficiary()})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(service.SubmitReportRequest{
		BeneficiaryID:  "ben-1",
		AcademicPeriod: "2026-1",
		Week:           3,
		HoursWorked:    6,
	})
	req, _ := http.NewRequest(http.MethodPost, "/reports", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	h.Submit(c)
	require.Equal(t, http.StatusCreated, w.Code)

	var envelope struct {
		Data models.WeeklyReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, models.ReportStatePending, envelope.Data.State)
	assert.Equal(t, 3, envelope.Data.Week)
}

func TestReportHandlerSubmitDuplicateWeek(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := &reportStoreStub{reports: map[string]*models.WeeklyReport{}, exists: true}
	h := newReportHandler(store, &beneficiaryReaderStub{beneficiary: activeReportBeneficiary()})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(service.SubmitReportRequest{
		BeneficiaryID:  "ben-1",
		AcademicPeriod: "2026-1",
		Week:           3,
		HoursWorked:    6,
	})
	req, _ := http.NewRequest(http.MethodPost, "/reports", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	h.Submit(c)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestReportHandlerRejectShortReason(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := &reportStoreStub{reports: map[string]*models.WeeklyReport{
		"rep-1": {ID: "rep-1", BeneficiaryID: "ben-1", State: models.ReportStatePending},
	}}
	h := newReportHandler(store, &beneficiaryReaderStub{beneficiary: activeReportBeneficiary()})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(map[string]string{"reason": "too short"})
	req, _ := http.NewRequest(http.MethodPost, "/reports/rep-1/reject", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "rep-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "sup-1", Role: models.RoleSupervisor})

	h.Reject(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, models.ReportStatePending, store.reports["rep-1"].State)
}

func TestReportHandlerApproveNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := &reportStoreStub{reports: map[string]*models.WeeklyReport{}}
	h := newReportHandler(store, &beneficiaryReaderStub{beneficiary: activeReportBeneficiary()})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/reports/ghost/approve", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "ghost"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "sup-1", Role: models.RoleSupervisor})

	h.Approve(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
