package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sibec-dev/becas-api/internal/models"
	"github.com/sibec-dev/becas-api/internal/service"
	appErrors "github.com/sibec-dev/becas-api/pkg/errors"
	"github.com/sibec-dev/becas-api/pkg/response"
)

// ReportHandler exposes the weekly report workflow endpoints.
type ReportHandler struct {
	reports *service.ReportService
}

// NewReportHandler constructs ReportHandler.
func NewReportHandler(reports *service.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

type reportReviewRequest struct {
	Reason  string  `json:"reason,omitempty"`
	Remarks *string `json:"remarks,omitempty"`
}

// Submit godoc
// @Summary Submit a weekly activity report
// @Tags Reports
// @Accept json
// @Produce json
// @Param payload body service.SubmitReportRequest true "Report payload"
// @Success 201 {object} response.Envelope
// @Router /reports [post]
func (h *ReportHandler) Submit(c *gin.Context) {
	var req service.SubmitReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	report, err := h.reports.Submit(c.Request.Context(), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, report)
}

// List godoc
// @Summary List weekly reports
// @Tags Reports
// @Produce json
// @Param beneficiaryId query string false "Filter by beneficiary"
// @Param period query string false "Filter by academic period"
// @Param state query string false "Filter by state"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /reports [get]
func (h *ReportHandler) List(c *gin.Context) {
	var filter models.ReportFilter
	filter.BeneficiaryID = c.Query("beneficiaryId")
	filter.AcademicPeriod = c.Query("period")
	filter.State = models.ReportState(c.Query("state"))
	filter.Page, filter.PageSize = pageParams(c)

	reports, total, err := h.reports.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, reports, paginationMeta(filter.Page, filter.PageSize, total))
}

// Get godoc
// @Summary Get a weekly report
// @Tags Reports
// @Produce json
// @Param id path string true "Report ID"
// @Success 200 {object} response.Envelope
// @Router /reports/{id} [get]
func (h *ReportHandler) Get(c *gin.Context) {
	report, err := h.reports.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// StartReview godoc
// @Summary Claim a pending report for review
// @Tags Reports
// @Produce json
// @Param id path string true "Report ID"
// @Success 200 {object} response.Envelope
// @Router /reports/{id}/review [post]
func (h *ReportHandler) StartReview(c *gin.Context) {
	report, err := h.reports.StartReview(c.Request.Context(), c.Param("id"), reviewerFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Approve godoc
// @Summary Approve a report and credit its hours
// @Tags Reports
// @Accept json
// @Produce json
// @Param id path string true "Report ID"
// @Param payload body reportReviewRequest false "Supervisor remarks"
// @Success 200 {object} response.Envelope
// @Router /reports/{id}/approve [post]
func (h *ReportHandler) Approve(c *gin.Context) {
	var req reportReviewRequest
	_ = c.ShouldBindJSON(&req)

	report, err := h.reports.Approve(c.Request.Context(), c.Param("id"), reviewerFromContext(c), req.Remarks)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

// Reject godoc
// @Summary Reject a report
// @Tags Reports
// @Accept json
// @Produce json
// @Param id path string true "Report ID"
// @Param payload body reportReviewRequest true "Rejection reason"
// @Success 204
// @Router /reports/{id}/reject [post]
func (h *ReportHandler) Reject(c *gin.Context) {
	var req reportReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.reports.Reject(c.Request.Context(), c.Param("id"), reviewerFromContext(c), req.Reason); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
