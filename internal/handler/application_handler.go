package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sibec-dev/becas-api/internal/models"
	"github.com/sibec-dev/becas-api/internal/service"
	appErrors "github.com/sibec-dev/becas-api/pkg/errors"
	"github.com/sibec-dev/becas-api/pkg/response"
)

// ApplicationHandler exposes the application intake and review endpoints.
type ApplicationHandler struct {
	applications *service.ApplicationService
}

// NewApplicationHandler constructs ApplicationHandler.
func NewApplicationHandler(applications *service.ApplicationService) *ApplicationHandler {
	return &ApplicationHandler{applications: applications}
}

// Submit godoc
// @Summary Submit a scholarship application
// @Tags Applications
// @Accept json
// @Produce json
// @Param payload body service.SubmitApplicationRequest true "Application payload"
// @Success 201 {object} response.Envelope
// @Router /applications [post]
func (h *ApplicationHandler) Submit(c *gin.Context) {
	var req service.SubmitApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	detail, err := h.applications.Submit(c.Request.Context(), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, detail)
}

// List godoc
// @Summary List applications
// @Tags Applications
// @Produce json
// @Param state query string false "Filter by state"
// @Param type query string false "Filter by scholarship type"
// @Param category query string false "Filter by applicant category"
// @Param search query string false "Search by name or national ID"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /applications [get]
func (h *ApplicationHandler) List(c *gin.Context) {
	var filter models.ApplicationFilter
	filter.State = models.ApplicationState(c.Query("state"))
	filter.ScholarshipType = models.ScholarshipType(c.Query("type"))
	filter.Category = models.ApplicantCategory(c.Query("category"))
	filter.Search = strings.TrimSpace(c.Query("search"))
	filter.Page, filter.PageSize = pageParams(c)
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	applications, total, err := h.applications.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, applications, paginationMeta(filter.Page, filter.PageSize, total))
}

// Get godoc
// @Summary Get application detail
// @Tags Applications
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Router /applications/{id} [get]
func (h *ApplicationHandler) Get(c *gin.Context) {
	detail, err := h.applications.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Approve godoc
// @Summary Approve a pending application
// @Tags Applications
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body service.ReviewRequest false "Review notes"
// @Success 200 {object} response.Envelope
// @Router /applications/{id}/approve [post]
func (h *ApplicationHandler) Approve(c *gin.Context) {
	var req service.ReviewRequest
	_ = c.ShouldBindJSON(&req)

	beneficiary, err := h.applications.Approve(c.Request.Context(), c.Param("id"), reviewerFromContext(c), req.Notes)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, beneficiary, nil)
}

// Reject godoc
// @Summary Reject a pending application
// @Tags Applications
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body service.ReviewRequest true "Rejection reason"
// @Success 204
// @Router /applications/{id}/reject [post]
func (h *ApplicationHandler) Reject(c *gin.Context) {
	var req service.ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.applications.Reject(c.Request.Context(), c.Param("id"), reviewerFromContext(c), req.Reason, req.Notes); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// RegisterDirect godoc
// @Summary Register an already-approved award
// @Tags Applications
// @Accept json
// @Produce json
// @Param payload body service.SubmitApplicationRequest true "Application payload"
// @Success 201 {object} response.Envelope
// @Router /applications/direct [post]
func (h *ApplicationHandler) RegisterDirect(c *gin.Context) {
	var req service.SubmitApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	beneficiary, err := h.applications.RegisterDirect(c.Request.Context(), &req, reviewerFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, beneficiary)
}

// CheckEligibility godoc
// @Summary Advisory eligibility check for an application
// @Tags Applications
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Router /applications/{id}/eligibility [get]
func (h *ApplicationHandler) CheckEligibility(c *gin.Context) {
	report, err := h.applications.CheckEligibility(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}
