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

// BeneficiaryHandler exposes beneficiary lifecycle endpoints.
type BeneficiaryHandler struct {
	beneficiaries *service.BeneficiaryService
}

// NewBeneficiaryHandler constructs BeneficiaryHandler.
func NewBeneficiaryHandler(beneficiaries *service.BeneficiaryService) *BeneficiaryHandler {
	return &BeneficiaryHandler{beneficiaries: beneficiaries}
}

type updateStatusRequest struct {
	Status models.BeneficiaryStatus `json:"status" binding:"required"`
}

type availabilityRequest struct {
	Blocks []models.TimeBlock `json:"blocks"`
}

// List godoc
// @Summary List beneficiaries
// @Tags Beneficiaries
// @Produce json
// @Param status query string false "Filter by status"
// @Param type query string false "Filter by scholarship type"
// @Param hasSlot query bool false "Filter by slot assignment"
// @Param search query string false "Search by name or national ID"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /beneficiaries [get]
func (h *BeneficiaryHandler) List(c *gin.Context) {
	var filter models.BeneficiaryFilter
	filter.Status = models.BeneficiaryStatus(c.Query("status"))
	filter.ScholarshipType = models.ScholarshipType(c.Query("type"))
	if hasSlot := c.Query("hasSlot"); hasSlot != "" {
		if hasSlot == "true" {
			v := true
			filter.HasSlot = &v
		} else if hasSlot == "false" {
			v := false
			filter.HasSlot = &v
		}
	}
	filter.Search = strings.TrimSpace(c.Query("search"))
	filter.Page, filter.PageSize = pageParams(c)
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	beneficiaries, total, err := h.beneficiaries.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, beneficiaries, paginationMeta(filter.Page, filter.PageSize, total))
}

// Get godoc
// @Summary Get beneficiary detail with progress
// @Tags Beneficiaries
// @Produce json
// @Param id path string true "Beneficiary ID"
// @Success 200 {object} response.Envelope
// @Router /beneficiaries/{id} [get]
func (h *BeneficiaryHandler) Get(c *gin.Context) {
	detail, err := h.beneficiaries.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// UpdateStatus godoc
// @Summary Update beneficiary status
// @Tags Beneficiaries
// @Accept json
// @Produce json
// @Param id path string true "Beneficiary ID"
// @Param payload body updateStatusRequest true "Target status"
// @Success 200 {object} response.Envelope
// @Router /beneficiaries/{id}/status [put]
func (h *BeneficiaryHandler) UpdateStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	beneficiary, err := h.beneficiaries.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status, reviewerFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, beneficiary, nil)
}

// SetAvailability godoc
// @Summary Replace the beneficiary's weekly availability
// @Tags Beneficiaries
// @Accept json
// @Produce json
// @Param id path string true "Beneficiary ID"
// @Param payload body availabilityRequest true "Availability blocks"
// @Success 204
// @Router /beneficiaries/{id}/availability [put]
func (h *BeneficiaryHandler) SetAvailability(c *gin.Context) {
	var req availabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.beneficiaries.SetAvailability(c.Request.Context(), c.Param("id"), req.Blocks); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Availability godoc
// @Summary Get the beneficiary's weekly availability
// @Tags Beneficiaries
// @Produce json
// @Param id path string true "Beneficiary ID"
// @Success 200 {object} response.Envelope
// @Router /beneficiaries/{id}/availability [get]
func (h *BeneficiaryHandler) Availability(c *gin.Context) {
	blocks, err := h.beneficiaries.Availability(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, blocks, nil)
}

// HourLedger godoc
// @Summary Approved reports backing the completed hours
// @Tags Beneficiaries
// @Produce json
// @Param id path string true "Beneficiary ID"
// @Success 200 {object} response.Envelope
// @Router /beneficiaries/{id}/hours [get]
func (h *BeneficiaryHandler) HourLedger(c *gin.Context) {
	entries, err := h.beneficiaries.HourLedger(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}
