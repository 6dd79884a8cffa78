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

// SlotHandler exposes slot management and postulation endpoints.
type SlotHandler struct {
	slots *service.SlotService
}

// NewSlotHandler constructs SlotHandler.
func NewSlotHandler(slots *service.SlotService) *SlotHandler {
	return &SlotHandler{slots: slots}
}

type createSlotApplicationRequest struct {
	BeneficiaryID string `json:"beneficiary_id" binding:"required"`
	SlotID        string `json:"slot_id" binding:"required"`
}

type slotReviewRequest struct {
	Reason string  `json:"reason,omitempty"`
	Notes  *string `json:"notes,omitempty"`
}

// Create godoc
// @Summary Create a work slot
// @Tags Slots
// @Accept json
// @Produce json
// @Param payload body service.CreateSlotRequest true "Slot payload"
// @Success 201 {object} response.Envelope
// @Router /slots [post]
func (h *SlotHandler) Create(c *gin.Context) {
	var req service.CreateSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	detail, err := h.slots.CreateSlot(c.Request.Context(), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, detail)
}

// Update godoc
// @Summary Update a work slot
// @Tags Slots
// @Accept json
// @Produce json
// @Param id path string true "Slot ID"
// @Param payload body service.UpdateSlotRequest true "Slot payload"
// @Success 200 {object} response.Envelope
// @Router /slots/{id} [put]
func (h *SlotHandler) Update(c *gin.Context) {
	var req service.UpdateSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	detail, err := h.slots.UpdateSlot(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// List godoc
// @Summary List slots with occupancy
// @Tags Slots
// @Produce json
// @Param period query string false "Filter by academic period"
// @Param status query string false "Filter by status"
// @Param supervisorId query string false "Filter by supervisor"
// @Param search query string false "Search by subject or department"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /slots [get]
func (h *SlotHandler) List(c *gin.Context) {
	var filter models.SlotFilter
	filter.AcademicPeriod = c.Query("period")
	filter.Status = models.SlotStatus(c.Query("status"))
	filter.SupervisorID = c.Query("supervisorId")
	filter.Search = strings.TrimSpace(c.Query("search"))
	filter.Page, filter.PageSize = pageParams(c)
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	slots, total, err := h.slots.ListSlots(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slots, paginationMeta(filter.Page, filter.PageSize, total))
}

// Get godoc
// @Summary Get slot detail with schedule and occupancy
// @Tags Slots
// @Produce json
// @Param id path string true "Slot ID"
// @Success 200 {object} response.Envelope
// @Router /slots/{id} [get]
func (h *SlotHandler) Get(c *gin.Context) {
	detail, err := h.slots.GetSlot(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// AssignedBeneficiaries godoc
// @Summary List beneficiaries assigned to a slot
// @Tags Slots
// @Produce json
// @Param id path string true "Slot ID"
// @Success 200 {object} response.Envelope
// @Router /slots/{id}/beneficiaries [get]
func (h *SlotHandler) AssignedBeneficiaries(c *gin.Context) {
	beneficiaries, err := h.slots.AssignedBeneficiaries(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, beneficiaries, nil)
}

// CreateApplication godoc
// @Summary Postulate a beneficiary to a slot
// @Tags SlotApplications
// @Accept json
// @Produce json
// @Param payload body createSlotApplicationRequest true "Postulation payload"
// @Success 201 {object} response.Envelope
// @Router /slot-applications [post]
func (h *SlotHandler) CreateApplication(c *gin.Context) {
	var req createSlotApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	sa, err := h.slots.CreateSlotApplication(c.Request.Context(), req.BeneficiaryID, req.SlotID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, sa)
}

// ListApplications godoc
// @Summary List slot postulations
// @Tags SlotApplications
// @Produce json
// @Param beneficiaryId query string false "Filter by beneficiary"
// @Param slotId query string false "Filter by slot"
// @Param state query string false "Filter by state"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /slot-applications [get]
func (h *SlotHandler) ListApplications(c *gin.Context) {
	var filter models.SlotApplicationFilter
	filter.BeneficiaryID = c.Query("beneficiaryId")
	filter.SlotID = c.Query("slotId")
	filter.State = models.SlotApplicationState(c.Query("state"))
	filter.Page, filter.PageSize = pageParams(c)

	applications, total, err := h.slots.ListSlotApplications(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, applications, paginationMeta(filter.Page, filter.PageSize, total))
}

// GetApplication godoc
// @Summary Get a slot postulation
// @Tags SlotApplications
// @Produce json
// @Param id path string true "Slot application ID"
// @Success 200 {object} response.Envelope
// @Router /slot-applications/{id} [get]
func (h *SlotHandler) GetApplication(c *gin.Context) {
	sa, err := h.slots.GetSlotApplication(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sa, nil)
}

// ApproveApplication godoc
// @Summary Approve a slot postulation and seat the beneficiary
// @Tags SlotApplications
// @Accept json
// @Produce json
// @Param id path string true "Slot application ID"
// @Param payload body slotReviewRequest false "Review notes"
// @Success 200 {object} response.Envelope
// @Router /slot-applications/{id}/approve [post]
func (h *SlotHandler) ApproveApplication(c *gin.Context) {
	var req slotReviewRequest
	_ = c.ShouldBindJSON(&req)

	sa, err := h.slots.ApproveSlotApplication(c.Request.Context(), c.Param("id"), reviewerFromContext(c), req.Notes)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sa, nil)
}

// RejectApplication godoc
// @Summary Reject a slot postulation
// @Tags SlotApplications
// @Accept json
// @Produce json
// @Param id path string true "Slot application ID"
// @Param payload body slotReviewRequest true "Rejection reason"
// @Success 204
// @Router /slot-applications/{id}/reject [post]
func (h *SlotHandler) RejectApplication(c *gin.Context) {
	var req slotReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if err := h.slots.RejectSlotApplication(c.Request.Context(), c.Param("id"), reviewerFromContext(c), req.Reason, req.Notes); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ReleaseAssignment godoc
// @Summary Release a beneficiary's slot assignment
// @Tags Slots
// @Produce json
// @Param id path string true "Beneficiary ID"
// @Success 204
// @Router /beneficiaries/{id}/assignment [delete]
func (h *SlotHandler) ReleaseAssignment(c *gin.Context) {
	if err := h.slots.ReleaseAssignment(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
