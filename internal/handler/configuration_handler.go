package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sibec-dev/becas-api/internal/models"
	"github.com/sibec-dev/becas-api/internal/service"
	appErrors "github.com/sibec-dev/becas-api/pkg/errors"
	"github.com/sibec-dev/becas-api/pkg/response"
)

// ConfigurationHandler exposes the scholarship requirements catalog.
type ConfigurationHandler struct {
	configurations *service.ConfigurationService
}

// NewConfigurationHandler constructs ConfigurationHandler.
func NewConfigurationHandler(configurations *service.ConfigurationService) *ConfigurationHandler {
	return &ConfigurationHandler{configurations: configurations}
}

// List godoc
// @Summary List scholarship configurations
// @Tags Configurations
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /configurations [get]
func (h *ConfigurationHandler) List(c *gin.Context) {
	configs, err := h.configurations.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, configs, nil)
}

// Get godoc
// @Summary Get the configuration for a scholarship type
// @Tags Configurations
// @Produce json
// @Param type path string true "Scholarship type"
// @Param subtype query string false "Excellence subtype"
// @Success 200 {object} response.Envelope
// @Router /configurations/{type} [get]
func (h *ConfigurationHandler) Get(c *gin.Context) {
	cfg, err := h.configurations.Get(c.Request.Context(),
		models.ScholarshipType(c.Param("type")), c.Query("subtype"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cfg, nil)
}

// Upsert godoc
// @Summary Create or replace a scholarship configuration
// @Tags Configurations
// @Accept json
// @Produce json
// @Param payload body service.UpsertConfigurationRequest true "Configuration payload"
// @Success 200 {object} response.Envelope
// @Router /configurations [put]
func (h *ConfigurationHandler) Upsert(c *gin.Context) {
	var req service.UpsertConfigurationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	cfg, err := h.configurations.Upsert(c.Request.Context(), &req, reviewerFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cfg, nil)
}
