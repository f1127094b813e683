package handlers

import (
	"net/http"

	"github.com/SAP-F-2025/assessment-runner/internal/services"
	"github.com/SAP-F-2025/assessment-runner/internal/utils"
	"github.com/gin-gonic/gin"
)

type IntakeHandler struct {
	BaseHandler
	intakeService services.IntakeService
}

func NewIntakeHandler(intakeService services.IntakeService, logger utils.Logger) *IntakeHandler {
	return &IntakeHandler{
		BaseHandler:   NewBaseHandler(logger),
		intakeService: intakeService,
	}
}

// GetAssessment returns the intake view for an assessment
// @Summary Get assessment intake view
// @Description Title, description, duration, question count and passing score shown before starting
// @Tags assessments
// @Produce json
// @Param id path string true "Assessment ID"
// @Success 200 {object} services.IntakeView
// @Failure 404 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /assessments/{id} [get]
func (h *IntakeHandler) GetAssessment(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	h.LogRequest(c, "Loading assessment intake view", "assessment_id", id)

	view, err := h.intakeService.Load(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}
