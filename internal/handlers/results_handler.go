package handlers

import (
	"net/http"

	"github.com/SAP-F-2025/assessment-runner/internal/services"
	"github.com/SAP-F-2025/assessment-runner/internal/utils"
	"github.com/gin-gonic/gin"
)

type ResultsHandler struct {
	BaseHandler
}

func NewResultsHandler(logger utils.Logger) *ResultsHandler {
	return &ResultsHandler{BaseHandler: NewBaseHandler(logger)}
}

// GetResults renders the result carried in the query string
// @Summary Results view
// @Description Decodes the result the submit redirect carried. No backend call is made.
// @Tags results
// @Produce json
// @Param assessment_id query string false "Assessment ID"
// @Param result query string true "URL-encoded JSON result"
// @Success 200 {object} services.ResultsView
// @Failure 400 {object} ErrorResponse
// @Router /results [get]
func (h *ResultsHandler) GetResults(c *gin.Context) {
	view, err := services.ParseResultsQuery(c.Request.URL.Query())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}
