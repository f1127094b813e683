package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/SAP-F-2025/assessment-runner/internal/services"
	"github.com/SAP-F-2025/assessment-runner/internal/utils"
	"github.com/gin-gonic/gin"
)

// AnswerRequest carries one answer. Value is a string for single choice and
// text questions and an array of strings for multiple select.
type AnswerRequest struct {
	Value json.RawMessage `json:"value" binding:"required"`
}

type SessionHandler struct {
	BaseHandler
	sessionService services.SessionService
}

func NewSessionHandler(sessionService services.SessionService, logger utils.Logger) *SessionHandler {
	return &SessionHandler{
		BaseHandler:    NewBaseHandler(logger),
		sessionService: sessionService,
	}
}

// StartSession starts a timed attempt
// @Summary Start attempt
// @Tags sessions
// @Produce json
// @Param id path string true "Assessment ID"
// @Success 201 {object} services.SessionView
// @Failure 404 {object} ErrorResponse
// @Router /assessments/{id}/sessions [post]
func (h *SessionHandler) StartSession(c *gin.Context) {
	assessmentID := ParseStringIDParam(c, "id")
	if assessmentID == "" {
		return
	}

	h.LogRequest(c, "Starting attempt", "assessment_id", assessmentID)

	view, err := h.sessionService.Start(c.Request.Context(), assessmentID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, view)
}

// GetSession returns the current snapshot of an attempt
// @Summary Get attempt
// @Tags sessions
// @Produce json
// @Param session_id path string true "Session ID"
// @Success 200 {object} services.SessionView
// @Failure 404 {object} ErrorResponse
// @Router /sessions/{session_id} [get]
func (h *SessionHandler) GetSession(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "session_id")
	if sessionID == "" {
		return
	}

	view, err := h.sessionService.Get(c.Request.Context(), sessionID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// RecordAnswer stores the answer for one question
// @Summary Record answer
// @Tags sessions
// @Accept json
// @Produce json
// @Param session_id path string true "Session ID"
// @Param question_id path string true "Question ID"
// @Param answer body AnswerRequest true "Answer value"
// @Success 200 {object} services.SessionView
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /sessions/{session_id}/answers/{question_id} [put]
func (h *SessionHandler) RecordAnswer(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "session_id")
	if sessionID == "" {
		return
	}
	questionID := ParseStringIDParam(c, "question_id")
	if questionID == "" {
		return
	}

	var req AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "Invalid request payload", err, err.Error())
		return
	}

	view, err := h.sessionService.RecordAnswer(c.Request.Context(), sessionID, questionID, req.Value)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// Next moves to the following question
// @Summary Next question
// @Tags sessions
// @Produce json
// @Param session_id path string true "Session ID"
// @Success 200 {object} services.SessionView
// @Router /sessions/{session_id}/next [post]
func (h *SessionHandler) Next(c *gin.Context) {
	h.navigate(c, h.sessionService.Next)
}

// Prev moves to the preceding question
// @Summary Previous question
// @Tags sessions
// @Produce json
// @Param session_id path string true "Session ID"
// @Success 200 {object} services.SessionView
// @Router /sessions/{session_id}/prev [post]
func (h *SessionHandler) Prev(c *gin.Context) {
	h.navigate(c, h.sessionService.Prev)
}

func (h *SessionHandler) navigate(c *gin.Context, move func(ctx context.Context, sessionID string) (*services.SessionView, error)) {
	sessionID := ParseStringIDParam(c, "session_id")
	if sessionID == "" {
		return
	}

	view, err := move(c.Request.Context(), sessionID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// SubmitSession submits the attempt from the last question
// @Summary Submit attempt
// @Description Blocks until the backend answers. A failure leaves the attempt in progress.
// @Tags sessions
// @Produce json
// @Param session_id path string true "Session ID"
// @Success 200 {object} services.SubmitOutcome
// @Failure 409 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /sessions/{session_id}/submit [post]
func (h *SessionHandler) SubmitSession(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "session_id")
	if sessionID == "" {
		return
	}

	h.LogRequest(c, "Submitting attempt", "session_id", sessionID)

	outcome, err := h.sessionService.Submit(c.Request.Context(), sessionID)
	if err != nil {
		if services.IsConflict(err) || services.IsNotFound(err) || services.IsValidation(err) {
			h.handleServiceError(c, err)
			return
		}
		h.respondCode(c, http.StatusBadGateway, "Submission failed, please try again", "submit_failed", err, err.Error())
		return
	}

	c.JSON(http.StatusOK, outcome)
}

// CloseSession ends the attempt without submitting
// @Summary Close attempt
// @Tags sessions
// @Produce json
// @Param session_id path string true "Session ID"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} ErrorResponse
// @Router /sessions/{session_id} [delete]
func (h *SessionHandler) CloseSession(c *gin.Context) {
	sessionID := ParseStringIDParam(c, "session_id")
	if sessionID == "" {
		return
	}

	if err := h.sessionService.Close(c.Request.Context(), sessionID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Session closed"})
}
