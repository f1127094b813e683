package services

import (
	"errors"

	"github.com/SAP-F-2025/assessment-runner/internal/client"
	apperrors "github.com/SAP-F-2025/assessment-runner/internal/errors"
	"github.com/SAP-F-2025/assessment-runner/internal/models"
	"github.com/SAP-F-2025/assessment-runner/internal/runner"
)

var (
	ErrAssessmentNotFound = errors.New("assessment not found")
	ErrSessionNotFound    = errors.New("session not found")
	ErrInvalidResult      = errors.New("results payload is missing or malformed")
	ErrShuttingDown       = errors.New("session service is shutting down")
)

// Use shared validation errors from errors package
type ValidationError = apperrors.ValidationError
type ValidationErrors = apperrors.ValidationErrors

// IsNotFound checks if error represents a "not found" condition
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAssessmentNotFound) ||
		errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, client.ErrNotFound)
}

// IsConflict checks if the request does not fit the attempt's current state
func IsConflict(err error) bool {
	return errors.Is(err, runner.ErrSubmitInFlight) ||
		errors.Is(err, runner.ErrAlreadyStarted) ||
		errors.Is(err, runner.ErrAlreadySubmitted) ||
		errors.Is(err, runner.ErrNotInProgress) ||
		errors.Is(err, runner.ErrNotOnLastQuestion) ||
		errors.Is(err, runner.ErrClosed)
}

// IsValidation checks if error represents a validation failure
func IsValidation(err error) bool {
	if errors.Is(err, runner.ErrUnknownQuestion) ||
		errors.Is(err, models.ErrAnswerTypeMismatch) ||
		errors.Is(err, models.ErrUnknownOption) ||
		errors.Is(err, ErrInvalidResult) {
		return true
	}
	var ve apperrors.ValidationErrors
	return errors.As(err, &ve)
}

// IsUpstream reports a failure of the scoring or assessment backend.
func IsUpstream(err error) bool {
	var httpErr *client.HTTPError
	return errors.As(err, &httpErr)
}
