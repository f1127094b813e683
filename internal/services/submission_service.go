package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/SAP-F-2025/assessment-runner/internal/client"
	"github.com/SAP-F-2025/assessment-runner/internal/models"
	"github.com/SAP-F-2025/assessment-runner/internal/utils"
	"github.com/SAP-F-2025/assessment-runner/internal/validator"
)

// ScoringEndpoint accepts a submission and returns the backend's result.
type ScoringEndpoint interface {
	SubmitAssessment(ctx context.Context, id string, submission *models.Submission) (json.RawMessage, error)
}

// SubmissionService posts a finished attempt exactly once per call. It
// satisfies runner.Submitter.
type SubmissionService struct {
	endpoint  ScoringEndpoint
	validator *validator.Validator
	opLogger  *ServiceLogger
}

func NewSubmissionService(endpoint ScoringEndpoint, v *validator.Validator, logger utils.Logger) *SubmissionService {
	return &SubmissionService{
		endpoint:  endpoint,
		validator: v,
		opLogger:  NewServiceLogger(utils.ToSlogLogger(logger), "submission"),
	}
}

func (s *SubmissionService) Submit(ctx context.Context, assessmentID string, submission *models.Submission) (result *models.SubmitResult, err error) {
	start := time.Now()
	defer func() {
		s.opLogger.LogOperation(ctx, "submit_assessment", assessmentID, "assessment", time.Since(start), err)
	}()

	if submission == nil {
		return nil, ValidationErrors{{Field: "submission", Message: "is required", Rule: "required"}}
	}
	if err = s.validator.ValidateStruct(submission); err != nil {
		return nil, err
	}
	body := *submission
	if body.Answers == nil {
		body.Answers = models.Answers{}
	}

	payload, err := s.endpoint.SubmitAssessment(ctx, assessmentID, &body)
	if err != nil {
		if errors.Is(err, client.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrAssessmentNotFound, assessmentID)
		}
		return nil, fmt.Errorf("failed to submit assessment %s: %w", assessmentID, err)
	}
	return models.NewSubmitResult(payload), nil
}

// ResultsView is what the results page renders. The result travels in the
// URL so the page needs no second fetch.
type ResultsView struct {
	AssessmentID string               `json:"assessmentId"`
	Result       *models.SubmitResult `json:"result"`
}

// ResultsURL builds the results route carrying the scoring payload in the
// query string.
func ResultsURL(base, assessmentID string, result *models.SubmitResult) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid results url %q: %w", base, err)
	}

	payload := json.RawMessage("null")
	if result != nil && len(result.Payload) > 0 {
		payload = result.Payload
	}

	q := u.Query()
	q.Set("assessment_id", assessmentID)
	q.Set("result", string(payload))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ParseResultsQuery decodes what ResultsURL encoded.
func ParseResultsQuery(values url.Values) (*ResultsView, error) {
	raw := values.Get("result")
	if raw == "" || !json.Valid([]byte(raw)) {
		return nil, ErrInvalidResult
	}
	return &ResultsView{
		AssessmentID: values.Get("assessment_id"),
		Result:       models.NewSubmitResult(json.RawMessage(raw)),
	}, nil
}
