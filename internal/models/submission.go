package models

import "encoding/json"

// Submission is the write-once body posted to the scoring endpoint.
type Submission struct {
	Answers   Answers `json:"answers"`
	TimeSpent int     `json:"timeSpent" validate:"min=0"` // seconds
}

// ScoreSummary holds the commonly present fields of a scoring payload.
// Every field is optional since the payload shape belongs to the backend.
type ScoreSummary struct {
	Score          *float64 `json:"score,omitempty"`
	Passed         *bool    `json:"passed,omitempty"`
	PassingScore   *int     `json:"passingScore,omitempty"`
	CorrectAnswers *int     `json:"correctAnswers,omitempty"`
	TotalQuestions *int     `json:"totalQuestions,omitempty"`
}

// SubmitResult carries the scoring payload by value.
type SubmitResult struct {
	Payload json.RawMessage `json:"payload"`
	Summary ScoreSummary    `json:"summary"`
}

// NewSubmitResult wraps a raw payload and decodes what it can of the summary.
func NewSubmitResult(payload json.RawMessage) *SubmitResult {
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	result := &SubmitResult{Payload: payload}
	_ = json.Unmarshal(payload, &result.Summary)
	return result
}
