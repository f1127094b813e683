package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the lifecycle events a taking session emits
type EventType string

const (
	EventAttemptStarted      EventType = "attempt.started"
	EventAttemptTimeWarning  EventType = "attempt.time_warning"
	EventAttemptSubmitting   EventType = "attempt.submitting"
	EventAttemptSubmitted    EventType = "attempt.submitted"
	EventAttemptSubmitFailed EventType = "attempt.submit_failed"
	EventAttemptClosed       EventType = "attempt.closed"
)

const (
	eventSource  = "assessment-runner"
	eventVersion = "1.0"
)

// RunnerEvent is the envelope for every published event
type RunnerEvent struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Version   string                 `json:"version"`
	Data      interface{}            `json:"data"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

type AttemptStartedEvent struct {
	SessionID       string    `json:"session_id"`
	AssessmentID    string    `json:"assessment_id"`
	AssessmentTitle string    `json:"assessment_title"`
	StartedAt       time.Time `json:"started_at"`
	TimeLimit       int       `json:"time_limit"` // seconds
	QuestionCount   int       `json:"question_count"`
}

type AttemptTimeWarningEvent struct {
	SessionID        string `json:"session_id"`
	AssessmentID     string `json:"assessment_id"`
	SecondsRemaining int    `json:"seconds_remaining"`
}

type AttemptSubmittingEvent struct {
	SessionID     string `json:"session_id"`
	AssessmentID  string `json:"assessment_id"`
	Trigger       string `json:"trigger"` // manual or expiry
	TimeSpent     int    `json:"time_spent"`
	AnsweredCount int    `json:"answered_count"`
}

type AttemptSubmittedEvent struct {
	SessionID    string    `json:"session_id"`
	AssessmentID string    `json:"assessment_id"`
	SubmittedAt  time.Time `json:"submitted_at"`
	TimeSpent    int       `json:"time_spent"`
	Score        *float64  `json:"score,omitempty"`
	Passed       *bool     `json:"passed,omitempty"`
}

type AttemptSubmitFailedEvent struct {
	SessionID        string `json:"session_id"`
	AssessmentID     string `json:"assessment_id"`
	Error            string `json:"error"`
	SecondsRemaining int    `json:"seconds_remaining"`
	RetryIn          int    `json:"retry_in,omitempty"` // seconds until the next automatic attempt
}

type AttemptClosedEvent struct {
	SessionID    string `json:"session_id"`
	AssessmentID string `json:"assessment_id"`
	Status       string `json:"status"`
}

// NewRunnerEvent wraps a payload in the common envelope.
func NewRunnerEvent(eventType EventType, data interface{}) *RunnerEvent {
	return &RunnerEvent{
		ID:        GenerateEventID(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Source:    eventSource,
		Version:   eventVersion,
		Data:      data,
	}
}

func GenerateEventID() string {
	return uuid.NewString()
}
