package runner

import (
	"time"

	"github.com/SAP-F-2025/assessment-runner/internal/models"
)

type EventType string

const (
	EventStarted        EventType = "started"
	EventAnswerRecorded EventType = "answer_recorded"
	EventTimeWarning    EventType = "time_warning"
	EventSubmitting     EventType = "submitting"
	EventSubmitted      EventType = "submitted"
	EventSubmitFailed   EventType = "submit_failed"
	EventClosed         EventType = "closed"
)

// Event describes a state change. Fields not relevant to Type are zero.
type Event struct {
	Type          EventType
	AssessmentID  string
	At            time.Time
	Status        Status
	Remaining     int
	RetryIn       int
	QuestionID    string
	Trigger       Trigger
	TimeSpent     int
	AnsweredCount int
	Result        *models.SubmitResult
	Err           error
}

// Listener receives events on the runner goroutine. It must not block and
// must not call back into the Runner.
type Listener func(Event)
