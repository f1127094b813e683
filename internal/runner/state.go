package runner

import (
	"time"

	"github.com/SAP-F-2025/assessment-runner/internal/models"
)

// Status is the runner state machine position.
//
//	not_started -> in_progress -> submitting -> submitted
//	                    ^              |
//	                    +---- error ---+
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusSubmitting Status = "submitting"
	StatusSubmitted  Status = "submitted"
)

func (s Status) IsTerminal() bool {
	return s == StatusSubmitted
}

// Trigger records what moved the runner into submitting.
type Trigger string

const (
	TriggerManual Trigger = "manual"
	TriggerExpiry Trigger = "expiry"
)

// Snapshot is a consistent copy of the runner state.
type Snapshot struct {
	AssessmentID  string               `json:"assessmentId"`
	Status        Status               `json:"status"`
	CurrentIndex  int                  `json:"currentIndex"`
	QuestionCount int                  `json:"questionCount"`
	Remaining     int                  `json:"remaining"` // seconds
	Answers       models.Answers       `json:"answers"`
	StartedAt     *time.Time           `json:"startedAt,omitempty"`
	TimeSpent     int                  `json:"timeSpent"`
	LastError     string               `json:"lastError,omitempty"`
	RetryIn       int                  `json:"retryIn,omitempty"` // seconds until the next automatic submit
	Result        *models.SubmitResult `json:"result,omitempty"`
}

// AnsweredCount counts questions with a recorded answer.
func (s Snapshot) AnsweredCount() int {
	return len(s.Answers)
}

// state is owned by the loop goroutine and never shared.
type state struct {
	status    Status
	current   int
	remaining int
	answers   models.Answers
	startedAt time.Time
	timeSpent int
	warned    bool
	lastErr   error
	result    *models.SubmitResult
	trigger   Trigger
	retries   int // failed submissions after the countdown ran out
	retryIn   int
	waiter    chan<- submitReply
}

func (s *state) snapshot(a *models.Assessment) Snapshot {
	snap := Snapshot{
		AssessmentID:  a.ID,
		Status:        s.status,
		CurrentIndex:  s.current,
		QuestionCount: a.QuestionCount(),
		Remaining:     s.remaining,
		Answers:       s.answers.Clone(),
		TimeSpent:     s.timeSpent,
		RetryIn:       s.retryIn,
		Result:        s.result,
	}
	if !s.startedAt.IsZero() {
		startedAt := s.startedAt
		snap.StartedAt = &startedAt
	}
	if s.lastErr != nil {
		snap.LastError = s.lastErr.Error()
	}
	return snap
}
