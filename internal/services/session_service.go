package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/SAP-F-2025/assessment-runner/internal/events"
	"github.com/SAP-F-2025/assessment-runner/internal/models"
	"github.com/SAP-F-2025/assessment-runner/internal/runner"
	"github.com/SAP-F-2025/assessment-runner/internal/utils"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

const (
	// submitted sessions linger this long so the page can still read them
	terminalGrace  = time.Minute
	eventBuffer    = 256
	publishTimeout = 5 * time.Second
)

// SessionService keeps one runner per page mount for the HTTP surface.
type SessionService interface {
	Start(ctx context.Context, assessmentID string) (*SessionView, error)
	Get(ctx context.Context, sessionID string) (*SessionView, error)
	RecordAnswer(ctx context.Context, sessionID, questionID string, raw json.RawMessage) (*SessionView, error)
	Next(ctx context.Context, sessionID string) (*SessionView, error)
	Prev(ctx context.Context, sessionID string) (*SessionView, error)
	// Submit blocks until the backend answers and returns the result page URL.
	Submit(ctx context.Context, sessionID string) (*SubmitOutcome, error)
	Close(ctx context.Context, sessionID string) error
	Reap() int
	RunReaper(ctx context.Context, interval time.Duration)
	Shutdown()
}

type SessionConfig struct {
	TTL                time.Duration
	TimeWarningSeconds int
	ResultsBaseURL     string
	Clock              clockwork.Clock
}

// SessionView is a snapshot plus the question currently on screen.
type SessionView struct {
	SessionID       string          `json:"sessionId"`
	Snapshot        runner.Snapshot `json:"snapshot"`
	CurrentQuestion *QuestionView   `json:"currentQuestion,omitempty"`
}

type SubmitOutcome struct {
	Result   *models.SubmitResult `json:"result"`
	Redirect string               `json:"redirect"`
}

// attemptInfo is filled in before the runner starts and read only by the
// listener afterwards.
type attemptInfo struct {
	title         string
	questionCount int
}

type session struct {
	id       string
	runner   *runner.Runner
	lastSeen time.Time
	// when the countdown runs out if nothing pauses it
	countdownEnds time.Time
}

type sessionService struct {
	intake    IntakeService
	publisher events.EventPublisher
	config    SessionConfig
	clock     clockwork.Clock
	logger    utils.Logger
	opLogger  *ServiceLogger

	mu       sync.Mutex
	sessions map[string]*session
	closed   bool

	events      chan *events.RunnerEvent
	quit        chan struct{}
	forwardDone chan struct{}
	stopOnce    sync.Once
}

// NewSessionService creates the registry. With a nil publisher runner
// events are not forwarded anywhere.
func NewSessionService(intake IntakeService, publisher events.EventPublisher, config SessionConfig, logger utils.Logger) SessionService {
	clock := config.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	s := &sessionService{
		intake:      intake,
		publisher:   publisher,
		config:      config,
		clock:       clock,
		logger:      logger,
		opLogger:    NewServiceLogger(utils.ToSlogLogger(logger), "session"),
		sessions:    make(map[string]*session),
		events:      make(chan *events.RunnerEvent, eventBuffer),
		quit:        make(chan struct{}),
		forwardDone: make(chan struct{}),
	}
	go s.forward()
	return s
}

func (s *sessionService) Start(ctx context.Context, assessmentID string) (view *SessionView, err error) {
	start := time.Now()
	defer func() {
		s.opLogger.LogOperation(ctx, "start_session", assessmentID, "assessment", time.Since(start), err)
	}()

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, ErrShuttingDown
	}

	id := uuid.NewString()
	info := &attemptInfo{}
	r, err := s.intake.Begin(ctx, assessmentID,
		runner.WithClock(s.clock),
		runner.WithTimeWarning(s.config.TimeWarningSeconds),
		runner.WithLogger(s.logger.With("session_id", id)),
		runner.WithListener(s.listener(id, info)),
	)
	if err != nil {
		return nil, err
	}
	info.title = r.Assessment().Title
	info.questionCount = r.Assessment().QuestionCount()

	now := s.clock.Now()
	sess := &session{
		id:            id,
		runner:        r,
		lastSeen:      now,
		countdownEnds: now.Add(time.Duration(r.Assessment().TimeLimitSeconds()) * time.Second),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		r.Close()
		return nil, ErrShuttingDown
	}
	s.sessions[id] = sess
	s.mu.Unlock()

	if err = r.Start(ctx); err != nil {
		s.remove(id)
		r.Close()
		return nil, err
	}
	return s.view(sess), nil
}

func (s *sessionService) Get(_ context.Context, sessionID string) (*SessionView, error) {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	return s.view(sess), nil
}

func (s *sessionService) RecordAnswer(ctx context.Context, sessionID, questionID string, raw json.RawMessage) (view *SessionView, err error) {
	start := time.Now()
	defer func() {
		s.opLogger.LogOperation(ctx, "record_answer", sessionID, "session", time.Since(start), err)
	}()

	sess, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	q, _, ok := sess.runner.Assessment().Question(questionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", runner.ErrUnknownQuestion, questionID)
	}
	value, err := models.DecodeAnswer(q.Type, raw)
	if err != nil {
		return nil, ValidationErrors{{Field: "value", Message: err.Error(), Rule: "answer"}}
	}
	if err = sess.runner.RecordAnswer(questionID, value); err != nil {
		return nil, err
	}
	return s.view(sess), nil
}

func (s *sessionService) Next(_ context.Context, sessionID string) (*SessionView, error) {
	return s.navigate(sessionID, (*runner.Runner).Next)
}

func (s *sessionService) Prev(_ context.Context, sessionID string) (*SessionView, error) {
	return s.navigate(sessionID, (*runner.Runner).Prev)
}

func (s *sessionService) navigate(sessionID string, move func(*runner.Runner) (int, error)) (*SessionView, error) {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	if _, err := move(sess.runner); err != nil {
		return nil, err
	}
	return s.view(sess), nil
}

func (s *sessionService) Submit(ctx context.Context, sessionID string) (out *SubmitOutcome, err error) {
	start := time.Now()
	defer func() {
		s.opLogger.LogOperation(ctx, "submit_session", sessionID, "session", time.Since(start), err)
	}()

	sess, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	assessmentID := sess.runner.Assessment().ID
	result, err := sess.runner.Submit(ctx)
	if err != nil {
		if errors.Is(err, ErrAssessmentNotFound) {
			if cacheErr := s.intake.Invalidate(ctx, assessmentID); cacheErr != nil {
				s.logger.Warn("Failed to drop cached assessment", "assessment_id", assessmentID, "error", cacheErr)
			}
		}
		return nil, err
	}

	// Already submitted; a redirect failure only loses the link.
	redirect, urlErr := ResultsURL(s.config.ResultsBaseURL, assessmentID, result)
	if urlErr != nil {
		s.logger.Error("Failed to build results redirect", "session_id", sessionID, "error", urlErr)
	}
	return &SubmitOutcome{Result: result, Redirect: redirect}, nil
}

// Close ends the session as a page unmount would.
func (s *sessionService) Close(_ context.Context, sessionID string) error {
	sess := s.remove(sessionID)
	if sess == nil {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	sess.runner.Close()
	return nil
}

// Reap closes sessions idle for longer than the TTL, and submitted ones
// after a short grace period. An unsubmitted attempt is kept, however idle,
// while its countdown can still submit it. It returns how many were removed.
func (s *sessionService) Reap() int {
	now := s.clock.Now()

	type candidate struct {
		sess     *session
		lastSeen time.Time
	}
	var candidates []candidate
	s.mu.Lock()
	for _, sess := range s.sessions {
		idle := now.Sub(sess.lastSeen)
		if (s.config.TTL > 0 && idle >= s.config.TTL) || (isDone(sess.runner) && idle >= terminalGrace) {
			candidates = append(candidates, candidate{sess: sess, lastSeen: sess.lastSeen})
		}
	}
	s.mu.Unlock()

	var expired []*session
	for _, c := range candidates {
		if !isDone(c.sess.runner) && autoSubmitPending(c.sess, now) {
			continue
		}

		s.mu.Lock()
		current, ok := s.sessions[c.sess.id]
		if ok && current == c.sess && current.lastSeen.Equal(c.lastSeen) {
			delete(s.sessions, c.sess.id)
			expired = append(expired, c.sess)
		}
		s.mu.Unlock()
	}

	for _, sess := range expired {
		sess.runner.Close()
	}
	if len(expired) > 0 {
		s.logger.Info("Reaped sessions", "count", len(expired))
	}
	return len(expired)
}

// autoSubmitPending reports whether the runner may still submit on its own:
// the countdown has not run out yet, a submission is in flight, or an
// automatic retry is scheduled.
func autoSubmitPending(sess *session, now time.Time) bool {
	if now.Before(sess.countdownEnds.Add(terminalGrace)) {
		return true
	}
	snap := sess.runner.Snapshot()
	switch snap.Status {
	case runner.StatusSubmitting:
		return true
	case runner.StatusInProgress:
		return snap.RetryIn > 0
	default:
		return false
	}
}

// RunReaper calls Reap every interval until ctx is done.
func (s *sessionService) RunReaper(ctx context.Context, interval time.Duration) {
	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			s.Reap()
		case <-ctx.Done():
			return
		}
	}
}

// Shutdown closes every session and flushes pending events.
func (s *sessionService) Shutdown() {
	s.mu.Lock()
	s.closed = true
	all := make([]*session, 0, len(s.sessions))
	for id, sess := range s.sessions {
		all = append(all, sess)
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	for _, sess := range all {
		sess.runner.Close()
	}

	s.stopOnce.Do(func() { close(s.quit) })
	<-s.forwardDone
}

func (s *sessionService) lookup(sessionID string) (*session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	sess.lastSeen = s.clock.Now()
	return sess, nil
}

func (s *sessionService) remove(sessionID string) *session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	delete(s.sessions, sessionID)
	return sess
}

func (s *sessionService) view(sess *session) *SessionView {
	snap := sess.runner.Snapshot()
	view := &SessionView{SessionID: sess.id, Snapshot: snap}

	a := sess.runner.Assessment()
	if snap.CurrentIndex >= 0 && snap.CurrentIndex < len(a.Questions) {
		q := a.Questions[snap.CurrentIndex]
		view.CurrentQuestion = &QuestionView{ID: q.ID, Type: q.Type, Prompt: q.Prompt, Options: q.Options}
	}
	return view
}

func isDone(r *runner.Runner) bool {
	select {
	case <-r.Done():
		return true
	default:
		return false
	}
}

// listener runs on the runner goroutine, so it only hands events over.
func (s *sessionService) listener(sessionID string, info *attemptInfo) runner.Listener {
	return func(e runner.Event) {
		if s.publisher == nil {
			return
		}
		ev := toRunnerEvent(sessionID, info, e)
		if ev == nil {
			return
		}
		select {
		case s.events <- ev:
		default:
			s.logger.Warn("Dropping runner event, buffer full", "session_id", sessionID, "event_type", ev.Type)
		}
	}
}

func (s *sessionService) forward() {
	defer close(s.forwardDone)
	for {
		select {
		case ev := <-s.events:
			s.publish(ev)
		case <-s.quit:
			for {
				select {
				case ev := <-s.events:
					s.publish(ev)
				default:
					return
				}
			}
		}
	}
}

func (s *sessionService) publish(ev *events.RunnerEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := s.publisher.PublishRunnerEvent(ctx, ev); err != nil {
		s.logger.Error("Failed to publish runner event", "event_id", ev.ID, "event_type", ev.Type, "error", err)
	}
}

// toRunnerEvent maps a runner event to its published form. Events that are
// not published return nil.
func toRunnerEvent(sessionID string, info *attemptInfo, e runner.Event) *events.RunnerEvent {
	switch e.Type {
	case runner.EventStarted:
		return events.NewRunnerEvent(events.EventAttemptStarted, events.AttemptStartedEvent{
			SessionID:       sessionID,
			AssessmentID:    e.AssessmentID,
			AssessmentTitle: info.title,
			StartedAt:       e.At,
			TimeLimit:       e.Remaining,
			QuestionCount:   info.questionCount,
		})
	case runner.EventTimeWarning:
		return events.NewRunnerEvent(events.EventAttemptTimeWarning, events.AttemptTimeWarningEvent{
			SessionID:        sessionID,
			AssessmentID:     e.AssessmentID,
			SecondsRemaining: e.Remaining,
		})
	case runner.EventSubmitting:
		return events.NewRunnerEvent(events.EventAttemptSubmitting, events.AttemptSubmittingEvent{
			SessionID:     sessionID,
			AssessmentID:  e.AssessmentID,
			Trigger:       string(e.Trigger),
			TimeSpent:     e.TimeSpent,
			AnsweredCount: e.AnsweredCount,
		})
	case runner.EventSubmitted:
		data := events.AttemptSubmittedEvent{
			SessionID:    sessionID,
			AssessmentID: e.AssessmentID,
			SubmittedAt:  e.At,
			TimeSpent:    e.TimeSpent,
		}
		if e.Result != nil {
			data.Score = e.Result.Summary.Score
			data.Passed = e.Result.Summary.Passed
		}
		return events.NewRunnerEvent(events.EventAttemptSubmitted, data)
	case runner.EventSubmitFailed:
		data := events.AttemptSubmitFailedEvent{
			SessionID:        sessionID,
			AssessmentID:     e.AssessmentID,
			SecondsRemaining: e.Remaining,
			RetryIn:          e.RetryIn,
		}
		if e.Err != nil {
			data.Error = e.Err.Error()
		}
		return events.NewRunnerEvent(events.EventAttemptSubmitFailed, data)
	case runner.EventClosed:
		return events.NewRunnerEvent(events.EventAttemptClosed, events.AttemptClosedEvent{
			SessionID:    sessionID,
			AssessmentID: e.AssessmentID,
			Status:       string(e.Status),
		})
	default:
		return nil
	}
}
