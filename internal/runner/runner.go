// Package runner implements the in-progress side of taking a timed
// assessment: countdown, question navigation, answer capture and a
// single-flight submission.
//
// All state lives in one goroutine. Public methods send commands to it, so
// the submit guard and the timer lifecycle need no locks.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/SAP-F-2025/assessment-runner/internal/models"
	"github.com/SAP-F-2025/assessment-runner/internal/utils"
	"github.com/jonboulle/clockwork"
)

// Automatic resubmission after the countdown has run out backs off
// exponentially up to maxRetryDelay seconds.
const (
	maxAutoRetries = 6
	maxRetryDelay  = 30
)

// Submitter performs the one POST of a submission attempt.
type Submitter interface {
	Submit(ctx context.Context, assessmentID string, submission *models.Submission) (*models.SubmitResult, error)
}

type submitReply struct {
	result *models.SubmitResult
	err    error
}

type Runner struct {
	assessment  *models.Assessment
	submitter   Submitter
	clock       clockwork.Clock
	listener    Listener
	timeWarning int
	logger      utils.Logger

	commands  chan func(*loop)
	outcomes  chan submitReply
	done      chan struct{}
	stopped   chan struct{}
	cancel    context.CancelFunc
	closeOnce sync.Once

	// final is written by the loop right before stopped is closed.
	final Snapshot
}

// New builds a runner in the not_started state. The assessment is copied;
// later changes to the caller's value are not observed.
func New(assessment *models.Assessment, submitter Submitter, opts ...Option) (*Runner, error) {
	if assessment == nil || assessment.Duration <= 0 || assessment.QuestionCount() == 0 {
		return nil, ErrInvalidAssessment
	}
	if submitter == nil {
		return nil, errors.New("runner: submitter is required")
	}

	a := *assessment
	a.Questions = append([]models.Question(nil), assessment.Questions...)

	r := &Runner{
		assessment: &a,
		submitter:  submitter,
		clock:      clockwork.NewRealClock(),
		logger:     utils.NewNopLogger(),
		commands:   make(chan func(*loop)),
		outcomes:   make(chan submitReply, 1),
		done:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("assessment_id", a.ID)

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel

	l := &loop{
		r:  r,
		st: state{status: StatusNotStarted, answers: models.Answers{}},
	}
	go l.run(ctx)

	return r, nil
}

// Assessment returns the assessment being taken. Callers must not modify it.
func (r *Runner) Assessment() *models.Assessment {
	return r.assessment
}

// Done is closed once a submission succeeds.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

// Start moves not_started to in_progress and starts the countdown. ctx
// values are kept for the submission request but its cancellation is not.
func (r *Runner) Start(ctx context.Context) error {
	errc := make(chan error, 1)
	if err := r.do(func(l *loop) { errc <- l.start(ctx) }); err != nil {
		return err
	}
	return <-errc
}

// RecordAnswer stores value for questionID, replacing any earlier value.
func (r *Runner) RecordAnswer(questionID string, value models.AnswerValue) error {
	q, _, ok := r.assessment.Question(questionID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownQuestion, questionID)
	}
	if err := q.CheckAnswer(value); err != nil {
		return fmt.Errorf("question %s: %w", questionID, err)
	}
	if multi, ok := value.(models.MultiSelectAnswer); ok {
		value = models.MultiSelectAnswer{Options: append([]string(nil), multi.Options...)}
	}

	errc := make(chan error, 1)
	if err := r.do(func(l *loop) { errc <- l.recordAnswer(questionID, value) }); err != nil {
		return err
	}
	return <-errc
}

// Next moves to the following question, staying put on the last one.
func (r *Runner) Next() (int, error) {
	return r.move(func(current int) int { return current + 1 })
}

// Prev moves to the preceding question, staying put on the first one.
func (r *Runner) Prev() (int, error) {
	return r.move(func(current int) int { return current - 1 })
}

// GoTo jumps to index, clamped to the question range.
func (r *Runner) GoTo(index int) (int, error) {
	return r.move(func(int) int { return index })
}

func (r *Runner) move(target func(current int) int) (int, error) {
	type reply struct {
		index int
		err   error
	}
	replies := make(chan reply, 1)
	err := r.do(func(l *loop) {
		if err := l.requireInProgress(); err != nil {
			replies <- reply{l.st.current, err}
			return
		}
		l.st.current = clamp(target(l.st.current), 0, r.assessment.QuestionCount()-1)
		replies <- reply{l.st.current, nil}
	})
	if err != nil {
		return 0, err
	}
	rep := <-replies
	return rep.index, rep.err
}

// Submit sends the answers from the last question. It blocks until the
// request resolves; a concurrent call gets ErrSubmitInFlight without a
// second request being made. On failure the runner is back in progress
// and the countdown resumes from where it stopped.
func (r *Runner) Submit(ctx context.Context) (*models.SubmitResult, error) {
	waiter := make(chan submitReply, 1)
	errc := make(chan error, 1)
	if err := r.do(func(l *loop) { errc <- l.beginSubmit(TriggerManual, waiter) }); err != nil {
		return nil, err
	}
	if err := <-errc; err != nil {
		return nil, err
	}

	select {
	case reply := <-waiter:
		return reply.result, reply.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-r.stopped:
		return nil, ErrClosed
	}
}

// Snapshot returns the current state, or the final state after Close.
func (r *Runner) Snapshot() Snapshot {
	snaps := make(chan Snapshot, 1)
	if err := r.do(func(l *loop) { snaps <- l.st.snapshot(r.assessment) }); err != nil {
		return r.final
	}
	return <-snaps
}

// Close stops the countdown and the state goroutine. An in-flight
// submission is not cancelled but its outcome is discarded.
func (r *Runner) Close() {
	r.closeOnce.Do(r.cancel)
	<-r.stopped
}

func (r *Runner) do(cmd func(*loop)) error {
	select {
	case r.commands <- cmd:
		return nil
	case <-r.stopped:
		return ErrClosed
	}
}

func (r *Runner) post(ctx context.Context, submission *models.Submission) {
	result, err := r.submitter.Submit(ctx, r.assessment.ID, submission)
	if err == nil && result == nil {
		result = models.NewSubmitResult(nil)
	}
	if err != nil {
		result = nil
	}
	r.outcomes <- submitReply{result: result, err: err}
}

type loop struct {
	r         *Runner
	st        state
	ticker    clockwork.Ticker
	submitCtx context.Context
}

func (l *loop) run(ctx context.Context) {
	defer close(l.r.stopped)
	defer l.stopTicker()

	for {
		var tick <-chan time.Time
		if l.ticker != nil {
			tick = l.ticker.Chan()
		}

		select {
		case <-ctx.Done():
			l.r.final = l.st.snapshot(l.r.assessment)
			l.emit(Event{Type: EventClosed})
			return
		case cmd := <-l.r.commands:
			cmd(l)
		case <-tick:
			l.onTick()
		case out := <-l.r.outcomes:
			l.onOutcome(out)
		}
	}
}

func (l *loop) start(ctx context.Context) error {
	if l.st.status != StatusNotStarted {
		return ErrAlreadyStarted
	}

	l.submitCtx = context.WithoutCancel(ctx)
	l.st.startedAt = l.r.clock.Now()
	l.st.remaining = l.r.assessment.TimeLimitSeconds()
	l.st.status = StatusInProgress
	l.startTicker()

	l.r.logger.Debug("Attempt started", "time_limit", l.st.remaining)
	l.emit(Event{Type: EventStarted})
	return nil
}

func (l *loop) recordAnswer(questionID string, value models.AnswerValue) error {
	if err := l.requireInProgress(); err != nil {
		return err
	}
	l.st.answers[questionID] = value
	l.emit(Event{Type: EventAnswerRecorded, QuestionID: questionID, AnsweredCount: len(l.st.answers)})
	return nil
}

func (l *loop) requireInProgress() error {
	switch l.st.status {
	case StatusInProgress:
		return nil
	case StatusSubmitting:
		return ErrSubmitInFlight
	case StatusSubmitted:
		return ErrAlreadySubmitted
	default:
		return ErrNotInProgress
	}
}

func (l *loop) onTick() {
	if l.st.status != StatusInProgress {
		return
	}
	switch {
	case l.st.remaining > 0:
		l.st.remaining--
		if w := l.r.timeWarning; w > 0 && !l.st.warned && l.st.remaining > 0 && l.st.remaining <= w {
			l.st.warned = true
			l.emit(Event{Type: EventTimeWarning})
		}
		if l.st.remaining > 0 {
			return
		}
	case l.st.retryIn > 0:
		l.st.retryIn--
		if l.st.retryIn > 0 {
			return
		}
	default:
		return
	}

	if err := l.beginSubmit(TriggerExpiry, nil); err != nil {
		l.r.logger.Error("Automatic submission did not start", "error", err)
	}
}

// beginSubmit is the only way into submitting, shared by the manual and
// expiry paths.
func (l *loop) beginSubmit(trigger Trigger, waiter chan<- submitReply) error {
	if err := l.requireInProgress(); err != nil {
		return err
	}
	if trigger == TriggerManual && l.st.current != l.r.assessment.QuestionCount()-1 {
		return ErrNotOnLastQuestion
	}

	l.stopTicker()

	elapsed := l.r.clock.Now().Sub(l.st.startedAt)
	submission := &models.Submission{
		Answers:   l.st.answers.Clone(),
		TimeSpent: int(elapsed.Round(time.Second) / time.Second),
	}

	l.st.status = StatusSubmitting
	l.st.timeSpent = submission.TimeSpent
	l.st.trigger = trigger
	l.st.retryIn = 0
	l.st.waiter = waiter

	l.r.logger.Info("Submitting attempt",
		"trigger", trigger,
		"time_spent", submission.TimeSpent,
		"answered", len(submission.Answers))
	l.emit(Event{
		Type:          EventSubmitting,
		Trigger:       trigger,
		TimeSpent:     submission.TimeSpent,
		AnsweredCount: len(submission.Answers),
	})

	go l.r.post(l.submitCtx, submission)
	return nil
}

func (l *loop) onOutcome(out submitReply) {
	waiter := l.st.waiter
	l.st.waiter = nil

	if out.err != nil {
		// Resume from the current remaining value; the countdown is not
		// recomputed from the start time.
		l.st.status = StatusInProgress
		l.st.lastErr = out.err
		if l.st.remaining > 0 {
			l.startTicker()
		} else {
			l.scheduleRetry()
		}

		l.r.logger.Warn("Submission failed", "error", out.err, "remaining", l.st.remaining, "retry_in", l.st.retryIn)
		l.emit(Event{Type: EventSubmitFailed, Trigger: l.st.trigger, Err: out.err})
	} else {
		l.st.status = StatusSubmitted
		l.st.lastErr = nil
		l.st.result = out.result
		close(l.r.done)

		l.r.logger.Info("Attempt submitted", "time_spent", l.st.timeSpent)
		l.emit(Event{Type: EventSubmitted, Trigger: l.st.trigger, Result: out.result, TimeSpent: l.st.timeSpent})
	}

	if waiter != nil {
		waiter <- out
	}
}

// scheduleRetry spaces out automatic resubmission once the countdown has
// run out. After maxAutoRetries failures only a manual submit is left.
func (l *loop) scheduleRetry() {
	l.st.retries++
	if l.st.retries > maxAutoRetries {
		l.st.retryIn = 0
		l.r.logger.Error("Automatic submission abandoned", "attempts", l.st.retries)
		return
	}
	l.st.retryIn = min(1<<(l.st.retries-1), maxRetryDelay)
	l.startTicker()
}

func (l *loop) startTicker() {
	if l.ticker == nil {
		l.ticker = l.r.clock.NewTicker(time.Second)
	}
}

func (l *loop) stopTicker() {
	if l.ticker != nil {
		l.ticker.Stop()
		l.ticker = nil
	}
}

func (l *loop) emit(e Event) {
	if l.r.listener == nil {
		return
	}
	e.AssessmentID = l.r.assessment.ID
	e.At = l.r.clock.Now()
	e.Status = l.st.status
	e.Remaining = l.st.remaining
	e.RetryIn = l.st.retryIn
	l.r.listener(e)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
