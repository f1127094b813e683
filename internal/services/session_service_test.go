package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/SAP-F-2025/assessment-runner/internal/cache"
	"github.com/SAP-F-2025/assessment-runner/internal/client"
	"github.com/SAP-F-2025/assessment-runner/internal/events"
	"github.com/SAP-F-2025/assessment-runner/internal/models"
	"github.com/SAP-F-2025/assessment-runner/internal/runner"
	"github.com/SAP-F-2025/assessment-runner/internal/utils"
	"github.com/SAP-F-2025/assessment-runner/internal/validator"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type sessionFixture struct {
	svc       SessionService
	clock     *clockwork.FakeClock
	endpoint  *fakeEndpoint
	publisher *events.MockEventPublisher
}

type sessionOptions struct {
	assessment *models.Assessment
	config     SessionConfig
	cache      cache.CacheService
}

func newSessionFixture(t *testing.T) *sessionFixture {
	return newSessionFixtureWith(t, sessionOptions{})
}

func newSessionFixtureWith(t *testing.T, opts sessionOptions) *sessionFixture {
	t.Helper()

	if opts.assessment == nil {
		opts.assessment = sampleAssessment()
	}
	if opts.config.TTL == 0 {
		opts.config.TTL = 30 * time.Minute
	}
	if opts.config.ResultsBaseURL == "" {
		opts.config.ResultsBaseURL = "/results"
	}

	source := &mockSource{}
	source.On("TakeAssessment", mock.Anything, opts.assessment.ID).Return(opts.assessment, nil)

	f := &sessionFixture{
		clock:     clockwork.NewFakeClock(),
		endpoint:  &fakeEndpoint{payload: json.RawMessage(`{"score":100,"passed":true}`)},
		publisher: events.NewMockEventPublisher(utils.ToSlogLogger(utils.NewNopLogger())),
	}
	opts.config.Clock = f.clock

	logger := utils.NewNopLogger()
	submitter := NewSubmissionService(f.endpoint, validator.New(), logger)
	intake := NewIntakeService(source, submitter, opts.cache, time.Minute, validator.New(), logger)

	f.svc = NewSessionService(intake, f.publisher, opts.config, logger)
	t.Cleanup(f.svc.Shutdown)
	return f
}

// runnerFor reaches the runner without touching the session's idle timer.
func (f *sessionFixture) runnerFor(t *testing.T, sessionID string) *runner.Runner {
	t.Helper()
	svc := f.svc.(*sessionService)
	svc.mu.Lock()
	defer svc.mu.Unlock()
	sess, ok := svc.sessions[sessionID]
	require.True(t, ok)
	return sess.runner
}

func TestSessionLifecycle(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	view, err := f.svc.Start(ctx, "asm-1")
	require.NoError(t, err)
	require.NotEmpty(t, view.SessionID)
	assert.Equal(t, runner.StatusInProgress, view.Snapshot.Status)
	assert.Equal(t, 60, view.Snapshot.Remaining)
	require.NotNil(t, view.CurrentQuestion)
	assert.Equal(t, "q1", view.CurrentQuestion.ID)

	id := view.SessionID

	view, err = f.svc.RecordAnswer(ctx, id, "q1", json.RawMessage(`"A"`))
	require.NoError(t, err)
	assert.Equal(t, 1, view.Snapshot.AnsweredCount())

	_, err = f.svc.Submit(ctx, id)
	assert.ErrorIs(t, err, runner.ErrNotOnLastQuestion)
	assert.True(t, IsConflict(err))

	view, err = f.svc.Next(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "q2", view.CurrentQuestion.ID)

	view, err = f.svc.Prev(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 0, view.Snapshot.CurrentIndex)
	_, err = f.svc.Next(ctx, id)
	require.NoError(t, err)

	_, err = f.svc.RecordAnswer(ctx, id, "q2", json.RawMessage(`"goroutines share memory by communicating"`))
	require.NoError(t, err)

	out, err := f.svc.Submit(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, out.Result.Summary.Score)
	assert.Equal(t, 100.0, *out.Result.Summary.Score)

	redirect, err := url.Parse(out.Redirect)
	require.NoError(t, err)
	assert.Equal(t, "/results", redirect.Path)
	assert.Equal(t, "asm-1", redirect.Query().Get("assessment_id"))
	assert.JSONEq(t, `{"score":100,"passed":true}`, redirect.Query().Get("result"))

	require.Len(t, f.endpoint.calls, 1)
	assert.Len(t, f.endpoint.calls[0].Answers, 2)

	_, err = f.svc.Submit(ctx, id)
	assert.ErrorIs(t, err, runner.ErrAlreadySubmitted)

	view, err = f.svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, runner.StatusSubmitted, view.Snapshot.Status)

	require.NoError(t, f.svc.Close(ctx, id))
	_, err = f.svc.Get(ctx, id)
	assert.True(t, IsNotFound(err))
	assert.True(t, IsNotFound(f.svc.Close(ctx, id)))
}

func TestSessionRecordAnswerRejectsBadValues(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	view, err := f.svc.Start(ctx, "asm-1")
	require.NoError(t, err)

	_, err = f.svc.RecordAnswer(ctx, view.SessionID, "q1", json.RawMessage(`["A"]`))
	assert.True(t, IsValidation(err))

	_, err = f.svc.RecordAnswer(ctx, view.SessionID, "q1", json.RawMessage(`"C"`))
	assert.True(t, IsValidation(err))

	_, err = f.svc.RecordAnswer(ctx, view.SessionID, "q7", json.RawMessage(`"A"`))
	assert.ErrorIs(t, err, runner.ErrUnknownQuestion)

	_, err = f.svc.RecordAnswer(ctx, "nope", "q1", json.RawMessage(`"A"`))
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionStartRequiresAssessmentID(t *testing.T) {
	f := newSessionFixture(t)

	_, err := f.svc.Start(context.Background(), "")
	assert.True(t, IsValidation(err))
}

func TestSessionReap(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	idle, err := f.svc.Start(ctx, "asm-1")
	require.NoError(t, err)

	done, err := f.svc.Start(ctx, "asm-1")
	require.NoError(t, err)
	_, err = f.svc.Next(ctx, done.SessionID)
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, done.SessionID)
	require.NoError(t, err)

	assert.Equal(t, 0, f.svc.Reap())

	f.clock.Advance(2 * time.Minute)
	assert.Equal(t, 1, f.svc.Reap())
	_, err = f.svc.Get(ctx, done.SessionID)
	assert.True(t, IsNotFound(err))

	// Get refreshes the idle timer.
	_, err = f.svc.Get(ctx, idle.SessionID)
	require.NoError(t, err)
	f.clock.Advance(29 * time.Minute)
	assert.Equal(t, 0, f.svc.Reap())

	f.clock.Advance(time.Minute)
	assert.Equal(t, 1, f.svc.Reap())
}

func TestSessionReapKeepsAttemptWithTimeLeft(t *testing.T) {
	long := sampleAssessment()
	long.Duration = 60
	f := newSessionFixtureWith(t, sessionOptions{assessment: long})
	ctx := context.Background()

	view, err := f.svc.Start(ctx, "asm-1")
	require.NoError(t, err)

	f.clock.Advance(31 * time.Minute)
	assert.Equal(t, 0, f.svc.Reap(), "idle past the TTL with 29 minutes still on the clock")

	view, err = f.svc.Get(ctx, view.SessionID)
	require.NoError(t, err)
	assert.Equal(t, runner.StatusInProgress, view.Snapshot.Status)
	assert.Empty(t, f.endpoint.calls)
}

func TestSessionUnattendedAttemptSubmitsOnExpiry(t *testing.T) {
	f := newSessionFixtureWith(t, sessionOptions{config: SessionConfig{TTL: 30 * time.Second}})
	ctx := context.Background()

	view, err := f.svc.Start(ctx, "asm-1")
	require.NoError(t, err)
	r := f.runnerFor(t, view.SessionID)

	for elapsed := 1; elapsed <= 60; elapsed++ {
		f.clock.Advance(time.Second)
		want := 60 - elapsed
		require.Eventually(t, func() bool { return r.Snapshot().Remaining == want }, time.Second, 5*time.Millisecond)
		if elapsed == 45 {
			assert.Equal(t, 0, f.svc.Reap(), "countdown still running")
		}
	}

	require.Eventually(t, func() bool {
		return r.Snapshot().Status == runner.StatusSubmitted
	}, time.Second, 5*time.Millisecond)
	require.Len(t, f.endpoint.calls, 1)
	assert.Equal(t, 60, f.endpoint.calls[0].TimeSpent)
	assert.Empty(t, f.endpoint.calls[0].Answers)

	f.clock.Advance(time.Minute)
	assert.Equal(t, 1, f.svc.Reap())
}

func TestSessionSubmitNotFoundDropsCachedAssessment(t *testing.T) {
	c := newRedisCache(t)
	f := newSessionFixtureWith(t, sessionOptions{cache: c})
	f.endpoint.err = fmt.Errorf("submit assessment: %w", client.ErrNotFound)
	ctx := context.Background()

	view, err := f.svc.Start(ctx, "asm-1")
	require.NoError(t, err)
	var cached models.Assessment
	require.NoError(t, c.Get(ctx, assessmentCacheKey("asm-1"), &cached))

	_, err = f.svc.Next(ctx, view.SessionID)
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, view.SessionID)
	require.ErrorIs(t, err, ErrAssessmentNotFound)

	assert.ErrorIs(t, c.Get(ctx, assessmentCacheKey("asm-1"), &cached), cache.ErrCacheMiss)
}

func TestSessionSubmitKeepsResultWhenRedirectFails(t *testing.T) {
	f := newSessionFixtureWith(t, sessionOptions{config: SessionConfig{ResultsBaseURL: "://no-scheme"}})
	ctx := context.Background()

	view, err := f.svc.Start(ctx, "asm-1")
	require.NoError(t, err)
	_, err = f.svc.Next(ctx, view.SessionID)
	require.NoError(t, err)

	outcome, err := f.svc.Submit(ctx, view.SessionID)
	require.NoError(t, err)
	require.NotNil(t, outcome.Result)
	assert.JSONEq(t, `{"score":100,"passed":true}`, string(outcome.Result.Payload))
	assert.Empty(t, outcome.Redirect)

	view, err = f.svc.Get(ctx, view.SessionID)
	require.NoError(t, err)
	assert.Equal(t, runner.StatusSubmitted, view.Snapshot.Status)
}

func TestSessionEventsArePublished(t *testing.T) {
	f := newSessionFixture(t)
	ctx := context.Background()

	view, err := f.svc.Start(ctx, "asm-1")
	require.NoError(t, err)
	_, err = f.svc.Next(ctx, view.SessionID)
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, view.SessionID)
	require.NoError(t, err)

	f.svc.Shutdown()

	var types []events.EventType
	for _, ev := range f.publisher.GetPublishedEvents() {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []events.EventType{
		events.EventAttemptStarted,
		events.EventAttemptSubmitting,
		events.EventAttemptSubmitted,
		events.EventAttemptClosed,
	}, types)

	started, ok := f.publisher.GetPublishedEvents()[0].Data.(events.AttemptStartedEvent)
	require.True(t, ok)
	assert.Equal(t, view.SessionID, started.SessionID)
	assert.Equal(t, "Backend screening", started.AssessmentTitle)
	assert.Equal(t, 2, started.QuestionCount)
	assert.Equal(t, 60, started.TimeLimit)

	_, err = f.svc.Start(ctx, "asm-1")
	assert.ErrorIs(t, err, ErrShuttingDown)
}
