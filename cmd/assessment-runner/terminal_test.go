package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/SAP-F-2025/assessment-runner/internal/models"
	"github.com/SAP-F-2025/assessment-runner/internal/runner"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSubmitter struct {
	mu    sync.Mutex
	calls []*models.Submission
	errs  []error
}

func (s *stubSubmitter) Submit(_ context.Context, _ string, sub *models.Submission) (*models.SubmitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, sub)
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return nil, err
	}
	return models.NewSubmitResult(json.RawMessage(`{"score":75,"passed":true}`)), nil
}

func quiz() *models.Assessment {
	return &models.Assessment{
		ID:           "asm-cli",
		Title:        "Terminal quiz",
		Duration:     2,
		PassingScore: 60,
		Questions: []models.Question{
			{ID: "q1", Type: models.QuestionMCQ, Prompt: "Pick one", Options: []string{"alpha", "beta"}},
			{ID: "q2", Type: models.QuestionMultipleSelect, Prompt: "Pick many", Options: []string{"red", "green", "blue"}},
			{ID: "q3", Type: models.QuestionShortAnswer, Prompt: "Explain"},
		},
	}
}

func newTestRunner(t *testing.T, term *terminal, sub runner.Submitter) *runner.Runner {
	t.Helper()
	r, err := runner.New(quiz(), sub,
		runner.WithClock(clockwork.NewFakeClock()),
		runner.WithListener(term.listener()),
	)
	require.NoError(t, err)
	t.Cleanup(r.Close)
	return r
}

func TestTerminalTakesAndSubmits(t *testing.T) {
	var out bytes.Buffer
	term := newTerminal(&out)
	sub := &stubSubmitter{}
	r := newTestRunner(t, term, sub)

	input := strings.Join([]string{
		"",
		"a 2",
		"s",
		"n",
		"a 1, blue",
		"g 3",
		"a goroutines and channels",
		"s",
	}, "\n") + "\n"

	snap, err := term.run(context.Background(), r, strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, runner.StatusSubmitted, snap.Status)
	assert.Equal(t, models.ChoiceAnswer{Option: "beta"}, snap.Answers["q1"])
	assert.Equal(t, models.MultiSelectAnswer{Options: []string{"red", "blue"}}, snap.Answers["q2"])
	assert.Equal(t, models.TextAnswer{Text: "goroutines and channels"}, snap.Answers["q3"])

	sub.mu.Lock()
	assert.Len(t, sub.calls, 1)
	sub.mu.Unlock()

	text := out.String()
	assert.Contains(t, text, "Terminal quiz")
	assert.Contains(t, text, "[02:00] Question 1/3 (mcq)")
	assert.Contains(t, text, "Go to the last question to submit.")
	assert.Contains(t, text, "Score: 75")
	assert.Contains(t, text, "Result: passed")
}

func TestTerminalFailedSubmitKeepsAttemptOpen(t *testing.T) {
	var out bytes.Buffer
	term := newTerminal(&out)
	sub := &stubSubmitter{errs: []error{errors.New("backend unavailable")}}
	r := newTestRunner(t, term, sub)

	input := "\ng 3\ns\ns\n"
	snap, err := term.run(context.Background(), r, strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, runner.StatusSubmitted, snap.Status)
	assert.Contains(t, out.String(), "Submission failed, you can try again: backend unavailable")
	sub.mu.Lock()
	assert.Len(t, sub.calls, 2)
	sub.mu.Unlock()
}

func TestTerminalQuitAndClosedInput(t *testing.T) {
	term := newTerminal(&bytes.Buffer{})
	r := newTestRunner(t, term, &stubSubmitter{})
	_, err := term.run(context.Background(), r, strings.NewReader("q\n"))
	assert.ErrorIs(t, err, errQuit)
	assert.Equal(t, runner.StatusNotStarted, r.Snapshot().Status)

	term = newTerminal(&bytes.Buffer{})
	r = newTestRunner(t, term, &stubSubmitter{})
	snap, err := term.run(context.Background(), r, strings.NewReader("\na 1\n"))
	assert.ErrorIs(t, err, errInputClosed)
	assert.Equal(t, runner.StatusInProgress, snap.Status)
}

func TestParseAnswer(t *testing.T) {
	q := quiz()

	v, err := parseAnswer(&q.Questions[0], "alpha")
	require.NoError(t, err)
	assert.Equal(t, models.ChoiceAnswer{Option: "alpha"}, v)

	v, err = parseAnswer(&q.Questions[1], "3,green, 3")
	require.NoError(t, err)
	assert.Equal(t, models.MultiSelectAnswer{Options: []string{"blue", "green"}}, v)

	v, err = parseAnswer(&q.Questions[2], "2")
	require.NoError(t, err)
	assert.Equal(t, models.TextAnswer{Text: "2"}, v)
}

func TestFormatClock(t *testing.T) {
	assert.Equal(t, "00:00", formatClock(-3))
	assert.Equal(t, "01:05", formatClock(65))
	assert.Equal(t, "60:00", formatClock(3600))
}
