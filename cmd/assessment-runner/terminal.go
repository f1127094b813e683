package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/SAP-F-2025/assessment-runner/internal/models"
	"github.com/SAP-F-2025/assessment-runner/internal/report"
	"github.com/SAP-F-2025/assessment-runner/internal/runner"
)

var (
	errQuit        = errors.New("attempt abandoned")
	errInputClosed = errors.New("input closed before the attempt was submitted")
)

const helpText = `Commands:
  a <answer>   answer the current question (option text or number, comma separated for multiple select)
  n            next question
  p            previous question
  g <n>        go to question n
  t            time remaining
  s            submit (last question only)
  q            quit without submitting`

// terminal drives a runner from line-oriented input.
type terminal struct {
	out     io.Writer
	notices chan runner.Event
}

func newTerminal(out io.Writer) *terminal {
	return &terminal{
		out:     out,
		notices: make(chan runner.Event, 16),
	}
}

// listener hands runner events to the input loop without blocking the runner.
func (t *terminal) listener() runner.Listener {
	return func(e runner.Event) {
		select {
		case t.notices <- e:
		default:
		}
	}
}

// run shows the intake screen, starts the attempt on the first line of input
// and processes commands until the attempt is submitted.
func (t *terminal) run(ctx context.Context, r *runner.Runner, in io.Reader) (runner.Snapshot, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- strings.TrimSpace(scanner.Text()):
			case <-ctx.Done():
				return
			}
		}
	}()

	t.intro(r.Assessment())

	select {
	case <-ctx.Done():
		return r.Snapshot(), ctx.Err()
	case line, ok := <-lines:
		if !ok {
			return r.Snapshot(), errInputClosed
		}
		if line == "q" || line == "quit" {
			return r.Snapshot(), errQuit
		}
	}

	if err := r.Start(ctx); err != nil {
		return r.Snapshot(), err
	}
	t.render(r)

	for {
		select {
		case <-ctx.Done():
			return r.Snapshot(), ctx.Err()
		case e := <-t.notices:
			t.notice(e)
		case <-r.Done():
			return t.finish(r), nil
		case line, ok := <-lines:
			if !ok {
				if submitted(r) {
					return t.finish(r), nil
				}
				return r.Snapshot(), errInputClosed
			}
			if err := t.handle(ctx, r, line); err != nil {
				return r.Snapshot(), err
			}
			if submitted(r) {
				return t.finish(r), nil
			}
		}
	}
}

func (t *terminal) handle(ctx context.Context, r *runner.Runner, line string) error {
	verb, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch verb {
	case "a", "answer":
		snap := r.Snapshot()
		q := &r.Assessment().Questions[snap.CurrentIndex]
		value, err := parseAnswer(q, arg)
		if err == nil {
			err = r.RecordAnswer(q.ID, value)
		}
		if err != nil {
			fmt.Fprintln(t.out, "Answer not recorded:", err)
			return nil
		}
		fmt.Fprintln(t.out, "Saved.")
	case "n", "next":
		_, err := r.Next()
		t.moved(r, err)
	case "p", "prev":
		_, err := r.Prev()
		t.moved(r, err)
	case "g", "goto":
		n, err := strconv.Atoi(arg)
		if err != nil {
			fmt.Fprintln(t.out, "Usage: g <question number>")
			return nil
		}
		_, err = r.GoTo(n - 1)
		t.moved(r, err)
	case "t", "time":
		fmt.Fprintln(t.out, "Time remaining:", formatClock(r.Snapshot().Remaining))
	case "s", "submit":
		fmt.Fprintln(t.out, "Submitting...")
		if _, err := r.Submit(ctx); err != nil {
			if errors.Is(err, runner.ErrNotOnLastQuestion) {
				fmt.Fprintln(t.out, "Go to the last question to submit.")
				return nil
			}
			fmt.Fprintln(t.out, "Submission failed, you can try again:", err)
		}
	case "q", "quit":
		return errQuit
	case "", "h", "help":
		fmt.Fprintln(t.out, helpText)
	default:
		fmt.Fprintf(t.out, "Unknown command %q, type h for help.\n", verb)
	}
	return nil
}

func (t *terminal) moved(r *runner.Runner, err error) {
	if err != nil {
		fmt.Fprintln(t.out, "Cannot move:", err)
		return
	}
	t.render(r)
}

func (t *terminal) intro(a *models.Assessment) {
	fmt.Fprintln(t.out, a.Title)
	if a.Description != "" {
		fmt.Fprintln(t.out, a.Description)
	}
	fmt.Fprintf(t.out, "%d questions, %d minutes, passing score %d%%\n", a.QuestionCount(), a.Duration, a.PassingScore)
	fmt.Fprintln(t.out, "Press Enter to start or q to leave.")
}

func (t *terminal) render(r *runner.Runner) {
	snap := r.Snapshot()
	q := r.Assessment().Questions[snap.CurrentIndex]

	fmt.Fprintf(t.out, "\n[%s] Question %d/%d (%s)\n", formatClock(snap.Remaining), snap.CurrentIndex+1, snap.QuestionCount, q.Type)
	fmt.Fprintln(t.out, q.Prompt)
	for i, option := range q.Options {
		fmt.Fprintf(t.out, "  %d) %s\n", i+1, option)
	}
	if answer := report.FormatAnswer(snap.Answers[q.ID]); answer != "" {
		fmt.Fprintln(t.out, "Your answer:", answer)
	}
}

func (t *terminal) notice(e runner.Event) {
	switch e.Type {
	case runner.EventTimeWarning:
		fmt.Fprintf(t.out, "\n! %s remaining\n", formatClock(e.Remaining))
	case runner.EventSubmitting:
		if e.Trigger == runner.TriggerExpiry {
			fmt.Fprintln(t.out, "\nTime is up, submitting your answers...")
		}
	case runner.EventSubmitFailed:
		if e.Trigger != runner.TriggerExpiry {
			return
		}
		if e.RetryIn > 0 {
			fmt.Fprintf(t.out, "Submission failed, retrying in %ds: %v\n", e.RetryIn, e.Err)
		} else {
			fmt.Fprintln(t.out, "Automatic submission stopped:", e.Err)
			fmt.Fprintln(t.out, "Go to the last question and submit to try again.")
		}
	}
}

func (t *terminal) finish(r *runner.Runner) runner.Snapshot {
	snap := r.Snapshot()
	fmt.Fprintf(t.out, "\nSubmitted after %s with %d/%d answered.\n", formatClock(snap.TimeSpent), snap.AnsweredCount(), snap.QuestionCount)
	if snap.Result == nil {
		return snap
	}
	summary := snap.Result.Summary
	if summary.Score != nil {
		fmt.Fprintf(t.out, "Score: %g\n", *summary.Score)
	}
	if summary.Passed != nil {
		if *summary.Passed {
			fmt.Fprintln(t.out, "Result: passed")
		} else {
			fmt.Fprintln(t.out, "Result: not passed")
		}
	}
	return snap
}

func submitted(r *runner.Runner) bool {
	select {
	case <-r.Done():
		return true
	default:
		return false
	}
}

// parseAnswer turns terminal input into an answer for q. Choice questions
// accept either the option text or its 1-based number.
func parseAnswer(q *models.Question, input string) (models.AnswerValue, error) {
	var value any = input
	switch q.Type {
	case models.QuestionMultipleSelect:
		var options []string
		for _, part := range strings.Split(input, ",") {
			if part = strings.TrimSpace(part); part != "" {
				options = append(options, resolveOption(q, part))
			}
		}
		value = options
	case models.QuestionMCQ:
		value = resolveOption(q, input)
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return models.DecodeAnswer(q.Type, raw)
}

func resolveOption(q *models.Question, input string) string {
	for _, option := range q.Options {
		if option == input {
			return input
		}
	}
	if n, err := strconv.Atoi(input); err == nil && n >= 1 && n <= len(q.Options) {
		return q.Options[n-1]
	}
	return input
}

func formatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
