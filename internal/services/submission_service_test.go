package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"testing"

	"github.com/SAP-F-2025/assessment-runner/internal/client"
	"github.com/SAP-F-2025/assessment-runner/internal/models"
	"github.com/SAP-F-2025/assessment-runner/internal/utils"
	"github.com/SAP-F-2025/assessment-runner/internal/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmissionServiceSubmit(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		endpoint := &fakeEndpoint{payload: json.RawMessage(`{"score":92.5,"passed":true,"feedback":"well done"}`)}
		svc := NewSubmissionService(endpoint, validator.New(), utils.NewNopLogger())

		result, err := svc.Submit(ctx, "asm-1", &models.Submission{
			Answers:   models.Answers{"q1": models.ChoiceAnswer{Option: "A"}},
			TimeSpent: 12,
		})
		require.NoError(t, err)
		require.NotNil(t, result.Summary.Score)
		assert.Equal(t, 92.5, *result.Summary.Score)
		assert.JSONEq(t, `{"score":92.5,"passed":true,"feedback":"well done"}`, string(result.Payload))

		require.Len(t, endpoint.calls, 1)
		assert.Equal(t, 12, endpoint.calls[0].TimeSpent)
	})

	t.Run("nil answers are sent as an empty object", func(t *testing.T) {
		endpoint := &fakeEndpoint{}
		svc := NewSubmissionService(endpoint, validator.New(), utils.NewNopLogger())

		original := &models.Submission{TimeSpent: 3}
		_, err := svc.Submit(ctx, "asm-1", original)
		require.NoError(t, err)
		require.Len(t, endpoint.calls, 1)
		assert.NotNil(t, endpoint.calls[0].Answers)
		assert.Nil(t, original.Answers)
	})

	t.Run("negative time is rejected before posting", func(t *testing.T) {
		endpoint := &fakeEndpoint{}
		svc := NewSubmissionService(endpoint, validator.New(), utils.NewNopLogger())

		_, err := svc.Submit(ctx, "asm-1", &models.Submission{TimeSpent: -1})
		assert.True(t, IsValidation(err))
		assert.Empty(t, endpoint.calls)
	})

	t.Run("backend 404", func(t *testing.T) {
		endpoint := &fakeEndpoint{err: fmt.Errorf("submit assessment: %w", client.ErrNotFound)}
		svc := NewSubmissionService(endpoint, validator.New(), utils.NewNopLogger())

		_, err := svc.Submit(ctx, "gone", &models.Submission{})
		assert.ErrorIs(t, err, ErrAssessmentNotFound)
	})

	t.Run("backend failure", func(t *testing.T) {
		endpoint := &fakeEndpoint{err: &client.HTTPError{Op: "submit assessment", StatusCode: 500, Message: "scoring offline"}}
		svc := NewSubmissionService(endpoint, validator.New(), utils.NewNopLogger())

		_, err := svc.Submit(ctx, "asm-1", &models.Submission{})
		require.Error(t, err)
		assert.True(t, IsUpstream(err))
		assert.Contains(t, err.Error(), "scoring offline")
	})
}

func TestResultsURLRoundTrip(t *testing.T) {
	result := models.NewSubmitResult(json.RawMessage(`{"score":80,"passed":true,"note":"a&b=c"}`))

	raw, err := ResultsURL("https://app.example.com/results?lang=en", "asm 1", result)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "/results", u.Path)
	assert.Equal(t, "en", u.Query().Get("lang"))

	view, err := ParseResultsQuery(u.Query())
	require.NoError(t, err)
	assert.Equal(t, "asm 1", view.AssessmentID)
	assert.JSONEq(t, string(result.Payload), string(view.Result.Payload))
	require.NotNil(t, view.Result.Summary.Passed)
	assert.True(t, *view.Result.Summary.Passed)
}

func TestResultsURLWithoutPayload(t *testing.T) {
	raw, err := ResultsURL("/results", "asm-1", nil)
	require.NoError(t, err)

	u, err := url.Parse(raw)
	require.NoError(t, err)
	view, err := ParseResultsQuery(u.Query())
	require.NoError(t, err)
	assert.Equal(t, json.RawMessage("null"), view.Result.Payload)
}

func TestParseResultsQueryRejectsBadPayload(t *testing.T) {
	_, err := ParseResultsQuery(url.Values{"assessment_id": {"asm-1"}})
	assert.ErrorIs(t, err, ErrInvalidResult)

	_, err = ParseResultsQuery(url.Values{"result": {"{not json"}})
	assert.ErrorIs(t, err, ErrInvalidResult)
	assert.True(t, IsValidation(err))
}
