package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleAssessment() *Assessment {
	return &Assessment{
		ID:           "asm-1",
		Title:        "Backend screening",
		Duration:     1,
		PassingScore: 70,
		Questions: []Question{
			{ID: "q1", Type: QuestionMCQ, Prompt: "Pick one", Options: []string{"A", "B"}},
			{ID: "q2", Type: QuestionMultipleSelect, Prompt: "Pick many", Options: []string{"x", "y", "z"}},
			{ID: "q3", Type: QuestionScenario, Prompt: "Describe"},
		},
	}
}

func TestKindForCoversEveryQuestionType(t *testing.T) {
	for _, qt := range QuestionTypes {
		assert.NotEmpty(t, KindFor(qt), "question type %s has no answer kind", qt)
	}
	assert.Empty(t, KindFor("essay"))
}

func TestDecodeAnswer(t *testing.T) {
	tests := []struct {
		name    string
		qt      QuestionType
		raw     string
		want    AnswerValue
		wantErr bool
	}{
		{"mcq string", QuestionMCQ, `"A"`, ChoiceAnswer{Option: "A"}, false},
		{"mcq array rejected", QuestionMCQ, `["A"]`, nil, true},
		{"multi select dedupes", QuestionMultipleSelect, `["x","y","x"]`, MultiSelectAnswer{Options: []string{"x", "y"}}, false},
		{"multi select string rejected", QuestionMultipleSelect, `"x"`, nil, true},
		{"short answer", QuestionShortAnswer, `"because"`, TextAnswer{Text: "because"}, false},
		{"scenario", QuestionScenario, `"I would page on-call"`, TextAnswer{Text: "I would page on-call"}, false},
		{"unknown type", QuestionType("essay"), `"x"`, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeAnswer(tt.qt, json.RawMessage(tt.raw))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAnswersMarshalToWireValues(t *testing.T) {
	answers := Answers{
		"q1": ChoiceAnswer{Option: "A"},
		"q2": MultiSelectAnswer{},
		"q3": TextAnswer{Text: "free text"},
	}

	body, err := json.Marshal(Submission{Answers: answers, TimeSpent: 12})
	require.NoError(t, err)
	assert.JSONEq(t, `{"answers":{"q1":"A","q2":[],"q3":"free text"},"timeSpent":12}`, string(body))
}

func TestAnswersCloneIsIndependent(t *testing.T) {
	original := Answers{"q2": MultiSelectAnswer{Options: []string{"x"}}}
	clone := original.Clone()

	clone["q1"] = ChoiceAnswer{Option: "B"}
	clone["q2"].(MultiSelectAnswer).Options[0] = "z"

	assert.Len(t, original, 1)
	assert.Equal(t, "x", original["q2"].(MultiSelectAnswer).Options[0])
	assert.NotNil(t, Answers(nil).Clone())
}

func TestQuestionCheckAnswer(t *testing.T) {
	a := sampleAssessment()
	q1, _, _ := a.Question("q1")
	q2, _, _ := a.Question("q2")
	q3, idx, ok := a.Question("q3")
	require.True(t, ok)
	assert.Equal(t, 2, idx)

	assert.NoError(t, q1.CheckAnswer(ChoiceAnswer{Option: "B"}))
	assert.ErrorIs(t, q1.CheckAnswer(ChoiceAnswer{Option: "C"}), ErrUnknownOption)
	assert.ErrorIs(t, q1.CheckAnswer(TextAnswer{Text: "A"}), ErrAnswerTypeMismatch)
	assert.NoError(t, q2.CheckAnswer(MultiSelectAnswer{Options: []string{"x", "z"}}))
	assert.ErrorIs(t, q2.CheckAnswer(MultiSelectAnswer{Options: []string{"w"}}), ErrUnknownOption)
	assert.NoError(t, q3.CheckAnswer(TextAnswer{}))
	assert.ErrorIs(t, q3.CheckAnswer(nil), ErrAnswerTypeMismatch)

	_, _, ok = a.Question("missing")
	assert.False(t, ok)
}

func TestNewSubmitResult(t *testing.T) {
	result := NewSubmitResult(json.RawMessage(`{"score":85.5,"passed":true,"extra":{"k":1}}`))
	require.NotNil(t, result.Summary.Score)
	assert.Equal(t, 85.5, *result.Summary.Score)
	require.NotNil(t, result.Summary.Passed)
	assert.True(t, *result.Summary.Passed)
	assert.Nil(t, result.Summary.TotalQuestions)

	opaque := NewSubmitResult(json.RawMessage(`"graded later"`))
	assert.Nil(t, opaque.Summary.Score)
	assert.JSONEq(t, `"graded later"`, string(opaque.Payload))

	assert.Equal(t, json.RawMessage("null"), NewSubmitResult(nil).Payload)
}
