package models

import "errors"

type QuestionType string

const (
	QuestionMCQ            QuestionType = "mcq"
	QuestionMultipleSelect QuestionType = "multiple_select"
	QuestionShortAnswer    QuestionType = "short_answer"
	QuestionScenario       QuestionType = "scenario"
)

// QuestionTypes lists every question type the runner can render.
var QuestionTypes = []QuestionType{
	QuestionMCQ,
	QuestionMultipleSelect,
	QuestionShortAnswer,
	QuestionScenario,
}

func (t QuestionType) IsValid() bool {
	for _, known := range QuestionTypes {
		if t == known {
			return true
		}
	}
	return false
}

// IsChoice reports whether answers to this type must come from the option list.
func (t QuestionType) IsChoice() bool {
	return t == QuestionMCQ || t == QuestionMultipleSelect
}

// Assessment is the candidate-facing view of a timed assessment as returned by
// the take endpoint. Correct answers are never part of it.
type Assessment struct {
	ID           string     `json:"id" validate:"required"`
	Title        string     `json:"title" validate:"required,max=200"`
	Description  string     `json:"description" validate:"max=5000"`
	Duration     int        `json:"duration" validate:"gt=0,max=1440"` // minutes
	PassingScore int        `json:"passingScore" validate:"min=0,max=100"`
	Questions    []Question `json:"questions" validate:"required,min=1,dive"`
}

type Question struct {
	ID      string       `json:"id" validate:"required"`
	Type    QuestionType `json:"type" validate:"required,question_type"`
	Prompt  string       `json:"prompt" validate:"required"`
	Options []string     `json:"options,omitempty"`
}

var (
	ErrAnswerTypeMismatch = errors.New("answer does not match question type")
	ErrUnknownOption      = errors.New("answer is not one of the question options")
)

// TimeLimitSeconds is the countdown length for a fresh attempt.
func (a *Assessment) TimeLimitSeconds() int {
	return a.Duration * 60
}

func (a *Assessment) QuestionCount() int {
	return len(a.Questions)
}

// Question returns the question with the given id and its position.
func (a *Assessment) Question(id string) (*Question, int, bool) {
	for i := range a.Questions {
		if a.Questions[i].ID == id {
			return &a.Questions[i], i, true
		}
	}
	return nil, -1, false
}

// CheckAnswer verifies that value is the answer variant this question type
// expects and, for choice questions, that every selected option exists.
func (q *Question) CheckAnswer(value AnswerValue) error {
	if value == nil || value.Kind() != KindFor(q.Type) {
		return ErrAnswerTypeMismatch
	}

	switch v := value.(type) {
	case ChoiceAnswer:
		if !q.hasOption(v.Option) {
			return ErrUnknownOption
		}
	case MultiSelectAnswer:
		for _, option := range v.Options {
			if !q.hasOption(option) {
				return ErrUnknownOption
			}
		}
	case TextAnswer:
	}
	return nil
}

func (q *Question) hasOption(option string) bool {
	for _, o := range q.Options {
		if o == option {
			return true
		}
	}
	return false
}
