package models

import (
	"encoding/json"
	"fmt"
)

// AnswerKind tags the shape of an answer value.
type AnswerKind string

const (
	KindChoice      AnswerKind = "choice"
	KindMultiSelect AnswerKind = "multi_select"
	KindText        AnswerKind = "text"
)

// KindFor maps a question type to the answer shape it accepts.
func KindFor(t QuestionType) AnswerKind {
	switch t {
	case QuestionMCQ:
		return KindChoice
	case QuestionMultipleSelect:
		return KindMultiSelect
	case QuestionShortAnswer, QuestionScenario:
		return KindText
	default:
		return ""
	}
}

// AnswerValue is one of ChoiceAnswer, MultiSelectAnswer or TextAnswer. Each
// marshals to the free-form wire value the scoring endpoint expects.
type AnswerValue interface {
	Kind() AnswerKind
	isAnswer()
}

type ChoiceAnswer struct {
	Option string
}

type MultiSelectAnswer struct {
	Options []string
}

// TextAnswer serves both short_answer and scenario questions.
type TextAnswer struct {
	Text string
}

func (ChoiceAnswer) Kind() AnswerKind      { return KindChoice }
func (MultiSelectAnswer) Kind() AnswerKind { return KindMultiSelect }
func (TextAnswer) Kind() AnswerKind        { return KindText }

func (ChoiceAnswer) isAnswer()      {}
func (MultiSelectAnswer) isAnswer() {}
func (TextAnswer) isAnswer()        {}

func (a ChoiceAnswer) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Option)
}

func (a MultiSelectAnswer) MarshalJSON() ([]byte, error) {
	options := a.Options
	if options == nil {
		options = []string{}
	}
	return json.Marshal(options)
}

func (a TextAnswer) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Text)
}

// DecodeAnswer parses a wire value into the answer variant for questionType.
func DecodeAnswer(questionType QuestionType, raw json.RawMessage) (AnswerValue, error) {
	switch KindFor(questionType) {
	case KindChoice:
		var option string
		if err := json.Unmarshal(raw, &option); err != nil {
			return nil, fmt.Errorf("%w: %s expects a single option", ErrAnswerTypeMismatch, questionType)
		}
		return ChoiceAnswer{Option: option}, nil
	case KindMultiSelect:
		var options []string
		if err := json.Unmarshal(raw, &options); err != nil {
			return nil, fmt.Errorf("%w: %s expects a list of options", ErrAnswerTypeMismatch, questionType)
		}
		return MultiSelectAnswer{Options: dedupe(options)}, nil
	case KindText:
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return nil, fmt.Errorf("%w: %s expects text", ErrAnswerTypeMismatch, questionType)
		}
		return TextAnswer{Text: text}, nil
	default:
		return nil, fmt.Errorf("unsupported question type: %s", questionType)
	}
}

func dedupe(options []string) []string {
	seen := make(map[string]bool, len(options))
	out := make([]string, 0, len(options))
	for _, o := range options {
		if seen[o] {
			continue
		}
		seen[o] = true
		out = append(out, o)
	}
	return out
}

// Answers maps question id to the latest recorded value.
type Answers map[string]AnswerValue

// Clone returns an independent copy; it never returns nil.
func (a Answers) Clone() Answers {
	out := make(Answers, len(a))
	for id, value := range a {
		if multi, ok := value.(MultiSelectAnswer); ok {
			value = MultiSelectAnswer{Options: append([]string(nil), multi.Options...)}
		}
		out[id] = value
	}
	return out
}
