package validator

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/SAP-F-2025/assessment-runner/internal/models"
	"github.com/go-playground/validator/v10"
)

// Validator combines struct tag validation with the assessment rules that
// tags cannot express.
type Validator struct {
	structValidator *validator.Validate
}

// New creates a new centralized validator instance
func New() *Validator {
	structValidator := validator.New()

	registerCustomValidators(structValidator)

	return &Validator{
		structValidator: structValidator,
	}
}

// ValidateStruct validates struct tags only and reports failures as ValidationErrors.
func (v *Validator) ValidateStruct(s interface{}) error {
	if err := v.structValidator.Struct(s); err != nil {
		if errs := ToValidationErrors(err); len(errs) > 0 {
			return errs
		}
		return err
	}
	return nil
}

// ValidateAssessment checks an assessment received from the take endpoint
// before a runner is built around it.
func (v *Validator) ValidateAssessment(a *models.Assessment) error {
	if a == nil {
		return ValidationErrors{{Field: "assessment", Message: "is required", Rule: "required"}}
	}
	if err := v.ValidateStruct(a); err != nil {
		return err
	}
	if errs := validateQuestions(a.Questions); len(errs) > 0 {
		return errs
	}
	return nil
}

// ValidateSubmission checks the body about to be posted for scoring against
// the assessment it belongs to.
func (v *Validator) ValidateSubmission(a *models.Assessment, s *models.Submission) error {
	if err := v.ValidateStruct(s); err != nil {
		return err
	}

	var errs ValidationErrors
	for id, value := range s.Answers {
		field := fmt.Sprintf("answers[%s]", id)
		q, _, ok := a.Question(id)
		if !ok {
			errs = append(errs, ValidationError{Field: field, Message: "does not belong to the assessment", Rule: "question_id"})
			continue
		}
		if err := q.CheckAnswer(value); err != nil {
			errs = append(errs, ValidationError{Field: field, Message: err.Error(), Rule: "answer"})
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateQuestions(questions []models.Question) ValidationErrors {
	var errs ValidationErrors
	seen := make(map[string]bool, len(questions))

	for i, q := range questions {
		field := fmt.Sprintf("questions[%d]", i)
		if seen[q.ID] {
			errs = append(errs, ValidationError{Field: field + ".id", Message: "must be unique", Value: q.ID, Rule: "unique"})
		}
		seen[q.ID] = true

		if !q.Type.IsChoice() {
			continue
		}
		if len(q.Options) < 2 {
			errs = append(errs, ValidationError{Field: field + ".options", Message: "must have at least 2 options", Rule: "min"})
			continue
		}
		options := make(map[string]bool, len(q.Options))
		for _, option := range q.Options {
			if strings.TrimSpace(option) == "" {
				errs = append(errs, ValidationError{Field: field + ".options", Message: "option text cannot be empty", Rule: "required"})
				break
			}
			if options[option] {
				errs = append(errs, ValidationError{Field: field + ".options", Message: "options must be unique", Value: option, Rule: "unique"})
				break
			}
			options[option] = true
		}
	}

	return errs
}

// registerCustomValidators registers all custom validation functions
func registerCustomValidators(validate *validator.Validate) {
	validate.RegisterValidation("question_type", validateQuestionType)

	// Report json names so errors line up with the wire format
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

func validateQuestionType(fl validator.FieldLevel) bool {
	return models.QuestionType(fl.Field().String()).IsValid()
}
