package runner

import "errors"

var (
	ErrInvalidAssessment = errors.New("assessment cannot be run")
	ErrAlreadyStarted    = errors.New("attempt already started")
	ErrNotInProgress     = errors.New("attempt is not in progress")
	ErrSubmitInFlight    = errors.New("submission already in flight")
	ErrAlreadySubmitted  = errors.New("attempt already submitted")
	ErrNotOnLastQuestion = errors.New("submit is only available on the last question")
	ErrUnknownQuestion   = errors.New("question does not belong to the assessment")
	ErrClosed            = errors.New("runner closed")
)
