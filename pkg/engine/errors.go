package engine

import "errors"

var (
	// ErrValidation is returned when required input is missing or empty.
	// Surfaced immediately to the caller, never retried.
	ErrValidation = errors.New("validation failed")

	// ErrGenerationFailed is returned when the generation backend errors or
	// finishes in an unexpected terminal status. The caller owns retry by
	// resubmission.
	ErrGenerationFailed = errors.New("generation failed")

	// ErrTimedOut is returned when a run exceeds the overall turn deadline.
	// The user turn stays recorded; only the reply is missing.
	ErrTimedOut = errors.New("turn timed out")
)
