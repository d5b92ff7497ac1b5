package workflow

import "errors"

var (
	// ErrInvalidTransition is returned when the requested action is not legal
	// from the case's current state for the actor's role
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrInvalidState is returned when a state is not a valid workflow state
	ErrInvalidState = errors.New("invalid state")

	// ErrMissingJustification is returned when an action that requires a
	// comment or reason was invoked without one, or with one below the
	// configured minimum length
	ErrMissingJustification = errors.New("missing required justification")

	// ErrAlreadyClaimed is returned when a claim attempt lost the
	// first-claim-wins race against another reviewer's live assignment
	ErrAlreadyClaimed = errors.New("case already taken")

	// ErrConfirmationRequired is returned when an edit against a non-draft
	// case needs explicit confirmation before forking a new version
	ErrConfirmationRequired = errors.New("confirmation required before forking a new version")

	// ErrStaleVersion is returned when an action targets a version number
	// that is no longer current
	ErrStaleVersion = errors.New("stale case version")
)
