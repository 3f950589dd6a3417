package domain

import "errors"

var (
	// ErrQuizNotFound indicates the quiz document could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrSessionNotFound is returned when a quiz session has not been initialized.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrQuizNotRunning is the display-side terminal condition: the session
	// does not exist and the screen should show a dedicated not-found view,
	// not a generic error notice.
	ErrQuizNotRunning = errors.New("quiz not running")
	// ErrParticipantNotFound is returned when a user acts before joining.
	ErrParticipantNotFound = errors.New("participant not found in quiz")
	// ErrQuestionNotFound indicates a submitted question ID is invalid.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrElementNotFound indicates an element id absent from the page.
	ErrElementNotFound = errors.New("element not found")
	// ErrChildElementType rejects persisting answer_input, answer_display or
	// audio_control as top-level elements; they only exist at projection time.
	ErrChildElementType = errors.New("child element types cannot be stored as top-level elements")
	// ErrAccessDenied marks the error class that should redirect the control
	// client away from the session.
	ErrAccessDenied = errors.New("access denied")
	// ErrScoresFinalized is returned when finalize is requested twice.
	ErrScoresFinalized = errors.New("scores already finalized")
)
