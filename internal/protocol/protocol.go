// Package protocol defines the wire contract between the server and the
// three client roles: event names, payload shapes, and the ownership table
// that decides which role is authoritative for each slice of runtime state.
package protocol

import (
	"encoding/json"

	"stagequiz-service/internal/domain"
)

// Role identifies one side of the protocol.
type Role string

const (
	RoleServer      Role = "server"
	RoleControl     Role = "control"
	RoleDisplay     Role = "display"
	RoleParticipant Role = "participant"
)

// Event names. Inbound (client -> server) and outbound (server -> clients)
// share one namespace.
const (
	// Snapshots delivered on join/reconnect.
	EventControlState = "control_state"
	EventDisplayState = "display_state"

	// Incremental server -> client events.
	EventPageChanged       = "page_changed"
	EventParticipantJoined = "participant_joined"
	EventParticipantLeft   = "participant_left"
	EventAnswerSubmitted   = "answer_submitted"
	EventScoreUpdated      = "score_updated"
	EventFinalScores       = "final_scores"
	EventQuizEnded         = "quiz_ended"
	EventQuizNotRunning    = "quiz_not_running"
	EventError             = "error"

	// Control-authoritative toggles, relayed one-way to display.
	EventElementAppearance = "element_appearance"
	EventMediaControl      = "media_control"
	EventAnswerVisibility  = "answer_visibility"

	// Client -> server requests.
	EventNavigate        = "navigate"
	EventMarkAnswer      = "mark_answer"
	EventSubmitAnswer    = "submit_answer"
	EventQuestionVisible = "question_visible"
	EventStartTimer      = "start_timer"
	EventFinalizeScores  = "finalize_scores"
)

// Inbound is the envelope every client message arrives in.
type Inbound struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Outbound is the envelope every server message leaves in.
type Outbound struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// ControlStatePayload is the full snapshot a control client receives on
// connect. It is the sole source of truth: the client discards all prior
// local state, including visibility toggles, when it arrives.
type ControlStatePayload struct {
	Quiz         domain.Quiz                   `json:"quiz"`
	PageIndex    int                           `json:"pageIndex"`
	Participants map[string]domain.Participant `json:"participants"`
	Answers      domain.AnswerMap              `json:"answers"`
	Scores       map[string]int                `json:"scores"`
}

// DisplayStatePayload is delivered on display join and on every page change;
// both paths run through one idempotent apply routine client-side.
type DisplayStatePayload struct {
	Quiz         domain.Quiz                   `json:"quiz"`
	PageIndex    int                           `json:"pageIndex"`
	Participants map[string]domain.Participant `json:"participants"`
	Scores       map[string]int                `json:"scores"`
}

type PageChangedPayload struct {
	PageIndex int `json:"pageIndex"`
}

type ParticipantJoinedPayload struct {
	Participant domain.Participant `json:"participant"`
}

type ParticipantLeftPayload struct {
	ParticipantID string `json:"participantId"`
}

type AnswerSubmittedPayload struct {
	QuestionID    string        `json:"questionId"`
	ParticipantID string        `json:"participantId"`
	Answer        domain.Answer `json:"answer"`
}

type ScoreUpdatedPayload struct {
	ParticipantID string `json:"participantId"`
	Score         int    `json:"score"`
}

type FinalScoresPayload struct {
	Rankings []domain.RankingEntry `json:"rankings"`
}

// ElementAppearancePayload toggles one display element's visibility.
type ElementAppearancePayload struct {
	ElementID string `json:"elementId"`
	Visible   bool   `json:"visible"`
}

// MediaControlPayload drives playback of one media element.
type MediaControlPayload struct {
	ElementID string `json:"elementId"`
	Action    string `json:"action"` // play, pause, ended
}

// AnswerVisibilityPayload mirrors a control-side visibility toggle onto the
// display overlay.
type AnswerVisibilityPayload struct {
	QuestionID     string   `json:"questionId"`
	VisibleIDs     []string `json:"visibleIds"`
	CorrectVisible bool     `json:"correctVisible"`
}

type NavigatePayload struct {
	Direction string `json:"direction"` // prev, next
}

type MarkAnswerPayload struct {
	QuestionID    string `json:"questionId"`
	ParticipantID string `json:"participantId"`
	Correct       bool   `json:"correct"`
	BonusPoints   int    `json:"bonusPoints"`
}

type SubmitAnswerPayload struct {
	QuestionID     string          `json:"questionId"`
	Answer         json.RawMessage `json:"answer"`
	SubmissionTime float64         `json:"submissionTime,omitempty"`
}

type QuestionVisiblePayload struct {
	QuestionID string `json:"questionId"`
}

type StartTimerPayload struct {
	QuestionID string `json:"questionId"`
}

// ErrorPayload is the generic protocol error. Code "access_denied" tells the
// control client to leave the session after a short delay.
type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

const CodeAccessDenied = "access_denied"
