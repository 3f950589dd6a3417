package domain

import (
	"encoding/json"
	"time"
)

// ViewName identifies one of the three rendering targets of a page.
type ViewName string

const (
	ViewDisplay     ViewName = "display"
	ViewParticipant ViewName = "participant"
	ViewControl     ViewName = "control"
)

// ViewNames lists every view a page must carry, in canonical order.
var ViewNames = []ViewName{ViewDisplay, ViewParticipant, ViewControl}

// PageType classifies what a page shows.
type PageType string

const (
	PageQuiz   PageType = "quiz_page"
	PageStatus PageType = "status_page"
	PageResult PageType = "result_page"
)

// ElementType enumerates the stored and synthesized element kinds.
type ElementType string

const (
	ElementImage     ElementType = "image"
	ElementVideo     ElementType = "video"
	ElementAudio     ElementType = "audio"
	ElementRectangle ElementType = "rectangle"
	ElementCircle    ElementType = "circle"
	ElementTriangle  ElementType = "triangle"
	ElementArrow     ElementType = "arrow"
	ElementLine      ElementType = "line"
	ElementRichText  ElementType = "richtext"

	// Synthesized at projection time, never stored top-level.
	ElementAnswerInput   ElementType = "answer_input"
	ElementAnswerDisplay ElementType = "answer_display"
	ElementAudioControl  ElementType = "audio_control"

	// Singleton control widgets.
	ElementAppearanceControl ElementType = "appearance_control"
	ElementNavigationControl ElementType = "navigation_control"
)

// IsChildType reports whether t may only exist as a synthesized child of a
// parent question or media element.
func IsChildType(t ElementType) bool {
	switch t {
	case ElementAnswerInput, ElementAnswerDisplay, ElementAudioControl:
		return true
	}
	return false
}

// IsPlayable reports whether elements of type t emit play/end media events.
func IsPlayable(t ElementType) bool {
	return t == ElementVideo || t == ElementAudio
}

// QuestionType enumerates the interactive question kinds.
type QuestionType string

const (
	QuestionText       QuestionType = "text"
	QuestionRadio      QuestionType = "radio"
	QuestionCheckbox   QuestionType = "checkbox"
	QuestionImageClick QuestionType = "image_click"
	QuestionStopwatch  QuestionType = "stopwatch"
)

// CanonicalQuestionType unifies legacy names: "image" was renamed to
// "image_click" and must be rewritten at every point a question type is read.
func CanonicalQuestionType(t QuestionType) QuestionType {
	if t == "image" {
		return QuestionImageClick
	}
	return t
}

// TimerStartMethod governs when a stopwatch question's server timer starts.
type TimerStartMethod string

const (
	TimerStartUser     TimerStartMethod = "user"
	TimerStartOnAppear TimerStartMethod = "on_appear"
	TimerStartOnPlay   TimerStartMethod = "on_play"
	TimerStartOnEnd    TimerStartMethod = "on_end"
)

// AppearanceType is the stored appearance discriminator.
type AppearanceType string

const (
	AppearOnLoad  AppearanceType = "on_load"
	AppearControl AppearanceType = "control"
	AppearTimer   AppearanceType = "timer"
)

// TimerTrigger refines AppearTimer.
type TimerTrigger string

const (
	TriggerGlobal        TimerTrigger = "global"
	TriggerLocal         TimerTrigger = "local"
	TriggerAfterPrevious TimerTrigger = "after_previous"
)

// AppearanceMode is the derived visibility behavior consumed by the
// appearance state machine. Paint order (layer_order) is a separate concern.
type AppearanceMode string

const (
	ModeOnLoad        AppearanceMode = "on_load"
	ModeControl       AppearanceMode = "control"
	ModeGlobalDelay   AppearanceMode = "global_delay"
	ModeLocalDelay    AppearanceMode = "local_delay"
	ModeAfterPrevious AppearanceMode = "after_previous"
)

// AppearanceConfig controls when an element becomes visible.
type AppearanceConfig struct {
	Type         AppearanceType `json:"appearance_type"`
	Order        int            `json:"appearance_order"`
	TimerTrigger TimerTrigger   `json:"timer_trigger,omitempty"`
	TimerDelayMS int            `json:"timer_delay,omitempty"`
}

// Mode derives the visibility behavior from type and trigger.
func (a AppearanceConfig) Mode() AppearanceMode {
	switch a.Type {
	case AppearControl:
		return ModeControl
	case AppearTimer:
		switch a.TimerTrigger {
		case TriggerGlobal:
			return ModeGlobalDelay
		case TriggerLocal:
			return ModeLocalDelay
		default:
			return ModeAfterPrevious
		}
	default:
		return ModeOnLoad
	}
}

// QuestionConfig is present only on elements flagged is_question.
type QuestionConfig struct {
	Type             QuestionType     `json:"question_type"`
	Title            string           `json:"question_title,omitempty"`
	CorrectAnswer    string           `json:"question_correct_answer,omitempty"`
	Options          []string         `json:"options,omitempty"`
	Points           int              `json:"points,omitempty"` // defaults to 1 if zero
	TimerStartMethod TimerStartMethod `json:"timer_start_method,omitempty"`
}

// ShapeProperties covers rectangle, circle, triangle, arrow and line.
type ShapeProperties struct {
	FillColor   string `json:"fill_color,omitempty"`
	BorderColor string `json:"border_color,omitempty"`
	BorderWidth int    `json:"border_width,omitempty"`
}

// MediaProperties covers image, video and audio.
type MediaProperties struct {
	Source   string `json:"media_url,omitempty"`
	Autoplay bool   `json:"autoplay,omitempty"`
	Loop     bool   `json:"loop,omitempty"`
}

// TextProperties covers richtext.
type TextProperties struct {
	Content  string `json:"content,omitempty"`
	Font     string `json:"font,omitempty"`
	FontSize int    `json:"font_size,omitempty"`
	Color    string `json:"color,omitempty"`
}

// Properties is the typed union of per-element-type attributes. At most one
// variant is set, chosen by the owning element's Type.
type Properties struct {
	Shape *ShapeProperties `json:"shape,omitempty"`
	Media *MediaProperties `json:"media,omitempty"`
	Text  *TextProperties  `json:"text,omitempty"`
}

// ElementRecord is one stored element of a page, keyed by an opaque id.
type ElementRecord struct {
	Type       ElementType      `json:"type"`
	Properties Properties       `json:"properties,omitempty"`
	Appearance AppearanceConfig `json:"appearance_config"`
	LayerOrder int              `json:"layer_order"`
	IsQuestion bool             `json:"is_question,omitempty"`
	Question   *QuestionConfig  `json:"question_config,omitempty"`
}

// Position is an absolute pixel rectangle measured from the canvas's
// top-left corner, in the coordinate space of the owning view's canvas size.
// Image-click answer coordinates are the one exception: those are stored as
// percentages of the image (0-100) to stay resolution independent.
type Position struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Rotation float64 `json:"rotation,omitempty"`
}

// LocalElementConfig positions one element within one view. Question
// elements additionally carry the nested child-widget rectangles.
type LocalElementConfig struct {
	Config        Position  `json:"config"`
	AnswerInput   *Position `json:"answer_input_config,omitempty"`
	AnswerDisplay *Position `json:"answer_display_config,omitempty"`
}

// CanvasSize is the single source of truth for a view's canvas dimensions.
type CanvasSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Background describes a view or quiz background fill.
type Background struct {
	Kind  string `json:"kind,omitempty"` // gradient, color, image
	Value string `json:"value,omitempty"`
}

// ViewConfig is the per-view slice of a page.
type ViewConfig struct {
	Background    Background                    `json:"background"`
	Size          CanvasSize                    `json:"size"`
	LocalElements map[string]LocalElementConfig `json:"local_element_configs"`
	// Control view only: position of the singleton appearance widget.
	AppearanceControlModal *Position `json:"appearance_control_modal,omitempty"`
}

// Page is one screen-step of a quiz.
type Page struct {
	PageType  PageType                 `json:"page_type"`
	PageOrder int                      `json:"page_order"`
	Elements  map[string]ElementRecord `json:"elements"`
	Views     map[ViewName]ViewConfig  `json:"views"`
}

// Quiz is the top-level authored document.
type Quiz struct {
	ID         string               `json:"id"`
	Name       string               `json:"name"`
	Pages      []Page               `json:"pages"`
	Background Background           `json:"background"`
	Zoom       map[ViewName]float64 `json:"zoom,omitempty"` // presentation-only
}

// Participant is one connected player in a running session.
type Participant struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// Answer is one participant's submission cell for one question.
type Answer struct {
	Value          json.RawMessage `json:"answer"`
	SubmissionTime float64         `json:"submission_time,omitempty"` // seconds, stopwatch questions
	Timestamp      time.Time       `json:"timestamp"`
	Correct        bool            `json:"correct"`
	BonusPoints    int             `json:"bonus_points"`
}

// AnswerMap is question-id -> participant-id -> answer.
type AnswerMap map[string]map[string]Answer

// Cell returns the answer for (questionID, participantID) if present.
func (m AnswerMap) Cell(questionID, participantID string) (Answer, bool) {
	byParticipant, ok := m[questionID]
	if !ok {
		return Answer{}, false
	}
	a, ok := byParticipant[participantID]
	return a, ok
}

// Set writes the answer cell, creating the question bucket if needed.
func (m AnswerMap) Set(questionID, participantID string, a Answer) {
	byParticipant, ok := m[questionID]
	if !ok {
		byParticipant = make(map[string]Answer)
		m[questionID] = byParticipant
	}
	byParticipant[participantID] = a
}

// RankingEntry is one row of a scoreboard, ordered best-first.
type RankingEntry struct {
	ParticipantID string `json:"participantId"`
	Name          string `json:"name"`
	Score         int    `json:"score"`
	Rank          int    `json:"rank"`
}
