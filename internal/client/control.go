// Package client holds the in-memory mirrors each client role keeps of the
// session. They are plain state machines driven by inbound protocol events
// plus local user actions; the UI event loop serializes access, so no
// locking lives here.
package client

import (
	"sort"

	"stagequiz-service/internal/domain"
	"stagequiz-service/internal/protocol"
)

// VisibilitySet tracks which answers of one question the control screen
// currently shows: a set of participant ids plus the correct-answer flag.
type VisibilitySet struct {
	Participants   map[string]bool
	CorrectVisible bool
}

// ControlState is the control client's mirror. Answer visibility is
// control-private: it is never sent by the server, it is created lazily per
// question and rebuilt from scratch after navigation or reconnect.
type ControlState struct {
	Quiz         domain.Quiz
	PageIndex    int
	Participants map[string]domain.Participant
	Answers      domain.AnswerMap
	Scores       map[string]int

	visibility map[string]*VisibilitySet
}

func NewControlState() *ControlState {
	c := &ControlState{}
	c.resetVisibility()
	return c
}

// Reset replaces the whole mirror with the server's join snapshot. Any prior
// local state, including visibility toggles, is discarded.
func (c *ControlState) Reset(snapshot protocol.ControlStatePayload) {
	c.Quiz = domain.NormalizeQuiz(snapshot.Quiz)
	c.PageIndex = snapshot.PageIndex
	c.Participants = snapshot.Participants
	if c.Participants == nil {
		c.Participants = make(map[string]domain.Participant)
	}
	c.Answers = snapshot.Answers
	if c.Answers == nil {
		c.Answers = make(domain.AnswerMap)
	}
	c.Scores = snapshot.Scores
	if c.Scores == nil {
		c.Scores = make(map[string]int)
	}
	c.resetVisibility()
}

func (c *ControlState) resetVisibility() {
	c.visibility = make(map[string]*VisibilitySet)
}

// Visibility returns the question's visibility set, creating it on first
// render with every current participant visible and the correct answer
// hidden.
func (c *ControlState) Visibility(questionID string) *VisibilitySet {
	if set, ok := c.visibility[questionID]; ok {
		return set
	}
	set := &VisibilitySet{Participants: make(map[string]bool, len(c.Participants))}
	for id := range c.Participants {
		set.Participants[id] = true
	}
	c.visibility[questionID] = set
	return set
}

// ApplyParticipantJoined merges the participant into the roster and into
// every existing question's visibility set, defaulting to visible.
func (c *ControlState) ApplyParticipantJoined(p domain.Participant) {
	c.Participants[p.ID] = p
	for _, set := range c.visibility {
		set.Participants[p.ID] = true
	}
}

// ApplyParticipantLeft drops the participant from the roster and from every
// visibility set, not just the roster.
func (c *ControlState) ApplyParticipantLeft(participantID string) {
	delete(c.Participants, participantID)
	delete(c.Scores, participantID)
	for _, set := range c.visibility {
		delete(set.Participants, participantID)
	}
}

// ApplyAnswerSubmitted overwrites the single (question, participant) cell
// and returns the question id so the caller redraws only that answer
// display; a full page re-render would discard in-progress toggles.
func (c *ControlState) ApplyAnswerSubmitted(ev protocol.AnswerSubmittedPayload) (dirtyQuestionID string) {
	c.Answers.Set(ev.QuestionID, ev.ParticipantID, ev.Answer)
	return ev.QuestionID
}

// MarkOptimistic applies a correctness/bonus mark to the local cache before
// the server round-trip completes, for immediate UI feedback. Control is the
// only writer of marks, so a later server overwrite can only agree.
func (c *ControlState) MarkOptimistic(mark protocol.MarkAnswerPayload) {
	answer, ok := c.Answers.Cell(mark.QuestionID, mark.ParticipantID)
	if !ok {
		return
	}
	answer.Correct = mark.Correct
	answer.BonusPoints = mark.BonusPoints
	c.Answers.Set(mark.QuestionID, mark.ParticipantID, answer)
}

// ApplyScoreUpdated stores the server-computed score.
func (c *ControlState) ApplyScoreUpdated(ev protocol.ScoreUpdatedPayload) {
	c.Scores[ev.ParticipantID] = ev.Score
}

// ApplyPageChanged follows the server's broadcast index; control never
// increments its own page optimistically. Navigating away destroys the
// visibility state, which is rebuilt lazily on the new page.
func (c *ControlState) ApplyPageChanged(pageIndex int) {
	c.PageIndex = pageIndex
	c.resetVisibility()
}

// ToggleParticipant shows or hides one participant's answer. The local set
// is updated immediately; the caller sends the resulting payload to the
// server, and the server relays it to display only, never back here.
func (c *ControlState) ToggleParticipant(questionID, participantID string, visible bool) protocol.AnswerVisibilityPayload {
	set := c.Visibility(questionID)
	if visible {
		set.Participants[participantID] = true
	} else {
		delete(set.Participants, participantID)
	}
	return c.visibilityPayload(questionID, set)
}

// ToggleCorrect shows or hides the question's correct answer.
func (c *ControlState) ToggleCorrect(questionID string, visible bool) protocol.AnswerVisibilityPayload {
	set := c.Visibility(questionID)
	set.CorrectVisible = visible
	return c.visibilityPayload(questionID, set)
}

func (c *ControlState) visibilityPayload(questionID string, set *VisibilitySet) protocol.AnswerVisibilityPayload {
	ids := make([]string, 0, len(set.Participants))
	for id := range set.Participants {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return protocol.AnswerVisibilityPayload{
		QuestionID:     questionID,
		VisibleIDs:     ids,
		CorrectVisible: set.CorrectVisible,
	}
}
