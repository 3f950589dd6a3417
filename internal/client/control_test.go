package client

import (
	"encoding/json"
	"testing"

	"stagequiz-service/internal/domain"
	"stagequiz-service/internal/protocol"
)

func controlWithParticipants(ids ...string) *ControlState {
	c := NewControlState()
	snapshot := protocol.ControlStatePayload{
		Participants: make(map[string]domain.Participant),
		Answers:      make(domain.AnswerMap),
		Scores:       make(map[string]int),
	}
	for _, id := range ids {
		snapshot.Participants[id] = domain.Participant{ID: id, Name: id}
	}
	c.Reset(snapshot)
	return c
}

func TestVisibilityDefaultsAllVisibleCorrectHidden(t *testing.T) {
	c := controlWithParticipants("A", "B")
	set := c.Visibility("q1")
	if !set.Participants["A"] || !set.Participants["B"] {
		t.Fatalf("expected all participants visible by default, got %+v", set.Participants)
	}
	if set.CorrectVisible {
		t.Fatalf("expected correct answer hidden by default")
	}
}

func TestVisibilityRosterSync(t *testing.T) {
	c := controlWithParticipants("A", "B")
	c.Visibility("q1") // materialize the cached set

	c.ApplyParticipantJoined(domain.Participant{ID: "C", Name: "C"})
	set := c.Visibility("q1")
	if len(set.Participants) != 3 || !set.Participants["C"] {
		t.Fatalf("expected {A,B,C}, got %+v", set.Participants)
	}

	c.ApplyParticipantLeft("B")
	set = c.Visibility("q1")
	if len(set.Participants) != 2 || set.Participants["B"] {
		t.Fatalf("expected B dropped from the visibility set, got %+v", set.Participants)
	}
}

func TestAnswerSubmittedUpdatesSingleCell(t *testing.T) {
	c := controlWithParticipants("p1")
	dirty := c.ApplyAnswerSubmitted(protocol.AnswerSubmittedPayload{
		QuestionID:    "q1",
		ParticipantID: "p1",
		Answer:        domain.Answer{Value: json.RawMessage(`"Paris"`)},
	})
	if dirty != "q1" {
		t.Fatalf("expected q1 flagged for redraw, got %q", dirty)
	}
	cell, ok := c.Answers.Cell("q1", "p1")
	if !ok || string(cell.Value) != `"Paris"` {
		t.Fatalf("expected stored answer Paris, got %+v ok=%v", cell, ok)
	}
}

func TestMarkOptimisticNoRoundTrip(t *testing.T) {
	c := controlWithParticipants("p1")
	c.ApplyAnswerSubmitted(protocol.AnswerSubmittedPayload{
		QuestionID:    "q1",
		ParticipantID: "p1",
		Answer:        domain.Answer{Value: json.RawMessage(`"Paris"`)},
	})

	c.MarkOptimistic(protocol.MarkAnswerPayload{
		QuestionID:    "q1",
		ParticipantID: "p1",
		Correct:       true,
		BonusPoints:   5,
	})
	cell, _ := c.Answers.Cell("q1", "p1")
	if !cell.Correct || cell.BonusPoints != 5 {
		t.Fatalf("expected optimistic correct/bonus update, got %+v", cell)
	}
}

func TestToggleBuildsVisibilityPayload(t *testing.T) {
	c := controlWithParticipants("A", "B")
	payload := c.ToggleParticipant("q1", "B", false)
	if payload.QuestionID != "q1" {
		t.Fatalf("expected q1 payload, got %+v", payload)
	}
	if len(payload.VisibleIDs) != 1 || payload.VisibleIDs[0] != "A" {
		t.Fatalf("expected only A visible, got %v", payload.VisibleIDs)
	}

	payload = c.ToggleCorrect("q1", true)
	if !payload.CorrectVisible {
		t.Fatalf("expected correct answer visible")
	}
}

func TestPageChangeDestroysVisibilityState(t *testing.T) {
	c := controlWithParticipants("A")
	c.ToggleParticipant("q1", "A", false)

	c.ApplyPageChanged(1)
	if c.PageIndex != 1 {
		t.Fatalf("expected page index 1, got %d", c.PageIndex)
	}
	set := c.Visibility("q1")
	if !set.Participants["A"] {
		t.Fatalf("expected visibility rebuilt to default after navigation")
	}
}

func TestResetDiscardsPriorState(t *testing.T) {
	c := controlWithParticipants("A")
	c.ToggleCorrect("q1", true)

	c.Reset(protocol.ControlStatePayload{
		PageIndex:    2,
		Participants: map[string]domain.Participant{"Z": {ID: "Z", Name: "Zoe"}},
	})
	if c.PageIndex != 2 {
		t.Fatalf("expected snapshot page index, got %d", c.PageIndex)
	}
	if _, ok := c.Participants["A"]; ok {
		t.Fatalf("expected old roster discarded")
	}
	if c.Visibility("q1").CorrectVisible {
		t.Fatalf("expected visibility toggles discarded on reconnect")
	}
}
