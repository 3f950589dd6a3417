package client

import (
	"testing"
	"time"

	"stagequiz-service/internal/appearance"
	"stagequiz-service/internal/domain"
	"stagequiz-service/internal/protocol"
)

func displaySnapshot() protocol.DisplayStatePayload {
	return protocol.DisplayStatePayload{
		Quiz: domain.Quiz{
			ID: "quiz-1",
			Pages: []domain.Page{
				{PageType: domain.PageQuiz},
				{PageType: domain.PageStatus},
				{PageType: domain.PageResult},
			},
		},
		PageIndex: 0,
		Participants: map[string]domain.Participant{
			"a": {ID: "a", Name: "A"},
			"b": {ID: "b", Name: "B"},
		},
		Scores: map[string]int{"a": 10, "b": 7},
	}
}

func TestApplySnapshotThenPageChangedConverge(t *testing.T) {
	d := NewDisplayState()
	d.ApplySnapshot(displaySnapshot())
	if d.PageIndex != 0 || len(d.Participants) != 2 {
		t.Fatalf("snapshot not applied: %+v", d)
	}

	d.ApplyPageChanged(1)
	if d.PageIndex != 1 {
		t.Fatalf("expected page 1, got %d", d.PageIndex)
	}
	if len(d.Participants) != 2 || d.Scores["a"] != 10 {
		t.Fatalf("page change must not drop roster or scores")
	}

	// duplicate navigation broadcast is a no-op
	d.ApplyPageChanged(1)
	if d.PageIndex != 1 {
		t.Fatalf("expected idempotent apply, got %d", d.PageIndex)
	}
}

func TestScoreUpdateRedrawsRankingsOnStatusPage(t *testing.T) {
	d := NewDisplayState()
	d.ApplySnapshot(displaySnapshot())

	if redraw := d.ApplyScoreUpdated(protocol.ScoreUpdatedPayload{ParticipantID: "b", Score: 12}); redraw {
		t.Fatalf("quiz page must not trigger rankings redraw")
	}

	d.ApplyPageChanged(1) // status page
	if redraw := d.ApplyScoreUpdated(protocol.ScoreUpdatedPayload{ParticipantID: "a", Score: 20}); !redraw {
		t.Fatalf("status page should redraw rankings only")
	}
	if d.Scores["a"] != 20 {
		t.Fatalf("score not applied")
	}
}

func TestRankingsOrderedBestFirst(t *testing.T) {
	d := NewDisplayState()
	d.ApplySnapshot(displaySnapshot())

	rankings := d.Rankings()
	if rankings[0].Name != "A" || rankings[0].Rank != 1 {
		t.Fatalf("expected A first, got %+v", rankings[0])
	}
	if rankings[1].Name != "B" || rankings[1].Score != 7 {
		t.Fatalf("expected B second with 7, got %+v", rankings[1])
	}
}

func TestFinalScoresTerminalView(t *testing.T) {
	d := NewDisplayState()
	d.ApplySnapshot(displaySnapshot())
	d.ApplyPageChanged(2) // result page

	d.ApplyFinalScores(protocol.FinalScoresPayload{Rankings: []domain.RankingEntry{
		{Name: "A", Score: 10, Rank: 1},
		{Name: "B", Score: 7, Rank: 2},
	}})
	if !d.Ended {
		t.Fatalf("expected terminal ended state")
	}
	if d.FinalRankings[0].Name != "A" || d.FinalRankings[0].Rank != 1 {
		t.Fatalf("expected A as champion, got %+v", d.FinalRankings[0])
	}
	if d.FinalRankings[1].Score > d.FinalRankings[0].Score {
		t.Fatalf("expected score-descending order")
	}
}

func appearanceSnapshot() protocol.DisplayStatePayload {
	return protocol.DisplayStatePayload{
		Quiz: domain.Quiz{
			ID: "quiz-1",
			Pages: []domain.Page{
				{
					Elements: map[string]domain.ElementRecord{
						"title": {
							Type:       domain.ElementRichText,
							Appearance: domain.AppearanceConfig{Type: domain.AppearOnLoad, Order: 1},
						},
						"q1": {
							Type:       domain.ElementRichText,
							IsQuestion: true,
							Question:   &domain.QuestionConfig{Type: domain.QuestionRadio},
							Appearance: domain.AppearanceConfig{
								Type:         domain.AppearTimer,
								TimerTrigger: domain.TriggerLocal,
								TimerDelayMS: 2000,
								Order:        2,
							},
						},
					},
					Views: map[domain.ViewName]domain.ViewConfig{
						domain.ViewDisplay: {
							LocalElements: map[string]domain.LocalElementConfig{
								"title": {},
								"q1":    {},
							},
						},
					},
				},
				{PageType: domain.PageStatus},
			},
		},
	}
}

func TestDisplayRunsAppearanceMachinePerPage(t *testing.T) {
	d := NewDisplayState()
	sched := appearance.NewManualScheduler()
	var notified []string
	d.WireAppearance(sched, func(id string) { notified = append(notified, id) })

	d.ApplySnapshot(appearanceSnapshot())
	if !d.ElementVisible("title") {
		t.Fatalf("expected on_load element visible after apply")
	}
	if d.ElementVisible("q1") {
		t.Fatalf("q1 visible before its delay elapsed")
	}

	sched.Advance(2 * time.Second)
	if !d.ElementVisible("q1") {
		t.Fatalf("q1 not visible after its delay")
	}
	if len(notified) != 1 || notified[0] != "q1" {
		t.Fatalf("expected one question notification for q1, got %v", notified)
	}
}

func TestPageChangeStopsPendingAppearanceTimers(t *testing.T) {
	d := NewDisplayState()
	sched := appearance.NewManualScheduler()
	var notified []string
	d.WireAppearance(sched, func(id string) { notified = append(notified, id) })

	d.ApplySnapshot(appearanceSnapshot())
	d.ApplyPageChanged(1) // navigate away before the delay elapses

	sched.Advance(5 * time.Second)
	if len(notified) != 0 {
		t.Fatalf("stale timer fired after navigation, got %v", notified)
	}
	if d.ElementVisible("q1") {
		t.Fatalf("q1 belongs to the previous page")
	}
}

func TestElementAppearanceToggleDrivesMachine(t *testing.T) {
	d := NewDisplayState()
	d.WireAppearance(appearance.NewManualScheduler(), nil)

	snapshot := appearanceSnapshot()
	page := snapshot.Quiz.Pages[0]
	page.Elements["reveal"] = domain.ElementRecord{
		Type:       domain.ElementRectangle,
		Appearance: domain.AppearanceConfig{Type: domain.AppearControl, Order: 3},
	}
	page.Views[domain.ViewDisplay].LocalElements["reveal"] = domain.LocalElementConfig{}
	snapshot.Quiz.Pages[0] = page
	d.ApplySnapshot(snapshot)

	if d.ElementVisible("reveal") {
		t.Fatalf("control element must start hidden")
	}
	d.ApplyElementAppearance(protocol.ElementAppearancePayload{ElementID: "reveal", Visible: true})
	if !d.ElementVisible("reveal") {
		t.Fatalf("expected toggle to show the element")
	}
}

func TestQuizNotRunningIsDistinctTerminalState(t *testing.T) {
	d := NewDisplayState()
	d.SetNotRunning()
	if !d.NotRunning {
		t.Fatalf("expected not-running state")
	}
	if d.Ended {
		t.Fatalf("not-running must not be conflated with quiz ended")
	}
}
