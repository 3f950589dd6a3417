package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"stagequiz-service/internal/app"
	"stagequiz-service/internal/domain"
	"stagequiz-service/internal/infra/memory"
	"stagequiz-service/internal/protocol"
)

func sampleQuiz() domain.Quiz {
	return domain.Quiz{
		ID:   "quiz-1",
		Name: "Sample",
		Pages: []domain.Page{
			{
				PageType: domain.PageQuiz,
				Elements: map[string]domain.ElementRecord{
					"q1": {
						Type:       domain.ElementRichText,
						IsQuestion: true,
						LayerOrder: 1,
						Question: &domain.QuestionConfig{
							Type:          domain.QuestionRadio,
							CorrectAnswer: "Paris",
							Options:       []string{"Paris", "London"},
						},
					},
					"sw": {
						Type:       domain.ElementRichText,
						IsQuestion: true,
						LayerOrder: 2,
						Question: &domain.QuestionConfig{
							Type:             domain.QuestionStopwatch,
							TimerStartMethod: domain.TimerStartOnPlay,
						},
					},
				},
			},
			{PageType: domain.PageResult},
		},
	}
}

func newTestService() *app.SessionService {
	store := memory.NewSessionStore()
	repo := memory.NewDocumentRepository(memory.NewStaticDocumentLoader(map[string]domain.Quiz{
		"quiz-1": sampleQuiz(),
	}), 5*time.Minute)
	return app.NewSessionService(store, repo)
}

func startSession(t *testing.T, service *app.SessionService) protocol.ControlStatePayload {
	t.Helper()
	snapshot, err := service.JoinControl(context.Background(), "quiz-1")
	if err != nil {
		t.Fatalf("join control: %v", err)
	}
	return snapshot
}

func drain(ch <-chan protocol.Outbound) []protocol.Outbound {
	var out []protocol.Outbound
	for {
		select {
		case msg := <-ch:
			out = append(out, msg)
		default:
			return out
		}
	}
}

func TestJoinControlReturnsNormalizedSnapshot(t *testing.T) {
	service := newTestService()
	snapshot := startSession(t, service)

	if len(snapshot.Quiz.Pages) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(snapshot.Quiz.Pages))
	}
	page := snapshot.Quiz.Pages[0]
	for _, view := range domain.ViewNames {
		if _, ok := page.Views[view]; !ok {
			t.Fatalf("expected normalized view %q in snapshot", view)
		}
	}
	if snapshot.PageIndex != 0 || snapshot.Answers == nil || snapshot.Participants == nil {
		t.Fatalf("incomplete snapshot: %+v", snapshot)
	}
}

func TestJoinDisplayRequiresRunningSession(t *testing.T) {
	service := newTestService()
	_, err := service.JoinDisplay(context.Background(), "quiz-1")
	if !errors.Is(err, domain.ErrQuizNotRunning) {
		t.Fatalf("expected quiz not running, got %v", err)
	}

	startSession(t, service)
	if _, err := service.JoinDisplay(context.Background(), "quiz-1"); err != nil {
		t.Fatalf("join display after control: %v", err)
	}
}

func TestNavigateBroadcastsToAllIncludingControl(t *testing.T) {
	service := newTestService()
	startSession(t, service)

	controlCh, cancelControl, err := service.Subscribe(context.Background(), "quiz-1", protocol.RoleControl)
	if err != nil {
		t.Fatalf("subscribe control: %v", err)
	}
	defer cancelControl()
	displayCh, cancelDisplay, err := service.Subscribe(context.Background(), "quiz-1", protocol.RoleDisplay)
	if err != nil {
		t.Fatalf("subscribe display: %v", err)
	}
	defer cancelDisplay()

	idx, err := service.Navigate(context.Background(), "quiz-1", "next")
	if err != nil {
		t.Fatalf("navigate: %v", err)
	}
	if idx != 1 {
		t.Fatalf("expected page 1, got %d", idx)
	}

	for name, ch := range map[string]<-chan protocol.Outbound{"control": controlCh, "display": displayCh} {
		msgs := drain(ch)
		if len(msgs) != 1 || msgs[0].Type != protocol.EventPageChanged {
			t.Fatalf("%s: expected one page_changed, got %+v", name, msgs)
		}
	}

	// clamp at the last page
	if idx, _ = service.Navigate(context.Background(), "quiz-1", "next"); idx != 1 {
		t.Fatalf("expected clamp at last page, got %d", idx)
	}
	if idx, _ = service.Navigate(context.Background(), "quiz-1", "prev"); idx != 0 {
		t.Fatalf("expected back to 0, got %d", idx)
	}
}

func TestNavigateOnEmptyQuizStaysAtZero(t *testing.T) {
	store := memory.NewSessionStore()
	repo := memory.NewDocumentRepository(memory.NewStaticDocumentLoader(map[string]domain.Quiz{
		"quiz-1": {ID: "quiz-1"},
	}), time.Minute)
	service := app.NewSessionService(store, repo)
	startSession(t, service)

	ch, cancel, _ := service.Subscribe(context.Background(), "quiz-1", protocol.RoleDisplay)
	defer cancel()

	idx, err := service.Navigate(context.Background(), "quiz-1", "next")
	if err != nil || idx != 0 {
		t.Fatalf("expected index 0 on a page-less quiz, got %d err=%v", idx, err)
	}
	if msgs := drain(ch); len(msgs) != 0 {
		t.Fatalf("expected no page_changed broadcast, got %+v", msgs)
	}
}

func TestSubmitAnswerRequiresParticipant(t *testing.T) {
	service := newTestService()
	startSession(t, service)

	err := service.SubmitAnswer(context.Background(), "quiz-1", "ghost", protocol.SubmitAnswerPayload{
		QuestionID: "q1",
		Answer:     json.RawMessage(`"Paris"`),
	})
	if !errors.Is(err, domain.ErrParticipantNotFound) {
		t.Fatalf("expected participant error, got %v", err)
	}
}

func TestMarkAnswerComputesScore(t *testing.T) {
	service := newTestService()
	startSession(t, service)

	if err := service.JoinParticipant(context.Background(), "quiz-1", domain.Participant{ID: "p1", Name: "Alice"}); err != nil {
		t.Fatalf("join participant: %v", err)
	}
	if err := service.SubmitAnswer(context.Background(), "quiz-1", "p1", protocol.SubmitAnswerPayload{
		QuestionID: "q1",
		Answer:     json.RawMessage(`"Paris"`),
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	total, err := service.MarkAnswer(context.Background(), "quiz-1", protocol.MarkAnswerPayload{
		QuestionID:    "q1",
		ParticipantID: "p1",
		Correct:       true,
		BonusPoints:   5,
	})
	if err != nil {
		t.Fatalf("mark: %v", err)
	}
	if total != 6 { // 1 point default + 5 bonus
		t.Fatalf("expected total 6, got %d", total)
	}

	// unmark removes the award
	total, err = service.MarkAnswer(context.Background(), "quiz-1", protocol.MarkAnswerPayload{
		QuestionID:    "q1",
		ParticipantID: "p1",
		Correct:       false,
	})
	if err != nil || total != 0 {
		t.Fatalf("expected total 0 after unmark, got %d err=%v", total, err)
	}
}

func TestRelayIsOneWayToDisplay(t *testing.T) {
	service := newTestService()
	startSession(t, service)

	controlCh, cancelControl, _ := service.Subscribe(context.Background(), "quiz-1", protocol.RoleControl)
	defer cancelControl()
	displayCh, cancelDisplay, _ := service.Subscribe(context.Background(), "quiz-1", protocol.RoleDisplay)
	defer cancelDisplay()

	err := service.Relay("quiz-1", protocol.RoleControl, protocol.EventElementAppearance, protocol.ElementAppearancePayload{
		ElementID: "q1",
		Visible:   true,
	})
	if err != nil {
		t.Fatalf("relay: %v", err)
	}

	if msgs := drain(controlCh); len(msgs) != 0 {
		t.Fatalf("control must not receive an echo of its own toggle, got %+v", msgs)
	}
	msgs := drain(displayCh)
	if len(msgs) != 1 || msgs[0].Type != protocol.EventElementAppearance {
		t.Fatalf("display expected the toggle, got %+v", msgs)
	}
}

func TestRelayRejectsNonOwner(t *testing.T) {
	service := newTestService()
	startSession(t, service)

	err := service.Relay("quiz-1", protocol.RoleDisplay, protocol.EventAnswerVisibility, protocol.AnswerVisibilityPayload{QuestionID: "q1"})
	if !errors.Is(err, domain.ErrAccessDenied) {
		t.Fatalf("expected access denied, got %v", err)
	}
}

func TestQuestionVisibleStartsOnAppearTimerOnce(t *testing.T) {
	service := newTestService()
	startSession(t, service)

	// flip sw to on_appear via a fresh service fixture
	store := memory.NewSessionStore()
	quiz := sampleQuiz()
	rec := quiz.Pages[0].Elements["sw"]
	rec.Question.TimerStartMethod = domain.TimerStartOnAppear
	quiz.Pages[0].Elements["sw"] = rec
	repo := memory.NewDocumentRepository(memory.NewStaticDocumentLoader(map[string]domain.Quiz{"quiz-1": quiz}), time.Minute)
	service = app.NewSessionService(store, repo)
	startSession(t, service)

	ch, cancel, _ := service.Subscribe(context.Background(), "quiz-1", protocol.RoleDisplay)
	defer cancel()

	if err := service.QuestionVisible("quiz-1", "sw"); err != nil {
		t.Fatalf("question visible: %v", err)
	}
	if err := service.QuestionVisible("quiz-1", "sw"); err != nil {
		t.Fatalf("repeat notification: %v", err)
	}

	timerEvents := 0
	for _, msg := range drain(ch) {
		if msg.Type == protocol.EventStartTimer {
			timerEvents++
		}
	}
	if timerEvents != 1 {
		t.Fatalf("expected exactly one start_timer, got %d", timerEvents)
	}
}

func TestMediaPlayStartsMatchingStopwatch(t *testing.T) {
	service := newTestService()
	startSession(t, service)

	ch, cancel, _ := service.Subscribe(context.Background(), "quiz-1", protocol.RoleDisplay)
	defer cancel()

	if err := service.MediaEvent("quiz-1", "play"); err != nil {
		t.Fatalf("media event: %v", err)
	}
	msgs := drain(ch)
	if len(msgs) != 1 || msgs[0].Type != protocol.EventStartTimer {
		t.Fatalf("expected start_timer for on_play stopwatch, got %+v", msgs)
	}
	payload, ok := msgs[0].Payload.(protocol.StartTimerPayload)
	if !ok || payload.QuestionID != "sw" {
		t.Fatalf("expected sw timer, got %+v", msgs[0].Payload)
	}
}

func TestFinalizeScoresIsOneTime(t *testing.T) {
	service := newTestService()
	startSession(t, service)
	_ = service.JoinParticipant(context.Background(), "quiz-1", domain.Participant{ID: "a", Name: "A"})
	_ = service.JoinParticipant(context.Background(), "quiz-1", domain.Participant{ID: "b", Name: "B"})

	_ = service.SubmitAnswer(context.Background(), "quiz-1", "a", protocol.SubmitAnswerPayload{QuestionID: "q1", Answer: json.RawMessage(`"Paris"`)})
	_, _ = service.MarkAnswer(context.Background(), "quiz-1", protocol.MarkAnswerPayload{QuestionID: "q1", ParticipantID: "a", Correct: true, BonusPoints: 9})

	rankings, err := service.FinalizeScores("quiz-1")
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if len(rankings) != 2 || rankings[0].Name != "A" || rankings[0].Rank != 1 {
		t.Fatalf("expected A as champion, got %+v", rankings)
	}
	if rankings[1].Score > rankings[0].Score {
		t.Fatalf("expected score-descending order")
	}

	if _, err := service.FinalizeScores("quiz-1"); !errors.Is(err, domain.ErrScoresFinalized) {
		t.Fatalf("expected one-time finalize, got %v", err)
	}
}
