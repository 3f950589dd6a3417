package app

import (
	"context"
	"encoding/json"
	"strings"

	"stagequiz-service/internal/domain"
	"stagequiz-service/internal/protocol"
)

// SessionRepository abstracts how running sessions are stored (in-memory,
// Redis-marked, etc).
type SessionRepository interface {
	GetOrCreate(quizID string, quiz domain.Quiz) *Session
	Get(quizID string) (*Session, bool)
	DeleteIfEmpty(quizID string)
}

// QuizRepository loads quiz documents (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// SessionService contains the runtime synchronization use cases. The server
// is authoritative for page navigation, the roster, answers and scores;
// control-owned toggles pass through Relay and reach the display only.
type SessionService struct {
	sessions SessionRepository
	quizzes  QuizRepository
}

func NewSessionService(sessions SessionRepository, quizzes QuizRepository) *SessionService {
	return &SessionService{sessions: sessions, quizzes: quizzes}
}

// JoinControl starts (or re-attaches to) a session and returns the full
// snapshot the control client must treat as its sole source of truth.
func (s *SessionService) JoinControl(ctx context.Context, quizID string) (protocol.ControlStatePayload, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return protocol.ControlStatePayload{}, err
	}
	session := s.sessions.GetOrCreate(quizID, quiz)
	session.addConnection()

	session.mu.Lock()
	defer session.mu.Unlock()
	return session.controlSnapshotLocked(), nil
}

// JoinDisplay attaches a display to an already-running session. A missing
// session is the distinct "quiz not running" terminal condition, not a
// generic error.
func (s *SessionService) JoinDisplay(_ context.Context, quizID string) (protocol.DisplayStatePayload, error) {
	session, ok := s.sessions.Get(quizID)
	if !ok {
		return protocol.DisplayStatePayload{}, domain.ErrQuizNotRunning
	}
	session.addConnection()

	session.mu.Lock()
	defer session.mu.Unlock()
	return session.displaySnapshotLocked(), nil
}

// JoinParticipant adds a player to the roster and announces them to every
// client.
func (s *SessionService) JoinParticipant(_ context.Context, quizID string, p domain.Participant) error {
	session, ok := s.sessions.Get(quizID)
	if !ok {
		return domain.ErrQuizNotRunning
	}
	session.addConnection()

	session.mu.Lock()
	defer session.mu.Unlock()
	session.participants[p.ID] = p
	if _, ok := session.scores[p.ID]; !ok {
		session.scores[p.ID] = 0
	}
	session.broadcastLocked(protocol.SliceRoster, protocol.Outbound{
		Type:    protocol.EventParticipantJoined,
		Payload: protocol.ParticipantJoinedPayload{Participant: p},
	})
	return nil
}

// LeaveParticipant drops a player from the roster and announces it.
func (s *SessionService) LeaveParticipant(quizID, participantID string) {
	session, ok := s.sessions.Get(quizID)
	if !ok {
		return
	}
	session.mu.Lock()
	delete(session.participants, participantID)
	session.broadcastLocked(protocol.SliceRoster, protocol.Outbound{
		Type:    protocol.EventParticipantLeft,
		Payload: protocol.ParticipantLeftPayload{ParticipantID: participantID},
	})
	session.mu.Unlock()

	session.dropConnection()
	s.sessions.DeleteIfEmpty(quizID)
}

// Leave releases a control/display connection.
func (s *SessionService) Leave(quizID string) {
	session, ok := s.sessions.Get(quizID)
	if !ok {
		return
	}
	session.dropConnection()
	s.sessions.DeleteIfEmpty(quizID)
}

// Subscribe returns a role-scoped channel of session events. The caller
// must invoke the returned cancel function to avoid leaks.
func (s *SessionService) Subscribe(_ context.Context, quizID string, role protocol.Role) (<-chan protocol.Outbound, func(), error) {
	session, ok := s.sessions.Get(quizID)
	if !ok {
		return nil, nil, domain.ErrSessionNotFound
	}
	ch, cancel := session.subscribe(role)
	return ch, cancel, nil
}

// Navigate applies a prev/next request. The server computes the new index
// and broadcasts it to every client including the requesting control, so
// all clients converge even under duplicate or concurrent requests.
func (s *SessionService) Navigate(_ context.Context, quizID, direction string) (int, error) {
	session, ok := s.sessions.Get(quizID)
	if !ok {
		return 0, domain.ErrSessionNotFound
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	if len(session.quiz.Pages) == 0 {
		return session.pageIndex, nil
	}

	next := session.pageIndex
	switch strings.ToLower(direction) {
	case "next":
		next++
	case "prev":
		next--
	}
	if next < 0 {
		next = 0
	}
	if last := len(session.quiz.Pages) - 1; next > last {
		next = last
	}
	session.pageIndex = next

	session.broadcastLocked(protocol.SlicePageIndex, protocol.Outbound{
		Type:    protocol.EventPageChanged,
		Payload: protocol.PageChangedPayload{PageIndex: next},
	})
	return next, nil
}

// SubmitAnswer records one participant's answer cell and announces the
// single-cell update; clients redraw only the affected question.
func (s *SessionService) SubmitAnswer(_ context.Context, quizID, participantID string, payload protocol.SubmitAnswerPayload) error {
	session, ok := s.sessions.Get(quizID)
	if !ok {
		return domain.ErrSessionNotFound
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	if _, ok := session.participants[participantID]; !ok {
		return domain.ErrParticipantNotFound
	}

	answer := domain.Answer{
		Value:          payload.Answer,
		SubmissionTime: payload.SubmissionTime,
		Timestamp:      session.now(),
	}
	session.answers.Set(payload.QuestionID, participantID, answer)

	session.broadcastLocked(protocol.SliceAnswers, protocol.Outbound{
		Type: protocol.EventAnswerSubmitted,
		Payload: protocol.AnswerSubmittedPayload{
			QuestionID:    payload.QuestionID,
			ParticipantID: participantID,
			Answer:        answer,
		},
	})
	return nil
}

// MarkAnswer persists a correctness/bonus mark from the quizmaster and
// broadcasts the resulting score. The server is the authority for the
// persisted mark; control's optimistic cache accepts any later disagreement.
func (s *SessionService) MarkAnswer(_ context.Context, quizID string, mark protocol.MarkAnswerPayload) (int, error) {
	session, ok := s.sessions.Get(quizID)
	if !ok {
		return 0, domain.ErrSessionNotFound
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	answer, ok := session.answers.Cell(mark.QuestionID, mark.ParticipantID)
	if !ok {
		return 0, domain.ErrQuestionNotFound
	}
	answer.Correct = mark.Correct
	answer.BonusPoints = mark.BonusPoints
	session.answers.Set(mark.QuestionID, mark.ParticipantID, answer)

	total := session.recomputeScoreLocked(mark.ParticipantID)
	session.broadcastLocked(protocol.SliceScores, protocol.Outbound{
		Type:    protocol.EventScoreUpdated,
		Payload: protocol.ScoreUpdatedPayload{ParticipantID: mark.ParticipantID, Score: total},
	})
	return total, nil
}

// Relay forwards a control-authoritative toggle to the roles the ownership
// table admits; the origin never receives an echo of its own action. Media
// play/end events additionally start any stopwatch question configured to
// trigger on them.
func (s *SessionService) Relay(quizID string, origin protocol.Role, event string, payload any) error {
	session, ok := s.sessions.Get(quizID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	slice, ok := protocol.SliceForEvent(event)
	if !ok || !protocol.MayWrite(slice, origin) {
		return domain.ErrAccessDenied
	}

	session.mu.Lock()
	defer session.mu.Unlock()
	session.broadcastLocked(slice, protocol.Outbound{Type: event, Payload: payload})

	if event == protocol.EventMediaControl {
		if mc, ok := payload.(protocol.MediaControlPayload); ok {
			s.matchStopwatchLocked(session, mc.Action)
		}
	}
	return nil
}

// QuestionVisible records the instant a question first became visible on the
// display, for server-side timing and answer eligibility. Repeat
// notifications for the same question are ignored. A stopwatch question set
// to start on_appear starts its timer here.
func (s *SessionService) QuestionVisible(quizID, questionID string) error {
	session, ok := s.sessions.Get(quizID)
	if !ok {
		return domain.ErrSessionNotFound
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	if _, seen := session.questionVisibleAt[questionID]; seen {
		return nil
	}
	session.questionVisibleAt[questionID] = session.now()

	if rec, ok := findQuestion(session.quiz, questionID); ok &&
		domain.QuestionTypeOf(rec) == domain.QuestionStopwatch &&
		rec.Question.TimerStartMethod == domain.TimerStartOnAppear {
		s.startTimerLocked(session, questionID)
	}
	return nil
}

// StartTimer is the explicit (user-method) stopwatch start from control.
func (s *SessionService) StartTimer(quizID, questionID string) error {
	session, ok := s.sessions.Get(quizID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	session.mu.Lock()
	defer session.mu.Unlock()
	s.startTimerLocked(session, questionID)
	return nil
}

// FinalizeScores is a one-time, explicit quizmaster command: it freezes the
// scoreboard, broadcasts the final rankings and ends the quiz.
func (s *SessionService) FinalizeScores(quizID string) ([]domain.RankingEntry, error) {
	session, ok := s.sessions.Get(quizID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	if session.finalized {
		return nil, domain.ErrScoresFinalized
	}
	session.finalized = true

	rankings := session.rankingsLocked()
	session.broadcastLocked(protocol.SliceScores, protocol.Outbound{
		Type:    protocol.EventFinalScores,
		Payload: protocol.FinalScoresPayload{Rankings: rankings},
	})
	session.broadcastLocked(protocol.SliceScores, protocol.Outbound{
		Type:    protocol.EventQuizEnded,
		Payload: json.RawMessage(`{}`),
	})
	return rankings, nil
}

// MediaEvent ingests a playback report from the display (a track started or
// finished on screen) so stopwatch questions triggered by media can start.
// Unlike Relay it changes no control-owned state.
func (s *SessionService) MediaEvent(quizID, action string) error {
	session, ok := s.sessions.Get(quizID)
	if !ok {
		return domain.ErrSessionNotFound
	}
	session.mu.Lock()
	defer session.mu.Unlock()
	s.matchStopwatchLocked(session, action)
	return nil
}

// matchStopwatchLocked maps a media play/end onto the stopwatch question of
// the current page whose configured trigger matches the event.
func (s *SessionService) matchStopwatchLocked(session *Session, action string) {
	var method domain.TimerStartMethod
	switch action {
	case "play":
		method = domain.TimerStartOnPlay
	case "ended":
		method = domain.TimerStartOnEnd
	default:
		return
	}
	page, ok := session.currentPageLocked()
	if !ok {
		return
	}
	if questionID, found := domain.FindStopwatchQuestion(page, method); found {
		s.startTimerLocked(session, questionID)
	}
}

func (s *SessionService) startTimerLocked(session *Session, questionID string) {
	if _, started := session.timerStartedAt[questionID]; started {
		return
	}
	session.timerStartedAt[questionID] = session.now()
	session.broadcastLocked(protocol.SliceAnswers, protocol.Outbound{
		Type:    protocol.EventStartTimer,
		Payload: protocol.StartTimerPayload{QuestionID: questionID},
	})
}

func findQuestion(quiz domain.Quiz, questionID string) (domain.ElementRecord, bool) {
	for _, page := range quiz.Pages {
		if rec, ok := page.Elements[questionID]; ok && rec.IsQuestion {
			return rec, true
		}
	}
	return domain.ElementRecord{}, false
}
