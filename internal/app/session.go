package app

import (
	"sort"
	"sync"
	"time"

	"stagequiz-service/internal/domain"
	"stagequiz-service/internal/protocol"
)

// Session is the server-held runtime state of one running quiz. One mutex
// serializes every mutation, so an answer submission and a page navigation
// can never interleave into a torn state.
type Session struct {
	id   string
	quiz domain.Quiz
	now  func() time.Time

	mu                sync.Mutex
	pageIndex         int
	participants      map[string]domain.Participant
	answers           domain.AnswerMap
	scores            map[string]int
	questionVisibleAt map[string]time.Time
	timerStartedAt    map[string]time.Time
	finalized         bool
	connections       int
	subscribers       map[*subscriber]struct{}
}

type subscriber struct {
	ch   chan protocol.Outbound
	role protocol.Role
}

func newSession(id string, quiz domain.Quiz) *Session {
	return newSessionWithClock(id, quiz, time.Now)
}

// newSessionWithClock allows deterministic timestamps in tests.
func newSessionWithClock(id string, quiz domain.Quiz, now func() time.Time) *Session {
	return &Session{
		id:                id,
		quiz:              domain.NormalizeQuiz(quiz),
		now:               now,
		participants:      make(map[string]domain.Participant),
		answers:           make(domain.AnswerMap),
		scores:            make(map[string]int),
		questionVisibleAt: make(map[string]time.Time),
		timerStartedAt:    make(map[string]time.Time),
		subscribers:       make(map[*subscriber]struct{}),
	}
}

// NewSession is exported for infrastructure layers that need to seed sessions.
func NewSession(id string, quiz domain.Quiz) *Session {
	return newSession(id, quiz)
}

// NewSessionWithClock is test-only for deterministic timestamps.
func NewSessionWithClock(id string, quiz domain.Quiz, now func() time.Time) *Session {
	return newSessionWithClock(id, quiz, now)
}

// Quiz returns the normalized document the session runs.
func (s *Session) Quiz() domain.Quiz {
	return s.quiz
}

// IsEmpty reports whether no client is connected to the session.
func (s *Session) IsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connections == 0
}

func (s *Session) addConnection() {
	s.mu.Lock()
	s.connections++
	s.mu.Unlock()
}

func (s *Session) dropConnection() {
	s.mu.Lock()
	if s.connections > 0 {
		s.connections--
	}
	s.mu.Unlock()
}

// subscribe registers a role-scoped event channel; the room broadcast fans
// out to every subscriber the authority table allows.
func (s *Session) subscribe(role protocol.Role) (<-chan protocol.Outbound, func()) {
	sub := &subscriber{ch: make(chan protocol.Outbound, 16), role: role}

	s.mu.Lock()
	s.subscribers[sub] = struct{}{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[sub]; ok {
			delete(s.subscribers, sub)
			close(sub.ch)
		}
		s.mu.Unlock()
	}
	return sub.ch, cancel
}

// broadcastLocked delivers one event to every subscriber whose role the
// slice's authority rule admits. Slow clients have their oldest queued
// message dropped rather than blocking the room.
func (s *Session) broadcastLocked(slice protocol.StateSlice, msg protocol.Outbound) {
	for sub := range s.subscribers {
		if !protocol.ShouldRelay(slice, sub.role) {
			continue
		}
		select {
		case sub.ch <- msg:
		default:
			select {
			case <-sub.ch:
			default:
			}
			sub.ch <- msg
		}
	}
}

func (s *Session) controlSnapshotLocked() protocol.ControlStatePayload {
	return protocol.ControlStatePayload{
		Quiz:         s.quiz,
		PageIndex:    s.pageIndex,
		Participants: copyParticipants(s.participants),
		Answers:      copyAnswers(s.answers),
		Scores:       copyScores(s.scores),
	}
}

func (s *Session) displaySnapshotLocked() protocol.DisplayStatePayload {
	return protocol.DisplayStatePayload{
		Quiz:         s.quiz,
		PageIndex:    s.pageIndex,
		Participants: copyParticipants(s.participants),
		Scores:       copyScores(s.scores),
	}
}

func (s *Session) currentPageLocked() (domain.Page, bool) {
	if s.pageIndex < 0 || s.pageIndex >= len(s.quiz.Pages) {
		return domain.Page{}, false
	}
	return s.quiz.Pages[s.pageIndex], true
}

// rankingsLocked orders participants best-first: score descending, name
// ascending on ties, with 1-based ranks.
func (s *Session) rankingsLocked() []domain.RankingEntry {
	entries := make([]domain.RankingEntry, 0, len(s.participants))
	for id, p := range s.participants {
		entries = append(entries, domain.RankingEntry{
			ParticipantID: id,
			Name:          p.Name,
			Score:         s.scores[id],
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].Name < entries[j].Name
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries
}

// recomputeScoreLocked rebuilds one participant's total from their marked
// answers: each correct answer is worth the question's points (default 1)
// plus any bonus awarded during marking.
func (s *Session) recomputeScoreLocked(participantID string) int {
	total := 0
	for questionID, byParticipant := range s.answers {
		answer, ok := byParticipant[participantID]
		if !ok || !answer.Correct {
			continue
		}
		total += questionPoints(s.quiz, questionID) + answer.BonusPoints
	}
	s.scores[participantID] = total
	return total
}

func questionPoints(quiz domain.Quiz, questionID string) int {
	for _, page := range quiz.Pages {
		if rec, ok := page.Elements[questionID]; ok && rec.Question != nil && rec.Question.Points > 0 {
			return rec.Question.Points
		}
	}
	return 1
}

func copyParticipants(in map[string]domain.Participant) map[string]domain.Participant {
	out := make(map[string]domain.Participant, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyScores(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyAnswers(in domain.AnswerMap) domain.AnswerMap {
	out := make(domain.AnswerMap, len(in))
	for q, byParticipant := range in {
		cells := make(map[string]domain.Answer, len(byParticipant))
		for p, a := range byParticipant {
			cells[p] = a
		}
		out[q] = cells
	}
	return out
}
