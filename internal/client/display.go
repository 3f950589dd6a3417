package client

import (
	"sort"

	"stagequiz-service/internal/appearance"
	"stagequiz-service/internal/domain"
	"stagequiz-service/internal/protocol"
)

// DisplayState is the passive mirror the shared display screen renders
// from. Join snapshots and page-change events both run through one
// idempotent apply routine so the two paths cannot diverge. When wired
// with a scheduler it also owns the current page's appearance machine:
// applying a page stops the previous machine and starts a fresh one, so
// pending delay timers never fire onto the wrong page.
type DisplayState struct {
	Quiz         domain.Quiz
	PageIndex    int
	Participants map[string]domain.Participant
	Scores       map[string]int

	NotRunning    bool
	Ended         bool
	FinalRankings []domain.RankingEntry

	sched             appearance.Scheduler
	onQuestionVisible func(questionID string)
	machine           *appearance.Machine
}

func NewDisplayState() *DisplayState {
	return &DisplayState{
		Participants: make(map[string]domain.Participant),
		Scores:       make(map[string]int),
	}
}

// ApplySnapshot handles the display's join event.
func (d *DisplayState) ApplySnapshot(snapshot protocol.DisplayStatePayload) {
	d.Quiz = domain.NormalizeQuiz(snapshot.Quiz)
	d.applyUpdate(snapshot.PageIndex, snapshot.Participants, snapshot.Scores)
}

// ApplyPageChanged handles server navigation broadcasts through the same
// routine; nil maps mean "keep current".
func (d *DisplayState) ApplyPageChanged(pageIndex int) {
	d.applyUpdate(pageIndex, nil, nil)
}

// WireAppearance attaches the scheduler and the notifier sent as
// question_visible to the server. Must be called before the first apply.
func (d *DisplayState) WireAppearance(sched appearance.Scheduler, notify func(questionID string)) {
	d.sched = sched
	d.onQuestionVisible = notify
}

func (d *DisplayState) applyUpdate(pageIndex int, participants map[string]domain.Participant, scores map[string]int) {
	d.PageIndex = pageIndex
	if participants != nil {
		d.Participants = participants
	}
	if scores != nil {
		d.Scores = scores
	}
	if d.Participants == nil {
		d.Participants = make(map[string]domain.Participant)
	}
	if d.Scores == nil {
		d.Scores = make(map[string]int)
	}
	d.restartMachine()
}

func (d *DisplayState) restartMachine() {
	if d.machine != nil {
		d.machine.Stop()
		d.machine = nil
	}
	if d.sched == nil {
		return
	}
	page, ok := d.CurrentPage()
	if !ok {
		return
	}
	m := appearance.New(d.sched, appearance.FromPage(page))
	m.OnQuestionVisible = d.onQuestionVisible
	d.machine = m
	m.Start()
}

// ApplyElementAppearance applies a control-originated visibility toggle to
// the current page's machine.
func (d *DisplayState) ApplyElementAppearance(ev protocol.ElementAppearancePayload) {
	if d.machine != nil {
		d.machine.Toggle(ev.ElementID, ev.Visible)
	}
}

// ElementVisible reports an element's visibility on the current page.
func (d *DisplayState) ElementVisible(id string) bool {
	return d.machine != nil && d.machine.Visible(id)
}

// CurrentPage returns the page the display should render.
func (d *DisplayState) CurrentPage() (domain.Page, bool) {
	if d.PageIndex < 0 || d.PageIndex >= len(d.Quiz.Pages) {
		return domain.Page{}, false
	}
	return d.Quiz.Pages[d.PageIndex], true
}

// ApplyParticipantJoined merges one participant into the roster.
func (d *DisplayState) ApplyParticipantJoined(p domain.Participant) {
	d.Participants[p.ID] = p
}

// ApplyParticipantLeft removes one participant.
func (d *DisplayState) ApplyParticipantLeft(participantID string) {
	delete(d.Participants, participantID)
	delete(d.Scores, participantID)
}

// ApplyScoreUpdated stores the new score and reports whether the display is
// currently on a status page, in which case only the rankings podium needs
// re-rendering.
func (d *DisplayState) ApplyScoreUpdated(ev protocol.ScoreUpdatedPayload) (redrawRankings bool) {
	d.Scores[ev.ParticipantID] = ev.Score
	page, ok := d.CurrentPage()
	return ok && page.PageType == domain.PageStatus
}

// ApplyFinalScores switches the display into its terminal final-rankings
// view.
func (d *DisplayState) ApplyFinalScores(ev protocol.FinalScoresPayload) {
	d.Ended = true
	d.FinalRankings = ev.Rankings
}

// SetNotRunning marks the distinct terminal state shown when the quiz
// session does not exist; it replaces the screen with a dedicated not-found
// view rather than an alert.
func (d *DisplayState) SetNotRunning() {
	d.NotRunning = true
}

// Rankings orders the current roster best-first for status pages: score
// descending, name ascending on ties.
func (d *DisplayState) Rankings() []domain.RankingEntry {
	entries := make([]domain.RankingEntry, 0, len(d.Participants))
	for id, p := range d.Participants {
		entries = append(entries, domain.RankingEntry{
			ParticipantID: id,
			Name:          p.Name,
			Score:         d.Scores[id],
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
