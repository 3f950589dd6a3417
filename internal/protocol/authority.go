package protocol

// StateSlice names one independently-owned piece of session state.
type StateSlice string

const (
	SlicePageIndex         StateSlice = "pageIndex"
	SliceScores            StateSlice = "scores"
	SliceRoster            StateSlice = "roster"
	SliceAnswers           StateSlice = "answers"
	SliceElementAppearance StateSlice = "elementAppearance"
	SliceMediaPlayback     StateSlice = "mediaPlayback"
	SliceAnswerVisibility  StateSlice = "answerVisibility"
)

// authority maps each state slice to the single role allowed to change it.
// Adding state means adding a row here, not re-deriving relay rules per
// event.
var authority = map[StateSlice]Role{
	SlicePageIndex:         RoleServer,
	SliceScores:            RoleServer,
	SliceRoster:            RoleServer,
	SliceAnswers:           RoleServer,
	SliceElementAppearance: RoleControl,
	SliceMediaPlayback:     RoleControl,
	SliceAnswerVisibility:  RoleControl,
}

// Owner returns the authoritative role for a state slice.
func Owner(slice StateSlice) Role {
	return authority[slice]
}

// SliceForEvent maps control-originated toggle events onto their slice.
func SliceForEvent(event string) (StateSlice, bool) {
	switch event {
	case EventElementAppearance:
		return SliceElementAppearance, true
	case EventMediaControl:
		return SliceMediaPlayback, true
	case EventAnswerVisibility:
		return SliceAnswerVisibility, true
	case EventPageChanged:
		return SlicePageIndex, true
	case EventScoreUpdated:
		return SliceScores, true
	}
	return "", false
}

// ShouldRelay decides whether an update to a slice reaches a target role.
// The owner never receives an echo of its own update: control-owned toggles
// flow one-way to display, while server-owned state (page index, scores)
// is broadcast to everyone, control included, so all clients converge on
// the server's value.
func ShouldRelay(slice StateSlice, target Role) bool {
	owner := Owner(slice)
	if owner == RoleServer {
		return true
	}
	return target != owner
}

// MayWrite reports whether a role is allowed to originate a change to a
// slice. Server-owned slices still accept requests (navigate, mark) from
// control, but the server computes and broadcasts the result.
func MayWrite(slice StateSlice, origin Role) bool {
	owner := Owner(slice)
	if owner == origin {
		return true
	}
	if owner == RoleServer {
		return origin == RoleControl || (slice == SliceAnswers && origin == RoleParticipant)
	}
	return false
}
