package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"stagequiz-service/internal/app"
	"stagequiz-service/internal/domain"
	"stagequiz-service/internal/protocol"
)

// WSHandler wires websocket connections into the session use cases. Each
// connection is scoped to one quiz room and one role; the session fans
// events out to every connected client the authority table admits.
type WSHandler struct {
	service  *app.SessionService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.SessionService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeWS upgrades HTTP requests to websockets. Query parameters: quizId,
// role (control|display|participant), and for participants userId, name and
// avatar.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	quizID := r.URL.Query().Get("quizId")
	role := protocol.Role(r.URL.Query().Get("role"))
	if quizID == "" {
		http.Error(w, "missing quizId", http.StatusBadRequest)
		return
	}
	switch role {
	case protocol.RoleControl, protocol.RoleDisplay, protocol.RoleParticipant:
	default:
		http.Error(w, "invalid role", http.StatusBadRequest)
		return
	}

	participant := domain.Participant{
		ID:     r.URL.Query().Get("userId"),
		Name:   r.URL.Query().Get("name"),
		Avatar: r.URL.Query().Get("avatar"),
	}
	if role == protocol.RoleParticipant && (participant.ID == "" || participant.Name == "") {
		http.Error(w, "missing userId or name", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	joined, err := h.join(r.Context(), quizID, role, participant)
	if err != nil {
		_ = conn.WriteJSON(joinError(err))
		return
	}
	defer h.leave(quizID, role, participant)

	updates, cancel, err := h.service.Subscribe(r.Context(), quizID, role)
	if err != nil {
		_ = conn.WriteJSON(errorMessage(err))
		return
	}
	defer cancel()

	send := make(chan protocol.Outbound, 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- update:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	send <- joined

	for {
		var inbound protocol.Inbound
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if msg, ok := h.dispatch(quizID, role, participant.ID, inbound); ok {
			send <- msg
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

func (h *WSHandler) join(ctx context.Context, quizID string, role protocol.Role, p domain.Participant) (protocol.Outbound, error) {
	switch role {
	case protocol.RoleControl:
		snapshot, err := h.service.JoinControl(ctx, quizID)
		if err != nil {
			return protocol.Outbound{}, err
		}
		return protocol.Outbound{Type: protocol.EventControlState, Payload: snapshot}, nil
	case protocol.RoleDisplay:
		snapshot, err := h.service.JoinDisplay(ctx, quizID)
		if err != nil {
			return protocol.Outbound{}, err
		}
		return protocol.Outbound{Type: protocol.EventDisplayState, Payload: snapshot}, nil
	default:
		if err := h.service.JoinParticipant(ctx, quizID, p); err != nil {
			return protocol.Outbound{}, err
		}
		return protocol.Outbound{
			Type:    protocol.EventParticipantJoined,
			Payload: protocol.ParticipantJoinedPayload{Participant: p},
		}, nil
	}
}

func (h *WSHandler) leave(quizID string, role protocol.Role, p domain.Participant) {
	if role == protocol.RoleParticipant {
		h.service.LeaveParticipant(quizID, p.ID)
		return
	}
	h.service.Leave(quizID)
}

// dispatch routes one inbound message. The returned message, if any, is a
// direct reply to the sender; room-wide effects travel through the session
// broadcast instead.
func (h *WSHandler) dispatch(quizID string, role protocol.Role, participantID string, inbound protocol.Inbound) (protocol.Outbound, bool) {
	switch inbound.Type {
	case protocol.EventNavigate:
		if role != protocol.RoleControl {
			return accessDenied(), true
		}
		var payload protocol.NavigatePayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return invalidPayload(inbound.Type), true
		}
		if _, err := h.service.Navigate(context.Background(), quizID, payload.Direction); err != nil {
			return errorMessage(err), true
		}
		return protocol.Outbound{}, false

	case protocol.EventMarkAnswer:
		if role != protocol.RoleControl {
			return accessDenied(), true
		}
		var payload protocol.MarkAnswerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return invalidPayload(inbound.Type), true
		}
		if _, err := h.service.MarkAnswer(context.Background(), quizID, payload); err != nil {
			return errorMessage(err), true
		}
		return protocol.Outbound{}, false

	case protocol.EventFinalizeScores:
		if role != protocol.RoleControl {
			return accessDenied(), true
		}
		if _, err := h.service.FinalizeScores(quizID); err != nil {
			return errorMessage(err), true
		}
		return protocol.Outbound{}, false

	case protocol.EventStartTimer:
		if role != protocol.RoleControl {
			return accessDenied(), true
		}
		var payload protocol.StartTimerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return invalidPayload(inbound.Type), true
		}
		if err := h.service.StartTimer(quizID, payload.QuestionID); err != nil {
			return errorMessage(err), true
		}
		return protocol.Outbound{}, false

	case protocol.EventElementAppearance:
		var payload protocol.ElementAppearancePayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return invalidPayload(inbound.Type), true
		}
		return h.relay(quizID, role, inbound.Type, payload)

	case protocol.EventAnswerVisibility:
		var payload protocol.AnswerVisibilityPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return invalidPayload(inbound.Type), true
		}
		return h.relay(quizID, role, inbound.Type, payload)

	case protocol.EventMediaControl:
		var payload protocol.MediaControlPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return invalidPayload(inbound.Type), true
		}
		if role == protocol.RoleDisplay {
			// The display only reports playback state; it may not drive it.
			if err := h.service.MediaEvent(quizID, payload.Action); err != nil {
				return errorMessage(err), true
			}
			return protocol.Outbound{}, false
		}
		return h.relay(quizID, role, inbound.Type, payload)

	case protocol.EventQuestionVisible:
		if role != protocol.RoleDisplay {
			return accessDenied(), true
		}
		var payload protocol.QuestionVisiblePayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return invalidPayload(inbound.Type), true
		}
		if err := h.service.QuestionVisible(quizID, payload.QuestionID); err != nil {
			return errorMessage(err), true
		}
		return protocol.Outbound{}, false

	case protocol.EventSubmitAnswer:
		if role != protocol.RoleParticipant {
			return accessDenied(), true
		}
		var payload protocol.SubmitAnswerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return invalidPayload(inbound.Type), true
		}
		if err := h.service.SubmitAnswer(context.Background(), quizID, participantID, payload); err != nil {
			return errorMessage(err), true
		}
		return protocol.Outbound{}, false

	default:
		return protocol.Outbound{
			Type:    protocol.EventError,
			Payload: protocol.ErrorPayload{Message: "unsupported message type"},
		}, true
	}
}

func (h *WSHandler) relay(quizID string, role protocol.Role, event string, payload any) (protocol.Outbound, bool) {
	if err := h.service.Relay(quizID, role, event, payload); err != nil {
		if errors.Is(err, domain.ErrAccessDenied) {
			return accessDenied(), true
		}
		return errorMessage(err), true
	}
	return protocol.Outbound{}, false
}

func joinError(err error) protocol.Outbound {
	if errors.Is(err, domain.ErrQuizNotRunning) {
		return protocol.Outbound{
			Type:    protocol.EventQuizNotRunning,
			Payload: protocol.ErrorPayload{Message: err.Error()},
		}
	}
	return errorMessage(err)
}

func errorMessage(err error) protocol.Outbound {
	return protocol.Outbound{
		Type:    protocol.EventError,
		Payload: protocol.ErrorPayload{Message: err.Error()},
	}
}

func accessDenied() protocol.Outbound {
	return protocol.Outbound{
		Type: protocol.EventError,
		Payload: protocol.ErrorPayload{
			Message: domain.ErrAccessDenied.Error(),
			Code:    protocol.CodeAccessDenied,
		},
	}
}
