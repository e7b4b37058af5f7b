package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/quizmind/internal/auth"
	"github.com/gokatarajesh/quizmind/internal/result"
	"github.com/gokatarajesh/quizmind/internal/session"
	httperrors "github.com/gokatarajesh/quizmind/pkg/http/errors"
	ws "github.com/gokatarajesh/quizmind/pkg/http/ws"
)

// WSHandler streams a quiz session over a WebSocket and accepts player actions.
type WSHandler struct {
	service  *Service
	hub      *ws.Hub
	upgrader *websocket.Upgrader
	logger   zerolog.Logger
}

// NewWSHandler creates the quiz WebSocket handler.
func NewWSHandler(service *Service, hub *ws.Hub, allowedOrigins []string, logger zerolog.Logger) *WSHandler {
	return &WSHandler{
		service:  service,
		hub:      hub,
		upgrader: ws.NewUpgrader(allowedOrigins),
		logger:   logger.With().Str("component", "quiz_ws").Logger(),
	}
}

// HandleWebSocket handles GET /ws/quizzes?session_id=...
func (h *WSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(r.URL.Query().Get("session_id"))
	if err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidSessionID, "Invalid session ID")
		return
	}

	identity := auth.IdentityFromContext(r.Context())
	snap, _, err := h.service.State(r.Context(), sessionID, identity)
	if err != nil {
		status, code, message := errorCode(err)
		httperrors.RespondError(w, status, code, message)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	wsConn := ws.NewConnection(conn, h.logger)
	h.hub.Register(wsConn)
	h.hub.JoinSession(sessionID, wsConn.ID())

	go wsConn.WritePump()
	h.send(wsConn.ID(), ws.TypeSessionState, statePayload(snap), "")
	if snap.State == session.StateInProgress && snap.Current != nil && !snap.Answered {
		h.send(wsConn.ID(), ws.TypeQuestion, questionPayload(sessionID.String(), snap.Current, snap.Total, snap.Remaining), "")
	}

	wsConn.ReadPump(func(msg ws.Message) error {
		return h.handleMessage(context.Background(), wsConn.ID(), sessionID, identity, msg)
	})

	h.hub.Unregister(wsConn.ID())
}

func (h *WSHandler) handleMessage(ctx context.Context, connID, sessionID uuid.UUID, identity *result.Identity, msg ws.Message) error {
	switch msg.Type {
	case ws.TypeSelectAnswer:
		var req ws.SelectAnswerPayload
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			return h.sendError(connID, msg.RequestID, httperrors.ErrCodeInvalidPayload, "Invalid select_answer payload")
		}
		// The ack itself is broadcast by the session listener; rejected answers are dropped.
		_, err := h.service.Answer(ctx, sessionID, identity, req.OptionIndex)
		if err != nil && !errors.Is(err, session.ErrAnswerRejected) {
			return h.sendServiceError(connID, msg.RequestID, err)
		}
		return nil
	case ws.TypeAdvance:
		// Question and completion messages are broadcast by the session listener.
		if _, _, err := h.service.Advance(ctx, sessionID, identity); err != nil {
			return h.sendServiceError(connID, msg.RequestID, err)
		}
		return nil
	case ws.TypeRequestState:
		return h.sendState(ctx, connID, sessionID, identity, msg.RequestID)
	case ws.TypePing:
		return h.send(connID, ws.TypePong, struct{}{}, msg.RequestID)
	default:
		return h.sendError(connID, msg.RequestID, httperrors.ErrCodeUnknownMessageType, fmt.Sprintf("Unknown message type: %s", msg.Type))
	}
}

func (h *WSHandler) sendState(ctx context.Context, connID, sessionID uuid.UUID, identity *result.Identity, requestID string) error {
	snap, _, err := h.service.State(ctx, sessionID, identity)
	if err != nil {
		return h.sendServiceError(connID, requestID, err)
	}
	return h.send(connID, ws.TypeSessionState, statePayload(snap), requestID)
}

func statePayload(snap session.Snapshot) ws.SessionStatePayload {
	return ws.SessionStatePayload{
		SessionID:        snap.ID.String(),
		State:            string(snap.State),
		Index:            snap.Index,
		Total:            snap.Total,
		Score:            snap.Score,
		RemainingSeconds: snap.Remaining,
		Answered:         snap.Answered,
	}
}

func (h *WSHandler) sendServiceError(connID uuid.UUID, requestID string, err error) error {
	_, code, message := errorCode(err)
	return h.sendError(connID, requestID, code, message)
}

func (h *WSHandler) sendError(connID uuid.UUID, requestID, code, message string) error {
	return h.send(connID, ws.TypeError, ws.ErrorPayload{Code: code, Message: message}, requestID)
}

func (h *WSHandler) send(connID uuid.UUID, msgType string, payload interface{}, requestID string) error {
	msg, err := ws.NewMessage(msgType, payload)
	if err != nil {
		return err
	}
	msg.RequestID = requestID
	return h.hub.Send(connID, msg)
}
