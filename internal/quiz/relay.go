package quiz

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/quizmind/internal/result"
	"github.com/gokatarajesh/quizmind/internal/session"
	ws "github.com/gokatarajesh/quizmind/pkg/http/ws"
)

// SessionBroadcaster delivers messages to the connections watching a session.
type SessionBroadcaster interface {
	BroadcastToSession(sessionID uuid.UUID, msg ws.Message) error
}

// Relay turns session events and aggregation outcomes into WebSocket messages.
type Relay struct {
	hub    SessionBroadcaster
	logger zerolog.Logger
}

func NewRelay(hub SessionBroadcaster, logger zerolog.Logger) *Relay {
	return &Relay{
		hub:    hub,
		logger: logger.With().Str("component", "quiz_relay").Logger(),
	}
}

// Relay is the session manager listener.
func (r *Relay) Relay(ev session.Event) {
	sid := ev.SessionID.String()
	switch ev.Type {
	case session.EventQuestion:
		if ev.Question == nil {
			return
		}
		r.send(ev.SessionID, ws.TypeQuestion, questionPayload(sid, ev.Question, ev.Total, ev.Remaining))
	case session.EventTick:
		if ev.Tick == nil {
			return
		}
		r.send(ev.SessionID, ws.TypeQuestionTick, ws.QuestionTickPayload{
			SessionID:        sid,
			QuestionIndex:    ev.Tick.QuestionIndex,
			RemainingSeconds: ev.Tick.Remaining,
		})
	case session.EventAnswer:
		if ev.Outcome == nil {
			return
		}
		r.send(ev.SessionID, ws.TypeAnswerAck, answerPayload(sid, *ev.Outcome))
	case session.EventCompleted:
		if ev.Result == nil {
			return
		}
		r.send(ev.SessionID, ws.TypeQuizComplete, completePayload(*ev.Result))
	}
}

// Feedback pushes AI feedback for a completed session.
func (r *Relay) Feedback(sessionID uuid.UUID, fb result.Feedback) {
	r.send(sessionID, ws.TypeFeedback, feedbackPayload(sessionID, fb))
}

// PersistStatus pushes the outcome of saving a result.
func (r *Relay) PersistStatus(sessionID uuid.UUID, status PersistStatus) {
	r.send(sessionID, ws.TypePersistStatus, ws.PersistStatusPayload{
		SessionID: sessionID.String(),
		OK:        status.OK,
		Skipped:   status.Skipped,
		Message:   status.Message,
	})
}

func (r *Relay) send(sessionID uuid.UUID, msgType string, payload interface{}) {
	if r.hub == nil {
		return
	}
	msg, err := ws.NewMessage(msgType, payload)
	if err != nil {
		r.logger.Warn().Err(err).Str("type", msgType).Msg("encode message failed")
		return
	}
	if err := r.hub.BroadcastToSession(sessionID, msg); err != nil {
		r.logger.Debug().Err(err).Str("type", msgType).Str("session_id", sessionID.String()).Msg("broadcast failed")
	}
}

func questionPayload(sid string, q *session.QuestionView, total, remaining int) ws.QuestionPayload {
	return ws.QuestionPayload{
		SessionID:        sid,
		Index:            q.Index,
		Total:            total,
		ID:               q.ID,
		Prompt:           q.Prompt,
		Options:          q.Options,
		Difficulty:       q.Difficulty,
		RemainingSeconds: remaining,
	}
}

func answerPayload(sid string, o session.Outcome) ws.AnswerAckPayload {
	return ws.AnswerAckPayload{
		SessionID:        sid,
		QuestionIndex:    o.QuestionIndex,
		Selected:         o.Selected,
		Correct:          o.Correct,
		CorrectIndex:     o.CorrectIndex,
		TimedOut:         o.TimedOut,
		Score:            o.Score,
		ServerReceivedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
}

func completePayload(res session.Result) ws.QuizCompletePayload {
	return ws.QuizCompletePayload{
		SessionID:  res.SessionID.String(),
		Score:      res.Score,
		Total:      res.Total,
		Percent:    res.Percent(),
		Topic:      res.Topic,
		Difficulty: res.Difficulty,
		Message:    result.PerformanceMessage(res.Ratio()),
	}
}

func feedbackPayload(sessionID uuid.UUID, fb result.Feedback) ws.FeedbackPayload {
	out := ws.FeedbackPayload{
		SessionID:          sessionID.String(),
		PerformanceMessage: fb.PerformanceMessage,
		DifficultyError:    fb.DifficultyError,
		ResourcesError:     fb.ResourcesError,
	}
	if fb.Difficulty != nil {
		out.Difficulty = &ws.DifficultySuggestion{
			SuggestedDifficulty: fb.Difficulty.SuggestedDifficulty,
			Reason:              fb.Difficulty.Reason,
		}
	}
	for _, r := range fb.Resources {
		out.Resources = append(out.Resources, ws.LearningResource{
			Topic:        r.Topic,
			ResourceName: r.ResourceName,
			ResourceLink: r.ResourceLink,
			Reason:       r.Reason,
		})
	}
	return out
}
