package quiz

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/quizmind/internal/ai"
	"github.com/gokatarajesh/quizmind/internal/result"
	"github.com/gokatarajesh/quizmind/internal/session"
	ws "github.com/gokatarajesh/quizmind/pkg/http/ws"
)

func TestRelayMapsSessionEvents(t *testing.T) {
	hub := newRecordingHub()
	relay := NewRelay(hub, zerolog.Nop())
	id := uuid.New()

	relay.Relay(session.Event{
		SessionID: id,
		Type:      session.EventQuestion,
		Question:  &session.QuestionView{Index: 0, ID: "q1", Prompt: "2 + 2?", Options: []string{"3", "4", "5", "6"}},
		Remaining: 15,
		Total:     5,
	})
	relay.Relay(session.Event{SessionID: id, Type: session.EventTick, Tick: &session.TickEvent{QuestionIndex: 0, Remaining: 14}})
	relay.Relay(session.Event{SessionID: id, Type: session.EventAnswer, Outcome: &session.Outcome{Selected: session.NoSelection, CorrectIndex: 1, TimedOut: true}})
	relay.Relay(session.Event{SessionID: id, Type: session.EventCompleted, Result: &session.Result{SessionID: id, Score: 4, Total: 5, CompletedAt: time.Now()}})
	relay.Relay(session.Event{SessionID: id, Type: session.EventTick})

	assert.Equal(t, []string{ws.TypeQuestion, ws.TypeQuestionTick, ws.TypeAnswerAck, ws.TypeQuizComplete}, hub.types(id))

	msg, ok := hub.last(id, ws.TypeQuestion)
	require.True(t, ok)
	var q ws.QuestionPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &q))
	assert.Equal(t, 5, q.Total)
	assert.Equal(t, 15, q.RemainingSeconds)
	assert.NotContains(t, string(msg.Payload), "correct")

	msg, ok = hub.last(id, ws.TypeQuizComplete)
	require.True(t, ok)
	var done ws.QuizCompletePayload
	require.NoError(t, json.Unmarshal(msg.Payload, &done))
	assert.Equal(t, 80, done.Percent)
	assert.Equal(t, "Excellent work! You really know your stuff.", done.Message)
}

func TestRelayFeedbackCarriesPartialFailures(t *testing.T) {
	hub := newRecordingHub()
	relay := NewRelay(hub, zerolog.Nop())
	id := uuid.New()

	relay.Feedback(id, result.Feedback{
		PerformanceMessage: "Good job! A solid performance.",
		Difficulty:         &ai.DifficultyAdvice{SuggestedDifficulty: "hard", Reason: "ready for more"},
		ResourcesError:     ai.OverloadedMessage,
	})

	msg, ok := hub.last(id, ws.TypeFeedback)
	require.True(t, ok)
	var fb ws.FeedbackPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &fb))
	require.NotNil(t, fb.Difficulty)
	assert.Equal(t, "hard", fb.Difficulty.SuggestedDifficulty)
	assert.Equal(t, ai.OverloadedMessage, fb.ResourcesError)
	assert.Empty(t, fb.Resources)
}

func TestRelayWithoutHubIsNoop(t *testing.T) {
	relay := NewRelay(nil, zerolog.Nop())
	assert.NotPanics(t, func() {
		relay.PersistStatus(uuid.New(), PersistStatus{OK: true})
	})
}
