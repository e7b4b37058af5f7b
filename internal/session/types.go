package session

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/gokatarajesh/quizmind/internal/question"
)

// State is the session lifecycle position.
type State string

const (
	StateNotStarted State = "not_started"
	StateInProgress State = "in_progress"
	StateCompleted  State = "completed"
)

var (
	ErrInvalidInput     = errors.New("invalid session input")
	ErrAnswerRejected   = errors.New("answer rejected")
	ErrNotAnswered      = errors.New("current question not answered")
	ErrNotStarted       = errors.New("session not started")
	ErrSessionCompleted = errors.New("session completed")
	ErrSessionNotFound  = errors.New("session not found")
)

// NoSelection marks an outcome produced by the countdown rather than a player.
const NoSelection = -1

// Outcome is the single accepted event for one question.
type Outcome struct {
	QuestionIndex int           `json:"question_index"`
	QuestionID    string        `json:"question_id"`
	Selected      int           `json:"selected"`
	CorrectIndex  int           `json:"correct_index"`
	Correct       bool          `json:"correct"`
	TimedOut      bool          `json:"timed_out"`
	Elapsed       time.Duration `json:"elapsed"`
	Score         int           `json:"score"`
}

// Result is emitted once when the last question is advanced past.
type Result struct {
	SessionID   uuid.UUID `json:"session_id"`
	Score       int       `json:"score"`
	Total       int       `json:"total"`
	Topic       string    `json:"topic"`
	Difficulty  string    `json:"difficulty"`
	CompletedAt time.Time `json:"completed_at"`
	Outcomes    []Outcome `json:"outcomes,omitempty"`
}

// Ratio is score over total, or 0 for an empty result.
func (r Result) Ratio() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.Score) / float64(r.Total)
}

// Percent is Ratio scaled to 0..100 and rounded to the nearest integer.
func (r Result) Percent() int {
	if r.Total == 0 {
		return 0
	}
	return (r.Score*100 + r.Total/2) / r.Total
}

// QuestionView is a question as shown to the player, without the answer.
type QuestionView struct {
	Index      int      `json:"index"`
	ID         string   `json:"id"`
	Prompt     string   `json:"prompt"`
	Options    []string `json:"options"`
	Difficulty string   `json:"difficulty,omitempty"`
}

func newQuestionView(index int, q question.Question) *QuestionView {
	return &QuestionView{
		Index:      index,
		ID:         q.ID,
		Prompt:     q.Prompt,
		Options:    append([]string(nil), q.Options...),
		Difficulty: q.Difficulty,
	}
}

// Snapshot is a read-only copy of session state.
type Snapshot struct {
	ID          uuid.UUID     `json:"id"`
	Topic       string        `json:"topic"`
	Difficulty  string        `json:"difficulty"`
	State       State         `json:"state"`
	Index       int           `json:"index"`
	Total       int           `json:"total"`
	Score       int           `json:"score"`
	Remaining   int           `json:"remaining_seconds"`
	TimeLimit   int           `json:"time_limit_seconds"`
	Answered    bool          `json:"answered"`
	Current     *QuestionView `json:"current,omitempty"`
	LastOutcome *Outcome      `json:"last_outcome,omitempty"`
	Result      *Result       `json:"result,omitempty"`
}

// TickEvent reports one accepted countdown tick.
type TickEvent struct {
	QuestionIndex int      `json:"question_index"`
	Remaining     int      `json:"remaining_seconds"`
	Timeout       *Outcome `json:"timeout,omitempty"`
}

// FeedbackNotifier receives the outcome of every accepted answer or timeout.
// It is called after the session lock is released.
type FeedbackNotifier interface {
	AnswerRecorded(sessionID uuid.UUID, outcome Outcome)
}
