package ws

import "encoding/json"

// MessageType constants for the live quiz WebSocket protocol.
const (
	// Client -> Server
	TypeSelectAnswer = "select_answer"
	TypeAdvance      = "advance"
	TypeRequestState = "request_state"

	// Server -> Client
	TypeQuestion          = "question"
	TypeQuestionTick      = "question_tick"
	TypeAnswerAck         = "answer_ack"
	TypeQuizComplete      = "quiz_complete"
	TypeFeedback          = "feedback"
	TypePersistStatus     = "persist_status"
	TypeSessionState      = "session_state"
	TypeLeaderboardUpdate = "leaderboard_update"
	TypeError             = "error"
	TypePing              = "ping"
	TypePong              = "pong"
)

// Message wraps all WebSocket payloads with type and optional request ID.
type Message struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	RequestID string          `json:"request_id,omitempty"`
}

// NewMessage marshals payload into a typed message.
func NewMessage(msgType string, payload interface{}) (Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: msgType, Payload: raw}, nil
}

// Client Messages (incoming)

type SelectAnswerPayload struct {
	OptionIndex int `json:"option_index"`
}

// Server Messages (outgoing)

type QuestionPayload struct {
	SessionID        string   `json:"session_id"`
	Index            int      `json:"index"`
	Total            int      `json:"total"`
	ID               string   `json:"id"`
	Prompt           string   `json:"prompt"`
	Options          []string `json:"options"`
	Difficulty       string   `json:"difficulty,omitempty"`
	RemainingSeconds int      `json:"remaining_seconds"`
}

type QuestionTickPayload struct {
	SessionID        string `json:"session_id"`
	QuestionIndex    int    `json:"question_index"`
	RemainingSeconds int    `json:"remaining_seconds"`
}

type AnswerAckPayload struct {
	SessionID        string `json:"session_id"`
	QuestionIndex    int    `json:"question_index"`
	Selected         int    `json:"selected"`
	Correct          bool   `json:"correct"`
	CorrectIndex     int    `json:"correct_index"`
	TimedOut         bool   `json:"timed_out"`
	Score            int    `json:"score"`
	ServerReceivedAt string `json:"server_received_at"`
}

type QuizCompletePayload struct {
	SessionID  string `json:"session_id"`
	Score      int    `json:"score"`
	Total      int    `json:"total"`
	Percent    int    `json:"percent"`
	Topic      string `json:"topic"`
	Difficulty string `json:"difficulty"`
	Message    string `json:"message"`
}

type DifficultySuggestion struct {
	SuggestedDifficulty string `json:"suggested_difficulty"`
	Reason              string `json:"reason"`
}

type LearningResource struct {
	Topic        string `json:"topic,omitempty"`
	ResourceName string `json:"resource_name"`
	ResourceLink string `json:"resource_link"`
	Reason       string `json:"reason"`
}

type FeedbackPayload struct {
	SessionID          string                `json:"session_id"`
	PerformanceMessage string                `json:"performance_message"`
	Difficulty         *DifficultySuggestion `json:"difficulty,omitempty"`
	DifficultyError    string                `json:"difficulty_error,omitempty"`
	Resources          []LearningResource    `json:"resources,omitempty"`
	ResourcesError     string                `json:"resources_error,omitempty"`
}

type PersistStatusPayload struct {
	SessionID string `json:"session_id"`
	OK        bool   `json:"ok"`
	Skipped   bool   `json:"skipped,omitempty"`
	Message   string `json:"message,omitempty"`
}

type SessionStatePayload struct {
	SessionID        string `json:"session_id"`
	State            string `json:"state"`
	Index            int    `json:"index"`
	Total            int    `json:"total"`
	Score            int    `json:"score"`
	RemainingSeconds int    `json:"remaining_seconds"`
	Answered         bool   `json:"answered"`
}

type LeaderboardUpdatePayload struct {
	Window    string             `json:"window"`
	Top       []LeaderboardEntry `json:"top"`
	SessionID string             `json:"session_id,omitempty"`
}

type LeaderboardEntry struct {
	Rank        int    `json:"rank"`
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Score       int    `json:"score"`
	Games       int    `json:"games"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
