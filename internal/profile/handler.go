package profile

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/quizmind/internal/ai"
	"github.com/gokatarajesh/quizmind/internal/auth"
	"github.com/gokatarajesh/quizmind/internal/db/repository"
	sqlcgen "github.com/gokatarajesh/quizmind/internal/db/sqlc"
	httperrors "github.com/gokatarajesh/quizmind/pkg/http/errors"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
	suggestionHistory   = 10
)

// HistoryReader lists a user's stored results, newest first.
type HistoryReader interface {
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]sqlcgen.QuizHistory, error)
}

// QuizSuggester recommends topics to replay.
type QuizSuggester interface {
	SuggestQuizzes(ctx context.Context, req ai.QuizSuggestionRequest) ([]ai.QuizSuggestion, error)
}

// HistoryEntry is one row of GET /v1/users/me/history.
type HistoryEntry struct {
	SessionID      string    `json:"session_id"`
	Topic          string    `json:"topic"`
	Difficulty     string    `json:"difficulty"`
	Score          int       `json:"score"`
	ScorePercent   int       `json:"score_percent"`
	TotalQuestions int       `json:"total_questions"`
	CompletedAt    time.Time `json:"completed_at"`
}

// Handler serves the signed-in user's history and topic suggestions.
type Handler struct {
	history   HistoryReader
	suggester QuizSuggester
	topics    func() []string
	logger    zerolog.Logger
}

// NewHandler builds the profile handler. topics lists the catalog names suggestions are limited to.
func NewHandler(history HistoryReader, suggester QuizSuggester, topics func() []string, logger zerolog.Logger) *Handler {
	return &Handler{
		history:   history,
		suggester: suggester,
		topics:    topics,
		logger:    logger.With().Str("component", "profile_http").Logger(),
	}
}

// History handles GET /v1/users/me/history?limit=20
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httperrors.RespondError(w, http.StatusMethodNotAllowed, httperrors.ErrCodeMethodNotAllowed, "Method not allowed")
		return
	}
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeAuthenticationRequired, "Authentication required")
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= maxHistoryLimit {
			limit = parsed
		}
	}

	rows, err := h.history.ListByUser(r.Context(), claims.UserID, limit)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", claims.UserID.String()).Msg("history fetch failed")
		httperrors.RespondInternalError(w, "Could not load quiz history")
		return
	}

	entries := make([]HistoryEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, toHistoryEntry(row))
	}
	httperrors.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"history": entries,
	})
}

// Suggestions handles GET /v1/users/me/suggestions. Suggestion failures are
// reported inline with a 200 so the page still renders.
func (h *Handler) Suggestions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httperrors.RespondError(w, http.StatusMethodNotAllowed, httperrors.ErrCodeMethodNotAllowed, "Method not allowed")
		return
	}
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeAuthenticationRequired, "Authentication required")
		return
	}

	rows, err := h.history.ListByUser(r.Context(), claims.UserID, suggestionHistory)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", claims.UserID.String()).Msg("history fetch failed")
		httperrors.RespondInternalError(w, "Could not load quiz history")
		return
	}

	history := make([]ai.HistoryEntry, 0, len(rows))
	for _, row := range rows {
		history = append(history, ai.HistoryEntry{
			Topic:             row.Topic,
			Score:             float64(row.ScorePercent),
			QuestionsAnswered: int(row.Score),
			TotalQuestions:    int(row.TotalQuestions),
		})
	}

	suggestions, err := h.suggester.SuggestQuizzes(r.Context(), ai.QuizSuggestionRequest{
		History: history,
		Topics:  h.topics(),
	})
	if err != nil {
		h.logger.Warn().Err(err).Msg("quiz suggestions unavailable")
		httperrors.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"suggestions": []ai.QuizSuggestion{},
			"error":       ai.UserMessage(err, ai.QuizSuggestionFailMessage),
		})
		return
	}

	httperrors.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"suggestions": suggestions,
	})
}

func toHistoryEntry(row sqlcgen.QuizHistory) HistoryEntry {
	return HistoryEntry{
		SessionID:      repository.FromPGUUID(row.SessionID).String(),
		Topic:          row.Topic,
		Difficulty:     row.Difficulty,
		Score:          int(row.Score),
		ScorePercent:   int(row.ScorePercent),
		TotalQuestions: int(row.TotalQuestions),
		CompletedAt:    row.CompletedAt.Time,
	}
}
