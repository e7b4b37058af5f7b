package quiz

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/quizmind/internal/ai"
	"github.com/gokatarajesh/quizmind/internal/auth"
	"github.com/gokatarajesh/quizmind/internal/question"
	"github.com/gokatarajesh/quizmind/internal/result"
	"github.com/gokatarajesh/quizmind/internal/session"
	httperrors "github.com/gokatarajesh/quizmind/pkg/http/errors"
)

// HTTPHandlers provides REST endpoints for quiz sessions.
type HTTPHandlers struct {
	service *Service
	logger  zerolog.Logger
}

// NewHTTPHandlers creates HTTP handlers for quiz endpoints.
func NewHTTPHandlers(service *Service, logger zerolog.Logger) *HTTPHandlers {
	return &HTTPHandlers{
		service: service,
		logger:  logger.With().Str("component", "quiz_http").Logger(),
	}
}

type answerRequest struct {
	OptionIndex *int `json:"option_index"`
}

type generateRequest struct {
	Topic      string `json:"topic"`
	Count      int    `json:"count"`
	Difficulty string `json:"difficulty"`
}

// ListTopics handles GET /v1/topics
func (h *HTTPHandlers) ListTopics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httperrors.RespondError(w, http.StatusMethodNotAllowed, httperrors.ErrCodeMethodNotAllowed, "Method not allowed")
		return
	}
	httperrors.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"topics": h.service.Topics(),
	})
}

// StartQuiz handles POST /v1/quizzes
func (h *HTTPHandlers) StartQuiz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httperrors.RespondError(w, http.StatusMethodNotAllowed, httperrors.ErrCodeMethodNotAllowed, "Method not allowed")
		return
	}

	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
		return
	}
	req.Topic = strings.TrimSpace(req.Topic)
	if req.Topic == "" {
		httperrors.RespondValidationError(w, httperrors.ErrCodeMissingField, "topic is required", "topic")
		return
	}

	snap, pack, err := h.service.Start(r.Context(), req, auth.IdentityFromContext(r.Context()))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	httperrors.RespondJSON(w, http.StatusCreated, map[string]interface{}{
		"session": snap,
		"source":  pack.Source,
	})
}

// Route dispatches /v1/quizzes/{id}[/answer|/advance|/feedback].
func (h *HTTPHandlers) Route(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/quizzes/"), "/")
	if rest == "generate" {
		h.Generate(w, r)
		return
	}

	rawID, action, _ := strings.Cut(rest, "/")
	id, err := uuid.Parse(rawID)
	if err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidSessionID, "Invalid session ID")
		return
	}

	switch action {
	case "":
		h.GetQuiz(w, r, id)
	case "answer":
		h.Answer(w, r, id)
	case "advance":
		h.Advance(w, r, id)
	case "feedback":
		h.Feedback(w, r, id)
	default:
		httperrors.RespondNotFound(w, httperrors.ErrCodeNotFound, "Not found")
	}
}

// GetQuiz handles GET /v1/quizzes/{id}
func (h *HTTPHandlers) GetQuiz(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	if r.Method != http.MethodGet {
		httperrors.RespondError(w, http.StatusMethodNotAllowed, httperrors.ErrCodeMethodNotAllowed, "Method not allowed")
		return
	}

	snap, persist, err := h.service.State(r.Context(), id, auth.IdentityFromContext(r.Context()))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	body := map[string]interface{}{"session": snap}
	if persist != nil {
		body["persist"] = persist
	}
	httperrors.RespondJSON(w, http.StatusOK, body)
}

// Answer handles POST /v1/quizzes/{id}/answer
func (h *HTTPHandlers) Answer(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	if r.Method != http.MethodPost {
		httperrors.RespondError(w, http.StatusMethodNotAllowed, httperrors.ErrCodeMethodNotAllowed, "Method not allowed")
		return
	}

	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
		return
	}
	if req.OptionIndex == nil {
		httperrors.RespondValidationError(w, httperrors.ErrCodeMissingField, "option_index is required", "option_index")
		return
	}

	outcome, err := h.service.Answer(r.Context(), id, auth.IdentityFromContext(r.Context()), *req.OptionIndex)
	if errors.Is(err, session.ErrAnswerRejected) {
		// Late and duplicate answers are dropped without an error.
		httperrors.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"accepted": false,
		})
		return
	}
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httperrors.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"accepted": true,
		"outcome":  outcome,
	})
}

// Advance handles POST /v1/quizzes/{id}/advance
func (h *HTTPHandlers) Advance(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	if r.Method != http.MethodPost {
		httperrors.RespondError(w, http.StatusMethodNotAllowed, httperrors.ErrCodeMethodNotAllowed, "Method not allowed")
		return
	}

	snap, res, err := h.service.Advance(r.Context(), id, auth.IdentityFromContext(r.Context()))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	body := map[string]interface{}{"session": snap}
	if res != nil {
		body["result"] = resultBody(*res)
	}
	httperrors.RespondJSON(w, http.StatusOK, body)
}

// Feedback handles POST /v1/quizzes/{id}/feedback. Suggestion failures come
// back inline with a 200; only session errors are reported as HTTP errors.
func (h *HTTPHandlers) Feedback(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	if r.Method != http.MethodPost {
		httperrors.RespondError(w, http.StatusMethodNotAllowed, httperrors.ErrCodeMethodNotAllowed, "Method not allowed")
		return
	}

	res, fb, err := h.service.Feedback(r.Context(), id, auth.IdentityFromContext(r.Context()))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	httperrors.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"result":   resultBody(*res),
		"feedback": feedbackPayload(id, fb),
	})
}

// Generate handles POST /v1/quizzes/generate
func (h *HTTPHandlers) Generate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httperrors.RespondError(w, http.StatusMethodNotAllowed, httperrors.ErrCodeMethodNotAllowed, "Method not allowed")
		return
	}

	req, ok := decodeGenerate(w, r)
	if !ok {
		return
	}

	questions, err := h.service.Generate(r.Context(), question.GenerateRequest{
		Topic:      req.Topic,
		Count:      req.Count,
		Difficulty: req.Difficulty,
	})
	if err != nil {
		h.logger.Warn().Err(err).Str("topic", req.Topic).Msg("quiz generation failed")
		httperrors.RespondServiceUnavailable(w, httperrors.ErrCodeUpstreamError, ai.UserMessage(err, "An unexpected error occurred while generating the quiz."))
		return
	}
	httperrors.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"topic":     req.Topic,
		"questions": questions,
	})
}

// TrainingPlan handles POST /v1/training-plans
func (h *HTTPHandlers) TrainingPlan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httperrors.RespondError(w, http.StatusMethodNotAllowed, httperrors.ErrCodeMethodNotAllowed, "Method not allowed")
		return
	}

	req, ok := decodeGenerate(w, r)
	if !ok {
		return
	}

	plan, err := h.service.TrainingPlan(r.Context(), ai.TrainingPlanRequest{
		Topic:      req.Topic,
		Count:      req.Count,
		Difficulty: req.Difficulty,
	})
	if err != nil {
		h.logger.Warn().Err(err).Str("topic", req.Topic).Msg("training plan failed")
		httperrors.RespondJSON(w, http.StatusOK, map[string]interface{}{
			"questions":           []question.Question{},
			"suggested_resources": []ai.LearningResource{},
			"error":               ai.UserMessage(err, ai.TrainingPlanFailureMessage),
		})
		return
	}
	httperrors.RespondJSON(w, http.StatusOK, plan)
}

func decodeGenerate(w http.ResponseWriter, r *http.Request) (generateRequest, bool) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid JSON payload")
		return req, false
	}
	req.Topic = strings.TrimSpace(req.Topic)
	if req.Topic == "" {
		httperrors.RespondValidationError(w, httperrors.ErrCodeMissingField, "topic is required", "topic")
		return req, false
	}
	if req.Count <= 0 || req.Count > ai.MaxGeneratedQuestions {
		httperrors.RespondValidationError(w, httperrors.ErrCodeInvalidRequest, "count must be between 1 and 100", "count")
		return req, false
	}
	if req.Difficulty != "" && !question.IsValidDifficulty(req.Difficulty) {
		httperrors.RespondValidationError(w, httperrors.ErrCodeInvalidRequest, "difficulty must be easy, medium or hard", "difficulty")
		return req, false
	}
	return req, true
}

func resultBody(res session.Result) map[string]interface{} {
	return map[string]interface{}{
		"session_id":  res.SessionID.String(),
		"score":       res.Score,
		"total":       res.Total,
		"percent":     res.Percent(),
		"topic":       res.Topic,
		"difficulty":  res.Difficulty,
		"message":     result.PerformanceMessage(res.Ratio()),
		"completedAt": res.CompletedAt,
	}
}

// errorCode maps service errors to HTTP status and error code.
func errorCode(err error) (int, string, string) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		return http.StatusNotFound, httperrors.ErrCodeSessionNotFound, "Quiz session not found"
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, httperrors.ErrCodeForbidden, "This quiz belongs to another player"
	case errors.Is(err, question.ErrUnknownTopic):
		return http.StatusNotFound, httperrors.ErrCodeUnknownTopic, "Unknown topic"
	case errors.Is(err, question.ErrNoQuestions):
		return http.StatusServiceUnavailable, httperrors.ErrCodeNoQuestions, "No questions are available for this topic right now"
	case errors.Is(err, question.ErrInvalidRequest), errors.Is(err, session.ErrInvalidInput):
		return http.StatusBadRequest, httperrors.ErrCodeInvalidRequest, err.Error()
	case errors.Is(err, ErrInProgress):
		return http.StatusConflict, httperrors.ErrCodeSessionNotDone, "Quiz is not finished yet"
	case errors.Is(err, session.ErrAnswerRejected):
		return http.StatusConflict, httperrors.ErrCodeAnswerRejected, "Answer rejected"
	case errors.Is(err, session.ErrNotAnswered):
		return http.StatusConflict, httperrors.ErrCodeNotAnswered, "Answer the current question first"
	case errors.Is(err, session.ErrSessionCompleted):
		return http.StatusConflict, httperrors.ErrCodeSessionCompleted, "Quiz already completed"
	case errors.Is(err, session.ErrNotStarted):
		return http.StatusConflict, httperrors.ErrCodeSessionNotDone, "Quiz has not started"
	case errors.Is(err, ai.ErrSuggestionUnavailable):
		return http.StatusServiceUnavailable, httperrors.ErrCodeUpstreamError, ai.UserMessage(err, "Question generation is unavailable right now")
	default:
		return http.StatusInternalServerError, httperrors.ErrCodeInternalError, "Internal server error"
	}
}

func (h *HTTPHandlers) respondServiceError(w http.ResponseWriter, err error) {
	status, code, message := errorCode(err)
	if status == http.StatusInternalServerError {
		h.logger.Error().Err(err).Msg("quiz request failed")
	}
	httperrors.RespondError(w, status, code, message)
}
