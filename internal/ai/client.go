package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/quizmind/internal/metrics"
)

var (
	// ErrSuggestionUnavailable wraps every failed call to the model.
	ErrSuggestionUnavailable = errors.New("suggestion service unavailable")
	// ErrModelOverloaded marks a 503 from the model provider.
	ErrModelOverloaded = errors.New("model overloaded")
)

// User facing messages for failed suggestion calls.
const (
	OverloadedMessage          = "The AI model is currently overloaded. Please try again in a few moments."
	DifficultyFailureMessage   = "An unexpected error occurred while adjusting difficulty."
	LearningPathFailureMessage = "An unexpected error occurred while suggesting learning paths."
	TrainingPlanFailureMessage = "An unexpected error occurred while generating the training plan."
	QuizSuggestionFailMessage  = "An unexpected error occurred while suggesting quizzes."
)

// UserMessage maps a suggestion error to the message shown to players.
func UserMessage(err error, fallback string) string {
	if errors.Is(err, ErrModelOverloaded) {
		return OverloadedMessage
	}
	return fallback
}

// Config holds connection details for the Gemini generateContent API.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// Client talks to Gemini and decodes JSON answers into typed results.
type Client struct {
	httpClient *http.Client
	config     Config
	metrics    *metrics.Recorder
	logger     zerolog.Logger
}

func NewClient(cfg Config, rec *metrics.Recorder, logger zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.Model == "" {
		cfg.Model = "models/gemini-2.5-flash"
	}
	if !strings.HasPrefix(cfg.Model, "models/") {
		cfg.Model = "models/" + cfg.Model
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if rec == nil {
		rec = metrics.Nop()
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		config:     cfg,
		metrics:    rec,
		logger:     logger.With().Str("component", "ai_client").Logger(),
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type generationConfig struct {
	Temperature      float64 `json:"temperature"`
	ResponseMimeType string  `json:"responseMimeType"`
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
}

type geminiRequest struct {
	Contents         []geminiContent  `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// generateJSON sends prompt and decodes the first candidate's JSON text into out.
func (c *Client) generateJSON(ctx context.Context, operation, prompt string, out any) (err error) {
	start := time.Now()
	status := "ok"
	defer func() {
		if err != nil {
			status = "error"
			if errors.Is(err, ErrModelOverloaded) {
				status = "overloaded"
			}
			c.logger.Warn().Err(err).Str("operation", operation).Msg("suggestion call failed")
		}
		c.metrics.AIRequestDuration.WithLabelValues(operation, status).Observe(time.Since(start).Seconds())
	}()

	if c.config.APIKey == "" {
		return fmt.Errorf("%w: api key not configured", ErrSuggestionUnavailable)
	}

	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			Temperature:      c.config.Temperature,
			ResponseMimeType: "application/json",
			MaxOutputTokens:  8192,
		},
	})
	if err != nil {
		return fmt.Errorf("%w: encode request: %v", ErrSuggestionUnavailable, err)
	}

	endpoint := fmt.Sprintf("%s/%s:generateContent?key=%s", c.config.BaseURL, c.config.Model, url.QueryEscape(c.config.APIKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSuggestionUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSuggestionUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusServiceUnavailable {
		return fmt.Errorf("%w: %w", ErrSuggestionUnavailable, ErrModelOverloaded)
	}
	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: gemini status %d: %s", ErrSuggestionUnavailable, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var gResp geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&gResp); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrSuggestionUnavailable, err)
	}
	if len(gResp.Candidates) == 0 || len(gResp.Candidates[0].Content.Parts) == 0 {
		return fmt.Errorf("%w: gemini returned empty response", ErrSuggestionUnavailable)
	}

	raw := stripFences(gResp.Candidates[0].Content.Parts[0].Text)
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("%w: parse gemini JSON: %v", ErrSuggestionUnavailable, err)
	}
	return nil
}

func stripFences(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	return strings.TrimSpace(raw)
}
