package external

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// TriviaAPIClient integrates with the-trivia-api.com v2 (no key required for public reads).
type TriviaAPIClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewTriviaAPIClient(baseURL string, httpClient *http.Client) *TriviaAPIClient {
	if baseURL == "" {
		baseURL = "https://the-trivia-api.com"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &TriviaAPIClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
	}
}

// TriviaAPIQuestion mirrors one v2 question object.
type TriviaAPIQuestion struct {
	ID         string `json:"id"`
	Category   string `json:"category"`
	Difficulty string `json:"difficulty"`
	Type       string `json:"type"`
	Question   struct {
		Text string `json:"text"`
	} `json:"question"`
	Correct   string   `json:"correctAnswer"`
	Incorrect []string `json:"incorrectAnswers"`
}

var triviaCategories = map[string]string{
	"music":               "music",
	"sport":               "sport_and_leisure",
	"sports":              "sport_and_leisure",
	"film":                "film_and_tv",
	"tv":                  "film_and_tv",
	"arts":                "arts_and_literature",
	"literature":          "arts_and_literature",
	"history":             "history",
	"society":             "society_and_culture",
	"culture":             "society_and_culture",
	"science":             "science",
	"geography":           "geography",
	"food":                "food_and_drink",
	"general":             "general_knowledge",
	"general knowledge":   "general_knowledge",
	"general_knowledge":   "general_knowledge",
	"sport_and_leisure":   "sport_and_leisure",
	"film_and_tv":         "film_and_tv",
	"arts_and_literature": "arts_and_literature",
	"society_and_culture": "society_and_culture",
	"food_and_drink":      "food_and_drink",
}

// CategoryFor maps a free text topic to a Trivia API category, if one matches.
func CategoryFor(topic string) (string, bool) {
	c, ok := triviaCategories[strings.ToLower(strings.TrimSpace(topic))]
	return c, ok
}

func (c *TriviaAPIClient) Fetch(ctx context.Context, amount int, topic, difficulty string) ([]TriviaAPIQuestion, error) {
	values := url.Values{}
	values.Set("limit", fmt.Sprint(amount))
	if difficulty != "" {
		values.Set("difficulties", difficulty)
	}
	if category, ok := CategoryFor(topic); ok {
		values.Set("categories", category)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/v2/questions?%s", c.baseURL, values.Encode()), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("triviaapi non-200: %d", resp.StatusCode)
	}

	var payload []TriviaAPIQuestion
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	return payload, nil
}
