package question

import (
	"errors"
	"fmt"
	"strings"
)

// Difficulty constants for readability.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// OptionCount is the fixed number of choices every question carries.
const OptionCount = 4

// Question sources.
const (
	SourceCatalog   = "catalog"
	SourceAI        = "ai"
	SourceOpenTDB   = "opentdb"
	SourceTriviaAPI = "triviaapi"
)

var (
	ErrInvalidQuestion = errors.New("invalid question")
	ErrUnknownTopic    = errors.New("unknown topic")
	ErrNoQuestions     = errors.New("no questions available")
)

// Question is a multiple choice item. Live sessions show players a
// session.QuestionView without CorrectIndex and reveal it only in the answer
// outcome. Generated packs, training plans and the Redis pack cache carry it.
type Question struct {
	ID           string   `json:"id" yaml:"id"`
	Prompt       string   `json:"prompt" yaml:"question"`
	Options      []string `json:"options" yaml:"options"`
	CorrectIndex int      `json:"correct_index" yaml:"correctAnswer"`
	Difficulty   string   `json:"difficulty" yaml:"difficulty"`
	Source       string   `json:"source" yaml:"-"`
}

// Validate checks the content integrity rules a session relies on.
func (q Question) Validate() error {
	if strings.TrimSpace(q.Prompt) == "" {
		return fmt.Errorf("%w: empty prompt", ErrInvalidQuestion)
	}
	if len(q.Options) != OptionCount {
		return fmt.Errorf("%w: expected %d options, got %d", ErrInvalidQuestion, OptionCount, len(q.Options))
	}
	if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
		return fmt.Errorf("%w: correct index %d out of range", ErrInvalidQuestion, q.CorrectIndex)
	}
	if q.Difficulty != "" && !IsValidDifficulty(q.Difficulty) {
		return fmt.Errorf("%w: unknown difficulty %q", ErrInvalidQuestion, q.Difficulty)
	}
	return nil
}

// IsValidDifficulty reports whether d is one of easy, medium or hard.
func IsValidDifficulty(d string) bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	default:
		return false
	}
}

// PackRequest describes the questions a new session needs.
type PackRequest struct {
	Topic      string
	Difficulty string
	Count      int
}

// Pack is an ordered question set plus the labels the result carries.
type Pack struct {
	Topic      string     `json:"topic"`
	TopicName  string     `json:"topic_name"`
	Difficulty string     `json:"difficulty"`
	Source     string     `json:"source"`
	Questions  []Question `json:"questions"`
}
