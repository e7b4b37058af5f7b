package result

import (
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/gokatarajesh/quizmind/internal/ai"
)

// ErrPersistenceFailure wraps any failure to store a finished quiz.
var ErrPersistenceFailure = errors.New("could not save quiz result")

// AnonymousName is shown on the leaderboard when a user has neither a display name nor an email.
const AnonymousName = "Anonymous"

// Identity is the player a result is attributed to.
type Identity struct {
	UserID      uuid.UUID
	DisplayName string
	Email       string
}

// Username picks the leaderboard name: display name, then email, then AnonymousName.
func (i Identity) Username() string {
	if name := strings.TrimSpace(i.DisplayName); name != "" {
		return name
	}
	if email := strings.TrimSpace(i.Email); email != "" {
		return email
	}
	return AnonymousName
}

// Outcome describes what Persist did.
type Outcome string

const (
	OutcomeSaved     Outcome = "saved"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeFailed    Outcome = "failed"
)

// Feedback is the AI-assisted commentary on a finished quiz. Each half fails
// independently; a failed half carries a player facing message instead.
type Feedback struct {
	PerformanceMessage string
	Difficulty         *ai.DifficultyAdvice
	DifficultyError    string
	Resources          []ai.LearningResource
	ResourcesError     string
}

// PerformanceMessage grades a score ratio in 0..1.
func PerformanceMessage(ratio float64) string {
	switch {
	case ratio >= 0.9:
		return "Outstanding! A true master!"
	case ratio >= 0.7:
		return "Excellent work! You really know your stuff."
	case ratio >= 0.5:
		return "Good job! A solid performance."
	default:
		return "Nice try! Keep practicing to improve."
	}
}
