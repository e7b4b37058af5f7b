package repository

import (
	"context"

	"github.com/google/uuid"

	sqlcgen "github.com/gokatarajesh/quizmind/internal/db/sqlc"
)

type historyStore interface {
	ListQuizHistoryByUser(ctx context.Context, arg sqlcgen.ListQuizHistoryByUserParams) ([]sqlcgen.QuizHistory, error)
}

// HistoryRepository reads a user's past quizzes.
type HistoryRepository struct {
	store historyStore
}

func NewHistoryRepository(store historyStore) *HistoryRepository {
	return &HistoryRepository{store: store}
}

// ListByUser returns the newest limit rows for userID.
func (r *HistoryRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]sqlcgen.QuizHistory, error) {
	if limit <= 0 {
		limit = 20
	}
	return r.store.ListQuizHistoryByUser(ctx, sqlcgen.ListQuizHistoryByUserParams{
		UserID: PGUUID(userID),
		Limit:  int32(limit),
	})
}
