package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	sqlcgen "github.com/gokatarajesh/quizmind/internal/db/sqlc"
)

type resultStore interface {
	InsertQuizHistory(ctx context.Context, arg sqlcgen.InsertQuizHistoryParams) (int64, error)
	IncrementLeaderboardScore(ctx context.Context, arg sqlcgen.IncrementLeaderboardScoreParams) error
}

// TxBeginner is satisfied by *pgxpool.Pool and pgx.Conn.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// ResultRecord is one finished quiz attributed to a user.
type ResultRecord struct {
	UserID       uuid.UUID
	Username     string
	SessionID    uuid.UUID
	Topic        string
	Difficulty   string
	Score        int
	ScorePercent int
	Total        int
	CompletedAt  time.Time
}

// ResultRepository writes history and the leaderboard aggregate in one transaction.
type ResultRepository struct {
	db       TxBeginner
	storeFor func(tx pgx.Tx) resultStore
}

func NewResultRepository(db TxBeginner) *ResultRepository {
	return &ResultRepository{
		db: db,
		storeFor: func(tx pgx.Tx) resultStore {
			return sqlcgen.New(tx)
		},
	}
}

// Record inserts the history row and, only when the row is new, adds the
// score to the user's leaderboard total. It reports whether the row was new.
func (r *ResultRepository) Record(ctx context.Context, rec ResultRecord) (inserted bool, err error) {
	if rec.UserID == uuid.Nil || rec.SessionID == uuid.Nil {
		return false, errors.New("user and session ids are required")
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	store := r.storeFor(tx)
	completedAt := pgtype.Timestamptz{Time: rec.CompletedAt.UTC(), Valid: true}

	rows, err := store.InsertQuizHistory(ctx, sqlcgen.InsertQuizHistoryParams{
		UserID:         PGUUID(rec.UserID),
		SessionID:      PGUUID(rec.SessionID),
		Topic:          rec.Topic,
		Difficulty:     rec.Difficulty,
		Score:          int32(rec.Score),
		ScorePercent:   int32(rec.ScorePercent),
		TotalQuestions: int32(rec.Total),
		CompletedAt:    completedAt,
	})
	if err != nil {
		return false, fmt.Errorf("insert history: %w", err)
	}

	if rows > 0 {
		err = store.IncrementLeaderboardScore(ctx, sqlcgen.IncrementLeaderboardScoreParams{
			UserID:     PGUUID(rec.UserID),
			Username:   rec.Username,
			TotalScore: int64(rec.Score),
			LastPlayed: completedAt,
		})
		if err != nil {
			return false, fmt.Errorf("increment leaderboard: %w", err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return rows > 0, nil
}
