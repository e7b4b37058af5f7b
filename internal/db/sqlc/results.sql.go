// source: results.sql

package sqlcgen

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const incrementLeaderboardScore = `-- name: IncrementLeaderboardScore :exec
INSERT INTO leaderboard (user_id, username, total_score, games, last_played)
VALUES ($1, $2, $3, 1, $4)
ON CONFLICT (user_id) DO UPDATE
SET total_score = leaderboard.total_score + EXCLUDED.total_score,
    games = leaderboard.games + 1,
    username = EXCLUDED.username,
    last_played = GREATEST(leaderboard.last_played, EXCLUDED.last_played)
`

type IncrementLeaderboardScoreParams struct {
	UserID     pgtype.UUID        `json:"user_id"`
	Username   string             `json:"username"`
	TotalScore int64              `json:"total_score"`
	LastPlayed pgtype.Timestamptz `json:"last_played"`
}

func (q *Queries) IncrementLeaderboardScore(ctx context.Context, arg IncrementLeaderboardScoreParams) error {
	_, err := q.db.Exec(ctx, incrementLeaderboardScore,
		arg.UserID,
		arg.Username,
		arg.TotalScore,
		arg.LastPlayed,
	)
	return err
}

const insertQuizHistory = `-- name: InsertQuizHistory :execrows
INSERT INTO quiz_history (user_id, session_id, topic, difficulty, score, score_percent, total_questions, completed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (session_id) DO NOTHING
`

type InsertQuizHistoryParams struct {
	UserID         pgtype.UUID        `json:"user_id"`
	SessionID      pgtype.UUID        `json:"session_id"`
	Topic          string             `json:"topic"`
	Difficulty     string             `json:"difficulty"`
	Score          int32              `json:"score"`
	ScorePercent   int32              `json:"score_percent"`
	TotalQuestions int32              `json:"total_questions"`
	CompletedAt    pgtype.Timestamptz `json:"completed_at"`
}

func (q *Queries) InsertQuizHistory(ctx context.Context, arg InsertQuizHistoryParams) (int64, error) {
	result, err := q.db.Exec(ctx, insertQuizHistory,
		arg.UserID,
		arg.SessionID,
		arg.Topic,
		arg.Difficulty,
		arg.Score,
		arg.ScorePercent,
		arg.TotalQuestions,
		arg.CompletedAt,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const listLeaderboardTop = `-- name: ListLeaderboardTop :many
SELECT user_id, username, total_score, games, last_played FROM leaderboard
ORDER BY total_score DESC, last_played ASC
LIMIT $1
`

func (q *Queries) ListLeaderboardTop(ctx context.Context, limit int32) ([]Leaderboard, error) {
	rows, err := q.db.Query(ctx, listLeaderboardTop, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Leaderboard
	for rows.Next() {
		var i Leaderboard
		if err := rows.Scan(
			&i.UserID,
			&i.Username,
			&i.TotalScore,
			&i.Games,
			&i.LastPlayed,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listQuizHistoryByUser = `-- name: ListQuizHistoryByUser :many
SELECT history_id, user_id, session_id, topic, difficulty, score, score_percent, total_questions, completed_at FROM quiz_history
WHERE user_id = $1
ORDER BY completed_at DESC
LIMIT $2
`

type ListQuizHistoryByUserParams struct {
	UserID pgtype.UUID `json:"user_id"`
	Limit  int32       `json:"limit"`
}

func (q *Queries) ListQuizHistoryByUser(ctx context.Context, arg ListQuizHistoryByUserParams) ([]QuizHistory, error) {
	rows, err := q.db.Query(ctx, listQuizHistoryByUser, arg.UserID, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []QuizHistory
	for rows.Next() {
		var i QuizHistory
		if err := rows.Scan(
			&i.HistoryID,
			&i.UserID,
			&i.SessionID,
			&i.Topic,
			&i.Difficulty,
			&i.Score,
			&i.ScorePercent,
			&i.TotalQuestions,
			&i.CompletedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
