package sqlcgen

import (
	"github.com/jackc/pgx/v5/pgtype"
)

type Leaderboard struct {
	UserID     pgtype.UUID        `json:"user_id"`
	Username   string             `json:"username"`
	TotalScore int64              `json:"total_score"`
	Games      int32              `json:"games"`
	LastPlayed pgtype.Timestamptz `json:"last_played"`
}

type LeaderboardSnapshot struct {
	SnapshotID  int64              `json:"snapshot_id"`
	TimeWindow  string             `json:"time_window"`
	GeneratedAt pgtype.Timestamptz `json:"generated_at"`
	Entries     []byte             `json:"entries"`
	SourceHash  string             `json:"source_hash"`
}

type QuizHistory struct {
	HistoryID      int64              `json:"history_id"`
	UserID         pgtype.UUID        `json:"user_id"`
	SessionID      pgtype.UUID        `json:"session_id"`
	Topic          string             `json:"topic"`
	Difficulty     string             `json:"difficulty"`
	Score          int32              `json:"score"`
	ScorePercent   int32              `json:"score_percent"`
	TotalQuestions int32              `json:"total_questions"`
	CompletedAt    pgtype.Timestamptz `json:"completed_at"`
}

type User struct {
	UserID       pgtype.UUID        `json:"user_id"`
	Email        pgtype.Text        `json:"email"`
	PasswordHash pgtype.Text        `json:"password_hash"`
	DisplayName  string             `json:"display_name"`
	UserType     string             `json:"user_type"`
	Metadata     []byte             `json:"metadata"`
	CreatedAt    pgtype.Timestamptz `json:"created_at"`
	LastLoginAt  pgtype.Timestamptz `json:"last_login_at"`
}
