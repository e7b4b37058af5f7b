package repository

import (
	"context"

	sqlcgen "github.com/gokatarajesh/quizmind/internal/db/sqlc"
)

type leaderboardStore interface {
	ListLeaderboardTop(ctx context.Context, limit int32) ([]sqlcgen.Leaderboard, error)
	InsertLeaderboardSnapshot(ctx context.Context, arg sqlcgen.InsertLeaderboardSnapshotParams) (sqlcgen.LeaderboardSnapshot, error)
	ListRecentSnapshots(ctx context.Context, arg sqlcgen.ListRecentSnapshotsParams) ([]sqlcgen.LeaderboardSnapshot, error)
}

// LeaderboardRepository reads the durable aggregate and its snapshots.
type LeaderboardRepository struct {
	store leaderboardStore
}

func NewLeaderboardRepository(store leaderboardStore) *LeaderboardRepository {
	return &LeaderboardRepository{store: store}
}

// Top lists aggregates by total score, highest first.
func (r *LeaderboardRepository) Top(ctx context.Context, limit int) ([]sqlcgen.Leaderboard, error) {
	return r.store.ListLeaderboardTop(ctx, int32(limit))
}

// InsertSnapshot stores one serialized window copy.
func (r *LeaderboardRepository) InsertSnapshot(ctx context.Context, params sqlcgen.InsertLeaderboardSnapshotParams) (sqlcgen.LeaderboardSnapshot, error) {
	return r.store.InsertLeaderboardSnapshot(ctx, params)
}

// LatestSnapshot returns the newest snapshot for window, or nil when none exist.
func (r *LeaderboardRepository) LatestSnapshot(ctx context.Context, window string) (*sqlcgen.LeaderboardSnapshot, error) {
	rows, err := r.store.ListRecentSnapshots(ctx, sqlcgen.ListRecentSnapshotsParams{
		TimeWindow: window,
		Limit:      1,
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}
