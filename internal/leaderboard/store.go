package leaderboard

import (
	"context"

	"github.com/gokatarajesh/quizmind/internal/db/repository"
	sqlcgen "github.com/gokatarajesh/quizmind/internal/db/sqlc"
)

// Store is the durable side of the leaderboard: the all-time aggregate and
// the periodic window snapshots.
type Store interface {
	Top(ctx context.Context, limit int) ([]sqlcgen.Leaderboard, error)
	InsertSnapshot(ctx context.Context, params sqlcgen.InsertLeaderboardSnapshotParams) (sqlcgen.LeaderboardSnapshot, error)
	LatestSnapshot(ctx context.Context, window string) (*sqlcgen.LeaderboardSnapshot, error)
}

var _ Store = (*repository.LeaderboardRepository)(nil)

func fromAggregate(rows []sqlcgen.Leaderboard) []Entry {
	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, Entry{
			UserID:      repository.FromPGUUID(row.UserID),
			DisplayName: row.Username,
			Score:       int(row.TotalScore),
			Games:       int(row.Games),
		})
	}
	return entries
}
