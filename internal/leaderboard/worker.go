package leaderboard

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"

	sqlcgen "github.com/gokatarajesh/quizmind/internal/db/sqlc"
	ws "github.com/gokatarajesh/quizmind/pkg/http/ws"
)

// SnapshotWorker copies leaderboard standings into Postgres so the HTTP
// handler has something to serve when Redis is unavailable. When a daily,
// weekly or monthly bucket rolls over it also writes the closing standings
// of the bucket that just ended.
type SnapshotWorker struct {
	svc      *Service
	store    Store
	logger   zerolog.Logger
	interval time.Duration
	topN     int
	marks    map[string]bucketMark
}

// bucketMark remembers the bucket a window was last snapshotted in.
type bucketMark struct {
	bucket string
	seenAt time.Time
	hash   string
}

func NewSnapshotWorker(svc *Service, store Store, interval time.Duration, topN int, logger zerolog.Logger) *SnapshotWorker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if topN <= 0 {
		topN = 50
	}
	return &SnapshotWorker{
		svc:      svc,
		store:    store,
		logger:   logger.With().Str("component", "leaderboard_snapshot_worker").Logger(),
		interval: interval,
		topN:     topN,
		marks:    make(map[string]bucketMark),
	}
}

// Run snapshots once immediately, then every interval until ctx is cancelled.
func (w *SnapshotWorker) Run(ctx context.Context) error {
	if w.svc == nil || w.store == nil {
		return nil
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *SnapshotWorker) tick(ctx context.Context) {
	now := w.svc.now()
	for _, window := range w.svc.Windows() {
		if err := w.snapshotWindow(ctx, window, now); err != nil {
			w.logger.Warn().Err(err).Str("window", window).Msg("snapshot failed")
		}
	}
}

func (w *SnapshotWorker) snapshotWindow(ctx context.Context, window string, now time.Time) error {
	bucket := w.svc.bucketKey(window, now)
	mark, seen := w.marks[window]

	if seen && mark.bucket != bucket {
		closing, err := w.svc.topAt(ctx, window, mark.seenAt, w.topN)
		if err != nil {
			return fmt.Errorf("closing standings for %s: %w", mark.bucket, err)
		}
		if _, err := w.persist(ctx, window, mark.bucket, closing, mark.hash); err != nil {
			return err
		}
		w.logger.Info().Str("window", window).Str("bucket", mark.bucket).Msg("leaderboard bucket closed")
		mark = bucketMark{}
	}

	entries, err := w.svc.topAt(ctx, window, now, w.topN)
	if err != nil {
		return err
	}
	if window == WindowAllTime {
		entries = w.withDurableTotals(ctx, entries)
	}

	hash, err := w.persist(ctx, window, bucket, entries, mark.hash)
	if err != nil {
		return err
	}
	w.marks[window] = bucketMark{bucket: bucket, seenAt: now, hash: hash}
	return nil
}

// withDurableTotals folds the Postgres aggregate into the all-time board. Its
// games count covers every saved result, and it reseeds the board after
// Redis loses its data.
func (w *SnapshotWorker) withDurableTotals(ctx context.Context, entries []Entry) []Entry {
	rows, err := w.store.Top(ctx, w.topN)
	if err != nil {
		w.logger.Warn().Err(err).Msg("aggregate leaderboard unavailable, snapshotting redis only")
		return entries
	}
	if len(entries) == 0 {
		return fromAggregate(rows)
	}

	games := make(map[uuid.UUID]int, len(rows))
	for _, e := range fromAggregate(rows) {
		games[e.UserID] = e.Games
	}
	for i := range entries {
		if n, ok := games[entries[i].UserID]; ok && n > entries[i].Games {
			entries[i].Games = n
		}
	}
	return entries
}

// persist writes entries for window unless they hash to previous. It returns
// the hash now on record for the bucket.
func (w *SnapshotWorker) persist(ctx context.Context, window, bucket string, entries []Entry, previous string) (string, error) {
	if len(entries) == 0 {
		return previous, nil
	}
	ranked := ToWSEntries(entries)
	data, err := json.Marshal(ranked)
	if err != nil {
		return previous, err
	}
	hash := standingsHash(bucket, data)
	if hash == previous {
		return previous, nil
	}

	generatedAt := time.Now().UTC()
	if _, err := w.store.InsertSnapshot(ctx, sqlcgen.InsertLeaderboardSnapshotParams{
		TimeWindow:  window,
		GeneratedAt: pgtype.Timestamptz{Time: generatedAt, Valid: true},
		Entries:     data,
		SourceHash:  hash,
	}); err != nil {
		return previous, err
	}

	w.logger.Info().
		Str("window", window).
		Str("bucket", bucket).
		Int("entries", len(ranked)).
		Int("games", totalGames(ranked)).
		Time("generated_at", generatedAt).
		Msg("leaderboard snapshot persisted")
	return hash, nil
}

// standingsHash covers the bucket so identical standings in a new bucket
// still produce a fresh snapshot.
func standingsHash(bucket string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(bucket))
	h.Write([]byte{0})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

func totalGames(entries []ws.LeaderboardEntry) int {
	n := 0
	for _, e := range entries {
		n += e.Games
	}
	return n
}
