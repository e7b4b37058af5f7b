package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sqlcgen "github.com/gokatarajesh/quizmind/internal/db/sqlc"
	ws "github.com/gokatarajesh/quizmind/pkg/http/ws"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func newClockedService(t *testing.T, clock *testClock) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewService(client, zerolog.Nop(), ServiceOptions{PubSubChannel: "lb:test", Now: clock.Now})
}

func decodeEntries(t *testing.T, params sqlcgen.InsertLeaderboardSnapshotParams) []ws.LeaderboardEntry {
	t.Helper()
	var entries []ws.LeaderboardEntry
	require.NoError(t, json.Unmarshal(params.Entries, &entries))
	return entries
}

func insertedFor(store *stubStore, window string) []sqlcgen.InsertLeaderboardSnapshotParams {
	store.mu.Lock()
	defer store.mu.Unlock()
	var out []sqlcgen.InsertLeaderboardSnapshotParams
	for _, p := range store.inserted {
		if p.TimeWindow == window {
			out = append(out, p)
		}
	}
	return out
}

func TestSnapshotWorkerPersistsNonEmptyWindows(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	player := uuid.New()
	require.NoError(t, svc.RecordResult(ctx, RecordRequest{UserID: player, DisplayName: "snap", Score: 4}))
	require.NoError(t, svc.RecordResult(ctx, RecordRequest{UserID: player, DisplayName: "snap", Score: 2}))

	store := &stubStore{}
	worker := NewSnapshotWorker(svc, store, time.Minute, 5, zerolog.Nop())
	worker.tick(ctx)

	require.Len(t, store.inserted, len(defaultWindows))
	entries := decodeEntries(t, store.inserted[0])
	require.Len(t, entries, 1)
	assert.Equal(t, "snap", entries[0].DisplayName)
	assert.Equal(t, 6, entries[0].Score)
	assert.Equal(t, 2, entries[0].Games)
	assert.Len(t, store.inserted[0].SourceHash, 64)
}

func TestSnapshotWorkerSkipsUnchangedWindows(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.RecordResult(ctx, RecordRequest{UserID: uuid.New(), DisplayName: "x", Score: 1}))

	store := &stubStore{}
	worker := NewSnapshotWorker(svc, store, time.Minute, 5, zerolog.Nop())
	worker.tick(ctx)
	worker.tick(ctx)
	assert.Len(t, store.inserted, len(defaultWindows))

	require.NoError(t, svc.RecordResult(ctx, RecordRequest{UserID: uuid.New(), DisplayName: "y", Score: 2}))
	worker.tick(ctx)
	assert.Len(t, store.inserted, 2*len(defaultWindows))
}

func TestSnapshotWorkerWritesClosingStandingsOnRollover(t *testing.T) {
	clock := &testClock{now: fixedNow}
	svc := newClockedService(t, clock)
	ctx := context.Background()

	require.NoError(t, svc.RecordResult(ctx, RecordRequest{UserID: uuid.New(), DisplayName: "early", Score: 3}))
	store := &stubStore{}
	worker := NewSnapshotWorker(svc, store, time.Minute, 5, zerolog.Nop())
	worker.tick(ctx)
	require.Len(t, insertedFor(store, WindowDaily), 1)

	// Scored after the last tick of the day.
	require.NoError(t, svc.RecordResult(ctx, RecordRequest{UserID: uuid.New(), DisplayName: "late", Score: 5}))

	clock.Set(fixedNow.Add(24 * time.Hour))
	worker.tick(ctx)

	daily := insertedFor(store, WindowDaily)
	require.Len(t, daily, 2)
	closing := decodeEntries(t, daily[1])
	require.Len(t, closing, 2)
	assert.Equal(t, "late", closing[0].DisplayName)

	// Same ISO week and month: their current buckets simply gained an entry.
	assert.Len(t, insertedFor(store, WindowWeekly), 2)
	assert.Len(t, insertedFor(store, WindowMonthly), 2)

	worker.tick(ctx)
	assert.Len(t, insertedFor(store, WindowDaily), 2)
}

func TestSnapshotWorkerAllTimeUsesDurableGames(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	veteran := uuid.New()
	require.NoError(t, svc.RecordResult(ctx, RecordRequest{UserID: veteran, DisplayName: "vet", Score: 4}))

	store := &stubStore{aggregate: []sqlcgen.Leaderboard{{
		UserID:     pgtype.UUID{Bytes: veteran, Valid: true},
		Username:   "vet",
		TotalScore: 40,
		Games:      12,
	}}}
	worker := NewSnapshotWorker(svc, store, time.Minute, 5, zerolog.Nop())
	worker.tick(ctx)

	allTime := insertedFor(store, WindowAllTime)
	require.Len(t, allTime, 1)
	entries := decodeEntries(t, allTime[0])
	require.Len(t, entries, 1)
	assert.Equal(t, 12, entries[0].Games)
	assert.Equal(t, 4, entries[0].Score)

	daily := decodeEntries(t, insertedFor(store, WindowDaily)[0])
	assert.Equal(t, 1, daily[0].Games)
}

func TestSnapshotWorkerReseedsAllTimeFromDatabase(t *testing.T) {
	svc, _, _ := newTestService(t)
	player := uuid.New()
	store := &stubStore{aggregate: []sqlcgen.Leaderboard{{
		UserID:     pgtype.UUID{Bytes: player, Valid: true},
		Username:   "ada@example.com",
		TotalScore: 17,
		Games:      5,
	}}}
	worker := NewSnapshotWorker(svc, store, time.Minute, 5, zerolog.Nop())
	worker.tick(context.Background())

	require.Len(t, store.inserted, 1)
	assert.Equal(t, WindowAllTime, store.inserted[0].TimeWindow)
	entries := decodeEntries(t, store.inserted[0])
	require.Len(t, entries, 1)
	assert.Equal(t, player.String(), entries[0].UserID)
	assert.Equal(t, 17, entries[0].Score)
	assert.Equal(t, 5, entries[0].Games)
}

func TestSnapshotWorkerAllTimeSurvivesDatabaseError(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	require.NoError(t, svc.RecordResult(ctx, RecordRequest{UserID: uuid.New(), DisplayName: "x", Score: 1}))

	store := &stubStore{topErr: errors.New("db down")}
	worker := NewSnapshotWorker(svc, store, time.Minute, 5, zerolog.Nop())
	worker.tick(ctx)

	assert.Len(t, insertedFor(store, WindowAllTime), 1)
}

func TestSnapshotWorkerRunStopsOnCancel(t *testing.T) {
	svc, _, _ := newTestService(t)
	worker := NewSnapshotWorker(svc, &stubStore{}, 10*time.Millisecond, 5, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
