package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) listen(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) types() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.events))
	for _, ev := range l.events {
		out = append(out, ev.Type)
	}
	return out
}

func (l *eventLog) count(typ string) int {
	n := 0
	for _, t := range l.types() {
		if t == typ {
			n++
		}
	}
	return n
}

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, time.Minute), mr
}

func newTestManager(t *testing.T, store SnapshotStore, log *eventLog) *Manager {
	t.Helper()
	opts := ManagerOptions{TickInterval: 10 * time.Millisecond, IdleTTL: time.Minute}
	if store != nil {
		opts.Store = store
	}
	if log != nil {
		opts.Listener = log.listen
	}
	m := NewManager(opts, zerolog.Nop())
	t.Cleanup(m.Close)
	return m
}

func TestManagerCreateRejectsInvalidInput(t *testing.T) {
	m := newTestManager(t, nil, nil)

	_, err := m.Create(context.Background(), CreateRequest{Topic: "science", TimeLimitSeconds: 15})
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Zero(t, m.Len())
}

func TestManagerPlaysThroughSession(t *testing.T) {
	log := &eventLog{}
	store, _ := newTestStore(t)
	m := newTestManager(t, store, log)
	ctx := context.Background()
	owner := uuid.New()

	snap, err := m.Create(ctx, CreateRequest{
		Owner:            owner,
		Topic:            "science",
		Difficulty:       "easy",
		Questions:        makeQuestions(1, 0, 2),
		TimeLimitSeconds: 60,
	})
	require.NoError(t, err)
	assert.Equal(t, StateInProgress, snap.State)
	require.NotNil(t, snap.Current)

	gotOwner, err := m.Owner(snap.ID)
	require.NoError(t, err)
	assert.Equal(t, owner, gotOwner)

	var res *Result
	for _, pick := range []int{1, 1, 2} {
		_, err := m.SelectAnswer(ctx, snap.ID, pick)
		require.NoError(t, err)
		_, res, err = m.Advance(ctx, snap.ID)
		require.NoError(t, err)
	}
	require.NotNil(t, res)
	assert.Equal(t, 2, res.Score)
	assert.Equal(t, 3, res.Total)

	stored, err := m.Result(snap.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Score, stored.Score)

	assert.Equal(t, 3, log.count(EventQuestion))
	assert.Equal(t, 3, log.count(EventAnswer))
	assert.Equal(t, 1, log.count(EventCompleted))

	saved, err := store.Load(ctx, snap.ID)
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, StateCompleted, saved.State)
}

func TestManagerCountdownTimesOut(t *testing.T) {
	log := &eventLog{}
	m := newTestManager(t, nil, log)
	ctx := context.Background()

	snap, err := m.Create(ctx, CreateRequest{Questions: makeQuestions(0), TimeLimitSeconds: 2})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		cur, err := m.Get(ctx, snap.ID)
		return err == nil && cur.Answered
	}, time.Second, 5*time.Millisecond)

	cur, err := m.Get(ctx, snap.ID)
	require.NoError(t, err)
	require.NotNil(t, cur.LastOutcome)
	assert.True(t, cur.LastOutcome.TimedOut)
	assert.Equal(t, 0, cur.Remaining)

	_, res, err := m.Advance(ctx, snap.ID)
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, 0, res.Score)
	assert.Equal(t, 1, res.Total)

	assert.Eventually(t, func() bool {
		return log.count(EventTick) == 2 && log.count(EventAnswer) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestManagerAnswerStopsCountdown(t *testing.T) {
	log := &eventLog{}
	m := newTestManager(t, nil, log)
	ctx := context.Background()

	snap, err := m.Create(ctx, CreateRequest{Questions: makeQuestions(0, 0), TimeLimitSeconds: 100})
	require.NoError(t, err)

	_, err = m.SelectAnswer(ctx, snap.ID, 0)
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	ticks := log.count(EventTick)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, ticks, log.count(EventTick), "no ticks after the answer")

	_, err = m.SelectAnswer(ctx, snap.ID, 0)
	assert.ErrorIs(t, err, ErrAnswerRejected)
}

func TestManagerUnknownSession(t *testing.T) {
	m := newTestManager(t, nil, nil)
	ctx := context.Background()
	id := uuid.New()

	_, err := m.Get(ctx, id)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = m.SelectAnswer(ctx, id, 0)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, _, err = m.Advance(ctx, id)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestManagerEvictIdleFallsBackToSnapshot(t *testing.T) {
	store, _ := newTestStore(t)
	m := newTestManager(t, store, nil)
	ctx := context.Background()

	snap, err := m.Create(ctx, CreateRequest{Topic: "python", Questions: makeQuestions(0), TimeLimitSeconds: 30})
	require.NoError(t, err)

	assert.Equal(t, 1, m.EvictIdle(time.Now().Add(time.Minute)))
	assert.Zero(t, m.Len())

	restored, err := m.Get(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, "python", restored.Topic)

	_, err = m.SelectAnswer(ctx, snap.ID, 0)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestManagerRemoveDeletesSnapshot(t *testing.T) {
	store, mr := newTestStore(t)
	m := newTestManager(t, store, nil)
	ctx := context.Background()

	snap, err := m.Create(ctx, CreateRequest{Questions: makeQuestions(0), TimeLimitSeconds: 30})
	require.NoError(t, err)
	assert.True(t, mr.Exists(snapshotKey(snap.ID)))

	m.Remove(ctx, snap.ID)
	assert.False(t, mr.Exists(snapshotKey(snap.ID)))
	_, err = m.Get(ctx, snap.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestManagerOnRemoveHooks(t *testing.T) {
	m := newTestManager(t, nil, nil)
	ctx := context.Background()

	var mu sync.Mutex
	var gone []uuid.UUID
	m.OnRemove(func(id uuid.UUID) {
		mu.Lock()
		gone = append(gone, id)
		mu.Unlock()
	})

	idle, err := m.Create(ctx, CreateRequest{Questions: makeQuestions(0), TimeLimitSeconds: 30})
	require.NoError(t, err)
	assert.Equal(t, 1, m.EvictIdle(time.Now().Add(time.Minute)))

	removed, err := m.Create(ctx, CreateRequest{Questions: makeQuestions(0), TimeLimitSeconds: 30})
	require.NoError(t, err)
	m.Remove(ctx, removed.ID)
	m.Remove(ctx, removed.ID)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []uuid.UUID{idle.ID, removed.ID}, gone)
}

func TestRedisStoreTTL(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	id := uuid.New()

	require.NoError(t, store.Save(ctx, Snapshot{ID: id, State: StateInProgress}))
	assert.Equal(t, time.Minute, mr.TTL(snapshotKey(id)))

	mr.FastForward(2 * time.Minute)
	snap, err := store.Load(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, snap)
}
