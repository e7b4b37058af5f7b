package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sqlcgen "github.com/gokatarajesh/quizmind/internal/db/sqlc"
	ws "github.com/gokatarajesh/quizmind/pkg/http/ws"
)

type stubStore struct {
	mu        sync.Mutex
	aggregate []sqlcgen.Leaderboard
	topErr    error
	snapshots map[string]sqlcgen.LeaderboardSnapshot
	inserted  []sqlcgen.InsertLeaderboardSnapshotParams
}

func (s *stubStore) Top(ctx context.Context, limit int) ([]sqlcgen.Leaderboard, error) {
	if s.topErr != nil {
		return nil, s.topErr
	}
	rows := s.aggregate
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (s *stubStore) InsertSnapshot(ctx context.Context, params sqlcgen.InsertLeaderboardSnapshotParams) (sqlcgen.LeaderboardSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserted = append(s.inserted, params)
	return sqlcgen.LeaderboardSnapshot{TimeWindow: params.TimeWindow, Entries: params.Entries}, nil
}

func (s *stubStore) LatestSnapshot(ctx context.Context, window string) (*sqlcgen.LeaderboardSnapshot, error) {
	snap, ok := s.snapshots[window]
	if !ok {
		return nil, nil
	}
	return &snap, nil
}

type leaderboardResponse struct {
	Window string                `json:"window"`
	Top    []ws.LeaderboardEntry `json:"top"`
	Source string                `json:"source"`
}

func get(t *testing.T, h *HTTPHandler, target string) (int, leaderboardResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.HandleGet(rec, httptest.NewRequest(http.MethodGet, target, nil))
	var body leaderboardResponse
	if rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec.Code, body
}

func TestHandleGetPrefersRedis(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	for i := 0; i < 12; i++ {
		require.NoError(t, svc.RecordResult(ctx, RecordRequest{UserID: uuid.New(), DisplayName: "p", Score: i}))
	}
	h := NewHTTPHandler(svc, &stubStore{}, 10, zerolog.Nop())

	code, body := get(t, h, "/v1/leaderboards/daily")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "redis", body.Source)
	assert.Len(t, body.Top, 10)
	assert.Equal(t, 11, body.Top[0].Score)

	_, body = get(t, h, "/v1/leaderboards/daily?limit=3")
	assert.Len(t, body.Top, 3)
}

func TestHandleGetFallsBackToAggregateForAllTime(t *testing.T) {
	svc, _, _ := newTestService(t)
	user := uuid.New()
	store := &stubStore{aggregate: []sqlcgen.Leaderboard{{
		UserID:     pgtype.UUID{Bytes: user, Valid: true},
		Username:   "ada@example.com",
		TotalScore: 42,
		Games:      6,
	}}}
	h := NewHTTPHandler(svc, store, 10, zerolog.Nop())

	code, body := get(t, h, "/v1/leaderboards/all_time")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "database", body.Source)
	require.Len(t, body.Top, 1)
	assert.Equal(t, ws.LeaderboardEntry{Rank: 1, UserID: user.String(), DisplayName: "ada@example.com", Score: 42, Games: 6}, body.Top[0])
}

func TestHandleGetFallsBackToSnapshot(t *testing.T) {
	entries, err := json.Marshal([]ws.LeaderboardEntry{
		{Rank: 1, UserID: uuid.NewString(), DisplayName: "a", Score: 9},
		{Rank: 2, UserID: uuid.NewString(), DisplayName: "b", Score: 8},
	})
	require.NoError(t, err)
	store := &stubStore{
		topErr:    errors.New("db down"),
		snapshots: map[string]sqlcgen.LeaderboardSnapshot{WindowAllTime: {Entries: entries}},
	}
	h := NewHTTPHandler(nil, store, 10, zerolog.Nop())

	code, body := get(t, h, "/v1/leaderboards/all_time?limit=1")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "snapshot", body.Source)
	require.Len(t, body.Top, 1)
	assert.Equal(t, "a", body.Top[0].DisplayName)
}

func TestHandleGetEmptyBoardReturnsEmptyList(t *testing.T) {
	svc, _, _ := newTestService(t)
	h := NewHTTPHandler(svc, &stubStore{}, 10, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.HandleGet(rec, httptest.NewRequest(http.MethodGet, "/v1/leaderboards/weekly", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"top":[]`)
}

func TestHandleGetRejectsUnknownWindowAndMethod(t *testing.T) {
	h := NewHTTPHandler(nil, nil, 10, zerolog.Nop())

	code, _ := get(t, h, "/v1/leaderboards/yearly")
	assert.Equal(t, http.StatusNotFound, code)

	rec := httptest.NewRecorder()
	h.HandleGet(rec, httptest.NewRequest(http.MethodPost, "/v1/leaderboards/daily", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
