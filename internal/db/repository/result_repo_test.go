package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	sqlcgen "github.com/gokatarajesh/quizmind/internal/db/sqlc"
)

type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
	commitErr  error
}

func (f *fakeTx) Commit(context.Context) error {
	f.committed = true
	return f.commitErr
}

func (f *fakeTx) Rollback(context.Context) error {
	f.rolledBack = true
	return nil
}

type fakeBeginner struct {
	tx  *fakeTx
	err error
}

func (f *fakeBeginner) Begin(context.Context) (pgx.Tx, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.tx, nil
}

type mockResultStore struct {
	mock.Mock
}

func (m *mockResultStore) InsertQuizHistory(ctx context.Context, arg sqlcgen.InsertQuizHistoryParams) (int64, error) {
	args := m.Called(ctx, arg)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockResultStore) IncrementLeaderboardScore(ctx context.Context, arg sqlcgen.IncrementLeaderboardScoreParams) error {
	return m.Called(ctx, arg).Error(0)
}

func newResultRepo(tx *fakeTx, store *mockResultStore) *ResultRepository {
	repo := NewResultRepository(&fakeBeginner{tx: tx})
	repo.storeFor = func(pgx.Tx) resultStore { return store }
	return repo
}

func sampleRecord() ResultRecord {
	return ResultRecord{
		UserID:       uuid.New(),
		Username:     "Ada",
		SessionID:    uuid.New(),
		Topic:        "science",
		Difficulty:   "easy",
		Score:        2,
		ScorePercent: 67,
		Total:        3,
		CompletedAt:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestResultRepository_RecordNewResult(t *testing.T) {
	tx := &fakeTx{}
	store := new(mockResultStore)
	repo := newResultRepo(tx, store)
	rec := sampleRecord()

	store.On("InsertQuizHistory", mock.Anything, mock.MatchedBy(func(arg sqlcgen.InsertQuizHistoryParams) bool {
		return FromPGUUID(arg.SessionID) == rec.SessionID && arg.Score == 2 && arg.ScorePercent == 67 && arg.TotalQuestions == 3
	})).Return(int64(1), nil)
	store.On("IncrementLeaderboardScore", mock.Anything, mock.MatchedBy(func(arg sqlcgen.IncrementLeaderboardScoreParams) bool {
		return FromPGUUID(arg.UserID) == rec.UserID && arg.TotalScore == 2 && arg.Username == "Ada"
	})).Return(nil)

	inserted, err := repo.Record(context.Background(), rec)

	require.NoError(t, err)
	assert.True(t, inserted)
	assert.True(t, tx.committed)
	assert.False(t, tx.rolledBack)
	store.AssertExpectations(t)
}

func TestResultRepository_DuplicateSessionSkipsIncrement(t *testing.T) {
	tx := &fakeTx{}
	store := new(mockResultStore)
	repo := newResultRepo(tx, store)

	store.On("InsertQuizHistory", mock.Anything, mock.Anything).Return(int64(0), nil)

	inserted, err := repo.Record(context.Background(), sampleRecord())

	require.NoError(t, err)
	assert.False(t, inserted)
	assert.True(t, tx.committed)
	store.AssertNotCalled(t, "IncrementLeaderboardScore", mock.Anything, mock.Anything)
}

func TestResultRepository_RollsBackOnFailure(t *testing.T) {
	tx := &fakeTx{}
	store := new(mockResultStore)
	repo := newResultRepo(tx, store)

	store.On("InsertQuizHistory", mock.Anything, mock.Anything).Return(int64(1), nil)
	store.On("IncrementLeaderboardScore", mock.Anything, mock.Anything).Return(errors.New("deadlock"))

	_, err := repo.Record(context.Background(), sampleRecord())

	assert.ErrorContains(t, err, "increment leaderboard")
	assert.True(t, tx.rolledBack)
	assert.False(t, tx.committed)
}

func TestResultRepository_BeginFailure(t *testing.T) {
	repo := NewResultRepository(&fakeBeginner{err: errors.New("pool closed")})

	_, err := repo.Record(context.Background(), sampleRecord())
	assert.ErrorContains(t, err, "begin tx")
}

func TestResultRepository_RequiresIDs(t *testing.T) {
	repo := NewResultRepository(&fakeBeginner{tx: &fakeTx{}})

	rec := sampleRecord()
	rec.UserID = uuid.Nil
	_, err := repo.Record(context.Background(), rec)
	assert.Error(t, err)
}
