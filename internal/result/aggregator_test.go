package result

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/quizmind/internal/ai"
	"github.com/gokatarajesh/quizmind/internal/db/repository"
	"github.com/gokatarajesh/quizmind/internal/leaderboard"
	"github.com/gokatarajesh/quizmind/internal/metrics"
	"github.com/gokatarajesh/quizmind/internal/session"
)

type mockAdvisor struct {
	mock.Mock
}

func (m *mockAdvisor) AdjustDifficulty(ctx context.Context, req ai.DifficultyRequest) (*ai.DifficultyAdvice, error) {
	args := m.Called(ctx, req)
	advice, _ := args.Get(0).(*ai.DifficultyAdvice)
	return advice, args.Error(1)
}

func (m *mockAdvisor) SuggestLearningPaths(ctx context.Context, req ai.LearningPathRequest) ([]ai.LearningResource, error) {
	args := m.Called(ctx, req)
	resources, _ := args.Get(0).([]ai.LearningResource)
	return resources, args.Error(1)
}

type mockResultStore struct {
	mock.Mock
}

func (m *mockResultStore) Record(ctx context.Context, rec repository.ResultRecord) (bool, error) {
	args := m.Called(ctx, rec)
	return args.Bool(0), args.Error(1)
}

type recordingBoard struct {
	mu       sync.Mutex
	requests []leaderboard.RecordRequest
	err      error
}

func (b *recordingBoard) RecordResult(ctx context.Context, req leaderboard.RecordRequest) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests = append(b.requests, req)
	return b.err
}

func sampleResult(score, total int) session.Result {
	return session.Result{
		SessionID:   uuid.New(),
		Score:       score,
		Total:       total,
		Topic:       "Science",
		Difficulty:  "medium",
		CompletedAt: time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC),
	}
}

func newRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestPerformanceMessageThresholds(t *testing.T) {
	cases := map[float64]string{
		1.0:  "Outstanding! A true master!",
		0.9:  "Outstanding! A true master!",
		0.8:  "Excellent work! You really know your stuff.",
		0.7:  "Excellent work! You really know your stuff.",
		0.5:  "Good job! A solid performance.",
		0.49: "Nice try! Keep practicing to improve.",
		0:    "Nice try! Keep practicing to improve.",
	}
	for ratio, want := range cases {
		assert.Equal(t, want, PerformanceMessage(ratio), fmt.Sprintf("ratio %.2f", ratio))
	}
}

func TestIdentityUsernameFallbacks(t *testing.T) {
	assert.Equal(t, "Ada", Identity{DisplayName: "Ada", Email: "ada@example.com"}.Username())
	assert.Equal(t, "ada@example.com", Identity{DisplayName: "  ", Email: "ada@example.com"}.Username())
	assert.Equal(t, AnonymousName, Identity{}.Username())
}

func TestRequestFeedbackCombinesBothSuggestions(t *testing.T) {
	advisor := &mockAdvisor{}
	res := sampleResult(2, 3)

	advisor.On("AdjustDifficulty", mock.Anything, ai.DifficultyRequest{
		Performance:       res.Ratio(),
		CurrentDifficulty: "medium",
	}).Return(&ai.DifficultyAdvice{SuggestedDifficulty: "hard", Reason: "strong run"}, nil)
	advisor.On("SuggestLearningPaths", mock.Anything, ai.LearningPathRequest{
		History: []ai.HistoryEntry{{Topic: "Science", Score: 67, QuestionsAnswered: 3, TotalQuestions: 3}},
		Topics:  []string{"Science"},
	}).Return([]ai.LearningResource{{Topic: "Science", ResourceName: "Khan Academy", ResourceLink: "https://khanacademy.org"}}, nil)

	agg := NewAggregator(advisor, &mockResultStore{}, nil, nil, Options{}, zerolog.Nop())
	fb := agg.RequestFeedback(context.Background(), res)

	assert.Equal(t, "Good job! A solid performance.", fb.PerformanceMessage)
	require.NotNil(t, fb.Difficulty)
	assert.Equal(t, "hard", fb.Difficulty.SuggestedDifficulty)
	assert.Empty(t, fb.DifficultyError)
	require.Len(t, fb.Resources, 1)
	assert.Empty(t, fb.ResourcesError)
	advisor.AssertExpectations(t)
}

func TestRequestFeedbackHalvesFailIndependently(t *testing.T) {
	advisor := &mockAdvisor{}
	advisor.On("AdjustDifficulty", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("%w: %w", ai.ErrSuggestionUnavailable, ai.ErrModelOverloaded))
	advisor.On("SuggestLearningPaths", mock.Anything, mock.Anything).
		Return([]ai.LearningResource{{ResourceName: "Docs"}}, nil)

	rec := metrics.Nop()
	agg := NewAggregator(advisor, &mockResultStore{}, nil, nil, Options{Metrics: rec}, zerolog.Nop())
	fb := agg.RequestFeedback(context.Background(), sampleResult(3, 3))

	assert.Nil(t, fb.Difficulty)
	assert.Equal(t, ai.OverloadedMessage, fb.DifficultyError)
	assert.Len(t, fb.Resources, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.SuggestionFailures.WithLabelValues("adjust_difficulty")))
}

func TestRequestFeedbackCountsEachFailureOnce(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	rec := metrics.Nop()
	client := ai.NewClient(ai.Config{BaseURL: srv.URL, APIKey: "secret", Model: "test-model"}, rec, zerolog.Nop())
	agg := NewAggregator(client, &mockResultStore{}, nil, nil, Options{Metrics: rec}, zerolog.Nop())

	fb := agg.RequestFeedback(context.Background(), sampleResult(1, 3))

	assert.Equal(t, ai.OverloadedMessage, fb.DifficultyError)
	assert.Equal(t, ai.OverloadedMessage, fb.ResourcesError)
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.SuggestionFailures.WithLabelValues("adjust_difficulty")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.SuggestionFailures.WithLabelValues("learning_paths")))
}

func TestRequestFeedbackGenericFailureMessage(t *testing.T) {
	advisor := &mockAdvisor{}
	advisor.On("AdjustDifficulty", mock.Anything, mock.Anything).
		Return(&ai.DifficultyAdvice{SuggestedDifficulty: "easy"}, nil)
	advisor.On("SuggestLearningPaths", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("%w: boom", ai.ErrSuggestionUnavailable))

	agg := NewAggregator(advisor, &mockResultStore{}, nil, nil, Options{}, zerolog.Nop())
	fb := agg.RequestFeedback(context.Background(), sampleResult(0, 3))

	assert.Equal(t, ai.LearningPathFailureMessage, fb.ResourcesError)
	assert.Nil(t, fb.Resources)
	assert.NotNil(t, fb.Difficulty)
}

func TestPersistSkipsWithoutIdentity(t *testing.T) {
	store := &mockResultStore{}
	agg := NewAggregator(nil, store, nil, nil, Options{}, zerolog.Nop())

	outcome, err := agg.Persist(context.Background(), sampleResult(1, 3), nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, outcome)
	store.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
}

func TestPersistWritesStoreAndLiveBoard(t *testing.T) {
	client, mr := newRedis(t)
	store := &mockResultStore{}
	board := &recordingBoard{}
	res := sampleResult(2, 3)
	user := uuid.New()

	store.On("Record", mock.Anything, repository.ResultRecord{
		UserID:       user,
		Username:     "ada@example.com",
		SessionID:    res.SessionID,
		Topic:        "Science",
		Difficulty:   "medium",
		Score:        2,
		ScorePercent: 67,
		Total:        3,
		CompletedAt:  res.CompletedAt,
	}).Return(true, nil).Once()

	agg := NewAggregator(nil, store, board, client, Options{GuardTTL: time.Hour}, zerolog.Nop())
	outcome, err := agg.Persist(context.Background(), res, &Identity{UserID: user, Email: "ada@example.com"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSaved, outcome)

	require.Len(t, board.requests, 1)
	assert.Equal(t, leaderboard.RecordRequest{
		UserID:      user,
		DisplayName: "ada@example.com",
		Score:       2,
		SessionID:   res.SessionID,
		CompletedAt: res.CompletedAt,
	}, board.requests[0])

	assert.True(t, mr.Exists(guardKey(res.SessionID)))
	assert.Equal(t, time.Hour, mr.TTL(guardKey(res.SessionID)))
	store.AssertExpectations(t)
}

func TestPersistAtMostOncePerSession(t *testing.T) {
	client, _ := newRedis(t)
	store := &mockResultStore{}
	store.On("Record", mock.Anything, mock.Anything).Return(true, nil).Once()

	agg := NewAggregator(nil, store, nil, client, Options{}, zerolog.Nop())
	res := sampleResult(1, 1)
	id := &Identity{UserID: uuid.New(), DisplayName: "p"}

	var wg sync.WaitGroup
	outcomes := make([]Outcome, 5)
	for i := range outcomes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i], _ = agg.Persist(context.Background(), res, id)
		}(i)
	}
	wg.Wait()

	saved := 0
	for _, o := range outcomes {
		if o == OutcomeSaved {
			saved++
		} else {
			assert.Equal(t, OutcomeDuplicate, o)
		}
	}
	assert.Equal(t, 1, saved)
	store.AssertNumberOfCalls(t, "Record", 1)
}

func TestPersistGuardSharedAcrossReplicas(t *testing.T) {
	client, _ := newRedis(t)
	res := sampleResult(1, 2)
	id := &Identity{UserID: uuid.New()}

	first := &mockResultStore{}
	first.On("Record", mock.Anything, mock.Anything).Return(true, nil)
	second := &mockResultStore{}

	_, err := NewAggregator(nil, first, nil, client, Options{}, zerolog.Nop()).Persist(context.Background(), res, id)
	require.NoError(t, err)

	outcome, err := NewAggregator(nil, second, nil, client, Options{}, zerolog.Nop()).Persist(context.Background(), res, id)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)
	second.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
}

func TestPersistFailureIsNotRetried(t *testing.T) {
	store := &mockResultStore{}
	store.On("Record", mock.Anything, mock.Anything).Return(false, errors.New("connection reset")).Once()
	board := &recordingBoard{}
	rec := metrics.Nop()

	agg := NewAggregator(nil, store, board, nil, Options{Metrics: rec}, zerolog.Nop())
	res := sampleResult(1, 2)
	id := &Identity{UserID: uuid.New()}

	outcome, err := agg.Persist(context.Background(), res, id)
	assert.ErrorIs(t, err, ErrPersistenceFailure)
	assert.Equal(t, OutcomeFailed, outcome)
	assert.Empty(t, board.requests)

	outcome, err = agg.Persist(context.Background(), res, id)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)
	store.AssertNumberOfCalls(t, "Record", 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.PersistOutcomes.WithLabelValues("failed")))
}

func TestPersistExistingHistoryRowSkipsLiveBoard(t *testing.T) {
	store := &mockResultStore{}
	store.On("Record", mock.Anything, mock.Anything).Return(false, nil)
	board := &recordingBoard{}

	agg := NewAggregator(nil, store, board, nil, Options{}, zerolog.Nop())
	outcome, err := agg.Persist(context.Background(), sampleResult(1, 2), &Identity{UserID: uuid.New()})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)
	assert.Empty(t, board.requests)
}

func TestPersistLiveBoardErrorIsBestEffort(t *testing.T) {
	store := &mockResultStore{}
	store.On("Record", mock.Anything, mock.Anything).Return(true, nil)
	board := &recordingBoard{err: errors.New("redis down")}

	agg := NewAggregator(nil, store, board, nil, Options{}, zerolog.Nop())
	outcome, err := agg.Persist(context.Background(), sampleResult(2, 2), &Identity{UserID: uuid.New()})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSaved, outcome)
}
