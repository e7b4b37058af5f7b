package result

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/gokatarajesh/quizmind/internal/ai"
	"github.com/gokatarajesh/quizmind/internal/db/repository"
	"github.com/gokatarajesh/quizmind/internal/leaderboard"
	"github.com/gokatarajesh/quizmind/internal/metrics"
	"github.com/gokatarajesh/quizmind/internal/session"
)

// Advisor is the suggestion service used for feedback.
type Advisor interface {
	AdjustDifficulty(ctx context.Context, req ai.DifficultyRequest) (*ai.DifficultyAdvice, error)
	SuggestLearningPaths(ctx context.Context, req ai.LearningPathRequest) ([]ai.LearningResource, error)
}

// ResultStore writes history and the durable leaderboard aggregate.
type ResultStore interface {
	Record(ctx context.Context, rec repository.ResultRecord) (bool, error)
}

// LeaderboardWriter updates the live leaderboard windows.
type LeaderboardWriter interface {
	RecordResult(ctx context.Context, req leaderboard.RecordRequest) error
}

// Options tunes the aggregator.
type Options struct {
	GuardTTL time.Duration
	Metrics  *metrics.Recorder
}

// Aggregator turns finished sessions into feedback and stored results.
type Aggregator struct {
	advisor  Advisor
	store    ResultStore
	board    LeaderboardWriter
	redis    *redis.Client
	guardTTL time.Duration
	metrics  *metrics.Recorder
	logger   zerolog.Logger

	mu        sync.Mutex
	attempted map[uuid.UUID]time.Time
}

// NewAggregator wires the aggregator. board and rdb may be nil.
func NewAggregator(advisor Advisor, store ResultStore, board LeaderboardWriter, rdb *redis.Client, opts Options, logger zerolog.Logger) *Aggregator {
	if opts.GuardTTL <= 0 {
		opts.GuardTTL = 24 * time.Hour
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Nop()
	}
	return &Aggregator{
		advisor:   advisor,
		store:     store,
		board:     board,
		redis:     rdb,
		guardTTL:  opts.GuardTTL,
		metrics:   opts.Metrics,
		logger:    logger.With().Str("component", "result_aggregator").Logger(),
		attempted: make(map[uuid.UUID]time.Time),
	}
}

// RequestFeedback asks for a difficulty suggestion and learning resources in
// parallel. It never fails; suggestion errors become messages in Feedback.
func (a *Aggregator) RequestFeedback(ctx context.Context, res session.Result) Feedback {
	fb := Feedback{PerformanceMessage: PerformanceMessage(res.Ratio())}
	if a.advisor == nil {
		fb.DifficultyError = ai.DifficultyFailureMessage
		fb.ResourcesError = ai.LearningPathFailureMessage
		return fb
	}

	var g errgroup.Group
	g.Go(func() error {
		advice, err := a.advisor.AdjustDifficulty(ctx, ai.DifficultyRequest{
			Performance:       res.Ratio(),
			CurrentDifficulty: res.Difficulty,
		})
		if err != nil {
			a.suggestionFailed("adjust_difficulty", res.SessionID, err)
			fb.DifficultyError = ai.UserMessage(err, ai.DifficultyFailureMessage)
			return nil
		}
		fb.Difficulty = advice
		return nil
	})
	g.Go(func() error {
		resources, err := a.advisor.SuggestLearningPaths(ctx, ai.LearningPathRequest{
			History: []ai.HistoryEntry{{
				Topic:             res.Topic,
				Score:             float64(res.Percent()),
				QuestionsAnswered: res.Total,
				TotalQuestions:    res.Total,
			}},
			Topics: []string{res.Topic},
		})
		if err != nil {
			a.suggestionFailed("learning_paths", res.SessionID, err)
			fb.ResourcesError = ai.UserMessage(err, ai.LearningPathFailureMessage)
			return nil
		}
		fb.Resources = resources
		return nil
	})
	_ = g.Wait()
	return fb
}

func (a *Aggregator) suggestionFailed(operation string, sessionID uuid.UUID, err error) {
	a.metrics.SuggestionFailures.WithLabelValues(operation).Inc()
	a.logger.Warn().Err(err).
		Str("operation", operation).
		Str("session_id", sessionID.String()).
		Msg("suggestion unavailable")
}

// Persist stores res for identity at most once per session. A nil identity
// skips persistence. Store failures wrap ErrPersistenceFailure and are not retried.
func (a *Aggregator) Persist(ctx context.Context, res session.Result, identity *Identity) (Outcome, error) {
	if identity == nil || identity.UserID == uuid.Nil {
		a.metrics.PersistOutcomes.WithLabelValues(string(OutcomeSkipped)).Inc()
		return OutcomeSkipped, nil
	}

	claimed, err := a.claim(ctx, res.SessionID)
	if err != nil {
		a.metrics.PersistOutcomes.WithLabelValues(string(OutcomeFailed)).Inc()
		return OutcomeFailed, fmt.Errorf("%w: %w", ErrPersistenceFailure, err)
	}
	if !claimed {
		a.metrics.PersistOutcomes.WithLabelValues(string(OutcomeDuplicate)).Inc()
		return OutcomeDuplicate, nil
	}

	completedAt := res.CompletedAt
	if completedAt.IsZero() {
		completedAt = time.Now().UTC()
	}
	username := identity.Username()

	inserted, err := a.store.Record(ctx, repository.ResultRecord{
		UserID:       identity.UserID,
		Username:     username,
		SessionID:    res.SessionID,
		Topic:        res.Topic,
		Difficulty:   res.Difficulty,
		Score:        res.Score,
		ScorePercent: res.Percent(),
		Total:        res.Total,
		CompletedAt:  completedAt,
	})
	if err != nil {
		a.metrics.PersistOutcomes.WithLabelValues(string(OutcomeFailed)).Inc()
		a.logger.Error().Err(err).Str("session_id", res.SessionID.String()).Msg("persist result failed")
		return OutcomeFailed, fmt.Errorf("%w: %w", ErrPersistenceFailure, err)
	}
	if !inserted {
		a.metrics.PersistOutcomes.WithLabelValues(string(OutcomeDuplicate)).Inc()
		return OutcomeDuplicate, nil
	}

	if a.board != nil {
		if err := a.board.RecordResult(ctx, leaderboard.RecordRequest{
			UserID:      identity.UserID,
			DisplayName: username,
			Score:       res.Score,
			SessionID:   res.SessionID,
			CompletedAt: completedAt,
		}); err != nil {
			a.logger.Warn().Err(err).Str("session_id", res.SessionID.String()).Msg("live leaderboard update failed")
		}
	}

	a.metrics.PersistOutcomes.WithLabelValues(string(OutcomeSaved)).Inc()
	a.logger.Info().
		Str("session_id", res.SessionID.String()).
		Str("user_id", identity.UserID.String()).
		Int("score", res.Score).
		Int("total", res.Total).
		Msg("quiz result saved")
	return OutcomeSaved, nil
}

// claim reserves the single persistence attempt for sessionID. The
// in-process set covers this replica; SETNX covers the others.
func (a *Aggregator) claim(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	now := time.Now()
	a.mu.Lock()
	if _, seen := a.attempted[sessionID]; seen {
		a.mu.Unlock()
		return false, nil
	}
	a.attempted[sessionID] = now
	a.pruneLocked(now)
	a.mu.Unlock()

	if a.redis == nil {
		return true, nil
	}
	ok, err := a.redis.SetNX(ctx, guardKey(sessionID), now.UTC().Format(time.RFC3339), a.guardTTL).Result()
	if err != nil {
		return false, fmt.Errorf("claim persist guard: %w", err)
	}
	return ok, nil
}

func (a *Aggregator) pruneLocked(now time.Time) {
	if len(a.attempted) < 1024 {
		return
	}
	for id, at := range a.attempted {
		if now.Sub(at) > a.guardTTL {
			delete(a.attempted, id)
		}
	}
}

func guardKey(sessionID uuid.UUID) string {
	return "result:persisted:" + sessionID.String()
}
