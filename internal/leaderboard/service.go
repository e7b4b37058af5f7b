package leaderboard

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	ws "github.com/gokatarajesh/quizmind/pkg/http/ws"
)

// Supported leaderboard windows.
const (
	WindowDaily   = "daily"
	WindowWeekly  = "weekly"
	WindowMonthly = "monthly"
	WindowAllTime = "all_time"
)

var defaultWindows = []string{WindowDaily, WindowWeekly, WindowMonthly, WindowAllTime}

// Entry represents a leaderboard record sent to clients.
type Entry struct {
	UserID      uuid.UUID `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Score       int       `json:"score"`
	Games       int       `json:"games"`
}

// RecordRequest captures one completed quiz to fold into the windows.
type RecordRequest struct {
	UserID      uuid.UUID
	DisplayName string
	Score       int
	SessionID   uuid.UUID
	CompletedAt time.Time
}

// ServiceOptions configures leaderboard service behavior.
type ServiceOptions struct {
	TopN           int
	PubSubChannel  string
	Windows        []string
	RedisKeyPrefix string
	PublishLimit   int
	Now            func() time.Time
}

// Service manages leaderboard state in Redis and emits updates over Pub/Sub.
type Service struct {
	redis         *redis.Client
	logger        zerolog.Logger
	topN          int
	publishLimit  int
	pubsubChannel string
	windows       []string
	prefix        string
	now           func() time.Time
}

// NewService constructs a leaderboard service instance.
func NewService(redis *redis.Client, logger zerolog.Logger, opts ServiceOptions) *Service {
	topN := opts.TopN
	if topN <= 0 {
		topN = 50
	}
	channel := opts.PubSubChannel
	if channel == "" {
		channel = "lb:updates"
	}
	windows := opts.Windows
	if len(windows) == 0 {
		windows = defaultWindows
	}
	prefix := opts.RedisKeyPrefix
	if prefix == "" {
		prefix = "lb"
	}
	publishLimit := opts.PublishLimit
	if publishLimit <= 0 {
		publishLimit = 10
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		redis:         redis,
		logger:        logger.With().Str("component", "leaderboard").Logger(),
		topN:          topN,
		publishLimit:  publishLimit,
		pubsubChannel: channel,
		windows:       windows,
		prefix:        prefix,
		now:           now,
	}
}

// Windows lists the windows this service maintains.
func (s *Service) Windows() []string {
	return append([]string(nil), s.windows...)
}

// RecordResult adds a score to every window bucket covering the completion time.
func (s *Service) RecordResult(ctx context.Context, req RecordRequest) error {
	if req.UserID == uuid.Nil {
		return fmt.Errorf("record leaderboard result: missing user id")
	}
	at := req.CompletedAt
	if at.IsZero() {
		at = s.now()
	}

	pipe := s.redis.TxPipeline()
	for _, window := range s.windows {
		zKey := s.bucketKey(window, at)
		metaKey := s.metaKey(zKey, req.UserID)

		pipe.ZIncrBy(ctx, zKey, float64(req.Score), req.UserID.String())
		pipe.HIncrBy(ctx, metaKey, "games", 1)
		pipe.HSet(ctx, metaKey, map[string]interface{}{
			"display_name": req.DisplayName,
		})
		if ttl := windowTTL(window); ttl > 0 {
			pipe.Expire(ctx, zKey, ttl)
			pipe.Expire(ctx, metaKey, ttl)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("update leaderboard windows: %w", err)
	}

	go s.publishUpdate(context.Background(), req.SessionID, at)
	return nil
}

// Top retrieves the top entries for the current bucket of window.
func (s *Service) Top(ctx context.Context, window string, limit int) ([]Entry, error) {
	if !IsValidWindow(window) {
		return nil, fmt.Errorf("unknown leaderboard window %q", window)
	}
	return s.topAt(ctx, window, s.now(), limit)
}

func (s *Service) topAt(ctx context.Context, window string, at time.Time, limit int) ([]Entry, error) {
	if limit <= 0 || limit > s.topN {
		limit = s.topN
	}

	zKey := s.bucketKey(window, at)
	results, err := s.redis.ZRevRangeWithScores(ctx, zKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("fetch leaderboard: %w", err)
	}

	entries := make([]Entry, 0, len(results))
	for _, z := range results {
		member, _ := z.Member.(string)
		userID, err := uuid.Parse(member)
		if err != nil {
			s.logger.Warn().Str("member", member).Msg("skipping malformed leaderboard member")
			continue
		}
		entry, err := s.readMeta(ctx, zKey, userID)
		if err != nil {
			s.logger.Warn().Err(err).Msg("failed to read leaderboard metadata")
			continue
		}
		entry.Score = int(z.Score)
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *Service) publishUpdate(ctx context.Context, sessionID uuid.UUID, at time.Time) {
	for _, window := range s.windows {
		entries, err := s.topAt(ctx, window, at, s.publishLimit)
		if err != nil {
			s.logger.Warn().Err(err).Str("window", window).Msg("failed to collect leaderboard update")
			continue
		}
		if len(entries) == 0 {
			continue
		}

		payload := ws.LeaderboardUpdatePayload{
			Window: window,
			Top:    ToWSEntries(entries),
		}
		if sessionID != uuid.Nil {
			payload.SessionID = sessionID.String()
		}
		data, err := json.Marshal(payload)
		if err != nil {
			s.logger.Warn().Err(err).Msg("failed to marshal leaderboard update")
			continue
		}
		if err := s.redis.Publish(ctx, s.pubsubChannel, data).Err(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to publish leaderboard update")
		}
	}
}

func (s *Service) readMeta(ctx context.Context, zKey string, userID uuid.UUID) (Entry, error) {
	data, err := s.redis.HGetAll(ctx, s.metaKey(zKey, userID)).Result()
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		UserID:      userID,
		DisplayName: data["display_name"],
		Games:       parseInt(data["games"]),
	}, nil
}

// bucketKey maps a window and instant to the Redis key of its bucket, e.g.
// lb:daily:2026-10-19, lb:weekly:2026-W42, lb:monthly:2026-10, lb:all_time.
func (s *Service) bucketKey(window string, at time.Time) string {
	at = at.UTC()
	switch window {
	case WindowDaily:
		return fmt.Sprintf("%s:%s:%s", s.prefix, window, at.Format("2006-01-02"))
	case WindowWeekly:
		year, week := at.ISOWeek()
		return fmt.Sprintf("%s:%s:%d-W%02d", s.prefix, window, year, week)
	case WindowMonthly:
		return fmt.Sprintf("%s:%s:%s", s.prefix, window, at.Format("2006-01"))
	default:
		return fmt.Sprintf("%s:%s", s.prefix, window)
	}
}

func (s *Service) metaKey(zKey string, userID uuid.UUID) string {
	return fmt.Sprintf("%s:meta:%s", zKey, userID.String())
}

// windowTTL keeps a closed bucket around long enough to be snapshotted.
func windowTTL(window string) time.Duration {
	switch window {
	case WindowDaily:
		return 48 * time.Hour
	case WindowWeekly:
		return 15 * 24 * time.Hour
	case WindowMonthly:
		return 62 * 24 * time.Hour
	default:
		return 0
	}
}

// IsValidWindow reports whether window names a supported leaderboard.
func IsValidWindow(window string) bool {
	switch window {
	case WindowDaily, WindowWeekly, WindowMonthly, WindowAllTime:
		return true
	default:
		return false
	}
}

// ToWSEntries ranks entries in order for the wire.
func ToWSEntries(entries []Entry) []ws.LeaderboardEntry {
	result := make([]ws.LeaderboardEntry, len(entries))
	for i, e := range entries {
		result[i] = ws.LeaderboardEntry{
			Rank:        i + 1,
			UserID:      e.UserID.String(),
			DisplayName: e.DisplayName,
			Score:       e.Score,
			Games:       e.Games,
		}
	}
	return result
}

func parseInt(val string) int {
	if val == "" {
		return 0
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0
	}
	return i
}
