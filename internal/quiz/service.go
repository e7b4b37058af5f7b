package quiz

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/quizmind/internal/ai"
	"github.com/gokatarajesh/quizmind/internal/question"
	"github.com/gokatarajesh/quizmind/internal/result"
	"github.com/gokatarajesh/quizmind/internal/session"
)

var (
	// ErrForbidden is returned when a player touches another player's session.
	ErrForbidden = errors.New("session belongs to another player")
	// ErrInProgress is returned when feedback is requested before the last question.
	ErrInProgress = errors.New("quiz still in progress")
)

// PackSource resolves question packs and the curated catalog.
type PackSource interface {
	Pack(ctx context.Context, req question.PackRequest) (question.Pack, error)
	Catalog() *question.Catalog
}

// Aggregator handles finished sessions.
type Aggregator interface {
	RequestFeedback(ctx context.Context, res session.Result) result.Feedback
	Persist(ctx context.Context, res session.Result, identity *result.Identity) (result.Outcome, error)
}

// Planner generates ad hoc quizzes and training plans.
type Planner interface {
	GenerateQuiz(ctx context.Context, req question.GenerateRequest) ([]question.Question, error)
	TrainingPlan(ctx context.Context, req ai.TrainingPlanRequest) (*ai.TrainingPlan, error)
}

// StartRequest is the body of POST /v1/quizzes.
type StartRequest struct {
	Topic      string `json:"topic"`
	Difficulty string `json:"difficulty,omitempty"`
	Count      int    `json:"count,omitempty"`
}

// PersistStatus is the last known outcome of saving a session's result.
type PersistStatus struct {
	OK      bool   `json:"ok"`
	Skipped bool   `json:"skipped,omitempty"`
	Pending bool   `json:"pending,omitempty"`
	Message string `json:"message,omitempty"`
}

// Persist status messages shown to players.
const (
	persistSavedMessage   = "Your score has been saved."
	persistSkippedMessage = "Sign in to save your score to the leaderboard."
	persistFailedMessage  = "We couldn't save your score. Your result is still shown."
)

// ServiceOptions configures the quiz service.
type ServiceOptions struct {
	TimeLimit      time.Duration
	PersistTimeout time.Duration
}

// Service runs quiz sessions end to end: pack, play, feedback and persistence.
type Service struct {
	packs      PackSource
	sessions   *session.Manager
	aggregator Aggregator
	planner    Planner
	relay      *Relay
	timeLimit  int
	persistTO  time.Duration
	logger     zerolog.Logger

	mu      sync.Mutex
	tracked map[uuid.UUID]*sessionState
	wg      sync.WaitGroup
}

// sessionState is kept per live session: who started it and, once completed,
// how persistence went.
type sessionState struct {
	identity *result.Identity
	persist  *PersistStatus
}

func NewService(packs PackSource, sessions *session.Manager, aggregator Aggregator, planner Planner, relay *Relay, opts ServiceOptions, logger zerolog.Logger) *Service {
	if opts.TimeLimit < time.Second {
		opts.TimeLimit = 15 * time.Second
	}
	if opts.PersistTimeout <= 0 {
		opts.PersistTimeout = 10 * time.Second
	}
	if relay == nil {
		relay = NewRelay(nil, logger)
	}
	s := &Service{
		packs:      packs,
		sessions:   sessions,
		aggregator: aggregator,
		planner:    planner,
		relay:      relay,
		timeLimit:  int(opts.TimeLimit / time.Second),
		persistTO:  opts.PersistTimeout,
		logger:     logger.With().Str("component", "quiz_service").Logger(),
		tracked:    make(map[uuid.UUID]*sessionState),
	}
	sessions.OnRemove(s.forget)
	return s
}

// Topics lists the curated catalog.
func (s *Service) Topics() []question.Topic {
	return s.packs.Catalog().Topics()
}

// TopicNames lists catalog display names.
func (s *Service) TopicNames() []string {
	return s.packs.Catalog().Names()
}

// Start resolves a question pack and opens a session owned by identity (nil for anonymous play).
func (s *Service) Start(ctx context.Context, req StartRequest, identity *result.Identity) (session.Snapshot, question.Pack, error) {
	pack, err := s.packs.Pack(ctx, question.PackRequest{
		Topic:      req.Topic,
		Difficulty: req.Difficulty,
		Count:      req.Count,
	})
	if err != nil {
		return session.Snapshot{}, question.Pack{}, err
	}

	var owner uuid.UUID
	if identity != nil {
		owner = identity.UserID
	}
	snap, err := s.sessions.Create(ctx, session.CreateRequest{
		Owner:            owner,
		Topic:            pack.TopicName,
		Difficulty:       pack.Difficulty,
		Questions:        pack.Questions,
		TimeLimitSeconds: s.timeLimit,
	})
	if err != nil {
		return session.Snapshot{}, question.Pack{}, err
	}

	var owned *result.Identity
	if identity != nil {
		copied := *identity
		owned = &copied
	}
	s.mu.Lock()
	s.tracked[snap.ID] = &sessionState{identity: owned}
	s.mu.Unlock()
	return snap, pack, nil
}

// State returns the session view and, once completed, the persistence status.
func (s *Service) State(ctx context.Context, id uuid.UUID, identity *result.Identity) (session.Snapshot, *PersistStatus, error) {
	if err := s.authorize(id, identity); err != nil && !errors.Is(err, session.ErrSessionNotFound) {
		return session.Snapshot{}, nil, err
	}
	snap, err := s.sessions.Get(ctx, id)
	if err != nil {
		return session.Snapshot{}, nil, err
	}
	status, ok := s.persistStatus(id)
	if !ok {
		return snap, nil, nil
	}
	return snap, &status, nil
}

// Answer records the player's choice for the current question.
func (s *Service) Answer(ctx context.Context, id uuid.UUID, identity *result.Identity, optionIndex int) (session.Outcome, error) {
	if err := s.authorize(id, identity); err != nil {
		return session.Outcome{}, err
	}
	return s.sessions.SelectAnswer(ctx, id, optionIndex)
}

// Advance moves past the answered question. On completion the result is
// persisted in the background for the identity that started the session,
// whoever sends the final advance, and the final result returned.
func (s *Service) Advance(ctx context.Context, id uuid.UUID, identity *result.Identity) (session.Snapshot, *session.Result, error) {
	if err := s.authorize(id, identity); err != nil {
		return session.Snapshot{}, nil, err
	}
	snap, res, err := s.sessions.Advance(ctx, id)
	if err != nil || res == nil {
		return snap, res, err
	}

	owner := s.startedBy(id)
	s.setPersistStatus(id, PersistStatus{Pending: true})
	s.wg.Add(1)
	go func(res session.Result) {
		defer s.wg.Done()
		s.persist(res, owner)
	}(*res)
	return snap, res, nil
}

func (s *Service) persist(res session.Result, identity *result.Identity) {
	ctx, cancel := context.WithTimeout(context.Background(), s.persistTO)
	defer cancel()

	var status PersistStatus
	outcome, err := s.aggregator.Persist(ctx, res, identity)
	switch {
	case err != nil:
		s.logger.Warn().Err(err).Str("session_id", res.SessionID.String()).Msg("result persistence failed")
		status = PersistStatus{OK: false, Message: persistFailedMessage}
	case outcome == result.OutcomeSkipped:
		status = PersistStatus{OK: true, Skipped: true, Message: persistSkippedMessage}
	default:
		status = PersistStatus{OK: true, Message: persistSavedMessage}
	}
	s.setPersistStatus(res.SessionID, status)
	s.relay.PersistStatus(res.SessionID, status)
}

// Feedback requests AI feedback for a completed session and pushes it to live watchers.
func (s *Service) Feedback(ctx context.Context, id uuid.UUID, identity *result.Identity) (*session.Result, result.Feedback, error) {
	if err := s.authorize(id, identity); err != nil {
		return nil, result.Feedback{}, err
	}
	res, err := s.sessions.Result(id)
	if errors.Is(err, session.ErrNotAnswered) {
		return nil, result.Feedback{}, fmt.Errorf("%w: %s", ErrInProgress, id)
	}
	if err != nil {
		return nil, result.Feedback{}, err
	}
	fb := s.aggregator.RequestFeedback(ctx, *res)
	s.relay.Feedback(id, fb)
	return res, fb, nil
}

// Generate previews an AI generated quiz without starting a session.
func (s *Service) Generate(ctx context.Context, req question.GenerateRequest) ([]question.Question, error) {
	if s.planner == nil {
		return nil, ai.ErrSuggestionUnavailable
	}
	return s.planner.GenerateQuiz(ctx, req)
}

// TrainingPlan builds a practice quiz with study resources.
func (s *Service) TrainingPlan(ctx context.Context, req ai.TrainingPlanRequest) (*ai.TrainingPlan, error) {
	if s.planner == nil {
		return nil, ai.ErrSuggestionUnavailable
	}
	return s.planner.TrainingPlan(ctx, req)
}

// Wait blocks until background persistence finishes.
func (s *Service) Wait() {
	s.wg.Wait()
}

// authorize lets anyone play an anonymous session; owned sessions need the owner.
func (s *Service) authorize(id uuid.UUID, identity *result.Identity) error {
	owner, err := s.sessions.Owner(id)
	if err != nil {
		return err
	}
	if owner == uuid.Nil {
		return nil
	}
	if identity == nil || identity.UserID != owner {
		return fmt.Errorf("%w: %s", ErrForbidden, id)
	}
	return nil
}

func (s *Service) startedBy(id uuid.UUID) *result.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tracked[id]; ok {
		return t.identity
	}
	return nil
}

// setPersistStatus is a no-op once the session has been forgotten.
func (s *Service) setPersistStatus(id uuid.UUID, status PersistStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tracked[id]; ok {
		t.persist = &status
	}
}

func (s *Service) persistStatus(id uuid.UUID) (PersistStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tracked[id]
	if !ok || t.persist == nil {
		return PersistStatus{}, false
	}
	return *t.persist, true
}

// forget drops per-session state when the manager removes or evicts a session.
func (s *Service) forget(id uuid.UUID) {
	s.mu.Lock()
	delete(s.tracked, id)
	s.mu.Unlock()
}
