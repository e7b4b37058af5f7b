package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/quizmind/internal/metrics"
	"github.com/gokatarajesh/quizmind/internal/question"
)

// Event types emitted to the manager listener.
const (
	EventQuestion  = "question"
	EventTick      = "question_tick"
	EventAnswer    = "answer"
	EventCompleted = "completed"
)

// Event is a session change pushed to live clients.
type Event struct {
	SessionID uuid.UUID
	Type      string
	Question  *QuestionView
	Tick      *TickEvent
	Outcome   *Outcome
	Result    *Result
	Remaining int
	Total     int
}

// ManagerOptions configures the live session registry.
type ManagerOptions struct {
	TickInterval time.Duration
	IdleTTL      time.Duration
	Store        SnapshotStore
	Listener     func(Event)
	Metrics      *metrics.Recorder
}

// CreateRequest starts a session for an optional owner.
type CreateRequest struct {
	Owner            uuid.UUID
	Topic            string
	Difficulty       string
	Questions        []question.Question
	TimeLimitSeconds int
}

type entry struct {
	session    *Session
	owner      uuid.UUID
	countdown  *Countdown
	lastActive time.Time
}

// Manager owns live sessions, their countdowns and snapshots.
type Manager struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*entry

	opts     ManagerOptions
	onRemove []func(uuid.UUID)
	metrics  *metrics.Recorder
	logger   zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

func NewManager(opts ManagerOptions, logger zerolog.Logger) *Manager {
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = 30 * time.Minute
	}
	rec := opts.Metrics
	if rec == nil {
		rec = metrics.Nop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		sessions: make(map[uuid.UUID]*entry),
		opts:     opts,
		metrics:  rec,
		logger:   logger.With().Str("component", "session_manager").Logger(),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// AnswerRecorded forwards engine feedback to the listener.
func (m *Manager) AnswerRecorded(sessionID uuid.UUID, outcome Outcome) {
	label := "incorrect"
	switch {
	case outcome.TimedOut:
		label = "timeout"
	case outcome.Correct:
		label = "correct"
	}
	m.metrics.AnswersRecorded.WithLabelValues(label).Inc()
	m.emit(Event{SessionID: sessionID, Type: EventAnswer, Outcome: &outcome})
}

// Create validates and starts a session. Invalid input registers nothing.
func (m *Manager) Create(ctx context.Context, req CreateRequest) (Snapshot, error) {
	sess := New(Options{
		Topic:      req.Topic,
		Difficulty: req.Difficulty,
		Notifier:   m,
	})
	if err := sess.Start(req.Questions, req.TimeLimitSeconds); err != nil {
		return Snapshot{}, err
	}

	e := &entry{
		session:    sess,
		owner:      req.Owner,
		countdown:  NewCountdown(m.opts.TickInterval),
		lastActive: time.Now(),
	}
	m.mu.Lock()
	m.sessions[sess.ID()] = e
	m.mu.Unlock()

	m.metrics.SessionsStarted.WithLabelValues(req.Topic).Inc()
	m.logger.Info().
		Str("session_id", sess.ID().String()).
		Str("topic", req.Topic).
		Int("questions", len(req.Questions)).
		Msg("session started")

	snap := sess.Snapshot()
	m.save(ctx, snap)
	m.startQuestion(e, snap)
	return snap, nil
}

func (m *Manager) lookup(id uuid.UUID) (*entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return e, nil
}

func (m *Manager) touch(e *entry) {
	m.mu.Lock()
	e.lastActive = time.Now()
	m.mu.Unlock()
}

// Owner returns the user who started the session, or uuid.Nil for guests.
func (m *Manager) Owner(id uuid.UUID) (uuid.UUID, error) {
	e, err := m.lookup(id)
	if err != nil {
		return uuid.Nil, err
	}
	return e.owner, nil
}

// Get returns a live snapshot, falling back to the snapshot store.
func (m *Manager) Get(ctx context.Context, id uuid.UUID) (Snapshot, error) {
	e, err := m.lookup(id)
	if err == nil {
		return e.session.Snapshot(), nil
	}
	if m.opts.Store != nil {
		snap, loadErr := m.opts.Store.Load(ctx, id)
		if loadErr != nil {
			return Snapshot{}, fmt.Errorf("load snapshot: %w", loadErr)
		}
		if snap != nil {
			return *snap, nil
		}
	}
	return Snapshot{}, ErrSessionNotFound
}

// Result returns the terminal result of a completed live session.
func (m *Manager) Result(id uuid.UUID) (*Result, error) {
	e, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	res, ok := e.session.Result()
	if !ok {
		return nil, fmt.Errorf("%w: session still in progress", ErrNotAnswered)
	}
	return res, nil
}

// SelectAnswer records an answer and stops the question's countdown.
func (m *Manager) SelectAnswer(ctx context.Context, id uuid.UUID, optionIndex int) (Outcome, error) {
	e, err := m.lookup(id)
	if err != nil {
		return Outcome{}, err
	}
	m.touch(e)

	outcome, err := e.session.SelectAnswer(optionIndex)
	if err != nil {
		return Outcome{}, err
	}
	e.countdown.StopFor(outcome.QuestionIndex)
	m.save(ctx, e.session.Snapshot())
	return outcome, nil
}

// Advance moves to the next question or completes the session.
func (m *Manager) Advance(ctx context.Context, id uuid.UUID) (Snapshot, *Result, error) {
	e, err := m.lookup(id)
	if err != nil {
		return Snapshot{}, nil, err
	}
	m.touch(e)

	res, err := e.session.Advance()
	if err != nil {
		return Snapshot{}, nil, err
	}
	snap := e.session.Snapshot()
	m.save(ctx, snap)

	if res != nil {
		e.countdown.Stop()
		m.metrics.SessionsCompleted.WithLabelValues(res.Topic).Inc()
		m.logger.Info().
			Str("session_id", id.String()).
			Int("score", res.Score).
			Int("total", res.Total).
			Msg("session completed")
		m.emit(Event{SessionID: id, Type: EventCompleted, Result: res})
		return snap, res, nil
	}

	m.startQuestion(e, snap)
	return snap, nil, nil
}

// startQuestion announces the current question and restarts its countdown.
func (m *Manager) startQuestion(e *entry, snap Snapshot) {
	m.emit(Event{SessionID: snap.ID, Type: EventQuestion, Question: snap.Current, Remaining: snap.Remaining, Total: snap.Total})
	index := snap.Index
	e.countdown.Start(m.ctx, index, func() { m.tick(e, index) })
}

func (m *Manager) tick(e *entry, index int) {
	ev, ok := e.session.tickFor(index)
	if !ok {
		return
	}
	m.emit(Event{SessionID: e.session.ID(), Type: EventTick, Tick: &ev, Remaining: ev.Remaining})
	if ev.Timeout != nil {
		e.countdown.StopFor(index)
		ctx, cancel := context.WithTimeout(m.ctx, 2*time.Second)
		defer cancel()
		m.save(ctx, e.session.Snapshot())
	}
}

// OnRemove registers fn to run after a session is removed or evicted.
func (m *Manager) OnRemove(fn func(uuid.UUID)) {
	m.mu.Lock()
	m.onRemove = append(m.onRemove, fn)
	m.mu.Unlock()
}

func (m *Manager) removed(ids ...uuid.UUID) {
	m.mu.RLock()
	hooks := m.onRemove
	m.mu.RUnlock()
	for _, id := range ids {
		for _, fn := range hooks {
			fn(id)
		}
	}
}

// Remove discards a session and its snapshot.
func (m *Manager) Remove(ctx context.Context, id uuid.UUID) {
	m.mu.Lock()
	e, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return
	}
	e.countdown.Stop()
	m.removed(id)
	if m.opts.Store != nil {
		if err := m.opts.Store.Delete(ctx, id); err != nil {
			m.logger.Warn().Err(err).Str("session_id", id.String()).Msg("delete snapshot failed")
		}
	}
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// EvictIdle drops sessions untouched since before cutoff and returns how many.
func (m *Manager) EvictIdle(cutoff time.Time) int {
	m.mu.Lock()
	var stale []*entry
	var ids []uuid.UUID
	for id, e := range m.sessions {
		if e.lastActive.Before(cutoff) {
			stale = append(stale, e)
			ids = append(ids, id)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, e := range stale {
		e.countdown.Stop()
	}
	m.removed(ids...)
	return len(stale)
}

// RunJanitor evicts idle sessions until ctx is cancelled.
func (m *Manager) RunJanitor(ctx context.Context) {
	interval := m.opts.IdleTTL / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.EvictIdle(time.Now().Add(-m.opts.IdleTTL)); n > 0 {
				m.logger.Debug().Int("evicted", n).Msg("idle sessions evicted")
			}
		}
	}
}

// Close stops every countdown.
func (m *Manager) Close() {
	m.cancel()
}

func (m *Manager) save(ctx context.Context, snap Snapshot) {
	if m.opts.Store == nil {
		return
	}
	if err := m.opts.Store.Save(ctx, snap); err != nil && !errors.Is(err, context.Canceled) {
		m.logger.Warn().Err(err).Str("session_id", snap.ID.String()).Msg("save snapshot failed")
	}
}

func (m *Manager) emit(ev Event) {
	if m.opts.Listener != nil {
		m.opts.Listener(ev)
	}
}
