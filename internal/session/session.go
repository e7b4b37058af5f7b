package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gokatarajesh/quizmind/internal/question"
)

// Options configures a new session.
type Options struct {
	ID         uuid.UUID
	Topic      string
	Difficulty string
	Notifier   FeedbackNotifier
	Now        func() time.Time
}

// Session drives one player through an ordered question set.
// All transitions are serialised by mu, so a tick and a selection racing
// for the same question resolve to exactly one accepted outcome.
type Session struct {
	mu sync.Mutex

	id         uuid.UUID
	topic      string
	difficulty string
	notifier   FeedbackNotifier
	now        func() time.Time

	state         State
	questions     []question.Question
	timeLimit     int
	index         int
	score         int
	remaining     int
	answered      bool
	questionStart time.Time
	outcomes      []Outcome
	result        *Result
}

// New returns a NotStarted session.
func New(opts Options) *Session {
	id := opts.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Session{
		id:         id,
		topic:      opts.Topic,
		difficulty: opts.Difficulty,
		notifier:   opts.Notifier,
		now:        now,
		state:      StateNotStarted,
	}
}

// ID returns the session identifier.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// Start validates the question set and enters the first question.
// On error the session keeps no questions and stays NotStarted.
func (s *Session) Start(questions []question.Question, timeLimitSeconds int) error {
	if err := validateQuestions(questions, timeLimitSeconds); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateCompleted:
		return ErrSessionCompleted
	case StateInProgress:
		return fmt.Errorf("%w: session already started", ErrInvalidInput)
	}

	s.questions = append([]question.Question(nil), questions...)
	s.timeLimit = timeLimitSeconds
	s.index = 0
	s.score = 0
	s.outcomes = make([]Outcome, 0, len(questions))
	s.state = StateInProgress
	s.resetQuestion()
	return nil
}

func validateQuestions(questions []question.Question, timeLimitSeconds int) error {
	if len(questions) == 0 {
		return fmt.Errorf("%w: empty question list", ErrInvalidInput)
	}
	if timeLimitSeconds <= 0 {
		return fmt.Errorf("%w: time limit must be positive, got %d", ErrInvalidInput, timeLimitSeconds)
	}
	for i, q := range questions {
		if len(q.Options) != question.OptionCount {
			return fmt.Errorf("%w: question %d has %d options", ErrInvalidInput, i, len(q.Options))
		}
		if q.CorrectIndex < 0 || q.CorrectIndex >= question.OptionCount {
			return fmt.Errorf("%w: question %d correct index %d out of range", ErrInvalidInput, i, q.CorrectIndex)
		}
	}
	return nil
}

// resetQuestion gives the current question the full budget. Caller holds mu.
func (s *Session) resetQuestion() {
	s.remaining = s.timeLimit
	s.answered = false
	s.questionStart = s.now()
}

// SelectAnswer accepts the first answer for the current question.
func (s *Session) SelectAnswer(optionIndex int) (Outcome, error) {
	s.mu.Lock()
	switch {
	case s.state == StateCompleted:
		s.mu.Unlock()
		return Outcome{}, ErrSessionCompleted
	case s.state != StateInProgress:
		s.mu.Unlock()
		return Outcome{}, fmt.Errorf("%w: session not in progress", ErrAnswerRejected)
	case s.answered:
		s.mu.Unlock()
		return Outcome{}, fmt.Errorf("%w: question already answered", ErrAnswerRejected)
	case optionIndex < 0 || optionIndex >= len(s.questions[s.index].Options):
		s.mu.Unlock()
		return Outcome{}, fmt.Errorf("%w: option %d out of range", ErrAnswerRejected, optionIndex)
	}

	q := s.questions[s.index]
	correct := optionIndex == q.CorrectIndex
	if correct {
		s.score++
	}
	outcome := s.recordLocked(Outcome{
		Selected: optionIndex,
		Correct:  correct,
	})
	s.mu.Unlock()

	s.notify(outcome)
	return outcome, nil
}

// recordLocked fills the shared outcome fields and marks the question answered.
func (s *Session) recordLocked(o Outcome) Outcome {
	q := s.questions[s.index]
	o.QuestionIndex = s.index
	o.QuestionID = q.ID
	o.CorrectIndex = q.CorrectIndex
	o.Elapsed = s.now().Sub(s.questionStart)
	o.Score = s.score
	s.answered = true
	s.outcomes = append(s.outcomes, o)
	return o
}

func (s *Session) notify(o Outcome) {
	if s.notifier != nil {
		s.notifier.AnswerRecorded(s.id, o)
	}
}

// Tick consumes one second of the current question's budget. When the
// budget reaches zero an incorrect timed-out outcome is recorded. The bool
// is false when the tick was ignored.
func (s *Session) Tick() (TickEvent, bool) {
	s.mu.Lock()
	index := s.index
	s.mu.Unlock()
	return s.tickFor(index)
}

// tickFor applies a tick only if index is still the current question.
func (s *Session) tickFor(index int) (TickEvent, bool) {
	s.mu.Lock()
	if s.state != StateInProgress || s.answered || s.index != index {
		s.mu.Unlock()
		return TickEvent{}, false
	}

	if s.remaining > 0 {
		s.remaining--
	}
	ev := TickEvent{QuestionIndex: s.index, Remaining: s.remaining}
	if s.remaining > 0 {
		s.mu.Unlock()
		return ev, true
	}

	outcome := s.recordLocked(Outcome{
		Selected: NoSelection,
		TimedOut: true,
	})
	ev.Timeout = &outcome
	s.mu.Unlock()

	s.notify(outcome)
	return ev, true
}

// Advance moves past an answered question. After the last question it
// returns the Result and the session is Completed.
func (s *Session) Advance() (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateCompleted:
		return nil, ErrSessionCompleted
	case StateNotStarted:
		return nil, ErrNotStarted
	}
	if !s.answered {
		return nil, ErrNotAnswered
	}

	if s.index+1 < len(s.questions) {
		s.index++
		s.resetQuestion()
		return nil, nil
	}

	s.state = StateCompleted
	s.result = &Result{
		SessionID:   s.id,
		Score:       s.score,
		Total:       len(s.questions),
		Topic:       s.topic,
		Difficulty:  s.difficulty,
		CompletedAt: s.now().UTC(),
		Outcomes:    append([]Outcome(nil), s.outcomes...),
	}
	res := *s.result
	return &res, nil
}

// Result returns the terminal result once the session is Completed.
func (s *Session) Result() (*Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return nil, false
	}
	res := *s.result
	return &res, true
}

// Snapshot copies the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		ID:         s.id,
		Topic:      s.topic,
		Difficulty: s.difficulty,
		State:      s.state,
		Index:      s.index,
		Total:      len(s.questions),
		Score:      s.score,
		Remaining:  s.remaining,
		TimeLimit:  s.timeLimit,
		Answered:   s.answered,
	}
	if s.state == StateInProgress {
		snap.Current = newQuestionView(s.index, s.questions[s.index])
	}
	if n := len(s.outcomes); n > 0 && s.answered {
		last := s.outcomes[n-1]
		snap.LastOutcome = &last
	}
	if s.result != nil {
		res := *s.result
		snap.Result = &res
	}
	return snap
}
