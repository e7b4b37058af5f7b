package quiz

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/quizmind/internal/ai"
	"github.com/gokatarajesh/quizmind/internal/question"
	"github.com/gokatarajesh/quizmind/internal/result"
	"github.com/gokatarajesh/quizmind/internal/session"
	ws "github.com/gokatarajesh/quizmind/pkg/http/ws"
)

func testQuestions(n int) []question.Question {
	qs := make([]question.Question, 0, n)
	for i := 0; i < n; i++ {
		qs = append(qs, question.Question{
			ID:           uuid.NewString(),
			Prompt:       "What is 2 + 2?",
			Options:      []string{"3", "4", "5", "22"},
			CorrectIndex: 1,
			Difficulty:   question.DifficultyEasy,
		})
	}
	return qs
}

type stubPacks struct {
	catalog *question.Catalog
	pack    question.Pack
	err     error
	got     question.PackRequest
}

func (s *stubPacks) Pack(_ context.Context, req question.PackRequest) (question.Pack, error) {
	s.got = req
	if s.err != nil {
		return question.Pack{}, s.err
	}
	return s.pack, nil
}

func (s *stubPacks) Catalog() *question.Catalog {
	return s.catalog
}

type stubAggregator struct {
	mu        sync.Mutex
	persisted []*result.Identity
	outcome   result.Outcome
	err       error
	feedback  result.Feedback
}

func (s *stubAggregator) RequestFeedback(_ context.Context, res session.Result) result.Feedback {
	fb := s.feedback
	if fb.PerformanceMessage == "" {
		fb.PerformanceMessage = result.PerformanceMessage(res.Ratio())
	}
	return fb
}

func (s *stubAggregator) Persist(_ context.Context, _ session.Result, identity *result.Identity) (result.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persisted = append(s.persisted, identity)
	if identity == nil {
		return result.OutcomeSkipped, nil
	}
	if s.err != nil {
		return result.OutcomeFailed, s.err
	}
	if s.outcome != "" {
		return s.outcome, nil
	}
	return result.OutcomeSaved, nil
}

func (s *stubAggregator) calls() []*result.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*result.Identity(nil), s.persisted...)
}

type mockPlanner struct {
	mock.Mock
}

func (m *mockPlanner) GenerateQuiz(ctx context.Context, req question.GenerateRequest) ([]question.Question, error) {
	args := m.Called(ctx, req)
	qs, _ := args.Get(0).([]question.Question)
	return qs, args.Error(1)
}

func (m *mockPlanner) TrainingPlan(ctx context.Context, req ai.TrainingPlanRequest) (*ai.TrainingPlan, error) {
	args := m.Called(ctx, req)
	plan, _ := args.Get(0).(*ai.TrainingPlan)
	return plan, args.Error(1)
}

type recordingHub struct {
	mu   sync.Mutex
	sent map[uuid.UUID][]ws.Message
}

func newRecordingHub() *recordingHub {
	return &recordingHub{sent: make(map[uuid.UUID][]ws.Message)}
}

func (h *recordingHub) BroadcastToSession(sessionID uuid.UUID, msg ws.Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sent[sessionID] = append(h.sent[sessionID], msg)
	return nil
}

func (h *recordingHub) types(sessionID uuid.UUID) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.sent[sessionID]))
	for _, msg := range h.sent[sessionID] {
		out = append(out, msg.Type)
	}
	return out
}

func (h *recordingHub) last(sessionID uuid.UUID, msgType string) (ws.Message, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	msgs := h.sent[sessionID]
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Type == msgType {
			return msgs[i], true
		}
	}
	return ws.Message{}, false
}

type fixture struct {
	svc     *Service
	packs   *stubPacks
	agg     *stubAggregator
	planner *mockPlanner
	hub     *recordingHub
	manager *session.Manager
}

func newFixture(t *testing.T, questions int) *fixture {
	t.Helper()
	hub := newRecordingHub()
	f := newFixtureWithHub(t, questions, hub)
	f.hub = hub
	return f
}

func newFixtureWithHub(t *testing.T, questions int, hub SessionBroadcaster) *fixture {
	t.Helper()
	catalog, err := question.DefaultCatalog()
	require.NoError(t, err)

	f := &fixture{
		packs: &stubPacks{
			catalog: catalog,
			pack: question.Pack{
				Topic:      "arithmetic",
				TopicName:  "Arithmetic",
				Difficulty: question.DifficultyEasy,
				Source:     question.SourceCatalog,
				Questions:  testQuestions(questions),
			},
		},
		agg:     &stubAggregator{},
		planner: &mockPlanner{},
	}
	relay := NewRelay(hub, zerolog.Nop())
	f.manager = session.NewManager(session.ManagerOptions{
		TickInterval: time.Hour,
		IdleTTL:      time.Minute,
		Listener:     relay.Relay,
	}, zerolog.Nop())
	t.Cleanup(f.manager.Close)

	f.svc = NewService(f.packs, f.manager, f.agg, f.planner, relay, ServiceOptions{
		TimeLimit: 15 * time.Second,
	}, zerolog.Nop())
	return f
}

func playAll(t *testing.T, svc *Service, id uuid.UUID, identity *result.Identity, total int) *session.Result {
	t.Helper()
	ctx := context.Background()
	var res *session.Result
	for i := 0; i < total; i++ {
		_, err := svc.Answer(ctx, id, identity, 1)
		require.NoError(t, err)
		_, res, err = svc.Advance(ctx, id, identity)
		require.NoError(t, err)
	}
	require.NotNil(t, res)
	return res
}
