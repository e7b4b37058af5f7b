package question

import (
	"context"
	"errors"
	"fmt"
	"html"
	"math/rand"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/gokatarajesh/quizmind/internal/metrics"
	"github.com/gokatarajesh/quizmind/internal/question/external"
)

// ErrInvalidRequest reports a pack request the service refuses to serve.
var ErrInvalidRequest = errors.New("invalid pack request")

// PackCache defines cache behavior (implemented by Redis-backed Cache).
type PackCache interface {
	Get(ctx context.Context, req PackRequest) (*Pack, error)
	Set(ctx context.Context, req PackRequest, pack Pack) error
}

// Generator produces questions for free-form topics.
type Generator interface {
	GenerateQuiz(ctx context.Context, req GenerateRequest) ([]Question, error)
}

// GenerateRequest asks a generator for Count questions about Topic.
type GenerateRequest struct {
	Topic      string
	Count      int
	Difficulty string
}

type opentdbProvider interface {
	Fetch(ctx context.Context, amount int, difficulty string) ([]external.OpenTDBQuestion, error)
}

type triviaProvider interface {
	Fetch(ctx context.Context, amount int, topic, difficulty string) ([]external.TriviaAPIQuestion, error)
}

// ServiceOptions configures defaults and optional collaborators.
type ServiceOptions struct {
	DefaultCount int
	MaxCount     int
	OpenTDB      opentdbProvider
	TriviaAPI    triviaProvider
	Metrics      *metrics.Recorder
}

// Service resolves question packs: curated catalog first, then cache, AI and public trivia APIs.
type Service struct {
	catalog      *Catalog
	cache        PackCache
	generator    Generator
	opentdb      opentdbProvider
	triviaAPI    triviaProvider
	defaultCount int
	maxCount     int
	sf           singleflight.Group
	metrics      *metrics.Recorder
	logger       zerolog.Logger
}

func NewService(catalog *Catalog, cache PackCache, generator Generator, opts ServiceOptions, logger zerolog.Logger) *Service {
	if opts.DefaultCount <= 0 {
		opts.DefaultCount = 5
	}
	if opts.MaxCount <= 0 {
		opts.MaxCount = 100
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Nop()
	}
	return &Service{
		catalog:      catalog,
		cache:        cache,
		generator:    generator,
		opentdb:      opts.OpenTDB,
		triviaAPI:    opts.TriviaAPI,
		defaultCount: opts.DefaultCount,
		maxCount:     opts.MaxCount,
		metrics:      opts.Metrics,
		logger:       logger.With().Str("component", "question_service").Logger(),
	}
}

// Catalog exposes the curated topic table.
func (s *Service) Catalog() *Catalog {
	return s.catalog
}

// Pack returns the ordered questions for a new session.
func (s *Service) Pack(ctx context.Context, req PackRequest) (Pack, error) {
	req.Topic = strings.TrimSpace(req.Topic)
	if req.Topic == "" {
		return Pack{}, fmt.Errorf("%w: topic required", ErrInvalidRequest)
	}
	if req.Difficulty != "" && !IsValidDifficulty(req.Difficulty) {
		return Pack{}, fmt.Errorf("%w: unknown difficulty %q", ErrInvalidRequest, req.Difficulty)
	}
	if req.Count < 0 || req.Count > s.maxCount {
		return Pack{}, fmt.Errorf("%w: count must be within 1..%d", ErrInvalidRequest, s.maxCount)
	}

	if topic, ok := s.catalog.Topic(req.Topic); ok {
		s.metrics.QuestionPackSource.WithLabelValues(SourceCatalog).Inc()
		return catalogPack(topic, req.Count), nil
	}

	if req.Count == 0 {
		req.Count = s.defaultCount
	}

	if cached, err := s.cache.Get(ctx, req); err == nil && cached != nil {
		s.metrics.QuestionPackSource.WithLabelValues("cache").Inc()
		return *cached, nil
	} else if err != nil {
		s.logger.Warn().Err(err).Str("topic", req.Topic).Msg("pack cache read failed")
	}

	v, err, _ := s.sf.Do(cacheKey(req), func() (interface{}, error) {
		return s.generate(ctx, req)
	})
	if err != nil {
		return Pack{}, err
	}
	pack := v.(Pack)

	if err := s.cache.Set(ctx, req, pack); err != nil {
		s.logger.Warn().Err(err).Str("topic", req.Topic).Msg("pack cache write failed")
	}
	return pack, nil
}

func catalogPack(topic Topic, count int) Pack {
	qs := topic.Questions
	if count > 0 && count < len(qs) {
		qs = qs[:count]
	}
	out := make([]Question, len(qs))
	copy(out, qs)
	return Pack{
		Topic:      topic.Slug,
		TopicName:  topic.Name,
		Difficulty: topic.Difficulty,
		Source:     SourceCatalog,
		Questions:  out,
	}
}

func (s *Service) generate(ctx context.Context, req PackRequest) (Pack, error) {
	var (
		collected []Question
		source    = SourceAI
	)

	if s.generator != nil {
		qs, err := s.generator.GenerateQuiz(ctx, GenerateRequest{Topic: req.Topic, Count: req.Count, Difficulty: req.Difficulty})
		if err != nil {
			s.logger.Warn().Err(err).Str("topic", req.Topic).Msg("ai generation failed, trying external providers")
		}
		collected = appendValid(collected, qs, s.logger)
	}

	if len(collected) < req.Count {
		ext := s.fetchExternal(ctx, req, req.Count-len(collected))
		if len(collected) == 0 && len(ext) > 0 {
			source = ext[0].Source
		}
		collected = appendValid(collected, ext, s.logger)
	}

	if len(collected) == 0 {
		return Pack{}, fmt.Errorf("%w for topic %q", ErrNoQuestions, req.Topic)
	}
	if len(collected) > req.Count {
		collected = collected[:req.Count]
	}

	s.metrics.QuestionPackSource.WithLabelValues(source).Inc()
	return Pack{
		Topic:      req.Topic,
		TopicName:  req.Topic,
		Difficulty: packDifficulty(req.Difficulty, collected),
		Source:     source,
		Questions:  collected,
	}, nil
}

func (s *Service) fetchExternal(ctx context.Context, req PackRequest, limit int) []Question {
	var combined []Question
	if s.triviaAPI != nil {
		if tv, err := s.triviaAPI.Fetch(ctx, limit, req.Topic, req.Difficulty); err == nil {
			for _, q := range tv {
				if nq, ok := normalizeTriviaAPI(q); ok {
					combined = append(combined, nq)
				}
			}
		} else {
			s.logger.Warn().Err(err).Msg("triviaapi fetch failed")
		}
	}
	if s.opentdb != nil && len(combined) < limit {
		if ot, err := s.opentdb.Fetch(ctx, limit-len(combined), req.Difficulty); err == nil {
			for _, q := range ot {
				if nq, ok := normalizeOpenTDB(q); ok {
					combined = append(combined, nq)
				}
			}
		} else {
			s.logger.Warn().Err(err).Msg("opentdb fetch failed")
		}
	}
	if len(combined) > limit {
		combined = combined[:limit]
	}
	return combined
}

func appendValid(dst, src []Question, logger zerolog.Logger) []Question {
	for _, q := range src {
		if err := q.Validate(); err != nil {
			logger.Debug().Err(err).Str("source", q.Source).Msg("dropping invalid question")
			continue
		}
		if q.ID == "" {
			q.ID = uuid.NewString()
		}
		dst = append(dst, q)
	}
	return dst
}

// packDifficulty prefers the requested label, then the most frequent question label.
func packDifficulty(requested string, qs []Question) string {
	if requested != "" {
		return requested
	}
	counts := map[string]int{}
	best, bestN := DifficultyMedium, 0
	for _, d := range []string{DifficultyEasy, DifficultyMedium, DifficultyHard} {
		for _, q := range qs {
			if q.Difficulty == d {
				counts[d]++
			}
		}
		if counts[d] > bestN {
			best, bestN = d, counts[d]
		}
	}
	return best
}

func normalizeOpenTDB(q external.OpenTDBQuestion) (Question, bool) {
	if len(q.IncorrectAnswer) != OptionCount-1 {
		return Question{}, false
	}
	incorrect := make([]string, len(q.IncorrectAnswer))
	for i, a := range q.IncorrectAnswer {
		incorrect[i] = html.UnescapeString(a)
	}
	options, idx := shuffleOptions(html.UnescapeString(q.CorrectAnswer), incorrect)
	return Question{
		ID:           uuid.NewString(),
		Prompt:       html.UnescapeString(q.Question),
		Options:      options,
		CorrectIndex: idx,
		Difficulty:   q.Difficulty,
		Source:       SourceOpenTDB,
	}, true
}

func normalizeTriviaAPI(q external.TriviaAPIQuestion) (Question, bool) {
	if len(q.Incorrect) != OptionCount-1 {
		return Question{}, false
	}
	options, idx := shuffleOptions(q.Correct, q.Incorrect)
	id := q.ID
	if id == "" {
		id = uuid.NewString()
	}
	return Question{
		ID:           id,
		Prompt:       q.Question.Text,
		Options:      options,
		CorrectIndex: idx,
		Difficulty:   q.Difficulty,
		Source:       SourceTriviaAPI,
	}, true
}

func shuffleOptions(correct string, incorrect []string) ([]string, int) {
	options := append([]string{correct}, incorrect...)
	rand.Shuffle(len(options), func(i, j int) { options[i], options[j] = options[j], options[i] })
	for i, opt := range options {
		if opt == correct {
			return options, i
		}
	}
	return options, 0
}
