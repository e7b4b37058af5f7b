package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/quizmind/internal/ai"
	"github.com/gokatarajesh/quizmind/internal/auth"
	"github.com/gokatarajesh/quizmind/internal/auth/jwt"
	"github.com/gokatarajesh/quizmind/internal/config"
	"github.com/gokatarajesh/quizmind/internal/db/repository"
	sqlcgen "github.com/gokatarajesh/quizmind/internal/db/sqlc"
	"github.com/gokatarajesh/quizmind/internal/leaderboard"
	"github.com/gokatarajesh/quizmind/internal/logging"
	"github.com/gokatarajesh/quizmind/internal/metrics"
	"github.com/gokatarajesh/quizmind/internal/profile"
	"github.com/gokatarajesh/quizmind/internal/question"
	"github.com/gokatarajesh/quizmind/internal/question/external"
	"github.com/gokatarajesh/quizmind/internal/quiz"
	"github.com/gokatarajesh/quizmind/internal/result"
	"github.com/gokatarajesh/quizmind/internal/server"
	"github.com/gokatarajesh/quizmind/internal/session"
	ws "github.com/gokatarajesh/quizmind/pkg/http/ws"
)

// Application aggregates shared infrastructure (DB, cache, HTTP server).
type Application struct {
	cfg    *config.App
	logger zerolog.Logger

	pool  *pgxpool.Pool
	redis *redis.Client
	http  *http.Server

	sessions       *session.Manager
	quizSvc        *quiz.Service
	lbBroadcaster  *leaderboard.Broadcaster
	snapshotWorker *leaderboard.SnapshotWorker
	bgCancels      []context.CancelFunc
}

// New bootstraps configs, logger, Postgres, Redis and HTTP server.
func New(ctx context.Context, cfg *config.App) (*Application, error) {
	logger := logging.New(cfg.Name, cfg.Env)
	logger.Info().Msg("starting application bootstrap")

	poolCfg, err := pgxpool.ParseConfig(cfg.Postgres.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	if cfg.Postgres.MaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.Postgres.MaxConns)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.New(registry)

	queries := sqlcgen.New(pool)
	userRepo := repository.NewUserRepository(queries)
	historyRepo := repository.NewHistoryRepository(queries)
	leaderboardRepo := repository.NewLeaderboardRepository(queries)
	resultRepo := repository.NewResultRepository(pool)

	// Auth
	authSvc := auth.NewService(userRepo, auth.ServiceOptions{
		TokenConfig: jwt.TokenConfig{
			AccessSecret:  []byte(cfg.Security.JWTSecret),
			RefreshSecret: []byte(cfg.Security.JWTRefreshSecret),
			AccessTTL:     cfg.Security.AccessTTL,
			RefreshTTL:    cfg.Security.RefreshTTL,
			Issuer:        cfg.Name,
			Leeway:        cfg.Security.Leeway,
		},
	}, logger)

	var oauthSvc *auth.OAuthService
	if cfg.OAuth.GoogleClientID != "" && cfg.OAuth.GoogleClientSecret != "" {
		redirectURL := cfg.OAuth.GoogleRedirectURL
		if redirectURL == "" {
			redirectURL = fmt.Sprintf("http://%s/v1/oauth/google/callback", cfg.HTTPAddr)
		}
		oauthSvc = auth.NewOAuthService(cfg.OAuth.GoogleClientID, cfg.OAuth.GoogleClientSecret, redirectURL, logger)
		logger.Info().Msg("OAuth service initialized")
	} else {
		logger.Warn().Msg("OAuth not configured (missing GOOGLE_OAUTH_CLIENT_ID or GOOGLE_OAUTH_CLIENT_SECRET)")
	}
	authHandlers := auth.NewHTTPHandlers(authSvc, oauthSvc, logger)

	// Suggestion service and question sources
	aiClient := ai.NewClient(ai.Config{
		BaseURL:     cfg.AI.BaseURL,
		APIKey:      cfg.AI.APIKey,
		Model:       cfg.AI.Model,
		Temperature: cfg.AI.Temperature,
		Timeout:     cfg.AI.HTTPTimeout,
	}, recorder, logger)

	var generator question.Generator
	if cfg.AI.APIKey != "" {
		generator = aiClient
	} else {
		logger.Warn().Msg("AI_API_KEY not set; free-form topics fall back to public trivia APIs")
	}

	catalog, err := question.DefaultCatalog()
	if err != nil {
		return nil, fmt.Errorf("load topic catalog: %w", err)
	}

	questionOpts := question.ServiceOptions{
		DefaultCount: cfg.Quiz.DefaultQuestionCount,
		MaxCount:     cfg.Quiz.MaxQuestionCount,
		Metrics:      recorder,
	}
	if cfg.External.Enabled {
		httpClient := &http.Client{Timeout: cfg.External.HTTPTimeout}
		questionOpts.OpenTDB = external.NewOpenTDBClient(cfg.External.OpenTDBURL, httpClient)
		questionOpts.TriviaAPI = external.NewTriviaAPIClient(cfg.External.TriviaAPIURL, httpClient)
	}
	questionSvc := question.NewService(catalog, question.NewCache(redisClient, cfg.Quiz.PackCacheTTL), generator, questionOpts, logger)

	// Live sessions
	wsHub := ws.NewHub(logger)
	relay := quiz.NewRelay(wsHub, logger)
	sessions := session.NewManager(session.ManagerOptions{
		IdleTTL:  cfg.Quiz.SessionIdleTTL,
		Store:    session.NewRedisStore(redisClient, cfg.Quiz.SessionIdleTTL),
		Listener: relay.Relay,
		Metrics:  recorder,
	}, logger)

	// Results and leaderboards
	leaderboardSvc := leaderboard.NewService(redisClient, logger, leaderboard.ServiceOptions{
		TopN:          cfg.Leaderboard.SnapshotTopN,
		PubSubChannel: cfg.Leaderboard.PubSubChannel,
	})
	aggregator := result.NewAggregator(aiClient, resultRepo, leaderboardSvc, redisClient, result.Options{
		GuardTTL: cfg.Quiz.PersistGuardTTL,
		Metrics:  recorder,
	}, logger)

	quizSvc := quiz.NewService(questionSvc, sessions, aggregator, aiClient, relay, quiz.ServiceOptions{
		TimeLimit: cfg.Quiz.QuestionTimeLimit,
	}, logger)

	lbBroadcaster := leaderboard.NewBroadcaster(redisClient, wsHub, cfg.Leaderboard.PubSubChannel, logger)
	var snapshotWorker *leaderboard.SnapshotWorker
	if interval := cfg.Leaderboard.SnapshotInterval; interval > 0 {
		snapshotWorker = leaderboard.NewSnapshotWorker(leaderboardSvc, leaderboardRepo, interval, cfg.Leaderboard.SnapshotTopN, logger)
	}

	apiServer := server.NewHTTPServer(cfg, logger, server.Handlers{
		Auth:        authHandlers,
		AuthService: authSvc,
		Quiz:        quiz.NewHTTPHandlers(quizSvc, logger),
		QuizWS:      quiz.NewWSHandler(quizSvc, wsHub, cfg.CORS.AllowedOrigins, logger),
		Leaderboard: leaderboard.NewHTTPHandler(leaderboardSvc, leaderboardRepo, cfg.Leaderboard.DefaultLimit, logger),
		Profile:     profile.NewHandler(historyRepo, aiClient, catalog.Names, logger),
		Gatherer:    registry,
		Pingers:     []server.Pinger{server.PostgresPinger(pool), server.RedisPinger(redisClient)},
	})

	return &Application{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		redis:          redisClient,
		http:           apiServer,
		sessions:       sessions,
		quizSvc:        quizSvc,
		lbBroadcaster:  lbBroadcaster,
		snapshotWorker: snapshotWorker,
		bgCancels:      make([]context.CancelFunc, 0, 3),
	}, nil
}

// Run starts the HTTP server and waits for termination signals.
func (a *Application) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	a.startBackgroundWorkers(ctx)

	go func() {
		a.logger.Info().Str("addr", a.cfg.HTTPAddr).Msg("http server listening")
		if err := a.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigCh:
		a.logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		runErr = fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
		a.logger.Warn().Msg("context canceled")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.GracefulShutdownTimeout)
	defer cancel()

	if err := a.http.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("http shutdown error")
	}

	a.sessions.Close()
	a.quizSvc.Wait()

	for _, cancel := range a.bgCancels {
		cancel()
	}

	a.pool.Close()
	if err := a.redis.Close(); err != nil {
		a.logger.Error().Err(err).Msg("redis shutdown error")
	}

	a.logger.Info().Msg("shutdown complete")
	return runErr
}

func (a *Application) startBackgroundWorkers(ctx context.Context) {
	bgCtx, cancel := context.WithCancel(ctx)
	a.bgCancels = append(a.bgCancels, cancel)
	go a.sessions.RunJanitor(bgCtx)

	if a.lbBroadcaster != nil {
		bgCtx, cancel := context.WithCancel(ctx)
		a.bgCancels = append(a.bgCancels, cancel)
		go func() {
			if err := a.lbBroadcaster.Run(bgCtx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Warn().Err(err).Msg("leaderboard broadcaster stopped")
			}
		}()
	}

	if a.snapshotWorker != nil {
		bgCtx, cancel := context.WithCancel(ctx)
		a.bgCancels = append(a.bgCancels, cancel)
		go func() {
			if err := a.snapshotWorker.Run(bgCtx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Warn().Err(err).Msg("leaderboard snapshot worker stopped")
			}
		}()
	}
}
