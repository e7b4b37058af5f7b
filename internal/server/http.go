package server

import (
	"context"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/quizmind/internal/auth"
	"github.com/gokatarajesh/quizmind/internal/config"
	"github.com/gokatarajesh/quizmind/internal/leaderboard"
	"github.com/gokatarajesh/quizmind/internal/logging"
	"github.com/gokatarajesh/quizmind/internal/profile"
	"github.com/gokatarajesh/quizmind/internal/quiz"
)

// Pinger is a dependency checked by /v1/ping.
type Pinger func(ctx context.Context) error

// PostgresPinger checks the connection pool.
func PostgresPinger(pool *pgxpool.Pool) Pinger {
	return pool.Ping
}

// RedisPinger checks the Redis client.
func RedisPinger(client *redis.Client) Pinger {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}

// Handlers groups the route handlers mounted by NewHTTPServer.
// Any nil group is left unmounted.
type Handlers struct {
	Auth        *auth.HTTPHandlers
	AuthService *auth.Service
	Quiz        *quiz.HTTPHandlers
	QuizWS      *quiz.WSHandler
	Leaderboard *leaderboard.HTTPHandler
	Profile     *profile.Handler
	Gatherer    prometheus.Gatherer
	Pingers     []Pinger
}

// NewHTTPServer wires base routes (health, metrics) and the API for the quiz service.
func NewHTTPServer(cfg *config.App, logger zerolog.Logger, h Handlers) *http.Server {
	return &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: NewRouter(cfg, logger, h),
	}
}

// NewRouter builds the full handler chain: CORS, request logging, auth, routes.
func NewRouter(cfg *config.App, logger zerolog.Logger, h Handlers) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if h.Gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(h.Gatherer, promhttp.HandlerOpts{}))
	} else {
		mux.Handle("/metrics", promhttp.Handler())
	}

	mux.HandleFunc("/v1/ping", func(w http.ResponseWriter, r *http.Request) {
		if err := pingDependencies(r.Context(), h.Pingers); err != nil {
			reqLogger := logging.FromContext(r.Context())
			reqLogger.Error().Err(err).Msg("dependency ping failed")
			http.Error(w, "upstream error", http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"pong":true}`))
	})

	if h.Auth != nil {
		mux.HandleFunc("/v1/auth/register", h.Auth.Register)
		mux.HandleFunc("/v1/auth/login", h.Auth.Login)
		mux.HandleFunc("/v1/auth/guest", h.Auth.CreateGuest)
		mux.Handle("/v1/auth/convert", auth.RequireAuth(http.HandlerFunc(h.Auth.ConvertGuest)))
		mux.HandleFunc("/v1/auth/refresh", h.Auth.RefreshToken)
		mux.HandleFunc("/v1/oauth/{provider}/start", h.Auth.OAuthStart)
		mux.HandleFunc("/v1/oauth/{provider}/callback", h.Auth.OAuthCallback)
		mux.Handle("/v1/users/me", auth.RequireAuth(http.HandlerFunc(h.Auth.GetMe)))
	}

	if h.Quiz != nil {
		mux.HandleFunc("/v1/topics", h.Quiz.ListTopics)
		mux.HandleFunc("/v1/quizzes", h.Quiz.StartQuiz)
		mux.HandleFunc("/v1/quizzes/", h.Quiz.Route)
		mux.HandleFunc("/v1/training-plans", h.Quiz.TrainingPlan)
	}

	if h.QuizWS != nil {
		mux.HandleFunc("/ws/quizzes", h.QuizWS.HandleWebSocket)
	}

	if h.Leaderboard != nil {
		mux.HandleFunc("/v1/leaderboards/", h.Leaderboard.HandleGet)
	}

	if h.Profile != nil {
		mux.Handle("/v1/users/me/history", auth.RequireAuth(http.HandlerFunc(h.Profile.History)))
		mux.Handle("/v1/users/me/suggestions", auth.RequireAuth(http.HandlerFunc(h.Profile.Suggestions)))
	}

	var handler http.Handler = mux
	if h.AuthService != nil {
		handler = auth.AuthMiddleware(h.AuthService, logger)(handler)
	}
	handler = logging.Middleware(logger)(handler)
	return CORS(cfg.CORS)(handler)
}

func pingDependencies(ctx context.Context, pingers []Pinger) error {
	for _, ping := range pingers {
		if err := ping(ctx); err != nil {
			return err
		}
	}
	return nil
}
