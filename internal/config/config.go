package config

import (
	"context"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// App holds core runtime configuration shared across services.
type App struct {
	Name                    string        `env:"APP_NAME" envDefault:"quizmind"`
	Env                     string        `env:"APP_ENV" envDefault:"development"`
	HTTPAddr                string        `env:"HTTP_ADDR" envDefault:"0.0.0.0:8080"`
	GracefulShutdownTimeout time.Duration `env:"GRACEFUL_SHUTDOWN_SECONDS" envDefault:"20s"`

	Postgres    Postgres
	Redis       Redis
	Security    Security
	Quiz        Quiz
	AI          AI
	External    External
	Leaderboard Leaderboard
	OAuth       OAuth
	CORS        CORS
}

// Postgres captures connection info for the SQL database.
type Postgres struct {
	Host     string `env:"PG_HOST,notEmpty"`
	Port     int    `env:"PG_PORT" envDefault:"5432"`
	User     string `env:"PG_USER,notEmpty"`
	Password string `env:"PG_PASSWORD,notEmpty"`
	Database string `env:"PG_DATABASE,notEmpty"`
	SSLMode  string `env:"PG_SSL_MODE" envDefault:"disable"`
	MaxConns int    `env:"PG_MAX_CONNS" envDefault:"10"`
}

// DSN renders a libpq style connection string.
func (p Postgres) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode)
}

// Redis holds cache + pub/sub configuration.
type Redis struct {
	Addr     string `env:"REDIS_ADDR,notEmpty"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
	PoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"20"`
}

// Security stores secrets for signing and auth.
type Security struct {
	JWTSecret        string        `env:"JWT_SECRET,notEmpty"`
	JWTRefreshSecret string        `env:"JWT_REFRESH_SECRET" envDefault:""`
	AccessTTL        time.Duration `env:"JWT_ACCESS_TTL" envDefault:"1h"`
	RefreshTTL       time.Duration `env:"JWT_REFRESH_TTL" envDefault:"168h"`
	Leeway           time.Duration `env:"JWT_LEEWAY" envDefault:"30s"`
}

// Quiz groups gameplay defaults.
type Quiz struct {
	QuestionTimeLimit    time.Duration `env:"QUIZ_QUESTION_TIME_LIMIT" envDefault:"15s"`
	DefaultQuestionCount int           `env:"QUIZ_DEFAULT_QUESTION_COUNT" envDefault:"5"`
	MaxQuestionCount     int           `env:"QUIZ_MAX_QUESTION_COUNT" envDefault:"100"`
	PackCacheTTL         time.Duration `env:"QUIZ_PACK_CACHE_TTL" envDefault:"5m"`
	SessionIdleTTL       time.Duration `env:"QUIZ_SESSION_IDLE_TTL" envDefault:"30m"`
	PersistGuardTTL      time.Duration `env:"QUIZ_PERSIST_GUARD_TTL" envDefault:"24h"`
}

// AI configures the generative suggestion service.
type AI struct {
	BaseURL     string        `env:"AI_BASE_URL" envDefault:"https://generativelanguage.googleapis.com/v1beta"`
	APIKey      string        `env:"AI_API_KEY" envDefault:""`
	Model       string        `env:"AI_MODEL" envDefault:"models/gemini-2.5-flash"`
	Temperature float64       `env:"AI_TEMPERATURE" envDefault:"0.4"`
	HTTPTimeout time.Duration `env:"AI_HTTP_TIMEOUT" envDefault:"20s"`
}

// External configures the public trivia APIs used as question fallbacks.
type External struct {
	Enabled      bool          `env:"EXTERNAL_TRIVIA_ENABLED" envDefault:"true"`
	OpenTDBURL   string        `env:"OPENTDB_URL" envDefault:"https://opentdb.com"`
	TriviaAPIURL string        `env:"TRIVIA_API_URL" envDefault:"https://the-trivia-api.com"`
	HTTPTimeout  time.Duration `env:"EXTERNAL_HTTP_TIMEOUT" envDefault:"5s"`
}

// Leaderboard governs snapshotting and broadcast behavior.
type Leaderboard struct {
	SnapshotInterval time.Duration `env:"LEADERBOARD_SNAPSHOT_INTERVAL" envDefault:"5m"`
	SnapshotTopN     int           `env:"LEADERBOARD_SNAPSHOT_TOP" envDefault:"50"`
	DefaultLimit     int           `env:"LEADERBOARD_DEFAULT_LIMIT" envDefault:"10"`
	PubSubChannel    string        `env:"LEADERBOARD_CHANNEL" envDefault:"lb:updates"`
}

// OAuth holds OAuth provider configuration.
type OAuth struct {
	GoogleClientID     string `env:"GOOGLE_OAUTH_CLIENT_ID" envDefault:""`
	GoogleClientSecret string `env:"GOOGLE_OAUTH_CLIENT_SECRET" envDefault:""`
	GoogleRedirectURL  string `env:"GOOGLE_OAUTH_REDIRECT_URL" envDefault:""`
}

// CORS holds Cross-Origin Resource Sharing configuration.
type CORS struct {
	AllowedOrigins   []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://127.0.0.1:3000"`
	AllowedMethods   []string `env:"CORS_ALLOWED_METHODS" envSeparator:"," envDefault:"GET,POST,OPTIONS"`
	AllowedHeaders   []string `env:"CORS_ALLOWED_HEADERS" envSeparator:"," envDefault:"Content-Type,Authorization"`
	AllowCredentials bool     `env:"CORS_ALLOW_CREDENTIALS" envDefault:"true"`
	MaxAge           int      `env:"CORS_MAX_AGE" envDefault:"3600"`
}

// Load parses environment variables into App config.
func Load(ctx context.Context) (*App, error) {
	cfg := &App{}
	if err := env.ParseWithOptions(cfg, env.Options{RequiredIfNoDef: true}); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadPostgres parses only the database section (used by the migrator).
func LoadPostgres() (Postgres, error) {
	var pg Postgres
	if err := env.ParseWithOptions(&pg, env.Options{RequiredIfNoDef: true}); err != nil {
		return Postgres{}, fmt.Errorf("parse postgres config: %w", err)
	}
	return pg, nil
}

func (c *App) validate() error {
	if c.Quiz.QuestionTimeLimit < time.Second {
		return fmt.Errorf("QUIZ_QUESTION_TIME_LIMIT must be at least 1s, got %s", c.Quiz.QuestionTimeLimit)
	}
	if c.Quiz.DefaultQuestionCount <= 0 || c.Quiz.DefaultQuestionCount > c.Quiz.MaxQuestionCount {
		return fmt.Errorf("QUIZ_DEFAULT_QUESTION_COUNT must be within 1..%d", c.Quiz.MaxQuestionCount)
	}
	if c.Security.JWTRefreshSecret == "" {
		c.Security.JWTRefreshSecret = c.Security.JWTSecret + "_refresh"
	}
	return nil
}
