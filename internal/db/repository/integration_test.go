//go:build integration

package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/gokatarajesh/quizmind/internal/db/migrations"
	sqlcgen "github.com/gokatarajesh/quizmind/internal/db/sqlc"
)

func startPostgres(t *testing.T, ctx context.Context) string {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizmind"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)
	return fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizmind?sslmode=disable", host, port.Port())
}

func migrate(t *testing.T, dsn string) {
	t.Helper()
	db, err := sql.Open("pgx", dsn)
	require.NoError(t, err)
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	require.NoError(t, goose.SetDialect("postgres"))
	require.NoError(t, goose.Up(db, "."))
}

func TestResultRepository_Postgres(t *testing.T) {
	ctx := context.Background()
	dsn := startPostgres(t, ctx)
	migrate(t, dsn)

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()

	queries := sqlcgen.New(pool)
	users := NewUserRepository(queries)
	user, err := users.Create(ctx, sqlcgen.CreateUserParams{
		Email:       PGText("ada@example.com"),
		DisplayName: PGText("Ada"),
	})
	require.NoError(t, err)
	userID := FromPGUUID(user.UserID)

	results := NewResultRepository(pool)
	first := ResultRecord{
		UserID: userID, Username: "Ada", SessionID: uuid.New(),
		Topic: "science", Difficulty: "easy", Score: 2, ScorePercent: 67, Total: 3,
		CompletedAt: time.Now(),
	}
	inserted, err := results.Record(ctx, first)
	require.NoError(t, err)
	assert.True(t, inserted)

	again, err := results.Record(ctx, first)
	require.NoError(t, err)
	assert.False(t, again, "same session is recorded once")

	second := first
	second.SessionID = uuid.New()
	second.Score = 3
	second.ScorePercent = 100
	_, err = results.Record(ctx, second)
	require.NoError(t, err)

	top, err := NewLeaderboardRepository(queries).Top(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, int64(5), top[0].TotalScore)
	assert.Equal(t, int32(2), top[0].Games)

	history, err := NewHistoryRepository(queries).ListByUser(ctx, userID, 10)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}
