// Package testutil starts throwaway Postgres and Redis containers and seeds
// them for tests that need a real store.
package testutil

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/lib/pq"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/crypto/bcrypt"

	bcrypthasher "github.com/vncsmyrnk/pollsite/internal/adapters/hasher/bcrypt"
	repo "github.com/vncsmyrnk/pollsite/internal/adapters/repository/postgres"
	"github.com/vncsmyrnk/pollsite/internal/core/domain"
	"github.com/vncsmyrnk/pollsite/internal/core/ports"
)

// SkipIfShort skips tests that need docker.
func SkipIfShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test")
	}
}

// StartPostgres runs a migrated Postgres container for the lifetime of t.
func StartPostgres(t *testing.T) *sql.DB {
	t.Helper()
	SkipIfShort(t)

	ctx := context.Background()
	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("postgres", connStr)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, repo.Migrate(ctx, db))
	return db
}

// StartRedis runs a Redis container for the lifetime of t.
func StartRedis(t *testing.T) *goredis.Client {
	t.Helper()
	SkipIfShort(t)

	ctx := context.Background()
	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	opts, err := goredis.ParseURL(uri)
	require.NoError(t, err)

	client := goredis.NewClient(opts)
	t.Cleanup(func() { client.Close() })
	return client
}

// Hasher is a bcrypt hasher at minimum cost to keep tests fast.
func Hasher() ports.SecretHasher {
	return bcrypthasher.NewHasher(bcrypt.MinCost)
}

type QuestionSeed struct {
	Text       string
	PubDate    time.Time
	Choices    []string
	OwnerID    *int64
	AccessCode string
}

// SeedQuestion inserts a question and its choices, hashing the access code
// when one is given.
func SeedQuestion(t *testing.T, db *sql.DB, seed QuestionSeed) *domain.Question {
	t.Helper()

	if seed.PubDate.IsZero() {
		seed.PubDate = time.Now().Add(-time.Hour)
	}
	question := &domain.Question{
		Text:    seed.Text,
		PubDate: seed.PubDate,
		OwnerID: seed.OwnerID,
	}
	for _, text := range seed.Choices {
		question.Choices = append(question.Choices, domain.Choice{Text: text})
	}
	if seed.AccessCode != "" {
		hash, err := Hasher().Hash(seed.AccessCode)
		require.NoError(t, err)
		question.AccessCodeHash = hash
	}

	require.NoError(t, repo.NewQuestionRepository(db).Save(context.Background(), question))
	return question
}

// SeedAccount inserts an account with a hashed password.
func SeedAccount(t *testing.T, db *sql.DB, username, password string, isAdmin bool) *domain.Account {
	t.Helper()

	hash, err := Hasher().Hash(password)
	require.NoError(t, err)

	account := &domain.Account{
		Username:     username,
		PasswordHash: hash,
		Email:        username + "@example.com",
		IsAdmin:      isAdmin,
	}
	require.NoError(t, repo.NewAccountRepository(db).Create(context.Background(), account))
	return account
}

// Votes reads the stored vote count of a choice.
func Votes(t *testing.T, db *sql.DB, choiceID int64) int64 {
	t.Helper()

	var votes int64
	require.NoError(t, db.QueryRow("SELECT votes FROM choices WHERE id = $1", choiceID).Scan(&votes))
	return votes
}
