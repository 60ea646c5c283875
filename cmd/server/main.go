package main

import (
	"context"
	"database/sql"
	"errors"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	goredis "github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/vncsmyrnk/pollsite/internal/adapters/handler/http"
	"github.com/vncsmyrnk/pollsite/internal/adapters/hasher/bcrypt"
	"github.com/vncsmyrnk/pollsite/internal/adapters/repository/postgres"
	"github.com/vncsmyrnk/pollsite/internal/adapters/session/redis"
	"github.com/vncsmyrnk/pollsite/internal/config"
	"github.com/vncsmyrnk/pollsite/internal/core/ports"
	"github.com/vncsmyrnk/pollsite/internal/core/services"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}
	logger := config.NewLogger(cfg.LogLevel)

	db, err := sql.Open("postgres", cfg.PostgresURL())
	if err != nil {
		logger.Fatal(err)
	}
	defer db.Close()

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStartup()

	if err := db.PingContext(startupCtx); err != nil {
		logger.WithError(err).Fatal("database unreachable")
	}
	if err := postgres.Migrate(startupCtx, db); err != nil {
		logger.WithError(err).Fatal("failed to migrate database")
	}

	healthChecks := map[string]http.CheckFunc{"postgres": db.PingContext}

	var sessions ports.SessionStore
	switch cfg.SessionBackend {
	case config.SessionBackendRedis:
		opts, err := goredis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.WithError(err).Fatal("invalid redis url")
		}
		client := goredis.NewClient(opts)
		defer client.Close()

		if err := client.Ping(startupCtx).Err(); err != nil {
			logger.WithError(err).Fatal("redis unreachable")
		}
		healthChecks["redis"] = func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}
		sessions = redis.NewStore(client)
	default:
		sessions = postgres.NewSessionRepository(db)
	}

	hasher := bcrypt.NewHasher(cfg.BcryptCost)
	questionRepo := postgres.NewQuestionRepository(db)

	handler := http.NewHandler(http.Services{
		Questions: services.NewQuestionService(questionRepo, hasher),
		Votes:     services.NewVoteService(questionRepo, postgres.NewChoiceRepository(db)),
		Access:    services.NewAccessService(questionRepo, sessions, hasher),
		Auth:      services.NewAuthService(sessions, postgres.NewAccountRepository(db), hasher, cfg.SessionSecret, cfg.SessionTTL),
	}, http.Options{
		SecureCookie: cfg.CookieSecure,
		HealthChecks: healthChecks,
	}, logger)

	server := &stdhttp.Server{
		Addr:              cfg.ListenAddr,
		Handler:           otelhttp.NewHandler(handler, "pollsite"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.WithField("addr", cfg.ListenAddr).Info("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			logger.Fatal(err)
		}
	}()

	<-ctx.Done()
	logger.Info("Gracefully shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatal(err)
	}
}
