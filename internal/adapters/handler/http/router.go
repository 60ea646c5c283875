package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"
	"github.com/vncsmyrnk/pollsite/internal/core/ports"
)

const questionRoute = "/{" + questionIDParam + ":[0-9]+}"

type Services struct {
	Questions ports.QuestionService
	Votes     ports.VoteService
	Access    ports.AccessService
	Auth      ports.AuthService
}

type Options struct {
	SecureCookie bool
	HealthChecks map[string]CheckFunc
}

func NewHandler(svc Services, opts Options, logger *log.Logger) http.Handler {
	audit := logger.WithField("component", "security")
	render := NewRenderer(logger.WithField("component", "http"))

	sessions := NewSessionManager(svc.Auth, opts.SecureCookie, audit, render)
	questionHandler := NewQuestionHandler(svc.Questions, render, audit)
	voteHandler := NewVoteHandler(svc.Votes, svc.Questions, render)
	accessHandler := NewAccessHandler(svc.Access, svc.Questions, render, audit)
	authHandler := NewAuthHandler(svc.Auth, sessions, render, audit)
	healthHandler := NewHealthHandler(opts.HealthChecks, logger.WithField("component", "health"))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: logger, NoColor: true}))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", healthHandler.Check)

	r.Group(func(r chi.Router) {
		r.Use(sessions.Load)
		r.Use(sessions.VerifyCSRF)

		r.NotFound(render.NotFound)

		r.Get("/", questionHandler.Index)
		r.Get("/search/", questionHandler.Search)

		r.Get("/login/", authHandler.LoginForm)
		r.Post("/login/", authHandler.Login)
		r.Post("/logout/", authHandler.Logout)

		r.Get(questionRoute+"/", questionHandler.Detail)
		r.Get(questionRoute+"/results/", questionHandler.Results)
		r.Post(questionRoute+"/vote/", voteHandler.Vote)
		r.Get(questionRoute+"/access/", accessHandler.Prompt)
		r.Post(questionRoute+"/access/", accessHandler.Submit)

		r.Group(func(r chi.Router) {
			r.Use(RequireLogin)
			r.Get(questionRoute+"/delete/", questionHandler.ConfirmDelete)
			r.Post(questionRoute+"/delete/", questionHandler.Delete)
		})
	})

	return r
}
