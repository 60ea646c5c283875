package http

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/vncsmyrnk/pollsite/internal/core/domain"
	"github.com/vncsmyrnk/pollsite/internal/core/ports"
)

const invalidLoginMessage = "Invalid username or password."

type loginPage struct {
	page
	Next         string
	Username     string
	ErrorMessage string
}

type AuthHandler struct {
	auth     ports.AuthService
	sessions *SessionManager
	render   *Renderer
	audit    log.FieldLogger
}

func NewAuthHandler(auth ports.AuthService, sessions *SessionManager, render *Renderer, audit log.FieldLogger) *AuthHandler {
	return &AuthHandler{
		auth:     auth,
		sessions: sessions,
		render:   render,
		audit:    audit,
	}
}

func (h *AuthHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	next := safeNext(r.URL.Query().Get("next"))
	if PrincipalFromContext(r.Context()) != nil {
		http.Redirect(w, r, next, http.StatusFound)
		return
	}

	p, err := newFormPage(r, "Log in")
	if err != nil {
		h.render.Error(w, r, err)
		return
	}

	h.render.Render(w, r, http.StatusOK, "login.html", loginPage{
		page: p,
		Next: next,
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.PostFormValue("username"))
	next := safeNext(r.PostFormValue("next"))

	issued, err := h.auth.Login(r.Context(), SessionFromContext(r.Context()), username, r.PostFormValue("password"))
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			h.audit.WithFields(log.Fields{
				"category":    "login",
				"username":    truncate(username, domain.MaxUsernameLength),
				"remote_addr": r.RemoteAddr,
			}).Warn("failed login")
			h.render.Render(w, r, http.StatusUnauthorized, "login.html", loginPage{
				page:         newPage(r, "Log in"),
				Next:         next,
				Username:     username,
				ErrorMessage: invalidLoginMessage,
			})
			return
		}
		h.render.Error(w, r, err)
		return
	}

	h.audit.WithFields(log.Fields{
		"category":    "login",
		"username":    issued.Principal.Username,
		"remote_addr": r.RemoteAddr,
	}).Info("login")
	h.sessions.SetCookie(w, issued)
	http.Redirect(w, r, next, http.StatusSeeOther)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	issued, err := h.auth.Logout(r.Context(), SessionFromContext(r.Context()))
	if err != nil {
		h.render.Error(w, r, err)
		return
	}

	h.sessions.SetCookie(w, issued)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// safeNext keeps post-login redirects on this site.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "/"
	}
	return next
}
