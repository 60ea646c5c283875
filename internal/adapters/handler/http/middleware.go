package http

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/url"

	log "github.com/sirupsen/logrus"
	"github.com/vncsmyrnk/pollsite/internal/core/domain"
	"github.com/vncsmyrnk/pollsite/internal/core/ports"
)

type contextKey string

const (
	SessionKey contextKey = "session"

	sessionCookieName = "session"
	csrfFormField     = "csrf_token"
	csrfHeader        = "X-CSRF-Token"
)

// requestSession is the per-request session slot. It stays empty until a
// cookie resolves or a page asks for a session with EnsureSession.
type requestSession struct {
	issued  *ports.IssuedSession
	manager *SessionManager
	w       http.ResponseWriter
}

func requestSessionFrom(ctx context.Context) *requestSession {
	rs, _ := ctx.Value(SessionKey).(*requestSession)
	return rs
}

// SessionFromContext returns the session loaded for the request, if any. It
// never creates one.
func SessionFromContext(ctx context.Context) *domain.Session {
	rs := requestSessionFrom(ctx)
	if rs == nil || rs.issued == nil {
		return nil
	}
	return rs.issued.Session
}

// PrincipalFromContext returns the authenticated account, or nil for
// anonymous requests.
func PrincipalFromContext(ctx context.Context) *domain.Account {
	rs := requestSessionFrom(ctx)
	if rs == nil || rs.issued == nil {
		return nil
	}
	return rs.issued.Principal
}

// EnsureSession returns the request's session, starting an anonymous one and
// setting its cookie when there is none yet. Call it before any response
// header is written.
func EnsureSession(r *http.Request) (*domain.Session, error) {
	rs := requestSessionFrom(r.Context())
	if rs == nil {
		return nil, errors.New("session middleware not installed")
	}
	if rs.issued != nil {
		return rs.issued.Session, nil
	}

	issued, err := rs.manager.auth.StartSession(r.Context())
	if err != nil {
		return nil, err
	}
	rs.manager.SetCookie(rs.w, issued)
	rs.issued = issued
	return issued.Session, nil
}

type SessionManager struct {
	auth         ports.AuthService
	secureCookie bool
	audit        log.FieldLogger
	render       *Renderer
}

func NewSessionManager(auth ports.AuthService, secureCookie bool, audit log.FieldLogger, render *Renderer) *SessionManager {
	return &SessionManager{
		auth:         auth,
		secureCookie: secureCookie,
		audit:        audit,
		render:       render,
	}
}

// Load resumes the session named by the cookie. Requests without a valid
// cookie carry no session until a handler calls EnsureSession.
func (m *SessionManager) Load(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		issued, err := m.resume(r)
		if err != nil {
			m.render.Error(w, r, err)
			return
		}

		rs := &requestSession{issued: issued, manager: m, w: w}
		ctx := context.WithValue(r.Context(), SessionKey, rs)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *SessionManager) resume(r *http.Request) (*ports.IssuedSession, error) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil, nil
	}

	issued, err := m.auth.ResumeSession(r.Context(), cookie.Value)
	if errors.Is(err, domain.ErrSessionNotFound) || errors.Is(err, domain.ErrSessionExpired) {
		return nil, nil
	}
	return issued, err
}

func (m *SessionManager) SetCookie(w http.ResponseWriter, issued *ports.IssuedSession) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    issued.Token,
		Path:     "/",
		Expires:  issued.Session.ExpiresAt,
		HttpOnly: true,
		Secure:   m.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// VerifyCSRF rejects state-changing requests whose token does not match the
// session's.
func (m *SessionManager) VerifyCSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
			next.ServeHTTP(w, r)
			return
		}

		token := r.Header.Get(csrfHeader)
		if token == "" {
			token = r.PostFormValue(csrfFormField)
		}

		session := SessionFromContext(r.Context())
		if session == nil || token == "" ||
			subtle.ConstantTimeCompare([]byte(token), []byte(session.CSRFToken)) != 1 {
			m.audit.WithFields(log.Fields{
				"category":    "csrf",
				"remote_addr": r.RemoteAddr,
				"path":        r.URL.Path,
			}).Warn("rejected request with missing or invalid csrf token")
			http.Error(w, "Forbidden - CSRF token invalid", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RequireLogin sends anonymous callers to the login form.
func RequireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if PrincipalFromContext(r.Context()) == nil {
			http.Redirect(w, r, "/login/?next="+url.QueryEscape(r.URL.RequestURI()), http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}
