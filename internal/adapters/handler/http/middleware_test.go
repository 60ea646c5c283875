package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vncsmyrnk/pollsite/internal/core/domain"
	"github.com/vncsmyrnk/pollsite/internal/core/ports"
)

func withSession(r *http.Request, session *domain.Session, principal *domain.Account) *http.Request {
	rs := &requestSession{issued: &ports.IssuedSession{Session: session, Principal: principal}}
	return r.WithContext(context.WithValue(r.Context(), SessionKey, rs))
}

// countingAuth starts sessions in memory and counts how many it made.
type countingAuth struct {
	started int
}

func (a *countingAuth) StartSession(ctx context.Context) (*ports.IssuedSession, error) {
	a.started++
	session := &domain.Session{ID: uuid.New(), CSRFToken: "fresh-token", ExpiresAt: time.Now().Add(time.Hour)}
	return &ports.IssuedSession{Session: session, Token: "token-" + session.ID.String()}, nil
}

func (a *countingAuth) ResumeSession(ctx context.Context, token string) (*ports.IssuedSession, error) {
	return nil, domain.ErrSessionNotFound
}

func (a *countingAuth) Login(ctx context.Context, current *domain.Session, username, password string) (*ports.IssuedSession, error) {
	return nil, domain.ErrInvalidCredentials
}

func (a *countingAuth) Logout(ctx context.Context, current *domain.Session) (*ports.IssuedSession, error) {
	return a.StartSession(ctx)
}

func TestSessionManager_StartsSessionsLazily(t *testing.T) {
	logger, _ := test.NewNullLogger()
	auth := &countingAuth{}
	m := NewSessionManager(auth, false, logger, NewRenderer(logger))

	plain := m.Load(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Nil(t, SessionFromContext(r.Context()))
		w.WriteHeader(http.StatusNotFound)
	}))
	rec := httptest.NewRecorder()
	plain.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	assert.Zero(t, auth.started)
	assert.Empty(t, rec.Result().Cookies())

	// A stale cookie is dropped without starting a replacement.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "expired"})
	rec = httptest.NewRecorder()
	plain.ServeHTTP(rec, req)
	assert.Zero(t, auth.started)

	form := m.Load(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		first, err := EnsureSession(r)
		require.NoError(t, err)
		second, err := EnsureSession(r)
		require.NoError(t, err)
		assert.Same(t, first, second)
		assert.Equal(t, first, SessionFromContext(r.Context()))
		w.WriteHeader(http.StatusOK)
	}))
	rec = httptest.NewRecorder()
	form.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/login/", nil))
	assert.Equal(t, 1, auth.started)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, sessionCookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
}

func TestEnsureSession_WithoutMiddleware(t *testing.T) {
	_, err := EnsureSession(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Error(t, err)
}

func TestVerifyCSRF(t *testing.T) {
	logger, hook := test.NewNullLogger()
	m := NewSessionManager(nil, false, logger, NewRenderer(logger))
	session := &domain.Session{ID: uuid.New(), CSRFToken: "token-123"}

	handler := m.VerifyCSRF(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		method string
		form   url.Values
		header string
		want   int
	}{
		{name: "get passes", method: http.MethodGet, want: http.StatusNoContent},
		{name: "post without token", method: http.MethodPost, want: http.StatusForbidden},
		{name: "post with wrong token", method: http.MethodPost, form: url.Values{"csrf_token": {"nope"}}, want: http.StatusForbidden},
		{name: "post with form token", method: http.MethodPost, form: url.Values{"csrf_token": {"token-123"}}, want: http.StatusNoContent},
		{name: "post with header token", method: http.MethodPost, header: "token-123", want: http.StatusNoContent},
		{name: "delete with wrong header", method: http.MethodDelete, header: "token-12", want: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/1/vote/", strings.NewReader(tt.form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			if tt.header != "" {
				req.Header.Set(csrfHeader, tt.header)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, withSession(req, session, nil))
			assert.Equal(t, tt.want, rec.Code)
		})
	}

	t.Run("request without session", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/logout/", strings.NewReader("csrf_token="))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	require.NotEmpty(t, hook.Entries)
	assert.Equal(t, log.WarnLevel, hook.LastEntry().Level)
}

func TestRequireLogin(t *testing.T) {
	handler := RequireLogin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	session := &domain.Session{ID: uuid.New()}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, withSession(httptest.NewRequest(http.MethodGet, "/3/delete/", nil), session, nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login/?next=%2F3%2Fdelete%2F", rec.Header().Get("Location"))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, withSession(httptest.NewRequest(http.MethodGet, "/3/delete/", nil), session, &domain.Account{ID: 1}))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestSafeNext(t *testing.T) {
	tests := map[string]string{
		"":                     "/",
		"/3/delete/":           "/3/delete/",
		"/search/?q=who":       "/search/?q=who",
		"https://evil.example": "/",
		"//evil.example/path":  "/",
		"/\\evil.example":      "/",
		"javascript:alert(1)":  "/",
		"relative/path":        "/",
	}
	for in, want := range tests {
		assert.Equal(t, want, safeNext(in), "safeNext(%q)", in)
	}
}

func TestLooksLikeInjection(t *testing.T) {
	assert.True(t, looksLikeInjection("'; DROP TABLE questions; --"))
	assert.True(t, looksLikeInjection("x' OR '1'='1"))
	assert.True(t, looksLikeInjection("a /* b"))
	assert.False(t, looksLikeInjection("Who is president?"))
	assert.False(t, looksLikeInjection("100%_done"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "héll", truncate("héllo", 4))
	assert.Equal(t, "日本", truncate("日本語", 2))

	got := truncate("ab\xffcd", 3)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, "ab\uFFFD", got)

	cut := truncate(strings.Repeat("é", 300), 200)
	assert.True(t, utf8.ValidString(cut))
	assert.Equal(t, 200, utf8.RuneCountInString(cut))
}

func TestHealthHandler_HidesFailureDetails(t *testing.T) {
	logger, hook := test.NewNullLogger()
	h := NewHealthHandler(map[string]CheckFunc{
		"postgres": func(ctx context.Context) error { return nil },
		"redis": func(ctx context.Context) error {
			return errors.New("dial tcp 10.0.0.7:6379: connect: connection refused")
		},
	}, logger)

	rec := httptest.NewRecorder()
	h.Check(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `"redis":"unavailable"`)
	assert.Contains(t, body, `"postgres":"ok"`)
	assert.NotContains(t, body, "10.0.0.7")

	require.NotNil(t, hook.LastEntry())
	assert.Contains(t, hook.LastEntry().Data[log.ErrorKey].(error).Error(), "connection refused")
}

func TestAccessPage_PostsAccessCodeField(t *testing.T) {
	logger, _ := test.NewNullLogger()
	rd := NewRenderer(logger)

	req := withSession(httptest.NewRequest(http.MethodGet, "/1/access/", nil), &domain.Session{CSRFToken: "tok"}, nil)
	rec := httptest.NewRecorder()
	rd.Render(rec, req, http.StatusOK, "access.html", questionPage{
		page:     newPage(req, "Gated"),
		Question: &domain.Question{ID: 1, Text: "Gated"},
	})

	assert.Contains(t, rec.Body.String(), `name="access_code"`)
}

func TestRenderer_ParsesEveryPage(t *testing.T) {
	logger, _ := test.NewNullLogger()
	rd := NewRenderer(logger)

	req := withSession(httptest.NewRequest(http.MethodGet, "/", nil), &domain.Session{CSRFToken: "tok"}, nil)
	rec := httptest.NewRecorder()
	rd.Render(rec, req, http.StatusOK, "index.html", indexPage{page: newPage(req, "Latest polls")})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No polls are available.")
	assert.Len(t, rd.pages, len(pageNames))
}
