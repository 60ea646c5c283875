package services

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vncsmyrnk/pollsite/internal/core/domain"
	"github.com/vncsmyrnk/pollsite/internal/core/ports"
)

const testSecret = "test-secret"

func newTestAuthService(store *fakeSessionStore, accounts *fakeAccountRepo) *AuthService {
	return NewAuthService(store, accounts, plainHasher{}, testSecret, time.Hour)
}

func TestAuthService_StartAndResume(t *testing.T) {
	store := newFakeSessionStore()
	svc := newTestAuthService(store, newFakeAccountRepo())
	ctx := context.Background()

	issued, err := svc.StartSession(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, issued.Token)
	assert.NotEmpty(t, issued.Session.CSRFToken)
	assert.Nil(t, issued.Principal)
	assert.False(t, issued.Session.IsAuthenticated())

	resumed, err := svc.ResumeSession(ctx, issued.Token)
	require.NoError(t, err)
	assert.Equal(t, issued.Session.ID, resumed.Session.ID)
	assert.Equal(t, issued.Session.CSRFToken, resumed.Session.CSRFToken)
}

func TestAuthService_ResumeRejectsBadTokens(t *testing.T) {
	store := newFakeSessionStore()
	svc := newTestAuthService(store, newFakeAccountRepo())
	ctx := context.Background()

	issued, err := svc.StartSession(ctx)
	require.NoError(t, err)

	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:        issued.Session.ID.String(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	forgedToken, err := forged.SignedString([]byte("another-secret"))
	require.NoError(t, err)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		ID:        issued.Session.ID.String(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	unsignedToken, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	unknown := &domain.Session{ID: uuid.New(), CreatedAt: time.Now(), ExpiresAt: time.Now().Add(time.Hour)}
	unknownToken, err := svc.signSessionToken(unknown)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "garbage", token: "not-a-jwt"},
		{name: "wrong key", token: forgedToken},
		{name: "alg none", token: unsignedToken},
		{name: "unknown session", token: unknownToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ResumeSession(ctx, tt.token)
			assert.ErrorIs(t, err, domain.ErrSessionNotFound)
		})
	}
}

func TestAuthService_ResumeExpiredSession(t *testing.T) {
	store := newFakeSessionStore()
	svc := newTestAuthService(store, newFakeAccountRepo())
	ctx := context.Background()

	// The token is still valid but the stored session is past its expiry.
	session := &domain.Session{ID: uuid.New(), CreatedAt: time.Now().Add(-2 * time.Hour), ExpiresAt: time.Now().Add(-time.Minute)}
	require.NoError(t, store.Create(ctx, session))
	token, err := svc.signSessionToken(&domain.Session{ID: session.ID, CreatedAt: time.Now(), ExpiresAt: time.Now().Add(time.Hour)})
	require.NoError(t, err)

	_, err = svc.ResumeSession(ctx, token)
	assert.ErrorIs(t, err, domain.ErrSessionExpired)

	stored, _ := store.Get(ctx, session.ID)
	assert.Nil(t, stored)
}

func TestAuthService_Login(t *testing.T) {
	alice := &domain.Account{ID: 1, Username: "alice", PasswordHash: "hashed:wonderland"}
	ctx := context.Background()

	t.Run("rotates the session and keeps grants", func(t *testing.T) {
		store := newFakeSessionStore()
		svc := newTestAuthService(store, newFakeAccountRepo(alice))

		anonymous, err := svc.StartSession(ctx)
		require.NoError(t, err)
		require.NoError(t, store.Grant(ctx, anonymous.Session.ID, 7))
		anonymous.Session.Grant(7)

		issued, err := svc.Login(ctx, anonymous.Session, "alice", "wonderland")
		require.NoError(t, err)

		assert.NotEqual(t, anonymous.Session.ID, issued.Session.ID)
		assert.NotEqual(t, anonymous.Session.CSRFToken, issued.Session.CSRFToken)
		require.NotNil(t, issued.Principal)
		assert.Equal(t, "alice", issued.Principal.Username)
		assert.True(t, issued.Session.HasAccess(7))

		old, _ := store.Get(ctx, anonymous.Session.ID)
		assert.Nil(t, old, "the pre-login session must be gone")

		resumed, err := svc.ResumeSession(ctx, issued.Token)
		require.NoError(t, err)
		require.NotNil(t, resumed.Principal)
		assert.Equal(t, alice.ID, resumed.Principal.ID)
		assert.True(t, resumed.Session.HasAccess(7))
	})

	t.Run("malformed username never reaches the store", func(t *testing.T) {
		accounts := newFakeAccountRepo(alice)
		svc := newTestAuthService(newFakeSessionStore(), accounts)

		for _, username := range []string{"alice\xff", "ali\x00ce"} {
			_, err := svc.Login(ctx, nil, username, "wonderland")
			assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
		}
		assert.Empty(t, accounts.lookups)
	})

	t.Run("bad credentials", func(t *testing.T) {
		store := newFakeSessionStore()
		svc := newTestAuthService(store, newFakeAccountRepo(alice))

		anonymous, err := svc.StartSession(ctx)
		require.NoError(t, err)

		for _, creds := range [][2]string{{"alice", "wrong"}, {"alice", ""}, {"nobody", "wonderland"}} {
			_, err := svc.Login(ctx, anonymous.Session, creds[0], creds[1])
			assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
		}

		still, _ := store.Get(ctx, anonymous.Session.ID)
		assert.NotNil(t, still, "a failed login keeps the current session")
	})
}

func TestAuthService_Logout(t *testing.T) {
	alice := &domain.Account{ID: 1, Username: "alice", PasswordHash: "hashed:wonderland"}
	store := newFakeSessionStore()
	svc := newTestAuthService(store, newFakeAccountRepo(alice))
	ctx := context.Background()

	issued, err := svc.StartSession(ctx)
	require.NoError(t, err)
	issued, err = svc.Login(ctx, issued.Session, "alice", "wonderland")
	require.NoError(t, err)

	fresh, err := svc.Logout(ctx, issued.Session)
	require.NoError(t, err)
	assert.Nil(t, fresh.Principal)
	assert.False(t, fresh.Session.IsAuthenticated())

	_, err = svc.ResumeSession(ctx, issued.Token)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestAccountService_Create(t *testing.T) {
	repo := newFakeAccountRepo()
	svc := NewAccountService(repo, plainHasher{})
	ctx := context.Background()

	account, err := svc.Create(ctx, ports.CreateAccountInput{Username: " carol ", Email: "carol@example.com", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "carol", account.Username)
	assert.Equal(t, "hashed:pw", account.PasswordHash)

	_, err = svc.Create(ctx, ports.CreateAccountInput{Username: "carol", Password: "pw"})
	assert.ErrorIs(t, err, domain.ErrUsernameTaken)

	_, err = svc.Create(ctx, ports.CreateAccountInput{Username: "", Password: "pw"})
	assert.Error(t, err)

	_, err = svc.Create(ctx, ports.CreateAccountInput{Username: "dave"})
	assert.Error(t, err)

	got, err := svc.GetByUsername(ctx, "carol")
	require.NoError(t, err)
	assert.Equal(t, account.ID, got.ID)
}
