package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/vncsmyrnk/pollsite/internal/core/domain"
	"github.com/vncsmyrnk/pollsite/internal/core/ports"
)

const DefaultSessionTTL = 14 * 24 * time.Hour

type AuthService struct {
	sessions    ports.SessionStore
	accountRepo ports.AccountRepository
	hasher      ports.SecretHasher
	secret      []byte
	ttl         time.Duration

	decoyOnce sync.Once
	decoyHash string
}

func NewAuthService(sessions ports.SessionStore, accountRepo ports.AccountRepository, hasher ports.SecretHasher, secret string, ttl time.Duration) *AuthService {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &AuthService{
		sessions:    sessions,
		accountRepo: accountRepo,
		hasher:      hasher,
		secret:      []byte(secret),
		ttl:         ttl,
	}
}

func (s *AuthService) StartSession(ctx context.Context) (*ports.IssuedSession, error) {
	return s.issue(ctx, nil, nil)
}

func (s *AuthService) ResumeSession(ctx context.Context, token string) (*ports.IssuedSession, error) {
	id, err := s.parseSessionToken(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSessionNotFound, err)
	}

	session, err := s.sessions.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil, domain.ErrSessionNotFound
	}
	if session.IsExpired(time.Now()) {
		if err := s.sessions.Delete(ctx, id); err != nil {
			return nil, fmt.Errorf("failed to delete expired session: %w", err)
		}
		return nil, domain.ErrSessionExpired
	}

	issued := &ports.IssuedSession{Session: session, Token: token}
	if session.AccountID != nil {
		account, err := s.accountRepo.GetByID(ctx, *session.AccountID)
		if err != nil {
			return nil, fmt.Errorf("failed to get account: %w", err)
		}
		issued.Principal = account
	}

	return issued, nil
}

// Login checks the credentials and replaces current with a new session bound
// to the account. Access grants carry over; the session id does not.
func (s *AuthService) Login(ctx context.Context, current *domain.Session, username, password string) (*ports.IssuedSession, error) {
	if !storableText(username) {
		s.hasher.Compare(s.decoy(), password)
		return nil, domain.ErrInvalidCredentials
	}

	account, err := s.accountRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	if account == nil {
		// Spend the same bcrypt time as a real comparison.
		s.hasher.Compare(s.decoy(), password)
		return nil, domain.ErrInvalidCredentials
	}
	if password == "" || !s.hasher.Compare(account.PasswordHash, password) {
		return nil, domain.ErrInvalidCredentials
	}

	var grants map[int64]struct{}
	if current != nil {
		grants = make(map[int64]struct{}, len(current.Grants))
		for id := range current.Grants {
			grants[id] = struct{}{}
		}
		if err := s.sessions.Delete(ctx, current.ID); err != nil {
			return nil, fmt.Errorf("failed to delete session: %w", err)
		}
	}

	return s.issue(ctx, account, grants)
}

func (s *AuthService) Logout(ctx context.Context, current *domain.Session) (*ports.IssuedSession, error) {
	if current != nil {
		if err := s.sessions.Delete(ctx, current.ID); err != nil {
			return nil, fmt.Errorf("failed to delete session: %w", err)
		}
	}
	return s.issue(ctx, nil, nil)
}

func (s *AuthService) issue(ctx context.Context, account *domain.Account, grants map[int64]struct{}) (*ports.IssuedSession, error) {
	csrfToken, err := s.generateCSRFToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate csrf token: %w", err)
	}

	now := time.Now().UTC()
	session := &domain.Session{
		ID:        uuid.New(),
		CSRFToken: csrfToken,
		Grants:    grants,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if account != nil {
		accountID := account.ID
		session.AccountID = &accountID
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	token, err := s.signSessionToken(session)
	if err != nil {
		return nil, fmt.Errorf("failed to sign session token: %w", err)
	}

	return &ports.IssuedSession{Session: session, Token: token, Principal: account}, nil
}

func (s *AuthService) signSessionToken(session *domain.Session) (string, error) {
	claims := jwt.RegisteredClaims{
		ID:        session.ID.String(),
		IssuedAt:  jwt.NewNumericDate(session.CreatedAt),
		ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *AuthService) parseSessionToken(token string) (uuid.UUID, error) {
	if token == "" {
		return uuid.Nil, errors.New("empty token")
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return uuid.Nil, err
	}

	return uuid.Parse(claims.ID)
}

func (s *AuthService) generateCSRFToken() (string, error) {
	b := make([]byte, 32)
	_, err := rand.Read(b)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func (s *AuthService) decoy() string {
	s.decoyOnce.Do(func() {
		hash, err := s.hasher.Hash("decoy-password")
		if err == nil {
			s.decoyHash = hash
		}
	})
	return s.decoyHash
}
