package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/pollsite/internal/core/domain"
)

type SessionStore interface {
	Create(ctx context.Context, session *domain.Session) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Session, error)
	Grant(ctx context.Context, id uuid.UUID, questionID int64) error
	Delete(ctx context.Context, id uuid.UUID) error
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// IssuedSession is a session together with the signed cookie value that
// refers to it and, when authenticated, the account behind it.
type IssuedSession struct {
	Session   *domain.Session
	Token     string
	Principal *domain.Account
}

type AuthService interface {
	StartSession(ctx context.Context) (*IssuedSession, error)
	ResumeSession(ctx context.Context, token string) (*IssuedSession, error)
	Login(ctx context.Context, current *domain.Session, username, password string) (*IssuedSession, error)
	Logout(ctx context.Context, current *domain.Session) (*IssuedSession, error)
}
