package ports

import (
	"context"

	"github.com/vncsmyrnk/pollsite/internal/core/domain"
)

type SecretHasher interface {
	Hash(secret string) (string, error)
	Compare(hash, secret string) bool
}

type AccessService interface {
	Unlock(ctx context.Context, session *domain.Session, questionID int64, code string) error
}
