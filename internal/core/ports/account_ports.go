package ports

import (
	"context"

	"github.com/vncsmyrnk/pollsite/internal/core/domain"
)

type AccountRepository interface {
	GetByUsername(ctx context.Context, username string) (*domain.Account, error)
	GetByID(ctx context.Context, id int64) (*domain.Account, error)
	Create(ctx context.Context, account *domain.Account) error
}

type CreateAccountInput struct {
	Username string
	Email    string
	Password string
	IsAdmin  bool
}

type AccountService interface {
	Create(ctx context.Context, input CreateAccountInput) (*domain.Account, error)
	GetByUsername(ctx context.Context, username string) (*domain.Account, error)
}
