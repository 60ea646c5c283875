package ports

import (
	"context"
	"time"

	"github.com/vncsmyrnk/pollsite/internal/core/domain"
)

type QuestionRepository interface {
	Save(ctx context.Context, question *domain.Question) error
	GetByID(ctx context.Context, id int64) (*domain.Question, error)
	GetPublished(ctx context.Context, id int64, now time.Time) (*domain.Question, error)
	ListPublished(ctx context.Context, now time.Time, limit int) ([]*domain.Question, error)
	Search(ctx context.Context, query string, now time.Time) ([]*domain.SearchResult, error)
	SetAccessCodeHash(ctx context.Context, id int64, hash string) error
	Delete(ctx context.Context, id int64) error
}

type CreateQuestionInput struct {
	Text       string
	Choices    []string
	PubDate    time.Time
	OwnerID    *int64
	AccessCode string
}

type QuestionService interface {
	Create(ctx context.Context, input CreateQuestionInput) (*domain.Question, error)
	ListRecent(ctx context.Context) ([]*domain.Question, error)
	GetPublished(ctx context.Context, id int64) (*domain.Question, error)
	Search(ctx context.Context, query string) ([]*domain.SearchResult, error)
	SetAccessCode(ctx context.Context, id int64, code string) error
	AuthorizeDelete(ctx context.Context, principal *domain.Account, id int64) (*domain.Question, error)
	Delete(ctx context.Context, principal *domain.Account, id int64) error
}
