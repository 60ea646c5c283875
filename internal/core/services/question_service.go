package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/vncsmyrnk/pollsite/internal/core/domain"
	"github.com/vncsmyrnk/pollsite/internal/core/ports"
)

const (
	recentQuestionsLimit = 5
	maxSearchQueryLength = 200
)

type questionService struct {
	repo   ports.QuestionRepository
	hasher ports.SecretHasher
	now    func() time.Time
}

func NewQuestionService(repo ports.QuestionRepository, hasher ports.SecretHasher) ports.QuestionService {
	return &questionService{
		repo:   repo,
		hasher: hasher,
		now:    time.Now,
	}
}

func (s *questionService) Create(ctx context.Context, input ports.CreateQuestionInput) (*domain.Question, error) {
	text := strings.TrimSpace(input.Text)
	if text == "" {
		return nil, errors.New("question text is required")
	}
	if utf8.RuneCountInString(text) > domain.MaxQuestionTextLength {
		return nil, fmt.Errorf("question text exceeds %d characters", domain.MaxQuestionTextLength)
	}

	pubDate := input.PubDate
	if pubDate.IsZero() {
		pubDate = s.now()
	}

	question := &domain.Question{
		Text:    text,
		PubDate: pubDate.UTC(),
		OwnerID: input.OwnerID,
	}

	for _, choiceText := range input.Choices {
		choiceText = strings.TrimSpace(choiceText)
		if choiceText == "" {
			continue
		}
		if utf8.RuneCountInString(choiceText) > domain.MaxChoiceTextLength {
			return nil, fmt.Errorf("choice %q exceeds %d characters", choiceText, domain.MaxChoiceTextLength)
		}
		question.Choices = append(question.Choices, domain.Choice{Text: choiceText})
	}
	if len(question.Choices) < 2 {
		return nil, errors.New("at least two valid choices are required")
	}

	if input.AccessCode != "" {
		hash, err := s.hasher.Hash(input.AccessCode)
		if err != nil {
			return nil, fmt.Errorf("failed to hash access code: %w", err)
		}
		question.AccessCodeHash = hash
	}

	if err := s.repo.Save(ctx, question); err != nil {
		return nil, err
	}

	return question, nil
}

func (s *questionService) ListRecent(ctx context.Context) ([]*domain.Question, error) {
	return s.repo.ListPublished(ctx, s.now(), recentQuestionsLimit)
}

func (s *questionService) GetPublished(ctx context.Context, id int64) (*domain.Question, error) {
	if id <= 0 {
		return nil, domain.ErrQuestionNotFound
	}
	return s.repo.GetPublished(ctx, id, s.now())
}

// Search returns published questions containing query, ignoring case. Blank,
// oversized and malformed queries match nothing.
func (s *questionService) Search(ctx context.Context, query string) ([]*domain.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" || !storableText(query) || utf8.RuneCountInString(query) > maxSearchQueryLength {
		return nil, nil
	}
	return s.repo.Search(ctx, query, s.now())
}

func (s *questionService) SetAccessCode(ctx context.Context, id int64, code string) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}

	if code == "" {
		return s.repo.SetAccessCodeHash(ctx, id, "")
	}

	hash, err := s.hasher.Hash(code)
	if err != nil {
		return fmt.Errorf("failed to hash access code: %w", err)
	}
	return s.repo.SetAccessCodeHash(ctx, id, hash)
}

func (s *questionService) AuthorizeDelete(ctx context.Context, principal *domain.Account, id int64) (*domain.Question, error) {
	if id <= 0 {
		return nil, domain.ErrQuestionNotFound
	}

	question, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !principal.CanDelete(question) {
		return nil, domain.ErrForbidden
	}
	return question, nil
}

func (s *questionService) Delete(ctx context.Context, principal *domain.Account, id int64) error {
	if _, err := s.AuthorizeDelete(ctx, principal, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

// storableText reports whether s can be bound as a Postgres text parameter:
// valid UTF-8 without NUL bytes.
func storableText(s string) bool {
	return utf8.ValidString(s) && !strings.ContainsRune(s, 0)
}
