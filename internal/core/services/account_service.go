package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/vncsmyrnk/pollsite/internal/core/domain"
	"github.com/vncsmyrnk/pollsite/internal/core/ports"
)

type AccountService struct {
	repo   ports.AccountRepository
	hasher ports.SecretHasher
}

func NewAccountService(repo ports.AccountRepository, hasher ports.SecretHasher) ports.AccountService {
	return &AccountService{
		repo:   repo,
		hasher: hasher,
	}
}

func (s *AccountService) Create(ctx context.Context, input ports.CreateAccountInput) (*domain.Account, error) {
	username := strings.TrimSpace(input.Username)
	if username == "" {
		return nil, errors.New("username is required")
	}
	if utf8.RuneCountInString(username) > domain.MaxUsernameLength {
		return nil, fmt.Errorf("username exceeds %d characters", domain.MaxUsernameLength)
	}
	if input.Password == "" {
		return nil, errors.New("password is required")
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	account := &domain.Account{
		Username:     username,
		PasswordHash: hash,
		Email:        strings.TrimSpace(input.Email),
		IsAdmin:      input.IsAdmin,
	}
	if err := s.repo.Create(ctx, account); err != nil {
		return nil, err
	}

	return account, nil
}

func (s *AccountService) GetByUsername(ctx context.Context, username string) (*domain.Account, error) {
	account, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}
