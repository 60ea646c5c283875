package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/vncsmyrnk/pollsite/internal/core/domain"
	"github.com/vncsmyrnk/pollsite/internal/core/ports"
)

const uniqueViolation = "23505"

type AccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) ports.AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) GetByUsername(ctx context.Context, username string) (*domain.Account, error) {
	query := `SELECT id, username, password_hash, email, is_admin, created_at FROM accounts WHERE username = $1`
	return r.getOne(ctx, query, username)
}

func (r *AccountRepository) GetByID(ctx context.Context, id int64) (*domain.Account, error) {
	query := `SELECT id, username, password_hash, email, is_admin, created_at FROM accounts WHERE id = $1`
	return r.getOne(ctx, query, id)
}

func (r *AccountRepository) Create(ctx context.Context, account *domain.Account) error {
	query := `
		INSERT INTO accounts (username, password_hash, email, is_admin)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query, account.Username, account.PasswordHash, account.Email, account.IsAdmin).
		Scan(&account.ID, &account.CreatedAt)
	if err != nil {
		if isViolation(err, uniqueViolation) {
			return domain.ErrUsernameTaken
		}
		return err
	}
	return nil
}

func (r *AccountRepository) getOne(ctx context.Context, query string, arg any) (*domain.Account, error) {
	account := &domain.Account{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&account.ID,
		&account.Username,
		&account.PasswordHash,
		&account.Email,
		&account.IsAdmin,
		&account.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return account, nil
}
