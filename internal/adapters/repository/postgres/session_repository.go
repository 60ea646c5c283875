package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/vncsmyrnk/pollsite/internal/core/domain"
	"github.com/vncsmyrnk/pollsite/internal/core/ports"
)

const foreignKeyViolation = "23503"

type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) ports.SessionStore {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(ctx context.Context, session *domain.Session) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO sessions (id, account_id, csrf_token, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err = tx.ExecContext(ctx, query, session.ID, session.AccountID, session.CSRFToken, session.CreatedAt, session.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	if len(session.Grants) > 0 {
		stmt, err := tx.PrepareContext(ctx, grantQuery)
		if err != nil {
			return fmt.Errorf("failed to prepare grant statement: %w", err)
		}
		defer stmt.Close()

		for questionID := range session.Grants {
			if _, err := stmt.ExecContext(ctx, session.ID, questionID); err != nil {
				return fmt.Errorf("failed to insert grant: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *SessionRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	query := `
		SELECT id, account_id, csrf_token, created_at, expires_at
		FROM sessions
		WHERE id = $1
	`
	var (
		session   domain.Session
		accountID sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&session.ID, &accountID, &session.CSRFToken, &session.CreatedAt, &session.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if accountID.Valid {
		session.AccountID = &accountID.Int64
	}

	grants, err := r.fetchGrants(ctx, id)
	if err != nil {
		return nil, err
	}
	session.Grants = grants

	return &session, nil
}

// grantQuery inserts nothing when the question no longer exists.
const grantQuery = `
	INSERT INTO session_grants (session_id, question_id)
	SELECT $1::uuid, id FROM questions WHERE id = $2
	ON CONFLICT (session_id, question_id) DO NOTHING
`

func (r *SessionRepository) Grant(ctx context.Context, id uuid.UUID, questionID int64) error {
	_, err := r.db.ExecContext(ctx, grantQuery, id, questionID)
	if err != nil {
		if isViolation(err, foreignKeyViolation) {
			return domain.ErrSessionNotFound
		}
		return fmt.Errorf("failed to grant access: %w", err)
	}
	return nil
}

func (r *SessionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (r *SessionRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to purge sessions: %w", err)
	}
	return res.RowsAffected()
}

func (r *SessionRepository) fetchGrants(ctx context.Context, id uuid.UUID) (map[int64]struct{}, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT question_id FROM session_grants WHERE session_id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get grants: %w", err)
	}
	defer rows.Close()

	grants := make(map[int64]struct{})
	for rows.Next() {
		var questionID int64
		if err := rows.Scan(&questionID); err != nil {
			return nil, fmt.Errorf("failed to scan grant: %w", err)
		}
		grants[questionID] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating grants: %w", err)
	}
	return grants, nil
}

func isViolation(err error, code pq.ErrorCode) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == code
}
