package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vncsmyrnk/pollsite/internal/core/domain"
	"github.com/vncsmyrnk/pollsite/internal/core/ports"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

type questionRepository struct {
	db *sql.DB
}

func NewQuestionRepository(db *sql.DB) ports.QuestionRepository {
	return &questionRepository{
		db: db,
	}
}

func (r *questionRepository) Save(ctx context.Context, question *domain.Question) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	queryQuestion := `
		INSERT INTO questions (question_text, pub_date, owner_id, access_code_hash)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	err = tx.QueryRowContext(ctx, queryQuestion,
		question.Text, question.PubDate, question.OwnerID, question.AccessCodeHash,
	).Scan(&question.ID)
	if err != nil {
		return fmt.Errorf("failed to insert question: %w", err)
	}

	queryChoice := `
		INSERT INTO choices (question_id, choice_text, votes)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	stmt, err := tx.PrepareContext(ctx, queryChoice)
	if err != nil {
		return fmt.Errorf("failed to prepare choice statement: %w", err)
	}
	defer stmt.Close()

	for i := range question.Choices {
		choice := &question.Choices[i]
		choice.QuestionID = question.ID
		if err := stmt.QueryRowContext(ctx, choice.QuestionID, choice.Text, choice.Votes).Scan(&choice.ID); err != nil {
			return fmt.Errorf("failed to insert choice: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *questionRepository) GetByID(ctx context.Context, id int64) (*domain.Question, error) {
	query := `
		SELECT id, question_text, pub_date, owner_id, access_code_hash
		FROM questions
		WHERE id = $1
	`
	return r.getOne(ctx, query, id)
}

func (r *questionRepository) GetPublished(ctx context.Context, id int64, now time.Time) (*domain.Question, error) {
	query := `
		SELECT id, question_text, pub_date, owner_id, access_code_hash
		FROM questions
		WHERE id = $1 AND pub_date <= $2
	`
	return r.getOne(ctx, query, id, now)
}

func (r *questionRepository) ListPublished(ctx context.Context, now time.Time, limit int) ([]*domain.Question, error) {
	query := `
		SELECT id, question_text, pub_date, owner_id, access_code_hash
		FROM questions
		WHERE pub_date <= $1
		ORDER BY pub_date DESC, id DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	defer rows.Close()

	var questions []*domain.Question
	for rows.Next() {
		question, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		questions = append(questions, question)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating questions: %w", err)
	}
	return questions, nil
}

// Search matches q literally: LIKE wildcards in q are escaped before it is
// bound as a parameter.
func (r *questionRepository) Search(ctx context.Context, q string, now time.Time) ([]*domain.SearchResult, error) {
	query := `
		SELECT id, question_text, pub_date
		FROM questions
		WHERE pub_date <= $2 AND question_text ILIKE $1 ESCAPE '\'
		ORDER BY pub_date DESC, id DESC
	`
	rows, err := r.db.QueryContext(ctx, query, "%"+likeEscaper.Replace(q)+"%", now)
	if err != nil {
		return nil, fmt.Errorf("failed to search questions: %w", err)
	}
	defer rows.Close()

	var results []*domain.SearchResult
	for rows.Next() {
		var result domain.SearchResult
		if err := rows.Scan(&result.ID, &result.Text, &result.PubDate); err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		results = append(results, &result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating search results: %w", err)
	}
	return results, nil
}

func (r *questionRepository) SetAccessCodeHash(ctx context.Context, id int64, hash string) error {
	query := `UPDATE questions SET access_code_hash = $2 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, hash)
	if err != nil {
		return fmt.Errorf("failed to set access code: %w", err)
	}
	return requireAffected(res, domain.ErrQuestionNotFound)
}

func (r *questionRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM questions WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete question: %w", err)
	}
	return requireAffected(res, domain.ErrQuestionNotFound)
}

func (r *questionRepository) getOne(ctx context.Context, query string, args ...any) (*domain.Question, error) {
	question, err := scanQuestion(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrQuestionNotFound
		}
		return nil, fmt.Errorf("failed to get question: %w", err)
	}

	choices, err := r.fetchChoices(ctx, question.ID)
	if err != nil {
		return nil, err
	}
	question.Choices = choices

	return question, nil
}

func (r *questionRepository) fetchChoices(ctx context.Context, questionID int64) ([]domain.Choice, error) {
	query := `
		SELECT id, question_id, choice_text, votes
		FROM choices
		WHERE question_id = $1
		ORDER BY id
	`
	rows, err := r.db.QueryContext(ctx, query, questionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get choices: %w", err)
	}
	defer rows.Close()

	var choices []domain.Choice
	for rows.Next() {
		var choice domain.Choice
		if err := rows.Scan(&choice.ID, &choice.QuestionID, &choice.Text, &choice.Votes); err != nil {
			return nil, fmt.Errorf("failed to scan choice: %w", err)
		}
		choices = append(choices, choice)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating choices: %w", err)
	}
	return choices, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuestion(row rowScanner) (*domain.Question, error) {
	var (
		question domain.Question
		ownerID  sql.NullInt64
	)
	if err := row.Scan(&question.ID, &question.Text, &question.PubDate, &ownerID, &question.AccessCodeHash); err != nil {
		return nil, err
	}
	if ownerID.Valid {
		question.OwnerID = &ownerID.Int64
	}
	return &question, nil
}

func requireAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
