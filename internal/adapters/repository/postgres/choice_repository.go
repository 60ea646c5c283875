package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vncsmyrnk/pollsite/internal/core/domain"
	"github.com/vncsmyrnk/pollsite/internal/core/ports"
)

type choiceRepository struct {
	db *sql.DB
}

func NewChoiceRepository(db *sql.DB) ports.ChoiceRepository {
	return &choiceRepository{
		db: db,
	}
}

// IncrementVotes adds one vote in a single statement, so concurrent votes
// are serialized by the row lock instead of racing in memory.
func (r *choiceRepository) IncrementVotes(ctx context.Context, questionID, choiceID int64) error {
	query := `
		UPDATE choices SET votes = votes + 1
		WHERE id = $1 AND question_id = $2
	`
	res, err := r.db.ExecContext(ctx, query, choiceID, questionID)
	if err != nil {
		return fmt.Errorf("failed to record vote: %w", err)
	}
	return requireAffected(res, domain.ErrInvalidChoice)
}
