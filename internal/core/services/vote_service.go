package services

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/vncsmyrnk/pollsite/internal/core/domain"
	"github.com/vncsmyrnk/pollsite/internal/core/ports"
)

type voteService struct {
	questionRepo ports.QuestionRepository
	choiceRepo   ports.ChoiceRepository
}

func NewVoteService(questionRepo ports.QuestionRepository, choiceRepo ports.ChoiceRepository) ports.VoteService {
	return &voteService{
		questionRepo: questionRepo,
		choiceRepo:   choiceRepo,
	}
}

func (s *voteService) Vote(ctx context.Context, input ports.VoteInput) error {
	if input.QuestionID <= 0 {
		return domain.ErrQuestionNotFound
	}
	if _, err := s.questionRepo.GetPublished(ctx, input.QuestionID, time.Now()); err != nil {
		return err
	}

	raw := strings.TrimSpace(input.ChoiceID)
	if raw == "" {
		return domain.ErrNoChoiceSelected
	}

	choiceID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || choiceID <= 0 {
		return domain.ErrInvalidChoice
	}

	// The repository increments in a single statement scoped to the
	// question, so a foreign choice id touches no row.
	return s.choiceRepo.IncrementVotes(ctx, input.QuestionID, choiceID)
}
