package ports

import "context"

type ChoiceRepository interface {
	IncrementVotes(ctx context.Context, questionID, choiceID int64) error
}

type VoteInput struct {
	QuestionID int64
	// ChoiceID is the raw value submitted by the caller.
	ChoiceID string
}

type VoteService interface {
	Vote(ctx context.Context, input VoteInput) error
}
