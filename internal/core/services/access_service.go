package services

import (
	"context"
	"fmt"
	"time"

	"github.com/vncsmyrnk/pollsite/internal/core/domain"
	"github.com/vncsmyrnk/pollsite/internal/core/ports"
)

// bcrypt ignores input past 72 bytes.
const maxAccessCodeLength = 72

type accessService struct {
	questionRepo ports.QuestionRepository
	sessions     ports.SessionStore
	hasher       ports.SecretHasher
}

func NewAccessService(questionRepo ports.QuestionRepository, sessions ports.SessionStore, hasher ports.SecretHasher) ports.AccessService {
	return &accessService{
		questionRepo: questionRepo,
		sessions:     sessions,
		hasher:       hasher,
	}
}

func (s *accessService) Unlock(ctx context.Context, session *domain.Session, questionID int64, code string) error {
	if questionID <= 0 {
		return domain.ErrQuestionNotFound
	}

	question, err := s.questionRepo.GetPublished(ctx, questionID, time.Now())
	if err != nil {
		return err
	}
	if !question.RequiresAccessCode() {
		return nil
	}

	if code == "" || len(code) > maxAccessCodeLength {
		return domain.ErrAccessDenied
	}
	if !s.hasher.Compare(question.AccessCodeHash, code) {
		return domain.ErrAccessDenied
	}

	if err := s.sessions.Grant(ctx, session.ID, questionID); err != nil {
		return fmt.Errorf("failed to grant access: %w", err)
	}
	session.Grant(questionID)

	return nil
}
