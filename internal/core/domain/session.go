package domain

import (
	"time"

	"github.com/google/uuid"
)

type Session struct {
	ID        uuid.UUID
	AccountID *int64
	CSRFToken string
	// Grants holds the ids of access-gated questions unlocked in this session.
	Grants    map[int64]struct{}
	CreatedAt time.Time
	ExpiresAt time.Time
}

func (s *Session) IsAuthenticated() bool {
	return s != nil && s.AccountID != nil
}

func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

func (s *Session) HasAccess(questionID int64) bool {
	if s == nil {
		return false
	}
	_, ok := s.Grants[questionID]
	return ok
}

func (s *Session) Grant(questionID int64) {
	if s.Grants == nil {
		s.Grants = make(map[int64]struct{})
	}
	s.Grants[questionID] = struct{}{}
}

// GrantedIDs returns the granted question ids in no particular order.
func (s *Session) GrantedIDs() []int64 {
	ids := make([]int64, 0, len(s.Grants))
	for id := range s.Grants {
		ids = append(ids, id)
	}
	return ids
}
