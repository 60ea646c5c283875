package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/vncsmyrnk/pollsite/internal/core/domain"
	"github.com/vncsmyrnk/pollsite/internal/core/ports"
)

const keyPrefix = "session:"

// Store keeps each session in a hash and its access grants in a set, both
// expiring with the session. Grants for deleted questions are not removed;
// they are harmless because the question no longer resolves.
type Store struct {
	client *redis.Client
}

func NewStore(client *redis.Client) ports.SessionStore {
	return &Store{client: client}
}

func sessionKey(id uuid.UUID) string {
	return keyPrefix + id.String()
}

func grantsKey(id uuid.UUID) string {
	return keyPrefix + id.String() + ":grants"
}

func (s *Store) Create(ctx context.Context, session *domain.Session) error {
	fields := map[string]any{
		"csrf_token": session.CSRFToken,
		"created_at": session.CreatedAt.UTC().Format(time.RFC3339Nano),
		"expires_at": session.ExpiresAt.UTC().Format(time.RFC3339Nano),
	}
	if session.AccountID != nil {
		fields["account_id"] = strconv.FormatInt(*session.AccountID, 10)
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, sessionKey(session.ID), fields)
		pipe.ExpireAt(ctx, sessionKey(session.ID), session.ExpiresAt)
		if len(session.Grants) > 0 {
			members := make([]any, 0, len(session.Grants))
			for _, questionID := range session.GrantedIDs() {
				members = append(members, questionID)
			}
			pipe.SAdd(ctx, grantsKey(session.ID), members...)
			pipe.ExpireAt(ctx, grantsKey(session.ID), session.ExpiresAt)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	fields, err := s.client.HGetAll(ctx, sessionKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	session := &domain.Session{
		ID:        id,
		CSRFToken: fields["csrf_token"],
	}
	if session.CreatedAt, err = time.Parse(time.RFC3339Nano, fields["created_at"]); err != nil {
		return nil, fmt.Errorf("invalid created_at: %w", err)
	}
	if session.ExpiresAt, err = time.Parse(time.RFC3339Nano, fields["expires_at"]); err != nil {
		return nil, fmt.Errorf("invalid expires_at: %w", err)
	}
	if raw, ok := fields["account_id"]; ok && raw != "" {
		accountID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid account_id: %w", err)
		}
		session.AccountID = &accountID
	}

	members, err := s.client.SMembers(ctx, grantsKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get grants: %w", err)
	}
	session.Grants = make(map[int64]struct{}, len(members))
	for _, m := range members {
		questionID, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		session.Grants[questionID] = struct{}{}
	}

	return session, nil
}

func (s *Store) Grant(ctx context.Context, id uuid.UUID, questionID int64) error {
	raw, err := s.client.HGet(ctx, sessionKey(id), "expires_at").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.ErrSessionNotFound
		}
		return fmt.Errorf("failed to get session: %w", err)
	}
	expiresAt, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return fmt.Errorf("invalid expires_at: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, grantsKey(id), questionID)
		pipe.ExpireAt(ctx, grantsKey(id), expiresAt)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to grant access: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.client.Del(ctx, sessionKey(id), grantsKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// PurgeExpired is a no-op: keys expire on their own.
func (s *Store) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}
