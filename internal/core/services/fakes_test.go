package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/pollsite/internal/core/domain"
)

type fakeQuestionRepo struct {
	mu        sync.Mutex
	nextID    int64
	questions map[int64]*domain.Question

	lastLimit int
	searched  []string
}

func newFakeQuestionRepo(questions ...*domain.Question) *fakeQuestionRepo {
	r := &fakeQuestionRepo{questions: make(map[int64]*domain.Question)}
	for _, q := range questions {
		r.questions[q.ID] = q
		if q.ID > r.nextID {
			r.nextID = q.ID
		}
	}
	return r
}

func (r *fakeQuestionRepo) Save(ctx context.Context, q *domain.Question) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	q.ID = r.nextID
	for i := range q.Choices {
		q.Choices[i].ID = q.ID*100 + int64(i)
		q.Choices[i].QuestionID = q.ID
	}
	r.questions[q.ID] = q
	return nil
}

func (r *fakeQuestionRepo) GetByID(ctx context.Context, id int64) (*domain.Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.questions[id]
	if !ok {
		return nil, domain.ErrQuestionNotFound
	}
	return q, nil
}

func (r *fakeQuestionRepo) GetPublished(ctx context.Context, id int64, now time.Time) (*domain.Question, error) {
	q, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !q.IsPublished(now) {
		return nil, domain.ErrQuestionNotFound
	}
	return q, nil
}

func (r *fakeQuestionRepo) ListPublished(ctx context.Context, now time.Time, limit int) ([]*domain.Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastLimit = limit

	var list []*domain.Question
	for _, q := range r.questions {
		if q.IsPublished(now) {
			list = append(list, q)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].PubDate.After(list[j].PubDate) })
	if len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (r *fakeQuestionRepo) Search(ctx context.Context, query string, now time.Time) ([]*domain.SearchResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.searched = append(r.searched, query)

	var results []*domain.SearchResult
	for _, q := range r.questions {
		if q.IsPublished(now) && strings.Contains(strings.ToLower(q.Text), strings.ToLower(query)) {
			results = append(results, &domain.SearchResult{ID: q.ID, Text: q.Text, PubDate: q.PubDate})
		}
	}
	return results, nil
}

func (r *fakeQuestionRepo) SetAccessCodeHash(ctx context.Context, id int64, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.questions[id]
	if !ok {
		return domain.ErrQuestionNotFound
	}
	q.AccessCodeHash = hash
	return nil
}

func (r *fakeQuestionRepo) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.questions[id]; !ok {
		return domain.ErrQuestionNotFound
	}
	delete(r.questions, id)
	return nil
}

type fakeChoiceRepo struct {
	mu    sync.Mutex
	calls int
	votes map[int64]int64
	owner map[int64]int64
}

func newFakeChoiceRepo(questions ...*domain.Question) *fakeChoiceRepo {
	r := &fakeChoiceRepo{votes: make(map[int64]int64), owner: make(map[int64]int64)}
	for _, q := range questions {
		for _, c := range q.Choices {
			r.owner[c.ID] = q.ID
		}
	}
	return r
}

func (r *fakeChoiceRepo) IncrementVotes(ctx context.Context, questionID, choiceID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.owner[choiceID] != questionID {
		return domain.ErrInvalidChoice
	}
	r.votes[choiceID]++
	return nil
}

type fakeAccountRepo struct {
	mu       sync.Mutex
	accounts map[int64]*domain.Account
	lookups  []string
}

func newFakeAccountRepo(accounts ...*domain.Account) *fakeAccountRepo {
	r := &fakeAccountRepo{accounts: make(map[int64]*domain.Account)}
	for _, a := range accounts {
		r.accounts[a.ID] = a
	}
	return r
}

func (r *fakeAccountRepo) GetByUsername(ctx context.Context, username string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups = append(r.lookups, username)
	for _, a := range r.accounts {
		if a.Username == username {
			return a, nil
		}
	}
	return nil, nil
}

func (r *fakeAccountRepo) GetByID(ctx context.Context, id int64) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.accounts[id], nil
}

func (r *fakeAccountRepo) Create(ctx context.Context, account *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.Username == account.Username {
			return domain.ErrUsernameTaken
		}
	}
	account.ID = int64(len(r.accounts) + 1)
	account.CreatedAt = time.Now()
	r.accounts[account.ID] = account
	return nil
}

type fakeSessionStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*domain.Session
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: make(map[uuid.UUID]*domain.Session)}
}

func (s *fakeSessionStore) Create(ctx context.Context, session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *session
	stored.Grants = make(map[int64]struct{})
	for id := range session.Grants {
		stored.Grants[id] = struct{}{}
	}
	s.sessions[session.ID] = &stored
	return nil
}

func (s *fakeSessionStore) Get(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, nil
	}
	copied := *session
	return &copied, nil
}

func (s *fakeSessionStore) Grant(ctx context.Context, id uuid.UUID, questionID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return domain.ErrSessionNotFound
	}
	session.Grant(questionID)
	return nil
}

func (s *fakeSessionStore) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

func (s *fakeSessionStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, session := range s.sessions {
		if session.IsExpired(now) {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}

// plainHasher stands in for bcrypt where hashing cost is irrelevant.
type plainHasher struct{}

func (plainHasher) Hash(secret string) (string, error) { return "hashed:" + secret, nil }

func (plainHasher) Compare(hash, secret string) bool { return hash != "" && hash == "hashed:"+secret }
