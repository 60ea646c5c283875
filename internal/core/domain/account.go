package domain

import "time"

const MaxUsernameLength = 100

type Account struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Email        string    `json:"email"`
	IsAdmin      bool      `json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
}

// CanDelete reports whether the account may delete q: owners and admins only.
func (a *Account) CanDelete(q *Question) bool {
	if a == nil || q == nil {
		return false
	}
	return a.IsAdmin || q.OwnedBy(a.ID)
}
