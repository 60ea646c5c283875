package bcrypt

import (
	"github.com/vncsmyrnk/pollsite/internal/core/ports"
	"golang.org/x/crypto/bcrypt"
)

type Hasher struct {
	cost int
}

// NewHasher returns a hasher using cost, or bcrypt.DefaultCost when cost is
// outside the range bcrypt accepts.
func NewHasher(cost int) ports.SecretHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost}
}

func (h *Hasher) Hash(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), h.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Compare reports whether secret matches hash. The comparison is constant
// time; a malformed or empty hash never matches.
func (h *Hasher) Compare(hash, secret string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}
