package auth

import (
	"sync"
	"time"
)

// usedTokens remembers the jti of consumed single-use tokens until their
// natural expiry, so a reset link cannot be replayed within its lifetime.
type usedTokens struct {
	mu   sync.Mutex
	seen map[string]time.Time
}

func newUsedTokens() *usedTokens {
	return &usedTokens{seen: make(map[string]time.Time)}
}

// consume marks the jti as spent. It returns false if the jti was already
// consumed. Expired entries are pruned opportunistically on each call.
func (u *usedTokens) consume(jti string, expiresAt, now time.Time) bool {
	if jti == "" {
		return false
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	for id, exp := range u.seen {
		if now.After(exp) {
			delete(u.seen, id)
		}
	}
	if _, dup := u.seen[jti]; dup {
		return false
	}
	u.seen[jti] = expiresAt
	return true
}
