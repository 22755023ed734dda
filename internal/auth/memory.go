package auth

import (
	"context"
	"sync"
	"time"
)

// MemoryRefreshStore keeps refresh tokens in process memory. It is the
// single-instance default: validity is lost on restart and not shared across
// replicas, which matches the deployment the service assumes.
type MemoryRefreshStore struct {
	mu     sync.Mutex
	byUser map[string][]string
	cap    int
}

// NewMemoryRefreshStore creates a store capped at maxPerUser tokens per user.
// A non-positive cap falls back to 5.
func NewMemoryRefreshStore(maxPerUser int) *MemoryRefreshStore {
	if maxPerUser <= 0 {
		maxPerUser = 5
	}
	return &MemoryRefreshStore{
		byUser: make(map[string][]string),
		cap:    maxPerUser,
	}
}

// Add inserts a token. When the user's set exceeds the cap, the token
// inserted first is evicted.
func (s *MemoryRefreshStore) Add(_ context.Context, userID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tokens := s.byUser[userID]
	tokens = removeToken(tokens, token)
	tokens = append(tokens, token)
	if len(tokens) > s.cap {
		tokens = tokens[len(tokens)-s.cap:]
	}
	s.byUser[userID] = tokens
	return nil
}

// Remove deletes exactly the given token. An empty set drops the user entry.
func (s *MemoryRefreshStore) Remove(_ context.Context, userID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tokens := removeToken(s.byUser[userID], token)
	if len(tokens) == 0 {
		delete(s.byUser, userID)
		return nil
	}
	s.byUser[userID] = tokens
	return nil
}

// Contains reports membership.
func (s *MemoryRefreshStore) Contains(_ context.Context, userID, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.byUser[userID] {
		if t == token {
			return true, nil
		}
	}
	return false, nil
}

// RevokeAll drops every token for the user.
func (s *MemoryRefreshStore) RevokeAll(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byUser, userID)
	return nil
}

// Count returns the number of live tokens for a user.
func (s *MemoryRefreshStore) Count(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byUser[userID])
}

func removeToken(tokens []string, token string) []string {
	out := tokens[:0]
	for _, t := range tokens {
		if t != token {
			out = append(out, t)
		}
	}
	return out
}

// MemoryUserStore is an in-process UserStore used by tests and by local
// development without Postgres.
type MemoryUserStore struct {
	mu      sync.RWMutex
	byID    map[string]*User
	byEmail map[string]string
}

// NewMemoryUserStore creates an empty user store.
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		byID:    make(map[string]*User),
		byEmail: make(map[string]string),
	}
}

func (s *MemoryUserStore) Create(_ context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byEmail[u.Email]; exists {
		return ErrEmailTaken
	}
	cp := *u
	now := time.Now().UTC()
	cp.CreatedAt = now
	cp.UpdatedAt = now
	s.byID[cp.ID] = &cp
	s.byEmail[cp.Email] = cp.ID
	return nil
}

func (s *MemoryUserStore) Find(_ context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *MemoryUserStore) FindByEmail(_ context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s.byID[id]
	return &cp, nil
}

func (s *MemoryUserStore) UpdatePassword(_ context.Context, userID, passwordHash string, tokenVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[userID]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.TokenVersion = tokenVersion
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryUserStore) SetEmailVerified(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[userID]
	if !ok {
		return ErrNotFound
	}
	u.EmailVerified = true
	u.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryUserStore) TouchLastLogin(_ context.Context, userID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[userID]
	if !ok {
		return ErrNotFound
	}
	u.LastLogin = at
	return nil
}
