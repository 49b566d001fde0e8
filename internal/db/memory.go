package db

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/SHADYEHABOCOR/Main-Grubtech-Website-sub003/internal/model"
)

// Memory keeps users and refresh tokens in process memory. It is meant for
// local development and tests; nothing survives a restart.
type Memory struct {
	mu      sync.Mutex
	users   map[int64]*model.User
	tokens  map[string]*model.RefreshToken
	userSeq int64
	tokSeq  int64
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		users:  make(map[int64]*model.User),
		tokens: make(map[string]*model.RefreshToken),
		now:    time.Now,
	}
}

func (m *Memory) Ping(context.Context) error { return nil }
func (m *Memory) Close() error               { return nil }

func (m *Memory) CreateUser(_ context.Context, username, passwordHash string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.insertUserLocked(username, passwordHash)
}

func (m *Memory) CreateFirstUser(_ context.Context, username, passwordHash string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.users) > 0 {
		return nil, ErrUsersExist
	}
	return m.insertUserLocked(username, passwordHash)
}

// insertUserLocked must be called with m.mu held.
func (m *Memory) insertUserLocked(username, passwordHash string) (*model.User, error) {
	for _, u := range m.users {
		if u.Username == username {
			return nil, fmt.Errorf("user %q: %w", username, ErrConflict)
		}
	}
	m.userSeq++
	now := m.now()
	u := &model.User{
		ID:           m.userSeq,
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (m *Memory) GetUserByUsername(_ context.Context, username string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, u := range m.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) GetUserByID(_ context.Context, userID int64) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// DeleteUser removes the user and its refresh tokens.
func (m *Memory) DeleteUser(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[userID]; !ok {
		return ErrNotFound
	}
	delete(m.users, userID)
	for hash, t := range m.tokens {
		if t.UserID == userID {
			delete(m.tokens, hash)
		}
	}
	return nil
}

func (m *Memory) CountUsers(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.users)), nil
}

func (m *Memory) InsertRefreshToken(_ context.Context, userID int64, tokenHash string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.insertLocked(userID, tokenHash, expiresAt)
	return nil
}

func (m *Memory) GetRefreshTokenByHash(_ context.Context, tokenHash string) (*model.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tokens[tokenHash]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *Memory) RevokeRefreshTokenByHash(_ context.Context, tokenHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t, ok := m.tokens[tokenHash]; ok && t.RevokedAt == nil {
		now := m.now()
		t.RevokedAt = &now
	}
	return nil
}

func (m *Memory) RevokeAllUserRefreshTokens(_ context.Context, userID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	now := m.now()
	for _, t := range m.tokens {
		if t.UserID == userID && t.RevokedAt == nil {
			revoked := now
			t.RevokedAt = &revoked
			n++
		}
	}
	return n, nil
}

func (m *Memory) RotateRefreshToken(_ context.Context, oldTokenID int64, userID int64, newTokenHash string, newExpiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var old *model.RefreshToken
	for _, t := range m.tokens {
		if t.ID == oldTokenID {
			old = t
			break
		}
	}
	if old == nil || old.RevokedAt != nil {
		return fmt.Errorf("refresh token id=%d: %w", oldTokenID, ErrNotFound)
	}

	now := m.now()
	old.RevokedAt = &now
	m.insertLocked(userID, newTokenHash, newExpiresAt)
	return nil
}

func (m *Memory) insertLocked(userID int64, tokenHash string, expiresAt time.Time) {
	m.tokSeq++
	m.tokens[tokenHash] = &model.RefreshToken{
		ID:        m.tokSeq,
		UserID:    userID,
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
		CreatedAt: m.now(),
	}
}
