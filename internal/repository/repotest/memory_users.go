// Package repotest provides in-memory repository implementations for tests.
package repotest

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/auth-gateway/internal/domain"
	"github.com/spec-kit/auth-gateway/internal/repository"
)

// MemoryUsers is an in-memory repository.UserRepository.
type MemoryUsers struct {
	mu       sync.Mutex
	byID     map[string]*domain.User
	persists int
	failWith error
}

var _ repository.UserRepository = (*MemoryUsers)(nil)

// NewMemoryUsers seeds the store with users.
func NewMemoryUsers(users ...*domain.User) *MemoryUsers {
	m := &MemoryUsers{byID: make(map[string]*domain.User)}
	for _, u := range users {
		m.byID[u.ID] = u
	}
	return m
}

// FailPersist makes every later PersistCredentials call return err.
func (m *MemoryUsers) FailPersist(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
}

// Persists counts credential writes that touched a row.
func (m *MemoryUsers) Persists() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.persists
}

// Get returns a copy of the stored user.
func (m *MemoryUsers) Get(id string) (domain.User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return domain.User{}, false
	}
	return *u, true
}

func (m *MemoryUsers) Create(_ context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findLocked(user.Username) != nil {
		return repository.ErrUsernameTaken
	}
	stored := *user
	m.byID[user.ID] = &stored
	return nil
}

func (m *MemoryUsers) FindSubjectID(_ context.Context, username string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u := m.findLocked(username); u != nil {
		return u.ID, nil
	}
	return "", pgx.ErrNoRows
}

func (m *MemoryUsers) PasswordHash(_ context.Context, id string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byID[id]; ok {
		return u.PasswordHash, nil
	}
	return "", pgx.ErrNoRows
}

func (m *MemoryUsers) PersistCredentials(_ context.Context, id string, update domain.CredentialUpdate) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return 0, m.failWith
	}
	u, ok := m.byID[id]
	if !ok || update.IsEmpty() {
		return 0, nil
	}
	m.persists++
	if update.AccessToken != "" {
		token := update.AccessToken
		u.AccessToken = &token
	}
	if update.RefreshToken != "" {
		token := update.RefreshToken
		u.RefreshToken = &token
	}
	return 1, nil
}

func (m *MemoryUsers) ExistsByID(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.byID[id]
	return ok, nil
}

func (m *MemoryUsers) UsernameExists(_ context.Context, username string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findLocked(username) != nil, nil
}

func (m *MemoryUsers) findLocked(username string) *domain.User {
	for _, u := range m.byID {
		if u.Username == username {
			return u
		}
	}
	return nil
}
