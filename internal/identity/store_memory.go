package identity

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"stockroom/internal/models"
)

type MemoryStore struct {
	mu       sync.RWMutex
	byID     map[string]models.Credential
	byEmail  map[string]string
	sessions map[string]models.Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:     make(map[string]models.Credential),
		byEmail:  make(map[string]string),
		sessions: make(map[string]models.Session),
	}
}

func (m *MemoryStore) CreateCredential(_ context.Context, c *models.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[c.Email]; ok {
		return ErrUserExists
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now()
	c.CreatedAt, c.UpdatedAt = now, now
	m.byID[c.ID] = *c
	m.byEmail[c.Email] = c.ID
	return nil
}

func (m *MemoryStore) CredentialByEmail(_ context.Context, email string) (*models.Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	c := m.byID[id]
	return &c, nil
}

func (m *MemoryStore) CredentialByID(_ context.Context, id string) (*models.Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (m *MemoryStore) CreateSession(_ context.Context, s *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	m.sessions[s.JTI] = *s
	return nil
}

func (m *MemoryStore) SessionByJTI(_ context.Context, jti string) (*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[jti]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (m *MemoryStore) RevokeSession(_ context.Context, jti string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[jti]
	if !ok || s.RevokedAt != nil {
		return ErrNotFound
	}
	s.RevokedAt = &at
	m.sessions[jti] = s
	return nil
}
