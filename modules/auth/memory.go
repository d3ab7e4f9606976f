package auth

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStorage is an in-memory Storage for tests and local development.
type MemoryStorage struct {
	mu    sync.RWMutex
	users map[uuid.UUID]User
	keys  map[uuid.UUID]APIKey
}

// NewMemoryStorage returns an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		users: make(map[uuid.UUID]User),
		keys:  make(map[uuid.UUID]APIKey),
	}
}

// CreateUser implements Storage.
func (s *MemoryStorage) CreateUser(_ context.Context, user User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(user.Email)
	for _, existing := range s.users {
		if strings.ToLower(existing.Email) == email {
			return ErrEmailTaken
		}
	}

	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = now
	}
	s.users[user.ID] = user
	return nil
}

// UserByEmail implements Storage.
func (s *MemoryStorage) UserByEmail(_ context.Context, email string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	email = strings.ToLower(email)
	for _, user := range s.users {
		if strings.ToLower(user.Email) == email {
			return user, nil
		}
	}
	return User{}, ErrUserNotFound
}

// UserByID implements Storage.
func (s *MemoryStorage) UserByID(_ context.Context, id uuid.UUID) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return user, nil
}

// AssignOrganization implements Storage.
func (s *MemoryStorage) AssignOrganization(_ context.Context, userID, orgID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	user.OrganizationID = orgID
	user.Role = RoleOwner
	user.UpdatedAt = time.Now()
	s.users[userID] = user
	return nil
}

// UsersByOrganization implements Storage.
func (s *MemoryStorage) UsersByOrganization(_ context.Context, orgID uuid.UUID) ([]User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []User
	for _, user := range s.users {
		if user.OrganizationID == orgID {
			out = append(out, user)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// CreateAPIKey implements Storage.
func (s *MemoryStorage) CreateAPIKey(_ context.Context, key APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if key.CreatedAt.IsZero() {
		key.CreatedAt = time.Now()
	}
	s.keys[key.ID] = key
	return nil
}

// APIKeyByValue implements Storage.
func (s *MemoryStorage) APIKeyByValue(_ context.Context, value string) (APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, key := range s.keys {
		if key.Value == value && key.Active {
			return key, nil
		}
	}
	return APIKey{}, ErrAPIKeyNotFound
}

// APIKeysByUser implements Storage.
func (s *MemoryStorage) APIKeysByUser(_ context.Context, userID uuid.UUID) ([]APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []APIKey
	for _, key := range s.keys {
		if key.UserID == userID {
			out = append(out, key)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// DeactivateAPIKey implements Storage.
func (s *MemoryStorage) DeactivateAPIKey(_ context.Context, userID, keyID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.keys[keyID]
	if !ok || key.UserID != userID {
		return ErrAPIKeyNotFound
	}
	key.Active = false
	s.keys[keyID] = key
	return nil
}

// TouchAPIKey implements Storage.
func (s *MemoryStorage) TouchAPIKey(_ context.Context, keyID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.keys[keyID]
	if !ok {
		return ErrAPIKeyNotFound
	}
	now := time.Now()
	key.LastUsedAt = &now
	s.keys[keyID] = key
	return nil
}
