package organization

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/apimeter/apimeter/modules/billing"
)

// MemoryStore is an in-memory Store for tests and local development.
// It delegates subscription rows to a billing store so both modules see
// the same data.
type MemoryStore struct {
	mu   sync.RWMutex
	orgs map[uuid.UUID]Organization
	subs *billing.MemoryStore
}

// NewMemoryStore returns a MemoryStore sharing the given billing store.
func NewMemoryStore(subs *billing.MemoryStore) *MemoryStore {
	return &MemoryStore{
		orgs: make(map[uuid.UUID]Organization),
		subs: subs,
	}
}

// Create implements Store.
func (s *MemoryStore) Create(ctx context.Context, org Organization, freeSub billing.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.orgs {
		if existing.Slug == org.Slug {
			return ErrSlugTaken
		}
	}

	now := time.Now()
	if org.CreatedAt.IsZero() {
		org.CreatedAt = now
	}
	if org.UpdatedAt.IsZero() {
		org.UpdatedAt = now
	}
	if err := s.subs.Create(ctx, freeSub); err != nil {
		return err
	}
	s.orgs[org.ID] = org
	return nil
}

// ByID implements Store.
func (s *MemoryStore) ByID(_ context.Context, id uuid.UUID) (Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	org, ok := s.orgs[id]
	if !ok {
		return Organization{}, ErrNotFound
	}
	return org, nil
}

// BySlug implements Store.
func (s *MemoryStore) BySlug(_ context.Context, slug string) (Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, org := range s.orgs {
		if org.Slug == slug {
			return org, nil
		}
	}
	return Organization{}, ErrNotFound
}

// Update implements Store.
func (s *MemoryStore) Update(_ context.Context, org Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orgs[org.ID]; !ok {
		return ErrNotFound
	}
	org.UpdatedAt = time.Now()
	s.orgs[org.ID] = org
	return nil
}
