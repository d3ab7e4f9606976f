package billing

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store for tests and local development.
type MemoryStore struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]Subscription
	now  func() time.Time
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		subs: make(map[uuid.UUID]Subscription),
		now:  time.Now,
	}
}

// Create implements Store.
func (s *MemoryStore) Create(_ context.Context, sub Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sub.Status == StatusActive {
		for _, existing := range s.subs {
			if existing.OrganizationID == sub.OrganizationID && existing.Status == StatusActive {
				return ErrActiveExists
			}
		}
	}

	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	now := s.now()
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	if sub.UpdatedAt.IsZero() {
		sub.UpdatedAt = now
	}
	s.subs[sub.ID] = sub
	return nil
}

// ActiveByOrganization implements Store.
func (s *MemoryStore) ActiveByOrganization(_ context.Context, orgID uuid.UUID) (Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *Subscription
	for _, sub := range s.subs {
		if sub.OrganizationID != orgID || sub.Status != StatusActive {
			continue
		}
		if found == nil || sub.CreatedAt.After(found.CreatedAt) {
			copied := sub
			found = &copied
		}
	}
	if found == nil {
		return Subscription{}, ErrSubscriptionNotFound
	}
	return *found, nil
}

// ByOrganization implements Store.
func (s *MemoryStore) ByOrganization(_ context.Context, orgID uuid.UUID) ([]Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Subscription
	for _, sub := range s.subs {
		if sub.OrganizationID == orgID {
			out = append(out, sub)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// UpdateActiveByOrganization implements Store.
func (s *MemoryStore) UpdateActiveByOrganization(ctx context.Context, orgID uuid.UUID, patch SubscriptionPatch) (Subscription, error) {
	active, err := s.ActiveByOrganization(ctx, orgID)
	if err != nil {
		return Subscription{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sub := s.subs[active.ID]
	applyPatch(&sub, patch)
	sub.UpdatedAt = s.now()
	s.subs[sub.ID] = sub
	return sub, nil
}

// UpdateByExternalID implements Store. Every row carrying the external
// ID is patched, mirroring the single-statement update the Postgres
// store performs.
func (s *MemoryStore) UpdateByExternalID(_ context.Context, externalID string, patch SubscriptionPatch, occurredAt time.Time, force bool) (bool, error) {
	if externalID == "" {
		return false, ErrSubscriptionNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	matched := false
	applied := false
	for id, sub := range s.subs {
		if sub.ExternalID != externalID {
			continue
		}
		matched = true
		if !force && sub.UpdatedAt.After(occurredAt) {
			continue
		}
		applyPatch(&sub, patch)
		sub.UpdatedAt = s.now()
		s.subs[id] = sub
		applied = true
	}
	if !matched {
		return false, ErrSubscriptionNotFound
	}
	return applied, nil
}

func applyPatch(sub *Subscription, patch SubscriptionPatch) {
	if patch.Plan != nil {
		sub.Plan = *patch.Plan
	}
	if patch.Status != nil {
		sub.Status = *patch.Status
	}
	if patch.MonthlyQuota != nil {
		sub.MonthlyQuota = *patch.MonthlyQuota
	}
	if patch.RateLimit != nil {
		sub.RateLimit = *patch.RateLimit
	}
	if patch.ExternalID != nil {
		sub.ExternalID = *patch.ExternalID
	}
	if patch.CustomerID != nil {
		sub.CustomerID = *patch.CustomerID
	}
	if patch.PriceID != nil {
		sub.PriceID = *patch.PriceID
	}
	if patch.CancelAtPeriodEnd != nil {
		sub.CancelAtPeriodEnd = *patch.CancelAtPeriodEnd
	}
	if patch.CurrentPeriodStart != nil {
		sub.CurrentPeriodStart = *patch.CurrentPeriodStart
	}
	if patch.CurrentPeriodEnd != nil {
		sub.CurrentPeriodEnd = *patch.CurrentPeriodEnd
	}
}
