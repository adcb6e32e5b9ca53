// Package memory provides the in-memory identity store used in development
// and unit tests.
package memory

import (
	"context"
	"strings"
	"sync"

	"carebridge/internal/identity/models"
	"carebridge/internal/identity/store"
	id "carebridge/pkg/domain"
	"carebridge/pkg/platform/sentinel"
	"carebridge/pkg/requestcontext"
)

// Store keeps identities in a map guarded by an RWMutex. Set operations are
// atomic under the write lock, which gives the same convergence guarantee the
// SQL store gets from per-row upserts.
type Store struct {
	mu         sync.RWMutex
	identities map[id.IdentityID]*models.Identity
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{identities: make(map[id.IdentityID]*models.Identity)}
}

func (s *Store) Create(ctx context.Context, identity *models.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.identities[identity.ID]; ok {
		return sentinel.ErrConflict
	}
	for _, existing := range s.identities {
		if identity.Username != "" && strings.EqualFold(existing.Username, identity.Username) {
			return sentinel.ErrConflict
		}
		if identity.Email != "" && strings.EqualFold(existing.Email, identity.Email) {
			return sentinel.ErrConflict
		}
	}

	cp := clone(identity)
	cp.Followers.Normalize()
	s.identities[identity.ID] = cp
	return nil
}

func (s *Store) FindByID(ctx context.Context, identityID id.IdentityID) (*models.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	identity, ok := s.identities[identityID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return clone(identity), nil
}

func (s *Store) FindByUsername(ctx context.Context, username string) (*models.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, identity := range s.identities {
		if identity.Username != "" && strings.EqualFold(identity.Username, username) {
			return clone(identity), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*models.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, identity := range s.identities {
		if identity.Email != "" && strings.EqualFold(identity.Email, email) {
			return clone(identity), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *Store) List(ctx context.Context, filter store.Filter) ([]*models.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Identity
	for _, identity := range s.identities {
		if filter.Role != "" && identity.Role != filter.Role {
			continue
		}
		if !filter.OrganizationID.IsNil() && identity.OrganizationID != filter.OrganizationID {
			continue
		}
		out = append(out, clone(identity))
	}
	return out, nil
}

func (s *Store) Update(ctx context.Context, identityID id.IdentityID, patch store.Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	identity, ok := s.identities[identityID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if patch.Department != nil {
		identity.Department = *patch.Department
	}
	if patch.Licence != nil {
		identity.Licence = *patch.Licence
	}
	if patch.Profile != nil {
		identity.Profile = *patch.Profile
	}
	if patch.SubscriptionExpiresAt != nil {
		expires := *patch.SubscriptionExpiresAt
		identity.SubscriptionExpiresAt = &expires
	}
	identity.Touch(requestcontext.Now(ctx))
	return nil
}

func (s *Store) Delete(ctx context.Context, identityID id.IdentityID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.identities[identityID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.identities, identityID)
	return nil
}

func (s *Store) AddToSet(ctx context.Context, owner id.IdentityID, rel models.RelationName, peers []id.IdentityID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	identity, ok := s.identities[owner]
	if !ok {
		return nil
	}
	if identity.Followers == nil {
		identity.Followers = models.Followers{}
	}
	identity.Followers.Add(rel, peers...)
	identity.Touch(requestcontext.Now(ctx))
	return nil
}

func (s *Store) RemoveFromSet(ctx context.Context, owner id.IdentityID, rel models.RelationName, peers []id.IdentityID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	identity, ok := s.identities[owner]
	if !ok {
		return nil
	}
	identity.Followers.Remove(rel, peers...)
	identity.Touch(requestcontext.Now(ctx))
	return nil
}

func (s *Store) CountByOrganization(ctx context.Context, orgID id.IdentityID, role models.Role) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, identity := range s.identities {
		if identity.Role == role && identity.OrganizationID == orgID {
			count++
		}
	}
	return count, nil
}

func clone(identity *models.Identity) *models.Identity {
	cp := *identity
	cp.Followers = identity.Followers.Clone()
	if identity.SubscriptionExpiresAt != nil {
		expires := *identity.SubscriptionExpiresAt
		cp.SubscriptionExpiresAt = &expires
	}
	if identity.UpdatedDate != nil {
		updated := *identity.UpdatedDate
		cp.UpdatedDate = &updated
	}
	return &cp
}
