// Package store defines the persistence boundary for identities.
//
// Stores are pure I/O: they return sentinel errors and never enforce business
// rules. The one semantic they do own is the atomicity of AddToSet and
// RemoveFromSet: concurrent relationship edits converge because these are
// commutative, idempotent set operations, never read-modify-write of a whole
// follower list.
package store

import (
	"context"
	"time"

	"carebridge/internal/identity/models"
	id "carebridge/pkg/domain"
)

// Filter narrows List results. Zero fields match everything.
type Filter struct {
	Role           models.Role
	OrganizationID id.IdentityID
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Department            *string
	Licence               *int
	Profile               *models.Profile
	SubscriptionExpiresAt *time.Time
}

// Store is the single source of truth for identity records and their
// follower sets.
type Store interface {
	Create(ctx context.Context, identity *models.Identity) error
	FindByID(ctx context.Context, identityID id.IdentityID) (*models.Identity, error)
	FindByUsername(ctx context.Context, username string) (*models.Identity, error)
	FindByEmail(ctx context.Context, email string) (*models.Identity, error)
	List(ctx context.Context, filter Filter) ([]*models.Identity, error)
	Update(ctx context.Context, identityID id.IdentityID, patch Patch) error
	Delete(ctx context.Context, identityID id.IdentityID) error

	// AddToSet unions peers into owner's relation set. Owners that do not
	// exist are skipped, matching bulk-update semantics: propagation to a
	// concurrently deleted peer must not fail the whole batch.
	AddToSet(ctx context.Context, owner id.IdentityID, rel models.RelationName, peers []id.IdentityID) error
	// RemoveFromSet subtracts peers from owner's relation set.
	RemoveFromSet(ctx context.Context, owner id.IdentityID, rel models.RelationName, peers []id.IdentityID) error

	// CountByOrganization counts identities of the role owned by the
	// organization. Used to enforce licence ceilings.
	CountByOrganization(ctx context.Context, orgID id.IdentityID, role models.Role) (int, error)
}
