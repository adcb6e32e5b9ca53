package models

import (
	"time"

	id "carebridge/pkg/domain"
	dErrors "carebridge/pkg/domain-errors"
)

// Role discriminates the five identity kinds. It is fixed at provisioning
// time; no code path changes it afterwards.
type Role string

const (
	RoleOrganization Role = "organization"
	RoleCreator      Role = "creator"
	RoleConsumer     Role = "consumer"
	RoleNextOfKin    Role = "next-of-kin"
	RoleAdmin        Role = "admin"
)

// Roles lists every valid role, in the order they appear in the product.
var Roles = []Role{RoleOrganization, RoleCreator, RoleConsumer, RoleNextOfKin, RoleAdmin}

func (r Role) Valid() bool {
	switch r {
	case RoleOrganization, RoleCreator, RoleConsumer, RoleNextOfKin, RoleAdmin:
		return true
	}
	return false
}

// SignInType is the identity-provider sign-in mechanism derived from the role.
type SignInType string

const (
	SignInUserName     SignInType = "userName"
	SignInEmailAddress SignInType = "emailAddress"
)

// SignInType returns the provider sign-in mechanism for the role. Consumers
// sign in by username; every other role signs in by email address.
func (r Role) SignInType() SignInType {
	if r == RoleConsumer {
		return SignInUserName
	}
	return SignInEmailAddress
}

// HasSubscription reports whether identities of this role are enrolled in the
// streaming subscription service. Next-of-kin accounts are not: they have no
// streaming surface in the current product.
func (r Role) HasSubscription() bool {
	return r != RoleNextOfKin
}

// Profile carries the display fields shared by all roles. Which fields are
// populated depends on the role; the store persists them as-is.
type Profile struct {
	FirstName   string `json:"firstName,omitempty"`
	LastName    string `json:"lastName,omitempty"`
	Name        string `json:"name,omitempty"`
	Avatar      string `json:"avatar,omitempty"`
	JobTitle    string `json:"jobTitle,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
}

// Identity is the root record for any role.
//
// Invariants:
//   - ID equals the id issued by the identity provider; there is no local
//     id generation.
//   - Role never changes after construction.
//   - Followers never contains duplicates, nil ids, or empty relation keys.
//   - SubscriptionExpiresAt is nil for roles without a subscription.
//   - UpdatedDate is set on every mutation, including follower-set changes.
type Identity struct {
	ID   id.IdentityID `json:"id"`
	Role Role          `json:"role"`

	// Username is set for consumers; Email for every other role.
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`

	// OrganizationName is set for organization identities only.
	OrganizationName string `json:"organizationName,omitempty"`
	// OrganizationID links creators, consumers and next-of-kin to their
	// owning organization. Zero for organizations and admins.
	OrganizationID id.IdentityID `json:"organizationId,omitempty"`

	Department string `json:"department,omitempty"`
	// Licence limits how many consumer accounts the organization may hold.
	// Zero means unlimited. Only meaningful for organizations.
	Licence int `json:"licence,omitempty"`

	Profile   Profile   `json:"profile"`
	Followers Followers `json:"followers,omitempty"`

	SubscriptionExpiresAt *time.Time `json:"subscriptionExpiresAt,omitempty"`

	CreatedDate time.Time  `json:"createdDate"`
	UpdatedDate *time.Time `json:"updatedDate,omitempty"`
}

// New constructs an Identity with normalized followers. The identityID must be
// the provider-issued id.
func New(identityID id.IdentityID, role Role, now time.Time) (*Identity, error) {
	if identityID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "identity id is required")
	}
	if !role.Valid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "unknown role")
	}
	return &Identity{
		ID:          identityID,
		Role:        role,
		Followers:   Followers{},
		CreatedDate: now,
	}, nil
}

// HasRole reports whether the identity holds one of the given roles.
func (i *Identity) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if i.Role == r {
			return true
		}
	}
	return false
}

// Touch records a mutation timestamp.
func (i *Identity) Touch(now time.Time) {
	i.UpdatedDate = &now
}
