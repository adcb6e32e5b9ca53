package models

import (
	id "carebridge/pkg/domain"
)

// RelationName names one side of a relationship edge inside a follower set.
// The names match the persisted field names of the original data model so
// records survive migration unchanged.
type RelationName string

const (
	RelationConsumers     RelationName = "consumerIds"
	RelationCreators      RelationName = "creatorIds"
	RelationNextOfKins    RelationName = "nextOfKinIds"
	RelationOrganizations RelationName = "organizationIds"
)

// Followers maps a relation name to the set of peer identity ids on that
// relation. Set semantics: no duplicates, no nil ids, and empty relations are
// removed rather than stored as empty slices.
type Followers map[RelationName][]id.IdentityID

// Normalize enforces the set invariants in place: deduplicates each relation
// preserving order, drops nil ids, and deletes relations left empty.
func (f Followers) Normalize() {
	for rel, ids := range f {
		seen := make(map[id.IdentityID]struct{}, len(ids))
		kept := ids[:0]
		for _, peer := range ids {
			if peer.IsNil() {
				continue
			}
			if _, ok := seen[peer]; ok {
				continue
			}
			seen[peer] = struct{}{}
			kept = append(kept, peer)
		}
		if len(kept) == 0 {
			delete(f, rel)
			continue
		}
		f[rel] = kept
	}
}

// Add unions peers into the relation, preserving set semantics.
func (f Followers) Add(rel RelationName, peers ...id.IdentityID) {
	if len(peers) == 0 {
		return
	}
	existing := make(map[id.IdentityID]struct{}, len(f[rel]))
	for _, p := range f[rel] {
		existing[p] = struct{}{}
	}
	for _, p := range peers {
		if p.IsNil() {
			continue
		}
		if _, ok := existing[p]; ok {
			continue
		}
		existing[p] = struct{}{}
		f[rel] = append(f[rel], p)
	}
}

// Remove subtracts peers from the relation, deleting the key when it empties.
func (f Followers) Remove(rel RelationName, peers ...id.IdentityID) {
	ids, ok := f[rel]
	if !ok {
		return
	}
	drop := make(map[id.IdentityID]struct{}, len(peers))
	for _, p := range peers {
		drop[p] = struct{}{}
	}
	kept := ids[:0]
	for _, p := range ids {
		if _, gone := drop[p]; !gone {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		delete(f, rel)
		return
	}
	f[rel] = kept
}

// Contains reports whether the relation holds the peer.
func (f Followers) Contains(rel RelationName, peer id.IdentityID) bool {
	for _, p := range f[rel] {
		if p == peer {
			return true
		}
	}
	return false
}

// Clone returns a deep copy. Stores hand out clones so callers cannot mutate
// shared state.
func (f Followers) Clone() Followers {
	if f == nil {
		return nil
	}
	out := make(Followers, len(f))
	for rel, ids := range f {
		cp := make([]id.IdentityID, len(ids))
		copy(cp, ids)
		out[rel] = cp
	}
	return out
}

// Relations returns the follower relations recognized for the role.
// This table is the single source of truth for which relation names may
// appear on which role; a (role, relation) pair outside it is a programming
// error, not runtime input.
func (r Role) Relations() []RelationName {
	switch r {
	case RoleOrganization:
		return []RelationName{RelationConsumers}
	case RoleCreator:
		return []RelationName{RelationConsumers, RelationNextOfKins}
	case RoleConsumer:
		return []RelationName{RelationCreators, RelationNextOfKins}
	case RoleNextOfKin:
		return []RelationName{RelationConsumers, RelationCreators}
	case RoleAdmin:
		return []RelationName{RelationOrganizations}
	}
	return nil
}

// Edge describes one relationship edge type from the owner side.
// Symmetric edges have a reciprocal relation on the peer side that must mirror
// every change; one-sided edges (organization consumer rosters, admin
// organization assignments) exist only on the owner.
type Edge struct {
	OwnerRole  Role
	Relation   RelationName
	PeerRole   Role
	Reciprocal RelationName
	Symmetric  bool
}

// The complete edge catalogue. Declared as package values so call sites bind
// to edge types at compile time rather than passing relation strings around.
var (
	EdgeCreatorConsumers = Edge{
		OwnerRole: RoleCreator, Relation: RelationConsumers,
		PeerRole: RoleConsumer, Reciprocal: RelationCreators, Symmetric: true,
	}
	EdgeCreatorNextOfKins = Edge{
		OwnerRole: RoleCreator, Relation: RelationNextOfKins,
		PeerRole: RoleNextOfKin, Reciprocal: RelationCreators, Symmetric: true,
	}
	EdgeConsumerCreators = Edge{
		OwnerRole: RoleConsumer, Relation: RelationCreators,
		PeerRole: RoleCreator, Reciprocal: RelationConsumers, Symmetric: true,
	}
	EdgeConsumerNextOfKins = Edge{
		OwnerRole: RoleConsumer, Relation: RelationNextOfKins,
		PeerRole: RoleNextOfKin, Reciprocal: RelationConsumers, Symmetric: true,
	}
	EdgeNextOfKinConsumers = Edge{
		OwnerRole: RoleNextOfKin, Relation: RelationConsumers,
		PeerRole: RoleConsumer, Reciprocal: RelationNextOfKins, Symmetric: true,
	}
	EdgeNextOfKinCreators = Edge{
		OwnerRole: RoleNextOfKin, Relation: RelationCreators,
		PeerRole: RoleCreator, Reciprocal: RelationNextOfKins, Symmetric: true,
	}
	EdgeOrganizationConsumers = Edge{
		OwnerRole: RoleOrganization, Relation: RelationConsumers,
		PeerRole: RoleConsumer, Symmetric: false,
	}
	EdgeAdminOrganizations = Edge{
		OwnerRole: RoleAdmin, Relation: RelationOrganizations,
		PeerRole: RoleOrganization, Symmetric: false,
	}
)

var edges = []Edge{
	EdgeCreatorConsumers, EdgeCreatorNextOfKins,
	EdgeConsumerCreators, EdgeConsumerNextOfKins,
	EdgeNextOfKinConsumers, EdgeNextOfKinCreators,
	EdgeOrganizationConsumers, EdgeAdminOrganizations,
}

// EdgeFor resolves the edge for a (role, relation) pair. The second return is
// false when the pair is not in the catalogue.
func EdgeFor(owner Role, rel RelationName) (Edge, bool) {
	for _, e := range edges {
		if e.OwnerRole == owner && e.Relation == rel {
			return e, true
		}
	}
	return Edge{}, false
}
