package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "carebridge/pkg/domain"
)

func newID() id.IdentityID {
	return id.IdentityID(uuid.New())
}

func TestFollowers_Normalize(t *testing.T) {
	a, b := newID(), newID()

	t.Run("drops duplicates preserving order", func(t *testing.T) {
		f := Followers{RelationCreators: {a, b, a, b}}
		f.Normalize()
		assert.Equal(t, []id.IdentityID{a, b}, f[RelationCreators])
	})

	t.Run("drops nil ids", func(t *testing.T) {
		f := Followers{RelationCreators: {a, {}, b}}
		f.Normalize()
		assert.Equal(t, []id.IdentityID{a, b}, f[RelationCreators])
	})

	t.Run("deletes relations left empty", func(t *testing.T) {
		f := Followers{
			RelationCreators:   {{}},
			RelationNextOfKins: {},
			RelationConsumers:  {a},
		}
		f.Normalize()
		assert.NotContains(t, f, RelationCreators)
		assert.NotContains(t, f, RelationNextOfKins)
		assert.Contains(t, f, RelationConsumers)
	})
}

func TestFollowers_AddRemove(t *testing.T) {
	a, b, c := newID(), newID(), newID()

	t.Run("add is idempotent", func(t *testing.T) {
		f := Followers{}
		f.Add(RelationConsumers, a, b)
		f.Add(RelationConsumers, b, c)
		f.Add(RelationConsumers, a)
		assert.Equal(t, []id.IdentityID{a, b, c}, f[RelationConsumers])
	})

	t.Run("add ignores nil ids", func(t *testing.T) {
		f := Followers{}
		f.Add(RelationConsumers, id.IdentityID{}, a)
		assert.Equal(t, []id.IdentityID{a}, f[RelationConsumers])
	})

	t.Run("remove deletes emptied relation key", func(t *testing.T) {
		f := Followers{RelationConsumers: {a}}
		f.Remove(RelationConsumers, a)
		assert.NotContains(t, f, RelationConsumers)
	})

	t.Run("remove of absent peer is a no-op", func(t *testing.T) {
		f := Followers{RelationConsumers: {a}}
		f.Remove(RelationConsumers, b)
		f.Remove(RelationCreators, a)
		assert.Equal(t, []id.IdentityID{a}, f[RelationConsumers])
	})
}

func TestFollowers_Clone(t *testing.T) {
	a, b := newID(), newID()
	f := Followers{RelationCreators: {a}}

	cp := f.Clone()
	cp.Add(RelationCreators, b)

	assert.Len(t, f[RelationCreators], 1)
	assert.Len(t, cp[RelationCreators], 2)
}

// TestEdgeCatalogue_Reciprocity encodes the graph symmetry contract: for every
// symmetric edge, the reciprocal relation must exist on the peer role and map
// back to the owner side.
func TestEdgeCatalogue_Reciprocity(t *testing.T) {
	for _, e := range edges {
		if !e.Symmetric {
			continue
		}
		back, ok := EdgeFor(e.PeerRole, e.Reciprocal)
		require.True(t, ok, "missing reciprocal edge for (%s, %s)", e.PeerRole, e.Reciprocal)
		assert.Equal(t, e.OwnerRole, back.PeerRole)
		assert.Equal(t, e.Relation, back.Reciprocal)
		assert.True(t, back.Symmetric)
	}
}

func TestEdgeFor_CoversRoleRelations(t *testing.T) {
	for _, role := range Roles {
		for _, rel := range role.Relations() {
			_, ok := EdgeFor(role, rel)
			assert.True(t, ok, "no edge for (%s, %s)", role, rel)
		}
	}
}

func TestEdgeFor_UnknownPair(t *testing.T) {
	_, ok := EdgeFor(RoleOrganization, RelationCreators)
	assert.False(t, ok)
	_, ok = EdgeFor(RoleAdmin, RelationConsumers)
	assert.False(t, ok)
}
