package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"carebridge/internal/identity/models"
	"carebridge/internal/identity/store"
	id "carebridge/pkg/domain"
	"carebridge/pkg/platform/sentinel"
	"carebridge/pkg/requestcontext"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *Store
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = New()
}

func newIdentity(role models.Role) *models.Identity {
	identity, _ := models.New(id.IdentityID(uuid.New()), role, time.Now())
	return identity
}

func (s *MemoryStoreSuite) TestCreateAndFind() {
	ctx := context.Background()
	consumer := newIdentity(models.RoleConsumer)
	consumer.Username = "olav-n"

	s.Require().NoError(s.store.Create(ctx, consumer))

	found, err := s.store.FindByID(ctx, consumer.ID)
	s.Require().NoError(err)
	s.Equal(consumer.ID, found.ID)
	s.Equal(models.RoleConsumer, found.Role)

	byName, err := s.store.FindByUsername(ctx, "OLAV-N")
	s.Require().NoError(err)
	s.Equal(consumer.ID, byName.ID)
}

func (s *MemoryStoreSuite) TestCreateConflicts() {
	ctx := context.Background()
	creator := newIdentity(models.RoleCreator)
	creator.Email = "kari@clinic.no"
	s.Require().NoError(s.store.Create(ctx, creator))

	s.Run("duplicate id", func() {
		s.ErrorIs(s.store.Create(ctx, creator), sentinel.ErrConflict)
	})

	s.Run("duplicate email case-insensitive", func() {
		other := newIdentity(models.RoleCreator)
		other.Email = "KARI@clinic.no"
		s.ErrorIs(s.store.Create(ctx, other), sentinel.ErrConflict)
	})
}

func (s *MemoryStoreSuite) TestFindMissing() {
	ctx := context.Background()
	_, err := s.store.FindByID(ctx, id.IdentityID(uuid.New()))
	s.ErrorIs(err, sentinel.ErrNotFound)
	_, err = s.store.FindByEmail(ctx, "nobody@example.com")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *MemoryStoreSuite) TestAddToSet_SetSemantics() {
	ctx := context.Background()
	creator := newIdentity(models.RoleCreator)
	s.Require().NoError(s.store.Create(ctx, creator))

	peer := id.IdentityID(uuid.New())
	s.Require().NoError(s.store.AddToSet(ctx, creator.ID, models.RelationConsumers, []id.IdentityID{peer}))
	s.Require().NoError(s.store.AddToSet(ctx, creator.ID, models.RelationConsumers, []id.IdentityID{peer}))

	found, err := s.store.FindByID(ctx, creator.ID)
	s.Require().NoError(err)
	s.Equal([]id.IdentityID{peer}, found.Followers[models.RelationConsumers])
	s.NotNil(found.UpdatedDate, "set mutation must bump updatedDate")
}

func (s *MemoryStoreSuite) TestMutations_StampRequestTime() {
	pinned := time.Date(2026, 5, 12, 9, 15, 30, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), pinned)

	creator := newIdentity(models.RoleCreator)
	s.Require().NoError(s.store.Create(ctx, creator))

	peer := id.IdentityID(uuid.New())
	s.Require().NoError(s.store.AddToSet(ctx, creator.ID, models.RelationConsumers, []id.IdentityID{peer}))

	found, err := s.store.FindByID(ctx, creator.ID)
	s.Require().NoError(err)
	s.Require().NotNil(found.UpdatedDate)
	s.True(found.UpdatedDate.Equal(pinned), "updatedDate must come from the request-pinned clock")

	department := "oncology"
	s.Require().NoError(s.store.Update(ctx, creator.ID, store.Patch{Department: &department}))
	found, err = s.store.FindByID(ctx, creator.ID)
	s.Require().NoError(err)
	s.True(found.UpdatedDate.Equal(pinned))
}

func (s *MemoryStoreSuite) TestRemoveFromSet_DropsEmptyRelation() {
	ctx := context.Background()
	creator := newIdentity(models.RoleCreator)
	peer := id.IdentityID(uuid.New())
	creator.Followers.Add(models.RelationConsumers, peer)
	s.Require().NoError(s.store.Create(ctx, creator))

	s.Require().NoError(s.store.RemoveFromSet(ctx, creator.ID, models.RelationConsumers, []id.IdentityID{peer}))

	found, err := s.store.FindByID(ctx, creator.ID)
	s.Require().NoError(err)
	s.NotContains(found.Followers, models.RelationConsumers)
}

func (s *MemoryStoreSuite) TestSetOps_MissingOwnerIsNoop() {
	ctx := context.Background()
	ghost := id.IdentityID(uuid.New())
	s.NoError(s.store.AddToSet(ctx, ghost, models.RelationConsumers, []id.IdentityID{id.IdentityID(uuid.New())}))
	s.NoError(s.store.RemoveFromSet(ctx, ghost, models.RelationConsumers, []id.IdentityID{id.IdentityID(uuid.New())}))
}

func (s *MemoryStoreSuite) TestClone_IsolatesCallers() {
	ctx := context.Background()
	creator := newIdentity(models.RoleCreator)
	s.Require().NoError(s.store.Create(ctx, creator))

	found, err := s.store.FindByID(ctx, creator.ID)
	s.Require().NoError(err)
	found.Followers.Add(models.RelationConsumers, id.IdentityID(uuid.New()))

	again, err := s.store.FindByID(ctx, creator.ID)
	s.Require().NoError(err)
	s.Empty(again.Followers)
}

func (s *MemoryStoreSuite) TestCountByOrganization() {
	ctx := context.Background()
	orgID := id.IdentityID(uuid.New())

	for range 3 {
		consumer := newIdentity(models.RoleConsumer)
		consumer.Username = uuid.NewString()
		consumer.OrganizationID = orgID
		s.Require().NoError(s.store.Create(ctx, consumer))
	}
	creator := newIdentity(models.RoleCreator)
	creator.Email = uuid.NewString() + "@clinic.no"
	creator.OrganizationID = orgID
	s.Require().NoError(s.store.Create(ctx, creator))

	count, err := s.store.CountByOrganization(ctx, orgID, models.RoleConsumer)
	s.Require().NoError(err)
	s.Equal(3, count)
}

func (s *MemoryStoreSuite) TestList_Filters() {
	ctx := context.Background()
	orgID := id.IdentityID(uuid.New())

	consumer := newIdentity(models.RoleConsumer)
	consumer.Username = "filter-target"
	consumer.OrganizationID = orgID
	s.Require().NoError(s.store.Create(ctx, consumer))
	s.Require().NoError(s.store.Create(ctx, newIdentity(models.RoleAdmin)))

	listed, err := s.store.List(ctx, store.Filter{Role: models.RoleConsumer, OrganizationID: orgID})
	s.Require().NoError(err)
	s.Require().Len(listed, 1)
	s.Equal(consumer.ID, listed[0].ID)
}

// TestConcurrentAddToSet verifies the load-bearing convergence property:
// concurrent set-adds against one owner never lose or duplicate entries.
func (s *MemoryStoreSuite) TestConcurrentAddToSet() {
	ctx := context.Background()
	creator := newIdentity(models.RoleCreator)
	s.Require().NoError(s.store.Create(ctx, creator))

	peers := make([]id.IdentityID, 20)
	for i := range peers {
		peers[i] = id.IdentityID(uuid.New())
	}

	var wg sync.WaitGroup
	for _, peer := range peers {
		for range 3 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = s.store.AddToSet(ctx, creator.ID, models.RelationConsumers, []id.IdentityID{peer})
			}()
		}
	}
	wg.Wait()

	found, err := s.store.FindByID(ctx, creator.ID)
	s.Require().NoError(err)
	s.Len(found.Followers[models.RelationConsumers], len(peers))
}
