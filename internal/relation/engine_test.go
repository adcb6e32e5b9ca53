package relation

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"carebridge/internal/identity/models"
	"carebridge/internal/identity/store/memory"
	id "carebridge/pkg/domain"
	dErrors "carebridge/pkg/domain-errors"
)

type EngineSuite struct {
	suite.Suite
	store  *memory.Store
	engine *Engine
	ctx    context.Context
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.store = memory.New()
	s.engine = New(s.store)
	s.ctx = context.Background()
}

func (s *EngineSuite) seed(role models.Role) *models.Identity {
	identityID, err := id.ParseIdentityID(uuid.NewString())
	s.Require().NoError(err)
	identity, err := models.New(identityID, role, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	s.Require().NoError(err)
	identity.Username = uuid.NewString()
	identity.Email = uuid.NewString() + "@example.no"
	s.Require().NoError(s.store.Create(s.ctx, identity))
	return identity
}

func (s *EngineSuite) followers(identityID id.IdentityID) models.Followers {
	identity, err := s.store.FindByID(s.ctx, identityID)
	s.Require().NoError(err)
	return identity.Followers
}

func (s *EngineSuite) TestAssignWiresBothSides() {
	creator := s.seed(models.RoleCreator)
	consumer := s.seed(models.RoleConsumer)

	err := s.engine.AssignMany(s.ctx, models.EdgeCreatorConsumers,
		[]id.IdentityID{creator.ID}, []id.IdentityID{consumer.ID})
	s.Require().NoError(err)

	s.True(s.followers(creator.ID).Contains(models.RelationConsumers, consumer.ID))
	s.True(s.followers(consumer.ID).Contains(models.RelationCreators, creator.ID))
}

func (s *EngineSuite) TestAssignThenRemoveIsARoundTrip() {
	creator := s.seed(models.RoleCreator)
	consumers := []id.IdentityID{
		s.seed(models.RoleConsumer).ID,
		s.seed(models.RoleConsumer).ID,
		s.seed(models.RoleConsumer).ID,
	}

	owners := []id.IdentityID{creator.ID}
	s.Require().NoError(s.engine.AssignMany(s.ctx, models.EdgeCreatorConsumers, owners, consumers))
	s.Require().NoError(s.engine.RemoveMany(s.ctx, models.EdgeCreatorConsumers, owners, consumers))

	s.Empty(s.followers(creator.ID))
	for _, c := range consumers {
		s.Empty(s.followers(c))
	}
}

func (s *EngineSuite) TestAssignIsIdempotent() {
	creator := s.seed(models.RoleCreator)
	consumer := s.seed(models.RoleConsumer)
	owners := []id.IdentityID{creator.ID}
	peers := []id.IdentityID{consumer.ID}

	s.Require().NoError(s.engine.AssignMany(s.ctx, models.EdgeCreatorConsumers, owners, peers))
	s.Require().NoError(s.engine.AssignMany(s.ctx, models.EdgeCreatorConsumers, owners, peers))

	s.Len(s.followers(creator.ID)[models.RelationConsumers], 1)
	s.Len(s.followers(consumer.ID)[models.RelationCreators], 1)
}

func (s *EngineSuite) TestOneSidedEdgeLeavesPeersUntouched() {
	org := s.seed(models.RoleOrganization)
	consumer := s.seed(models.RoleConsumer)

	err := s.engine.AssignMany(s.ctx, models.EdgeOrganizationConsumers,
		[]id.IdentityID{org.ID}, []id.IdentityID{consumer.ID})
	s.Require().NoError(err)

	s.True(s.followers(org.ID).Contains(models.RelationConsumers, consumer.ID))
	s.Empty(s.followers(consumer.ID))
}

func (s *EngineSuite) TestManyToManyAssignment() {
	creators := []id.IdentityID{
		s.seed(models.RoleCreator).ID,
		s.seed(models.RoleCreator).ID,
	}
	consumers := []id.IdentityID{
		s.seed(models.RoleConsumer).ID,
		s.seed(models.RoleConsumer).ID,
		s.seed(models.RoleConsumer).ID,
	}

	s.Require().NoError(s.engine.AssignMany(s.ctx, models.EdgeCreatorConsumers, creators, consumers))

	for _, creator := range creators {
		s.ElementsMatch(consumers, s.followers(creator)[models.RelationConsumers])
	}
	for _, consumer := range consumers {
		s.ElementsMatch(creators, s.followers(consumer)[models.RelationCreators])
	}
}

func (s *EngineSuite) TestMissingPeerDoesNotFailTheBatch() {
	creator := s.seed(models.RoleCreator)
	consumer := s.seed(models.RoleConsumer)
	ghost, err := id.ParseIdentityID(uuid.NewString())
	s.Require().NoError(err)

	err = s.engine.AssignMany(s.ctx, models.EdgeCreatorConsumers,
		[]id.IdentityID{creator.ID}, []id.IdentityID{consumer.ID, ghost})
	s.Require().NoError(err)

	// The existing peer side is wired even though the ghost has no record.
	s.True(s.followers(consumer.ID).Contains(models.RelationCreators, creator.ID))
}

func (s *EngineSuite) TestCascadeOnDelete() {
	c1 := s.seed(models.RoleCreator)
	c2 := s.seed(models.RoleCreator)
	nok := s.seed(models.RoleNextOfKin)
	consumer := s.seed(models.RoleConsumer)

	s.Require().NoError(s.engine.AssignMany(s.ctx, models.EdgeCreatorConsumers,
		[]id.IdentityID{c1.ID, c2.ID}, []id.IdentityID{consumer.ID}))
	s.Require().NoError(s.engine.AssignMany(s.ctx, models.EdgeConsumerNextOfKins,
		[]id.IdentityID{consumer.ID}, []id.IdentityID{nok.ID}))

	deleted, err := s.store.FindByID(s.ctx, consumer.ID)
	s.Require().NoError(err)
	s.Require().NoError(s.engine.CascadeOnDelete(s.ctx, deleted))

	s.False(s.followers(c1.ID).Contains(models.RelationConsumers, consumer.ID))
	s.False(s.followers(c2.ID).Contains(models.RelationConsumers, consumer.ID))
	s.False(s.followers(nok.ID).Contains(models.RelationConsumers, consumer.ID))
}

func (s *EngineSuite) TestCascadeSkipsOneSidedRelations() {
	admin := s.seed(models.RoleAdmin)
	org := s.seed(models.RoleOrganization)

	s.Require().NoError(s.engine.AssignMany(s.ctx, models.EdgeAdminOrganizations,
		[]id.IdentityID{admin.ID}, []id.IdentityID{org.ID}))

	deleted, err := s.store.FindByID(s.ctx, admin.ID)
	s.Require().NoError(err)
	s.Require().NoError(s.engine.CascadeOnDelete(s.ctx, deleted))

	s.Empty(s.followers(org.ID))
}

func (s *EngineSuite) TestEmptyBatchIsANoop() {
	creator := s.seed(models.RoleCreator)

	s.NoError(s.engine.AssignMany(s.ctx, models.EdgeCreatorConsumers,
		[]id.IdentityID{creator.ID}, nil))
	s.NoError(s.engine.RemoveMany(s.ctx, models.EdgeCreatorConsumers,
		nil, []id.IdentityID{creator.ID}))
	s.Empty(s.followers(creator.ID))
}

// failingStore fails set mutations on one owner and delegates the rest.
type failingStore struct {
	*memory.Store
	failOn id.IdentityID
}

func (f *failingStore) AddToSet(ctx context.Context, owner id.IdentityID, rel models.RelationName, peers []id.IdentityID) error {
	if owner == f.failOn {
		return dErrors.New(dErrors.CodeInternal, "write refused")
	}
	return f.Store.AddToSet(ctx, owner, rel, peers)
}

func (s *EngineSuite) TestPartialFailureKeepsAppliedUpdates() {
	creator := s.seed(models.RoleCreator)
	good := s.seed(models.RoleConsumer)
	bad := s.seed(models.RoleConsumer)

	engine := New(&failingStore{Store: s.store, failOn: bad.ID})

	err := engine.AssignMany(s.ctx, models.EdgeCreatorConsumers,
		[]id.IdentityID{creator.ID}, []id.IdentityID{good.ID, bad.ID})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))

	// No rollback: the good peer's reciprocal entry survives, and retrying
	// the same batch against a healthy store converges.
	s.True(s.followers(good.ID).Contains(models.RelationCreators, creator.ID))

	s.Require().NoError(s.engine.AssignMany(s.ctx, models.EdgeCreatorConsumers,
		[]id.IdentityID{creator.ID}, []id.IdentityID{good.ID, bad.ID}))
	s.ElementsMatch([]id.IdentityID{good.ID, bad.ID},
		s.followers(creator.ID)[models.RelationConsumers])
}
