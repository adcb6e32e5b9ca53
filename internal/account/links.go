package account

import (
	"context"

	"carebridge/internal/audit"
	"carebridge/internal/identity/models"
	id "carebridge/pkg/domain"
	dErrors "carebridge/pkg/domain-errors"
)

// AssignConsumers links consumers to a creator's follower set, wiring the
// reciprocal entries on each consumer. Returns the creator as updated.
func (s *Service) AssignConsumers(ctx context.Context, creatorID id.IdentityID, consumerIDs []id.IdentityID) (*models.Identity, error) {
	return s.link(ctx, models.EdgeCreatorConsumers, creatorID, consumerIDs, true)
}

// RemoveConsumers unlinks consumers from a creator's follower set.
func (s *Service) RemoveConsumers(ctx context.Context, creatorID id.IdentityID, consumerIDs []id.IdentityID) (*models.Identity, error) {
	return s.link(ctx, models.EdgeCreatorConsumers, creatorID, consumerIDs, false)
}

// AssignNextOfKins links next-of-kin to a creator's or consumer's follower
// set. The edge is selected by the owner's role.
func (s *Service) AssignNextOfKins(ctx context.Context, ownerID id.IdentityID, nextOfKinIDs []id.IdentityID) (*models.Identity, error) {
	edge, err := s.nextOfKinEdge(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return s.link(ctx, edge, ownerID, nextOfKinIDs, true)
}

// RemoveNextOfKins unlinks next-of-kin from a creator's or consumer's
// follower set.
func (s *Service) RemoveNextOfKins(ctx context.Context, ownerID id.IdentityID, nextOfKinIDs []id.IdentityID) (*models.Identity, error) {
	edge, err := s.nextOfKinEdge(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return s.link(ctx, edge, ownerID, nextOfKinIDs, false)
}

// AssignOrganizations records organizations on an admin's roster. The edge is
// one-sided; organizations do not track which admins manage them.
func (s *Service) AssignOrganizations(ctx context.Context, adminID id.IdentityID, orgIDs []id.IdentityID) (*models.Identity, error) {
	return s.link(ctx, models.EdgeAdminOrganizations, adminID, orgIDs, true)
}

// RemoveOrganizations removes organizations from an admin's roster.
func (s *Service) RemoveOrganizations(ctx context.Context, adminID id.IdentityID, orgIDs []id.IdentityID) (*models.Identity, error) {
	return s.link(ctx, models.EdgeAdminOrganizations, adminID, orgIDs, false)
}

func (s *Service) nextOfKinEdge(ctx context.Context, ownerID id.IdentityID) (models.Edge, error) {
	owner, err := s.requireRole(ctx, ownerID, models.RoleCreator, models.RoleConsumer)
	if err != nil {
		return models.Edge{}, err
	}
	if owner.Role == models.RoleCreator {
		return models.EdgeCreatorNextOfKins, nil
	}
	return models.EdgeConsumerNextOfKins, nil
}

// link applies one edge change for a single owner and returns the owner's
// record as updated.
func (s *Service) link(ctx context.Context, edge models.Edge, ownerID id.IdentityID, peerIDs []id.IdentityID, assign bool) (*models.Identity, error) {
	owner, err := s.requireRole(ctx, ownerID, edge.OwnerRole)
	if err != nil {
		return nil, err
	}
	if len(peerIDs) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "at least one peer is required")
	}

	owners := []id.IdentityID{owner.ID}
	eventType := audit.EventRelationAssigned
	if assign {
		err = s.engine.AssignMany(ctx, edge, owners, peerIDs)
	} else {
		err = s.engine.RemoveMany(ctx, edge, owners, peerIDs)
		eventType = audit.EventRelationRemoved
	}
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, eventType, owner.ID,
		map[string]any{"relation": edge.Relation, "peers": len(peerIDs)})

	return s.require(ctx, owner.ID)
}
