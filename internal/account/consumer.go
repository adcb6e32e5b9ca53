package account

import (
	"context"
	"errors"

	"carebridge/internal/audit"
	"carebridge/internal/identity/models"
	"carebridge/internal/provision"
	"carebridge/internal/storage"
	id "carebridge/pkg/domain"
	dErrors "carebridge/pkg/domain-errors"
	"carebridge/pkg/platform/sentinel"
)

// CreateConsumerRequest describes a new consumer account. Consumers sign in
// by username and receive their credentials out of band, so no email address
// is collected.
type CreateConsumerRequest struct {
	Username      string
	Department    string
	Profile       models.Profile
	InitialSecret string
}

// CreateConsumer provisions a consumer on behalf of the actor. The owning
// organization is the actor itself when the actor is an organization, the
// actor's organization when the actor is a creator; a creator is additionally
// wired as the consumer's first follower.
func (s *Service) CreateConsumer(ctx context.Context, actorID id.IdentityID, req CreateConsumerRequest) (*provision.Result, error) {
	actor, err := s.requireRole(ctx, actorID, models.RoleOrganization, models.RoleCreator)
	if err != nil {
		return nil, err
	}

	if req.Username == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "username is required")
	}
	if _, err := s.identities.FindByUsername(ctx, req.Username); err == nil {
		return nil, dErrors.New(dErrors.CodeConflict, "username already existed")
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "check username availability")
	}

	org, err := s.organizationOf(ctx, actor)
	if err != nil {
		return nil, err
	}

	if org.Licence > 0 {
		count, err := s.identities.CountByOrganization(ctx, org.ID, models.RoleConsumer)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "count organization consumers")
		}
		if count >= org.Licence {
			return nil, dErrors.New(dErrors.CodeValidation, "organization licence limit reached")
		}
	}

	followers := models.Followers{}
	if actor.Role == models.RoleCreator {
		followers.Add(models.RelationCreators, actor.ID)
	}

	result, err := s.provisioner.Provision(ctx, provision.Request{
		Role:           models.RoleConsumer,
		Username:       req.Username,
		OrganizationID: org.ID,
		Department:     req.Department,
		Profile:        req.Profile,
		Followers:      followers,
		InitialSecret:  req.InitialSecret,
	})
	if err != nil {
		return nil, err
	}
	consumerID := result.Identity.ID

	if actor.Role == models.RoleCreator {
		if err := s.engine.AssignMany(ctx, models.EdgeCreatorConsumers, []id.IdentityID{actor.ID}, []id.IdentityID{consumerID}); err != nil {
			return nil, err
		}
	}
	if err := s.engine.AssignMany(ctx, models.EdgeOrganizationConsumers, []id.IdentityID{org.ID}, []id.IdentityID{consumerID}); err != nil {
		return nil, err
	}

	if err := s.containers.EnsureContainer(ctx, storage.ContainerName(org, consumerID)); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeExternal, "create personal media container")
	}

	s.logAudit(ctx, audit.EventIdentityProvisioned, consumerID,
		map[string]any{"role": models.RoleConsumer, "organization_id": org.ID})

	return result, nil
}

// DeleteConsumer removes a consumer and every trace of it: the peer-side
// follower entries, its incomplete session drafts, the organization's roster
// entry, the external identity, the local record and the media container.
func (s *Service) DeleteConsumer(ctx context.Context, consumerID id.IdentityID) error {
	consumer, err := s.requireRole(ctx, consumerID, models.RoleConsumer)
	if err != nil {
		return err
	}

	if err := s.engine.CascadeOnDelete(ctx, consumer); err != nil {
		return err
	}

	removed, err := s.drafts.DeleteByRecipient(ctx, consumerID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "remove incomplete session drafts")
	}
	if removed > 0 {
		s.logAudit(ctx, audit.EventSessionDependentsRemoved, consumerID,
			map[string]any{"removed": removed})
	}

	if !consumer.OrganizationID.IsNil() {
		if err := s.engine.RemoveMany(ctx, models.EdgeOrganizationConsumers, []id.IdentityID{consumer.OrganizationID}, []id.IdentityID{consumerID}); err != nil {
			return err
		}
	}

	if err := s.provisioner.Deprovision(ctx, consumerID); err != nil {
		return err
	}

	if err := s.identities.Delete(ctx, consumerID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "delete identity record")
	}

	s.deleteConsumerContainer(ctx, consumer)

	s.logAudit(ctx, audit.EventIdentityDeleted, consumerID,
		map[string]any{"role": models.RoleConsumer})
	return nil
}

// deleteConsumerContainer removes the consumer's media container. The account
// itself is already gone at this point, so a container failure is logged for
// manual cleanup rather than surfaced.
func (s *Service) deleteConsumerContainer(ctx context.Context, consumer *models.Identity) {
	org, err := s.identities.FindByID(ctx, consumer.OrganizationID)
	if err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "media container left behind, owning organization unavailable",
				"consumer_id", consumer.ID, "error", err)
		}
		return
	}

	name := storage.ContainerName(org, consumer.ID)
	if err := s.containers.DeleteContainer(ctx, name); err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "media container delete failed",
				"container", name, "error", err)
		}
		return
	}
	s.logAudit(ctx, audit.EventContainerDeleted, consumer.ID,
		map[string]any{"container": name})
}
