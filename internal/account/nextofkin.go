package account

import (
	"context"

	"carebridge/internal/audit"
	"carebridge/internal/identity/models"
	"carebridge/internal/notify"
	"carebridge/internal/provision"
	id "carebridge/pkg/domain"
	dErrors "carebridge/pkg/domain-errors"
)

// CreateNextOfKinRequest describes a new next-of-kin account. ConsumerIDs
// names the consumers the next-of-kin follows; at least one is required.
type CreateNextOfKinRequest struct {
	Email         string
	Profile       models.Profile
	ConsumerIDs   []id.IdentityID
	InitialSecret string
}

// CreateNextOfKin provisions a next-of-kin, wires it to its consumers, and
// inherits the first consumer's creators so the care team sees the relative
// immediately. Next-of-kin accounts carry no streaming subscription.
func (s *Service) CreateNextOfKin(ctx context.Context, actorID id.IdentityID, req CreateNextOfKinRequest) (*provision.Result, error) {
	actor, err := s.requireRole(ctx, actorID, models.RoleOrganization, models.RoleCreator)
	if err != nil {
		return nil, err
	}

	if req.Email == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "email is required")
	}
	if len(req.ConsumerIDs) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "at least one consumer is required")
	}
	if err := s.checkEmailAvailable(ctx, req.Email); err != nil {
		return nil, err
	}

	org, err := s.organizationOf(ctx, actor)
	if err != nil {
		return nil, err
	}
	firstConsumer, err := s.requireRole(ctx, req.ConsumerIDs[0], models.RoleConsumer)
	if err != nil {
		return nil, err
	}

	result, err := s.provisioner.Provision(ctx, provision.Request{
		Role:           models.RoleNextOfKin,
		Email:          req.Email,
		OrganizationID: org.ID,
		Profile:        req.Profile,
		InitialSecret:  req.InitialSecret,
	})
	if err != nil {
		return nil, err
	}
	nextOfKinID := result.Identity.ID

	if err := s.engine.AssignMany(ctx, models.EdgeNextOfKinConsumers, []id.IdentityID{nextOfKinID}, req.ConsumerIDs); err != nil {
		return nil, err
	}

	// The consumer's creators follow the next-of-kin as part of the same
	// care circle.
	if creators := firstConsumer.Followers[models.RelationCreators]; len(creators) > 0 {
		if err := s.engine.AssignMany(ctx, models.EdgeNextOfKinCreators, []id.IdentityID{nextOfKinID}, creators); err != nil {
			return nil, err
		}
	}

	s.invite(ctx, req.Email, notify.TemplateInviteNextOfKin, notify.InviteData(
		req.Profile.FirstName,
		actor.Profile.FirstName,
		org.OrganizationName,
		req.Email,
		result.InitialSecret,
	))

	s.logAudit(ctx, audit.EventIdentityProvisioned, nextOfKinID,
		map[string]any{"role": models.RoleNextOfKin, "organization_id": org.ID})

	return result, nil
}

// DeleteNextOfKin removes a next-of-kin account and its follower entries on
// consumers and creators.
func (s *Service) DeleteNextOfKin(ctx context.Context, nextOfKinID id.IdentityID) error {
	nextOfKin, err := s.requireRole(ctx, nextOfKinID, models.RoleNextOfKin)
	if err != nil {
		return err
	}

	if err := s.engine.CascadeOnDelete(ctx, nextOfKin); err != nil {
		return err
	}

	if err := s.provisioner.Deprovision(ctx, nextOfKinID); err != nil {
		return err
	}

	if err := s.identities.Delete(ctx, nextOfKinID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "delete identity record")
	}

	s.logAudit(ctx, audit.EventIdentityDeleted, nextOfKinID,
		map[string]any{"role": models.RoleNextOfKin})
	return nil
}
