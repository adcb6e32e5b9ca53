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

// CreateCreatorRequest describes a new creator account.
type CreateCreatorRequest struct {
	Email         string
	Department    string
	Profile       models.Profile
	InitialSecret string
}

// CreateCreator provisions a creator under the actor's organization and
// sends them an invite carrying the initial credentials.
func (s *Service) CreateCreator(ctx context.Context, actorID id.IdentityID, req CreateCreatorRequest) (*provision.Result, error) {
	actor, err := s.requireRole(ctx, actorID, models.RoleOrganization)
	if err != nil {
		return nil, err
	}

	if req.Email == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "email is required")
	}
	if err := s.checkEmailAvailable(ctx, req.Email); err != nil {
		return nil, err
	}

	org, err := s.organizationOf(ctx, actor)
	if err != nil {
		return nil, err
	}

	result, err := s.provisioner.Provision(ctx, provision.Request{
		Role:           models.RoleCreator,
		Email:          req.Email,
		OrganizationID: org.ID,
		Department:     req.Department,
		Profile:        req.Profile,
		InitialSecret:  req.InitialSecret,
	})
	if err != nil {
		return nil, err
	}

	s.invite(ctx, req.Email, notify.TemplateInviteCreator, notify.InviteData(
		req.Profile.FirstName,
		actor.Profile.FirstName,
		org.OrganizationName,
		req.Email,
		result.InitialSecret,
	))

	s.logAudit(ctx, audit.EventIdentityProvisioned, result.Identity.ID,
		map[string]any{"role": models.RoleCreator, "organization_id": org.ID})

	return result, nil
}

// DeleteCreator removes a creator: peer-side follower entries, the drafts it
// authored, the external identity, then the local record.
func (s *Service) DeleteCreator(ctx context.Context, creatorID id.IdentityID) error {
	creator, err := s.requireRole(ctx, creatorID, models.RoleCreator)
	if err != nil {
		return err
	}

	if err := s.engine.CascadeOnDelete(ctx, creator); err != nil {
		return err
	}

	removed, err := s.drafts.DeleteByAuthor(ctx, creatorID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "remove incomplete session drafts")
	}
	if removed > 0 {
		s.logAudit(ctx, audit.EventSessionDependentsRemoved, creatorID,
			map[string]any{"removed": removed})
	}

	if err := s.provisioner.Deprovision(ctx, creatorID); err != nil {
		return err
	}

	if err := s.identities.Delete(ctx, creatorID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "delete identity record")
	}

	s.logAudit(ctx, audit.EventIdentityDeleted, creatorID,
		map[string]any{"role": models.RoleCreator})
	return nil
}
