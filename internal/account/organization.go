package account

import (
	"context"

	"carebridge/internal/audit"
	"carebridge/internal/identity/models"
	"carebridge/internal/identity/store"
	"carebridge/internal/notify"
	"carebridge/internal/provision"
	"carebridge/internal/storage"
	id "carebridge/pkg/domain"
	dErrors "carebridge/pkg/domain-errors"
)

// CreateOrganizationRequest describes a new tenant organization.
type CreateOrganizationRequest struct {
	Email            string
	OrganizationName string
	Licence          int
	Profile          models.Profile
	InitialSecret    string
}

// CreateOrganization provisions a tenant organization on behalf of an admin
// and records it on the admin's organization roster.
func (s *Service) CreateOrganization(ctx context.Context, actorID id.IdentityID, req CreateOrganizationRequest) (*provision.Result, error) {
	actor, err := s.requireRole(ctx, actorID, models.RoleAdmin)
	if err != nil {
		return nil, err
	}

	if req.Email == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "email is required")
	}
	if req.OrganizationName == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "organization name is required")
	}
	if req.Licence < 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "licence must not be negative")
	}
	if err := s.checkEmailAvailable(ctx, req.Email); err != nil {
		return nil, err
	}
	if err := s.checkOrganizationNameAvailable(ctx, req.OrganizationName); err != nil {
		return nil, err
	}

	result, err := s.provisioner.Provision(ctx, provision.Request{
		Role:             models.RoleOrganization,
		Email:            req.Email,
		OrganizationName: req.OrganizationName,
		Licence:          req.Licence,
		Profile:          req.Profile,
		InitialSecret:    req.InitialSecret,
	})
	if err != nil {
		return nil, err
	}
	orgID := result.Identity.ID

	if err := s.engine.AssignMany(ctx, models.EdgeAdminOrganizations, []id.IdentityID{actor.ID}, []id.IdentityID{orgID}); err != nil {
		return nil, err
	}

	s.invite(ctx, req.Email, notify.TemplateInviteOrganization, notify.InviteData(
		req.Profile.FirstName,
		actor.Profile.FirstName,
		req.OrganizationName,
		req.Email,
		result.InitialSecret,
	))

	s.logAudit(ctx, audit.EventIdentityProvisioned, orgID,
		map[string]any{"role": models.RoleOrganization})

	return result, nil
}

// checkOrganizationNameAvailable rejects a name whose normalized form is
// already taken. Uniqueness holds at the normalized level because the
// normalized name prefixes every media container the tenant owns.
func (s *Service) checkOrganizationNameAvailable(ctx context.Context, name string) error {
	organizations, err := s.identities.List(ctx, store.Filter{Role: models.RoleOrganization})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "check organization name availability")
	}
	normalized := storage.FormatOrganizationName(name)
	for _, org := range organizations {
		if storage.FormatOrganizationName(org.OrganizationName) == normalized {
			return dErrors.New(dErrors.CodeConflict, "organization name already existed")
		}
	}
	return nil
}

// DeleteOrganization removes a tenant organization and pulls it from the
// acting admin's roster. Accounts owned by the organization are not deleted;
// the roster entry is the only edge the organization participates in.
func (s *Service) DeleteOrganization(ctx context.Context, actorID id.IdentityID, orgID id.IdentityID) error {
	actor, err := s.requireRole(ctx, actorID, models.RoleAdmin)
	if err != nil {
		return err
	}
	org, err := s.requireRole(ctx, orgID, models.RoleOrganization)
	if err != nil {
		return err
	}

	if err := s.engine.CascadeOnDelete(ctx, org); err != nil {
		return err
	}
	if err := s.engine.RemoveMany(ctx, models.EdgeAdminOrganizations, []id.IdentityID{actor.ID}, []id.IdentityID{orgID}); err != nil {
		return err
	}

	if err := s.provisioner.Deprovision(ctx, orgID); err != nil {
		return err
	}

	if err := s.identities.Delete(ctx, orgID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "delete identity record")
	}

	s.logAudit(ctx, audit.EventIdentityDeleted, orgID,
		map[string]any{"role": models.RoleOrganization})
	return nil
}
