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

// CreateAdminRequest describes a new platform admin.
type CreateAdminRequest struct {
	Email         string
	Profile       models.Profile
	InitialSecret string
}

// CreateAdmin provisions a platform admin. Admins belong to no organization
// and own no media containers.
func (s *Service) CreateAdmin(ctx context.Context, req CreateAdminRequest) (*provision.Result, error) {
	if req.Email == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "email is required")
	}
	if err := s.checkEmailAvailable(ctx, req.Email); err != nil {
		return nil, err
	}

	result, err := s.provisioner.Provision(ctx, provision.Request{
		Role:          models.RoleAdmin,
		Email:         req.Email,
		Profile:       req.Profile,
		InitialSecret: req.InitialSecret,
	})
	if err != nil {
		return nil, err
	}

	s.invite(ctx, req.Email, notify.TemplateInviteAdmin, notify.InviteData(
		req.Profile.FirstName,
		"",
		"",
		req.Email,
		result.InitialSecret,
	))

	s.logAudit(ctx, audit.EventIdentityProvisioned, result.Identity.ID,
		map[string]any{"role": models.RoleAdmin})

	return result, nil
}

// DeleteAdmin removes an admin account. The organization roster is one-sided,
// so no peer-side cleanup is needed.
func (s *Service) DeleteAdmin(ctx context.Context, adminID id.IdentityID) error {
	if _, err := s.requireRole(ctx, adminID, models.RoleAdmin); err != nil {
		return err
	}

	if err := s.provisioner.Deprovision(ctx, adminID); err != nil {
		return err
	}

	if err := s.identities.Delete(ctx, adminID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "delete identity record")
	}

	s.logAudit(ctx, audit.EventIdentityDeleted, adminID,
		map[string]any{"role": models.RoleAdmin})
	return nil
}
