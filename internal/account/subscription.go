package account

import (
	"context"

	"carebridge/internal/audit"
	"carebridge/internal/identity/models"
	id "carebridge/pkg/domain"
)

// EnsureSubscription renews the identity's streaming subscription when it has
// expired or is about to, and returns the record with the expiry it now
// carries. Identities whose subscription is still current are returned
// unchanged.
func (s *Service) EnsureSubscription(ctx context.Context, identityID id.IdentityID) (*models.Identity, error) {
	identity, err := s.require(ctx, identityID)
	if err != nil {
		return nil, err
	}

	renewed, err := s.provisioner.EnsureSubscription(ctx, identity)
	if err != nil {
		return nil, err
	}
	if renewed == nil {
		return identity, nil
	}

	identity.SubscriptionExpiresAt = renewed
	s.logAudit(ctx, audit.EventSubscriptionRenewed, identityID,
		map[string]any{"expires_at": renewed})
	return identity, nil
}
