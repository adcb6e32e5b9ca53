// Package account implements the per-role account lifecycle use cases. Each
// use case composes the provisioning saga, the relation engine and the
// supporting stores into one logical request: resolve and authorize the
// actor, run the saga, wire the new identity into the graph, then apply the
// side effects (media containers, invites, audit) that hang off it.
//
// Deletions run the inverse order: un-wire every edge and remove dependent
// records first, then delete the external identity, then the local record.
// That order means a failure part way leaves a record that still exists and
// can be retried, never a dangling edge pointing at nothing.
package account

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"carebridge/internal/audit"
	"carebridge/internal/identity/models"
	"carebridge/internal/identity/store"
	"carebridge/internal/notify"
	"carebridge/internal/provision"
	sessionstore "carebridge/internal/session/store"
	"carebridge/internal/storage"
	id "carebridge/pkg/domain"
	dErrors "carebridge/pkg/domain-errors"
	"carebridge/pkg/platform/sentinel"
)

// Provisioner runs the cross-system saga for one identity.
type Provisioner interface {
	Provision(ctx context.Context, req provision.Request) (*provision.Result, error)
	Deprovision(ctx context.Context, identityID id.IdentityID) error
	EnsureSubscription(ctx context.Context, identity *models.Identity) (*time.Time, error)
}

// RelationEngine keeps both sides of the follower graph in agreement.
type RelationEngine interface {
	AssignMany(ctx context.Context, edge models.Edge, owners, peers []id.IdentityID) error
	RemoveMany(ctx context.Context, edge models.Edge, owners, peers []id.IdentityID) error
	CascadeOnDelete(ctx context.Context, identity *models.Identity) error
}

// AuditPublisher records account lifecycle events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service exposes the account use cases.
type Service struct {
	provisioner Provisioner
	engine      RelationEngine
	identities  store.Store
	drafts      sessionstore.Store
	containers  storage.ContainerManager

	notifier       notify.Notifier
	logger         *slog.Logger
	auditPublisher AuditPublisher
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithNotifier(n notify.Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

// New constructs a Service.
func New(provisioner Provisioner, engine RelationEngine, identities store.Store, drafts sessionstore.Store, containers storage.ContainerManager, opts ...Option) *Service {
	s := &Service{
		provisioner: provisioner,
		engine:      engine,
		identities:  identities,
		drafts:      drafts,
		containers:  containers,
		notifier:    notify.NoopNotifier{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns one identity by id.
func (s *Service) Get(ctx context.Context, identityID id.IdentityID) (*models.Identity, error) {
	return s.require(ctx, identityID)
}

// List returns identities matching the filter.
func (s *Service) List(ctx context.Context, filter store.Filter) ([]*models.Identity, error) {
	records, err := s.identities.List(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list identities")
	}
	return records, nil
}

// require loads an identity, translating the store sentinel to a domain
// not-found error.
func (s *Service) require(ctx context.Context, identityID id.IdentityID) (*models.Identity, error) {
	identity, err := s.identities.FindByID(ctx, identityID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "identity not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load identity")
	}
	return identity, nil
}

// requireRole loads an identity and checks it holds one of the given roles.
func (s *Service) requireRole(ctx context.Context, identityID id.IdentityID, roles ...models.Role) (*models.Identity, error) {
	identity, err := s.require(ctx, identityID)
	if err != nil {
		return nil, err
	}
	if !identity.HasRole(roles...) {
		return nil, dErrors.New(dErrors.CodeValidation, "identity has the wrong role for this operation")
	}
	return identity, nil
}

// checkEmailAvailable rejects an email already bound to any identity.
func (s *Service) checkEmailAvailable(ctx context.Context, email string) error {
	_, err := s.identities.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return dErrors.New(dErrors.CodeConflict, "email already existed")
	case errors.Is(err, sentinel.ErrNotFound):
		return nil
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "check email availability")
	}
}

// organizationOf resolves the owning organization for an identity created by
// the actor: an organization actor owns its own accounts, a creator's
// accounts belong to the creator's organization.
func (s *Service) organizationOf(ctx context.Context, actor *models.Identity) (*models.Identity, error) {
	orgID := actor.OrganizationID
	if actor.Role == models.RoleOrganization {
		orgID = actor.ID
	}
	if orgID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "actor has no owning organization")
	}
	org, err := s.identities.FindByID(ctx, orgID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "organization not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load organization")
	}
	return org, nil
}

// invite sends an invitation. Delivery is best effort: a notifier outage must
// never fail an account operation, so failures are logged and swallowed.
func (s *Service) invite(ctx context.Context, recipient string, template notify.TemplateID, data map[string]any) {
	err := s.notifier.Send(ctx, notify.Message{
		Recipient: recipient,
		Template:  template,
		Data:      data,
	})
	if err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "invite notification failed",
			"template", template, "error", err)
	}
}

func (s *Service) logAudit(ctx context.Context, eventType audit.EventType, subjectID id.IdentityID, attrs map[string]any) {
	if s.auditPublisher == nil {
		return
	}
	err := s.auditPublisher.Emit(ctx, audit.Event{
		Type:      eventType,
		SubjectID: subjectID,
		Attrs:     attrs,
	})
	if err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "audit emit failed",
			"event", eventType, "error", err)
	}
}
