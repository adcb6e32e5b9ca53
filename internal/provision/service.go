// Package provision drives the saga that materializes a new identity across
// the identity provider, the subscription service and the local store.
//
// The saga is strictly sequential: create the provider account, enroll it in
// the subscription service (skipped for next-of-kin), persist the local
// record. A subscription failure compensates by deleting the provider
// account, so a compensated failure leaves nothing behind. A local persist
// failure is deliberately NOT compensated: the provider identity already
// exists and deleting it would strand a caller retrying against it. Those
// failures are logged for manual recovery instead.
package provision

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"carebridge/internal/audit"
	"carebridge/internal/identity/models"
	"carebridge/internal/identity/store"
	"carebridge/internal/idp"
	"carebridge/internal/provision/metrics"
	"carebridge/internal/subscription"
	id "carebridge/pkg/domain"
	dErrors "carebridge/pkg/domain-errors"
	"carebridge/pkg/platform/sentinel"
	"carebridge/pkg/requestcontext"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks

// IdentityProvider is the external account authority. The id it issues
// becomes the identity's id everywhere.
type IdentityProvider interface {
	CreateIdentity(ctx context.Context, req idp.CreateIdentityRequest) (string, error)
	DeleteIdentity(ctx context.Context, providerID string) error
}

// SubscriptionService enrolls identities in the streaming subscription.
type SubscriptionService interface {
	CreateUser(ctx context.Context, userID string) error
	CreateSubscription(ctx context.Context, payload subscription.Payload) error
}

// AuditPublisher records provisioning events that require follow-up.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Saga stage names, used in compensation metrics and spans.
const (
	stageProvider     = "identity_provider"
	stageSubscription = "subscription"
	stagePersist      = "persist"
)

// Request describes the identity to provision. Role-dependent fields follow
// the sign-in rules: Username for consumers, Email for everyone else.
type Request struct {
	Role             models.Role
	Username         string
	Email            string
	OrganizationName string
	OrganizationID   id.IdentityID
	Department       string
	Licence          int
	Profile          models.Profile
	// Followers seeds the record's relation sets. The caller wires the
	// reciprocal side separately; the orchestrator only persists them.
	Followers models.Followers
	// InitialSecret is used verbatim when set, generated otherwise.
	InitialSecret string
}

// Result is a successful provisioning outcome. InitialSecret is returned so
// the caller can hand it to the account holder; it is never persisted.
type Result struct {
	Identity      *models.Identity
	InitialSecret string
}

// Orchestrator runs the provisioning saga.
type Orchestrator struct {
	provider      IdentityProvider
	subscriptions SubscriptionService
	identities    store.Store

	logger         *slog.Logger
	metrics        *metrics.Metrics
	auditPublisher AuditPublisher
	tracer         trace.Tracer
}

type Option func(*Orchestrator)

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(o *Orchestrator) {
		o.auditPublisher = publisher
	}
}

// New constructs an Orchestrator.
func New(provider IdentityProvider, subscriptions SubscriptionService, identities store.Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		provider:      provider,
		subscriptions: subscriptions,
		identities:    identities,
		tracer:        otel.Tracer("carebridge/provision"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Provision runs the saga. On success the returned identity's id is the
// provider-issued id and, for subscribed roles, SubscriptionExpiresAt is
// exactly one month from the provisioning instant.
func (o *Orchestrator) Provision(ctx context.Context, req Request) (*Result, error) {
	ctx, span := o.tracer.Start(ctx, "provision",
		trace.WithAttributes(attribute.String("role", string(req.Role))))
	defer span.End()

	started := time.Now()
	defer func() {
		if o.metrics != nil {
			o.metrics.ObserveProvisionDuration(time.Since(started).Seconds())
		}
	}()

	if !req.Role.Valid() {
		return nil, dErrors.New(dErrors.CodeValidation, "unknown role")
	}

	secret := req.InitialSecret
	if secret == "" {
		var err error
		if secret, err = GenerateSecret(); err != nil {
			return nil, err
		}
	} else if err := ValidateSecret(secret); err != nil {
		return nil, err
	}

	providerID, err := o.createProviderIdentity(ctx, req, secret)
	if err != nil {
		return nil, err
	}

	identityID, err := id.ParseIdentityID(providerID)
	if err != nil {
		// The provider answered with an id we cannot key records by.
		// Nothing local exists yet, so roll the provider account back.
		o.compensate(ctx, providerID, stageProvider, err)
		return nil, dErrors.Wrap(err, dErrors.CodeExternal, "identity provider issued an unusable id")
	}

	now := requestcontext.Now(ctx)

	var expiresAt *time.Time
	if req.Role.HasSubscription() {
		if err := o.enrollSubscription(ctx, providerID, now); err != nil {
			o.compensate(ctx, providerID, stageSubscription, err)
			return nil, err
		}
		expiry := subscription.ExpiryFrom(now)
		expiresAt = &expiry
	}

	identity, err := o.persist(ctx, identityID, req, expiresAt, now)
	if err != nil {
		return nil, err
	}

	if o.metrics != nil {
		o.metrics.IncrementProvisioned(string(req.Role))
	}
	o.log(ctx, slog.LevelInfo, "identity provisioned",
		"identity_id", identity.ID, "role", identity.Role)

	return &Result{Identity: identity, InitialSecret: secret}, nil
}

// Deprovision removes the identity at the provider. Called by deletion use
// cases after every local trace of the identity is gone.
func (o *Orchestrator) Deprovision(ctx context.Context, identityID id.IdentityID) error {
	ctx, span := o.tracer.Start(ctx, "deprovision")
	defer span.End()

	if err := o.provider.DeleteIdentity(ctx, identityID.String()); err != nil {
		return err
	}
	if o.metrics != nil {
		o.metrics.IncrementDeprovisioned()
	}
	o.log(ctx, slog.LevelInfo, "identity deprovisioned", "identity_id", identityID)
	return nil
}

// EnsureSubscription renews the streaming subscription when it has expired or
// expires within the next day, and returns the new expiry. A nil return with
// no error means the subscription did not need renewal.
func (o *Orchestrator) EnsureSubscription(ctx context.Context, identity *models.Identity) (*time.Time, error) {
	if !identity.Role.HasSubscription() || identity.SubscriptionExpiresAt == nil {
		return nil, nil
	}

	now := requestcontext.Now(ctx)
	expiresAt := *identity.SubscriptionExpiresAt

	// Renew from now when already expired; renew from the current expiry
	// when it lapses within a day, so the holder keeps the remaining time.
	var start time.Time
	switch {
	case expiresAt.Before(now):
		start = now
	case expiresAt.Before(now.AddDate(0, 0, 1)):
		start = expiresAt
	default:
		return nil, nil
	}

	payload := subscription.NewRenewal(identity.ID.String(), identity.CreatedDate, start)
	if err := o.subscriptions.CreateSubscription(ctx, payload); err != nil {
		return nil, err
	}

	newExpiry := subscription.ExpiryFrom(start)
	if err := o.identities.Update(ctx, identity.ID, store.Patch{SubscriptionExpiresAt: &newExpiry}); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "record renewed subscription expiry")
	}

	if o.metrics != nil {
		o.metrics.IncrementSubscriptionRenewals()
	}
	o.log(ctx, slog.LevelInfo, "subscription renewed",
		"identity_id", identity.ID, "expires_at", newExpiry)
	return &newExpiry, nil
}

func (o *Orchestrator) createProviderIdentity(ctx context.Context, req Request, secret string) (string, error) {
	ctx, span := o.tracer.Start(ctx, "provision.identity_provider")
	defer span.End()

	signInName := req.Email
	if req.Role == models.RoleConsumer {
		signInName = req.Username
	}

	return o.provider.CreateIdentity(ctx, idp.CreateIdentityRequest{
		FirstName:     req.Profile.FirstName,
		LastName:      req.Profile.LastName,
		Username:      signInName,
		SignInType:    string(req.Role.SignInType()),
		InitialSecret: secret,
		// Consumers receive their credentials out of band and keep them.
		ForceSecretChange: req.Role != models.RoleConsumer,
	})
}

func (o *Orchestrator) enrollSubscription(ctx context.Context, providerID string, now time.Time) error {
	ctx, span := o.tracer.Start(ctx, "provision.subscription")
	defer span.End()

	if err := o.subscriptions.CreateUser(ctx, providerID); err != nil {
		return err
	}
	return o.subscriptions.CreateSubscription(ctx, subscription.NewEnrollment(providerID, now))
}

func (o *Orchestrator) persist(ctx context.Context, identityID id.IdentityID, req Request, expiresAt *time.Time, now time.Time) (*models.Identity, error) {
	ctx, span := o.tracer.Start(ctx, "provision.persist")
	defer span.End()

	identity, err := models.New(identityID, req.Role, now)
	if err != nil {
		return nil, err
	}
	identity.Username = req.Username
	identity.Email = req.Email
	identity.OrganizationName = req.OrganizationName
	identity.OrganizationID = req.OrganizationID
	identity.Department = req.Department
	identity.Licence = req.Licence
	identity.Profile = req.Profile
	identity.SubscriptionExpiresAt = expiresAt
	if req.Followers != nil {
		identity.Followers = req.Followers.Clone()
		identity.Followers.Normalize()
	}

	if err := o.identities.Create(ctx, identity); err != nil {
		// Not compensated. The provider identity stays so the failure can
		// be recovered by retrying the local write.
		o.log(ctx, slog.LevelError, "local persist failed after external creation",
			"identity_id", identityID, "stage", stagePersist, "error", err)
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "identity already exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "persist identity")
	}
	return identity, nil
}

// compensate deletes the provider identity after a later saga stage failed.
// A failed compensation is logged at error level and counted, but never
// masks the original failure the caller sees.
func (o *Orchestrator) compensate(ctx context.Context, providerID, stage string, cause error) {
	if o.metrics != nil {
		o.metrics.IncrementCompensations(stage)
	}
	if err := o.provider.DeleteIdentity(ctx, providerID); err != nil {
		if o.metrics != nil {
			o.metrics.IncrementCompensationFailures()
		}
		o.log(ctx, slog.LevelError, "compensating delete failed, provider identity orphaned",
			"provider_id", providerID, "stage", stage,
			"cause", cause, "error", err)
		o.recordOrphan(ctx, providerID, stage, cause, err)
		return
	}
	o.log(ctx, slog.LevelWarn, "provisioning compensated",
		"provider_id", providerID, "stage", stage, "cause", cause)
}

// recordOrphan publishes the audit event for a provider identity the saga
// could not delete. The event carries the provider id even when it is not a
// usable identity id, since that orphan is exactly what an operator needs.
func (o *Orchestrator) recordOrphan(ctx context.Context, providerID, stage string, cause, compErr error) {
	if o.auditPublisher == nil {
		return
	}
	event := audit.Event{
		Type: audit.EventCompensationFailed,
		Attrs: map[string]any{
			"provider_id": providerID,
			"stage":       stage,
			"cause":       cause.Error(),
			"error":       compErr.Error(),
		},
	}
	if identityID, err := id.ParseIdentityID(providerID); err == nil {
		event.SubjectID = identityID
	}
	if err := o.auditPublisher.Emit(ctx, event); err != nil {
		o.log(ctx, slog.LevelWarn, "audit emit failed",
			"event", audit.EventCompensationFailed, "error", err)
	}
}

func (o *Orchestrator) log(ctx context.Context, level slog.Level, msg string, args ...any) {
	if o.logger == nil {
		return
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		args = append(args, "request_id", requestID)
	}
	o.logger.Log(ctx, level, msg, args...)
}
