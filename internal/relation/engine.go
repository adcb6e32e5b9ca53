// Package relation keeps both sides of every relationship edge in agreement.
//
// The engine applies a relation-set change on the owner side and propagates
// the reciprocal change to every referenced peer. Updates go through the
// store's atomic set primitives, so concurrent batches touching the same
// record converge without locking. A batch that fails part way is not rolled
// back: every update is idempotent, so the caller repairs the graph by
// retrying the whole batch.
package relation

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"carebridge/internal/identity/models"
	"carebridge/internal/relation/metrics"
	id "carebridge/pkg/domain"
	dErrors "carebridge/pkg/domain-errors"
	"carebridge/pkg/requestcontext"
)

// SetStore is the slice of the identity store the engine needs: atomic,
// idempotent set mutations. Owners that do not exist are skipped.
type SetStore interface {
	AddToSet(ctx context.Context, owner id.IdentityID, rel models.RelationName, peers []id.IdentityID) error
	RemoveFromSet(ctx context.Context, owner id.IdentityID, rel models.RelationName, peers []id.IdentityID) error
}

// Engine propagates relationship changes across the graph.
type Engine struct {
	store   SetStore
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// New constructs an Engine.
func New(store SetStore, opts ...Option) *Engine {
	e := &Engine{store: store}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AssignMany adds every peer to every owner's edge relation and, for
// symmetric edges, every owner to every peer's reciprocal relation. The
// per-record updates are dispatched concurrently; they touch disjoint rows.
func (e *Engine) AssignMany(ctx context.Context, edge models.Edge, owners, peers []id.IdentityID) error {
	if err := e.propagate(ctx, edge, owners, peers, e.store.AddToSet); err != nil {
		return err
	}
	if e.metrics != nil {
		e.metrics.IncrementAssignments(string(edge.Relation))
	}
	e.log(ctx, "relation assigned", edge, owners, peers)
	return nil
}

// RemoveMany is the set-difference mirror of AssignMany.
func (e *Engine) RemoveMany(ctx context.Context, edge models.Edge, owners, peers []id.IdentityID) error {
	if err := e.propagate(ctx, edge, owners, peers, e.store.RemoveFromSet); err != nil {
		return err
	}
	if e.metrics != nil {
		e.metrics.IncrementRemovals(string(edge.Relation))
	}
	e.log(ctx, "relation removed", edge, owners, peers)
	return nil
}

// CascadeOnDelete pulls the identity's id out of every peer's reciprocal set
// before the identity record itself is deleted. One-sided relations have no
// peer-side state, so they are skipped. The identity's own record is not
// touched; it is about to be removed wholesale.
func (e *Engine) CascadeOnDelete(ctx context.Context, identity *models.Identity) error {
	for rel, peers := range identity.Followers {
		edge, ok := models.EdgeFor(identity.Role, rel)
		if !ok || !edge.Symmetric {
			continue
		}
		if err := e.removeFromPeers(ctx, edge, identity.ID, peers); err != nil {
			return err
		}
	}
	if e.metrics != nil {
		e.metrics.IncrementCascades()
	}
	e.log(ctx, "delete cascade applied", models.Edge{}, []id.IdentityID{identity.ID}, nil)
	return nil
}

type setOp func(ctx context.Context, owner id.IdentityID, rel models.RelationName, peers []id.IdentityID) error

func (e *Engine) propagate(ctx context.Context, edge models.Edge, owners, peers []id.IdentityID, op setOp) error {
	if len(owners) == 0 || len(peers) == 0 {
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, owner := range owners {
		g.Go(func() error {
			return op(ctx, owner, edge.Relation, peers)
		})
	}
	if edge.Symmetric {
		for _, peer := range peers {
			g.Go(func() error {
				return op(ctx, peer, edge.Reciprocal, owners)
			})
		}
	}

	if err := g.Wait(); err != nil {
		if e.metrics != nil {
			e.metrics.IncrementPropagationFailures(string(edge.Relation))
		}
		// Applied updates stay. The caller retries the whole batch; every
		// update is a set operation, so the retry converges.
		return dErrors.Wrap(err, dErrors.CodeInternal, "relation propagation failed part way")
	}
	return nil
}

func (e *Engine) removeFromPeers(ctx context.Context, edge models.Edge, owner id.IdentityID, peers []id.IdentityID) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, peer := range peers {
		g.Go(func() error {
			return e.store.RemoveFromSet(ctx, peer, edge.Reciprocal, []id.IdentityID{owner})
		})
	}
	if err := g.Wait(); err != nil {
		if e.metrics != nil {
			e.metrics.IncrementPropagationFailures(string(edge.Relation))
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "delete cascade failed part way")
	}
	return nil
}

func (e *Engine) log(ctx context.Context, msg string, edge models.Edge, owners, peers []id.IdentityID) {
	if e.logger == nil {
		return
	}
	args := []any{"owners", len(owners), "peers", len(peers)}
	if edge.Relation != "" {
		args = append(args, "relation", edge.Relation, "symmetric", edge.Symmetric)
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		args = append(args, "request_id", requestID)
	}
	e.logger.InfoContext(ctx, msg, args...)
}
