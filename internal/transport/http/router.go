package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimid "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	id "carebridge/pkg/domain"

	"carebridge/internal/identity/models"
	"carebridge/internal/platform/metrics"
	"carebridge/internal/platform/middleware"
	"carebridge/internal/platform/ratelimit"
)

// NewRouter wires the public endpoints. Authentication happens at the edge
// proxy; the router only carries the request-context middleware that feeds
// the services. The limiter and metrics are optional.
func NewRouter(h *Handler, m *metrics.Metrics, limiter *ratelimit.Limiter) http.Handler {
	r := chi.NewRouter()
	r.Use(chimid.RequestID)
	r.Use(chimid.RealIP)
	r.Use(chimid.Recoverer)
	r.Use(middleware.RequestContext)
	if m != nil {
		r.Use(middleware.Prometheus(m))
	}
	if limiter != nil {
		r.Use(limiter.Middleware)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/identities", h.handleListIdentities)
	r.Get("/identities/{id}", h.handleGetIdentity)
	r.Post("/identities/{id}/subscription", h.handleEnsureSubscription)

	r.Route("/organizations", func(r chi.Router) {
		r.Post("/", h.handleCreateOrganization)
		r.Delete("/{id}", h.handleDeleteOrganization)
	})

	r.Route("/creators", func(r chi.Router) {
		r.Post("/", h.handleCreateCreator)
		r.Delete("/{id}", h.handleDeleteCreator)
		r.Post("/{id}/consumers", h.handleLink(func(req *http.Request, ownerID id.IdentityID, peerIDs []id.IdentityID) (*models.Identity, error) {
			return h.accounts.AssignConsumers(req.Context(), ownerID, peerIDs)
		}))
		r.Delete("/{id}/consumers", h.handleLink(func(req *http.Request, ownerID id.IdentityID, peerIDs []id.IdentityID) (*models.Identity, error) {
			return h.accounts.RemoveConsumers(req.Context(), ownerID, peerIDs)
		}))
	})

	r.Route("/consumers", func(r chi.Router) {
		r.Post("/", h.handleCreateConsumer)
		r.Delete("/{id}", h.handleDeleteConsumer)
	})

	// Next-of-kin links hang off the owner, which may be a creator or a
	// consumer; the service resolves the edge from the owner's role.
	r.Post("/identities/{id}/next-of-kins", h.handleLink(func(req *http.Request, ownerID id.IdentityID, peerIDs []id.IdentityID) (*models.Identity, error) {
		return h.accounts.AssignNextOfKins(req.Context(), ownerID, peerIDs)
	}))
	r.Delete("/identities/{id}/next-of-kins", h.handleLink(func(req *http.Request, ownerID id.IdentityID, peerIDs []id.IdentityID) (*models.Identity, error) {
		return h.accounts.RemoveNextOfKins(req.Context(), ownerID, peerIDs)
	}))

	r.Route("/next-of-kins", func(r chi.Router) {
		r.Post("/", h.handleCreateNextOfKin)
		r.Delete("/{id}", h.handleDeleteNextOfKin)
	})

	r.Route("/admins", func(r chi.Router) {
		r.Post("/", h.handleCreateAdmin)
		r.Delete("/{id}", h.handleDeleteAdmin)
		r.Post("/{id}/organizations", h.handleLink(func(req *http.Request, ownerID id.IdentityID, peerIDs []id.IdentityID) (*models.Identity, error) {
			return h.accounts.AssignOrganizations(req.Context(), ownerID, peerIDs)
		}))
		r.Delete("/{id}/organizations", h.handleLink(func(req *http.Request, ownerID id.IdentityID, peerIDs []id.IdentityID) (*models.Identity, error) {
			return h.accounts.RemoveOrganizations(req.Context(), ownerID, peerIDs)
		}))
	})

	return r
}
