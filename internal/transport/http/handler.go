// Package httptransport is the thin HTTP layer. Handlers decode, delegate to
// the account service and encode; no business rules live here.
package httptransport

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"carebridge/internal/account"
	"carebridge/internal/identity/models"
	"carebridge/internal/identity/store"
	"carebridge/internal/provision"
	id "carebridge/pkg/domain"
	dErrors "carebridge/pkg/domain-errors"
	"carebridge/pkg/requestcontext"
)

type Handler struct {
	accounts *account.Service
	logger   *slog.Logger
}

func NewHandler(accounts *account.Service, logger *slog.Logger) *Handler {
	return &Handler{accounts: accounts, logger: logger}
}

// provisionResponse returns the new identity together with its one-time
// initial secret. The secret is never persisted, so this response is the only
// place it ever appears.
type provisionResponse struct {
	Identity      *models.Identity `json:"identity"`
	InitialSecret string           `json:"initialSecret,omitempty"`
}

func (h *Handler) handleGetIdentity(w http.ResponseWriter, r *http.Request) {
	identityID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	identity, err := h.accounts.Get(r.Context(), identityID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, identity)
}

func (h *Handler) handleListIdentities(w http.ResponseWriter, r *http.Request) {
	var filter store.Filter

	if role := r.URL.Query().Get("role"); role != "" {
		filter.Role = models.Role(role)
		if !filter.Role.Valid() {
			h.writeError(w, r, dErrors.New(dErrors.CodeInvalidInput, "unknown role filter"))
			return
		}
	}
	if raw := r.URL.Query().Get("organizationId"); raw != "" {
		orgID, err := id.ParseIdentityID(raw)
		if err != nil {
			h.writeError(w, r, dErrors.New(dErrors.CodeInvalidInput, "malformed organization id"))
			return
		}
		filter.OrganizationID = orgID
	}

	identities, err := h.accounts.List(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if identities == nil {
		identities = []*models.Identity{}
	}
	h.writeJSON(w, http.StatusOK, identities)
}

func (h *Handler) handleCreateOrganization(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req account.CreateOrganizationRequest
	if !h.decode(w, r, &req) {
		return
	}
	result, err := h.accounts.CreateOrganization(r.Context(), actorID, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeResult(w, result)
}

func (h *Handler) handleDeleteOrganization(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.actor(w, r)
	if !ok {
		return
	}
	orgID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.accounts.DeleteOrganization(r.Context(), actorID, orgID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCreateCreator(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req account.CreateCreatorRequest
	if !h.decode(w, r, &req) {
		return
	}
	result, err := h.accounts.CreateCreator(r.Context(), actorID, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeResult(w, result)
}

func (h *Handler) handleDeleteCreator(w http.ResponseWriter, r *http.Request) {
	creatorID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.accounts.DeleteCreator(r.Context(), creatorID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCreateConsumer(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req account.CreateConsumerRequest
	if !h.decode(w, r, &req) {
		return
	}
	result, err := h.accounts.CreateConsumer(r.Context(), actorID, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeResult(w, result)
}

func (h *Handler) handleDeleteConsumer(w http.ResponseWriter, r *http.Request) {
	consumerID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.accounts.DeleteConsumer(r.Context(), consumerID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCreateNextOfKin(w http.ResponseWriter, r *http.Request) {
	actorID, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req account.CreateNextOfKinRequest
	if !h.decode(w, r, &req) {
		return
	}
	result, err := h.accounts.CreateNextOfKin(r.Context(), actorID, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeResult(w, result)
}

func (h *Handler) handleDeleteNextOfKin(w http.ResponseWriter, r *http.Request) {
	nextOfKinID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.accounts.DeleteNextOfKin(r.Context(), nextOfKinID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCreateAdmin(w http.ResponseWriter, r *http.Request) {
	var req account.CreateAdminRequest
	if !h.decode(w, r, &req) {
		return
	}
	result, err := h.accounts.CreateAdmin(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeResult(w, result)
}

func (h *Handler) handleDeleteAdmin(w http.ResponseWriter, r *http.Request) {
	adminID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.accounts.DeleteAdmin(r.Context(), adminID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// linkRequest carries the peer ids of one link or unlink operation.
type linkRequest struct {
	IDs []id.IdentityID `json:"ids"`
}

type linkFunc func(r *http.Request, ownerID id.IdentityID, peerIDs []id.IdentityID) (*models.Identity, error)

func (h *Handler) handleLink(fn linkFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := h.pathID(w, r, "id")
		if !ok {
			return
		}
		var req linkRequest
		if !h.decode(w, r, &req) {
			return
		}
		owner, err := fn(r, ownerID, req.IDs)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		h.writeJSON(w, http.StatusOK, owner)
	}
}

func (h *Handler) handleEnsureSubscription(w http.ResponseWriter, r *http.Request) {
	identityID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	identity, err := h.accounts.EnsureSubscription(r.Context(), identityID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, identity)
}

func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (id.IdentityID, bool) {
	actorID := requestcontext.ActorID(r.Context())
	if actorID.IsNil() {
		h.writeError(w, r, dErrors.New(dErrors.CodeInvalidInput, "acting identity required"))
		return id.IdentityID{}, false
	}
	return actorID, true
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, param string) (id.IdentityID, bool) {
	identityID, err := id.ParseIdentityID(chi.URLParam(r, param))
	if err != nil {
		h.writeError(w, r, err)
		return id.IdentityID{}, false
	}
	return identityID, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.writeError(w, r, dErrors.New(dErrors.CodeInvalidInput, "malformed request body"))
		return false
	}
	return true
}

func (h *Handler) writeResult(w http.ResponseWriter, result *provision.Result) {
	h.writeJSON(w, http.StatusCreated, provisionResponse{
		Identity:      result.Identity,
		InitialSecret: result.InitialSecret,
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError translates coded domain errors into a consistent JSON envelope.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := dErrors.CodeOf(err)
	status := statusFor(code)
	if status >= http.StatusInternalServerError && h.logger != nil {
		h.logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
	}
	h.writeJSON(w, status, map[string]string{
		"error":   string(code),
		"message": err.Error(),
	})
}

func statusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeInvalidInput, dErrors.CodeBadRequest, dErrors.CodeValidation:
		return http.StatusBadRequest
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
