// Package api provides the HTTP handlers for the identity and
// authorization REST API.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"authbridge/internal/domain"
	"authbridge/internal/service/security"
)

// Handler serves the identity and grant endpoints.
type Handler struct {
	resolver   *security.IdentityResolver
	identities *security.IdentityService
	grants     *security.GrantService
	logger     *slog.Logger
}

// NewHandler creates a Handler with all required service dependencies.
func NewHandler(resolver *security.IdentityResolver, identities *security.IdentityService, grants *security.GrantService, logger *slog.Logger) *Handler {
	return &Handler{
		resolver:   resolver,
		identities: identities,
		grants:     grants,
		logger:     logger,
	}
}

// --- wire types ---

// IdentityResponse is the API representation of an identity record.
type IdentityResponse struct {
	ID              string    `json:"id"`
	Username        string    `json:"username"`
	DisplayName     string    `json:"display_name"`
	Email           string    `json:"email"`
	InstitutionalID string    `json:"institutional_id"`
	Roles           []string  `json:"roles"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// GrantsResponse lists the current authorizations for one resource.
// Subjects carry their token form (user:<id> or role:<domain>#<role>).
type GrantsResponse struct {
	ResourceID string              `json:"resource_id"`
	Grants     map[string][]string `json:"grants"`
}

// ReplaceGrantsRequest stages full replacement subject sets per mode. A
// missing mode is left untouched; an empty list clears that mode.
type ReplaceGrantsRequest struct {
	Read  *[]string `json:"read,omitempty"`
	Write *[]string `json:"write,omitempty"`
}

// ErrorResponse is the JSON body for all error statuses.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func identityToAPI(id *domain.Identity) IdentityResponse {
	roles := make([]string, len(id.Roles))
	for i, r := range id.Roles {
		roles[i] = string(r)
	}
	return IdentityResponse{
		ID:              id.ID,
		Username:        id.Username,
		DisplayName:     id.DisplayName,
		Email:           id.Email,
		InstitutionalID: id.InstitutionalID,
		Roles:           roles,
		CreatedAt:       id.CreatedAt,
		UpdatedAt:       id.UpdatedAt,
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	code := httpStatusFromDomainError(err)
	if code == http.StatusInternalServerError {
		h.logger.Error("request failed", "error", err)
	}
	h.writeJSON(w, code, ErrorResponse{Code: code, Message: err.Error()})
}

// --- endpoints ---

// GetUser resolves the requester's asserted attributes and reconciles them
// against the identity store, provisioning privileged first-time users.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	requester, ok := domain.RequesterFromContext(r.Context())
	if !ok {
		h.writeJSON(w, http.StatusUnauthorized, ErrorResponse{Code: http.StatusUnauthorized, Message: "no identity asserted"})
		return
	}

	user := h.resolver.Resolve(r.Context(), requester.Attrs)
	identity, err := h.identities.Reconcile(r.Context(), user)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, identityToAPI(identity))
}

// GetIdentity returns a single identity record by id.
func (h *Handler) GetIdentity(w http.ResponseWriter, r *http.Request) {
	identity, err := h.identities.Get(r.Context(), chi.URLParam(r, "identityID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, identityToAPI(identity))
}

// ListGrants returns the current subject sets per mode for a resource.
func (h *Handler) ListGrants(w http.ResponseWriter, r *http.Request) {
	resourceID := chi.URLParam(r, "resourceID")
	auths, err := h.grants.ListForResource(r.Context(), resourceID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	out := GrantsResponse{ResourceID: resourceID, Grants: map[string][]string{}}
	for _, auth := range auths {
		tokens := make([]string, len(auth.Subjects))
		for i, s := range auth.Subjects {
			tokens[i] = s.Token()
		}
		out.Grants[string(auth.Mode)] = tokens
	}
	h.writeJSON(w, http.StatusOK, out)
}

// ReplaceGrants commits full replacement subject sets for the modes present
// in the request body. Admin only.
func (h *Handler) ReplaceGrants(w http.ResponseWriter, r *http.Request) {
	requester, ok := domain.RequesterFromContext(r.Context())
	if !ok || !requester.IsAdmin {
		h.writeJSON(w, http.StatusForbidden, ErrorResponse{Code: http.StatusForbidden, Message: "admin privileges required"})
		return
	}

	var req ReplaceGrantsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Code: http.StatusBadRequest, Message: "invalid JSON body: " + err.Error()})
		return
	}

	resourceID := chi.URLParam(r, "resourceID")
	composer := h.grants.ForResource(resourceID)

	if req.Read != nil {
		subjects, err := parseSubjects(*req.Read)
		if err != nil {
			h.writeError(w, err)
			return
		}
		composer.GrantRead(subjects...)
	}
	if req.Write != nil {
		subjects, err := parseSubjects(*req.Write)
		if err != nil {
			h.writeError(w, err)
			return
		}
		composer.GrantWrite(subjects...)
	}

	if err := composer.Commit(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Healthz reports liveness.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func parseSubjects(tokens []string) ([]domain.SubjectRef, error) {
	subjects := make([]domain.SubjectRef, len(tokens))
	for i, token := range tokens {
		ref, err := domain.ParseSubjectToken(token)
		if err != nil {
			return nil, err
		}
		subjects[i] = ref
	}
	return subjects, nil
}
