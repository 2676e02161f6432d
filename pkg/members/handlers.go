package members

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/stewardhq/steward/pkg/async"
	"github.com/stewardhq/steward/pkg/audit"
	"github.com/stewardhq/steward/pkg/authz"
	"github.com/stewardhq/steward/pkg/contextkeys"
	"github.com/stewardhq/steward/pkg/httputil"
	"github.com/stewardhq/steward/pkg/middleware"
	"github.com/stewardhq/steward/pkg/observability"
)

// auditWriteTimeout bounds the background audit insert.
const auditWriteTimeout = 5 * time.Second

// Handlers exposes membership management over HTTP. Routes assume the
// authentication and authorization middleware already ran; handlers only add
// the guard checks that protect destructive operations.
type Handlers struct {
	service  Service
	guard    *authz.Guard
	resolver *authz.Resolver
	recorder audit.Recorder
}

// NewHandlers creates membership handlers. recorder may be nil to disable
// auditing.
func NewHandlers(service Service, guard *authz.Guard, resolver *authz.Resolver, recorder audit.Recorder) *Handlers {
	if recorder == nil {
		recorder = audit.NopRecorder{}
	}
	return &Handlers{service: service, guard: guard, resolver: resolver, recorder: recorder}
}

// RegisterRoutes registers membership routes with their authorization
// chains. Listing is open to every role; role changes and removals require
// super_admin or admin. All three routes are organization-scoped, so a
// caller whose active organization differs from {org_id} is denied before
// their role is even considered.
func (h *Handlers) RegisterRoutes(router *mux.Router, gate *authz.Gate, metrics *observability.Metrics) {
	orgScope := middleware.RequireOrgScope(gate, metrics, "org_id")
	anyRole := middleware.RequireRole(gate, metrics,
		authz.RoleSuperAdmin, authz.RoleAdmin, authz.RoleMember, authz.RoleViewer)
	adminRole := middleware.RequireRole(gate, metrics, authz.RoleSuperAdmin, authz.RoleAdmin)

	router.Handle("/orgs/{org_id}/members",
		chain(http.HandlerFunc(h.ListMembers), anyRole, orgScope)).Methods("GET")
	router.Handle("/orgs/{org_id}/members/{user_id}",
		chain(http.HandlerFunc(h.UpdateMemberRole), adminRole, orgScope)).Methods("PUT")
	router.Handle("/orgs/{org_id}/members/{user_id}",
		chain(http.HandlerFunc(h.RemoveMember), adminRole, orgScope)).Methods("DELETE")
}

// chain wraps h with the middlewares, first listed innermost.
func chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for _, mw := range mws {
		h = mw(h)
	}
	return h
}

// RegisterSessionRoutes registers the active-organization switch route. It
// needs authentication only; membership in the target organization is
// re-validated by the resolver.
func (h *Handlers) RegisterSessionRoutes(router *mux.Router) {
	router.HandleFunc("/session/organization", h.SwitchOrganization).Methods("PUT")
}

// ListMembers lists the members of the caller's organization.
func (h *Handlers) ListMembers(w http.ResponseWriter, r *http.Request) {
	orgID := mux.Vars(r)["org_id"]

	members, err := h.service.ListMembers(r.Context(), orgID)
	if err != nil {
		observability.GetLogger(r.Context()).WithError(err).Error("list members failed")
		httputil.WriteErrorMessage(w, http.StatusInternalServerError, "failed to list members")
		return
	}

	httputil.WriteSuccess(w, members)
}

type updateRoleRequest struct {
	Role authz.Role `json:"role"`
}

// UpdateMemberRole changes a member's role. Demoting the sole remaining
// super_admin is rejected before any store mutation.
func (h *Handlers) UpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	orgID, userID := vars["org_id"], vars["user_id"]

	var req updateRoleRequest
	if err := httputil.ParseJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, "invalid request body")
		return
	}
	if !req.Role.Valid() {
		httputil.WriteBadRequest(w, "invalid role")
		return
	}

	member, err := h.service.GetMember(r.Context(), orgID, userID)
	if err != nil {
		h.writeMemberError(w, r, err)
		return
	}

	if err := h.guard.CheckRoleChange(r.Context(), orgID, member.Role, req.Role); err != nil {
		h.recordEvent(r, &audit.Event{
			EventType:      audit.EventRoleChange,
			Status:         audit.StatusDenied,
			OrganizationID: orgID,
			TargetUserID:   userID,
			Detail:         map[string]interface{}{"from": member.Role, "to": req.Role},
		})
		h.writeGuardError(w, r, err)
		return
	}

	if err := h.service.UpdateMemberRole(r.Context(), orgID, userID, req.Role); err != nil {
		h.writeMemberError(w, r, err)
		return
	}

	// The member's cached resolution is stale now.
	h.resolver.Invalidate(userID)
	h.recordEvent(r, &audit.Event{
		EventType:      audit.EventRoleChange,
		Status:         audit.StatusSuccess,
		OrganizationID: orgID,
		TargetUserID:   userID,
		Detail:         map[string]interface{}{"from": member.Role, "to": req.Role},
	})
	httputil.WriteNoContent(w)
}

// RemoveMember removes a member from the organization. Removing the sole
// remaining super_admin is rejected before any store mutation.
func (h *Handlers) RemoveMember(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	orgID, userID := vars["org_id"], vars["user_id"]

	member, err := h.service.GetMember(r.Context(), orgID, userID)
	if err != nil {
		h.writeMemberError(w, r, err)
		return
	}

	if err := h.guard.CheckRemoval(r.Context(), orgID, member.Role); err != nil {
		h.recordEvent(r, &audit.Event{
			EventType:      audit.EventMemberRemove,
			Status:         audit.StatusDenied,
			OrganizationID: orgID,
			TargetUserID:   userID,
		})
		h.writeGuardError(w, r, err)
		return
	}

	if err := h.service.RemoveMember(r.Context(), orgID, userID); err != nil {
		h.writeMemberError(w, r, err)
		return
	}

	h.resolver.Invalidate(userID)
	h.recordEvent(r, &audit.Event{
		EventType:      audit.EventMemberRemove,
		Status:         audit.StatusSuccess,
		OrganizationID: orgID,
		TargetUserID:   userID,
		Detail:         map[string]interface{}{"role": member.Role},
	})
	httputil.WriteNoContent(w)
}

type switchOrganizationRequest struct {
	OrganizationID string `json:"organization_id"`
}

// SwitchOrganization changes the caller's active organization after
// re-validating membership in the target.
func (h *Handlers) SwitchOrganization(w http.ResponseWriter, r *http.Request) {
	ident := middleware.GetIdentity(r)
	if ident == nil {
		httputil.WriteKindError(w, authz.DenyNoAuth.HTTPStatus(), string(authz.DenyNoAuth), authz.DenyNoAuth.Message())
		return
	}

	var req switchOrganizationRequest
	if err := httputil.ParseJSON(r, &req); err != nil || req.OrganizationID == "" {
		httputil.WriteBadRequest(w, "invalid request body")
		return
	}

	err := h.resolver.SwitchOrganization(r.Context(), ident.UserID, req.OrganizationID)
	switch {
	case errors.Is(err, authz.ErrNotAMember):
		// Same body as a cross-organization denial; the message must not
		// reveal whether the organization exists.
		kind := authz.DenyCrossOrganization
		httputil.WriteKindError(w, kind.HTTPStatus(), string(kind), kind.Message())
	case errors.Is(err, authz.ErrStoreUnavailable):
		observability.GetLogger(r.Context()).WithError(err).Error("organization switch failed")
		kind := authz.DenyStoreUnavailable
		httputil.WriteKindError(w, kind.HTTPStatus(), string(kind), kind.Message())
	case err != nil:
		httputil.WriteBadRequest(w, err.Error())
	default:
		h.recordEvent(r, &audit.Event{
			EventType:      audit.EventSessionSwitch,
			Status:         audit.StatusSuccess,
			OrganizationID: req.OrganizationID,
		})
		httputil.WriteNoContent(w)
	}
}

// recordEvent writes the audit entry in the background; the response never
// waits on the audit store.
func (h *Handlers) recordEvent(r *http.Request, event *audit.Event) {
	if ident := middleware.GetIdentity(r); ident != nil {
		event.ActorID = ident.UserID
	}
	event.RequestID = contextkeys.RequestIDFrom(r.Context())

	logger := observability.GetLogger(r.Context())
	ctx := context.WithoutCancel(r.Context())
	async.Go(ctx, logger, auditWriteTimeout, "audit write", func(ctx context.Context) error {
		return h.recorder.Record(ctx, event)
	})
}

func (h *Handlers) writeMemberError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, ErrMemberNotFound) {
		httputil.WriteNotFound(w, "member not found")
		return
	}
	observability.GetLogger(r.Context()).WithError(err).Error("membership operation failed")
	httputil.WriteErrorMessage(w, http.StatusInternalServerError, "membership store unavailable")
}

func (h *Handlers) writeGuardError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, authz.ErrLastSuperAdmin) {
		httputil.WriteErrorMessage(w, http.StatusConflict, "organization must retain at least one super_admin")
		return
	}
	observability.GetLogger(r.Context()).WithError(err).Error("guard check failed")
	kind := authz.DenyStoreUnavailable
	httputil.WriteKindError(w, kind.HTTPStatus(), string(kind), kind.Message())
}
