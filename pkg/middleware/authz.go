package middleware

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/stewardhq/steward/pkg/authz"
	"github.com/stewardhq/steward/pkg/contextkeys"
	"github.com/stewardhq/steward/pkg/observability"
)

// RequireRole authorizes requests whose caller holds one of the acceptable
// roles in their active organization. The gate's decision is placed on the
// context for route handlers. metrics may be nil.
func RequireRole(gate *authz.Gate, metrics *observability.Metrics, acceptable ...authz.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision := gate.RequireRole(r.Context(), callerID(r), acceptable...)
			finishDecision(w, r, next, decision, metrics)
		})
	}
}

// RequireOrgScope authorizes requests whose route variable (orgVar, usually
// "org_id") matches the caller's active organization. Cross-organization
// requests are denied even when the caller's role would satisfy a role-only
// check.
func RequireOrgScope(gate *authz.Gate, metrics *observability.Metrics, orgVar string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			target := mux.Vars(r)[orgVar]
			decision := gate.RequireOrg(r.Context(), callerID(r), target)
			finishDecision(w, r, next, decision, metrics)
		})
	}
}

// GetAuthorized extracts the gate's decision from the request, or nil when
// no authorization middleware ran.
func GetAuthorized(r *http.Request) *authz.Authorized {
	result, _ := r.Context().Value(contextkeys.AuthzKey).(*authz.Authorized)
	return result
}

func callerID(r *http.Request) string {
	if ident := GetIdentity(r); ident != nil {
		return ident.UserID
	}
	return ""
}

func finishDecision(w http.ResponseWriter, r *http.Request, next http.Handler, decision authz.Decision, metrics *observability.Metrics) {
	if !decision.Allowed() {
		if metrics != nil {
			metrics.RecordDecision(false, string(decision.Denied.Kind))
			if decision.Denied.Kind == authz.DenyStoreUnavailable {
				metrics.ResolverErrorsTotal.Inc()
			}
		}
		observability.GetLogger(r.Context()).
			WithField("kind", string(decision.Denied.Kind)).
			WithField("path", r.URL.Path).
			Debug("request denied")
		writeDenial(w, decision.Denied)
		return
	}
	if metrics != nil {
		metrics.RecordDecision(true, "")
	}
	ctx := contextkeys.WithAuthz(r.Context(), decision.Authorized)
	next.ServeHTTP(w, r.WithContext(ctx))
}
