package middleware

import (
	"net/http"

	"github.com/stewardhq/steward/pkg/authz"
	"github.com/stewardhq/steward/pkg/contextkeys"
	"github.com/stewardhq/steward/pkg/httputil"
	"github.com/stewardhq/steward/pkg/identity"
	"github.com/stewardhq/steward/pkg/observability"
	"github.com/stewardhq/steward/pkg/ratelimit"
)

// Authenticate extracts and verifies the bearer token, placing the resulting
// identity on the request context. Requests without a valid token terminate
// here with a NoAuth denial.
//
// Failed verification attempts are accounted against attemptLimit keyed by
// client IP. Once the budget is exhausted, further failures from that IP get
// 429 instead of 401. Successful authentications are never counted, so the
// attempt limit cannot throttle legitimate traffic, even behind a shared IP.
// limiter may be nil to disable attempt limiting.
func Authenticate(verifier identity.Verifier, limiter *ratelimit.Limiter, attemptLimit ratelimit.Limit, logger *observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := identity.TokenFromRequest(r)
			if err != nil {
				writeDenialKind(w, authz.DenyNoAuth)
				return
			}

			ident, err := verifier.Verify(r.Context(), token)
			if err != nil {
				logger.WithError(err).Debug("token verification failed")
				if limiter != nil {
					res := limiter.Take(r.Context(), attemptLimit, IPKey(r))
					if !res.Allowed {
						writeRateLimitHeaders(w, res)
						writeRateLimited(w, res)
						return
					}
				}
				writeDenialKind(w, authz.DenyNoAuth)
				return
			}

			ctx := contextkeys.WithIdentity(r.Context(), ident)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetIdentity extracts the authenticated identity from the request, or nil.
func GetIdentity(r *http.Request) *identity.Identity {
	ident, _ := r.Context().Value(contextkeys.IdentityKey).(*identity.Identity)
	return ident
}

func writeDenialKind(w http.ResponseWriter, kind authz.DenialKind) {
	httputil.WriteKindError(w, kind.HTTPStatus(), string(kind), kind.Message())
}

func writeDenial(w http.ResponseWriter, d *authz.Denial) {
	httputil.WriteKindError(w, d.Status, string(d.Kind), d.Message)
}
