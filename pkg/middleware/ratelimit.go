package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/stewardhq/steward/pkg/httputil"
	"github.com/stewardhq/steward/pkg/ratelimit"
)

// KeyFunc derives the rate limit subject from a request.
type KeyFunc func(r *http.Request) string

// UserKey keys the limit by authenticated user, falling back to client IP
// for unauthenticated requests.
func UserKey(r *http.Request) string {
	if ident := GetIdentity(r); ident != nil {
		return "user:" + ident.UserID
	}
	return "ip:" + clientIP(r)
}

// OrgKey keys the limit by the caller's active organization, falling back to
// the user key when no authorization decision is on the context.
func OrgKey(r *http.Request) string {
	if result := GetAuthorized(r); result != nil {
		return "org:" + result.OrganizationID
	}
	return UserKey(r)
}

// IPKey keys the limit by client IP. Used for pre-authentication limits such
// as auth attempts.
func IPKey(r *http.Request) string {
	return "ip:" + clientIP(r)
}

// RateLimit enforces a named limit on the wrapped handler. X-RateLimit-*
// headers are set on every response; denied requests get 429 with
// Retry-After.
func RateLimit(limiter *ratelimit.Limiter, limit ratelimit.Limit, key KeyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := limiter.Take(r.Context(), limit, key(r))

			writeRateLimitHeaders(w, res)

			if !res.Allowed {
				writeRateLimited(w, res)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeRateLimitHeaders(w http.ResponseWriter, res ratelimit.Result) {
	w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", res.Limit))
	w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", res.Remaining))
	w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", res.ResetAt.Unix()))
}

func writeRateLimited(w http.ResponseWriter, res ratelimit.Result) {
	retryAfter := time.Until(res.ResetAt).Seconds()
	if retryAfter < 0 {
		retryAfter = 0
	}
	w.Header().Set("Retry-After", fmt.Sprintf("%.0f", retryAfter))
	httputil.WriteErrorMessage(w, http.StatusTooManyRequests, "rate limit exceeded")
}

// clientIP resolves the originating address, honoring proxy headers.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	return r.RemoteAddr
}
