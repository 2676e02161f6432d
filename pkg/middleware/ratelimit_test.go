package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stewardhq/steward/pkg/authz"
	"github.com/stewardhq/steward/pkg/contextkeys"
	"github.com/stewardhq/steward/pkg/ratelimit"
)

func testLimiter() *ratelimit.Limiter {
	return ratelimit.NewLimiter(nil, nil, testLogger(), nil)
}

func TestRateLimit_SetsHeaders(t *testing.T) {
	limit := ratelimit.Limit{Name: "api", MaxRequests: 10, Window: time.Minute}
	handler := RateLimit(testLimiter(), limit, IPKey)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "10", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "9", rec.Header().Get("X-RateLimit-Remaining"))

	reset, err := strconv.ParseInt(rec.Header().Get("X-RateLimit-Reset"), 10, 64)
	require.NoError(t, err)
	assert.Greater(t, reset, time.Now().Unix())
}

func TestRateLimit_DeniesOverLimit(t *testing.T) {
	limit := ratelimit.Limit{Name: "api", MaxRequests: 2, Window: time.Minute}
	limiter := testLimiter()
	handler := RateLimit(limiter, limit, IPKey)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	body := decodeError(t, rec)
	assert.Equal(t, "rate limit exceeded", body.Error)
}

func TestRateLimit_SubjectsAreIsolated(t *testing.T) {
	limit := ratelimit.Limit{Name: "api", MaxRequests: 1, Window: time.Minute}
	handler := RateLimit(testLimiter(), limit, UserKey)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(userID string) int {
		req := withIdentity(httptest.NewRequest(http.MethodGet, "/", nil), userID)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send("alice"))
	assert.Equal(t, http.StatusTooManyRequests, send("alice"))
	assert.Equal(t, http.StatusOK, send("bob"), "a different user has their own counter")
}

func TestUserKey(t *testing.T) {
	req := withIdentity(httptest.NewRequest(http.MethodGet, "/", nil), "alice")
	assert.Equal(t, "user:alice", UserKey(req))

	anon := httptest.NewRequest(http.MethodGet, "/", nil)
	anon.RemoteAddr = "10.0.0.1:4321"
	assert.Equal(t, "ip:10.0.0.1:4321", UserKey(anon))
}

func TestOrgKey(t *testing.T) {
	req := withIdentity(httptest.NewRequest(http.MethodGet, "/", nil), "alice")
	ctx := contextkeys.WithAuthz(req.Context(), &authz.Authorized{
		UserID: "alice", Role: authz.RoleAdmin, OrganizationID: "org-1",
	})
	assert.Equal(t, "org:org-1", OrgKey(req.WithContext(ctx)))

	// Without an authorization decision, fall back to the user key.
	assert.Equal(t, "user:alice", OrgKey(req))
}

func TestIPKey_HonorsProxyHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	assert.Equal(t, "ip:203.0.113.7", IPKey(req))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Real-IP", "198.51.100.3")
	assert.Equal(t, "ip:198.51.100.3", IPKey(req))
}

func TestRequestID_EchoesHeader(t *testing.T) {
	handler := RequestID(testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))
}

func TestRequestID_GeneratesWhenAbsent(t *testing.T) {
	handler := RequestID(testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRecover_ConvertsPanicTo500(t *testing.T) {
	handler := Recover(testLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "internal server error", body.Error)
}
