package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stewardhq/steward/pkg/authz"
	"github.com/stewardhq/steward/pkg/contextkeys"
	"github.com/stewardhq/steward/pkg/identity"
)

// stubResolver returns a fixed resolution per user.
type stubResolver struct {
	resolutions map[string]authz.Resolution
	err         error
}

func (s *stubResolver) Resolve(_ context.Context, userID string) (authz.Resolution, error) {
	if s.err != nil {
		return authz.Resolution{}, s.err
	}
	return s.resolutions[userID], nil
}

func scoped(userID, orgID string, role authz.Role) authz.Resolution {
	return authz.Resolution{
		Session:        &authz.Session{UserID: userID, OrganizationID: orgID, UpdatedAt: time.Now()},
		Role:           role,
		OrganizationID: orgID,
	}
}

func testGate() *authz.Gate {
	return authz.NewGate(&stubResolver{resolutions: map[string]authz.Resolution{
		"alice": scoped("alice", "org-1", authz.RoleAdmin),
		"bob":   scoped("bob", "org-2", authz.RoleViewer),
	}})
}

// withIdentity simulates the Authenticate middleware having run.
func withIdentity(req *http.Request, userID string) *http.Request {
	ctx := contextkeys.WithIdentity(req.Context(), &identity.Identity{UserID: userID})
	return req.WithContext(ctx)
}

func TestRequireRole_Allowed(t *testing.T) {
	var decision *authz.Authorized
	handler := RequireRole(testGate(), nil, authz.RoleSuperAdmin, authz.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		decision = GetAuthorized(r)
		w.WriteHeader(http.StatusOK)
	}))

	req := withIdentity(httptest.NewRequest(http.MethodGet, "/orgs/org-1/members", nil), "alice")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, decision)
	assert.Equal(t, "alice", decision.UserID)
	assert.Equal(t, authz.RoleAdmin, decision.Role)
	assert.Equal(t, "org-1", decision.OrganizationID)
}

func TestRequireRole_InsufficientRole(t *testing.T) {
	handler := RequireRole(testGate(), nil, authz.RoleSuperAdmin, authz.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run for an insufficient role")
	}))

	req := withIdentity(httptest.NewRequest(http.MethodDelete, "/orgs/org-2/members/x", nil), "bob")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "insufficient_role", body.Kind)
}

func TestRequireRole_NoIdentity(t *testing.T) {
	handler := RequireRole(testGate(), nil, authz.RoleViewer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without an identity")
	}))

	req := httptest.NewRequest(http.MethodGet, "/orgs/org-1/members", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "no_auth", body.Kind)
}

func TestRequireOrgScope_Match(t *testing.T) {
	router := mux.NewRouter()
	router.Handle("/orgs/{org_id}/members", RequireOrgScope(testGate(), nil, "org_id")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))).Methods(http.MethodGet)

	req := withIdentity(httptest.NewRequest(http.MethodGet, "/orgs/org-1/members", nil), "alice")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireOrgScope_CrossOrganization(t *testing.T) {
	router := mux.NewRouter()
	router.Handle("/orgs/{org_id}/members", RequireOrgScope(testGate(), nil, "org_id")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run for a cross-organization request")
	}))).Methods(http.MethodGet)

	// alice's active organization is org-1; she targets org-2.
	req := withIdentity(httptest.NewRequest(http.MethodGet, "/orgs/org-2/members", nil), "alice")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "cross_organization_access", body.Kind)
}

func TestRequireRole_StoreUnavailable(t *testing.T) {
	gate := authz.NewGate(&stubResolver{err: authz.ErrStoreUnavailable})
	handler := RequireRole(gate, nil, authz.RoleViewer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run when the store is unavailable")
	}))

	req := withIdentity(httptest.NewRequest(http.MethodGet, "/orgs/org-1/members", nil), "alice")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "store_unavailable", body.Kind)
}
