// Package identity verifies the authenticated principal on each request.
// Authentication itself lives with the external OpenID Connect provider; this
// package only verifies the bearer token the provider issued and extracts an
// opaque user identifier (the token subject) plus optional email.
package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
)

// ErrNoToken indicates the request carried no usable bearer token.
var ErrNoToken = errors.New("identity: missing or malformed authorization header")

// Identity is the authenticated principal making a request. Read-only to
// this layer.
type Identity struct {
	UserID string `json:"user_id"` // token subject, opaque
	Email  string `json:"email,omitempty"`
}

// Verifier validates a raw bearer token and produces an Identity.
type Verifier interface {
	Verify(ctx context.Context, rawToken string) (*Identity, error)
}

// TokenFromRequest extracts the bearer token from the Authorization header.
// Format: "Bearer <token>".
func TokenFromRequest(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrNoToken
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", ErrNoToken
	}
	return parts[1], nil
}

// OIDCVerifier verifies ID tokens against a discovered OIDC provider.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDCVerifier discovers the issuer's configuration and builds a verifier
// bound to the given client ID.
func NewOIDCVerifier(ctx context.Context, issuerURL, clientID string) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("identity: discover OIDC provider: %w", err)
	}
	return &OIDCVerifier{
		verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
	}, nil
}

// Verify checks the token's signature, issuer, audience, and expiry, and
// maps the subject and email claims onto an Identity.
func (v *OIDCVerifier) Verify(ctx context.Context, rawToken string) (*Identity, error) {
	idToken, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return nil, fmt.Errorf("identity: verify token: %w", err)
	}

	var claims struct {
		Email string `json:"email"`
	}
	// Email is optional; a token without the claim is still valid.
	_ = idToken.Claims(&claims)

	return &Identity{UserID: idToken.Subject, Email: claims.Email}, nil
}

// StaticVerifier maps fixed tokens to identities. For tests and local
// development only.
type StaticVerifier map[string]Identity

// Verify looks the token up in the static map.
func (v StaticVerifier) Verify(_ context.Context, rawToken string) (*Identity, error) {
	ident, ok := v[rawToken]
	if !ok {
		return nil, errors.New("identity: unknown token")
	}
	return &ident, nil
}
