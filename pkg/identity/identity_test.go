package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenFromRequest(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr bool
	}{
		{name: "valid bearer", header: "Bearer abc123", want: "abc123"},
		{name: "missing header", header: "", wantErr: true},
		{name: "wrong scheme", header: "Basic abc123", wantErr: true},
		{name: "no token", header: "Bearer ", wantErr: true},
		{name: "bare token", header: "abc123", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			token, err := TokenFromRequest(req)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNoToken)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, token)
		})
	}
}

func TestStaticVerifier(t *testing.T) {
	verifier := StaticVerifier{
		"good-token": {UserID: "alice", Email: "alice@example.com"},
	}

	ident, err := verifier.Verify(context.Background(), "good-token")
	require.NoError(t, err)
	assert.Equal(t, "alice", ident.UserID)
	assert.Equal(t, "alice@example.com", ident.Email)

	_, err = verifier.Verify(context.Background(), "bad-token")
	assert.Error(t, err)
}
