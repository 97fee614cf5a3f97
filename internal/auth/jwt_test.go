package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prohmpiriya/concert-booking/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTAuthenticator_Authenticate(t *testing.T) {
	a := NewJWTAuthenticator(Config{Secret: "test-secret", Issuer: "concert-auth"})
	valid, err := a.IssueToken("user-1", time.Hour)
	require.NoError(t, err)

	expired, err := a.IssueToken("user-1", -time.Minute)
	require.NoError(t, err)

	otherSecret, err := NewJWTAuthenticator(Config{Secret: "other", Issuer: "concert-auth"}).IssueToken("user-1", time.Hour)
	require.NoError(t, err)

	wrongIssuer, err := NewJWTAuthenticator(Config{Secret: "test-secret", Issuer: "someone-else"}).IssueToken("user-1", time.Hour)
	require.NoError(t, err)

	noUser, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": "concert-auth",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"user_id": "user-1",
		"iss":     "concert-auth",
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		want    string
		wantErr error
	}{
		{name: "valid token", token: valid, want: "user-1"},
		{name: "valid token with padding", token: "  " + valid + " ", want: "user-1"},
		{name: "empty token", token: "", wantErr: domain.ErrUnauthenticated},
		{name: "garbage", token: "not-a-jwt", wantErr: domain.ErrBadToken},
		{name: "expired", token: expired, wantErr: domain.ErrBadToken},
		{name: "wrong secret", token: otherSecret, wantErr: domain.ErrBadToken},
		{name: "wrong issuer", token: wrongIssuer, wantErr: domain.ErrBadToken},
		{name: "no user claim", token: noUser, wantErr: domain.ErrBadToken},
		{name: "unsigned", token: noneAlg, wantErr: domain.ErrBadToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := a.Authenticate(context.Background(), tt.token)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestJWTAuthenticator_SubjectFallback(t *testing.T) {
	a := NewJWTAuthenticator(Config{Secret: "s"})
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-9",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("s"))
	require.NoError(t, err)

	got, err := a.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user-9", got)
}
