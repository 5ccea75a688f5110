package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func TestBearerAssociation(t *testing.T) {
	tests := []struct {
		name   string
		header string
		want   map[string]string
	}{
		{
			name:   "no authorization header",
			header: "",
			want:   nil,
		},
		{
			name:   "valid bearer token with subject",
			header: "Bearer " + signedTokenHelper(t, "trader-42"),
			want:   map[string]string{"subject": "trader-42"},
		},
		{
			name:   "lowercase scheme accepted",
			header: "bearer " + signedTokenHelper(t, "trader-42"),
			want:   map[string]string{"subject": "trader-42"},
		},
		{
			name:   "wrong scheme",
			header: "Basic dXNlcjpwYXNz",
			want:   nil,
		},
		{
			name:   "malformed token",
			header: "Bearer not-a-jwt",
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/ws/market:DE-LU", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}

			assert.Equal(t, tt.want, BearerAssociation(r))
		})
	}
}

func TestBearerAssociationWithoutSubject(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws/market:DE-LU", nil)
	r.Header.Set("Authorization", "Bearer "+signedToken(t, jwt.MapClaims{"aud": "optibid"}))

	// A token without a subject carries no identity to associate.
	assert.Nil(t, BearerAssociation(r))
}

func signedTokenHelper(t *testing.T, subject string) string {
	return signedToken(t, jwt.MapClaims{"sub": subject})
}
