package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// BearerAssociation extracts an optional bearer-token identity from an
// upgrade request. Read-only subscription requires no authentication; when a
// token is supplied its subject is associated with the connection as opaque
// metadata. The token is not validated here, association only.
func BearerAssociation(r *http.Request) map[string]string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil
	}

	token, _, err := jwt.NewParser().ParseUnverified(parts[1], jwt.MapClaims{})
	if err != nil {
		return nil
	}

	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return nil
	}

	return map[string]string{"subject": subject}
}
