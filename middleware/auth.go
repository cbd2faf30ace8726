package middleware

import (
	"context"
	"net/http"
	"strings"

	"distance-api-go/logcolors"

	"github.com/golang-jwt/jwt/v5"
	log "github.com/sirupsen/logrus"
)

type contextKey string

const (
	// principalKey stores the verified subject of the bearer credential.
	principalKey contextKey = "principal"
	// requestIDKey stores the per-request correlation ID.
	requestIDKey contextKey = "requestID"
)

// Principal returns the authenticated principal identifier from the request
// context, or "" when the route was public.
func Principal(ctx context.Context) string {
	p, _ := ctx.Value(principalKey).(string)
	return p
}

// BearerAuth verifies the Authorization bearer credential on every
// non-public path. Verification is HS256 against the shared secret; the
// token's subject claim becomes the principal identifier in the request
// context. The middleware trusts the verification verdict and does not
// reinterpret claims.
//
// Public paths are exact matches, or prefix matches for entries ending
// with "*". A missing secret is a deployment defect and yields 500, not an
// open door.
func BearerAuth(secret string, publicPaths []string) func(http.Handler) http.Handler {
	publicPathMap := make(map[string]bool)
	for _, path := range publicPaths {
		publicPathMap[path] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path
			isPublic := publicPathMap[path]
			if !isPublic {
				for publicPath := range publicPathMap {
					if strings.HasSuffix(publicPath, "*") {
						prefix := strings.TrimSuffix(publicPath, "*")
						if strings.HasPrefix(path, prefix) {
							isPublic = true
							break
						}
					}
				}
			}

			if isPublic {
				next.ServeHTTP(w, r)
				return
			}

			if secret == "" {
				log.Errorf("%s JWT secret not configured, rejecting request for %s", logcolors.LogAuth, path)
				writeJSONError(w, r, http.StatusInternalServerError, "configuration_error",
					"Authentication is not configured on this server")
				return
			}

			header := r.Header.Get("Authorization")
			if header == "" {
				log.Warnf("%s Missing authorization header from %s for %s", logcolors.LogAuth, r.RemoteAddr, path)
				writeJSONError(w, r, http.StatusUnauthorized, "unauthorized", "Missing authorization header")
				return
			}

			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				writeJSONError(w, r, http.StatusUnauthorized, "unauthorized",
					"Invalid authorization format; expected 'Bearer <token>'")
				return
			}

			principal, err := verifyToken(parts[1], secret)
			if err != nil {
				log.Warnf("%s Invalid token from %s for %s: %v", logcolors.LogAuth, r.RemoteAddr, path, err)
				writeJSONError(w, r, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), principalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// verifyToken validates an HS256 token and returns its subject.
func verifyToken(tokenString, secret string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", jwt.ErrTokenInvalidClaims
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return "", jwt.ErrTokenInvalidSubject
	}
	return subject, nil
}
