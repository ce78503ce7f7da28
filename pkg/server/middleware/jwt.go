package middleware

import (
	"context"
	"net/http"
	"regexp"

	"github.com/golang-jwt/jwt/v5"
)

var bearerRegex = regexp.MustCompile(`^Bearer (\S+)$`)

type contextKey string

const userContextKey contextKey = "user"

// JWTAuthenticator is middleware that validates JWT bearer tokens
type JWTAuthenticator struct {
	secret []byte
}

// NewJWTAuthenticator creates a new JWT authenticator middleware
func NewJWTAuthenticator(secret []byte) *JWTAuthenticator {
	return &JWTAuthenticator{secret: secret}
}

// UserFromContext returns the authenticated user ID, if any.
func UserFromContext(ctx context.Context) string {
	user, _ := ctx.Value(userContextKey).(string)
	return user
}

// Middleware returns an HTTP middleware that validates JWT tokens and
// puts the token subject on the request context.
func (j *JWTAuthenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")

		if len(authHeader) == 0 {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte("Authorization missing"))
			return
		}

		tokenMatches := bearerRegex.FindStringSubmatch(authHeader)

		if len(tokenMatches) != 2 {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte("Malformed authorization header"))
			return
		}

		token, err := jwt.Parse(tokenMatches[1], func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return j.secret, nil
		}, jwt.WithExpirationRequired())
		if err != nil || !token.Valid {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte("Invalid authorization token"))
			return
		}

		subject, err := token.Claims.GetSubject()
		if err != nil || subject == "" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte("Invalid authorization token"))
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
