package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"

	"github.com/jurypanel/jurypanel/models"
)

type contextKey string

const (
	userContextKey    contextKey = "user"
	sessionContextKey contextKey = "session_id"
)

// JWT claim names. The token carries the resolved user plus the session id
// that keys the persisted session state.
const (
	claimUserID    = "user_id"
	claimName      = "name"
	claimIsAdmin   = "is_admin"
	claimSessionID = "sid"
)

// Authenticate verifies the bearer token and stashes the authenticated user
// and session id in the request context.
func Authenticate(jwtSecret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := parseToken(r, jwtSecret)
			if err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			user, sessionID, err := claimsToUser(claims)
			if err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey, user)
			ctx = context.WithValue(ctx, sessionContextKey, sessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin gates admin-only routes. Services re-check the capability;
// this is the first fence, not the only one.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := UserFromContext(r.Context())
		if err != nil || !user.IsAdmin {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func UserFromContext(ctx context.Context) (*models.User, error) {
	user, ok := ctx.Value(userContextKey).(*models.User)
	if !ok || user == nil {
		return nil, errors.New("no authenticated user in context")
	}
	return user, nil
}

func SessionIDFromContext(ctx context.Context) (string, error) {
	sid, ok := ctx.Value(sessionContextKey).(string)
	if !ok || sid == "" {
		return "", errors.New("no session id in context")
	}
	return sid, nil
}

func parseToken(r *http.Request, jwtSecret []byte) (jwt.MapClaims, error) {
	header := r.Header.Get("Authorization")
	tokenString := strings.TrimPrefix(header, "Bearer ")
	if tokenString == "" || tokenString == header {
		return nil, errors.New("missing bearer token")
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

func claimsToUser(claims jwt.MapClaims) (*models.User, string, error) {
	userID, ok := claims[claimUserID].(string)
	if !ok || userID == "" {
		return nil, "", fmt.Errorf("missing %q claim", claimUserID)
	}
	sessionID, ok := claims[claimSessionID].(string)
	if !ok || sessionID == "" {
		return nil, "", fmt.Errorf("missing %q claim", claimSessionID)
	}

	user := &models.User{ID: userID}
	if name, ok := claims[claimName].(string); ok {
		user.Name = name
	}
	if isAdmin, ok := claims[claimIsAdmin].(bool); ok {
		user.IsAdmin = isAdmin
	}
	return user, sessionID, nil
}

// NewToken mints the session token handed out at login.
func NewToken(jwtSecret []byte, user *models.User, sessionID string, ttlSeconds int64, nowUnix int64) (string, error) {
	claims := jwt.MapClaims{
		claimUserID:    user.ID,
		claimName:      user.Name,
		claimIsAdmin:   user.IsAdmin,
		claimSessionID: sessionID,
		"iat":          nowUnix,
		"exp":          nowUnix + ttlSeconds,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}
