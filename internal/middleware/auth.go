// Package middleware hosts authentication, logging, and rate limiting middleware.
package middleware

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// contextKey avoids collisions when storing values in request contexts.
type contextKey string

const (
	ctxOfficerIDKey contextKey = "officer_id"
	ctxUsernameKey  contextKey = "username"
	ctxRoleKey      contextKey = "role"
)

// AuthMiddleware validates bearer JWTs issued by the staff identity
// provider and injects the officer's identity into the context.
type AuthMiddleware struct {
	jwtSecret string
}

// NewAuthMiddleware constructs an AuthMiddleware with the given secret.
func NewAuthMiddleware(secret string) *AuthMiddleware {
	return &AuthMiddleware{jwtSecret: secret}
}

// Authenticate enforces bearer auth and populates officer details on the
// request context.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if strings.TrimSpace(authHeader) == "" {
			jsonError(w, http.StatusUnauthorized, "Authorization header required")
			return
		}

		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			jsonError(w, http.StatusUnauthorized, "Invalid authorization format")
			return
		}
		tokenString := parts[1]

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(m.jwtSecret), nil
		})

		if err != nil || !token.Valid {
			jsonError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			jsonError(w, http.StatusUnauthorized, "Invalid token claims")
			return
		}

		if exp, ok := claims["exp"].(float64); ok {
			if time.Now().Unix() > int64(exp) {
				jsonError(w, http.StatusUnauthorized, "Token expired")
				return
			}
		}

		officerIDStr, ok := claims["officer_id"].(string)
		if !ok {
			jsonError(w, http.StatusUnauthorized, "Invalid officer ID in token")
			return
		}

		officerID, err := uuid.Parse(officerIDStr)
		if err != nil {
			jsonError(w, http.StatusUnauthorized, "Invalid officer ID format")
			return
		}

		username, _ := claims["username"].(string)
		role, _ := claims["role"].(string)

		next.ServeHTTP(w, r.WithContext(ContextWithOfficer(r.Context(), officerID, username, role)))
	})
}

// ContextWithOfficer returns a context carrying the authenticated
// officer's identity. Empty username or role claims are left unset.
func ContextWithOfficer(ctx context.Context, officerID uuid.UUID, username, role string) context.Context {
	ctx = context.WithValue(ctx, ctxOfficerIDKey, officerID)
	if username != "" {
		ctx = context.WithValue(ctx, ctxUsernameKey, username)
	}
	if role != "" {
		ctx = context.WithValue(ctx, ctxRoleKey, role)
	}
	return ctx
}

// OfficerIDFromContext returns the authenticated officer's UUID from context.
func OfficerIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	v := ctx.Value(ctxOfficerIDKey)
	id, ok := v.(uuid.UUID)
	return id, ok
}

// UsernameFromContext returns the authenticated officer's username from context.
func UsernameFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(ctxUsernameKey)
	s, ok := v.(string)
	return s, ok
}

// RoleFromContext returns the authenticated officer's role from context.
func RoleFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(ctxRoleKey)
	s, ok := v.(string)
	return s, ok
}

func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed := os.Getenv("CORS_ALLOWED_ORIGINS")
		origin := r.Header.Get("Origin")
		if strings.TrimSpace(allowed) != "" {
			// Restrict to configured origins
			origins := strings.Split(allowed, ",")
			ok := false
			for _, o := range origins {
				if strings.EqualFold(strings.TrimSpace(o), origin) {
					ok = true
					break
				}
			}
			if ok {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
			}
		} else {
			// Development default: reflect origin if present, fallback to *
			if origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
			} else {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			}
		}

		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID, Idempotency-Key")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
