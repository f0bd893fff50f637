package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"sipeta-bknd/internal/auth"
	"sipeta-bknd/internal/logger"

	"go.uber.org/zap"
)

type TokenVerifier interface {
	Verify(token string, kind auth.TokenKind) (*auth.Claims, error)
}

// VersionChecker reports whether a token version is still current for an
// operator. Bumping the stored version revokes every outstanding token.
type VersionChecker interface {
	CheckTokenVersion(ctx context.Context, operatorID string, version int) (bool, error)
}

type AuthMiddleware struct {
	verifier TokenVerifier
	versions VersionChecker
	logr     *logger.Logger
}

type contextKey string

const contextClaimsKey contextKey = "claims"

func NewAuthMiddleware(verifier TokenVerifier, versions VersionChecker, logr *logger.Logger) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier, versions: versions, logr: logr}
}

// ClaimsFrom returns the claims attached by JWTAuth, or nil.
func ClaimsFrom(ctx context.Context) *auth.Claims {
	c, _ := ctx.Value(contextClaimsKey).(*auth.Claims)
	return c
}

// JWTAuth validates the bearer access token and attaches its claims to the
// request context.
func (m *AuthMiddleware) JWTAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			deny(w, http.StatusUnauthorized, "missing authorization header")
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			deny(w, http.StatusUnauthorized, "invalid token format")
			return
		}

		claims, err := m.verifier.Verify(tokenString, auth.AccessToken)
		if err != nil {
			m.logr.Warn("token rejected", zap.Error(err))
			deny(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		if m.versions != nil {
			valid, err := m.versions.CheckTokenVersion(r.Context(), claims.Subject, claims.Version)
			if err != nil {
				m.logr.Error("failed checking token version", zap.Error(err), zap.String("operator_id", claims.Subject))
				deny(w, http.StatusInternalServerError, "internal server error")
				return
			}
			if !valid {
				m.logr.Warn("token version revoked", zap.String("operator_id", claims.Subject))
				deny(w, http.StatusUnauthorized, "token revoked or invalid")
				return
			}
		}

		ctx := context.WithValue(r.Context(), contextClaimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole lets the request through only when JWTAuth attached claims
// carrying role.
func (m *AuthMiddleware) RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFrom(r.Context())
			if !claims.HasRole(role) {
				subject := ""
				if claims != nil {
					subject = claims.Subject
				}
				m.logr.Warn("role required", zap.String("role", role), zap.String("operator_id", subject))
				deny(w, http.StatusForbidden, "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func deny(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   msg,
	})
}
