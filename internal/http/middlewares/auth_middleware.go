package middlewares

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/DannyIGuesss/el-frijolito-site/internal/actorctx"
	"github.com/DannyIGuesss/el-frijolito-site/internal/auth"
	"github.com/DannyIGuesss/el-frijolito-site/internal/domain/user"
)

// Keep this small interface so tests can fake it easily.
type SessionVerifier interface {
	VerifySession(token string) (*auth.Claims, error)
}

type AuthMiddleware struct {
	sessions   SessionVerifier
	revoked    auth.Revocations
	cookieName string
	log        *slog.Logger
}

func NewAuthMiddleware(sessions SessionVerifier, revoked auth.Revocations, cookieName string, log *slog.Logger) *AuthMiddleware {
	if log == nil {
		log = slog.Default()
	}
	return &AuthMiddleware{
		sessions:   sessions,
		revoked:    revoked,
		cookieName: cookieName,
		log:        log,
	}
}

// SessionToken returns the raw token from the session cookie, falling back
// to an Authorization: Bearer header.
func (m *AuthMiddleware) SessionToken(c *gin.Context) string {
	if m.cookieName != "" {
		if v, err := c.Cookie(m.cookieName); err == nil && v != "" {
			return v
		}
	}

	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := m.SessionToken(c)
		if raw == "" {
			abortError(c, http.StatusUnauthorized, "unauthorized", "Sign in required")
			return
		}

		claims, err := m.sessions.VerifySession(raw)
		if err != nil {
			if errors.Is(err, auth.ErrExpiredToken) {
				abortError(c, http.StatusUnauthorized, "session_expired", "Session expired, sign in again")
				return
			}
			abortError(c, http.StatusUnauthorized, "unauthorized", "Invalid session")
			return
		}

		if m.revoked != nil {
			revoked, err := m.revoked.IsRevoked(c.Request.Context(), claims.ID)
			if err != nil {
				m.log.ErrorContext(c.Request.Context(), "revocation lookup failed", "err", err)
				abortError(c, http.StatusServiceUnavailable, "auth_unavailable", "Authentication is temporarily unavailable")
				return
			}
			if revoked {
				abortError(c, http.StatusUnauthorized, "session_revoked", "Session ended, sign in again")
				return
			}
		}

		id := claims.Identity()
		c.Set(CtxIdentity, id)
		c.Set(CtxClaims, claims)
		c.Request = c.Request.WithContext(actorctx.WithIdentity(c.Request.Context(), id))

		c.Next()
	}
}

// Helpers so handlers don't need to know the keys.

func IdentityFromContext(c *gin.Context) (user.Identity, bool) {
	v, ok := c.Get(CtxIdentity)
	if !ok {
		return user.Identity{}, false
	}
	id, ok := v.(user.Identity)
	return id, ok && id.ID != ""
}

func ClaimsFromContext(c *gin.Context) (*auth.Claims, bool) {
	v, ok := c.Get(CtxClaims)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*auth.Claims)
	return claims, ok && claims != nil
}
