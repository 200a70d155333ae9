package middlewares

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/DannyIGuesss/el-frijolito-site/internal/authz"
	"github.com/DannyIGuesss/el-frijolito-site/internal/domain/user"
)

// RequireRole lets the request through when the caller's rank is at least
// required. Must run after RequireAuth.
func RequireRole(required user.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := IdentityFromContext(c)
		if !ok {
			abortError(c, http.StatusUnauthorized, "unauthorized", "Missing identity context")
			return
		}

		allowed, err := authz.Authorize(id.Role, required)
		if err != nil {
			if errors.Is(err, user.ErrUnknownRole) {
				abortError(c, http.StatusForbidden, "unknown_role", "Your account has an unrecognized role")
				return
			}
			abortError(c, http.StatusInternalServerError, "internal_error", "Authorization failed")
			return
		}
		if !allowed {
			abortError(c, http.StatusForbidden, "forbidden", string(required)+" role required")
			return
		}

		c.Next()
	}
}
