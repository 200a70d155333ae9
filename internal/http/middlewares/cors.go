package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

var (
	corsMethods = strings.Join([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions}, ",")
	corsHeaders = strings.Join([]string{"Authorization", "Content-Type", requestIDHeader}, ",")
	corsExposed = strings.Join([]string{"Retry-After", requestIDHeader}, ",")
)

// CORSMiddleware lets the admin frontend call the API with its session
// cookie. Origins must match exactly; others get no CORS headers and their
// preflights are rejected.
func CORSMiddleware(allowedOrigins []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		if origin = strings.TrimRight(strings.TrimSpace(origin), "/"); origin != "" {
			allowed[origin] = true
		}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		ok := origin != "" && allowed[origin]

		c.Writer.Header().Add("Vary", "Origin")
		if ok {
			h := c.Writer.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Expose-Headers", corsExposed)
		}

		if c.Request.Method != http.MethodOptions {
			c.Next()
			return
		}

		if !ok {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}

		c.Header("Access-Control-Allow-Methods", corsMethods)
		c.Header("Access-Control-Allow-Headers", corsHeaders)
		c.Header("Access-Control-Max-Age", "600")
		c.AbortWithStatus(http.StatusNoContent)
	}
}
