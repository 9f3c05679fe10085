package httpapi

import (
	"net/http"
	"strings"
	"time"

	"example.com/sketch-mvp/internal/auth"
	"example.com/sketch-mvp/internal/logging"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const claimsKey = "claims"

// TokenVerifier checks an access token.
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// AuthMiddleware accepts "Authorization: Bearer <token>" or, for WebSocket
// upgrades where browsers cannot set headers, a ?token= query parameter.
func AuthMiddleware(v TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			token = c.Query("token")
		}
		if token == "" {
			writeError(c, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}

		claims, err := v.Verify(token)
		if err != nil {
			writeError(c, http.StatusUnauthorized, "unauthorized", "invalid token")
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

func bearerToken(h string) string {
	token, ok := strings.CutPrefix(h, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

// ClaimsFrom returns the claims AuthMiddleware stored on the request.
func ClaimsFrom(c *gin.Context) (*auth.Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*auth.Claims)
	return claims, ok && claims != nil
}

// RequestLogger puts log into every request context and logs one line per request.
func RequestLogger(log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Request = c.Request.WithContext(logging.WithLogger(c.Request.Context(), log))
		c.Next()

		status := c.Writer.Status()
		fields := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", status,
			"duration", time.Since(start),
		}
		if status >= http.StatusInternalServerError {
			log.Warnw("http request", fields...)
			return
		}
		log.Debugw("http request", fields...)
	}
}
