package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"mushroom-classifier/internal/pkg/jwtutil"
	"mushroom-classifier/internal/transport/http/response"
)

const (
	ContextUserIDKey   = "api_user_id"
	ContextUsernameKey = "api_username"
)

// BearerAuth guards the JSON API. The browser pages use the cookie
// session instead.
func BearerAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			response.Abort(c, http.StatusUnauthorized, response.CodeUnauthorized, "missing bearer token")
			return
		}

		claims, err := jwtutil.ParseToken(secret, token)
		if err != nil {
			response.Abort(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid or expired token")
			return
		}

		c.Set(ContextUserIDKey, claims.UserID)
		c.Set(ContextUsernameKey, claims.Username)
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// UserID returns the id set by BearerAuth.
func UserID(c *gin.Context) (uint, bool) {
	id := c.GetUint(ContextUserIDKey)
	return id, id != 0
}
