package middleware

import (
	"net/http"
	"strings"

	"psblearn/models"
	"psblearn/services"

	"github.com/gin-gonic/gin"
)

// TokenParser resolves a bearer token to an identity.
type TokenParser interface {
	ParseToken(token string) (*services.Identity, error)
}

// AuthMiddleware verifies the bearer token and stores user_id and role in
// the gin context. The websocket handshake may pass the token as ?token=.
func AuthMiddleware(parser TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ""
		if h := c.GetHeader("Authorization"); strings.HasPrefix(h, "Bearer ") {
			token = strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
		} else if q := c.Query("token"); q != "" {
			token = q
		}
		if token == "" {
			c.Header("WWW-Authenticate", "Bearer")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token", "kind": "unauthenticated"})
			return
		}

		identity, err := parser.ParseToken(token)
		if err != nil {
			c.Header("WWW-Authenticate", "Bearer")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error(), "kind": "unauthenticated"})
			return
		}

		c.Set("user_id", identity.UserID)
		c.Set("role", identity.Role)
		c.Next()
	}
}

// RequireRole rejects callers whose role is not the given one.
func RequireRole(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		current, _ := c.Get("role")
		if r, ok := current.(models.Role); !ok || r != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": string(role) + " access required", "kind": "forbidden"})
			return
		}
		c.Next()
	}
}
