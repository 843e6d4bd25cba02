package middleware

import (
	"net/http"
	"strings"

	"veiled-verse/internal/auth"

	"github.com/gin-gonic/gin"
)

const principalKey = "principal"

// AuthMiddleware requires a valid bearer token and stores the caller's
// principal on the context.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || token == "" {
			// websocket clients cannot set headers from the browser
			token = c.Query("token")
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
			return
		}

		principal, err := auth.ParseToken(token, jwtSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		c.Set(principalKey, principal)
		c.Next()
	}
}

func GetPrincipal(c *gin.Context) (*auth.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil, false
	}
	p, ok := v.(*auth.Principal)
	return p, ok && p != nil
}

func GetUserID(c *gin.Context) (string, bool) {
	p, ok := GetPrincipal(c)
	if !ok {
		return "", false
	}
	return p.UserID(), true
}
