package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/h4ks-com/crop-notifier/internal/auth"
)

type AuthMiddleware struct {
	issuer   *auth.TokenIssuer
	testMode bool
}

func NewAuthMiddleware(issuer *auth.TokenIssuer, testMode bool) *AuthMiddleware {
	return &AuthMiddleware{
		issuer:   issuer,
		testMode: testMode,
	}
}

func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.testMode {
			username := c.GetHeader("X-Test-Username")
			if username == "" {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "X-Test-Username header required in test mode"})
				c.Abort()
				return
			}
			c.Set("username", username)
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			c.Abort()
			return
		}

		claims, err := m.issuer.Validate(parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			c.Abort()
			return
		}

		c.Set("username", claims.Username)
		c.Next()
	}
}

func GetUsername(c *gin.Context) string {
	username, exists := c.Get("username")
	if !exists {
		return ""
	}
	return username.(string)
}
