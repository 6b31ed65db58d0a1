package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type AdminMiddleware struct {
	admins map[string]struct{}
}

func NewAdminMiddleware(adminUsers []string) *AdminMiddleware {
	admins := make(map[string]struct{}, len(adminUsers))
	for _, name := range adminUsers {
		admins[name] = struct{}{}
	}
	return &AdminMiddleware{admins: admins}
}

func (m *AdminMiddleware) IsAdmin(username string) bool {
	_, ok := m.admins[username]
	return ok
}

// RequireAdmin must run after RequireAuth.
func (m *AdminMiddleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		username := GetUsername(c)
		if username == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			c.Abort()
			return
		}

		if !m.IsAdmin(username) {
			c.JSON(http.StatusForbidden, gin.H{"error": "admin access required"})
			c.Abort()
			return
		}

		c.Next()
	}
}
