package middleware

import (
	"strings"

	"github.com/chachabrian/clearinghouse-backend/internal/models"
	"github.com/chachabrian/clearinghouse-backend/pkg/utils"
	"github.com/gin-gonic/gin"
)

const (
	UserIDKey     = "userId"
	ProviderIDKey = "providerId"
	RoleKey       = "role"
)

func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var tokenString string

		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				tokenString = parts[1]
			}
		}

		if tokenString == "" {
			abortUnauthorized(c, "Authorization header required")
			return
		}

		claims, err := utils.ValidateToken(tokenString, secret)
		if err != nil {
			abortUnauthorized(c, "Invalid token")
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(ProviderIDKey, claims.ProviderID)
		c.Set(RoleKey, claims.Role)
		c.Next()
	}
}

// RequireWriter rejects mutations from read-only users.
func RequireWriter() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(RoleKey) == string(models.UserRoleReadOnly) {
			abortUnauthorized(c, "Read-only users cannot modify records")
			return
		}
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(401, gin.H{
		"request_id": c.GetString(RequestIDKey),
		"error": gin.H{
			"code":    "unauthorized",
			"message": message,
		},
	})
}
