package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"rentora_backend/internal/auth"
	"rentora_backend/internal/logger"
	"rentora_backend/internal/models"
)

const (
	userIDKey = "userID"
	roleKey   = "role"
)

// AuthMiddleware - middleware проверки JWT
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header missing or invalid"})
			return
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		claims, err := auth.ParseToken(secret, tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		// Сохраняем claims в контекст
		c.Set(userIDKey, claims.UserID)
		c.Set(roleKey, claims.Role)
		c.Request = c.Request.WithContext(logger.WithUserID(c.Request.Context(), claims.UserID))
		c.Next()
	}
}

// RequirePermission - middleware ограничения по разрешениям роли
func RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := GetRole(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Access denied: no role"})
			return
		}

		if !auth.HasPermission(role, permission) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Access denied: insufficient permissions"})
			return
		}

		c.Next()
	}
}

// GetUserID извлекает ID пользователя из контекста
func GetUserID(c *gin.Context) string {
	userID, exists := c.Get(userIDKey)
	if !exists {
		return ""
	}

	id, ok := userID.(string)
	if !ok {
		return ""
	}

	return id
}

func GetRole(c *gin.Context) (models.UserRole, bool) {
	roleVal, exists := c.Get(roleKey)
	if !exists {
		return "", false
	}
	role, ok := roleVal.(models.UserRole)
	return role, ok
}
