package middleware

import (
	"docindex-platform/internal/auth"
	"docindex-platform/utils"

	"github.com/gin-gonic/gin"
)

func RequireRole(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := GetRole(c)
		if role == "" {
			utils.RespondWithUnauthorized(c, "User role not found")
			c.Abort()
			return
		}

		for _, allowedRole := range allowedRoles {
			if role == allowedRole {
				c.Next()
				return
			}
		}

		utils.RespondWithForbidden(c, "Insufficient permissions", gin.H{
			"required_roles": allowedRoles,
			"user_role":      role,
		})
		c.Abort()
	}
}

// AdminGuard admits admins only.
func AdminGuard() gin.HandlerFunc {
	return RequireRole(auth.RoleAdmin)
}

// OperatorGuard admits operators and admins.
func OperatorGuard() gin.HandlerFunc {
	return RequireRole(auth.RoleOperator, auth.RoleAdmin)
}
