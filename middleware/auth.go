package middleware

import (
	"context"

	"docindex-platform/internal/auth"
	"docindex-platform/utils"

	"github.com/gin-gonic/gin"
)

// TokenValidator checks a bearer token; *auth.TokenService implements it.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (*auth.Claims, error)
}

type AuthMiddleware struct {
	tokens TokenValidator
}

func NewAuthMiddleware(tokens TokenValidator) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

func (a *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := utils.ExtractTokenFromHeader(c.GetHeader("Authorization"))
		if tokenString == "" {
			utils.RespondWithUnauthorized(c, "Authentication token is required")
			c.Abort()
			return
		}

		claims, err := a.tokens.Validate(c.Request.Context(), tokenString)
		if err != nil {
			utils.RespondWithError(c, 401, "invalid_token", "Token is invalid, expired or revoked", nil)
			c.Abort()
			return
		}

		// Store user info in context
		c.Set("user_id", claims.UserID)
		c.Set("role", claims.Role)
		c.Set("claims", claims)

		c.Next()
	}
}

// Helper function to get user ID from context
func GetUserID(c *gin.Context) string {
	return c.GetString("user_id")
}

// Helper function to get role from context
func GetRole(c *gin.Context) string {
	return c.GetString("role")
}

func GetClaims(c *gin.Context) *auth.Claims {
	if v, ok := c.Get("claims"); ok {
		if cl, ok := v.(*auth.Claims); ok {
			return cl
		}
	}
	return nil
}
