package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/RenukaPawar658/marketplace/internal/auth"
	"github.com/RenukaPawar658/marketplace/internal/models"
)

// ContextKeyIdentity holds the key for the caller's ledger identity in Gin context.
const ContextKeyIdentity = "identity"

// AuthMiddleware creates a Gin middleware for JWT authentication.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header format must be Bearer {token}"})
			return
		}

		claims, err := auth.ValidateJWT(parts[1], jwtSecret)
		if err != nil {
			errMsg := fmt.Sprintf("Invalid or expired token: %v", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errMsg})
			return
		}

		c.Set(ContextKeyIdentity, models.NewAddress(claims.Identity).String())
		c.Next()
	}
}

// CallerIdentity returns the identity set by AuthMiddleware.
func CallerIdentity(c *gin.Context) (models.Address, bool) {
	v := c.GetString(ContextKeyIdentity)
	if v == "" {
		return "", false
	}
	return models.Address(v), true
}
