package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/AnTengye/auctionhub/backend/config"
	"github.com/AnTengye/auctionhub/backend/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// RoleAdmin may import and withdraw listings; RoleViewer only browses them.
const (
	RoleAdmin  = "admin"
	RoleViewer = "viewer"
)

// Claims represents the JWT claims
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// GenerateToken generates a new JWT token for an operator
func GenerateToken(username, role string, cfg *config.AuthConfig) (string, time.Time, error) {
	expiresAt := time.Now().Add(time.Duration(cfg.TokenExpireHours) * time.Hour)

	claims := Claims{
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Subject:   username,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		return "", time.Time{}, err
	}

	return tokenString, expiresAt, nil
}

// AuthMiddleware validates the bearer token and stores the operator in context
func AuthMiddleware(cfg *config.AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			return
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
			return []byte(cfg.JWTSecret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set("username", claims.Username)
		c.Set("role", claims.Role)

		// Import logs carry the operator
		ctx := context.WithValue(c.Request.Context(), logger.UsernameKey, claims.Username)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// RequireRole rejects operators whose role is not in roles. It must run after
// AuthMiddleware.
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := GetRole(c)
		for _, allowed := range roles {
			if role == allowed {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
	}
}

// GetUsername gets the username from context
func GetUsername(c *gin.Context) string {
	return c.GetString("username")
}

// GetRole gets the operator role from context
func GetRole(c *gin.Context) string {
	return c.GetString("role")
}
