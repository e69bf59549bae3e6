package middleware

import (
	"clicksprout/internal/auth"
	"clicksprout/internal/logger"
	"clicksprout/utils"

	"github.com/gin-gonic/gin"
)

const (
	claimsKey   = "claims"
	operatorKey = "operator"
)

type AuthMiddleware struct {
	issuer *auth.Issuer
}

func NewAuthMiddleware(issuer *auth.Issuer) *AuthMiddleware {
	return &AuthMiddleware{issuer: issuer}
}

// RequireOperator rejects requests without a valid operator token. When no
// signing secret is configured every request passes.
func (a *AuthMiddleware) RequireOperator() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.issuer.Enabled() {
			c.Next()
			return
		}

		tokenString := auth.ExtractTokenFromHeader(c.GetHeader("Authorization"))
		if tokenString == "" {
			if cookie, err := c.Cookie("access_token"); err == nil {
				tokenString = cookie
			}
		}
		if tokenString == "" {
			utils.RespondWithUnauthorized(c, "Authentication token is required")
			return
		}

		claims, err := a.issuer.Validate(c.Request.Context(), tokenString)
		if err != nil {
			logger.Warn("Rejected operator token", "path", c.FullPath(), "error", err, "request_id", GetRequestID(c))
			utils.RespondWithUnauthorized(c, "Invalid or expired token")
			return
		}

		c.Set(claimsKey, claims)
		c.Set(operatorKey, claims.Username)
		c.Next()
	}
}

// GetOperator returns the authenticated operator, or "" when auth is off
func GetOperator(c *gin.Context) string {
	return c.GetString(operatorKey)
}

// GetClaims returns the validated token claims when present
func GetClaims(c *gin.Context) *auth.Claims {
	if v, ok := c.Get(claimsKey); ok {
		if claims, ok := v.(*auth.Claims); ok {
			return claims
		}
	}
	return nil
}
