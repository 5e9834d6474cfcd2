package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sj-versent/demo-aws-summit-2025/internal/auth"
)

const operatorContextKey = "operator"

func OperatorFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(operatorContextKey)
	if !ok {
		return "", false
	}
	op, ok := v.(string)
	return op, ok && op != ""
}

// RequireToken checks the bearer token when cfg has a secret; with no secret
// configured every request passes.
func RequireToken(cfg auth.TokenConfig) gin.HandlerFunc {
	if !cfg.Enabled() {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
			return
		}

		claims, err := auth.VerifyToken(strings.TrimSpace(parts[1]), cfg)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authentication token"})
			return
		}

		c.Set(operatorContextKey, claims.Operator)
		c.Next()
	}
}
