package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// BearerAuthMiddleware 校验回调方携带的共享 Bearer 凭证。
// 凭证必须通过 Authorization Header 传递，避免 query 泄露到日志。
func BearerAuthMiddleware(token string) gin.HandlerFunc {
	token = strings.TrimSpace(token)
	return func(c *gin.Context) {
		if token == "" {
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "callback token is not configured"})
			c.Abort()
			return
		}
		presented := strings.TrimSpace(strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer "))
		if presented == "" || subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "unauthorized"})
			c.Abort()
			return
		}
		c.Next()
	}
}
