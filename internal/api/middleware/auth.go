package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// KeyAuth 校验客户端的 Bearer Key，代理没有用户体系，只有一把共享密钥
func KeyAuth(serverKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader != "Bearer "+serverKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}

// ImageKeyAuth 校验图片直链路径段，格式 /pw=<Image_Key>/images/...
func ImageKeyAuth(imageKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		segment := c.Param("access")
		if !strings.HasPrefix(segment, "pw=") {
			c.String(http.StatusBadRequest, "Bad Request: Invalid image access path format.")
			c.Abort()
			return
		}
		if strings.TrimPrefix(segment, "pw=") != imageKey {
			c.String(http.StatusUnauthorized, "Unauthorized: Invalid key for image access.")
			c.Abort()
			return
		}
		c.Next()
	}
}
