package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/leon37/vartoolbox/internal/api/controller"
	"github.com/leon37/vartoolbox/internal/api/middleware"
)

// RegisterRoutes 注册所有路由
// 图片直链走独立的路径密码，其余路由统一 Bearer Key 鉴权
func RegisterRoutes(r *gin.Engine, serverKey, imageKey, imageDir string, chatCtrl *controller.ChatController) {
	r.Use(middleware.Cors(), middleware.RequestLog())

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// 受保护的静态图片服务，访问格式 /pw=YOUR_IMAGE_KEY/images/...
	r.GET("/:access/images/*filepath", middleware.ImageKeyAuth(imageKey), func(c *gin.Context) {
		c.FileFromFS(c.Param("filepath"), http.Dir(imageDir))
	})

	protected := r.Group("/", middleware.KeyAuth(serverKey))
	{
		protected.POST("/v1/chat/completions", chatCtrl.Proxy)
	}
}
