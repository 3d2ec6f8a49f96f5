package response

import (
	"github.com/gin-gonic/gin"
)

// Response 统一错误响应结构
// 正常代理路径直接透传上游字节，这里只服务于代理自身的拒绝/失败场景
type Response struct {
	Code int    `json:"code"` // 非 0 代表错误码
	Msg  string `json:"msg"`  // 提示信息
	Data any    `json:"data"` // 数据载荷
}

// Error 错误响应
func Error(c *gin.Context, httpStatus int, msg string) {
	c.JSON(httpStatus, Response{
		Code: -1,
		Msg:  msg,
		Data: nil,
	})
}

// ErrorWithDetail 带细节的错误响应，转发失败时把底层原因透出给客户端
func ErrorWithDetail(c *gin.Context, httpStatus int, msg, detail string) {
	c.JSON(httpStatus, Response{
		Code: -1,
		Msg:  msg,
		Data: gin.H{"detail": detail},
	})
}
