package controller

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/leon37/vartoolbox/internal/api/response"
	"github.com/leon37/vartoolbox/internal/service"
)

// 这些响应头不透传，由本地传输层自己决定
var skipHeaders = map[string]struct{}{
	"content-encoding":  {},
	"transfer-encoding": {},
	"connection":        {},
	"content-length":    {},
	"keep-alive":        {},
}

// Forwarder 上游转发能力，见 infrastructure/llm
type Forwarder interface {
	Forward(ctx context.Context, body []byte, userAgent, accept string) (*http.Response, error)
}

type ChatController struct {
	pipeline *service.Pipeline
	upstream Forwarder
	diary    *service.DiaryWriter
}

// NewChatController 构造函数
func NewChatController(pipeline *service.Pipeline, upstream Forwarder, diary *service.DiaryWriter) *ChatController {
	return &ChatController{
		pipeline: pipeline,
		upstream: upstream,
		diary:    diary,
	}
}

// Proxy 代理 /v1/chat/completions
// 流程：改写请求 -> 转发上游 -> 逐块透传给客户端同时本地缓存一份 ->
// 响应结束后在后台提取日记块落盘，后处理永远不拖慢也不破坏透传
func (ctrl *ChatController) Proxy(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "读取请求体失败")
		return
	}

	outBody, err := ctrl.pipeline.Prepare(c.Request.Context(), body)
	if err != nil {
		slog.Error("处理请求时出错", "error", err)
		response.ErrorWithDetail(c, http.StatusInternalServerError, "Internal Server Error", err.Error())
		return
	}

	// 上游调用不跟随客户端断连取消，超时全靠传输层默认
	resp, err := ctrl.upstream.Forward(context.Background(), outBody,
		c.GetHeader("User-Agent"), c.GetHeader("Accept"))
	if err != nil {
		slog.Error("转发上游失败", "error", err)
		response.ErrorWithDetail(c, http.StatusInternalServerError, "Internal Server Error", err.Error())
		return
	}
	defer resp.Body.Close()

	for name, values := range resp.Header {
		if _, skip := skipHeaders[strings.ToLower(name)]; skip {
			continue
		}
		for _, v := range values {
			c.Writer.Header().Add(name, v)
		}
	}
	c.Status(resp.StatusCode)

	// 一边透传一边缓存，两边看到完全相同的字节序列
	var cached bytes.Buffer
	clientGone := false
	buf := make([]byte, 32*1024)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			chunk := buf[:n]
			cached.Write(chunk)
			if !clientGone {
				if _, writeErr := c.Writer.Write(chunk); writeErr != nil {
					// 客户端不要了，上游继续读完，日记提取照常
					slog.Warn("写客户端失败，停止透传", "error", writeErr)
					clientGone = true
				} else {
					c.Writer.Flush()
				}
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			slog.Error("上游响应流错误", "error", readErr)
			if !c.Writer.Written() {
				c.Data(http.StatusInternalServerError, "text/plain", []byte("API response stream error"))
			}
			return
		}
	}

	raw := cached.Bytes()
	go ctrl.inspectResponse(raw)
}

// inspectResponse 响应已完整送达客户端之后的后处理，任何失败只记日志
func (ctrl *ChatController) inspectResponse(raw []byte) {
	fullText, ok := service.ReassembleContent(raw)
	if !ok {
		slog.Warn("未能从响应中还原出回复文本，跳过日记标记检查")
		return
	}
	note, found := service.ExtractNote(fullText)
	if !found {
		slog.Info("未找到结构化日记标记")
		return
	}
	slog.Info("找到结构化日记标记，准备处理")
	ctrl.diary.Save(note)
}
