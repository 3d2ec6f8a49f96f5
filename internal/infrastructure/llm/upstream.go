package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/leon37/vartoolbox/internal/model"
)

// UpstreamClient 对接 OpenAI 兼容的上游接口
// 代理转发必须逐字节透传上游响应，图片转译又要带 extra_body，
// 所以这里直接基于 net/http，不经过 SDK 的二次封装
type UpstreamClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewUpstreamClient(baseURL, apiKey string) *UpstreamClient {
	return &UpstreamClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{}, // 不额外设超时，流式响应按传输层默认
	}
}

// Complete 发起一次非流式补全，返回 choices[0].message.content
func (c *UpstreamClient) Complete(ctx context.Context, payload model.ChatRequest) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("序列化请求失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("上游调用失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("上游返回 %d: %s", resp.StatusCode, string(errBody))
	}

	var parsed model.ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("解析上游响应失败: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("上游返回错误: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("上游响应中没有 choices")
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

// Forward 原样转发一个已经改写好的请求体，响应由调用方负责流式读取和关闭
// userAgent / accept 为空时不透传对应头
func (c *UpstreamClient) Forward(ctx context.Context, body []byte, userAgent, accept string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	return c.client.Do(req)
}
