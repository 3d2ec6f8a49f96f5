package model

import (
	"bytes"
	"encoding/json"
)

// ChatRequest 上游 /v1/chat/completions 的请求体（代理自己发起的调用使用）
// 代理转发客户端请求时不走这个结构，而是原样透传字节
type ChatRequest struct {
	Model     string        `json:"model"`
	Messages  []ChatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
	ExtraBody *ExtraBody    `json:"extra_body,omitempty"`
}

// ExtraBody OpenAI 兼容接口的扩展字段（Gemini 系模型的思考预算走这里）
type ExtraBody struct {
	ThinkingConfig *ThinkingConfig `json:"thinking_config,omitempty"`
}

type ThinkingConfig struct {
	ThinkingBudget int `json:"thinking_budget"`
}

// ChatMessage 单条消息，content 可能是纯字符串，也可能是多模态分段数组
type ChatMessage struct {
	Role    string         `json:"role"`
	Content MessageContent `json:"content"`
	Name    string         `json:"name,omitempty"`
}

// MessageContent 兼容 string / []ContentPart 两种形态的 content 字段
type MessageContent struct {
	Text    string
	Parts   []ContentPart
	IsParts bool
}

// ContentPart 多模态消息分段
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL string `json:"url"`
}

// NewTextContent 构造纯文本 content
func NewTextContent(text string) MessageContent {
	return MessageContent{Text: text}
}

// NewPartsContent 构造分段 content
func NewPartsContent(parts []ContentPart) MessageContent {
	return MessageContent{Parts: parts, IsParts: true}
}

func (m *MessageContent) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		// content 为 null 的消息按空字符串处理
		*m = MessageContent{}
		return nil
	}
	if trimmed[0] == '[' {
		var parts []ContentPart
		if err := json.Unmarshal(trimmed, &parts); err != nil {
			return err
		}
		*m = MessageContent{Parts: parts, IsParts: true}
		return nil
	}
	var text string
	if err := json.Unmarshal(trimmed, &text); err != nil {
		return err
	}
	*m = MessageContent{Text: text}
	return nil
}

func (m MessageContent) MarshalJSON() ([]byte, error) {
	if m.IsParts {
		return json.Marshal(m.Parts)
	}
	return json.Marshal(m.Text)
}

// ChatResponse 非流式响应，只取我们关心的字段
type ChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// StreamChunk SSE 流中的单个 JSON 片段
// 有的网关在流里也会塞完整的 message，所以 delta 和 message 都要看
type StreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}
