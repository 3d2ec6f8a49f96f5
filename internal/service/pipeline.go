package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leon37/vartoolbox/internal/model"
)

const multimodalBanner = "[检测到多模态数据，Var工具箱已自动提取图片信息，信息元如下——]"

// Pipeline 出站请求的改写流水线：先提取并转译图片，再展开占位符
// messages 以外的字段原封不动保留，消息内部也只动 content 字段
type Pipeline struct {
	resolver       *TemplateResolver
	captioner      *Captioner
	captionEnabled bool
}

func NewPipeline(resolver *TemplateResolver, captioner *Captioner, captionEnabled bool) *Pipeline {
	return &Pipeline{
		resolver:       resolver,
		captioner:      captioner,
		captionEnabled: captionEnabled,
	}
}

// outboundMessage 一条待改写的消息
// role 和 content 解开来处理，其余成员（tool_calls、tool_call_id 等）留在
// fields 里原样带回，代理不认识的字段不能丢
type outboundMessage struct {
	fields     map[string]json.RawMessage
	role       string
	content    model.MessageContent
	hasContent bool
}

func parseOutboundMessage(raw json.RawMessage) (*outboundMessage, error) {
	m := &outboundMessage{}
	if err := json.Unmarshal(raw, &m.fields); err != nil {
		return nil, err
	}
	if r, ok := m.fields["role"]; ok {
		if err := json.Unmarshal(r, &m.role); err != nil {
			return nil, err
		}
	}
	// content 缺失或为 null 的消息（工具调用就是这样）不做任何改写
	if r, ok := m.fields["content"]; ok && !bytes.Equal(bytes.TrimSpace(r), []byte("null")) {
		if err := json.Unmarshal(r, &m.content); err != nil {
			return nil, err
		}
		m.hasContent = true
	}
	return m, nil
}

func (m *outboundMessage) marshal() (json.RawMessage, error) {
	if m.hasContent {
		content, err := json.Marshal(m.content)
		if err != nil {
			return nil, err
		}
		m.fields["content"] = content
	}
	return json.Marshal(m.fields)
}

// Prepare 改写一份 /v1/chat/completions 请求体，返回发往上游的新字节
func (p *Pipeline) Prepare(ctx context.Context, body []byte) ([]byte, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("解析请求体失败: %w", err)
	}
	rawMessages, ok := envelope["messages"]
	if !ok {
		return body, nil
	}
	var rawList []json.RawMessage
	if err := json.Unmarshal(rawMessages, &rawList); err != nil {
		return nil, fmt.Errorf("解析 messages 失败: %w", err)
	}
	messages := make([]*outboundMessage, 0, len(rawList))
	for i, raw := range rawList {
		m, err := parseOutboundMessage(raw)
		if err != nil {
			return nil, fmt.Errorf("解析第 %d 条消息失败: %w", i, err)
		}
		messages = append(messages, m)
	}

	if p.captionEnabled {
		p.captionImages(ctx, messages)
	} else {
		slog.Info("图片转译缓存已禁用，图片原样透传")
	}

	for _, m := range messages {
		if !m.hasContent {
			continue
		}
		if m.content.IsParts {
			for j := range m.content.Parts {
				if m.content.Parts[j].Type == "text" {
					m.content.Parts[j].Text = p.resolver.Resolve(m.content.Parts[j].Text)
				}
			}
		} else {
			m.content.Text = p.resolver.Resolve(m.content.Text)
		}
	}

	out := make([]json.RawMessage, len(messages))
	for i, m := range messages {
		raw, err := m.marshal()
		if err != nil {
			return nil, fmt.Errorf("序列化第 %d 条消息失败: %w", i, err)
		}
		out[i] = raw
	}
	newMessages, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("序列化 messages 失败: %w", err)
	}
	envelope["messages"] = newMessages
	return json.Marshal(envelope)
}

// captionImages 把 user 消息里的 data URI 图片段换成转译文案
// 标号计数器贯穿整个请求，跨消息也保持原始顺序
func (p *Pipeline) captionImages(ctx context.Context, messages []*outboundMessage) {
	imageIndex := 0
	for _, msg := range messages {
		if msg.role != "user" || !msg.hasContent || !msg.content.IsParts {
			continue
		}

		var imageURIs []string
		var rest []model.ContentPart
		for _, part := range msg.content.Parts {
			if part.Type == "image_url" && part.ImageURL != nil && strings.HasPrefix(part.ImageURL.URL, "data:image") {
				imageURIs = append(imageURIs, part.ImageURL.URL)
			} else {
				rest = append(rest, part)
			}
		}
		if len(imageURIs) == 0 {
			continue
		}

		captions := p.captioner.CaptionBatch(ctx, imageURIs, imageIndex)
		imageIndex += len(imageURIs)
		slog.Info("图片转译完成", "count", len(captions))

		// 文案并入第一个文本段，没有就补一个放最前面
		textIdx := -1
		for j := range rest {
			if rest[j].Type == "text" {
				textIdx = j
				break
			}
		}
		if textIdx == -1 {
			rest = append([]model.ContentPart{{Type: "text"}}, rest...)
			textIdx = 0
		}
		text := strings.TrimSpace(rest[textIdx].Text)
		if text != "" {
			text += "\n"
		}
		rest[textIdx].Text = text + multimodalBanner + "\n" + strings.Join(captions, "\n")
		msg.content = model.NewPartsContent(rest)
	}
}
