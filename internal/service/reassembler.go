package service

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/leon37/vartoolbox/internal/model"
)

var dailyNoteRegexp = regexp.MustCompile(`(?s)<<<DailyNoteStart>>>(.*?)<<<DailyNoteEnd>>>`)

// ReassembleContent 从缓存下来的上游响应体里还原完整回复文本
// 先按 SSE 流逐行拼接，一个 data 片段都拼不出来再按单个 JSON 文档解析
// 两种方式都失败返回 false（此时客户端早已收到原始字节，放弃提取即可）
func ReassembleContent(body []byte) (string, bool) {
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")

	looksLikeSSE := false
	for _, line := range lines {
		if strings.HasPrefix(line, "data: ") {
			looksLikeSSE = true
			break
		}
	}

	if looksLikeSSE {
		var sb strings.Builder
		for _, line := range lines {
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			jsonData := strings.TrimSpace(line[len("data:"):])
			if jsonData == "[DONE]" {
				continue
			}
			var chunk model.StreamChunk
			if err := json.Unmarshal([]byte(jsonData), &chunk); err != nil {
				continue // 坏片段直接跳过
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			if delta := chunk.Choices[0].Delta.Content; delta != "" {
				sb.WriteString(delta)
			} else if full := chunk.Choices[0].Message.Content; full != "" {
				sb.WriteString(full)
			}
		}
		if sb.Len() > 0 {
			return sb.String(), true
		}
	}

	var parsed model.ChatResponse
	if err := json.Unmarshal(body, &parsed); err == nil &&
		len(parsed.Choices) > 0 && parsed.Choices[0].Message.Content != "" {
		return parsed.Choices[0].Message.Content, true
	}

	return "", false
}

// ExtractNote 在完整回复里找唯一的日记标记区，返回去掉首尾空白的内部内容
func ExtractNote(fullText string) (string, bool) {
	match := dailyNoteRegexp.FindStringSubmatch(fullText)
	if match == nil {
		return "", false
	}
	return strings.TrimSpace(match[1]), true
}
