package service

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// 日期行支持 2025.6.1 / 2025/6/1 / 2025-6-1 几种写法
var noteDateRegexp = regexp.MustCompile(`(\d{4})[./-](\d{1,2})[./-](\d{1,2})`)

// DiaryWriter 把模型回复里的结构化日记块落盘
// 写入是尽力而为的：任何缺字段、解析失败、IO 错误都只记日志
type DiaryWriter struct {
	baseDir string
}

func NewDiaryWriter(baseDir string) *DiaryWriter {
	return &DiaryWriter{baseDir: baseDir}
}

// Save 解析并保存一个日记块，格式：
//
//	Maid: 角色名
//	Date: 2025.6.1
//	Content: 正文（可以跨多行）
func (w *DiaryWriter) Save(noteBlock string) {
	maidName, dateString, content := parseNoteBlock(noteBlock)
	if maidName == "" || dateString == "" || content == "" {
		slog.Error("日记块缺少 Maid/Date/Content，放弃保存",
			"maid", maidName, "date", dateString, "hasContent", content != "")
		return
	}

	dateParts := noteDateRegexp.FindStringSubmatch(dateString)
	if dateParts == nil {
		slog.Error("无法解析日记日期", "date", dateString)
		return
	}
	year, month, day := dateParts[1], dateParts[2], dateParts[3]

	dirPath := filepath.Join(w.baseDir, maidName, year, month)
	if err := os.MkdirAll(dirPath, 0o755); err != nil {
		slog.Error("创建日记目录失败", "dir", dirPath, "error", err)
		return
	}

	// 同日多篇时追加 (1)、(2)... 逐个探测，绝不覆盖已有文件
	filePath := filepath.Join(dirPath, day+".txt")
	for counter := 1; ; counter++ {
		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			break
		} else if err != nil {
			slog.Error("检查日记文件存在性失败", "file", filePath, "error", err)
			return
		}
		filePath = filepath.Join(dirPath, fmt.Sprintf("%s(%d).txt", day, counter))
	}

	header := fmt.Sprintf("[%s/%s/%s] - %s\n", year, month, day, maidName)
	if err := os.WriteFile(filePath, []byte(header+content), 0o644); err != nil {
		slog.Error("写入日记文件失败", "file", filePath, "error", err)
		return
	}
	slog.Info("日记文件写入成功", "file", filePath)
}

// parseNoteBlock 逐行提取三个必填字段，Content: 之后的行都算正文
func parseNoteBlock(noteBlock string) (maidName, dateString, content string) {
	var contentLines []string
	inContent := false
	for _, line := range strings.Split(strings.TrimSpace(noteBlock), "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "Maid:"):
			maidName = strings.TrimSpace(strings.TrimPrefix(trimmed, "Maid:"))
			inContent = false
		case strings.HasPrefix(trimmed, "Date:"):
			dateString = strings.TrimSpace(strings.TrimPrefix(trimmed, "Date:"))
			inContent = false
		case strings.HasPrefix(trimmed, "Content:"):
			inContent = true
			if first := strings.TrimSpace(strings.TrimPrefix(trimmed, "Content:")); first != "" {
				contentLines = append(contentLines, first)
			}
		case inContent:
			contentLines = append(contentLines, line)
		}
	}
	content = strings.TrimSpace(strings.Join(contentLines, "\n"))
	return maidName, dateString, content
}
