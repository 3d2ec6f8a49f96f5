package service

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/leon37/vartoolbox/internal/model"
)

// DiaryReader 按角色渲染日记本，目录结构 dailynote/<角色>/<年>/<月>/<日>[(序号)].txt
type DiaryReader struct {
	baseDir string
}

func NewDiaryReader(baseDir string) *DiaryReader {
	return &DiaryReader{baseDir: baseDir}
}

// Render 把一个角色的全部日记按时间升序拼成一个文本块
// 任何失败都落到哨兵文案上，绝不向上抛
func (r *DiaryReader) Render(character string) string {
	root := filepath.Join(r.baseDir, character)

	if info, err := os.Stat(root); err != nil {
		if os.IsNotExist(err) {
			return fmt.Sprintf("【%s日记本内容为空或不存在】", character)
		}
		slog.Error("访问日记目录失败", "character", character, "dir", root, "error", err)
		return fmt.Sprintf("【读取%s日记本失败，请检查服务器日志】", character)
	} else if !info.IsDir() {
		return fmt.Sprintf("【%s日记本内容为空或不存在】", character)
	}

	entries := collectEntries(character, root)
	if len(entries) == 0 {
		return fmt.Sprintf("【%s日记本内容为空或不存在】", character)
	}

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Year != b.Year {
			return a.Year < b.Year
		}
		if a.Month != b.Month {
			return a.Month < b.Month
		}
		if a.Day != b.Day {
			return a.Day < b.Day
		}
		return a.Sequence < b.Sequence
	})

	// 空白文件参与存在性判断但不进正文
	blocks := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Body == "" {
			continue
		}
		blocks = append(blocks, e.Body)
	}
	if len(blocks) == 0 {
		return fmt.Sprintf("【%s日记本内容为空，但文件存在】", character)
	}
	joined := strings.Join(blocks, "\n\n---\n\n")
	return fmt.Sprintf("【%s日记本内容如下】\n\n%s\n\n【%s日记本结束】", character, joined, character)
}

// collectEntries 递归收集角色目录下所有可解析的 txt 日记
// 单个文件读失败用行内错误标记占位，目录读失败只跳过该层
func collectEntries(character, root string) []model.DiaryEntry {
	var entries []model.DiaryEntry
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			slog.Warn("遍历日记目录时跳过", "path", path, "error", err)
			return nil
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), ".txt") {
			return nil
		}
		entry, ok := parseEntryPath(character, root, path)
		if !ok {
			return nil
		}
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			slog.Error("读取日记文件失败", "path", path, "error", readErr)
			entry.Body = fmt.Sprintf("[读取文件 %s 失败]", filepath.Base(path))
		} else if content := strings.TrimSpace(string(data)); content != "" {
			prefix := fmt.Sprintf("[%d/%d/%d]", entry.Year, entry.Month, entry.Day)
			if entry.Sequence > 0 {
				prefix = fmt.Sprintf("[%d/%d/%d(%d)]", entry.Year, entry.Month, entry.Day, entry.Sequence)
			}
			entry.Body = prefix + "\n" + content
		}
		entries = append(entries, entry)
		return nil
	})
	return entries
}

// parseEntryPath 从 <...>/<年>/<月>/<日>[(序号)].txt 中解出排序键
func parseEntryPath(character, root, path string) (model.DiaryEntry, bool) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return model.DiaryEntry{}, false
	}
	parts := strings.Split(rel, string(filepath.Separator))
	if len(parts) < 3 {
		return model.DiaryEntry{}, false
	}
	yearStr := parts[len(parts)-3]
	monthStr := parts[len(parts)-2]
	fileName := strings.TrimSuffix(parts[len(parts)-1], filepath.Ext(parts[len(parts)-1]))

	dayStr := fileName
	seq := 0
	if idx := strings.Index(fileName, "("); idx >= 0 && strings.HasSuffix(fileName, ")") {
		dayStr = fileName[:idx]
		seqStr := fileName[idx+1 : len(fileName)-1]
		n, convErr := strconv.Atoi(seqStr)
		if convErr != nil {
			return model.DiaryEntry{}, false
		}
		seq = n
	}

	year, errY := strconv.Atoi(yearStr)
	month, errM := strconv.Atoi(monthStr)
	day, errD := strconv.Atoi(dayStr)
	if errY != nil || errM != nil || errD != nil {
		return model.DiaryEntry{}, false
	}
	return model.DiaryEntry{
		Character: character,
		Year:      year,
		Month:     month,
		Day:       day,
		Sequence:  seq,
	}, true
}
