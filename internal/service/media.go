package service

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

var imageFileRegexp = regexp.MustCompile(`(?i)\.(jpg|jpeg|png|gif)$`)

// MediaCache 表情包列表缓存：启动时整体扫描构建，运行期只读
// 每个以 "表情包" 结尾的子目录算一个分类，列表同时落盘到 <名字>.txt
type MediaCache struct {
	imageDir string
	listDir  string // 列表文件输出目录
	mu       sync.RWMutex
	lists    map[string][]string
}

func NewMediaCache(imageDir, listDir string) *MediaCache {
	return &MediaCache{
		imageDir: imageDir,
		listDir:  listDir,
		lists:    make(map[string][]string),
	}
}

// Init 全量重建缓存，单个分类失败不影响其他分类
func (m *MediaCache) Init() {
	slog.Info("开始初始化表情包列表", "dir", m.imageDir)
	entries, err := os.ReadDir(m.imageDir)
	if err != nil {
		slog.Error("读取 image 目录失败", "dir", m.imageDir, "error", err)
		return
	}

	count := 0
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasSuffix(entry.Name(), "表情包") {
			continue
		}
		name := entry.Name()
		list := m.refreshList(name, filepath.Join(m.imageDir, name), filepath.Join(m.listDir, name+".txt"))
		m.mu.Lock()
		m.lists[name] = list
		m.mu.Unlock()
		count++
	}
	if count == 0 {
		slog.Warn("未找到任何以 '表情包' 结尾的目录", "dir", m.imageDir)
	} else {
		slog.Info("表情包列表初始化完成", "count", count)
	}
}

// Lookup 按分类名取管道符拼接的文件名列表
func (m *MediaCache) Lookup(name string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list, ok := m.lists[name]
	if !ok {
		return "", false
	}
	return strings.Join(list, "|"), true
}

// refreshList 重新生成一个分类的列表并写入列表文件
// 目录读不到时把错误信息写进文件，再尝试回退到上一次写入的旧列表
func (m *MediaCache) refreshList(name, dirPath, filePath string) []string {
	files, err := os.ReadDir(dirPath)
	if err != nil {
		var msg string
		if os.IsNotExist(err) {
			msg = fmt.Sprintf("%s 目录 %s 不存在，无法生成列表。", name, dirPath)
		} else {
			msg = fmt.Sprintf("更新 %s 列表时出错: %v", name, err)
		}
		slog.Error("更新表情包列表失败", "name", name, "error", err)

		// 上一次写入的列表还在就先留一份，回退用
		old, readErr := os.ReadFile(filePath)
		if writeErr := os.WriteFile(filePath, []byte(msg), 0o644); writeErr != nil {
			slog.Error("写入表情包列表文件失败", "file", filePath, "error", writeErr)
		}
		if readErr == nil && len(old) > 0 && string(old) != msg {
			slog.Info("已回退到旧的表情包列表", "name", name)
			return strings.Split(string(old), "|")
		}
		return []string{msg}
	}

	var names []string
	for _, f := range files {
		if !f.IsDir() && imageFileRegexp.MatchString(f.Name()) {
			names = append(names, f.Name())
		}
	}
	if err := os.WriteFile(filePath, []byte(strings.Join(names, "|")), 0o644); err != nil {
		slog.Error("写入表情包列表文件失败", "file", filePath, "error", err)
	} else {
		slog.Info("表情包列表已更新", "name", name, "count", len(names))
	}
	return names
}
