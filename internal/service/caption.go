package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/leon37/vartoolbox/internal/config"
	"github.com/leon37/vartoolbox/internal/model"
)

const (
	captionMaxRetries = 3
	captionRetryDelay = 500 * time.Millisecond
	// 低于这个长度视为模型在敷衍，重试
	captionMinRunes = 50
)

var (
	base64PrefixRegexp = regexp.MustCompile(`^data:image/[^;]+;base64,`)
	// JSON 里不能裸放的控制字符，入缓存前剥掉
	controlCharRegexp = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F]`)
)

// CompletionClient 图片转译用到的上游能力
type CompletionClient interface {
	Complete(ctx context.Context, payload model.ChatRequest) (string, error)
}

// CaptionStore 图片转译缓存，键是去掉 MIME 前缀的 base64 载荷
// 只增不删，每次插入后整体写回文件（无界增长是已接受的取舍）
type CaptionStore struct {
	path    string
	mu      sync.Mutex
	entries map[string]model.CaptionRecord
}

func NewCaptionStore(path string) *CaptionStore {
	return &CaptionStore{
		path:    path,
		entries: make(map[string]model.CaptionRecord),
	}
}

// Load 启动时加载缓存文件，不存在就建一个空的
func (s *CaptionStore) Load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Info("图片缓存文件不存在，创建新缓存", "file", s.path)
			s.persistLocked()
			return
		}
		slog.Error("读取图片缓存文件失败", "file", s.path, "error", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := json.Unmarshal(data, &s.entries); err != nil {
		slog.Error("解析图片缓存文件失败", "file", s.path, "error", err)
		s.entries = make(map[string]model.CaptionRecord)
		return
	}
	slog.Info("图片缓存加载完成", "file", s.path, "count", len(s.entries))
}

// Get 命中时返回存储的描述
func (s *CaptionStore) Get(key string) (model.CaptionRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.entries[key]
	return rec, ok
}

// Put 写入一条记录并立刻落盘（写透）
func (s *CaptionStore) Put(key string, rec model.CaptionRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = rec
	s.persistLocked()
}

func (s *CaptionStore) persistLocked() {
	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		slog.Error("序列化图片缓存失败", "error", err)
		return
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		slog.Error("保存图片缓存失败", "file", s.path, "error", err)
	}
}

// Captioner 图片转译：缓存优先，未命中走多模态模型，带重试
type Captioner struct {
	store *CaptionStore
	llm   CompletionClient
	cfg   config.ImageConfig
}

func NewCaptioner(store *CaptionStore, llm CompletionClient, cfg config.ImageConfig) *Captioner {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	return &Captioner{store: store, llm: llm, cfg: cfg}
}

// CaptionBatch 按配置的并发上限分组转译，组内全并行，组间串行
// 编号按原始顺序从 startIndex 起递增，与完成顺序无关
func (c *Captioner) CaptionBatch(ctx context.Context, dataURIs []string, startIndex int) []string {
	results := make([]string, len(dataURIs))
	limit := c.cfg.Concurrency
	slog.Info("准备转译图片", "count", len(dataURIs), "concurrency", limit)

	for offset := 0; offset < len(dataURIs); offset += limit {
		end := offset + limit
		if end > len(dataURIs) {
			end = len(dataURIs)
		}
		g, gctx := errgroup.WithContext(ctx)
		for i := offset; i < end; i++ {
			i := i
			g.Go(func() error {
				results[i] = c.Caption(gctx, dataURIs[i], startIndex+i)
				return nil
			})
		}
		_ = g.Wait() // Caption 从不返回错误，失败体现在文案里
	}
	return results
}

// Caption 转译单张图片，index 是图片在请求里的 0 起位置，标号展示为 IMAGE<index+1>
// 永远返回 [IMAGE<n>Info: ...] 形式的文本，转译失败不会中断外层请求
func (c *Captioner) Caption(ctx context.Context, dataURI string, index int) string {
	label := index + 1
	prefix := base64PrefixRegexp.FindString(dataURI)
	payload := dataURI
	if prefix != "" {
		payload = strings.TrimPrefix(dataURI, prefix)
	} else {
		prefix = "data:image/jpeg;base64,"
	}

	if rec, ok := c.store.Get(payload); ok {
		slog.Info("图片缓存命中", "image", label, "id", rec.ID)
		return fmt.Sprintf("[IMAGE%dInfo: %s]", label, rec.Description)
	}

	if c.cfg.Model == "" || c.cfg.Prompt == "" {
		slog.Error("图片转译所需的配置不完整 (image.model / image.prompt / upstream)")
		return fmt.Sprintf("[IMAGE%dInfo: 图片转译服务配置不完整]", label)
	}

	var lastErr error
	for attempt := 1; attempt <= captionMaxRetries; attempt++ {
		slog.Info("开始转译图片", "image", label, "attempt", attempt)
		description, err := c.translateOnce(ctx, prefix, payload)
		if err == nil {
			cleaned := controlCharRegexp.ReplaceAllString(description, "")
			if len(cleaned) != len(description) {
				slog.Warn("清理了描述中的控制字符", "image", label,
					"before", len(description), "after", len(cleaned))
			}
			rec := model.CaptionRecord{
				ID:          uuid.NewString(),
				Description: cleaned,
				Timestamp:   time.Now().Format(time.RFC3339),
			}
			c.store.Put(payload, rec)
			slog.Info("图片转译成功", "image", label, "attempt", attempt, "len", utf8.RuneCountInString(cleaned))
			return fmt.Sprintf("[IMAGE%dInfo: %s]", label, cleaned)
		}

		lastErr = err
		slog.Warn("图片转译尝试失败", "image", label, "attempt", attempt, "error", err)
		if attempt < captionMaxRetries {
			select {
			case <-time.After(captionRetryDelay):
			case <-ctx.Done():
				lastErr = ctx.Err()
				attempt = captionMaxRetries // 请求已取消，不再重试
			}
		}
	}

	slog.Error("图片转译最终失败", "image", label, "attempts", captionMaxRetries, "error", lastErr)
	return fmt.Sprintf("[IMAGE%dInfo: 图片转译在 %d 次尝试后失败: %s]", label, captionMaxRetries, truncate(lastErr.Error(), 150))
}

// translateOnce 单次上游调用，描述为空或太短都算失败
func (c *Captioner) translateOnce(ctx context.Context, prefix, payload string) (string, error) {
	req := model.ChatRequest{
		Model: c.cfg.Model,
		Messages: []model.ChatMessage{
			{
				Role: "user",
				Content: model.NewPartsContent([]model.ContentPart{
					{Type: "text", Text: c.cfg.Prompt},
					{Type: "image_url", ImageURL: &model.ImageURL{URL: prefix + payload}},
				}),
			},
		},
		MaxTokens: c.cfg.MaxTokens,
	}
	if c.cfg.ThinkingBudget > 0 {
		req.ExtraBody = &model.ExtraBody{
			ThinkingConfig: &model.ThinkingConfig{ThinkingBudget: c.cfg.ThinkingBudget},
		}
	}

	description, err := c.llm.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return "", fmt.Errorf("转译结果中未找到描述")
	}
	if n := utf8.RuneCountInString(description); n < captionMinRunes {
		return "", fmt.Errorf("描述过短 (长度: %d, 少于%d字符)", n, captionMinRunes)
	}
	return description, nil
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
