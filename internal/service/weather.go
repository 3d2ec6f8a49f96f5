package service

import (
	"context"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/leon37/vartoolbox/internal/config"
)

// 天气模型的回答里要求带 [WeatherInfo:...] 标记，只取标记内的部分
var weatherMarkerRegexp = regexp.MustCompile(`(?s)\[WeatherInfo:(.*?)\]`)

// WeatherService 进程级天气快照：启动时从文件加载，每天定时整体覆盖刷新
type WeatherService struct {
	client   *openai.Client
	cfg      config.WeatherConfig
	city     string // 来自 VarCity，拼进提示词
	loc      *time.Location
	mu       sync.RWMutex
	snapshot string
}

func NewWeatherService(cfg config.WeatherConfig, upstream config.UpstreamConfig, city string, loc *time.Location) *WeatherService {
	clientCfg := openai.DefaultConfig(upstream.APIKey)
	clientCfg.BaseURL = strings.TrimRight(upstream.BaseURL, "/") + "/v1"
	return &WeatherService{
		client: openai.NewClientWithConfig(clientCfg),
		cfg:    cfg,
		city:   city,
		loc:    loc,
	}
}

// Current 当前快照，可能为空（模板层负责兜底文案）
func (w *WeatherService) Current() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.snapshot
}

// Load 启动初始化：文件存在就用缓存，不存在则立即获取一次
func (w *WeatherService) Load(ctx context.Context) {
	data, err := os.ReadFile(w.cfg.File)
	if err == nil {
		w.set(string(data))
		slog.Info("已加载缓存的天气信息", "file", w.cfg.File)
		return
	}
	if os.IsNotExist(err) {
		slog.Info("天气缓存文件不存在，首次获取天气信息", "file", w.cfg.File)
		w.Refresh(ctx)
		return
	}
	slog.Error("读取天气缓存文件失败", "file", w.cfg.File, "error", err)
	w.set("读取天气缓存失败")
}

// Refresh 调用天气模型刷新快照并落盘，失败时降级为固定文案，不返回错误
func (w *WeatherService) Refresh(ctx context.Context) {
	slog.Info("尝试获取最新的天气信息")
	if w.cfg.Model == "" || w.cfg.Prompt == "" {
		slog.Error("获取天气所需的配置不完整 (weather.model / weather.prompt / upstream)")
		w.set("天气服务配置不完整")
		return
	}

	now := time.Now().In(w.loc)
	prompt := strings.ReplaceAll(w.cfg.Prompt, "{{Date}}", now.Format("2006/1/2"))
	prompt = strings.ReplaceAll(prompt, "{{VarCity}}", w.cityOrDefault())

	req := openai.ChatCompletionRequest{
		Model: w.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	if w.cfg.MaxTokens > 0 {
		req.MaxTokens = w.cfg.MaxTokens
	}

	resp, err := w.client.CreateChatCompletion(ctx, req)
	if err != nil {
		slog.Error("获取或处理天气信息时出错", "error", err)
		w.set("获取天气信息时出错: " + err.Error())
		return
	}
	var content string
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
	}

	match := weatherMarkerRegexp.FindStringSubmatch(content)
	if match == nil {
		slog.Warn("未能从模型回复中提取 [WeatherInfo:...] 标记", "content", content)
		w.set("未能从API获取有效天气信息")
		return
	}

	info := strings.TrimSpace(match[1])
	w.set(info)
	slog.Info("天气信息已更新并缓存")
	if err := os.WriteFile(w.cfg.File, []byte(info), 0o644); err != nil {
		slog.Error("写入天气文件失败", "file", w.cfg.File, "error", err)
	}
}

func (w *WeatherService) cityOrDefault() string {
	if w.city == "" {
		return "默认城市"
	}
	return w.city
}

func (w *WeatherService) set(s string) {
	w.mu.Lock()
	w.snapshot = s
	w.mu.Unlock()
}
