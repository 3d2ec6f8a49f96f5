package service

import (
	"regexp"
	"strings"
	"time"

	"github.com/leon37/vartoolbox/internal/config"
)

var (
	varTokenRegexp   = regexp.MustCompile(`\{\{(Var[A-Za-z0-9_]+)\}\}`)
	emojiTokenRegexp = regexp.MustCompile(`\{\{(.+?表情包)\}\}`)
	diaryTokenRegexp = regexp.MustCompile(`\{\{(.+?)日记本\}\}`)
)

var weekdayLabels = [...]string{"日", "一", "二", "三", "四", "五", "六"}

// FestivalSource 公历日期到农历文案，见 infrastructure/lunar
type FestivalSource interface {
	Festival(t time.Time) string
}

// WeatherSource 当前天气快照
type WeatherSource interface {
	Current() string
}

// MediaSource 表情包列表查询
type MediaSource interface {
	Lookup(name string) (string, bool)
}

// DiaryRenderer 角色日记本渲染
type DiaryRenderer interface {
	Render(character string) string
}

// Clock 可注入的时钟，测试时固定时间用
type Clock func() time.Time

// TemplateResolver 占位符替换引擎
// 替换按固定顺序分趟进行，每一趟读上一趟的输出，顺序即语义，不要调整
type TemplateResolver struct {
	vars         map[string]string
	promptRules  []config.Rule
	contextRules []config.Rule
	emojiPrompt  string
	imageKey     string

	festival FestivalSource
	weather  WeatherSource
	media    MediaSource
	diary    DiaryRenderer

	now Clock
	loc *time.Location
}

func NewTemplateResolver(
	cfg *config.Config,
	festival FestivalSource,
	weather WeatherSource,
	media MediaSource,
	diary DiaryRenderer,
	now Clock,
	loc *time.Location,
) *TemplateResolver {
	return &TemplateResolver{
		vars:         cfg.VarMap(),
		promptRules:  cfg.Rules.Prompt,
		contextRules: cfg.Rules.Context,
		emojiPrompt:  cfg.Template.EmojiPrompt,
		imageKey:     cfg.Server.ImageKey,
		festival:     festival,
		weather:      weather,
		media:        media,
		diary:        diary,
		now:          now,
		loc:          loc,
	}
}

// Resolve 展开文本里的全部占位符，总是返回一个字符串，从不报错
// 解析不到的占位符替换成说明性文案，不保留原样也不静默删除
func (r *TemplateResolver) Resolve(text string) string {
	if text == "" {
		return ""
	}
	now := r.now().In(r.loc)

	// 1. 日期 / 时间 / 星期
	out := strings.ReplaceAll(text, "{{Date}}", now.Format("2006/1/2"))
	out = strings.ReplaceAll(out, "{{Time}}", now.Format("15:04:05"))
	out = strings.ReplaceAll(out, "{{Today}}", weekdayLabels[now.Weekday()])

	// 2. 农历节日
	out = strings.ReplaceAll(out, "{{Festival}}", r.festival.Festival(now))

	// 3. 天气
	weather := r.weather.Current()
	if weather == "" {
		weather = "天气信息不可用"
	}
	out = strings.ReplaceAll(out, "{{WeatherInfo}}", weather)

	// 4. 通用 {{VarXxx}} 变量
	out = r.resolveVars(out)

	// 5. 动态 {{xx表情包}} 列表
	out = r.resolveEmojiLists(out)

	// 6. {{EmojiPrompt}} 合成提示
	out = r.resolveEmojiPrompt(out)

	// 7. {{角色名日记本}}
	out = r.resolveDiaries(out)

	// 8. 两趟转换规则：先系统提示词，再全局上下文
	for _, rule := range r.promptRules {
		out = strings.ReplaceAll(out, rule.Match, rule.Replace)
	}
	for _, rule := range r.contextRules {
		out = strings.ReplaceAll(out, rule.Match, rule.Replace)
	}

	// 9. 收尾：EmojiPrompt 模板可能带进来 {{Image_Key}}，不能流出到上游
	if r.imageKey != "" {
		out = strings.ReplaceAll(out, "{{Image_Key}}", r.imageKey)
	}
	return out
}

func (r *TemplateResolver) resolveVars(text string) string {
	matches := varTokenRegexp.FindAllStringSubmatch(text, -1)
	seen := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		name := m[1]
		if _, done := seen[name]; done {
			continue
		}
		seen[name] = struct{}{}
		value := r.vars[name]
		if value == "" {
			value = "未配置" + name
		}
		text = strings.ReplaceAll(text, m[0], value)
	}
	return text
}

// resolveEmojiLists 所有匹配先一次性收集再替换，
// 避免某个分类名是另一个占位符的子串时被二次展开
func (r *TemplateResolver) resolveEmojiLists(text string) string {
	matches := emojiTokenRegexp.FindAllStringSubmatch(text, -1)
	seen := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		name := m[1]
		if _, done := seen[name]; done {
			continue
		}
		seen[name] = struct{}{}
		list, ok := r.media.Lookup(name)
		if !ok || list == "" {
			list = name + "列表不可用"
		}
		text = strings.ReplaceAll(text, m[0], list)
	}
	return text
}

func (r *TemplateResolver) resolveEmojiPrompt(text string) string {
	if !strings.Contains(text, "{{EmojiPrompt}}") {
		return text
	}
	var finalPrompt string
	if r.emojiPrompt != "" {
		general, ok := r.media.Lookup("通用表情包")
		if !ok || general == "" {
			general = "通用表情包列表不可用"
		}
		finalPrompt = strings.ReplaceAll(r.emojiPrompt, "{{通用表情包}}", general)
		if r.imageKey != "" {
			finalPrompt = strings.ReplaceAll(finalPrompt, "{{Image_Key}}", r.imageKey)
		}
	}
	return strings.ReplaceAll(text, "{{EmojiPrompt}}", finalPrompt)
}

// resolveDiaries 每个角色只渲染一次，同名占位符全部替换成同一个内容块
func (r *TemplateResolver) resolveDiaries(text string) string {
	matches := diaryTokenRegexp.FindAllStringSubmatch(text, -1)
	seen := make(map[string]struct{}, len(matches))
	for _, m := range matches {
		character := m[1]
		if _, done := seen[character]; done {
			continue
		}
		seen[character] = struct{}{}
		text = strings.ReplaceAll(text, m[0], r.diary.Render(character))
	}
	return text
}
