package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Upstream UpstreamConfig `mapstructure:"upstream"`
	Image    ImageConfig    `mapstructure:"image"`
	Weather  WeatherConfig  `mapstructure:"weather"`
	Template TemplateConfig `mapstructure:"template"`
	Diary    DiaryConfig    `mapstructure:"diary"`
	Vars     []Var          `mapstructure:"vars"`
	Rules    RulesConfig    `mapstructure:"rules"`
}

type ServerConfig struct {
	Port     string `mapstructure:"port"`
	Key      string `mapstructure:"key"`       // 客户端访问本代理的 Bearer Key
	ImageKey string `mapstructure:"image_key"` // 图片直链访问密码 (pw=xxx)
}

type UpstreamConfig struct {
	BaseURL string `mapstructure:"base_url"` // 不含 /v1 后缀
	APIKey  string `mapstructure:"api_key"`
}

type ImageConfig struct {
	Model          string `mapstructure:"model"`
	Prompt         string `mapstructure:"prompt"`
	MaxTokens      int    `mapstructure:"max_tokens"`
	ThinkingBudget int    `mapstructure:"thinking_budget"`
	CacheEnabled   bool   `mapstructure:"cache_enabled"`
	Concurrency    int    `mapstructure:"concurrency"` // 单批并发上限
	Dir            string `mapstructure:"dir"`         // 表情包根目录
	CacheFile      string `mapstructure:"cache_file"`  // 转译缓存文档，只增不删
}

type WeatherConfig struct {
	Model     string `mapstructure:"model"`
	Prompt    string `mapstructure:"prompt"` // 模板，可含 {{Date}} {{VarCity}}
	MaxTokens int    `mapstructure:"max_tokens"`
	File      string `mapstructure:"file"`
}

type TemplateConfig struct {
	EmojiPrompt string `mapstructure:"emoji_prompt"` // {{EmojiPrompt}} 的合成模板
}

type DiaryConfig struct {
	Dir string `mapstructure:"dir"`
}

// Var 占位符变量，名字需带 Var 前缀，文本中以 {{VarXxx}} 引用
type Var struct {
	Name  string `mapstructure:"name"`
	Value string `mapstructure:"value"`
}

// Rule 一条字面替换规则，按声明顺序逐条作用于已替换过的文本
type Rule struct {
	Match   string `mapstructure:"match"`
	Replace string `mapstructure:"replace"`
}

type RulesConfig struct {
	Prompt  []Rule `mapstructure:"prompt"`  // 系统提示词转换
	Context []Rule `mapstructure:"context"` // 全局上下文转换
}

// LoadConfig 读取配置文件
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	// 支持环境变量覆盖 (例如在 Docker 中设置 VARTOOLBOX_UPSTREAM_API_KEY)
	viper.SetEnvPrefix("VARTOOLBOX")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// 行为开关和目录都有默认值，配置文件里可以只写密钥和模型
	viper.SetDefault("server.port", ":8000")
	viper.SetDefault("image.cache_enabled", true)
	viper.SetDefault("image.concurrency", 1)
	viper.SetDefault("image.max_tokens", 1024)
	viper.SetDefault("image.dir", "image")
	viper.SetDefault("image.cache_file", "imagebase64.json")
	viper.SetDefault("weather.file", "Weather.txt")
	viper.SetDefault("diary.dir", "dailynote")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	cfg.Rules.Prompt = validRules("系统提示词", cfg.Rules.Prompt)
	cfg.Rules.Context = validRules("全局上下文", cfg.Rules.Context)
	return &cfg, nil
}

// validRules 剔除 match 为空的规则，规则在加载期校验一次，运行期不再检查
func validRules(kind string, rules []Rule) []Rule {
	out := rules[:0]
	for i, r := range rules {
		if r.Match == "" {
			slog.Warn("忽略无效转换规则", "kind", kind, "index", i)
			continue
		}
		slog.Info("加载转换规则", "kind", kind, "match", r.Match, "replace", r.Replace)
		out = append(out, r)
	}
	return out
}

// VarMap 把变量列表转成查找表，启动时构建一次
func (c *Config) VarMap() map[string]string {
	m := make(map[string]string, len(c.Vars))
	for _, v := range c.Vars {
		if v.Name != "" {
			m[v.Name] = v.Value
		}
	}
	return m
}
