package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"

	"github.com/leon37/vartoolbox/internal/api"
	"github.com/leon37/vartoolbox/internal/api/controller"
	"github.com/leon37/vartoolbox/internal/config"
	"github.com/leon37/vartoolbox/internal/infrastructure/llm"
	"github.com/leon37/vartoolbox/internal/infrastructure/lunar"
	"github.com/leon37/vartoolbox/internal/service"
)

func main() {
	// 1. 初始化 Logger，JSON 格式方便采集
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
		Level:     slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	slog.Info("Var工具箱中间层启动中...")

	conf, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("无法加载配置: %v", err)
	}
	slog.Info("配置加载成功", "upstream", conf.Upstream.BaseURL)

	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		log.Fatalf("加载时区失败: %v", err)
	}

	// 2. Infra Initialization
	upstream := llm.NewUpstreamClient(conf.Upstream.BaseURL, conf.Upstream.APIKey)
	festival := lunar.NewAdapter()

	// 3. 进程级缓存：表情包列表、图片转译缓存、天气快照
	media := service.NewMediaCache(conf.Image.Dir, ".")
	media.Init()

	captionStore := service.NewCaptionStore(conf.Image.CacheFile)
	captionStore.Load()

	vars := conf.VarMap()
	weather := service.NewWeatherService(conf.Weather, conf.Upstream, vars["VarCity"], loc)
	weather.Load(context.Background())

	// 每天凌晨 4 点整体刷新天气快照
	scheduler := cron.New()
	if _, err := scheduler.AddFunc("0 4 * * *", func() {
		weather.Refresh(context.Background())
	}); err != nil {
		log.Fatalf("注册天气刷新任务失败: %v", err)
	}
	scheduler.Start()
	slog.Info("已安排每天凌晨4点自动更新天气信息")

	// 4. Layer Wiring (依赖注入)
	diaryReader := service.NewDiaryReader(conf.Diary.Dir)
	diaryWriter := service.NewDiaryWriter(conf.Diary.Dir)
	resolver := service.NewTemplateResolver(conf, festival, weather, media, diaryReader, time.Now, loc)
	captioner := service.NewCaptioner(captionStore, upstream, conf.Image)
	pipeline := service.NewPipeline(resolver, captioner, conf.Image.CacheEnabled)
	chatController := controller.NewChatController(pipeline, upstream, diaryWriter)

	// 5. Server Start
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	api.RegisterRoutes(r, conf.Server.Key, conf.Server.ImageKey, conf.Image.Dir, chatController)

	slog.Info("中间层服务器启动中", "port", conf.Server.Port)
	if err := r.Run(conf.Server.Port); err != nil {
		slog.Error("服务器启动失败", "error", err)
	}
}
