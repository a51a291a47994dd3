package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"smartprep_backend/internal/config"
	"smartprep_backend/internal/controller"
	"smartprep_backend/internal/repository"
	"smartprep_backend/internal/service"
	"smartprep_backend/pkg/database"
	"smartprep_backend/pkg/logger"
	"smartprep_backend/pkg/monitoring"
	"smartprep_backend/pkg/security"
	"smartprep_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	services        *services
	tracer          *sdktrace.TracerProvider
	limiters        []*security.Limiter
	configCallbacks []func(*config.Config)
}

type repositories struct {
	question *repository.QuestionRepository
	progress service.ProgressBackend
}

type services struct {
	credentials *service.CredentialService
	progress    *service.ProgressService
	sessions    *service.QuizSessionManager
	storage     *service.StorageService
	generator   *service.GeminiGenerator
	resume      *service.ResumeService
}

type controllers struct {
	quiz   *controller.QuizController
	resume *controller.ResumeController
	user   *controller.UserController
	health *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

// ApplyConfig 配置热加载时依次调用已注册的回调
func (a *App) ApplyConfig(cfg *config.Config) {
	for _, cb := range a.configCallbacks {
		cb(cfg)
	}
}

func (a *App) initRepositories(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *repositories {
	repos := &repositories{
		question: repository.NewQuestionRepository(db),
	}
	if cfg.Store.Backend == "database" {
		repos.progress = repository.NewProgressRepository(db)
	} else {
		repos.progress = repository.NewProgressRedisRepository(rdb)
	}
	return repos
}

func (a *App) initServices(repos *repositories, cfg *config.Config) *services {
	s := &services{}

	s.credentials = service.NewCredentialService(cfg.Store)
	store := service.NewProgressStoreAdapter(repos.progress, s.credentials)
	source := service.NewQuestionSourceAdapter(repos.question)

	s.progress = service.NewProgressService(store, s.credentials)
	s.sessions = service.NewQuizSessionManager(source, store, s.credentials, cfg.Quiz.SessionIdle)

	s.storage = service.NewStorageService(&cfg.Storage)

	generator, err := service.NewGeminiGenerator(context.Background(), cfg.AI)
	if err != nil {
		logger.Log.Error("Failed to initialize question generator", zap.Error(err))
	}
	s.generator = generator

	var textGen service.TextGenerator
	if generator != nil {
		textGen = generator
	}
	var matcher service.RoleMatcher
	if m := service.NewHTTPRoleMatcher(cfg.Matcher); m != nil {
		matcher = m
	}
	s.resume = service.NewResumeService(resumeArchive(cfg.Storage, s.storage), service.NewQuestionGenerationService(textGen), matcher)

	return s
}

// resumeArchive 默认不保留简历原件，开启 storage.archive_uploads 后才归档
func resumeArchive(cfg config.StorageConfig, storage *service.StorageService) *service.StorageService {
	if !cfg.ArchiveUploads {
		return nil
	}
	return storage
}

func (a *App) initControllers(s *services) *controllers {
	return &controllers{
		quiz:   controller.NewQuizController(s.sessions, s.progress),
		resume: controller.NewResumeController(s.resume),
		user:   controller.NewUserController(s.credentials, s.progress),
		health: controller.NewHealthController(a.DB, a.Redis),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	router.Use(a.newLimiter(cfg, security.ByClientIP).Middleware())

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func (a *App) newLimiter(cfg *config.Config, key security.KeyFunc) *security.Limiter {
	window := time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute
	l := security.NewLimiter(cfg.RateLimit.MaxRequests, window, key)
	a.limiters = append(a.limiters, l)
	return l
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg.Server.Mode, cfg.Log)

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database, cfg.Server.Mode)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	if cfg.MigrateOnly || cfg.Server.Mode != "release" {
		if err := database.Migrate(db); err != nil {
			logger.Log.Fatal("Failed to migrate database", zap.Error(err))
		}
	}

	app := &App{
		Config: cfg,
		DB:     db,
	}
	if cfg.MigrateOnly {
		return app
	}

	if cfg.Store.Backend == "redis" {
		rdb, err := database.InitRedis(&cfg.Redis)
		if err != nil {
			logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
			log.Fatalf("Failed to initialize redis: %v", err)
		}
		app.Redis = rdb
	}

	repos := app.initRepositories(db, app.Redis, cfg)
	services := app.initServices(repos, cfg)
	app.services = services
	controllers := app.initControllers(services)

	// 监控初始化
	monitoring.Init()

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("smartprep", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracer = tp
	}

	app.registerRoutes(router, controllers, cfg)

	app.RegisterConfigCallback(func(newCfg *config.Config) {
		logger.SetMode(newCfg.Server.Mode)
		logger.Log.Info("Log level updated", zap.String("mode", newCfg.Server.Mode))
	})

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	bgCtx, stopBackground := context.WithCancel(context.Background())
	var background sync.WaitGroup
	background.Add(1 + len(a.limiters))
	go func() {
		defer background.Done()
		a.services.sessions.Run(bgCtx)
	}()
	for _, l := range a.limiters {
		go func(l *security.Limiter) {
			defer background.Done()
			l.Run(bgCtx)
		}(l)
	}

	// 启动服务器
	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("listen failed", zap.Error(err))
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}

	// 停止会话回收、限流清理并关闭全部计时器
	stopBackground()
	background.Wait()

	if err := a.services.generator.Close(); err != nil {
		logger.Log.Warn("Failed to close generator client", zap.Error(err))
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}

	logger.Log.Info("Server exiting")
}
