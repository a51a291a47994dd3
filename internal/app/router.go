package app

import (
	"smartprep_backend/docs"
	"smartprep_backend/internal/config"
	"smartprep_backend/internal/middleware"
	"smartprep_backend/pkg/monitoring"
	"smartprep_backend/pkg/security"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
	}

	// 2. 需要身份令牌的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg.Auth.JWTSecret))
	{
		a.registerUserRoutes(authGroup, c)
		a.registerQuizRoutes(authGroup, c, cfg)
		a.registerResumeRoutes(authGroup, c)
	}
}

func (a *App) registerUserRoutes(rg *gin.RouterGroup, c *controllers) {
	rg.GET("/store-token", c.user.StoreToken)
	rg.POST("/users/sync", c.user.SyncUser)
	rg.GET("/users/me", c.user.Me)
	rg.POST("/users/points", c.user.AddPoints)
}

func (a *App) registerQuizRoutes(rg *gin.RouterGroup, c *controllers, cfg *config.Config) {
	quiz := rg.Group("/quiz")
	quiz.Use(a.newLimiter(cfg, security.ByUser).Middleware())
	{
		quiz.GET("/roles", c.quiz.GetRoles)
		quiz.GET("/progress", c.quiz.GetProgress)

		// 会话
		quiz.POST("/session", c.quiz.OpenSession)
		quiz.GET("/session", c.quiz.GetSession)
		quiz.DELETE("/session", c.quiz.CloseSession)
		quiz.PUT("/session/selection", c.quiz.Select)
		quiz.PUT("/session/answers", c.quiz.ChooseAnswer)
		quiz.POST("/session/submit", c.quiz.Submit)
		quiz.POST("/session/timer/:action", c.quiz.TimerAction)
	}
}

func (a *App) registerResumeRoutes(rg *gin.RouterGroup, c *controllers) {
	resume := rg.Group("/resume")
	{
		resume.POST("/questions", c.resume.GenerateQuestions)
		resume.POST("/review", c.resume.Review)
		resume.POST("/match", c.resume.Match)
	}
}
