package app

import (
	"smart_exam_backend/docs"
	"smart_exam_backend/internal/config"
	"smart_exam_backend/internal/middleware"
	"smart_exam_backend/internal/model"

	"smart_exam_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, repos *repositories, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 公共路由（无需登录）
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)
	}

	// 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg), middleware.ActivityMiddleware(repos.user))
	{
		authGroup.GET("/profile", c.auth.GetProfile)

		exams := authGroup.Group("/exams")
		{
			exams.GET("", c.exam.List)
			exams.GET("/usage", c.exam.Usage)
			exams.GET("/usage/logs", c.exam.UsageLogs)
			exams.GET("/:id", c.exam.Get)
			exams.DELETE("/:id", c.exam.Delete)

			// 出题与发布属于教师操作
			teacherOnly := exams.Group("")
			teacherOnly.Use(middleware.RoleMiddleware(model.Teacher, model.Admin))
			{
				teacherOnly.POST("/generate", c.exam.Generate)
				teacherOnly.POST("/:id/publish", c.exam.Publish)
			}
		}
	}
}
