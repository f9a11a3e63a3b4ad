package app

import (
	"scorm_lms_backend/docs"
	"scorm_lms_backend/internal/config"
	"scorm_lms_backend/internal/middleware"
	"scorm_lms_backend/internal/model"
	"scorm_lms_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, repos *repositories, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)
	}

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg), middleware.ActivityMiddleware(repos.user))
	{
		authGroup.GET("/me", c.auth.Me)
		authGroup.PUT("/me", c.auth.UpdateProfile)

		// 课程与进度
		authGroup.GET("/courses", c.course.List)
		authGroup.GET("/courses/:id", c.course.Get)
		authGroup.GET("/courses/:id/progress", c.course.Progress)
		authGroup.GET("/progress", c.course.ProgressList)

		// 课件包
		authGroup.GET("/courses/:id/packages", c.pkg.ListByCourse)
		authGroup.GET("/packages/:id", c.pkg.Get)
		authGroup.POST("/packages/:id/launch", c.pkg.Launch)

		// Attempt 查询
		authGroup.GET("/attempts", c.attempt.List)
		authGroup.GET("/attempts/:id", c.attempt.Get)

		// SCORM RTE：课件播放器的运行时通道
		rte := authGroup.Group("/scorm/:attemptId")
		{
			rte.POST("/initialize", c.runtime.Initialize)
			rte.GET("/value", c.runtime.GetValue)
			rte.POST("/value", c.runtime.SetValue)
			rte.POST("/commit", c.runtime.Commit)
			rte.POST("/terminate", c.runtime.Terminate)
			rte.GET("/last-error", c.runtime.LastError)
			rte.GET("/error-string", c.runtime.ErrorText)
			rte.GET("/diagnostic", c.runtime.Diagnostic)
		}

		// 教师接口
		teacherGroup := authGroup.Group("/")
		teacherGroup.Use(middleware.RoleMiddleware(model.Teacher))
		{
			teacherGroup.POST("/courses", c.course.Create)
			teacherGroup.POST("/courses/:id/packages", c.pkg.Upload)
		}
	}

	// 3. 管理员接口
	adminGroup := router.Group("/api/admin")
	adminGroup.Use(middleware.AuthMiddleware(cfg), middleware.RoleMiddleware(model.Admin))
	{
		adminGroup.PUT("/packages/:id/launch-url", c.pkg.UpdateLaunchURL)
		adminGroup.POST("/attempts/:id/repair", c.attempt.Repair)
		adminGroup.POST("/inference/run", c.attempt.RunInference)
	}
}
