package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	_ "github.com/taskboard-dev/taskboard/docs"
	"github.com/taskboard-dev/taskboard/internal/config"
	"github.com/taskboard-dev/taskboard/internal/middleware"
	"github.com/taskboard-dev/taskboard/internal/modules/handler"
	"github.com/taskboard-dev/taskboard/internal/modules/serializer"
	"github.com/taskboard-dev/taskboard/internal/modules/service"
	"github.com/taskboard-dev/taskboard/internal/pkg/tokens"
)

type RouterDeps struct {
	Config         *config.Config
	Log            *zap.Logger
	Tokens         *tokens.Manager
	Revoked        service.TokenRevoker
	AuthHandler    *handler.AuthHandler
	UserHandler    *handler.UserHandler
	ProjectHandler *handler.ProjectHandler
	TaskHandler    *handler.TaskHandler
}

func NewRouter(d RouterDeps) *gin.Engine {
	// Initialize logger for serializer package
	serializer.SetLogger(d.Log)

	r := gin.New()
	r.Use(gin.Recovery())

	// Add OpenTelemetry middleware if enabled (using configuration system)
	if d.Config.Telemetry.Enabled && d.Config.Telemetry.OtlpEndpoint != "" {
		r.Use(middleware.OtelTracing(d.Config.App.Name))
		// Add trace ID to response header
		r.Use(middleware.TraceID())
	}

	r.Use(middleware.ZapLogger(d.Log))

	// health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, serializer.Msg("ok")) })

	// swagger
	r.GET("/swagger", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
	})
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := r.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/register", d.AuthHandler.Register)
			auth.POST("/login", d.AuthHandler.Login)
			auth.POST("/refresh", d.AuthHandler.Refresh)
		}

		protected := v1.Group("")
		protected.Use(middleware.Auth(d.Tokens, d.Revoked, d.Log))
		{
			protected.GET("/auth/me", d.AuthHandler.Me)
			protected.POST("/auth/logout", d.AuthHandler.Logout)

			users := protected.Group("/users")
			{
				users.GET("", d.UserHandler.ListUsers)
				users.GET("/:user_id", d.UserHandler.GetUser)
				users.PUT("/:user_id", d.UserHandler.UpdateUser)
				users.DELETE("/:user_id", d.UserHandler.DeactivateUser)
			}

			projects := protected.Group("/projects")
			{
				projects.GET("", d.ProjectHandler.ListProjects)
				projects.POST("", d.ProjectHandler.CreateProject)
				projects.GET("/:project_id", d.ProjectHandler.GetProject)
				projects.PUT("/:project_id", d.ProjectHandler.UpdateProject)
				projects.DELETE("/:project_id", d.ProjectHandler.DeleteProject)

				projects.POST("/:project_id/members", d.ProjectHandler.AddMember)
				projects.DELETE("/:project_id/members/:user_id", d.ProjectHandler.RemoveMember)
			}

			tasks := protected.Group("/tasks")
			{
				tasks.GET("", d.TaskHandler.ListTasks)
				tasks.POST("", d.TaskHandler.CreateTask)
				tasks.GET("/:task_id", d.TaskHandler.GetTask)
				tasks.PUT("/:task_id", d.TaskHandler.UpdateTask)
				tasks.DELETE("/:task_id", d.TaskHandler.DeleteTask)

				tasks.PUT("/:task_id/position", d.TaskHandler.ReorderTask)

				tasks.POST("/:task_id/comments", d.TaskHandler.AddComment)

				tasks.POST("/:task_id/attachments", d.TaskHandler.AddAttachment)
				tasks.GET("/:task_id/attachments/:attachment_id", d.TaskHandler.GetAttachment)
			}
		}
	}
	return r
}
