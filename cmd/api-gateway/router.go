package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/academic-repo-api/internal/handler"
	"github.com/noah-isme/academic-repo-api/internal/middleware"
	"github.com/noah-isme/academic-repo-api/internal/models"
	"github.com/noah-isme/academic-repo-api/internal/service"
	"github.com/noah-isme/academic-repo-api/pkg/config"
	"github.com/noah-isme/academic-repo-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/academic-repo-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/academic-repo-api/pkg/middleware/requestid"
)

type routerDeps struct {
	auth          *service.AuthService
	users         *service.UserService
	resources     *service.ResourceService
	comments      *service.CommentService
	bookmarks     *service.BookmarkService
	notifications *service.NotificationService
	dashboard     *service.DashboardService
	exports       *service.ExportService
	metrics       *service.MetricsService
	db            handler.Pinger
}

func newRouter(cfg *config.Config, logr *zap.Logger, deps routerDeps) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.MaxMultipartMemory = 8 << 20
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.metrics, "/metrics", "/health", "/ready"))
	r.Use(middleware.WithResponseMeta())

	metricsHandler := handler.NewMetricsHandler(deps.metrics, deps.db)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authHandler := handler.NewAuthHandler(deps.auth)
	userHandler := handler.NewUserHandler(deps.users)
	resourceHandler := handler.NewResourceHandler(deps.resources, deps.notifications, deps.exports)
	commentHandler := handler.NewCommentHandler(deps.comments)
	bookmarkHandler := handler.NewBookmarkHandler(deps.bookmarks)
	notificationHandler := handler.NewNotificationHandler(deps.notifications)
	dashboardHandler := handler.NewDashboardHandler(deps.dashboard)

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)

	// Preview links carry their own signed token.
	api.GET("/resources/:id/preview", resourceHandler.Preview)

	secured := api.Group("")
	secured.Use(middleware.JWT(deps.auth))

	secured.POST("/auth/logout", authHandler.Logout)
	secured.GET("/auth/me", authHandler.Me)
	secured.POST("/auth/change-password", authHandler.ChangePassword)
	secured.PUT("/profile", userHandler.UpdateProfile)

	adminOnly := middleware.RequireRoles(models.RoleAdmin)
	moderators := middleware.RequireRoles(models.RoleAdmin, models.RoleSupervisor)

	users := secured.Group("/users")
	users.GET("/supervisors", userHandler.Supervisors)
	users.GET("", adminOnly, userHandler.List)
	users.POST("", adminOnly, userHandler.Create)
	users.GET("/:id", middleware.RBAC(string(models.RoleAdmin), middleware.SelfAccess), userHandler.Get)
	users.PUT("/:id", adminOnly, userHandler.Update)
	users.DELETE("/:id", adminOnly, userHandler.Delete)

	resources := secured.Group("/resources")
	resources.GET("", resourceHandler.List)
	resources.POST("", resourceHandler.Upload)
	resources.GET("/export", adminOnly, resourceHandler.Export)
	resources.GET("/stats", moderators, resourceHandler.Stats)
	resources.GET("/:id", resourceHandler.Get)
	resources.PUT("/:id", resourceHandler.Update)
	resources.DELETE("/:id", resourceHandler.Delete)
	resources.PATCH("/:id/status", moderators, resourceHandler.SetStatus)
	resources.GET("/:id/download", resourceHandler.Download)
	resources.GET("/:id/preview-url", resourceHandler.PreviewURL)
	resources.GET("/:id/access-logs", resourceHandler.AccessLogs)
	resources.POST("/:id/notify-approval", adminOnly, resourceHandler.NotifyApproval)
	resources.GET("/:id/comments", commentHandler.List)
	resources.POST("/:id/comments", commentHandler.Create)
	resources.POST("/:id/bookmark", bookmarkHandler.Add)
	resources.DELETE("/:id/bookmark", bookmarkHandler.Remove)

	secured.PUT("/comments/:id", commentHandler.Update)
	secured.DELETE("/comments/:id", commentHandler.Delete)

	secured.GET("/bookmarks", bookmarkHandler.List)

	notifications := secured.Group("/notifications")
	notifications.GET("", notificationHandler.List)
	notifications.GET("/unread-count", notificationHandler.UnreadCount)
	notifications.PATCH("/read-all", notificationHandler.MarkAllRead)
	notifications.PATCH("/:id/read", notificationHandler.MarkRead)

	secured.GET("/dashboard", dashboardHandler.Get)
	secured.GET("/admin/metrics", adminOnly, metricsHandler.Summary)

	return r
}
