package httpserver

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"projectflow/internal/handler"
	"projectflow/pkg/rbac"
)

// MaxUploadBytes CSV 上传的内存上限
const MaxUploadBytes = 8 << 20

type Handlers struct {
	Auth         *handler.AuthHandler
	Project      *handler.ProjectHandler
	Task         *handler.TaskHandler
	Alert        *handler.AlertHandler
	AI           *handler.AIHandler
	CSV          *handler.CSVHandler
	Notification *handler.NotificationHandler
	Admin        *handler.AdminHandler
}

func NewRouter(h Handlers, auth AuthConfig, logger *zap.Logger, db Pinger, publisher ConnChecker) *gin.Engine {
	r := gin.New()
	r.MaxMultipartMemory = MaxUploadBytes
	r.Use(gin.Recovery(), TraceMiddleware(), RequestLogger(logger), RouteGuard(auth.Secret))

	registerProbes(r, db, publisher)

	// Public
	r.POST("/auth/register", h.Auth.Register)
	r.POST("/auth/login", h.Auth.Login)
	r.POST("/auth/logout", h.Auth.Logout)

	// Protected
	api := r.Group("/")
	api.Use(AuthMiddleware(auth, logger))
	{
		api.GET("/me", h.Auth.Me)
		api.PUT("/me/preferences", h.Auth.UpdatePreference)

		api.GET("/projects", h.Project.List)
		api.POST("/projects", RequirePermission(rbac.PermissionCreateProject, logger), h.Project.Create)
		api.GET("/projects/:id", h.Project.Get)
		api.PUT("/projects/:id", h.Project.Update)
		api.DELETE("/projects/:id", h.Project.Delete)
		api.POST("/projects/:id/team", h.Project.AddMember)
		api.DELETE("/projects/:id/team/:userId", h.Project.RemoveMember)
		api.GET("/projects/:id/config", h.Project.GetConfig)
		api.PUT("/projects/:id/config", h.Project.UpdateConfig)
		api.GET("/projects/:id/kpis", h.Project.KPIs)
		api.PUT("/projects/:id/kpis", h.Project.UpdateKPIs)
		api.GET("/projects/:id/alerts", h.Alert.Evaluate)

		api.GET("/projects/:id/tasks", h.Task.List)
		api.POST("/projects/:id/tasks", h.Task.Create)
		api.PUT("/projects/:id/tasks/order", h.Task.Reorder)
		api.GET("/projects/:id/tasks/export", h.CSV.Export)
		api.POST("/projects/:id/tasks/import/preview", h.CSV.Preview)
		api.POST("/projects/:id/tasks/import", h.CSV.Import)

		api.GET("/tasks/:id", h.Task.Get)
		api.PUT("/tasks/:id", h.Task.Update)
		api.DELETE("/tasks/:id", h.Task.Delete)
		api.GET("/tasks/:id/history", h.Task.History)
		api.POST("/tasks/:id/attachments", h.Task.AddAttachment)
		api.DELETE("/tasks/:id/attachments/:attachmentId", h.Task.RemoveAttachment)
		api.PUT("/tasks/:id/custom-fields", h.Task.SetCustomFields)

		ai := api.Group("/", RequirePermission(rbac.PermissionUseAI, logger))
		ai.POST("/projects/:id/ai/status-summary", h.AI.SummarizeStatus)
		ai.POST("/projects/:id/ai/risks", h.AI.PredictRisks)
		ai.POST("/projects/:id/ai/lessons-learned", h.AI.LessonsLearned)
		ai.POST("/projects/:id/ai/critical-path", h.AI.CriticalPath)
		ai.POST("/ai/portfolio-summary", h.AI.Portfolio)

		api.GET("/notifications", h.Notification.List)
		api.GET("/notifications/stream", h.Notification.Stream)
		api.POST("/notifications/read-all", h.Notification.MarkAllRead)
		api.POST("/notifications/:id/read", h.Notification.MarkRead)

		users := api.Group("/admin/users", RequirePermission(rbac.PermissionAdminUsers, logger))
		users.GET("", h.Auth.ListUsers)
		users.PUT("/:id", h.Auth.UpdateUser)

		outbox := api.Group("/admin/outbox", RequirePermission(rbac.PermissionAdminOutbox, logger))
		outbox.GET("/failed", h.Admin.ListFailedEvents)
		outbox.POST("/replay-failed", h.Admin.ReplayFailedEvents)
		outbox.POST("/:id/replay", h.Admin.ReplayOutboxEvent)
	}

	return r
}
