package router

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/monocle-dev/taskhub/internal/handlers"
	"github.com/monocle-dev/taskhub/internal/middleware"
	"github.com/monocle-dev/taskhub/internal/response"
	"github.com/monocle-dev/taskhub/internal/types"
)

type Deps struct {
	Handler       *handlers.Handler
	Authenticator *middleware.Authenticator
	Gate          *middleware.ProjectGate

	// UploadDir is served at UploadPrefix when attachments live on local disk.
	UploadDir    string
	UploadPrefix string
}

var (
	anyMember    = []types.Role{types.RoleProjectAdmin, types.RoleMember}
	projectAdmin = []types.Role{types.RoleProjectAdmin}
)

func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestLogger(), response.Recovery())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     types.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept", "X-Requested-With", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	if deps.UploadDir != "" && deps.UploadPrefix != "" {
		r.Static(deps.UploadPrefix, deps.UploadDir)
	}

	h := deps.Handler
	authn := deps.Authenticator.Authenticate()
	member := deps.Gate.Authorize(anyMember...)
	admin := deps.Gate.Authorize(projectAdmin...)

	api := r.Group("/api/v1")
	{
		api.GET("/healthcheck", h.HealthCheck)

		auth := api.Group("/auth")
		{
			auth.POST("/register", h.Register)
			auth.POST("/login", h.Login)
			auth.POST("/refresh-token", h.RefreshToken)
			auth.GET("/verify-email/:token", h.VerifyEmail)
			auth.POST("/forgot-password", h.ForgotPassword)
			auth.POST("/reset-password/:token", h.ResetPassword)

			auth.POST("/logout", authn, h.Logout)
			auth.GET("/current-user", authn, h.CurrentUser)
			auth.POST("/change-password", authn, h.ChangePassword)
			auth.POST("/resend-email-verification", authn, h.ResendEmailVerification)
		}

		api.PUT("/admin/users/:userId/role", authn, middleware.RequireGlobalAdmin(), h.SetGlobalRole)

		projects := api.Group("/projects", authn)
		{
			projects.GET("", h.ListProjects)
			projects.POST("", h.CreateProject)

			projects.GET("/:projectId", member, h.GetProject)
			projects.PUT("/:projectId", admin, h.UpdateProject)
			projects.DELETE("/:projectId", admin, h.DeleteProject)

			// Members
			projects.GET("/:projectId/members", member, h.ListMembers)
			projects.POST("/:projectId/members", admin, h.AddMember)
			projects.PUT("/:projectId/members/:userId", admin, h.UpdateMemberRole)
			projects.DELETE("/:projectId/members/:userId", admin, h.RemoveMember)

			// Tasks
			projects.GET("/:projectId/tasks", member, h.ListTasks)
			projects.POST("/:projectId/tasks", admin, h.CreateTask)
			projects.GET("/:projectId/tasks/:taskId", member, h.GetTask)
			projects.PUT("/:projectId/tasks/:taskId", admin, h.UpdateTask)
			projects.DELETE("/:projectId/tasks/:taskId", admin, h.DeleteTask)

			projects.POST("/:projectId/tasks/:taskId/subtasks", admin, h.CreateSubtask)
			projects.PUT("/:projectId/tasks/:taskId/subtasks/:subtaskId", member, h.UpdateSubtask)
			projects.DELETE("/:projectId/tasks/:taskId/subtasks/:subtaskId", admin, h.DeleteSubtask)

			// Notes
			projects.GET("/:projectId/notes", member, h.ListNotes)
			projects.POST("/:projectId/notes", admin, h.CreateNote)
			projects.GET("/:projectId/notes/:noteId", member, h.GetNote)
			projects.PUT("/:projectId/notes/:noteId", admin, h.UpdateNote)
			projects.DELETE("/:projectId/notes/:noteId", admin, h.DeleteNote)

			projects.GET("/:projectId/ws", member, h.WebSocket)
		}
	}

	return r
}
