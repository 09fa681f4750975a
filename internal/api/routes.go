package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"jobportal/internal/api/middleware"
	"jobportal/internal/auth"
	"jobportal/internal/config"
	"jobportal/internal/guard"
	"jobportal/internal/notify"
	"jobportal/internal/scan"
)

// Dependencies 汇总路由注册所需的外部资源。
type Dependencies struct {
	Config      *config.Config
	DB          *gorm.DB
	AuthService *auth.AuthService
	Redis       *redis.Client
	// Feed 为空时使用 Redis Pub/Sub。
	Feed     NotificationFeed
	Notifier *notify.Notifier
	Storage  ObjectStorage
	Scanner  scan.Scanner
	Logger   *slog.Logger
}

// RegisterRoutes 注册 /v1 下的业务路由。
func RegisterRoutes(router *gin.Engine, deps Dependencies) {
	cfg := deps.Config

	authHandler := NewAuthHandler(deps.DB, deps.AuthService, deps.Redis, deps.Notifier, deps.Logger, cfg.Auth, cfg.API.CookieDomain)
	jobHandler := NewJobHandler(deps.DB, deps.Notifier, deps.Logger)
	reviewHandler := NewReviewHandler(deps.DB, deps.Notifier, deps.Logger)
	seekerHandler := NewSeekerHandler(deps.DB, deps.Storage, deps.Scanner, deps.Logger, cfg.Upload.MaxResumeBytes)
	employerHandler := NewEmployerHandler(deps.DB, deps.Notifier, deps.Storage, deps.Scanner, deps.Logger, cfg.Upload.MaxLogoBytes)
	notificationHandler := NewNotificationHandler(deps.DB, deps.Notifier, deps.Logger)
	feed := deps.Feed
	if feed == nil {
		feed = NewRedisFeed(deps.Redis)
	}
	wsHandler := NewWsHandler(deps.DB, feed, deps.AuthService, deps.Logger, cfg.API.Origins())

	authMiddleware := middleware.AuthMiddleware(deps.AuthService)
	passwordGate := middleware.RequirePasswordChanged()
	applicantOnly := middleware.RequireRole(guard.RoleApplicant)
	companyOnly := middleware.RequireRole(guard.RoleCompany)

	v1 := router.Group("/v1")
	{
		v1.GET("/ws", wsHandler.HandleConnection)

		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/refresh", authHandler.Refresh)
			authGroup.POST("/logout", authMiddleware, authHandler.Logout)
			// 改密与会话查询不经过改密闸门。
			authGroup.POST("/password", authMiddleware, authHandler.ChangePassword)
			authGroup.GET("/session", authMiddleware, authHandler.Session)
		}

		v1.GET("/jobs", jobHandler.ListJobs)
		v1.GET("/jobs/featured", jobHandler.FeaturedJobs)
		v1.GET("/jobs/:id", jobHandler.GetJob)
		v1.GET("/jobs/:id/similar", jobHandler.SimilarJobs)
		v1.GET("/stats", jobHandler.Stats)
		v1.GET("/companies/:id/reviews", reviewHandler.ListReviews)

		v1.POST("/internal/notifications", middleware.RequireInternalSecret(cfg.API.InternalSecret), notificationHandler.CreateInternal)

		session := v1.Group("")
		session.Use(authMiddleware, passwordGate)
		{
			session.GET("/dashboard", authHandler.Dashboard)
			session.GET("/jobs/:id/state", jobHandler.JobState)
			session.POST("/jobs/:id/bookmark", applicantOnly, jobHandler.ToggleBookmark)
			session.POST("/jobs/:id/apply", applicantOnly, jobHandler.Apply)
			session.POST("/jobs", companyOnly, jobHandler.CreateJob)
			session.POST("/companies/:id/reviews", applicantOnly, reviewHandler.CreateReview)

			notifications := session.Group("/notifications")
			{
				notifications.GET("", notificationHandler.ListNotifications)
				notifications.GET("/recent", notificationHandler.RecentNotifications)
				notifications.PATCH("/:id/read", notificationHandler.MarkRead)
				notifications.POST("/read-all", notificationHandler.MarkAllRead)
				notifications.DELETE("/:id", notificationHandler.DeleteNotification)
				notifications.DELETE("", notificationHandler.ClearNotifications)
			}

			seeker := session.Group("/seeker", applicantOnly)
			{
				seeker.GET("/profile", seekerHandler.GetProfile)
				seeker.PUT("/profile", seekerHandler.UpdateProfile)
				seeker.GET("/applications", seekerHandler.ListApplications)
				seeker.GET("/stats", seekerHandler.Stats)
				seeker.GET("/bookmarks", seekerHandler.ListBookmarks)
				seeker.DELETE("/bookmarks/:id", seekerHandler.DeleteBookmark)
				seeker.GET("/recommendations", seekerHandler.Recommendations)
				seeker.POST("/resume", seekerHandler.UploadResume)
				seeker.GET("/resume/link", seekerHandler.ResumeLink)
			}

			employer := session.Group("/employer", companyOnly)
			{
				employer.GET("/company", employerHandler.GetCompany)
				employer.PUT("/company", employerHandler.UpdateCompany)
				employer.POST("/company/logo", employerHandler.UploadLogo)
				employer.GET("/jobs", employerHandler.ListJobs)
				employer.PATCH("/jobs/:id/active", employerHandler.SetJobActive)
				employer.GET("/applications", employerHandler.ListApplications)
				employer.PATCH("/applications/:id/status", employerHandler.UpdateApplicationStatus)
				employer.GET("/applications/:id/resume-link", employerHandler.ApplicationResumeLink)
				employer.GET("/stats", employerHandler.Stats)
			}
		}
	}
}
