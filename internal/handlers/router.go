package handlers

import (
	nethttp "net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"portal-service/internal/middleware"
	"portal-service/internal/session"
	"portal-service/internal/telemetry"
	"portal-service/internal/workspace"
)

type RouterConfig struct {
	Registry    *workspace.Registry
	Store       session.TokenStore
	Audit       *telemetry.AuditEmitter
	Events      *telemetry.EventEmitter
	JWTSecret   string
	ServerURL   string
	CORSOrigins []string
	Ready       func() bool
}

func corsConfig(origins []string) cors.Config {
	config := cors.DefaultConfig()
	if len(origins) == 0 {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = origins
		config.AllowCredentials = true
	}
	config.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", middleware.RequestIDHeader}
	config.ExposeHeaders = []string{middleware.RequestIDHeader}
	config.MaxAge = 12 * time.Hour
	return config
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(cors.New(corsConfig(cfg.CORSOrigins)))
	r.Use(middleware.RequestID(), middleware.Metrics("/metrics", "/healthz"))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		if cfg.Ready != nil && !cfg.Ready() {
			c.JSON(nethttp.StatusServiceUnavailable, gin.H{"status": "starting"})
			return
		}
		c.JSON(nethttp.StatusOK, gin.H{"status": "ok"})
	})

	authHandler := NewAuthHandler(cfg.Registry, cfg.Store, cfg.Audit, cfg.JWTSecret, cfg.ServerURL)
	networkHandler := NewNetworkHandler(cfg.Registry, cfg.Audit, cfg.Events)
	jobsHandler := NewJobsHandler(cfg.Registry, cfg.Audit, cfg.Events)
	socialHandler := NewSocialHandler(cfg.Registry, cfg.Audit)

	r.POST("/auth/login", authHandler.Login)
	r.POST("/auth/register", authHandler.Register)
	r.GET("/applications/statuses", jobsHandler.Statuses)

	auth := r.Group("", middleware.JWTAuth(cfg.JWTSecret, cfg.Store))
	auth.GET("/auth/profile", authHandler.Profile)
	auth.POST("/auth/logout", authHandler.Logout)

	auth.GET("/network", networkHandler.Snapshot)
	auth.GET("/network/tabs/:tab", networkHandler.LoadTab)
	auth.GET("/network/tabs/:tab/view", networkHandler.View)
	auth.POST("/network/tabs/:tab/next", networkHandler.NextPage)
	auth.POST("/network/requests", networkHandler.SendRequest)
	auth.POST("/network/requests/:id/accept", networkHandler.AcceptRequest)
	auth.POST("/network/requests/:id/decline", networkHandler.DeclineRequest)
	auth.DELETE("/network/connections/:id", networkHandler.RemoveConnection)
	auth.GET("/network/status/:userId", networkHandler.Status)

	auth.GET("/jobs", jobsHandler.ListJobs)
	auth.GET("/jobs/:id", jobsHandler.GetJob)
	auth.POST("/jobs", jobsHandler.CreateJob)
	auth.PUT("/jobs/:id", jobsHandler.UpdateJob)
	auth.DELETE("/jobs/:id", jobsHandler.DeleteJob)
	auth.POST("/jobs/:id/apply", jobsHandler.Apply)
	auth.GET("/applications", jobsHandler.AdminApplications)
	auth.GET("/applications/me", jobsHandler.MyApplications)
	auth.PUT("/applications/:id/status", jobsHandler.UpdateApplicationStatus)
	auth.GET("/admin/stats", jobsHandler.Stats)

	auth.GET("/posts", socialHandler.Feed)
	auth.POST("/posts", socialHandler.CreatePost)
	auth.DELETE("/posts/:id", socialHandler.DeletePost)
	auth.POST("/posts/:id/like", socialHandler.LikePost)
	auth.POST("/posts/:id/comments", socialHandler.CommentOnPost)
	auth.POST("/posts/:id/share", socialHandler.SharePost)
	auth.GET("/posts/moderation/pending", socialHandler.PendingPosts)
	auth.PUT("/posts/:id/hide", socialHandler.HidePost)
	auth.PUT("/posts/:id/approve", socialHandler.ApprovePost)

	auth.GET("/chat/conversations", socialHandler.Conversations)
	auth.GET("/chat/conversations/:id/messages", socialHandler.Messages)
	auth.POST("/chat/conversations/:id/messages", socialHandler.SendMessage)

	auth.GET("/notifications", socialHandler.Notifications)
	auth.PUT("/notifications/:id/read", socialHandler.MarkNotificationRead)

	return r
}
