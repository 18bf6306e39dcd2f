package server

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/emilythestrangee/qna-forum/backend/internal/config"
	"github.com/emilythestrangee/qna-forum/backend/internal/database"
	"github.com/emilythestrangee/qna-forum/backend/internal/handlers"
	"github.com/emilythestrangee/qna-forum/backend/internal/middleware"
)

type Server struct {
	cfg     config.Config
	db      database.Service
	handler *handlers.Handler
	logger  *zap.SugaredLogger
}

// NewServer creates and configures a new server
func NewServer(cfg config.Config, db database.Service, handler *handlers.Handler, logger *zap.SugaredLogger) *http.Server {
	newServer := &Server{
		cfg:     cfg,
		db:      db,
		handler: handler,
		logger:  logger,
	}

	// Configure Gin router
	router := newServer.RegisterRoutes()

	// Create HTTP server
	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.App.Port,
		Handler:      router,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	logger.Infow("server configured", "port", cfg.App.Port, "environment", cfg.App.Environment)
	return server
}

// RegisterRoutes sets up all application routes
func (s *Server) RegisterRoutes() *gin.Engine {
	if !s.cfg.App.IsDevEnvironment() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(s.logger))

	// CORS configuration
	origins := s.cfg.App.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: !slices.Contains(origins, "*"),
		MaxAge:           12 * time.Hour,
	}))

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		stats := s.db.Health()
		status := http.StatusOK
		if stats["status"] != "up" {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, stats)
	})

	api := r.Group("/api")
	{
		// Public reads
		api.GET("/users/:id", s.handler.User.GetUserProfile)
		api.GET("/votes/:kind/:id/stats", s.handler.Vote.GetVoteStats)

		protected := api.Group("")
		protected.Use(middleware.AuthMiddleware([]byte(s.cfg.Auth.JWTSecret)))
		{
			// Votes
			protected.POST("/votes/lookup", s.handler.Vote.LookupVotes)
			protected.POST("/votes/:kind/:id", s.handler.Vote.CastVote)
			protected.GET("/votes/:kind/:id", s.handler.Vote.GetUserVote)
			protected.GET("/users/me/votes", s.handler.User.GetMyVotes)

			// Acceptance
			protected.POST("/questions/:id/answers/:answerId/accept", s.handler.Answer.AcceptAnswer)
			protected.DELETE("/questions/:id/answers/:answerId/accept", s.handler.Answer.UnacceptAnswer)
			protected.DELETE("/answers/:answerId", s.handler.Answer.DeleteAnswer)

			// Notifications
			protected.GET("/notifications", s.handler.Notification.GetNotifications)
			protected.GET("/notifications/unread-count", s.handler.Notification.GetUnreadCount)
			protected.PATCH("/notifications/read-all", s.handler.Notification.MarkAllRead)
			protected.PATCH("/notifications/:id/read", s.handler.Notification.MarkRead)
			protected.DELETE("/notifications/:id", s.handler.Notification.DeleteNotification)

			admin := protected.Group("/admin")
			admin.Use(middleware.RequireAdmin())
			{
				admin.PUT("/users/:id/rank", s.handler.User.SetRank)
				admin.DELETE("/users/:id/rank", s.handler.User.ClearRank)
			}
		}
	}

	return r
}
