// Package server contains HTTP and WebSocket handlers for the engine's API endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "quill/docs" // swagger docs
	"quill/internal/cache"
	"quill/internal/config"
	"quill/internal/database"
	"quill/internal/middleware"
	"quill/internal/models"
	"quill/internal/notifications"
	"quill/internal/repository"
	"quill/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds dependencies for the HTTP server
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc

	userRepo         repository.UserRepository
	postRepo         repository.PostRepository
	commentRepo      repository.CommentRepository
	reactionRepo     repository.ReactionRepository
	reportRepo       repository.ReportRepository
	notificationRepo repository.NotificationRepository

	hub       *notifications.Hub
	notifier  *notifications.Notifier
	amqp      *notifications.AMQPPusher
	pushQueue *notifications.PushQueue

	reactionService     *service.ReactionService
	commentService      *service.CommentService
	moderationService   *service.ModerationService
	notificationService *service.NotificationService
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	redisClient := cache.InitRedis(cfg.RedisURL)

	s, err := NewServerWithDeps(cfg, db, redisClient)
	if err != nil {
		return nil, err
	}
	s.promMiddleware = middleware.InitMetrics("quill-api")
	return s, nil
}

// NewServerWithDeps wires repositories, the push pipeline and services on top
// of existing connections. redisClient may be nil.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	s := &Server{
		config:           cfg,
		db:               db,
		redis:            redisClient,
		userRepo:         repository.NewUserRepository(db),
		postRepo:         repository.NewPostRepository(db),
		commentRepo:      repository.NewCommentRepository(db),
		reactionRepo:     repository.NewReactionRepository(db),
		reportRepo:       repository.NewReportRepository(db),
		notificationRepo: repository.NewNotificationRepository(db),
		hub:              notifications.NewHub(),
	}

	if err := s.setupPush(); err != nil {
		return nil, err
	}

	s.notificationService = service.NewNotificationService(
		s.notificationRepo, s.userRepo, s.postRepo, s.redis, s.pushQueue, cfg.UnreadCacheTTL,
	)
	s.reactionService = service.NewReactionService(s.reactionRepo, s.notificationService)
	s.commentService = service.NewCommentService(
		s.commentRepo, s.postRepo, s.reactionRepo, s.userRepo.IsAdmin, s.notificationService,
	)
	s.moderationService = service.NewModerationService(s.reportRepo, s.commentRepo, s.userRepo.IsAdmin)

	return s, nil
}

// setupPush picks the transport behind the push queue. Redis falls back to
// local delivery when no Redis client is available.
func (s *Server) setupPush() error {
	transport := s.config.PushTransport
	var pusher notifications.Pusher

	switch transport {
	case config.PushTransportAMQP:
		p, err := notifications.NewAMQPPusher(s.config.AMQPURL)
		if err != nil {
			return fmt.Errorf("failed to connect to amqp: %w", err)
		}
		s.amqp = p
		pusher = p
	case config.PushTransportRedis:
		if s.redis != nil {
			s.notifier = notifications.NewNotifier(s.redis)
			pusher = s.notifier
			break
		}
		middleware.Logger.Warn("Redis unavailable, delivering pushes locally")
		transport = config.PushTransportLocal
		pusher = s.hub
	default:
		transport = config.PushTransportLocal
		pusher = s.hub
	}

	s.pushQueue = notifications.NewPushQueue(pusher, notifications.QueueConfig{
		Size:      s.config.PushQueueSize,
		Workers:   s.config.PushWorkers,
		Timeout:   s.config.PushTimeout,
		Transport: transport,
	})
	return nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.TracingMiddleware())
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so short-circuited responses still carry CORS headers.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api := app.Group("/api")
	api.Get("/swagger/*", swagger.HandlerDefault)

	// Public reads; a valid token only adds viewer state.
	api.Get("/posts/:id/reactions", s.ListPostReactions)
	api.Get("/posts/:id/reactions/stats", s.GetPostReactionStats)
	api.Get("/comments/:id/reactions/stats", s.GetCommentReactionStats)
	api.Get("/posts/:id/comments", s.GetComments)
	api.Get("/posts/:id/comments/tree", s.GetCommentThread)
	api.Get("/comments/:id/replies", s.GetReplies)

	// Auth is attached per route so unknown /api paths still 404.
	auth := s.AuthRequired()

	api.Get("/ws", auth, s.WebSocketUpgrade, s.WebSocketNotificationsHandler())

	api.Post("/posts/:id/reactions", auth, s.TogglePostReaction)
	api.Delete("/posts/:id/reactions", auth, s.RemovePostReaction)
	api.Post("/comments/:id/reactions", auth, s.ToggleCommentReaction)
	api.Get("/reactions/me", auth, s.GetMyReactions)

	api.Get("/comments/me", auth, s.GetMyComments)
	api.Post("/posts/:id/comments", auth,
		middleware.RateLimit(s.redis, 10, time.Minute, "comment_create"), s.CreateComment)
	api.Put("/comments/:id", auth, s.UpdateComment)
	api.Delete("/comments/:id", auth, s.DeleteComment)
	api.Post("/comments/:id/reports", auth,
		middleware.RateLimit(s.redis, 20, time.Hour, "comment_report"), s.ReportComment)

	notifs := api.Group("/notifications", auth)
	notifs.Get("/", s.GetNotifications)
	notifs.Get("/filter", s.FilterNotifications)
	notifs.Get("/unread", s.GetUnreadNotifications)
	notifs.Get("/unread/count", s.GetUnreadCount)
	notifs.Put("/read-all", s.MarkAllNotificationsRead)
	notifs.Put("/:id/read", s.MarkNotificationRead)
	notifs.Delete("/read", s.DeleteReadNotifications)
	notifs.Delete("/:id", s.DeleteNotification)

	admin := api.Group("/admin", auth, s.AdminRequired())
	admin.Get("/reports", s.GetReports)
	admin.Put("/reports/:id", s.HandleReport)
	admin.Get("/comments/reported", s.GetReportedComments)
	admin.Post("/notifications/system", s.SendSystemNotification)
	admin.Delete("/notifications/cleanup", s.CleanupNotifications)
	admin.Post("/posts/:id/updated", s.NotifyPostUpdated)
}

// App builds the Fiber app with middleware and routes on first use.
func (s *Server) App() *fiber.App {
	if s.app != nil {
		return s.app
	}
	app := fiber.New(fiber.Config{
		AppName: "Quill Engagement API",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) && fe.Code < fiber.StatusInternalServerError {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
			}
			middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	s.app = app
	return app
}

// LivenessCheck reports that the process is up.
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck pings the database and Redis.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	// Redis is optional for readiness when pushes are delivered locally.
	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"push_queue": s.pushQueue.Len(),
		"time":       time.Now(),
	})
}

// AdminRequired middleware ensures the authenticated user is a moderator.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, ok := c.Locals("userID").(uint)
		if !ok || userID == 0 {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError("Authorization required"))
		}

		admin, err := s.userRepo.IsAdmin(c.UserContext(), userID)
		if err != nil && !repository.IsNotFound(err) {
			return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
		}
		if !admin {
			return models.RespondWithError(c, fiber.StatusForbidden,
				models.NewForbiddenError("Moderator access required"))
		}
		return c.Next()
	}
}

// AuthRequired middleware validates the bearer token and stores the actor ID
// in c.Locals("userID") and the request context.
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := middleware.ParseActorToken(s.tokenConfig(), s.requestToken(c))
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError(tokenErrorMessage(err)))
		}

		c.Locals("userID", userID)
		c.SetUserContext(middleware.WithUserID(c.UserContext(), userID))
		return c.Next()
	}
}

// optionalUserID returns the actor ID of a valid bearer token, or 0 for
// anonymous requests and invalid tokens.
func (s *Server) optionalUserID(c *fiber.Ctx) uint {
	token := middleware.BearerToken(c)
	if token == "" {
		return 0
	}
	userID, err := middleware.ParseActorToken(s.tokenConfig(), token)
	if err != nil {
		return 0
	}
	return userID
}

// requestToken reads the bearer token. Browsers cannot set headers on a
// WebSocket handshake, so /api/ws also accepts a token query parameter.
func (s *Server) requestToken(c *fiber.Ctx) string {
	if token := middleware.BearerToken(c); token != "" {
		return token
	}
	if strings.HasPrefix(c.Path(), "/api/ws") {
		return c.Query("token")
	}
	return ""
}

func (s *Server) tokenConfig() middleware.TokenConfig {
	return middleware.TokenConfig{
		Secret:   s.config.JWTSecret,
		Issuer:   s.config.JWTIssuer,
		Audience: s.config.JWTAudience,
	}
}

func tokenErrorMessage(err error) string {
	switch {
	case errors.Is(err, middleware.ErrMissingToken):
		return "Authorization required"
	case errors.Is(err, middleware.ErrInvalidIssuer):
		return "Invalid token issuer"
	case errors.Is(err, middleware.ErrInvalidAud):
		return "Invalid token audience"
	case errors.Is(err, middleware.ErrInvalidSubject):
		return "Invalid subject claim"
	default:
		return "Invalid or expired token"
	}
}

// Start builds the app, starts the push workers, hub wiring and retention
// ticker, and listens until the app is shut down.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	app := s.App()

	go s.pushQueue.Run(ctx)

	switch {
	case s.notifier != nil:
		go func() {
			if err := s.hub.StartWiring(ctx, s.notifier); err != nil {
				middleware.Logger.Error("failed to start hub wiring",
					slog.String("hub", s.hub.Name()), slog.String("error", err.Error()))
			}
		}()
	case s.amqp != nil:
		go func() {
			if err := s.hub.StartAMQPWiring(ctx, s.amqp); err != nil {
				middleware.Logger.Error("failed to start hub amqp wiring",
					slog.String("hub", s.hub.Name()), slog.String("error", err.Error()))
			}
		}()
	}

	go s.runRetention(ctx)

	middleware.Logger.Info("Server starting", slog.String("port", s.config.Port))
	return app.Listen(":" + s.config.Port)
}

// runRetention deletes notifications older than RETENTION_DAYS every
// RETENTION_INTERVAL. A zero interval disables it.
func (s *Server) runRetention(ctx context.Context) {
	interval := s.config.RetentionInterval
	if interval <= 0 {
		return
	}
	days := s.config.RetentionDays
	if days <= 0 {
		days = service.DefaultRetentionDays
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.notificationService.CleanupOld(ctx, days); err != nil {
				middleware.Logger.ErrorContext(ctx, "notification retention failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Shutdown gracefully shuts down the server and its resources.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if err := s.hub.Shutdown(ctx); err != nil {
		middleware.Logger.Error("error shutting down hub",
			slog.String("hub", s.hub.Name()), slog.String("error", err.Error()))
	}

	if s.amqp != nil {
		if err := s.amqp.Close(); err != nil {
			middleware.Logger.Error("error closing amqp", slog.String("error", err.Error()))
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", slog.String("error", cerr.Error()))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", slog.String("error", rerr.Error()))
		}
	}

	middleware.Logger.Info("Server shutdown complete")
	return nil
}
