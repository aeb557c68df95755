// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	_ "estatehub/docs" // swagger docs
	"estatehub/internal/cache"
	"estatehub/internal/config"
	"estatehub/internal/database"
	"estatehub/internal/featureflags"
	"estatehub/internal/middleware"
	"estatehub/internal/models"
	"estatehub/internal/notifications"
	"estatehub/internal/repository"
	"estatehub/internal/service"

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

// wireableHub is implemented by every WebSocket hub that can be wired to
// Redis pub/sub and gracefully shut down.
type wireableHub interface {
	Name() string
	StartWiring(ctx context.Context, n *notifications.Notifier) error
	Shutdown(ctx context.Context) error
}

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc
	auth           *middleware.Authenticator
	notifier       *notifications.Notifier
	hub            *notifications.Hub
	chatHub        *notifications.ChatHub
	dispatcher     *notifications.Dispatcher
	hubs           []wireableHub
	featureFlags   *featureflags.Manager
	users          *service.UserService
	community      *service.CommunityService
	chat           *service.ChatService
	listings       *service.ListingService
	tickets        *service.TicketService
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	return NewServerWithDeps(cfg, db, cache.GetClient())
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB/Redis and optionally
// performs explicit seeding. redisClient may be nil.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) (*Server, error) {
	userRepo := repository.NewUserRepository(db)
	listingRepo := repository.NewListingRepository(db)

	s := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("estatehub-api"),
		featureFlags:   featureflags.NewManager(cfg.FeatureFlags),
		notifier:       notifications.NewNotifier(redisClient),
		hub:            notifications.NewHub(),
		chatHub:        notifications.NewChatHub(),
	}
	s.hubs = []wireableHub{s.hub, s.chatHub}
	s.dispatcher = notifications.NewDispatcher(s.hub, s.chatHub, s.notifier)

	s.auth = middleware.NewAuthenticator(cfg.JWTSecret, redisClient).WithRoleLookup(userRepo.RoleOf)
	s.users = service.NewUserService(userRepo, s.auth)

	s.community = service.NewCommunityService(
		repository.NewQuestionRepository(db),
		repository.NewAnswerRepository(db),
		repository.NewVoteRepository(db),
		repository.NewFlagRepository(db),
		s.featureFlags,
	)
	s.listings = service.NewListingService(listingRepo)
	s.chat = service.NewChatService(repository.NewChatRepository(db), userRepo, s.listings)
	s.chat.SetEvents(s.dispatcher)
	s.listings.SetNotifier(s.chat)
	s.tickets = service.NewTicketService(repository.NewTicketRepository(db))

	return s, nil
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

	// CORS runs before middlewares that can short-circuit (e.g. limiter)
	// so browser clients still receive CORS headers on error responses.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Global rate limiting per IP
	app.Use(limiter.New(limiter.Config{
		Max:        300,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || s.config.Env == "test"
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(models.ErrorResponse{
				Kind:    models.KindInvalidOperation,
				Message: "Too many requests, please try again later.",
			})
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api.Get("/swagger/*", swagger.HandlerDefault)

	required := s.auth.Required()
	optional := s.auth.Optional()
	adminOnly := middleware.AdminOnly()

	auth := api.Group("/auth")
	auth.Post("/signup", middleware.RateLimit(s.redis, 3, 10*time.Minute, "signup"), s.Signup)
	auth.Post("/login", middleware.RateLimit(s.redis, 10, 5*time.Minute, "login"), s.Login)
	auth.Post("/logout", required, s.Logout)

	// Define specific /:id/:resource routes BEFORE generic /:id route
	users := api.Group("/users")
	users.Get("/me", required, s.GetMyProfile)
	users.Put("/me", required, s.UpdateMyProfile)
	users.Get("/", required, adminOnly, s.GetAllUsers)
	users.Get("/:id/activity", s.GetUserActivity)
	users.Post("/:id/promote-admin", required, adminOnly, s.PromoteToAdmin)
	users.Post("/:id/demote-admin", required, adminOnly, s.DemoteFromAdmin)
	users.Post("/:id/verify", required, adminOnly, s.VerifyUser)
	users.Get("/:id", s.GetUserProfile)

	questions := api.Group("/questions")
	questions.Get("/", s.GetQuestions)
	questions.Post("/", required, middleware.RateLimit(s.redis, 5, 5*time.Minute, "create_question"), s.CreateQuestion)
	questions.Post("/:id/vote", required, s.VoteQuestion)
	questions.Post("/:id/answers", required, middleware.RateLimit(s.redis, 10, time.Minute, "create_answer"), s.CreateAnswer)
	questions.Post("/:id/flag", required, s.FlagQuestion)
	questions.Put("/:id/status", required, adminOnly, s.SetQuestionStatus)
	questions.Put("/:id/pin", required, adminOnly, s.SetQuestionPinned)
	questions.Get("/:id", optional, s.GetQuestion)
	questions.Put("/:id", required, s.UpdateQuestion)
	questions.Delete("/:id", required, s.DeleteQuestion)

	answers := api.Group("/answers", required)
	answers.Post("/:id/vote", s.VoteAnswer)
	answers.Post("/:id/best", s.MarkBestAnswer)
	answers.Post("/:id/comments", middleware.RateLimit(s.redis, 10, time.Minute, "create_comment"), s.AddComment)
	answers.Post("/:id/comments/:commentId/vote", s.VoteComment)
	answers.Post("/:id/flag", s.FlagAnswer)
	answers.Put("/:id", s.EditAnswer)
	answers.Delete("/:id", s.DeleteAnswer)

	listings := api.Group("/listings")
	listings.Get("/", s.GetListings)
	listings.Post("/", required, s.CreateListing)
	listings.Post("/:id/sold", required, s.MarkListingSold)
	listings.Get("/:id", s.GetListing)
	listings.Put("/:id", required, s.UpdateListing)
	listings.Delete("/:id", required, s.DeleteListing)

	conversations := api.Group("/conversations", required)
	conversations.Post("/", s.CreateConversation)
	conversations.Get("/", s.GetConversations)
	conversations.Get("/:id/messages", s.GetMessages)
	conversations.Post("/:id/messages", middleware.RateLimit(s.redis, 15, time.Minute, "send_chat"), s.SendMessage)
	conversations.Post("/:id/read", s.MarkConversationRead)
	conversations.Get("/:id", s.GetConversation)
	api.Get("/messages/unread-count", required, s.GetUnreadCount)

	tickets := api.Group("/tickets", required)
	tickets.Post("/", middleware.RateLimit(s.redis, 5, 10*time.Minute, "submit_ticket"), s.SubmitTicket)
	tickets.Get("/mine", s.GetMyTickets)
	tickets.Post("/:id/rate", s.RateTicket)
	tickets.Get("/:id", s.GetTicket)

	api.Post("/ws/ticket", required, s.IssueWSTicket)
	ws := api.Group("/ws")
	ws.Get("/", s.upgradeRequired, required, s.WebsocketHandler())
	ws.Get("/chat", s.upgradeRequired, required, s.realtimeChatEnabled, s.WebSocketChatHandler())

	admin := api.Group("/admin", required, adminOnly)
	admin.Get("/feature-flags", s.GetFeatureFlags)
	admin.Get("/community/stats", s.GetCommunityStats)
	admin.Get("/flags", s.GetOpenFlags)
	admin.Post("/flags/:id/resolve", s.ResolveFlag)
	admin.Get("/tickets/stats", s.GetTicketStats)
	admin.Get("/tickets", s.GetAllTickets)
	admin.Put("/tickets/:id", s.UpdateTicket)
	admin.Post("/tickets/:id/respond", s.RespondToTicket)
	admin.Delete("/tickets/:id", s.DeleteTicket)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck handles readiness probe requests. Redis is optional: without
// it the server runs single-instance, so it is reported but not required.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "unavailable"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus != "healthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// GetFeatureFlags returns configured feature flags and evaluated state for the current user.
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	return ok(c, fiber.Map{
		"raw":       s.featureFlags.Raw(),
		"evaluated": s.featureFlags.Snapshot(principal(c).ID),
	})
}

// realtimeChatEnabled hides the chat socket unless the flag is on for the caller.
func (s *Server) realtimeChatEnabled(c *fiber.Ctx) error {
	if !s.featureFlags.Enabled(featureflags.RealtimeChat, principal(c).ID) {
		return respondError(c, models.NewNotFoundError("Feature", string(featureflags.RealtimeChat)))
	}
	return c.Next()
}

// App builds the Fiber application with middleware and routes.
func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName: "EstateHub API",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// Framework errors keep their own status code.
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return c.Status(fe.Code).JSON(models.ErrorResponse{Kind: models.KindOf(err), Message: fe.Message})
			}
			return respondError(c, err)
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// Start wires the hubs and starts listening.
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	s.app = s.App()

	if s.notifier.Enabled() {
		for _, h := range s.hubs {
			if err := h.StartWiring(s.shutdownCtx, s.notifier); err != nil {
				middleware.Logger.Error("failed to start hub wiring", "hub", h.Name(), "error", err)
			}
		}
	}

	middleware.Logger.Info("server starting", "port", s.config.Port, "env", s.config.Env)
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", "error", err)
		}
	}

	for _, h := range s.hubs {
		if err := h.Shutdown(ctx); err != nil {
			middleware.Logger.Error("error shutting down hub", "hub", h.Name(), "error", err)
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", "error", cerr)
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", "error", rerr)
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}
