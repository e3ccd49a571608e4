// Package server contains the HTTP and WebSocket handlers for the bus-pass API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "buspass/docs" // swagger docs
	"buspass/internal/auth"
	"buspass/internal/cache"
	"buspass/internal/config"
	"buspass/internal/database"
	"buspass/internal/featureflags"
	"buspass/internal/jobs"
	"buspass/internal/mailer"
	"buspass/internal/middleware"
	"buspass/internal/models"
	"buspass/internal/notifications"
	"buspass/internal/observability"
	"buspass/internal/repository"
	"buspass/internal/service"
	"buspass/internal/storage"

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
	config          *config.Config
	db              *gorm.DB
	redis           *redis.Client
	limits          *middleware.RateLimiter
	store           storage.Store
	app             *fiber.App
	promMiddleware  *fiberprometheus.FiberPrometheus
	shutdownCtx     context.Context
	shutdownFn      context.CancelFunc
	applicationRepo repository.ApplicationRepository
	operatorRepo    repository.OperatorRepository
	supportRepo     repository.SupportRepository
	notifier        *notifications.Notifier
	reviewHub       *notifications.ReviewFeedHub
	hubs            []wireableHub
	featureFlags    *featureflags.Manager
	mailer          mailer.Mailer
	decisionMailer  *mailer.DecisionMailer
	scheduler       *jobs.Scheduler
	intake          *service.IntakeService
	gateway         *service.ReviewGateway
	credentials     *service.CredentialService
	operators       *service.OperatorService
	support         *service.SupportService
}

// NewServer creates a new server instance with all dependencies
func NewServer(cfg *config.Config) (*Server, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	rdb := cache.Open(context.Background(), cfg.RedisURL)

	store, err := storage.New(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("document storage unavailable: %w", err)
	}

	return NewServerWithDeps(cfg, db, rdb, store)
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Use this in tests or when a bootstrap layer establishes DB, Redis and storage.
// A nil store is built from cfg.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, store storage.Store) (*Server, error) {
	if store == nil {
		var err error
		if store, err = storage.New(context.Background(), cfg); err != nil {
			return nil, fmt.Errorf("document storage unavailable: %w", err)
		}
	}

	prom := middleware.InitMetrics("buspass-api")

	server := &Server{
		config:          cfg,
		db:              db,
		redis:           redisClient,
		limits:          middleware.NewRateLimiter(redisClient, cfg.Env),
		store:           store,
		promMiddleware:  prom,
		applicationRepo: repository.NewApplicationRepository(db),
		operatorRepo:    repository.NewOperatorRepository(db),
		supportRepo:     repository.NewSupportRepository(db),
		featureFlags:    featureflags.NewManager(cfg.FeatureFlags),
		mailer:          mailer.New(cfg),
	}

	// Without Redis there is no pub/sub, so events are dropped and the feed is disabled.
	var publisher service.ReviewPublisher
	if redisClient != nil {
		server.notifier = notifications.NewNotifier(redisClient)
		server.reviewHub = notifications.NewReviewFeedHub()
		server.hubs = []wireableHub{server.reviewHub}
		server.decisionMailer = mailer.NewDecisionMailer(server.applicationRepo, server.mailer, server.featureFlags)
		publisher = server.notifier
	}

	ttl := time.Duration(cfg.TokenTTLHours) * time.Hour
	server.operators = service.NewOperatorService(server.operatorRepo, auth.NewTokenManager(cfg.JWTSecret, ttl, redisClient))
	server.support = service.NewSupportService(server.supportRepo)
	server.intake = service.NewIntakeService(server.applicationRepo, store, publisher, cfg)
	server.credentials = service.NewCredentialService(server.applicationRepo, store, cfg)
	server.gateway = service.NewReviewGateway(
		service.NewLifecycleService(server.applicationRepo, publisher),
		server.credentials,
		service.NewDocumentService(server.applicationRepo, store),
		server.operatorRepo,
	)
	server.scheduler = jobs.NewScheduler(server.applicationRepo, server.mailer, server.featureFlags, cfg.OperatorDigestEmail)

	return server, nil
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())

	if s.config.TracingEnabled {
		app.Use(middleware.TracingMiddleware())
	}

	// Context Middleware to propagate Request ID and Trace ID
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so browsers still see CORS headers on 429s.
	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
		ExposeHeaders:    "Content-Disposition",
		MaxAge:           86400,
	}))

	// In-process ceiling per IP; the Redis rules on individual routes are tighter.
	if !s.config.IsDevelopment() {
		app.Use(limiter.New(limiter.Config{
			Max:        100,
			Expiration: time.Minute,
			Next: func(c *fiber.Ctx) bool {
				return c.Method() == fiber.MethodOptions || strings.HasPrefix(c.Path(), "/health")
			},
			LimitReached: func(c *fiber.Ctx) error {
				return models.RespondWithError(c, fiber.StatusTooManyRequests,
					&models.AppError{Code: "RATE_LIMITED", Message: "too many requests, try again later"})
			},
		}))
	}
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api.Get("/swagger/*", swagger.HandlerDefault)

	api.Get("/rejection-reasons", s.GetRejectionReasons)

	// Applicant routes
	applications := api.Group("/applications")
	applications.Post("/", s.limits.Limit(middleware.SubmitRule), s.SubmitApplication)
	applications.Post("/status", s.limits.Limit(middleware.StatusRule), s.CheckStatus)
	applications.Get("/:applicationNo/status", s.limits.Limit(middleware.StatusRule), s.CheckStatus)

	api.Post("/support", s.limits.Limit(middleware.SupportRule), s.SubmitSupportQuery)

	// Operator session routes
	authRoutes := api.Group("/auth")
	authRoutes.Post("/login", s.limits.Limit(middleware.LoginRule), s.Login)
	authRoutes.Post("/logout", s.AuthRequired(), s.Logout)
	authRoutes.Get("/me", s.AuthRequired(), s.Me)

	// Operator routes
	admin := api.Group("/admin", s.AuthRequired())

	apps := admin.Group("/applications")
	apps.Get("/", s.ListApplications)
	apps.Get("/summary", s.GetApplicationSummary)
	// Define specific /:applicationNo/:action routes BEFORE the generic lookup
	apps.Post("/:applicationNo/approve", s.ApproveApplication)
	apps.Post("/:applicationNo/reject", s.RejectApplication)
	apps.Get("/:applicationNo/id-card", s.limits.Limit(middleware.IDCardRule), s.GenerateIDCard)
	apps.Get("/:applicationNo/documents/:kind", s.GetApplicationDocument)
	apps.Get("/:applicationNo", s.GetApplication)

	supportQueue := admin.Group("/support")
	supportQueue.Get("/", s.ListSupportQueries)
	supportQueue.Post("/:id/resolve", s.ResolveSupportQuery)

	admin.Get("/feature-flags", s.GetFeatureFlags)

	admin.Post("/ws/ticket", s.IssueWSTicket)
	admin.Get("/ws/reviews", s.ReviewFeedHandler())
}

// App builds the Fiber app with middleware and routes. Start calls it; tests
// use it directly with app.Test.
func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:   "Bus Pass API",
		BodyLimit: (s.maxUploadMB()*len(models.DocumentKinds()) + 1) * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if fe, ok := err.(*fiber.Error); ok {
				return models.RespondWithError(c, fe.Code, models.NewValidationError(fe.Message))
			}
			observability.GlobalLogger.ErrorContext(c.UserContext(), "unhandled error", slog.String("error", err.Error()))
			return models.RespondWithError(c, fiber.StatusInternalServerError,
				models.NewInternalError(err))
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

func (s *Server) maxUploadMB() int {
	if s.config.DocumentMaxUploadMB > 0 {
		return s.config.DocumentMaxUploadMB
	}
	return service.DefaultDocumentMaxUploadMB
}

// Start starts the background workers and the HTTP server
func (s *Server) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.shutdownCtx = ctx
	s.shutdownFn = cancel

	s.app = s.App()

	// Wire all hubs to Redis subscriber if available
	if s.notifier != nil {
		for _, h := range s.hubs {
			h := h
			go func() {
				if err := h.StartWiring(s.shutdownCtx, s.notifier); err != nil {
					observability.GlobalLogger.Error("hub wiring stopped", slog.String("hub", h.Name()), slog.String("error", err.Error()))
				}
			}()
		}
		if s.decisionMailer != nil {
			go func() {
				if err := s.decisionMailer.Start(s.shutdownCtx, s.notifier); err != nil {
					observability.GlobalLogger.Error("decision mailer stopped", slog.String("error", err.Error()))
				}
			}()
		}
	}

	if err := s.scheduler.Start(s.shutdownCtx); err != nil {
		observability.GlobalLogger.Error("scheduler not started", slog.String("error", err.Error()))
	}

	observability.GlobalLogger.Info("bus pass api listening", slog.String("port", s.config.Port), slog.String("env", s.config.Env))
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	// Cancel the server-scoped context to stop wiring goroutines and the scheduler
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			observability.GlobalLogger.ErrorContext(ctx, "http shutdown", slog.String("error", err.Error()))
		}
	}

	for _, h := range s.hubs {
		if err := h.Shutdown(ctx); err != nil {
			observability.GlobalLogger.ErrorContext(ctx, "hub shutdown", slog.String("hub", h.Name()), slog.String("error", err.Error()))
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			observability.GlobalLogger.ErrorContext(ctx, "database close", slog.String("error", cerr.Error()))
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			observability.GlobalLogger.ErrorContext(ctx, "redis close", slog.String("error", rerr.Error()))
		}
	}

	observability.GlobalLogger.InfoContext(ctx, "shutdown complete")
	return nil
}
