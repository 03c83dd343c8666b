// Package server exposes the comment subsystem over HTTP.
package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"inkwell/internal/authz"
	"inkwell/internal/config"
	"inkwell/internal/featureflags"
	"inkwell/internal/models"
	"inkwell/internal/notifications"
	"inkwell/internal/observability"
	"inkwell/internal/ratelimit"
	"inkwell/internal/repository"
	"inkwell/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

var (
	promOnce sync.Once
	prom     *fiberprometheus.FiberPrometheus
)

// httpMetrics registers the HTTP collectors once per process.
func httpMetrics() *fiberprometheus.FiberPrometheus {
	promOnce.Do(func() {
		prom = fiberprometheus.New("inkwell-comments")
	})
	return prom
}

// Authenticator resolves the signed-in actor of a request. It returns nil
// for anonymous requests and an error for credentials it cannot accept.
type Authenticator func(c *fiber.Ctx) (models.Actor, error)

// Option customizes a Server.
type Option func(*Server)

// WithAuthenticator installs the upstream authentication hook.
func WithAuthenticator(fn Authenticator) Option {
	return func(s *Server) { s.authenticate = fn }
}

// Server holds the HTTP app and its dependencies.
type Server struct {
	config       *config.Config
	db           *gorm.DB
	redis        *redis.Client
	app          *fiber.App
	comments     *service.CommentService
	flags        *featureflags.Flags
	events       *notifications.RedisNotifier
	authenticate Authenticator
}

// NewCommentService wires the comment service over db and, when non-nil,
// Redis. Without Redis the rate limiter keeps counters in process and events
// are dropped.
func NewCommentService(cfg *config.Config, db *gorm.DB, rdb *redis.Client) (*service.CommentService, *featureflags.Flags, error) {
	var store ratelimit.Store
	if rdb != nil {
		store = ratelimit.NewRedisStore(rdb)
	} else {
		mem, err := ratelimit.NewMemoryStore(ratelimit.DefaultMemoryEntries)
		if err != nil {
			return nil, nil, fmt.Errorf("rate limit store: %w", err)
		}
		store = mem
		observability.Logger.Warn("REDIS_URL not set, rate limits are per process")
	}

	var notifier notifications.Dispatcher = notifications.Noop{}
	if rdb != nil {
		notifier = notifications.NewRedisNotifier(rdb)
	}

	flags := featureflags.Parse(cfg.FeatureFlags)
	svc := service.NewCommentService(repository.NewStore(db), ratelimit.New(store), service.Options{
		RateLimit:  cfg.CommentRateLimit,
		RateWindow: time.Duration(cfg.CommentRateWindowSeconds) * time.Second,
		Flags:      flags,
		Notifier:   notifier,
	})
	return svc, flags, nil
}

// New builds the HTTP server around a freshly wired comment service.
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, opts ...Option) (*Server, error) {
	comments, flags, err := NewCommentService(cfg, db, rdb)
	if err != nil {
		return nil, err
	}

	s := &Server{
		config:   cfg,
		db:       db,
		redis:    rdb,
		flags:    flags,
		comments: comments,
	}
	if rdb != nil {
		s.events = notifications.NewRedisNotifier(rdb)
	}
	if cfg.JWTSecret != "" {
		s.authenticate = JWTAuthenticator(cfg.JWTSecret)
	}
	for _, opt := range opts {
		opt(s)
	}
	s.app = s.newApp()
	return s, nil
}

// App returns the configured fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) newApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "inkwell comments",
		ErrorHandler: errorHandler,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// SetupMiddleware configures middleware for the Fiber app
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	if s.authenticate != nil {
		app.Use(s.authenticateMiddleware)
	}
	app.Use(ContextMiddleware())
	app.Use(httpMetrics().Middleware)
	app.Use(StructuredLogger())
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	httpMetrics().RegisterAt(app, "/metrics")

	api := app.Group("/api")

	posts := api.Group("/posts/:postId/comments")
	posts.Get("/", s.GetThread)
	posts.Post("/", s.SubmitComment)
	posts.Get("/can-comment", s.CanComment)
	posts.Get("/live", LiveUpgrade, s.LiveComments())

	api.Delete("/comments/:id", s.DeleteComment)
	api.Get("/users/:userId/comments", s.GetUserComments)

	admin := api.Group("/admin/comments", s.AdminRequired())
	admin.Get("/", s.ListComments)
	admin.Get("/pending", s.ModerationQueue)
	admin.Get("/stats", s.CommentStats)
	admin.Post("/:id/approve", s.ApproveComment)
	admin.Post("/:id/reject", s.RejectComment)
	admin.Post("/:id/spam", s.MarkCommentSpam)
	admin.Post("/posts/:postId/resync", s.ResyncPost)
	admin.Get("/flags", s.FeatureFlags)
}

// FeatureFlags handles GET /api/admin/comments/flags
func (s *Server) FeatureFlags(c *fiber.Ctx) error {
	return c.JSON(s.flags.Values())
}

// LivenessCheck handles liveness checks
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "up",
		"time":   time.Now(),
	})
}

// ReadinessCheck reports database and Redis health. Redis is optional; its
// absence is reported but does not fail readiness.
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
	overall := "healthy"
	if dbStatus != "healthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overall = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overall,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now(),
	})
}

// AdminRequired rejects requests whose actor is not an administrator.
func (s *Server) AdminRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !authz.CanModerate(actorFrom(c)) {
			return respondWithError(c, models.NewForbiddenError("Admin access required"))
		}
		return c.Next()
	}
}

// Start listens on the configured port until Shutdown.
func (s *Server) Start() error {
	observability.Logger.Info("Server starting", "port", s.config.Port)
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown stops the HTTP server and closes the database and Redis.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.app.ShutdownWithContext(ctx); err != nil {
		observability.Logger.Error("error shutting down HTTP server", "error", err)
	}
	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			observability.Logger.Error("error closing sql DB", "error", cerr)
		}
	}
	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			observability.Logger.Error("error closing redis", "error", rerr)
		}
	}
	observability.Logger.Info("Server shutdown complete")
	return nil
}
