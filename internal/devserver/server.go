// Package devserver is a local stand-in for the remote post collection. It serves the same REST
// contract from a gorm database so the client can be developed and tested offline.
package devserver

import (
	"net/http"

	"postsync/internal/models"
	"postsync/internal/observability"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus"
)

// CollectionPath is where the collection is mounted.
const CollectionPath = "/careers"

// Server holds the handlers' dependencies.
type Server struct {
	repo PostRepository
	prom *fiberprometheus.FiberPrometheus
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics exposes request metrics registered on reg at /metrics.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(s *Server) {
		s.prom = fiberprometheus.NewWithRegistry(reg, "postsync-devserver", "postsync", "devserver", nil)
	}
}

// NewServer creates a Server over repo.
func NewServer(repo PostRepository, opts ...Option) *Server {
	s := &Server{repo: repo}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// App builds the fiber application.
func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "postsync devserver",
		DisableStartupMessage: true,
		BodyLimit:             16 * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			observability.Logger.ErrorContext(c.UserContext(), "unhandled error", "error", err.Error())
			return models.RespondWithError(c, fiber.StatusInternalServerError, models.NewInternalError(err))
		},
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(ContextMiddleware())
	if s.prom != nil {
		s.prom.RegisterAt(app, "/metrics")
		app.Use(s.prom.Middleware)
	}
	app.Use(StructuredLogger())

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusOK)
	})

	posts := app.Group(CollectionPath)
	posts.Get("/", s.ListPosts)
	posts.Post("/", s.CreatePost)
	posts.Patch("/:id", s.UpdatePost)
	posts.Delete("/:id", s.DeletePost)

	return app
}
