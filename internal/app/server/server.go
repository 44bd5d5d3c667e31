package server

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/shortspace/shortspace/internal/app/destcheck"
	"github.com/shortspace/shortspace/internal/app/ratelimit"
	"github.com/shortspace/shortspace/internal/app/repository"
	"github.com/shortspace/shortspace/internal/app/service"
	"github.com/shortspace/shortspace/internal/app/settings"
	inthttp "github.com/shortspace/shortspace/internal/http/handler"
	"github.com/shortspace/shortspace/internal/http/middleware"
	"go.uber.org/zap"
)

// Dependencies bundles everything the HTTP server needs wired in.
type Dependencies struct {
	Logger   *zap.Logger
	Domains  *service.DomainService
	Resolver *service.Resolver
	Creation *service.CreationService
	Settings settings.Provider
	Codes    repository.ShortCodeRepository
	// Checker is nil when destination validation is disabled.
	Checker *destcheck.Checker
	// Activity is nil when the event pipeline is not connected.
	Activity *service.ActivityPublisher
	// Limiter guards the API surface; the creation service holds its own
	// reference for the anon_create action.
	Limiter *ratelimit.Limiter
	Secret  []byte
}

// Server wraps the Fiber application and its dependencies.
type Server struct {
	app  *fiber.App
	deps Dependencies
}

// New creates a new HTTP server instance with routes registered.
func New(deps Dependencies) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{app: app, deps: deps}
	s.registerRoutes()
	return s
}

// App exposes the underlying Fiber app, used by tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen starts the Fiber server on the given address.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the Fiber server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) registerRoutes() {
	log := s.deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	s.app.Use(middleware.RequestID())
	s.app.Use(middleware.Recovery(log))
	s.app.Use(middleware.Logger(log))
	s.app.Use(middleware.CORS())

	if s.deps.Limiter != nil {
		s.app.Use("/api", middleware.RateLimit(s.deps.Limiter, "api", log))
	}

	api := inthttp.NewAPIHandler(inthttp.APIDeps{
		Logger:   log,
		Domains:  s.deps.Domains,
		Creation: s.deps.Creation,
		Codes:    s.deps.Codes,
		Activity: s.deps.Activity,
	})
	api.Register(s.app)

	// Registered last: /:code is a catch-all.
	redirect := inthttp.NewRedirectHandler(inthttp.RedirectDeps{
		Logger:   log,
		Domains:  s.deps.Domains,
		Resolver: s.deps.Resolver,
		Settings: s.deps.Settings,
		Checker:  s.deps.Checker,
		Activity: s.deps.Activity,
		Secret:   s.deps.Secret,
	})
	redirect.Register(s.app)
}
