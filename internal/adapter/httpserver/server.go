package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/sessions"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"

	"github.com/pscheid92/moodroom/internal/domain"
	"github.com/pscheid92/moodroom/internal/platform/config"
)

// roomService is the slice of app.Room the HTTP layer drives.
type roomService interface {
	SubmitVote(ctx context.Context, participantID string, emotion domain.Emotion) error
	Vote(ctx context.Context, participantID string) (*domain.Vote, bool, error)
	Distribution(ctx context.Context) (domain.Distribution, error)
	SelectNext(ctx context.Context) (domain.Pick, error)
	Stats(ctx context.Context, limit int) (domain.Stats, error)
	Evaluate(ctx context.Context) (domain.Satisfaction, error)
	Reset(ctx context.Context) error
}

type Server struct {
	echo   *echo.Echo
	config *config.Config
	clock  clockwork.Clock

	room         roomService
	sessionStore *sessions.CookieStore
	healthChecks []HealthCheck

	metricsHandler http.Handler
	middlewares    []echo.MiddlewareFunc

	startTime time.Time
}

// Option customizes a Server before its routes are registered.
type Option func(*Server)

// WithMetrics serves handler on /metrics and installs mw for every route.
func WithMetrics(handler http.Handler, mw ...echo.MiddlewareFunc) Option {
	return func(s *Server) {
		s.metricsHandler = handler
		s.middlewares = append(s.middlewares, mw...)
	}
}

func WithHealthChecks(checks ...HealthCheck) Option {
	return func(s *Server) {
		s.healthChecks = append(s.healthChecks, checks...)
	}
}

func NewServer(cfg *config.Config, room roomService, clock clockwork.Clock, opts ...Option) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:         e,
		config:       cfg,
		clock:        clock,
		room:         room,
		sessionStore: setupSessionStore(cfg),
		startTime:    clock.Now(),
	}
	for _, opt := range opts {
		opt(srv)
	}

	srv.registerRoutes()
	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// ServeHTTP exposes the router for tests and embedding.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

func setupSessionStore(cfg *config.Config) *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.SessionMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	}
	return store
}
