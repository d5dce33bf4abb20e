package server

import (
	"context"
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/nickloopdsp/MC-Instagram-sub000/internal/auth"
	"github.com/nickloopdsp/MC-Instagram-sub000/internal/handlers"
)

type Server struct {
	echo *echo.Echo
	addr string
}

// shouldSkipJWT exempts the public surface: health checks, the Meta webhook
// endpoints, and login itself. Everything else requires a token.
func shouldSkipJWT(path string) bool {
	switch path {
	case "/ping", "/health", "/webhook", "/auth/login":
		return true
	}
	return false
}

func NewServer(
	log *slog.Logger,
	addr string,
	jwtSecret string,
	pingHandler *handlers.PingHandler,
	authHandler *handlers.AuthHandler,
	webhookHandler *handlers.WebhookHandler,
	eventsHandler *handlers.EventsHandler,
) *Server {
	if log == nil {
		log = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:    true,
		LogStatus: true,
		LogMethod: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Info("request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status))
			return nil
		},
	}))
	e.Use(auth.JWTMiddleware(jwtSecret, func(c echo.Context) bool {
		return shouldSkipJWT(c.Request().URL.Path)
	}))

	if pingHandler != nil {
		pingHandler.Register(e)
	}
	if authHandler != nil {
		authHandler.Register(e)
	}
	if webhookHandler != nil {
		webhookHandler.Register(e)
	}
	if eventsHandler != nil {
		eventsHandler.Register(e)
	}

	return &Server{
		echo: e,
		addr: addr,
	}
}

func (s *Server) Start() error {
	return s.echo.Start(s.addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
