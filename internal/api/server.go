// Package api exposes the webhook receiver: an HTTP surface external mail
// transports push new-email notifications into. Notifications are queued in
// SQLite; the reactor drains and processes them.
package api

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/davidh/jarvis/internal/api/middleware"
	"github.com/davidh/jarvis/internal/auth"
	"github.com/davidh/jarvis/internal/db"
)

// Server represents the webhook API server
type Server struct {
	echo *echo.Echo
	db   *db.DB
	addr string
}

// Config holds server configuration
type Config struct {
	Addr        string            // e.g., ":8787"
	TokenConfig *auth.TokenConfig // shared-secret JWT configuration
}

// NewEmailRequest is the webhook payload for a pushed email notification
type NewEmailRequest struct {
	MessageID string `json:"message_id"`
	From      string `json:"from"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
}

// NewServer creates a new webhook API server
func NewServer(database *db.DB, cfg Config) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.Recover())
	e.Use(echomw.Logger())

	s := &Server{
		echo: e,
		db:   database,
		addr: cfg.Addr,
	}

	e.GET("/healthz", s.handleHealth)

	webhook := e.Group("/webhook", middleware.JWTAuth(cfg.TokenConfig))
	webhook.POST("/new-email", s.handleNewEmail)

	return s
}

// Start runs the server until Shutdown is called
func (s *Server) Start() error {
	return s.echo.Start(s.addr)
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Echo exposes the underlying router, used by tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// handleNewEmail enqueues a pushed email for the reactor. The handler only
// records the notification; all processing happens on the reactor's cycle so
// a slow model call never blocks the webhook sender.
func (s *Server) handleNewEmail(c echo.Context) error {
	var req NewEmailRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.From == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "from is required")
	}

	email, err := s.db.EnqueueEmail(req.MessageID, req.From, req.Subject, req.Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to enqueue email")
	}

	return c.JSON(http.StatusAccepted, map[string]string{
		"status": "queued",
		"id":     email.ID,
	})
}
