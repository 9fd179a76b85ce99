package server

import (
	"context"
	"gym-billing-reconciler/internal/handler"
	authmw "gym-billing-reconciler/internal/middleware"
	"gym-billing-reconciler/internal/service"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Server struct {
	echo           *echo.Echo
	webhookHandler *handler.WebhookHandler
	adminHandler   *handler.AdminHandler
	adminToken     string
}

func NewServer(webhookService service.WebhookService, adminService service.AdminService, adminToken string, log *zap.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				log.Warn("request", append(fields, zap.Error(v.Error))...)
				return nil
			}
			log.Info("request", fields...)
			return nil
		},
	}))
	e.Use(middleware.Recover())

	s := &Server{
		echo:           e,
		webhookHandler: handler.NewWebhookHandler(webhookService),
		adminHandler:   handler.NewAdminHandler(adminService),
		adminToken:     adminToken,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := s.echo.Group("/api")

	api.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// -------- stripe webhooks --------
	api.POST("/webhooks/stripe", s.webhookHandler.StripeWebhook)

	// -------- admin --------
	admin := api.Group("/admin", authmw.AdminAuth(s.adminToken))
	admin.GET("/webhook-events/failed", s.adminHandler.ListFailedEvents)
	admin.POST("/memberships/fix-duplicates", s.adminHandler.FixDuplicateMemberships)
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
