// Package server wires the HTTP routes of the marketplace core.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/sudo-init-do/govconnect/internal/admin"
	"github.com/sudo-init-do/govconnect/internal/alerts"
	"github.com/sudo-init-do/govconnect/internal/config"
	"github.com/sudo-init-do/govconnect/internal/domain"
	"github.com/sudo-init-do/govconnect/internal/messaging"
	mware "github.com/sudo-init-do/govconnect/internal/middleware"
	"github.com/sudo-init-do/govconnect/internal/requests"
	"github.com/sudo-init-do/govconnect/internal/reviews"
	"github.com/sudo-init-do/govconnect/internal/store"
	"github.com/sudo-init-do/govconnect/internal/uploads"
	"github.com/sudo-init-do/govconnect/internal/user"
)

type Deps struct {
	Config     *config.Config
	Store      store.Store
	Dispatcher alerts.Dispatcher
	Logger     *slog.Logger
	Now        func() time.Time
}

type Server struct {
	Echo     *echo.Echo
	Hub      *messaging.Hub
	Alerts   *alerts.Service
	Messages *messaging.Service
	Requests *requests.Service
	Reviews  *reviews.Service
}

// New builds every service on top of one store and registers the routes.
func New(d Deps) (*Server, error) {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	cfg := d.Config

	hub := messaging.NewHub(d.Logger)
	notifier := alerts.NewService(d.Store, d.Dispatcher, cfg.App.URL, alerts.WithLogger(d.Logger), alerts.WithClock(d.Now))
	msgSvc := messaging.NewService(d.Store, notifier, hub, messaging.WithLogger(d.Logger), messaging.WithClock(d.Now))
	reqSvc := requests.NewService(d.Store, notifier, hub, requests.WithLogger(d.Logger), requests.WithClock(d.Now))
	revSvc := reviews.NewService(d.Store, notifier, reviews.WithLogger(d.Logger), reviews.WithClock(d.Now))

	uploadHandler, err := uploads.NewHandler(cfg.Uploads, d.Logger)
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = mware.NewValidator()
	e.HTTPErrorHandler = mware.ErrorHandler(d.Logger)

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(mware.RequestLogger(d.Logger))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok", "service": "govconnect"})
	})
	e.GET("/ready", func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := d.Store.Ping(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "not_ready", "error": "store unreachable"})
		}
		return c.JSON(http.StatusOK, echo.Map{"status": "ready"})
	})

	e.Static(uploads.URLPrefix, uploadHandler.Dir())

	userHandler := user.NewHandler(d.Store)
	reviewHandler := reviews.NewHandler(revSvc, d.Store)
	e.GET("/vendors/:id", userHandler.GetVendorProfile)
	e.GET("/vendors/:id/reviews", reviewHandler.GetVendorReviews)

	// Protected routes
	api := e.Group("")
	api.Use(mware.JWTMiddleware(cfg.JWT.Secret))

	api.GET("/me", userHandler.Me)

	reqHandler := requests.NewHandler(reqSvc, d.Store)
	api.POST("/service-requests", reqHandler.Create, mware.RequireRoles(domain.RoleContractor))
	api.GET("/service-requests", reqHandler.List)
	api.GET("/service-requests/:id", reqHandler.Get)
	api.PATCH("/service-requests/:id/status", reqHandler.UpdateStatus)
	api.POST("/service-requests/:id/deliver", reqHandler.Deliver, mware.RequireRoles(domain.RoleVendor))
	api.POST("/service-requests/:id/extend", reqHandler.ExtendDelivery, mware.RequireRoles(domain.RoleVendor))

	msgHandler := messaging.NewHandler(msgSvc, d.Store, hub)
	api.POST("/messages", msgHandler.SendMessage)
	api.GET("/service-requests/:id/messages", msgHandler.ListMessages)
	api.GET("/service-requests/:id/messages/unread-count", msgHandler.UnreadCount)
	api.GET("/service-requests/:id/ws", msgHandler.ThreadWS)
	api.GET("/conversations", msgHandler.ListConversations)
	api.POST("/conversations/:id/mark-read", msgHandler.MarkRead)

	alertHandler := alerts.NewHandler(notifier)
	api.GET("/notifications", alertHandler.ListNotifications)
	api.GET("/notifications/unread-count", alertHandler.UnreadCount)
	api.PATCH("/notifications/:id/read", alertHandler.MarkNotificationRead)

	api.POST("/reviews", reviewHandler.CreateReview)

	api.POST("/upload", uploadHandler.Upload, echomw.RateLimiter(echomw.NewRateLimiterMemoryStore(20)))

	// Admin routes
	adminGroup := e.Group("/admin")
	adminGroup.Use(mware.JWTMiddleware(cfg.JWT.Secret))
	adminGroup.Use(mware.AdminGuard)

	adminHandler := admin.NewHandler(reqSvc)
	adminGroup.GET("/request-logs", adminHandler.RequestLogs)
	adminGroup.GET("/stats", adminHandler.Stats)
	adminGroup.GET("/service-requests", adminHandler.ListServiceRequests)

	return &Server{
		Echo:     e,
		Hub:      hub,
		Alerts:   notifier,
		Messages: msgSvc,
		Requests: reqSvc,
		Reviews:  revSvc,
	}, nil
}
