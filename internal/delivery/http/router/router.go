// Package router contains routing and server setup for the HTTP delivery.
package router

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/fx"

	"github.com/LuJie0403/openclaw-expenses/config"
	"github.com/LuJie0403/openclaw-expenses/internal/delivery/http/middleware"
	"github.com/LuJie0403/openclaw-expenses/internal/delivery/http/router/handler"
)

type RouterParams struct {
	fx.In

	Config         *config.Config
	AuthHandler    *handler.AuthHandler
	QRLoginHandler *handler.QRLoginHandler
	ReportHandler  *handler.ReportHandler
	AuthMiddleware *middleware.AuthMiddleware
}

// router holds all the handlers that need to be registered.
type router struct {
	cfg            *config.Config
	authHandler    *handler.AuthHandler
	qrLoginHandler *handler.QRLoginHandler
	reportHandler  *handler.ReportHandler
	authMiddleware *middleware.AuthMiddleware
}

// NewRouter is the constructor for the Router.
// Fx will inject the required handlers here.
func NewRouter(params RouterParams) *router {
	return &router{
		cfg:            params.Config,
		authHandler:    params.AuthHandler,
		qrLoginHandler: params.QRLoginHandler,
		reportHandler:  params.ReportHandler,
		authMiddleware: params.AuthMiddleware,
	}
}

// RegisterRoutes sets up all the API routes for the application.
func (r *router) RegisterRoutes(e *echo.Echo) {
	// Health check endpoint
	e.GET("/health", handler.HealthCheck)

	api := e.Group("/api")

	// Auth routes
	authGroup := api.Group("/auth")
	{
		authGroup.POST("/login", r.authHandler.Login)
		authGroup.GET("/me", r.authHandler.Me, r.authMiddleware.Authenticate)
	}

	// The whole QR login surface is mounted only when the feature is enabled.
	if r.cfg.Wechat != nil && r.cfg.Wechat.Enabled {
		wechatGroup := authGroup.Group("/wechat")
		{
			wechatGroup.POST("/qr/session", r.qrLoginHandler.CreateSession)
			wechatGroup.GET("/qr/session/:session_id", r.qrLoginHandler.GetStatus)
			wechatGroup.GET("/qr/session/:session_id/qrcode.png", r.qrLoginHandler.QRCodeImage)
			wechatGroup.POST("/qr/exchange", r.qrLoginHandler.Exchange)
			wechatGroup.GET("/callback", r.qrLoginHandler.Callback)
		}
	}

	// Reporting routes require authentication
	expensesGroup := api.Group("/expenses")
	expensesGroup.Use(r.authMiddleware.Authenticate)
	{
		expensesGroup.GET("/summary", r.reportHandler.Summary)
		expensesGroup.GET("/monthly", r.reportHandler.Monthly)
		expensesGroup.GET("/categories", r.reportHandler.Categories)
		expensesGroup.GET("/payment-methods", r.reportHandler.PaymentMethods)
		expensesGroup.GET("/timeline", r.reportHandler.Timeline)
		expensesGroup.GET("/graph", r.reportHandler.Graph)
	}
}
