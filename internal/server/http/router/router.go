package router

import (
	"log/slog"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"github.com/polkiloo/marketplace/internal/config"
	"github.com/polkiloo/marketplace/internal/domain/model"
	"github.com/polkiloo/marketplace/internal/server/http/handlers"
	"github.com/polkiloo/marketplace/internal/server/http/middleware"
)

// maxRequestBody caps inflated request bodies.
const maxRequestBody = 1 << 20

type setupParams struct {
	fx.In

	Facade handlers.MarketplaceFacade
	Config *config.Config
	Logger *slog.Logger
}

// Setup configures gin router with handlers and middleware.
func Setup(p setupParams) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestLogger(p.Logger))
	engine.Use(middleware.DecompressRequest(maxRequestBody))
	engine.Use(gzip.Gzip(gzip.DefaultCompression))

	orderHandler := handlers.NewOrderHandler(p.Facade, p.Logger)
	mpesaHandler := handlers.NewMpesaHandler(p.Facade, p.Logger)
	healthHandler := handlers.NewHealthHandler(p.Facade, p.Logger)

	engine.GET("/healthz", healthHandler.Check)

	api := engine.Group("/api")
	api.Use(middleware.Identify(p.Facade))

	orders := api.Group("/orders")
	orders.POST("", orderHandler.Create)
	orders.PUT("/payment", orderHandler.UpdatePayment)
	orders.GET("", middleware.RequireRoles(model.RoleBuyer, model.RoleSeller, model.RoleAdmin), orderHandler.List)
	orders.PUT("/:number/status", middleware.RequireRoles(model.RoleSeller, model.RoleAdmin), orderHandler.UpdateStatus)

	mpesa := api.Group("/mpesa")
	mpesa.POST("/stkpush", mpesaHandler.STKPush)
	mpesa.GET("/status/:checkoutID", mpesaHandler.Status)

	callback := engine.Group("/api/mpesa/callback")
	callback.Use(middleware.RateLimitByIP(p.Config.CallbackRPS, p.Config.CallbackBurst))
	callback.POST("", mpesaHandler.Callback)

	return engine
}
