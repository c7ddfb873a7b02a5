package main

import (
	"cointoss-service/internal/assign"
	"cointoss-service/internal/handler"
	"cointoss-service/internal/middleware"
	"cointoss-service/internal/store"
	"cointoss-service/pkg/config"
	"cointoss-service/pkg/database"
	"cointoss-service/pkg/logger"
	"cointoss-service/prometheus"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

func main() {
	// Load configuration from .env file and environment variables
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger with config
	logger.InitLogger(cfg)
	log := logger.GetLogger()
	log.Info("Starting coin toss service...", zap.String("environment", cfg.Server.Env))

	// Initialize database
	if err := database.InitDB(cfg); err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	log.Info("Database connection established")

	// Wire the coin-toss engine and the tenant-scoped store
	engine := assign.New(assign.UniformSource{}, log)
	st := store.New(database.GetDB(), engine)
	h := handler.New(st)

	// Initialize Echo framework
	e := echo.New()

	// Apply global middleware - order matters
	e.Use(echomiddleware.Recover()) // Add recovery middleware
	e.Use(echomiddleware.CORS())    // Add CORS middleware
	e.Use(middleware.RequestIDMiddleware)
	e.Use(logger.Middleware(log))
	e.Use(prometheus.MetricsMiddleware())

	// Public routes - no tenant context required
	e.GET("/health", h.HealthCheck)
	e.GET("/metrics", handler.MetricsHandler)

	// Tenant-scoped API - the tenant id comes from the URL path and is
	// resolved before any handler runs
	api := e.Group("/api/v1/:tenant_id")
	api.Use(middleware.TenantMiddleware)

	// Project - one per tenant
	api.GET("/project", h.GetProject)
	api.POST("/project", h.CreateProject)
	api.PUT("/project", h.UpdateProject)

	// Customers - creation and update may trigger the coin toss
	api.POST("/customers", h.CreateCustomer)
	api.GET("/customers", h.GetCustomerByNumber)
	api.GET("/customers/search", h.SearchCustomers)
	api.GET("/customers/report", h.CustomersPerGroup)
	api.GET("/customers/:id", h.GetCustomer)
	api.PATCH("/customers/:id", h.UpdateCustomer)

	// Users
	api.GET("/users", h.ListUsers)
	api.POST("/users", h.CreateUser)
	api.GET("/users/:id", h.GetUser)
	api.PUT("/users/:id", h.UpdateUser)
	api.DELETE("/users/:id", h.DeleteUser)

	// Order - tenant provisioning
	api.POST("/order", h.PlaceOrder)
	api.GET("/order", h.CheckOrder)

	// Get server port from configuration
	port := cfg.Server.Port

	// Start server
	log.Info("Starting server", zap.String("port", port))
	if err := e.Start(":" + port); err != nil {
		log.Fatal("Failed to start server", zap.Error(err))
	}
}
