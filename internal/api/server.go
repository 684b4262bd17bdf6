package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"pricebridge/internal/api/handlers"
	"pricebridge/internal/api/middleware"
	"pricebridge/internal/config"
	"pricebridge/internal/database"
	"pricebridge/internal/events"
	"pricebridge/internal/integrations"
	"pricebridge/internal/integrations/magento"
	"pricebridge/internal/integrations/shopify"
	"pricebridge/internal/integrations/woocommerce"
	"pricebridge/internal/logger"
	"pricebridge/internal/models"

	"github.com/gin-gonic/gin"
)

type Server struct {
	config   *config.Config
	logger   *logger.Logger
	db       *database.Database
	registry *integrations.Registry
	router   *gin.Engine
	server   *http.Server
}

// NewRegistry wires the three platform builders with per-platform budgets
// from config. Both entrypoints, API and worker, build their registry here.
func NewRegistry(cfg *config.Config, log *logger.Logger, db *database.Database) *integrations.Registry {
	window := time.Duration(cfg.RateWindowSeconds) * time.Second
	ttl := time.Duration(cfg.CacheTTLSeconds) * time.Second
	recorder := &integrations.LogRecorder{Logger: log}

	builders := map[integrations.Platform]integrations.Builder{
		integrations.PlatformShopify: shopify.NewBuilder(shopify.Config{
			ClientID:        cfg.ShopifyClientID,
			ClientSecret:    cfg.ShopifyClientSecret,
			RateLimit:       cfg.ShopifyRateLimit,
			RateWindow:      window,
			CacheMaxEntries: cfg.CacheMaxEntries,
			CacheTTL:        ttl,
			Recorder:        recorder,
			Logger:          log,
		}),
		integrations.PlatformWooCommerce: woocommerce.NewBuilder(woocommerce.Config{
			RateLimit:       cfg.WooCommerceRateLimit,
			RateWindow:      window,
			CacheMaxEntries: cfg.CacheMaxEntries,
			CacheTTL:        ttl,
			Recorder:        recorder,
			Logger:          log,
		}),
		integrations.PlatformMagento: magento.NewBuilder(magento.Config{
			RateLimit:       cfg.MagentoRateLimit,
			RateWindow:      window,
			CacheMaxEntries: cfg.CacheMaxEntries,
			CacheTTL:        ttl,
			Recorder:        recorder,
			Logger:          log,
		}),
	}

	provider := models.NewProvider(db.DB)
	return integrations.NewRegistry(provider, builders, log)
}

func New(cfg *config.Config, log *logger.Logger, db *database.Database, registry *integrations.Registry, publisher *events.Publisher) *Server {
	// Set Gin mode
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Middleware
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.CORS())
	router.Use(middleware.Throttle(cfg.RouteRateLimit, time.Duration(cfg.RouteRateWindowSeconds)*time.Second))

	provider := models.NewProvider(db.DB)

	// Initialize handlers
	integrationHandler := handlers.NewIntegrationHandler(db.DB, log, cfg, registry)
	catalogHandler := handlers.NewCatalogHandler(registry, log)
	pricingHandler := handlers.NewPricingHandler(provider, registry, log)
	webhookHandler := handlers.NewWebhookHandler(registry, publisher, log)

	// Routes
	v1 := router.Group("/api/v1")
	{
		// Integrations
		integrationsGroup := v1.Group("/integrations")
		{
			integrationsGroup.GET("", integrationHandler.List)
			integrationsGroup.POST("", integrationHandler.Create)
			integrationsGroup.DELETE("/:id", integrationHandler.Delete)
			integrationsGroup.POST("/:platform/install", integrationHandler.Install)
			integrationsGroup.GET("/:platform/callback", integrationHandler.Callback)
		}

		// Store-scoped platform reads and writes
		stores := v1.Group("/stores/:storeId/:platform")
		{
			stores.GET("/products", catalogHandler.ListProducts)
			stores.GET("/products/:id", catalogHandler.GetProduct)
			stores.GET("/customers/:id", catalogHandler.GetCustomer)
			stores.GET("/customers/:id/purchases", catalogHandler.GetPurchaseHistory)
			stores.POST("/discounts", catalogHandler.CreateDiscount)
			stores.POST("/webhooks", catalogHandler.RegisterWebhooks)
			stores.DELETE("/webhooks", catalogHandler.UnregisterWebhooks)
			stores.POST("/orders/:orderId/budget-pricing", pricingHandler.ApplyToOrder)
		}

		// Pricing engine
		v1.POST("/pricing/compute", pricingHandler.Compute)

		// Webhook ingress
		v1.POST("/webhooks/:platform/:storeId", webhookHandler.Handle)

		// Admin
		v1.POST("/admin/registry/invalidate", integrationHandler.InvalidateRegistry)
	}

	return &Server{
		config:   cfg,
		logger:   log,
		db:       db,
		registry: registry,
		router:   router,
	}
}

func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%s", s.config.APIHost, s.config.APIPort)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("Starting server on " + addr)
	return s.server.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	return s.server.Shutdown(ctx)
}

func (s *Server) Router() *gin.Engine {
	return s.router
}
