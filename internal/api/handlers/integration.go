package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"pricebridge/internal/config"
	"pricebridge/internal/integrations"
	"pricebridge/internal/integrations/shopify"
	"pricebridge/internal/logger"
	"pricebridge/internal/models"
)

type IntegrationHandler struct {
	db       *gorm.DB
	logger   *logger.Logger
	config   *config.Config
	registry *integrations.Registry
}

func NewIntegrationHandler(db *gorm.DB, log *logger.Logger, cfg *config.Config, registry *integrations.Registry) *IntegrationHandler {
	return &IntegrationHandler{
		db:       db,
		logger:   log,
		config:   cfg,
		registry: registry,
	}
}

// Create saves (or replaces) a store's credentials for one platform and
// drops any memoized adapter so the next resolve picks them up.
func (h *IntegrationHandler) Create(c *gin.Context) {
	var request struct {
		StoreID       string `json:"store_id" binding:"required"`
		StoreName     string `json:"store_name"`
		Platform      string `json:"platform" binding:"required"`
		ShopDomain    string `json:"shop_domain" binding:"required"`
		APIKey        string `json:"api_key"`
		APISecret     string `json:"api_secret"`
		AccessToken   string `json:"access_token"`
		RefreshToken  string `json:"refresh_token"`
		WebhookSecret string `json:"webhook_secret"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !validPlatform(request.Platform) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported platform"})
		return
	}

	if err := h.ensureStore(request.StoreID, request.StoreName, request.ShopDomain); err != nil {
		h.logger.Error("Failed to ensure store record: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save store"})
		return
	}

	integration := models.StoreIntegration{
		StoreID:       request.StoreID,
		Platform:      request.Platform,
		ShopDomain:    request.ShopDomain,
		APIKey:        request.APIKey,
		APISecret:     request.APISecret,
		AccessToken:   request.AccessToken,
		RefreshToken:  request.RefreshToken,
		WebhookSecret: request.WebhookSecret,
		Status:        string(models.IntegrationStatusActive),
	}

	var existing models.StoreIntegration
	err := h.db.First(&existing, "store_id = ? AND platform = ?", request.StoreID, request.Platform).Error
	switch {
	case err == nil:
		integration.ID = existing.ID
		if err := h.db.Model(&existing).Updates(&integration).Error; err != nil {
			h.logger.Error("Failed to update integration: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save integration"})
			return
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := h.db.Create(&integration).Error; err != nil {
			h.logger.Error("Failed to create integration: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save integration"})
			return
		}
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up integration"})
		return
	}

	h.registry.Invalidate(request.StoreID, integrations.Platform(request.Platform))

	c.JSON(http.StatusOK, gin.H{
		"message":        "Integration saved",
		"integration_id": integration.ID,
	})
}

// ensureStore creates the store record the integration hangs off when it
// does not exist yet. The name falls back to the shop domain.
func (h *IntegrationHandler) ensureStore(storeID, name, shopDomain string) error {
	if name == "" {
		name = shopDomain
	}
	store := models.Store{ID: storeID, Name: name}
	return h.db.Where("id = ?", storeID).FirstOrCreate(&store).Error
}

func (h *IntegrationHandler) List(c *gin.Context) {
	var results []models.StoreIntegration
	query := h.db
	if storeID := c.Query("store_id"); storeID != "" {
		query = query.Where("store_id = ?", storeID)
	}
	if err := query.Find(&results).Error; err != nil {
		h.logger.Error("Failed to list integrations: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list integrations"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"integrations": results})
}

func (h *IntegrationHandler) Delete(c *gin.Context) {
	id := c.Param("id")

	var integration models.StoreIntegration
	if err := h.db.First(&integration, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Integration not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch integration"})
		return
	}

	if err := h.db.Delete(&integration).Error; err != nil {
		h.logger.Error("Failed to delete integration: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete integration"})
		return
	}

	h.registry.Invalidate(integration.StoreID, integrations.Platform(integration.Platform))
	c.JSON(http.StatusOK, gin.H{"message": "Integration deleted"})
}

// Install starts the Shopify OAuth flow.
func (h *IntegrationHandler) Install(c *gin.Context) {
	if c.Param("platform") != string(integrations.PlatformShopify) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "install flow is only available for shopify"})
		return
	}

	var request struct {
		ShopDomain  string `json:"shop_domain" binding:"required"`
		RedirectURI string `json:"redirect_uri" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	authURL, state, err := shopify.AuthorizeURL(h.config.ShopifyClientID, request.ShopDomain, request.RedirectURI)
	if err != nil {
		h.logger.Error("Failed to generate auth URL: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate authorization URL"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"auth_url": authURL,
		"state":    state,
		"message":  "Redirect user to the auth_url to complete OAuth flow",
	})
}

// Callback finishes the OAuth flow: exchanges the code and stores the
// resulting token as the store's credentials.
func (h *IntegrationHandler) Callback(c *gin.Context) {
	if c.Param("platform") != string(integrations.PlatformShopify) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "callback flow is only available for shopify"})
		return
	}

	code := c.Query("code")
	shop := c.Query("shop")
	storeID := c.Query("store_id")
	if code == "" || shop == "" || storeID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required parameters"})
		return
	}

	adapter := shopify.New(storeID, integrations.Credentials{ShopDomain: shop}, h.shopifyConfig())

	auth, err := adapter.Authenticate(c.Request.Context(), integrations.Credentials{
		ShopDomain: shop,
		APIKey:     code,
	})
	if err != nil {
		h.logger.Error("Failed to exchange code for token: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to exchange authorization code"})
		return
	}

	integration := models.StoreIntegration{
		StoreID:     storeID,
		Platform:    string(integrations.PlatformShopify),
		ShopDomain:  shop,
		AccessToken: auth.AccessToken,
		Status:      string(models.IntegrationStatusActive),
	}
	if err := h.db.Create(&integration).Error; err != nil {
		h.logger.Error("Failed to save integration: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save integration"})
		return
	}

	h.registry.Invalidate(storeID, integrations.PlatformShopify)

	c.JSON(http.StatusOK, gin.H{
		"message":        "Shopify store connected successfully",
		"integration_id": integration.ID,
	})
}

// shopifyConfig builds a full adapter config from service config. The
// OAuth callback constructs its adapter by hand (no credentials are stored
// yet, so the registry cannot resolve one) and must still carry the real
// rate window and cache bounds.
func (h *IntegrationHandler) shopifyConfig() shopify.Config {
	return shopify.Config{
		ClientID:        h.config.ShopifyClientID,
		ClientSecret:    h.config.ShopifyClientSecret,
		RateLimit:       h.config.ShopifyRateLimit,
		RateWindow:      time.Duration(h.config.RateWindowSeconds) * time.Second,
		CacheMaxEntries: h.config.CacheMaxEntries,
		CacheTTL:        time.Duration(h.config.CacheTTLSeconds) * time.Second,
		Logger:          h.logger,
	}
}

// InvalidateRegistry exposes selective adapter invalidation: both fields
// clear one entry, store alone clears its platforms, neither clears all.
func (h *IntegrationHandler) InvalidateRegistry(c *gin.Context) {
	var request struct {
		StoreID  string `json:"store_id"`
		Platform string `json:"platform"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	n := h.registry.Invalidate(request.StoreID, integrations.Platform(request.Platform))
	c.JSON(http.StatusOK, gin.H{"invalidated": n})
}

func validPlatform(p string) bool {
	switch integrations.Platform(p) {
	case integrations.PlatformShopify, integrations.PlatformWooCommerce, integrations.PlatformMagento:
		return true
	}
	return false
}
