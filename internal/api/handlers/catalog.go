package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"pricebridge/internal/integrations"
	"pricebridge/internal/logger"
)

// CatalogHandler serves normalized platform reads through the registry.
type CatalogHandler struct {
	registry *integrations.Registry
	logger   *logger.Logger
}

func NewCatalogHandler(registry *integrations.Registry, log *logger.Logger) *CatalogHandler {
	return &CatalogHandler{
		registry: registry,
		logger:   log,
	}
}

func (h *CatalogHandler) resolve(c *gin.Context) (integrations.Adapter, bool) {
	storeID := c.Param("storeId")
	platform := integrations.Platform(c.Param("platform"))

	adapter, err := h.registry.Resolve(c.Request.Context(), storeID, platform)
	if err != nil {
		var missing *integrations.ConfigurationMissing
		if errors.As(err, &missing) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return nil, false
		}
		h.logger.Error("Failed to resolve adapter: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve integration"})
		return nil, false
	}
	return adapter, true
}

// GetProduct distinguishes "doesn't exist" (404) from "platform is down"
// (502): upstream errors propagate, they are not absorbed.
func (h *CatalogHandler) GetProduct(c *gin.Context) {
	adapter, ok := h.resolve(c)
	if !ok {
		return
	}

	opts := integrations.FetchOptions{
		ForceRefresh: c.Query("force_refresh") == "true",
	}
	if maxAge := c.Query("max_age"); maxAge != "" {
		if seconds, err := strconv.Atoi(maxAge); err == nil && seconds > 0 {
			opts.MaxAge = time.Duration(seconds) * time.Second
		}
	}

	product, err := adapter.GetProduct(c.Request.Context(), c.Param("id"), opts)
	if err != nil {
		h.logger.Error("Failed to fetch product: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	if product == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"product": product})
}

func (h *CatalogHandler) ListProducts(c *gin.Context) {
	adapter, ok := h.resolve(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	page, err := adapter.GetProducts(c.Request.Context(), integrations.ListOptions{
		Limit:  limit,
		Cursor: c.Query("cursor"),
	})
	if err != nil {
		h.logger.Error("Failed to list products: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, page)
}

// GetCustomer absorbs transient upstream failures into an empty result to
// keep calling UIs resilient.
func (h *CatalogHandler) GetCustomer(c *gin.Context) {
	adapter, ok := h.resolve(c)
	if !ok {
		return
	}

	customer, err := adapter.GetCustomer(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.logger.Warn("Absorbing customer fetch failure: %v", err)
		c.JSON(http.StatusOK, gin.H{"customer": nil})
		return
	}
	if customer == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Customer not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"customer": customer})
}

func (h *CatalogHandler) GetPurchaseHistory(c *gin.Context) {
	adapter, ok := h.resolve(c)
	if !ok {
		return
	}

	purchases, err := adapter.GetCustomerPurchaseHistory(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.logger.Warn("Absorbing purchase history failure: %v", err)
		c.JSON(http.StatusOK, gin.H{"purchases": []integrations.Purchase{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"purchases": purchases})
}

// CreateDiscount propagates failures; callers must know creation failed.
func (h *CatalogHandler) CreateDiscount(c *gin.Context) {
	adapter, ok := h.resolve(c)
	if !ok {
		return
	}

	var spec integrations.DiscountRequest
	if err := c.ShouldBindJSON(&spec); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	discount, err := adapter.CreateDiscount(c.Request.Context(), spec)
	if err != nil {
		h.logger.Error("Failed to create discount: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"discount": discount})
}

// RegisterWebhooks subscribes the callback URL to the given topics.
func (h *CatalogHandler) RegisterWebhooks(c *gin.Context) {
	adapter, ok := h.resolve(c)
	if !ok {
		return
	}

	var request struct {
		CallbackURL string   `json:"callback_url" binding:"required"`
		Topics      []string `json:"topics" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	results := adapter.RegisterWebhooks(c.Request.Context(), request.CallbackURL, request.Topics)
	c.JSON(http.StatusOK, gin.H{"results": results})
}

func (h *CatalogHandler) UnregisterWebhooks(c *gin.Context) {
	adapter, ok := h.resolve(c)
	if !ok {
		return
	}

	var request struct {
		CallbackURL string `json:"callback_url" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := adapter.UnregisterWebhooks(c.Request.Context(), request.CallbackURL); err != nil {
		h.logger.Error("Failed to unregister webhooks: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Webhooks removed"})
}
