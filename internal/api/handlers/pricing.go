package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"pricebridge/internal/integrations"
	"pricebridge/internal/logger"
	"pricebridge/internal/models"
	"pricebridge/internal/pricing"
)

type PricingHandler struct {
	provider *models.Provider
	registry *integrations.Registry
	logger   *logger.Logger
}

func NewPricingHandler(provider *models.Provider, registry *integrations.Registry, log *logger.Logger) *PricingHandler {
	return &PricingHandler{
		provider: provider,
		registry: registry,
		logger:   log,
	}
}

type computeRequest struct {
	StoreID           string  `json:"store_id"`
	BasePrice         float64 `json:"base_price" binding:"required"`
	PlatformDiscounts float64 `json:"platform_discounts"`
	CustomerBudget    float64 `json:"customer_budget" binding:"required"`
	Category          string  `json:"category" binding:"required"`
	CustomerID        string  `json:"customer_id"`
}

func (h *PricingHandler) settings(c *gin.Context, storeID string) (pricing.Settings, bool) {
	if storeID == "" {
		return pricing.DefaultSettings(), true
	}
	settings, err := h.provider.PricingSettings(c.Request.Context(), storeID)
	if err != nil {
		h.logger.Error("Failed to load budget settings: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load budget settings"})
		return pricing.Settings{}, false
	}
	return settings, true
}

// Compute runs the engine without touching any platform.
func (h *PricingHandler) Compute(c *gin.Context) {
	var request computeRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	settings, ok := h.settings(c, request.StoreID)
	if !ok {
		return
	}

	result := pricing.ComputeForCustomer(
		request.BasePrice,
		request.PlatformDiscounts,
		request.CustomerBudget,
		integrations.BudgetCategory(request.Category),
		settings,
	)
	c.JSON(http.StatusOK, gin.H{"pricing": result})
}

// ApplyToOrder computes the budget price and pushes it onto a platform
// order. The adapter reports failures in the result body; this endpoint
// returns 200 either way so callers always get the tagged outcome.
func (h *PricingHandler) ApplyToOrder(c *gin.Context) {
	var request computeRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	storeID := c.Param("storeId")
	platform := integrations.Platform(c.Param("platform"))

	adapter, err := h.registry.Resolve(c.Request.Context(), storeID, platform)
	if err != nil {
		var missing *integrations.ConfigurationMissing
		if errors.As(err, &missing) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("Failed to resolve adapter: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve integration"})
		return
	}

	settings, ok := h.settings(c, storeID)
	if !ok {
		return
	}

	result := pricing.ComputeForCustomer(
		request.BasePrice,
		request.PlatformDiscounts,
		request.CustomerBudget,
		integrations.BudgetCategory(request.Category),
		settings,
	)

	update := adapter.ApplyBudgetPricing(c.Request.Context(), c.Param("orderId"), result.ToBudgetPricing(request.CustomerID))
	c.JSON(http.StatusOK, gin.H{
		"pricing": result,
		"order":   update,
	})
}
