package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"pricebridge/internal/events"
	"pricebridge/internal/integrations"
	"pricebridge/internal/logger"
)

// WebhookHandler is the ingress for platform webhooks. The raw wire bytes
// go to the adapter's verifier untouched; only verified payloads reach the
// invalidation pipeline.
type WebhookHandler struct {
	registry  *integrations.Registry
	publisher *events.Publisher
	logger    *logger.Logger
}

func NewWebhookHandler(registry *integrations.Registry, publisher *events.Publisher, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		registry:  registry,
		publisher: publisher,
		logger:    log,
	}
}

func (h *WebhookHandler) Handle(c *gin.Context) {
	storeID := c.Param("storeId")
	platform := integrations.Platform(c.Param("platform"))

	rawBody, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read body"})
		return
	}

	adapter, err := h.registry.Resolve(c.Request.Context(), storeID, platform)
	if err != nil {
		var missing *integrations.ConfigurationMissing
		if errors.As(err, &missing) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("Failed to resolve adapter for webhook: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve integration"})
		return
	}

	headers := make(map[string]string, len(c.Request.Header))
	for name, values := range c.Request.Header {
		if len(values) > 0 {
			headers[name] = values[0]
		}
	}

	if !adapter.ValidateWebhook(headers, rawBody) {
		h.logger.Warn("Rejected %s webhook for store %s: %v", platform, storeID, integrations.ErrSignatureInvalid)
		c.JSON(http.StatusUnauthorized, gin.H{"error": integrations.ErrSignatureInvalid.Error()})
		return
	}

	topic := webhookTopic(platform, headers)
	event := events.WebhookEvent{
		StoreID:  storeID,
		Platform: string(platform),
		Topic:    topic,
	}
	if err := h.publisher.Publish(c.Request.Context(), event); err != nil {
		// the webhook itself was valid; invalidation just runs late
		h.logger.Error("Failed to publish webhook event: %v", err)
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "topic": topic})
}

func webhookTopic(platform integrations.Platform, headers map[string]string) string {
	var header string
	switch platform {
	case integrations.PlatformShopify:
		header = "x-shopify-topic"
	case integrations.PlatformWooCommerce:
		header = "x-wc-webhook-topic"
	case integrations.PlatformMagento:
		header = "x-magento-topic"
	}
	if topic := integrations.HeaderValue(headers, header); topic != "" {
		return topic
	}
	return "unknown"
}
