package integrations

import (
	"context"
	"strings"
)

// Adapter abstracts one commerce platform's REST API into a unified
// capability set. Each platform (Shopify, WooCommerce, Magento) provides its
// own implementation; platform-specific auth, pagination, and webhook
// signature schemes are encapsulated behind it.
type Adapter interface {
	// Platform identifies the variant.
	Platform() Platform

	// Authenticate exchanges or verifies credentials. Shopify and Magento
	// run an OAuth code/token exchange; WooCommerce probes the key pair.
	Authenticate(ctx context.Context, creds Credentials) (*AuthResult, error)

	// RefreshToken renews an access token. WooCommerce keys do not expire,
	// so its implementation returns the same key.
	RefreshToken(ctx context.Context, creds Credentials) (*AuthResult, error)

	// ValidateWebhook checks the platform's HMAC over the exact raw body
	// bytes. Fails closed: a missing secret or signature returns false.
	ValidateWebhook(headers map[string]string, rawBody []byte) bool

	// GetProduct is cache-first unless opts.ForceRefresh. A 404 returns
	// (nil, nil); other non-2xx responses surface as *UpstreamError.
	GetProduct(ctx context.Context, id string, opts FetchOptions) (*Product, error)

	// GetProducts translates the platform's pagination idiom into a
	// uniform page.
	GetProducts(ctx context.Context, opts ListOptions) (*ProductPage, error)

	// GetCustomer is read-through cached. A 404 returns (nil, nil).
	GetCustomer(ctx context.Context, id string) (*Customer, error)

	// GetCustomerPurchaseHistory is never cached; order data is
	// time-sensitive.
	GetCustomerPurchaseHistory(ctx context.Context, customerID string) ([]Purchase, error)

	// CreateDiscount creates a platform-native discount artifact. Errors
	// propagate; callers must know creation failed before proceeding.
	CreateDiscount(ctx context.Context, spec DiscountRequest) (*DiscountResponse, error)

	// ApplyBudgetPricing applies a computed discount to an existing order.
	// The percentage is capped at MaxApplyPercentage even if the engine
	// computed higher. Never returns an error; failures come back tagged.
	ApplyBudgetPricing(ctx context.Context, orderID string, pricing BudgetPricing) *OrderUpdate

	// RegisterWebhooks subscribes callbackURL to topics, best-effort:
	// individual failures land in the result slice, not an error.
	RegisterWebhooks(ctx context.Context, callbackURL string, topics []string) []WebhookResult

	// UnregisterWebhooks removes subscriptions pointing at callbackURL.
	UnregisterWebhooks(ctx context.Context, callbackURL string) error
}

// MaxApplyPercentage is the hard ceiling on any discount applied to an
// order, regardless of what the pricing engine computed.
const MaxApplyPercentage = 30.0

// HeaderValue looks up a webhook header case-insensitively. Proxies and
// test callers disagree on header casing.
func HeaderValue(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}
