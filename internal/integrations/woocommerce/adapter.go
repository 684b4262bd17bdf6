package woocommerce

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"pricebridge/internal/cache"
	"pricebridge/internal/integrations"
	"pricebridge/internal/logger"
	"pricebridge/internal/ratelimit"
)

type Config struct {
	// BaseURL overrides https://{domain}/wp-json/wc/v3. Used by tests.
	BaseURL string

	RateLimit       int
	RateWindow      time.Duration
	CacheMaxEntries int
	CacheTTL        time.Duration

	Recorder integrations.Recorder
	Logger   *logger.Logger
}

// Adapter talks to the WooCommerce REST v3 API for one store. Auth is HTTP
// Basic over the consumer key pair; keys do not expire.
type Adapter struct {
	base  integrations.Base
	creds integrations.Credentials
	cfg   Config
}

func New(storeID string, creds integrations.Credentials, cfg Config) *Adapter {
	c := cache.New(cfg.CacheMaxEntries)
	l := ratelimit.NewSingle(string(integrations.PlatformWooCommerce), cfg.RateLimit, cfg.RateWindow)
	t := integrations.NewTracker(cfg.Recorder)
	return &Adapter{
		base:  integrations.NewBase(storeID, integrations.PlatformWooCommerce, c, l, t, cfg.Logger, cfg.CacheTTL),
		creds: creds,
		cfg:   cfg,
	}
}

func NewBuilder(cfg Config) integrations.Builder {
	return func(storeID string, creds integrations.Credentials) (integrations.Adapter, error) {
		return New(storeID, creds, cfg), nil
	}
}

func (a *Adapter) Platform() integrations.Platform {
	return integrations.PlatformWooCommerce
}

func (a *Adapter) apiURL(path string) string {
	if a.cfg.BaseURL != "" {
		return a.cfg.BaseURL + path
	}
	return fmt.Sprintf("https://%s/wp-json/wc/v3%s", a.creds.ShopDomain, path)
}

func (a *Adapter) authHeaders() map[string]string {
	token := base64.StdEncoding.EncodeToString([]byte(a.creds.APIKey + ":" + a.creds.APISecret))
	return map[string]string{
		"Authorization": "Basic " + token,
	}
}

// Authenticate probes the key pair against the system status endpoint.
// WooCommerce has no token exchange; a 200 means the keys are live.
func (a *Adapter) Authenticate(ctx context.Context, creds integrations.Credentials) (*integrations.AuthResult, error) {
	if creds.APIKey == "" || creds.APISecret == "" {
		return nil, &integrations.AuthError{Platform: a.Platform(), Reason: "missing consumer key or secret"}
	}

	token := base64.StdEncoding.EncodeToString([]byte(creds.APIKey + ":" + creds.APISecret))
	res, err := a.base.Call(ctx, "system_status", http.MethodGet, a.apiURL("/system_status"), map[string]string{"Authorization": "Basic " + token}, nil)
	if err != nil {
		return nil, &integrations.AuthError{Platform: a.Platform(), Reason: err.Error()}
	}
	if res.Status != http.StatusOK {
		return nil, &integrations.AuthError{Platform: a.Platform(), Reason: fmt.Sprintf("key probe returned %d", res.Status)}
	}

	return &integrations.AuthResult{AccessToken: creds.APIKey}, nil
}

// RefreshToken is a no-op: WooCommerce consumer keys do not expire, so the
// same key comes back without a network call.
func (a *Adapter) RefreshToken(ctx context.Context, creds integrations.Credentials) (*integrations.AuthResult, error) {
	return &integrations.AuthResult{AccessToken: creds.APIKey}, nil
}

// ValidateWebhook verifies WooCommerce's base64 HMAC-SHA256 signature. The
// HMAC is computed over the exact raw wire bytes — never a re-encoded
// body, which can differ from what the store signed.
func (a *Adapter) ValidateWebhook(headers map[string]string, rawBody []byte) bool {
	signature := integrations.HeaderValue(headers, "x-wc-webhook-signature")
	if a.creds.WebhookSecret == "" || signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(a.creds.WebhookSecret))
	mac.Write(rawBody)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (a *Adapter) GetProduct(ctx context.Context, id string, opts integrations.FetchOptions) (*integrations.Product, error) {
	if p, ok := a.base.CachedProduct(id, opts); ok {
		return p, nil
	}

	res, err := a.base.Call(ctx, "products/get", http.MethodGet, a.apiURL("/products/"+id), a.authHeaders(), nil)
	if err != nil {
		return nil, err
	}
	if res.Status == http.StatusNotFound {
		return nil, nil
	}

	var raw wooProduct
	if err := a.base.Decode("products/get", res.Body, &raw); err != nil {
		return nil, err
	}

	variations, err := a.fetchVariations(ctx, raw)
	if err != nil {
		return nil, err
	}

	product := normalizeProduct(raw, variations)
	a.base.StoreProduct(&product, opts)
	return &product, nil
}

// fetchVariations pulls variation detail for variable products. Simple
// products have none and skip the extra call.
func (a *Adapter) fetchVariations(ctx context.Context, p wooProduct) ([]wooVariation, error) {
	if len(p.Variations) == 0 {
		return nil, nil
	}

	u := a.apiURL(fmt.Sprintf("/products/%d/variations?per_page=100", p.ID))
	res, err := a.base.Call(ctx, "products/variations", http.MethodGet, u, a.authHeaders(), nil)
	if err != nil {
		return nil, err
	}
	if res.Status == http.StatusNotFound {
		return nil, nil
	}

	var variations []wooVariation
	if err := a.base.Decode("products/variations", res.Body, &variations); err != nil {
		return nil, err
	}
	return variations, nil
}

// GetProducts pages by number. WooCommerce reports totals in the
// X-WP-Total / X-WP-TotalPages response headers.
func (a *Adapter) GetProducts(ctx context.Context, opts integrations.ListOptions) (*integrations.ProductPage, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	page := 1
	if opts.Cursor != "" {
		if n, err := strconv.Atoi(opts.Cursor); err == nil && n > 0 {
			page = n
		}
	}

	q := url.Values{}
	q.Set("per_page", strconv.Itoa(limit))
	q.Set("page", strconv.Itoa(page))
	u := a.apiURL("/products") + "?" + q.Encode()

	res, err := a.base.Call(ctx, "products/list", http.MethodGet, u, a.authHeaders(), nil)
	if err != nil {
		return nil, err
	}

	var raw []wooProduct
	if err := a.base.Decode("products/list", res.Body, &raw); err != nil {
		return nil, err
	}

	result := &integrations.ProductPage{
		Items: make([]integrations.Product, 0, len(raw)),
	}
	for _, p := range raw {
		// list responses carry prices inline; variation detail is only
		// fetched on single-product reads
		result.Items = append(result.Items, normalizeProduct(p, nil))
	}

	total, _ := strconv.Atoi(res.Header.Get("X-WP-Total"))
	totalPages, _ := strconv.Atoi(res.Header.Get("X-WP-TotalPages"))
	result.TotalCount = total
	if page < totalPages {
		result.HasNextPage = true
		result.Cursor = strconv.Itoa(page + 1)
	}
	return result, nil
}

func (a *Adapter) GetCustomer(ctx context.Context, id string) (*integrations.Customer, error) {
	if c, ok := a.base.CachedCustomer(id); ok {
		return c, nil
	}

	res, err := a.base.Call(ctx, "customers/get", http.MethodGet, a.apiURL("/customers/"+id), a.authHeaders(), nil)
	if err != nil {
		return nil, err
	}
	if res.Status == http.StatusNotFound {
		return nil, nil
	}

	var raw wooCustomer
	if err := a.base.Decode("customers/get", res.Body, &raw); err != nil {
		return nil, err
	}

	customer := normalizeCustomer(raw)
	a.base.StoreCustomer(&customer)
	return &customer, nil
}

func (a *Adapter) GetCustomerPurchaseHistory(ctx context.Context, customerID string) ([]integrations.Purchase, error) {
	u := a.apiURL("/orders?customer=" + url.QueryEscape(customerID) + "&per_page=100")
	res, err := a.base.Call(ctx, "orders/list", http.MethodGet, u, a.authHeaders(), nil)
	if err != nil {
		return nil, err
	}
	if res.Status == http.StatusNotFound {
		return nil, nil
	}

	var raw []wooOrder
	if err := a.base.Decode("orders/list", res.Body, &raw); err != nil {
		return nil, err
	}

	purchases := make([]integrations.Purchase, 0, len(raw))
	for _, o := range raw {
		createdAt, _ := time.Parse("2006-01-02T15:04:05", o.DateCreated)
		items := make([]integrations.PurchaseItem, 0, len(o.LineItems))
		for _, li := range o.LineItems {
			item := integrations.PurchaseItem{
				ProductID: strconv.FormatInt(li.ProductID, 10),
				Title:     li.Name,
				Quantity:  li.Quantity,
				Price:     li.Price,
			}
			if li.VariationID != 0 {
				item.VariantID = strconv.FormatInt(li.VariationID, 10)
			}
			items = append(items, item)
		}
		purchases = append(purchases, integrations.Purchase{
			ID:            strconv.FormatInt(o.ID, 10),
			OrderNumber:   o.Number,
			Total:         parsePrice(o.Total),
			DiscountTotal: parsePrice(o.DiscountTotal),
			Currency:      o.Currency,
			CreatedAt:     createdAt,
			Items:         items,
		})
	}
	return purchases, nil
}

// CreateDiscount creates a coupon.
func (a *Adapter) CreateDiscount(ctx context.Context, spec integrations.DiscountRequest) (*integrations.DiscountResponse, error) {
	discountType := "fixed_cart"
	if spec.ValueType == integrations.DiscountPercentage {
		discountType = "percent"
	}

	payload := map[string]interface{}{
		"code":          spec.Code,
		"description":   spec.Title,
		"discount_type": discountType,
		"amount":        fmt.Sprintf("%.2f", spec.Value),
	}
	if spec.MinimumAmount > 0 {
		payload["minimum_amount"] = fmt.Sprintf("%.2f", spec.MinimumAmount)
	}
	if spec.UsageLimit > 0 {
		payload["usage_limit"] = spec.UsageLimit
	}
	if spec.EndsAt != nil {
		payload["date_expires"] = spec.EndsAt.Format("2006-01-02T15:04:05")
	}

	res, err := a.base.Call(ctx, "coupons/create", http.MethodPost, a.apiURL("/coupons"), a.authHeaders(), payload)
	if err != nil {
		return nil, err
	}

	var coupon wooCoupon
	if err := a.base.Decode("coupons/create", res.Body, &coupon); err != nil {
		return nil, err
	}

	return &integrations.DiscountResponse{
		ID:       strconv.FormatInt(coupon.ID, 10),
		Code:     coupon.Code,
		AdminURL: fmt.Sprintf("https://%s/wp-admin/post.php?post=%d&action=edit", a.creds.ShopDomain, coupon.ID),
	}, nil
}

// ApplyBudgetPricing writes the capped discount onto the order as a
// negative fee line. Tagged result, never an error.
func (a *Adapter) ApplyBudgetPricing(ctx context.Context, orderID string, pricing integrations.BudgetPricing) *integrations.OrderUpdate {
	capped := integrations.CapPercentage(pricing.DiscountPercentage)
	amount := pricing.OriginalPrice * capped / 100

	payload := map[string]interface{}{
		"fee_lines": []map[string]interface{}{
			{
				"name":  fmt.Sprintf("Budget pricing (%s)", pricing.Category),
				"total": fmt.Sprintf("-%.2f", amount),
			},
		},
	}

	res, err := a.base.Call(ctx, "orders/update", http.MethodPut, a.apiURL("/orders/"+orderID), a.authHeaders(), payload)
	if err != nil {
		return &integrations.OrderUpdate{OrderID: orderID, Status: integrations.OrderUpdateFailed, Error: err.Error()}
	}
	if res.Status == http.StatusNotFound {
		return &integrations.OrderUpdate{OrderID: orderID, Status: integrations.OrderUpdateFailed, Error: "order not found"}
	}

	return &integrations.OrderUpdate{
		OrderID:           orderID,
		Status:            integrations.OrderUpdateSuccess,
		AppliedPercentage: capped,
	}
}

func (a *Adapter) RegisterWebhooks(ctx context.Context, callbackURL string, topics []string) []integrations.WebhookResult {
	results := make([]integrations.WebhookResult, 0, len(topics))
	for _, topic := range topics {
		payload := map[string]interface{}{
			"name":         "pricebridge " + topic,
			"topic":        topic,
			"delivery_url": callbackURL,
			"secret":       a.creds.WebhookSecret,
		}
		result := integrations.WebhookResult{Topic: topic}

		res, err := a.base.Call(ctx, "webhooks/create", http.MethodPost, a.apiURL("/webhooks"), a.authHeaders(), payload)
		if err != nil {
			result.Error = err.Error()
			a.base.Logger.Warn("Failed to register %s webhook: %v", topic, err)
			results = append(results, result)
			continue
		}

		var wh wooWebhook
		if err := a.base.Decode("webhooks/create", res.Body, &wh); err != nil {
			result.Error = err.Error()
		} else {
			result.WebhookID = strconv.FormatInt(wh.ID, 10)
		}
		results = append(results, result)
	}
	return results
}

func (a *Adapter) UnregisterWebhooks(ctx context.Context, callbackURL string) error {
	res, err := a.base.Call(ctx, "webhooks/list", http.MethodGet, a.apiURL("/webhooks?per_page=100"), a.authHeaders(), nil)
	if err != nil {
		return err
	}

	var webhooks []wooWebhook
	if err := a.base.Decode("webhooks/list", res.Body, &webhooks); err != nil {
		return err
	}

	for _, wh := range webhooks {
		if wh.DeliveryURL != callbackURL {
			continue
		}
		u := a.apiURL(fmt.Sprintf("/webhooks/%d?force=true", wh.ID))
		if _, err := a.base.Call(ctx, "webhooks/delete", http.MethodDelete, u, a.authHeaders(), nil); err != nil {
			a.base.Logger.Warn("Failed to delete webhook %d: %v", wh.ID, err)
		}
	}
	return nil
}

// Cache exposes the adapter's cache for webhook-driven invalidation.
func (a *Adapter) Cache() *cache.Cache {
	return a.base.Cache
}
