package magento

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
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
	// BaseURL overrides https://{domain}/rest/V1. Used by tests.
	BaseURL string

	RateLimit       int
	RateWindow      time.Duration
	CacheMaxEntries int
	CacheTTL        time.Duration

	Recorder integrations.Recorder
	Logger   *logger.Logger
}

// Adapter talks to the Magento 2 REST API for one store, with an OAuth2
// bearer token on every call.
type Adapter struct {
	base  integrations.Base
	creds integrations.Credentials
	cfg   Config
}

func New(storeID string, creds integrations.Credentials, cfg Config) *Adapter {
	c := cache.New(cfg.CacheMaxEntries)
	l := ratelimit.NewSingle(string(integrations.PlatformMagento), cfg.RateLimit, cfg.RateWindow)
	t := integrations.NewTracker(cfg.Recorder)
	return &Adapter{
		base:  integrations.NewBase(storeID, integrations.PlatformMagento, c, l, t, cfg.Logger, cfg.CacheTTL),
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
	return integrations.PlatformMagento
}

func (a *Adapter) apiURL(path string) string {
	if a.cfg.BaseURL != "" {
		return a.cfg.BaseURL + path
	}
	return fmt.Sprintf("https://%s/rest/V1%s", a.creds.ShopDomain, path)
}

func (a *Adapter) authHeaders() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + a.creds.AccessToken,
	}
}

// Authenticate exchanges the integration credentials for a bearer token
// via the admin token endpoint, or probes an existing token.
func (a *Adapter) Authenticate(ctx context.Context, creds integrations.Credentials) (*integrations.AuthResult, error) {
	if creds.AccessToken != "" {
		res, err := a.base.Call(ctx, "store/storeConfigs", http.MethodGet, a.apiURL("/store/storeConfigs"), map[string]string{"Authorization": "Bearer " + creds.AccessToken}, nil)
		if err != nil {
			return nil, &integrations.AuthError{Platform: a.Platform(), Reason: err.Error()}
		}
		if res.Status != http.StatusOK {
			return nil, &integrations.AuthError{Platform: a.Platform(), Reason: fmt.Sprintf("token probe returned %d", res.Status)}
		}
		return &integrations.AuthResult{AccessToken: creds.AccessToken}, nil
	}

	if creds.APIKey == "" || creds.APISecret == "" {
		return nil, &integrations.AuthError{Platform: a.Platform(), Reason: "missing integration credentials"}
	}

	tokenURL := a.apiURL("/integration/admin/token")
	payload := map[string]string{
		"username": creds.APIKey,
		"password": creds.APISecret,
	}

	res, err := a.base.Call(ctx, "integration/admin/token", http.MethodPost, tokenURL, nil, payload)
	if err != nil {
		return nil, &integrations.AuthError{Platform: a.Platform(), Reason: err.Error()}
	}

	// the endpoint returns the bare token as a JSON string
	var token string
	if err := a.base.Decode("integration/admin/token", res.Body, &token); err != nil {
		return nil, &integrations.AuthError{Platform: a.Platform(), Reason: err.Error()}
	}
	if token == "" {
		return nil, &integrations.AuthError{Platform: a.Platform(), Reason: "empty token in exchange response"}
	}

	return &integrations.AuthResult{
		AccessToken: token,
		ExpiresIn:   4 * 3600,
	}, nil
}

// RefreshToken re-runs the token exchange; Magento admin tokens expire.
func (a *Adapter) RefreshToken(ctx context.Context, creds integrations.Credentials) (*integrations.AuthResult, error) {
	renewed := creds
	renewed.AccessToken = ""
	return a.Authenticate(ctx, renewed)
}

// ValidateWebhook verifies the hex HMAC-SHA256 digest over the raw body.
func (a *Adapter) ValidateWebhook(headers map[string]string, rawBody []byte) bool {
	signature := integrations.HeaderValue(headers, "x-magento-webhook-signature")
	if a.creds.WebhookSecret == "" || signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(a.creds.WebhookSecret))
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func (a *Adapter) GetProduct(ctx context.Context, id string, opts integrations.FetchOptions) (*integrations.Product, error) {
	if p, ok := a.base.CachedProduct(id, opts); ok {
		return p, nil
	}

	res, err := a.base.Call(ctx, "products/get", http.MethodGet, a.apiURL("/products/"+url.PathEscape(id)), a.authHeaders(), nil)
	if err != nil {
		return nil, err
	}
	if res.Status == http.StatusNotFound {
		return nil, nil
	}

	var raw magentoProduct
	if err := a.base.Decode("products/get", res.Body, &raw); err != nil {
		return nil, err
	}

	product := normalizeProduct(a.creds.ShopDomain, raw)
	a.base.StoreProduct(&product, opts)
	return &product, nil
}

// GetProducts pages via searchCriteria page size and index.
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
	q.Set("searchCriteria[pageSize]", strconv.Itoa(limit))
	q.Set("searchCriteria[currentPage]", strconv.Itoa(page))
	u := a.apiURL("/products") + "?" + q.Encode()

	res, err := a.base.Call(ctx, "products/list", http.MethodGet, u, a.authHeaders(), nil)
	if err != nil {
		return nil, err
	}

	var raw magentoSearchResult
	if err := a.base.Decode("products/list", res.Body, &raw); err != nil {
		return nil, err
	}

	result := &integrations.ProductPage{
		Items:      make([]integrations.Product, 0, len(raw.Items)),
		TotalCount: raw.TotalCount,
	}
	for _, p := range raw.Items {
		result.Items = append(result.Items, normalizeProduct(a.creds.ShopDomain, p))
	}
	if page*limit < raw.TotalCount {
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

	var raw magentoCustomer
	if err := a.base.Decode("customers/get", res.Body, &raw); err != nil {
		return nil, err
	}

	customer := normalizeCustomer(raw)
	a.base.StoreCustomer(&customer)
	return &customer, nil
}

func (a *Adapter) GetCustomerPurchaseHistory(ctx context.Context, customerID string) ([]integrations.Purchase, error) {
	q := url.Values{}
	q.Set("searchCriteria[filter_groups][0][filters][0][field]", "customer_id")
	q.Set("searchCriteria[filter_groups][0][filters][0][value]", customerID)
	q.Set("searchCriteria[filter_groups][0][filters][0][condition_type]", "eq")
	u := a.apiURL("/orders") + "?" + q.Encode()

	res, err := a.base.Call(ctx, "orders/list", http.MethodGet, u, a.authHeaders(), nil)
	if err != nil {
		return nil, err
	}
	if res.Status == http.StatusNotFound {
		return nil, nil
	}

	var raw magentoOrderSearch
	if err := a.base.Decode("orders/list", res.Body, &raw); err != nil {
		return nil, err
	}

	purchases := make([]integrations.Purchase, 0, len(raw.Items))
	for _, o := range raw.Items {
		createdAt, _ := time.Parse("2006-01-02 15:04:05", o.CreatedAt)
		items := make([]integrations.PurchaseItem, 0, len(o.Items))
		for _, li := range o.Items {
			items = append(items, integrations.PurchaseItem{
				ProductID: strconv.FormatInt(li.ProductID, 10),
				Title:     li.Name,
				Quantity:  int(li.QtyOrdered),
				Price:     li.Price,
			})
		}
		discount := o.DiscountAmount
		if discount < 0 {
			discount = -discount
		}
		purchases = append(purchases, integrations.Purchase{
			ID:            strconv.FormatInt(o.EntityID, 10),
			OrderNumber:   o.IncrementID,
			Total:         o.GrandTotal,
			DiscountTotal: discount,
			Currency:      o.CurrencyCode,
			CreatedAt:     createdAt,
			Items:         items,
		})
	}
	return purchases, nil
}

// CreateDiscount creates a cart price rule, then a coupon bound to it.
func (a *Adapter) CreateDiscount(ctx context.Context, spec integrations.DiscountRequest) (*integrations.DiscountResponse, error) {
	action := "cart_fixed"
	if spec.ValueType == integrations.DiscountPercentage {
		action = "by_percent"
	}

	rule := map[string]interface{}{
		"name":            spec.Title,
		"is_active":       true,
		"simple_action":   action,
		"discount_amount": spec.Value,
		"coupon_type":     "SPECIFIC_COUPON",
		"uses_per_coupon": spec.UsageLimit,
	}
	res, err := a.base.Call(ctx, "salesRules/create", http.MethodPost, a.apiURL("/salesRules"), a.authHeaders(), map[string]interface{}{"rule": rule})
	if err != nil {
		return nil, err
	}

	var ruleResp magentoSalesRule
	if err := a.base.Decode("salesRules/create", res.Body, &ruleResp); err != nil {
		return nil, err
	}

	coupon := map[string]interface{}{
		"rule_id":    ruleResp.RuleID,
		"code":       spec.Code,
		"is_primary": true,
	}
	res, err = a.base.Call(ctx, "coupons/create", http.MethodPost, a.apiURL("/coupons"), a.authHeaders(), map[string]interface{}{"coupon": coupon})
	if err != nil {
		return nil, err
	}

	var couponResp magentoCoupon
	if err := a.base.Decode("coupons/create", res.Body, &couponResp); err != nil {
		return nil, err
	}

	return &integrations.DiscountResponse{
		ID:       strconv.FormatInt(ruleResp.RuleID, 10),
		Code:     couponResp.Code,
		AdminURL: fmt.Sprintf("https://%s/admin/sales_rule/promo_quote/edit/id/%d", a.creds.ShopDomain, ruleResp.RuleID),
	}, nil
}

// ApplyBudgetPricing saves a capped discount amount onto the order entity.
func (a *Adapter) ApplyBudgetPricing(ctx context.Context, orderID string, pricing integrations.BudgetPricing) *integrations.OrderUpdate {
	capped := integrations.CapPercentage(pricing.DiscountPercentage)
	amount := pricing.OriginalPrice * capped / 100

	entityID, err := strconv.ParseInt(orderID, 10, 64)
	if err != nil {
		return &integrations.OrderUpdate{OrderID: orderID, Status: integrations.OrderUpdateFailed, Error: "invalid order id"}
	}

	payload := map[string]interface{}{
		"entity": map[string]interface{}{
			"entity_id":       entityID,
			"discount_amount": -amount,
		},
	}

	res, err := a.base.Call(ctx, "orders/update", http.MethodPost, a.apiURL("/orders"), a.authHeaders(), payload)
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
			"webhook": map[string]string{
				"topic":        topic,
				"delivery_url": callbackURL,
			},
		}
		result := integrations.WebhookResult{Topic: topic}

		res, err := a.base.Call(ctx, "webhooks/create", http.MethodPost, a.apiURL("/webhooks"), a.authHeaders(), payload)
		if err != nil {
			result.Error = err.Error()
			a.base.Logger.Warn("Failed to register %s webhook: %v", topic, err)
			results = append(results, result)
			continue
		}

		var body struct {
			ID int64 `json:"id"`
		}
		if err := a.base.Decode("webhooks/create", res.Body, &body); err != nil {
			result.Error = err.Error()
		} else {
			result.WebhookID = strconv.FormatInt(body.ID, 10)
		}
		results = append(results, result)
	}
	return results
}

func (a *Adapter) UnregisterWebhooks(ctx context.Context, callbackURL string) error {
	res, err := a.base.Call(ctx, "webhooks/list", http.MethodGet, a.apiURL("/webhooks"), a.authHeaders(), nil)
	if err != nil {
		return err
	}

	var webhooks []struct {
		ID          int64  `json:"id"`
		DeliveryURL string `json:"delivery_url"`
	}
	if err := a.base.Decode("webhooks/list", res.Body, &webhooks); err != nil {
		return err
	}

	for _, wh := range webhooks {
		if wh.DeliveryURL != callbackURL {
			continue
		}
		u := a.apiURL(fmt.Sprintf("/webhooks/%d", wh.ID))
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
