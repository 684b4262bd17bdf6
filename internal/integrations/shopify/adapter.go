package shopify

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

	"github.com/tomnomnom/linkheader"

	"pricebridge/internal/cache"
	"pricebridge/internal/integrations"
	"pricebridge/internal/logger"
	"pricebridge/internal/ratelimit"
)

const apiVersion = "2023-10"

type Config struct {
	ClientID     string
	ClientSecret string

	// BaseURL overrides the https://{shop}/admin/api/{version} base.
	// Used by tests; empty in production.
	BaseURL string

	RateLimit       int
	RateWindow      time.Duration
	CacheMaxEntries int
	CacheTTL        time.Duration

	Recorder integrations.Recorder
	Logger   *logger.Logger
}

// Adapter talks to the Shopify Admin REST API for one store.
type Adapter struct {
	base  integrations.Base
	creds integrations.Credentials
	cfg   Config
}

func New(storeID string, creds integrations.Credentials, cfg Config) *Adapter {
	c := cache.New(cfg.CacheMaxEntries)
	l := ratelimit.NewSingle(string(integrations.PlatformShopify), cfg.RateLimit, cfg.RateWindow)
	t := integrations.NewTracker(cfg.Recorder)
	return &Adapter{
		base:  integrations.NewBase(storeID, integrations.PlatformShopify, c, l, t, cfg.Logger, cfg.CacheTTL),
		creds: creds,
		cfg:   cfg,
	}
}

// NewBuilder adapts New to the registry's builder signature.
func NewBuilder(cfg Config) integrations.Builder {
	return func(storeID string, creds integrations.Credentials) (integrations.Adapter, error) {
		return New(storeID, creds, cfg), nil
	}
}

func (a *Adapter) Platform() integrations.Platform {
	return integrations.PlatformShopify
}

func (a *Adapter) apiURL(path string) string {
	if a.cfg.BaseURL != "" {
		return a.cfg.BaseURL + path
	}
	return fmt.Sprintf("https://%s/admin/api/%s%s", shopHost(a.creds.ShopDomain), apiVersion, path)
}

func (a *Adapter) oauthTokenURL(domain string) string {
	if a.cfg.BaseURL != "" {
		return a.cfg.BaseURL + "/oauth/access_token"
	}
	return fmt.Sprintf("https://%s/admin/oauth/access_token", shopHost(domain))
}

func (a *Adapter) authHeaders() map[string]string {
	return map[string]string{
		"X-Shopify-Access-Token": a.creds.AccessToken,
	}
}

// Authenticate exchanges an OAuth authorization code (carried in
// creds.APIKey) for an access token, or probes an existing token against
// shop.json when one is already present.
func (a *Adapter) Authenticate(ctx context.Context, creds integrations.Credentials) (*integrations.AuthResult, error) {
	if creds.AccessToken != "" {
		res, err := a.base.Call(ctx, "shop", http.MethodGet, a.apiURL("/shop.json"),
			map[string]string{"X-Shopify-Access-Token": creds.AccessToken}, nil)
		if err != nil {
			return nil, &integrations.AuthError{Platform: a.Platform(), Reason: err.Error()}
		}
		if res.Status != http.StatusOK {
			return nil, &integrations.AuthError{Platform: a.Platform(), Reason: fmt.Sprintf("token probe returned %d", res.Status)}
		}
		return &integrations.AuthResult{AccessToken: creds.AccessToken}, nil
	}

	if creds.APIKey == "" {
		return nil, &integrations.AuthError{Platform: a.Platform(), Reason: "no authorization code or access token"}
	}

	tokenURL := a.oauthTokenURL(creds.ShopDomain)
	payload := map[string]string{
		"client_id":     a.cfg.ClientID,
		"client_secret": a.cfg.ClientSecret,
		"code":          creds.APIKey,
	}

	res, err := a.base.Call(ctx, "oauth/access_token", http.MethodPost, tokenURL, nil, payload)
	if err != nil {
		return nil, &integrations.AuthError{Platform: a.Platform(), Reason: err.Error()}
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		Scope       string `json:"scope"`
	}
	if err := a.base.Decode("oauth/access_token", res.Body, &tokenResp); err != nil {
		return nil, &integrations.AuthError{Platform: a.Platform(), Reason: err.Error()}
	}
	if tokenResp.AccessToken == "" {
		return nil, &integrations.AuthError{Platform: a.Platform(), Reason: "empty access token in exchange response"}
	}

	return &integrations.AuthResult{
		AccessToken: tokenResp.AccessToken,
		Scope:       tokenResp.Scope,
	}, nil
}

// RefreshToken re-probes the stored token. Shopify offline tokens do not
// expire, so a healthy probe returns the same token.
func (a *Adapter) RefreshToken(ctx context.Context, creds integrations.Credentials) (*integrations.AuthResult, error) {
	return a.Authenticate(ctx, creds)
}

// ValidateWebhook verifies the base64 HMAC-SHA256 Shopify computes over the
// raw request body. Fails closed when secret or header is missing.
func (a *Adapter) ValidateWebhook(headers map[string]string, rawBody []byte) bool {
	signature := integrations.HeaderValue(headers, "x-shopify-hmac-sha256")
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

	res, err := a.base.Call(ctx, "products/get", http.MethodGet, a.apiURL("/products/"+id+".json"), a.authHeaders(), nil)
	if err != nil {
		return nil, err
	}
	if res.Status == http.StatusNotFound {
		return nil, nil
	}

	var body struct {
		Product shopifyProduct `json:"product"`
	}
	if err := a.base.Decode("products/get", res.Body, &body); err != nil {
		return nil, err
	}

	product := normalizeProduct(body.Product)
	a.base.StoreProduct(&product, opts)
	return &product, nil
}

// GetProducts pages through /products.json. Shopify signals the next page
// via a Link response header carrying a page_info token.
func (a *Adapter) GetProducts(ctx context.Context, opts integrations.ListOptions) (*integrations.ProductPage, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	u := a.apiURL("/products.json")
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	if opts.Cursor != "" {
		q.Set("page_info", opts.Cursor)
	}
	u += "?" + q.Encode()

	res, err := a.base.Call(ctx, "products/list", http.MethodGet, u, a.authHeaders(), nil)
	if err != nil {
		return nil, err
	}

	var body struct {
		Products []shopifyProduct `json:"products"`
	}
	if err := a.base.Decode("products/list", res.Body, &body); err != nil {
		return nil, err
	}

	page := &integrations.ProductPage{
		Items: make([]integrations.Product, 0, len(body.Products)),
	}
	for _, p := range body.Products {
		page.Items = append(page.Items, normalizeProduct(p))
	}

	if cursor := nextPageInfo(res.Header.Get("Link")); cursor != "" {
		page.HasNextPage = true
		page.Cursor = cursor
	}
	return page, nil
}

// nextPageInfo pulls the page_info token out of the rel="next" Link header.
func nextPageInfo(header string) string {
	for _, link := range linkheader.Parse(header).FilterByRel("next") {
		u, err := url.Parse(link.URL)
		if err != nil {
			continue
		}
		if token := u.Query().Get("page_info"); token != "" {
			return token
		}
	}
	return ""
}

func (a *Adapter) GetCustomer(ctx context.Context, id string) (*integrations.Customer, error) {
	if c, ok := a.base.CachedCustomer(id); ok {
		return c, nil
	}

	res, err := a.base.Call(ctx, "customers/get", http.MethodGet, a.apiURL("/customers/"+id+".json"), a.authHeaders(), nil)
	if err != nil {
		return nil, err
	}
	if res.Status == http.StatusNotFound {
		return nil, nil
	}

	var body struct {
		Customer shopifyCustomer `json:"customer"`
	}
	if err := a.base.Decode("customers/get", res.Body, &body); err != nil {
		return nil, err
	}

	customer := normalizeCustomer(body.Customer)
	a.base.StoreCustomer(&customer)
	return &customer, nil
}

func (a *Adapter) GetCustomerPurchaseHistory(ctx context.Context, customerID string) ([]integrations.Purchase, error) {
	u := a.apiURL("/customers/" + customerID + "/orders.json?status=any")
	res, err := a.base.Call(ctx, "customers/orders", http.MethodGet, u, a.authHeaders(), nil)
	if err != nil {
		return nil, err
	}
	if res.Status == http.StatusNotFound {
		return nil, nil
	}

	var body struct {
		Orders []shopifyOrder `json:"orders"`
	}
	if err := a.base.Decode("customers/orders", res.Body, &body); err != nil {
		return nil, err
	}

	purchases := make([]integrations.Purchase, 0, len(body.Orders))
	for _, o := range body.Orders {
		createdAt, _ := time.Parse(time.RFC3339, o.CreatedAt)
		items := make([]integrations.PurchaseItem, 0, len(o.LineItems))
		for _, li := range o.LineItems {
			items = append(items, integrations.PurchaseItem{
				ProductID: strconv.FormatInt(li.ProductID, 10),
				VariantID: strconv.FormatInt(li.VariantID, 10),
				Title:     li.Title,
				Quantity:  li.Quantity,
				Price:     parsePrice(li.Price),
			})
		}
		purchases = append(purchases, integrations.Purchase{
			ID:            strconv.FormatInt(o.ID, 10),
			OrderNumber:   o.Name,
			Total:         parsePrice(o.TotalPrice),
			DiscountTotal: parsePrice(o.TotalDiscounts),
			Currency:      o.Currency,
			CreatedAt:     createdAt,
			Items:         items,
		})
	}
	return purchases, nil
}

// CreateDiscount creates a price rule, then attaches a discount code to it.
func (a *Adapter) CreateDiscount(ctx context.Context, spec integrations.DiscountRequest) (*integrations.DiscountResponse, error) {
	valueType := "fixed_amount"
	if spec.ValueType == integrations.DiscountPercentage {
		valueType = "percentage"
	}

	rule := map[string]interface{}{
		"title":              spec.Title,
		"target_type":        "line_item",
		"target_selection":   "all",
		"allocation_method":  "across",
		"value_type":         valueType,
		"value":              fmt.Sprintf("-%.2f", spec.Value),
		"customer_selection": "all",
		"starts_at":          startsAt(spec.StartsAt),
	}
	if spec.EndsAt != nil {
		rule["ends_at"] = spec.EndsAt.Format(time.RFC3339)
	}
	if spec.UsageLimit > 0 {
		rule["usage_limit"] = spec.UsageLimit
	}
	if spec.MinimumAmount > 0 {
		rule["prerequisite_subtotal_range"] = map[string]string{
			"greater_than_or_equal_to": fmt.Sprintf("%.2f", spec.MinimumAmount),
		}
	}

	res, err := a.base.Call(ctx, "price_rules/create", http.MethodPost, a.apiURL("/price_rules.json"), a.authHeaders(), map[string]interface{}{"price_rule": rule})
	if err != nil {
		return nil, err
	}

	var ruleResp struct {
		PriceRule shopifyPriceRule `json:"price_rule"`
	}
	if err := a.base.Decode("price_rules/create", res.Body, &ruleResp); err != nil {
		return nil, err
	}

	codePayload := map[string]interface{}{
		"discount_code": map[string]string{"code": spec.Code},
	}
	codeURL := a.apiURL(fmt.Sprintf("/price_rules/%d/discount_codes.json", ruleResp.PriceRule.ID))
	res, err = a.base.Call(ctx, "discount_codes/create", http.MethodPost, codeURL, a.authHeaders(), codePayload)
	if err != nil {
		return nil, err
	}

	var codeResp struct {
		DiscountCode shopifyDiscountCode `json:"discount_code"`
	}
	if err := a.base.Decode("discount_codes/create", res.Body, &codeResp); err != nil {
		return nil, err
	}

	return &integrations.DiscountResponse{
		ID:       strconv.FormatInt(ruleResp.PriceRule.ID, 10),
		Code:     codeResp.DiscountCode.Code,
		AdminURL: fmt.Sprintf("https://%s/admin/discounts/%d", shopHost(a.creds.ShopDomain), ruleResp.PriceRule.ID),
	}, nil
}

func startsAt(t *time.Time) string {
	if t != nil {
		return t.Format(time.RFC3339)
	}
	return time.Now().UTC().Format(time.RFC3339)
}

// ApplyBudgetPricing sets a percentage applied_discount on a draft order.
// The percentage is capped before it touches the order, and every failure
// comes back tagged instead of as an error.
func (a *Adapter) ApplyBudgetPricing(ctx context.Context, orderID string, pricing integrations.BudgetPricing) *integrations.OrderUpdate {
	capped := integrations.CapPercentage(pricing.DiscountPercentage)

	payload := map[string]interface{}{
		"draft_order": map[string]interface{}{
			"applied_discount": map[string]interface{}{
				"title":       "Budget pricing",
				"description": fmt.Sprintf("Budget pricing (%s)", pricing.Category),
				"value_type":  "percentage",
				"value":       fmt.Sprintf("%.2f", capped),
			},
		},
	}

	res, err := a.base.Call(ctx, "draft_orders/update", http.MethodPut, a.apiURL("/draft_orders/"+orderID+".json"), a.authHeaders(), payload)
	if err != nil {
		return &integrations.OrderUpdate{OrderID: orderID, Status: integrations.OrderUpdateFailed, Error: err.Error()}
	}
	if res.Status == http.StatusNotFound {
		return &integrations.OrderUpdate{OrderID: orderID, Status: integrations.OrderUpdateFailed, Error: "draft order not found"}
	}

	return &integrations.OrderUpdate{
		OrderID:           orderID,
		Status:            integrations.OrderUpdateSuccess,
		AppliedPercentage: capped,
	}
}

// RegisterWebhooks subscribes each topic individually; a failed topic is
// reported in its result and does not abort the rest.
func (a *Adapter) RegisterWebhooks(ctx context.Context, callbackURL string, topics []string) []integrations.WebhookResult {
	results := make([]integrations.WebhookResult, 0, len(topics))
	for _, topic := range topics {
		payload := map[string]interface{}{
			"webhook": map[string]string{
				"topic":   topic,
				"address": callbackURL,
				"format":  "json",
			},
		}
		result := integrations.WebhookResult{Topic: topic}

		res, err := a.base.Call(ctx, "webhooks/create", http.MethodPost, a.apiURL("/webhooks.json"), a.authHeaders(), payload)
		if err != nil {
			result.Error = err.Error()
			a.base.Logger.Warn("Failed to register %s webhook: %v", topic, err)
			results = append(results, result)
			continue
		}

		var body struct {
			Webhook shopifyWebhook `json:"webhook"`
		}
		if err := a.base.Decode("webhooks/create", res.Body, &body); err != nil {
			result.Error = err.Error()
		} else {
			result.WebhookID = strconv.FormatInt(body.Webhook.ID, 10)
		}
		results = append(results, result)
	}
	return results
}

func (a *Adapter) UnregisterWebhooks(ctx context.Context, callbackURL string) error {
	res, err := a.base.Call(ctx, "webhooks/list", http.MethodGet, a.apiURL("/webhooks.json"), a.authHeaders(), nil)
	if err != nil {
		return err
	}

	var body struct {
		Webhooks []shopifyWebhook `json:"webhooks"`
	}
	if err := a.base.Decode("webhooks/list", res.Body, &body); err != nil {
		return err
	}

	for _, wh := range body.Webhooks {
		if wh.Address != callbackURL {
			continue
		}
		u := a.apiURL(fmt.Sprintf("/webhooks/%d.json", wh.ID))
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
