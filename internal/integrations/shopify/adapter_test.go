package shopify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricebridge/internal/integrations"
	"pricebridge/internal/logger"
)

func newTestAdapter(t *testing.T, handler http.Handler) (*Adapter, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	adapter := New("store1", integrations.Credentials{
		ShopDomain:    "teststore",
		AccessToken:   "tok",
		WebhookSecret: "whsec",
	}, Config{
		BaseURL:         srv.URL,
		ClientID:        "cid",
		ClientSecret:    "csecret",
		RateLimit:       100,
		RateWindow:      time.Second,
		CacheMaxEntries: 50,
		CacheTTL:        time.Minute,
		Logger:          logger.New("error"),
	})
	return adapter, srv
}

const productJSON = `{"product":{
	"id": 101,
	"title": "Desk Lamp",
	"handle": "desk-lamp",
	"body_html": "<p>A lamp</p>",
	"vendor": "Lumen Co",
	"tags": "lighting, home , ",
	"images": [{"id": 1, "src": "https://cdn.example.com/lamp.png"}],
	"variants": [
		{"id": 9001, "title": "Small", "sku": "LAMP-S", "price": "19.99", "inventory_quantity": 3},
		{"id": 9002, "title": "Large", "sku": "LAMP-L", "price": "34.50", "compare_at_price": "39.99", "inventory_quantity": 0}
	]
}}`

func TestGetProductNormalizes(t *testing.T) {
	adapter, _ := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/products/101.json", r.URL.Path)
		assert.Equal(t, "tok", r.Header.Get("X-Shopify-Access-Token"))
		fmt.Fprint(w, productJSON)
	}))

	product, err := adapter.GetProduct(context.Background(), "101", integrations.FetchOptions{})
	require.NoError(t, err)
	require.NotNil(t, product)

	assert.Equal(t, "101", product.ID)
	assert.Equal(t, "Desk Lamp", product.Title)
	assert.Equal(t, "desk-lamp", product.Handle)
	assert.Equal(t, "Lumen Co", product.Vendor)
	assert.Equal(t, []string{"lighting", "home"}, product.Tags)
	require.Len(t, product.Variants, 2)
	assert.Equal(t, 19.99, product.Variants[0].Price)
	assert.True(t, product.Variants[0].Available)
	assert.False(t, product.Variants[1].Available)
	require.NotNil(t, product.Variants[1].CompareAtPrice)
	assert.Equal(t, 39.99, *product.Variants[1].CompareAtPrice)
	assert.Equal(t, 19.99, product.PriceRange.Min)
	assert.Equal(t, 34.50, product.PriceRange.Max)
	assert.LessOrEqual(t, product.PriceRange.Min, product.PriceRange.Max)
}

func TestNormalizeProductMissingPrices(t *testing.T) {
	product := normalizeProduct(shopifyProduct{
		ID:    7,
		Title: "Ghost",
		Variants: []shopifyVariant{
			{ID: 71, Title: "Default", Price: ""},
		},
	})

	assert.Equal(t, 0.0, product.Variants[0].Price)
	assert.Equal(t, 0.0, product.PriceRange.Min)
	assert.Equal(t, 0.0, product.PriceRange.Max)
	assert.False(t, math.IsNaN(product.PriceRange.Min))
	assert.False(t, math.IsNaN(product.PriceRange.Max))
}

func TestGetProductReadsThroughCache(t *testing.T) {
	calls := 0
	adapter, _ := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, productJSON)
	}))

	_, err := adapter.GetProduct(context.Background(), "101", integrations.FetchOptions{})
	require.NoError(t, err)
	_, err = adapter.GetProduct(context.Background(), "101", integrations.FetchOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	_, err = adapter.GetProduct(context.Background(), "101", integrations.FetchOptions{ForceRefresh: true})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestGetProductMaxAgeRefetchesOlderEntry(t *testing.T) {
	calls := 0
	adapter, _ := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, productJSON)
	}))

	_, err := adapter.GetProduct(context.Background(), "101", integrations.FetchOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	time.Sleep(150 * time.Millisecond)

	// entry is well within its TTL but older than this read tolerates
	_, err = adapter.GetProduct(context.Background(), "101", integrations.FetchOptions{MaxAge: 50 * time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	// a laxer read is served the refreshed entry
	_, err = adapter.GetProduct(context.Background(), "101", integrations.FetchOptions{MaxAge: time.Minute})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestGetProductNotFound(t *testing.T) {
	adapter, _ := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	product, err := adapter.GetProduct(context.Background(), "999", integrations.FetchOptions{})
	require.NoError(t, err)
	assert.Nil(t, product)
}

func TestGetProductUpstreamError(t *testing.T) {
	adapter, _ := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"errors":"boom"}`)
	}))

	_, err := adapter.GetProduct(context.Background(), "101", integrations.FetchOptions{})
	var upstream *integrations.UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, http.StatusInternalServerError, upstream.Status)
	assert.Equal(t, integrations.PlatformShopify, upstream.Platform)
}

func TestGetProductsPagination(t *testing.T) {
	adapter, _ := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		w.Header().Set("Link", `<https://teststore.myshopify.com/admin/api/2023-10/products.json?limit=2&page_info=nexttoken123>; rel="next"`)
		fmt.Fprint(w, `{"products":[{"id":1,"title":"A","variants":[{"id":11,"price":"5.00"}]},{"id":2,"title":"B","variants":[{"id":22,"price":"6.00"}]}]}`)
	}))

	page, err := adapter.GetProducts(context.Background(), integrations.ListOptions{Limit: 2})
	require.NoError(t, err)

	assert.Len(t, page.Items, 2)
	assert.True(t, page.HasNextPage)
	assert.Equal(t, "nexttoken123", page.Cursor)
}

func TestGetProductsLastPage(t *testing.T) {
	adapter, _ := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "nexttoken123", r.URL.Query().Get("page_info"))
		fmt.Fprint(w, `{"products":[]}`)
	}))

	page, err := adapter.GetProducts(context.Background(), integrations.ListOptions{Cursor: "nexttoken123"})
	require.NoError(t, err)
	assert.False(t, page.HasNextPage)
	assert.Empty(t, page.Cursor)
}

func signShopify(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestValidateWebhook(t *testing.T) {
	adapter, _ := newTestAdapter(t, http.NotFoundHandler())
	body := []byte(`{"id":101,"title":"Desk Lamp"}`)

	headers := map[string]string{
		"X-Shopify-Hmac-Sha256": signShopify("whsec", body),
	}
	assert.True(t, adapter.ValidateWebhook(headers, body))

	// correct signature computed with the wrong secret
	headers["X-Shopify-Hmac-Sha256"] = signShopify("othersecret", body)
	assert.False(t, adapter.ValidateWebhook(headers, body))

	// body tampered after signing
	headers["X-Shopify-Hmac-Sha256"] = signShopify("whsec", body)
	assert.False(t, adapter.ValidateWebhook(headers, append(body, ' ')))

	// fails closed with no signature at all
	assert.False(t, adapter.ValidateWebhook(map[string]string{}, body))
}

func TestApplyBudgetPricingCapsPercentage(t *testing.T) {
	adapter, _ := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/draft_orders/555.json", r.URL.Path)

		var payload struct {
			DraftOrder struct {
				AppliedDiscount struct {
					Value string `json:"value"`
				} `json:"applied_discount"`
			} `json:"draft_order"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "30.00", payload.DraftOrder.AppliedDiscount.Value)
		fmt.Fprint(w, `{"draft_order":{"id":555}}`)
	}))

	update := adapter.ApplyBudgetPricing(context.Background(), "555", integrations.BudgetPricing{
		OriginalPrice:      1000,
		BudgetPrice:        550,
		DiscountPercentage: 45, // engine computed higher than the ceiling
		Category:           integrations.CategoryWants,
	})

	assert.Equal(t, integrations.OrderUpdateSuccess, update.Status)
	assert.Equal(t, 30.0, update.AppliedPercentage)
}

func TestApplyBudgetPricingFailureIsTagged(t *testing.T) {
	adapter, _ := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, `{"errors":"order locked"}`)
	}))

	update := adapter.ApplyBudgetPricing(context.Background(), "555", integrations.BudgetPricing{
		OriginalPrice:      100,
		DiscountPercentage: 10,
	})

	assert.Equal(t, integrations.OrderUpdateFailed, update.Status)
	assert.NotEmpty(t, update.Error)
}

func TestCreateDiscount(t *testing.T) {
	adapter, _ := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/price_rules.json":
			var payload struct {
				PriceRule map[string]interface{} `json:"price_rule"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			assert.Equal(t, "percentage", payload.PriceRule["value_type"])
			assert.Equal(t, "-15.00", payload.PriceRule["value"])
			fmt.Fprint(w, `{"price_rule":{"id":777,"title":"Spring"}}`)
		case "/price_rules/777/discount_codes.json":
			fmt.Fprint(w, `{"discount_code":{"id":888,"code":"SPRING15"}}`)
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))

	discount, err := adapter.CreateDiscount(context.Background(), integrations.DiscountRequest{
		Title:     "Spring",
		Code:      "SPRING15",
		ValueType: integrations.DiscountPercentage,
		Value:     15,
	})
	require.NoError(t, err)

	assert.Equal(t, "777", discount.ID)
	assert.Equal(t, "SPRING15", discount.Code)
	assert.Contains(t, discount.AdminURL, "teststore.myshopify.com/admin/discounts/777")
}

func TestAuthenticateExchangesCode(t *testing.T) {
	adapter, _ := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/oauth/access_token", r.URL.Path)
		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "cid", payload["client_id"])
		assert.Equal(t, "authcode", payload["code"])
		fmt.Fprint(w, `{"access_token":"newtok","scope":"read_products"}`)
	}))

	auth, err := adapter.Authenticate(context.Background(), integrations.Credentials{
		ShopDomain: "teststore",
		APIKey:     "authcode",
	})
	require.NoError(t, err)
	assert.Equal(t, "newtok", auth.AccessToken)
	assert.Equal(t, "read_products", auth.Scope)
}

func TestRegisterWebhooksBestEffort(t *testing.T) {
	adapter, _ := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Webhook struct {
				Topic string `json:"topic"`
			} `json:"webhook"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		if payload.Webhook.Topic == "orders/create" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			fmt.Fprint(w, `{"errors":"already exists"}`)
			return
		}
		fmt.Fprint(w, `{"webhook":{"id":42,"topic":"products/update"}}`)
	}))

	results := adapter.RegisterWebhooks(context.Background(), "https://app.example.com/hooks", []string{"products/update", "orders/create"})
	require.Len(t, results, 2)
	assert.Equal(t, "42", results[0].WebhookID)
	assert.Empty(t, results[0].Error)
	assert.NotEmpty(t, results[1].Error)
}

func TestAuthorizeURL(t *testing.T) {
	u, state, err := AuthorizeURL("cid", "teststore", "https://app.example.com/cb")
	require.NoError(t, err)
	assert.Contains(t, u, "https://teststore.myshopify.com/admin/oauth/authorize")
	assert.Contains(t, u, "client_id=cid")
	assert.Contains(t, u, "state="+state)
	assert.Len(t, state, 64)
}
