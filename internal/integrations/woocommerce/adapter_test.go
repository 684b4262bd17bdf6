package woocommerce

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricebridge/internal/integrations"
	"pricebridge/internal/logger"
)

func newTestAdapter(t *testing.T, handler http.Handler) *Adapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return New("store1", integrations.Credentials{
		ShopDomain:    "shop.example.com",
		APIKey:        "ck_test",
		APISecret:     "cs_test",
		WebhookSecret: "whsec",
	}, Config{
		BaseURL:         srv.URL,
		RateLimit:       100,
		RateWindow:      time.Second,
		CacheMaxEntries: 50,
		CacheTTL:        time.Minute,
		Logger:          logger.New("error"),
	})
}

func basicAuth(key, secret string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(key+":"+secret))
}

func TestGetSimpleProductSynthesizesVariant(t *testing.T) {
	adapter := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/products/42", r.URL.Path)
		assert.Equal(t, basicAuth("ck_test", "cs_test"), r.Header.Get("Authorization"))
		fmt.Fprint(w, `{
			"id": 42, "name": "Mug", "slug": "mug", "sku": "MUG-1",
			"description": "", "short_description": "A mug",
			"price": "12.50", "regular_price": "12.50",
			"stock_status": "instock",
			"tags": [{"id": 1, "name": "kitchen"}],
			"images": [{"id": 5, "src": "https://cdn.example.com/mug.png"}],
			"variations": []
		}`)
	}))

	product, err := adapter.GetProduct(context.Background(), "42", integrations.FetchOptions{})
	require.NoError(t, err)
	require.NotNil(t, product)

	assert.Equal(t, "42", product.ID)
	assert.Equal(t, "mug", product.Handle)
	assert.Equal(t, "A mug", product.Description)
	assert.Equal(t, []string{"kitchen"}, product.Tags)
	require.Len(t, product.Variants, 1)
	assert.Equal(t, 12.50, product.Variants[0].Price)
	assert.True(t, product.Variants[0].Available)
	assert.Equal(t, 12.50, product.PriceRange.Min)
	assert.Equal(t, 12.50, product.PriceRange.Max)
}

func TestGetVariableProductFetchesVariations(t *testing.T) {
	adapter := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/products/43":
			fmt.Fprint(w, `{"id": 43, "name": "Tee", "slug": "tee", "stock_status": "instock", "variations": [431, 432]}`)
		case "/products/43/variations":
			fmt.Fprint(w, `[
				{"id": 431, "sku": "TEE-S", "price": "18.00", "regular_price": "20.00", "stock_status": "instock"},
				{"id": 432, "sku": "TEE-L", "price": "22.00", "regular_price": "22.00", "stock_status": "outofstock"}
			]`)
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))

	product, err := adapter.GetProduct(context.Background(), "43", integrations.FetchOptions{})
	require.NoError(t, err)
	require.NotNil(t, product)

	require.Len(t, product.Variants, 2)
	assert.Equal(t, 18.0, product.Variants[0].Price)
	require.NotNil(t, product.Variants[0].CompareAtPrice)
	assert.Equal(t, 20.0, *product.Variants[0].CompareAtPrice)
	assert.False(t, product.Variants[1].Available)
	assert.Equal(t, 18.0, product.PriceRange.Min)
	assert.Equal(t, 22.0, product.PriceRange.Max)
}

func TestGetProductNotFound(t *testing.T) {
	adapter := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	product, err := adapter.GetProduct(context.Background(), "999", integrations.FetchOptions{})
	require.NoError(t, err)
	assert.Nil(t, product)
}

func TestGetProductCacheHit(t *testing.T) {
	calls := 0
	adapter := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, `{"id": 42, "name": "Mug", "price": "12.50", "stock_status": "instock"}`)
	}))

	_, err := adapter.GetProduct(context.Background(), "42", integrations.FetchOptions{})
	require.NoError(t, err)
	_, err = adapter.GetProduct(context.Background(), "42", integrations.FetchOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestGetProductsHeaderPagination(t *testing.T) {
	adapter := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2", r.URL.Query().Get("per_page"))
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		w.Header().Set("X-WP-Total", "7")
		w.Header().Set("X-WP-TotalPages", "4")
		fmt.Fprint(w, `[{"id": 1, "name": "A", "price": "1.00"}, {"id": 2, "name": "B", "price": "2.00"}]`)
	}))

	page, err := adapter.GetProducts(context.Background(), integrations.ListOptions{Limit: 2, Cursor: "2"})
	require.NoError(t, err)

	assert.Len(t, page.Items, 2)
	assert.Equal(t, 7, page.TotalCount)
	assert.True(t, page.HasNextPage)
	assert.Equal(t, "3", page.Cursor)
}

func TestGetProductsLastPage(t *testing.T) {
	adapter := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-WP-Total", "7")
		w.Header().Set("X-WP-TotalPages", "4")
		fmt.Fprint(w, `[{"id": 7, "name": "G", "price": "7.00"}]`)
	}))

	page, err := adapter.GetProducts(context.Background(), integrations.ListOptions{Limit: 2, Cursor: "4"})
	require.NoError(t, err)
	assert.False(t, page.HasNextPage)
	assert.Empty(t, page.Cursor)
}

func signWoo(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestValidateWebhook(t *testing.T) {
	adapter := newTestAdapter(t, http.NotFoundHandler())
	body := []byte(`{"id":42,"name":"Mug"}`)

	headers := map[string]string{
		"X-WC-Webhook-Signature": signWoo("whsec", body),
	}
	assert.True(t, adapter.ValidateWebhook(headers, body))

	headers["X-WC-Webhook-Signature"] = signWoo("wrong", body)
	assert.False(t, adapter.ValidateWebhook(headers, body))

	headers["X-WC-Webhook-Signature"] = signWoo("whsec", body)
	assert.False(t, adapter.ValidateWebhook(headers, []byte(`{"id":42,"name":"Mug" }`)))

	assert.False(t, adapter.ValidateWebhook(map[string]string{}, body))
}

func TestValidateWebhookNoSecretFailsClosed(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)
	adapter := New("store1", integrations.Credentials{
		APIKey: "ck_test", APISecret: "cs_test",
	}, Config{BaseURL: srv.URL, RateLimit: 10, RateWindow: time.Second, Logger: logger.New("error")})

	body := []byte(`{}`)
	headers := map[string]string{"X-WC-Webhook-Signature": signWoo("", body)}
	assert.False(t, adapter.ValidateWebhook(headers, body))
}

func TestApplyBudgetPricingNegativeFeeLine(t *testing.T) {
	adapter := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/orders/88", r.URL.Path)

		var payload struct {
			FeeLines []struct {
				Name  string `json:"name"`
				Total string `json:"total"`
			} `json:"fee_lines"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		require.Len(t, payload.FeeLines, 1)
		// 200 * 30% ceiling = 60, not the 40% the engine asked for
		assert.Equal(t, "-60.00", payload.FeeLines[0].Total)
		fmt.Fprint(w, `{"id": 88}`)
	}))

	update := adapter.ApplyBudgetPricing(context.Background(), "88", integrations.BudgetPricing{
		OriginalPrice:      200,
		DiscountPercentage: 40,
		Category:           integrations.CategoryNeeds,
	})

	assert.Equal(t, integrations.OrderUpdateSuccess, update.Status)
	assert.Equal(t, 30.0, update.AppliedPercentage)
}

func TestApplyBudgetPricingOrderMissing(t *testing.T) {
	adapter := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	update := adapter.ApplyBudgetPricing(context.Background(), "88", integrations.BudgetPricing{
		OriginalPrice:      200,
		DiscountPercentage: 10,
	})
	assert.Equal(t, integrations.OrderUpdateFailed, update.Status)
	assert.NotEmpty(t, update.Error)
}

func TestCreateDiscountCoupon(t *testing.T) {
	adapter := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/coupons", r.URL.Path)
		var payload map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "percent", payload["discount_type"])
		assert.Equal(t, "10.00", payload["amount"])
		fmt.Fprint(w, `{"id": 301, "code": "SAVE10", "amount": "10.00"}`)
	}))

	discount, err := adapter.CreateDiscount(context.Background(), integrations.DiscountRequest{
		Title:     "Save ten",
		Code:      "SAVE10",
		ValueType: integrations.DiscountPercentage,
		Value:     10,
	})
	require.NoError(t, err)
	assert.Equal(t, "301", discount.ID)
	assert.Equal(t, "SAVE10", discount.Code)
	assert.Contains(t, discount.AdminURL, "shop.example.com/wp-admin")
}

func TestAuthenticateProbesKeys(t *testing.T) {
	adapter := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/system_status", r.URL.Path)
		assert.Equal(t, basicAuth("ck_live", "cs_live"), r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"environment":{}}`)
	}))

	auth, err := adapter.Authenticate(context.Background(), integrations.Credentials{
		APIKey:    "ck_live",
		APISecret: "cs_live",
	})
	require.NoError(t, err)
	assert.Equal(t, "ck_live", auth.AccessToken)
}

func TestAuthenticateRejectsBadKeys(t *testing.T) {
	adapter := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"code":"woocommerce_rest_cannot_view"}`)
	}))

	_, err := adapter.Authenticate(context.Background(), integrations.Credentials{
		APIKey:    "ck_bad",
		APISecret: "cs_bad",
	})
	var authErr *integrations.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, integrations.PlatformWooCommerce, authErr.Platform)
}

func TestRefreshTokenIsLocal(t *testing.T) {
	adapter := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("refresh must not hit the network")
	}))

	auth, err := adapter.RefreshToken(context.Background(), integrations.Credentials{APIKey: "ck_test"})
	require.NoError(t, err)
	assert.Equal(t, "ck_test", auth.AccessToken)
}
