package integrations

import "time"

type Platform string

const (
	PlatformShopify     Platform = "shopify"
	PlatformWooCommerce Platform = "woocommerce"
	PlatformMagento     Platform = "magento"
)

// Credentials holds everything needed to talk to one store on one platform.
// Fields are opaque per platform and must never be logged.
type Credentials struct {
	ShopDomain    string `json:"shop_domain"`
	APIKey        string `json:"api_key"`
	APISecret     string `json:"api_secret"`
	AccessToken   string `json:"access_token"`
	RefreshToken  string `json:"refresh_token"`
	WebhookSecret string `json:"webhook_secret"`
}

type AuthResult struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// Product is the normalized shape shared by all platforms.
type Product struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	Handle      string           `json:"handle"`
	Description string           `json:"description"`
	Vendor      string           `json:"vendor"`
	Tags        []string         `json:"tags"`
	Images      []string         `json:"images"`
	PriceRange  PriceRange       `json:"price_range"`
	Variants    []ProductVariant `json:"variants"`
}

type PriceRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

type ProductVariant struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	SKU            string   `json:"sku"`
	Price          float64  `json:"price"`
	CompareAtPrice *float64 `json:"compare_at_price,omitempty"`
	Available      bool     `json:"available"`
}

type Customer struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	FirstName   string   `json:"first_name"`
	LastName    string   `json:"last_name"`
	Tags        []string `json:"tags"`
	TotalSpent  float64  `json:"total_spent"`
	OrdersCount int      `json:"orders_count"`
}

type Purchase struct {
	ID            string         `json:"id"`
	OrderNumber   string         `json:"order_number"`
	Total         float64        `json:"total"`
	DiscountTotal float64        `json:"discount_total"`
	Currency      string         `json:"currency"`
	CreatedAt     time.Time      `json:"created_at"`
	Items         []PurchaseItem `json:"items"`
}

type PurchaseItem struct {
	ProductID string  `json:"product_id"`
	VariantID string  `json:"variant_id,omitempty"`
	Title     string  `json:"title"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

type DiscountValueType string

const (
	DiscountPercentage  DiscountValueType = "percentage"
	DiscountFixedAmount DiscountValueType = "fixed_amount"
)

// DiscountRequest is a merchant-issued discount specification.
type DiscountRequest struct {
	Title         string            `json:"title"`
	Code          string            `json:"code"`
	ValueType     DiscountValueType `json:"value_type"`
	Value         float64           `json:"value"`
	MinimumAmount float64           `json:"minimum_amount,omitempty"`
	UsageLimit    int               `json:"usage_limit,omitempty"`
	CustomerID    string            `json:"customer_id,omitempty"`
	StartsAt      *time.Time        `json:"starts_at,omitempty"`
	EndsAt        *time.Time        `json:"ends_at,omitempty"`
}

// DiscountResponse is the platform-created artifact.
type DiscountResponse struct {
	ID       string `json:"id"`
	Code     string `json:"code"`
	AdminURL string `json:"admin_url,omitempty"`
}

type BudgetCategory string

const (
	CategoryNeeds   BudgetCategory = "needs"
	CategoryWants   BudgetCategory = "wants"
	CategorySavings BudgetCategory = "savings"
)

// BudgetPricing is the input to discount application on an order.
type BudgetPricing struct {
	OriginalPrice      float64        `json:"original_price"`
	BudgetPrice        float64        `json:"budget_price"`
	DiscountPercentage float64        `json:"discount_percentage"`
	Category           BudgetCategory `json:"category"`
	CustomerID         string         `json:"customer_id"`
}

type OrderUpdateStatus string

const (
	OrderUpdateSuccess OrderUpdateStatus = "success"
	OrderUpdateFailed  OrderUpdateStatus = "failed"
)

// OrderUpdate is the tagged result of ApplyBudgetPricing. Failures are
// reported here, never raised past the adapter boundary.
type OrderUpdate struct {
	OrderID           string            `json:"order_id"`
	Status            OrderUpdateStatus `json:"status"`
	AppliedPercentage float64           `json:"applied_percentage,omitempty"`
	Error             string            `json:"error,omitempty"`
}

// FetchOptions controls single-entity reads.
type FetchOptions struct {
	// MaxAge is the oldest cached entry this read will accept; an entry
	// stored longer ago is refetched. Zero accepts any unexpired entry.
	MaxAge time.Duration
	// ForceRefresh skips the cache and overwrites it on success.
	ForceRefresh bool
}

// ListOptions controls paginated reads. Cursor is opaque to callers: a
// page_info token on Shopify, a page number on WooCommerce and Magento.
type ListOptions struct {
	Limit  int
	Cursor string
}

// ProductPage is the uniform pagination shape adapters translate each
// platform's idiom into.
type ProductPage struct {
	Items       []Product `json:"items"`
	HasNextPage bool      `json:"has_next_page"`
	Cursor      string    `json:"cursor,omitempty"`
	TotalCount  int       `json:"total_count,omitempty"`
}

// PriceRangeOf derives min/max from variant prices. A product with no
// priced variants gets a zero range, never NaN.
func PriceRangeOf(variants []ProductVariant) PriceRange {
	var r PriceRange
	first := true
	for _, v := range variants {
		if first {
			r.Min, r.Max = v.Price, v.Price
			first = false
			continue
		}
		if v.Price < r.Min {
			r.Min = v.Price
		}
		if v.Price > r.Max {
			r.Max = v.Price
		}
	}
	return r
}

type WebhookResult struct {
	Topic     string `json:"topic"`
	WebhookID string `json:"webhook_id,omitempty"`
	Error     string `json:"error,omitempty"`
}
