package shopify

import (
	"strconv"
	"strings"

	"pricebridge/internal/integrations"
)

// Raw Shopify Admin API shapes. Prices arrive as strings.

type shopifyProduct struct {
	ID          int64            `json:"id"`
	Title       string           `json:"title"`
	Handle      string           `json:"handle"`
	BodyHTML    string           `json:"body_html"`
	Vendor      string           `json:"vendor"`
	Tags        string           `json:"tags"`
	Images      []shopifyImage   `json:"images"`
	Variants    []shopifyVariant `json:"variants"`
}

type shopifyImage struct {
	ID  int64  `json:"id"`
	Src string `json:"src"`
}

type shopifyVariant struct {
	ID                int64   `json:"id"`
	Title             string  `json:"title"`
	SKU               string  `json:"sku"`
	Price             string  `json:"price"`
	CompareAtPrice    *string `json:"compare_at_price"`
	InventoryQuantity int     `json:"inventory_quantity"`
}

type shopifyCustomer struct {
	ID          int64  `json:"id"`
	Email       string `json:"email"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Tags        string `json:"tags"`
	TotalSpent  string `json:"total_spent"`
	OrdersCount int    `json:"orders_count"`
}

type shopifyOrder struct {
	ID             int64              `json:"id"`
	Name           string             `json:"name"`
	TotalPrice     string             `json:"total_price"`
	TotalDiscounts string             `json:"total_discounts"`
	Currency       string             `json:"currency"`
	CreatedAt      string             `json:"created_at"`
	LineItems      []shopifyLineItem  `json:"line_items"`
}

type shopifyLineItem struct {
	ProductID int64  `json:"product_id"`
	VariantID int64  `json:"variant_id"`
	Title     string `json:"title"`
	Quantity  int    `json:"quantity"`
	Price     string `json:"price"`
}

type shopifyPriceRule struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	ValueType  string `json:"value_type"`
	Value      string `json:"value"`
}

type shopifyDiscountCode struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
}

type shopifyWebhook struct {
	ID      int64  `json:"id"`
	Topic   string `json:"topic"`
	Address string `json:"address"`
}

func normalizeProduct(p shopifyProduct) integrations.Product {
	variants := make([]integrations.ProductVariant, 0, len(p.Variants))
	for _, v := range p.Variants {
		nv := integrations.ProductVariant{
			ID:        strconv.FormatInt(v.ID, 10),
			Title:     v.Title,
			SKU:       v.SKU,
			Price:     parsePrice(v.Price),
			Available: v.InventoryQuantity > 0,
		}
		if v.CompareAtPrice != nil && *v.CompareAtPrice != "" {
			cap := parsePrice(*v.CompareAtPrice)
			nv.CompareAtPrice = &cap
		}
		variants = append(variants, nv)
	}

	images := make([]string, 0, len(p.Images))
	for _, img := range p.Images {
		images = append(images, img.Src)
	}

	return integrations.Product{
		ID:          strconv.FormatInt(p.ID, 10),
		Title:       p.Title,
		Handle:      p.Handle,
		Description: p.BodyHTML,
		Vendor:      p.Vendor,
		Tags:        splitTags(p.Tags),
		Images:      images,
		PriceRange:  integrations.PriceRangeOf(variants),
		Variants:    variants,
	}
}

func normalizeCustomer(c shopifyCustomer) integrations.Customer {
	return integrations.Customer{
		ID:          strconv.FormatInt(c.ID, 10),
		Email:       c.Email,
		FirstName:   c.FirstName,
		LastName:    c.LastName,
		Tags:        splitTags(c.Tags),
		TotalSpent:  parsePrice(c.TotalSpent),
		OrdersCount: c.OrdersCount,
	}
}

// parsePrice tolerates the empty strings Shopify sends for unset prices.
func parsePrice(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

// splitTags turns Shopify's comma-joined tag string into a slice.
func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
