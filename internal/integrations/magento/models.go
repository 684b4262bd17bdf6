package magento

import (
	"strconv"

	"pricebridge/internal/integrations"
)

// Raw Magento 2 REST shapes.

type magentoProduct struct {
	ID               int64                  `json:"id"`
	SKU              string                 `json:"sku"`
	Name             string                 `json:"name"`
	Price            float64                `json:"price"`
	Status           int                    `json:"status"`
	CustomAttributes []magentoAttribute     `json:"custom_attributes"`
	MediaGallery     []magentoGalleryEntry  `json:"media_gallery_entries"`
}

type magentoAttribute struct {
	AttributeCode string      `json:"attribute_code"`
	Value         interface{} `json:"value"`
}

type magentoGalleryEntry struct {
	ID   int64  `json:"id"`
	File string `json:"file"`
}

type magentoSearchResult struct {
	Items      []magentoProduct `json:"items"`
	TotalCount int              `json:"total_count"`
}

type magentoCustomer struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
}

type magentoOrderSearch struct {
	Items      []magentoOrder `json:"items"`
	TotalCount int            `json:"total_count"`
}

type magentoOrder struct {
	EntityID       int64              `json:"entity_id"`
	IncrementID    string             `json:"increment_id"`
	GrandTotal     float64            `json:"grand_total"`
	DiscountAmount float64            `json:"discount_amount"`
	CurrencyCode   string             `json:"order_currency_code"`
	CreatedAt      string             `json:"created_at"`
	Items          []magentoOrderItem `json:"items"`
}

type magentoOrderItem struct {
	ProductID  int64   `json:"product_id"`
	SKU        string  `json:"sku"`
	Name       string  `json:"name"`
	QtyOrdered float64 `json:"qty_ordered"`
	Price      float64 `json:"price"`
}

type magentoSalesRule struct {
	RuleID int64  `json:"rule_id"`
	Name   string `json:"name"`
}

type magentoCoupon struct {
	CouponID int64  `json:"coupon_id"`
	Code     string `json:"code"`
}

// normalizeProduct maps a Magento product into the common shape. Magento
// simple products have no variant records over this endpoint; one variant
// is synthesized from the product itself.
func normalizeProduct(domain string, p magentoProduct) integrations.Product {
	variant := integrations.ProductVariant{
		ID:        strconv.FormatInt(p.ID, 10),
		Title:     p.Name,
		SKU:       p.SKU,
		Price:     p.Price,
		Available: p.Status == 1,
	}
	variants := []integrations.ProductVariant{variant}

	images := make([]string, 0, len(p.MediaGallery))
	for _, entry := range p.MediaGallery {
		if entry.File != "" {
			images = append(images, "https://"+domain+"/media/catalog/product"+entry.File)
		}
	}

	return integrations.Product{
		ID:          strconv.FormatInt(p.ID, 10),
		Title:       p.Name,
		Handle:      p.SKU,
		Description: attributeString(p.CustomAttributes, "description"),
		Vendor:      attributeString(p.CustomAttributes, "manufacturer"),
		Images:      images,
		PriceRange:  integrations.PriceRangeOf(variants),
		Variants:    variants,
	}
}

func normalizeCustomer(c magentoCustomer) integrations.Customer {
	return integrations.Customer{
		ID:        strconv.FormatInt(c.ID, 10),
		Email:     c.Email,
		FirstName: c.FirstName,
		LastName:  c.LastName,
	}
}

func attributeString(attrs []magentoAttribute, code string) string {
	for _, attr := range attrs {
		if attr.AttributeCode == code {
			if s, ok := attr.Value.(string); ok {
				return s
			}
		}
	}
	return ""
}
