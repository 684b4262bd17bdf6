package woocommerce

import (
	"strconv"

	"pricebridge/internal/integrations"
)

// Raw WooCommerce REST v3 shapes. Prices are strings here too.

type wooProduct struct {
	ID               int64      `json:"id"`
	Name             string     `json:"name"`
	Slug             string     `json:"slug"`
	Description      string     `json:"description"`
	ShortDescription string     `json:"short_description"`
	SKU              string     `json:"sku"`
	Price            string     `json:"price"`
	RegularPrice     string     `json:"regular_price"`
	SalePrice        string     `json:"sale_price"`
	StockStatus      string     `json:"stock_status"`
	Tags             []wooTerm  `json:"tags"`
	Images           []wooImage `json:"images"`
	Variations       []int64    `json:"variations"`
}

type wooTerm struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type wooImage struct {
	ID  int64  `json:"id"`
	Src string `json:"src"`
}

type wooVariation struct {
	ID           int64  `json:"id"`
	SKU          string `json:"sku"`
	Price        string `json:"price"`
	RegularPrice string `json:"regular_price"`
	StockStatus  string `json:"stock_status"`
}

type wooCustomer struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type wooOrder struct {
	ID            int64          `json:"id"`
	Number        string         `json:"number"`
	Total         string         `json:"total"`
	DiscountTotal string         `json:"discount_total"`
	Currency      string         `json:"currency"`
	DateCreated   string         `json:"date_created_gmt"`
	LineItems     []wooOrderItem `json:"line_items"`
}

type wooOrderItem struct {
	ProductID   int64  `json:"product_id"`
	VariationID int64  `json:"variation_id"`
	Name        string `json:"name"`
	Quantity    int    `json:"quantity"`
	Price       float64 `json:"price"`
}

type wooCoupon struct {
	ID     int64  `json:"id"`
	Code   string `json:"code"`
	Amount string `json:"amount"`
}

type wooWebhook struct {
	ID          int64  `json:"id"`
	Topic       string `json:"topic"`
	DeliveryURL string `json:"delivery_url"`
}

// normalizeProduct maps a WooCommerce product, with its fetched variations,
// into the common shape. A product without variations still gets one
// variant synthesized from its own price so the variant list is never
// empty for a resolvable product.
func normalizeProduct(p wooProduct, variations []wooVariation) integrations.Product {
	variants := make([]integrations.ProductVariant, 0, len(variations)+1)
	for _, v := range variations {
		nv := integrations.ProductVariant{
			ID:        strconv.FormatInt(v.ID, 10),
			SKU:       v.SKU,
			Price:     parsePrice(firstNonEmpty(v.Price, v.RegularPrice)),
			Available: v.StockStatus != "outofstock",
		}
		if v.RegularPrice != "" && v.RegularPrice != v.Price {
			cap := parsePrice(v.RegularPrice)
			nv.CompareAtPrice = &cap
		}
		variants = append(variants, nv)
	}
	if len(variants) == 0 {
		variants = append(variants, integrations.ProductVariant{
			ID:        strconv.FormatInt(p.ID, 10),
			Title:     p.Name,
			SKU:       p.SKU,
			Price:     parsePrice(firstNonEmpty(p.Price, p.RegularPrice)),
			Available: p.StockStatus != "outofstock",
		})
	}

	tags := make([]string, 0, len(p.Tags))
	for _, t := range p.Tags {
		tags = append(tags, t.Name)
	}
	images := make([]string, 0, len(p.Images))
	for _, img := range p.Images {
		images = append(images, img.Src)
	}

	description := p.Description
	if description == "" {
		description = p.ShortDescription
	}

	return integrations.Product{
		ID:          strconv.FormatInt(p.ID, 10),
		Title:       p.Name,
		Handle:      p.Slug,
		Description: description,
		Tags:        tags,
		Images:      images,
		PriceRange:  integrations.PriceRangeOf(variants),
		Variants:    variants,
	}
}

func normalizeCustomer(c wooCustomer) integrations.Customer {
	return integrations.Customer{
		ID:        strconv.FormatInt(c.ID, 10),
		Email:     c.Email,
		FirstName: c.FirstName,
		LastName:  c.LastName,
	}
}

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

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
