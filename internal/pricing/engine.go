// Package pricing computes budget-capped discounts. Pure computation, no
// I/O: platform state (applied discounts, base price) comes in as inputs
// and discount application goes back out through the adapters.
package pricing

import (
	"math"

	"pricebridge/internal/integrations"
)

// Settings are the merchant-configurable knobs. Percentages are whole
// numbers (30 means 30%).
type Settings struct {
	NeedsPercentage       float64 `json:"needs_percentage"`
	WantsPercentage       float64 `json:"wants_percentage"`
	SavingsPercentage     float64 `json:"savings_percentage"`
	MaxDiscountPercentage float64 `json:"max_discount_percentage"`
}

// DefaultSettings is the 50/30/20 budgeting split with a 25% discount cap.
func DefaultSettings() Settings {
	return Settings{
		NeedsPercentage:       50,
		WantsPercentage:       30,
		SavingsPercentage:     20,
		MaxDiscountPercentage: 25,
	}
}

// Allocation returns the budget share for a category. Unknown categories
// get the savings share, the most conservative one.
func (s Settings) Allocation(category integrations.BudgetCategory) float64 {
	switch category {
	case integrations.CategoryNeeds:
		return s.NeedsPercentage
	case integrations.CategoryWants:
		return s.WantsPercentage
	default:
		return s.SavingsPercentage
	}
}

type Input struct {
	BasePrice             float64                      `json:"base_price"`
	PlatformDiscounts     float64                      `json:"platform_discounts"`
	CustomerBudget        float64                      `json:"customer_budget"`
	Category              integrations.BudgetCategory  `json:"category"`
	AllocationPercentage  float64                      `json:"allocation_percentage"`
	MaxDiscountPercentage float64                      `json:"max_discount_percentage"`
}

type Result struct {
	BasePrice                   float64                     `json:"base_price"`
	AvailableBudget             float64                     `json:"available_budget"`
	PriceAfterPlatformDiscounts float64                     `json:"price_after_platform_discounts"`
	BudgetDiscount              float64                     `json:"budget_discount"`
	FinalPrice                  float64                     `json:"final_price"`
	DiscountPercentage          float64                     `json:"discount_percentage"`
	WithinBudget                bool                        `json:"within_budget"`
	RemainingBudget             float64                     `json:"remaining_budget"`
	Category                    integrations.BudgetCategory `json:"category"`
}

// Compute derives the budget-capped price. The extra discount needed to fit
// the allocation is capped at MaxDiscountPercentage of the base price; if
// the post-platform price already fits, no budget discount is added. All
// monetary outputs are rounded half-up to 2 decimal places so repeated
// calls cannot drift.
func Compute(in Input) Result {
	maxPct := in.MaxDiscountPercentage
	if maxPct <= 0 {
		maxPct = DefaultSettings().MaxDiscountPercentage
	}

	availableBudget := in.CustomerBudget * in.AllocationPercentage / 100
	priceAfter := in.BasePrice - in.PlatformDiscounts
	if priceAfter < 0 {
		priceAfter = 0
	}

	budgetDiscount := 0.0
	if priceAfter > availableBudget {
		needed := priceAfter - availableBudget
		cap := in.BasePrice * maxPct / 100
		if needed > cap {
			needed = cap
		}
		budgetDiscount = needed
	}
	finalPrice := priceAfter - budgetDiscount

	discountPct := 0.0
	if in.BasePrice > 0 {
		discountPct = (in.PlatformDiscounts + budgetDiscount) / in.BasePrice * 100
	}

	return Result{
		BasePrice:                   round2(in.BasePrice),
		AvailableBudget:             round2(availableBudget),
		PriceAfterPlatformDiscounts: round2(priceAfter),
		BudgetDiscount:              round2(budgetDiscount),
		FinalPrice:                  round2(finalPrice),
		DiscountPercentage:          round2(discountPct),
		WithinBudget:                round2(finalPrice) <= round2(availableBudget),
		RemainingBudget:             round2(availableBudget - finalPrice),
		Category:                    in.Category,
	}
}

// ComputeForCustomer folds the category allocation out of Settings. Still
// pure: settings are passed in, not loaded.
func ComputeForCustomer(basePrice, platformDiscounts, customerBudget float64, category integrations.BudgetCategory, s Settings) Result {
	return Compute(Input{
		BasePrice:             basePrice,
		PlatformDiscounts:     platformDiscounts,
		CustomerBudget:        customerBudget,
		Category:              category,
		AllocationPercentage:  s.Allocation(category),
		MaxDiscountPercentage: s.MaxDiscountPercentage,
	})
}

// ToBudgetPricing shapes a result for adapter order application.
func (r Result) ToBudgetPricing(customerID string) integrations.BudgetPricing {
	return integrations.BudgetPricing{
		OriginalPrice:      r.BasePrice,
		BudgetPrice:        r.FinalPrice,
		DiscountPercentage: r.DiscountPercentage,
		Category:           r.Category,
		CustomerID:         customerID,
	}
}

// round2 rounds half-up to 2 decimal places.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
