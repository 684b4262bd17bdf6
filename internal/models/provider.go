package models

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"pricebridge/internal/integrations"
	"pricebridge/internal/pricing"
)

// Provider is the gorm-backed store-configuration collaborator the
// registry loads credentials through.
type Provider struct {
	db *gorm.DB
}

func NewProvider(db *gorm.DB) *Provider {
	return &Provider{db: db}
}

// GetCredentials returns nil (not an error) when the store has no record
// for the platform; the registry turns that into ConfigurationMissing.
func (p *Provider) GetCredentials(ctx context.Context, storeID string, platform integrations.Platform) (*integrations.Credentials, error) {
	var si StoreIntegration
	err := p.db.WithContext(ctx).
		First(&si, "store_id = ? AND platform = ?", storeID, string(platform)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &integrations.Credentials{
		ShopDomain:    si.ShopDomain,
		APIKey:        si.APIKey,
		APISecret:     si.APISecret,
		AccessToken:   si.AccessToken,
		RefreshToken:  si.RefreshToken,
		WebhookSecret: si.WebhookSecret,
	}, nil
}

// PricingSettings loads a store's budget policy, falling back to the
// 50/30/20 defaults when none is saved.
func (p *Provider) PricingSettings(ctx context.Context, storeID string) (pricing.Settings, error) {
	var b BudgetSettings
	err := p.db.WithContext(ctx).First(&b, "store_id = ?", storeID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pricing.DefaultSettings(), nil
	}
	if err != nil {
		return pricing.Settings{}, err
	}

	return pricing.Settings{
		NeedsPercentage:       b.NeedsPercentage,
		WantsPercentage:       b.WantsPercentage,
		SavingsPercentage:     b.SavingsPercentage,
		MaxDiscountPercentage: b.MaxDiscountPercentage,
	}, nil
}
