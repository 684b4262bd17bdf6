package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Store struct {
	ID        string    `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Name      string    `json:"name" gorm:"not null"`
	Plan      string    `json:"plan" gorm:"default:free"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *Store) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}

// StoreIntegration holds one store's credentials for one platform.
// Credential fields are excluded from JSON so they never leak into
// responses or logs.
type StoreIntegration struct {
	ID            string     `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	StoreID       string     `json:"store_id" gorm:"not null;index:idx_store_platform,unique"`
	Platform      string     `json:"platform" gorm:"not null;index:idx_store_platform,unique"`
	ShopDomain    string     `json:"shop_domain"`
	APIKey        string     `json:"-"`
	APISecret     string     `json:"-"`
	AccessToken   string     `json:"-"`
	RefreshToken  string     `json:"-"`
	WebhookSecret string     `json:"-"`
	Status        string     `json:"status" gorm:"default:ACTIVE"`
	LastSync      *time.Time `json:"last_sync"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (si *StoreIntegration) BeforeCreate(tx *gorm.DB) error {
	if si.ID == "" {
		si.ID = uuid.New().String()
	}
	return nil
}

type IntegrationStatus string

const (
	IntegrationStatusActive   IntegrationStatus = "ACTIVE"
	IntegrationStatusInactive IntegrationStatus = "INACTIVE"
	IntegrationStatusError    IntegrationStatus = "ERROR"
)

// BudgetSettings is a store's pricing policy: category allocation split and
// discount ceiling, in whole percentages.
type BudgetSettings struct {
	ID                    string    `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	StoreID               string    `json:"store_id" gorm:"unique;not null"`
	NeedsPercentage       float64   `json:"needs_percentage" gorm:"default:50"`
	WantsPercentage       float64   `json:"wants_percentage" gorm:"default:30"`
	SavingsPercentage     float64   `json:"savings_percentage" gorm:"default:20"`
	MaxDiscountPercentage float64   `json:"max_discount_percentage" gorm:"default:25"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

func (b *BudgetSettings) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	return nil
}
