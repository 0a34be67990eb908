// internal/models/merchant.go
package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

type Merchant struct {
	BaseModel
	Name         string       `json:"name" gorm:"size:255;not null"`
	Email        string       `json:"email" gorm:"uniqueIndex;size:255;not null"`
	BusinessName string       `json:"business_name" gorm:"size:255"`
	PasswordHash string       `json:"-" gorm:"size:255;not null"`
	Role         MerchantRole `json:"role" gorm:"type:varchar(20);default:'admin'"`

	// Business Details
	BusinessDetails JSONB `json:"business_details,omitempty" gorm:"type:jsonb"`

	// API access for gateway-facing merchant endpoints
	APIKey          *string    `json:"-" gorm:"uniqueIndex;size:128"`
	APIKeyCreatedAt *time.Time `json:"api_key_created_at,omitempty"`

	// Where merchant notifications are delivered after a transaction
	// reaches a terminal payment status.
	WebhookURL string `json:"webhook_url,omitempty" gorm:"size:512"`

	// Promotional credits: a payout request consumes one credit and is
	// charged zero commission; cancelling or rejecting the payout
	// restores the credit.
	FreePayoutsRemaining int `json:"free_payouts_remaining" gorm:"default:0"`

	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

func (m *Merchant) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	m.PasswordHash = string(hashedPassword)
	return nil
}

func (m *Merchant) CheckPassword(password string) error {
	return bcrypt.CompareHashAndPassword([]byte(m.PasswordHash), []byte(password))
}

func (m *Merchant) IsSuperAdmin() bool {
	return m.Role == MerchantRoleSuperAdmin
}

// DisplayName is what customers see on checkout pages and payment links.
func (m *Merchant) DisplayName() string {
	if m.BusinessName != "" {
		return m.BusinessName
	}
	return m.Name
}
