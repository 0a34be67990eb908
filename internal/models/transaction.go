// internal/models/transaction.go
package models

import (
	"time"

	"github.com/google/uuid"
)

type Transaction struct {
	BaseModel
	TransactionID string    `json:"transaction_id" gorm:"uniqueIndex;size:64;not null"`
	OrderID       string    `json:"order_id" gorm:"uniqueIndex;size:64;not null"`
	MerchantID    uuid.UUID `json:"merchant_id" gorm:"type:uuid;not null;index"`
	MerchantName  string    `json:"merchant_name" gorm:"size:255;not null"`

	// Customer Details
	CustomerID    string `json:"customer_id" gorm:"size:64"`
	CustomerName  string `json:"customer_name" gorm:"size:255"`
	CustomerEmail string `json:"customer_email" gorm:"size:255"`
	CustomerPhone string `json:"customer_phone" gorm:"size:20"`

	// Payment Details
	Amount      float64 `json:"amount" gorm:"type:decimal(12,2);not null"`
	Currency    string  `json:"currency" gorm:"size:3;default:'INR'"`
	Description string  `json:"description" gorm:"type:text"`

	Status TransactionStatus `json:"status" gorm:"type:varchar(20);default:'created';index"`

	// Gateway Data
	PaymentGateway   PaymentGateway `json:"payment_gateway" gorm:"type:varchar(20);default:'cashfree'"`
	GatewayOrderID   string         `json:"gateway_order_id,omitempty" gorm:"size:128;index"`
	GatewayPaymentID string         `json:"gateway_payment_id,omitempty" gorm:"size:128;index"`
	GatewayLinkID    string         `json:"gateway_link_id,omitempty" gorm:"size:128;index"`
	SessionToken     string         `json:"-" gorm:"size:512"`
	PaymentMethod    string         `json:"payment_method,omitempty" gorm:"size:50"`
	CallbackURL      string         `json:"-" gorm:"size:512"`
	WebhookData      JSONB          `json:"-" gorm:"type:jsonb"`

	PaidAt        *time.Time `json:"paid_at,omitempty"`
	FailureReason string     `json:"failure_reason,omitempty" gorm:"type:text"`

	// Refund Data
	RefundAmount float64    `json:"refund_amount" gorm:"type:decimal(12,2);default:0"`
	RefundReason string     `json:"refund_reason,omitempty" gorm:"type:text"`
	RefundedAt   *time.Time `json:"refunded_at,omitempty"`

	// Settlement
	SettlementStatus       SettlementStatus `json:"settlement_status" gorm:"type:varchar(16);default:'unsettled';index"`
	ExpectedSettlementDate *time.Time       `json:"expected_settlement_date,omitempty"`
	SettlementDate         *time.Time       `json:"settlement_date,omitempty"`

	// Payout linkage: a settled transaction is reserved by at most one
	// payout at a time; payout_status acts as the claim flag.
	PayoutStatus TxnPayoutStatus `json:"payout_status" gorm:"type:varchar(16);default:'unpaid';index"`
	PayoutID     *string         `json:"payout_id,omitempty" gorm:"size:64;index"`

	// Relationships
	Merchant Merchant `json:"merchant,omitempty" gorm:"foreignKey:MerchantID"`
}

// RefundableAmount is what can still be refunded against this transaction.
func (t *Transaction) RefundableAmount() float64 {
	return t.Amount - t.RefundAmount
}

func (t *Transaction) IsPaid() bool {
	return t.Status == TransactionStatusPaid
}
