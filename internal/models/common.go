// internal/models/common.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields. IDs are assigned in BeforeCreate so the
// schema carries no database-specific column default.
type BaseModel struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primary_key"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// JSONB type for PostgreSQL
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, j)
	case string:
		return json.Unmarshal([]byte(v), j)
	}
	return nil
}

// Enums
type MerchantRole string

const (
	MerchantRoleAdmin      MerchantRole = "admin"
	MerchantRoleSuperAdmin MerchantRole = "superAdmin"
)

type TransactionStatus string

const (
	TransactionStatusCreated       TransactionStatus = "created"
	TransactionStatusPending       TransactionStatus = "pending"
	TransactionStatusPaid          TransactionStatus = "paid"
	TransactionStatusFailed        TransactionStatus = "failed"
	TransactionStatusCancelled     TransactionStatus = "cancelled"
	TransactionStatusRefunded      TransactionStatus = "refunded"
	TransactionStatusPartialRefund TransactionStatus = "partial_refund"
)

// statusRank orders transaction statuses so webhook ingestion can apply
// forward-only transitions. Duplicate or out-of-order gateway events for a
// status at or behind the current one are ignored.
var statusRank = map[TransactionStatus]int{
	TransactionStatusCreated:       0,
	TransactionStatusPending:       1,
	TransactionStatusPaid:          2,
	TransactionStatusFailed:        2,
	TransactionStatusCancelled:     2,
	TransactionStatusPartialRefund: 3,
	TransactionStatusRefunded:      4,
}

// CanTransitionTo reports whether a status change moves the transaction
// forward. Sideways moves between terminal outcomes (paid -> failed) are
// rejected; refunds advance past paid.
func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	return statusRank[next] > statusRank[s]
}

type SettlementStatus string

const (
	SettlementStatusUnsettled SettlementStatus = "unsettled"
	SettlementStatusSettled   SettlementStatus = "settled"
	SettlementStatusOnHold    SettlementStatus = "on_hold"
)

type TxnPayoutStatus string

const (
	TxnPayoutStatusUnpaid    TxnPayoutStatus = "unpaid"
	TxnPayoutStatusRequested TxnPayoutStatus = "requested"
	TxnPayoutStatusPaid      TxnPayoutStatus = "paid"
)

type PayoutStatus string

const (
	PayoutStatusRequested  PayoutStatus = "requested"
	PayoutStatusPending    PayoutStatus = "pending"
	PayoutStatusProcessing PayoutStatus = "processing"
	PayoutStatusCompleted  PayoutStatus = "completed"
	PayoutStatusFailed     PayoutStatus = "failed"
	PayoutStatusCancelled  PayoutStatus = "cancelled"
	PayoutStatusRejected   PayoutStatus = "rejected"
)

// IsTerminal reports whether no further payout transitions are allowed.
func (s PayoutStatus) IsTerminal() bool {
	switch s {
	case PayoutStatusCompleted, PayoutStatusFailed, PayoutStatusCancelled, PayoutStatusRejected:
		return true
	}
	return false
}

type TransferMode string

const (
	TransferModeBankTransfer TransferMode = "bank_transfer"
	TransferModeUPI          TransferMode = "upi"
)

type PaymentGateway string

const (
	GatewayCashfree PaymentGateway = "cashfree"
	GatewayRazorpay PaymentGateway = "razorpay"
)
