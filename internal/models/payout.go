// internal/models/payout.go
package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type BeneficiaryDetails struct {
	AccountNumber     string `json:"account_number,omitempty"`
	IFSCCode          string `json:"ifsc_code,omitempty"`
	AccountHolderName string `json:"account_holder_name,omitempty"`
	BankName          string `json:"bank_name,omitempty"`
	UPIID             string `json:"upi_id,omitempty"`
}

type Payout struct {
	BaseModel
	PayoutID     string    `json:"payout_id" gorm:"uniqueIndex;size:64;not null"`
	MerchantID   uuid.UUID `json:"merchant_id" gorm:"type:uuid;not null;index"`
	MerchantName string    `json:"merchant_name" gorm:"size:255;not null"`

	// Money. NetAmount is frozen at request time; it is never recomputed
	// even if commission rules change afterwards.
	Amount              float64 `json:"amount" gorm:"type:decimal(12,2);not null"`
	Commission          float64 `json:"commission" gorm:"type:decimal(12,2);default:0"`
	CommissionType      string  `json:"commission_type" gorm:"size:20"`
	CommissionBreakdown JSONB   `json:"commission_breakdown,omitempty" gorm:"type:jsonb"`
	NetAmount           float64 `json:"net_amount" gorm:"type:decimal(12,2);not null"`
	Currency            string  `json:"currency" gorm:"size:3;default:'INR'"`

	// Transfer Details
	TransferMode      TransferMode `json:"transfer_mode" gorm:"type:varchar(20);not null"`
	AccountNumber     string       `json:"-" gorm:"size:32"`
	IFSCCode          string       `json:"ifsc_code,omitempty" gorm:"size:16"`
	AccountHolderName string       `json:"account_holder_name,omitempty" gorm:"size:255"`
	BankName          string       `json:"bank_name,omitempty" gorm:"size:255"`
	UPIID             string       `json:"-" gorm:"size:128"`

	Status PayoutStatus `json:"status" gorm:"type:varchar(16);default:'requested';index"`

	// Transactions reserved by this payout request
	RelatedTransactions pq.StringArray `json:"related_transactions,omitempty" gorm:"type:text[]"`
	UsedFreeCredit      bool           `json:"used_free_credit" gorm:"default:false"`

	// Actor trail
	RequestedBy     *uuid.UUID `json:"requested_by,omitempty" gorm:"type:uuid"`
	RequestedByName string     `json:"requested_by_name,omitempty" gorm:"size:255"`
	RequestedAt     *time.Time `json:"requested_at,omitempty"`
	ApprovedBy      *uuid.UUID `json:"approved_by,omitempty" gorm:"type:uuid"`
	ApprovedByName  string     `json:"approved_by_name,omitempty" gorm:"size:255"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty"`
	RejectedBy      *uuid.UUID `json:"rejected_by,omitempty" gorm:"type:uuid"`
	RejectedByName  string     `json:"rejected_by_name,omitempty" gorm:"size:255"`
	RejectedAt      *time.Time `json:"rejected_at,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty" gorm:"type:text"`
	ProcessedBy     *uuid.UUID `json:"processed_by,omitempty" gorm:"type:uuid"`
	ProcessedByName string     `json:"processed_by_name,omitempty" gorm:"size:255"`
	ProcessedAt     *time.Time `json:"processed_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`

	// Bank transfer reference, required to complete
	UTR string `json:"utr,omitempty" gorm:"size:64"`

	FailureReason   string `json:"failure_reason,omitempty" gorm:"type:text"`
	Notes           string `json:"notes,omitempty" gorm:"type:text"`
	SuperAdminNotes string `json:"super_admin_notes,omitempty" gorm:"type:text"`

	// Relationships
	Merchant Merchant `json:"merchant,omitempty" gorm:"foreignKey:MerchantID"`
}

// MaskedBeneficiary returns beneficiary details safe for read paths: only
// the last 4 digits of an account number are ever surfaced.
func (p *Payout) MaskedBeneficiary() BeneficiaryDetails {
	b := BeneficiaryDetails{
		IFSCCode:          p.IFSCCode,
		AccountHolderName: p.AccountHolderName,
		BankName:          p.BankName,
	}
	b.AccountNumber = MaskAccountNumber(p.AccountNumber)
	b.UPIID = p.UPIID
	return b
}

// MaskAccountNumber keeps the last 4 digits of an account number.
func MaskAccountNumber(accountNumber string) string {
	if accountNumber == "" {
		return ""
	}
	if len(accountNumber) <= 4 {
		return "XXXX" + accountNumber
	}
	return "XXXX" + accountNumber[len(accountNumber)-4:]
}
