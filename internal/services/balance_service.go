// internal/services/balance_service.go
package services

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ninexgroup/cashcavash-backend/internal/commission"
	"github.com/ninexgroup/cashcavash-backend/internal/models"
	"github.com/ninexgroup/cashcavash-backend/internal/settlement"
)

// BalanceService derives merchant balances from transaction and payout
// history. Balances are recomputed on every read; there is no stored
// balance column to drift out of sync.
type BalanceService struct {
	db    *gorm.DB
	clock *settlement.Clock
}

type NextSettlement struct {
	ExpectedAt time.Time `json:"expected_at"`
	Amount     float64   `json:"amount"`
	Label      string    `json:"label"`
}

type BalanceSummary struct {
	AvailableBalance   float64 `json:"available_balance"`
	SettledRevenue     float64 `json:"settled_revenue"`
	PayinCommission    float64 `json:"payin_commission"`
	TotalRefunded      float64 `json:"total_refunded"`
	CompletedPayoutNet float64 `json:"completed_payout_net"`
	PendingPayoutNet   float64 `json:"pending_payout_net"`

	// Paid but not yet settled; informational only, never withdrawable.
	UnsettledAmount float64 `json:"unsettled_amount"`
	UnsettledNet    float64 `json:"unsettled_net"`

	NextSettlement *NextSettlement `json:"next_settlement,omitempty"`
	Currency       string          `json:"currency"`
	ComputedAt     time.Time       `json:"computed_at"`
}

func NewBalanceService(db *gorm.DB, clock *settlement.Clock) *BalanceService {
	return &BalanceService{db: db, clock: clock}
}

// GetBalance computes the merchant's balance at `now`:
//
//	available = settled revenue
//	          - payin commission on settled revenue
//	          - total refunded
//	          - net of completed payouts
//	          - net of in-flight payouts (requested, pending, processing)
//
// Refunds are charged against the settled pool regardless of whether the
// refunded transaction itself has settled.
func (s *BalanceService) GetBalance(merchantID uuid.UUID, now time.Time) (*BalanceSummary, error) {
	summary := &BalanceSummary{
		Currency:   "INR",
		ComputedAt: now,
	}

	// Settled revenue and its payin commission. Commission is derived per
	// transaction, so the rows are walked rather than summed in SQL.
	var settled []models.Transaction
	if err := s.db.
		Where("merchant_id = ? AND settlement_status = ?", merchantID, models.SettlementStatusSettled).
		Find(&settled).Error; err != nil {
		return nil, err
	}
	for i := range settled {
		summary.SettledRevenue += settled[i].Amount
		summary.PayinCommission += commission.Payin(settled[i].Amount).Commission
	}

	// Refunds across the full history.
	if err := s.db.Model(&models.Transaction{}).
		Where("merchant_id = ?", merchantID).
		Select("COALESCE(SUM(refund_amount), 0)").
		Scan(&summary.TotalRefunded).Error; err != nil {
		return nil, err
	}

	// Payout nets.
	if err := s.db.Model(&models.Payout{}).
		Where("merchant_id = ? AND status = ?", merchantID, models.PayoutStatusCompleted).
		Select("COALESCE(SUM(net_amount), 0)").
		Scan(&summary.CompletedPayoutNet).Error; err != nil {
		return nil, err
	}
	inflight := []models.PayoutStatus{
		models.PayoutStatusRequested,
		models.PayoutStatusPending,
		models.PayoutStatusProcessing,
	}
	if err := s.db.Model(&models.Payout{}).
		Where("merchant_id = ? AND status IN ?", merchantID, inflight).
		Select("COALESCE(SUM(net_amount), 0)").
		Scan(&summary.PendingPayoutNet).Error; err != nil {
		return nil, err
	}

	summary.AvailableBalance = commission.Round2(
		summary.SettledRevenue -
			summary.PayinCommission -
			summary.TotalRefunded -
			summary.CompletedPayoutNet -
			summary.PendingPayoutNet)
	summary.SettledRevenue = commission.Round2(summary.SettledRevenue)
	summary.PayinCommission = commission.Round2(summary.PayinCommission)
	summary.TotalRefunded = commission.Round2(summary.TotalRefunded)
	summary.CompletedPayoutNet = commission.Round2(summary.CompletedPayoutNet)
	summary.PendingPayoutNet = commission.Round2(summary.PendingPayoutNet)

	// Paid but unsettled, with the earliest expected settlement as ETA.
	var unsettled []models.Transaction
	if err := s.db.
		Where("merchant_id = ? AND status = ? AND settlement_status = ?",
			merchantID, models.TransactionStatusPaid, models.SettlementStatusUnsettled).
		Find(&unsettled).Error; err != nil {
		return nil, err
	}

	var next *NextSettlement
	for i := range unsettled {
		t := &unsettled[i]
		summary.UnsettledAmount += t.Amount
		summary.UnsettledNet += t.Amount - commission.Payin(t.Amount).Commission

		if t.ExpectedSettlementDate == nil {
			continue
		}
		if next == nil || t.ExpectedSettlementDate.Before(next.ExpectedAt) {
			next = &NextSettlement{ExpectedAt: *t.ExpectedSettlementDate}
		}
	}
	if next != nil {
		// Everything due at or before the earliest date settles together.
		for i := range unsettled {
			t := &unsettled[i]
			if t.ExpectedSettlementDate != nil && !t.ExpectedSettlementDate.After(next.ExpectedAt) {
				next.Amount += t.Amount - commission.Payin(t.Amount).Commission
			}
		}
		next.Amount = commission.Round2(next.Amount)
		next.Label = s.clock.DateLabel(next.ExpectedAt, now)
		summary.NextSettlement = next
	}
	summary.UnsettledAmount = commission.Round2(summary.UnsettledAmount)
	summary.UnsettledNet = commission.Round2(summary.UnsettledNet)

	return summary, nil
}
