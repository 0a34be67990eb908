// internal/services/balance_service_test.go
package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ninexgroup/cashcavash-backend/internal/models"
	"github.com/ninexgroup/cashcavash-backend/internal/utils"
)

func createPayout(t *testing.T, db *gorm.DB, merchant *models.Merchant, netAmount float64, status models.PayoutStatus) *models.Payout {
	t.Helper()
	payout := &models.Payout{
		PayoutID:     utils.GeneratePayoutID(),
		MerchantID:   merchant.ID,
		MerchantName: merchant.DisplayName(),
		Amount:       netAmount,
		NetAmount:    netAmount,
		Currency:     "INR",
		TransferMode: models.TransferModeBankTransfer,
		Status:       status,
	}
	if err := db.Create(payout).Error; err != nil {
		t.Fatalf("failed to create payout: %v", err)
	}
	return payout
}

func TestGetBalanceFormula(t *testing.T) {
	db := setupTestDB(t)
	clock := testClock(t)
	svc := NewBalanceService(db, clock)
	merchant := createTestMerchant(t, db, 0)

	paidAt := time.Date(2024, 1, 8, 10, 0, 0, 0, testLocation(t))

	// Settled revenue: 1000 + 2000 with payin commission 44.84 + 89.68.
	txn := createPaidTransaction(t, db, merchant, 1000, paidAt, true)
	createPaidTransaction(t, db, merchant, 2000, paidAt, true)

	// 100 refunded against the first transaction.
	require.NoError(t, db.Model(txn).Updates(map[string]interface{}{
		"refund_amount": 100.0,
		"status":        models.TransactionStatusPartialRefund,
	}).Error)

	// One completed and one in-flight payout.
	createPayout(t, db, merchant, 500, models.PayoutStatusCompleted)
	createPayout(t, db, merchant, 200, models.PayoutStatusPending)

	summary, err := svc.GetBalance(merchant.ID, paidAt.Add(72*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, 3000.0, summary.SettledRevenue)
	assert.Equal(t, 134.52, summary.PayinCommission)
	assert.Equal(t, 100.0, summary.TotalRefunded)
	assert.Equal(t, 500.0, summary.CompletedPayoutNet)
	assert.Equal(t, 200.0, summary.PendingPayoutNet)

	// 3000 - 134.52 - 100 - 500 - 200
	assert.Equal(t, 2065.48, summary.AvailableBalance)
}

func TestGetBalanceUnsettledNeverCounts(t *testing.T) {
	db := setupTestDB(t)
	clock := testClock(t)
	svc := NewBalanceService(db, clock)
	merchant := createTestMerchant(t, db, 0)

	paidAt := time.Date(2024, 1, 8, 10, 0, 0, 0, testLocation(t))

	createPaidTransaction(t, db, merchant, 1000, paidAt, true)
	unsettled := createPaidTransaction(t, db, merchant, 800, paidAt, false)
	expected := clock.ExpectedSettlementDate(paidAt)
	require.NoError(t, db.Model(unsettled).Update("expected_settlement_date", expected).Error)

	summary, err := svc.GetBalance(merchant.ID, paidAt.Add(2*time.Hour))
	require.NoError(t, err)

	// Only the settled 1000 contributes to available.
	assert.Equal(t, 955.16, summary.AvailableBalance)
	assert.Equal(t, 800.0, summary.UnsettledAmount)
	assert.Equal(t, 764.13, summary.UnsettledNet)

	require.NotNil(t, summary.NextSettlement)
	assert.Equal(t, 764.13, summary.NextSettlement.Amount)
	assert.True(t, summary.NextSettlement.ExpectedAt.Equal(expected))
}

func TestGetBalanceEmptyMerchant(t *testing.T) {
	db := setupTestDB(t)
	svc := NewBalanceService(db, testClock(t))
	merchant := createTestMerchant(t, db, 0)

	summary, err := svc.GetBalance(merchant.ID, time.Now())
	require.NoError(t, err)

	assert.Equal(t, 0.0, summary.AvailableBalance)
	assert.Nil(t, summary.NextSettlement)
}

// A fully refunded settled transaction still carries its payin
// commission: the amount and the refund cancel out, but the platform's
// collection fee is not returned on refund.
func TestGetBalanceRefundedSettledKeepsCommissionCharge(t *testing.T) {
	db := setupTestDB(t)
	clock := testClock(t)
	svc := NewBalanceService(db, clock)
	merchant := createTestMerchant(t, db, 0)

	paidAt := time.Date(2024, 1, 8, 10, 0, 0, 0, testLocation(t))
	createPaidTransaction(t, db, merchant, 1000, paidAt, true)
	refunded := createPaidTransaction(t, db, merchant, 500, paidAt, true)
	require.NoError(t, db.Model(refunded).Updates(map[string]interface{}{
		"refund_amount": 500.0,
		"status":        models.TransactionStatusRefunded,
	}).Error)

	summary, err := svc.GetBalance(merchant.ID, paidAt.Add(72*time.Hour))
	require.NoError(t, err)

	// Revenue 1500, commission 44.84 + 22.42, refunds 500.
	assert.Equal(t, 1500.0, summary.SettledRevenue)
	assert.Equal(t, 67.26, summary.PayinCommission)
	assert.Equal(t, 500.0, summary.TotalRefunded)
	assert.Equal(t, 932.74, summary.AvailableBalance)
}
