// internal/services/payout_service_test.go
package services

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ninexgroup/cashcavash-backend/internal/commission"
	"github.com/ninexgroup/cashcavash-backend/internal/models"
)

func bankTransferRequest(amount float64) *PayoutRequestInput {
	return &PayoutRequestInput{
		Amount:            amount,
		TransferMode:      "bank_transfer",
		AccountNumber:     "123456789012",
		IFSCCode:          "HDFC0001234",
		AccountHolderName: "Test Merchant",
		BankName:          "HDFC Bank",
	}
}

func newPayoutFixture(t *testing.T) (*PayoutService, *BalanceService, *models.Merchant, func() *models.Merchant) {
	t.Helper()
	db := setupTestDB(t)
	clock := testClock(t)
	balance := NewBalanceService(db, clock)
	svc := NewPayoutService(db, testConfig(), balance)
	merchant := createTestMerchant(t, db, 0)

	reload := func() *models.Merchant {
		var m models.Merchant
		require.NoError(t, db.First(&m, merchant.ID).Error)
		return &m
	}

	paidAt := time.Date(2024, 1, 8, 10, 0, 0, 0, testLocation(t))
	createPaidTransaction(t, db, merchant, 2000, paidAt, true)

	return svc, balance, merchant, reload
}

func TestRequestPayoutReservesTransactions(t *testing.T) {
	svc, _, merchant, _ := newPayoutFixture(t)
	actor := PayoutActor{ID: merchant.ID, Name: merchant.DisplayName()}

	payout, err := svc.RequestPayout(actor, bankTransferRequest(1000))
	require.NoError(t, err)

	assert.Equal(t, models.PayoutStatusRequested, payout.Status)
	assert.Equal(t, 35.40, payout.Commission)
	assert.Equal(t, "flat", payout.CommissionType)
	assert.Equal(t, 964.60, payout.NetAmount)
	assert.Len(t, payout.RelatedTransactions, 1)

	var txn models.Transaction
	require.NoError(t, svc.db.Where("transaction_id = ?", payout.RelatedTransactions[0]).First(&txn).Error)
	assert.Equal(t, models.TxnPayoutStatusRequested, txn.PayoutStatus)
	require.NotNil(t, txn.PayoutID)
	assert.Equal(t, payout.PayoutID, *txn.PayoutID)
}

func TestRequestPayoutInsufficientBalance(t *testing.T) {
	svc, balance, merchant, _ := newPayoutFixture(t)
	actor := PayoutActor{ID: merchant.ID, Name: merchant.DisplayName()}

	summary, err := balance.GetBalance(merchant.ID, time.Now())
	require.NoError(t, err)

	gross := summary.AvailableBalance + 100
	expectedNet := commission.Payout(gross).NetAmount
	require.Greater(t, expectedNet, summary.AvailableBalance)

	_, err = svc.RequestPayout(actor, bankTransferRequest(gross))
	var insufficientErr *InsufficientBalanceError
	require.ErrorAs(t, err, &insufficientErr)
	assert.Equal(t, summary.AvailableBalance, insufficientErr.Available)
	assert.Equal(t, gross, insufficientErr.Requested)
	assert.Equal(t, expectedNet, insufficientErr.Net)
	assert.Equal(t, commission.Round2(expectedNet-summary.AvailableBalance), insufficientErr.Shortfall)
}

func TestRequestPayoutAdmitsWhenNetWithinBalance(t *testing.T) {
	svc, balance, merchant, _ := newPayoutFixture(t)
	actor := PayoutActor{ID: merchant.ID, Name: merchant.DisplayName()}

	summary, err := balance.GetBalance(merchant.ID, time.Now())
	require.NoError(t, err)

	// Gross above the available balance but net within it: the check
	// runs against what actually leaves the ledger.
	gross := 1930.0
	require.Greater(t, gross, summary.AvailableBalance)
	expectedNet := commission.Payout(gross).NetAmount
	require.LessOrEqual(t, expectedNet, summary.AvailableBalance)

	payout, err := svc.RequestPayout(actor, bankTransferRequest(gross))
	require.NoError(t, err)
	assert.Equal(t, gross, payout.Amount)
	assert.Equal(t, expectedNet, payout.NetAmount)
	assert.Equal(t, models.PayoutStatusRequested, payout.Status)
}

func TestRequestPayoutAmountLimits(t *testing.T) {
	svc, _, merchant, _ := newPayoutFixture(t)
	actor := PayoutActor{ID: merchant.ID, Name: merchant.DisplayName()}

	var limitErr *PayoutLimitError
	_, err := svc.RequestPayout(actor, bankTransferRequest(400))
	require.ErrorAs(t, err, &limitErr)

	_, err = svc.RequestPayout(actor, bankTransferRequest(200000))
	require.ErrorAs(t, err, &limitErr)
}

func TestRequestPayoutBeneficiaryRequired(t *testing.T) {
	svc, _, merchant, _ := newPayoutFixture(t)
	actor := PayoutActor{ID: merchant.ID, Name: merchant.DisplayName()}

	req := bankTransferRequest(1000)
	req.AccountNumber = ""
	_, err := svc.RequestPayout(actor, req)
	assert.ErrorIs(t, err, ErrMissingBeneficiary)

	upi := &PayoutRequestInput{Amount: 1000, TransferMode: "upi"}
	_, err = svc.RequestPayout(actor, upi)
	assert.ErrorIs(t, err, ErrMissingBeneficiary)
}

func TestCancelPayoutRestoresBalance(t *testing.T) {
	svc, balance, merchant, _ := newPayoutFixture(t)
	actor := PayoutActor{ID: merchant.ID, Name: merchant.DisplayName()}

	before, err := balance.GetBalance(merchant.ID, time.Now())
	require.NoError(t, err)

	payout, err := svc.RequestPayout(actor, bankTransferRequest(1000))
	require.NoError(t, err)

	during, err := balance.GetBalance(merchant.ID, time.Now())
	require.NoError(t, err)
	assert.InDelta(t, before.AvailableBalance-964.60, during.AvailableBalance, 0.01)

	cancelled, err := svc.CancelPayout(merchant.ID, payout.PayoutID)
	require.NoError(t, err)
	assert.Equal(t, models.PayoutStatusCancelled, cancelled.Status)

	after, err := balance.GetBalance(merchant.ID, time.Now())
	require.NoError(t, err)
	assert.InDelta(t, before.AvailableBalance, after.AvailableBalance, 0.01)

	// Reserved transactions returned to the unpaid pool.
	var txn models.Transaction
	require.NoError(t, svc.db.Where("transaction_id = ?", payout.RelatedTransactions[0]).First(&txn).Error)
	assert.Equal(t, models.TxnPayoutStatusUnpaid, txn.PayoutStatus)
	assert.Nil(t, txn.PayoutID)
}

func TestPayoutApproveProcessFlow(t *testing.T) {
	svc, _, merchant, _ := newPayoutFixture(t)
	actor := PayoutActor{ID: merchant.ID, Name: merchant.DisplayName()}
	admin := PayoutActor{ID: merchant.ID, Name: "Super Admin"}

	payout, err := svc.RequestPayout(actor, bankTransferRequest(1000))
	require.NoError(t, err)

	// Process before approval is a state conflict.
	var stateErr *PayoutStateError
	_, err = svc.ProcessPayout(payout.PayoutID, admin, "UTR123456", "")
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, models.PayoutStatusRequested, stateErr.Current)

	approved, err := svc.ApprovePayout(payout.PayoutID, admin, "looks good")
	require.NoError(t, err)
	assert.Equal(t, models.PayoutStatusPending, approved.Status)
	assert.Equal(t, "Super Admin", approved.ApprovedByName)

	// Approving twice is a state conflict.
	_, err = svc.ApprovePayout(payout.PayoutID, admin, "")
	require.ErrorAs(t, err, &stateErr)

	// UTR is mandatory to complete.
	_, err = svc.ProcessPayout(payout.PayoutID, admin, "", "")
	assert.ErrorIs(t, err, ErrUTRRequired)

	completed, err := svc.ProcessPayout(payout.PayoutID, admin, "UTR123456", "paid via NEFT")
	require.NoError(t, err)
	assert.Equal(t, models.PayoutStatusCompleted, completed.Status)
	assert.Equal(t, "UTR123456", completed.UTR)
	require.NotNil(t, completed.CompletedAt)

	// Reserved transactions reach their terminal paid state.
	var txn models.Transaction
	require.NoError(t, svc.db.Where("transaction_id = ?", payout.RelatedTransactions[0]).First(&txn).Error)
	assert.Equal(t, models.TxnPayoutStatusPaid, txn.PayoutStatus)

	// Cancelling a completed payout is impossible.
	_, err = svc.CancelPayout(merchant.ID, payout.PayoutID)
	require.ErrorAs(t, err, &stateErr)
}

func TestRejectPayoutReleasesReservations(t *testing.T) {
	svc, balance, merchant, _ := newPayoutFixture(t)
	actor := PayoutActor{ID: merchant.ID, Name: merchant.DisplayName()}
	admin := PayoutActor{ID: merchant.ID, Name: "Super Admin"}

	before, err := balance.GetBalance(merchant.ID, time.Now())
	require.NoError(t, err)

	payout, err := svc.RequestPayout(actor, bankTransferRequest(1000))
	require.NoError(t, err)

	_, err = svc.RejectPayout(payout.PayoutID, admin, "")
	assert.ErrorIs(t, err, ErrRejectReasonRequired)

	rejected, err := svc.RejectPayout(payout.PayoutID, admin, "suspicious activity")
	require.NoError(t, err)
	assert.Equal(t, models.PayoutStatusRejected, rejected.Status)
	assert.Equal(t, "suspicious activity", rejected.RejectionReason)

	after, err := balance.GetBalance(merchant.ID, time.Now())
	require.NoError(t, err)
	assert.InDelta(t, before.AvailableBalance, after.AvailableBalance, 0.01)
}

func TestFreeCreditRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	clock := testClock(t)
	balance := NewBalanceService(db, clock)
	svc := NewPayoutService(db, testConfig(), balance)
	merchant := createTestMerchant(t, db, 1)

	paidAt := time.Date(2024, 1, 8, 10, 0, 0, 0, testLocation(t))
	createPaidTransaction(t, db, merchant, 2000, paidAt, true)

	actor := PayoutActor{ID: merchant.ID, Name: merchant.DisplayName()}
	payout, err := svc.RequestPayout(actor, bankTransferRequest(1000))
	require.NoError(t, err)

	assert.True(t, payout.UsedFreeCredit)
	assert.Equal(t, 0.0, payout.Commission)
	assert.Equal(t, 1000.0, payout.NetAmount)
	assert.Equal(t, "free_credit", payout.CommissionType)

	var m models.Merchant
	require.NoError(t, db.First(&m, merchant.ID).Error)
	assert.Equal(t, 0, m.FreePayoutsRemaining)

	_, err = svc.CancelPayout(merchant.ID, payout.PayoutID)
	require.NoError(t, err)

	require.NoError(t, db.First(&m, merchant.ID).Error)
	assert.Equal(t, 1, m.FreePayoutsRemaining)
}

func TestConcurrentFullBalanceRequests(t *testing.T) {
	svc, balance, merchant, _ := newPayoutFixture(t)
	actor := PayoutActor{ID: merchant.ID, Name: merchant.DisplayName()}

	summary, err := balance.GetBalance(merchant.ID, time.Now())
	require.NoError(t, err)
	amount := summary.AvailableBalance - 100 // both requests individually admissible

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = svc.RequestPayout(actor, bankTransferRequest(amount))
		}(i)
	}
	wg.Wait()

	var successes, failures int
	for _, err := range results {
		if err == nil {
			successes++
			continue
		}
		failures++
		var insufficientErr *InsufficientBalanceError
		if !errors.As(err, &insufficientErr) && !errors.Is(err, ErrReservationConflict) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, failures)
}
