// internal/services/payout_service.go
package services

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/ninexgroup/cashcavash-backend/internal/commission"
	"github.com/ninexgroup/cashcavash-backend/internal/config"
	"github.com/ninexgroup/cashcavash-backend/internal/database"
	"github.com/ninexgroup/cashcavash-backend/internal/models"
	"github.com/ninexgroup/cashcavash-backend/internal/utils"
)

var (
	ErrPayoutNotFound       = errors.New("payout not found")
	ErrMissingBeneficiary   = errors.New("beneficiary details incomplete for transfer mode")
	ErrUTRRequired          = errors.New("UTR is required to complete a payout")
	ErrRejectReasonRequired = errors.New("rejection reason is required")
	ErrReservationConflict  = errors.New("settled transactions were claimed by a concurrent payout")
)

// InsufficientBalanceError carries the shortfall so callers can surface
// actionable numbers instead of a bare failure. The balance check runs
// against the payout's net amount, not the gross request.
type InsufficientBalanceError struct {
	Available float64
	Requested float64
	Net       float64
	Shortfall float64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: available %.2f, requested net %.2f, shortfall %.2f",
		e.Available, e.Net, e.Shortfall)
}

// PayoutStateError reports an operation attempted in the wrong payout
// state, naming both the current and the required state.
type PayoutStateError struct {
	PayoutID string
	Current  models.PayoutStatus
	Required string
}

func (e *PayoutStateError) Error() string {
	return fmt.Sprintf("payout %s is %s, operation requires %s", e.PayoutID, e.Current, e.Required)
}

// PayoutLimitError reports a request outside the configured amount band.
type PayoutLimitError struct {
	Amount float64
	Min    float64
	Max    float64
}

func (e *PayoutLimitError) Error() string {
	return fmt.Sprintf("payout amount %.2f outside allowed range %.2f-%.2f", e.Amount, e.Min, e.Max)
}

// PayoutService runs the approval-gated payout workflow. Admission is
// serialized per merchant so the derived balance cannot be spent twice;
// the guarded reservation update inside the DB transaction is the
// backstop if two processes race anyway.
type PayoutService struct {
	db      *gorm.DB
	config  *config.Config
	balance *BalanceService

	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

type PayoutRequestInput struct {
	Amount            float64 `json:"amount" validate:"required,gt=0"`
	TransferMode      string  `json:"transfer_mode" validate:"required,oneof=bank_transfer upi"`
	AccountNumber     string  `json:"account_number,omitempty"`
	IFSCCode          string  `json:"ifsc_code,omitempty" validate:"omitempty,ifsc"`
	AccountHolderName string  `json:"account_holder_name,omitempty"`
	BankName          string  `json:"bank_name,omitempty"`
	UPIID             string  `json:"upi_id,omitempty" validate:"omitempty,upi"`
	Notes             string  `json:"notes,omitempty"`
}

type PayoutActor struct {
	ID   uuid.UUID
	Name string
}

type PayoutSummary struct {
	TotalCount     int64   `json:"total_count"`
	RequestedCount int64   `json:"requested_count"`
	CompletedCount int64   `json:"completed_count"`
	CompletedNet   float64 `json:"completed_net"`
	InFlightNet    float64 `json:"in_flight_net"`
}

func NewPayoutService(db *gorm.DB, cfg *config.Config, balance *BalanceService) *PayoutService {
	return &PayoutService{
		db:      db,
		config:  cfg,
		balance: balance,
		locks:   make(map[uuid.UUID]*sync.Mutex),
	}
}

func (s *PayoutService) merchantLock(merchantID uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[merchantID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[merchantID] = lock
	}
	return lock
}

func (s *PayoutService) validateBeneficiary(req *PayoutRequestInput) error {
	switch models.TransferMode(req.TransferMode) {
	case models.TransferModeBankTransfer:
		if req.AccountNumber == "" || req.IFSCCode == "" || req.AccountHolderName == "" {
			return ErrMissingBeneficiary
		}
	case models.TransferModeUPI:
		if req.UPIID == "" {
			return ErrMissingBeneficiary
		}
	}
	return nil
}

// RequestPayout admits a payout request: validates, prices, checks the
// derived balance, reserves the merchant's settled transactions and
// persists the request, all under the merchant's admission lock.
func (s *PayoutService) RequestPayout(actor PayoutActor, req *PayoutRequestInput) (*models.Payout, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}
	if err := s.validateBeneficiary(req); err != nil {
		return nil, err
	}

	if req.Amount < s.config.Payout.MinAmount && !s.config.Payout.AllowBelowMinimum {
		return nil, &PayoutLimitError{Amount: req.Amount, Min: s.config.Payout.MinAmount, Max: s.config.Payout.MaxAmount}
	}
	if req.Amount > s.config.Payout.MaxAmount {
		return nil, &PayoutLimitError{Amount: req.Amount, Min: s.config.Payout.MinAmount, Max: s.config.Payout.MaxAmount}
	}

	lock := s.merchantLock(actor.ID)
	lock.Lock()
	defer lock.Unlock()

	var merchant models.Merchant
	if err := s.db.First(&merchant, actor.ID).Error; err != nil {
		return nil, fmt.Errorf("merchant not found: %w", err)
	}

	// Pricing first: the balance check compares the net that will
	// actually leave the ledger, not the gross request. A free payout
	// credit waives the commission entirely; otherwise the banded
	// schedule applies. The net is frozen here.
	var (
		fee            float64
		feeType        string
		feeBreakdown   models.JSONB
		netAmount      float64
		usedFreeCredit bool
	)
	if merchant.FreePayoutsRemaining > 0 {
		usedFreeCredit = true
		feeType = "free_credit"
		netAmount = req.Amount
		feeBreakdown = models.JSONB{"note": "free payout credit applied, zero commission"}
	} else {
		result := commission.Payout(req.Amount)
		fee = result.Commission
		feeType = result.CommissionType
		netAmount = result.NetAmount
		feeBreakdown = models.JSONB{}
		for k, v := range result.Breakdown {
			feeBreakdown[k] = v
		}
	}

	now := time.Now()
	summary, err := s.balance.GetBalance(actor.ID, now)
	if err != nil {
		return nil, err
	}
	if netAmount > summary.AvailableBalance {
		return nil, &InsufficientBalanceError{
			Available: summary.AvailableBalance,
			Requested: req.Amount,
			Net:       netAmount,
			Shortfall: commission.Round2(netAmount - summary.AvailableBalance),
		}
	}

	payoutID := utils.GeneratePayoutID()
	payout := &models.Payout{
		PayoutID:            payoutID,
		MerchantID:          actor.ID,
		MerchantName:        actor.Name,
		Amount:              req.Amount,
		Commission:          fee,
		CommissionType:      feeType,
		CommissionBreakdown: feeBreakdown,
		NetAmount:           netAmount,
		Currency:            "INR",
		TransferMode:        models.TransferMode(req.TransferMode),
		AccountNumber:       req.AccountNumber,
		IFSCCode:            req.IFSCCode,
		AccountHolderName:   req.AccountHolderName,
		BankName:            req.BankName,
		UPIID:               req.UPIID,
		Status:              models.PayoutStatusRequested,
		UsedFreeCredit:      usedFreeCredit,
		RequestedBy:         &actor.ID,
		RequestedByName:     actor.Name,
		RequestedAt:         &now,
		Notes:               req.Notes,
	}

	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		// Reserve the merchant's settled, unclaimed transactions for this
		// payout. The guarded update is the race backstop: if a concurrent
		// request claimed any of them first, the row count falls short and
		// the whole admission fails.
		var candidates []models.Transaction
		if err := tx.
			Select("transaction_id").
			Where("merchant_id = ? AND settlement_status = ? AND payout_status = ?",
				actor.ID, models.SettlementStatusSettled, models.TxnPayoutStatusUnpaid).
			Find(&candidates).Error; err != nil {
			return err
		}

		ids := make([]string, len(candidates))
		for i := range candidates {
			ids[i] = candidates[i].TransactionID
		}

		if len(ids) > 0 {
			claim := tx.Model(&models.Transaction{}).
				Where("transaction_id IN ? AND payout_status = ?", ids, models.TxnPayoutStatusUnpaid).
				Updates(map[string]interface{}{
					"payout_status": models.TxnPayoutStatusRequested,
					"payout_id":     payoutID,
				})
			if claim.Error != nil {
				return claim.Error
			}
			if claim.RowsAffected != int64(len(ids)) {
				return ErrReservationConflict
			}
		}
		payout.RelatedTransactions = pq.StringArray(ids)

		if usedFreeCredit {
			credit := tx.Model(&models.Merchant{}).
				Where("id = ? AND free_payouts_remaining > 0", actor.ID).
				Update("free_payouts_remaining", gorm.Expr("free_payouts_remaining - 1"))
			if credit.Error != nil {
				return credit.Error
			}
			if credit.RowsAffected == 0 {
				return ErrReservationConflict
			}
		}

		return tx.Create(payout).Error
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"payout_id":        payoutID,
		"merchant_id":      actor.ID,
		"amount":           req.Amount,
		"net_amount":       netAmount,
		"used_free_credit": usedFreeCredit,
		"reserved":         len(payout.RelatedTransactions),
	}).Info("Payout requested")

	return payout, nil
}

// releaseReservations returns transactions claimed by a payout to the
// unpaid pool and restores a consumed free credit. Runs inside tx.
func (s *PayoutService) releaseReservations(tx *gorm.DB, payout *models.Payout) error {
	if err := tx.Model(&models.Transaction{}).
		Where("payout_id = ?", payout.PayoutID).
		Updates(map[string]interface{}{
			"payout_status": models.TxnPayoutStatusUnpaid,
			"payout_id":     nil,
		}).Error; err != nil {
		return err
	}

	if payout.UsedFreeCredit {
		if err := tx.Model(&models.Merchant{}).
			Where("id = ?", payout.MerchantID).
			Update("free_payouts_remaining", gorm.Expr("free_payouts_remaining + 1")).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s *PayoutService) getPayout(payoutID string) (*models.Payout, error) {
	var payout models.Payout
	if err := s.db.Where("payout_id = ?", payoutID).First(&payout).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPayoutNotFound
		}
		return nil, err
	}
	return &payout, nil
}

// GetPayout fetches a payout; when merchantID is non-nil the lookup is
// scoped to that merchant.
func (s *PayoutService) GetPayout(payoutID string, merchantID *uuid.UUID) (*models.Payout, error) {
	payout, err := s.getPayout(payoutID)
	if err != nil {
		return nil, err
	}
	if merchantID != nil && payout.MerchantID != *merchantID {
		return nil, ErrPayoutNotFound
	}
	return payout, nil
}

// CancelPayout lets the requesting merchant withdraw a payout that has
// not been approved yet. Reserved transactions and a consumed free
// credit flow back.
func (s *PayoutService) CancelPayout(merchantID uuid.UUID, payoutID string) (*models.Payout, error) {
	payout, err := s.GetPayout(payoutID, &merchantID)
	if err != nil {
		return nil, err
	}
	if payout.Status != models.PayoutStatusRequested {
		return nil, &PayoutStateError{PayoutID: payoutID, Current: payout.Status, Required: string(models.PayoutStatusRequested)}
	}

	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		guard := tx.Model(payout).
			Where("status = ?", models.PayoutStatusRequested).
			Update("status", models.PayoutStatusCancelled)
		if guard.Error != nil {
			return guard.Error
		}
		if guard.RowsAffected == 0 {
			return &PayoutStateError{PayoutID: payoutID, Current: payout.Status, Required: string(models.PayoutStatusRequested)}
		}
		return s.releaseReservations(tx, payout)
	})
	if err != nil {
		return nil, err
	}

	payout.Status = models.PayoutStatusCancelled
	logrus.WithField("payout_id", payoutID).Info("Payout cancelled by merchant")
	return payout, nil
}

// ApprovePayout moves a requested payout into the pending queue.
func (s *PayoutService) ApprovePayout(payoutID string, actor PayoutActor, notes string) (*models.Payout, error) {
	payout, err := s.getPayout(payoutID)
	if err != nil {
		return nil, err
	}
	if payout.Status != models.PayoutStatusRequested {
		return nil, &PayoutStateError{PayoutID: payoutID, Current: payout.Status, Required: string(models.PayoutStatusRequested)}
	}

	now := time.Now()
	updates := map[string]interface{}{
		"status":           models.PayoutStatusPending,
		"approved_by":      actor.ID,
		"approved_by_name": actor.Name,
		"approved_at":      now,
	}
	if notes != "" {
		updates["super_admin_notes"] = notes
	}

	guard := s.db.Model(payout).
		Where("status = ?", models.PayoutStatusRequested).
		Updates(updates)
	if guard.Error != nil {
		return nil, guard.Error
	}
	if guard.RowsAffected == 0 {
		return nil, &PayoutStateError{PayoutID: payoutID, Current: payout.Status, Required: string(models.PayoutStatusRequested)}
	}

	logrus.WithFields(logrus.Fields{
		"payout_id":   payoutID,
		"approved_by": actor.Name,
	}).Info("Payout approved")

	return s.getPayout(payoutID)
}

// RejectPayout declines a payout that has not completed. The reservation
// and free credit roll back so the merchant's balance is restored.
func (s *PayoutService) RejectPayout(payoutID string, actor PayoutActor, reason string) (*models.Payout, error) {
	if reason == "" {
		return nil, ErrRejectReasonRequired
	}

	payout, err := s.getPayout(payoutID)
	if err != nil {
		return nil, err
	}
	if payout.Status.IsTerminal() {
		return nil, &PayoutStateError{PayoutID: payoutID, Current: payout.Status, Required: "requested or pending"}
	}

	now := time.Now()
	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		guard := tx.Model(payout).
			Where("status IN ?", []models.PayoutStatus{
				models.PayoutStatusRequested,
				models.PayoutStatusPending,
				models.PayoutStatusProcessing,
			}).
			Updates(map[string]interface{}{
				"status":           models.PayoutStatusRejected,
				"rejected_by":      actor.ID,
				"rejected_by_name": actor.Name,
				"rejected_at":      now,
				"rejection_reason": reason,
			})
		if guard.Error != nil {
			return guard.Error
		}
		if guard.RowsAffected == 0 {
			return &PayoutStateError{PayoutID: payoutID, Current: payout.Status, Required: "requested or pending"}
		}
		return s.releaseReservations(tx, payout)
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"payout_id":   payoutID,
		"rejected_by": actor.Name,
		"reason":      reason,
	}).Info("Payout rejected")

	return s.getPayout(payoutID)
}

// ProcessPayout records the completed bank transfer. The UTR is the
// proof of transfer and is mandatory. Reserved transactions move to
// their terminal paid state.
func (s *PayoutService) ProcessPayout(payoutID string, actor PayoutActor, utr, notes string) (*models.Payout, error) {
	if utr == "" {
		return nil, ErrUTRRequired
	}

	payout, err := s.getPayout(payoutID)
	if err != nil {
		return nil, err
	}
	if payout.Status != models.PayoutStatusPending && payout.Status != models.PayoutStatusProcessing {
		return nil, &PayoutStateError{PayoutID: payoutID, Current: payout.Status, Required: "pending or processing"}
	}

	now := time.Now()
	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"status":            models.PayoutStatusCompleted,
			"processed_by":      actor.ID,
			"processed_by_name": actor.Name,
			"processed_at":      now,
			"completed_at":      now,
			"utr":               utr,
		}
		if notes != "" {
			updates["super_admin_notes"] = notes
		}

		guard := tx.Model(payout).
			Where("status IN ?", []models.PayoutStatus{
				models.PayoutStatusPending,
				models.PayoutStatusProcessing,
			}).
			Updates(updates)
		if guard.Error != nil {
			return guard.Error
		}
		if guard.RowsAffected == 0 {
			return &PayoutStateError{PayoutID: payoutID, Current: payout.Status, Required: "pending or processing"}
		}

		return tx.Model(&models.Transaction{}).
			Where("payout_id = ?", payoutID).
			Update("payout_status", models.TxnPayoutStatusPaid).Error
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"payout_id":    payoutID,
		"utr":          utr,
		"processed_by": actor.Name,
	}).Info("Payout completed")

	return s.getPayout(payoutID)
}

// FailPayout marks an approved payout whose bank transfer could not be
// executed. Funds flow back like a rejection.
func (s *PayoutService) FailPayout(payoutID string, actor PayoutActor, reason string) (*models.Payout, error) {
	payout, err := s.getPayout(payoutID)
	if err != nil {
		return nil, err
	}
	if payout.Status != models.PayoutStatusPending && payout.Status != models.PayoutStatusProcessing {
		return nil, &PayoutStateError{PayoutID: payoutID, Current: payout.Status, Required: "pending or processing"}
	}

	now := time.Now()
	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		guard := tx.Model(payout).
			Where("status IN ?", []models.PayoutStatus{
				models.PayoutStatusPending,
				models.PayoutStatusProcessing,
			}).
			Updates(map[string]interface{}{
				"status":            models.PayoutStatusFailed,
				"failure_reason":    reason,
				"processed_by":      actor.ID,
				"processed_by_name": actor.Name,
				"processed_at":      now,
			})
		if guard.Error != nil {
			return guard.Error
		}
		if guard.RowsAffected == 0 {
			return &PayoutStateError{PayoutID: payoutID, Current: payout.Status, Required: "pending or processing"}
		}
		return s.releaseReservations(tx, payout)
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"payout_id": payoutID,
		"reason":    reason,
	}).Warn("Payout failed")

	return s.getPayout(payoutID)
}

// ListPayouts returns payouts with optional merchant and status scoping
// plus aggregate counters for the same scope.
func (s *PayoutService) ListPayouts(merchantID *uuid.UUID, status string, params utils.PaginationParams) ([]models.Payout, int64, *PayoutSummary, error) {
	scope := func() *gorm.DB {
		q := s.db.Model(&models.Payout{})
		if merchantID != nil {
			q = q.Where("merchant_id = ?", *merchantID)
		}
		if status != "" {
			q = q.Where("status = ?", status)
		}
		return q
	}

	var total int64
	if err := scope().Count(&total).Error; err != nil {
		return nil, 0, nil, err
	}

	var payouts []models.Payout
	query := s.db.Model(&models.Payout{})
	if merchantID != nil {
		query = query.Where("merchant_id = ?", *merchantID)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}
	query = utils.ApplySort(query, params, []string{"created_at", "amount", "status", "completed_at"})
	query = utils.ApplyPagination(query, params)
	if err := query.Find(&payouts).Error; err != nil {
		return nil, 0, nil, err
	}

	summary := &PayoutSummary{}
	unscoped := func() *gorm.DB {
		q := s.db.Model(&models.Payout{})
		if merchantID != nil {
			q = q.Where("merchant_id = ?", *merchantID)
		}
		return q
	}
	if err := unscoped().Count(&summary.TotalCount).Error; err != nil {
		return nil, 0, nil, err
	}
	if err := unscoped().Where("status = ?", models.PayoutStatusRequested).
		Count(&summary.RequestedCount).Error; err != nil {
		return nil, 0, nil, err
	}
	if err := unscoped().Where("status = ?", models.PayoutStatusCompleted).
		Count(&summary.CompletedCount).Error; err != nil {
		return nil, 0, nil, err
	}
	if err := unscoped().Where("status = ?", models.PayoutStatusCompleted).
		Select("COALESCE(SUM(net_amount), 0)").Scan(&summary.CompletedNet).Error; err != nil {
		return nil, 0, nil, err
	}
	if err := unscoped().Where("status IN ?", []models.PayoutStatus{
		models.PayoutStatusRequested,
		models.PayoutStatusPending,
		models.PayoutStatusProcessing,
	}).Select("COALESCE(SUM(net_amount), 0)").Scan(&summary.InFlightNet).Error; err != nil {
		return nil, 0, nil, err
	}
	summary.CompletedNet = commission.Round2(summary.CompletedNet)
	summary.InFlightNet = commission.Round2(summary.InFlightNet)

	return payouts, total, summary, nil
}
