// internal/services/settlement_service.go
package services

import (
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/ninexgroup/cashcavash-backend/internal/models"
	"github.com/ninexgroup/cashcavash-backend/internal/settlement"
)

var ErrSweepInProgress = errors.New("settlement sweep already running")

// SettlementService promotes paid transactions to settled once their
// settlement window has elapsed. Runs are idempotent: a settled
// transaction is never revisited.
type SettlementService struct {
	db    *gorm.DB
	clock *settlement.Clock
	loc   *time.Location

	// Guards against overlapping sweeps from the cron trigger and the
	// forced-run admin endpoint.
	runLock sync.Mutex
}

type SweepResult struct {
	RanAt      time.Time `json:"ran_at"`
	Skipped    bool      `json:"skipped"`
	SkipReason string    `json:"skip_reason,omitempty"`
	Examined   int       `json:"examined"`
	Settled    int       `json:"settled"`
	Backfilled int       `json:"backfilled"`
	Failed     int       `json:"failed"`
}

func NewSettlementService(db *gorm.DB, clock *settlement.Clock, loc *time.Location) *SettlementService {
	if loc == nil {
		loc = time.UTC
	}
	return &SettlementService{db: db, clock: clock, loc: loc}
}

// RunOnce executes a single sweep at `now`. Weekends are a no-op since
// banks do not settle then. Transactions missing an expected settlement
// date are repaired in place before evaluation. A failure on one
// transaction never aborts the rest of the run.
func (s *SettlementService) RunOnce(now time.Time) (*SweepResult, error) {
	if !s.runLock.TryLock() {
		return nil, ErrSweepInProgress
	}
	defer s.runLock.Unlock()

	result := &SweepResult{RanAt: now}

	local := now.In(s.loc)
	if local.Weekday() == time.Saturday || local.Weekday() == time.Sunday {
		result.Skipped = true
		result.SkipReason = "weekend"
		logrus.WithField("day", local.Weekday().String()).Info("Settlement sweep skipped")
		return result, nil
	}

	var pending []models.Transaction
	if err := s.db.
		Where("status = ? AND settlement_status = ?",
			models.TransactionStatusPaid, models.SettlementStatusUnsettled).
		Find(&pending).Error; err != nil {
		return nil, err
	}
	result.Examined = len(pending)

	for i := range pending {
		t := &pending[i]

		if t.ExpectedSettlementDate == nil {
			if t.PaidAt == nil {
				logrus.WithField("transaction_id", t.TransactionID).
					Warn("Paid transaction has no paid_at, skipping")
				result.Failed++
				continue
			}
			expected := s.clock.ExpectedSettlementDate(*t.PaidAt)
			if err := s.db.Model(t).Update("expected_settlement_date", expected).Error; err != nil {
				logrus.WithError(err).WithField("transaction_id", t.TransactionID).
					Error("Failed to backfill expected settlement date")
				result.Failed++
				continue
			}
			t.ExpectedSettlementDate = &expected
			result.Backfilled++
		}

		if t.PaidAt == nil || !s.clock.IsReadyForSettlement(*t.PaidAt, *t.ExpectedSettlementDate, now) {
			continue
		}

		updates := map[string]interface{}{
			"settlement_status": models.SettlementStatusSettled,
			"settlement_date":   now,
		}
		if err := s.db.Model(t).
			Where("settlement_status = ?", models.SettlementStatusUnsettled).
			Updates(updates).Error; err != nil {
			logrus.WithError(err).WithField("transaction_id", t.TransactionID).
				Error("Failed to settle transaction")
			result.Failed++
			continue
		}
		result.Settled++
	}

	logrus.WithFields(logrus.Fields{
		"examined":   result.Examined,
		"settled":    result.Settled,
		"backfilled": result.Backfilled,
		"failed":     result.Failed,
	}).Info("Settlement sweep completed")

	return result, nil
}

// Backfill repairs expected settlement dates across the full paid
// history, not just the unsettled window.
func (s *SettlementService) Backfill() (int, error) {
	var missing []models.Transaction
	if err := s.db.
		Where("status IN ? AND expected_settlement_date IS NULL AND paid_at IS NOT NULL",
			[]models.TransactionStatus{
				models.TransactionStatusPaid,
				models.TransactionStatusPartialRefund,
				models.TransactionStatusRefunded,
			}).
		Find(&missing).Error; err != nil {
		return 0, err
	}

	repaired := 0
	for i := range missing {
		t := &missing[i]
		expected := s.clock.ExpectedSettlementDate(*t.PaidAt)
		if err := s.db.Model(t).Update("expected_settlement_date", expected).Error; err != nil {
			logrus.WithError(err).WithField("transaction_id", t.TransactionID).
				Error("Failed to backfill expected settlement date")
			continue
		}
		repaired++
	}

	logrus.WithField("repaired", repaired).Info("Settlement backfill completed")
	return repaired, nil
}
