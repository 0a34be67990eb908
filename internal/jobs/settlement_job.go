// internal/jobs/settlement_job.go
package jobs

import (
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/ninexgroup/cashcavash-backend/internal/services"
)

// SettlementJob runs the settlement sweep on a schedule, in the
// operating timezone so the 16:00 cutoff and weekend rules line up
// with the configured business day.
type SettlementJob struct {
	cron              *cron.Cron
	settlementService *services.SettlementService
	schedule          string
}

func NewSettlementJob(settlementService *services.SettlementService, schedule string, loc *time.Location) *SettlementJob {
	return &SettlementJob{
		cron:              cron.New(cron.WithLocation(loc)),
		settlementService: settlementService,
		schedule:          schedule,
	}
}

func (j *SettlementJob) Start() error {
	if _, err := j.cron.AddFunc(j.schedule, j.run); err != nil {
		return err
	}
	j.cron.Start()
	logrus.WithField("schedule", j.schedule).Info("Settlement sweeper started")
	return nil
}

// Stop halts scheduling and waits for an in-flight run to finish.
func (j *SettlementJob) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
	logrus.Info("Settlement sweeper stopped")
}

func (j *SettlementJob) run() {
	result, err := j.settlementService.RunOnce(time.Now())
	if err != nil {
		if errors.Is(err, services.ErrSweepInProgress) {
			logrus.Info("Settlement sweep already running, skipping this tick")
			return
		}
		logrus.WithError(err).Error("Settlement sweep failed")
		return
	}

	if result.Skipped {
		logrus.WithField("reason", result.SkipReason).Info("Settlement sweep skipped")
		return
	}

	logrus.WithFields(logrus.Fields{
		"examined":   result.Examined,
		"settled":    result.Settled,
		"backfilled": result.Backfilled,
		"failed":     result.Failed,
	}).Info("Settlement sweep finished")
}
