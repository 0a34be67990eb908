// internal/settlement/clock.go

// Package settlement implements the T+1 settlement timing rules: a paid
// transaction becomes withdrawable one business day after payment, with a
// 16:00 cutoff pushing late payments to the next day and weekends skipped
// entirely.
package settlement

import (
	"fmt"
	"time"
)

// CutoffHour is the hour of day (in the operating timezone) after which a
// payment is treated as received on the next calendar day.
const CutoffHour = 16

const settlementWindow = 24 * time.Hour

// Clock evaluates settlement timing in a fixed operating timezone.
type Clock struct {
	loc *time.Location
}

func NewClock(loc *time.Location) *Clock {
	if loc == nil {
		loc = time.UTC
	}
	return &Clock{loc: loc}
}

// ExpectedSettlementDate computes when a payment made at paidAt is due to
// settle. Base rule is T+1 (24h). Payments at or after the cutoff hour are
// treated as received the next calendar day before adding T+1. If the
// nominal date lands on Saturday it shifts to Monday (+2 days); Sunday
// shifts to Monday (+1 day).
func (c *Clock) ExpectedSettlementDate(paidAt time.Time) time.Time {
	paid := paidAt.In(c.loc)

	if paid.Hour() >= CutoffHour {
		paid = paid.AddDate(0, 0, 1)
	}

	settlement := paid.Add(settlementWindow)

	switch settlement.Weekday() {
	case time.Saturday:
		settlement = settlement.AddDate(0, 0, 2)
	case time.Sunday:
		settlement = settlement.AddDate(0, 0, 1)
	}

	return settlement
}

// IsReadyForSettlement reports whether a transaction paid at paidAt with
// the given expected settlement date can be promoted at now. Settlement
// never runs on weekends. The 24h floor holds even when the expected date
// was computed incorrectly or is missing (zero value).
func (c *Clock) IsReadyForSettlement(paidAt, expectedSettlementDate, now time.Time) bool {
	local := now.In(c.loc)

	if wd := local.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false
	}

	if now.Sub(paidAt) < settlementWindow {
		return false
	}

	return !now.Before(expectedSettlementDate)
}

// DateLabel renders the expected settlement date for display only:
// "Today", "Tomorrow", or the weekday name. Not authoritative for
// scheduling.
func (c *Clock) DateLabel(expectedSettlementDate, now time.Time) string {
	settlement := expectedSettlementDate.In(c.loc)
	current := now.In(c.loc)

	sy, sm, sd := settlement.Date()
	ny, nm, nd := current.Date()
	if sy == ny && sm == nm && sd == nd {
		return "Today"
	}

	tomorrow := current.AddDate(0, 0, 1)
	ty, tm, td := tomorrow.Date()
	if sy == ty && sm == tm && sd == td {
		return "Tomorrow"
	}

	return settlement.Weekday().String()
}

// StatusText renders a human-readable countdown for an unsettled
// transaction's balance view.
func (c *Clock) StatusText(expectedSettlementDate, now time.Time, settled bool) string {
	if settled {
		return "Settled"
	}

	diff := expectedSettlementDate.Sub(now)
	if diff <= 0 {
		return "Settling soon"
	}

	hours := int(diff.Hours())
	days := hours / 24

	switch {
	case days > 1:
		return fmt.Sprintf("Settles in %d days", days)
	case days == 1:
		return "Settles in 1 day"
	case hours > 1:
		return fmt.Sprintf("Settles in %d hours", hours)
	case hours == 1:
		return "Settles in 1 hour"
	default:
		return "Settling soon"
	}
}
