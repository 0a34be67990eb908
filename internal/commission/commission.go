// internal/commission/commission.go
package commission

import (
	"fmt"
	"math"
)

// Commission rates, GST-inclusive. The 18% GST multiplier applies
// uniformly to percentage rates and flat floors.
const (
	gstMultiplier = 1.18

	payinBaseRatePercent = 3.8
	payinMinimumBase     = 18.0

	payoutFlatFeeBase       = 30.0
	payoutBaseRatePercent   = 1.50
	payoutFlatBandLower     = 500.0
	payoutFlatBandUpper     = 1000.0
)

type PayinResult struct {
	Commission      float64           `json:"commission"`
	CommissionRate  float64           `json:"commission_rate"`
	IsMinimumCharge bool              `json:"is_minimum_charge"`
	Breakdown       map[string]string `json:"breakdown"`
}

type PayoutResult struct {
	Commission     float64           `json:"commission"`
	CommissionType string            `json:"commission_type"`
	Breakdown      map[string]string `json:"breakdown"`
	NetAmount      float64           `json:"net_amount"`
}

// Payin computes the platform fee on an inbound payment:
// max(amount x 3.8% x 1.18, 18 x 1.18), rounded half-up to 2 decimals.
// The caller validates amount > 0.
func Payin(amount float64) PayinResult {
	effectiveRate := payinBaseRatePercent * gstMultiplier / 100

	calculated := amount * effectiveRate
	minimum := payinMinimumBase * gstMultiplier

	commission := math.Max(calculated, minimum)
	isMinimum := commission == minimum

	return PayinResult{
		Commission:      Round2(commission),
		CommissionRate:  effectiveRate,
		IsMinimumCharge: isMinimum,
		Breakdown: map[string]string{
			"base_amount":           fmt.Sprintf("%.2f", amount),
			"base_rate":             fmt.Sprintf("%.1f%%", payinBaseRatePercent),
			"gst":                   "18%",
			"effective_rate":        fmt.Sprintf("%.3f%%", effectiveRate*100),
			"calculated_commission": fmt.Sprintf("%.2f", calculated),
			"minimum_commission":    fmt.Sprintf("%.2f", minimum),
			"applied_commission":    fmt.Sprintf("%.2f", commission),
		},
	}
}

// Payout computes the fee on an outbound transfer, banded by amount:
// flat 30 x 1.18 up to 1000, 1.5% x 1.18 above. Amounts below the flat
// band's lower bound are still priced with the flat fee; whether such
// requests are admitted at all is the caller's policy decision.
// NetAmount is clamped at zero; callers must reject a request whose net
// would otherwise go negative.
func Payout(amount float64) PayoutResult {
	var (
		commission     float64
		commissionType string
		breakdown      map[string]string
	)

	switch {
	case amount >= payoutFlatBandLower && amount <= payoutFlatBandUpper:
		commission = payoutFlatFeeBase * gstMultiplier
		commissionType = "flat"
		breakdown = map[string]string{
			"base_amount":      fmt.Sprintf("%.2f", amount),
			"flat_fee":         fmt.Sprintf("%.0f", payoutFlatFeeBase),
			"gst":              "18%",
			"total_commission": fmt.Sprintf("%.2f", commission),
		}
	case amount > payoutFlatBandUpper:
		effectiveRate := payoutBaseRatePercent * gstMultiplier / 100
		commission = amount * effectiveRate
		commissionType = "percentage"
		breakdown = map[string]string{
			"base_amount":      fmt.Sprintf("%.2f", amount),
			"base_rate":        fmt.Sprintf("%.2f%%", payoutBaseRatePercent),
			"gst":              "18%",
			"effective_rate":   fmt.Sprintf("%.2f%%", effectiveRate*100),
			"total_commission": fmt.Sprintf("%.2f", commission),
		}
	default:
		commission = payoutFlatFeeBase * gstMultiplier
		commissionType = "flat"
		breakdown = map[string]string{
			"base_amount":      fmt.Sprintf("%.2f", amount),
			"note":             "below minimum payout amount, flat fee applies",
			"flat_fee":         fmt.Sprintf("%.0f", payoutFlatFeeBase),
			"gst":              "18%",
			"total_commission": fmt.Sprintf("%.2f", commission),
		}
	}

	commission = Round2(commission)
	net := Round2(amount - commission)
	if net < 0 {
		net = 0
	}

	return PayoutResult{
		Commission:     commission,
		CommissionType: commissionType,
		Breakdown:      breakdown,
		NetAmount:      net,
	}
}

// Round2 rounds a currency amount half-up to 2 decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
