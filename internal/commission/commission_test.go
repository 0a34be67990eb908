// internal/commission/commission_test.go
package commission

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPayinCommission(t *testing.T) {
	tests := []struct {
		name           string
		amount         float64
		wantCommission float64
		wantMinimum    bool
	}{
		// 3.8% * 1.18 = 4.484% effective
		{"large amount uses percentage", 1000, 44.84, false},
		{"mid amount uses percentage", 500, 22.42, false},
		{"small amount hits floor", 100, 21.24, true},
		{"tiny amount hits floor", 1, 21.24, true},
		{"boundary just below floor crossover", 473, 21.24, true},
		{"boundary just above floor crossover", 474, 21.25, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Payin(tt.amount)
			assert.Equal(t, tt.wantCommission, got.Commission)
			assert.Equal(t, tt.wantMinimum, got.IsMinimumCharge)
		})
	}
}

func TestPayinCommissionFloorAlwaysRespected(t *testing.T) {
	floor := Round2(18 * 1.18)
	for _, amount := range []float64{0.01, 1, 50, 400, 473.99, 474, 1000, 99999} {
		got := Payin(amount)
		assert.GreaterOrEqual(t, got.Commission, floor, "amount %v", amount)
	}
}

func TestPayoutCommissionBands(t *testing.T) {
	tests := []struct {
		name           string
		amount         float64
		wantCommission float64
		wantType       string
		wantNet        float64
	}{
		{"below flat band still charged flat", 200, 35.40, "flat", 164.60},
		{"flat band lower bound", 500, 35.40, "flat", 464.60},
		{"flat band upper bound", 1000, 35.40, "flat", 964.60},
		// 1.5% * 1.18 = 1.77% effective
		{"percentage band", 1200, 21.24, "percentage", 1178.76},
		{"percentage band large", 2000, 35.40, "percentage", 1964.60},
		{"percentage just above band", 1001, 17.72, "percentage", 983.28},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Payout(tt.amount)
			assert.Equal(t, tt.wantCommission, got.Commission)
			assert.Equal(t, tt.wantType, got.CommissionType)
			assert.Equal(t, tt.wantNet, got.NetAmount)
		})
	}
}

func TestPayoutCommissionPercentageFormula(t *testing.T) {
	for _, amount := range []float64{1001, 1500, 5000, 100000} {
		got := Payout(amount)
		assert.Equal(t, Round2(amount*0.0177), got.Commission, "amount %v", amount)
	}
}

func TestPayoutNetAmountNeverNegative(t *testing.T) {
	got := Payout(10)
	assert.Equal(t, 0.0, got.NetAmount)
	assert.Equal(t, 35.40, got.Commission)
}

func TestNetAmountIsAmountMinusCommission(t *testing.T) {
	for _, amount := range []float64{500, 750, 1000, 1200, 4321.55} {
		got := Payout(amount)
		assert.Equal(t, Round2(amount-got.Commission), got.NetAmount, "amount %v", amount)
	}
}
