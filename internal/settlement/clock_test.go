// internal/settlement/clock_test.go
package settlement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2024-01-08 is a Monday.
func ist(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	return loc
}

func TestExpectedSettlementDate(t *testing.T) {
	loc := ist(t)
	clock := NewClock(loc)

	tests := []struct {
		name   string
		paidAt time.Time
		want   time.Time
	}{
		{
			"Monday 10:00 settles Tuesday same time",
			time.Date(2024, 1, 8, 10, 0, 0, 0, loc),
			time.Date(2024, 1, 9, 10, 0, 0, 0, loc),
		},
		{
			"Tuesday before cutoff settles Wednesday",
			time.Date(2024, 1, 9, 15, 59, 0, 0, loc),
			time.Date(2024, 1, 10, 15, 59, 0, 0, loc),
		},
		{
			"Monday 16:00 at cutoff settles Wednesday",
			time.Date(2024, 1, 8, 16, 0, 0, 0, loc),
			time.Date(2024, 1, 10, 16, 0, 0, 0, loc),
		},
		{
			"Thursday evening after cutoff lands Saturday, shifts to Monday",
			time.Date(2024, 1, 11, 19, 0, 0, 0, loc),
			time.Date(2024, 1, 15, 19, 0, 0, 0, loc),
		},
		{
			"Friday morning lands Saturday, shifts to Monday",
			time.Date(2024, 1, 12, 10, 0, 0, 0, loc),
			time.Date(2024, 1, 15, 10, 0, 0, 0, loc),
		},
		{
			"Friday 17:00 after cutoff effective Saturday, lands Sunday, shifts to Monday",
			time.Date(2024, 1, 12, 17, 0, 0, 0, loc),
			time.Date(2024, 1, 15, 17, 0, 0, 0, loc),
		},
		{
			"Saturday 10:00 lands Sunday, shifts to Monday",
			time.Date(2024, 1, 13, 10, 0, 0, 0, loc),
			time.Date(2024, 1, 15, 10, 0, 0, 0, loc),
		},
		{
			"Sunday 10:00 settles Monday",
			time.Date(2024, 1, 14, 10, 0, 0, 0, loc),
			time.Date(2024, 1, 15, 10, 0, 0, 0, loc),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := clock.ExpectedSettlementDate(tt.paidAt)
			assert.True(t, got.Equal(tt.want), "got %v want %v", got, tt.want)
		})
	}
}

func TestIsReadyForSettlement(t *testing.T) {
	loc := ist(t)
	clock := NewClock(loc)

	paidAt := time.Date(2024, 1, 8, 10, 0, 0, 0, loc) // Monday
	expected := clock.ExpectedSettlementDate(paidAt)  // Tuesday 10:00

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"same day is not ready", time.Date(2024, 1, 8, 18, 0, 0, 0, loc), false},
		{"next day before expected time", time.Date(2024, 1, 9, 9, 0, 0, 0, loc), false},
		{"next day at expected time", time.Date(2024, 1, 9, 10, 0, 0, 0, loc), true},
		{"two days later", time.Date(2024, 1, 10, 10, 0, 0, 0, loc), true},
		{"saturday never settles", time.Date(2024, 1, 13, 12, 0, 0, 0, loc), false},
		{"sunday never settles", time.Date(2024, 1, 14, 12, 0, 0, 0, loc), false},
		{"monday after weekend", time.Date(2024, 1, 15, 9, 0, 0, 0, loc), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, clock.IsReadyForSettlement(paidAt, expected, tt.now))
		})
	}
}

func TestIsReadyForSettlementEnforces24hFloor(t *testing.T) {
	loc := ist(t)
	clock := NewClock(loc)

	// An expected date in the past (bad data) must not allow settlement
	// inside the 24h window.
	paidAt := time.Date(2024, 1, 8, 10, 0, 0, 0, loc)
	badExpected := time.Date(2024, 1, 8, 11, 0, 0, 0, loc)
	now := time.Date(2024, 1, 8, 12, 0, 0, 0, loc)

	assert.False(t, clock.IsReadyForSettlement(paidAt, badExpected, now))

	// Missing expected date (zero value): readiness still gated on 24h.
	assert.False(t, clock.IsReadyForSettlement(paidAt, time.Time{}, now))
	later := time.Date(2024, 1, 9, 10, 0, 0, 0, loc)
	assert.True(t, clock.IsReadyForSettlement(paidAt, time.Time{}, later))
}

func TestDateLabel(t *testing.T) {
	loc := ist(t)
	clock := NewClock(loc)

	now := time.Date(2024, 1, 8, 10, 0, 0, 0, loc) // Monday

	assert.Equal(t, "Today", clock.DateLabel(time.Date(2024, 1, 8, 18, 0, 0, 0, loc), now))
	assert.Equal(t, "Tomorrow", clock.DateLabel(time.Date(2024, 1, 9, 10, 0, 0, 0, loc), now))
	assert.Equal(t, "Wednesday", clock.DateLabel(time.Date(2024, 1, 10, 10, 0, 0, 0, loc), now))
}

func TestStatusText(t *testing.T) {
	loc := ist(t)
	clock := NewClock(loc)

	now := time.Date(2024, 1, 8, 10, 0, 0, 0, loc)

	assert.Equal(t, "Settled", clock.StatusText(time.Time{}, now, true))
	assert.Equal(t, "Settling soon", clock.StatusText(now.Add(-time.Hour), now, false))
	assert.Equal(t, "Settles in 5 hours", clock.StatusText(now.Add(5*time.Hour), now, false))
	assert.Equal(t, "Settles in 2 days", clock.StatusText(now.Add(49*time.Hour), now, false))
}
