package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func TestApplyReset(t *testing.T) {
	tests := []struct {
		name          string
		rec           UsageRecord
		today         time.Time
		wantToday     int
		wantMonth     int
		wantLastReset string
		wantChanged   bool
	}{
		{
			name:          "same day leaves counters alone",
			rec:           UsageRecord{CallsToday: 3, CallsThisMonth: 9, LastReset: "2025-01-05"},
			today:         day(2025, time.January, 5),
			wantToday:     3,
			wantMonth:     9,
			wantLastReset: "2025-01-05",
			wantChanged:   false,
		},
		{
			name:          "day rollover zeroes only the daily counter",
			rec:           UsageRecord{CallsToday: 3, CallsThisMonth: 9, LastReset: "2025-01-05"},
			today:         day(2025, time.January, 6),
			wantToday:     0,
			wantMonth:     9,
			wantLastReset: "2025-01-06",
			wantChanged:   true,
		},
		{
			name:          "month rollover zeroes both counters",
			rec:           UsageRecord{CallsToday: 4, CallsThisMonth: 28, LastReset: "2025-01-31"},
			today:         day(2025, time.February, 1),
			wantToday:     0,
			wantMonth:     0,
			wantLastReset: "2025-02-01",
			wantChanged:   true,
		},
		{
			name:          "year change is a month rollover",
			rec:           UsageRecord{CallsToday: 1, CallsThisMonth: 7, LastReset: "2024-12-31"},
			today:         day(2025, time.January, 1),
			wantToday:     0,
			wantMonth:     0,
			wantLastReset: "2025-01-01",
			wantChanged:   true,
		},
		{
			name:          "same calendar day in a different month resets",
			rec:           UsageRecord{CallsToday: 2, CallsThisMonth: 5, LastReset: "2025-01-15"},
			today:         day(2025, time.February, 15),
			wantToday:     0,
			wantMonth:     0,
			wantLastReset: "2025-02-15",
			wantChanged:   true,
		},
		{
			name:          "malformed last reset is rewritten to today",
			rec:           UsageRecord{CallsToday: 3, CallsThisMonth: 9, LastReset: "not-a-date"},
			today:         day(2025, time.January, 5),
			wantToday:     3,
			wantMonth:     9,
			wantLastReset: "2025-01-05",
			wantChanged:   true,
		},
		{
			name:          "empty last reset is rewritten to today",
			rec:           UsageRecord{CallsToday: 1, CallsThisMonth: 2, LastReset: ""},
			today:         day(2025, time.June, 10),
			wantToday:     1,
			wantMonth:     2,
			wantLastReset: "2025-06-10",
			wantChanged:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := ApplyReset(tt.rec, tt.today)

			assert.Equal(t, tt.wantToday, got.CallsToday)
			assert.Equal(t, tt.wantMonth, got.CallsThisMonth)
			assert.Equal(t, tt.wantLastReset, got.LastReset)
			assert.Equal(t, tt.wantChanged, changed)
		})
	}
}

func TestApplyReset_Idempotent(t *testing.T) {
	rec := UsageRecord{CallsToday: 3, CallsThisMonth: 9, LastReset: "2025-01-05"}
	today := day(2025, time.January, 6)

	once, changed := ApplyReset(rec, today)
	assert.True(t, changed)

	twice, changed := ApplyReset(once, today)
	assert.False(t, changed)
	assert.Equal(t, once, twice)
}

func TestApplyReset_CorruptDateSelfHeals(t *testing.T) {
	rec := UsageRecord{CallsToday: 2, CallsThisMonth: 10, LastReset: "garbage"}

	// The corrupt cycle is forfeited: counters survive, the date is fixed.
	healed, changed := ApplyReset(rec, day(2025, time.January, 5))
	assert.True(t, changed)
	assert.Equal(t, "2025-01-05", healed.LastReset)
	assert.Equal(t, 10, healed.CallsThisMonth)

	// The next month boundary then rolls over normally.
	next, changed := ApplyReset(healed, day(2025, time.February, 5))
	assert.True(t, changed)
	assert.Equal(t, 0, next.CallsToday)
	assert.Equal(t, 0, next.CallsThisMonth)
	assert.Equal(t, "2025-02-05", next.LastReset)
}

func TestApplyReset_DoesNotMutateInput(t *testing.T) {
	rec := UsageRecord{CallsToday: 3, CallsThisMonth: 9, LastReset: "2025-01-05"}

	_, _ = ApplyReset(rec, day(2025, time.February, 1))

	assert.Equal(t, 3, rec.CallsToday)
	assert.Equal(t, 9, rec.CallsThisMonth)
	assert.Equal(t, "2025-01-05", rec.LastReset)
}

func TestDecision_Allowed(t *testing.T) {
	assert.True(t, Decision{Kind: DecisionAllowed}.Allowed())
	assert.False(t, Decision{Kind: DecisionUnauthorized}.Allowed())
	assert.False(t, Decision{Kind: DecisionQuotaExceeded}.Allowed())
	assert.False(t, Decision{Kind: DecisionTransientFailure}.Allowed())
}
