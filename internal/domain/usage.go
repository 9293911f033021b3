// Package domain contains core business types and interfaces.
//
// This file defines the usage ledger record, the pure rollover policy
// applied to it, and the decision type returned by the quota guard.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// DateLayout is the calendar-date format stored in the ledger's
// last_reset column. No time component: rollovers are decided on whole
// dates only.
const DateLayout = "2006-01-02"

// UsageRecord is the per-user ledger entry the guard mutates.
//
// Invariants maintained by the guard:
//   - CallsToday <= CallsThisMonth
//   - CallsThisMonth never passes the plan limit at the moment a call is granted
//   - LastReset is monotonically non-decreasing
//
// Version backs the optimistic compare-and-set update; it is owned by the
// store and never inspected by business logic beyond being passed back.
type UsageRecord struct {
	UserID         uuid.UUID
	CallsToday     int
	CallsThisMonth int
	LastReset      string // calendar date in DateLayout
	Version        int64
}

// ApplyReset rolls the record's counters over if a day or month boundary
// has been crossed since LastReset. It is pure: the input record is not
// modified, and the returned bool reports whether anything changed.
//
// A month change zeroes both counters; a day change within the same month
// zeroes only the daily counter. A LastReset value that does not parse is
// treated as today and rewritten, so a corrupt date forfeits at most one
// rollover cycle and never blocks service.
func ApplyReset(rec UsageRecord, today time.Time) (UsageRecord, bool) {
	last, err := time.Parse(DateLayout, rec.LastReset)
	if err != nil {
		rec.LastReset = today.Format(DateLayout)
		return rec, true
	}

	if last.Year() != today.Year() || last.Month() != today.Month() {
		rec.CallsThisMonth = 0
		rec.CallsToday = 0
		rec.LastReset = today.Format(DateLayout)
		return rec, true
	}

	if last.Day() != today.Day() {
		rec.CallsToday = 0
		rec.LastReset = today.Format(DateLayout)
		return rec, true
	}

	return rec, false
}

// DecisionKind enumerates the possible outcomes of an authorization attempt.
type DecisionKind string

const (
	// DecisionAllowed: the call is permitted and has been counted.
	DecisionAllowed DecisionKind = "allowed"

	// DecisionUnauthorized: the credential is missing or unknown. Terminal;
	// no state was touched.
	DecisionUnauthorized DecisionKind = "unauthorized"

	// DecisionQuotaExceeded: valid identity, monthly limit reached. Terminal;
	// counters were not advanced.
	DecisionQuotaExceeded DecisionKind = "quota_exceeded"

	// DecisionTransientFailure: the store or resolver failed, or the atomic
	// update retry budget ran out. The caller may retry.
	DecisionTransientFailure DecisionKind = "transient_failure"
)

// Decision is the outcome of one authorization attempt.
//
// CallsToday/CallsThisMonth/Limit are set for DecisionAllowed;
// Limit/CallsMade are set for DecisionQuotaExceeded. UserID identifies
// the resolved caller and is zero for DecisionUnauthorized.
type Decision struct {
	Kind           DecisionKind
	UserID         uuid.UUID
	CallsToday     int
	CallsThisMonth int
	Limit          int
	CallsMade      int
}

// Allowed reports whether the caller may perform the metered operation.
func (d Decision) Allowed() bool {
	return d.Kind == DecisionAllowed
}

// DailyCalls is one day of the dashboard usage trend.
type DailyCalls struct {
	Day   string `json:"day"`
	Calls int    `json:"calls"`
}

// DashboardStats is the read contract served to the usage dashboard.
type DashboardStats struct {
	Username       string       `json:"username"`
	Plan           PlanTier     `json:"plan"`
	Limit          int          `json:"plan_limit"`
	CallsToday     int          `json:"calls_today"`
	CallsThisMonth int          `json:"calls_this_month"`
	Daily          []DailyCalls `json:"daily_trend"`
}
