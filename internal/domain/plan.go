// Package domain contains core business types and interfaces.
//
// This file defines plan tiers and the catalog mapping tiers to their
// monthly call limits.
package domain

// PlanTier classifies a user's subscription level.
//
// Tiers are small integers so they can be stored directly and compared
// cheaply. New tiers must be added to the catalog passed to the guard;
// any tier the catalog does not know falls back to the free limit.
type PlanTier int

const (
	PlanFree    PlanTier = 0
	PlanStarter PlanTier = 1
	PlanPro     PlanTier = 2
)

// PlanCatalog is an immutable mapping from plan tier to monthly call limit.
//
// The catalog is process-wide configuration. It is injected into the
// services that need it rather than exposed as a mutable global, so tests
// can run against alternate catalogs.
type PlanCatalog struct {
	limits       map[PlanTier]int
	defaultLimit int
}

// NewPlanCatalog builds a catalog from a tier→limit map and a default
// limit for unknown tiers. The map is copied; callers cannot mutate the
// catalog afterwards.
func NewPlanCatalog(limits map[PlanTier]int, defaultLimit int) PlanCatalog {
	m := make(map[PlanTier]int, len(limits))
	for tier, limit := range limits {
		m[tier] = limit
	}
	return PlanCatalog{limits: m, defaultLimit: defaultLimit}
}

// DefaultPlanCatalog returns the production catalog:
// free 10, starter 20, pro 30 calls per month.
//
// Unknown tiers deliberately fall back to the free limit rather than
// failing the call: a user row with a bad tier keeps working at the
// most restrictive limit.
func DefaultPlanCatalog() PlanCatalog {
	return NewPlanCatalog(map[PlanTier]int{
		PlanFree:    10,
		PlanStarter: 20,
		PlanPro:     30,
	}, 10)
}

// Limit returns the monthly call limit for a tier, or the default limit
// if the tier is unknown.
func (c PlanCatalog) Limit(tier PlanTier) int {
	if limit, ok := c.limits[tier]; ok {
		return limit
	}
	return c.defaultLimit
}

// Known reports whether the tier exists in the catalog. Used to validate
// plan-change requests.
func (c PlanCatalog) Known(tier PlanTier) bool {
	_, ok := c.limits[tier]
	return ok
}
