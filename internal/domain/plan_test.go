package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultPlanCatalog_Limits(t *testing.T) {
	catalog := DefaultPlanCatalog()

	assert.Equal(t, 10, catalog.Limit(PlanFree))
	assert.Equal(t, 20, catalog.Limit(PlanStarter))
	assert.Equal(t, 30, catalog.Limit(PlanPro))
}

func TestPlanCatalog_UnknownTierFallsBack(t *testing.T) {
	catalog := DefaultPlanCatalog()

	assert.Equal(t, 10, catalog.Limit(PlanTier(99)))
	assert.Equal(t, 10, catalog.Limit(PlanTier(-1)))
}

func TestPlanCatalog_Known(t *testing.T) {
	catalog := DefaultPlanCatalog()

	assert.True(t, catalog.Known(PlanFree))
	assert.True(t, catalog.Known(PlanPro))
	assert.False(t, catalog.Known(PlanTier(99)))
}

func TestNewPlanCatalog_CopiesInput(t *testing.T) {
	limits := map[PlanTier]int{PlanFree: 5}
	catalog := NewPlanCatalog(limits, 5)

	limits[PlanFree] = 1000

	assert.Equal(t, 5, catalog.Limit(PlanFree))
}
