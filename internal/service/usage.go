// Package service contains the business logic layer.
//
// This file implements the usage dashboard read path.
package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/scrapegate/scrapegate/internal/clock"
	"github.com/scrapegate/scrapegate/internal/domain"
	"github.com/scrapegate/scrapegate/internal/repository"
)

const (
	// DefaultDashboardDays is the trend window served when the caller
	// does not ask for a specific one.
	DefaultDashboardDays = 7

	// MaxDashboardDays caps the trend window a caller can request.
	MaxDashboardDays = 90
)

// UsageService serves usage statistics to the dashboard.
type UsageService interface {
	// Dashboard returns the user's plan, limit, current counters, and up
	// to days most-recent daily snapshots (newest first).
	Dashboard(ctx context.Context, userID uuid.UUID, days int) (*domain.DashboardStats, error)
}

type usageService struct {
	queries *repository.Queries
	catalog domain.PlanCatalog
	clock   clock.Clock
	logger  *slog.Logger
}

// NewUsageService creates a UsageService.
func NewUsageService(queries *repository.Queries, catalog domain.PlanCatalog, clk clock.Clock, logger *slog.Logger) UsageService {
	return &usageService{
		queries: queries,
		catalog: catalog,
		clock:   clk,
		logger:  logger,
	}
}

func (s *usageService) Dashboard(ctx context.Context, userID uuid.UUID, days int) (*domain.DashboardStats, error) {
	const op = "usage.dashboard"

	if days <= 0 {
		days = DefaultDashboardDays
	}
	if days > MaxDashboardDays {
		days = MaxDashboardDays
	}

	user, err := s.queries.GetUserByID(ctx, userID)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to retrieve user")
	}

	today := s.clock.Now()
	repoRec, err := s.queries.GetOrCreateUsageRecord(ctx, userID, today.Format(domain.DateLayout))
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to load usage record")
	}

	// Apply the rollover policy to the view only. The guard persists
	// resets on the next metered call; the dashboard just must not show
	// yesterday's counters as today's.
	rec := domain.UsageRecord{
		UserID:         repoRec.UserID,
		CallsToday:     repoRec.CallsToday,
		CallsThisMonth: repoRec.CallsThisMonth,
		LastReset:      repoRec.LastReset,
	}
	rec, _ = domain.ApplyReset(rec, today)

	dailyRows, err := s.queries.ListRecentDailyUsage(ctx, userID, days)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to load usage history")
	}
	daily := make([]domain.DailyCalls, 0, len(dailyRows))
	for _, row := range dailyRows {
		daily = append(daily, domain.DailyCalls{
			Day:   row.Day.Format(domain.DateLayout),
			Calls: row.Calls,
		})
	}

	tier := domain.PlanTier(user.Plan)
	return &domain.DashboardStats{
		Username:       user.Username,
		Plan:           tier,
		Limit:          s.catalog.Limit(tier),
		CallsToday:     rec.CallsToday,
		CallsThisMonth: rec.CallsThisMonth,
		Daily:          daily,
	}, nil
}
