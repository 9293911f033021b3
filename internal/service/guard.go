// Package service contains the business logic layer.
//
// This file implements the quota guard: the component that decides, for
// each presented API key, whether the metered call is permitted under the
// key's plan limit, and advances the usage counters exactly once.
package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/scrapegate/scrapegate/internal/clock"
	"github.com/scrapegate/scrapegate/internal/domain"
	"github.com/scrapegate/scrapegate/internal/metrics"
)

// DefaultCASRetries bounds the optimistic-update retry loop. A burst of
// concurrent calls for one identity conflicts at most once per competing
// writer, so a small budget is enough; running out maps to a transient
// failure, never a false allow.
const DefaultCASRetries = 5

// IdentityResolver maps a presented credential to the identity it belongs
// to. The guard treats resolution failure of any kind as unauthorized,
// except store outages, which surface as transient failures.
type IdentityResolver interface {
	ResolveAPIKey(ctx context.Context, key string) (*domain.Identity, error)
}

// UsageLedger is the persistence contract the guard needs: an idempotent
// get-or-create and a per-identity compare-and-set. Updates to a single
// identity's record must be linearizable; nothing else is assumed about
// the store.
type UsageLedger interface {
	// GetOrCreate returns the identity's ledger record, creating a zeroed
	// one with last_reset = today on first access.
	GetOrCreate(ctx context.Context, userID uuid.UUID, today string) (domain.UsageRecord, error)

	// CompareAndSet writes rec only if the stored version still equals
	// expectedVersion. Returns false on conflict.
	CompareAndSet(ctx context.Context, rec domain.UsageRecord, expectedVersion int64) (bool, error)

	// RecordDay adds one granted call to the identity's daily history.
	// Best-effort: the guard logs failures and keeps going.
	RecordDay(ctx context.Context, userID uuid.UUID, day string) error
}

// GuardService authorizes metered calls against plan quotas.
type GuardService interface {
	// Authorize resolves the credential, applies any due day/month
	// rollover, checks the monthly limit, and on success atomically
	// advances both counters. The charge is taken at permission time: an
	// abandoned request after an allowed decision stays counted.
	Authorize(ctx context.Context, credential string) domain.Decision
}

type guardService struct {
	resolver   IdentityResolver
	ledger     UsageLedger
	catalog    domain.PlanCatalog
	clock      clock.Clock
	logger     *slog.Logger
	maxRetries int
}

// NewGuardService creates a GuardService.
func NewGuardService(resolver IdentityResolver, ledger UsageLedger, catalog domain.PlanCatalog, clk clock.Clock, logger *slog.Logger) GuardService {
	return &guardService{
		resolver:   resolver,
		ledger:     ledger,
		catalog:    catalog,
		clock:      clk,
		logger:     logger,
		maxRetries: DefaultCASRetries,
	}
}

func (s *guardService) Authorize(ctx context.Context, credential string) domain.Decision {
	const op = "guard.authorize"

	ident, err := s.resolver.ResolveAPIKey(ctx, credential)
	if err != nil {
		if domain.ErrorCode(err) == domain.EUNAVAILABLE {
			s.logger.Error("identity resolution unavailable", "op", op, "error", err)
			return s.decide(domain.Decision{Kind: domain.DecisionTransientFailure})
		}
		// Unknown key, malformed key, resolver refusal: all unauthorized,
		// and no ledger row is touched.
		return s.decide(domain.Decision{Kind: domain.DecisionUnauthorized})
	}

	today := s.clock.Now()
	todayStr := today.Format(domain.DateLayout)
	limit := s.catalog.Limit(ident.Plan)

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		rec, err := s.ledger.GetOrCreate(ctx, ident.ID, todayStr)
		if err != nil {
			s.logger.Error("usage ledger load failed", "op", op, "user_id", ident.ID, "error", err)
			return s.decide(domain.Decision{Kind: domain.DecisionTransientFailure})
		}

		expected := rec.Version
		rec, changed := domain.ApplyReset(rec, today)

		if rec.CallsThisMonth >= limit {
			// Rejected, but a due rollover must still be persisted so the
			// stale daily counter is cleared for later calls today.
			if changed {
				ok, err := s.ledger.CompareAndSet(ctx, rec, expected)
				if err != nil {
					s.logger.Error("usage ledger reset write failed", "op", op, "user_id", ident.ID, "error", err)
					return s.decide(domain.Decision{Kind: domain.DecisionTransientFailure})
				}
				if !ok {
					metrics.LedgerConflicts.Inc()
					continue
				}
			}
			return s.decide(domain.Decision{
				Kind:      domain.DecisionQuotaExceeded,
				UserID:    ident.ID,
				Limit:     limit,
				CallsMade: rec.CallsThisMonth,
			})
		}

		// Reset (if any) and increment land in one atomic write, so the
		// record is either fully updated or untouched.
		next := rec
		next.CallsToday++
		next.CallsThisMonth++

		ok, err := s.ledger.CompareAndSet(ctx, next, expected)
		if err != nil {
			s.logger.Error("usage ledger update failed", "op", op, "user_id", ident.ID, "error", err)
			return s.decide(domain.Decision{Kind: domain.DecisionTransientFailure})
		}
		if !ok {
			metrics.LedgerConflicts.Inc()
			continue
		}

		if err := s.ledger.RecordDay(ctx, ident.ID, todayStr); err != nil {
			s.logger.Warn("daily usage projection write failed", "user_id", ident.ID, "error", err)
		}

		return s.decide(domain.Decision{
			Kind:           domain.DecisionAllowed,
			UserID:         ident.ID,
			CallsToday:     next.CallsToday,
			CallsThisMonth: next.CallsThisMonth,
			Limit:          limit,
		})
	}

	metrics.LedgerRetryExhausted.Inc()
	s.logger.Warn("usage ledger retry budget exhausted", "op", op, "user_id", ident.ID, "retries", s.maxRetries)
	return s.decide(domain.Decision{Kind: domain.DecisionTransientFailure})
}

func (s *guardService) decide(d domain.Decision) domain.Decision {
	metrics.AuthorizeDecisions.WithLabelValues(string(d.Kind)).Inc()
	return d
}
