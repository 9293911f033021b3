package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/scrapegate/scrapegate/internal/domain"
	"github.com/scrapegate/scrapegate/internal/repository"
)

// sqlLedger adapts the repository to the UsageLedger contract.
type sqlLedger struct {
	queries *repository.Queries
}

// NewSQLLedger returns a UsageLedger backed by the Postgres usage tables.
func NewSQLLedger(queries *repository.Queries) UsageLedger {
	return &sqlLedger{queries: queries}
}

func (l *sqlLedger) GetOrCreate(ctx context.Context, userID uuid.UUID, today string) (domain.UsageRecord, error) {
	rec, err := l.queries.GetOrCreateUsageRecord(ctx, userID, today)
	if err != nil {
		return domain.UsageRecord{}, err
	}
	return domain.UsageRecord{
		UserID:         rec.UserID,
		CallsToday:     rec.CallsToday,
		CallsThisMonth: rec.CallsThisMonth,
		LastReset:      rec.LastReset,
		Version:        rec.Version,
	}, nil
}

func (l *sqlLedger) CompareAndSet(ctx context.Context, rec domain.UsageRecord, expectedVersion int64) (bool, error) {
	return l.queries.UpdateUsageRecordCAS(ctx, repository.UpdateUsageRecordCASParams{
		UserID:          rec.UserID,
		ExpectedVersion: expectedVersion,
		CallsToday:      rec.CallsToday,
		CallsThisMonth:  rec.CallsThisMonth,
		LastReset:       rec.LastReset,
	})
}

func (l *sqlLedger) RecordDay(ctx context.Context, userID uuid.UUID, day string) error {
	return l.queries.UpsertDailyUsage(ctx, userID, day)
}
