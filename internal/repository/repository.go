// Package repository is the persistence layer.
//
// Queries wraps a *sql.DB (pgx stdlib driver) with one method per query.
// It returns database-level row types; services translate them into
// domain types and domain errors.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// Queries executes SQL against the application database.
type Queries struct {
	db *sql.DB
}

// New creates a Queries backed by the given database handle.
func New(db *sql.DB) *Queries {
	return &Queries{db: db}
}

// IsUniqueViolation reports whether err is a Postgres unique-constraint
// violation (SQLSTATE 23505).
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// =============================================================================
// Row types
// =============================================================================

// User is a row of the users table.
type User struct {
	ID           uuid.UUID
	Username     string
	PasswordHash string
	Plan         int
	APIKeyHash   sql.NullString
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UsageRecord is a row of the usage_records table. LastReset is stored as
// an ISO calendar date string; the rollover policy tolerates values that
// do not parse.
type UsageRecord struct {
	UserID         uuid.UUID
	CallsToday     int
	CallsThisMonth int
	LastReset      string
	Version        int64
}

// DailyUsage is a row of the usage_days projection.
type DailyUsage struct {
	Day   time.Time
	Calls int
}

// =============================================================================
// Users
// =============================================================================

// CreateUserParams contains the fields for a new user row.
type CreateUserParams struct {
	ID           uuid.UUID
	Username     string
	PasswordHash string
	Plan         int
}

const createUser = `
INSERT INTO users (id, username, password_hash, plan)
VALUES ($1, $2, $3, $4)
RETURNING id, username, password_hash, plan, api_key_hash, created_at, updated_at`

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRowContext(ctx, createUser, arg.ID, arg.Username, arg.PasswordHash, arg.Plan)
	return scanUser(row)
}

const getUserByID = `
SELECT id, username, password_hash, plan, api_key_hash, created_at, updated_at
FROM users WHERE id = $1`

func (q *Queries) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUserByID, id))
}

const getUserByUsername = `
SELECT id, username, password_hash, plan, api_key_hash, created_at, updated_at
FROM users WHERE username = $1`

func (q *Queries) GetUserByUsername(ctx context.Context, username string) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUserByUsername, username))
}

const getUserByAPIKeyHash = `
SELECT id, username, password_hash, plan, api_key_hash, created_at, updated_at
FROM users WHERE api_key_hash = $1`

func (q *Queries) GetUserByAPIKeyHash(ctx context.Context, hash string) (User, error) {
	return scanUser(q.db.QueryRowContext(ctx, getUserByAPIKeyHash, hash))
}

const updateUserAPIKeyHash = `
UPDATE users SET api_key_hash = $2, updated_at = now() WHERE id = $1`

// UpdateUserAPIKeyHash replaces the user's API key hash. Any previously
// minted key stops resolving immediately.
func (q *Queries) UpdateUserAPIKeyHash(ctx context.Context, id uuid.UUID, hash string) error {
	res, err := q.db.ExecContext(ctx, updateUserAPIKeyHash, id, hash)
	if err != nil {
		return err
	}
	return requireRow(res)
}

const updateUserPlan = `
UPDATE users SET plan = $2, updated_at = now() WHERE id = $1`

func (q *Queries) UpdateUserPlan(ctx context.Context, id uuid.UUID, plan int) error {
	res, err := q.db.ExecContext(ctx, updateUserPlan, id, plan)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// =============================================================================
// Usage ledger
// =============================================================================

const createUsageRecord = `
INSERT INTO usage_records (user_id, calls_today, calls_this_month, last_reset, version)
VALUES ($1, 0, 0, $2, 1)
ON CONFLICT (user_id) DO NOTHING`

const getUsageRecord = `
SELECT user_id, calls_today, calls_this_month, last_reset, version
FROM usage_records WHERE user_id = $1`

// GetOrCreateUsageRecord returns the user's ledger row, creating a zeroed
// one with last_reset = today on first access. The create is a single
// upsert so two concurrent first calls cannot produce duplicate rows.
func (q *Queries) GetOrCreateUsageRecord(ctx context.Context, userID uuid.UUID, today string) (UsageRecord, error) {
	if _, err := q.db.ExecContext(ctx, createUsageRecord, userID, today); err != nil {
		return UsageRecord{}, err
	}
	var rec UsageRecord
	err := q.db.QueryRowContext(ctx, getUsageRecord, userID).Scan(
		&rec.UserID, &rec.CallsToday, &rec.CallsThisMonth, &rec.LastReset, &rec.Version,
	)
	return rec, err
}

// UpdateUsageRecordCASParams carries a full replacement ledger row plus
// the version the caller read it at.
type UpdateUsageRecordCASParams struct {
	UserID          uuid.UUID
	ExpectedVersion int64
	CallsToday      int
	CallsThisMonth  int
	LastReset       string
}

const updateUsageRecordCAS = `
UPDATE usage_records
SET calls_today = $3, calls_this_month = $4, last_reset = $5, version = version + 1
WHERE user_id = $1 AND version = $2`

// UpdateUsageRecordCAS writes the record only if nobody else has written
// it since the caller read it. Returns false on version conflict; the
// caller re-reads and retries.
func (q *Queries) UpdateUsageRecordCAS(ctx context.Context, arg UpdateUsageRecordCASParams) (bool, error) {
	res, err := q.db.ExecContext(ctx, updateUsageRecordCAS,
		arg.UserID, arg.ExpectedVersion, arg.CallsToday, arg.CallsThisMonth, arg.LastReset)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// =============================================================================
// Daily usage projection
// =============================================================================

const upsertDailyUsage = `
INSERT INTO usage_days (user_id, day, calls)
VALUES ($1, $2, 1)
ON CONFLICT (user_id, day) DO UPDATE SET calls = usage_days.calls + 1`

// UpsertDailyUsage adds one granted call to the user's history row for
// the given day.
func (q *Queries) UpsertDailyUsage(ctx context.Context, userID uuid.UUID, day string) error {
	_, err := q.db.ExecContext(ctx, upsertDailyUsage, userID, day)
	return err
}

const listRecentDailyUsage = `
SELECT day, calls FROM usage_days
WHERE user_id = $1
ORDER BY day DESC
LIMIT $2`

// ListRecentDailyUsage returns up to limit most-recent daily rows, newest
// first.
func (q *Queries) ListRecentDailyUsage(ctx context.Context, userID uuid.UUID, limit int) ([]DailyUsage, error) {
	rows, err := q.db.QueryContext(ctx, listRecentDailyUsage, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DailyUsage
	for rows.Next() {
		var d DailyUsage
		if err := rows.Scan(&d.Day, &d.Calls); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

const deleteDailyUsageBefore = `
DELETE FROM usage_days WHERE day < $1`

// DeleteDailyUsageBefore prunes history rows older than the cutoff date.
// Returns the number of rows removed.
func (q *Queries) DeleteDailyUsageBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteDailyUsageBefore, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// =============================================================================
// Helpers
// =============================================================================

func scanUser(row *sql.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Plan, &u.APIKeyHash, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
