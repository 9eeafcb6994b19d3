package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-max-bridge/internal/domain"
	"telegram-max-bridge/internal/domain/ports/repository"
)

var _ repository.QuotaRepository = (*quotaRepo)(nil)

// quotaRepo persists per-link per-UTC-day counters. The unique index on
// (link_id, day) plus the single-statement upsert make Increment safe under
// concurrent deliveries: two racing increments serialize on the row and both
// land, with no lost update.
type quotaRepo struct {
	pool *pgxpool.Pool
}

func NewQuotaRepo(pool *pgxpool.Pool) repository.QuotaRepository {
	return &quotaRepo{pool: pool}
}

func (r *quotaRepo) CountForDay(ctx context.Context, tx repository.Tx, linkID string, day time.Time) (int, error) {
	const q = `SELECT count FROM daily_quota_counters WHERE link_id = $1 AND day = $2;`
	row, err := pickRow(ctx, r.pool, tx, q, linkID, utcDay(day))
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil // lazily created on first successful forward
		}
		return 0, domain.ErrReadDatabaseRow
	}
	return n, nil
}

func (r *quotaRepo) Increment(ctx context.Context, tx repository.Tx, linkID string, day time.Time) (int, error) {
	const q = `
INSERT INTO daily_quota_counters (id, link_id, day, count)
VALUES ($1, $2, $3, 1)
ON CONFLICT (link_id, day) DO UPDATE SET count = daily_quota_counters.count + 1
RETURNING count;
`
	row, err := pickRow(ctx, r.pool, tx, q, uuid.NewString(), linkID, utcDay(day))
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return n, nil
}

func (r *quotaRepo) DeleteBefore(ctx context.Context, tx repository.Tx, cutoff time.Time) (int64, error) {
	const q = `DELETE FROM daily_quota_counters WHERE day < $1;`
	tag, err := execSQL(ctx, r.pool, tx, q, utcDay(cutoff))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// utcDay truncates to the UTC calendar date; quota days are UTC by contract.
func utcDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
