package repository

import (
	"context"
	"time"
)

// -----------------------------
// Daily quota counters
// -----------------------------

// QuotaRepository tracks per-link, per-UTC-day post counters. All mutation
// goes through Increment; nothing else writes these rows.
type QuotaRepository interface {
	// CountForDay returns today's count, 0 if no row exists yet.
	CountForDay(ctx context.Context, tx Tx, linkID string, day time.Time) (int, error)
	// Increment atomically upserts the counter for (linkID, day): the row is
	// created at 1 when absent, otherwise count is bumped by one in a single
	// statement. Safe under concurrent increments; returns the new count.
	Increment(ctx context.Context, tx Tx, linkID string, day time.Time) (int, error)
	// DeleteBefore removes counters for days strictly before cutoff,
	// returning the number deleted.
	DeleteBefore(ctx context.Context, tx Tx, cutoff time.Time) (int64, error)
}
