package repository

import (
	"context"
	"time"

	"telegram-max-bridge/internal/domain/model"
)

// -----------------------------
// Post ledger (append-only forwarding history)
// -----------------------------

type PostRecordRepository interface {
	// Save appends a record. Records are never updated.
	Save(ctx context.Context, tx Tx, p *model.PostRecord) error
	// ListByLink returns a page ordered by creation time descending.
	ListByLink(ctx context.Context, tx Tx, linkID string, offset, limit int) ([]*model.PostRecord, error)
	// CountByLink returns the unfiltered total for pagination.
	CountByLink(ctx context.Context, tx Tx, linkID string) (int, error)
	// DeleteOlderThan removes records with the given outcome created strictly
	// before cutoff, returning the number deleted.
	DeleteOlderThan(ctx context.Context, tx Tx, outcome model.Outcome, cutoff time.Time) (int64, error)
}
