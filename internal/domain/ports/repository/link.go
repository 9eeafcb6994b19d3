package repository

import (
	"context"

	"telegram-max-bridge/internal/domain/model"
)

// -----------------------------
// Links (source -> destination mappings)
// -----------------------------

type LinkRepository interface {
	Save(ctx context.Context, tx Tx, l *model.Link) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Link, error)
	// ListActiveBySource is the dispatch fan-out set.
	ListActiveBySource(ctx context.Context, tx Tx, sourceID string) ([]*model.Link, error)
	ListByUser(ctx context.Context, tx Tx, userID string) ([]*model.Link, error)
	// CountActiveByUser backs the tenant connection limit.
	CountActiveByUser(ctx context.Context, tx Tx, userID string) (int, error)
	Delete(ctx context.Context, tx Tx, id string) error
}
