package repository

import (
	"context"

	"telegram-max-bridge/internal/domain/model"
)

// -----------------------------
// Source connections (inbound Telegram channels)
// -----------------------------

type SourceConnectionRepository interface {
	Save(ctx context.Context, tx Tx, c *model.SourceConnection) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.SourceConnection, error)
	// FindActiveByWebhookSecret resolves a webhook capability token among
	// active connections only. Inactive and unknown secrets are both
	// domain.ErrNotFound so callers cannot tell them apart.
	FindActiveByWebhookSecret(ctx context.Context, tx Tx, secret string) (*model.SourceConnection, error)
	// FindByWebhookSecret resolves regardless of the active flag (health checks).
	FindByWebhookSecret(ctx context.Context, tx Tx, secret string) (*model.SourceConnection, error)
	ListByUser(ctx context.Context, tx Tx, userID string) ([]*model.SourceConnection, error)
	// Delete removes the connection; dependent links are removed by cascade.
	Delete(ctx context.Context, tx Tx, id string) error
}
