package repository

import (
	"context"

	"telegram-max-bridge/internal/domain/model"
)

// -----------------------------
// Destination channels (outbound Max chats)
// -----------------------------

type DestinationChannelRepository interface {
	Save(ctx context.Context, tx Tx, ch *model.DestinationChannel) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.DestinationChannel, error)
	ListByUser(ctx context.Context, tx Tx, userID string) ([]*model.DestinationChannel, error)
	// Delete removes the channel; dependent links are removed by cascade.
	Delete(ctx context.Context, tx Tx, id string) error
}
