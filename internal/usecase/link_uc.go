package usecase

import (
	"context"

	"telegram-max-bridge/internal/domain"
	"telegram-max-bridge/internal/domain/model"
	"telegram-max-bridge/internal/domain/ports/repository"
	"telegram-max-bridge/internal/infra/logging"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ LinkUseCase = (*linkUC)(nil)

// LinkUseCase manages source-to-destination mappings. Both endpoints of a
// link must belong to the requesting tenant and the tenant's active link
// count must stay within its connection limit.
type LinkUseCase interface {
	Create(ctx context.Context, userID, sourceID, destinationID, name string) (*model.Link, error)
	Get(ctx context.Context, userID, id string) (*model.Link, error)
	List(ctx context.Context, userID string) ([]*model.Link, error)
	Delete(ctx context.Context, userID, id string) error
}

type linkUC struct {
	links       repository.LinkRepository
	connections repository.SourceConnectionRepository
	channels    repository.DestinationChannelRepository
	limiter     RateLimiterUseCase
	log         *zerolog.Logger
}

func NewLinkUseCase(
	links repository.LinkRepository,
	connections repository.SourceConnectionRepository,
	channels repository.DestinationChannelRepository,
	limiter RateLimiterUseCase,
	logger *zerolog.Logger,
) *linkUC {
	return &linkUC{
		links:       links,
		connections: connections,
		channels:    channels,
		limiter:     limiter,
		log:         logger,
	}
}

func (uc *linkUC) Create(ctx context.Context, userID, sourceID, destinationID, name string) (*model.Link, error) {
	defer logging.TraceDuration(uc.log, "LinkUC.Create")()

	remaining, err := uc.limiter.RemainingConnections(ctx, userID)
	if err != nil {
		return nil, err
	}
	if remaining <= 0 {
		return nil, domain.ErrConnectionLimitReached
	}

	src, err := uc.connections.FindByID(ctx, repository.NoTX, sourceID)
	if err != nil {
		return nil, err
	}
	dst, err := uc.channels.FindByID(ctx, repository.NoTX, destinationID)
	if err != nil {
		return nil, err
	}

	// NewLink refuses endpoints owned by a different tenant.
	link, err := model.NewLink(userID, src, dst, name)
	if err != nil {
		return nil, err
	}
	if err := uc.links.Save(ctx, repository.NoTX, link); err != nil {
		return nil, err
	}

	uc.log.Info().
		Str("link_id", link.ID).
		Str("user_id", userID).
		Str("source_id", sourceID).
		Str("destination_id", destinationID).
		Msg("link created")
	return link, nil
}

func (uc *linkUC) Get(ctx context.Context, userID, id string) (*model.Link, error) {
	return uc.ownedLink(ctx, userID, id)
}

func (uc *linkUC) List(ctx context.Context, userID string) ([]*model.Link, error) {
	return uc.links.ListByUser(ctx, repository.NoTX, userID)
}

func (uc *linkUC) Delete(ctx context.Context, userID, id string) error {
	if _, err := uc.ownedLink(ctx, userID, id); err != nil {
		return err
	}
	return uc.links.Delete(ctx, repository.NoTX, id)
}

func (uc *linkUC) ownedLink(ctx context.Context, userID, id string) (*model.Link, error) {
	link, err := uc.links.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		return nil, err
	}
	if link.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return link, nil
}
