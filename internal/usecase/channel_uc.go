package usecase

import (
	"context"
	"fmt"
	"time"

	"telegram-max-bridge/internal/domain"
	"telegram-max-bridge/internal/domain/model"
	"telegram-max-bridge/internal/domain/ports/adapter"
	"telegram-max-bridge/internal/domain/ports/repository"
	"telegram-max-bridge/internal/infra/logging"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ DestinationChannelUseCase = (*destinationChannelUC)(nil)

// DestinationChannelUseCase manages outbound Max chat registrations.
type DestinationChannelUseCase interface {
	// Create verifies the credential by sending a short test message to the
	// target chat, then stores the channel with an encrypted token.
	Create(ctx context.Context, userID string, chatID int64, name, botToken string) (*model.DestinationChannel, error)
	Get(ctx context.Context, userID, id string) (*model.DestinationChannel, error)
	List(ctx context.Context, userID string) ([]*model.DestinationChannel, error)
	// Delete removes the channel; dependent links are removed by cascade.
	Delete(ctx context.Context, userID, id string) error
}

type destinationChannelUC struct {
	channels    repository.DestinationChannelRepository
	gateway     adapter.DestinationAPI
	vault       TokenCipher
	sendTimeout time.Duration
	log         *zerolog.Logger
}

func NewDestinationChannelUseCase(
	channels repository.DestinationChannelRepository,
	gateway adapter.DestinationAPI,
	vault TokenCipher,
	sendTimeout time.Duration,
	logger *zerolog.Logger,
) *destinationChannelUC {
	if sendTimeout <= 0 {
		sendTimeout = 30 * time.Second
	}
	return &destinationChannelUC{
		channels:    channels,
		gateway:     gateway,
		vault:       vault,
		sendTimeout: sendTimeout,
		log:         logger,
	}
}

func (uc *destinationChannelUC) Create(ctx context.Context, userID string, chatID int64, name, botToken string) (*model.DestinationChannel, error) {
	defer logging.TraceDuration(uc.log, "DestinationChannelUC.Create")()

	sendCtx, cancel := context.WithTimeout(ctx, uc.sendTimeout)
	defer cancel()
	if _, err := uc.gateway.SendText(sendCtx, botToken, chatID, "Connection test: this chat is now reachable."); err != nil {
		return nil, fmt.Errorf("verify destination credential: %w", err)
	}

	encrypted, err := uc.vault.Encrypt(botToken)
	if err != nil {
		return nil, err
	}
	ch, err := model.NewDestinationChannel(userID, chatID, name, encrypted)
	if err != nil {
		return nil, err
	}
	if err := uc.channels.Save(ctx, repository.NoTX, ch); err != nil {
		return nil, err
	}

	uc.log.Info().
		Str("channel_id", ch.ID).
		Str("user_id", userID).
		Int64("chat_id", chatID).
		Msg("destination channel created")
	return ch, nil
}

func (uc *destinationChannelUC) Get(ctx context.Context, userID, id string) (*model.DestinationChannel, error) {
	return uc.ownedChannel(ctx, userID, id)
}

func (uc *destinationChannelUC) List(ctx context.Context, userID string) ([]*model.DestinationChannel, error) {
	return uc.channels.ListByUser(ctx, repository.NoTX, userID)
}

func (uc *destinationChannelUC) Delete(ctx context.Context, userID, id string) error {
	if _, err := uc.ownedChannel(ctx, userID, id); err != nil {
		return err
	}
	return uc.channels.Delete(ctx, repository.NoTX, id)
}

func (uc *destinationChannelUC) ownedChannel(ctx context.Context, userID, id string) (*model.DestinationChannel, error) {
	ch, err := uc.channels.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		return nil, err
	}
	if ch.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return ch, nil
}
