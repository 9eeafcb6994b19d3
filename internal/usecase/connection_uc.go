package usecase

import (
	"context"
	"fmt"

	"telegram-max-bridge/internal/domain"
	"telegram-max-bridge/internal/domain/model"
	"telegram-max-bridge/internal/domain/ports/adapter"
	"telegram-max-bridge/internal/domain/ports/repository"
	"telegram-max-bridge/internal/infra/logging"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ SourceConnectionUseCase = (*sourceConnectionUC)(nil)

// SourceConnectionUseCase manages inbound Telegram channel registrations:
// token validation, webhook programming and revocation.
type SourceConnectionUseCase interface {
	// Create validates the bot token against the source provider, stores the
	// connection with an encrypted token and programs the provider webhook to
	// the connection's capability URL.
	Create(ctx context.Context, userID string, channelID int64, channelUsername, botToken string) (*model.SourceConnection, error)
	Get(ctx context.Context, userID, id string) (*model.SourceConnection, error)
	List(ctx context.Context, userID string) ([]*model.SourceConnection, error)
	// Delete revokes the provider webhook and removes the connection.
	// Dependent links are removed by cascade.
	Delete(ctx context.Context, userID, id string) error
	// WebhookStatus reports the provider's view of the programmed webhook.
	WebhookStatus(ctx context.Context, userID, id string) (*adapter.WebhookStatus, error)
}

type sourceConnectionUC struct {
	connections    repository.SourceConnectionRepository
	source         adapter.SourceProviderAPI
	vault          TokenCipher
	webhookBaseURL string
	log            *zerolog.Logger
}

func NewSourceConnectionUseCase(
	connections repository.SourceConnectionRepository,
	source adapter.SourceProviderAPI,
	vault TokenCipher,
	webhookBaseURL string,
	logger *zerolog.Logger,
) *sourceConnectionUC {
	return &sourceConnectionUC{
		connections:    connections,
		source:         source,
		vault:          vault,
		webhookBaseURL: webhookBaseURL,
		log:            logger,
	}
}

func (uc *sourceConnectionUC) Create(ctx context.Context, userID string, channelID int64, channelUsername, botToken string) (*model.SourceConnection, error) {
	defer logging.TraceDuration(uc.log, "SourceConnectionUC.Create")()

	identity, err := uc.source.GetBotIdentity(ctx, botToken)
	if err != nil {
		return nil, fmt.Errorf("validate bot token: %w", err)
	}

	encrypted, err := uc.vault.Encrypt(botToken)
	if err != nil {
		return nil, err
	}
	conn, err := model.NewSourceConnection(userID, channelID, channelUsername, encrypted)
	if err != nil {
		return nil, err
	}
	conn.WebhookURL = fmt.Sprintf("%s/webhook/telegram/%s", uc.webhookBaseURL, conn.WebhookSecret)

	if err := uc.source.SetWebhook(ctx, botToken, conn.WebhookURL); err != nil {
		return nil, fmt.Errorf("program webhook: %w", err)
	}
	if err := uc.connections.Save(ctx, repository.NoTX, conn); err != nil {
		// Best effort: do not leave a webhook pointing at a connection that
		// was never persisted.
		if derr := uc.source.DeleteWebhook(ctx, botToken); derr != nil {
			uc.log.Warn().Err(derr).Msg("failed to roll back webhook after save failure")
		}
		return nil, err
	}

	uc.log.Info().
		Str("connection_id", conn.ID).
		Str("user_id", userID).
		Int64("channel_id", channelID).
		Str("bot", identity.Username).
		Msg("source connection created")
	return conn, nil
}

func (uc *sourceConnectionUC) Get(ctx context.Context, userID, id string) (*model.SourceConnection, error) {
	return uc.ownedConnection(ctx, userID, id)
}

func (uc *sourceConnectionUC) List(ctx context.Context, userID string) ([]*model.SourceConnection, error) {
	return uc.connections.ListByUser(ctx, repository.NoTX, userID)
}

func (uc *sourceConnectionUC) Delete(ctx context.Context, userID, id string) error {
	defer logging.TraceDuration(uc.log, "SourceConnectionUC.Delete")()

	conn, err := uc.ownedConnection(ctx, userID, id)
	if err != nil {
		return err
	}
	token, err := uc.vault.Decrypt(conn.BotToken)
	if err != nil {
		// Credentials are unreadable; the webhook cannot be revoked but the
		// routing entry still must go.
		uc.log.Error().Err(err).Str("connection_id", id).Msg("cannot revoke webhook, deleting connection anyway")
	} else if err := uc.source.DeleteWebhook(ctx, token); err != nil {
		uc.log.Warn().Err(err).Str("connection_id", id).Msg("webhook revocation failed")
	}
	return uc.connections.Delete(ctx, repository.NoTX, id)
}

func (uc *sourceConnectionUC) WebhookStatus(ctx context.Context, userID, id string) (*adapter.WebhookStatus, error) {
	conn, err := uc.ownedConnection(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	token, err := uc.vault.Decrypt(conn.BotToken)
	if err != nil {
		return nil, err
	}
	return uc.source.GetWebhookStatus(ctx, token)
}

// ownedConnection loads the connection and hides other tenants' rows behind
// the same not-found error as missing ones.
func (uc *sourceConnectionUC) ownedConnection(ctx context.Context, userID, id string) (*model.SourceConnection, error) {
	conn, err := uc.connections.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		return nil, err
	}
	if conn.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return conn, nil
}
