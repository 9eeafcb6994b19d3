// File: internal/domain/ports/adapter/telegram.go
package adapter

import "context"

// BotIdentity is the result of validating a source bot token.
type BotIdentity struct {
	ID       int64
	Username string
}

// WebhookStatus mirrors the provider's view of a programmed webhook.
type WebhookStatus struct {
	URL             string
	PendingUpdates  int
	LastErrorDate   int64
	LastErrorReason string
}

// SourceProviderAPI is the Telegram-side port: credential validation, webhook
// lifecycle, and asset retrieval for media forwarding.
type SourceProviderAPI interface {
	GetBotIdentity(ctx context.Context, token string) (*BotIdentity, error)
	SetWebhook(ctx context.Context, token, url string) error
	DeleteWebhook(ctx context.Context, token string) error
	GetWebhookStatus(ctx context.Context, token string) (*WebhookStatus, error)
	// FetchFileBytes downloads a file by provider file id. Implementations
	// without download support return domain.ErrAssetFetchUnsupported.
	FetchFileBytes(ctx context.Context, token, fileID string) ([]byte, error)
}
