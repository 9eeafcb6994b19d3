package model

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"telegram-max-bridge/internal/domain"

	"github.com/google/uuid"
)

// SourceConnection is a registered inbound Telegram channel. BotToken is
// stored encrypted; WebhookSecret is the bearer capability presented by the
// provider on delivery and is never re-issued for another connection.
type SourceConnection struct {
	ID              string
	UserID          string
	ChannelID       int64
	ChannelUsername string
	BotToken        string // encrypted at rest
	WebhookSecret   string
	WebhookURL      string
	IsActive        bool
	CreatedAt       time.Time
}

func NewSourceConnection(userID string, channelID int64, channelUsername, encryptedToken string) (*SourceConnection, error) {
	if userID == "" || channelID == 0 || encryptedToken == "" {
		return nil, domain.ErrInvalidArgument
	}
	secret, err := NewWebhookSecret()
	if err != nil {
		return nil, err
	}
	return &SourceConnection{
		ID:              uuid.NewString(),
		UserID:          userID,
		ChannelID:       channelID,
		ChannelUsername: channelUsername,
		BotToken:        encryptedToken,
		WebhookSecret:   secret,
		IsActive:        true,
		CreatedAt:       time.Now(),
	}, nil
}

// NewWebhookSecret returns an unguessable webhook capability token:
// 32 bytes from crypto/rand, base64url without padding.
func NewWebhookSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
