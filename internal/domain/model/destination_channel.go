package model

import (
	"time"

	"telegram-max-bridge/internal/domain"

	"github.com/google/uuid"
)

// DestinationChannel is an outbound Max chat. BotToken is stored encrypted.
type DestinationChannel struct {
	ID        string
	UserID    string
	ChatID    int64
	Name      string
	BotToken  string // encrypted at rest
	IsActive  bool
	CreatedAt time.Time
}

func NewDestinationChannel(userID string, chatID int64, name, encryptedToken string) (*DestinationChannel, error) {
	if userID == "" || chatID == 0 || encryptedToken == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &DestinationChannel{
		ID:        uuid.NewString(),
		UserID:    userID,
		ChatID:    chatID,
		Name:      name,
		BotToken:  encryptedToken,
		IsActive:  true,
		CreatedAt: time.Now(),
	}, nil
}
