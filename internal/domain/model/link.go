package model

import (
	"time"

	"telegram-max-bridge/internal/domain"

	"github.com/google/uuid"
)

// Link maps one SourceConnection to one DestinationChannel. A source may fan
// out to many links; each link keeps its own quota usage and post history.
type Link struct {
	ID            string
	UserID        string
	SourceID      string
	DestinationID string
	Name          string
	IsActive      bool
	CreatedAt     time.Time
}

// NewLink refuses to construct a link whose endpoints are not both owned by
// the requesting tenant. Callers must pass the already-loaded endpoints so
// the ownership check cannot be skipped.
func NewLink(userID string, src *SourceConnection, dst *DestinationChannel, name string) (*Link, error) {
	if userID == "" || src == nil || dst == nil {
		return nil, domain.ErrInvalidArgument
	}
	if src.UserID != userID || dst.UserID != userID {
		return nil, domain.ErrCrossTenantLink
	}
	return &Link{
		ID:            uuid.NewString(),
		UserID:        userID,
		SourceID:      src.ID,
		DestinationID: dst.ID,
		Name:          name,
		IsActive:      true,
		CreatedAt:     time.Now(),
	}, nil
}
