package model

import (
	"crypto/rand"
	"time"

	"telegram-max-bridge/internal/domain"

	"github.com/oklog/ulid/v2"
)

// ContentType classifies what a channel post carried.
type ContentType string

const (
	ContentText        ContentType = "text"
	ContentPhoto       ContentType = "photo"
	ContentVideo       ContentType = "video"
	ContentAudio       ContentType = "audio"
	ContentDocument    ContentType = "document"
	ContentUnsupported ContentType = "unsupported"
)

// Outcome is the terminal result of one forwarding attempt.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
)

// PostRecord is an immutable ledger row for one forwarding attempt. It is
// created once and only ever deleted by retention cleanup.
// IDs are ULIDs so they sort by creation time.
type PostRecord struct {
	ID              string
	LinkID          string
	SourceMessageID int64  // 0 when the failure happened before a message was seen
	DestMessageID   string // empty on failure
	ContentType     ContentType
	Outcome         Outcome
	ErrorMessage    string // set only when Outcome == OutcomeFailed
	CreatedAt       time.Time
}

func NewPostRecord(linkID string, sourceMsgID int64, destMsgID string, ct ContentType, outcome Outcome, errMsg string) (*PostRecord, error) {
	if linkID == "" || ct == "" {
		return nil, domain.ErrInvalidArgument
	}
	if outcome != OutcomeSuccess && outcome != OutcomeFailed {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now().UTC()
	return &PostRecord{
		ID:              ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
		LinkID:          linkID,
		SourceMessageID: sourceMsgID,
		DestMessageID:   destMsgID,
		ContentType:     ct,
		Outcome:         outcome,
		ErrorMessage:    errMsg,
		CreatedAt:       now,
	}, nil
}
