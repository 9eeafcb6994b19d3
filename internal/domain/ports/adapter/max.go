// File: internal/domain/ports/adapter/max.go
package adapter

import (
	"context"
	"fmt"
)

// GatewayError wraps a failed destination-API call. It is a terminal outcome
// for the affected forward attempt; callers never retry it.
type GatewayError struct {
	StatusCode  int // 0 when the request never reached the provider
	Description string
}

func (e *GatewayError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("max api error: %s", e.Description)
	}
	return fmt.Sprintf("max api error: status %d: %s", e.StatusCode, e.Description)
}

// DestinationAPI is the Max-side port. Credentials are plaintext bot tokens,
// decrypted by the caller just before the call and never persisted.
type DestinationAPI interface {
	// SendText posts a text message and returns the provider message id.
	SendText(ctx context.Context, token string, chatID int64, text string) (string, error)
	// SendPhoto uploads the binary and sends a message referencing the
	// uploaded asset. If the upload succeeds but the send fails, the whole
	// operation is reported as failed.
	SendPhoto(ctx context.Context, token string, chatID int64, photo []byte, caption string) (string, error)
}
