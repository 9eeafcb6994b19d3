// File: internal/infra/adapters/max/client.go
package max

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"telegram-max-bridge/internal/domain/ports/adapter"
)

var _ adapter.DestinationAPI = (*Client)(nil)

// Client is the outbound gateway to the Max Bot API. Authentication and base
// URL live in one place; callers hand in the decrypted token per call and the
// token is never stored here.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *zerolog.Logger
}

// NewClient builds the gateway. The http.Client timeout is the hard ceiling
// for every provider call so a hung downstream cannot stall dispatch.
func NewClient(baseURL string, httpClient *http.Client, logger *zerolog.Logger) *Client {
	l := logger.With().Str("component", "MaxClient").Logger()
	return &Client{baseURL: baseURL, httpClient: httpClient, log: &l}
}

// sendMessageResponse is the subset of the provider reply we care about.
type sendMessageResponse struct {
	MessageID string `json:"message_id"`
}

func (c *Client) SendText(ctx context.Context, token string, chatID int64, text string) (string, error) {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return "", &adapter.GatewayError{Description: fmt.Sprintf("marshal body: %v", err)}
	}
	respBody, err := c.request(ctx, token, http.MethodPost, "/messages", chatID, nil, "application/json", body)
	if err != nil {
		return "", err
	}
	var resp sendMessageResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", &adapter.GatewayError{Description: fmt.Sprintf("unmarshal response: %v", err)}
	}
	c.log.Debug().Int64("chat_id", chatID).Str("message_id", resp.MessageID).Msg("text sent")
	return resp.MessageID, nil
}

func (c *Client) SendPhoto(ctx context.Context, token string, chatID int64, photo []byte, caption string) (string, error) {
	// Step 1: upload the binary. The provider hands back an opaque payload
	// that the message must reference verbatim.
	uploadBody, err := c.request(ctx, token, http.MethodPost, "/uploads", chatID, map[string]string{"type": "photo"}, "image/jpeg", photo)
	if err != nil {
		return "", err
	}
	var payload map[string]any
	if err := json.Unmarshal(uploadBody, &payload); err != nil {
		return "", &adapter.GatewayError{Description: fmt.Sprintf("unmarshal upload response: %v", err)}
	}

	// Step 2: send a message referencing the uploaded asset. A failure here
	// fails the whole operation; the orphaned upload is not retried.
	msg := map[string]any{
		"attachments": []map[string]any{{"type": "image", "payload": payload}},
	}
	if caption != "" {
		msg["text"] = caption
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return "", &adapter.GatewayError{Description: fmt.Sprintf("marshal body: %v", err)}
	}
	respBody, err := c.request(ctx, token, http.MethodPost, "/messages", chatID, nil, "application/json", body)
	if err != nil {
		return "", err
	}
	var resp sendMessageResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", &adapter.GatewayError{Description: fmt.Sprintf("unmarshal response: %v", err)}
	}
	c.log.Debug().Int64("chat_id", chatID).Str("message_id", resp.MessageID).Msg("photo sent")
	return resp.MessageID, nil
}

// request performs one authenticated call. Every failure mode comes back as
// *adapter.GatewayError so callers have a single terminal case to handle.
func (c *Client) request(ctx context.Context, token, method, path string, chatID int64, extraQuery map[string]string, contentType string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, &adapter.GatewayError{Description: fmt.Sprintf("build request: %v", err)}
	}
	q := req.URL.Query()
	q.Set("chat_id", strconv.FormatInt(chatID, 10))
	for k, v := range extraQuery {
		q.Set(k, v)
	}
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Authorization", token)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Timeouts and connection failures land here; status 0 marks "never
		// got a provider response".
		return nil, &adapter.GatewayError{Description: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &adapter.GatewayError{StatusCode: resp.StatusCode, Description: fmt.Sprintf("read response: %v", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &adapter.GatewayError{StatusCode: resp.StatusCode, Description: string(respBody)}
	}
	return respBody, nil
}
