package api

import (
	"context"
	"net/url"

	"github.com/thegoddo/ripple/internal/chat"
)

// Conversations fetches the full conversation set for the authenticated
// user. This is the directory's one-shot hydration source; live deltas
// arrive over the transport afterwards.
func (c *Client) Conversations(ctx context.Context) ([]chat.Conversation, error) {
	var resp struct {
		Data []chat.Conversation `json:"data"`
	}
	if err := c.get(ctx, "/conversations", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// CheckResult is the backend's verdict on a connect code.
type CheckResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// CheckConnectCode pre-validates a connect code before a conversation
// request is emitted over the transport.
func (c *Client) CheckConnectCode(ctx context.Context, connectCode string) (CheckResult, error) {
	var res CheckResult
	q := url.Values{"connectCode": {connectCode}}
	if err := c.get(ctx, "/conversations/check-connect-code", q, &res); err != nil {
		return CheckResult{}, err
	}
	return res, nil
}
