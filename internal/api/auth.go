package api

import (
	"context"

	"github.com/thegoddo/ripple/internal/chat"
)

// Me returns the authenticated identity for the configured token.
func (c *Client) Me(ctx context.Context) (chat.Identity, error) {
	var id chat.Identity
	if err := c.get(ctx, "/auth/me", nil, &id); err != nil {
		return chat.Identity{}, err
	}
	return id, nil
}

// Logout invalidates the session server-side. The caller is responsible
// for tearing down the transport afterwards.
func (c *Client) Logout(ctx context.Context) error {
	return c.post(ctx, "/auth/logout", nil, "", nil)
}
