package api

import (
	"context"
	"net/url"

	"github.com/thegoddo/ripple/internal/chat"
)

// Messages fetches one page of a conversation's history. An empty cursor
// requests the most recent page; the returned page's NextCursor is the
// boundary for the next older one.
func (c *Client) Messages(ctx context.Context, conversationID, cursor string) (chat.Page, error) {
	q := url.Values{}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	var page chat.Page
	if err := c.get(ctx, "/conversations/"+conversationID+"/messages", q, &page); err != nil {
		return chat.Page{}, err
	}
	return page, nil
}
