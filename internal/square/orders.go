package square

import (
	"context"
	"net/http"
	"strings"
)

// GetRemoteOrder fetches the remote order backing an invoice, including its
// settled tenders. Never cached; every read re-fetches remote truth.
func (c *Client) GetRemoteOrder(ctx context.Context, orderID string) (*RemoteOrder, error) {
	id := strings.TrimSpace(orderID)
	if id == "" {
		return nil, NewValidationError("remote order id is required")
	}
	var resp orderEnvelope
	if err := c.call(ctx, http.MethodGet, "/v2/orders/"+id, nil, &resp); err != nil {
		return nil, mapNotFound(err, "order", id)
	}
	return &resp.Order, nil
}
