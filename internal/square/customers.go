package square

import (
	"context"
	"net/http"
	"strings"
)

// ResolveCustomer finds or creates the remote customer record for an email
// address and returns its id. On a hit the stored name is refreshed with a
// best-effort update; a failed refresh never fails resolution since the
// existing id is still usable.
func (c *Client) ResolveCustomer(ctx context.Context, email, givenName, familyName string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", NewValidationError("customer email is required")
	}

	existing, err := c.searchCustomerByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if existing != nil {
		c.refreshCustomer(ctx, existing.ID, email, givenName, familyName)
		return existing.ID, nil
	}

	var created customerEnvelope
	err = c.call(ctx, http.MethodPost, "/v2/customers", createCustomerRequest{
		EmailAddress: email,
		GivenName:    strings.TrimSpace(givenName),
		FamilyName:   strings.TrimSpace(familyName),
	}, &created)
	if err != nil {
		return "", err
	}
	c.logger(ctx, "square.customer.created", map[string]any{
		"customer_id": created.Customer.ID,
	})
	return created.Customer.ID, nil
}

func (c *Client) searchCustomerByEmail(ctx context.Context, email string) (*Customer, error) {
	var resp customerSearchResponse
	err := c.call(ctx, http.MethodPost, "/v2/customers/search", customerSearchRequest{
		Query: customerSearchQuery{
			Filter: customerSearchFilter{EmailAddress: exactMatch{Exact: email}},
		},
		Limit: 1,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if len(resp.Customers) == 0 {
		return nil, nil
	}
	return &resp.Customers[0], nil
}

// refreshCustomer keeps the remote name and email current. Best effort only.
func (c *Client) refreshCustomer(ctx context.Context, customerID, email, givenName, familyName string) {
	err := c.call(ctx, http.MethodPut, "/v2/customers/"+customerID, createCustomerRequest{
		EmailAddress: email,
		GivenName:    strings.TrimSpace(givenName),
		FamilyName:   strings.TrimSpace(familyName),
	}, nil)
	if err != nil {
		c.logger(ctx, "square.customer.refresh_failed", map[string]any{
			"customer_id": customerID,
			"error":       err.Error(),
		})
	}
}
