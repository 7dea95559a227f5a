package square

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// CreatePaymentInput describes a server-side payment record against the
// configured location. Card-present capture happens on the Square terminal;
// this call records the settled amount.
type CreatePaymentInput struct {
	AmountCents int64
	Currency    string
	Note        string
	// SourceID is the payment source token. Left empty for manual records.
	SourceID string
}

// Payment is the remote payment record returned by the payments endpoint.
type Payment struct {
	ID          string `json:"id"`
	Status      string `json:"status,omitempty"`
	ReceiptURL  string `json:"receipt_url,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
	AmountMoney Money  `json:"amount_money"`
}

// CreatePayment records a payment for the configured location. The
// idempotency key is generated fresh per logical call and replayed
// byte-identical across transport retries.
func (c *Client) CreatePayment(ctx context.Context, input CreatePaymentInput) (*Payment, error) {
	if input.AmountCents < 1 {
		return nil, NewValidationError("payment amount must be at least 1 cent")
	}
	currency := input.Currency
	if currency == "" {
		currency = "USD"
	}

	var resp paymentEnvelope
	err := c.call(ctx, http.MethodPost, "/v2/payments", createPaymentRequest{
		IdempotencyKey: uuid.NewString(),
		AmountMoney:    Money{Amount: input.AmountCents, Currency: currency},
		Note:           strings.TrimSpace(input.Note),
		LocationID:     c.locationID,
		SourceID:       strings.TrimSpace(input.SourceID),
	}, &resp)
	if err != nil {
		return nil, err
	}

	c.logger(ctx, "square.payment.created", map[string]any{
		"payment_id": resp.Payment.ID,
		"status":     resp.Payment.Status,
		"amount":     input.AmountCents,
	})
	payment := resp.Payment
	return &payment, nil
}
