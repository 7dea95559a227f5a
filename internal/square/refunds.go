package square

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// Square caps refund idempotency keys at 45 characters.
const refundIdempotencyKeyMax = 45

// RefundInput identifies one tender payment to refund in full.
type RefundInput struct {
	PaymentID   string
	AmountCents int64
	Currency    string
	Reason      string
}

// RefundPayment issues a refund against a single settled tender. Each call
// carries a fresh single-use idempotency key.
func (c *Client) RefundPayment(ctx context.Context, input RefundInput) error {
	paymentID := strings.TrimSpace(input.PaymentID)
	if paymentID == "" {
		return NewValidationError("payment id is required")
	}
	if input.AmountCents < 1 {
		return NewValidationError("refund amount must be at least 1 cent")
	}
	currency := input.Currency
	if currency == "" {
		currency = "USD"
	}

	var resp refundEnvelope
	err := c.call(ctx, http.MethodPost, "/v2/refunds", createRefundRequest{
		IdempotencyKey: refundIdempotencyKey(),
		PaymentID:      paymentID,
		AmountMoney:    Money{Amount: input.AmountCents, Currency: currency},
		Reason:         input.Reason,
	}, &resp)
	if err != nil {
		return err
	}
	c.logger(ctx, "square.refund.created", map[string]any{
		"payment_id": paymentID,
		"refund_id":  resp.Refund.ID,
		"status":     resp.Refund.Status,
		"amount":     input.AmountCents,
	})
	return nil
}

func refundIdempotencyKey() string {
	key := uuid.NewString()
	if len(key) > refundIdempotencyKeyMax {
		key = key[:refundIdempotencyKeyMax]
	}
	return key
}
