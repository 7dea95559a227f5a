package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/westroxburyframing/ops-api/internal/domain"
	"github.com/westroxburyframing/ops-api/internal/repositories"
	"github.com/westroxburyframing/ops-api/internal/square"
)

// PaymentServiceDeps bundles collaborators for the payment recorder.
type PaymentServiceDeps struct {
	Gateway    SquareGateway
	Orders     repositories.OrderRepository
	Activities repositories.ActivityRepository
	Logger     *zap.Logger
	Clock      func() time.Time
}

type paymentService struct {
	gateway    SquareGateway
	orders     repositories.OrderRepository
	activities repositories.ActivityRepository
	logger     *zap.Logger
	clock      func() time.Time
}

// NewPaymentService constructs the payment recorder.
func NewPaymentService(deps PaymentServiceDeps) (PaymentService, error) {
	if deps.Gateway == nil {
		return nil, errors.New("payment service: gateway is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("payment service: order repository is required")
	}
	if deps.Activities == nil {
		return nil, errors.New("payment service: activity repository is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &paymentService{
		gateway:    deps.Gateway,
		orders:     deps.Orders,
		activities: deps.Activities,
		logger:     logger,
		clock: func() time.Time {
			return clock().UTC()
		},
	}, nil
}

// RecordPayment creates a remote payment for the order's full total and links
// it locally. Orders record at most one payment and the amount must match the
// stored total exactly; both guards run before any remote call.
func (s *paymentService) RecordPayment(ctx context.Context, orderID string, amountCents int64, actor string) (PaymentReceipt, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return PaymentReceipt{}, err
	}
	if order.RemotePaymentID != "" {
		return PaymentReceipt{}, &PaymentExistsError{OrderID: order.ID, PaymentID: order.RemotePaymentID}
	}
	if amountCents < 1 {
		return PaymentReceipt{}, square.NewValidationError("payment amount must be at least 1 cent")
	}
	if amountCents != order.TotalCents {
		return PaymentReceipt{}, &AmountMismatchError{ExpectedCents: order.TotalCents, GotCents: amountCents}
	}

	payment, err := s.gateway.CreatePayment(ctx, square.CreatePaymentInput{
		AmountCents: amountCents,
		Currency:    order.Currency,
		Note:        paymentNote(order),
	})
	if err != nil {
		return PaymentReceipt{}, err
	}

	paidAt := s.clock()
	if parsed, err := time.Parse(time.RFC3339, payment.CreatedAt); err == nil {
		paidAt = parsed.UTC()
	}

	order.RemotePaymentID = payment.ID
	order.PaymentReceiptURL = payment.ReceiptURL
	order.PaidAt = &paidAt
	order.UpdatedAt = s.clock()
	if err := s.orders.Update(ctx, order); err != nil {
		// The remote payment exists either way; surface the linkage failure.
		s.logger.Error("payment created but order linkage failed",
			zap.String("order_id", order.ID),
			zap.String("payment_id", payment.ID),
			zap.Error(err))
		return PaymentReceipt{}, fmt.Errorf("payment %s created but not linked: %w", payment.ID, err)
	}

	s.appendActivity(ctx, domain.Activity{
		OrderID: order.ID,
		Type:    domain.ActivityPaymentLinked,
		Message: fmt.Sprintf("Payment recorded: %s (%s)", payment.ID, domain.FormatCents(amountCents)),
		Actor:   actor,
	})

	return PaymentReceipt{
		PaymentID:  payment.ID,
		ReceiptURL: payment.ReceiptURL,
		Status:     payment.Status,
		PaidAt:     paidAt,
	}, nil
}

func paymentNote(order domain.Order) string {
	if len(order.Items) > 0 && order.Items[0].Name != "" {
		return fmt.Sprintf("%s - %s", order.OrderNumber, order.Items[0].Name)
	}
	return order.OrderNumber
}

func (s *paymentService) appendActivity(ctx context.Context, activity domain.Activity) {
	activity.CreatedAt = s.clock()
	if err := s.activities.Append(ctx, activity); err != nil {
		s.logger.Warn("activity append failed",
			zap.String("order_id", activity.OrderID),
			zap.String("type", string(activity.Type)),
			zap.Error(err))
	}
}
