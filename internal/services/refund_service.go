package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/westroxburyframing/ops-api/internal/domain"
	"github.com/westroxburyframing/ops-api/internal/repositories"
	"github.com/westroxburyframing/ops-api/internal/square"
)

// RefundServiceDeps bundles collaborators for the refund orchestrator.
type RefundServiceDeps struct {
	Gateway    SquareGateway
	Orders     repositories.OrderRepository
	Activities repositories.ActivityRepository
	Logger     *zap.Logger
	Clock      func() time.Time
}

type refundService struct {
	gateway    SquareGateway
	orders     repositories.OrderRepository
	activities repositories.ActivityRepository
	logger     *zap.Logger
	clock      func() time.Time
}

// NewRefundService constructs the refund orchestrator.
func NewRefundService(deps RefundServiceDeps) (RefundService, error) {
	if deps.Gateway == nil {
		return nil, errors.New("refund service: gateway is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("refund service: order repository is required")
	}
	if deps.Activities == nil {
		return nil, errors.New("refund service: activity repository is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &refundService{
		gateway:    deps.Gateway,
		orders:     deps.Orders,
		activities: deps.Activities,
		logger:     logger,
		clock: func() time.Time {
			return clock().UTC()
		},
	}, nil
}

// Refund resolves the order's invoice for the given kind, validates it is
// refundable, and refunds every settled tender in full. Individual tender
// failures are collected; only a total failure aborts.
func (s *refundService) Refund(ctx context.Context, orderID string, kind domain.InvoiceKind, actor string) (RefundReport, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return RefundReport{}, err
	}
	if strings.TrimSpace(order.OrderNumber) == "" {
		return RefundReport{}, square.NewValidationError("order has no order number")
	}

	invoiceNumber := order.InvoiceNumber(kind)
	report := RefundReport{Kind: kind, InvoiceNumber: invoiceNumber}

	invoice, err := s.gateway.SearchInvoiceByNumber(ctx, invoiceNumber)
	if err != nil {
		return report, err
	}
	if invoice == nil {
		return report, &square.NotFoundError{Resource: "invoice", Key: invoiceNumber}
	}

	status := strings.ToUpper(invoice.Status)
	if status == "PARTIALLY_PAID" {
		return report, square.NewValidationError("cannot refund a partially paid invoice; cancel it remotely first")
	}
	if status != "PAID" && status != "CANCELED" && status != "FAILED" {
		return report, square.NewValidationError(fmt.Sprintf("invoice is not in a refundable state (status: %s)", status))
	}
	if invoice.OrderID == "" {
		return report, square.NewValidationError("invoice has no associated remote order")
	}

	remoteOrder, err := s.gateway.GetRemoteOrder(ctx, invoice.OrderID)
	if err != nil {
		return report, err
	}
	tenders := remoteOrder.Tenders
	if len(tenders) == 0 {
		return report, &square.NotFoundError{Resource: "payments for invoice", Key: invoiceNumber}
	}

	for _, tender := range tenders {
		paymentID := tender.ID
		if paymentID == "" {
			paymentID = tender.PaymentID
		}
		if paymentID == "" || tender.AmountMoney.Amount == 0 {
			continue
		}
		err := s.gateway.RefundPayment(ctx, square.RefundInput{
			PaymentID:   paymentID,
			AmountCents: tender.AmountMoney.Amount,
			Currency:    tender.AmountMoney.Currency,
			Reason:      fmt.Sprintf("Refund %s - %s", kind, order.OrderNumber),
		})
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("payment %s: %v", paymentID, err))
			continue
		}
		report.RefundedCount++
		report.TotalRefundedCents += tender.AmountMoney.Amount
	}

	if report.RefundedCount == 0 && len(report.Errors) > 0 {
		return report, fmt.Errorf("refund failed: %s", strings.Join(report.Errors, "; "))
	}

	s.appendActivity(ctx, domain.Activity{
		OrderID: order.ID,
		Type:    domain.ActivityRefund,
		Message: fmt.Sprintf("Refunded %s invoice: %s", kind, domain.FormatCents(report.TotalRefundedCents)),
		Actor:   actor,
	})

	// If we refunded the order's currently-linked invoice, reconcile the
	// stored status with what we just observed. Best effort.
	if order.RemoteInvoiceID == invoice.ID {
		order.RemoteInvoiceStatus = invoice.Status
		order.UpdatedAt = s.clock()
		if err := s.orders.Update(ctx, order); err != nil {
			s.logger.Warn("refund succeeded but order status update failed",
				zap.String("order_id", order.ID),
				zap.Error(err))
		}
	}
	return report, nil
}

func (s *refundService) appendActivity(ctx context.Context, activity domain.Activity) {
	activity.CreatedAt = s.clock()
	if err := s.activities.Append(ctx, activity); err != nil {
		s.logger.Warn("activity append failed",
			zap.String("order_id", activity.OrderID),
			zap.String("type", string(activity.Type)),
			zap.Error(err))
	}
}
