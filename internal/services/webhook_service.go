package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/westroxburyframing/ops-api/internal/domain"
	"github.com/westroxburyframing/ops-api/internal/repositories"
	"github.com/westroxburyframing/ops-api/internal/square"
)

// WebhookServiceDeps bundles collaborators for the webhook event handler.
type WebhookServiceDeps struct {
	Gateway    SquareGateway
	Orders     repositories.OrderRepository
	Activities repositories.ActivityRepository
	Notifier   Notifier
	Logger     *zap.Logger
	Clock      func() time.Time
}

type webhookService struct {
	gateway    SquareGateway
	orders     repositories.OrderRepository
	activities repositories.ActivityRepository
	notifier   Notifier
	logger     *zap.Logger
	clock      func() time.Time
}

// NewWebhookService constructs the webhook event handler.
func NewWebhookService(deps WebhookServiceDeps) (WebhookService, error) {
	if deps.Gateway == nil {
		return nil, errors.New("webhook service: gateway is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("webhook service: order repository is required")
	}
	if deps.Activities == nil {
		return nil, errors.New("webhook service: activity repository is required")
	}
	if deps.Notifier == nil {
		return nil, errors.New("webhook service: notifier is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &webhookService{
		gateway:    deps.Gateway,
		orders:     deps.Orders,
		activities: deps.Activities,
		notifier:   deps.Notifier,
		logger:     logger,
		clock: func() time.Time {
			return clock().UTC()
		},
	}, nil
}

// HandlePaymentEvent applies a payment-settlement notification. The payload
// is never trusted: state is re-derived from a fresh remote fetch, so
// redelivered events converge on the same local state. Business-logic misses
// return a non-handled outcome, never an error, so the sender does not retry.
func (s *webhookService) HandlePaymentEvent(ctx context.Context, invoiceID string) (WebhookOutcome, error) {
	if strings.TrimSpace(invoiceID) == "" {
		return s.miss(ctx, "event carried no invoice id"), nil
	}

	invoice, err := s.gateway.GetInvoice(ctx, invoiceID)
	if err != nil {
		var notFound *square.NotFoundError
		if errors.As(err, &notFound) {
			return s.miss(ctx, fmt.Sprintf("invoice %s not found remotely", invoiceID)), nil
		}
		return WebhookOutcome{}, err
	}
	if strings.TrimSpace(invoice.InvoiceNumber) == "" {
		return s.miss(ctx, fmt.Sprintf("invoice %s has no invoice number", invoiceID)), nil
	}

	orderNumber, _ := domain.OrderNumberFromInvoiceNumber(invoice.InvoiceNumber)
	order, err := s.orders.FindByNumber(ctx, orderNumber)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return s.miss(ctx, fmt.Sprintf("no local order for %s", orderNumber)), nil
		}
		return WebhookOutcome{}, err
	}

	changed := order.RemoteInvoiceStatus != invoice.Status
	order.RemoteInvoiceStatus = invoice.Status
	if invoice.PublicURL != "" {
		order.RemoteInvoiceURL = invoice.PublicURL
	}
	order.UpdatedAt = s.clock()
	if err := s.orders.Update(ctx, order); err != nil {
		return WebhookOutcome{}, err
	}

	amount := settledAmountCents(invoice, order.TotalCents)
	formatted := domain.FormatCents(amount)

	// Only a genuine status change appends activity and notifies, so an
	// at-least-once redelivery of the same event stays a no-op.
	if changed {
		activity := domain.Activity{
			OrderID:   order.ID,
			Type:      domain.ActivityPaymentReceived,
			Message:   fmt.Sprintf("Payment received on invoice %s: %s", invoice.InvoiceNumber, formatted),
			Actor:     "square-webhook",
			CreatedAt: s.clock(),
		}
		if err := s.activities.Append(ctx, activity); err != nil {
			s.logger.Warn("activity append failed",
				zap.String("order_id", order.ID),
				zap.Error(err))
		}
		if err := s.notifier.NotifyInvoicePaid(ctx, order.OrderNumber, invoice.InvoiceNumber, formatted, order.CustomerName()); err != nil {
			s.logger.Warn("invoice paid notification failed",
				zap.String("order_id", order.ID),
				zap.Error(err))
		}
	}

	return WebhookOutcome{
		Handled:     true,
		OrderNumber: order.OrderNumber,
		Status:      invoice.Status,
	}, nil
}

func (s *webhookService) miss(ctx context.Context, reason string) WebhookOutcome {
	s.logger.Info("webhook event ignored", zap.String("reason", reason))
	return WebhookOutcome{Handled: false, Reason: reason}
}

// settledAmountCents derives the settled amount from the invoice's payment
// requests: explicitly requested amounts first, percentage-based requests
// against the order total next, the full order total as the last resort.
func settledAmountCents(invoice *square.Invoice, orderTotalCents int64) int64 {
	var total int64
	for _, pr := range invoice.PaymentRequests {
		switch {
		case pr.FixedAmountRequestedMoney != nil:
			total += pr.FixedAmountRequestedMoney.Amount
		case pr.ComputedAmountMoney != nil:
			total += pr.ComputedAmountMoney.Amount
		case pr.PercentageRequested != "":
			if pct, err := strconv.ParseFloat(pr.PercentageRequested, 64); err == nil && pct > 0 {
				total += int64(float64(orderTotalCents) * pct / 100)
			}
		}
	}
	if total <= 0 {
		return orderTotalCents
	}
	return total
}
