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

// ReconcileServiceDeps bundles collaborators for the reconciliation engine.
type ReconcileServiceDeps struct {
	Gateway    SquareGateway
	Orders     repositories.OrderRepository
	Activities repositories.ActivityRepository
	Logger     *zap.Logger
	Clock      func() time.Time
}

type reconcileService struct {
	gateway    SquareGateway
	orders     repositories.OrderRepository
	activities repositories.ActivityRepository
	logger     *zap.Logger
	clock      func() time.Time
}

// NewReconcileService constructs the reconciliation engine.
func NewReconcileService(deps ReconcileServiceDeps) (ReconcileService, error) {
	if deps.Gateway == nil {
		return nil, errors.New("reconcile service: gateway is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("reconcile service: order repository is required")
	}
	if deps.Activities == nil {
		return nil, errors.New("reconcile service: activity repository is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &reconcileService{
		gateway:    deps.Gateway,
		orders:     deps.Orders,
		activities: deps.Activities,
		logger:     logger,
		clock: func() time.Time {
			return clock().UTC()
		},
	}, nil
}

// SyncOne fetches the linked invoice's current remote status and writes it to
// the order, returning the new status.
func (s *reconcileService) SyncOne(ctx context.Context, orderID string, actor string) (string, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return "", err
	}
	status, _, err := s.pull(ctx, &order)
	if err != nil {
		return "", err
	}
	s.appendActivity(ctx, domain.Activity{
		OrderID: order.ID,
		Type:    domain.ActivityInvoiceSynced,
		Message: fmt.Sprintf("Invoice status synced: %s", status),
		Actor:   actor,
	})
	return status, nil
}

// SyncAll reconciles every order with a linked invoice. Individual failures
// are collected without aborting the batch.
func (s *reconcileService) SyncAll(ctx context.Context) (SyncReport, error) {
	orders, err := s.orders.ListLinked(ctx)
	if err != nil {
		return SyncReport{}, err
	}

	report := SyncReport{Total: len(orders)}
	for i := range orders {
		order := orders[i]
		_, changed, err := s.pull(ctx, &order)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", order.OrderNumber, err))
			continue
		}
		report.Synced++
		if changed {
			report.Updated++
		}
	}
	return report, nil
}

// MarkUnpaid manually overrides a paid invoice status back to UNPAID.
func (s *reconcileService) MarkUnpaid(ctx context.Context, orderID string, actor string) error {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return err
	}
	status := strings.ToUpper(order.RemoteInvoiceStatus)
	if status != "PAID" && status != "PARTIALLY_PAID" {
		return square.NewValidationError("order invoice is not marked as paid, nothing to change")
	}

	order.RemoteInvoiceStatus = "UNPAID"
	order.UpdatedAt = s.clock()
	if err := s.orders.Update(ctx, order); err != nil {
		return err
	}
	s.appendActivity(ctx, domain.Activity{
		OrderID: order.ID,
		Type:    domain.ActivityInvoiceSynced,
		Message: "Invoice marked as unpaid (manual override)",
		Actor:   actor,
	})
	return nil
}

// pull fetches remote status for the order's linked invoice and persists it.
// Reports whether the stored status changed.
func (s *reconcileService) pull(ctx context.Context, order *domain.Order) (string, bool, error) {
	if strings.TrimSpace(order.RemoteInvoiceID) == "" {
		return "", false, &NotLinkedError{OrderID: order.ID}
	}
	invoice, err := s.gateway.GetInvoice(ctx, order.RemoteInvoiceID)
	if err != nil {
		return "", false, err
	}

	status := invoice.Status
	changed := order.RemoteInvoiceStatus != status
	order.RemoteInvoiceStatus = status
	if invoice.PublicURL != "" {
		order.RemoteInvoiceURL = invoice.PublicURL
	}
	order.UpdatedAt = s.clock()
	if err := s.orders.Update(ctx, *order); err != nil {
		return "", false, err
	}
	return status, changed, nil
}

func (s *reconcileService) appendActivity(ctx context.Context, activity domain.Activity) {
	activity.CreatedAt = s.clock()
	if err := s.activities.Append(ctx, activity); err != nil {
		s.logger.Warn("activity append failed",
			zap.String("order_id", activity.OrderID),
			zap.String("type", string(activity.Type)),
			zap.Error(err))
	}
}
