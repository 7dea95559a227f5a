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
)

// StatusServiceDeps bundles collaborators for the order status service.
type StatusServiceDeps struct {
	Orders     repositories.OrderRepository
	Activities repositories.ActivityRepository
	Notifier   Notifier
	Logger     *zap.Logger
	Clock      func() time.Time
}

type statusService struct {
	orders     repositories.OrderRepository
	activities repositories.ActivityRepository
	notifier   Notifier
	logger     *zap.Logger
	clock      func() time.Time
}

// NewStatusService constructs the order lifecycle service.
func NewStatusService(deps StatusServiceDeps) (StatusService, error) {
	if deps.Orders == nil {
		return nil, errors.New("status service: order repository is required")
	}
	if deps.Activities == nil {
		return nil, errors.New("status service: activity repository is required")
	}
	if deps.Notifier == nil {
		return nil, errors.New("status service: notifier is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &statusService{
		orders:     deps.Orders,
		activities: deps.Activities,
		notifier:   deps.Notifier,
		logger:     logger,
		clock: func() time.Time {
			return clock().UTC()
		},
	}, nil
}

// SetStatus validates and applies a lifecycle transition, records it in the
// activity log, and notifies the customer on transition into ready_for_pickup.
func (s *statusService) SetStatus(ctx context.Context, orderID string, next domain.OrderStatus, actor string) (domain.Order, error) {
	if !next.IsValid() {
		return domain.Order{}, &domain.InvalidStatusError{Status: string(next)}
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}

	prev := order.Status
	if prev == next {
		return order, nil
	}

	order.Status = next
	order.UpdatedAt = s.clock()
	if err := s.orders.Update(ctx, order); err != nil {
		return domain.Order{}, err
	}

	activity := domain.Activity{
		OrderID:   order.ID,
		Type:      domain.ActivityStatusChange,
		Message:   fmt.Sprintf("status_change: %s → %s", prev, next),
		Actor:     actor,
		CreatedAt: s.clock(),
	}
	if err := s.activities.Append(ctx, activity); err != nil {
		s.logger.Warn("activity append failed",
			zap.String("order_id", order.ID),
			zap.Error(err))
	}

	// Absence of a customer email skips the notification; it is not an error.
	if next == domain.OrderStatusReadyForPickup && strings.TrimSpace(order.CustomerEmail) != "" {
		if err := s.notifier.NotifyReadyForPickup(ctx, order.CustomerEmail, order.OrderNumber, order.CustomerName()); err != nil {
			s.logger.Warn("ready-for-pickup notification failed",
				zap.String("order_id", order.ID),
				zap.Error(err))
		}
	}
	return order, nil
}

// Advance moves the order to the next forward state. A no-op at the end of
// the flow or for cancelled orders.
func (s *statusService) Advance(ctx context.Context, orderID string, actor string) (domain.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	next := order.Status.Next()
	if next == order.Status {
		return order, nil
	}
	return s.SetStatus(ctx, orderID, next, actor)
}

// Revert moves the order to the previous forward state. A no-op at the start
// of the flow or for cancelled orders.
func (s *statusService) Revert(ctx context.Context, orderID string, actor string) (domain.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	prev := order.Status.Previous()
	if prev == order.Status {
		return order, nil
	}
	return s.SetStatus(ctx, orderID, prev, actor)
}
