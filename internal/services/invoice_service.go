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

const (
	invoiceTitle   = "West Roxbury Framing"
	invoiceMessage = "Thank you for your order. You can pay your invoice securely online."
)

// InvoiceServiceDeps bundles collaborators for the invoice service.
type InvoiceServiceDeps struct {
	Gateway    SquareGateway
	Orders     repositories.OrderRepository
	Activities repositories.ActivityRepository
	Logger     *zap.Logger
	Clock      func() time.Time
}

type invoiceService struct {
	gateway    SquareGateway
	orders     repositories.OrderRepository
	activities repositories.ActivityRepository
	logger     *zap.Logger
	clock      func() time.Time
}

// NewInvoiceService constructs the invoice lifecycle service.
func NewInvoiceService(deps InvoiceServiceDeps) (InvoiceService, error) {
	if deps.Gateway == nil {
		return nil, errors.New("invoice service: gateway is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("invoice service: order repository is required")
	}
	if deps.Activities == nil {
		return nil, errors.New("invoice service: activity repository is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &invoiceService{
		gateway:    deps.Gateway,
		orders:     deps.Orders,
		activities: deps.Activities,
		logger:     logger,
		clock: func() time.Time {
			return clock().UTC()
		},
	}, nil
}

// SendInvoice creates and publishes the remote invoice for an order. Sending
// the same (order, kind) twice returns the existing invoice unchanged.
func (s *invoiceService) SendInvoice(ctx context.Context, orderID string, kind domain.InvoiceKind, depositPercent int, actor string) (square.InvoiceResult, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return square.InvoiceResult{}, err
	}
	if err := order.ValidateForInvoicing(); err != nil {
		return square.InvoiceResult{}, square.NewValidationError(err.Error())
	}

	result, err := s.gateway.CreateAndSendInvoice(ctx, square.CreateInvoiceInput{
		InvoiceNumber:  order.InvoiceNumber(kind),
		OrderReference: order.OrderNumber,
		Title:          invoiceTitle,
		Description:    invoiceMessage,
		CustomerEmail:  order.CustomerEmail,
		GivenName:      order.CustomerGivenName,
		FamilyName:     order.CustomerFamilyName,
		Lines:          invoiceLines(order),
		TotalCents:     order.TotalCents,
		Currency:       order.Currency,
		Kind:           string(kind),
		DepositPercent: depositPercent,
	})
	if err != nil {
		return square.InvoiceResult{}, err
	}

	// Persisting the linkage is best effort; the invoice is already out.
	order.RemoteInvoiceID = result.InvoiceID
	order.RemoteInvoiceURL = result.PublicURL
	order.RemoteInvoiceStatus = result.Status
	order.UpdatedAt = s.clock()
	if err := s.orders.Update(ctx, order); err != nil {
		s.logger.Warn("invoice sent but order linkage update failed",
			zap.String("order_id", order.ID),
			zap.String("invoice_id", result.InvoiceID),
			zap.Error(err))
	}

	if !result.AlreadyExists {
		s.appendActivity(ctx, domain.Activity{
			OrderID: order.ID,
			Type:    domain.ActivityInvoiceSent,
			Message: fmt.Sprintf("Sent %s invoice %s for %s", kind, result.InvoiceNumber, domain.FormatCents(order.TotalCents)),
			Actor:   actor,
		})
	}
	if result.Warning != "" {
		s.logger.Warn("invoice published with delivery warning",
			zap.String("order_id", order.ID),
			zap.String("invoice_id", result.InvoiceID),
			zap.String("warning", result.Warning))
	}
	return result, nil
}

// DuplicateInvoice rebuilds an order's existing invoice under a new
// timestamped number. The order keeps its original linkage.
func (s *invoiceService) DuplicateInvoice(ctx context.Context, orderID, invoiceID string) (square.InvoiceResult, error) {
	if strings.TrimSpace(invoiceID) == "" {
		return square.InvoiceResult{}, square.NewValidationError("invoice id is required")
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return square.InvoiceResult{}, err
	}

	result, err := s.gateway.DuplicateInvoice(ctx, invoiceID)
	if err != nil {
		return square.InvoiceResult{}, err
	}

	s.appendActivity(ctx, domain.Activity{
		OrderID: order.ID,
		Type:    domain.ActivityInvoiceSent,
		Message: fmt.Sprintf("Duplicated invoice as %s", result.InvoiceNumber),
	})
	return result, nil
}

func (s *invoiceService) appendActivity(ctx context.Context, activity domain.Activity) {
	activity.CreatedAt = s.clock()
	if err := s.activities.Append(ctx, activity); err != nil {
		s.logger.Warn("activity append failed",
			zap.String("order_id", activity.OrderID),
			zap.String("type", string(activity.Type)),
			zap.Error(err))
	}
}

func invoiceLines(order domain.Order) []square.InvoiceLine {
	if len(order.Items) == 0 {
		return []square.InvoiceLine{{
			Name:           "Custom framing",
			Quantity:       1,
			UnitPriceCents: order.TotalCents,
		}}
	}
	lines := make([]square.InvoiceLine, 0, len(order.Items))
	for _, item := range order.Items {
		name := strings.TrimSpace(item.Name)
		if name == "" {
			name = "Line item"
		}
		lines = append(lines, square.InvoiceLine{
			Name:           name,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
		})
	}
	return lines
}
