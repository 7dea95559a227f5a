package services

import (
	"context"
	"errors"
	"sync"

	"github.com/westroxburyframing/ops-api/internal/domain"
	"github.com/westroxburyframing/ops-api/internal/square"
)

type stubGateway struct {
	createAndSendFn func(ctx context.Context, input square.CreateInvoiceInput) (square.InvoiceResult, error)
	duplicateFn     func(ctx context.Context, id string) (square.InvoiceResult, error)
	getInvoiceFn    func(ctx context.Context, id string) (*square.Invoice, error)
	searchFn        func(ctx context.Context, number string) (*square.Invoice, error)
	getOrderFn      func(ctx context.Context, id string) (*square.RemoteOrder, error)
	refundFn        func(ctx context.Context, input square.RefundInput) error
	createPaymentFn func(ctx context.Context, input square.CreatePaymentInput) (*square.Payment, error)

	refundCalls  []square.RefundInput
	paymentCalls []square.CreatePaymentInput
}

func (g *stubGateway) CreateAndSendInvoice(ctx context.Context, input square.CreateInvoiceInput) (square.InvoiceResult, error) {
	if g.createAndSendFn == nil {
		return square.InvoiceResult{}, errors.New("unexpected CreateAndSendInvoice call")
	}
	return g.createAndSendFn(ctx, input)
}

func (g *stubGateway) DuplicateInvoice(ctx context.Context, id string) (square.InvoiceResult, error) {
	if g.duplicateFn == nil {
		return square.InvoiceResult{}, errors.New("unexpected DuplicateInvoice call")
	}
	return g.duplicateFn(ctx, id)
}

func (g *stubGateway) GetInvoice(ctx context.Context, id string) (*square.Invoice, error) {
	if g.getInvoiceFn == nil {
		return nil, errors.New("unexpected GetInvoice call")
	}
	return g.getInvoiceFn(ctx, id)
}

func (g *stubGateway) SearchInvoiceByNumber(ctx context.Context, number string) (*square.Invoice, error) {
	if g.searchFn == nil {
		return nil, errors.New("unexpected SearchInvoiceByNumber call")
	}
	return g.searchFn(ctx, number)
}

func (g *stubGateway) GetRemoteOrder(ctx context.Context, id string) (*square.RemoteOrder, error) {
	if g.getOrderFn == nil {
		return nil, errors.New("unexpected GetRemoteOrder call")
	}
	return g.getOrderFn(ctx, id)
}

func (g *stubGateway) RefundPayment(ctx context.Context, input square.RefundInput) error {
	g.refundCalls = append(g.refundCalls, input)
	if g.refundFn == nil {
		return nil
	}
	return g.refundFn(ctx, input)
}

func (g *stubGateway) CreatePayment(ctx context.Context, input square.CreatePaymentInput) (*square.Payment, error) {
	g.paymentCalls = append(g.paymentCalls, input)
	if g.createPaymentFn == nil {
		return nil, errors.New("unexpected CreatePayment call")
	}
	return g.createPaymentFn(ctx, input)
}

// memoryOrders is an in-memory order repository.
type memoryOrders struct {
	mu     sync.Mutex
	byID   map[string]domain.Order
	failed error
}

func newMemoryOrders(orders ...domain.Order) *memoryOrders {
	repo := &memoryOrders{byID: map[string]domain.Order{}}
	for _, o := range orders {
		repo.byID[o.ID] = o
	}
	return repo
}

type stubNotFoundError struct{ msg string }

func (e *stubNotFoundError) Error() string       { return e.msg }
func (e *stubNotFoundError) IsNotFound() bool    { return true }
func (e *stubNotFoundError) IsConflict() bool    { return false }
func (e *stubNotFoundError) IsUnavailable() bool { return false }

func (r *memoryOrders) Insert(_ context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[order.ID] = order
	return nil
}

func (r *memoryOrders) Update(_ context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failed != nil {
		return r.failed
	}
	r.byID[order.ID] = order
	return nil
}

func (r *memoryOrders) FindByID(_ context.Context, orderID string) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.byID[orderID]
	if !ok {
		return domain.Order{}, &stubNotFoundError{msg: "order " + orderID + " not found"}
	}
	return order, nil
}

func (r *memoryOrders) FindByNumber(_ context.Context, orderNumber string) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, order := range r.byID {
		if order.OrderNumber == orderNumber {
			return order, nil
		}
	}
	return domain.Order{}, &stubNotFoundError{msg: "order " + orderNumber + " not found"}
}

func (r *memoryOrders) ListLinked(_ context.Context) ([]domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var linked []domain.Order
	for _, order := range r.byID {
		if order.RemoteInvoiceID != "" {
			linked = append(linked, order)
		}
	}
	return linked, nil
}

func (r *memoryOrders) get(orderID string) domain.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byID[orderID]
}

// memoryActivities is an in-memory append-only activity log.
type memoryActivities struct {
	mu      sync.Mutex
	entries []domain.Activity
}

func (r *memoryActivities) Append(_ context.Context, activity domain.Activity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, activity)
	return nil
}

func (r *memoryActivities) List(_ context.Context, orderID string, _ int) ([]domain.Activity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Activity
	for _, entry := range r.entries {
		if entry.OrderID == orderID {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (r *memoryActivities) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// stubNotifier records notification calls.
type stubNotifier struct {
	mu          sync.Mutex
	pickups     []string
	paidNotices []string
	err         error
}

func (n *stubNotifier) NotifyReadyForPickup(_ context.Context, to, orderNumber, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pickups = append(n.pickups, to+":"+orderNumber)
	return n.err
}

func (n *stubNotifier) NotifyInvoicePaid(_ context.Context, orderNumber, invoiceNumber, _, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paidNotices = append(n.paidNotices, orderNumber+":"+invoiceNumber)
	return n.err
}
