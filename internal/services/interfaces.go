package services

import (
	"context"
	"time"

	"github.com/westroxburyframing/ops-api/internal/domain"
	"github.com/westroxburyframing/ops-api/internal/square"
)

// SquareGateway is the slice of the transport client the services consume.
// *square.Client satisfies it; tests substitute stubs.
type SquareGateway interface {
	CreateAndSendInvoice(ctx context.Context, input square.CreateInvoiceInput) (square.InvoiceResult, error)
	DuplicateInvoice(ctx context.Context, existingInvoiceID string) (square.InvoiceResult, error)
	GetInvoice(ctx context.Context, invoiceID string) (*square.Invoice, error)
	SearchInvoiceByNumber(ctx context.Context, invoiceNumber string) (*square.Invoice, error)
	GetRemoteOrder(ctx context.Context, orderID string) (*square.RemoteOrder, error)
	RefundPayment(ctx context.Context, input square.RefundInput) error
	CreatePayment(ctx context.Context, input square.CreatePaymentInput) (*square.Payment, error)
}

// Notifier delivers transactional email side effects. Implementations are
// best effort; callers log failures but never fail the operation on them.
type Notifier interface {
	NotifyReadyForPickup(ctx context.Context, to, orderNumber, customerName string) error
	NotifyInvoicePaid(ctx context.Context, orderNumber, invoiceNumber, amount, customerName string) error
}

// InvoiceService creates, publishes, and duplicates remote invoices for orders.
type InvoiceService interface {
	SendInvoice(ctx context.Context, orderID string, kind domain.InvoiceKind, depositPercent int, actor string) (square.InvoiceResult, error)
	DuplicateInvoice(ctx context.Context, orderID, invoiceID string) (square.InvoiceResult, error)
}

// ReconcileService pulls authoritative remote invoice status and writes it back
// to local orders.
type ReconcileService interface {
	SyncOne(ctx context.Context, orderID string, actor string) (string, error)
	SyncAll(ctx context.Context) (SyncReport, error)
	MarkUnpaid(ctx context.Context, orderID string, actor string) error
}

// SyncReport summarises a batch reconciliation pass.
type SyncReport struct {
	Total   int
	Synced  int
	Updated int
	Errors  []string
}

// RefundService walks an invoice's settled tenders and refunds each in full.
type RefundService interface {
	Refund(ctx context.Context, orderID string, kind domain.InvoiceKind, actor string) (RefundReport, error)
}

// RefundReport summarises a refund pass over an order's tenders.
type RefundReport struct {
	Kind               domain.InvoiceKind
	InvoiceNumber      string
	RefundedCount      int
	TotalRefundedCents int64
	Errors             []string
}

// PaymentService records card-present settlements against local orders.
// Capture happens on the terminal; this path records the result.
type PaymentService interface {
	RecordPayment(ctx context.Context, orderID string, amountCents int64, actor string) (PaymentReceipt, error)
}

// PaymentReceipt describes the recorded remote payment.
type PaymentReceipt struct {
	PaymentID  string
	ReceiptURL string
	Status     string
	PaidAt     time.Time
}

// StatusService validates and applies order lifecycle transitions.
type StatusService interface {
	SetStatus(ctx context.Context, orderID string, next domain.OrderStatus, actor string) (domain.Order, error)
	Advance(ctx context.Context, orderID string, actor string) (domain.Order, error)
	Revert(ctx context.Context, orderID string, actor string) (domain.Order, error)
}

// WebhookService applies verified remote payment events to local orders.
type WebhookService interface {
	HandlePaymentEvent(ctx context.Context, invoiceID string) (WebhookOutcome, error)
}

// WebhookOutcome reports what a webhook event did. Business-logic misses set
// Handled false with a reason; they are not errors.
type WebhookOutcome struct {
	Handled     bool
	Reason      string
	OrderNumber string
	Status      string
}
