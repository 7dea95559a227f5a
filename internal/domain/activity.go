package domain

import "time"

// ActivityType labels the kind of event recorded against an order.
type ActivityType string

const (
	// ActivityStatusChange records a lifecycle transition.
	ActivityStatusChange ActivityType = "status_change"
	// ActivityInvoiceSent records that a remote invoice was created and published.
	ActivityInvoiceSent ActivityType = "invoice_sent"
	// ActivityInvoiceSynced records a manual reconciliation pull.
	ActivityInvoiceSynced ActivityType = "invoice_synced"
	// ActivityPaymentReceived records a settlement observed via webhook.
	ActivityPaymentReceived ActivityType = "payment_received"
	// ActivityPaymentLinked records a manually recorded payment attached to the order.
	ActivityPaymentLinked ActivityType = "payment_linked"
	// ActivityRefund records a refund issued against the order's tenders.
	ActivityRefund ActivityType = "refund"
)

// Activity is an append-only log entry scoped to one order. Entries are never
// mutated after being written.
type Activity struct {
	ID        string
	OrderID   string
	Type      ActivityType
	Message   string
	Actor     string
	CreatedAt time.Time
}
