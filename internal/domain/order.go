package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// OrderNumberPrefix is the human-facing prefix stamped on every order number.
const OrderNumberPrefix = "WRX"

// ErrTotalTooSmall is returned when an order total is below one minor unit.
var ErrTotalTooSmall = errors.New("order total must be at least 1 cent")

// InvoiceKind selects the payment-request shape generated for an order.
type InvoiceKind string

const (
	// InvoiceKindFull requests the entire balance in a single payment request.
	InvoiceKindFull InvoiceKind = "full"
	// InvoiceKindDeposit splits the total into a deposit request plus a later balance request.
	InvoiceKindDeposit InvoiceKind = "deposit"
)

// ParseInvoiceKind normalises kind input, defaulting to full for anything unrecognised.
func ParseInvoiceKind(raw string) InvoiceKind {
	if strings.EqualFold(strings.TrimSpace(raw), string(InvoiceKindDeposit)) {
		return InvoiceKindDeposit
	}
	return InvoiceKindFull
}

// Order is the local record this subsystem reconciles against the remote platform.
// Customer intake and order CRUD live elsewhere; this subsystem mutates only the
// lifecycle status and the remote-invoice linkage fields.
type Order struct {
	ID            string
	OrderNumber   string
	Status        OrderStatus
	SubtotalCents int64
	TaxCents      int64
	TotalCents    int64
	Currency      string
	DueDate       *time.Time

	CustomerEmail      string
	CustomerGivenName  string
	CustomerFamilyName string

	Items []OrderItem

	RemoteInvoiceID     string
	RemoteInvoiceURL    string
	RemoteInvoiceStatus string

	RemotePaymentID   string
	PaymentReceiptURL string
	PaidAt            *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// OrderItem is a single billable line on an order.
type OrderItem struct {
	Name           string
	Quantity       int64
	UnitPriceCents int64
}

// CustomerName joins the given and family names, trimming absent parts.
func (o Order) CustomerName() string {
	return strings.TrimSpace(strings.TrimSpace(o.CustomerGivenName) + " " + strings.TrimSpace(o.CustomerFamilyName))
}

// ValidateForInvoicing checks the invariants that must hold before any remote
// invoice may be created for the order.
func (o Order) ValidateForInvoicing() error {
	if o.TotalCents < 1 {
		return ErrTotalTooSmall
	}
	if strings.TrimSpace(o.CustomerEmail) == "" {
		return errors.New("customer email is required to send an invoice")
	}
	if strings.TrimSpace(o.OrderNumber) == "" {
		return errors.New("order has no order number")
	}
	return nil
}

// InvoiceNumber derives the deterministic remote invoice number for the order
// and kind. At most one live remote invoice exists per (order, kind) pair.
func (o Order) InvoiceNumber(kind InvoiceKind) string {
	return fmt.Sprintf("%s-%s", o.OrderNumber, kind)
}

// OrderNumberFromInvoiceNumber strips the kind suffix from a remote invoice
// number, recovering the local order number. The second return reports whether
// a known suffix was present.
func OrderNumberFromInvoiceNumber(invoiceNumber string) (string, bool) {
	trimmed := strings.TrimSpace(invoiceNumber)
	for _, kind := range []InvoiceKind{InvoiceKindFull, InvoiceKindDeposit} {
		suffix := "-" + string(kind)
		if strings.HasSuffix(trimmed, suffix) {
			return strings.TrimSuffix(trimmed, suffix), true
		}
	}
	return trimmed, false
}

// NextOrderNumber computes the successor of the previous order number in the
// PREFIX-NNNNNN sequence. An empty previous number starts the sequence at 1.
func NextOrderNumber(previous string) string {
	return FormatOrderNumber(orderNumberValue(previous) + 1)
}

// FormatOrderNumber renders a sequence value as PREFIX-NNNNNN.
func FormatOrderNumber(value int64) string {
	if value < 1 {
		value = 1
	}
	return fmt.Sprintf("%s-%06d", OrderNumberPrefix, value)
}

func orderNumberValue(number string) int64 {
	parts := strings.SplitN(strings.TrimSpace(number), "-", 2)
	if len(parts) != 2 {
		return 0
	}
	n, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// FormatCents renders a minor-unit amount as a dollar string, e.g. 5000 -> "$50.00".
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}
