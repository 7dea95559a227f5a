package services

import "fmt"

// NotLinkedError indicates the local order has no remote invoice to act on.
type NotLinkedError struct {
	OrderID string
}

func (e *NotLinkedError) Error() string {
	return fmt.Sprintf("order %s has no linked remote invoice", e.OrderID)
}

// PaymentExistsError indicates the order already carries a linked payment.
// Each order records at most one.
type PaymentExistsError struct {
	OrderID   string
	PaymentID string
}

func (e *PaymentExistsError) Error() string {
	return fmt.Sprintf("order %s already has payment %s attached", e.OrderID, e.PaymentID)
}

// AmountMismatchError reports a payment amount that does not equal the order total.
type AmountMismatchError struct {
	ExpectedCents int64
	GotCents      int64
}

func (e *AmountMismatchError) Error() string {
	return fmt.Sprintf("payment amount %d does not match order total %d", e.GotCents, e.ExpectedCents)
}
