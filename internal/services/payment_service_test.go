package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/westroxburyframing/ops-api/internal/square"
)

func newPaymentService(t *testing.T, gateway *stubGateway, orders *memoryOrders, activities *memoryActivities) PaymentService {
	t.Helper()
	svc, err := NewPaymentService(PaymentServiceDeps{
		Gateway:    gateway,
		Orders:     orders,
		Activities: activities,
	})
	if err != nil {
		t.Fatalf("new payment service: %v", err)
	}
	return svc
}

func TestRecordPaymentLinksOrderAndAppendsActivity(t *testing.T) {
	gateway := &stubGateway{
		createPaymentFn: func(_ context.Context, input square.CreatePaymentInput) (*square.Payment, error) {
			if input.AmountCents != 10000 {
				t.Fatalf("unexpected amount %d", input.AmountCents)
			}
			if input.Note != "WRX-000042" {
				t.Fatalf("unexpected note %q", input.Note)
			}
			return &square.Payment{
				ID:         "pay_1",
				Status:     "COMPLETED",
				ReceiptURL: "https://squareup.com/receipt/pay_1",
				CreatedAt:  "2026-03-14T10:30:00Z",
			}, nil
		},
	}
	orders := newMemoryOrders(testOrder())
	activities := &memoryActivities{}
	svc := newPaymentService(t, gateway, orders, activities)

	receipt, err := svc.RecordPayment(context.Background(), "ord-1", 10000, "casey")
	if err != nil {
		t.Fatalf("record payment: %v", err)
	}
	if receipt.PaymentID != "pay_1" || receipt.Status != "COMPLETED" {
		t.Fatalf("unexpected receipt %+v", receipt)
	}
	want := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
	if !receipt.PaidAt.Equal(want) {
		t.Fatalf("expected paid at %s, got %s", want, receipt.PaidAt)
	}

	stored := orders.get("ord-1")
	if stored.RemotePaymentID != "pay_1" {
		t.Fatalf("expected payment linked on order, got %q", stored.RemotePaymentID)
	}
	if stored.PaidAt == nil || !stored.PaidAt.Equal(want) {
		t.Fatalf("expected stored paid at %s, got %v", want, stored.PaidAt)
	}
	if activities.count() != 1 {
		t.Fatalf("expected one activity entry, got %d", activities.count())
	}
}

func TestRecordPaymentRejectsSecondPaymentWithoutRemoteCall(t *testing.T) {
	gateway := &stubGateway{}
	order := testOrder()
	order.RemotePaymentID = "pay_0"
	svc := newPaymentService(t, gateway, newMemoryOrders(order), &memoryActivities{})

	_, err := svc.RecordPayment(context.Background(), "ord-1", 10000, "casey")
	var exists *PaymentExistsError
	if !errors.As(err, &exists) {
		t.Fatalf("expected PaymentExistsError, got %v", err)
	}
	if exists.PaymentID != "pay_0" {
		t.Fatalf("unexpected linked payment id %s", exists.PaymentID)
	}
	if len(gateway.paymentCalls) != 0 {
		t.Fatalf("payments endpoint must not be contacted when one is already linked")
	}
}

func TestRecordPaymentRejectsMismatchedAmountWithoutRemoteCall(t *testing.T) {
	gateway := &stubGateway{}
	svc := newPaymentService(t, gateway, newMemoryOrders(testOrder()), &memoryActivities{})

	_, err := svc.RecordPayment(context.Background(), "ord-1", 9999, "casey")
	var mismatch *AmountMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected AmountMismatchError, got %v", err)
	}
	if mismatch.ExpectedCents != 10000 || mismatch.GotCents != 9999 {
		t.Fatalf("unexpected mismatch detail %+v", mismatch)
	}
	if len(gateway.paymentCalls) != 0 {
		t.Fatalf("payments endpoint must not be contacted on amount mismatch")
	}
}

func TestRecordPaymentSurfacesLinkageFailure(t *testing.T) {
	gateway := &stubGateway{
		createPaymentFn: func(context.Context, square.CreatePaymentInput) (*square.Payment, error) {
			return &square.Payment{ID: "pay_1", Status: "COMPLETED"}, nil
		},
	}
	orders := newMemoryOrders(testOrder())
	orders.failed = errors.New("firestore unavailable")
	activities := &memoryActivities{}
	svc := newPaymentService(t, gateway, orders, activities)

	_, err := svc.RecordPayment(context.Background(), "ord-1", 10000, "casey")
	if err == nil {
		t.Fatalf("expected linkage failure to surface")
	}
	if activities.count() != 0 {
		t.Fatalf("no activity should be appended when linkage fails")
	}
}
