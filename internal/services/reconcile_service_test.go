package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/westroxburyframing/ops-api/internal/square"
)

func newReconcileService(t *testing.T, gateway *stubGateway, orders *memoryOrders, activities *memoryActivities) ReconcileService {
	t.Helper()
	svc, err := NewReconcileService(ReconcileServiceDeps{
		Gateway:    gateway,
		Orders:     orders,
		Activities: activities,
	})
	if err != nil {
		t.Fatalf("new reconcile service: %v", err)
	}
	return svc
}

func TestSyncOneRequiresLinkedInvoice(t *testing.T) {
	svc := newReconcileService(t, &stubGateway{}, newMemoryOrders(testOrder()), &memoryActivities{})

	_, err := svc.SyncOne(context.Background(), "ord-1", "staff")
	var notLinked *NotLinkedError
	if !errors.As(err, &notLinked) {
		t.Fatalf("expected NotLinkedError, got %v", err)
	}
}

func TestSyncOneWritesRemoteStatusBack(t *testing.T) {
	order := testOrder()
	order.RemoteInvoiceID = "INV-1"
	order.RemoteInvoiceStatus = "UNPAID"
	gateway := &stubGateway{
		getInvoiceFn: func(_ context.Context, id string) (*square.Invoice, error) {
			return &square.Invoice{ID: id, Status: "PAID", PublicURL: "https://pay.example.com/INV-1"}, nil
		},
	}
	orders := newMemoryOrders(order)
	activities := &memoryActivities{}
	svc := newReconcileService(t, gateway, orders, activities)

	status, err := svc.SyncOne(context.Background(), "ord-1", "staff")
	if err != nil {
		t.Fatalf("sync one: %v", err)
	}
	if status != "PAID" {
		t.Fatalf("expected PAID, got %q", status)
	}
	stored := orders.get("ord-1")
	if stored.RemoteInvoiceStatus != "PAID" || stored.RemoteInvoiceURL != "https://pay.example.com/INV-1" {
		t.Fatalf("remote state not written back: %+v", stored)
	}
	if activities.count() != 1 {
		t.Fatalf("expected a sync activity entry")
	}
}

func TestSyncAllCollectsPerOrderErrors(t *testing.T) {
	paid := testOrder()
	paid.ID = "ord-paid"
	paid.OrderNumber = "WRX-000001"
	paid.RemoteInvoiceID = "INV-PAID"
	paid.RemoteInvoiceStatus = "UNPAID"

	broken := testOrder()
	broken.ID = "ord-broken"
	broken.OrderNumber = "WRX-000002"
	broken.RemoteInvoiceID = "INV-GONE"
	broken.RemoteInvoiceStatus = "UNPAID"

	unchanged := testOrder()
	unchanged.ID = "ord-same"
	unchanged.OrderNumber = "WRX-000003"
	unchanged.RemoteInvoiceID = "INV-SAME"
	unchanged.RemoteInvoiceStatus = "UNPAID"

	unlinked := testOrder()
	unlinked.ID = "ord-unlinked"
	unlinked.OrderNumber = "WRX-000004"

	gateway := &stubGateway{
		getInvoiceFn: func(_ context.Context, id string) (*square.Invoice, error) {
			switch id {
			case "INV-PAID":
				return &square.Invoice{ID: id, Status: "PAID"}, nil
			case "INV-SAME":
				return &square.Invoice{ID: id, Status: "UNPAID"}, nil
			default:
				return nil, &square.NotFoundError{Resource: "invoice", Key: id}
			}
		},
	}
	orders := newMemoryOrders(paid, broken, unchanged, unlinked)
	svc := newReconcileService(t, gateway, orders, &memoryActivities{})

	report, err := svc.SyncAll(context.Background())
	if err != nil {
		t.Fatalf("sync all: %v", err)
	}
	// The unlinked order is never part of the batch.
	if report.Total != 3 {
		t.Fatalf("expected 3 linked orders, got %d", report.Total)
	}
	if report.Synced != 2 || report.Updated != 1 {
		t.Fatalf("expected synced=2 updated=1, got %d/%d", report.Synced, report.Updated)
	}
	if len(report.Errors) != 1 || !strings.Contains(report.Errors[0], "WRX-000002") {
		t.Fatalf("expected one error naming the failed order, got %v", report.Errors)
	}
	if got := orders.get("ord-paid").RemoteInvoiceStatus; got != "PAID" {
		t.Fatalf("batch failure must not block other orders, got %q", got)
	}
}

func TestMarkUnpaidRequiresPaidInvoice(t *testing.T) {
	order := testOrder()
	order.RemoteInvoiceStatus = "UNPAID"
	svc := newReconcileService(t, &stubGateway{}, newMemoryOrders(order), &memoryActivities{})

	err := svc.MarkUnpaid(context.Background(), "ord-1", "staff")
	var validation *square.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestMarkUnpaidOverridesPaidStatus(t *testing.T) {
	order := testOrder()
	order.RemoteInvoiceID = "INV-1"
	order.RemoteInvoiceStatus = "PAID"
	orders := newMemoryOrders(order)
	activities := &memoryActivities{}
	svc := newReconcileService(t, &stubGateway{}, orders, activities)

	if err := svc.MarkUnpaid(context.Background(), "ord-1", "staff"); err != nil {
		t.Fatalf("mark unpaid: %v", err)
	}
	if got := orders.get("ord-1").RemoteInvoiceStatus; got != "UNPAID" {
		t.Fatalf("expected UNPAID, got %q", got)
	}
	if activities.count() != 1 {
		t.Fatalf("expected an override activity entry")
	}
}
