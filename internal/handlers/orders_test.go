package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/westroxburyframing/ops-api/internal/domain"
	"github.com/westroxburyframing/ops-api/internal/services"
	"github.com/westroxburyframing/ops-api/internal/square"
)

type stubInvoiceService struct {
	sendFn      func(ctx context.Context, orderID string, kind domain.InvoiceKind, depositPercent int, actor string) (square.InvoiceResult, error)
	duplicateFn func(ctx context.Context, orderID, invoiceID string) (square.InvoiceResult, error)
}

func (s *stubInvoiceService) SendInvoice(ctx context.Context, orderID string, kind domain.InvoiceKind, depositPercent int, actor string) (square.InvoiceResult, error) {
	if s.sendFn == nil {
		return square.InvoiceResult{}, nil
	}
	return s.sendFn(ctx, orderID, kind, depositPercent, actor)
}

func (s *stubInvoiceService) DuplicateInvoice(ctx context.Context, orderID, invoiceID string) (square.InvoiceResult, error) {
	if s.duplicateFn == nil {
		return square.InvoiceResult{}, nil
	}
	return s.duplicateFn(ctx, orderID, invoiceID)
}

type stubReconcileService struct {
	syncOneFn    func(ctx context.Context, orderID, actor string) (string, error)
	syncAllFn    func(ctx context.Context) (services.SyncReport, error)
	markUnpaidFn func(ctx context.Context, orderID, actor string) error
}

func (s *stubReconcileService) SyncOne(ctx context.Context, orderID string, actor string) (string, error) {
	if s.syncOneFn == nil {
		return "", nil
	}
	return s.syncOneFn(ctx, orderID, actor)
}

func (s *stubReconcileService) SyncAll(ctx context.Context) (services.SyncReport, error) {
	if s.syncAllFn == nil {
		return services.SyncReport{}, nil
	}
	return s.syncAllFn(ctx)
}

func (s *stubReconcileService) MarkUnpaid(ctx context.Context, orderID string, actor string) error {
	if s.markUnpaidFn == nil {
		return nil
	}
	return s.markUnpaidFn(ctx, orderID, actor)
}

type stubRefundService struct {
	refundFn func(ctx context.Context, orderID string, kind domain.InvoiceKind, actor string) (services.RefundReport, error)
}

func (s *stubRefundService) Refund(ctx context.Context, orderID string, kind domain.InvoiceKind, actor string) (services.RefundReport, error) {
	if s.refundFn == nil {
		return services.RefundReport{}, nil
	}
	return s.refundFn(ctx, orderID, kind, actor)
}

type stubPaymentService struct {
	recordFn func(ctx context.Context, orderID string, amountCents int64, actor string) (services.PaymentReceipt, error)
	calls    int
}

func (s *stubPaymentService) RecordPayment(ctx context.Context, orderID string, amountCents int64, actor string) (services.PaymentReceipt, error) {
	s.calls++
	if s.recordFn == nil {
		return services.PaymentReceipt{}, nil
	}
	return s.recordFn(ctx, orderID, amountCents, actor)
}

type stubStatusService struct {
	setFn     func(ctx context.Context, orderID string, next domain.OrderStatus, actor string) (domain.Order, error)
	advanceFn func(ctx context.Context, orderID string, actor string) (domain.Order, error)
	revertFn  func(ctx context.Context, orderID string, actor string) (domain.Order, error)
}

func (s *stubStatusService) SetStatus(ctx context.Context, orderID string, next domain.OrderStatus, actor string) (domain.Order, error) {
	if s.setFn == nil {
		return domain.Order{}, nil
	}
	return s.setFn(ctx, orderID, next, actor)
}

func (s *stubStatusService) Advance(ctx context.Context, orderID string, actor string) (domain.Order, error) {
	if s.advanceFn == nil {
		return domain.Order{}, nil
	}
	return s.advanceFn(ctx, orderID, actor)
}

func (s *stubStatusService) Revert(ctx context.Context, orderID string, actor string) (domain.Order, error) {
	if s.revertFn == nil {
		return domain.Order{}, nil
	}
	return s.revertFn(ctx, orderID, actor)
}

type stubActivityRepo struct {
	listFn func(ctx context.Context, orderID string, limit int) ([]domain.Activity, error)
}

func (s *stubActivityRepo) Append(context.Context, domain.Activity) error { return nil }

func (s *stubActivityRepo) List(ctx context.Context, orderID string, limit int) ([]domain.Activity, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, orderID, limit)
}

type orderHandlerStubs struct {
	invoices   *stubInvoiceService
	reconciler *stubReconcileService
	refunds    *stubRefundService
	payments   *stubPaymentService
	statuses   *stubStatusService
	activities *stubActivityRepo
}

func newOrderRouter(stubs orderHandlerStubs) http.Handler {
	if stubs.invoices == nil {
		stubs.invoices = &stubInvoiceService{}
	}
	if stubs.reconciler == nil {
		stubs.reconciler = &stubReconcileService{}
	}
	if stubs.refunds == nil {
		stubs.refunds = &stubRefundService{}
	}
	if stubs.payments == nil {
		stubs.payments = &stubPaymentService{}
	}
	if stubs.statuses == nil {
		stubs.statuses = &stubStatusService{}
	}
	if stubs.activities == nil {
		stubs.activities = &stubActivityRepo{}
	}
	handlers := NewOrderHandlers(stubs.invoices, stubs.reconciler, stubs.refunds, stubs.payments, stubs.statuses, stubs.activities)
	return NewRouter(WithOrderRoutes(handlers.Routes))
}

func decodeJSONBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	return body
}

func TestSendInvoiceReturnsResult(t *testing.T) {
	var gotKind domain.InvoiceKind
	var gotPercent int
	var gotActor string
	router := newOrderRouter(orderHandlerStubs{
		invoices: &stubInvoiceService{
			sendFn: func(_ context.Context, orderID string, kind domain.InvoiceKind, depositPercent int, actor string) (square.InvoiceResult, error) {
				if orderID != "ord-1" {
					t.Fatalf("unexpected order id %s", orderID)
				}
				gotKind = kind
				gotPercent = depositPercent
				gotActor = actor
				return square.InvoiceResult{
					InvoiceID:     "inv_1",
					InvoiceNumber: "WRX-000042-deposit",
					Status:        "SENT",
					PublicURL:     "https://pay.example.com/inv_1",
				}, nil
			},
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/ord-1/invoice/send", strings.NewReader(`{"kind":"deposit","deposit_percent":30}`))
	req.Header.Set("X-Staff-Actor", "casey")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if gotKind != domain.InvoiceKindDeposit {
		t.Fatalf("expected deposit kind, got %s", gotKind)
	}
	if gotPercent != 30 {
		t.Fatalf("expected deposit percent 30, got %d", gotPercent)
	}
	if gotActor != "casey" {
		t.Fatalf("expected actor casey, got %s", gotActor)
	}

	body := decodeJSONBody(t, rr)
	if body["invoice_number"] != "WRX-000042-deposit" {
		t.Fatalf("unexpected invoice number %v", body["invoice_number"])
	}
	if body["already_exists"] != false {
		t.Fatalf("expected already_exists false, got %v", body["already_exists"])
	}
}

func TestSendInvoiceExistingReturnsOK(t *testing.T) {
	router := newOrderRouter(orderHandlerStubs{
		invoices: &stubInvoiceService{
			sendFn: func(context.Context, string, domain.InvoiceKind, int, string) (square.InvoiceResult, error) {
				return square.InvoiceResult{InvoiceID: "inv_1", AlreadyExists: true}, nil
			},
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/ord-1/invoice/send", strings.NewReader(`{"kind":"full"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 for existing invoice, got %d", rr.Code)
	}
}

func TestSendInvoiceValidationFailureReturns400(t *testing.T) {
	router := newOrderRouter(orderHandlerStubs{
		invoices: &stubInvoiceService{
			sendFn: func(context.Context, string, domain.InvoiceKind, int, string) (square.InvoiceResult, error) {
				return square.InvoiceResult{}, square.NewValidationError("order total must be at least 1 cent")
			},
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/ord-1/invoice/send", strings.NewReader(`{"kind":"full"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	body := decodeJSONBody(t, rr)
	if body["error"] != "validation_failed" {
		t.Fatalf("unexpected error code %v", body["error"])
	}
}

func TestDuplicateInvoiceRequiresInvoiceID(t *testing.T) {
	called := false
	router := newOrderRouter(orderHandlerStubs{
		invoices: &stubInvoiceService{
			duplicateFn: func(context.Context, string, string) (square.InvoiceResult, error) {
				called = true
				return square.InvoiceResult{}, nil
			},
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/ord-1/invoice/duplicate", strings.NewReader(`{}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if called {
		t.Fatal("service should not be invoked without invoice_id")
	}
}

func TestSetStatusRejectsUnknownStatus(t *testing.T) {
	called := false
	router := newOrderRouter(orderHandlerStubs{
		statuses: &stubStatusService{
			setFn: func(context.Context, string, domain.OrderStatus, string) (domain.Order, error) {
				called = true
				return domain.Order{}, nil
			},
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/ord-1/status", strings.NewReader(`{"status":"sideways"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	body := decodeJSONBody(t, rr)
	if body["error"] != "invalid_status" {
		t.Fatalf("unexpected error code %v", body["error"])
	}
	if called {
		t.Fatal("service should not be invoked with an unknown status")
	}
}

func TestSetStatusReturnsOrderSummary(t *testing.T) {
	router := newOrderRouter(orderHandlerStubs{
		statuses: &stubStatusService{
			setFn: func(_ context.Context, orderID string, next domain.OrderStatus, _ string) (domain.Order, error) {
				return domain.Order{
					ID:          orderID,
					OrderNumber: "WRX-000042",
					Status:      next,
					TotalCents:  10000,
				}, nil
			},
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/ord-1/status", strings.NewReader(`{"status":"in_production"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	body := decodeJSONBody(t, rr)
	if body["status"] != "in_production" {
		t.Fatalf("unexpected status %v", body["status"])
	}
	if body["order_number"] != "WRX-000042" {
		t.Fatalf("unexpected order number %v", body["order_number"])
	}
}

func TestRefundReportsPartialFailures(t *testing.T) {
	router := newOrderRouter(orderHandlerStubs{
		refunds: &stubRefundService{
			refundFn: func(_ context.Context, _ string, kind domain.InvoiceKind, _ string) (services.RefundReport, error) {
				return services.RefundReport{
					Kind:               kind,
					InvoiceNumber:      "WRX-000042-full",
					RefundedCount:      1,
					TotalRefundedCents: 5000,
					Errors:             []string{"tender t2: declined"},
				}, nil
			},
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/ord-1/refund", strings.NewReader(`{"kind":"full"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := decodeJSONBody(t, rr)
	if body["refunded_count"] != float64(1) {
		t.Fatalf("unexpected refunded count %v", body["refunded_count"])
	}
	if body["total_refunded_cents"] != float64(5000) {
		t.Fatalf("unexpected refunded total %v", body["total_refunded_cents"])
	}
	errs, ok := body["errors"].([]any)
	if !ok || len(errs) != 1 {
		t.Fatalf("expected one refund error, got %v", body["errors"])
	}
}

func TestRefundNotLinkedReturnsConflict(t *testing.T) {
	router := newOrderRouter(orderHandlerStubs{
		refunds: &stubRefundService{
			refundFn: func(context.Context, string, domain.InvoiceKind, string) (services.RefundReport, error) {
				return services.RefundReport{}, &services.NotLinkedError{OrderID: "ord-1"}
			},
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/ord-1/refund", strings.NewReader(`{"kind":"full"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
}

func TestRecordPaymentReturnsReceipt(t *testing.T) {
	paidAt := time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
	var gotAmount int64
	var gotActor string
	router := newOrderRouter(orderHandlerStubs{
		payments: &stubPaymentService{
			recordFn: func(_ context.Context, orderID string, amountCents int64, actor string) (services.PaymentReceipt, error) {
				if orderID != "ord-1" {
					t.Fatalf("unexpected order id %s", orderID)
				}
				gotAmount = amountCents
				gotActor = actor
				return services.PaymentReceipt{
					PaymentID:  "pay_1",
					ReceiptURL: "https://squareup.com/receipt/pay_1",
					Status:     "COMPLETED",
					PaidAt:     paidAt,
				}, nil
			},
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/ord-1/payment", strings.NewReader(`{"amount_cents":21500}`))
	req.Header.Set("X-Staff-Actor", "casey")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if gotAmount != 21500 {
		t.Fatalf("expected amount 21500, got %d", gotAmount)
	}
	if gotActor != "casey" {
		t.Fatalf("expected actor casey, got %s", gotActor)
	}

	body := decodeJSONBody(t, rr)
	payment, ok := body["payment"].(map[string]any)
	if !ok {
		t.Fatalf("expected payment object, got %v", body)
	}
	if payment["square_payment_id"] != "pay_1" {
		t.Fatalf("unexpected payment id %v", payment["square_payment_id"])
	}
	if payment["paid_at"] != "2026-03-14T10:30:00Z" {
		t.Fatalf("unexpected paid_at %v", payment["paid_at"])
	}
}

func TestRecordPaymentAmountMismatchReturns400(t *testing.T) {
	router := newOrderRouter(orderHandlerStubs{
		payments: &stubPaymentService{
			recordFn: func(context.Context, string, int64, string) (services.PaymentReceipt, error) {
				return services.PaymentReceipt{}, &services.AmountMismatchError{ExpectedCents: 21500, GotCents: 20000}
			},
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/ord-1/payment", strings.NewReader(`{"amount_cents":20000}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	body := decodeJSONBody(t, rr)
	if body["error"] != "amount_mismatch" {
		t.Fatalf("unexpected error code %v", body["error"])
	}
}

func TestRecordPaymentAlreadyAttachedReturnsConflict(t *testing.T) {
	router := newOrderRouter(orderHandlerStubs{
		payments: &stubPaymentService{
			recordFn: func(context.Context, string, int64, string) (services.PaymentReceipt, error) {
				return services.PaymentReceipt{}, &services.PaymentExistsError{OrderID: "ord-1", PaymentID: "pay_0"}
			},
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/ord-1/payment", strings.NewReader(`{"amount_cents":21500}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
	body := decodeJSONBody(t, rr)
	if body["error"] != "payment_exists" {
		t.Fatalf("unexpected error code %v", body["error"])
	}
}

func TestSyncAllReturnsReport(t *testing.T) {
	router := newOrderRouter(orderHandlerStubs{
		reconciler: &stubReconcileService{
			syncAllFn: func(context.Context) (services.SyncReport, error) {
				return services.SyncReport{Total: 3, Synced: 2, Updated: 1, Errors: []string{"WRX-000002: timeout"}}, nil
			},
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/invoice/sync-all", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	body := decodeJSONBody(t, rr)
	if body["total"] != float64(3) || body["synced"] != float64(2) || body["updated"] != float64(1) {
		t.Fatalf("unexpected report %v", body)
	}
}

func TestListActivityRejectsInvalidLimit(t *testing.T) {
	router := newOrderRouter(orderHandlerStubs{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/ord-1/activity?limit=zero", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestListActivityCapsLimit(t *testing.T) {
	var gotLimit int
	router := newOrderRouter(orderHandlerStubs{
		activities: &stubActivityRepo{
			listFn: func(_ context.Context, orderID string, limit int) ([]domain.Activity, error) {
				gotLimit = limit
				return []domain.Activity{{
					ID:        "act-1",
					OrderID:   orderID,
					Type:      domain.ActivityStatusChange,
					Message:   "status_change: new_design → awaiting_materials",
					Actor:     "casey",
					CreatedAt: time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC),
				}}, nil
			},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/ord-1/activity?limit=9999", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if gotLimit != maxActivityPageSize {
		t.Fatalf("expected limit capped at %d, got %d", maxActivityPageSize, gotLimit)
	}
	body := decodeJSONBody(t, rr)
	items, ok := body["activities"].([]any)
	if !ok || len(items) != 1 {
		t.Fatalf("expected one activity, got %v", body["activities"])
	}
}

func TestUnknownRouteReturnsNotFound(t *testing.T) {
	router := newOrderRouter(orderHandlerStubs{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/nowhere", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	body := decodeJSONBody(t, rr)
	if body["error"] != errorNotFoundCode {
		t.Fatalf("unexpected error code %v", body["error"])
	}
}
