package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/westroxburyframing/ops-api/internal/domain"
	"github.com/westroxburyframing/ops-api/internal/platform/httpx"
	"github.com/westroxburyframing/ops-api/internal/platform/observability"
	"github.com/westroxburyframing/ops-api/internal/repositories"
	"github.com/westroxburyframing/ops-api/internal/services"
	"github.com/westroxburyframing/ops-api/internal/square"
)

const (
	maxStaffBodySize        = 16 * 1024
	defaultActivityPageSize = 50
	maxActivityPageSize     = 200

	// actorHeader names the staff member performing the action; recorded in
	// the order's activity trail.
	actorHeader  = "X-Staff-Actor"
	defaultActor = "staff"
)

// OrderHandlers exposes the staff operations on orders: invoicing, refunds,
// reconciliation, and lifecycle transitions.
type OrderHandlers struct {
	invoices   services.InvoiceService
	reconciler services.ReconcileService
	refunds    services.RefundService
	payments   services.PaymentService
	statuses   services.StatusService
	activities repositories.ActivityRepository
}

// NewOrderHandlers constructs a new OrderHandlers instance.
func NewOrderHandlers(
	invoices services.InvoiceService,
	reconciler services.ReconcileService,
	refunds services.RefundService,
	payments services.PaymentService,
	statuses services.StatusService,
	activities repositories.ActivityRepository,
) *OrderHandlers {
	return &OrderHandlers{
		invoices:   invoices,
		reconciler: reconciler,
		refunds:    refunds,
		payments:   payments,
		statuses:   statuses,
		activities: activities,
	}
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/invoice/sync-all", h.syncAllInvoices)
	r.Post("/{orderID}/invoice/send", h.sendInvoice)
	r.Post("/{orderID}/invoice/duplicate", h.duplicateInvoice)
	r.Post("/{orderID}/invoice/sync", h.syncInvoice)
	r.Post("/{orderID}/invoice/mark-unpaid", h.markUnpaid)
	r.Post("/{orderID}/refund", h.refund)
	r.Post("/{orderID}/payment", h.recordPayment)
	r.Post("/{orderID}/status", h.setStatus)
	r.Post("/{orderID}/status/advance", h.advanceStatus)
	r.Post("/{orderID}/status/revert", h.revertStatus)
	r.Get("/{orderID}/activity", h.listActivity)
}

type sendInvoiceRequest struct {
	Kind           string `json:"kind"`
	DepositPercent int    `json:"deposit_percent"`
}

func (h *OrderHandlers) sendInvoice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := chi.URLParam(r, "orderID")

	var req sendInvoiceRequest
	if !decodeBody(ctx, w, r, &req) {
		return
	}

	result, err := h.invoices.SendInvoice(ctx, orderID, domain.ParseInvoiceKind(req.Kind), req.DepositPercent, actorFrom(r))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	status := http.StatusCreated
	if result.AlreadyExists {
		status = http.StatusOK
	}
	writeJSON(w, status, invoiceResultPayload(result))
}

type duplicateInvoiceRequest struct {
	InvoiceID string `json:"invoice_id"`
}

func (h *OrderHandlers) duplicateInvoice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := chi.URLParam(r, "orderID")

	var req duplicateInvoiceRequest
	if !decodeBody(ctx, w, r, &req) {
		return
	}
	if strings.TrimSpace(req.InvoiceID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invoice_id_required", "invoice_id is required", http.StatusBadRequest))
		return
	}

	result, err := h.invoices.DuplicateInvoice(ctx, orderID, req.InvoiceID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, invoiceResultPayload(result))
}

func (h *OrderHandlers) syncInvoice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := chi.URLParam(r, "orderID")

	status, err := h.reconciler.SyncOne(ctx, orderID, actorFrom(r))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"order_id":       orderID,
		"invoice_status": status,
	})
}

func (h *OrderHandlers) syncAllInvoices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	report, err := h.reconciler.SyncAll(ctx)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	payload := map[string]any{
		"total":   report.Total,
		"synced":  report.Synced,
		"updated": report.Updated,
	}
	if len(report.Errors) > 0 {
		payload["errors"] = report.Errors
	}
	writeJSON(w, http.StatusOK, payload)
}

func (h *OrderHandlers) markUnpaid(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := chi.URLParam(r, "orderID")

	if err := h.reconciler.MarkUnpaid(ctx, orderID, actorFrom(r)); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"order_id":       orderID,
		"invoice_status": "UNPAID",
	})
}

type refundRequest struct {
	Kind string `json:"kind"`
}

func (h *OrderHandlers) refund(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := chi.URLParam(r, "orderID")

	var req refundRequest
	if !decodeBody(ctx, w, r, &req) {
		return
	}

	report, err := h.refunds.Refund(ctx, orderID, domain.ParseInvoiceKind(req.Kind), actorFrom(r))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	payload := map[string]any{
		"kind":                 string(report.Kind),
		"invoice_number":       report.InvoiceNumber,
		"refunded_count":       report.RefundedCount,
		"total_refunded_cents": report.TotalRefundedCents,
	}
	if len(report.Errors) > 0 {
		payload["errors"] = report.Errors
	}
	writeJSON(w, http.StatusOK, payload)
}

type recordPaymentRequest struct {
	AmountCents int64 `json:"amount_cents"`
}

func (h *OrderHandlers) recordPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := chi.URLParam(r, "orderID")

	var req recordPaymentRequest
	if !decodeBody(ctx, w, r, &req) {
		return
	}

	receipt, err := h.payments.RecordPayment(ctx, orderID, req.AmountCents, actorFrom(r))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"payment": map[string]any{
			"square_payment_id": receipt.PaymentID,
			"receipt_url":       receipt.ReceiptURL,
			"status":            receipt.Status,
			"paid_at":           receipt.PaidAt.UTC().Format(time.RFC3339),
		},
	})
}

type setStatusRequest struct {
	Status string `json:"status"`
}

func (h *OrderHandlers) setStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := chi.URLParam(r, "orderID")

	var req setStatusRequest
	if !decodeBody(ctx, w, r, &req) {
		return
	}

	next, err := domain.ParseOrderStatus(req.Status)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	order, err := h.statuses.SetStatus(ctx, orderID, next, actorFrom(r))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, orderPayload(order))
}

func (h *OrderHandlers) advanceStatus(w http.ResponseWriter, r *http.Request) {
	h.shiftStatus(w, r, h.statuses.Advance)
}

func (h *OrderHandlers) revertStatus(w http.ResponseWriter, r *http.Request) {
	h.shiftStatus(w, r, h.statuses.Revert)
}

func (h *OrderHandlers) shiftStatus(w http.ResponseWriter, r *http.Request, shift func(context.Context, string, string) (domain.Order, error)) {
	ctx := r.Context()
	orderID := chi.URLParam(r, "orderID")

	order, err := shift(ctx, orderID, actorFrom(r))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, orderPayload(order))
}

func (h *OrderHandlers) listActivity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID := chi.URLParam(r, "orderID")

	limit := defaultActivityPageSize
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_limit", "limit must be a positive integer", http.StatusBadRequest))
			return
		}
		if parsed > maxActivityPageSize {
			parsed = maxActivityPageSize
		}
		limit = parsed
	}

	entries, err := h.activities.List(ctx, orderID, limit)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	items := make([]map[string]any, 0, len(entries))
	for _, entry := range entries {
		items = append(items, map[string]any{
			"id":         entry.ID,
			"type":       string(entry.Type),
			"message":    entry.Message,
			"actor":      entry.Actor,
			"created_at": entry.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"order_id":   orderID,
		"activities": items,
	})
}

func invoiceResultPayload(result square.InvoiceResult) map[string]any {
	payload := map[string]any{
		"invoice_id":     result.InvoiceID,
		"invoice_number": result.InvoiceNumber,
		"status":         result.Status,
		"public_url":     result.PublicURL,
		"already_exists": result.AlreadyExists,
	}
	if result.Warning != "" {
		payload["warning"] = result.Warning
	}
	return payload
}

func orderPayload(order domain.Order) map[string]any {
	payload := map[string]any{
		"id":           order.ID,
		"order_number": order.OrderNumber,
		"status":       string(order.Status),
		"total_cents":  order.TotalCents,
	}
	if order.RemoteInvoiceID != "" {
		payload["invoice_id"] = order.RemoteInvoiceID
		payload["invoice_status"] = order.RemoteInvoiceStatus
		payload["invoice_url"] = order.RemoteInvoiceURL
	}
	return payload
}

func actorFrom(r *http.Request) string {
	if actor := observability.SanitizeActor(strings.TrimSpace(r.Header.Get(actorHeader))); actor != "" {
		return actor
	}
	return defaultActor
}

// decodeBody parses the JSON request body into dst. An empty body is accepted
// and leaves dst zero-valued. Returns false after writing an error response.
func decodeBody(ctx context.Context, w http.ResponseWriter, r *http.Request, dst any) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxStaffBodySize))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_body", "unable to read request body", http.StatusBadRequest))
		return false
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return true
	}
	if err := json.Unmarshal(body, dst); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_body", fmt.Sprintf("malformed JSON body: %v", err), http.StatusBadRequest))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeServiceError translates service and transport failures into the
// canonical HTTP error envelope.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	var (
		validationErr    *square.ValidationError
		invalidStatus    *domain.InvalidStatusError
		notLinked        *services.NotLinkedError
		invoiceExists    *square.InvoiceExistsError
		paymentExists    *services.PaymentExistsError
		amountMismatch   *services.AmountMismatchError
		notFound         *square.NotFoundError
		authErr          *square.AuthError
		retriesExhausted *square.RetryExhaustedError
		transportErr     *square.TransportError
		repoErr          repositories.RepositoryError
	)

	switch {
	case errors.As(err, &validationErr):
		httpx.WriteError(ctx, w, httpx.NewError("validation_failed", validationErr.Error(), http.StatusBadRequest))
	case errors.As(err, &invalidStatus):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_status", invalidStatus.Error(), http.StatusBadRequest))
	case errors.As(err, &notLinked):
		httpx.WriteError(ctx, w, httpx.NewError("invoice_not_linked", notLinked.Error(), http.StatusConflict))
	case errors.As(err, &invoiceExists):
		httpx.WriteError(ctx, w, httpx.NewError("invoice_exists", invoiceExists.Error(), http.StatusConflict))
	case errors.As(err, &paymentExists):
		httpx.WriteError(ctx, w, httpx.NewError("payment_exists", paymentExists.Error(), http.StatusConflict))
	case errors.As(err, &amountMismatch):
		httpx.WriteError(ctx, w, httpx.NewError("amount_mismatch", amountMismatch.Error(), http.StatusBadRequest))
	case errors.As(err, &notFound):
		httpx.WriteError(ctx, w, httpx.NewError("not_found", notFound.Error(), http.StatusNotFound))
	case errors.As(err, &repoErr) && repoErr.IsNotFound():
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.As(err, &authErr):
		httpx.WriteError(ctx, w, httpx.NewError("payment_platform_auth", "payment platform rejected our credentials", http.StatusBadGateway))
	case errors.As(err, &retriesExhausted):
		httpx.WriteError(ctx, w, httpx.NewError("payment_platform_unavailable", "payment platform unavailable", http.StatusBadGateway))
	case errors.As(err, &transportErr):
		httpx.WriteError(ctx, w, httpx.NewError("payment_platform_unavailable", "payment platform unavailable", http.StatusBadGateway))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "internal server error", http.StatusInternalServerError))
	}
}
