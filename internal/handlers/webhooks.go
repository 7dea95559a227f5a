package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/westroxburyframing/ops-api/internal/platform/httpx"
	"github.com/westroxburyframing/ops-api/internal/platform/requestctx"
	"github.com/westroxburyframing/ops-api/internal/services"
)

const (
	maxWebhookBodySize = 1 << 20

	signatureHeader = "X-Square-Hmacsha256-Signature"
)

// handledEventTypes are the notification types that can carry an invoice
// settlement. Everything else is acknowledged and ignored.
var handledEventTypes = map[string]struct{}{
	"invoice.payment_made": {},
	"invoice.updated":      {},
}

// WebhookHandlers receives and verifies payment platform event notifications.
type WebhookHandlers struct {
	events services.WebhookService

	// signatureKey signs the callback URL plus raw body. Empty disables
	// verification, which is only acceptable in local development.
	signatureKey string
	callbackURL  string
}

// NewWebhookHandlers constructs the webhook endpoint handlers.
func NewWebhookHandlers(events services.WebhookService, signatureKey, callbackURL string) *WebhookHandlers {
	return &WebhookHandlers{
		events:       events,
		signatureKey: strings.TrimSpace(signatureKey),
		callbackURL:  strings.TrimSpace(callbackURL),
	}
}

// Routes registers the /webhooks endpoints.
func (h *WebhookHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/square", h.handleSquareEvent)
}

type webhookEvent struct {
	Type    string `json:"type"`
	EventID string `json:"event_id"`
	Data    struct {
		Type   string `json:"type"`
		ID     string `json:"id"`
		Object struct {
			Invoice struct {
				ID string `json:"id"`
			} `json:"invoice"`
		} `json:"object"`
	} `json:"data"`
}

func (h *WebhookHandlers) handleSquareEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := requestctx.Logger(ctx)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodySize))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("webhook_read_failed", "unable to read request body", http.StatusBadRequest))
		return
	}

	if !h.verifySignature(r, body) {
		logger.Warn("webhook signature rejected",
			zap.Bool("signature_present", r.Header.Get(signatureHeader) != ""))
		httpx.WriteError(ctx, w, httpx.NewError("invalid_signature", "webhook signature verification failed", http.StatusUnauthorized))
		return
	}

	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_body", "malformed webhook payload", http.StatusBadRequest))
		return
	}

	if _, ok := handledEventTypes[event.Type]; !ok {
		writeJSON(w, http.StatusOK, map[string]any{
			"handled": false,
			"reason":  "ignored event type",
		})
		return
	}

	invoiceID := event.Data.Object.Invoice.ID
	if invoiceID == "" {
		invoiceID = event.Data.ID
	}

	outcome, err := h.events.HandlePaymentEvent(ctx, invoiceID)
	if err != nil {
		logger.Error("webhook event processing failed",
			zap.String("event_id", event.EventID),
			zap.String("event_type", event.Type),
			zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("webhook_processing_failed", "unable to process event", http.StatusInternalServerError))
		return
	}

	payload := map[string]any{"handled": outcome.Handled}
	if outcome.Reason != "" {
		payload["reason"] = outcome.Reason
	}
	if outcome.OrderNumber != "" {
		payload["order_number"] = outcome.OrderNumber
		payload["invoice_status"] = outcome.Status
	}
	writeJSON(w, http.StatusOK, payload)
}

// verifySignature checks the HMAC the platform computes over the notification
// URL concatenated with the raw body. An unconfigured key skips verification.
func (h *WebhookHandlers) verifySignature(r *http.Request, body []byte) bool {
	if h.signatureKey == "" {
		return true
	}
	provided := strings.TrimSpace(r.Header.Get(signatureHeader))
	if provided == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(h.signatureKey))
	mac.Write([]byte(h.callbackURL))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(provided))
}
