package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/westroxburyframing/ops-api/internal/platform/config"
)

const postmarkEndpoint = "https://api.postmarkapp.com/email"

// PostmarkSender delivers transactional mail through Postmark. When no server
// token is configured, sends degrade to log-only so the rest of the system
// keeps working in development.
type PostmarkSender struct {
	token      string
	from       string
	staffInbox string
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger
}

// PostmarkOption customises the sender.
type PostmarkOption func(*PostmarkSender)

// WithHTTPClient overrides the HTTP client used for Postmark calls.
func WithHTTPClient(client *http.Client) PostmarkOption {
	return func(s *PostmarkSender) {
		if client != nil {
			s.httpClient = client
		}
	}
}

// WithEndpoint overrides the Postmark API endpoint. Used by tests.
func WithEndpoint(endpoint string) PostmarkOption {
	return func(s *PostmarkSender) {
		if strings.TrimSpace(endpoint) != "" {
			s.endpoint = endpoint
		}
	}
}

// NewPostmarkSender constructs a sender from the email configuration.
func NewPostmarkSender(cfg config.EmailConfig, logger *zap.Logger, opts ...PostmarkOption) *PostmarkSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &PostmarkSender{
		token:      strings.TrimSpace(cfg.PostmarkToken),
		from:       cfg.From,
		staffInbox: strings.TrimSpace(cfg.StaffInbox),
		endpoint:   postmarkEndpoint,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type postmarkMessage struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	TextBody string `json:"TextBody"`
	ReplyTo  string `json:"ReplyTo,omitempty"`
}

// NotifyReadyForPickup emails the customer that their order can be collected.
func (s *PostmarkSender) NotifyReadyForPickup(ctx context.Context, to, orderNumber, customerName string) error {
	subject := fmt.Sprintf("Your order is ready for pickup (%s)", orderNumber)
	body := fmt.Sprintf(`Hi %s,

Your framing order %s is ready for pickup.

West Roxbury Framing
West Roxbury, MA

Thank you!`, customerName, orderNumber)

	return s.send(ctx, postmarkMessage{
		From:     s.from,
		To:       to,
		Subject:  subject,
		TextBody: body,
	})
}

// NotifyInvoicePaid emails the staff inbox that an invoice has settled.
func (s *PostmarkSender) NotifyInvoicePaid(ctx context.Context, orderNumber, invoiceNumber, amount, customerName string) error {
	if s.staffInbox == "" {
		s.logger.Warn("invoice paid notification skipped, no staff inbox configured",
			zap.String("order_number", orderNumber))
		return nil
	}
	subject := fmt.Sprintf("Invoice Paid: %s - %s", orderNumber, invoiceNumber)
	body := fmt.Sprintf(`Invoice Payment Received

Order: %s
Invoice: %s
Customer: %s
Amount: %s

The invoice has been paid successfully.

West Roxbury Framing
West Roxbury, MA`, orderNumber, invoiceNumber, customerName, amount)

	return s.send(ctx, postmarkMessage{
		From:     s.from,
		To:       s.staffInbox,
		Subject:  subject,
		TextBody: body,
	})
}

func (s *PostmarkSender) send(ctx context.Context, msg postmarkMessage) error {
	if msg.To == "" {
		return errors.New("email: recipient is required")
	}
	if s.token == "" {
		s.logger.Info("email logged only, no postmark token configured",
			zap.String("to", msg.To),
			zap.String("subject", msg.Subject))
		return nil
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("email: encode message: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("email: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", s.token)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("email: postmark send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("email: postmark send failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}
