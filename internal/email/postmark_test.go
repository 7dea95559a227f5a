package email

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/westroxburyframing/ops-api/internal/platform/config"
)

func TestNotifyReadyForPickupPostsToPostmark(t *testing.T) {
	var (
		gotToken string
		gotMsg   postmarkMessage
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-Postmark-Server-Token")
		if err := json.NewDecoder(r.Body).Decode(&gotMsg); err != nil {
			t.Errorf("decode message: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sender := NewPostmarkSender(config.EmailConfig{
		PostmarkToken: "pm-token",
		From:          "orders@westroxburyframing.com",
	}, nil, WithEndpoint(server.URL), WithHTTPClient(server.Client()))

	err := sender.NotifyReadyForPickup(context.Background(), "customer@example.com", "WRF-1042", "Jamie")
	if err != nil {
		t.Fatalf("notify ready for pickup: %v", err)
	}

	if gotToken != "pm-token" {
		t.Fatalf("expected server token header, got %q", gotToken)
	}
	if gotMsg.To != "customer@example.com" {
		t.Fatalf("expected customer recipient, got %q", gotMsg.To)
	}
	if gotMsg.From != "orders@westroxburyframing.com" {
		t.Fatalf("expected configured from address, got %q", gotMsg.From)
	}
	if gotMsg.Subject != "Your order is ready for pickup (WRF-1042)" {
		t.Fatalf("unexpected subject %q", gotMsg.Subject)
	}
}

func TestNotifyInvoicePaidGoesToStaffInbox(t *testing.T) {
	var gotMsg postmarkMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotMsg); err != nil {
			t.Errorf("decode message: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sender := NewPostmarkSender(config.EmailConfig{
		PostmarkToken: "pm-token",
		From:          "orders@westroxburyframing.com",
		StaffInbox:    "staff@westroxburyframing.com",
	}, nil, WithEndpoint(server.URL), WithHTTPClient(server.Client()))

	err := sender.NotifyInvoicePaid(context.Background(), "WRF-1042", "INV-77", "$215.00", "Jamie")
	if err != nil {
		t.Fatalf("notify invoice paid: %v", err)
	}

	if gotMsg.To != "staff@westroxburyframing.com" {
		t.Fatalf("expected staff inbox recipient, got %q", gotMsg.To)
	}
	if gotMsg.Subject != "Invoice Paid: WRF-1042 - INV-77" {
		t.Fatalf("unexpected subject %q", gotMsg.Subject)
	}
}

func TestNotifyInvoicePaidSkipsWithoutStaffInbox(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("unexpected postmark call without staff inbox")
	}))
	defer server.Close()

	sender := NewPostmarkSender(config.EmailConfig{
		PostmarkToken: "pm-token",
		From:          "orders@westroxburyframing.com",
	}, nil, WithEndpoint(server.URL), WithHTTPClient(server.Client()))

	if err := sender.NotifyInvoicePaid(context.Background(), "WRF-1042", "INV-77", "$215.00", "Jamie"); err != nil {
		t.Fatalf("expected silent skip, got %v", err)
	}
}

func TestSendDegradesToLogOnlyWithoutToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("unexpected postmark call without token")
	}))
	defer server.Close()

	sender := NewPostmarkSender(config.EmailConfig{
		From: "orders@westroxburyframing.com",
	}, nil, WithEndpoint(server.URL), WithHTTPClient(server.Client()))

	if err := sender.NotifyReadyForPickup(context.Background(), "customer@example.com", "WRF-1042", "Jamie"); err != nil {
		t.Fatalf("expected log-only send to succeed, got %v", err)
	}
}

func TestSendReportsAPIFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"ErrorCode":300,"Message":"Invalid email request"}`))
	}))
	defer server.Close()

	sender := NewPostmarkSender(config.EmailConfig{
		PostmarkToken: "pm-token",
		From:          "orders@westroxburyframing.com",
	}, nil, WithEndpoint(server.URL), WithHTTPClient(server.Client()))

	err := sender.NotifyReadyForPickup(context.Background(), "customer@example.com", "WRF-1042", "Jamie")
	if err == nil {
		t.Fatalf("expected error for 422 response")
	}
}
