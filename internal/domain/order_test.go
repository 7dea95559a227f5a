package domain

import "testing"

func TestNextOrderNumber(t *testing.T) {
	cases := []struct {
		name     string
		previous string
		want     string
	}{
		{name: "increments prior number", previous: "WRX-000041", want: "WRX-000042"},
		{name: "starts sequence when empty", previous: "", want: "WRX-000001"},
		{name: "recovers from malformed input", previous: "garbage", want: "WRX-000001"},
		{name: "keeps width past six digits", previous: "WRX-999999", want: "WRX-1000000"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NextOrderNumber(tc.previous); got != tc.want {
				t.Fatalf("NextOrderNumber(%q) = %q, want %q", tc.previous, got, tc.want)
			}
		})
	}
}

func TestInvoiceNumberDerivation(t *testing.T) {
	order := Order{OrderNumber: "WRX-000007"}
	if got := order.InvoiceNumber(InvoiceKindFull); got != "WRX-000007-full" {
		t.Fatalf("full invoice number = %q", got)
	}
	if got := order.InvoiceNumber(InvoiceKindDeposit); got != "WRX-000007-deposit" {
		t.Fatalf("deposit invoice number = %q", got)
	}

	number, ok := OrderNumberFromInvoiceNumber("WRX-000007-deposit")
	if !ok || number != "WRX-000007" {
		t.Fatalf("OrderNumberFromInvoiceNumber = %q, %v", number, ok)
	}
	if _, ok := OrderNumberFromInvoiceNumber("WRX-000007"); ok {
		t.Fatal("expected no kind suffix to be detected")
	}
}

func TestValidateForInvoicing(t *testing.T) {
	base := Order{OrderNumber: "WRX-000001", TotalCents: 5000, CustomerEmail: "jane@example.com"}
	if err := base.ValidateForInvoicing(); err != nil {
		t.Fatalf("valid order rejected: %v", err)
	}

	zero := base
	zero.TotalCents = 0
	if err := zero.ValidateForInvoicing(); err != ErrTotalTooSmall {
		t.Fatalf("expected ErrTotalTooSmall, got %v", err)
	}

	noEmail := base
	noEmail.CustomerEmail = "  "
	if err := noEmail.ValidateForInvoicing(); err == nil {
		t.Fatal("expected missing email to be rejected")
	}
}

func TestFormatCents(t *testing.T) {
	if got := FormatCents(5000); got != "$50.00" {
		t.Fatalf("FormatCents(5000) = %q", got)
	}
	if got := FormatCents(101); got != "$1.01" {
		t.Fatalf("FormatCents(101) = %q", got)
	}
	if got := FormatCents(-250); got != "-$2.50" {
		t.Fatalf("FormatCents(-250) = %q", got)
	}
}
