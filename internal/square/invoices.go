package square

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	// Kind selects the payment-request shape generated for an invoice.
	KindFull    = "full"
	KindDeposit = "deposit"

	defaultDepositPercent = 50

	fullDueDays    = 7
	depositDueDays = 7
	balanceDueDays = 30

	dueDateLayout = "2006-01-02"
)

// Invoice statuses that indicate the published invoice was actually
// dispatched to the recipient.
var dispatchedStatuses = map[string]bool{
	"SENT":           true,
	"SCHEDULED":      true,
	"PAID":           true,
	"PARTIALLY_PAID": true,
}

// InvoiceLine is one billable line carried onto the remote order.
type InvoiceLine struct {
	Name           string
	Quantity       int64
	UnitPriceCents int64
}

// CreateInvoiceInput describes one invoice to create and send.
type CreateInvoiceInput struct {
	// InvoiceNumber is the deterministic number derived from the local order.
	InvoiceNumber string
	// OrderReference is the local order number stamped on the remote order.
	OrderReference string
	Title          string
	Description    string

	CustomerEmail string
	GivenName     string
	FamilyName    string

	Lines      []InvoiceLine
	TotalCents int64
	Currency   string

	Kind           string
	DepositPercent int
}

// InvoiceResult reports the outcome of a create-and-send or duplicate call.
type InvoiceResult struct {
	InvoiceID     string
	InvoiceNumber string
	Status        string
	PublicURL     string
	// AlreadyExists is set when an invoice with the same number was found and
	// returned instead of creating a duplicate.
	AlreadyExists bool
	// Warning is set when the published invoice did not reach a dispatched
	// status. Non-fatal.
	Warning string
}

// CreateAndSendInvoice resolves the customer, builds the remote order and a
// draft invoice, publishes it, and confirms delivery. Calling it twice with
// the same invoice number returns the existing invoice instead of creating a
// duplicate.
func (c *Client) CreateAndSendInvoice(ctx context.Context, input CreateInvoiceInput) (InvoiceResult, error) {
	if input.TotalCents < 1 {
		return InvoiceResult{}, NewValidationError("invoice total must be at least 1 cent")
	}
	number := strings.TrimSpace(input.InvoiceNumber)
	if number == "" {
		return InvoiceResult{}, NewValidationError("invoice number is required")
	}

	customerID, err := c.ResolveCustomer(ctx, input.CustomerEmail, input.GivenName, input.FamilyName)
	if err != nil {
		return InvoiceResult{}, err
	}

	existing, err := c.SearchInvoiceByNumber(ctx, number)
	if err != nil {
		return InvoiceResult{}, err
	}
	if existing != nil {
		c.logger(ctx, "square.invoice.exists", map[string]any{
			"invoice_id":     existing.ID,
			"invoice_number": number,
		})
		return InvoiceResult{
			InvoiceID:     existing.ID,
			InvoiceNumber: existing.InvoiceNumber,
			Status:        existing.Status,
			PublicURL:     existing.PublicURL,
			AlreadyExists: true,
		}, nil
	}

	remoteOrderID, err := c.createRemoteOrder(ctx, input.OrderReference, input.Lines, input.TotalCents, input.Currency)
	if err != nil {
		return InvoiceResult{}, err
	}

	requests := buildPaymentRequests(input.Kind, input.TotalCents, input.DepositPercent, input.Currency, c.now())
	return c.createAndPublish(ctx, Invoice{
		LocationID:     c.locationID,
		OrderID:        remoteOrderID,
		InvoiceNumber:  number,
		Title:          input.Title,
		Description:    input.Description,
		DeliveryMethod: "EMAIL",
		PrimaryRecipient: &InvoiceRecipient{
			CustomerID: customerID,
		},
		PaymentRequests: requests,
		CustomFields: []InvoiceCustomField{
			{Label: "Order", Value: input.OrderReference},
		},
		AcceptedPaymentMethods: &AcceptedPaymentMethods{
			Card:           true,
			SquareGiftCard: true,
			BankAccount:    true,
		},
	})
}

// DuplicateInvoice rebuilds an existing invoice under a new timestamped
// number, carrying over the line items and remapping each payment request's
// due date forward by the relative offset it originally had.
func (c *Client) DuplicateInvoice(ctx context.Context, existingInvoiceID string) (InvoiceResult, error) {
	source, err := c.GetInvoice(ctx, existingInvoiceID)
	if err != nil {
		return InvoiceResult{}, err
	}

	var lines []InvoiceLine
	var totalCents int64
	currency := "USD"
	if source.OrderID != "" {
		sourceOrder, err := c.GetRemoteOrder(ctx, source.OrderID)
		if err != nil {
			var notFound *NotFoundError
			if !errors.As(err, &notFound) {
				return InvoiceResult{}, err
			}
		} else {
			for _, item := range sourceOrder.LineItems {
				qty, parseErr := strconv.ParseFloat(item.Quantity, 64)
				if parseErr != nil || qty <= 0 {
					qty = 1
				}
				lines = append(lines, InvoiceLine{
					Name:           item.Name,
					Quantity:       int64(qty),
					UnitPriceCents: item.BasePriceMoney.Amount,
				})
				if item.BasePriceMoney.Currency != "" {
					currency = item.BasePriceMoney.Currency
				}
			}
			if sourceOrder.TotalMoney != nil {
				totalCents = sourceOrder.TotalMoney.Amount
			}
		}
	}
	if totalCents == 0 {
		totalCents = invoiceRequestedTotal(source.PaymentRequests)
	}
	if len(lines) == 0 {
		// The source order had no line items; synthesize one from the total.
		if totalCents < 1 {
			return InvoiceResult{}, NewValidationError("source invoice has no line items and no recoverable total")
		}
		lines = []InvoiceLine{{Name: "Invoice balance", Quantity: 1, UnitPriceCents: totalCents}}
	}
	if totalCents < 1 {
		totalCents = sumLineCents(lines)
	}

	now := c.now()
	newNumber := fmt.Sprintf("%s-dup-%d", source.InvoiceNumber, now.Unix())
	reference := source.InvoiceNumber

	remoteOrderID, err := c.createRemoteOrder(ctx, reference, lines, totalCents, currency)
	if err != nil {
		return InvoiceResult{}, err
	}

	return c.createAndPublish(ctx, Invoice{
		LocationID:             c.locationID,
		OrderID:                remoteOrderID,
		InvoiceNumber:          newNumber,
		Title:                  source.Title,
		Description:            source.Description,
		DeliveryMethod:         "EMAIL",
		PrimaryRecipient:       source.PrimaryRecipient,
		PaymentRequests:        remapPaymentRequests(source, now),
		CustomFields:           source.CustomFields,
		AcceptedPaymentMethods: source.AcceptedPaymentMethods,
	})
}

// GetInvoice fetches one invoice by id.
func (c *Client) GetInvoice(ctx context.Context, invoiceID string) (*Invoice, error) {
	id := strings.TrimSpace(invoiceID)
	if id == "" {
		return nil, NewValidationError("invoice id is required")
	}
	var resp invoiceEnvelope
	if err := c.call(ctx, http.MethodGet, "/v2/invoices/"+id, nil, &resp); err != nil {
		return nil, mapNotFound(err, "invoice", id)
	}
	return &resp.Invoice, nil
}

// SearchInvoiceByNumber looks up an invoice by its exact number. A miss
// returns nil, not an error.
func (c *Client) SearchInvoiceByNumber(ctx context.Context, invoiceNumber string) (*Invoice, error) {
	number := strings.TrimSpace(invoiceNumber)
	if number == "" {
		return nil, NewValidationError("invoice number is required")
	}
	var resp invoiceSearchResponse
	err := c.call(ctx, http.MethodPost, "/v2/invoices/search", invoiceSearchRequest{
		Query: invoiceSearchQuery{
			Filter: invoiceSearchFilter{InvoiceNumber: exactMatch{Exact: number}},
		},
		Limit: 1,
	}, &resp)
	if err != nil {
		return nil, err
	}
	if len(resp.Invoices) == 0 {
		return nil, nil
	}
	return &resp.Invoices[0], nil
}

func (c *Client) createRemoteOrder(ctx context.Context, reference string, lines []InvoiceLine, totalCents int64, currency string) (string, error) {
	if currency == "" {
		currency = "USD"
	}
	items := make([]LineItem, 0, len(lines))
	for _, line := range lines {
		qty := line.Quantity
		if qty < 1 {
			qty = 1
		}
		items = append(items, LineItem{
			Name:           line.Name,
			Quantity:       strconv.FormatInt(qty, 10),
			BasePriceMoney: Money{Amount: line.UnitPriceCents, Currency: currency},
		})
	}
	if len(items) == 0 {
		items = append(items, LineItem{
			Name:           "Custom framing",
			Quantity:       "1",
			BasePriceMoney: Money{Amount: totalCents, Currency: currency},
		})
	}

	var resp orderEnvelope
	err := c.call(ctx, http.MethodPost, "/v2/orders", createOrderRequest{
		IdempotencyKey: newIdempotencyKey(),
		Order: createOrderBody{
			LocationID:  c.locationID,
			ReferenceID: reference,
			LineItems:   items,
		},
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.Order.ID, nil
}

// createAndPublish creates the draft invoice and publishes it, which is the
// action that triggers remote delivery, then re-fetches to confirm dispatch.
func (c *Client) createAndPublish(ctx context.Context, draft Invoice) (InvoiceResult, error) {
	var created invoiceEnvelope
	err := c.call(ctx, http.MethodPost, "/v2/invoices", createInvoiceRequest{
		IdempotencyKey: newIdempotencyKey(),
		Invoice:        draft,
	}, &created)
	if err != nil {
		var validation *ValidationError
		if errors.As(err, &validation) && mentionsDuplicateNumber(validation) {
			return InvoiceResult{}, &InvoiceExistsError{InvoiceNumber: draft.InvoiceNumber}
		}
		return InvoiceResult{}, err
	}
	invoiceID := created.Invoice.ID
	if invoiceID == "" {
		return InvoiceResult{}, &TransportError{Path: "/v2/invoices", Err: errors.New("response did not include an invoice id")}
	}

	var published invoiceEnvelope
	err = c.call(ctx, http.MethodPost, "/v2/invoices/"+invoiceID+"/publish", publishInvoiceRequest{
		IdempotencyKey: newIdempotencyKey(),
		Version:        created.Invoice.Version,
	}, &published)
	if err != nil {
		return InvoiceResult{}, err
	}

	result := InvoiceResult{
		InvoiceID:     invoiceID,
		InvoiceNumber: created.Invoice.InvoiceNumber,
		Status:        published.Invoice.Status,
		PublicURL:     published.Invoice.PublicURL,
	}

	confirmed, err := c.GetInvoice(ctx, invoiceID)
	if err != nil {
		// Publishing already succeeded; report the result with a warning.
		result.Warning = fmt.Sprintf("could not confirm delivery: %v", err)
		return result, nil
	}
	result.Status = confirmed.Status
	if confirmed.PublicURL != "" {
		result.PublicURL = confirmed.PublicURL
	}
	if !dispatchedStatuses[strings.ToUpper(confirmed.Status)] {
		result.Warning = fmt.Sprintf("invoice published but status is %s; it may not have been delivered", confirmed.Status)
	}

	c.logger(ctx, "square.invoice.published", map[string]any{
		"invoice_id":     invoiceID,
		"invoice_number": result.InvoiceNumber,
		"status":         result.Status,
	})
	return result, nil
}

// buildPaymentRequests computes the payment-request shape for a kind. A full
// invoice carries a single balance request due in 7 days. A deposit invoice
// carries a deposit request due in 7 days for the configured percentage of
// the total plus a balance request due in 30 days for the remainder.
func buildPaymentRequests(kind string, totalCents int64, depositPercent int, currency string, now time.Time) []PaymentRequest {
	if currency == "" {
		currency = "USD"
	}
	if kind != KindDeposit {
		return []PaymentRequest{{
			RequestType: "BALANCE",
			DueDate:     now.AddDate(0, 0, fullDueDays).Format(dueDateLayout),
		}}
	}

	percent := depositPercent
	if percent <= 0 || percent >= 100 {
		percent = defaultDepositPercent
	}
	depositCents := (totalCents*int64(percent) + 50) / 100
	if depositCents < 1 {
		depositCents = 1
	}

	return []PaymentRequest{
		{
			RequestType: "DEPOSIT",
			DueDate:     now.AddDate(0, 0, depositDueDays).Format(dueDateLayout),
			FixedAmountRequestedMoney: &Money{
				Amount:   depositCents,
				Currency: currency,
			},
		},
		{
			RequestType: "BALANCE",
			DueDate:     now.AddDate(0, 0, balanceDueDays).Format(dueDateLayout),
		},
	}
}

// remapPaymentRequests shifts each source due date forward by the relative
// offset it had from the source invoice's creation, at least 1 day out, and
// advances colliding due dates so every request lands on a distinct day.
func remapPaymentRequests(source *Invoice, now time.Time) []PaymentRequest {
	createdAt := now
	if parsed, err := time.Parse(time.RFC3339, source.CreatedAt); err == nil {
		createdAt = parsed
	}

	used := make(map[string]bool)
	requests := make([]PaymentRequest, 0, len(source.PaymentRequests))
	for _, pr := range source.PaymentRequests {
		mapped := PaymentRequest{
			RequestType:               pr.RequestType,
			FixedAmountRequestedMoney: pr.FixedAmountRequestedMoney,
			PercentageRequested:       pr.PercentageRequested,
		}
		offset := 24 * time.Hour
		if due, err := time.Parse(dueDateLayout, pr.DueDate); err == nil {
			if delta := due.Sub(createdAt); delta > offset {
				offset = delta
			}
		}
		dueDate := now.Add(offset)
		for used[dueDate.Format(dueDateLayout)] {
			dueDate = dueDate.AddDate(0, 0, 1)
		}
		mapped.DueDate = dueDate.Format(dueDateLayout)
		used[mapped.DueDate] = true
		requests = append(requests, mapped)
	}
	if len(requests) == 0 {
		requests = []PaymentRequest{{
			RequestType: "BALANCE",
			DueDate:     now.AddDate(0, 0, fullDueDays).Format(dueDateLayout),
		}}
	}
	return requests
}

// invoiceRequestedTotal sums the explicitly requested amounts on an invoice.
func invoiceRequestedTotal(requests []PaymentRequest) int64 {
	var total int64
	for _, pr := range requests {
		switch {
		case pr.FixedAmountRequestedMoney != nil:
			total += pr.FixedAmountRequestedMoney.Amount
		case pr.ComputedAmountMoney != nil:
			total += pr.ComputedAmountMoney.Amount
		}
	}
	return total
}

func sumLineCents(lines []InvoiceLine) int64 {
	var total int64
	for _, line := range lines {
		qty := line.Quantity
		if qty < 1 {
			qty = 1
		}
		total += qty * line.UnitPriceCents
	}
	return total
}

func mentionsDuplicateNumber(err *ValidationError) bool {
	detail := strings.ToLower(err.Detail)
	if strings.Contains(detail, "invoice number") && (strings.Contains(detail, "exist") || strings.Contains(detail, "in use")) {
		return true
	}
	for _, apiErr := range err.Errors {
		if strings.Contains(apiErr.Field, "invoice_number") {
			return true
		}
	}
	return false
}

func mapNotFound(err error, resource, key string) error {
	var validation *ValidationError
	if errors.As(err, &validation) && validation.Status == http.StatusNotFound {
		return &NotFoundError{Resource: resource, Key: key}
	}
	return err
}

// newIdempotencyKey mints a single-use key. It is generated once per logical
// mutation and replayed unchanged across transport retries.
func newIdempotencyKey() string {
	return ulid.Make().String()
}
