package square

// Wire records for the Square v2 API. The remote platform evolves
// independently, so every payload is parsed into an explicit shape here and
// unknown fields are ignored.

// Money is an integer amount in minor currency units.
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// Customer is the remote customer record resolved by email.
type Customer struct {
	ID           string `json:"id"`
	EmailAddress string `json:"email_address,omitempty"`
	GivenName    string `json:"given_name,omitempty"`
	FamilyName   string `json:"family_name,omitempty"`
}

// LineItem is one billable line on a remote order. Square represents
// quantities as decimal strings.
type LineItem struct {
	Name           string `json:"name"`
	Quantity       string `json:"quantity"`
	BasePriceMoney Money  `json:"base_price_money"`
}

// Tender is a settled payment attached to a remote order. Refunds are issued
// per tender.
type Tender struct {
	ID          string `json:"id,omitempty"`
	PaymentID   string `json:"payment_id,omitempty"`
	AmountMoney Money  `json:"amount_money"`
}

// RemoteOrder is the remote platform's order record backing an invoice.
type RemoteOrder struct {
	ID          string     `json:"id"`
	LocationID  string     `json:"location_id"`
	ReferenceID string     `json:"reference_id,omitempty"`
	LineItems   []LineItem `json:"line_items,omitempty"`
	Tenders     []Tender   `json:"tenders,omitempty"`
	TotalMoney  *Money     `json:"total_money,omitempty"`
}

// PaymentRequest describes one due amount on an invoice. Exactly one of the
// amount fields is set depending on how the request was specified.
type PaymentRequest struct {
	UID                       string `json:"uid,omitempty"`
	RequestType               string `json:"request_type"`
	DueDate                   string `json:"due_date,omitempty"`
	FixedAmountRequestedMoney *Money `json:"fixed_amount_requested_money,omitempty"`
	ComputedAmountMoney       *Money `json:"computed_amount_money,omitempty"`
	PercentageRequested       string `json:"percentage_requested,omitempty"`
}

// InvoiceRecipient identifies who the invoice is delivered to.
type InvoiceRecipient struct {
	CustomerID string `json:"customer_id"`
}

// InvoiceCustomField is a label/value pair rendered on the invoice.
type InvoiceCustomField struct {
	Label     string `json:"label"`
	Value     string `json:"value"`
	Placement string `json:"placement,omitempty"`
}

// AcceptedPaymentMethods toggles the payment instruments the invoice accepts.
type AcceptedPaymentMethods struct {
	Card           bool `json:"card"`
	SquareGiftCard bool `json:"square_gift_card"`
	BankAccount    bool `json:"bank_account"`
}

// Invoice is the remote invoice record.
type Invoice struct {
	ID                     string                  `json:"id,omitempty"`
	Version                int                     `json:"version,omitempty"`
	LocationID             string                  `json:"location_id,omitempty"`
	OrderID                string                  `json:"order_id,omitempty"`
	InvoiceNumber          string                  `json:"invoice_number,omitempty"`
	Title                  string                  `json:"title,omitempty"`
	Description            string                  `json:"description,omitempty"`
	Status                 string                  `json:"status,omitempty"`
	DeliveryMethod         string                  `json:"delivery_method,omitempty"`
	PublicURL              string                  `json:"public_url,omitempty"`
	CreatedAt              string                  `json:"created_at,omitempty"`
	PrimaryRecipient       *InvoiceRecipient       `json:"primary_recipient,omitempty"`
	PaymentRequests        []PaymentRequest        `json:"payment_requests,omitempty"`
	CustomFields           []InvoiceCustomField    `json:"custom_fields,omitempty"`
	AcceptedPaymentMethods *AcceptedPaymentMethods `json:"accepted_payment_methods,omitempty"`
}

// Request/response envelopes ------------------------------------------------

type customerSearchRequest struct {
	Query customerSearchQuery `json:"query"`
	Limit int                 `json:"limit,omitempty"`
}

type customerSearchQuery struct {
	Filter customerSearchFilter `json:"filter"`
}

type customerSearchFilter struct {
	EmailAddress exactMatch `json:"email_address"`
}

type exactMatch struct {
	Exact string `json:"exact"`
}

type customerSearchResponse struct {
	Customers []Customer `json:"customers"`
}

type customerEnvelope struct {
	Customer Customer `json:"customer"`
}

type createCustomerRequest struct {
	EmailAddress string `json:"email_address"`
	GivenName    string `json:"given_name,omitempty"`
	FamilyName   string `json:"family_name,omitempty"`
}

type createOrderRequest struct {
	IdempotencyKey string          `json:"idempotency_key"`
	Order          createOrderBody `json:"order"`
}

type createOrderBody struct {
	LocationID  string     `json:"location_id"`
	ReferenceID string     `json:"reference_id,omitempty"`
	LineItems   []LineItem `json:"line_items"`
}

type orderEnvelope struct {
	Order RemoteOrder `json:"order"`
}

type invoiceSearchRequest struct {
	Query invoiceSearchQuery `json:"query"`
	Limit int                `json:"limit,omitempty"`
}

type invoiceSearchQuery struct {
	Filter invoiceSearchFilter `json:"filter"`
}

type invoiceSearchFilter struct {
	InvoiceNumber exactMatch `json:"invoice_number"`
}

type invoiceSearchResponse struct {
	Invoices []Invoice `json:"invoices"`
}

type createInvoiceRequest struct {
	IdempotencyKey string  `json:"idempotency_key"`
	Invoice        Invoice `json:"invoice"`
}

type invoiceEnvelope struct {
	Invoice Invoice `json:"invoice"`
}

type publishInvoiceRequest struct {
	IdempotencyKey string `json:"idempotency_key"`
	Version        int    `json:"version"`
}

type createPaymentRequest struct {
	IdempotencyKey string `json:"idempotency_key"`
	AmountMoney    Money  `json:"amount_money"`
	Note           string `json:"note,omitempty"`
	LocationID     string `json:"location_id,omitempty"`
	SourceID       string `json:"source_id,omitempty"`
}

type paymentEnvelope struct {
	Payment Payment `json:"payment"`
}

type createRefundRequest struct {
	IdempotencyKey string `json:"idempotency_key"`
	PaymentID      string `json:"payment_id"`
	AmountMoney    Money  `json:"amount_money"`
	Reason         string `json:"reason,omitempty"`
}

type refundEnvelope struct {
	Refund struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"refund"`
}
