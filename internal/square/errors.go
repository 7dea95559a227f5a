package square

import (
	"fmt"
	"strings"
)

// APIError is one structured error record from a Square error body.
type APIError struct {
	Category string `json:"category"`
	Code     string `json:"code"`
	Detail   string `json:"detail"`
	Field    string `json:"field"`
}

// Summarize renders the record as CATEGORY/CODE field=<f>: <detail>.
func (e APIError) Summarize() string {
	category := e.Category
	if category == "" {
		category = "ERROR"
	}
	code := e.Code
	if code == "" {
		code = "UNKNOWN"
	}
	var sb strings.Builder
	sb.WriteString(category)
	sb.WriteString("/")
	sb.WriteString(code)
	if e.Field != "" {
		sb.WriteString(" field=")
		sb.WriteString(e.Field)
	}
	if e.Detail != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Detail)
	}
	return sb.String()
}

// SummarizeAPIErrors joins structured error records for logs and messages.
func SummarizeAPIErrors(errs []APIError) string {
	if len(errs) == 0 {
		return ""
	}
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		parts = append(parts, e.Summarize())
	}
	return strings.Join(parts, " | ")
}

// AuthError reports a 401/403 from the remote platform. It is never retried.
type AuthError struct {
	Status    int
	Path      string
	Detail    string
	RequestID string
}

func (e *AuthError) Error() string {
	return remoteErrorString("square auth error", e.Status, e.Path, e.Detail, e.RequestID)
}

// ValidationError reports a rejected request, either locally before any remote
// call or via a non-retryable 4xx from the remote platform.
type ValidationError struct {
	Status    int
	Path      string
	Detail    string
	RequestID string
	Errors    []APIError
}

func (e *ValidationError) Error() string {
	if e.Status == 0 && e.Path == "" {
		return e.Detail
	}
	return remoteErrorString("square validation error", e.Status, e.Path, e.Detail, e.RequestID)
}

// NewValidationError builds a local validation failure with no remote context.
func NewValidationError(detail string) *ValidationError {
	return &ValidationError{Detail: detail}
}

// RetryExhaustedError reports a 429/5xx that persisted through the retry budget.
type RetryExhaustedError struct {
	Status    int
	Attempts  int
	Path      string
	Detail    string
	RequestID string
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("square retries exhausted after %d attempts: %s", e.Attempts,
		remoteErrorString("", e.Status, e.Path, e.Detail, e.RequestID))
}

// TransportError reports a network failure or an unparseable response body.
type TransportError struct {
	Path string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("square transport error %s: %v", e.Path, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NotFoundError reports a remote object that was expected to exist.
type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("square %s not found", e.Resource)
	}
	return fmt.Sprintf("square %s %s not found", e.Resource, e.Key)
}

// InvoiceExistsError marks a duplicate-invoice-number conflict reported remotely.
type InvoiceExistsError struct {
	InvoiceNumber string
}

func (e *InvoiceExistsError) Error() string {
	return fmt.Sprintf("invoice %s already exists", e.InvoiceNumber)
}

func remoteErrorString(prefix string, status int, path, detail, requestID string) string {
	var sb strings.Builder
	if prefix != "" {
		sb.WriteString(prefix)
		sb.WriteString(" ")
	}
	fmt.Fprintf(&sb, "%d %s", status, path)
	if detail != "" {
		sb.WriteString(": ")
		sb.WriteString(detail)
	}
	if requestID != "" {
		sb.WriteString(" | request_id=")
		sb.WriteString(requestID)
	}
	return sb.String()
}
