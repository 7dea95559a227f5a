package repositories

import (
	"context"

	"github.com/westroxburyframing/ops-api/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// OrderRepository persists local order records and their remote-invoice linkage.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	Update(ctx context.Context, order domain.Order) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	FindByNumber(ctx context.Context, orderNumber string) (domain.Order, error)
	// ListLinked returns every order carrying a remote invoice reference.
	ListLinked(ctx context.Context) ([]domain.Order, error)
}

// ActivityRepository stores the append-only audit trail per order.
type ActivityRepository interface {
	Append(ctx context.Context, activity domain.Activity) error
	List(ctx context.Context, orderID string, limit int) ([]domain.Activity, error)
}

// CounterRepository provides transaction-safe sequence numbers.
type CounterRepository interface {
	Next(ctx context.Context, counterID string, step int64) (int64, error)
}
