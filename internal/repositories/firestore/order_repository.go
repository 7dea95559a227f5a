package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/westroxburyframing/ops-api/internal/domain"
	pfirestore "github.com/westroxburyframing/ops-api/internal/platform/firestore"
)

const ordersCollection = "orders"

type orderDocument struct {
	OrderNumber   string     `firestore:"orderNumber"`
	Status        string     `firestore:"status"`
	SubtotalCents int64      `firestore:"subtotalCents"`
	TaxCents      int64      `firestore:"taxCents"`
	TotalCents    int64      `firestore:"totalCents"`
	Currency      string     `firestore:"currency"`
	DueDate       *time.Time `firestore:"dueDate,omitempty"`

	CustomerEmail      string `firestore:"customerEmail"`
	CustomerGivenName  string `firestore:"customerGivenName,omitempty"`
	CustomerFamilyName string `firestore:"customerFamilyName,omitempty"`

	Items []orderItemDocument `firestore:"items,omitempty"`

	SquareInvoiceID     string `firestore:"squareInvoiceId,omitempty"`
	SquareInvoiceURL    string `firestore:"squareInvoiceUrl,omitempty"`
	SquareInvoiceStatus string `firestore:"squareInvoiceStatus,omitempty"`

	SquarePaymentID  string     `firestore:"squarePaymentId,omitempty"`
	SquareReceiptURL string     `firestore:"squareReceiptUrl,omitempty"`
	PaidAt           *time.Time `firestore:"paidAt,omitempty"`

	CreatedAt time.Time `firestore:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

type orderItemDocument struct {
	Name           string `firestore:"name"`
	Quantity       int64  `firestore:"quantity"`
	UnitPriceCents int64  `firestore:"unitPriceCents"`
}

// OrderRepository implements repositories.OrderRepository backed by Firestore.
type OrderRepository struct {
	orders *pfirestore.BaseRepository[orderDocument]
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		orders: pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection),
	}, nil
}

// Insert creates the order document keyed by its ID.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if strings.TrimSpace(order.ID) == "" {
		return errors.New("order id is required")
	}
	_, err := r.orders.Set(ctx, order.ID, encodeOrder(order))
	return err
}

// Update overwrites the order document with the given state.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order) error {
	if strings.TrimSpace(order.ID) == "" {
		return errors.New("order id is required")
	}
	_, err := r.orders.Set(ctx, order.ID, encodeOrder(order))
	return err
}

// FindByID fetches the order by document ID.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	doc, err := r.orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	return decodeOrder(doc.ID, doc.Data), nil
}

// FindByNumber looks up the order carrying the given order number.
func (r *OrderRepository) FindByNumber(ctx context.Context, orderNumber string) (domain.Order, error) {
	number := strings.TrimSpace(orderNumber)
	if number == "" {
		return domain.Order{}, errors.New("order number is required")
	}
	docs, err := r.orders.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("orderNumber", "==", number).Limit(1)
	})
	if err != nil {
		return domain.Order{}, err
	}
	if len(docs) == 0 {
		return domain.Order{}, pfirestore.NewNotFoundError("orders.findByNumber", "order "+number+" not found")
	}
	return decodeOrder(docs[0].ID, docs[0].Data), nil
}

// ListLinked returns every order holding a remote invoice reference.
func (r *OrderRepository) ListLinked(ctx context.Context) ([]domain.Order, error) {
	docs, err := r.orders.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("squareInvoiceId", "!=", "")
	})
	if err != nil {
		return nil, err
	}
	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		orders = append(orders, decodeOrder(doc.ID, doc.Data))
	}
	return orders, nil
}

func encodeOrder(order domain.Order) orderDocument {
	items := make([]orderItemDocument, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemDocument{
			Name:           item.Name,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
		})
	}
	return orderDocument{
		OrderNumber:         order.OrderNumber,
		Status:              string(order.Status),
		SubtotalCents:       order.SubtotalCents,
		TaxCents:            order.TaxCents,
		TotalCents:          order.TotalCents,
		Currency:            order.Currency,
		DueDate:             order.DueDate,
		CustomerEmail:       order.CustomerEmail,
		CustomerGivenName:   order.CustomerGivenName,
		CustomerFamilyName:  order.CustomerFamilyName,
		Items:               items,
		SquareInvoiceID:     order.RemoteInvoiceID,
		SquareInvoiceURL:    order.RemoteInvoiceURL,
		SquareInvoiceStatus: order.RemoteInvoiceStatus,
		SquarePaymentID:     order.RemotePaymentID,
		SquareReceiptURL:    order.PaymentReceiptURL,
		PaidAt:              order.PaidAt,
		CreatedAt:           order.CreatedAt,
		UpdatedAt:           order.UpdatedAt,
	}
}

func decodeOrder(id string, doc orderDocument) domain.Order {
	items := make([]domain.OrderItem, 0, len(doc.Items))
	for _, item := range doc.Items {
		items = append(items, domain.OrderItem{
			Name:           item.Name,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
		})
	}
	return domain.Order{
		ID:                  id,
		OrderNumber:         doc.OrderNumber,
		Status:              domain.OrderStatus(doc.Status),
		SubtotalCents:       doc.SubtotalCents,
		TaxCents:            doc.TaxCents,
		TotalCents:          doc.TotalCents,
		Currency:            doc.Currency,
		DueDate:             doc.DueDate,
		CustomerEmail:       doc.CustomerEmail,
		CustomerGivenName:   doc.CustomerGivenName,
		CustomerFamilyName:  doc.CustomerFamilyName,
		Items:               items,
		RemoteInvoiceID:     doc.SquareInvoiceID,
		RemoteInvoiceURL:    doc.SquareInvoiceURL,
		RemoteInvoiceStatus: doc.SquareInvoiceStatus,
		RemotePaymentID:     doc.SquarePaymentID,
		PaymentReceiptURL:   doc.SquareReceiptURL,
		PaidAt:              doc.PaidAt,
		CreatedAt:           doc.CreatedAt,
		UpdatedAt:           doc.UpdatedAt,
	}
}
