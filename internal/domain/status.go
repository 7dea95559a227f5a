package domain

import "fmt"

// OrderStatus enumerates the local order lifecycle states.
type OrderStatus string

const (
	// OrderStatusNewDesign is the intake state while the framing design is agreed.
	OrderStatusNewDesign OrderStatus = "new_design"
	// OrderStatusAwaitingMaterials indicates materials are on order from suppliers.
	OrderStatusAwaitingMaterials OrderStatus = "awaiting_materials"
	// OrderStatusInProduction indicates assembly is underway.
	OrderStatusInProduction OrderStatus = "in_production"
	// OrderStatusQualityCheck indicates the finished piece is being inspected.
	OrderStatusQualityCheck OrderStatus = "quality_check"
	// OrderStatusReadyForPickup indicates the customer can collect the order.
	OrderStatusReadyForPickup OrderStatus = "ready_for_pickup"
	// OrderStatusPickedUp indicates the customer has collected the order.
	OrderStatusPickedUp OrderStatus = "picked_up"
	// OrderStatusCompleted is the terminal success state.
	OrderStatusCompleted OrderStatus = "completed"
	// OrderStatusCancelled is terminal and reachable from any state.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// orderStatusFlow is the forward production sequence. Cancelled sits outside
// the flow and is reachable from anywhere.
var orderStatusFlow = []OrderStatus{
	OrderStatusNewDesign,
	OrderStatusAwaitingMaterials,
	OrderStatusInProduction,
	OrderStatusQualityCheck,
	OrderStatusReadyForPickup,
	OrderStatusPickedUp,
	OrderStatusCompleted,
}

// InvalidStatusError reports a status value outside the known lifecycle set.
type InvalidStatusError struct {
	Status string
}

// Error implements the error interface.
func (e *InvalidStatusError) Error() string {
	return fmt.Sprintf("invalid order status %q", e.Status)
}

// ParseOrderStatus validates the raw value against the known lifecycle states.
func ParseOrderStatus(raw string) (OrderStatus, error) {
	candidate := OrderStatus(raw)
	if candidate == OrderStatusCancelled {
		return candidate, nil
	}
	for _, status := range orderStatusFlow {
		if status == candidate {
			return candidate, nil
		}
	}
	return "", &InvalidStatusError{Status: raw}
}

// IsValid reports whether the status belongs to the known lifecycle set.
func (s OrderStatus) IsValid() bool {
	_, err := ParseOrderStatus(string(s))
	return err == nil
}

// Next returns the following state in the forward flow. At the end of the
// flow, or for statuses outside it, the receiver is returned unchanged.
func (s OrderStatus) Next() OrderStatus {
	for i, status := range orderStatusFlow {
		if status == s {
			if i+1 < len(orderStatusFlow) {
				return orderStatusFlow[i+1]
			}
			return s
		}
	}
	return s
}

// Previous returns the preceding state in the forward flow. At the start of
// the flow, or for statuses outside it, the receiver is returned unchanged.
func (s OrderStatus) Previous() OrderStatus {
	for i, status := range orderStatusFlow {
		if status == s {
			if i > 0 {
				return orderStatusFlow[i-1]
			}
			return s
		}
	}
	return s
}

// OrderStatuses returns the forward flow plus the cancelled state, in order.
func OrderStatuses() []OrderStatus {
	out := make([]OrderStatus, 0, len(orderStatusFlow)+1)
	out = append(out, orderStatusFlow...)
	return append(out, OrderStatusCancelled)
}
